package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/Dhoini/newsletter-billing/internal/domain"
	"github.com/Dhoini/newsletter-billing/pkg/logger"
	"github.com/Dhoini/newsletter-billing/pkg/res"
	"github.com/gin-gonic/gin"
)

// SubscriptionGuard проверка активной подписки
type SubscriptionGuard interface {
	RequireActiveSubscription(ctx context.Context, userID string) error
}

// RequireSubscription пропускает только пользователей с активной подпиской.
// Ставить после RequireAuth.
func RequireSubscription(guard SubscriptionGuard, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			res.JsonErrorResponse(c, res.ErrorResponse{Error: "Not authenticated"}, http.StatusUnauthorized, log)
			return
		}

		err := guard.RequireActiveSubscription(c.Request.Context(), userID)
		switch {
		case err == nil:
			c.Next()
		case errors.Is(err, domain.ErrSubscriptionRequired):
			res.JsonErrorResponse(c, res.ErrorResponse{Error: "Active subscription required"}, http.StatusForbidden, log)
		default:
			log.Errorw("Subscription check failed", "userID", userID, "error", err)
			res.JsonErrorResponse(c, res.ErrorResponse{Error: "Internal server error"}, http.StatusInternalServerError, nil)
		}
	}
}
