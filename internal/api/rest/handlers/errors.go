package handlers

import (
	"errors"
	"net/http"

	"github.com/Dhoini/newsletter-billing/internal/domain"
	"github.com/Dhoini/newsletter-billing/internal/middleware"
	"github.com/Dhoini/newsletter-billing/pkg/logger"
	"github.com/Dhoini/newsletter-billing/pkg/res"
	"github.com/gin-gonic/gin"
)

// httpError сопоставляет ошибку домена с HTTP статусом и сообщением для клиента.
// Детали ошибок хранилища клиенту не отдаются.
func httpError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidPlan):
		return http.StatusBadRequest, "Invalid plan type"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "Invalid request data"
	case errors.Is(err, domain.ErrWebhookValidationFailed):
		return http.StatusBadRequest, "Webhook validation failed"
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "Not authenticated"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, domain.ErrSubscriptionRequired):
		return http.StatusForbidden, "Active subscription required"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Not found"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func respondError(c *gin.Context, err error, log *logger.Logger) {
	status, message := httpError(err)
	if status >= http.StatusInternalServerError {
		log.Errorw("Request failed", "path", c.Request.URL.Path, "error", err)
		res.JsonErrorResponse(c, res.ErrorResponse{Error: message}, status, nil)
		return
	}
	res.JsonErrorResponse(c, res.ErrorResponse{Error: message}, status, log)
}

// currentUser ID пользователя из токена. Если его нет, ответ 401 уже отправлен.
func currentUser(c *gin.Context, log *logger.Logger) (string, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, domain.ErrUnauthenticated, log)
	}
	return userID, ok
}
