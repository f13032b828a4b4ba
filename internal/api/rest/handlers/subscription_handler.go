package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Dhoini/newsletter-billing/internal/domain"
	"github.com/Dhoini/newsletter-billing/pkg/logger"
	"github.com/Dhoini/newsletter-billing/pkg/req"
	"github.com/Dhoini/newsletter-billing/pkg/res"
	"github.com/gin-gonic/gin"
)

// SubscriptionService операции над подпиской пользователя
type SubscriptionService interface {
	GetStatus(ctx context.Context, userID string) (domain.SubscriptionStatus, error)
	Cancel(ctx context.Context, userID string) error
	History(ctx context.Context, userID string) ([]domain.PaymentRecord, error)
	CurrentPlan(ctx context.Context, userID string) (domain.Plan, bool, error)
}

// SubscriptionHandler обработчик для подписок
type SubscriptionHandler struct {
	subscriptions SubscriptionService
	log           *logger.Logger
}

// NewSubscriptionHandler создает новый обработчик подписок
func NewSubscriptionHandler(subscriptions SubscriptionService, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions, log: log}
}

// GetStatus GET /subscription/status
func (h *SubscriptionHandler) GetStatus(c *gin.Context) {
	userID, ok := currentUser(c, h.log)
	if !ok {
		return
	}

	status, err := h.subscriptions.GetStatus(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, h.log)
		return
	}
	res.JsonResponse(c, status, http.StatusOK)
}

// Manage POST /subscription/manage. Поддерживается только action=cancel.
func (h *SubscriptionHandler) Manage(c *gin.Context) {
	userID, ok := currentUser(c, h.log)
	if !ok {
		return
	}

	body, err := req.HandleBody[domain.ManageRequest](c, h.log)
	if err != nil {
		return
	}
	if body.Action != domain.ActionCancel {
		res.JsonErrorResponse(c, res.ErrorResponse{Error: "Invalid action"}, http.StatusBadRequest, h.log)
		return
	}

	if err := h.subscriptions.Cancel(c.Request.Context(), userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			res.JsonErrorResponse(c, res.ErrorResponse{Error: "No active subscription found"}, http.StatusNotFound, h.log)
			return
		}
		respondError(c, err, h.log)
		return
	}

	res.JsonResponse(c, gin.H{
		"success": true,
		"message": "Subscription canceled successfully",
	}, http.StatusOK)
}

// History GET /subscription/history. Доступно только планам с history.
func (h *SubscriptionHandler) History(c *gin.Context) {
	userID, ok := currentUser(c, h.log)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	plan, active, err := h.subscriptions.CurrentPlan(ctx, userID)
	if err != nil {
		respondError(c, err, h.log)
		return
	}
	if !active || !plan.Features.History {
		res.JsonErrorResponse(c, res.ErrorResponse{Error: "Payment history is not included in your plan"}, http.StatusForbidden, h.log)
		return
	}

	records, err := h.subscriptions.History(ctx, userID)
	if err != nil {
		respondError(c, err, h.log)
		return
	}
	res.JsonResponse(c, gin.H{"payments": records}, http.StatusOK)
}
