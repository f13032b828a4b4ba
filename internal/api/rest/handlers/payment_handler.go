package handlers

import (
	"context"
	"net/http"

	"github.com/Dhoini/newsletter-billing/internal/domain"
	"github.com/Dhoini/newsletter-billing/internal/middleware"
	"github.com/Dhoini/newsletter-billing/pkg/logger"
	"github.com/Dhoini/newsletter-billing/pkg/req"
	"github.com/Dhoini/newsletter-billing/pkg/res"
	"github.com/gin-gonic/gin"
)

// PaymentInitiator начинает оплату плана
type PaymentInitiator interface {
	InitiatePayment(ctx context.Context, in domain.PaymentInput) (domain.PaymentRecord, error)
}

// PaymentHandler обработчик для платежей
type PaymentHandler struct {
	payments PaymentInitiator
	log      *logger.Logger
}

// NewPaymentHandler создает новый обработчик платежей
func NewPaymentHandler(payments PaymentInitiator, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, log: log}
}

// CreatePaymentResponse ответ на создание платежа
type CreatePaymentResponse struct {
	Success   bool                 `json:"success"`
	Reference string               `json:"reference"`
	Status    domain.PaymentStatus `json:"status"`
}

// CreatePayment POST /payments
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	userID, ok := currentUser(c, h.log)
	if !ok {
		return
	}

	body, err := req.HandleBody[domain.PaymentRequest](c, h.log)
	if err != nil {
		return
	}

	// платить можно только за себя
	if body.UserID != "" && body.UserID != userID {
		h.log.Warnw("Payment for another user rejected", "userID", userID, "requestedUserID", body.UserID)
		respondError(c, domain.ErrForbidden, h.log)
		return
	}

	email := body.Email
	if email == "" {
		email = middleware.UserEmail(c)
	}

	rec, err := h.payments.InitiatePayment(c.Request.Context(), domain.PaymentInput{
		UserID:   userID,
		Email:    email,
		PlanType: body.PlanType,
	})
	if err != nil {
		respondError(c, err, h.log)
		return
	}

	res.JsonResponse(c, CreatePaymentResponse{
		Success:   true,
		Reference: rec.Reference,
		Status:    rec.Status,
	}, http.StatusOK)
}
