package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/Dhoini/newsletter-billing/internal/domain"
	"github.com/Dhoini/newsletter-billing/internal/metrics"
	"github.com/Dhoini/newsletter-billing/pkg/logger"
	"github.com/Dhoini/newsletter-billing/pkg/res"
	"github.com/gin-gonic/gin"
)

const (
	// Ограничение на размер тела запроса вебхука
	maxRequestBodySize = int64(65536)
)

// Verifier проверяет подпись вебхука провайдера
type Verifier interface {
	Verify(header http.Header, body []byte) (domain.Confirmation, error)
}

// PaymentConfirmer применяет подтверждение платежа
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, c domain.Confirmation) error
}

// WebhookHandler принимает вебхуки платежных провайдеров
type WebhookHandler struct {
	confirmer PaymentConfirmer
	metrics   metrics.PaymentMetrics
	log       *logger.Logger
}

// NewWebhookHandler создает обработчик вебхуков
func NewWebhookHandler(confirmer PaymentConfirmer, m metrics.PaymentMetrics, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{confirmer: confirmer, metrics: m, log: log}
}

// Handle возвращает gin-обработчик для провайдера
func (h *WebhookHandler) Handle(provider string, verifier Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBodySize)
		payload, err := io.ReadAll(c.Request.Body)
		if err != nil {
			h.metrics.IncWebhook(provider, "unreadable")
			res.JsonErrorResponse(c, res.ErrorResponse{Error: "Cannot read request body"}, http.StatusBadRequest, h.log)
			return
		}

		confirmation, err := verifier.Verify(c.Request.Header, payload)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrWebhookValidationFailed):
			h.log.Warnw("Webhook signature verification failed", "provider", provider, "error", err)
			h.metrics.IncWebhook(provider, "rejected")
			respondError(c, err, nil)
			return
		default:
			// подпись верна, но событие нам не нужно: подтверждаем, чтобы провайдер не повторял
			h.log.Infow("Webhook event ignored", "provider", provider, "error", err)
			h.metrics.IncWebhook(provider, "ignored")
			res.JsonResponse(c, gin.H{"received": true}, http.StatusOK)
			return
		}

		h.log.Infow("Received verified webhook", "provider", provider,
			"eventID", confirmation.EventID, "eventType", confirmation.EventType, "reference", confirmation.Reference)

		if err := h.confirmer.ConfirmPayment(c.Request.Context(), confirmation); err != nil {
			if !isUnmatched(err) {
				h.metrics.IncWebhook(provider, "error")
				respondError(c, err, h.log)
				return
			}
			h.log.Warnw("Webhook confirmation not applied", "provider", provider,
				"reference", confirmation.Reference, "error", err)
			h.metrics.IncWebhook(provider, "unmatched")
			res.JsonResponse(c, gin.H{"received": true}, http.StatusOK)
			return
		}

		h.metrics.IncWebhook(provider, "applied")
		res.JsonResponse(c, gin.H{"received": true}, http.StatusOK)
	}
}

// isUnmatched ошибки, которые повтор доставки не исправит
func isUnmatched(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrInvalidPlan)
}
