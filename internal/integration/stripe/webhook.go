// Package stripe проверяет и разбирает вебхуки Stripe.
package stripe

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Dhoini/newsletter-billing/internal/domain"
	stripego "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// Provider имя провайдера в журнале
const Provider = "stripe"

// SignatureHeader заголовок с подписью Stripe
const SignatureHeader = "Stripe-Signature"

const (
	eventCheckoutCompleted      = "checkout.session.completed"
	eventPaymentIntentSucceeded = "payment_intent.succeeded"
	eventPaymentIntentFailed    = "payment_intent.payment_failed"
)

// Verifier проверяет подпись вебхука секретом эндпоинта (whsec_...)
type Verifier struct {
	secret string
}

// NewVerifier создает проверку подписи Stripe
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Verify проверяет подпись и возвращает подтверждение платежа
func (v *Verifier) Verify(header http.Header, body []byte) (domain.Confirmation, error) {
	if v.secret == "" {
		return domain.Confirmation{}, fmt.Errorf("%w: stripe webhook secret is not configured", domain.ErrWebhookValidationFailed)
	}

	sigHeader := header.Get(SignatureHeader)
	if sigHeader == "" {
		return domain.Confirmation{}, fmt.Errorf("%w: missing %s header", domain.ErrWebhookValidationFailed, SignatureHeader)
	}

	event, err := webhook.ConstructEventWithOptions(body, sigHeader, v.secret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return domain.Confirmation{}, fmt.Errorf("%w: %v", domain.ErrWebhookValidationFailed, err)
	}

	paidAt := time.Unix(event.Created, 0).UTC()
	eventType := string(event.Type)

	switch eventType {
	case eventCheckoutCompleted:
		var session stripego.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return domain.Confirmation{}, fmt.Errorf("%w: decode checkout session: %v", domain.ErrInvalidInput, err)
		}
		reference := session.ClientReferenceID
		if reference == "" {
			reference = session.Metadata["reference"]
		}
		email := session.CustomerEmail
		if session.CustomerDetails != nil && session.CustomerDetails.Email != "" {
			email = session.CustomerDetails.Email
		}
		return confirmation(event.ID, eventType, reference, domain.PaymentStatusSuccess,
			session.AmountTotal, string(session.Currency), session.Metadata, email, paidAt)

	case eventPaymentIntentSucceeded, eventPaymentIntentFailed:
		var intent stripego.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return domain.Confirmation{}, fmt.Errorf("%w: decode payment intent: %v", domain.ErrInvalidInput, err)
		}
		status := domain.PaymentStatusSuccess
		amount := intent.AmountReceived
		if eventType == eventPaymentIntentFailed {
			status = domain.PaymentStatusFailed
			amount = intent.Amount
		}
		return confirmation(event.ID, eventType, intent.Metadata["reference"], status,
			amount, string(intent.Currency), intent.Metadata, intent.ReceiptEmail, paidAt)

	default:
		return domain.Confirmation{}, fmt.Errorf("%w: unsupported event %q", domain.ErrInvalidInput, eventType)
	}
}

func confirmation(eventID, eventType, reference string, status domain.PaymentStatus, amount int64,
	currency string, meta map[string]string, email string, paidAt time.Time) (domain.Confirmation, error) {
	if reference == "" {
		return domain.Confirmation{}, fmt.Errorf("%w: event %s without reference", domain.ErrInvalidInput, eventID)
	}
	if email == "" {
		email = meta["email"]
	}
	return domain.Confirmation{
		Provider:  Provider,
		EventID:   eventID,
		EventType: eventType,
		Reference: reference,
		Status:    status,
		Amount:    float64(amount) / 100,
		Currency:  strings.ToUpper(currency),
		UserID:    meta["user_id"],
		Email:     email,
		PlanType:  meta["plan_type"],
		PaidAt:    paidAt,
	}, nil
}
