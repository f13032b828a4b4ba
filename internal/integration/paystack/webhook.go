// Package paystack проверяет и разбирает вебхуки Paystack.
package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Dhoini/newsletter-billing/internal/domain"
)

// Provider имя провайдера в журнале
const Provider = "paystack"

// SignatureHeader заголовок с подписью тела запроса
const SignatureHeader = "x-paystack-signature"

const (
	eventChargeSuccess = "charge.success"
	eventChargeFailed  = "charge.failed"
)

type webhookEvent struct {
	Event string      `json:"event"`
	Data  chargeEvent `json:"data"`
}

type chargeEvent struct {
	ID        int64    `json:"id"`
	Reference string   `json:"reference"`
	Amount    int64    `json:"amount"` // в минимальных единицах валюты
	Currency  string   `json:"currency"`
	PaidAt    string   `json:"paid_at"`
	Metadata  metadata `json:"metadata"`
	Customer  struct {
		Email string `json:"email"`
	} `json:"customer"`
}

type metadata struct {
	UserID   string `json:"user_id"`
	PlanType string `json:"plan_type"`
	Email    string `json:"email"`
}

// UnmarshalJSON Paystack присылает пустые метаданные строкой ""
func (m *metadata) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	type plain metadata
	return json.Unmarshal(b, (*plain)(m))
}

// Verifier проверяет HMAC-SHA512 подпись вебхука
type Verifier struct {
	secret []byte
}

// NewVerifier создает проверку подписи с секретным ключом
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify проверяет подпись и возвращает подтверждение платежа
func (v *Verifier) Verify(header http.Header, body []byte) (domain.Confirmation, error) {
	if len(v.secret) == 0 {
		return domain.Confirmation{}, fmt.Errorf("%w: paystack secret is not configured", domain.ErrWebhookValidationFailed)
	}

	signature := header.Get(SignatureHeader)
	if signature == "" {
		return domain.Confirmation{}, fmt.Errorf("%w: missing %s header", domain.ErrWebhookValidationFailed, SignatureHeader)
	}
	if !hmac.Equal([]byte(strings.ToLower(signature)), []byte(Sign(v.secret, body))) {
		return domain.Confirmation{}, fmt.Errorf("%w: signature mismatch", domain.ErrWebhookValidationFailed)
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return domain.Confirmation{}, fmt.Errorf("%w: decode event: %v", domain.ErrInvalidInput, err)
	}

	var status domain.PaymentStatus
	switch event.Event {
	case eventChargeSuccess:
		status = domain.PaymentStatusSuccess
	case eventChargeFailed:
		status = domain.PaymentStatusFailed
	default:
		return domain.Confirmation{}, fmt.Errorf("%w: unsupported event %q", domain.ErrInvalidInput, event.Event)
	}
	if event.Data.Reference == "" {
		return domain.Confirmation{}, fmt.Errorf("%w: event without reference", domain.ErrInvalidInput)
	}

	email := event.Data.Metadata.Email
	if email == "" {
		email = event.Data.Customer.Email
	}

	return domain.Confirmation{
		Provider:  Provider,
		EventID:   fmt.Sprintf("%d", event.Data.ID),
		EventType: event.Event,
		Reference: event.Data.Reference,
		Status:    status,
		Amount:    float64(event.Data.Amount) / 100,
		Currency:  strings.ToUpper(event.Data.Currency),
		UserID:    event.Data.Metadata.UserID,
		Email:     email,
		PlanType:  event.Data.Metadata.PlanType,
		PaidAt:    parsePaidAt(event.Data.PaidAt),
	}, nil
}

// Sign hex(HMAC-SHA512(body, secret))
func Sign(secret, body []byte) string {
	mac := hmac.New(sha512.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func parsePaidAt(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
