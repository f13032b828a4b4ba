package domain

import "time"

// Confirmation проверенное подтверждение платежа от провайдера
type Confirmation struct {
	Provider  string
	EventID   string
	EventType string
	Reference string
	Status    PaymentStatus // success или failed
	Amount    float64       // в основных единицах валюты
	Currency  string
	UserID    string // из метаданных, если провайдер их вернул
	Email     string
	PlanType  string
	PaidAt    time.Time
}

// LedgerEventType тип события журнала для Kafka
type LedgerEventType string

const (
	EventPaymentPending        LedgerEventType = "payment.pending"
	EventPaymentRecorded       LedgerEventType = "payment.recorded"
	EventPaymentFailed         LedgerEventType = "payment.failed"
	EventSubscriptionCancelled LedgerEventType = "subscription.canceled"
)

// LedgerEvent событие об изменении журнала платежей
type LedgerEvent struct {
	Type      LedgerEventType `json:"type"`
	PaymentID string          `json:"payment_id"`
	UserID    string          `json:"user_id"`
	Reference string          `json:"reference"`
	PlanType  string          `json:"plan_type"`
	Status    PaymentStatus   `json:"status"`
	Amount    float64         `json:"amount"`
	Currency  string          `json:"currency"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewLedgerEvent строит событие по записи журнала
func NewLedgerEvent(t LedgerEventType, rec PaymentRecord, at time.Time) LedgerEvent {
	return LedgerEvent{
		Type:      t,
		PaymentID: rec.ID.String(),
		UserID:    rec.UserID,
		Reference: rec.Reference,
		PlanType:  rec.PlanType,
		Status:    rec.Status,
		Amount:    rec.Amount,
		Currency:  rec.Currency,
		Timestamp: at,
	}
}
