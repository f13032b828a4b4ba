package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus статус записи в журнале платежей
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusSuccess  PaymentStatus = "success"
	PaymentStatusCanceled PaymentStatus = "canceled"
	PaymentStatusFailed   PaymentStatus = "failed"
)

// IsSettled сообщает, что статус окончательный и подтверждения провайдера его больше не меняют
func (s PaymentStatus) IsSettled() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed || s == PaymentStatusCanceled
}

// PaymentRecord запись журнала платежей. Записи не удаляются, меняется только статус.
// Для pending-записей PaidAt хранит время создания и перезаписывается при подтверждении.
type PaymentRecord struct {
	ID            uuid.UUID     `json:"id"`
	UserID        string        `json:"user_id"`
	Email         string        `json:"email"`
	Reference     string        `json:"reference"`
	Amount        float64       `json:"amount"`
	Currency      string        `json:"currency"`
	PlanType      string        `json:"plan_type"`
	Status        PaymentStatus `json:"status"`
	Provider      string        `json:"provider"`
	TransactionID string        `json:"transaction_id"`
	PaidAt        time.Time     `json:"paid_at"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// PaymentInput данные для создания платежа
type PaymentInput struct {
	UserID   string
	Email    string
	PlanType string
}

// PaymentRequest тело запроса на создание платежа
type PaymentRequest struct {
	PlanType string `json:"plan_type" validate:"required"`
	UserID   string `json:"user_id"`
	Email    string `json:"email" validate:"omitempty,email"`
}
