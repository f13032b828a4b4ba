package domain

import "time"

// SubscriptionState вычисленное состояние подписки
type SubscriptionState string

const (
	SubscriptionActive   SubscriptionState = "active"
	SubscriptionExpired  SubscriptionState = "expired"
	SubscriptionInactive SubscriptionState = "inactive"
)

// SubscriptionStatus производное состояние подписки. Не хранится,
// пересчитывается из журнала платежей на каждом чтении.
type SubscriptionStatus struct {
	Active    bool              `json:"active"`
	Status    SubscriptionState `json:"status"`
	ExpiresAt *time.Time        `json:"expires_at"`
	Provider  *string           `json:"provider"`
	PlanType  *string           `json:"plan_type"`
	Amount    *float64          `json:"amount"`
	Currency  *string           `json:"currency"`
}

// InactiveStatus состояние пользователя без успешных платежей
func InactiveStatus() SubscriptionStatus {
	return SubscriptionStatus{Active: false, Status: SubscriptionInactive}
}

// LegacySubscription строка из старой таблицы subscriptions (только чтение)
type LegacySubscription struct {
	UserID           string    `db:"user_id"`
	Status           string    `db:"status"`
	PlanType         *string   `db:"plan_type"`
	CurrentPeriodEnd time.Time `db:"current_period_end"`
}

// ManageRequest тело запроса управления подпиской
type ManageRequest struct {
	Action string `json:"action" validate:"required"`
}

// ActionCancel единственное поддерживаемое действие
const ActionCancel = "cancel"
