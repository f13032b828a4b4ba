// Package entitlement вычисляет срок действия подписки по журналу платежей.
package entitlement

import (
	"fmt"
	"time"

	"github.com/Dhoini/newsletter-billing/internal/domain"
)

// foreverYears срок действия бесплатного плана
const foreverYears = 100

// PlanSource источник планов (каталог)
type PlanSource interface {
	Lookup(id string) (domain.Plan, error)
}

// Calculator вычисляет дату окончания и статус подписки.
type Calculator struct {
	plans PlanSource
	now   func() time.Time
}

// Option настраивает Calculator
type Option func(*Calculator)

// WithClock подменяет источник текущего времени
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) { c.now = now }
}

// NewCalculator создает калькулятор поверх каталога планов
func NewCalculator(plans PlanSource, opts ...Option) *Calculator {
	c := &Calculator{plans: plans, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Now текущее время по часам калькулятора в UTC
func (c *Calculator) Now() time.Time {
	return c.now().UTC()
}

// ComputeExpiry возвращает момент окончания доступа для платежа по плану.
// Для неизвестного плана возвращается domain.ErrInvalidPlan.
func (c *Calculator) ComputeExpiry(paidAt time.Time, planID string) (time.Time, error) {
	plan, err := c.plans.Lookup(planID)
	if err != nil {
		return time.Time{}, err
	}

	switch plan.Interval {
	case domain.IntervalMonth:
		return AddMonths(paidAt, 1), nil
	case domain.IntervalYear:
		return AddYears(paidAt, 1), nil
	case domain.IntervalForever:
		return AddYears(paidAt, foreverYears), nil
	default:
		return time.Time{}, fmt.Errorf("%w: plan %q has interval %q", domain.ErrInvalidPlan, planID, plan.Interval)
	}
}

// DeriveStatus активна ли подписка в момент now. Граница не включается:
// в сам момент expiresAt подписка уже истекла.
func DeriveStatus(now, expiresAt time.Time) (bool, domain.SubscriptionState) {
	if expiresAt.After(now) {
		return true, domain.SubscriptionActive
	}
	return false, domain.SubscriptionExpired
}

// Evaluate строит SubscriptionStatus для последней успешной записи журнала.
// Запись с неизвестным планом считается истекшей в момент оплаты.
func (c *Calculator) Evaluate(rec domain.PaymentRecord) domain.SubscriptionStatus {
	expiresAt, err := c.ComputeExpiry(rec.PaidAt, rec.PlanType)
	if err != nil {
		expiresAt = rec.PaidAt.UTC()
	}
	active, state := DeriveStatus(c.Now(), expiresAt)

	provider := rec.Provider
	plan := rec.PlanType
	amount := rec.Amount
	currency := rec.Currency
	return domain.SubscriptionStatus{
		Active:    active,
		Status:    state,
		ExpiresAt: &expiresAt,
		Provider:  &provider,
		PlanType:  &plan,
		Amount:    &amount,
		Currency:  &currency,
	}
}

// IsActive удобная обертка: активна ли подписка по записи журнала.
func (c *Calculator) IsActive(rec domain.PaymentRecord) bool {
	return c.Evaluate(rec).Active
}
