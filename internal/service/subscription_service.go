package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Dhoini/newsletter-billing/internal/domain"
	"github.com/Dhoini/newsletter-billing/internal/entitlement"
	"github.com/Dhoini/newsletter-billing/internal/metrics"
	"github.com/Dhoini/newsletter-billing/internal/repository"
	"github.com/Dhoini/newsletter-billing/pkg/logger"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// DefaultProvider имя провайдера для платежей, записанных сервисом напрямую
const DefaultProvider = "smoothpay"

// PlanCatalog каталог планов
type PlanCatalog interface {
	Lookup(id string) (domain.Plan, error)
	Plans() []domain.Plan
}

// LegacySubscriptionReader читает старую таблицу subscriptions
type LegacySubscriptionReader interface {
	ActiveSubscription(ctx context.Context, userID string) (domain.LegacySubscription, error)
}

// EventPublisher публикует события журнала
type EventPublisher interface {
	Publish(ctx context.Context, event domain.LedgerEvent) error
}

// Dependencies зависимости сервиса подписок
type Dependencies struct {
	Payments   repository.PaymentRepository
	Plans      PlanCatalog
	Calculator *entitlement.Calculator
	Legacy     LegacySubscriptionReader // может быть nil
	Publisher  EventPublisher           // может быть nil
	Metrics    metrics.PaymentMetrics
	Provider   string
}

// Option настраивает SubscriptionService
type Option func(*SubscriptionService)

// WithPublishBackOff задает политику повторов публикации событий
func WithPublishBackOff(newBackOff func() backoff.BackOff) Option {
	return func(s *SubscriptionService) { s.newBackOff = newBackOff }
}

// SubscriptionService управляет журналом платежей и вычисляет доступ пользователя
type SubscriptionService struct {
	payments   repository.PaymentRepository
	plans      PlanCatalog
	calc       *entitlement.Calculator
	legacy     LegacySubscriptionReader
	publisher  EventPublisher
	metrics    metrics.PaymentMetrics
	provider   string
	newBackOff func() backoff.BackOff
	log        *logger.Logger
}

// NewSubscriptionService создает новый сервис подписок
func NewSubscriptionService(deps Dependencies, log *logger.Logger, opts ...Option) *SubscriptionService {
	s := &SubscriptionService{
		payments:   deps.Payments,
		plans:      deps.Plans,
		calc:       deps.Calculator,
		legacy:     deps.Legacy,
		publisher:  deps.Publisher,
		metrics:    deps.Metrics,
		provider:   deps.Provider,
		newBackOff: defaultPublishBackOff,
		log:        log.Named("subscriptions"),
	}
	if s.provider == "" {
		s.provider = DefaultProvider
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func defaultPublishBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 5 * time.Second
	return backoff.WithMaxRetries(bo, 3)
}

// Plans все планы каталога в порядке отображения
func (s *SubscriptionService) Plans() []domain.Plan {
	return s.plans.Plans()
}

// GetStatus вычисляет состояние подписки по последней успешной записи.
// Ничего не записывает.
func (s *SubscriptionService) GetStatus(ctx context.Context, userID string) (domain.SubscriptionStatus, error) {
	latest, err := s.payments.LatestSuccessful(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.metrics.IncStatusRead(string(domain.SubscriptionInactive))
			return domain.InactiveStatus(), nil
		}
		s.log.Errorw("Failed to read latest payment", "userID", userID, "error", err)
		return domain.SubscriptionStatus{}, err
	}

	status := s.calc.Evaluate(latest)
	s.metrics.IncStatusRead(string(status.Status))
	return status, nil
}

// CurrentPlan план активной подписки пользователя. ok=false, если подписки нет или она истекла.
func (s *SubscriptionService) CurrentPlan(ctx context.Context, userID string) (domain.Plan, bool, error) {
	status, err := s.GetStatus(ctx, userID)
	if err != nil {
		return domain.Plan{}, false, err
	}
	if !status.Active || status.PlanType == nil {
		return domain.Plan{}, false, nil
	}
	plan, err := s.plans.Lookup(*status.PlanType)
	if err != nil {
		return domain.Plan{}, false, nil
	}
	return plan, true, nil
}

// Cancel переводит последнюю успешную запись в canceled. Возврата средств нет.
func (s *SubscriptionService) Cancel(ctx context.Context, userID string) error {
	latest, err := s.payments.LatestSuccessful(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.log.Infow("Cancel requested without successful payment", "userID", userID)
		}
		return err
	}

	canceled, err := s.payments.UpdateStatus(ctx, latest.ID, domain.PaymentStatusCanceled, nil)
	if err != nil {
		s.log.Errorw("Failed to cancel subscription", "userID", userID, "paymentID", latest.ID, "error", err)
		return err
	}

	s.log.Infow("Subscription canceled", "userID", userID, "reference", canceled.Reference, "plan", canceled.PlanType)
	s.metrics.IncSubscriptionCanceled(canceled.PlanType)
	s.publish(ctx, domain.EventSubscriptionCancelled, canceled)
	return nil
}

// RecordPayment записывает успешный платеж с paid_at = now и возвращает reference.
// Вызывается только после подтверждения оплаты либо для бесплатного плана.
func (s *SubscriptionService) RecordPayment(ctx context.Context, in domain.PaymentInput) (string, error) {
	plan, err := s.plans.Lookup(in.PlanType)
	if err != nil {
		s.log.Warnw("Rejected payment with unknown plan", "userID", in.UserID, "plan", in.PlanType)
		return "", err
	}

	now := s.calc.Now()
	rec, err := s.writeSuccess(ctx, plan, in, s.newReference(now), s.provider, now)
	if err != nil {
		return "", err
	}
	return rec.Reference, nil
}

// InitiatePayment начинает оплату. Бесплатный план записывается сразу как success,
// для платного создается pending-запись, reference которой клиент передает провайдеру.
func (s *SubscriptionService) InitiatePayment(ctx context.Context, in domain.PaymentInput) (domain.PaymentRecord, error) {
	plan, err := s.plans.Lookup(in.PlanType)
	if err != nil {
		s.log.Warnw("Rejected payment with unknown plan", "userID", in.UserID, "plan", in.PlanType)
		return domain.PaymentRecord{}, err
	}

	now := s.calc.Now()
	if plan.IsFree() {
		return s.writeSuccess(ctx, plan, in, s.newReference(now), s.provider, now)
	}

	rec, err := s.payments.Create(ctx, domain.PaymentRecord{
		ID:        uuid.New(),
		UserID:    in.UserID,
		Email:     in.Email,
		Reference: s.newReference(now),
		Amount:    plan.Price,
		Currency:  plan.Currency,
		PlanType:  string(plan.ID),
		Status:    domain.PaymentStatusPending,
		Provider:  s.provider,
		PaidAt:    now,
	})
	if err != nil {
		s.log.Errorw("Failed to create pending payment", "userID", in.UserID, "plan", plan.ID, "error", err)
		return domain.PaymentRecord{}, err
	}

	s.log.Infow("Payment initiated", "userID", in.UserID, "reference", rec.Reference, "plan", rec.PlanType)
	s.metrics.IncPaymentRecorded(rec.PlanType, string(rec.Status))
	s.publish(ctx, domain.EventPaymentPending, rec)
	return rec, nil
}

// ConfirmPayment применяет проверенное подтверждение провайдера.
// Повторные подтверждения уже завершенной записи ничего не меняют.
func (s *SubscriptionService) ConfirmPayment(ctx context.Context, c domain.Confirmation) error {
	rec, err := s.payments.GetByReference(ctx, c.Reference)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return s.recordUnmatched(ctx, c)
		}
		return err
	}

	if rec.Status.IsSettled() {
		s.log.Debugw("Confirmation for settled payment ignored", "reference", rec.Reference, "status", rec.Status)
		return nil
	}

	plan, planErr := s.plans.Lookup(rec.PlanType)
	next := domain.PaymentStatusFailed
	if planErr == nil && c.Status == domain.PaymentStatusSuccess && amountMatches(plan, c) {
		next = domain.PaymentStatusSuccess
	} else if c.Status == domain.PaymentStatusSuccess {
		s.log.Warnw("Confirmation does not match plan price",
			"reference", rec.Reference, "plan", rec.PlanType, "amount", c.Amount, "currency", c.Currency)
	}

	paidAt := c.PaidAt.UTC()
	if paidAt.IsZero() {
		paidAt = s.calc.Now()
	}
	updated, err := s.payments.UpdateStatus(ctx, rec.ID, next, &paidAt)
	if err != nil {
		s.log.Errorw("Failed to apply confirmation", "reference", rec.Reference, "error", err)
		return err
	}

	s.log.Infow("Payment confirmed", "reference", updated.Reference, "status", updated.Status, "provider", c.Provider)
	s.metrics.IncPaymentRecorded(updated.PlanType, string(updated.Status))
	s.metrics.ObservePaymentAmount(updated.Amount, updated.Currency, string(updated.Status))
	if updated.Status == domain.PaymentStatusSuccess {
		s.publish(ctx, domain.EventPaymentRecorded, updated)
	} else {
		s.publish(ctx, domain.EventPaymentFailed, updated)
	}
	return nil
}

// recordUnmatched записывает подтверждение без pending-записи по метаданным провайдера
func (s *SubscriptionService) recordUnmatched(ctx context.Context, c domain.Confirmation) error {
	if c.Status != domain.PaymentStatusSuccess || c.UserID == "" || c.PlanType == "" {
		s.log.Warnw("Confirmation for unknown reference", "reference", c.Reference, "provider", c.Provider)
		return domain.NewNotFoundError("payment", c.Reference)
	}

	plan, err := s.plans.Lookup(c.PlanType)
	if err != nil {
		return err
	}
	if !amountMatches(plan, c) {
		s.log.Warnw("Unmatched confirmation does not match plan price",
			"reference", c.Reference, "plan", plan.ID, "amount", c.Amount, "currency", c.Currency)
		return fmt.Errorf("%w: amount %.2f %s does not match plan %s", domain.ErrInvalidInput, c.Amount, c.Currency, plan.ID)
	}

	paidAt := c.PaidAt.UTC()
	if paidAt.IsZero() {
		paidAt = s.calc.Now()
	}
	provider := c.Provider
	if provider == "" {
		provider = s.provider
	}
	_, err = s.writeSuccess(ctx, plan, domain.PaymentInput{UserID: c.UserID, Email: c.Email, PlanType: c.PlanType},
		c.Reference, provider, paidAt)
	if errors.Is(err, domain.ErrDuplicate) {
		// параллельное подтверждение уже записало строку
		return nil
	}
	return err
}

// History все записи журнала пользователя, новые первыми
func (s *SubscriptionService) History(ctx context.Context, userID string) ([]domain.PaymentRecord, error) {
	records, err := s.payments.ListByUser(ctx, userID)
	if err != nil {
		s.log.Errorw("Failed to list payments", "userID", userID, "error", err)
		return nil, err
	}
	return records, nil
}

// CheckSubscriptionStatus сначала проверяет старую таблицу subscriptions,
// затем журнал платежей.
func (s *SubscriptionService) CheckSubscriptionStatus(ctx context.Context, userID string) (bool, error) {
	now := s.calc.Now()

	if s.legacy != nil {
		row, err := s.legacy.ActiveSubscription(ctx, userID)
		switch {
		case err == nil:
			if active, _ := entitlement.DeriveStatus(now, row.CurrentPeriodEnd); active {
				return true, nil
			}
		case errors.Is(err, domain.ErrNotFound):
		default:
			s.log.Errorw("Failed to read legacy subscription", "userID", userID, "error", err)
			return false, err
		}
	}

	latest, err := s.payments.LatestSuccessful(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return s.calc.IsActive(latest), nil
}

// RequireActiveSubscription возвращает domain.ErrSubscriptionRequired, если доступа нет
func (s *SubscriptionService) RequireActiveSubscription(ctx context.Context, userID string) error {
	active, err := s.CheckSubscriptionStatus(ctx, userID)
	if err != nil {
		return err
	}
	if !active {
		return domain.ErrSubscriptionRequired
	}
	return nil
}

func (s *SubscriptionService) writeSuccess(ctx context.Context, plan domain.Plan, in domain.PaymentInput,
	reference, provider string, paidAt time.Time) (domain.PaymentRecord, error) {
	rec, err := s.payments.Create(ctx, domain.PaymentRecord{
		ID:            uuid.New(),
		UserID:        in.UserID,
		Email:         in.Email,
		Reference:     reference,
		Amount:        plan.Price,
		Currency:      plan.Currency,
		PlanType:      string(plan.ID),
		Status:        domain.PaymentStatusSuccess,
		Provider:      provider,
		TransactionID: newTransactionID(paidAt),
		PaidAt:        paidAt,
	})
	if err != nil {
		s.log.Errorw("Failed to record payment", "userID", in.UserID, "plan", plan.ID, "error", err)
		return domain.PaymentRecord{}, err
	}

	s.log.Infow("Payment recorded", "userID", rec.UserID, "reference", rec.Reference, "plan", rec.PlanType)
	s.metrics.IncPaymentRecorded(rec.PlanType, string(rec.Status))
	s.metrics.ObservePaymentAmount(rec.Amount, rec.Currency, string(rec.Status))
	s.publish(ctx, domain.EventPaymentRecorded, rec)
	return rec, nil
}

// publish отправляет событие с повторами. Ошибка только логируется:
// запись в журнал к этому моменту уже сделана.
func (s *SubscriptionService) publish(ctx context.Context, eventType domain.LedgerEventType, rec domain.PaymentRecord) {
	if s.publisher == nil {
		return
	}

	event := domain.NewLedgerEvent(eventType, rec, s.calc.Now())
	operation := func() error {
		return s.publisher.Publish(ctx, event)
	}

	if err := backoff.Retry(operation, backoff.WithContext(s.newBackOff(), ctx)); err != nil {
		s.log.Errorw("Failed to publish ledger event", "type", eventType, "reference", rec.Reference, "error", err)
	}
}

func (s *SubscriptionService) newReference(now time.Time) string {
	return fmt.Sprintf("%s_%d_%s", s.provider, now.UnixMilli(), shortID())
}

func newTransactionID(now time.Time) string {
	return fmt.Sprintf("txn_%d_%s", now.UnixMilli(), shortID())
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

func amountMatches(plan domain.Plan, c domain.Confirmation) bool {
	return math.Abs(plan.Price-c.Amount) < 0.005 && strings.EqualFold(plan.Currency, c.Currency)
}
