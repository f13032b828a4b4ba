package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dhoini/newsletter-billing/internal/domain"
	"github.com/Dhoini/newsletter-billing/pkg/logger"
	"github.com/google/uuid"
)

// PaymentRepository журнал платежей. Записи только добавляются, меняется лишь статус.
type PaymentRepository interface {
	// Create добавляет запись. Повтор reference дает domain.ErrDuplicate.
	Create(ctx context.Context, rec domain.PaymentRecord) (domain.PaymentRecord, error)
	GetByReference(ctx context.Context, reference string) (domain.PaymentRecord, error)
	// LatestSuccessful последняя по paid_at запись со статусом success или domain.ErrNotFound.
	LatestSuccessful(ctx context.Context, userID string) (domain.PaymentRecord, error)
	// ListByUser все записи пользователя, новые первыми.
	ListByUser(ctx context.Context, userID string) ([]domain.PaymentRecord, error)
	// UpdateStatus меняет статус. Если paidAt не nil, обновляется и paid_at.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus, paidAt *time.Time) (domain.PaymentRecord, error)
}

// InMemoryPaymentRepository реализация журнала в памяти (dev-режим и тесты)
type InMemoryPaymentRepository struct {
	payments map[uuid.UUID]domain.PaymentRecord
	mutex    sync.RWMutex
	log      *logger.Logger
	now      func() time.Time
}

// NewInMemoryPaymentRepository создает новый журнал в памяти
func NewInMemoryPaymentRepository(log *logger.Logger) *InMemoryPaymentRepository {
	return &InMemoryPaymentRepository{
		payments: make(map[uuid.UUID]domain.PaymentRecord),
		log:      log,
		now:      time.Now,
	}
}

// Create добавляет запись в журнал
func (r *InMemoryPaymentRepository) Create(ctx context.Context, rec domain.PaymentRecord) (domain.PaymentRecord, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, existing := range r.payments {
		if existing.Reference == rec.Reference {
			return domain.PaymentRecord{}, domain.NewDuplicateError("payment", "reference", rec.Reference)
		}
	}

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	now := r.now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	r.payments[rec.ID] = rec

	r.log.Debugw("Payment record stored in memory", "paymentID", rec.ID, "reference", rec.Reference)
	return rec, nil
}

// GetByReference возвращает запись по reference
func (r *InMemoryPaymentRepository) GetByReference(ctx context.Context, reference string) (domain.PaymentRecord, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, rec := range r.payments {
		if rec.Reference == reference {
			return rec, nil
		}
	}
	return domain.PaymentRecord{}, domain.NewNotFoundError("payment", reference)
}

// LatestSuccessful возвращает последнюю успешную запись пользователя
func (r *InMemoryPaymentRepository) LatestSuccessful(ctx context.Context, userID string) (domain.PaymentRecord, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var (
		latest domain.PaymentRecord
		found  bool
	)
	for _, rec := range r.payments {
		if rec.UserID != userID || rec.Status != domain.PaymentStatusSuccess {
			continue
		}
		if !found || newerThan(rec, latest) {
			latest = rec
			found = true
		}
	}
	if !found {
		return domain.PaymentRecord{}, domain.NewNotFoundError("successful payment for user", userID)
	}
	return latest, nil
}

// ListByUser возвращает все записи пользователя, новые первыми
func (r *InMemoryPaymentRepository) ListByUser(ctx context.Context, userID string) ([]domain.PaymentRecord, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]domain.PaymentRecord, 0)
	for _, rec := range r.payments {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newerThan(out[i], out[j]) })
	return out, nil
}

// UpdateStatus меняет статус записи
func (r *InMemoryPaymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus, paidAt *time.Time) (domain.PaymentRecord, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	rec, exists := r.payments[id]
	if !exists {
		return domain.PaymentRecord{}, domain.NewNotFoundError("payment", id.String())
	}

	rec.Status = status
	if paidAt != nil {
		rec.PaidAt = paidAt.UTC()
	}
	rec.UpdatedAt = r.now().UTC()
	r.payments[id] = rec

	return rec, nil
}

// newerThan порядок журнала: paid_at DESC, created_at DESC, затем reference
func newerThan(a, b domain.PaymentRecord) bool {
	if !a.PaidAt.Equal(b.PaidAt) {
		return a.PaidAt.After(b.PaidAt)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.Reference > b.Reference
}
