package repository

import (
	"context"
	"sync"
	"time"

	"github.com/Dhoini/newsletter-billing/internal/domain"
	"github.com/Dhoini/newsletter-billing/pkg/logger"
	"github.com/google/uuid"
)

// CachedPaymentRepository кеширует LatestSuccessful и сбрасывает кеш
// пользователя при каждой записи в журнал.
//
// Поколение пользователя растет при каждой записи. Чтение кладет строку в кеш,
// только если поколение не изменилось с момента начала чтения из журнала.
// Если сброс кеша не удался, пользователь помечается как stale и читается
// мимо кеша, пока очередной сброс не пройдет.
type CachedPaymentRepository struct {
	repo  PaymentRepository
	cache LedgerCache
	log   *logger.Logger

	mu    sync.Mutex
	users map[string]*cacheState
}

type cacheState struct {
	generation uint64
	stale      bool
}

// NewCachedPaymentRepository оборачивает журнал кешем
func NewCachedPaymentRepository(repo PaymentRepository, cache LedgerCache, log *logger.Logger) *CachedPaymentRepository {
	return &CachedPaymentRepository{
		repo:  repo,
		cache: cache,
		log:   log,
		users: make(map[string]*cacheState),
	}
}

// Create пишет в журнал и инвалидирует кеш пользователя.
// Если кеш недоступен до записи, запись не выполняется.
func (r *CachedPaymentRepository) Create(ctx context.Context, rec domain.PaymentRecord) (domain.PaymentRecord, error) {
	if err := r.invalidate(ctx, rec.UserID); err != nil {
		return domain.PaymentRecord{}, err
	}
	created, err := r.repo.Create(ctx, rec)
	if err != nil {
		return domain.PaymentRecord{}, err
	}
	if err := r.invalidate(ctx, created.UserID); err != nil {
		return domain.PaymentRecord{}, err
	}
	return created, nil
}

// GetByReference не кешируется
func (r *CachedPaymentRepository) GetByReference(ctx context.Context, reference string) (domain.PaymentRecord, error) {
	return r.repo.GetByReference(ctx, reference)
}

// LatestSuccessful сначала смотрит в кеш, потом в журнал
func (r *CachedPaymentRepository) LatestSuccessful(ctx context.Context, userID string) (domain.PaymentRecord, error) {
	generation, usable := r.begin(ctx, userID)
	if usable {
		cached, err := r.cache.GetLatest(ctx, userID)
		if err != nil {
			// продолжаем без кеша
			r.log.Warnw("Error getting latest payment from cache", "error", err, "userID", userID)
		}
		if cached != nil {
			r.log.Debugw("Latest payment found in cache", "userID", userID)
			return *cached, nil
		}
	}

	rec, err := r.repo.LatestSuccessful(ctx, userID)
	if err != nil {
		return domain.PaymentRecord{}, err
	}

	if usable {
		r.store(ctx, rec, generation)
	}
	return rec, nil
}

// ListByUser не кешируется
func (r *CachedPaymentRepository) ListByUser(ctx context.Context, userID string) ([]domain.PaymentRecord, error) {
	return r.repo.ListByUser(ctx, userID)
}

// UpdateStatus пишет в журнал и инвалидирует кеш пользователя.
// Ошибка сброса кеша возвращается вызывающему, строка в журнале при этом уже изменена.
func (r *CachedPaymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus, paidAt *time.Time) (domain.PaymentRecord, error) {
	rec, err := r.repo.UpdateStatus(ctx, id, status, paidAt)
	if err != nil {
		return domain.PaymentRecord{}, err
	}
	if err := r.invalidate(ctx, rec.UserID); err != nil {
		return domain.PaymentRecord{}, err
	}
	return rec, nil
}

// state вызывается под r.mu
func (r *CachedPaymentRepository) state(userID string) *cacheState {
	st, ok := r.users[userID]
	if !ok {
		st = &cacheState{}
		r.users[userID] = st
	}
	return st
}

// begin возвращает текущее поколение и можно ли пользоваться кешем
func (r *CachedPaymentRepository) begin(ctx context.Context, userID string) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.state(userID)
	if st.stale {
		if err := r.cache.Invalidate(ctx, userID); err != nil {
			r.log.Warnw("Latest payment cache is stale, reading ledger directly", "error", err, "userID", userID)
			return 0, false
		}
		st.stale = false
	}
	return st.generation, true
}

func (r *CachedPaymentRepository) store(ctx context.Context, rec domain.PaymentRecord, generation uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.state(rec.UserID)
	if st.stale || st.generation != generation {
		r.log.Debugw("Ledger changed during read, skipping cache set", "userID", rec.UserID)
		return
	}
	if err := r.cache.SetLatest(ctx, rec); err != nil {
		r.log.Warnw("Failed to cache latest payment", "error", err, "userID", rec.UserID)
	}
}

func (r *CachedPaymentRepository) invalidate(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.state(userID)
	st.generation++
	if err := r.cache.Invalidate(ctx, userID); err != nil {
		st.stale = true
		r.log.Errorw("Failed to invalidate latest payment cache", "error", err, "userID", userID)
		return domain.NewStoreError("invalidate latest payment cache", err)
	}
	st.stale = false
	return nil
}
