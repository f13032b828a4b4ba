package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Dhoini/newsletter-billing/internal/domain"
	"github.com/Dhoini/newsletter-billing/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, rec domain.PaymentRecord) (domain.PaymentRecord, error) {
	args := m.Called(ctx, rec)
	return args.Get(0).(domain.PaymentRecord), args.Error(1)
}

func (m *MockPaymentRepository) GetByReference(ctx context.Context, reference string) (domain.PaymentRecord, error) {
	args := m.Called(ctx, reference)
	return args.Get(0).(domain.PaymentRecord), args.Error(1)
}

func (m *MockPaymentRepository) LatestSuccessful(ctx context.Context, userID string) (domain.PaymentRecord, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.PaymentRecord), args.Error(1)
}

func (m *MockPaymentRepository) ListByUser(ctx context.Context, userID string) ([]domain.PaymentRecord, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.PaymentRecord), args.Error(1)
}

func (m *MockPaymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus, paidAt *time.Time) (domain.PaymentRecord, error) {
	args := m.Called(ctx, id, status, paidAt)
	return args.Get(0).(domain.PaymentRecord), args.Error(1)
}

// flakyCache кеш, у которого можно сломать Invalidate
type flakyCache struct {
	*MemoryCacheRepository
	down atomic.Bool
}

func (f *flakyCache) Invalidate(ctx context.Context, userID string) error {
	if f.down.Load() {
		return errors.New("redis down")
	}
	return f.MemoryCacheRepository.Invalidate(ctx, userID)
}

// pausingRepository останавливает первое чтение LatestSuccessful после того,
// как строка уже прочитана из журнала
type pausingRepository struct {
	*InMemoryPaymentRepository
	paused atomic.Bool
	read   chan struct{}
	resume chan struct{}
}

func (p *pausingRepository) LatestSuccessful(ctx context.Context, userID string) (domain.PaymentRecord, error) {
	rec, err := p.InMemoryPaymentRepository.LatestSuccessful(ctx, userID)
	if p.paused.CompareAndSwap(true, false) {
		close(p.read)
		<-p.resume
	}
	return rec, err
}

func TestCachedPaymentRepository(t *testing.T) {
	ctx := context.Background()
	paidAt := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)

	t.Run("second read is served from cache", func(t *testing.T) {
		inner := new(MockPaymentRepository)
		repo := NewCachedPaymentRepository(inner, NewMemoryCacheRepository(time.Minute), logger.NewNop())
		rec := successRecord("u1", "r1", "month", paidAt)
		inner.On("LatestSuccessful", ctx, "u1").Return(rec, nil).Once()

		first, err := repo.LatestSuccessful(ctx, "u1")
		require.NoError(t, err)
		second, err := repo.LatestSuccessful(ctx, "u1")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		inner.AssertNumberOfCalls(t, "LatestSuccessful", 1)
	})

	t.Run("not found is not cached", func(t *testing.T) {
		inner := new(MockPaymentRepository)
		repo := NewCachedPaymentRepository(inner, NewMemoryCacheRepository(time.Minute), logger.NewNop())
		inner.On("LatestSuccessful", ctx, "u1").Return(domain.PaymentRecord{}, domain.ErrNotFound).Twice()

		_, err := repo.LatestSuccessful(ctx, "u1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = repo.LatestSuccessful(ctx, "u1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		inner.AssertExpectations(t)
	})

	t.Run("status update invalidates cached row", func(t *testing.T) {
		base := NewInMemoryPaymentRepository(logger.NewNop())
		repo := NewCachedPaymentRepository(base, NewMemoryCacheRepository(time.Minute), logger.NewNop())

		older, err := repo.Create(ctx, successRecord("u1", "r1", "month", paidAt))
		require.NoError(t, err)
		newer, err := repo.Create(ctx, successRecord("u1", "r2", "month", paidAt.Add(time.Hour)))
		require.NoError(t, err)

		cached, err := repo.LatestSuccessful(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, newer.ID, cached.ID)

		_, err = repo.UpdateStatus(ctx, newer.ID, domain.PaymentStatusCanceled, nil)
		require.NoError(t, err)

		after, err := repo.LatestSuccessful(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, older.ID, after.ID)
	})

	t.Run("create invalidates cached row", func(t *testing.T) {
		base := NewInMemoryPaymentRepository(logger.NewNop())
		repo := NewCachedPaymentRepository(base, NewMemoryCacheRepository(time.Minute), logger.NewNop())

		_, err := repo.Create(ctx, successRecord("u1", "r1", "month", paidAt))
		require.NoError(t, err)
		_, err = repo.LatestSuccessful(ctx, "u1")
		require.NoError(t, err)

		newer, err := repo.Create(ctx, successRecord("u1", "r2", "year", paidAt.Add(time.Hour)))
		require.NoError(t, err)

		after, err := repo.LatestSuccessful(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, newer.ID, after.ID)
	})
}

func TestCachedPaymentRepositoryConsistency(t *testing.T) {
	ctx := context.Background()
	paidAt := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)

	t.Run("failed invalidation surfaces and bypasses cache", func(t *testing.T) {
		cache := &flakyCache{MemoryCacheRepository: NewMemoryCacheRepository(time.Minute)}
		repo := NewCachedPaymentRepository(NewInMemoryPaymentRepository(logger.NewNop()), cache, logger.NewNop())

		created, err := repo.Create(ctx, successRecord("u1", "r1", "month", paidAt))
		require.NoError(t, err)
		_, err = repo.LatestSuccessful(ctx, "u1")
		require.NoError(t, err)

		cache.down.Store(true)
		_, err = repo.UpdateStatus(ctx, created.ID, domain.PaymentStatusCanceled, nil)
		assert.ErrorIs(t, err, domain.ErrStoreFailure)

		_, err = repo.LatestSuccessful(ctx, "u1")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		cache.down.Store(false)
		_, err = repo.LatestSuccessful(ctx, "u1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		cached, err := cache.GetLatest(ctx, "u1")
		require.NoError(t, err)
		assert.Nil(t, cached)
	})

	t.Run("create is refused while cache cannot be invalidated", func(t *testing.T) {
		cache := &flakyCache{MemoryCacheRepository: NewMemoryCacheRepository(time.Minute)}
		base := NewInMemoryPaymentRepository(logger.NewNop())
		repo := NewCachedPaymentRepository(base, cache, logger.NewNop())
		cache.down.Store(true)

		_, err := repo.Create(ctx, successRecord("u1", "r1", "month", paidAt))
		assert.ErrorIs(t, err, domain.ErrStoreFailure)

		_, err = base.GetByReference(ctx, "r1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("read racing a cancel does not cache the canceled row", func(t *testing.T) {
		base := &pausingRepository{
			InMemoryPaymentRepository: NewInMemoryPaymentRepository(logger.NewNop()),
			read:                      make(chan struct{}),
			resume:                    make(chan struct{}),
		}
		repo := NewCachedPaymentRepository(base, NewMemoryCacheRepository(time.Minute), logger.NewNop())

		created, err := repo.Create(ctx, successRecord("u1", "r1", "month", paidAt))
		require.NoError(t, err)

		base.paused.Store(true)
		done := make(chan error, 1)
		go func() {
			_, err := repo.LatestSuccessful(ctx, "u1")
			done <- err
		}()

		<-base.read
		_, err = repo.UpdateStatus(ctx, created.ID, domain.PaymentStatusCanceled, nil)
		require.NoError(t, err)
		close(base.resume)
		require.NoError(t, <-done)

		_, err = repo.LatestSuccessful(ctx, "u1")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}
