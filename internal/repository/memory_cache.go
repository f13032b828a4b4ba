package repository

import (
	"context"
	"time"

	"github.com/Dhoini/newsletter-billing/internal/domain"
	"github.com/patrickmn/go-cache"
)

// MemoryCacheRepository реализует LedgerCache в памяти процесса.
// Используется, когда Redis не настроен.
type MemoryCacheRepository struct {
	cache *cache.Cache
}

// NewMemoryCacheRepository создает кеш с заданным TTL
func NewMemoryCacheRepository(ttl time.Duration) *MemoryCacheRepository {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &MemoryCacheRepository{cache: cache.New(ttl, 2*ttl)}
}

// GetLatest читает запись из кеша
func (m *MemoryCacheRepository) GetLatest(_ context.Context, userID string) (*domain.PaymentRecord, error) {
	v, ok := m.cache.Get(latestPaymentKeyPrefix + userID)
	if !ok {
		return nil, nil
	}
	rec := v.(domain.PaymentRecord)
	return &rec, nil
}

// SetLatest кладет запись в кеш
func (m *MemoryCacheRepository) SetLatest(_ context.Context, rec domain.PaymentRecord) error {
	m.cache.SetDefault(latestPaymentKeyPrefix+rec.UserID, rec)
	return nil
}

// Invalidate удаляет запись пользователя из кеша
func (m *MemoryCacheRepository) Invalidate(_ context.Context, userID string) error {
	m.cache.Delete(latestPaymentKeyPrefix + userID)
	return nil
}
