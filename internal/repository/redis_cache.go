package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/newsletter-billing/internal/domain"
	"github.com/Dhoini/newsletter-billing/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	// ключ последней успешной записи журнала пользователя
	latestPaymentKeyPrefix = "latest_payment:"

	defaultCacheTTL = 15 * time.Minute
)

// LedgerCache кеш последней успешной записи журнала по пользователю.
// Хранится сама запись, а не вычисленный статус: статус всегда пересчитывается на чтении.
type LedgerCache interface {
	// GetLatest возвращает nil, nil при промахе
	GetLatest(ctx context.Context, userID string) (*domain.PaymentRecord, error)
	SetLatest(ctx context.Context, rec domain.PaymentRecord) error
	Invalidate(ctx context.Context, userID string) error
}

// RedisCacheRepository реализует LedgerCache на Redis
type RedisCacheRepository struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisCacheRepository подключается к Redis и проверяет соединение
func NewRedisCacheRepository(ctx context.Context, addr, password string, db int, ttl time.Duration, log *logger.Logger) (*RedisCacheRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err, "addr", addr)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	log.Infow("Connected to Redis successfully", "addr", addr)
	return &RedisCacheRepository{client: client, ttl: ttl, log: log}, nil
}

// Close закрывает соединение с Redis
func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}

// Ping проверяет доступность Redis
func (r *RedisCacheRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// GetLatest читает запись из кеша
func (r *RedisCacheRepository) GetLatest(ctx context.Context, userID string) (*domain.PaymentRecord, error) {
	data, err := r.client.Get(ctx, latestPaymentKeyPrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest payment from cache: %w", err)
	}

	var rec domain.PaymentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached payment: %w", err)
	}
	return &rec, nil
}

// SetLatest кладет запись в кеш
func (r *RedisCacheRepository) SetLatest(ctx context.Context, rec domain.PaymentRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal payment: %w", err)
	}
	if err := r.client.Set(ctx, latestPaymentKeyPrefix+rec.UserID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache latest payment: %w", err)
	}
	return nil
}

// Invalidate удаляет запись пользователя из кеша
func (r *RedisCacheRepository) Invalidate(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, latestPaymentKeyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("failed to invalidate latest payment: %w", err)
	}
	return nil
}
