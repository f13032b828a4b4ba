// Package app собирает зависимости сервиса и управляет его жизненным циклом.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Dhoini/newsletter-billing/config"
	"github.com/Dhoini/newsletter-billing/internal/api/rest"
	"github.com/Dhoini/newsletter-billing/internal/api/rest/handlers"
	"github.com/Dhoini/newsletter-billing/internal/catalog"
	"github.com/Dhoini/newsletter-billing/internal/db"
	"github.com/Dhoini/newsletter-billing/internal/entitlement"
	"github.com/Dhoini/newsletter-billing/internal/integration/paystack"
	"github.com/Dhoini/newsletter-billing/internal/integration/stripe"
	"github.com/Dhoini/newsletter-billing/internal/kafka"
	"github.com/Dhoini/newsletter-billing/internal/metrics"
	"github.com/Dhoini/newsletter-billing/internal/middleware"
	"github.com/Dhoini/newsletter-billing/internal/news"
	"github.com/Dhoini/newsletter-billing/internal/repository"
	"github.com/Dhoini/newsletter-billing/internal/repository/postgres"
	"github.com/Dhoini/newsletter-billing/internal/service"
	"github.com/Dhoini/newsletter-billing/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

const systemMetricsInterval = 15 * time.Second

// App представляет собой контейнер для всех компонентов приложения
type App struct {
	cfg           *config.Config
	log           *logger.Logger
	server        *rest.Server
	systemMetrics metrics.SystemMetrics
	closers       []func() error
}

// New создает и инициализирует приложение. При ошибке уже открытые ресурсы закрываются.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (_ *App, err error) {
	a := &App{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	registry := prometheus.NewRegistry()
	paymentMetrics := metrics.NewPaymentMetrics(registry, log)
	a.systemMetrics = metrics.NewSystemMetrics(registry, log)

	// миграции и старая таблица subscriptions через database/sql
	dbClient, err := db.NewDBClient(cfg.Database.GetDSN(), log.Named("db"))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, dbClient.Close)

	if cfg.Database.AutoMigrate {
		if err := dbClient.Migrate(ctx); err != nil {
			return nil, err
		}
	}

	pool, err := postgres.NewConnection(ctx, cfg.Database.GetDSN(), postgres.DefaultPoolOptions(), log.Named("postgres"))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { pool.Close(); return nil })
	readiness := map[string]handlers.Pinger{"postgres": pool}

	var ledgerCache repository.LedgerCache
	if cfg.Redis.Addr != "" {
		redisCache, err := repository.NewRedisCacheRepository(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL, log.Named("redis"))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, redisCache.Close)
		readiness["redis"] = redisCache
		ledgerCache = redisCache
	} else {
		log.Infow("Redis address is empty, using in-process ledger cache")
		ledgerCache = repository.NewMemoryCacheRepository(cfg.Redis.TTL)
	}

	payments := repository.NewCachedPaymentRepository(
		repository.NewPostgresPaymentRepository(pool, log.Named("payments")),
		ledgerCache,
		log.Named("ledger-cache"),
	)

	publisher, err := newPublisher(ctx, cfg.Kafka, log.Named("kafka"))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, publisher.Close)

	plans := catalog.NewStatic()
	subscriptions := service.NewSubscriptionService(service.Dependencies{
		Payments:   payments,
		Plans:      plans,
		Calculator: entitlement.NewCalculator(plans),
		Legacy:     dbClient,
		Publisher:  publisher,
		Metrics:    paymentMetrics,
		Provider:   cfg.Payments.Provider,
	}, log)

	articles := news.NewClient(news.Config{
		BaseURL:  cfg.News.BaseURL,
		APIKey:   cfg.News.APIKey,
		Timeout:  cfg.News.Timeout,
		CacheTTL: cfg.News.CacheTTL,
	}, paymentMetrics, log)

	router := rest.SetupRouter(rest.RouterDeps{
		Log:           log,
		Registry:      registry,
		Subscriptions: subscriptions,
		Articles:      articles,
		Verifiers:     verifiers(cfg.Payments, log),
		Auth:          middleware.NewJWTMiddleware(log.Named("auth"), &middleware.DefaultTokenValidator{Secret: []byte(cfg.Auth.JWTSecret)}),
		RateLimiter:   middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, log.Named("ratelimit")),
		Metrics:       paymentMetrics,
		Readiness:     readiness,
	})
	a.server = rest.NewServer(router, cfg.Server, log)

	return a, nil
}

func newPublisher(ctx context.Context, cfg config.KafkaConfig, log *logger.Logger) (kafka.EventPublisher, error) {
	if len(cfg.Brokers) == 0 {
		log.Infow("Kafka brokers are not configured, ledger events are not published")
		return kafka.NopPublisher{}, nil
	}

	if cfg.EnsureTopics {
		if err := kafka.EnsureKafkaTopics(ctx, cfg.Brokers, kafka.DefaultTopics(cfg.Topic), log); err != nil {
			return nil, err
		}
	}

	producer, err := kafka.Dial(kafka.NewConfig(cfg.Brokers, cfg.Topic), log)
	if err != nil {
		return nil, err
	}
	return producer, nil
}

// verifiers регистрирует вебхуки только тех провайдеров, для которых задан секрет
func verifiers(cfg config.PaymentsConfig, log *logger.Logger) map[string]handlers.Verifier {
	out := make(map[string]handlers.Verifier)
	if cfg.PaystackSecret != "" {
		out[paystack.Provider] = paystack.NewVerifier(cfg.PaystackSecret)
	}
	if cfg.StripeWebhookSecret != "" {
		out[stripe.Provider] = stripe.NewVerifier(cfg.StripeWebhookSecret)
	}
	if len(out) == 0 {
		log.Warnw("No payment webhook secrets configured, paid plans cannot be confirmed")
	}
	return out
}

// Run запускает HTTP сервер и блокируется до отмены ctx, затем выполняет graceful shutdown.
func (a *App) Run(ctx context.Context) error {
	a.systemMetrics.StartRecording(systemMetricsInterval)
	defer a.systemMetrics.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(a.server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Close освобождает ресурсы в обратном порядке
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warnw("Failed to close resource", "error", err)
		}
	}
	a.closers = nil
}
