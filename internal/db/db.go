package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/Dhoini/newsletter-billing/internal/domain"
	"github.com/Dhoini/newsletter-billing/pkg/logger"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// DBClient клиент database/sql для миграций и чтения старой таблицы subscriptions.
type DBClient struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewDBClient подключается к базе через драйвер pgx/stdlib.
func NewDBClient(dsn string, log *logger.Logger) (*DBClient, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		log.Errorw("Failed to connect to database", "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &DBClient{db: db, log: log}, nil
}

// NewDBClientFromDB оборачивает уже открытое соединение.
func NewDBClientFromDB(db *sqlx.DB, log *logger.Logger) *DBClient {
	return &DBClient{db: db, log: log}
}

// Close закрывает соединение с базой данных.
func (dc *DBClient) Close() error {
	if err := dc.db.Close(); err != nil {
		dc.log.Errorw("Failed to close database connection", "error", err)
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}

// Migrate applies embedded goose migrations.
func (dc *DBClient) Migrate(ctx context.Context) error {
	goose.SetBaseFS(embedMigrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, dc.db.DB, "migrations"); err != nil {
		dc.log.Errorw("Failed to apply migrations", "error", err)
		return fmt.Errorf("apply migrations: %w", err)
	}
	dc.log.Infow("Database migrations applied")
	return nil
}

const activeSubscriptionQuery = `
        SELECT user_id, status, plan_type, current_period_end
        FROM subscriptions
        WHERE user_id = $1 AND status = 'active'
        ORDER BY current_period_end DESC
        LIMIT 1
    `

// ActiveSubscription returns the user's legacy row with status 'active' and the
// latest period end. The caller decides whether the period is still running.
func (dc *DBClient) ActiveSubscription(ctx context.Context, userID string) (domain.LegacySubscription, error) {
	var sub domain.LegacySubscription
	err := dc.db.QueryRowxContext(ctx, activeSubscriptionQuery, userID).StructScan(&sub)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.LegacySubscription{}, domain.NewNotFoundError("legacy subscription for user", userID)
		}
		dc.log.Errorw("Failed to get legacy subscription", "error", err, "userID", userID)
		return domain.LegacySubscription{}, domain.NewStoreError("get legacy subscription", err)
	}
	dc.log.Debugw("Legacy subscription retrieved", "userID", userID, "periodEnd", sub.CurrentPeriodEnd)
	return sub, nil
}
