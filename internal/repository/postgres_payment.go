package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dhoini/newsletter-billing/internal/domain"
	"github.com/Dhoini/newsletter-billing/pkg/logger"
	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	paymentsTable = "payments"

	pgUniqueViolation = "23505"
)

var paymentColumns = []string{
	"id", "user_id", "email", "reference", "amount", "currency", "plan_type",
	"status", "provider", "transaction_id", "paid_at", "created_at", "updated_at",
}

// DBTX общий интерфейс pgxpool.Pool, pgx.Tx и pgxmock
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresPaymentRepository журнал платежей в PostgreSQL
type PostgresPaymentRepository struct {
	db   DBTX
	psql squirrel.StatementBuilderType
	log  *logger.Logger
	now  func() time.Time
}

// NewPostgresPaymentRepository создает журнал поверх пула соединений
func NewPostgresPaymentRepository(db DBTX, log *logger.Logger) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{
		db:   db,
		psql: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		log:  log,
		now:  time.Now,
	}
}

// Create добавляет запись в журнал
func (r *PostgresPaymentRepository) Create(ctx context.Context, rec domain.PaymentRecord) (domain.PaymentRecord, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	now := r.now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.PaidAt = rec.PaidAt.UTC()

	query, args, err := r.psql.Insert(paymentsTable).
		Columns(paymentColumns...).
		Values(
			rec.ID, rec.UserID, rec.Email, rec.Reference, rec.Amount, rec.Currency, rec.PlanType,
			string(rec.Status), rec.Provider, rec.TransactionID, rec.PaidAt, rec.CreatedAt, rec.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return domain.PaymentRecord{}, fmt.Errorf("build insert payment: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			r.log.Warnw("Duplicate payment reference", "reference", rec.Reference)
			return domain.PaymentRecord{}, domain.NewDuplicateError("payment", "reference", rec.Reference)
		}
		r.log.Errorw("Failed to insert payment", "error", err, "reference", rec.Reference, "userID", rec.UserID)
		return domain.PaymentRecord{}, domain.NewStoreError("insert payment", err)
	}

	r.log.Debugw("Payment record inserted", "paymentID", rec.ID, "reference", rec.Reference, "status", rec.Status)
	return rec, nil
}

// GetByReference возвращает запись по reference
func (r *PostgresPaymentRepository) GetByReference(ctx context.Context, reference string) (domain.PaymentRecord, error) {
	query, args, err := r.psql.Select(paymentColumns...).
		From(paymentsTable).
		Where("reference = ?", reference).
		ToSql()
	if err != nil {
		return domain.PaymentRecord{}, fmt.Errorf("build select payment: %w", err)
	}

	rec, err := scanPayment(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PaymentRecord{}, domain.NewNotFoundError("payment", reference)
		}
		r.log.Errorw("Failed to get payment by reference", "error", err, "reference", reference)
		return domain.PaymentRecord{}, domain.NewStoreError("get payment", err)
	}
	return rec, nil
}

// LatestSuccessful возвращает последнюю успешную запись пользователя
func (r *PostgresPaymentRepository) LatestSuccessful(ctx context.Context, userID string) (domain.PaymentRecord, error) {
	query, args, err := r.psql.Select(paymentColumns...).
		From(paymentsTable).
		Where("user_id = ?", userID).
		Where("status = ?", string(domain.PaymentStatusSuccess)).
		OrderBy("paid_at DESC", "created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return domain.PaymentRecord{}, fmt.Errorf("build select latest payment: %w", err)
	}

	rec, err := scanPayment(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PaymentRecord{}, domain.NewNotFoundError("successful payment for user", userID)
		}
		r.log.Errorw("Failed to get latest successful payment", "error", err, "userID", userID)
		return domain.PaymentRecord{}, domain.NewStoreError("get latest payment", err)
	}
	return rec, nil
}

// ListByUser возвращает все записи пользователя, новые первыми
func (r *PostgresPaymentRepository) ListByUser(ctx context.Context, userID string) ([]domain.PaymentRecord, error) {
	query, args, err := r.psql.Select(paymentColumns...).
		From(paymentsTable).
		Where("user_id = ?", userID).
		OrderBy("paid_at DESC", "created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list payments: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Errorw("Failed to list payments", "error", err, "userID", userID)
		return nil, domain.NewStoreError("list payments", err)
	}
	defer rows.Close()

	out := make([]domain.PaymentRecord, 0)
	for rows.Next() {
		rec, err := scanPayment(rows)
		if err != nil {
			return nil, domain.NewStoreError("scan payment", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStoreError("iterate payments", err)
	}
	return out, nil
}

// UpdateStatus меняет статус записи и возвращает ее новое состояние
func (r *PostgresPaymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus, paidAt *time.Time) (domain.PaymentRecord, error) {
	builder := r.psql.Update(paymentsTable).
		Set("status", string(status)).
		Set("updated_at", r.now().UTC())
	if paidAt != nil {
		builder = builder.Set("paid_at", paidAt.UTC())
	}

	query, args, err := builder.
		Where("id = ?", id).
		Suffix("RETURNING " + strings.Join(paymentColumns, ", ")).
		ToSql()
	if err != nil {
		return domain.PaymentRecord{}, fmt.Errorf("build update payment: %w", err)
	}

	rec, err := scanPayment(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PaymentRecord{}, domain.NewNotFoundError("payment", id.String())
		}
		r.log.Errorw("Failed to update payment status", "error", err, "paymentID", id, "status", status)
		return domain.PaymentRecord{}, domain.NewStoreError("update payment", err)
	}

	r.log.Debugw("Payment status updated", "paymentID", id, "status", status)
	return rec, nil
}

func scanPayment(row pgx.Row) (domain.PaymentRecord, error) {
	var (
		rec    domain.PaymentRecord
		status string
	)
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.Email, &rec.Reference, &rec.Amount, &rec.Currency, &rec.PlanType,
		&status, &rec.Provider, &rec.TransactionID, &rec.PaidAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return domain.PaymentRecord{}, err
	}
	rec.Status = domain.PaymentStatus(status)
	return rec, nil
}
