package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Dhoini/newsletter-billing/internal/catalog"
	"github.com/Dhoini/newsletter-billing/internal/domain"
	"github.com/Dhoini/newsletter-billing/internal/entitlement"
	"github.com/Dhoini/newsletter-billing/internal/metrics"
	"github.com/Dhoini/newsletter-billing/internal/repository"
	"github.com/Dhoini/newsletter-billing/pkg/logger"
	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPublisher мок для EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event domain.LedgerEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockLegacyReader мок для LegacySubscriptionReader
type MockLegacyReader struct {
	mock.Mock
}

func (m *MockLegacyReader) ActiveSubscription(ctx context.Context, userID string) (domain.LegacySubscription, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.LegacySubscription), args.Error(1)
}

type testEnv struct {
	svc      *SubscriptionService
	payments *repository.InMemoryPaymentRepository
	now      *time.Time
}

func (e *testEnv) setNow(t time.Time) { *e.now = t }

func setupService(t *testing.T, legacy LegacySubscriptionReader, publisher EventPublisher) *testEnv {
	t.Helper()

	now := time.Date(2024, time.January, 15, 12, 0, 0, 0, time.UTC)
	clock := &now
	plans := catalog.NewStatic()
	payments := repository.NewInMemoryPaymentRepository(logger.NewNop())

	svc := NewSubscriptionService(Dependencies{
		Payments:   payments,
		Plans:      plans,
		Calculator: entitlement.NewCalculator(plans, entitlement.WithClock(func() time.Time { return *clock })),
		Legacy:     legacy,
		Publisher:  publisher,
		Metrics:    metrics.NewPaymentMetrics(prometheus.NewRegistry(), logger.NewNop()),
	}, logger.NewNop(), WithPublishBackOff(func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
	}))

	return &testEnv{svc: svc, payments: payments, now: clock}
}

func TestGetStatus_NoPayments(t *testing.T) {
	env := setupService(t, nil, nil)
	ctx := context.Background()

	first, err := env.svc.GetStatus(ctx, "user-1")
	require.NoError(t, err)
	second, err := env.svc.GetStatus(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, domain.InactiveStatus(), first)
	assert.Equal(t, first, second)

	history, err := env.svc.History(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRecordPayment_MonthlyLifecycle(t *testing.T) {
	env := setupService(t, nil, nil)
	ctx := context.Background()

	ref, err := env.svc.RecordPayment(ctx, domain.PaymentInput{UserID: "user-1", Email: "a@example.com", PlanType: "month"})
	require.NoError(t, err)
	assert.Regexp(t, `^smoothpay_\d+_[0-9a-f]{8}$`, ref)

	rec, err := env.payments.GetByReference(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSuccess, rec.Status)
	assert.Equal(t, 50.0, rec.Amount)
	assert.Equal(t, "GHS", rec.Currency)
	assert.Regexp(t, `^txn_\d+_[0-9a-f]{8}$`, rec.TransactionID)

	env.setNow(time.Date(2024, time.February, 10, 0, 0, 0, 0, time.UTC))
	status, err := env.svc.GetStatus(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, status.Active)
	assert.Equal(t, domain.SubscriptionActive, status.Status)
	require.NotNil(t, status.ExpiresAt)
	assert.Equal(t, time.Date(2024, time.February, 15, 12, 0, 0, 0, time.UTC), *status.ExpiresAt)
	require.NotNil(t, status.PlanType)
	assert.Equal(t, "month", *status.PlanType)

	again, err := env.svc.GetStatus(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, status, again)

	env.setNow(time.Date(2024, time.February, 20, 0, 0, 0, 0, time.UTC))
	status, err = env.svc.GetStatus(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, status.Active)
	assert.Equal(t, domain.SubscriptionExpired, status.Status)
}

func TestRecordPayment_InvalidPlan(t *testing.T) {
	env := setupService(t, nil, nil)
	ctx := context.Background()

	_, err := env.svc.RecordPayment(ctx, domain.PaymentInput{UserID: "user-1", PlanType: "platinum"})
	assert.ErrorIs(t, err, domain.ErrInvalidPlan)

	history, err := env.svc.History(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRecordPayment_LegacyAliasStoredCanonical(t *testing.T) {
	env := setupService(t, nil, nil)
	ctx := context.Background()

	ref, err := env.svc.RecordPayment(ctx, domain.PaymentInput{UserID: "user-1", PlanType: "yearly"})
	require.NoError(t, err)

	rec, err := env.payments.GetByReference(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "year", rec.PlanType)

	status, err := env.svc.GetStatus(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC), *status.ExpiresAt)
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("no successful payment", func(t *testing.T) {
		env := setupService(t, nil, nil)
		assert.ErrorIs(t, env.svc.Cancel(ctx, "user-1"), domain.ErrNotFound)
	})

	t.Run("falls back to previous success then inactive", func(t *testing.T) {
		env := setupService(t, nil, nil)

		_, err := env.svc.RecordPayment(ctx, domain.PaymentInput{UserID: "user-1", PlanType: "year"})
		require.NoError(t, err)
		env.setNow(env.now.Add(time.Hour))
		latestRef, err := env.svc.RecordPayment(ctx, domain.PaymentInput{UserID: "user-1", PlanType: "month"})
		require.NoError(t, err)

		require.NoError(t, env.svc.Cancel(ctx, "user-1"))

		canceled, err := env.payments.GetByReference(ctx, latestRef)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusCanceled, canceled.Status)

		status, err := env.svc.GetStatus(ctx, "user-1")
		require.NoError(t, err)
		require.NotNil(t, status.PlanType)
		assert.Equal(t, "year", *status.PlanType)
		assert.True(t, status.Active)

		require.NoError(t, env.svc.Cancel(ctx, "user-1"))
		status, err = env.svc.GetStatus(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, domain.InactiveStatus(), status)

		assert.ErrorIs(t, env.svc.Cancel(ctx, "user-1"), domain.ErrNotFound)
	})
}

func TestInitiatePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("free plan is recorded immediately", func(t *testing.T) {
		env := setupService(t, nil, nil)

		rec, err := env.svc.InitiatePayment(ctx, domain.PaymentInput{UserID: "user-1", PlanType: "free"})
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusSuccess, rec.Status)

		active, err := env.svc.CheckSubscriptionStatus(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, active)
	})

	t.Run("paid plan stays pending", func(t *testing.T) {
		env := setupService(t, nil, nil)

		rec, err := env.svc.InitiatePayment(ctx, domain.PaymentInput{UserID: "user-1", PlanType: "basic"})
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusPending, rec.Status)
		assert.Equal(t, 25.0, rec.Amount)

		status, err := env.svc.GetStatus(ctx, "user-1")
		require.NoError(t, err)
		assert.False(t, status.Active)
		assert.Equal(t, domain.SubscriptionInactive, status.Status)
	})

	t.Run("unknown plan writes nothing", func(t *testing.T) {
		env := setupService(t, nil, nil)

		_, err := env.svc.InitiatePayment(ctx, domain.PaymentInput{UserID: "user-1", PlanType: "gold"})
		assert.ErrorIs(t, err, domain.ErrInvalidPlan)

		history, err := env.svc.History(ctx, "user-1")
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

func TestConfirmPayment(t *testing.T) {
	ctx := context.Background()

	confirm := func(ref string, status domain.PaymentStatus, amount float64) domain.Confirmation {
		return domain.Confirmation{
			Provider:  "paystack",
			Reference: ref,
			Status:    status,
			Amount:    amount,
			Currency:  "GHS",
			PaidAt:    time.Date(2024, time.January, 15, 13, 0, 0, 0, time.UTC),
		}
	}

	t.Run("pending becomes success and repeat is a no-op", func(t *testing.T) {
		env := setupService(t, nil, nil)
		pending, err := env.svc.InitiatePayment(ctx, domain.PaymentInput{UserID: "user-1", PlanType: "month"})
		require.NoError(t, err)

		require.NoError(t, env.svc.ConfirmPayment(ctx, confirm(pending.Reference, domain.PaymentStatusSuccess, 50)))
		rec, err := env.payments.GetByReference(ctx, pending.Reference)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusSuccess, rec.Status)
		assert.Equal(t, time.Date(2024, time.January, 15, 13, 0, 0, 0, time.UTC), rec.PaidAt)

		require.NoError(t, env.svc.ConfirmPayment(ctx, confirm(pending.Reference, domain.PaymentStatusFailed, 50)))
		again, err := env.payments.GetByReference(ctx, pending.Reference)
		require.NoError(t, err)
		assert.Equal(t, rec, again)

		status, err := env.svc.GetStatus(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, status.Active)
	})

	t.Run("amount mismatch fails the payment", func(t *testing.T) {
		env := setupService(t, nil, nil)
		pending, err := env.svc.InitiatePayment(ctx, domain.PaymentInput{UserID: "user-1", PlanType: "year"})
		require.NoError(t, err)

		require.NoError(t, env.svc.ConfirmPayment(ctx, confirm(pending.Reference, domain.PaymentStatusSuccess, 1)))
		rec, err := env.payments.GetByReference(ctx, pending.Reference)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusFailed, rec.Status)

		active, err := env.svc.CheckSubscriptionStatus(ctx, "user-1")
		require.NoError(t, err)
		assert.False(t, active)
	})

	t.Run("unknown reference with metadata is recorded", func(t *testing.T) {
		env := setupService(t, nil, nil)
		c := confirm("ps_ref_1", domain.PaymentStatusSuccess, 50)
		c.UserID = "user-2"
		c.PlanType = "monthly"

		require.NoError(t, env.svc.ConfirmPayment(ctx, c))
		require.NoError(t, env.svc.ConfirmPayment(ctx, c))

		history, err := env.svc.History(ctx, "user-2")
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, "ps_ref_1", history[0].Reference)
		assert.Equal(t, "paystack", history[0].Provider)
		assert.Equal(t, "month", history[0].PlanType)
	})

	t.Run("unknown reference without metadata", func(t *testing.T) {
		env := setupService(t, nil, nil)
		err := env.svc.ConfirmPayment(ctx, confirm("missing", domain.PaymentStatusSuccess, 50))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestHistory_NewestFirst(t *testing.T) {
	env := setupService(t, nil, nil)
	ctx := context.Background()

	_, err := env.svc.RecordPayment(ctx, domain.PaymentInput{UserID: "user-1", PlanType: "basic"})
	require.NoError(t, err)
	env.setNow(env.now.Add(24 * time.Hour))
	_, err = env.svc.RecordPayment(ctx, domain.PaymentInput{UserID: "user-1", PlanType: "year"})
	require.NoError(t, err)

	history, err := env.svc.History(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "year", history[0].PlanType)
	assert.Equal(t, "basic", history[1].PlanType)
}

func TestCurrentPlan(t *testing.T) {
	env := setupService(t, nil, nil)
	ctx := context.Background()

	_, ok, err := env.svc.CurrentPlan(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = env.svc.RecordPayment(ctx, domain.PaymentInput{UserID: "user-1", PlanType: "free"})
	require.NoError(t, err)

	plan, ok, err := env.svc.CurrentPlan(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.PlanFree, plan.ID)
	assert.Equal(t, 2, plan.CategoryLimit())
}

func TestGuard(t *testing.T) {
	ctx := context.Background()

	t.Run("active legacy row wins", func(t *testing.T) {
		legacy := new(MockLegacyReader)
		env := setupService(t, legacy, nil)
		legacy.On("ActiveSubscription", mock.Anything, "user-1").Return(domain.LegacySubscription{
			UserID:           "user-1",
			Status:           "active",
			CurrentPeriodEnd: env.now.Add(48 * time.Hour),
		}, nil)

		require.NoError(t, env.svc.RequireActiveSubscription(ctx, "user-1"))
		legacy.AssertExpectations(t)
	})

	t.Run("expired legacy row falls back to ledger", func(t *testing.T) {
		legacy := new(MockLegacyReader)
		env := setupService(t, legacy, nil)
		legacy.On("ActiveSubscription", mock.Anything, "user-1").Return(domain.LegacySubscription{
			UserID:           "user-1",
			Status:           "active",
			CurrentPeriodEnd: env.now.Add(-time.Hour),
		}, nil)

		assert.ErrorIs(t, env.svc.RequireActiveSubscription(ctx, "user-1"), domain.ErrSubscriptionRequired)

		_, err := env.svc.RecordPayment(ctx, domain.PaymentInput{UserID: "user-1", PlanType: "month"})
		require.NoError(t, err)
		assert.NoError(t, env.svc.RequireActiveSubscription(ctx, "user-1"))
	})

	t.Run("no legacy row and no payments", func(t *testing.T) {
		legacy := new(MockLegacyReader)
		env := setupService(t, legacy, nil)
		legacy.On("ActiveSubscription", mock.Anything, "user-1").
			Return(domain.LegacySubscription{}, domain.NewNotFoundError("subscription", "user-1"))

		active, err := env.svc.CheckSubscriptionStatus(ctx, "user-1")
		require.NoError(t, err)
		assert.False(t, active)
	})

	t.Run("legacy store failure is returned", func(t *testing.T) {
		legacy := new(MockLegacyReader)
		env := setupService(t, legacy, nil)
		legacy.On("ActiveSubscription", mock.Anything, "user-1").
			Return(domain.LegacySubscription{}, domain.NewStoreError("select subscription", errors.New("conn reset")))

		err := env.svc.RequireActiveSubscription(ctx, "user-1")
		assert.ErrorIs(t, err, domain.ErrStoreFailure)
	})

	t.Run("monthly alias row in ledger", func(t *testing.T) {
		env := setupService(t, nil, nil)
		_, err := env.payments.Create(ctx, domain.PaymentRecord{
			UserID:    "user-1",
			Reference: "legacy_ref",
			PlanType:  "monthly",
			Status:    domain.PaymentStatusSuccess,
			Amount:    50,
			Currency:  "GHS",
			PaidAt:    env.now.Add(-24 * time.Hour),
		})
		require.NoError(t, err)

		active, err := env.svc.CheckSubscriptionStatus(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, active)
	})
}

func TestPublish(t *testing.T) {
	ctx := context.Background()

	t.Run("events are published for ledger writes", func(t *testing.T) {
		publisher := new(MockPublisher)
		env := setupService(t, nil, publisher)
		publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e domain.LedgerEvent) bool {
			return e.Type == domain.EventPaymentRecorded && e.UserID == "user-1"
		})).Return(nil).Once()
		publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e domain.LedgerEvent) bool {
			return e.Type == domain.EventSubscriptionCancelled && e.Status == domain.PaymentStatusCanceled
		})).Return(nil).Once()

		_, err := env.svc.RecordPayment(ctx, domain.PaymentInput{UserID: "user-1", PlanType: "month"})
		require.NoError(t, err)
		require.NoError(t, env.svc.Cancel(ctx, "user-1"))

		publisher.AssertExpectations(t)
	})

	t.Run("publish failure is retried and not surfaced", func(t *testing.T) {
		publisher := new(MockPublisher)
		env := setupService(t, nil, publisher)
		publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))

		ref, err := env.svc.RecordPayment(ctx, domain.PaymentInput{UserID: "user-1", PlanType: "month"})
		require.NoError(t, err)
		assert.NotEmpty(t, ref)

		publisher.AssertNumberOfCalls(t, "Publish", 3)
	})
}
