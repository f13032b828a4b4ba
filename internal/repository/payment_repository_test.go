package repository

import (
	"context"
	"testing"
	"time"

	"github.com/Dhoini/newsletter-billing/internal/domain"
	"github.com/Dhoini/newsletter-billing/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func successRecord(userID, ref, plan string, paidAt time.Time) domain.PaymentRecord {
	return domain.PaymentRecord{
		UserID:    userID,
		Reference: ref,
		PlanType:  plan,
		Status:    domain.PaymentStatusSuccess,
		Amount:    50,
		Currency:  "GHS",
		Provider:  "smoothpay",
		PaidAt:    paidAt,
	}
}

func TestInMemoryPaymentRepository(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)

	t.Run("latest successful ignores other statuses and users", func(t *testing.T) {
		repo := NewInMemoryPaymentRepository(logger.NewNop())

		_, err := repo.Create(ctx, successRecord("u1", "r1", "month", base))
		require.NoError(t, err)
		newest, err := repo.Create(ctx, successRecord("u1", "r2", "year", base.Add(time.Hour)))
		require.NoError(t, err)

		failed := successRecord("u1", "r3", "month", base.Add(2*time.Hour))
		failed.Status = domain.PaymentStatusFailed
		_, err = repo.Create(ctx, failed)
		require.NoError(t, err)
		_, err = repo.Create(ctx, successRecord("u2", "r4", "month", base.Add(3*time.Hour)))
		require.NoError(t, err)

		got, err := repo.LatestSuccessful(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, newest.ID, got.ID)
	})

	t.Run("equal paid_at resolved by created_at", func(t *testing.T) {
		repo := NewInMemoryPaymentRepository(logger.NewNop())
		clock := base
		repo.now = func() time.Time { return clock }

		var ids []string
		for _, ref := range []string{"r-b", "r-a", "r-c"} {
			rec, err := repo.Create(ctx, successRecord("u1", ref, "month", base))
			require.NoError(t, err)
			ids = append(ids, rec.ID.String())
			clock = clock.Add(time.Second)
		}

		for i := 0; i < 10; i++ {
			got, err := repo.LatestSuccessful(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, "r-c", got.Reference)

			list, err := repo.ListByUser(ctx, "u1")
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, []string{ids[2], ids[1], ids[0]},
				[]string{list[0].ID.String(), list[1].ID.String(), list[2].ID.String()})
		}
	})

	t.Run("none", func(t *testing.T) {
		repo := NewInMemoryPaymentRepository(logger.NewNop())
		_, err := repo.LatestSuccessful(ctx, "nobody")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("duplicate reference", func(t *testing.T) {
		repo := NewInMemoryPaymentRepository(logger.NewNop())
		_, err := repo.Create(ctx, successRecord("u1", "same", "month", base))
		require.NoError(t, err)
		_, err = repo.Create(ctx, successRecord("u1", "same", "month", base))
		assert.ErrorIs(t, err, domain.ErrDuplicate)
	})

	t.Run("update status and list", func(t *testing.T) {
		repo := NewInMemoryPaymentRepository(logger.NewNop())
		older, err := repo.Create(ctx, successRecord("u1", "r1", "month", base))
		require.NoError(t, err)
		newer, err := repo.Create(ctx, successRecord("u1", "r2", "month", base.Add(time.Hour)))
		require.NoError(t, err)

		updated, err := repo.UpdateStatus(ctx, newer.ID, domain.PaymentStatusCanceled, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentStatusCanceled, updated.Status)

		latest, err := repo.LatestSuccessful(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, older.ID, latest.ID)

		list, err := repo.ListByUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, newer.ID, list[0].ID)

		byRef, err := repo.GetByReference(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, older.ID, byRef.ID)
	})
}
