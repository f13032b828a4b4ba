package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePlanID(t *testing.T) {
	t.Run("canonical and legacy aliases", func(t *testing.T) {
		cases := map[string]PlanID{
			"free":    PlanFree,
			"basic":   PlanBasic,
			"month":   PlanMonth,
			"Monthly": PlanMonth,
			"year":    PlanYear,
			" yearly": PlanYear,
		}
		for in, want := range cases {
			got, ok := ParsePlanID(in)
			assert.True(t, ok, in)
			assert.Equal(t, want, got, in)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		_, ok := ParsePlanID("weekly")
		assert.False(t, ok)
	})
}

func TestCategoryLimit(t *testing.T) {
	limit := 2
	limited := Plan{Features: PlanFeatures{NewsletterLimit: &limit, NewsCategories: CategoriesLimited}}
	unlimited := Plan{Features: PlanFeatures{NewsCategories: CategoriesAll}}

	assert.Equal(t, 2, limited.CategoryLimit())
	assert.Equal(t, 0, unlimited.CategoryLimit())
}

func TestStoreErrorMatchesSentinel(t *testing.T) {
	driverErr := errors.New("connection reset")
	err := fmt.Errorf("create payment: %w", NewStoreError("insert", driverErr))

	assert.ErrorIs(t, err, ErrStoreFailure)
	assert.ErrorIs(t, err, driverErr)
	assert.ErrorIs(t, NewNotFoundError("payment", "ref"), ErrNotFound)
	assert.NotErrorIs(t, NewNotFoundError("payment", "ref"), ErrStoreFailure)
}
