// Package catalog хранит неизменяемый реестр тарифных планов.
package catalog

import (
	"fmt"

	"github.com/Dhoini/newsletter-billing/internal/domain"
)

const currencyGHS = "GHS"

// Catalog реестр планов. Создается один раз при старте и передается зависимостям.
type Catalog struct {
	order []domain.PlanID
	plans map[domain.PlanID]domain.Plan
}

func defaultPlans() []domain.Plan {
	freeLimit := 2
	return []domain.Plan{
		{
			ID:       domain.PlanFree,
			Name:     "Free Plan",
			Price:    0,
			Currency: currencyGHS,
			Interval: domain.IntervalForever,
			Features: domain.PlanFeatures{
				NewsletterLimit: &freeLimit,
				NewsCategories:  domain.CategoriesLimited,
				History:         false,
			},
		},
		{
			ID:       domain.PlanBasic,
			Name:     "Basic Plan",
			Price:    25,
			Currency: currencyGHS,
			Interval: domain.IntervalMonth,
			Features: domain.PlanFeatures{NewsCategories: domain.CategoriesAll},
		},
		{
			ID:       domain.PlanMonth,
			Name:     "Monthly Plan",
			Price:    50,
			Currency: currencyGHS,
			Interval: domain.IntervalMonth,
			Features: domain.PlanFeatures{NewsCategories: domain.CategoriesAll, History: true},
		},
		{
			ID:       domain.PlanYear,
			Name:     "Yearly Plan",
			Price:    480,
			Currency: currencyGHS,
			Interval: domain.IntervalYear,
			Features: domain.PlanFeatures{NewsCategories: domain.CategoriesAll, History: true},
		},
	}
}

// NewStatic возвращает каталог со встроенными планами продукта.
func NewStatic() *Catalog {
	c, err := New(defaultPlans())
	if err != nil {
		panic(err)
	}
	return c
}

// New строит каталог из списка планов, проверяя их корректность.
func New(plans []domain.Plan) (*Catalog, error) {
	c := &Catalog{
		order: make([]domain.PlanID, 0, len(plans)),
		plans: make(map[domain.PlanID]domain.Plan, len(plans)),
	}
	for _, p := range plans {
		if err := validatePlan(p); err != nil {
			return nil, err
		}
		if _, dup := c.plans[p.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate plan %q", p.ID)
		}
		c.order = append(c.order, p.ID)
		c.plans[p.ID] = clonePlan(p)
	}
	return c, nil
}

// Lookup возвращает план по идентификатору. Принимает и старые псевдонимы (monthly, yearly).
func (c *Catalog) Lookup(id string) (domain.Plan, error) {
	planID, ok := domain.ParsePlanID(id)
	if !ok {
		return domain.Plan{}, fmt.Errorf("%w: %q", domain.ErrInvalidPlan, id)
	}
	p, ok := c.plans[planID]
	if !ok {
		return domain.Plan{}, fmt.Errorf("%w: %q", domain.ErrInvalidPlan, id)
	}
	return clonePlan(p), nil
}

// Plans возвращает все планы в порядке отображения.
func (c *Catalog) Plans() []domain.Plan {
	out := make([]domain.Plan, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, clonePlan(c.plans[id]))
	}
	return out
}

func validatePlan(p domain.Plan) error {
	if _, ok := domain.ParsePlanID(string(p.ID)); !ok {
		return fmt.Errorf("catalog: unknown plan id %q", p.ID)
	}
	if p.Price < 0 {
		return fmt.Errorf("catalog: plan %q has negative price", p.ID)
	}
	if p.Currency == "" {
		return fmt.Errorf("catalog: plan %q has no currency", p.ID)
	}
	switch p.Interval {
	case domain.IntervalMonth, domain.IntervalYear, domain.IntervalForever:
	default:
		return fmt.Errorf("catalog: plan %q has unknown interval %q", p.ID, p.Interval)
	}
	if l := p.Features.NewsletterLimit; l != nil && *l <= 0 {
		return fmt.Errorf("catalog: plan %q newsletter limit must be positive", p.ID)
	}
	return nil
}

// clonePlan копирует указатель NewsletterLimit, чтобы вызывающий не мог изменить реестр
func clonePlan(p domain.Plan) domain.Plan {
	if p.Features.NewsletterLimit != nil {
		l := *p.Features.NewsletterLimit
		p.Features.NewsletterLimit = &l
	}
	return p
}
