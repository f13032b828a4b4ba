package domain

import "strings"

// PlanID идентификатор тарифного плана
type PlanID string

const (
	PlanFree  PlanID = "free"
	PlanBasic PlanID = "basic"
	PlanMonth PlanID = "month"
	PlanYear  PlanID = "year"
)

// старые записи в базе хранят monthly/yearly
var planAliases = map[string]PlanID{
	"free":    PlanFree,
	"basic":   PlanBasic,
	"month":   PlanMonth,
	"monthly": PlanMonth,
	"year":    PlanYear,
	"yearly":  PlanYear,
}

// ParsePlanID приводит строку к каноническому PlanID.
func ParsePlanID(s string) (PlanID, bool) {
	id, ok := planAliases[strings.ToLower(strings.TrimSpace(s))]
	return id, ok
}

// Interval период оплаты плана
type Interval string

const (
	IntervalMonth   Interval = "month"
	IntervalYear    Interval = "year"
	IntervalForever Interval = "forever"
)

// CategoryAccess доступ к категориям новостей
type CategoryAccess string

const (
	CategoriesLimited CategoryAccess = "limited"
	CategoriesAll     CategoryAccess = "all"
)

// PlanFeatures возможности, которые дает план
type PlanFeatures struct {
	NewsletterLimit *int           `json:"newsletterLimit,omitempty"`
	NewsCategories  CategoryAccess `json:"newsCategories"`
	History         bool           `json:"history"`
}

// Plan тарифный план. Значения фиксируются при деплое и не меняются во время работы.
type Plan struct {
	ID       PlanID       `json:"id"`
	Name     string       `json:"name"`
	Price    float64      `json:"price"`
	Currency string       `json:"currency"`
	Interval Interval     `json:"interval"`
	Features PlanFeatures `json:"features"`
}

// IsFree сообщает, что план не требует оплаты
func (p Plan) IsFree() bool {
	return p.Price == 0
}

// CategoryLimit возвращает максимальное число категорий или 0, если ограничения нет.
func (p Plan) CategoryLimit() int {
	if p.Features.NewsCategories != CategoriesLimited || p.Features.NewsletterLimit == nil {
		return 0
	}
	return *p.Features.NewsletterLimit
}
