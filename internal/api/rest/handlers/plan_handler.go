package handlers

import (
	"net/http"

	"github.com/Dhoini/newsletter-billing/internal/domain"
	"github.com/Dhoini/newsletter-billing/pkg/res"
	"github.com/gin-gonic/gin"
)

// PlanLister источник списка планов
type PlanLister interface {
	Plans() []domain.Plan
}

// PlanHandler отдает каталог планов
type PlanHandler struct {
	plans PlanLister
}

// NewPlanHandler создает обработчик каталога
func NewPlanHandler(plans PlanLister) *PlanHandler {
	return &PlanHandler{plans: plans}
}

// GetPlans GET /plans
func (h *PlanHandler) GetPlans(c *gin.Context) {
	res.JsonResponse(c, gin.H{"plans": h.plans.Plans()}, http.StatusOK)
}
