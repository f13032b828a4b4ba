package handlers

import (
	"context"
	"net/http"

	"github.com/Dhoini/newsletter-billing/internal/domain"
	"github.com/Dhoini/newsletter-billing/internal/news"
	"github.com/Dhoini/newsletter-billing/pkg/logger"
	"github.com/Dhoini/newsletter-billing/pkg/res"
	"github.com/gin-gonic/gin"
)

// ArticleFetcher загружает статьи по категориям
type ArticleFetcher interface {
	FetchArticles(ctx context.Context, categories []string) []domain.Article
}

// PlanResolver план активной подписки пользователя
type PlanResolver interface {
	CurrentPlan(ctx context.Context, userID string) (domain.Plan, bool, error)
}

// ArticleHandler отдает статьи подписчикам
type ArticleHandler struct {
	articles ArticleFetcher
	plans    PlanResolver
	log      *logger.Logger
}

// NewArticleHandler создает обработчик статей
func NewArticleHandler(articles ArticleFetcher, plans PlanResolver, log *logger.Logger) *ArticleHandler {
	return &ArticleHandler{articles: articles, plans: plans, log: log}
}

// GetArticles GET /articles?category=a&category=b или ?category=a,b
func (h *ArticleHandler) GetArticles(c *gin.Context) {
	userID, ok := currentUser(c, h.log)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	plan, _, err := h.plans.CurrentPlan(ctx, userID)
	if err != nil {
		respondError(c, err, h.log)
		return
	}
	categories := news.LimitCategories(c.QueryArray("category"), plan)
	if len(categories) == 0 {
		res.JsonErrorResponse(c, res.ErrorResponse{Error: "At least one category is required"}, http.StatusBadRequest, h.log)
		return
	}

	res.JsonResponse(c, gin.H{
		"categories": categories,
		"articles":   h.articles.FetchArticles(ctx, categories),
	}, http.StatusOK)
}
