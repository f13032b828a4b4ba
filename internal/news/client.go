// Package news загружает статьи по категориям из NewsAPI.
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Dhoini/newsletter-billing/internal/domain"
	"github.com/Dhoini/newsletter-billing/internal/metrics"
	"github.com/Dhoini/newsletter-billing/pkg/logger"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTitle       = "No title"
	defaultURL         = "#"
	defaultDescription = "No description available"

	lookback = 7 * 24 * time.Hour
)

// Config параметры клиента
type Config struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	CacheTTL time.Duration
}

type everythingResponse struct {
	Status   string `json:"status"`
	Articles []struct {
		Title       string `json:"title"`
		URL         string `json:"url"`
		Description string `json:"description"`
	} `json:"articles"`
}

// Client загружает статьи. Ошибка по одной категории дает пустой список для нее,
// вся выборка при этом не падает.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      *cache.Cache
	metrics    metrics.PaymentMetrics
	log        *logger.Logger
	now        func() time.Time
}

// NewClient создает клиент NewsAPI
func NewClient(cfg Config, m metrics.PaymentMetrics, log *logger.Logger) *Client {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache.New(ttl, 2*ttl),
		metrics:    m,
		log:        log.Named("news"),
		now:        time.Now,
	}
}

// FetchArticles загружает статьи по всем категориям параллельно.
// Результат склеивается в порядке категорий.
func (c *Client) FetchArticles(ctx context.Context, categories []string) []domain.Article {
	results := make([][]domain.Article, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	for i, category := range categories {
		g.Go(func() error {
			results[i] = c.fetchCategory(gctx, category)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.Article, 0)
	for _, articles := range results {
		out = append(out, articles...)
	}
	return out
}

func (c *Client) fetchCategory(ctx context.Context, category string) []domain.Article {
	if cached, ok := c.cache.Get(category); ok {
		return cached.([]domain.Article)
	}

	articles, err := c.requestCategory(ctx, category)
	if err != nil {
		c.log.Warnw("Failed fetching articles for category", "category", category, "error", err)
		c.metrics.IncArticleFetchFailure(category)
		return []domain.Article{}
	}

	c.cache.SetDefault(category, articles)
	return articles
}

func (c *Client) requestCategory(ctx context.Context, category string) ([]domain.Article, error) {
	query := url.Values{}
	query.Set("q", category)
	query.Set("from", c.now().Add(-lookback).UTC().Format(time.RFC3339))
	query.Set("sortBy", "publishedAt")
	query.Set("apiKey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/everything?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body everythingResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	articles := make([]domain.Article, 0, len(body.Articles))
	for _, a := range body.Articles {
		articles = append(articles, domain.Article{
			Title:       withDefault(a.Title, defaultTitle),
			URL:         withDefault(a.URL, defaultURL),
			Description: withDefault(a.Description, defaultDescription),
		})
	}
	return articles, nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// LimitCategories обрезает список категорий до лимита плана. Пустые и повторяющиеся
// значения отбрасываются.
func LimitCategories(categories []string, plan domain.Plan) []string {
	seen := make(map[string]bool, len(categories))
	out := make([]string, 0, len(categories))
	for _, raw := range categories {
		for _, part := range strings.Split(raw, ",") {
			category := strings.TrimSpace(part)
			if category == "" || seen[category] {
				continue
			}
			seen[category] = true
			out = append(out, category)
		}
	}

	if limit := plan.CategoryLimit(); limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
