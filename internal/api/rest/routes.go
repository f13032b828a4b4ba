package rest

import (
	"github.com/Dhoini/newsletter-billing/internal/api/rest/handlers"
	"github.com/Dhoini/newsletter-billing/internal/metrics"
	"github.com/Dhoini/newsletter-billing/internal/middleware"
	"github.com/Dhoini/newsletter-billing/internal/service"
	"github.com/Dhoini/newsletter-billing/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps зависимости HTTP слоя
type RouterDeps struct {
	Log           *logger.Logger
	Registry      *prometheus.Registry
	Subscriptions *service.SubscriptionService
	Articles      handlers.ArticleFetcher
	Verifiers     map[string]handlers.Verifier // провайдер -> проверка подписи
	Auth          *middleware.JWTMiddleware
	RateLimiter   *middleware.RateLimiter
	Metrics       metrics.PaymentMetrics
	Readiness     map[string]handlers.Pinger
}

// SetupRouter настраивает маршрутизатор Gin с маршрутами и middleware
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestLogger(deps.Log.Named("http")))
	r.Use(gin.Recovery())

	r.GET("/health", handlers.HealthCheck)
	r.GET("/ready", handlers.Readiness(deps.Readiness))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))

	planHandler := handlers.NewPlanHandler(deps.Subscriptions)
	paymentHandler := handlers.NewPaymentHandler(deps.Subscriptions, deps.Log)
	subscriptionHandler := handlers.NewSubscriptionHandler(deps.Subscriptions, deps.Log)
	articleHandler := handlers.NewArticleHandler(deps.Articles, deps.Subscriptions, deps.Log)
	webhookHandler := handlers.NewWebhookHandler(deps.Subscriptions, deps.Metrics, deps.Log.Named("webhooks"))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/plans", planHandler.GetPlans)

		authed := v1.Group("", deps.Auth.RequireAuth())
		{
			authed.POST("/payments", deps.RateLimiter.Middleware(), paymentHandler.CreatePayment)

			subscription := authed.Group("/subscription")
			{
				subscription.GET("/status", subscriptionHandler.GetStatus)
				subscription.POST("/manage", subscriptionHandler.Manage)
				subscription.GET("/history", subscriptionHandler.History)
			}

			authed.GET("/articles",
				middleware.RequireSubscription(deps.Subscriptions, deps.Log),
				articleHandler.GetArticles)
		}

		webhooks := v1.Group("/webhooks")
		for provider, verifier := range deps.Verifiers {
			webhooks.POST("/"+provider, webhookHandler.Handle(provider, verifier))
		}
	}

	return r
}
