package metrics

import (
	"github.com/Dhoini/newsletter-billing/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PaymentMetrics интерфейс для метрик журнала платежей и подписок
type PaymentMetrics interface {
	IncPaymentRecorded(plan string, status string)
	IncSubscriptionCanceled(plan string)
	IncStatusRead(state string)
	IncWebhook(provider string, outcome string)
	IncArticleFetchFailure(category string)
	ObservePaymentAmount(amount float64, currency string, status string)
}

type paymentMetrics struct {
	log                 *logger.Logger
	paymentsRecorded    *prometheus.CounterVec
	subscriptionsCancel *prometheus.CounterVec
	statusReads         *prometheus.CounterVec
	webhooks            *prometheus.CounterVec
	articleFailures     *prometheus.CounterVec
	paymentsAmount      *prometheus.HistogramVec
}

// NewPaymentMetrics создает метрики и регистрирует их в registry
func NewPaymentMetrics(registry *prometheus.Registry, log *logger.Logger) PaymentMetrics {
	factory := promauto.With(registry)

	return &paymentMetrics{
		log: log,
		paymentsRecorded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_payments_total",
				Help: "Payment records written to the ledger by plan and status",
			},
			[]string{"plan", "status"},
		),
		subscriptionsCancel: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subscriptions_canceled_total",
				Help: "Subscriptions canceled by users",
			},
			[]string{"plan"},
		),
		statusReads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subscription_status_reads_total",
				Help: "Subscription status reads by derived state",
			},
			[]string{"state"},
		),
		webhooks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_webhooks_total",
				Help: "Payment provider webhooks by outcome",
			},
			[]string{"provider", "outcome"},
		),
		articleFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "article_fetch_failures_total",
				Help: "Failed article fetches by category",
			},
			[]string{"category"},
		),
		paymentsAmount: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_payment_amount",
				Help:    "Payment amounts distribution",
				Buckets: []float64{0, 10, 25, 50, 100, 250, 500, 1000},
			},
			[]string{"currency", "status"},
		),
	}
}

func (m *paymentMetrics) IncPaymentRecorded(plan string, status string) {
	m.paymentsRecorded.WithLabelValues(plan, status).Inc()
}

func (m *paymentMetrics) IncSubscriptionCanceled(plan string) {
	m.subscriptionsCancel.WithLabelValues(plan).Inc()
}

func (m *paymentMetrics) IncStatusRead(state string) {
	m.statusReads.WithLabelValues(state).Inc()
}

func (m *paymentMetrics) IncWebhook(provider string, outcome string) {
	m.webhooks.WithLabelValues(provider, outcome).Inc()
}

func (m *paymentMetrics) IncArticleFetchFailure(category string) {
	m.articleFailures.WithLabelValues(category).Inc()
}

// ObservePaymentAmount записывает сумму платежа
func (m *paymentMetrics) ObservePaymentAmount(amount float64, currency string, status string) {
	m.paymentsAmount.WithLabelValues(currency, status).Observe(amount)
}
