package metrics

import (
	"testing"

	"github.com/Dhoini/newsletter-billing/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewPaymentMetrics(registry, logger.NewNop()).(*paymentMetrics)

	m.IncPaymentRecorded("month", "success")
	m.IncPaymentRecorded("month", "success")
	m.IncSubscriptionCanceled("year")
	m.IncWebhook("paystack", "rejected")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.paymentsRecorded.WithLabelValues("month", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.subscriptionsCancel.WithLabelValues("year")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhooks.WithLabelValues("paystack", "rejected")))
}

func TestSystemMetricsRecord(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewSystemMetrics(registry, logger.NewNop()).(*systemMetrics)

	m.Record()
	assert.Greater(t, testutil.ToFloat64(m.goroutines), 0.0)

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	m.Stop()
	m.Stop()
}
