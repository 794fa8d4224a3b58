package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.OrderPlaced()
	m.OrderPlaced()
	m.OrderTransition("Processing", "Cancelled")
	m.StockRejected("insufficient_stock")
	m.OutboxResult("order_created", "published")
	m.BreakerState("stripe", 2)
	m.ObserveHTTP("POST", "/api/v1/orders", 201, 15*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ordersPlaced))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.orderTransitions.WithLabelValues("Processing", "Cancelled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stockRejections.WithLabelValues("insufficient_stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outboxMessages.WithLabelValues("order_created", "published")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.breakerState.WithLabelValues("stripe")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/api/v1/orders", "201")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.OrderPlaced()
		m.OrderTransition("a", "b")
		m.StockAdjusted("manual")
		m.PaymentCall("create_intent", "ok")
		m.RateLimited("/orders")
		m.ObserveHTTP("GET", "/", 200, time.Millisecond)
	})
}
