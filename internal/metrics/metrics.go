package metrics

import (
	"github.com/ariefcatur/go-order-core/internal/apperr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_ms",
			Help:    "Duration of HTTP requests in ms",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600},
		},
		[]string{"method", "path"},
	)

	OrdersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Order creation attempts by result code",
		},
		[]string{"result"},
	)

	OrderStatusUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_status_updates_total",
			Help: "Order status update attempts by requested status and result code",
		},
		[]string{"to", "result"},
	)

	PaymentWebhooks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhooks_total",
			Help: "Payment notifications by source and result code",
		},
		[]string{"source", "result"},
	)
)

// Result turns an operation outcome into a low-cardinality label value.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	if c, ok := apperr.CodeOf(err); ok {
		return string(c)
	}
	return "error"
}
