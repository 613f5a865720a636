package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics records reservation and webhook outcomes.
type OrderMetrics struct {
	ordersCreated    *prometheus.CounterVec
	orderValue       *prometheus.CounterVec
	creationDuration prometheus.Histogram
	webhookProcessed *prometheus.CounterVec
	lockAcquisitions *prometheus.CounterVec
}

// NewOrderMetrics registers the order metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	ordersCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created.",
	}, []string{"status"})
	orderValue := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_value_total",
		Help: "Total value of all orders.",
	}, []string{"payment_status"})
	creationDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_creation_duration_seconds",
		Help:    "Time taken to create an order.",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	})
	webhookProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_processed_total",
		Help: "Total payment webhooks processed.",
	}, []string{"status"})
	lockAcquisitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lock_acquisitions_total",
		Help: "Total advisory lock acquisition attempts.",
	}, []string{"status"})
	reg.MustRegister(ordersCreated, orderValue, creationDuration, webhookProcessed, lockAcquisitions)
	return &OrderMetrics{
		ordersCreated:    ordersCreated,
		orderValue:       orderValue,
		creationDuration: creationDuration,
		webhookProcessed: webhookProcessed,
		lockAcquisitions: lockAcquisitions,
	}
}

// IncOrderCreated increments the created counter for the given outcome.
func (m *OrderMetrics) IncOrderCreated(status string) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.WithLabelValues(normalizeLabel(status)).Inc()
}

// AddOrderValue adds the committed total under its payment status.
func (m *OrderMetrics) AddOrderValue(paymentStatus string, value float64) {
	if m == nil || m.orderValue == nil {
		return
	}
	m.orderValue.WithLabelValues(normalizeLabel(paymentStatus)).Add(value)
}

// ObserveCreationDuration records how long a reservation took.
func (m *OrderMetrics) ObserveCreationDuration(duration time.Duration) {
	if m == nil || m.creationDuration == nil {
		return
	}
	m.creationDuration.Observe(duration.Seconds())
}

// IncWebhookProcessed increments the webhook counter for the given outcome.
func (m *OrderMetrics) IncWebhookProcessed(status string) {
	if m == nil || m.webhookProcessed == nil {
		return
	}
	m.webhookProcessed.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncLockAcquisition increments the lock counter for the given outcome.
func (m *OrderMetrics) IncLockAcquisition(status string) {
	if m == nil || m.lockAcquisitions == nil {
		return
	}
	m.lockAcquisitions.WithLabelValues(normalizeLabel(status)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
