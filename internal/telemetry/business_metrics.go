package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for business-level observability
// of the checkout pipeline.
type BusinessMetrics struct {
	// Orders
	OrdersCreated   *prometheus.CounterVec
	OrdersFulfilled prometheus.Counter
	OrderValue      prometheus.Histogram

	// Payments
	PaymentIntentsCreated *prometheus.CounterVec
	PaymentFailed         *prometheus.CounterVec

	// Webhooks
	WebhookReceived   *prometheus.CounterVec
	WebhookProcessed  *prometheus.CounterVec
	WebhookFailed     *prometheus.CounterVec
	WebhookDuplicates prometheus.Counter

	// Revenue tracking (cents)
	RevenueCollected prometheus.Counter

	// Email delivery
	EmailSent   prometheus.Counter
	EmailFailed prometheus.Counter

	// Invoices
	InvoicesGenerated prometheus.Counter
}

// NewBusinessMetrics creates and registers all business metrics.
func NewBusinessMetrics(namespace string) *BusinessMetrics {
	if namespace == "" {
		namespace = "softsell"
	}

	subsystem := "business"

	counter := func(name, help string) prometheus.Counter {
		return promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		})
	}
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}

	return &BusinessMetrics{
		OrdersCreated:   counterVec("orders_created_total", "Total orders assembled", "owner_type"),
		OrdersFulfilled: counter("orders_fulfilled_total", "Total orders completed by webhook fulfillment"),
		OrderValue: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "order_value_cents",
			Help:      "Distribution of order totals in cents",
			Buckets:   prometheus.ExponentialBuckets(500, 4, 8),
		}),

		PaymentIntentsCreated: counterVec("payment_intents_created_total", "Total payment intents created", "owner_type"),
		PaymentFailed:         counterVec("payment_failed_total", "Total failed payment attempts", "reason"),

		WebhookReceived:   counterVec("webhook_received_total", "Total webhook events received", "event_type"),
		WebhookProcessed:  counterVec("webhook_processed_total", "Total webhook events processed successfully", "event_type"),
		WebhookFailed:     counterVec("webhook_failed_total", "Total webhook events that failed processing", "event_type"),
		WebhookDuplicates: counter("webhook_duplicates_total", "Total webhook re-deliveries deduplicated"),

		RevenueCollected: counter("revenue_collected_cents_total", "Total revenue collected in cents"),

		EmailSent:   counter("email_sent_total", "Total confirmation emails sent"),
		EmailFailed: counter("email_failed_total", "Total confirmation emails that failed to send"),

		InvoicesGenerated: counter("invoices_generated_total", "Total invoice documents rendered"),
	}
}
