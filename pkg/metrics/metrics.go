package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics records metadata for scheduled jobs.
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewCronJobMetrics registers the cron job metrics on the provided registerer.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "Duration of cron jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_success",
		Help: "Successful cron job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_failure",
		Help: "Failed cron job executions.",
	}, []string{"job"})
	reg.MustRegister(duration, success, failure)
	return &CronJobMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
	}
}

// ObserveDuration records the duration for the named job.
func (c *CronJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (c *CronJobMetrics) IncSuccess(job string) {
	if c == nil || c.success == nil {
		return
	}
	c.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (c *CronJobMetrics) IncFailure(job string) {
	if c == nil || c.failure == nil {
		return
	}
	c.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// OrderMetrics counts the order engine's externally interesting outcomes.
type OrderMetrics struct {
	created        *prometheus.CounterVec
	stockConflicts prometheus.Counter
	notifications  *prometheus.CounterVec
}

// NewOrderMetrics registers the order engine metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_transitions_total",
		Help: "Order state transitions by resulting status.",
	}, []string{"status"})
	stockConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_stock_conflicts_total",
		Help: "Order creations rejected because a tier ran out of stock.",
	})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_notifications_total",
		Help: "Inbound settlement notifications by verification outcome.",
	}, []string{"outcome"})
	reg.MustRegister(created, stockConflicts, notifications)
	return &OrderMetrics{
		created:        created,
		stockConflicts: stockConflicts,
		notifications:  notifications,
	}
}

// IncTransition counts an order reaching the given status.
func (o *OrderMetrics) IncTransition(status string) {
	if o == nil || o.created == nil {
		return
	}
	o.created.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncStockConflict counts a reservation rejected for insufficient stock.
func (o *OrderMetrics) IncStockConflict() {
	if o == nil || o.stockConflicts == nil {
		return
	}
	o.stockConflicts.Inc()
}

// IncNotification counts an inbound settlement notification outcome
// (accepted, duplicate, signature_invalid, malformed, failed).
func (o *OrderMetrics) IncNotification(outcome string) {
	if o == nil || o.notifications == nil {
		return
	}
	o.notifications.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
