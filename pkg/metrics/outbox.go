package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics records publisher and consumer throughput.
type OutboxMetrics struct {
	published  *prometheus.CounterVec
	failed     *prometheus.CounterVec
	batchDur   prometheus.Histogram
	deliveries *prometheus.CounterVec
}

// NewOutboxMetrics registers the outbox metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_published_total",
		Help: "Outbox events published by event type.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_failed_total",
		Help: "Outbox publish failures by event type.",
	}, []string{"event_type"})
	batchDur := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_batch_duration_seconds",
		Help:    "Duration of one outbox publish batch.",
		Buckets: prometheus.DefBuckets,
	})
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_deliveries_total",
		Help: "Notification email deliveries by kind and status.",
	}, []string{"kind", "status"})
	reg.MustRegister(published, failed, batchDur, deliveries)
	return &OutboxMetrics{
		published:  published,
		failed:     failed,
		batchDur:   batchDur,
		deliveries: deliveries,
	}
}

func (m *OutboxMetrics) IncPublished(eventType string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *OutboxMetrics) IncFailed(eventType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// ObserveBatch records how long one publish batch took.
func (m *OutboxMetrics) ObserveBatch(d time.Duration) {
	if m == nil || m.batchDur == nil {
		return
	}
	m.batchDur.Observe(d.Seconds())
}

// IncDelivery counts a notification delivery attempt.
func (m *OutboxMetrics) IncDelivery(kind, status string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeLabel(kind), normalizeLabel(status)).Inc()
}
