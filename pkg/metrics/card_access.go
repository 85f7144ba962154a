package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CardAccessMetrics tracks verification outcomes at the card access gate.
type CardAccessMetrics struct {
	attempts   *prometheus.CounterVec
	lockouts   prometheus.Counter
	gatewayDur *prometheus.HistogramVec
}

// NewCardAccessMetrics registers the card access metrics on the provided registerer.
func NewCardAccessMetrics(reg prometheus.Registerer) *CardAccessMetrics {
	if reg == nil {
		return &CardAccessMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "card_access_attempts_total",
		Help: "Card access verification attempts by outcome.",
	}, []string{"outcome"})
	lockouts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "card_access_lockouts_total",
		Help: "Card access gates that entered the blocked state.",
	})
	gatewayDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "card_gateway_duration_seconds",
		Help:    "Latency of card gateway calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	reg.MustRegister(attempts, lockouts, gatewayDur)
	return &CardAccessMetrics{
		attempts:   attempts,
		lockouts:   lockouts,
		gatewayDur: gatewayDur,
	}
}

// IncAttempt counts a verification attempt with the given outcome.
func (m *CardAccessMetrics) IncAttempt(outcome string) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *CardAccessMetrics) IncLockout() {
	if m == nil || m.lockouts == nil {
		return
	}
	m.lockouts.Inc()
}

// ObserveGateway records the latency of one gateway operation.
func (m *CardAccessMetrics) ObserveGateway(operation string, d time.Duration) {
	if m == nil || m.gatewayDur == nil {
		return
	}
	m.gatewayDur.WithLabelValues(normalizeLabel(operation)).Observe(d.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
