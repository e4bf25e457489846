// internal/application/mint/metrics.go
package mint

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	mintdom "candymint/internal/domain/mint"
)

// Metrics holds the orchestrator's Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	attempts      *prometheus.CounterVec
	deferred      prometheus.Counter
	mintDuration  prometheus.Histogram
	inFlightGauge prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "candymint",
			Name:      "mint_attempts_total",
			Help:      "Completed mint attempts by outcome.",
		}, []string{"outcome"}),
		deferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "candymint",
			Name:      "mint_attempts_deferred_total",
			Help:      "Mint attempts parked until a gateway token became active.",
		}),
		mintDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "candymint",
			Name:      "mint_duration_seconds",
			Help:      "Time from submission start to a terminal outcome.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		inFlightGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "candymint",
			Name:      "mint_in_flight",
			Help:      "1 while a mint submission is outstanding.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.attempts, m.deferred, m.mintDuration, m.inFlightGauge)
	}
	return m
}

func (m *Metrics) observeOutcome(o mintdom.Outcome, d time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(o.Kind.String()).Inc()
	m.mintDuration.Observe(d.Seconds())
}

func (m *Metrics) observeDeferred() {
	if m == nil {
		return
	}
	m.deferred.Inc()
}

func (m *Metrics) setInFlight(v bool) {
	if m == nil {
		return
	}
	if v {
		m.inFlightGauge.Set(1)
		return
	}
	m.inFlightGauge.Set(0)
}
