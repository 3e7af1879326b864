package bridge

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels an invocation in metrics.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeReported    Outcome = "reported"
	OutcomeComputation Outcome = "computation"
	OutcomePanic       Outcome = "panic"
	OutcomeCodec       Outcome = "codec"
	OutcomeError       Outcome = "error"
)

// Metrics collects invocation counters and latencies.
type Metrics struct {
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewMetrics creates the invocation collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wasm",
			Subsystem: "udf",
			Name:      "invocations_total",
			Help:      "Guest function invocations by outcome.",
		}, []string{"symbol", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wasm",
			Subsystem: "udf",
			Name:      "invocation_duration_seconds",
			Help:      "Guest function invocation latency, including encode and decode.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"symbol"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.invocations, m.duration} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Invocations returns the counter for symbol and outcome.
func (m *Metrics) Invocations(symbol string, outcome Outcome) prometheus.Counter {
	return m.invocations.WithLabelValues(symbol, string(outcome))
}

func (m *Metrics) observe(symbol string, outcome Outcome, d time.Duration) {
	if m == nil {
		return
	}
	m.Invocations(symbol, outcome).Inc()
	m.duration.WithLabelValues(symbol).Observe(d.Seconds())
}
