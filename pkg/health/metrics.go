package health

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/srediag/sumipc/pkg/wire"
)

// Metrics counts the controller's traffic. A nil *Metrics ignores every
// observation.
type Metrics struct {
	Requests  prometheus.Counter
	Responses *prometheus.CounterVec
	RoundTrip prometheus.Histogram
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "requests_total",
			Help:      "Request lines sent to the worker.",
		}),
		Responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "responses_total",
			Help:      "Response lines received from the worker, by kind.",
		}, []string{"kind"}),
		RoundTrip: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "round_trip_seconds",
			Help:      "Time from sending a request to receiving its response.",
			Buckets:   prometheus.ExponentialBuckets(10e-6, 4, 10),
		}),
	}
	reg.MustRegister(m.Requests, m.Responses, m.RoundTrip)
	return m
}

// ObserveRequest counts one request.
func (m *Metrics) ObserveRequest() {
	if m == nil {
		return
	}
	m.Requests.Inc()
}

// ObserveResponse counts resp under its kind and records the round trip.
// Lines that are not responses are counted as "unknown".
func (m *Metrics) ObserveResponse(resp []byte, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "unknown"
	if kind, ok := wire.Classify(resp); ok {
		label = kind.String()
	}
	m.Responses.WithLabelValues(label).Inc()
	m.RoundTrip.Observe(elapsed.Seconds())
}
