package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ginchat"

// Metrics holds every collector the client side exports. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	requests             *prometheus.CounterVec
	requestDuration      *prometheus.HistogramVec
	transportErrors      *prometheus.CounterVec
	sessionInvalidations prometheus.Counter
	probes               *prometheus.CounterVec
	probeDuration        prometheus.Histogram
	reachable            prometheus.Gauge
	eventsDropped        *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg. Pass a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "requests_total",
			Help:      "API calls by method, route template and response status.",
		}, []string{"method", "route", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "request_duration_seconds",
			Help:      "Round trip latency of API calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		transportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "transport_errors_total",
			Help:      "API calls that never received a response.",
		}, []string{"method", "route"}),
		sessionInvalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "session_invalidations_total",
			Help:      "Sessions cleared because the server answered 401.",
		}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "probes_total",
			Help:      "Liveness probes by result (healthy, unhealthy, unreachable).",
		}, []string{"result"}),
		probeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "probe_duration_seconds",
			Help:      "Liveness probe latency.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 3},
		}),
		reachable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "reachable",
			Help:      "1 when the last probe succeeded, 0 otherwise.",
		}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Events skipped because a listener was not keeping up.",
		}, []string{"topic"}),
	}

	reg.MustRegister(
		m.requests,
		m.requestDuration,
		m.transportErrors,
		m.sessionInvalidations,
		m.probes,
		m.probeDuration,
		m.reachable,
		m.eventsDropped,
	)
	return m
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) TransportError(method, route string) {
	if m == nil {
		return
	}
	m.transportErrors.WithLabelValues(method, route).Inc()
}

func (m *Metrics) SessionInvalidated() {
	if m == nil {
		return
	}
	m.sessionInvalidations.Inc()
}

func (m *Metrics) ObserveProbe(result string, reachable bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(result).Inc()
	m.probeDuration.Observe(elapsed.Seconds())
	if reachable {
		m.reachable.Set(1)
	} else {
		m.reachable.Set(0)
	}
}

func (m *Metrics) EventDropped(topic string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(topic).Inc()
}
