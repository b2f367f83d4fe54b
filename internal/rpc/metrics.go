package rpc

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records method call outcomes on both ends of the transport.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var (
	defaultMetricsOnce sync.Once
	defaultMetrics     *Metrics
)

// NewMetrics registers RPC collectors. A nil registerer shares one set of
// collectors on the default Prometheus registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultMetricsOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dojo_rpc_calls_total",
			Help: "RPC calls by method, side and outcome.",
		}, []string{"method", "side", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dojo_rpc_call_duration_seconds",
			Help:    "RPC call latency by method and side.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "side"}),
	}
	registerer.MustRegister(m.calls, m.duration)
	return m
}

func (m *Metrics) observe(method, side string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(method, side, outcome(err)).Inc()
	m.duration.WithLabelValues(method, side).Observe(time.Since(start).Seconds())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMethodNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidArgs):
		return "invalid"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	default:
		return "error"
	}
}
