package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CodeOK labels a JSON-RPC call that returned a result.
const CodeOK = "ok"

// RPCMetrics tracks JSON-RPC traffic against the lockdrop node.
type RPCMetrics struct {
	calls      *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	rejections *prometheus.CounterVec
}

var (
	rpcMetricsOnce sync.Once
	rpcRegistry    *RPCMetrics
)

// RPC returns the lazily-initialised JSON-RPC metrics registry.
func RPC() *RPCMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &RPCMetrics{
			calls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lockdrop",
				Subsystem: "rpc",
				Name:      "calls_total",
				Help:      "JSON-RPC calls by method and result code name, e.g. ok or phase_violation.",
			}, []string{"method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "lockdrop",
				Subsystem: "rpc",
				Name:      "call_duration_seconds",
				Help:      "Latency of JSON-RPC calls by method.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lockdrop",
				Subsystem: "rpc",
				Name:      "rejections_total",
				Help:      "Requests turned away before reaching the node, by reason.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			rpcRegistry.calls,
			rpcRegistry.latency,
			rpcRegistry.rejections,
		)
	})
	return rpcRegistry
}

// ObserveCall records one JSON-RPC call. code is the name of the JSON-RPC
// result code, CodeOK for a successful call.
func (m *RPCMetrics) ObserveCall(method, code string, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	if code == "" {
		code = CodeOK
	}
	m.calls.WithLabelValues(method, code).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordRejection counts a request refused by the transport, such as
// "rate_limit" or "unauthorized".
func (m *RPCMetrics) RecordRejection(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.rejections.WithLabelValues(reason).Inc()
}
