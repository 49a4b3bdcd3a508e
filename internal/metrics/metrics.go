// Package metrics exposes Prometheus instrumentation for the realtime
// coordinator and the AI adapter.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveConnections tracks currently registered websocket clients.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "meetingflow",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Number of registered websocket connections.",
	})

	// BroadcastsTotal counts events delivered to clients.
	BroadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "meetingflow",
		Subsystem: "ws",
		Name:      "broadcasts_total",
		Help:      "Total events sent to websocket clients.",
	})

	// SendFailuresTotal counts per-recipient delivery failures. Broadcast
	// is best-effort, so these are logged and skipped, never retried.
	SendFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "meetingflow",
		Subsystem: "ws",
		Name:      "send_failures_total",
		Help:      "Total failed sends to websocket clients.",
	})

	// EvictionsTotal counts connections terminated by the liveness sweep.
	EvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "meetingflow",
		Subsystem: "ws",
		Name:      "evictions_total",
		Help:      "Total connections evicted for failing liveness probes.",
	})

	// AIRequestsTotal counts calls to the external text service by operation.
	AIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meetingflow",
		Subsystem: "ai",
		Name:      "requests_total",
		Help:      "Total requests to the external text service.",
	}, []string{"operation"})

	// AIFailuresTotal counts failed calls to the external text service.
	AIFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meetingflow",
		Subsystem: "ai",
		Name:      "failures_total",
		Help:      "Total failed requests to the external text service.",
	}, []string{"operation"})
)

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
