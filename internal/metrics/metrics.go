// Package metrics holds the Prometheus instruments shared across the game
// core, the stores and the relay.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "northstar"

var (
	KVWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "kv_writes_total",
		Help:      "Writes issued to a key-value backend, by backend and result.",
	}, []string{"backend", "result"})

	RetryAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "write_retries_total",
		Help:      "Write attempts repeated after a transient failure.",
	})

	WriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "write_failures_total",
		Help:      "Writes that exhausted their retries and were reported to the player.",
	})

	EchoesSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "echoes_suppressed_total",
		Help:      "Inbound subscription updates discarded inside the local-write grace window.",
	})

	LocalFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "local_fallbacks_total",
		Help:      "Times a client switched to its local store.",
	})

	RelayConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "relay_connections",
		Help:      "Websocket clients currently attached to the relay.",
	})
)

// ObserveWrite counts one write against backend.
func ObserveWrite(backend string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	KVWrites.WithLabelValues(backend, result).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
