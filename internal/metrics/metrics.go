// Package metrics wraps the Prometheus collectors exposed by the
// record-store server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector the server updates, bound to its own
// prometheus.Registry rather than the global DefaultRegisterer so that a
// process (or a test binary) can build more than one without panicking on
// duplicate registration.
type Registry struct {
	registry *prometheus.Registry

	ActiveConnections prometheus.Gauge
	RejectedByGuard   prometheus.Counter

	RequestsTotal  *prometheus.CounterVec
	ErrorsTotal    *prometheus.CounterVec
	BytesRead      prometheus.Counter
	BytesWritten   prometheus.Counter
	ChunkedReplies prometheus.Counter

	WorkerQueueDepth prometheus.Gauge
	WorkerDropped    prometheus.Counter
}

// NewRegistry creates and registers every collector.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		registry: reg,

		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ispdb_connections_active",
			Help: "Number of currently open client connections",
		}),
		RejectedByGuard: factory.NewCounter(prometheus.CounterOpts{
			Name: "ispdb_connections_rejected_total",
			Help: "Total number of connections rejected by the admission guard",
		}),
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ispdb_requests_total",
			Help: "Total number of queries handled, labeled by command",
		}, []string{"command"}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ispdb_errors_total",
			Help: "Total number of failed queries, labeled by error kind",
		}, []string{"kind"}),
		BytesRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "ispdb_bytes_read_total",
			Help: "Total bytes read from client connections",
		}),
		BytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "ispdb_bytes_written_total",
			Help: "Total bytes written to client connections",
		}),
		ChunkedReplies: factory.NewCounter(prometheus.CounterOpts{
			Name: "ispdb_chunked_replies_total",
			Help: "Total number of replies sent as a multi-frame chunked sequence",
		}),
		WorkerQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ispdb_worker_queue_depth",
			Help: "Approximate number of tasks waiting in the worker pool queue",
		}),
		WorkerDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "ispdb_worker_tasks_rejected_total",
			Help: "Total number of tasks rejected because the worker pool had stopped",
		}),
	}
}

// Handler returns an HTTP handler exposing Prometheus metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
