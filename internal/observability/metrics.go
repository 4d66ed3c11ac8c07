package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	envelopesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simctl",
			Subsystem: "wire",
			Name:      "envelopes_total",
			Help:      "Complete envelopes dispatched, by classified kind.",
		},
		[]string{"kind"},
	)
	endpointErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simctl",
			Subsystem: "endpoint",
			Name:      "errors_total",
			Help:      "Asynchronous connection faults reported to the error path.",
		},
		[]string{"source"},
	)
	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "simctl",
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Current message queue depth.",
		},
		[]string{"queue"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total status server HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "simctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Status server HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(envelopesTotal, endpointErrors, queueDepth, httpRequests, httpDuration)
	})
}

func RecordEnvelope(kind string) {
	RegisterMetrics()
	envelopesTotal.WithLabelValues(kind).Inc()
}

func RecordEndpointError(source string) {
	RegisterMetrics()
	endpointErrors.WithLabelValues(source).Inc()
}

func SetQueueDepth(queue string, depth int) {
	RegisterMetrics()
	queueDepth.WithLabelValues(queue).Set(float64(depth))
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
