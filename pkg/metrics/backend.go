package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BackendMetrics records calls made to the fundraiser order API.
type BackendMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewBackendMetrics registers the backend call metrics on the provided registerer.
func NewBackendMetrics(reg prometheus.Registerer) *BackendMetrics {
	if reg == nil {
		return &BackendMetrics{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fr_backend_requests_total",
		Help: "Calls made to the fundraiser backend by endpoint and HTTP status.",
	}, []string{"endpoint", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fr_backend_request_duration_seconds",
		Help:    "Latency of fundraiser backend calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
	reg.MustRegister(requests, latency)
	return &BackendMetrics{requests: requests, latency: latency}
}

// Observe records one backend call. A zero status means the request never got a response.
func (b *BackendMetrics) Observe(endpoint string, status int, duration time.Duration) {
	if b == nil || b.requests == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	b.requests.WithLabelValues(normalizeLabel(endpoint), label).Inc()
	b.latency.WithLabelValues(normalizeLabel(endpoint)).Observe(duration.Seconds())
}
