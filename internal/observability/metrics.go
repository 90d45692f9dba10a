package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	enrollmentOutcomes    *prometheus.CounterVec
	activityParticipants  *prometheus.GaugeVec
	enrollmentEventsTotal *prometheus.CounterVec
	streamClientsActive   prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_latency_seconds",
			Help:    "Latency distribution for HTTP requests.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"method", "route"})

		enrollmentOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enrollment_operations_total",
			Help: "Enroll and withdraw operations by outcome.",
		}, []string{"action", "result"})

		activityParticipants = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "activity_participants",
			Help: "Current number of participants per activity.",
		}, []string{"activity"})

		enrollmentEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enrollment_events_published_total",
			Help: "Enrollment events published per transport and result.",
		}, []string{"transport", "result"})

		streamClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "activity_stream_clients_active",
			Help: "Websocket clients currently subscribed to enrollment events.",
		})

		prometheus.MustRegister(httpRequestsTotal, httpLatencySeconds, enrollmentOutcomes, activityParticipants, enrollmentEventsTotal, streamClientsActive)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// EnrollmentOutcomes exposes the enroll/withdraw outcome counter.
func EnrollmentOutcomes() *prometheus.CounterVec {
	RegisterMetrics()
	return enrollmentOutcomes
}

// ActivityParticipants exposes the per-activity participant gauge.
func ActivityParticipants() *prometheus.GaugeVec {
	RegisterMetrics()
	return activityParticipants
}

// EnrollmentEventsPublished exposes the event publishing counter.
func EnrollmentEventsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return enrollmentEventsTotal
}

// StreamClientsActive exposes the websocket subscriber gauge.
func StreamClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return streamClientsActive
}
