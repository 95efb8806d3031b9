package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	httpRequestsTotal   *prometheus.CounterVec
	httpLatencySeconds  *prometheus.HistogramVec
	passwordResetsTotal *prometheus.CounterVec
	loginsTotal         *prometheus.CounterVec
	uploadsRejected     *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the portal.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		passwordResetsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_password_resets_total",
			Help: "Forgot-password requests by audited outcome.",
		}, []string{"result"})

		loginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"})

		uploadsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_uploads_rejected_total",
			Help: "Document uploads rejected before persistence.",
		}, []string{"reason"})

		prometheus.MustRegister(httpRequestsTotal, httpLatencySeconds, passwordResetsTotal, loginsTotal, uploadsRejected)
	})
}

// HTTPRequests exposes the counter for served requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// PasswordResets exposes the reset-outcome counter.
func PasswordResets() *prometheus.CounterVec {
	RegisterMetrics()
	return passwordResetsTotal
}

// Logins exposes the login-outcome counter.
func Logins() *prometheus.CounterVec {
	RegisterMetrics()
	return loginsTotal
}

// UploadsRejected exposes the upload rejection counter.
func UploadsRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadsRejected
}
