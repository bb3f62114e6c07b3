package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the Wanzo admin console.
type Metrics struct {
	APIRequestTotal      *prometheus.CounterVec
	APIRequestDurationMs *prometheus.HistogramVec
	RefreshTotal         *prometheus.CounterVec
	AuthRedirectTotal    *prometheus.CounterVec
	RateLimitHitTotal    *prometheus.CounterVec
	PolicyDenyTotal      *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		APIRequestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wanzo_api_requests_total",
			Help: "Backend API calls made by the console, by outcome.",
		}, []string{"endpoint", "method", "status", "kind"}),

		APIRequestDurationMs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wanzo_api_request_duration_ms",
			Help:    "Backend API call duration in milliseconds, including refresh and retry.",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"endpoint"}),

		RefreshTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wanzo_api_refresh_total",
			Help: "Token refresh attempts triggered by 401 responses.",
		}, []string{"outcome"}),

		AuthRedirectTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wanzo_api_auth_redirect_total",
			Help: "Sessions invalidated and redirected to login.",
		}, []string{"reason"}),

		RateLimitHitTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wanzo_console_rate_limited_total",
			Help: "Console requests rejected by the rate limiter.",
		}, []string{"scope"}),

		PolicyDenyTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "wanzo_console_policy_denied_total",
			Help: "Console requests denied by the role policy.",
		}, []string{"role"}),
	}
}

// RequestLabels holds the label values for recording a backend call.
type RequestLabels struct {
	Endpoint   string
	Method     string
	Status     string
	Kind       string
	DurationMs float64
}

// RecordRequest records metrics for a completed backend call.
func (m *Metrics) RecordRequest(labels RequestLabels) {
	m.APIRequestTotal.WithLabelValues(
		labels.Endpoint, labels.Method, labels.Status, labels.Kind,
	).Inc()

	m.APIRequestDurationMs.WithLabelValues(
		labels.Endpoint,
	).Observe(labels.DurationMs)
}

func (m *Metrics) RecordRefresh(outcome string) {
	m.RefreshTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordAuthRedirect(reason string) {
	m.AuthRedirectTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordRateLimitHit(scope string) {
	m.RateLimitHitTotal.WithLabelValues(scope).Inc()
}

func (m *Metrics) RecordPolicyDeny(role string) {
	m.PolicyDenyTotal.WithLabelValues(role).Inc()
}
