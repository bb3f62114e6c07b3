package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("failed to get metric: %v", err)
	}
	var metric dto.Metric
	counter.Write(&metric)
	return *metric.Counter.Value
}

func TestNewMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	if m.APIRequestTotal == nil {
		t.Error("APIRequestTotal should not be nil")
	}
	if m.APIRequestDurationMs == nil {
		t.Error("APIRequestDurationMs should not be nil")
	}
	if m.RefreshTotal == nil {
		t.Error("RefreshTotal should not be nil")
	}
	if m.AuthRedirectTotal == nil {
		t.Error("AuthRedirectTotal should not be nil")
	}
	if m.RateLimitHitTotal == nil {
		t.Error("RateLimitHitTotal should not be nil")
	}
	if m.PolicyDenyTotal == nil {
		t.Error("PolicyDenyTotal should not be nil")
	}
}

func TestNewMetrics_SeparateRegistries(t *testing.T) {
	// Each registry gets its own collectors; a second call must not panic.
	NewMetrics(prometheus.NewRegistry())
	NewMetrics(prometheus.NewRegistry())
}

func TestRecordRequest(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordRequest(RequestLabels{
		Endpoint:   "users.list",
		Method:     "GET",
		Status:     "200",
		Kind:       "ok",
		DurationMs: 42,
	})
	m.RecordRequest(RequestLabels{
		Endpoint:   "users.list",
		Method:     "GET",
		Status:     "200",
		Kind:       "ok",
		DurationMs: 12,
	})

	if got := counterValue(t, m.APIRequestTotal, "users.list", "GET", "200", "ok"); got != 2 {
		t.Errorf("expected request count 2, got %v", got)
	}
}

func TestRecordRefreshAndRedirect(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordRefresh("success")
	m.RecordRefresh("failure")
	m.RecordRefresh("failure")
	m.RecordAuthRedirect("demo")

	if got := counterValue(t, m.RefreshTotal, "failure"); got != 2 {
		t.Errorf("expected 2 refresh failures, got %v", got)
	}
	if got := counterValue(t, m.AuthRedirectTotal, "demo"); got != 1 {
		t.Errorf("expected 1 demo redirect, got %v", got)
	}
}

func TestRecordRateLimitAndPolicy(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordRateLimitHit("session")
	m.RecordPolicyDeny("customer_support")

	if got := counterValue(t, m.RateLimitHitTotal, "session"); got != 1 {
		t.Errorf("expected 1 rate limit hit, got %v", got)
	}
	if got := counterValue(t, m.PolicyDenyTotal, "customer_support"); got != 1 {
		t.Errorf("expected 1 policy deny, got %v", got)
	}
}
