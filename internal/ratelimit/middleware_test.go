package ratelimit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/jaqcquesndav/Wanzo-admin/internal/httputil"
	"github.com/jaqcquesndav/Wanzo-admin/internal/session"
	"github.com/jaqcquesndav/Wanzo-admin/internal/telemetry"
)

// mockChecker records keys and denies every check when denyAll is set.
type mockChecker struct {
	keys    []string
	denyAll bool
}

func (m *mockChecker) Check(ctx context.Context, key string, limit int64, window time.Duration) (LimitResult, error) {
	m.keys = append(m.keys, key)
	if m.denyAll {
		return LimitResult{Allowed: false, Remaining: 0, ResetAt: time.Now().Add(window), RetryAfter: window / 2}, nil
	}
	return LimitResult{Allowed: true, Remaining: limit - 1, ResetAt: time.Now().Add(window)}, nil
}

type noRefresh struct{}

func (noRefresh) Refresh(ctx context.Context, refreshToken string) (*session.Credentials, error) {
	return nil, session.ErrRefreshRejected
}

func withSession(r *http.Request, id string) *http.Request {
	sess := &session.Session{ID: id, AccessToken: "token", ExpiresAt: time.Now().Add(time.Hour)}
	src := session.NewSource(session.NewMemoryStore(), noRefresh{}, sess)
	return r.WithContext(session.ContextWithSource(r.Context(), src))
}

func fixedRPM(n int) func() int { return func() int { return n } }

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_AllowsRequest(t *testing.T) {
	handler := Middleware(NewLimiter(nil), fixedRPM(100), nil)(okHandler())

	req := withSession(httptest.NewRequest(http.MethodGet, "/api/users", nil), "sess-1")
	rec := httptest.NewRecorder()
	rec.Header().Set("X-Request-ID", "req-1")

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if h := rec.Header().Get(headerRateLimitRequests); h != "100" {
		t.Errorf("expected X-RateLimit-Limit-Requests=100, got %s", h)
	}
	for _, h := range []string{headerRateLimitRemainingRequests, headerRateLimitReset} {
		if rec.Header().Get(h) == "" {
			t.Errorf("missing header: %s", h)
		}
	}
}

func TestMiddleware_DefaultRPM(t *testing.T) {
	handler := Middleware(NewLimiter(nil), fixedRPM(0), nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users", nil))

	if h := rec.Header().Get(headerRateLimitRequests); h != "60" {
		t.Errorf("expected default RPM=60, got %s", h)
	}
}

func TestMiddleware_KeysBySessionOrAddress(t *testing.T) {
	checker := &mockChecker{}
	handler := Middleware(checker, fixedRPM(10), nil)(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), withSession(httptest.NewRequest(http.MethodGet, "/api/users", nil), "sess-9"))

	anon := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
	anon.RemoteAddr = "10.0.0.7:51234"
	handler.ServeHTTP(httptest.NewRecorder(), anon)

	if len(checker.keys) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(checker.keys))
	}
	if checker.keys[0] != "session:sess-9" {
		t.Errorf("expected session key, got %s", checker.keys[0])
	}
	if checker.keys[1] != "ip:10.0.0.7" {
		t.Errorf("expected address key, got %s", checker.keys[1])
	}
}

func TestMiddleware_Exceeded(t *testing.T) {
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	called := false
	handler := Middleware(&mockChecker{denyAll: true}, fixedRPM(5), metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := withSession(httptest.NewRequest(http.MethodPost, "/api/users", nil), "sess-1")
	rec := httptest.NewRecorder()
	rec.Header().Set("X-Request-ID", "req-3")
	handler.ServeHTTP(rec, req)

	if called {
		t.Error("handler should not run when rate limited")
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get(headerRetryAfter) != "30" {
		t.Errorf("expected Retry-After=30, got %s", rec.Header().Get(headerRetryAfter))
	}

	var apiErr httputil.APIError
	if err := json.NewDecoder(rec.Body).Decode(&apiErr); err != nil {
		t.Fatalf("failed to decode error: %v", err)
	}
	if apiErr.Error.RequestID != "req-3" {
		t.Errorf("expected request id req-3, got %s", apiErr.Error.RequestID)
	}

	var m dto.Metric
	metrics.RateLimitHitTotal.WithLabelValues("session").Write(&m)
	if m.Counter.GetValue() != 1 {
		t.Errorf("expected 1 rate limit hit, got %v", m.Counter.GetValue())
	}
}

func TestMiddleware_Disabled(t *testing.T) {
	checker := &mockChecker{denyAll: true}
	handler := Middleware(checker, fixedRPM(-1), nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 when disabled, got %d", rec.Code)
	}
	if len(checker.keys) != 0 {
		t.Errorf("expected no checks when disabled, got %v", checker.keys)
	}
}
