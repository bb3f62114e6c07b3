package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jaqcquesndav/Wanzo-admin/internal/httputil"
	"github.com/jaqcquesndav/Wanzo-admin/internal/session"
	"github.com/jaqcquesndav/Wanzo-admin/internal/telemetry"
)

const (
	defaultRPM = 60

	headerRateLimitRequests          = "X-RateLimit-Limit-Requests"
	headerRateLimitRemainingRequests = "X-RateLimit-Remaining-Requests"
	headerRateLimitReset             = "X-RateLimit-Reset-Requests"
	headerRetryAfter                 = "Retry-After"
)

// Checker is satisfied by *Limiter.
type Checker interface {
	Check(ctx context.Context, key string, limit int64, window time.Duration) (LimitResult, error)
}

// Middleware returns chi middleware that throttles console requests per
// session, or per client address for requests without a session. rpm is read
// on every request so configuration reloads apply immediately; a negative
// value disables throttling.
func Middleware(limiter Checker, rpm func() int, metrics *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := w.Header().Get("X-Request-ID")

			limit := rpm()
			if limit < 0 {
				next.ServeHTTP(w, r)
				return
			}
			if limit == 0 {
				limit = defaultRPM
			}

			scope, subject := "ip", clientAddr(r)
			if src, ok := session.SourceFromContext(r.Context()); ok {
				if sess := src.Session(); sess != nil {
					scope, subject = "session", sess.ID
				}
			}

			key := fmt.Sprintf("%s:%s", scope, subject)
			result, _ := limiter.Check(r.Context(), key, int64(limit), time.Minute)

			w.Header().Set(headerRateLimitRequests, strconv.Itoa(limit))
			w.Header().Set(headerRateLimitRemainingRequests, strconv.FormatInt(result.Remaining, 10))
			w.Header().Set(headerRateLimitReset, result.ResetAt.Format(time.RFC3339))

			if !result.Allowed {
				slog.Warn("rate limit exceeded",
					"request_id", reqID,
					"scope", scope,
					"path", r.URL.Path,
					"limit", limit,
				)
				if metrics != nil {
					metrics.RecordRateLimitHit(scope)
				}
				w.Header().Set(headerRetryAfter, strconv.Itoa(int(result.RetryAfter.Seconds())))
				httputil.WriteRateLimitError(w, reqID,
					fmt.Sprintf("Rate limit exceeded: %d requests per minute. Retry after %s", limit, result.ResetAt.Format(time.RFC3339)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
