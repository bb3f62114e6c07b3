package policy

import (
	"log/slog"
	"net/http"

	"github.com/jaqcquesndav/Wanzo-admin/internal/httputil"
	"github.com/jaqcquesndav/Wanzo-admin/internal/session"
	"github.com/jaqcquesndav/Wanzo-admin/internal/telemetry"
)

// Middleware authorizes console API requests by the session user's role.
// Requests without a session pass through; session.Require rejects them.
func Middleware(e *Evaluator, metrics *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !e.Enabled() {
				next.ServeHTTP(w, r)
				return
			}
			src, ok := session.SourceFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			reqID := w.Header().Get("X-Request-ID")
			role := ""
			if user := src.StoredUser(); user != nil {
				role = user.Role
			}

			decision, err := e.Evaluate(r.Context(), Input{
				Role:   role,
				Method: r.Method,
				Path:   r.URL.Path,
			})
			if err != nil {
				slog.Error("policy evaluation failed", "error", err, "request_id", reqID)
				httputil.WriteInternalError(w, reqID, "Policy evaluation failed")
				return
			}
			if !decision.Allow {
				slog.Warn("request denied by policy",
					"request_id", reqID,
					"role", role,
					"method", r.Method,
					"path", r.URL.Path,
					"reason", decision.Reason,
				)
				if metrics != nil {
					metrics.RecordPolicyDeny(role)
				}
				httputil.WriteForbiddenError(w, reqID, "Access denied: "+decision.Reason)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
