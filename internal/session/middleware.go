package session

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jaqcquesndav/Wanzo-admin/internal/httputil"
)

// Middleware loads the session named by the cookie and attaches a Source to the
// request context. Requests without a valid session pass through unauthenticated.
func Middleware(store Store, refresher Refresher, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			sess, err := store.Get(r.Context(), cookie.Value)
			if err != nil {
				if !errors.Is(err, ErrNoSession) {
					slog.Error("session lookup failed", "error", err, "session", safePrefix(cookie.Value))
				}
				next.ServeHTTP(w, r)
				return
			}

			src := NewSource(store, refresher, sess)
			next.ServeHTTP(w, r.WithContext(ContextWithSource(r.Context(), src)))
		})
	}
}

// Require rejects requests that carry no session.
func Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := SourceFromContext(r.Context()); !ok {
			httputil.WriteAuthError(w, w.Header().Get("X-Request-ID"), "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
