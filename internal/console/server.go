// Package console serves the administration console: the sign-in flow and the
// JSON API the browser UI calls, each backed by the administration API client.
package console

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/jaqcquesndav/Wanzo-admin/internal/apiclient"
	"github.com/jaqcquesndav/Wanzo-admin/internal/config"
	"github.com/jaqcquesndav/Wanzo-admin/internal/health"
	"github.com/jaqcquesndav/Wanzo-admin/internal/httputil"
	"github.com/jaqcquesndav/Wanzo-admin/internal/policy"
	"github.com/jaqcquesndav/Wanzo-admin/internal/ratelimit"
	"github.com/jaqcquesndav/Wanzo-admin/internal/session"
	"github.com/jaqcquesndav/Wanzo-admin/internal/telemetry"
)

type Options struct {
	Config    func() *config.Config
	Client    *apiclient.Client
	Store     session.Store
	Refresher session.Refresher
	Policy    *policy.Evaluator
	Limiter   ratelimit.Checker
	Metrics   *telemetry.Metrics
	// Health is the monitor the API client reports backend outcomes to.
	Health *health.Monitor
	// HTTPClient is used for identity provider calls.
	HTTPClient *http.Client
	Version    string
}

type Server struct {
	cfg       func() *config.Config
	client    *apiclient.Client
	store     session.Store
	refresher session.Refresher
	policy    *policy.Evaluator
	limiter   ratelimit.Checker
	metrics   *telemetry.Metrics
	backend   *health.Monitor
	http      *http.Client
	version   string
}

func New(opts Options) *Server {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Server{
		cfg:       opts.Config,
		client:    opts.Client,
		store:     opts.Store,
		refresher: opts.Refresher,
		policy:    opts.Policy,
		limiter:   opts.Limiter,
		metrics:   opts.Metrics,
		backend:   opts.Health,
		http:      httpClient,
		version:   opts.Version,
	}
}

// Routes builds the console router.
func (s *Server) Routes() http.Handler {
	cfg := s.cfg()

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(session.Middleware(s.store, s.refresher, cfg.Auth.CookieName))

	r.Get("/health", s.health)

	r.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(s.limiter, s.requestsPerMinute, s.metrics))
		r.Get("/auth/login", s.loginPage)
		r.Get("/auth/callback", s.callback)
		r.Post("/auth/session", s.signIn)
		r.Post("/auth/logout", s.logout)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(session.Require)
		r.Use(ratelimit.Middleware(s.limiter, s.requestsPerMinute, s.metrics))
		r.Use(policy.Middleware(s.policy, s.metrics))

		r.Get("/users", s.listUsers)
		r.Post("/users", s.createUser)
		r.Delete("/users/{id}", s.deleteUser)

		r.Put("/settings/security/password", s.changePassword)
		r.Delete("/account", s.deleteAccount)

		r.Get("/customers/{id}", s.getCustomer)
		r.Post("/customers/{id}/validate", s.validateCustomer)
		r.Post("/customers/{customerId}/tokens", s.addCustomerTokens)

		r.Get("/subscriptions", s.listSubscriptions)
		r.Post("/subscriptions/{id}/cancel", s.cancelSubscription)

		r.Get("/dashboard/summary", s.dashboardSummary)
	})

	return r
}

func (s *Server) requestsPerMinute() int {
	rl := s.cfg().RateLimit
	if !rl.Enabled {
		return -1
	}
	return rl.RequestsPerMinute
}

// health reports the console as degraded, not down, while the backend is
// unhealthy.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  "healthy",
		"version": s.version,
	}
	if s.backend != nil {
		snap := s.backend.Snapshot()
		body["backend"] = snap
		if snap.State == health.StateUnhealthy.String() {
			body["status"] = "degraded"
		}
	}
	httputil.WriteJSON(w, http.StatusOK, body)
}

// requestIDMiddleware keeps a caller-supplied request id, or assigns one, and
// echoes it on the response. Backend calls made for the request reuse it.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(apiclient.HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(apiclient.HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

type requestIDKey struct{}

func requestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return id
}
