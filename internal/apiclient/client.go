package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jaqcquesndav/Wanzo-admin/internal/endpoints"
	"github.com/jaqcquesndav/Wanzo-admin/internal/session"
	"github.com/jaqcquesndav/Wanzo-admin/internal/telemetry"
)

// DefaultTimeout bounds every attempt (initial and retry) of a call.
const DefaultTimeout = 30 * time.Second

// Navigator performs the terminal "go to login" side effect after an
// unrecoverable authentication failure.
type Navigator interface {
	RedirectToLogin(ctx context.Context)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context)

func (f NavigatorFunc) RedirectToLogin(ctx context.Context) { f(ctx) }

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// DemoMode enables demo-account detection on outbound requests.
	DemoMode    bool
	DemoMatcher session.DemoMatcher
	// Tokens is used when the call context carries no token source.
	Tokens    session.TokenSource
	Navigator Navigator
	Metrics   *telemetry.Metrics
	// Health receives the outcome of every call.
	Health     HealthRecorder
	HTTPClient *http.Client
}

// HealthRecorder tracks whether the backend is answering.
type HealthRecorder interface {
	RecordSuccess()
	RecordFailure()
}

// Client sends backend calls through an ordered request/response stage pipeline.
type Client struct {
	baseURL  string
	timeout  time.Duration
	http     *http.Client
	tokens   session.TokenSource
	demoMode bool
	demo     session.DemoMatcher
	nav      Navigator
	metrics  clientMetrics
	health   HealthRecorder

	requestStages  []RequestStage
	responseStages []ResponseStage

	usingDemo atomic.Bool
}

func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        64,
				MaxIdleConnsPerHost: 64,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		}
	}

	c := &Client{
		baseURL:  strings.TrimSuffix(opts.BaseURL, "/"),
		timeout:  timeout,
		http:     httpClient,
		tokens:   opts.Tokens,
		demoMode: opts.DemoMode,
		demo:     opts.DemoMatcher,
		nav:      opts.Navigator,
		metrics:  clientMetrics{m: opts.Metrics},
		health:   opts.Health,
	}
	c.requestStages = []RequestStage{setDefaultHeaders, c.authorize}
	c.responseStages = []ResponseStage{c.handleUnauthorized, classify}
	return c
}

type tokenSourceKey struct{}

// WithTokenSource overrides the client's default token source for calls made with ctx.
func WithTokenSource(ctx context.Context, src session.TokenSource) context.Context {
	return context.WithValue(ctx, tokenSourceKey{}, src)
}

func (c *Client) tokenSource(ctx context.Context) session.TokenSource {
	if src, ok := ctx.Value(tokenSourceKey{}).(session.TokenSource); ok && src != nil {
		return src
	}
	return c.tokens
}

type suppressInvalidationKey struct{}

// WithoutInvalidation is for calls made on behalf of a session that is not open
// yet. An unrecoverable 401 is still returned, but the token source is left
// alone and no login redirect is counted or navigated.
func WithoutInvalidation(ctx context.Context) context.Context {
	return context.WithValue(ctx, suppressInvalidationKey{}, true)
}

func invalidationSuppressed(ctx context.Context) bool {
	v, _ := ctx.Value(suppressInvalidationKey{}).(bool)
	return v
}

// UsingDemoAccount reports the demo classification of the most recent request.
func (c *Client) UsingDemoAccount() bool {
	return c.usingDemo.Load()
}

// Do runs req through the pipeline. Any response with status >= 400, and any
// transport failure, is returned as an *Error.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	header := req.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	ex := &Exchange{
		Request: req,
		Header:  header,
		Tokens:  c.tokenSource(ctx),
	}

	for _, stage := range c.requestStages {
		if err := stage(ctx, ex); err != nil {
			return nil, err
		}
	}
	c.usingDemo.Store(ex.Auth.Demo)

	ex.Response, ex.Err = c.dispatch(ctx, ex)

	var rejected error
	for _, stage := range c.responseStages {
		if err := stage(ctx, ex); err != nil {
			rejected = err
			break
		}
	}

	c.observe(ex, rejected, time.Since(start))
	if rejected != nil {
		return nil, rejected
	}
	return ex.Response, nil
}

// Call resolves a logical endpoint, sends body as JSON and decodes the response into out.
func (c *Client) Call(ctx context.Context, method, endpoint string, params map[string]string, body, out any) error {
	path, err := endpoints.Path(endpoint, params)
	if err != nil {
		return err
	}
	req, err := NewRequest(method, path, body)
	if err != nil {
		return err
	}
	req.Endpoint = endpoint

	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// dispatch performs one attempt. A nil response with a non-nil error means no
// response was received.
func (c *Client) dispatch(ctx context.Context, ex *Exchange) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if len(ex.Request.Body) > 0 {
		body = bytes.NewReader(ex.Request.Body)
	}
	httpReq, err := http.NewRequestWithContext(attemptCtx, ex.Request.Method, c.url(ex.Request.Path), body)
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header = ex.Header.Clone()

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func (c *Client) observe(ex *Exchange, rejected error, elapsed time.Duration) {
	endpoint := ex.Request.Endpoint
	if endpoint == "" {
		endpoint = "other"
	}
	status := "none"
	if ex.Response != nil {
		status = strconv.Itoa(ex.Response.StatusCode)
	}
	kind := "ok"
	if apiErr, ok := AsError(rejected); ok {
		kind = string(apiErr.Kind)
	} else if rejected != nil {
		kind = "error"
	}

	c.metrics.request(telemetry.RequestLabels{
		Endpoint:   endpoint,
		Method:     ex.Request.Method,
		Status:     status,
		Kind:       kind,
		DurationMs: float64(elapsed.Milliseconds()),
	})

	if c.health != nil {
		switch {
		case kind == string(KindNetwork) || kind == string(KindServer):
			c.health.RecordFailure()
		case ex.Response != nil:
			c.health.RecordSuccess()
		}
	}

	if rejected != nil {
		slog.Warn("backend call failed",
			"request_id", ex.Header.Get(HeaderRequestID),
			"endpoint", endpoint,
			"method", ex.Request.Method,
			"status", status,
			"kind", kind,
			"retried", ex.Retried,
		)
	}
}

// clientMetrics makes metric recording optional.
type clientMetrics struct {
	m *telemetry.Metrics
}

func (cm clientMetrics) request(labels telemetry.RequestLabels) {
	if cm.m != nil {
		cm.m.RecordRequest(labels)
	}
}

func (cm clientMetrics) refresh(outcome string) {
	if cm.m != nil {
		cm.m.RecordRefresh(outcome)
	}
}

func (cm clientMetrics) redirect(reason string) {
	if cm.m != nil {
		cm.m.RecordAuthRedirect(reason)
	}
}
