package apiclient

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/jaqcquesndav/Wanzo-admin/internal/endpoints"
	"github.com/jaqcquesndav/Wanzo-admin/internal/session"
)

const (
	HeaderDemoUser  = "X-Demo-User"
	HeaderAuthType  = "X-Auth-Type"
	HeaderRequestID = "X-Request-ID"

	authTypeThirdParty = "auth0"
)

// AuthMode is the authentication classification of one outbound request.
type AuthMode string

const (
	ModeAnonymous  AuthMode = "anonymous"
	ModeStandard   AuthMode = "standard"
	ModeDemo       AuthMode = "demo"
	ModeThirdParty AuthMode = "third-party"
)

// AuthState is decided once by the request stage and read by the response
// stage of the same exchange. It never leaks between exchanges.
type AuthState struct {
	Token      string
	Mode       AuthMode
	Demo       bool
	ThirdParty bool
}

// Exchange is one request/response pair moving through the pipeline.
type Exchange struct {
	Request *Request
	// Header is the working header set for the next attempt. Stages edit it;
	// Request.Header is left as the caller built it.
	Header http.Header
	Tokens session.TokenSource
	Auth   AuthState

	Response *Response
	// Err is the transport failure of the last attempt, when no response arrived.
	Err error
	// Retried is set once the single post-refresh retry has been dispatched.
	Retried bool
}

// RequestStage prepares an exchange before dispatch. A non-nil error rejects the call.
type RequestStage func(ctx context.Context, ex *Exchange) error

// ResponseStage inspects the outcome of a dispatch. It may replace the outcome
// (for example by retrying) and return nil to hand it to the next stage, or
// return an error to reject the call with it.
type ResponseStage func(ctx context.Context, ex *Exchange) error

// setDefaultHeaders applies the JSON content negotiation headers and a request id.
func setDefaultHeaders(ctx context.Context, ex *Exchange) error {
	if ex.Header.Get("Content-Type") == "" {
		ex.Header.Set("Content-Type", "application/json")
	}
	if ex.Header.Get("Accept") == "" {
		ex.Header.Set("Accept", "application/json")
	}
	if ex.Header.Get(HeaderRequestID) == "" {
		ex.Header.Set(HeaderRequestID, uuid.NewString())
	}
	if left := endpoints.Unresolved(ex.Request.Path); len(left) > 0 {
		slog.Warn("dispatching path with unresolved placeholders",
			"path", ex.Request.Path,
			"endpoint", ex.Request.Endpoint,
			"placeholders", left,
		)
	}
	return nil
}

// authorize attaches the bearer token and tags demo or third-party sessions.
func (c *Client) authorize(ctx context.Context, ex *Exchange) error {
	ex.Auth = AuthState{Mode: ModeAnonymous}
	src := ex.Tokens
	if src == nil {
		return nil
	}
	ex.Auth.ThirdParty = src.IsThirdParty()

	token := src.Token()
	if token == "" {
		return nil
	}
	ex.Header.Set("Authorization", "Bearer "+token)
	ex.Auth.Token = token
	ex.Auth.Mode = ModeStandard

	if c.demoMode {
		user := src.StoredUser()
		if user != nil && c.demo != nil && c.demo.IsDemoEmail(user.Email) {
			ex.Header.Set(HeaderDemoUser, "true")
			ex.Auth.Demo = true
			ex.Auth.Mode = ModeDemo
		}
	} else if ex.Auth.ThirdParty {
		ex.Header.Set(HeaderAuthType, authTypeThirdParty)
		ex.Auth.Mode = ModeThirdParty
	}
	return nil
}

// handleUnauthorized runs the 401 policy: demo and third-party sessions are
// invalidated outright, standard sessions get exactly one refresh and one retry.
func (c *Client) handleUnauthorized(ctx context.Context, ex *Exchange) error {
	if ex.Retried || ex.Response == nil || ex.Response.StatusCode != http.StatusUnauthorized {
		return nil
	}
	original := statusError(ex.Response)

	switch {
	case ex.Auth.Demo:
		slog.Warn("demo account authentication error, redirecting to login", "endpoint", ex.Request.Endpoint)
		c.invalidate(ctx, ex, "demo")
		return unrecoverable(original.Message, original)

	case ex.Auth.ThirdParty:
		slog.Warn("third-party token expired, redirecting to login", "endpoint", ex.Request.Endpoint)
		c.invalidate(ctx, ex, "third_party")
		return unrecoverable(original.Message, original)

	case ex.Tokens == nil:
		original.Kind = KindAuthExpired
		return original
	}

	token, err := ex.Tokens.Refresh(ctx)
	if err != nil {
		slog.Error("token refresh failed", "error", err, "endpoint", ex.Request.Endpoint)
		c.metrics.refresh("failure")
		c.invalidate(ctx, ex, "refresh_failed")
		return unrecoverable(err.Error(), err)
	}
	if token == "" {
		// Nothing to retry with; the 401 is rejected as is and the session kept.
		slog.Warn("token refresh returned no token", "endpoint", ex.Request.Endpoint)
		c.metrics.refresh("empty")
		return nil
	}
	c.metrics.refresh("success")

	header := ex.Header.Clone()
	header.Set("Authorization", "Bearer "+token)
	ex.Header = header
	ex.Auth.Token = token
	ex.Response, ex.Err = c.dispatch(ctx, ex)
	ex.Retried = true
	return nil
}

// classify maps the final outcome onto the error taxonomy.
func classify(ctx context.Context, ex *Exchange) error {
	if ex.Err != nil {
		return &Error{
			Kind:    KindNetwork,
			Message: MessageNetwork,
			Err:     ex.Err,
		}
	}

	resp := ex.Response
	switch {
	case resp.StatusCode < http.StatusBadRequest:
		return nil

	case resp.StatusCode == http.StatusUnprocessableEntity:
		return &Error{
			Kind:             KindValidation,
			StatusCode:       resp.StatusCode,
			Message:          MessageValidation,
			ValidationErrors: decodeFieldErrors(resp.Body),
			Body:             resp.Body,
			Err:              &HTTPError{StatusCode: resp.StatusCode, Header: resp.Header, Body: resp.Body},
		}

	case resp.StatusCode >= http.StatusInternalServerError:
		return &Error{
			Kind:       KindServer,
			StatusCode: resp.StatusCode,
			Message:    MessageServer,
			Body:       resp.Body,
			Err:        &HTTPError{StatusCode: resp.StatusCode, Header: resp.Header, Body: resp.Body},
		}

	default:
		return statusError(resp)
	}
}

// invalidate clears the local session and then navigates to login.
func (c *Client) invalidate(ctx context.Context, ex *Exchange, reason string) {
	if invalidationSuppressed(ctx) {
		slog.Debug("auth failure invalidation suppressed", "reason", reason, "endpoint", ex.Request.Endpoint)
		return
	}
	if ex.Tokens != nil {
		if err := ex.Tokens.Logout(ctx); err != nil {
			slog.Error("logout after auth failure failed", "error", err, "reason", reason)
		}
	}
	c.metrics.redirect(reason)
	if c.nav != nil {
		c.nav.RedirectToLogin(ctx)
	}
}

func statusError(resp *Response) *Error {
	httpErr := &HTTPError{StatusCode: resp.StatusCode, Header: resp.Header, Body: resp.Body}
	return &Error{
		Kind:       KindOther,
		StatusCode: resp.StatusCode,
		Message:    httpErr.Error(),
		Body:       resp.Body,
		Err:        httpErr,
	}
}

func unrecoverable(message string, cause error) *Error {
	return &Error{
		Kind:       KindAuthUnrecoverable,
		StatusCode: http.StatusUnauthorized,
		Message:    message,
		Err:        cause,
	}
}
