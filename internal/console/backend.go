package console

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jaqcquesndav/Wanzo-admin/internal/apiclient"
	"github.com/jaqcquesndav/Wanzo-admin/internal/endpoints"
	"github.com/jaqcquesndav/Wanzo-admin/internal/httputil"
	"github.com/jaqcquesndav/Wanzo-admin/internal/session"
)

// callContext prepares the context of a backend call made on behalf of r: the
// request's session becomes the token source and login navigation is recorded.
func callContext(r *http.Request) context.Context {
	ctx := withNavigation(r.Context())
	if src, ok := session.SourceFromContext(ctx); ok {
		ctx = apiclient.WithTokenSource(ctx, src)
	}
	return ctx
}

// backendRequest builds a call to a logical endpoint. GET calls carry the
// incoming query string along.
func backendRequest(r *http.Request, method, endpoint string, params map[string]string, body any) (*apiclient.Request, error) {
	path, err := endpoints.Path(endpoint, params)
	if err != nil {
		return nil, err
	}
	if method == http.MethodGet && r.URL.RawQuery != "" {
		path += "?" + r.URL.RawQuery
	}
	req, err := apiclient.NewRequest(method, path, body)
	if err != nil {
		return nil, err
	}
	req.Endpoint = endpoint
	if id := requestID(r); id != "" {
		req.Header.Set(apiclient.HeaderRequestID, id)
	}
	return req, nil
}

// forward relays a backend call and writes its response unchanged.
func (s *Server) forward(w http.ResponseWriter, r *http.Request, method, endpoint string, params map[string]string, body any) {
	ctx := callContext(r)
	req, err := backendRequest(r, method, endpoint, params, body)
	if err != nil {
		s.writeError(ctx, w, r, err)
		return
	}
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		s.writeError(ctx, w, r, err)
		return
	}
	writeResponse(w, resp)
}

func writeResponse(w http.ResponseWriter, resp *apiclient.Response) {
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}

// writeError renders a failed call. Unrecoverable auth failures follow the
// client's navigation to the login route; every other error is rendered from
// its normalized form.
func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, r *http.Request, err error) {
	reqID := requestID(r)
	norm := apiclient.HandleAPIError(err)

	if navigatedToLogin(ctx) {
		s.redirectToLogin(w, r)
		return
	}

	apiErr, ok := apiclient.AsError(err)
	if !ok {
		slog.Error("console request failed", "request_id", reqID, "path", r.URL.Path, "error", err)
		httputil.WriteInternalError(w, reqID, norm.Message)
		return
	}

	switch apiErr.Kind {
	case apiclient.KindValidation:
		httputil.WriteValidationError(w, reqID, norm.Message, norm.Errors)
	case apiclient.KindServer:
		httputil.WriteBadGatewayError(w, reqID, norm.Message)
	case apiclient.KindNetwork:
		httputil.WriteServiceUnavailableError(w, reqID, norm.Message)
	case apiclient.KindAuthExpired, apiclient.KindAuthUnrecoverable:
		httputil.WriteAuthError(w, reqID, norm.Message)
	default:
		status := apiErr.StatusCode
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		httputil.WriteError(w, reqID, status, "api_error", "backend_rejected", norm.Message)
	}
}

// redirectToLogin clears the session cookie and sends the browser to the login
// route. JSON callers get a 401 with the route in the Location header.
func (s *Server) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	cfg := s.cfg().Auth
	s.clearCookie(w, cfg.CookieName)
	if wantsHTML(r) {
		http.Redirect(w, r, cfg.LoginRoute, http.StatusFound)
		return
	}
	w.Header().Set("Location", cfg.LoginRoute)
	httputil.WriteAuthError(w, requestID(r), "Session expired, please sign in again")
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
