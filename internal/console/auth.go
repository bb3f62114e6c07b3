package console

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jaqcquesndav/Wanzo-admin/internal/apiclient"
	"github.com/jaqcquesndav/Wanzo-admin/internal/forms"
	"github.com/jaqcquesndav/Wanzo-admin/internal/httputil"
	"github.com/jaqcquesndav/Wanzo-admin/internal/session"
)

const (
	stateCookie = "wanzo_oauth_state"
	stateTTL    = 10 * time.Minute
)

// loginPage sends signed-in users home and everyone else to the identity provider.
func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	cfg := s.cfg().Auth
	if _, ok := session.SourceFromContext(r.Context()); ok {
		http.Redirect(w, r, cfg.HomeRoute, http.StatusFound)
		return
	}
	if !cfg.Provider.Enabled() {
		httputil.WriteServiceUnavailableError(w, requestID(r), "Identity provider is not configured")
		return
	}

	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	p := provider{cfg: cfg.Provider, http: s.http}
	http.Redirect(w, r, p.authorizeURL(state), http.StatusFound)
}

// callback completes the authorization code flow and opens a third-party session.
func (s *Server) callback(w http.ResponseWriter, r *http.Request) {
	cfg := s.cfg().Auth
	reqID := requestID(r)
	q := r.URL.Query()

	if e := q.Get("error"); e != "" {
		slog.Warn("identity provider returned an error", "request_id", reqID, "error", e, "description", q.Get("error_description"))
		httputil.WriteAuthError(w, reqID, "Sign-in failed: "+e)
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != q.Get("state") {
		httputil.WriteBadRequestError(w, reqID, "Invalid sign-in state")
		return
	}
	s.clearCookie(w, stateCookie)

	code := q.Get("code")
	if code == "" {
		httputil.WriteBadRequestError(w, reqID, "Missing authorization code")
		return
	}

	p := provider{cfg: cfg.Provider, http: s.http}
	tokens, err := p.exchange(r.Context(), code)
	if err != nil {
		slog.Error("authorization code exchange failed", "request_id", reqID, "error", err)
		httputil.WriteBadGatewayError(w, reqID, "Sign-in failed")
		return
	}

	sess, err := s.newSession(tokens.AccessToken, tokens.RefreshToken, tokens.ExpiresIn)
	if err != nil {
		httputil.WriteInternalError(w, reqID, "Could not create session")
		return
	}
	sess.Mode = session.ModeThirdParty
	if tokens.IDToken != "" {
		if claims, err := session.InspectToken(tokens.IDToken); err == nil {
			sess.User = mergeUser(sess.User, claims.User())
		}
	}
	s.loadProfile(r, sess)

	if err := s.openSession(w, r, sess); err != nil {
		httputil.WriteInternalError(w, reqID, "Could not create session")
		return
	}
	http.Redirect(w, r, cfg.HomeRoute, http.StatusFound)
}

// signInResponse is the backend login payload.
type signInResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int64        `json:"expiresIn"`
	User         session.User `json:"user"`
}

// signIn opens a standard session with backend-issued credentials.
func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var in forms.Login
	if err := decodeBody(r, &in); err != nil {
		s.rejectForm(w, r, err)
		return
	}
	if err := in.Validate(); err != nil {
		s.rejectForm(w, r, err)
		return
	}

	ctx := withNavigation(r.Context())
	req, err := backendRequest(r, http.MethodPost, "auth.login", nil, in)
	if err != nil {
		s.writeError(ctx, w, r, err)
		return
	}
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		s.writeError(ctx, w, r, err)
		return
	}
	var out signInResponse
	if err := resp.Decode(&out); err != nil || out.AccessToken == "" {
		httputil.WriteBadGatewayError(w, requestID(r), "Unexpected sign-in response")
		return
	}

	sess, err := s.newSession(out.AccessToken, out.RefreshToken, out.ExpiresIn)
	if err != nil {
		httputil.WriteInternalError(w, requestID(r), "Could not create session")
		return
	}
	sess.Mode = session.ModeStandard
	sess.User = mergeUser(sess.User, out.User)

	if err := s.openSession(w, r, sess); err != nil {
		httputil.WriteInternalError(w, requestID(r), "Could not create session")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"user":     sess.User,
		"redirect": s.cfg().Auth.HomeRoute,
	})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	cfg := s.cfg().Auth
	if src, ok := session.SourceFromContext(r.Context()); ok {
		ctx := apiclient.WithTokenSource(withNavigation(r.Context()), src)
		if req, err := backendRequest(r, http.MethodPost, "auth.logout", nil, nil); err == nil {
			if _, err := s.client.Do(ctx, req); err != nil {
				slog.Warn("backend logout failed", "request_id", requestID(r), "error", err)
			}
		}
		if err := src.Logout(r.Context()); err != nil {
			slog.Error("session logout failed", "request_id", requestID(r), "error", err)
		}
	}
	s.clearCookie(w, cfg.CookieName)
	w.WriteHeader(http.StatusNoContent)
}

// newSession builds a session around a fresh access token, reading identity and
// expiry from the token when it is a JWT.
func (s *Server) newSession(accessToken, refreshToken string, expiresIn int64) (*session.Session, error) {
	id, err := session.NewID()
	if err != nil {
		return nil, err
	}
	sess := &session.Session{
		ID:           id,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(s.cfg().Auth.SessionTTL),
	}
	if expiresIn > 0 {
		sess.ExpiresAt = time.Now().Add(time.Duration(expiresIn) * time.Second)
	}
	if claims, err := session.InspectToken(accessToken); err == nil {
		sess.User = claims.User()
		if exp := claims.Expiry(); !exp.IsZero() && expiresIn <= 0 {
			sess.ExpiresAt = exp
		}
	}
	return sess, nil
}

// loadProfile asks the backend who the new session belongs to. Failures keep
// the identity read from the tokens and never invalidate the session being opened.
func (s *Server) loadProfile(r *http.Request, sess *session.Session) {
	src := session.NewSource(nil, nil, sess)
	ctx := apiclient.WithTokenSource(apiclient.WithoutInvalidation(r.Context()), src)

	var me session.User
	req, err := backendRequest(r, http.MethodGet, "auth.me", nil, nil)
	if err != nil {
		return
	}
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		slog.Warn("profile lookup failed", "request_id", requestID(r), "error", err)
		return
	}
	if err := resp.Decode(&me); err == nil {
		sess.User = mergeUser(sess.User, me)
	}
}

func (s *Server) openSession(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	if err := s.store.Save(r.Context(), sess); err != nil {
		slog.Error("session save failed", "request_id", requestID(r), "error", err)
		return err
	}
	cfg := s.cfg().Auth
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	slog.Info("console session opened",
		"request_id", requestID(r),
		"mode", sess.Mode,
		"user_id", sess.User.ID,
		"role", sess.User.Role,
	)
	return nil
}

func (s *Server) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg().Auth.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// mergeUser overlays the non-empty fields of next onto base.
func mergeUser(base, next session.User) session.User {
	if next.ID != "" {
		base.ID = next.ID
	}
	if next.Email != "" {
		base.Email = next.Email
	}
	if next.Name != "" {
		base.Name = next.Name
	}
	if next.Role != "" {
		base.Role = next.Role
	}
	return base
}
