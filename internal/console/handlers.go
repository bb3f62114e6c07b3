package console

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jaqcquesndav/Wanzo-admin/internal/apiclient"
	"github.com/jaqcquesndav/Wanzo-admin/internal/forms"
	"github.com/jaqcquesndav/Wanzo-admin/internal/httputil"
	"github.com/jaqcquesndav/Wanzo-admin/internal/session"
)

const maxBodyBytes = 1 << 20

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// rejectForm writes local validation failures in the same shape as backend ones.
func (s *Server) rejectForm(w http.ResponseWriter, r *http.Request, err error) {
	var ferrs *forms.Errors
	if errors.As(err, &ferrs) {
		norm := apiclient.HandleAPIError(ferrs.APIError())
		httputil.WriteValidationError(w, requestID(r), norm.Message, norm.Errors)
		return
	}
	httputil.WriteBadRequestError(w, requestID(r), "Invalid request body: "+err.Error())
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	s.forward(w, r, http.MethodGet, "users.list", nil, nil)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	in := forms.NewUserInput()
	if err := decodeBody(r, &in); err != nil {
		s.rejectForm(w, r, err)
		return
	}
	if err := in.Validate(false); err != nil {
		s.rejectForm(w, r, err)
		return
	}
	s.forward(w, r, http.MethodPost, "users.create", nil, in.Submission())
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	s.forward(w, r, http.MethodDelete, "users.delete", map[string]string{"id": chi.URLParam(r, "id")}, nil)
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	var in forms.PasswordChange
	if err := decodeBody(r, &in); err != nil {
		s.rejectForm(w, r, err)
		return
	}
	if err := in.Validate(); err != nil {
		s.rejectForm(w, r, err)
		return
	}
	s.forward(w, r, http.MethodPut, "settings.security", nil, in.Submission())
}

// deleteAccount removes the signed-in user and ends their console session.
func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request) {
	src, _ := session.SourceFromContext(r.Context())
	user := src.StoredUser()
	if user == nil || user.ID == "" {
		httputil.WriteBadRequestError(w, requestID(r), "Session has no user id")
		return
	}

	ctx := callContext(r)
	req, err := backendRequest(r, http.MethodDelete, "users.delete", map[string]string{"id": user.ID}, nil)
	if err != nil {
		s.writeError(ctx, w, r, err)
		return
	}
	if _, err := s.client.Do(ctx, req); err != nil {
		s.writeError(ctx, w, r, err)
		return
	}

	if err := src.Logout(r.Context()); err != nil {
		httputil.WriteInternalError(w, requestID(r), "Account deleted but session could not be closed")
		return
	}
	s.clearCookie(w, s.cfg().Auth.CookieName)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getCustomer(w http.ResponseWriter, r *http.Request) {
	s.forward(w, r, http.MethodGet, "customers.getById", map[string]string{"id": chi.URLParam(r, "id")}, nil)
}

func (s *Server) validateCustomer(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if err := decodeBody(r, &body); err != nil {
		s.rejectForm(w, r, err)
		return
	}
	var payload any
	if len(body) > 0 {
		payload = body
	}
	s.forward(w, r, http.MethodPost, "customers.validate", map[string]string{"id": chi.URLParam(r, "id")}, payload)
}

// TokenCredit is the request body for crediting tokens to a customer.
type TokenCredit struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) addCustomerTokens(w http.ResponseWriter, r *http.Request) {
	var in TokenCredit
	if err := decodeBody(r, &in); err != nil {
		s.rejectForm(w, r, err)
		return
	}
	if in.Amount <= 0 {
		errs := &forms.Errors{}
		errs.Add("amount", "Amount must be a positive number of tokens.")
		s.rejectForm(w, r, errs)
		return
	}
	params := map[string]string{"customerId": chi.URLParam(r, "customerId")}
	s.forward(w, r, http.MethodPost, "tokens.addCustomerTokens", params, in)
}

func (s *Server) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	s.forward(w, r, http.MethodGet, "subscriptions.list", nil, nil)
}

func (s *Server) cancelSubscription(w http.ResponseWriter, r *http.Request) {
	s.forward(w, r, http.MethodPost, "subscriptions.cancel", map[string]string{"id": chi.URLParam(r, "id")}, nil)
}

func (s *Server) dashboardSummary(w http.ResponseWriter, r *http.Request) {
	s.forward(w, r, http.MethodGet, "dashboard.summary", nil, nil)
}
