package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed backend call.
type ErrorKind string

const (
	// KindAuthExpired is a 401 that could not be routed through refresh (no token source).
	KindAuthExpired ErrorKind = "auth_expired"
	// KindAuthUnrecoverable is a 401 on a demo or third-party session, or a failed refresh.
	// The session has already been invalidated and the navigator told to go to login.
	KindAuthUnrecoverable ErrorKind = "auth_unrecoverable"
	KindValidation        ErrorKind = "validation"
	KindServer            ErrorKind = "server"
	KindNetwork           ErrorKind = "network"
	// KindOther is any other error status, passed through as received.
	KindOther ErrorKind = "other"
)

const (
	MessageValidation = "Validation error"
	MessageServer     = "Internal server error"
	MessageNetwork    = "Network error"
	MessageFallback   = "An error occurred"
)

// Error is the classified rejection returned by Client.Do.
type Error struct {
	Kind             ErrorKind
	StatusCode       int
	Message          string
	ValidationErrors map[string][]string
	// Body is the raw response body, when a response was received.
	Body []byte
	// Err is the underlying cause: an *HTTPError, a transport error or a refresh error.
	Err error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// IsValidation reports whether the error carries structured field errors.
func (e *Error) IsValidation() bool {
	return e.Kind == KindValidation && e.ValidationErrors != nil
}

// HTTPError is the unclassified failure for a non-2xx/3xx response.
type HTTPError struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request failed with status code %d", e.StatusCode)
}

// NewValidationError builds a validation rejection from field messages, so
// local form checks render the same way as backend 422 responses.
func NewValidationError(fields map[string][]string) *Error {
	return &Error{
		Kind:             KindValidation,
		StatusCode:       http.StatusUnprocessableEntity,
		Message:          MessageValidation,
		ValidationErrors: fields,
	}
}

// AsError extracts a classified *Error from err.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Normalized is the display form of an error.
type Normalized struct {
	Message string              `json:"message"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

// HandleAPIError turns any error into its display form. Validation errors
// yield a fixed message plus the field map; everything else yields the error's
// own message, or a generic fallback.
func HandleAPIError(err error) Normalized {
	if err == nil {
		return Normalized{Message: MessageFallback}
	}
	if apiErr, ok := AsError(err); ok && apiErr.IsValidation() {
		return Normalized{
			Message: MessageValidation,
			Errors:  apiErr.ValidationErrors,
		}
	}
	if msg := err.Error(); msg != "" {
		return Normalized{Message: msg}
	}
	return Normalized{Message: MessageFallback}
}

// validationBody is the expected 422 payload.
type validationBody struct {
	Errors  map[string][]string `json:"errors"`
	Message string              `json:"message,omitempty"`
}

func decodeFieldErrors(body []byte) map[string][]string {
	var vb validationBody
	if err := json.Unmarshal(body, &vb); err != nil {
		return nil
	}
	return vb.Errors
}
