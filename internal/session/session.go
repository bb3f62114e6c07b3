package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

var (
	// ErrNoSession is returned when a session does not exist or has expired.
	ErrNoSession = errors.New("session not found")
	// ErrRefreshRejected is returned when the backend or identity provider refuses a refresh.
	ErrRefreshRejected = errors.New("token refresh rejected")
	// ErrNoRefreshToken is returned when a session holds nothing to refresh with.
	ErrNoRefreshToken = errors.New("session has no refresh token")
)

// Mode records how a console session was established.
type Mode string

const (
	ModeStandard   Mode = "standard"
	ModeThirdParty Mode = "third-party"
)

// User is the identity stored alongside a session.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Session is a console login: the backend credentials plus who they belong to.
type Session struct {
	ID           string    `json:"id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	User         User      `json:"user"`
	Mode         Mode      `json:"mode"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the session lifetime has passed.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Store persists sessions by ID.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// TokenSource is the view of the auth state the API client reads on each call.
type TokenSource interface {
	// Token returns the current bearer token, or "" when unauthenticated.
	Token() string
	// StoredUser returns the user the token belongs to, or nil.
	StoredUser() *User
	// IsThirdParty reports whether the session came from the external identity provider.
	IsThirdParty() bool
	// Refresh obtains a new bearer token.
	Refresh(ctx context.Context) (string, error)
	// Logout clears local session state.
	Logout(ctx context.Context) error
}

// NewID returns a random opaque session identifier.
func NewID() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// safePrefix returns a loggable prefix of a secret.
func safePrefix(secret string) string {
	if len(secret) > 8 {
		return secret[:8] + "..."
	}
	return secret
}
