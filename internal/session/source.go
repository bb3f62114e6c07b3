package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Source adapts one stored session to TokenSource. The token is read fresh on
// every call, so a refresh performed by one request is seen by the next.
type Source struct {
	store     Store
	refresher Refresher

	mu   sync.RWMutex
	sess *Session
}

// NewSource wraps sess. refresher may be nil, in which case Refresh always fails.
func NewSource(store Store, refresher Refresher, sess *Session) *Source {
	return &Source{store: store, refresher: refresher, sess: sess}
}

func (s *Source) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sess == nil {
		return ""
	}
	return s.sess.AccessToken
}

func (s *Source) StoredUser() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sess == nil {
		return nil
	}
	u := s.sess.User
	return &u
}

func (s *Source) IsThirdParty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess != nil && s.sess.Mode == ModeThirdParty
}

// Session returns a copy of the current session, or nil after Logout.
func (s *Source) Session() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sess == nil {
		return nil
	}
	cp := *s.sess
	return &cp
}

func (s *Source) Refresh(ctx context.Context) (string, error) {
	s.mu.RLock()
	sess := s.sess
	s.mu.RUnlock()

	if sess == nil {
		return "", ErrNoSession
	}
	if s.refresher == nil {
		return "", fmt.Errorf("%w: no refresher configured", ErrRefreshRejected)
	}

	creds, err := s.refresher.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		return "", err
	}

	updated := *sess
	updated.AccessToken = creds.AccessToken
	if creds.RefreshToken != "" {
		updated.RefreshToken = creds.RefreshToken
	}
	if creds.ExpiresIn > 0 {
		updated.ExpiresAt = time.Now().Add(time.Duration(creds.ExpiresIn) * time.Second)
	}

	if s.store != nil {
		if err := s.store.Save(ctx, &updated); err != nil {
			return "", fmt.Errorf("persist refreshed session: %w", err)
		}
	}

	s.mu.Lock()
	s.sess = &updated
	s.mu.Unlock()

	slog.Info("session token refreshed", "session", safePrefix(updated.ID))
	return updated.AccessToken, nil
}

func (s *Source) Logout(ctx context.Context) error {
	s.mu.Lock()
	sess := s.sess
	s.sess = nil
	s.mu.Unlock()

	if sess == nil || s.store == nil {
		return nil
	}
	if err := s.store.Delete(ctx, sess.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
