package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const redisCacheTTL = 5 * time.Minute
const redisKeyPrefix = "wanzo:session:"

// CachedStore implements Store with PostgreSQL as the source of truth and Redis as a read cache.
type CachedStore struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

// NewCachedStore creates a session store. rdb may be nil to disable caching.
func NewCachedStore(db *pgxpool.Pool, rdb *redis.Client) *CachedStore {
	return &CachedStore{db: db, redis: rdb}
}

func (s *CachedStore) Get(ctx context.Context, id string) (*Session, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, redisKeyPrefix+id).Bytes()
		if err == nil {
			var sess Session
			if err := json.Unmarshal(cached, &sess); err == nil {
				if sess.Expired(time.Now()) {
					return nil, ErrNoSession
				}
				return &sess, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			slog.Warn("session cache read failed", "error", err)
		}
	}

	sess, err := s.lookupDB(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache(ctx, sess)
	return sess, nil
}

func (s *CachedStore) lookupDB(ctx context.Context, id string) (*Session, error) {
	var sess Session
	var refresh *string

	err := s.db.QueryRow(ctx, `
		SELECT id, access_token, refresh_token, user_id, email, name, role, mode, expires_at
		FROM console_sessions
		WHERE id = $1
		  AND expires_at > NOW()
	`, id).Scan(
		&sess.ID,
		&sess.AccessToken,
		&refresh,
		&sess.User.ID,
		&sess.User.Email,
		&sess.User.Name,
		&sess.User.Role,
		&sess.Mode,
		&sess.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("query console_sessions: %w", err)
	}
	if refresh != nil {
		sess.RefreshToken = *refresh
	}
	return &sess, nil
}

func (s *CachedStore) Save(ctx context.Context, sess *Session) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO console_sessions (id, access_token, refresh_token, user_id, email, name, role, mode, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			access_token  = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at    = EXCLUDED.expires_at,
			updated_at    = NOW()
	`, sess.ID, sess.AccessToken, nilIfEmpty(sess.RefreshToken), sess.User.ID, sess.User.Email,
		sess.User.Name, sess.User.Role, string(sess.Mode), sess.ExpiresAt)
	if err != nil {
		return fmt.Errorf("upsert console_sessions: %w", err)
	}

	s.cache(ctx, sess)
	return nil
}

func (s *CachedStore) Delete(ctx context.Context, id string) error {
	if s.redis != nil {
		if err := s.redis.Del(ctx, redisKeyPrefix+id).Err(); err != nil {
			slog.Warn("session cache delete failed", "error", err)
		}
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM console_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete console_sessions: %w", err)
	}
	return nil
}

func (s *CachedStore) cache(ctx context.Context, sess *Session) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return
	}
	ttl := redisCacheTTL
	if remaining := time.Until(sess.ExpiresAt); !sess.ExpiresAt.IsZero() && remaining < ttl {
		ttl = remaining
	}
	if ttl <= 0 {
		return
	}
	s.redis.Set(ctx, redisKeyPrefix+sess.ID, data, ttl)
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
