package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LimitResult is the outcome of a rate limit check.
type LimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter performs sliding-window rate limiting. Windows live in Redis sorted
// sets so every console replica shares them; without Redis, or while Redis is
// failing, each replica keeps its own windows in process.
type Limiter struct {
	rdb   *redis.Client
	local *localWindows
	now   func() time.Time
}

func NewLimiter(rdb *redis.Client) *Limiter {
	return &Limiter{
		rdb:   rdb,
		local: &localWindows{windows: make(map[string]*localWindow)},
		now:   time.Now,
	}
}

// slidingWindowScript removes expired entries, then records the hit if the
// window has room.
// KEYS[1] = sorted set key
// ARGV[1] = window start (unix micro)
// ARGV[2] = now (unix micro), used as score and member prefix
// ARGV[3] = limit
// ARGV[4] = key TTL in seconds
// Returns {count, allowed} where allowed is 1 or 0, and the oldest score
// still inside the window.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local window_start = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
local count = redis.call('ZCARD', key)
local allowed = 0

if count < limit then
    redis.call('ZADD', key, now, now .. ':' .. math.random(1000000))
    count = count + 1
    allowed = 1
end
redis.call('EXPIRE', key, ttl)

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local oldest_score = now
if oldest[2] then
    oldest_score = tonumber(oldest[2])
end
return {count, allowed, oldest_score}
`)

// Check records one request against key and reports whether it fits in limit
// requests per window.
func (l *Limiter) Check(ctx context.Context, key string, limit int64, window time.Duration) (LimitResult, error) {
	now := l.now()
	if l.rdb == nil {
		return l.local.check(key, limit, window, now), nil
	}

	ttlSecs := int64(window.Seconds()) + 1
	redisKey := fmt.Sprintf("wanzo:rl:%s", key)

	res, err := slidingWindowScript.Run(ctx, l.rdb, []string{redisKey},
		now.Add(-window).UnixMicro(), now.UnixMicro(), limit, ttlSecs,
	).Int64Slice()
	if err != nil || len(res) < 3 {
		slog.Warn("redis rate limit check failed, using local window", "key", key, "error", err)
		return l.local.check(key, limit, window, now), nil
	}

	oldest := time.UnixMicro(res[2])
	return result(res[0], res[1] == 1, limit, window, oldest, now), nil
}

func result(count int64, allowed bool, limit int64, window time.Duration, oldest, now time.Time) LimitResult {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	resetAt := oldest.Add(window)
	r := LimitResult{Allowed: allowed, Remaining: remaining, ResetAt: resetAt}
	if !allowed {
		r.RetryAfter = resetAt.Sub(now)
		if r.RetryAfter < time.Second {
			r.RetryAfter = time.Second
		}
	}
	return r
}

// localWindows is the in-process sliding window store. Windows of keys that
// stop sending are swept at most once per window length.
type localWindows struct {
	mu        sync.Mutex
	windows   map[string]*localWindow
	lastSweep time.Time
}

type localWindow struct {
	hits   []time.Time
	length time.Duration
}

func (w *localWindows) check(key string, limit int64, window time.Duration, now time.Time) LimitResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	if now.Sub(w.lastSweep) >= window {
		w.sweep(now)
	}

	lw := w.windows[key]
	if lw == nil {
		lw = &localWindow{}
	}
	lw.length = window
	lw.hits = lw.expire(now)

	allowed := int64(len(lw.hits)) < limit
	if allowed {
		lw.hits = append(lw.hits, now)
	}
	if len(lw.hits) == 0 {
		delete(w.windows, key)
	} else {
		w.windows[key] = lw
	}

	oldest := now
	if len(lw.hits) > 0 {
		oldest = lw.hits[0]
	}
	return result(int64(len(lw.hits)), allowed, limit, window, oldest, now)
}

// sweep drops every window whose newest hit has left it.
func (w *localWindows) sweep(now time.Time) {
	for key, lw := range w.windows {
		if n := len(lw.hits); n == 0 || !lw.hits[n-1].After(now.Add(-lw.length)) {
			delete(w.windows, key)
		}
	}
	w.lastSweep = now
}

// expire returns the hits still inside the window ending at now.
func (lw *localWindow) expire(now time.Time) []time.Time {
	start := now.Add(-lw.length)
	kept := lw.hits[:0]
	for _, t := range lw.hits {
		if t.After(start) {
			kept = append(kept, t)
		}
	}
	return kept
}
