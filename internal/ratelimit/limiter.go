package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Result describes the outcome of one Allow call.
type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	CurrentHits int64
}

// Limiter decides whether another attempt for key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Counter is the storage a fixed window limiter needs.
// *cache.Client implements it.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, time.Duration, error)
}

// FixedWindow counts hits per key in windows of fixed length (INCR + EXPIRE).
// When the counter store fails the attempt is allowed and the error returned,
// so callers can log it without locking users out.
type FixedWindow struct {
	counter Counter
	prefix  string
	max     int64
	window  time.Duration
	now     func() time.Time
}

// NewFixedWindow creates a limiter allowing max hits per window.
// A max below 1 disables limiting.
func NewFixedWindow(counter Counter, prefix string, max int, window time.Duration) *FixedWindow {
	if prefix == "" {
		prefix = "rl:"
	}
	return &FixedWindow{
		counter: counter,
		prefix:  prefix,
		max:     int64(max),
		window:  window,
		now:     time.Now,
	}
}

// Allow records a hit for key.
func (l *FixedWindow) Allow(ctx context.Context, key string) (Result, error) {
	if l.max < 1 || l.window <= 0 {
		return Result{Allowed: true}, nil
	}

	winStart := l.now().UTC().Truncate(l.window)
	redisKey := fmt.Sprintf("%s%s:%d", l.prefix, strings.ReplaceAll(key, " ", "_"), winStart.Unix())

	hits, ttl, err := l.counter.Incr(ctx, redisKey, l.window)
	if err != nil {
		return Result{Allowed: true, Remaining: l.max}, fmt.Errorf("rate limit counter: %w", err)
	}

	res := Result{
		Allowed:     hits <= l.max,
		Remaining:   max(l.max-hits, 0),
		CurrentHits: hits,
	}
	if !res.Allowed {
		res.RetryAfter = ttl
		if res.RetryAfter <= 0 {
			res.RetryAfter = l.window
		}
	}
	return res, nil
}

// Noop allows everything.
type Noop struct{}

// Allow always allows.
func (Noop) Allow(context.Context, string) (Result, error) {
	return Result{Allowed: true}, nil
}
