package bucket

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"checkin/internal/ratelimit/models"
)

// TokenBucketStore is a per-key token bucket backed by x/time/rate. It trades
// the exact sliding log for O(1) memory per key: a full bucket of limit
// tokens refills at limit per window.
type TokenBucketStore struct {
	mu         sync.Mutex
	entries    map[string]*tokenEntry
	idleTTL    time.Duration
	sweepEvery int
	calls      int
	now        func() time.Time
}

type tokenEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// TokenOption configures a TokenBucketStore.
type TokenOption func(*TokenBucketStore)

// WithIdleTTL sets how long an untouched key survives Cleanup.
func WithIdleTTL(d time.Duration) TokenOption {
	return func(s *TokenBucketStore) { s.idleTTL = d }
}

// WithTokenSweepEvery sets how many AllowN calls trigger a Cleanup pass.
func WithTokenSweepEvery(n int) TokenOption {
	return func(s *TokenBucketStore) {
		if n > 0 {
			s.sweepEvery = n
		}
	}
}

// WithTokenClock overrides the time source, for tests.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(s *TokenBucketStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTokenBucket creates an empty token bucket store.
func NewTokenBucket(opts ...TokenOption) *TokenBucketStore {
	s := &TokenBucketStore{
		entries:    make(map[string]*tokenEntry),
		idleTTL:    15 * time.Minute,
		sweepEvery: defaultSweepEvery,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow checks if a request is allowed and consumes a token.
func (s *TokenBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	return s.AllowN(ctx, key, 1, limit, window)
}

// AllowN consumes cost tokens when available.
func (s *TokenBucketStore) AllowN(_ context.Context, key string, cost int, limit int, window time.Duration) (*models.RateLimitResult, error) {
	now := s.now()
	every := rate.Every(window / time.Duration(max(limit, 1)))

	s.mu.Lock()
	s.calls++
	if s.calls%s.sweepEvery == 0 {
		s.cleanupLocked(now)
	}
	ent, ok := s.entries[key]
	if !ok || ent.lim.Burst() != limit || ent.lim.Limit() != every {
		ent = &tokenEntry{lim: rate.NewLimiter(every, limit)}
		s.entries[key] = ent
	}
	ent.lastSeen = now
	lim := ent.lim
	s.mu.Unlock()

	if lim.AllowN(now, cost) {
		remaining := int(lim.TokensAt(now))
		return &models.RateLimitResult{
			Allowed:   true,
			Limit:     limit,
			Remaining: max(remaining, 0),
			ResetAt:   now.Add(refillTime(lim, now, limit)),
		}, nil
	}

	r := lim.ReserveN(now, cost)
	var resetAt time.Time
	if r.OK() {
		resetAt = now.Add(r.DelayFrom(now))
		r.CancelAt(now)
	} else {
		resetAt = now.Add(window)
	}
	return &models.RateLimitResult{
		Allowed:    false,
		Limit:      limit,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: models.RetryAfterSeconds(now, resetAt),
	}, nil
}

// Reset forgets a key, restoring a full bucket.
func (s *TokenBucketStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Cleanup removes keys idle for longer than the idle TTL. AllowN also runs
// it every sweepEvery calls.
func (s *TokenBucketStore) Cleanup() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleanupLocked(now)
}

func (s *TokenBucketStore) cleanupLocked(now time.Time) int {
	cutoff := now.Add(-s.idleTTL)
	removed := 0
	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

func refillTime(lim *rate.Limiter, now time.Time, limit int) time.Duration {
	missing := float64(limit) - lim.TokensAt(now)
	if missing <= 0 || lim.Limit() <= 0 {
		return 0
	}
	return time.Duration(missing / float64(lim.Limit()) * float64(time.Second))
}
