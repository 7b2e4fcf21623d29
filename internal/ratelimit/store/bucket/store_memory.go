package bucket

import (
	"context"
	"sync"
	"time"

	"checkin/internal/ratelimit/models"
)

// InMemoryBucketStore implements a per-key sliding window log held in process.
// State is not shared between instances; use RedisBucketStore for that.
type InMemoryBucketStore struct {
	mu         sync.RWMutex
	buckets    map[string]*slidingWindow
	sweepEvery int
	calls      int
	now        func() time.Time
}

// defaultSweepEvery is how many AllowN calls pass between full prunes of the
// in-memory stores.
const defaultSweepEvery = 1024

// slidingWindow tracks request timestamps for sliding window rate limiting.
// A sliding log has no boundary burst: at most limit entries exist in any
// window-long interval.
type slidingWindow struct {
	timestamps []time.Time
	window     time.Duration
}

// Option configures an InMemoryBucketStore.
type Option func(*InMemoryBucketStore)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *InMemoryBucketStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSweepEvery sets how many AllowN calls trigger a prune of expired
// buckets.
func WithSweepEvery(n int) Option {
	return func(s *InMemoryBucketStore) {
		if n > 0 {
			s.sweepEvery = n
		}
	}
}

// New creates a new in-memory bucket store.
func New(opts ...Option) *InMemoryBucketStore {
	s := &InMemoryBucketStore{
		buckets:    make(map[string]*slidingWindow),
		sweepEvery: defaultSweepEvery,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow checks if a request is allowed and increments the counter.
func (s *InMemoryBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	return s.AllowN(ctx, key, 1, limit, window)
}

// AllowN checks if a request with custom cost is allowed.
// Similar to Allow but adds 'cost' number of timestamps instead of 1.
func (s *InMemoryBucketStore) AllowN(_ context.Context, key string, cost int, limit int, window time.Duration) (*models.RateLimitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.calls++
	if s.calls%s.sweepEvery == 0 {
		s.pruneLocked(now)
	}
	sw := s.getOrCreateBucket(key, window)
	sw.cleanup(now)

	if len(sw.timestamps)+cost <= limit {
		for range cost {
			sw.timestamps = append(sw.timestamps, now)
		}
		return &models.RateLimitResult{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit - len(sw.timestamps),
			ResetAt:   sw.timestamps[0].Add(window),
		}, nil
	}

	// The oldest entry leaving the window frees the next slot.
	resetAt := now.Add(window)
	if len(sw.timestamps) > 0 {
		resetAt = sw.timestamps[0].Add(window)
	}
	return &models.RateLimitResult{
		Allowed:    false,
		Limit:      limit,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: models.RetryAfterSeconds(now, resetAt),
	}, nil
}

// Reset clears the rate limit counter for a key.
func (s *InMemoryBucketStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
	return nil
}

// GetCurrentCount returns the current request count for a key.
func (s *InMemoryBucketStore) GetCurrentCount(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sw := s.buckets[key]
	if sw == nil {
		return 0, nil
	}

	sw.cleanup(s.now())
	return len(sw.timestamps), nil
}

// Prune drops buckets whose entries have all expired. It returns the number
// of buckets removed. AllowN also prunes every sweepEvery calls.
func (s *InMemoryBucketStore) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(s.now())
}

func (s *InMemoryBucketStore) pruneLocked(now time.Time) int {
	removed := 0
	for key, sw := range s.buckets {
		sw.cleanup(now)
		if len(sw.timestamps) == 0 {
			delete(s.buckets, key)
			removed++
		}
	}
	return removed
}

// cleanup removes expired timestamps from a sliding window.
func (sw *slidingWindow) cleanup(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

// getOrCreateBucket returns an existing bucket or creates a new one.
// Must be called while holding s.mu lock.
func (s *InMemoryBucketStore) getOrCreateBucket(key string, window time.Duration) *slidingWindow {
	if sw := s.buckets[key]; sw != nil {
		sw.window = window
		return sw
	}
	sw := &slidingWindow{timestamps: []time.Time{}, window: window}
	s.buckets[key] = sw
	return sw
}
