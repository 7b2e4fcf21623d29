package bucket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"checkin/internal/ratelimit/models"
)

const (
	testLimit  = 10
	testWindow = time.Minute
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type InMemoryBucketStoreSuite struct {
	suite.Suite
	clock *manualClock
	store *InMemoryBucketStore
	ctx   context.Context
}

func TestInMemoryBucketStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryBucketStoreSuite))
}

func (s *InMemoryBucketStoreSuite) SetupTest() {
	s.clock = &manualClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	s.store = New(WithClock(s.clock.Now))
	s.ctx = context.Background()
}

func (s *InMemoryBucketStoreSuite) TestAllow() {
	s.Run("first request allowed", func() {
		result, err := s.store.Allow(s.ctx, "attendee:first", testLimit, testWindow)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(testLimit, result.Limit)
		s.Equal(testLimit-1, result.Remaining)
		s.Equal(s.clock.Now().Add(testWindow), result.ResetAt)
	})

	s.Run("requests up to limit allowed", func() {
		var result *models.RateLimitResult
		var err error
		for range testLimit {
			result, err = s.store.Allow(s.ctx, "attendee:limit", testLimit, testWindow)
		}
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(0, result.Remaining)
	})

	s.Run("request over limit denied with retry hint", func() {
		for range testLimit {
			_, err := s.store.Allow(s.ctx, "attendee:over", testLimit, testWindow)
			require.NoError(s.T(), err)
		}
		s.clock.Advance(15 * time.Second)

		result, err := s.store.Allow(s.ctx, "attendee:over", testLimit, testWindow)
		s.Require().NoError(err)
		s.False(result.Allowed)
		s.Equal(testLimit, result.Limit)
		s.Equal(0, result.Remaining)
		s.Equal(45, result.RetryAfter)
	})

	s.Run("window slides instead of resetting on a boundary", func() {
		key := "attendee:slide"
		for range testLimit / 2 {
			_, err := s.store.Allow(s.ctx, key, testLimit, testWindow)
			s.Require().NoError(err)
		}
		s.clock.Advance(40 * time.Second)
		for range testLimit / 2 {
			_, err := s.store.Allow(s.ctx, key, testLimit, testWindow)
			s.Require().NoError(err)
		}

		s.clock.Advance(10 * time.Second)
		result, err := s.store.Allow(s.ctx, key, testLimit, testWindow)
		s.Require().NoError(err)
		s.False(result.Allowed, "all ten entries are still inside the last minute")

		s.clock.Advance(11 * time.Second)
		result, err = s.store.Allow(s.ctx, key, testLimit, testWindow)
		s.Require().NoError(err)
		s.True(result.Allowed, "the first five entries have left the window")
		s.Equal(testLimit-6, result.Remaining)
	})
}

func (s *InMemoryBucketStoreSuite) TestAllowN() {
	s.Run("cost of 5 consumes 5 tokens", func() {
		result, err := s.store.AllowN(s.ctx, "attendee:five", 5, testLimit, testWindow)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(5, result.Remaining)
	})

	s.Run("cost greater than remaining denied", func() {
		first, err := s.store.AllowN(s.ctx, "attendee:deny", 7, testLimit, testWindow)
		s.Require().NoError(err)
		s.Require().True(first.Allowed)

		result, err := s.store.AllowN(s.ctx, "attendee:deny", 4, testLimit, testWindow)
		s.Require().NoError(err)
		s.False(result.Allowed)

		count, err := s.store.GetCurrentCount(s.ctx, "attendee:deny")
		s.Require().NoError(err)
		s.Equal(7, count, "denied requests are not recorded")
	})
}

func (s *InMemoryBucketStoreSuite) TestReset() {
	_, err := s.store.AllowN(s.ctx, "attendee:reset", testLimit, testLimit, testWindow)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Reset(s.ctx, "attendee:reset"))

	result, err := s.store.AllowN(s.ctx, "attendee:reset", testLimit, testLimit, testWindow)
	s.Require().NoError(err)
	s.True(result.Allowed)
	s.Equal(0, result.Remaining)
}

func (s *InMemoryBucketStoreSuite) TestPrune() {
	_, err := s.store.Allow(s.ctx, "attendee:old", testLimit, testWindow)
	s.Require().NoError(err)
	s.clock.Advance(30 * time.Second)
	_, err = s.store.Allow(s.ctx, "attendee:new", testLimit, testWindow)
	s.Require().NoError(err)

	s.clock.Advance(31 * time.Second)
	s.Equal(1, s.store.Prune())

	count, err := s.store.GetCurrentCount(s.ctx, "attendee:new")
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *InMemoryBucketStoreSuite) TestAllowNSweepsExpiredBuckets() {
	store := New(WithClock(s.clock.Now), WithSweepEvery(3))
	for _, key := range []string{"attendee:a", "attendee:b"} {
		_, err := store.Allow(s.ctx, key, testLimit, testWindow)
		s.Require().NoError(err)
	}
	s.clock.Advance(testWindow + time.Second)

	_, err := store.Allow(s.ctx, "attendee:c", testLimit, testWindow)
	s.Require().NoError(err)
	s.Len(store.buckets, 1)
	s.Contains(store.buckets, "attendee:c")
}

func (s *InMemoryBucketStoreSuite) TestConcurrent() {
	limit := 100
	key := "attendee:concurrent"
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0

	for range 200 {
		wg.Go(func() {
			result, err := s.store.Allow(s.ctx, key, limit, testWindow)
			s.NoError(err)
			if result != nil && result.Allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		})
	}

	wg.Wait()
	s.Equal(limit, allowedCount)
}
