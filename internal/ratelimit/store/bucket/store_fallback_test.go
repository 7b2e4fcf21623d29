package bucket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin/internal/ratelimit/models"
	"checkin/pkg/platform/circuit"
)

type flakyStore struct {
	calls int
	err   error
}

func (f *flakyStore) AllowN(context.Context, string, int, int, time.Duration) (*models.RateLimitResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.RateLimitResult{Allowed: true, Limit: 99, Remaining: 98}, nil
}

func (f *flakyStore) Reset(context.Context, string) error { return f.err }

func TestFallbackStore(t *testing.T) {
	ctx := context.Background()

	t.Run("healthy primary answers", func(t *testing.T) {
		primary := &flakyStore{}
		s := NewFallback(primary, New(), nil, nil)

		res, err := s.AllowN(ctx, "attendee:a", 1, 5, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 99, res.Limit)
	})

	t.Run("failing primary falls back and opens the breaker", func(t *testing.T) {
		primary := &flakyStore{err: errors.New("redis: i/o timeout")}
		breaker := circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
		s := NewFallback(primary, New(), breaker, nil)

		for range 4 {
			res, err := s.AllowN(ctx, "attendee:a", 1, 5, time.Minute)
			require.NoError(t, err)
			assert.Equal(t, 5, res.Limit)
		}
		assert.Equal(t, 2, primary.calls, "open breaker skips the primary")
		assert.True(t, breaker.IsOpen())
	})

	t.Run("reset propagates primary errors", func(t *testing.T) {
		s := NewFallback(&flakyStore{err: errors.New("down")}, New(), nil, nil)
		assert.Error(t, s.Reset(ctx, "attendee:a"))
	})
}
