package dedupe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "checkin:dedupe:"

// RedisFilter shares duplicate suppression across instances. Acceptance is a
// single SET NX PX, so two instances racing on one pair cannot both accept.
type RedisFilter struct {
	client redis.UniversalClient
	window time.Duration
}

// NewRedis constructs a Redis backed filter. Non-positive windows use DefaultWindow.
func NewRedis(client redis.UniversalClient, window time.Duration) *RedisFilter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisFilter{client: client, window: window}
}

// ShouldReject reports whether key is already held. Expiry is left to Redis.
func (f *RedisFilter) ShouldReject(ctx context.Context, key Key) (bool, error) {
	err := f.client.SetArgs(ctx, keyPrefix+key.String(), "1", redis.SetArgs{
		Mode: "NX",
		TTL:  f.window,
	}).Err()
	if errors.Is(err, redis.Nil) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("dedupe set: %w", err)
	}
	return false, nil
}

// Release deletes the marker for key.
func (f *RedisFilter) Release(ctx context.Context, key Key) error {
	if err := f.client.Del(ctx, keyPrefix+key.String()).Err(); err != nil {
		return fmt.Errorf("dedupe release: %w", err)
	}
	return nil
}
