package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin/internal/platform/config"
)

func TestNewWithoutURLIsDisabled(t *testing.T) {
	c, err := New(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), config.RedisConfig{URL: "http://not-redis"})
	assert.Error(t, err)
}

func TestApplyPoolSettings(t *testing.T) {
	opts := &redis.Options{PoolSize: 3, MinIdleConns: 1}
	applyPoolSettings(opts, config.RedisConfig{PoolSize: 25, ReadTimeout: 2 * time.Second})

	assert.Equal(t, 25, opts.PoolSize)
	assert.Equal(t, 1, opts.MinIdleConns, "zero keeps the URL value")
	assert.Equal(t, 2*time.Second, opts.ReadTimeout)
	assert.Zero(t, opts.WriteTimeout)
}

var _ redis.UniversalClient = (*Client)(nil)
