//go:build integration

package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"checkin/pkg/testutil/containers"
)

type RedisFilterSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	filter *RedisFilter
}

func TestRedisFilterSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisFilterSuite))
}

func (s *RedisFilterSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.filter = NewRedis(s.redis.Client, 500*time.Millisecond)
}

func (s *RedisFilterSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisFilterSuite) TestRejectsRepeatUntilExpiry() {
	ctx := context.Background()
	key := Key{AttendeeID: "ab12345", OrganizationID: "google"}

	reject, err := s.filter.ShouldReject(ctx, key)
	s.Require().NoError(err)
	s.False(reject)

	reject, err = s.filter.ShouldReject(ctx, key)
	s.Require().NoError(err)
	s.True(reject)

	s.Eventually(func() bool {
		reject, err := s.filter.ShouldReject(ctx, key)
		return err == nil && !reject
	}, 3*time.Second, 100*time.Millisecond)
}

func (s *RedisFilterSuite) TestRelease() {
	ctx := context.Background()
	key := Key{AttendeeID: "ab12345", OrganizationID: "meta"}

	_, err := s.filter.ShouldReject(ctx, key)
	s.Require().NoError(err)
	s.Require().NoError(s.filter.Release(ctx, key))

	reject, err := s.filter.ShouldReject(ctx, key)
	s.Require().NoError(err)
	s.False(reject)
}
