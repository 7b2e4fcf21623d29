package bucket

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"checkin/internal/ratelimit/models"
	"checkin/pkg/platform/circuit"
)

// Store is the contract shared by every bucket implementation.
type Store interface {
	AllowN(ctx context.Context, key string, cost, limit int, window time.Duration) (*models.RateLimitResult, error)
	Reset(ctx context.Context, key string) error
}

// FallbackStore keeps limiting during a primary store outage. Primary errors
// are counted by a circuit breaker; while it is open, or when a call fails,
// requests are answered by an in-memory store. Limits become per instance
// during the outage, which is preferable to rejecting every scan.
type FallbackStore struct {
	primary  Store
	fallback Store
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

// NewFallback wraps primary. A nil breaker gets the package defaults.
func NewFallback(primary, fallback Store, breaker *circuit.Breaker, logger *slog.Logger) *FallbackStore {
	if breaker == nil {
		breaker = circuit.New("ratelimit_store")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackStore{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

func (s *FallbackStore) AllowN(ctx context.Context, key string, cost, limit int, window time.Duration) (*models.RateLimitResult, error) {
	var result *models.RateLimitResult
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.primary.AllowN(ctx, key, cost, limit, window)
		return err
	})
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, circuit.ErrOpen) {
		s.logger.WarnContext(ctx, "rate limit store failed, using in-memory fallback",
			"breaker", s.breaker.Name(),
			"error", err,
		)
	}
	return s.fallback.AllowN(ctx, key, cost, limit, window)
}

// Reset clears the key in both stores.
func (s *FallbackStore) Reset(ctx context.Context, key string) error {
	if err := s.fallback.Reset(ctx, key); err != nil {
		return err
	}
	return s.primary.Reset(ctx, key)
}
