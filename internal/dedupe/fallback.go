package dedupe

import (
	"context"
	"errors"
	"log/slog"

	"checkin/pkg/platform/circuit"
)

// Filter is the contract shared by the memory and Redis filters.
type Filter interface {
	ShouldReject(ctx context.Context, key Key) (bool, error)
	Release(ctx context.Context, key Key) error
}

// FallbackFilter keeps suppressing duplicates through a primary outage.
// Primary errors feed a circuit breaker; while it is open, or when a call
// fails, the in-memory filter answers. Suppression is per instance during
// the outage and the store transaction still rejects repeats.
type FallbackFilter struct {
	primary  Filter
	fallback Filter
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

// NewFallback wraps primary. A nil breaker gets the package defaults.
func NewFallback(primary, fallback Filter, breaker *circuit.Breaker, logger *slog.Logger) *FallbackFilter {
	if breaker == nil {
		breaker = circuit.New("dedupe_store")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackFilter{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

func (f *FallbackFilter) ShouldReject(ctx context.Context, key Key) (bool, error) {
	var reject bool
	err := f.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		reject, err = f.primary.ShouldReject(ctx, key)
		return err
	})
	if err == nil {
		return reject, nil
	}
	if !errors.Is(err, circuit.ErrOpen) {
		f.logger.WarnContext(ctx, "dedupe store failed, using in-memory fallback",
			"breaker", f.breaker.Name(),
			"error", err,
		)
	}
	return f.fallback.ShouldReject(ctx, key)
}

// Release clears the key in both filters. The primary is skipped while the
// breaker is open.
func (f *FallbackFilter) Release(ctx context.Context, key Key) error {
	if err := f.fallback.Release(ctx, key); err != nil {
		return err
	}
	err := f.breaker.Execute(ctx, func(ctx context.Context) error {
		return f.primary.Release(ctx, key)
	})
	if errors.Is(err, circuit.ErrOpen) {
		return nil
	}
	return err
}
