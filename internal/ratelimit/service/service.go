package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"checkin/internal/ratelimit/metrics"
	"checkin/internal/ratelimit/models"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
)

// BucketStore defines the persistence interface for rate limit buckets.
// Keys are simple strings; validation happens before the service is called.
type BucketStore interface {
	// AllowN checks if a request with custom cost is allowed and records it.
	AllowN(ctx context.Context, key string, cost, limit int, window time.Duration) (*models.RateLimitResult, error)

	// Reset clears the rate limit counter for a key.
	Reset(ctx context.Context, key string) error
}

const (
	DefaultRequests = 30
	DefaultWindow   = time.Minute
)

// Service bounds visit submissions per attendee.
type Service struct {
	buckets  BucketStore
	requests int
	window   time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLimit overrides the default of 30 requests per minute. Non-positive
// values keep the default.
func WithLimit(requests int, window time.Duration) Option {
	return func(s *Service) {
		if requests > 0 {
			s.requests = requests
		}
		if window > 0 {
			s.window = window
		}
	}
}

func New(buckets BucketStore, opts ...Option) (*Service, error) {
	if buckets == nil {
		return nil, errors.New("buckets store is required")
	}

	svc := &Service{
		buckets:  buckets,
		requests: DefaultRequests,
		window:   DefaultWindow,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Allow records one submission for the attendee and reports whether it may
// proceed. A denied decision is not an error; store failures are.
func (s *Service) Allow(ctx context.Context, attendeeID id.AttendeeID) (*models.Decision, error) {
	result, err := s.buckets.AllowN(ctx, models.AttendeeKey(attendeeID), 1, s.requests, s.window)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeServiceUnavailable, "failed to check rate limit")
	}

	decision := &models.Decision{RateLimitResult: *result, AttendeeID: attendeeID}
	if result.Allowed {
		s.metrics.IncrementAllowed()
		return decision, nil
	}

	if decision.RetryAfter < 1 {
		decision.RetryAfter = 1
	}
	decision.Message = fmt.Sprintf("too many scans, try again in %ds", decision.RetryAfter)
	s.metrics.IncrementDenied()
	s.logger.InfoContext(ctx, "attendee rate limit exceeded",
		"attendee_id", attendeeID,
		"limit", s.requests,
		"window_seconds", int(s.window.Seconds()),
		"retry_after", decision.RetryAfter,
	)
	return decision, nil
}

// Reset clears the attendee's window. Used by operators to unblock a
// scanner after a misfire.
func (s *Service) Reset(ctx context.Context, attendeeID id.AttendeeID) error {
	if err := s.buckets.Reset(ctx, models.AttendeeKey(attendeeID)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeServiceUnavailable, "failed to reset rate limit")
	}
	s.metrics.IncrementResets()
	s.logger.InfoContext(ctx, "attendee rate limit reset", "attendee_id", attendeeID)
	return nil
}

// Limit reports the configured requests and window.
func (s *Service) Limit() (int, time.Duration) {
	return s.requests, s.window
}
