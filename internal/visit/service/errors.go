package service

import (
	"time"
)

// RateLimitedError carries the wait hint alongside the coded error so
// transports can set Retry-After.
type RateLimitedError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitedError) Error() string { return e.Err.Error() }

func (e *RateLimitedError) Unwrap() error { return e.Err }
