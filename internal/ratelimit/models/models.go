package models

import (
	"math"
	"time"

	id "checkin/pkg/domain"
)

// RateLimitResult represents the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// Decision is what the visit pipeline sees for one attendee: the store result
// plus a human readable hint when the request is throttled.
type Decision struct {
	RateLimitResult
	AttendeeID id.AttendeeID `json:"attendee_id"`
	Message    string        `json:"message,omitempty"`
}

// RetryAfterSeconds rounds the wait until resetAt up to whole seconds, never
// below one so a throttled client always backs off.
func RetryAfterSeconds(now, resetAt time.Time) int {
	wait := resetAt.Sub(now)
	if wait <= 0 {
		return 1
	}
	return int(math.Ceil(wait.Seconds()))
}
