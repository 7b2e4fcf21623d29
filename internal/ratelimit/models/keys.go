package models

import (
	"strings"

	id "checkin/pkg/domain"
)

const attendeeKeyPrefix = "attendee:"

// SanitizeKeySegment escapes delimiter characters in rate limit key segments
// to prevent key collision attacks where user-controlled identifiers containing
// ':' could manipulate adjacent rate limit buckets.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// AttendeeKey is the bucket key for one attendee's visit submissions.
func AttendeeKey(attendeeID id.AttendeeID) string {
	return attendeeKeyPrefix + SanitizeKeySegment(attendeeID.String())
}
