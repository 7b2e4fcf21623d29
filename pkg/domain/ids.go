package domain

import (
	"strings"

	dErrors "checkin/pkg/domain-errors"
)

// maxIDLength bounds identifiers so derived keys (visit ids, cache keys) stay small.
const maxIDLength = 64

// AttendeeID identifies a registered attendee (the scanning student).
// This is a domain primitive that enforces validity at parse time.
type AttendeeID string

// OrganizationID identifies a participating organization (a booth).
type OrganizationID string

// ParseAttendeeID trims and validates an attendee identifier.
func ParseAttendeeID(s string) (AttendeeID, error) {
	v, err := parseIdentifier(s, "attendee id")
	if err != nil {
		return "", err
	}
	return AttendeeID(v), nil
}

// ParseOrganizationID trims and validates an organization identifier.
func ParseOrganizationID(s string) (OrganizationID, error) {
	v, err := parseIdentifier(s, "organization id")
	if err != nil {
		return "", err
	}
	return OrganizationID(v), nil
}

func (id AttendeeID) String() string { return string(id) }

// IsNil returns true if the id is empty.
func (id AttendeeID) IsNil() bool { return id == "" }

func (id OrganizationID) String() string { return string(id) }

// IsNil returns true if the id is empty.
func (id OrganizationID) IsNil() bool { return id == "" }

// parseIdentifier accepts 1..64 characters of [A-Za-z0-9_-].
func parseIdentifier(s, label string) (string, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, label+" is required")
	}
	if len(v) > maxIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, label+" is too long")
	}
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return "", dErrors.New(dErrors.CodeInvalidInput, label+" contains invalid characters")
		}
	}
	return v, nil
}
