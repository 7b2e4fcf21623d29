package service

import (
	"context"

	"checkin/internal/dedupe"
	ratelimitmodels "checkin/internal/ratelimit/models"
	"checkin/internal/visit/models"
	"checkin/internal/visit/store"
	id "checkin/pkg/domain"
)

// Type aliases for the store contract so callers can depend on this package
// alone.
type (
	Store     = store.Tx
	TxOptions = store.TxOptions
)

// StoreTx runs a unit of work atomically.
type StoreTx interface {
	RunInTx(ctx context.Context, opts TxOptions, fn func(ctx context.Context, tx Store) error) error
}

// Catalog holds the non-transactional reads and creates.
type Catalog interface {
	CreateAttendee(ctx context.Context, a *models.Attendee) error
	CreateOrganization(ctx context.Context, o *models.Organization) error
	GetAttendee(ctx context.Context, attendeeID id.AttendeeID) (*models.Attendee, error)
	GetOrganization(ctx context.Context, orgID id.OrganizationID) (*models.Organization, error)
	ListVisits(ctx context.Context, attendeeID id.AttendeeID) ([]*models.VisitRecord, error)
}

// RateLimiter bounds submissions per attendee.
type RateLimiter interface {
	Allow(ctx context.Context, attendeeID id.AttendeeID) (*ratelimitmodels.Decision, error)
	Reset(ctx context.Context, attendeeID id.AttendeeID) error
}

// DuplicateFilter suppresses repeated pairs inside a short window.
type DuplicateFilter interface {
	ShouldReject(ctx context.Context, key dedupe.Key) (bool, error)
	Release(ctx context.Context, key dedupe.Key) error
}
