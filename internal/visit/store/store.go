// Package store persists attendees, organizations and the visit log.
//
// Two implementations share one contract. Memory emulates snapshot isolation
// with per-aggregate versions and is the default for single instance and test
// deployments. Postgres runs SERIALIZABLE transactions through pgx.
package store

import (
	"context"
	"time"

	"checkin/internal/visit/models"
	id "checkin/pkg/domain"
)

// Isolation is the requested transaction isolation.
type Isolation int

const (
	IsolationSerializable Isolation = iota
	IsolationReadCommitted
)

// Durability is how widely a commit must be acknowledged before it returns.
type Durability int

const (
	DurabilityMajority Durability = iota
	DurabilityLocal
)

// DefaultTxTimeout bounds a transaction when the caller set no deadline.
const DefaultTxTimeout = 5 * time.Second

// TxOptions configures one unit of work.
type TxOptions struct {
	Isolation  Isolation
	Durability Durability
	Timeout    time.Duration
}

// Tx is the transactional view handed to a unit of work. Reads observe the
// transaction's snapshot and writes become visible only on commit.
type Tx interface {
	FindAttendee(ctx context.Context, attendeeID id.AttendeeID) (*models.Attendee, error)
	UpdateAttendee(ctx context.Context, attendeeID id.AttendeeID, patch models.AttendeeVisitPatch) error
	UpdateOrganization(ctx context.Context, orgID id.OrganizationID, patch models.OrganizationVisitPatch) error
	InsertVisitRecord(ctx context.Context, record *models.VisitRecord) error
}

func (o TxOptions) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return DefaultTxTimeout
}

// withTxDeadline bounds one attempt by the transaction timeout. An earlier
// caller deadline still wins.
func withTxDeadline(ctx context.Context, opts TxOptions) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, opts.timeout())
}
