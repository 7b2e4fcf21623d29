//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"checkin/internal/visit/models"
	"checkin/internal/visit/store"
	id "checkin/pkg/domain"
	"checkin/pkg/platform/sentinel"
	"checkin/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.Pool)
	s.Require().NoError(s.store.Migrate(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "visits", "attendees", "organizations"))

	now := time.Now().UTC()
	s.Require().NoError(s.store.CreateAttendee(ctx, &models.Attendee{ID: "ab12345", Email: "ab@cmu.edu", CreatedAt: now}))
	s.Require().NoError(s.store.CreateOrganization(ctx, &models.Organization{ID: "google", Name: "Google", CreatedAt: now}))
}

func visit(ctx context.Context, tx store.Tx, attendeeID id.AttendeeID, orgID id.OrganizationID) error {
	a, err := tx.FindAttendee(ctx, attendeeID)
	if err != nil {
		return err
	}
	if a.HasVisited(orgID) {
		return nil
	}
	ordinal := a.NextOrdinal()
	now := time.Now().UTC()
	if err := tx.InsertVisitRecord(ctx, &models.VisitRecord{
		ID:             models.VisitID(attendeeID, ordinal),
		AttendeeID:     attendeeID,
		OrganizationID: orgID,
		VisitedAt:      now,
		Method:         models.MethodQRScan,
	}); err != nil {
		return err
	}
	if err := tx.UpdateAttendee(ctx, attendeeID, models.AttendeeVisitPatch{
		AddOrganization: orgID, VisitCount: ordinal, LastVisitTime: now,
	}); err != nil {
		return err
	}
	return tx.UpdateOrganization(ctx, orgID, models.OrganizationVisitPatch{AddVisitor: attendeeID})
}

func (s *PostgresStoreSuite) TestVisitCommitsAllAggregates() {
	ctx := context.Background()
	err := s.store.RunInTx(ctx, store.TxOptions{}, func(ctx context.Context, tx store.Tx) error {
		return visit(ctx, tx, "ab12345", "google")
	})
	s.Require().NoError(err)

	a, err := s.store.GetAttendee(ctx, "ab12345")
	s.Require().NoError(err)
	s.Equal(1, a.VisitCount)
	s.Equal([]id.OrganizationID{"google"}, a.VisitedOrganizations)

	o, err := s.store.GetOrganization(ctx, "google")
	s.Require().NoError(err)
	s.Equal(1, o.VisitorCount)

	visits, err := s.store.ListVisits(ctx, "ab12345")
	s.Require().NoError(err)
	s.Require().Len(visits, 1)
	s.Equal("ab12345_1", visits[0].ID)
}

func (s *PostgresStoreSuite) TestMissingOrganizationRollsBack() {
	ctx := context.Background()
	err := s.store.RunInTx(ctx, store.TxOptions{}, func(ctx context.Context, tx store.Tx) error {
		return visit(ctx, tx, "ab12345", "nowhere")
	})
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	visits, err := s.store.ListVisits(ctx, "ab12345")
	s.Require().NoError(err)
	s.Empty(visits)
}

// TestConcurrentSamePairSerializes verifies that racing SERIALIZABLE
// transactions on one pair produce exactly one commit and conflicts for
// the rest.
func (s *PostgresStoreSuite) TestConcurrentSamePairSerializes() {
	ctx := context.Background()
	const goroutines = 10

	var wg sync.WaitGroup
	var committed, conflicts atomic.Int32
	for range goroutines {
		wg.Go(func() {
			err := s.store.RunInTx(ctx, store.TxOptions{}, func(ctx context.Context, tx store.Tx) error {
				return visit(ctx, tx, "ab12345", "google")
			})
			switch {
			case err == nil:
				committed.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			}
		})
	}
	wg.Wait()

	s.Equal(int32(goroutines), committed.Load()+conflicts.Load())

	a, err := s.store.GetAttendee(ctx, "ab12345")
	s.Require().NoError(err)
	s.Equal(1, a.VisitCount)

	visits, err := s.store.ListVisits(ctx, "ab12345")
	s.Require().NoError(err)
	s.Len(visits, 1)
}

func (s *PostgresStoreSuite) TestDuplicateCreate() {
	err := s.store.CreateAttendee(context.Background(), &models.Attendee{ID: "ab12345", CreatedAt: time.Now()})
	s.ErrorIs(err, sentinel.ErrAlreadyExists)
}
