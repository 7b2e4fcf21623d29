package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"checkin/internal/visit/models"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
	"checkin/pkg/platform/sentinel"
	txcontext "checkin/pkg/platform/tx"
)

//go:embed schema.sql
var schema string

// SQLSTATE codes that mean "another transaction won, run the unit again".
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateUniqueViolation      = "23505"
)

// Postgres is the durable store. Units of work run as SERIALIZABLE
// transactions; the open transaction travels in the context so every method
// joins it.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an open pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the tables if they do not exist.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

type dbExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.pool
}

// RunInTx begins a transaction with the requested isolation and commit
// durability, runs fn, and commits. Serialization failures, deadlocks and
// unique violations surface as sentinel.ErrConflict.
func (s *Postgres) RunInTx(ctx context.Context, opts TxOptions, fn func(ctx context.Context, tx Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	ctx, cancel := withTxDeadline(ctx, opts)
	defer cancel()

	iso := pgx.Serializable
	if opts.Isolation == IsolationReadCommitted {
		iso = pgx.ReadCommitted
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: iso})
	if err != nil {
		return mapError(ctx, "begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	syncCommit := "on"
	if opts.Durability == DurabilityLocal {
		syncCommit = "local"
	}
	if _, err = tx.Exec(ctx, "SELECT set_config('synchronous_commit', $1, true)", syncCommit); err != nil {
		return mapError(ctx, "set commit durability", err)
	}

	if err = fn(txcontext.WithTx(ctx, tx), s); err != nil {
		return mapError(ctx, "transaction body", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return mapError(ctx, "commit", err)
	}
	return nil
}

// mapError converts driver failures into sentinels. Coded domain errors and
// sentinels raised by the body pass through untouched.
func mapError(ctx context.Context, op string, err error) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrConflict) || errors.Is(err, sentinel.ErrAlreadyExists) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected, sqlStateUniqueViolation:
			return fmt.Errorf("%s: %s: %w", op, pgErr.Code, sentinel.ErrConflict)
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return dErrors.Wrap(ctxErr, dErrors.CodeTimeout, op+": context done")
	}
	return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
}

func (s *Postgres) FindAttendee(ctx context.Context, attendeeID id.AttendeeID) (*models.Attendee, error) {
	return s.getAttendee(ctx, attendeeID)
}

func (s *Postgres) UpdateAttendee(ctx context.Context, attendeeID id.AttendeeID, patch models.AttendeeVisitPatch) error {
	tag, err := s.execer(ctx).Exec(ctx, `
		UPDATE attendees
		SET visited_organizations = CASE
				WHEN $2 = ANY(visited_organizations) THEN visited_organizations
				ELSE array_append(visited_organizations, $2)
			END,
			visit_count = $3,
			last_visit_time = $4,
			version = version + 1
		WHERE id = $1
	`, attendeeID.String(), patch.AddOrganization.String(), patch.VisitCount, patch.LastVisitTime)
	if err != nil {
		return fmt.Errorf("update attendee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("attendee %s: %w", attendeeID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *Postgres) UpdateOrganization(ctx context.Context, orgID id.OrganizationID, patch models.OrganizationVisitPatch) error {
	tag, err := s.execer(ctx).Exec(ctx, `
		UPDATE organizations
		SET visitor_ids = CASE
				WHEN $2 = ANY(visitor_ids) THEN visitor_ids
				ELSE array_append(visitor_ids, $2)
			END,
			visitor_count = CASE
				WHEN $2 = ANY(visitor_ids) THEN visitor_count
				ELSE visitor_count + 1
			END,
			version = version + 1
		WHERE id = $1
	`, orgID.String(), patch.AddVisitor.String())
	if err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("organization %s: %w", orgID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *Postgres) InsertVisitRecord(ctx context.Context, record *models.VisitRecord) error {
	_, err := s.execer(ctx).Exec(ctx, `
		INSERT INTO visits (
			id, attendee_id, organization_id, attendee_email, attendee_program,
			organization_name, booth_number, visited_at, method
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		record.ID,
		record.AttendeeID.String(),
		record.OrganizationID.String(),
		record.AttendeeEmail,
		record.AttendeeProgram,
		record.OrganizationName,
		record.BoothNumber,
		record.VisitedAt,
		record.Method.String(),
	)
	if err != nil {
		return fmt.Errorf("insert visit: %w", err)
	}
	return nil
}

// CreateAttendee inserts a new attendee with no visits.
func (s *Postgres) CreateAttendee(ctx context.Context, a *models.Attendee) error {
	_, err := s.execer(ctx).Exec(ctx, `
		INSERT INTO attendees (id, email, program, created_at)
		VALUES ($1, $2, $3, $4)
	`, a.ID.String(), a.Email, a.Program, a.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("attendee %s: %w", a.ID, sentinel.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert attendee: %w", err)
	}
	return nil
}

// CreateOrganization inserts a new organization with no visitors.
func (s *Postgres) CreateOrganization(ctx context.Context, o *models.Organization) error {
	_, err := s.execer(ctx).Exec(ctx, `
		INSERT INTO organizations (id, name, booth_number, created_at)
		VALUES ($1, $2, $3, $4)
	`, o.ID.String(), o.Name, o.BoothNumber, o.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("organization %s: %w", o.ID, sentinel.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

// GetAttendee reads a committed attendee.
func (s *Postgres) GetAttendee(ctx context.Context, attendeeID id.AttendeeID) (*models.Attendee, error) {
	return s.getAttendee(ctx, attendeeID)
}

func (s *Postgres) getAttendee(ctx context.Context, attendeeID id.AttendeeID) (*models.Attendee, error) {
	var (
		a       models.Attendee
		rawID   string
		visited []string
		last    *time.Time
	)
	err := s.execer(ctx).QueryRow(ctx, `
		SELECT id, email, program, visited_organizations, visit_count,
			last_visit_time, created_at, version
		FROM attendees
		WHERE id = $1
	`, attendeeID.String()).Scan(&rawID, &a.Email, &a.Program, &visited, &a.VisitCount, &last, &a.CreatedAt, &a.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("attendee %s: %w", attendeeID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select attendee: %w", err)
	}
	a.ID = id.AttendeeID(rawID)
	a.VisitedOrganizations = make([]id.OrganizationID, len(visited))
	for i, v := range visited {
		a.VisitedOrganizations[i] = id.OrganizationID(v)
	}
	a.LastVisitTime = last
	return &a, nil
}

// GetOrganization reads a committed organization.
func (s *Postgres) GetOrganization(ctx context.Context, orgID id.OrganizationID) (*models.Organization, error) {
	var (
		o        models.Organization
		rawID    string
		visitors []string
	)
	err := s.execer(ctx).QueryRow(ctx, `
		SELECT id, name, booth_number, visitor_ids, visitor_count, created_at, version
		FROM organizations
		WHERE id = $1
	`, orgID.String()).Scan(&rawID, &o.Name, &o.BoothNumber, &visitors, &o.VisitorCount, &o.CreatedAt, &o.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("organization %s: %w", orgID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select organization: %w", err)
	}
	o.ID = id.OrganizationID(rawID)
	o.VisitorIDs = make([]id.AttendeeID, len(visitors))
	for i, v := range visitors {
		o.VisitorIDs[i] = id.AttendeeID(v)
	}
	return &o, nil
}

// ListVisits returns the attendee's visit log oldest first.
func (s *Postgres) ListVisits(ctx context.Context, attendeeID id.AttendeeID) ([]*models.VisitRecord, error) {
	rows, err := s.execer(ctx).Query(ctx, `
		SELECT id, attendee_id, organization_id, attendee_email, attendee_program,
			organization_name, booth_number, visited_at, method
		FROM visits
		WHERE attendee_id = $1
		ORDER BY visited_at, id
	`, attendeeID.String())
	if err != nil {
		return nil, fmt.Errorf("query visits: %w", err)
	}
	defer rows.Close()

	var out []*models.VisitRecord
	for rows.Next() {
		var (
			rec          models.VisitRecord
			attendee     string
			organization string
			method       string
		)
		if err := rows.Scan(&rec.ID, &attendee, &organization, &rec.AttendeeEmail, &rec.AttendeeProgram,
			&rec.OrganizationName, &rec.BoothNumber, &rec.VisitedAt, &method); err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		rec.AttendeeID = id.AttendeeID(attendee)
		rec.OrganizationID = id.OrganizationID(organization)
		rec.Method = models.VisitMethod(method)
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate visits: %w", err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlStateUniqueViolation
}
