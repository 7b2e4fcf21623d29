package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"checkin/internal/visit/metrics"
	"checkin/internal/visit/models"
	"checkin/internal/visit/store"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
	"checkin/pkg/platform/sentinel"
	"checkin/pkg/requestcontext"
)

const (
	DefaultMaxAttempts    = 5
	DefaultInitialBackoff = 20 * time.Millisecond
	DefaultMaxBackoff     = 500 * time.Millisecond
)

// Recorder applies one visit to all three aggregates in a single
// transaction, re-running the whole unit when a concurrent writer wins.
type Recorder struct {
	tx             StoreTx
	txOpts         TxOptions
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	now            func() time.Time
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
}

type RecorderOption func(*Recorder)

// WithMaxAttempts caps the total number of transaction attempts.
func WithMaxAttempts(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithBackoff sets the first and the largest wait between attempts.
func WithBackoff(initial, max time.Duration) RecorderOption {
	return func(r *Recorder) {
		if initial > 0 {
			r.initialBackoff = initial
		}
		if max > 0 {
			r.maxBackoff = max
		}
	}
}

// WithTxOptions overrides isolation, durability and per-attempt timeout.
func WithTxOptions(opts TxOptions) RecorderOption {
	return func(r *Recorder) { r.txOpts = opts }
}

func WithRecorderClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = logger }
}

func WithRecorderMetrics(m *metrics.Metrics) RecorderOption {
	return func(r *Recorder) { r.metrics = m }
}

func NewRecorder(tx StoreTx, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		tx: tx,
		txOpts: TxOptions{
			Isolation:  store.IsolationSerializable,
			Durability: store.DurabilityMajority,
			Timeout:    store.DefaultTxTimeout,
		},
		maxAttempts:    DefaultMaxAttempts,
		initialBackoff: DefaultInitialBackoff,
		maxBackoff:     DefaultMaxBackoff,
		logger:         slog.Default(),
		tracer:         otel.Tracer("checkin/visit"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record commits the visit described by req.
//
// Business rejections (attendee_not_found, organization_not_found,
// already_visited) end the loop immediately. Conflicts, unavailable storage
// and per-attempt timeouts are retried with exponential backoff up to the
// attempt cap and then reported as storage_unavailable. A caller deadline or
// cancellation stops the loop with timeout.
func (r *Recorder) Record(ctx context.Context, req models.RecordVisitRequest) (*models.VisitRecord, error) {
	attendeeID := id.AttendeeID(req.AttendeeID)
	attempts := 0
	var committed *models.VisitRecord

	op := func() error {
		attempts++
		attemptCtx, span := r.tracer.Start(ctx, "visit.record.attempt",
			trace.WithAttributes(attribute.Int("attempt", attempts)))
		defer span.End()

		var rec *models.VisitRecord
		err := r.tx.RunInTx(attemptCtx, r.txOpts, func(ctx context.Context, tx Store) error {
			var err error
			rec, err = applyVisit(ctx, tx, req, r.timestamp(ctx))
			return err
		})
		if err == nil {
			committed = rec
			return nil
		}
		span.RecordError(err)
		if errors.Is(err, sentinel.ErrConflict) {
			r.metrics.IncrementConflicts()
			return err
		}
		if retryable(ctx, err) {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		r.logger.DebugContext(ctx, "visit transaction failed, retrying",
			"attendee_id", attendeeID,
			"organization_id", req.OrganizationID,
			"attempt", attempts,
			"wait", wait,
			"error", err,
		)
	}

	err := backoff.RetryNotify(op, r.policy(ctx), notify)
	if err == nil {
		r.metrics.ObserveAttempts(attempts)
		return committed, nil
	}
	return nil, r.classify(ctx, err, attempts)
}

// timestamp is the injected clock, or the request-scoped time so the visit,
// the attendee and the event share one instant.
func (r *Recorder) timestamp(ctx context.Context) time.Time {
	if r.now != nil {
		return r.now()
	}
	return requestcontext.Now(ctx)
}

func (r *Recorder) policy(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialBackoff
	b.MaxInterval = r.maxBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.maxAttempts-1)), ctx)
}

// retryable reports whether a failed attempt may be re-run. A timeout only
// counts while the caller's own context is still live.
func retryable(ctx context.Context, err error) bool {
	switch {
	case errors.Is(err, sentinel.ErrConflict), errors.Is(err, sentinel.ErrUnavailable):
		return true
	case dErrors.HasCode(err, dErrors.CodeTimeout):
		return ctx.Err() == nil
	default:
		return false
	}
}

// classify maps the final loop error onto the visit error taxonomy.
func (r *Recorder) classify(ctx context.Context, err error, attempts int) error {
	switch {
	case dErrors.IsBusiness(err):
		return err
	case ctx.Err() != nil:
		return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "visit recording deadline exceeded")
	case errors.Is(err, sentinel.ErrConflict):
		r.logger.WarnContext(ctx, "visit transaction retries exhausted", "attempts", attempts, "error", err)
		return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "storage contention, retries exhausted")
	case retryable(ctx, err):
		r.logger.WarnContext(ctx, "visit transaction retries exhausted", "attempts", attempts, "error", err)
		return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "storage unavailable, retries exhausted")
	default:
		return dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "storage unavailable")
	}
}

// applyVisit is the single unit that touches the attendee, the organization
// and the visit log. It runs inside a transaction and is safe to re-run.
func applyVisit(ctx context.Context, tx Store, req models.RecordVisitRequest, now time.Time) (*models.VisitRecord, error) {
	attendeeID := id.AttendeeID(req.AttendeeID)
	orgID := id.OrganizationID(req.OrganizationID)

	attendee, err := tx.FindAttendee(ctx, attendeeID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeAttendeeNotFound, "attendee not found")
	}
	if err != nil {
		return nil, err
	}
	if attendee.HasVisited(orgID) {
		return nil, dErrors.New(dErrors.CodeAlreadyVisited, "attendee already visited this organization")
	}

	ordinal := attendee.NextOrdinal()
	email := req.AttendeeEmail
	if email == "" {
		email = attendee.Email
	}
	program := req.AttendeeProgram
	if program == "" {
		program = attendee.Program
	}
	method := req.Method
	if method == "" {
		method = models.MethodQRScan
	}
	record := &models.VisitRecord{
		ID:               models.VisitID(attendeeID, ordinal),
		AttendeeID:       attendeeID,
		OrganizationID:   orgID,
		AttendeeEmail:    email,
		AttendeeProgram:  program,
		OrganizationName: req.OrganizationName,
		BoothNumber:      req.BoothNumber,
		VisitedAt:        now,
		Method:           method,
	}

	if err := tx.InsertVisitRecord(ctx, record); err != nil {
		return nil, err
	}
	err = tx.UpdateAttendee(ctx, attendeeID, models.AttendeeVisitPatch{
		AddOrganization: orgID,
		VisitCount:      ordinal,
		LastVisitTime:   now,
	})
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeAttendeeNotFound, "attendee not found")
	}
	if err != nil {
		return nil, err
	}
	err = tx.UpdateOrganization(ctx, orgID, models.OrganizationVisitPatch{AddVisitor: attendeeID})
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeOrganizationNotFound, "organization not found")
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// spanError marks span failed with err.
func spanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
}
