package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"checkin/internal/dedupe"
	"checkin/internal/visit/events"
	"checkin/internal/visit/metrics"
	"checkin/internal/visit/models"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
	"checkin/pkg/platform/circuit"
	"checkin/pkg/platform/sentinel"
)

// BreakerName identifies the breaker guarding the visit store.
const BreakerName = "visit_store"

// Service is the visit pipeline: validation, rate limiting, duplicate
// suppression and the breaker-guarded recorder, in that order. Each stage
// can answer before storage is touched.
type Service struct {
	recorder  *Recorder
	catalog   Catalog
	limiter   RateLimiter
	filter    DuplicateFilter
	breaker   *circuit.Breaker
	publisher events.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	now       func() time.Time
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

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRateLimiter enables the per-attendee throughput stage.
func WithRateLimiter(l RateLimiter) Option {
	return func(s *Service) {
		s.limiter = l
	}
}

// WithDuplicateFilter enables the short-window duplicate stage.
func WithDuplicateFilter(f DuplicateFilter) Option {
	return func(s *Service) {
		s.filter = f
	}
}

// WithBreaker replaces the default breaker. The breaker should classify
// errors with IsInfrastructureFailure.
func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Service) {
		s.breaker = b
	}
}

func New(recorder *Recorder, catalog Catalog, opts ...Option) (*Service, error) {
	if recorder == nil {
		return nil, errors.New("recorder is required")
	}
	if catalog == nil {
		return nil, errors.New("catalog is required")
	}

	svc := &Service{
		recorder:  recorder,
		catalog:   catalog,
		publisher: events.NoopPublisher{},
		logger:    slog.Default(),
		tracer:    otel.Tracer("checkin/visit"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.breaker == nil {
		svc.breaker = NewBreaker(svc.logger, svc.metrics)
	}
	return svc, nil
}

// IsInfrastructureFailure is the breaker classifier: business rejections
// and caller cancellations say nothing about store health.
func IsInfrastructureFailure(err error) bool {
	if err == nil || dErrors.IsBusiness(err) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// NewBreaker builds the visit store breaker with logging and metrics hooks.
func NewBreaker(logger *slog.Logger, m *metrics.Metrics, opts ...circuit.Option) *circuit.Breaker {
	if logger == nil {
		logger = slog.Default()
	}
	base := []circuit.Option{
		circuit.WithClassifier(IsInfrastructureFailure),
		circuit.WithOnStateChange(func(name string, from, to circuit.State) {
			m.SetBreakerState(name, to.String())
			logger.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		}),
	}
	b := circuit.New(BreakerName, append(base, opts...)...)
	m.SetBreakerState(BreakerName, b.State().String())
	return b
}

// Breaker exposes the store breaker for admin operations.
func (s *Service) Breaker() *circuit.Breaker {
	return s.breaker
}

// RecordVisit runs one booth scan through the pipeline.
func (s *Service) RecordVisit(ctx context.Context, req models.RecordVisitRequest) (*models.RecordVisitResult, error) {
	start := s.now()
	ctx, span := s.tracer.Start(ctx, "visit.RecordVisit")
	defer span.End()

	result, outcome, err := s.recordVisit(ctx, &req)
	span.SetAttributes(
		attribute.String("visit.attendee_id", req.AttendeeID),
		attribute.String("visit.organization_id", req.OrganizationID),
		attribute.String("visit.outcome", outcome),
	)
	s.metrics.ObserveVisit(outcome, s.now().Sub(start))
	if err != nil {
		spanError(span, err)
		s.logOutcome(ctx, &req, outcome, err)
		return nil, err
	}
	return result, nil
}

func (s *Service) recordVisit(ctx context.Context, req *models.RecordVisitRequest) (*models.RecordVisitResult, string, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, metrics.OutcomeInvalid, err
	}
	attendeeID := id.AttendeeID(req.AttendeeID)
	key := dedupe.Key{AttendeeID: attendeeID, OrganizationID: id.OrganizationID(req.OrganizationID)}

	if s.limiter != nil {
		decision, err := s.limiter.Allow(ctx, attendeeID)
		if err != nil {
			return nil, metrics.OutcomeUnavailable, err
		}
		if !decision.Allowed {
			return nil, metrics.OutcomeRateLimited, &RateLimitedError{
				RetryAfter: time.Duration(decision.RetryAfter) * time.Second,
				Err:        dErrors.New(dErrors.CodeRateLimited, decision.Message),
			}
		}
	}

	if s.filter != nil {
		reject, err := s.filter.ShouldReject(ctx, key)
		if err != nil {
			return nil, metrics.OutcomeUnavailable, dErrors.Wrap(err, dErrors.CodeServiceUnavailable, "duplicate check failed")
		}
		if reject {
			s.logger.DebugContext(ctx, "duplicate visit suppressed",
				"attendee_id", key.AttendeeID,
				"organization_id", key.OrganizationID,
			)
			return &models.RecordVisitResult{Success: true, Deduplicated: true}, metrics.OutcomeDeduplicated, nil
		}
	}

	var rec *models.VisitRecord
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		rec, err = s.recorder.Record(ctx, *req)
		return err
	})
	if err != nil {
		s.releaseKey(ctx, key)
		if errors.Is(err, circuit.ErrOpen) {
			return nil, metrics.OutcomeUnavailable, dErrors.Wrap(err, dErrors.CodeServiceUnavailable, "visit store temporarily unavailable")
		}
		if dErrors.IsBusiness(err) {
			return nil, metrics.OutcomeBusiness, err
		}
		return nil, metrics.OutcomeUnavailable, err
	}

	s.publish(ctx, rec)
	s.logger.InfoContext(ctx, "visit recorded",
		"visit_id", rec.ID,
		"attendee_id", rec.AttendeeID,
		"organization_id", rec.OrganizationID,
		"method", rec.Method,
	)
	return &models.RecordVisitResult{Success: true, VisitID: rec.ID, Ordinal: rec.Ordinal()}, metrics.OutcomeRecorded, nil
}

// releaseKey lets a retry after a failed recording through the duplicate
// filter.
func (s *Service) releaseKey(ctx context.Context, key dedupe.Key) {
	if s.filter == nil {
		return
	}
	if err := s.filter.Release(context.WithoutCancel(ctx), key); err != nil {
		s.logger.WarnContext(ctx, "failed to release duplicate filter key",
			"attendee_id", key.AttendeeID,
			"organization_id", key.OrganizationID,
			"error", err,
		)
	}
}

func (s *Service) publish(ctx context.Context, rec *models.VisitRecord) {
	if err := s.publisher.PublishVisitRecorded(ctx, events.NewVisitRecorded(rec)); err != nil {
		s.metrics.IncrementEventsDropped()
		s.logger.WarnContext(ctx, "failed to publish visit event", "visit_id", rec.ID, "error", err)
	}
}

func (s *Service) logOutcome(ctx context.Context, req *models.RecordVisitRequest, outcome string, err error) {
	attrs := []any{
		"attendee_id", req.AttendeeID,
		"organization_id", req.OrganizationID,
		"outcome", outcome,
		"error", err,
	}
	switch {
	case dErrors.IsTransient(err):
		s.logger.ErrorContext(ctx, "visit recording failed", attrs...)
	case outcome == metrics.OutcomeRateLimited:
		s.logger.InfoContext(ctx, "visit rate limited", attrs...)
	default:
		s.logger.DebugContext(ctx, "visit rejected", attrs...)
	}
}

// RegisterAttendee creates an attendee with no visits. When the request
// names an initial organization, that visit is recorded through
// RecordVisit so it gets the same guarantees as a scan.
//
// A repeated registration with the same email whose initial visit never
// landed resumes at the visit, so a client may retry after a transient
// failure.
func (s *Service) RegisterAttendee(ctx context.Context, req models.RegisterAttendeeRequest) (*models.RegisterAttendeeResult, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	attendee := &models.Attendee{
		ID:                   id.AttendeeID(req.ID),
		Email:                req.Email,
		Program:              req.Program,
		VisitedOrganizations: []id.OrganizationID{},
		CreatedAt:            s.now(),
	}
	if err := s.catalog.CreateAttendee(ctx, attendee); err != nil {
		if !errors.Is(err, sentinel.ErrAlreadyExists) {
			return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "failed to register attendee")
		}
		existing, resume, err := s.resumableRegistration(ctx, &req)
		if err != nil {
			return nil, err
		}
		if !resume {
			return nil, dErrors.New(dErrors.CodeConflict, "attendee already registered")
		}
		s.logger.InfoContext(ctx, "resuming attendee registration",
			"attendee_id", existing.ID,
			"organization_id", req.InitialOrganizationID,
		)
		attendee = existing
	} else {
		s.logger.InfoContext(ctx, "attendee registered", "attendee_id", attendee.ID)
	}

	result := &models.RegisterAttendeeResult{Attendee: attendee}
	if req.InitialOrganizationID == "" {
		return result, nil
	}

	org, err := s.catalog.GetOrganization(ctx, id.OrganizationID(req.InitialOrganizationID))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeOrganizationNotFound, "organization not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "failed to load organization")
	}
	visit, err := s.RecordVisit(ctx, models.RecordVisitRequest{
		AttendeeID:       req.ID,
		AttendeeEmail:    req.Email,
		AttendeeProgram:  req.Program,
		OrganizationID:   req.InitialOrganizationID,
		OrganizationName: org.Name,
		BoothNumber:      org.BoothNumber,
		Method:           models.MethodRegistration,
	})
	if err != nil {
		return nil, err
	}
	result.InitialVisit = visit
	if refreshed, err := s.catalog.GetAttendee(ctx, attendee.ID); err == nil {
		result.Attendee = refreshed
	}
	return result, nil
}

// resumableRegistration reports whether an already stored attendee is an
// earlier attempt of req that stopped before its initial visit.
func (s *Service) resumableRegistration(ctx context.Context, req *models.RegisterAttendeeRequest) (*models.Attendee, bool, error) {
	if req.InitialOrganizationID == "" {
		return nil, false, nil
	}
	existing, err := s.catalog.GetAttendee(ctx, id.AttendeeID(req.ID))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "failed to load attendee")
	}
	if existing.Email != req.Email || existing.HasVisited(id.OrganizationID(req.InitialOrganizationID)) {
		return nil, false, nil
	}
	return existing, true, nil
}

// CreateOrganization adds a booth.
func (s *Service) CreateOrganization(ctx context.Context, req models.CreateOrganizationRequest) (*models.Organization, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	org := &models.Organization{
		ID:          id.OrganizationID(req.ID),
		Name:        req.Name,
		BoothNumber: req.BoothNumber,
		VisitorIDs:  []id.AttendeeID{},
		CreatedAt:   s.now(),
	}
	if err := s.catalog.CreateOrganization(ctx, org); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			return nil, dErrors.New(dErrors.CodeConflict, "organization already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "failed to create organization")
	}
	s.logger.InfoContext(ctx, "organization created", "organization_id", org.ID)
	return org, nil
}

func (s *Service) GetAttendee(ctx context.Context, attendeeID id.AttendeeID) (*models.Attendee, error) {
	a, err := s.catalog.GetAttendee(ctx, attendeeID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeAttendeeNotFound, "attendee not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "failed to load attendee")
	}
	return a, nil
}

func (s *Service) GetOrganization(ctx context.Context, orgID id.OrganizationID) (*models.Organization, error) {
	o, err := s.catalog.GetOrganization(ctx, orgID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeOrganizationNotFound, "organization not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "failed to load organization")
	}
	return o, nil
}

// ListVisits returns an attendee's visit log. An unknown attendee is an error
// rather than an empty list.
func (s *Service) ListVisits(ctx context.Context, attendeeID id.AttendeeID) ([]*models.VisitRecord, error) {
	if _, err := s.GetAttendee(ctx, attendeeID); err != nil {
		return nil, err
	}
	visits, err := s.catalog.ListVisits(ctx, attendeeID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageUnavailable, "failed to list visits")
	}
	return visits, nil
}

// ResetRateLimit clears an attendee's rate limit window.
func (s *Service) ResetRateLimit(ctx context.Context, attendeeID id.AttendeeID) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Reset(ctx, attendeeID)
}

// ResetBreaker force-closes the store breaker.
func (s *Service) ResetBreaker(ctx context.Context) {
	s.breaker.Reset()
	s.logger.InfoContext(ctx, "circuit breaker reset by operator", "breaker", s.breaker.Name())
}
