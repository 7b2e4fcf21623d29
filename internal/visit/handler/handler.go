package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"checkin/internal/visit/models"
	"checkin/internal/visit/service"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
	"checkin/pkg/platform/httputil"
	"checkin/pkg/platform/middleware/admin"
	"checkin/pkg/requestcontext"
)

// maxBodyBytes bounds request bodies; a scan payload is a few hundred bytes.
const maxBodyBytes = 16 << 10

// Service defines the visit operations exposed over HTTP.
type Service interface {
	RecordVisit(ctx context.Context, req models.RecordVisitRequest) (*models.RecordVisitResult, error)
	RegisterAttendee(ctx context.Context, req models.RegisterAttendeeRequest) (*models.RegisterAttendeeResult, error)
	CreateOrganization(ctx context.Context, req models.CreateOrganizationRequest) (*models.Organization, error)
	GetAttendee(ctx context.Context, attendeeID id.AttendeeID) (*models.Attendee, error)
	GetOrganization(ctx context.Context, orgID id.OrganizationID) (*models.Organization, error)
	ListVisits(ctx context.Context, attendeeID id.AttendeeID) ([]*models.VisitRecord, error)
	ResetRateLimit(ctx context.Context, attendeeID id.AttendeeID) error
	ResetBreaker(ctx context.Context)
}

// Handler serves the check-in API.
type Handler struct {
	visits     Service
	logger     *slog.Logger
	adminToken string
}

// New creates a visit Handler. An empty adminToken disables the admin routes.
func New(visits Service, logger *slog.Logger, adminToken string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{visits: visits, logger: logger, adminToken: adminToken}
}

// Register mounts the public and admin routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/visits", h.handleRecordVisit)
	r.Post("/attendees", h.handleRegisterAttendee)
	r.Get("/attendees/{attendeeID}", h.handleGetAttendee)
	r.Get("/attendees/{attendeeID}/visits", h.handleListVisits)
	r.Post("/organizations", h.handleCreateOrganization)
	r.Get("/organizations/{organizationID}", h.handleGetOrganization)

	r.Route("/admin", func(ar chi.Router) {
		ar.Use(admin.RequireAdminToken(h.adminToken, h.logger))
		ar.Post("/breaker/reset", h.handleResetBreaker)
		ar.Delete("/ratelimit/{attendeeID}", h.handleResetRateLimit)
	})
}

func (h *Handler) handleRecordVisit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.RecordVisitRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.visits.RecordVisit(ctx, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if result.Deduplicated {
		status = http.StatusOK
	}
	httputil.WriteJSON(w, status, result)
}

func (h *Handler) handleRegisterAttendee(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterAttendeeRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.visits.RegisterAttendee(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrganizationRequest
	if !h.decode(w, r, &req) {
		return
	}
	org, err := h.visits.CreateOrganization(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, org)
}

func (h *Handler) handleGetAttendee(w http.ResponseWriter, r *http.Request) {
	attendeeID, err := id.ParseAttendeeID(chi.URLParam(r, "attendeeID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid attendee_id"))
		return
	}
	a, err := h.visits.GetAttendee(r.Context(), attendeeID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) handleListVisits(w http.ResponseWriter, r *http.Request) {
	attendeeID, err := id.ParseAttendeeID(chi.URLParam(r, "attendeeID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid attendee_id"))
		return
	}
	visits, err := h.visits.ListVisits(r.Context(), attendeeID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"attendee_id": attendeeID,
		"visits":      visits,
	})
}

func (h *Handler) handleGetOrganization(w http.ResponseWriter, r *http.Request) {
	orgID, err := id.ParseOrganizationID(chi.URLParam(r, "organizationID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid organization_id"))
		return
	}
	org, err := h.visits.GetOrganization(r.Context(), orgID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, org)
}

func (h *Handler) handleResetBreaker(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.visits.ResetBreaker(ctx)
	h.logger.InfoContext(ctx, "breaker reset by operator", "request_id", requestcontext.RequestID(ctx))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleResetRateLimit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	attendeeID, err := id.ParseAttendeeID(chi.URLParam(r, "attendeeID"))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, "invalid attendee_id"))
		return
	}
	if err := h.visits.ResetRateLimit(ctx, attendeeID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.InfoContext(ctx, "rate limit reset by operator",
		"request_id", requestcontext.RequestID(ctx),
		"attendee_id", attendeeID,
	)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		ctx := r.Context()
		h.logger.WarnContext(ctx, "invalid request body",
			"request_id", requestcontext.RequestID(ctx),
			"path", r.URL.Path,
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return false
	}
	return true
}

// writeError sets Retry-After for rate limited requests and logs faults the
// client cannot fix before writing the error body.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var rl *service.RateLimitedError
	if errors.As(err, &rl) {
		secs := int(rl.RetryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	if dErrors.CodeOf(err) == "" {
		ctx := r.Context()
		h.logger.ErrorContext(ctx, "unclassified error",
			"request_id", requestcontext.RequestID(ctx),
			"path", r.URL.Path,
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
