package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"checkin/internal/visit/handler/mocks"
	"checkin/internal/visit/models"
	"checkin/internal/visit/service"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
	"checkin/pkg/platform/middleware/admin"
	"checkin/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/visit-mocks.go -package=mocks Service
type VisitHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestVisitHandlerSuite(t *testing.T) {
	suite.Run(t, new(VisitHandlerSuite))
}

func (s *VisitHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.router = chi.NewRouter()
	New(s.service, logger, "s3cret").Register(s.router)
}

func (s *VisitHandlerSuite) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), method, path, body, headers...))
}

func (s *VisitHandlerSuite) decode(w *httptest.ResponseRecorder) map[string]any {
	return testutil.DecodeJSON[map[string]any](s.T(), w)
}

func (s *VisitHandlerSuite) TestRecordVisit() {
	req := models.RecordVisitRequest{AttendeeID: "ab12345", OrganizationID: "google", OrganizationName: "Google", BoothNumber: "A1"}

	s.Run("created", func() {
		s.service.EXPECT().RecordVisit(gomock.Any(), req).
			Return(&models.RecordVisitResult{Success: true, VisitID: "ab12345_1", Ordinal: 1}, nil)

		w := s.do(http.MethodPost, "/visits", req)
		s.Equal(http.StatusCreated, w.Code)
		body := s.decode(w)
		s.Equal(true, body["success"])
		s.Equal("ab12345_1", body["visit_id"])
	})

	s.Run("deduplicated", func() {
		s.service.EXPECT().RecordVisit(gomock.Any(), req).
			Return(&models.RecordVisitResult{Success: true, Deduplicated: true}, nil)

		w := s.do(http.MethodPost, "/visits", req)
		s.Equal(http.StatusOK, w.Code)
		s.Equal(true, s.decode(w)["deduplicated"])
	})

	s.Run("already visited", func() {
		s.service.EXPECT().RecordVisit(gomock.Any(), req).
			Return(nil, dErrors.New(dErrors.CodeAlreadyVisited, "attendee already visited this organization"))

		w := s.do(http.MethodPost, "/visits", req)
		testutil.AssertStatusAndError(s.T(), w, http.StatusConflict, "already_visited")
	})

	s.Run("rate limited sets Retry-After", func() {
		s.service.EXPECT().RecordVisit(gomock.Any(), req).Return(nil, &service.RateLimitedError{
			RetryAfter: 42 * time.Second,
			Err:        dErrors.New(dErrors.CodeRateLimited, "too many scans, try again in 42s"),
		})

		w := s.do(http.MethodPost, "/visits", req)
		s.Equal(http.StatusTooManyRequests, w.Code)
		s.Equal("42", w.Header().Get("Retry-After"))
	})

	s.Run("storage outage hides detail", func() {
		s.service.EXPECT().RecordVisit(gomock.Any(), req).
			Return(nil, dErrors.New(dErrors.CodeStorageUnavailable, "commit failed on attendees"))

		w := s.do(http.MethodPost, "/visits", req)
		s.Equal(http.StatusServiceUnavailable, w.Code)
		s.NotContains(w.Body.String(), "attendees")
	})

	s.Run("malformed body never reaches the service", func() {
		w := s.do(http.MethodPost, "/visits", `{"attendee_id":`)
		testutil.AssertStatusAndError(s.T(), w, http.StatusBadRequest, "bad_request")
	})

	s.Run("unknown fields are rejected", func() {
		w := s.do(http.MethodPost, "/visits", `{"attendee_id":"ab12345","organization_id":"google","visit_count":9}`)
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *VisitHandlerSuite) TestRegisterAttendee() {
	req := models.RegisterAttendeeRequest{ID: "ab12345", Email: "ab@cmu.edu", InitialOrganizationID: "google"}
	s.service.EXPECT().RegisterAttendee(gomock.Any(), req).Return(&models.RegisterAttendeeResult{
		Attendee:     &models.Attendee{ID: "ab12345", Email: "ab@cmu.edu", VisitCount: 1, VisitedOrganizations: []id.OrganizationID{"google"}},
		InitialVisit: &models.RecordVisitResult{Success: true, VisitID: "ab12345_1", Ordinal: 1},
	}, nil)

	w := s.do(http.MethodPost, "/attendees", req)
	s.Equal(http.StatusCreated, w.Code)
	body := s.decode(w)
	s.Equal("ab12345_1", body["initial_visit"].(map[string]any)["visit_id"])
	s.EqualValues(1, body["attendee"].(map[string]any)["visit_count"])
}

func (s *VisitHandlerSuite) TestCreateOrganization() {
	req := models.CreateOrganizationRequest{ID: "google", Name: "Google", BoothNumber: "A1"}
	s.service.EXPECT().CreateOrganization(gomock.Any(), req).
		Return(nil, dErrors.New(dErrors.CodeConflict, "organization already exists"))

	w := s.do(http.MethodPost, "/organizations", req)
	s.Equal(http.StatusConflict, w.Code)
}

func (s *VisitHandlerSuite) TestReads() {
	s.Run("attendee", func() {
		s.service.EXPECT().GetAttendee(gomock.Any(), id.AttendeeID("ab12345")).
			Return(&models.Attendee{ID: "ab12345", VisitCount: 2}, nil)

		w := s.do(http.MethodGet, "/attendees/ab12345", nil)
		s.Equal(http.StatusOK, w.Code)
		s.EqualValues(2, s.decode(w)["visit_count"])
	})

	s.Run("unknown attendee", func() {
		s.service.EXPECT().GetAttendee(gomock.Any(), id.AttendeeID("zz99999")).
			Return(nil, dErrors.New(dErrors.CodeAttendeeNotFound, "attendee not found"))

		w := s.do(http.MethodGet, "/attendees/zz99999", nil)
		testutil.AssertStatusAndError(s.T(), w, http.StatusNotFound, "attendee_not_found")
	})

	s.Run("visits", func() {
		s.service.EXPECT().ListVisits(gomock.Any(), id.AttendeeID("ab12345")).
			Return([]*models.VisitRecord{{ID: "ab12345_1", AttendeeID: "ab12345", OrganizationID: "google"}}, nil)

		w := s.do(http.MethodGet, "/attendees/ab12345/visits", nil)
		s.Equal(http.StatusOK, w.Code)
		s.Len(s.decode(w)["visits"], 1)
	})

	s.Run("organization", func() {
		s.service.EXPECT().GetOrganization(gomock.Any(), id.OrganizationID("google")).
			Return(&models.Organization{ID: "google", VisitorCount: 3}, nil)

		w := s.do(http.MethodGet, "/organizations/google", nil)
		s.Equal(http.StatusOK, w.Code)
		s.EqualValues(3, s.decode(w)["visitor_count"])
	})
}

func (s *VisitHandlerSuite) TestAdmin() {
	s.Run("breaker reset requires token", func() {
		w := s.do(http.MethodPost, "/admin/breaker/reset", nil)
		s.Equal(http.StatusUnauthorized, w.Code)
	})

	s.Run("breaker reset", func() {
		s.service.EXPECT().ResetBreaker(gomock.Any())

		w := s.do(http.MethodPost, "/admin/breaker/reset", nil, admin.TokenHeader, "s3cret")
		s.Equal(http.StatusNoContent, w.Code)
	})

	s.Run("rate limit reset", func() {
		s.service.EXPECT().ResetRateLimit(gomock.Any(), id.AttendeeID("ab12345")).Return(nil)

		w := s.do(http.MethodDelete, "/admin/ratelimit/ab12345", nil, admin.TokenHeader, "s3cret")
		s.Equal(http.StatusNoContent, w.Code)
	})
}
