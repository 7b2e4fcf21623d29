package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"checkin/internal/platform/config"
	"checkin/pkg/platform/middleware/admin"
	"checkin/pkg/testutil"
)

type WiringSuite struct {
	suite.Suite
	app *app
}

func TestWiringSuite(t *testing.T) {
	suite.Run(t, new(WiringSuite))
}

func (s *WiringSuite) SetupTest() {
	cfg := config.Config{
		Server: config.Server{
			AdminToken:     "ops",
			AllowedOrigins: []string{"*"},
			RequestTimeout: 5 * time.Second,
		},
		Events: config.EventsConfig{Driver: "log"},
		Visit:  config.DefaultVisitConfig(),
	}
	cfg.Visit.RateLimitRequests = 3

	app, err := buildApp(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), prometheus.NewRegistry())
	s.Require().NoError(err)
	s.T().Cleanup(func() { app.close(slog.Default()) })
	s.app = app
}

func (s *WiringSuite) call(method, path string, body any, headers ...string) (int, map[string]any) {
	rr := testutil.DoRequest(s.app.router, testutil.NewJSONRequest(s.T(), method, path, body, headers...))
	if rr.Body.Len() == 0 {
		return rr.Code, nil
	}
	return rr.Code, testutil.DecodeJSON[map[string]any](s.T(), rr)
}

func (s *WiringSuite) TestBoothDay() {
	code, _ := s.call(http.MethodPost, "/organizations", map[string]string{"id": "google", "name": "Google", "booth_number": "A1"})
	s.Equal(http.StatusCreated, code)
	code, _ = s.call(http.MethodPost, "/organizations", map[string]string{"id": "meta", "name": "Meta", "booth_number": "A2"})
	s.Equal(http.StatusCreated, code)
	code, _ = s.call(http.MethodPost, "/attendees", map[string]string{"id": "ab12345", "email": "ab@andrew.cmu.edu", "program": "MSCS"})
	s.Equal(http.StatusCreated, code)

	scan := map[string]string{"attendee_id": "ab12345", "organization_id": "google"}
	code, body := s.call(http.MethodPost, "/visits", scan)
	s.Equal(http.StatusCreated, code)
	s.Equal("ab12345_1", body["visit_id"])

	code, body = s.call(http.MethodPost, "/visits", scan)
	s.Equal(http.StatusOK, code, "second scan inside the window is suppressed")
	s.Equal(true, body["deduplicated"])

	code, body = s.call(http.MethodPost, "/visits", map[string]string{"attendee_id": "ab12345", "organization_id": "meta"})
	s.Equal(http.StatusCreated, code)
	s.Equal("ab12345_2", body["visit_id"])

	code, body = s.call(http.MethodGet, "/attendees/ab12345", nil)
	s.Equal(http.StatusOK, code)
	s.EqualValues(2, body["visit_count"])

	code, body = s.call(http.MethodGet, "/organizations/google", nil)
	s.Equal(http.StatusOK, code)
	s.EqualValues(1, body["visitor_count"])

	code, body = s.call(http.MethodGet, "/attendees/ab12345/visits", nil)
	s.Equal(http.StatusOK, code)
	s.Len(body["visits"], 2)
}

func (s *WiringSuite) TestRateLimitAndAdminReset() {
	s.call(http.MethodPost, "/attendees", map[string]string{"id": "cd67890", "email": "cd@andrew.cmu.edu"})
	for _, org := range []string{"o1", "o2", "o3", "o4"} {
		s.call(http.MethodPost, "/organizations", map[string]string{"id": org, "name": strings.ToUpper(org)})
	}

	for _, org := range []string{"o1", "o2", "o3"} {
		code, _ := s.call(http.MethodPost, "/visits", map[string]string{"attendee_id": "cd67890", "organization_id": org})
		s.Equal(http.StatusCreated, code)
	}
	rr := testutil.DoRequest(s.app.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/visits",
		map[string]string{"attendee_id": "cd67890", "organization_id": "o4"}))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusTooManyRequests, "rate_limited")
	s.NotEmpty(rr.Header().Get("Retry-After"))

	code, _ := s.call(http.MethodDelete, "/admin/ratelimit/cd67890", nil)
	s.Equal(http.StatusUnauthorized, code)
	code, _ = s.call(http.MethodDelete, "/admin/ratelimit/cd67890", nil, admin.TokenHeader, "ops")
	s.Equal(http.StatusNoContent, code)

	code, _ = s.call(http.MethodPost, "/visits", map[string]string{"attendee_id": "cd67890", "organization_id": "o4"})
	s.Equal(http.StatusCreated, code)
}

func (s *WiringSuite) TestOperationalEndpoints() {
	code, body := s.call(http.MethodGet, "/healthz", nil)
	s.Equal(http.StatusOK, code)
	s.Equal("ok", body["status"])

	rr := testutil.DoRequest(s.app.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/metrics", nil))
	s.Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), "checkin_circuit_breaker_state")
}

func (s *WiringSuite) TestUnknownEventsDriver() {
	cfg := config.Config{Events: config.EventsConfig{Driver: "carrier-pigeon"}, Visit: config.DefaultVisitConfig()}
	_, err := buildApp(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), prometheus.NewRegistry())
	s.Error(err)
}
