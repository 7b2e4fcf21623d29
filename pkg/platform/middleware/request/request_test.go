package request

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin/pkg/requestcontext"
)

func TestContext(t *testing.T) {
	var gotReqID, gotScanner string
	h := chimw.RequestID(Context(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReqID = requestcontext.RequestID(r.Context())
		gotScanner = requestcontext.ScannerID(r.Context())
	})))

	req := httptest.NewRequest(http.MethodPost, "/visits", nil)
	req.Header.Set(chimw.RequestIDHeader, "req-42")
	req.Header.Set(ScannerHeader, "booth-7")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "req-42", gotReqID)
	assert.Equal(t, "booth-7", gotScanner)
	assert.Equal(t, "req-42", w.Header().Get(chimw.RequestIDHeader))
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := AccessLog(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/attendees/ab12345", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "/attendees/ab12345", line["path"])
	assert.EqualValues(t, http.StatusServiceUnavailable, line["status"])
}
