// Package request provides middleware that seeds request-scoped values and
// writes one access log line per request.
package request

import (
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"checkin/pkg/requestcontext"
)

// ScannerHeader identifies the booth device submitting a scan.
const ScannerHeader = "X-Scanner-ID"

// Context copies the chi request ID and the scanner header into the
// requestcontext accessors and pins the request time. It must run after
// chi's RequestID middleware.
func Context(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if reqID := chimw.GetReqID(ctx); reqID != "" {
			ctx = requestcontext.WithRequestID(ctx, reqID)
			w.Header().Set(chimw.RequestIDHeader, reqID)
		}
		if scanner := r.Header.Get(ScannerHeader); scanner != "" {
			ctx = requestcontext.WithScannerID(ctx, scanner)
		}
		ctx = requestcontext.WithTime(ctx, time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccessLog logs method, path, status and latency for every request.
func AccessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			ctx := r.Context()
			level := slog.LevelInfo
			if ww.Status() >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "http request",
				"request_id", requestcontext.RequestID(ctx),
				"scanner_id", requestcontext.ScannerID(ctx),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
