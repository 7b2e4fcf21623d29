// Package httputil translates coded domain errors into JSON HTTP responses.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "checkin/pkg/domain-errors"
)

// ErrorResponse is the wire shape of every error body.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// genericRetryMessage is shown for infrastructure faults so internal detail never leaks.
const genericRetryMessage = "the service is temporarily unavailable, please try again"

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to a status code and body. Internal errors carry no
// description; transient errors carry a generic retry hint only.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	if code == "" {
		code = dErrors.CodeInternal
	}
	status := StatusFor(code)

	resp := ErrorResponse{Error: string(code)}
	switch {
	case code == dErrors.CodeInternal:
	case dErrors.IsTransient(err):
		resp.ErrorDescription = genericRetryMessage
	default:
		var de *dErrors.Error
		if errors.As(err, &de) {
			resp.ErrorDescription = de.Message
		}
	}
	WriteJSON(w, status, resp)
}

// StatusFor returns the HTTP status for a domain error code.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeNotFound, dErrors.CodeAttendeeNotFound, dErrors.CodeOrganizationNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeAlreadyVisited:
		return http.StatusConflict
	case dErrors.CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeStorageUnavailable, dErrors.CodeServiceUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
