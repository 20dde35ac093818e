package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from our API has the same shape:
//   {"status": "error", "error": "not_found", "message": "Snippet not found or unauthorized"}
//
// status is "fail" for requests rejected before they reached the service (bad input), "error" for
// everything else.

import (
	"errors"
	"log/slog"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/sakif/snippet-search/internal/apperror"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Status  string `json:"status"`  // "fail" or "error"
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

// MessageResponse is returned by writes that have nothing else to say.
type MessageResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status code go out BEFORE the body. Once Encode writes, header changes are ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent, we can only log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorMapping pairs an error kind with its HTTP status and machine-readable type.
// Order matters: the first kind the error matches wins.
var errorMapping = []struct {
	kind   error
	status int
	code   string
}{
	{apperror.ErrValidation, http.StatusBadRequest, "validation_error"},
	{apperror.ErrNotFoundOrUnauthorized, http.StatusNotFound, "not_found"},
	{apperror.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperror.ErrIntegrityViolation, http.StatusConflict, "integrity_violation"},
	{apperror.ErrCriticalInconsistency, http.StatusInternalServerError, "critical_inconsistency"},
	{apperror.ErrSearchSyncFailed, http.StatusBadGateway, "search_sync_failed"},
	{apperror.ErrStoreUnavailable, http.StatusServiceUnavailable, "store_unavailable"},
	{apperror.ErrIndexUnavailable, http.StatusServiceUnavailable, "index_unavailable"},
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// The service layer does not know about HTTP status codes; this is the only place the mapping
// lives. errors.Is walks the whole chain, so wrapped errors map the same as bare ones.
// SearchSyncFailed is checked before IndexUnavailable because it wraps one.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError

	if errors.As(err, &appErr) {
		for _, m := range errorMapping {
			if !errors.Is(err, m.kind) {
				continue
			}
			status := "error"
			if m.status == http.StatusBadRequest {
				status = "fail"
			}
			writeJSON(w, m.status, ErrorResponse{
				Status:  status,
				Error:   m.code,
				Message: appErr.Message,
			})
			return
		}
	}

	// Unknown error. NEVER expose internal error details to the client: the raw message might
	// contain SQL or hostnames.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Status:  "error",
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decodeJSON reads the request body into dst. Bodies above maxBodyBytes are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "Validation Error: body: invalid JSON")
	}
	return nil
}

// NotFound answers unknown routes in the API's error format.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{
		Status:  "error",
		Error:   "not_found",
		Message: "Route " + r.URL.Path + " not found",
	})
}
