package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/skybridge-obs/skybridge-core/internal/telescope"
	"github.com/skybridge-obs/skybridge-core/internal/transport"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
	ErrCodeBadGateway   = "bad_gateway"
	ErrCodeUnavailable  = "service_unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeRegistryError maps registry and transport sentinels onto HTTP
// status codes. Errors without a sentinel are precondition failures of
// the stored description (validation, binary resolution) and map to 400.
func writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, telescope.ErrInvalidSlot),
		errors.Is(err, transport.ErrUnknownKind):
		writeBadRequest(w, err.Error())
	case errors.Is(err, telescope.ErrNoDescription):
		writeNotFound(w, err.Error())
	case errors.Is(err, telescope.ErrAlreadyActive),
		errors.Is(err, telescope.ErrNotActive):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, telescope.ErrPersistence):
		writeInternalError(w, err.Error())
	case errors.Is(err, telescope.ErrStopUnconfirmed),
		errors.Is(err, transport.ErrSpawnFailure),
		errors.Is(err, transport.ErrConnectFailure),
		errors.Is(err, transport.ErrUnsupported),
		errors.Is(err, transport.ErrClosed):
		writeError(w, http.StatusBadGateway, ErrCodeBadGateway, err.Error())
	default:
		writeBadRequest(w, err.Error())
	}
}
