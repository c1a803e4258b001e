package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Error codes carried in ErrorResponse.
const (
	ErrCodeBadRequest      = "bad_request"
	ErrCodeNotFound        = "not_found"
	ErrCodeInternal        = "internal"
	ErrCodeForbidden       = "forbidden"
	ErrCodeRejected        = "station_rejected"
	ErrCodeUnavailable     = "unavailable"
	ErrCodeInvalidArgument = "invalid_argument"
)

// APIError is the body of every non-2xx response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the error envelope.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// writeJSON encodes data as the response body.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Debug("write response", "status", status, "err", err)
	}
}

// writeError answers with the {"error":{"code","message"}} envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: APIError{Code: code, Message: message}})
}

// decodeJSON reads a JSON request body into v, answering 400 itself when
// the body is malformed.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return false
	}
	return true
}
