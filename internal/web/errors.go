package web

// errors.go provides unified error response handling for the web layer.
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err, statusCode)
//  3. Error is mapped via core.MapError to get an operator-facing message
//  4. Technical error + context is logged with request ID for correlation
//  5. The coded message is written as JSON

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/assayimport/internal/core"
	"github.com/JonMunkholm/assayimport/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// newErrorResponse maps err to its coded response.
func newErrorResponse(err error) *ErrorResponse {
	msg := core.MapError(err)
	return &ErrorResponse{
		Error:   err.Error(),
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
}

// respondError logs the technical error server-side and writes the coded
// message as JSON.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	resp := newErrorResponse(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", resp.Code,
	)

	writeJSON(w, statusCode, resp)
}

// statusFor picks the HTTP status for an import error.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	var malformed *core.MalformedRecordError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrUsage):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrMissingRequiredColumn),
		errors.Is(err, core.ErrEmptyFile),
		errors.As(err, &malformed),
		errors.Is(err, core.ErrRecordsFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
