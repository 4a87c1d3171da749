package web

// errors.go gives every failed request the same JSON envelope:
//
//	{"status":"error","message":"...","action":"...","code":"VAL002"}
//
// The technical error is logged with the request ID; clients only see the
// mapped message. Validation failures are the exception: their text names
// the offending field and value, so it is passed through as is.

import (
	"context"
	"errors"
	"net/http"

	"github.com/JonMunkholm/machinelog/internal/core"
	"github.com/JonMunkholm/machinelog/internal/lock"
	"github.com/JonMunkholm/machinelog/internal/logging"
)

var errRateLimited = errors.New("rate limit exceeded")

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes the mapped JSON error.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request rejected", attrs...)
	}

	if core.IsValidationError(err) {
		msg.Message = err.Error()
	}
	respondErrorJSON(w, msg, status)
}

func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, status int) {
	writeJSON(w, status, ErrorResponse{
		Status:  "error",
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// statusFor picks the HTTP status for an error from the service.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case core.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrTooManySubmissions), errors.Is(err, lock.ErrLockTimeout):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
