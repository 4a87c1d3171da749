package core

// error_messages.go maps technical errors to operator-facing messages with a
// support code.
//
// # Validation (VAL001-VAL007)
//
//	VAL001 - Missing date, factory or ownership   Patterns: "missing required fields"
//	VAL002 - Factory not in the configured list   Patterns: "invalid factory"
//	VAL003 - Ownership is not Owned or Rent       Patterns: "invalid ownership"
//	VAL004 - Date is not YYYY-MM-DD               Patterns: "invalid date"
//	VAL005 - Empty machine list                   Patterns: "no machine data"
//	VAL006 - Payload is not valid JSON            Patterns: "invalid json"
//	VAL007 - Payload too large                    Patterns: "request body too large"
//
// # Store (STORE001-STORE002)
//
//	STORE001 - Backing store unreachable          Patterns: "connection refused", "connection reset"
//	STORE002 - Any other sheet store failure      Matched by type (grid.StoreError)
//
// # Concurrency (LOCK001, SUB001)
//
//	LOCK001 - Sheet lock not obtained in time     Matched by lock.ErrLockTimeout
//	SUB001  - Too many submissions in flight      Matched by ErrTooManySubmissions
//
// # Request (REQ001-REQ002, RATE001)
//
//	REQ001  - Request cancelled                   Patterns: "context canceled"
//	REQ002  - Request timed out                   Patterns: "context deadline exceeded"
//	RATE001 - Rate limited                        Patterns: "rate limit"
//
// ERR000 is the fallback; check the server log for the technical error.

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/machinelog/internal/grid"
	"github.com/JonMunkholm/machinelog/internal/lock"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgStoreUnavailable = UserMessage{
		Message: "Record storage is unavailable",
		Action:  "Please try again in a few moments",
		Code:    "STORE001",
	}
	msgStoreFailed = UserMessage{
		Message: "Saving to the record sheet failed",
		Action:  "Please try again; if it keeps failing, contact support",
		Code:    "STORE002",
	}
	msgLockTimeout = UserMessage{
		Message: "Another submission for this date is still being saved",
		Action:  "Please wait a moment and submit again",
		Code:    "LOCK001",
	}
	msgBusy = UserMessage{
		Message: "System is busy processing other submissions",
		Action:  "Please wait a moment and try again",
		Code:    "SUB001",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ001",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Please try again",
		Code:    "REQ002",
	}
)

// errorPatterns are matched case-insensitively with strings.Contains, first
// match wins.
var errorPatterns = []errorPattern{
	{"missing required fields", UserMessage{
		Message: "Date, factory and ownership are required",
		Action:  "Fill in every field at the top of the form",
		Code:    "VAL001",
	}},
	{"invalid factory", UserMessage{
		Message: "Unknown factory",
		Action:  "Pick a factory from the list",
		Code:    "VAL002",
	}},
	{"invalid ownership", UserMessage{
		Message: "Ownership must be Owned or Rent",
		Action:  "Choose Owned or Rent",
		Code:    "VAL003",
	}},
	{"invalid date", UserMessage{
		Message: "Invalid date",
		Action:  "Use the YYYY-MM-DD format",
		Code:    "VAL004",
	}},
	{"no machine data", UserMessage{
		Message: "No machine counts were submitted",
		Action:  "Enter at least one machine type",
		Code:    "VAL005",
	}},
	{"invalid json", UserMessage{
		Message: "The submission could not be read",
		Action:  "Reload the form and submit again",
		Code:    "VAL006",
	}},
	{"request body too large", UserMessage{
		Message: "The submission is too large",
		Action:  "Split the report into several submissions",
		Code:    "VAL007",
	}},
	{"connection refused", msgStoreUnavailable},
	{"connection reset", msgStoreUnavailable},
	{"context canceled", msgCancelled},
	{"context deadline exceeded", msgTimeout},
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. Sentinel
// and typed errors are recognised first, then message patterns.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	switch {
	case errors.Is(err, lock.ErrLockTimeout):
		return msgLockTimeout
	case errors.Is(err, ErrTooManySubmissions):
		return msgBusy
	case errors.Is(err, context.Canceled):
		return msgCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return msgTimeout
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	if grid.IsStoreError(err) {
		return msgStoreFailed
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
