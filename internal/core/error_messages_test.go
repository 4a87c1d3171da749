package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/machinelog/internal/grid"
	"github.com/JonMunkholm/machinelog/internal/lock"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"missing fields", ValidationError{Message: "missing required fields: date, factory, and ownership are required"}, "VAL001"},
		{"invalid factory", ValidationError{Message: "invalid factory: XYZZ. Must be one of: THHM"}, "VAL002"},
		{"invalid ownership", ValidationError{Message: `invalid ownership type: Leased. Must be "Owned" or "Rent"`}, "VAL003"},
		{"invalid date", ValidationError{Message: "invalid date format. Expected YYYY-MM-DD, got: 11/02/2026"}, "VAL004"},
		{"no machines", ValidationError{Message: "no machine data provided"}, "VAL005"},
		{"bad json", ValidationError{Message: "invalid JSON payload: unexpected EOF"}, "VAL006"},
		{"body too large", errors.New("http: request body too large"), "VAL007"},
		{"store unreachable", grid.Wrap("get", "11/02", errors.New("dial tcp: connection refused")), "STORE001"},
		{"store failure", grid.Wrap("set", "11/02", errors.New("disk full")), "STORE002"},
		{"lock timeout", fmt.Errorf("merge: %w", lock.ErrLockTimeout), "LOCK001"},
		{"limiter full", ErrTooManySubmissions, "SUB001"},
		{"cancelled", fmt.Errorf("get: %w", context.Canceled), "REQ001"},
		{"deadline", context.DeadlineExceeded, "REQ002"},
		{"rate limit", errors.New("Rate limit exceeded"), "RATE001"},
		{"unknown", errors.New("some random internal error"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapError(tt.err); got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(ErrTooManySubmissions)
	want := "System is busy processing other submissions (Code: SUB001). Please wait a moment and try again"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"validation error is user facing", ValidationError{Message: "no machine data provided"}, true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}
