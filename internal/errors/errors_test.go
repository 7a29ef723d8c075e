package errors

import (
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestAPIError(t *testing.T) {
	cause := errors.New("disk full")
	tests := []struct {
		name   string
		err    *APIError
		status int
		code   ErrorCode
		msg    string
	}{
		{"not found", NotFound("user"), http.StatusNotFound, ErrNotFound, "user not found"},
		{"bad request", BadRequest("nope"), http.StatusBadRequest, ErrValidationFailed, "nope"},
		{"missing field", MissingField("email"), http.StatusBadRequest, ErrMissingField, "Missing required field: email"},
		{"conflict", Conflict("taken"), http.StatusConflict, ErrConflict, "taken"},
		{"unauthorized", Unauthorized("no"), http.StatusUnauthorized, ErrUnauthorized, "no"},
		{"rate limited", RateLimited(2 * time.Second), http.StatusTooManyRequests, ErrRateLimited, "Too many requests"},
		{"storage", Storage(cause), http.StatusInternalServerError, ErrStorageError, "Storage operation failed: disk full"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.StatusCode() != tt.status {
				t.Errorf("StatusCode() = %d, want %d", tt.err.StatusCode(), tt.status)
			}
			if tt.err.Code() != tt.code {
				t.Errorf("Code() = %s, want %s", tt.err.Code(), tt.code)
			}
			if tt.err.Error() != tt.msg {
				t.Errorf("Error() = %q, want %q", tt.err.Error(), tt.msg)
			}
		})
	}

	t.Run("unwrap", func(t *testing.T) {
		var err error = InternalWithError("boom", cause)
		if !errors.Is(err, cause) {
			t.Error("errors.Is() = false")
		}
		var ews ErrorWithStatus
		if !errors.As(err, &ews) || ews.StatusCode() != http.StatusInternalServerError {
			t.Errorf("errors.As() = %v", ews)
		}
	})

	t.Run("details", func(t *testing.T) {
		if d := RateLimited(2 * time.Second).Details(); d["retry_after_seconds"] != 2 {
			t.Errorf("Details() = %v", d)
		}
		if d := NotFound("x").Details(); d != nil {
			t.Errorf("Details() = %v, want nil", d)
		}
	})
}
