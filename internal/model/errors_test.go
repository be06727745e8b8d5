package model

import (
	"errors"
	"strings"
	"testing"
)

func TestAPIError_ImplementsError(t *testing.T) {
	var err error = NewMissingFieldError([]string{"company", "job"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatal("expected *APIError")
	}
	if apiErr.Code != ErrCodeMissingField {
		t.Errorf("Code = %q, want %q", apiErr.Code, ErrCodeMissingField)
	}
	if !strings.HasPrefix(err.Error(), "[MISSING_FIELD] ") {
		t.Errorf("Error() = %q, want [MISSING_FIELD] prefix", err.Error())
	}
	if !strings.Contains(apiErr.Message, "company, job") {
		t.Errorf("Message = %q, want field list", apiErr.Message)
	}
}

func TestConstructors_CategoryAndAction(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		code     string
		category string
	}{
		{"illegal transition", NewIllegalTransitionError("landing", "result", "not allowed"), ErrCodeIllegalTransition, "flow"},
		{"no platform", NewNoPlatformConnectedError(), ErrCodeIllegalTransition, "flow"},
		{"missing field", NewMissingFieldError([]string{"job"}), ErrCodeMissingField, "validation"},
		{"invalid platform", NewInvalidPlatformError("myspace"), ErrCodeInvalidPlatform, "validation"},
		{"invalid request", NewInvalidRequestError("bad json"), ErrCodeInvalidRequest, "validation"},
		{"session not found", NewSessionNotFoundError(), ErrCodeSessionNotFound, "session"},
		{"csrf", NewCSRFInvalidError(), ErrCodeCSRFInvalid, "session"},
		{"rate limited", NewRateLimitedError(), ErrCodeRateLimited, "system"},
		{"internal", NewInternalError(), ErrCodeInternal, "system"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.Category != tt.category {
				t.Errorf("Category = %q, want %q", tt.err.Category, tt.category)
			}
			if tt.err.Message == "" || tt.err.Action == "" {
				t.Error("Message and Action must be set")
			}
		})
	}
}

func TestNewIllegalTransitionError_NamesPages(t *testing.T) {
	err := NewIllegalTransitionError("landing", "result", "not allowed")
	if !strings.Contains(err.Message, "'landing'") || !strings.Contains(err.Message, "'result'") {
		t.Errorf("Message = %q, want both page names", err.Message)
	}
}
