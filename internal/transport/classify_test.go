// Package transport tests for error classification.
package transport

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/aidapp/aida/backend/internal/errors"
)

// timeoutError fakes a net.Error timeout.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// TestClassify_Statuses verifies the status-code mapping and retry tags.
func TestClassify_Statuses(t *testing.T) {
	tests := []struct {
		status    int
		wantCode  errors.ErrorCode
		retryable bool
	}{
		{401, errors.ErrAuthExpired, false},
		{400, errors.ErrBadRequest, false},
		{403, errors.ErrForbidden, false},
		{404, errors.ErrNotFound, false},
		{500, errors.ErrServerError, true},
		{502, errors.ErrServerError, true},
		{599, errors.ErrServerError, true},
		{402, errors.ErrUnknown, false},
		{409, errors.ErrUnknown, false},
		{418, errors.ErrUnknown, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			appErr := Classify(&StatusError{Status: tt.status})

			if appErr.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", appErr.Code, tt.wantCode)
			}
			if appErr.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", appErr.Retryable, tt.retryable)
			}
			if appErr.HTTPStatus != tt.status {
				t.Errorf("HTTPStatus = %d, want %d", appErr.HTTPStatus, tt.status)
			}
		})
	}
}

// TestClassify_Timeout verifies timeout detection for both deadline and net errors.
func TestClassify_Timeout(t *testing.T) {
	for _, err := range []error{
		context.DeadlineExceeded,
		fmt.Errorf("send: %w", context.DeadlineExceeded),
		timeoutError{},
	} {
		appErr := Classify(err)
		if appErr.Code != errors.ErrTimeout {
			t.Errorf("Classify(%v).Code = %q, want TIMEOUT", err, appErr.Code)
		}
		if !appErr.Retryable {
			t.Errorf("Classify(%v) should be retryable", err)
		}
	}
}

// TestClassify_NoResponse verifies transport-level failures map to NetworkError.
func TestClassify_NoResponse(t *testing.T) {
	appErr := Classify(stderrors.New("dial tcp: connection refused"))

	if appErr.Code != errors.ErrNetwork {
		t.Errorf("Code = %q, want NETWORK_ERROR", appErr.Code)
	}
	if !appErr.Retryable {
		t.Error("network errors should be retryable")
	}
	if appErr.HTTPStatus != 0 {
		t.Errorf("HTTPStatus = %d, want 0 for no response", appErr.HTTPStatus)
	}
}

// TestClassify_Nil verifies success passes through untouched.
func TestClassify_Nil(t *testing.T) {
	if Classify(nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
}
