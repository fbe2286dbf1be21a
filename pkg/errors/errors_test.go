package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", 400)
	expected := "INVALID_INPUT: test error"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestAppError_WithCause(t *testing.T) {
	originalErr := errors.New("original error")
	err := WrapError(originalErr, ErrCodeInternal, "wrapped error", 500)

	if err.Cause != originalErr {
		t.Errorf("Cause = %v, want %v", err.Cause, originalErr)
	}

	if !errors.Is(err, originalErr) {
		t.Errorf("errors.Is should match the wrapped cause")
	}
}

func TestAppError_WithContext(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", 400)
	err.WithContext("field", "value").WithContext("count", 42)

	if err.Context["field"] != "value" {
		t.Errorf("Context[field] = %v, want 'value'", err.Context["field"])
	}
	if err.Context["count"] != 42 {
		t.Errorf("Context[count] = %v, want 42", err.Context["count"])
	}
}

func TestConstructors(t *testing.T) {
	cases := []struct {
		err    *AppError
		code   ErrorCode
		status int
	}{
		{NewInvalidInputError("bad"), ErrCodeInvalidInput, 400},
		{NewNotFoundError("recording"), ErrCodeNotFound, 404},
		{NewUnauthorizedError("no token"), ErrCodeUnauthorized, 401},
		{NewServiceUnavailableError("store down"), ErrCodeServiceUnavailable, 503},
		{NewInternalError("boom"), ErrCodeInternal, 500},
		{NewTranscodeError(errors.New("exit 1")), ErrCodeTranscodeFailure, 500},
	}

	for _, tc := range cases {
		if tc.err.Code != tc.code {
			t.Errorf("Code = %v, want %v", tc.err.Code, tc.code)
		}
		if tc.err.HTTPStatus != tc.status {
			t.Errorf("HTTPStatus = %v, want %v", tc.err.HTTPStatus, tc.status)
		}
	}
}

func TestIsAppError(t *testing.T) {
	appErr := NewAppError(ErrCodeInvalidInput, "test", 400)
	regularErr := errors.New("regular error")

	if !IsAppError(appErr) {
		t.Error("IsAppError() should return true for AppError")
	}
	if IsAppError(regularErr) {
		t.Error("IsAppError() should return false for regular error")
	}
}

func TestGetAppError(t *testing.T) {
	appErr := NewAppError(ErrCodeNotFound, "test", 404)

	if GetAppError(appErr) != appErr {
		t.Error("GetAppError() should return the AppError itself")
	}

	wrapped := fmt.Errorf("outer: %w", appErr)
	if GetAppError(wrapped) != appErr {
		t.Error("GetAppError() should unwrap to the AppError")
	}

	if GetAppError(errors.New("plain")) != nil {
		t.Error("GetAppError() should return nil for non-AppError")
	}

	if GetAppError(nil) != nil {
		t.Error("GetAppError(nil) should return nil")
	}
}
