package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without wrapped error",
			err:  New(CodeValidation, "invalid input"),
			want: "VALIDATION_ERROR: invalid input",
		},
		{
			name: "with wrapped error",
			err:  Wrap(CodeInternal, "something failed", errors.New("underlying")),
			want: "INTERNAL_ERROR: something failed: underlying",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Wrap(CodeStorage, "wrapped", underlying)

	if unwrapped := err.Unwrap(); unwrapped != underlying {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, underlying)
	}
	if !errors.Is(err, underlying) {
		t.Error("errors.Is() should find the wrapped error")
	}
}

func TestAppError_WithDetail(t *testing.T) {
	err := New(CodeValidation, "invalid").
		WithDetail("field", "test_fraction").
		WithDetail("reason", "out of range")

	if err.Details["field"] != "test_fraction" {
		t.Errorf("Details[field] = %s, want test_fraction", err.Details["field"])
	}
	if err.Details["reason"] != "out of range" {
		t.Errorf("Details[reason] = %s, want out of range", err.Details["reason"])
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		code string
		msg  string
	}{
		{"NotFoundError", NotFoundError("model"), CodeNotFound, "model not found"},
		{"NotFittedError", NotFittedError("vectorizer"), CodeNotFitted, "vectorizer has not been fitted"},
		{"AlreadyFittedError", AlreadyFittedError("vectorizer"), CodeAlreadyFitted, "vectorizer is already fitted"},
		{"UnsupportedError", UnsupportedError("predict_proba", "Linear SVM"), CodeUnsupported, "predict_proba is not supported by Linear SVM"},
		{"ServiceUnavailableError", ServiceUnavailableError("redis"), CodeUnavailable, "redis is unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %s, want %s", tt.err.Code, tt.code)
			}
			if tt.err.Message != tt.msg {
				t.Errorf("Message = %q, want %q", tt.err.Message, tt.msg)
			}
		})
	}

	t.Run("ResourceError", func(t *testing.T) {
		underlying := errors.New("no provider")
		err := ResourceError("stopwords unavailable", underlying)
		if err.Code != CodeResource {
			t.Errorf("Code = %s, want %s", err.Code, CodeResource)
		}
		if err.Unwrap() != underlying {
			t.Error("Underlying error not preserved")
		}
	})
}

func TestPredicates_FollowWrapChain(t *testing.T) {
	wrapped := fmt.Errorf("predict: %w", NotFittedError("vectorizer"))

	if !IsNotFitted(wrapped) {
		t.Error("IsNotFitted(wrapped) = false, want true")
	}
	if IsUnsupported(wrapped) {
		t.Error("IsUnsupported(wrapped) = true, want false")
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Error("CodeOf(plain error) should be empty")
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(NotFoundError("test")) {
		t.Error("IsNotFound(NotFoundError) = false, want true")
	}
	if IsNotFound(ValidationError("test")) {
		t.Error("IsNotFound(ValidationError) = true, want false")
	}
	if IsNotFound(errors.New("standard error")) {
		t.Error("IsNotFound(standard error) = true, want false")
	}
}

func TestIsValidation(t *testing.T) {
	if !IsValidation(ValidationError("test")) {
		t.Error("IsValidation(ValidationError) = false, want true")
	}
	if IsValidation(NotFoundError("test")) {
		t.Error("IsValidation(NotFoundError) = true, want false")
	}
}

func TestIsResource(t *testing.T) {
	if !IsResource(ResourceError("fetch", nil)) {
		t.Error("IsResource(ResourceError) = false, want true")
	}
	if IsResource(StorageError("write", nil)) {
		t.Error("IsResource(StorageError) = true, want false")
	}
}
