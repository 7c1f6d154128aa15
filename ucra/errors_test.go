package ucra

import (
	"errors"
	"fmt"
	"testing"
)

// TestStatusOf tests mapping errors back to status codes.
func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"nil", nil, StatusSuccess},
		{"sentinel", ErrInvalidArgument, StatusInvalidArgument},
		{"wrapped sentinel", fmt.Errorf("open: %w", ErrNotSupported), StatusNotSupported},
		{"ucra error", NewError(ErrOutOfMemory, "engine", "render"), StatusOutOfMemory},
		{"wrapped ucra error", fmt.Errorf("x: %w", NewError(ErrEndOfStream, "stream", "pull")), StatusEndOfStream},
		{"manifest", NewError(ErrInvalidManifest, "manifest", "load").WithCause(errors.New("boom")), StatusInvalidManifest},
		{"unknown", errors.New("something else"), StatusInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusOf(tt.err); got != tt.want {
				t.Errorf("StatusOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestStatusErrRoundTrip tests that every status maps to a sentinel that maps back.
func TestStatusErrRoundTrip(t *testing.T) {
	for s := StatusInvalidArgument; s <= StatusEndOfStream; s++ {
		err := s.Err()
		if err == nil {
			t.Fatalf("%v: expected error", s)
		}
		if got := StatusOf(err); got != s {
			t.Errorf("StatusOf(%v.Err()) = %v", s, got)
		}
	}
	if StatusSuccess.Err() != nil {
		t.Error("StatusSuccess.Err() should be nil")
	}
	if Status(99).Err() != ErrInternal {
		t.Error("unknown status should map to ErrInternal")
	}
}

// TestErrorFormatting tests the message and unwrapping of Error.
func TestErrorFormatting(t *testing.T) {
	cause := errors.New("disk on fire")
	err := NewError(ErrFileNotFound, "manifest", "load").
		WithContext("path", "a.json").
		WithCause(cause)

	want := "manifest load: file not found (path=a.json): disk on fire"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrFileNotFound) {
		t.Error("expected errors.Is to match sentinel")
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to match cause")
	}

	var ue *Error
	if !errors.As(fmt.Errorf("wrap: %w", err), &ue) {
		t.Fatal("expected errors.As to find *Error")
	}
	if ue.Component != "manifest" {
		t.Errorf("Component = %q", ue.Component)
	}
}

// TestIsRecoverable tests recoverability classification.
func TestIsRecoverable(t *testing.T) {
	if !IsRecoverable(nil) {
		t.Error("nil should be recoverable")
	}
	if !IsRecoverable(ErrInvalidArgument) {
		t.Error("invalid argument should be recoverable")
	}
	if IsRecoverable(ErrInternal) {
		t.Error("internal error should not be recoverable")
	}
	if IsRecoverable(ErrOutOfMemory) {
		t.Error("out of memory should not be recoverable")
	}
}
