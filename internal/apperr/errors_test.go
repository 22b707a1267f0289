// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"no match", fmt.Errorf("resolving: %w", ErrNoMatch), ExitNoMatch},
		{"aborted", ErrSelectionAborted, ExitAborted},
		{"conflict error", &ConflictError{Key: "ABCD1234", Expected: 3}, ExitConflict},
		{"network", NetworkFailure(errors.New("dial tcp: refused")), ExitNetwork},
		{"auth", fmt.Errorf("sync: %w", ErrAuth), ExitAuth},
		{"conversion", fmt.Errorf("%w: pandoc missing", ErrConversion), ExitConversion},
		{"editor", ErrEditorFailed, ExitEditor},
		{"other", errors.New("boom"), ExitGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestConflictErrorIs(t *testing.T) {
	err := fmt.Errorf("writing note: %w", &ConflictError{Key: "ABCD1234", Expected: 3, Current: 4})
	if !errors.Is(err, ErrConflict) {
		t.Fatal("expected ConflictError to match ErrConflict")
	}
	var ce *ConflictError
	if !errors.As(err, &ce) || ce.Current != 4 {
		t.Fatalf("errors.As: got %+v", ce)
	}
}

func TestNetworkFailureUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := NetworkFailure(cause)
	if !errors.Is(err, ErrNetwork) || !errors.Is(err, cause) {
		t.Fatalf("NetworkFailure should match both ErrNetwork and its cause: %v", err)
	}
	if NetworkFailure(nil) != nil {
		t.Fatal("NetworkFailure(nil) should be nil")
	}
}
