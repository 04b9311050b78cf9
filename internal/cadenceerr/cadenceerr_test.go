package cadenceerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestAsUnwrapsWrappedError(t *testing.T) {
	base := NotFound("song 7")
	wrapped := fmt.Errorf("controller: %w", base)

	got, ok := As(wrapped)
	if !ok {
		t.Fatal("expected As to find the wrapped *Error")
	}
	if got.Kind != KindNotFound {
		t.Fatalf("Kind = %v, want NotFound", got.Kind)
	}
}

func TestAsRejectsPlainError(t *testing.T) {
	if _, ok := As(errors.New("boom")); ok {
		t.Fatal("expected As to reject a plain error")
	}
}

func TestAlreadyInProgressIncludesJobKind(t *testing.T) {
	err := AlreadyInProgress("rescan")
	if err.Kind != KindAlreadyInProgress {
		t.Fatalf("Kind = %v, want AlreadyInProgress", err.Kind)
	}
	if err.JobKind != "rescan" {
		t.Fatalf("JobKind = %q, want rescan", err.JobKind)
	}
	if got := err.Error(); got != "AlreadyInProgress(rescan): rescan is already in progress" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestStorageWrapsUnderlyingError(t *testing.T) {
	underlying := errors.New("disk full")
	err := Storage(underlying)
	if !errors.Is(err, underlying) {
		t.Fatal("expected Storage's Unwrap to expose the underlying error")
	}
}
