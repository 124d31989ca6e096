package ferr

import (
	"fmt"
	"testing"
)

func TestNewAndError(t *testing.T) {
	err := New(IllegalState, "corpus is empty")
	if err.Kind != IllegalState {
		t.Fatalf("expected IllegalState, got %v", err.Kind)
	}
	if got, want := err.Error(), "illegal_state: corpus is empty"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(File, cause, "failed to persist entry %d", 7)

	if err.Unwrap() != cause {
		t.Fatalf("Unwrap() did not return the original cause")
	}
	if got, want := err.Error(), "file: failed to persist entry 7: disk full"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestIsThroughWrapChain(t *testing.T) {
	inner := New(ShuttingDown, "stop requested")
	outer := fmt.Errorf("stage aborted: %w", inner)

	if !Is(outer, ShuttingDown) {
		t.Fatal("Is() should see through an fmt.Errorf wrap chain")
	}
	if Is(outer, IllegalArgument) {
		t.Fatal("Is() matched the wrong kind")
	}
}

func TestIsOnPlainError(t *testing.T) {
	if Is(fmt.Errorf("plain"), Unknown) {
		t.Fatal("Is() should not match a non-ferr error")
	}
}

func TestKindStringUnknown(t *testing.T) {
	var k Kind = 999
	if got, want := k.String(), "unknown"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
