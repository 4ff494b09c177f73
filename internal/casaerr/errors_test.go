package casaerr

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	err := New(AlreadyDefined, "AddParameter", "parameter %s already has a value", "SpekkSP")
	got := err.Error()
	if !strings.Contains(got, "AddParameter") || !strings.Contains(got, "already defined") || !strings.Contains(got, "SpekkSP") {
		t.Fatalf("unexpected message: %s", got)
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(IoError, "op", nil, "ignored"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestIsByCode(t *testing.T) {
	base := Wrap(IoError, "MutateTo", io.ErrUnexpectedEOF, "copy failed")
	wrapped := fmt.Errorf("case 3: %w", base)

	if !errors.Is(wrapped, ErrIO) {
		t.Fatalf("errors.Is should match the io sentinel")
	}
	if errors.Is(wrapped, ErrSolver) {
		t.Fatalf("errors.Is should not match a different code")
	}
	if !errors.Is(wrapped, io.ErrUnexpectedEOF) {
		t.Fatalf("wrapped cause should stay reachable")
	}
	if !Is(wrapped, IoError) {
		t.Fatalf("Is should match the code")
	}
	if CodeOf(wrapped) != IoError {
		t.Fatalf("expected IoError, got %v", CodeOf(wrapped))
	}
}

func TestIsNestedCodes(t *testing.T) {
	inner := New(SolverError, "Fit", "rank deficient design")
	outer := Wrap(RunManagerError, "Calibrate", inner, "iteration 2")
	if !Is(outer, SolverError) {
		t.Fatalf("nested code should be found")
	}
	if CodeOf(outer) != RunManagerError {
		t.Fatalf("outermost code expected")
	}
	if Is(errors.New("plain"), SolverError) {
		t.Fatalf("plain errors carry no code")
	}
}

func TestCodeString(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{AlreadyDefined, "already defined"},
		{VersionMismatch, "version mismatch"},
		{Code(99), "code(99)"},
	}
	for _, tt := range tests {
		if got := tt.code.String(); got != tt.want {
			t.Errorf("Code(%d).String() = %q, want %q", int(tt.code), got, tt.want)
		}
	}
}
