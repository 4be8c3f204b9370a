package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ContractNotFound, "contract not found: Vault")
	msg := err.Error()

	if !strings.Contains(msg, "CONTRACT_NOT_FOUND") {
		t.Errorf("expected code in message, got %q", msg)
	}
	if !strings.Contains(msg, "Vault") {
		t.Errorf("expected message text, got %q", msg)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(IOError, "writing artifact", cause)

	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("expected cause in message, got %q", err.Error())
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"direct", New(VersionMismatch, "schema too new"), VersionMismatch},
		{"wrapped", fmt.Errorf("loading: %w", New(CorruptArtifact, "bad tag")), CorruptArtifact},
		{"plain error", fmt.Errorf("boom"), InternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsCode(t *testing.T) {
	err := Newf(FunctionNotFound, "function %q not found", "foo()")
	if !IsCode(err, FunctionNotFound) {
		t.Error("expected IsCode to match FunctionNotFound")
	}
	if IsCode(err, ContractNotFound) {
		t.Error("did not expect IsCode to match ContractNotFound")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(AmbiguousResolution, "multiple candidates").
		WithDetails(map[string]interface{}{"candidates": 3})
	if err.Details == nil {
		t.Fatal("expected details to be set")
	}
}
