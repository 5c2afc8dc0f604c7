package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestChemError_Error(t *testing.T) {
	err := &ChemError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "compound not found",
	}

	expected := "NOT_FOUND: compound not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("input path is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "input path is required" {
		t.Errorf("Message = %q, want %q", err.Message, "input path is required")
	}
}

func TestNewInvalidKind(t *testing.T) {
	err := NewInvalidKind("inchi")

	if err.Code != ErrInvalidKind {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidKind)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Details["kind"] != "inchi" {
		t.Errorf("Details[kind] = %v, want %q", err.Details["kind"], "inchi")
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("run", "01HX")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Message != "run not found: 01HX" {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Details["identifier"] != "01HX" {
		t.Errorf("Details[identifier] = %v, want %q", err.Details["identifier"], "01HX")
	}
}

func TestNewFileNotFound(t *testing.T) {
	err := NewFileNotFound("/tmp/ids.txt")

	if err.Code != ErrFileNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrFileNotFound)
	}
	if err.Details["path"] != "/tmp/ids.txt" {
		t.Errorf("Details[path] = %v", err.Details["path"])
	}
}

func TestNewConflict(t *testing.T) {
	err := NewConflict("a batch is already running")

	if err.Code != ErrConflict {
		t.Errorf("Code = %q, want %q", err.Code, ErrConflict)
	}
	if err.Status != 409 {
		t.Errorf("Status = %d, want 409", err.Status)
	}
}

func TestNewCancelled(t *testing.T) {
	err := NewCancelled("batch")

	if err.Code != ErrCancelled {
		t.Errorf("Code = %q, want %q", err.Code, ErrCancelled)
	}
	if err.Message != "batch cancelled" {
		t.Errorf("Message = %q, want %q", err.Message, "batch cancelled")
	}
}

func TestNewNetwork_Unwraps(t *testing.T) {
	cause := stderrors.New("connection reset by peer")
	err := NewNetwork(cause)

	if err.Code != ErrNetwork {
		t.Errorf("Code = %q, want %q", err.Code, ErrNetwork)
	}
	if err.Status != 503 {
		t.Errorf("Status = %d, want 503", err.Status)
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected NewNetwork to wrap its cause")
	}
}

func TestNewUpstream(t *testing.T) {
	err := NewUpstream(500, "PUGREST.ServerError")

	if err.Code != ErrUpstream {
		t.Errorf("Code = %q, want %q", err.Code, ErrUpstream)
	}
	if err.Details["upstream_status"] != 500 {
		t.Errorf("Details[upstream_status] = %v, want 500", err.Details["upstream_status"])
	}
}

func TestNewInternal(t *testing.T) {
	t.Run("with error", func(t *testing.T) {
		err := NewInternal(fmt.Errorf("database locked"))

		if err.Code != ErrInternal {
			t.Errorf("Code = %q, want %q", err.Code, ErrInternal)
		}
		if err.Message != "database locked" {
			t.Errorf("Message = %q, want %q", err.Message, "database locked")
		}
	})

	t.Run("nil error", func(t *testing.T) {
		err := NewInternal(nil)

		if err.Message != "internal error" {
			t.Errorf("Message = %q, want %q", err.Message, "internal error")
		}
	})
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching code", NewNetwork(nil), ErrNetwork, true},
		{"different code", NewInvalidKind("x"), ErrNetwork, false},
		{"wrapped", fmt.Errorf("lookup: %w", NewNetwork(nil)), ErrNetwork, true},
		{"plain error", stderrors.New("boom"), ErrInternal, false},
		{"nil", nil, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}
