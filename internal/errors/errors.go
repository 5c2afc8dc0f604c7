package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a chemfetch error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrInvalidKind    ErrorCode = "INVALID_KIND"    // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrFileNotFound   ErrorCode = "FILE_NOT_FOUND"  // 404
	ErrConflict       ErrorCode = "CONFLICT"        // 409
	ErrCancelled      ErrorCode = "CANCELLED"       // 499
	ErrInternal       ErrorCode = "INTERNAL"        // 500
	ErrUpstream       ErrorCode = "UPSTREAM"        // 502
	ErrNetwork        ErrorCode = "NETWORK"         // 503, retryable
)

// ChemError represents a structured error with code, status, and details.
type ChemError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	// Err is the underlying cause, if any. It is not rendered to clients.
	Err error
}

// Error implements the error interface.
func (e *ChemError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ChemError) Unwrap() error {
	return e.Err
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ChemError {
	return &ChemError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewInvalidKind creates a 400 error for an unrecognized identifier kind.
func NewInvalidKind(kind string) *ChemError {
	return &ChemError{
		Code:    ErrInvalidKind,
		Status:  400,
		Message: fmt.Sprintf("invalid input kind %q (want one of: name, cid, smiles)", kind),
		Details: map[string]any{"kind": kind},
	}
}

// NewNotFound creates a 404 error for when an identifier or run cannot be found.
func NewNotFound(what, identifier string) *ChemError {
	return &ChemError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", what, identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing input file.
func NewFileNotFound(path string) *ChemError {
	return &ChemError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *ChemError {
	return &ChemError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewCancelled creates a 499 error for an operation stopped by its caller.
func NewCancelled(op string) *ChemError {
	return &ChemError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewNetwork creates a 503 error for connection-level failures. These are the
// only errors the resolver retries.
func NewNetwork(err error) *ChemError {
	msg := "network error"
	if err != nil {
		msg = err.Error()
	}
	return &ChemError{
		Code:    ErrNetwork,
		Status:  503,
		Message: msg,
		Err:     err,
	}
}

// NewUpstream creates a 502 error for an unexpected response from PubChem.
func NewUpstream(status int, msg string) *ChemError {
	return &ChemError{
		Code:    ErrUpstream,
		Status:  502,
		Message: msg,
		Details: map[string]any{"upstream_status": status},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ChemError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ChemError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Err:     err,
	}
}

// Is checks if err is (or wraps) a ChemError with the given code.
func Is(err error, code ErrorCode) bool {
	var cErr *ChemError
	if stderrors.As(err, &cErr) {
		return cErr.Code == code
	}
	return false
}
