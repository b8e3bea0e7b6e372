package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrKindMismatch indicates an entity of an unexpected kind was passed
	// to a typed wrapper.
	ErrKindMismatch = errors.New("entity kind mismatch")

	// ErrUnsupportedProvider indicates no converter is registered for the
	// requested ESDH provider.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrUnknownSource indicates a source ID not present in configuration.
	ErrUnknownSource = errors.New("unknown source")

	// ErrImportInProgress indicates an import is already running for a source.
	ErrImportInProgress = errors.New("import in progress")
)

// RowError marks a failure confined to a single manifest row. The batch
// continues past it; anything else on the reader's error channel aborts
// the run.
type RowError struct {
	// SourceURL is the manifest file that produced the failure.
	SourceURL string

	// Err is the underlying cause (typically a parse error).
	Err error
}

// Error implements the error interface.
func (e *RowError) Error() string {
	return fmt.Sprintf("row %s: %v", e.SourceURL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *RowError) Unwrap() error {
	return e.Err
}

// IsRowError checks whether err is confined to a single row.
// Returns the RowError and true if it is, nil and false otherwise.
func IsRowError(err error) (*RowError, bool) {
	var re *RowError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
