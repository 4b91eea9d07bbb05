// Package domain defines domain-specific errors.
// These errors represent business logic failures and are independent of infrastructure.
package domain

import (
	"errors"
	"fmt"
)

// Common errors that services can return.
var (
	// ErrNoTrackLoaded is returned when a transport operation is attempted
	// with no track loaded in the engine.
	ErrNoTrackLoaded = errors.New("no track loaded")

	// ErrInvalidTrackHandle is returned when an invalid track handle is used.
	ErrInvalidTrackHandle = errors.New("invalid track handle")

	// ErrQueueEmpty is returned when queue operations are attempted on an empty queue.
	ErrQueueEmpty = errors.New("queue is empty")

	// ErrInvalidIndex is returned when a queue index is out of bounds.
	ErrInvalidIndex = errors.New("invalid queue index")

	// ErrInvalidVolume is returned when the volume is out of valid range (0.0-1.0).
	ErrInvalidVolume = errors.New("invalid volume: must be between 0.0 and 1.0")

	// ErrInvalidRate is returned when the playback rate is not positive.
	ErrInvalidRate = errors.New("invalid playback rate: must be positive")

	// ErrInvalidURL is returned when a track has no usable audio location.
	ErrInvalidURL = errors.New("invalid audio url")

	// ErrNotFound is returned by repositories when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDownloadInFlight is returned when a download is started for a source
	// that is already transferring.
	ErrDownloadInFlight = errors.New("download already in flight")

	// ErrNoSnapshot is returned when no resume snapshot exists to restore.
	ErrNoSnapshot = errors.New("no resume snapshot")
)

// EngineError wraps a low-level audio engine failure with context.
type EngineError struct {
	Op      string // Operation that failed (e.g., "load", "play", "seek")
	URL     string // Audio location (if applicable)
	Message string // Error message
	Err     error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("audio engine %s failed for %q: %s", e.Op, e.URL, e.Message)
	}
	return fmt.Sprintf("audio engine %s failed: %s", e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError creates a new EngineError.
func NewEngineError(op, url, message string, err error) *EngineError {
	return &EngineError{Op: op, URL: url, Message: message, Err: err}
}

// RepositoryError wraps a persistence layer failure with context.
type RepositoryError struct {
	Op      string // Operation that failed (e.g., "save", "load", "delete")
	Type    string // Repository type (e.g., "downloads", "favorites", "resume")
	Message string // Error message
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s.%s failed: %s", e.Type, e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// NewRepositoryError creates a new RepositoryError.
func NewRepositoryError(op, repoType, message string, err error) *RepositoryError {
	return &RepositoryError{Op: op, Type: repoType, Message: message, Err: err}
}

// TransferError wraps a network fetch or stream failure (downloads, clips).
type TransferError struct {
	Op      string // Phase that failed (e.g., "fetch", "stream", "persist")
	URL     string // Remote location
	Status  int    // HTTP status code (0 if not applicable)
	Message string // Error message
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *TransferError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transfer %s failed for %q: %s (status %d)", e.Op, e.URL, e.Message, e.Status)
	}
	return fmt.Sprintf("transfer %s failed for %q: %s", e.Op, e.URL, e.Message)
}

// Unwrap returns the underlying error.
func (e *TransferError) Unwrap() error {
	return e.Err
}

// NewTransferError creates a new TransferError.
func NewTransferError(op, url string, status int, message string, err error) *TransferError {
	return &TransferError{Op: op, URL: url, Status: status, Message: message, Err: err}
}

// ValidationError represents a caller-contract violation.
type ValidationError struct {
	Field   string      // Field that failed validation
	Value   interface{} // Value that failed validation
	Message string      // Error message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v)", e.Field, e.Message, e.Value)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}
