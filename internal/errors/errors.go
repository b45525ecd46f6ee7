// Package errors defines the typed error taxonomy raised by the indexing
// core, matching the classification in spec.md §7: transient IO errors,
// open failures, fatal parse-invariant violations, out-of-range line
// length, unexpected exceptions, and interrupts (which are not errors).
package errors

import (
	"fmt"
	"time"
)

// ErrorType classifies an error for logging and recovery decisions.
type ErrorType string

const (
	// ErrorTypeIndexing covers block-parsing and pipeline failures.
	ErrorTypeIndexing ErrorType = "indexing"
	// ErrorTypeEncoding covers codec detection/selection failures.
	ErrorTypeEncoding ErrorType = "encoding"
	// ErrorTypeFileAccess covers open/read/stat failures on the indexed file.
	ErrorTypeFileAccess ErrorType = "file_access"
	// ErrorTypeChangeCheck covers failures while classifying a file's change state.
	ErrorTypeChangeCheck ErrorType = "change_check"
	// ErrorTypeConfig covers configuration load/parse failures.
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeInternal covers invariant violations and unexpected panics.
	ErrorTypeInternal ErrorType = "internal"
)

// IndexingError represents a failure encountered while indexing a block or
// running the pipeline. Operation names the stage ("parse_block",
// "read_block", "finalize"); BlockOffset is the block's starting file
// offset when known (-1 otherwise).
type IndexingError struct {
	Type        ErrorType
	Operation   string
	BlockOffset int64
	Underlying  error
	Timestamp   time.Time
	Recoverable bool
}

// NewIndexingError creates an indexing error for the given stage.
func NewIndexingError(op string, err error) *IndexingError {
	return &IndexingError{
		Type:        ErrorTypeIndexing,
		Operation:   op,
		BlockOffset: -1,
		Underlying:  err,
		Timestamp:   time.Now(),
	}
}

// WithBlock attaches the offending block's starting offset.
func (e *IndexingError) WithBlock(offset int64) *IndexingError {
	e.BlockOffset = offset
	return e
}

// WithRecoverable marks whether the caller may continue best-effort.
func (e *IndexingError) WithRecoverable(recoverable bool) *IndexingError {
	e.Recoverable = recoverable
	return e
}

func (e *IndexingError) Error() string {
	if e.BlockOffset >= 0 {
		return fmt.Sprintf("%s %s failed at block offset %d: %v", e.Type, e.Operation, e.BlockOffset, e.Underlying)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Type, e.Operation, e.Underlying)
}

func (e *IndexingError) Unwrap() error { return e.Underlying }

// IsRecoverable reports whether the pipeline may continue best-effort.
func (e *IndexingError) IsRecoverable() bool { return e.Recoverable }

// EncodingError represents a failure in codec detection or resolution.
type EncodingError struct {
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewEncodingError creates a new encoding-detection error.
func NewEncodingError(op string, err error) *EncodingError {
	return &EncodingError{Operation: op, Underlying: err, Timestamp: time.Now()}
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", ErrorTypeEncoding, e.Operation, e.Underlying)
}

func (e *EncodingError) Unwrap() error { return e.Underlying }

// FileAccessError represents a failure opening, reading, or stat-ing the
// indexed file.
type FileAccessError struct {
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewFileAccessError creates a new file access error.
func NewFileAccessError(op, path string, err error) *FileAccessError {
	return &FileAccessError{Path: path, Operation: op, Underlying: err, Timestamp: time.Now()}
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("%s %s failed for %s: %v", ErrorTypeFileAccess, e.Operation, e.Path, e.Underlying)
}

func (e *FileAccessError) Unwrap() error { return e.Underlying }

// ChangeCheckError represents a failure while classifying a monitored
// file's change state.
type ChangeCheckError struct {
	Path       string
	Underlying error
	Timestamp  time.Time
}

// NewChangeCheckError creates a new change-check error.
func NewChangeCheckError(path string, err error) *ChangeCheckError {
	return &ChangeCheckError{Path: path, Underlying: err, Timestamp: time.Now()}
}

func (e *ChangeCheckError) Error() string {
	return fmt.Sprintf("%s check failed for %s: %v", ErrorTypeChangeCheck, e.Path, e.Underlying)
}

func (e *ChangeCheckError) Unwrap() error { return e.Underlying }

// ConfigError represents a configuration load/parse failure.
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new configuration error.
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{Field: field, Value: value, Underlying: err, Timestamp: time.Now()}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %q): %v", e.Field, e.Value, e.Underlying)
}

func (e *ConfigError) Unwrap() error { return e.Underlying }

// MultiError aggregates several errors, as produced when the worker's
// unexpected-exception handler needs to report more than one underlying
// cause.
type MultiError struct {
	Errors []error
}

// NewMultiError creates a multi-error, dropping any nil entries.
func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

func (e *MultiError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	default:
		return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
	}
}

func (e *MultiError) Unwrap() []error { return e.Errors }
