package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the storage backends.
var (
	ErrQuotaExceeded    = errors.New("local storage quota exceeded")
	ErrDocumentNotFound = errors.New("document not found")
)

// InputValidationError reports an empty or malformed key. Nothing is touched
// when it is returned.
type InputValidationError struct {
	Field string
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// FetchError wraps a failure of the record-fetch collaborator.
type FetchError struct {
	Symbol string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.Symbol, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StorageError wraps a backend read or write failure.
type StorageError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s storage %s failed: %v", e.Backend, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// CompressionError reports a compaction failure. Callers store the
// uncompacted record instead.
type CompressionError struct {
	Err error
}

func (e *CompressionError) Error() string {
	return fmt.Sprintf("compression failed: %v", e.Err)
}

func (e *CompressionError) Unwrap() error { return e.Err }

// DetectionError reports a publication cadence detection failure. Callers
// fall back to TTL-only staleness.
type DetectionError struct {
	Err error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("publication detection failed: %v", e.Err)
}

func (e *DetectionError) Unwrap() error { return e.Err }
