package serialization

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrMalformedRecord = errors.New("malformed tensor record")
	ErrEmptyTensor     = errors.New("tensor has no elements")
	ErrRaggedMatrix    = errors.New("matrix rows have different lengths")
	ErrNonFinite       = errors.New("tensor holds a non-finite value")
)

// RecordError reports which record of a stream failed to parse.
type RecordError struct {
	Line int    // 1-based line number of the record
	Kind string // "matrix" or "vector"
	Err  error  // Underlying failure
}

// Error implements the error interface.
func (e *RecordError) Error() string {
	return fmt.Sprintf("line %d: %s record: %v", e.Line, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *RecordError) Unwrap() error {
	return e.Err
}
