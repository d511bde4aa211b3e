package predictor

import (
	"errors"
	"fmt"
)

var (
	ErrSchemaMismatch = errors.New("schema mismatch")
	ErrInference      = errors.New("inference failed")
	ErrNotReady       = errors.New("no artifact bundle loaded")
)

// SchemaMismatchError means the deployed schema and models disagree with each
// other or with the assembled features. It is a deployment fault, not bad input.
type SchemaMismatchError struct {
	Reason string
}

func schemaMismatch(format string, args ...interface{}) SchemaMismatchError {
	return SchemaMismatchError{Reason: fmt.Sprintf(format, args...)}
}

func (e SchemaMismatchError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSchemaMismatch, e.Reason)
}

func (e SchemaMismatchError) Unwrap() error {
	return ErrSchemaMismatch
}

func IsSchemaMismatch(err error) bool {
	var se SchemaMismatchError
	return errors.As(err, &se)
}

// InferenceError wraps the failure of a single ensemble member. Inference is
// deterministic so callers must not retry.
type InferenceError struct {
	Category string
	Err      error
}

func (e InferenceError) Error() string {
	return fmt.Sprintf("%s for %s: %v", ErrInference, e.Category, e.Err)
}

func (e InferenceError) Unwrap() []error {
	return []error{ErrInference, e.Err}
}

func IsInferenceError(err error) bool {
	var ie InferenceError
	return errors.As(err, &ie)
}
