package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned when a record or argument does not satisfy the key schema.
	ErrValidation = errors.New("arbor: validation failed")

	// ErrMissingKey is returned when a record lacks a partition or sort key attribute.
	ErrMissingKey = errors.New("arbor: missing key attribute")

	// ErrTypeMismatch is returned when a key attribute does not have its declared type.
	ErrTypeMismatch = errors.New("arbor: key attribute type mismatch")

	// ErrEncoding is returned when a value cannot be converted to an attribute value.
	ErrEncoding = errors.New("arbor: cannot encode value")

	// ErrDecoding is returned when a key attribute cannot be converted back to a value.
	ErrDecoding = errors.New("arbor: cannot decode attribute")

	// ErrInvalidRange is returned when a range has its lower bound above its upper bound.
	ErrInvalidRange = errors.New("arbor: invalid range")

	// ErrStoreTimeout is returned when a store call does not finish before its deadline.
	ErrStoreTimeout = errors.New("arbor: store call timed out")

	// ErrStoreUnavailable is returned for transport, throttling and server-side failures.
	ErrStoreUnavailable = errors.New("arbor: store unavailable")

	// ErrStoreRejected is returned when the store refuses a well-formed request
	// (missing table, invalid expression, condition failure).
	ErrStoreRejected = errors.New("arbor: store rejected request")

	// ErrUnprocessed is recorded for batch items the store never accepted within the retry budget.
	ErrUnprocessed = errors.New("arbor: item left unprocessed after retries")

	// ErrPartialBatch is returned by BatchResult.Err when some, but not all, records were written.
	ErrPartialBatch = errors.New("arbor: batch partially written")
)

// ValidationError describes which field failed validation.
// It matches both ErrValidation and its underlying cause with errors.Is.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: field %q", e.Err, e.Field)
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}

// CodecError reports the field whose value could not be encoded or decoded.
type CodecError struct {
	Field string
	Err   error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("field %q: %v", e.Field, e.Err)
}

func (e *CodecError) Unwrap() error { return e.Err }

// StoreError wraps a failure returned by a Store call.
// Kind is one of ErrStoreTimeout, ErrStoreUnavailable or ErrStoreRejected.
type StoreError struct {
	Op   string
	Kind error
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// TimeoutError marks err as a store timeout for operation op.
func TimeoutError(op string, err error) error {
	return &StoreError{Op: op, Kind: ErrStoreTimeout, Err: err}
}

// UnavailableError marks err as a transport or capacity failure for operation op.
func UnavailableError(op string, err error) error {
	return &StoreError{Op: op, Kind: ErrStoreUnavailable, Err: err}
}

// RejectedError marks err as a request the store refused for operation op.
func RejectedError(op string, err error) error {
	return &StoreError{Op: op, Kind: ErrStoreRejected, Err: err}
}

// classifyStoreError maps an error returned by a Store into the store error taxonomy.
// Errors already classified by the Store implementation are returned unchanged.
func classifyStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return TimeoutError(op, err)
	}
	return UnavailableError(op, err)
}

// PartialBatchError summarises a bulk write where some records failed.
type PartialBatchError struct {
	Written int
	Failed  int
}

func (e *PartialBatchError) Error() string {
	return fmt.Sprintf("%v: %d written, %d failed", ErrPartialBatch, e.Written, e.Failed)
}

func (e *PartialBatchError) Is(target error) bool {
	return target == ErrPartialBatch
}
