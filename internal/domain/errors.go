package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrAmbiguousCommit      = errors.New("ambiguous commit")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidInput         = errors.New("invalid input")
	ErrStorage              = errors.New("storage failure")
	ErrUnauthorized         = errors.New("unauthorized")

	// ErrSeatUnavailable means the seat is already claimed. Callers should
	// pick another seat; it is not a system fault.
	ErrSeatUnavailable = errors.New("seat unavailable")

	// ErrSeatMismatch rejects a group whose seats are missing or repeated.
	ErrSeatMismatch = errors.New("seat selection mismatch")

	// ErrAmountMismatch means a charge does not cover exactly the bookings
	// it names.
	ErrAmountMismatch = errors.New("payment amount mismatch")
)

// ValidationError carries field-level messages for malformed input.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// StorageError wraps a backing store failure. It is retryable.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// PaymentCallbackError is returned when the gateway reported a successful
// charge but the bookings could not be approved. The customer has paid, so
// the reference must reach an operator.
type PaymentCallbackError struct {
	Reference  string
	BookingIDs []uuid.UUID
	Err        error
}

func (e *PaymentCallbackError) Error() string {
	return fmt.Sprintf("payment %s could not be applied to %d booking(s): %v", e.Reference, len(e.BookingIDs), e.Err)
}

func (e *PaymentCallbackError) Unwrap() error { return e.Err }
