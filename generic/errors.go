/*
errors.go - Centralized error taxonomy

PURPOSE:
  All engine-wide error types in one place. Sentinels are matched with
  errors.Is; structured errors carry the detail a caller needs to act and
  unwrap to their sentinel.

ERROR CATEGORIES:
  1. Client errors - caused by caller state, never retried
     (validation, forbidden, insufficient balance, not found, ...)
  2. Transaction errors - the store could not commit; surfaced as
     TransactionFailedError, state unchanged
  3. Transient errors - lock timeouts and serialization failures; only
     idempotent reads retry them

SEE ALSO:
  - booking/errors.go: Booking state-machine errors built on these sentinels
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation marks missing or malformed input. No state was changed.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned by stores when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientBalance is returned when a debit would take a balance below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrForbidden is returned when the caller does not own the resource it acts on.
	ErrForbidden = errors.New("forbidden")

	// ErrDuplicateIdempotencyKey is returned when an entry with the same key exists.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrConcurrentModification is returned when optimistic locking or the
	// database detects a conflicting writer.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrTransactionFailed is returned when a money-moving transaction could not commit.
	ErrTransactionFailed = errors.New("transaction failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes one invalid input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid is shorthand for a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError names the kind of resource that is missing.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Kind, e.ID) }

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	UserID    UserID
	Available Amount
	Requested Amount
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s: available %s, requested %s, shortfall %s",
		e.UserID, e.Available, e.Requested, e.Requested.Sub(e.Available))
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// ForbiddenError records who tried to do what.
type ForbiddenError struct {
	UserID UserID
	Action string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden: %s may not %s", e.UserID, e.Action)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// TransactionFailedError wraps a store failure on the write path. The
// transaction was rolled back; nothing was applied.
type TransactionFailedError struct {
	Op  string
	Err error
}

func (e *TransactionFailedError) Error() string {
	return fmt.Sprintf("%s: transaction failed: %v", e.Op, e.Err)
}

func (e *TransactionFailedError) Is(target error) bool { return target == ErrTransactionFailed }

func (e *TransactionFailedError) Unwrap() error { return e.Err }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// clientErrors are registered by domain packages so IsClientError knows
// their sentinels without an import cycle.
var clientErrors = []error{
	ErrValidation,
	ErrNotFound,
	ErrInsufficientBalance,
	ErrForbidden,
	ErrDuplicateIdempotencyKey,
}

// RegisterClientError marks a domain sentinel as a client error. Call from init.
func RegisterClientError(err error) {
	clientErrors = append(clientErrors, err)
}

// IsClientError returns true if the error is due to caller state or input.
func IsClientError(err error) bool {
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
