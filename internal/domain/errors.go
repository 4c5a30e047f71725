package domain

import (
	"errors"
	"fmt"
)

// Common domain errors that can occur during ranking operations.
var (
	// ErrInsufficientItems indicates that a session or scoring run was
	// attempted with fewer than MinItems items.
	ErrInsufficientItems = errors.New("insufficient items to rank")

	// ErrInvalidJudgment indicates that a judgment did not match the pair
	// currently being presented, or arrived after the session finished.
	ErrInvalidJudgment = errors.New("invalid judgment")

	// ErrDomain indicates that a numeric primitive was called outside of
	// the domain where it is defined.
	ErrDomain = errors.New("argument outside function domain")

	// ErrInvalidMatrix indicates that a win matrix or session snapshot is
	// malformed (wrong shape, negative counts, inconsistent totals).
	ErrInvalidMatrix = errors.New("invalid win matrix")
)

// InsufficientItemsError reports how many items were supplied when at least
// MinItems were required.
type InsufficientItemsError struct {
	// Count is the number of items that were supplied.
	Count int
}

// Error implements the error interface for InsufficientItemsError.
func (e *InsufficientItemsError) Error() string {
	return fmt.Sprintf("not enough items to rank: got %d, need at least %d", e.Count, MinItems)
}

// Unwrap returns ErrInsufficientItems so callers can match with errors.Is.
func (e *InsufficientItemsError) Unwrap() error { return ErrInsufficientItems }

// NewInsufficientItemsError creates an InsufficientItemsError for count items.
func NewInsufficientItemsError(count int) *InsufficientItemsError {
	return &InsufficientItemsError{Count: count}
}

// InvalidJudgmentError describes a RecordWinner call that violated the
// scheduler contract. It always indicates a caller bug.
type InvalidJudgmentError struct {
	// Op names the offending call.
	Op string

	// Winner is the item index the caller tried to record.
	Winner int

	// Pair is the pair at the cursor when the call was made. It is the zero
	// Pair when the session was already complete.
	Pair Pair

	// Cursor is the scheduler position at the time of the call.
	Cursor int

	// Reason explains which precondition failed.
	Reason string
}

// Error implements the error interface for InvalidJudgmentError.
func (e *InvalidJudgmentError) Error() string {
	return fmt.Sprintf("invalid judgment: op=%s, winner=%d, pair=%s, cursor=%d: %s",
		e.Op, e.Winner, e.Pair, e.Cursor, e.Reason)
}

// Unwrap returns ErrInvalidJudgment.
func (e *InvalidJudgmentError) Unwrap() error { return ErrInvalidJudgment }

// DomainError is returned by numeric primitives whose argument lies outside
// their domain, e.g. the normal quantile evaluated at p = 1.
type DomainError struct {
	// Func names the primitive that rejected its argument.
	Func string

	// Value is the rejected argument.
	Value float64
}

// Error implements the error interface for DomainError.
func (e *DomainError) Error() string {
	return fmt.Sprintf("domain error: %s(%g) is undefined", e.Func, e.Value)
}

// Unwrap returns ErrDomain.
func (e *DomainError) Unwrap() error { return ErrDomain }

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Unwrap returns ErrInvalidMatrix; validation errors are only produced
// while checking matrices and snapshots.
func (e *ValidationError) Unwrap() error { return ErrInvalidMatrix }

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// Addf formats and adds a new error message.
func (e *ValidationError) Addf(format string, args ...any) {
	e.AddError(fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// Err returns the ValidationError as an error when it holds failures, or nil.
func (e *ValidationError) Err() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
