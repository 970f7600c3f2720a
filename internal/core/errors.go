package core

import (
	"errors"
	"fmt"
)

// The error taxonomy splits failures into four families. Validation and
// reference errors abort single user actions but only exclude the affected
// row during an import; conflicts are skips; persistence errors abort the
// remaining batch.

// ValidationError marks input that can never be committed: unparseable
// amounts or dates, missing required references, a transfer onto itself.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ReferenceError marks a reference to an entity that does not exist.
type ReferenceError struct {
	Entity string // "account", "category", "transaction", "schedule"
	ID     string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Entity, e.ID)
}

// ConflictError marks a duplicate external id detected at commit time,
// after dedup already ran. Callers treat it as a skip, not a failure.
type ConflictError struct {
	ExternalID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("transaction with external id %q already exists", e.ExternalID)
}

// PersistenceError marks a storage collaborator that rejected an operation
// or could not be reached.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistencef wraps err as a PersistenceError for the named operation.
func Persistencef(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsReference reports whether err is (or wraps) a ReferenceError.
func IsReference(err error) bool {
	var r *ReferenceError
	return errors.As(err, &r)
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// IsPersistence reports whether err is (or wraps) a PersistenceError.
func IsPersistence(err error) bool {
	var p *PersistenceError
	return errors.As(err, &p)
}
