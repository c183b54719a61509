// Package faults defines the error taxonomy shared by the dispatch core.
// ValidationError is malformed caller input and never mutates state.
// ConflictError is a lost race or a transition from the wrong state; the
// caller recovers by refreshing, it is not retried automatically.
// TransientIOError is a store/network failure retried by the periodic
// refresh or an explicit user retry.
package faults

import (
	"errors"
	"fmt"
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

type ConflictError struct {
	Entity string
	ID     string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s %s: %s", e.Entity, e.ID, e.Reason)
}

func Conflict(entity, id, reason string) error {
	return &ConflictError{Entity: entity, ID: id, Reason: reason}
}

type TransientIOError struct {
	Op  string
	Err error
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientIOError) Unwrap() error { return e.Err }

func Transient(op string, err error) error {
	return &TransientIOError{Op: op, Err: err}
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

func IsTransient(err error) bool {
	var t *TransientIOError
	return errors.As(err, &t)
}
