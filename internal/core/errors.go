package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrDuplicateMonthClaim = errors.New("month already claimed")
	ErrNotFound            = errors.New("not found")
	ErrTransientIO         = errors.New("transient i/o failure")
	ErrConflict            = errors.New("conflict")

	ErrInvalidAmount = errors.New("invalid amount")
)

// FieldError is used to indicate an error with a specific field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError is returned before any storage call when input is malformed.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, fields ...FieldError) error {
	return &ValidationError{Err: err, Fields: fields}
}

// Invalid builds a ValidationError for a single field.
func Invalid(field, msg string) error {
	return &ValidationError{
		Err:    fmt.Errorf("%s: %s", field, msg),
		Fields: []FieldError{{Field: field, Error: msg}},
	}
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return ErrValidation.Error()
	}
	if len(e.Fields) <= 1 {
		return e.Err.Error()
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Error
	}
	return e.Err.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// fieldErrors accumulates per-field problems inside Validate methods.
type fieldErrors []FieldError

func (f *fieldErrors) add(field, msg string) {
	*f = append(*f, FieldError{Field: field, Error: msg})
}

func (f fieldErrors) err(what string) error {
	if len(f) == 0 {
		return nil
	}
	if len(f) == 1 {
		return &ValidationError{Err: fmt.Errorf("%s: %s", f[0].Field, f[0].Error), Fields: f}
	}
	return &ValidationError{Err: fmt.Errorf("invalid %s", what), Fields: f}
}

// DuplicateMonthClaimError reports that (group, month) already has a claimant.
type DuplicateMonthClaimError struct {
	GroupID string
	Month   Month
	HeldBy  string
}

func (e *DuplicateMonthClaimError) Error() string {
	if e.HeldBy != "" {
		return fmt.Sprintf("month %s in group %s is already assigned to %s", e.Month, e.GroupID, e.HeldBy)
	}
	return fmt.Sprintf("month %s in group %s is already assigned", e.Month, e.GroupID)
}

func (e *DuplicateMonthClaimError) Is(target error) bool { return target == ErrDuplicateMonthClaim }

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func NewNotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// TransientIOError wraps a storage or network failure the caller may retry.
type TransientIOError struct {
	Op  string
	Err error
}

func NewTransient(op string, err error) error {
	return &TransientIOError{Op: op, Err: err}
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrTransientIO, e.Err)
}

func (e *TransientIOError) Unwrap() error { return e.Err }

func (e *TransientIOError) Is(target error) bool { return target == ErrTransientIO }
