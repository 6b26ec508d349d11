package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/coinledger/backend/internal/repository"
)

// ValidationError reports a missing or invalid input field.
// Details holds every offending field when more than one failed.
type ValidationError struct {
	Field   string
	Message string
	Details map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Details) > 1 {
		fields := make([]string, 0, len(e.Details))
		for f := range e.Details {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		return fmt.Sprintf("validation failed on fields: %s", strings.Join(fields, ", "))
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Details: map[string]string{field: message},
	}
}

// NotFoundError reports that the addressed record does not exist
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ConflictError reports a unique-key clash
type ConflictError struct {
	Resource string
	ID       string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Resource, e.ID)
}

// PersistenceError wraps a record-store failure
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// classify passes through taxonomy errors and wraps anything else as a PersistenceError
func classify(op string, err error) error {
	var (
		vErr *ValidationError
		nErr *NotFoundError
		cErr *ConflictError
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &vErr), errors.As(err, &nErr), errors.As(err, &cErr):
		return err
	default:
		return &PersistenceError{Op: op, Err: err}
	}
}

func entryNotFound(id int64, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Resource: "entry", ID: fmt.Sprint(id)}
	}
	return err
}
