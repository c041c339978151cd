package persistence

import (
	"errors"
	"fmt"
)

// Standard error types every implementation returns, so callers can branch
// on errors.Is without knowing the backend.
var (
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrRunNotFound      = errors.New("run not found")
	ErrTaskRunNotFound  = errors.New("task run not found")
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrRuleNotFound     = errors.New("rule not found")
)

// StoreError wraps a storage failure with the operation and entity involved.
type StoreError struct {
	Op     string
	Entity string
	ID     string
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a wrapped storage error.
func NewStoreError(op, entity, id string, err error) *StoreError {
	return &StoreError{Op: op, Entity: entity, ID: id, Err: err}
}

// IsNotFound reports whether the error is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrRunNotFound) ||
		errors.Is(err, ErrTaskRunNotFound) ||
		errors.Is(err, ErrScheduleNotFound) ||
		errors.Is(err, ErrRuleNotFound)
}
