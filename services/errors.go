// services/errors.go - Error taxonomy surfaced by the competition engine
package services

import (
	"errors"
	"fmt"

	"huntparty/store"
)

// ValidationError rejects input before any store mutation. Message is safe
// to show to the caller verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ConflictError is a write that kept losing races after all retries.
type ConflictError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: conflict after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Resource string
	ID       uint
}

func (e *NotFoundError) Error() string {
	if e.ID == 0 {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// TransportError is a failed live-channel send. It is logged and dropped.
type TransportError struct {
	ConnectionID string
	MessageType  string
	Err          error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("send %s to %s: %v", e.MessageType, e.ConnectionID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func validationf(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// notFound converts store.ErrNotFound into a NotFoundError and passes every
// other error through.
func notFound(err error, resource string, id uint) error {
	if errors.Is(err, store.ErrNotFound) {
		return &NotFoundError{Resource: resource, ID: id}
	}
	return err
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}
