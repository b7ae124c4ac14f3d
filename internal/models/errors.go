package models

import (
	"errors"
	"fmt"
)

// Common errors used throughout the application
var (
	ErrValidation            = errors.New("validation failed")
	ErrEventNotFound         = errors.New("event not found")
	ErrEventDisabled         = errors.New("event is disabled")
	ErrDuplicateEvent        = errors.New("event already exists")
	ErrCapacityBelowSold     = errors.New("capacity cannot be less than sold tickets")
	ErrInsufficientInventory = errors.New("insufficient tickets available")
	ErrInventoryUnderflow    = errors.New("release exceeds sold tickets")
	ErrBookingWindowClosed   = errors.New("booking window for this event has closed")
	ErrEmptyCart             = errors.New("cart is empty")
	ErrCartLineNotFound      = errors.New("cart line not found")
	ErrOrderNotFound         = errors.New("order not found")
	ErrUserNotFound          = errors.New("user not found")
	ErrDuplicateUser         = errors.New("username already exists")
	ErrInvalidCredentials    = errors.New("invalid username or password")
	ErrStorage               = errors.New("storage error")
)

// ValidationError reports a rejected input field
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

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a validation error for a field
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// StorageError wraps a failure of the durable layer
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes both ErrStorage and the driver error to errors.Is
func (e *StorageError) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}

// NewStorageError wraps err, returning nil when err is nil
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
