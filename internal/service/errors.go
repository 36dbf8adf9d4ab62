package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks operator input that was rejected before any write
	ErrValidation = errors.New("validation failed")
	// ErrStoreUnavailable marks a write the backing store did not accept
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError names the offending field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
