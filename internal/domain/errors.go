package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness conflict on create.
	ErrAlreadyExists = errors.New("already exists")
	// ErrValidation marks malformed input.
	ErrValidation = errors.New("validation failed")

	ErrInvalidTransition = errors.New("invalid transition")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrUnauthorized      = errors.New("unauthorized")

	// ErrConcurrentModification is returned once conflicting writes exhausted all retries.
	ErrConcurrentModification = errors.New("concurrent modification")
	// ErrVersionConflict is a conditional write that matched no row at the expected version.
	ErrVersionConflict = errors.New("version conflict")
)

type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %q to %q", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

type InsufficientStockError struct {
	ProductID string
	VariantID string
	Delta     int
	Available int
}

func (e *InsufficientStockError) Error() string {
	target := e.ProductID
	if e.VariantID != "" {
		target += "/" + e.VariantID
	}
	return fmt.Sprintf("insufficient stock for %s: requested delta %d, available %d", target, e.Delta, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// Validationf builds an error matching ErrValidation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
