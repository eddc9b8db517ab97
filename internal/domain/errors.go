package domain

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by the cart engine either matches one
// of these through errors.Is or is an internal failure.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("unavailable")
)

var (
	ErrProductNotFound    = fmt.Errorf("product %w", ErrNotFound)
	ErrCartNotFound       = fmt.Errorf("cart %w", ErrNotFound)
	ErrLineNotFound       = fmt.Errorf("item %w in cart", ErrNotFound)
	ErrProductUnavailable = fmt.Errorf("product is %w", ErrUnavailable)
	ErrInsufficientStock  = fmt.Errorf("insufficient stock, product %w", ErrUnavailable)

	ErrConcurrentUpdate = errors.New("cart was modified concurrently")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

type StockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("Only %d items available in stock", e.Available)
}

func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}
