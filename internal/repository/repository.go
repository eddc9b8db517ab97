package repository

import (
	"context"

	"github.com/fjod/go_cart/internal/domain"
)

// MutateFunc changes a loaded cart in place. Returning an error aborts the
// update and nothing is written.
type MutateFunc func(cart *domain.Cart) error

// CartRepository defines the interface for cart data operations.
// Every backend serializes UpdateCart calls for the same user, so two
// concurrent mutations never both see the same prior state.
type CartRepository interface {
	// GetCart returns domain.ErrCartNotFound when the user has no cart.
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)

	// UpdateCart loads the user's cart, applies fn and persists the result
	// as one unit. A missing cart is created empty when createIfMissing is
	// set, otherwise domain.ErrCartNotFound is returned.
	UpdateCart(ctx context.Context, userID string, createIfMissing bool, fn MutateFunc) (*domain.Cart, error)
}
