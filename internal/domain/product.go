package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Product is the inventory view of a catalog entry at lookup time.
type Product struct {
	ID        string
	Name      string
	Image     string
	Price     decimal.Decimal
	Stock     int
	IsActive  bool
	IsDeleted bool
}

// CheckAvailability reports whether quantity units can be placed in a cart.
// The check is advisory: nothing is reserved.
func (p Product) CheckAvailability(quantity int) error {
	if !p.IsActive || p.IsDeleted {
		return ErrProductUnavailable
	}
	if p.Stock < quantity {
		return &StockError{ProductID: p.ID, Requested: quantity, Available: p.Stock}
	}
	return nil
}

// ItemRequest is the payload of add and update calls.
type ItemRequest struct {
	ProductID string
	Quantity  int
	Size      string
	Color     string
}

func (r ItemRequest) Key() VariantKey {
	return VariantKey{ProductID: r.ProductID, Size: r.Size, Color: r.Color}
}

func (r ItemRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.ProductID) == "":
		return &ValidationError{Field: "productId", Reason: "is required"}
	case strings.TrimSpace(r.Size) == "":
		return &ValidationError{Field: "size", Reason: "is required"}
	case strings.TrimSpace(r.Color) == "":
		return &ValidationError{Field: "color", Reason: "is required"}
	case r.Quantity <= 0:
		return &ValidationError{Field: "quantity", Reason: "must be a positive integer"}
	}
	return nil
}
