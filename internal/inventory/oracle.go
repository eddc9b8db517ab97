// Package inventory provides read-only access to the product catalog. The
// cart engine asks it for the current price, stock and availability of a
// product; nothing here reserves or decrements stock.
package inventory

import (
	"context"

	"github.com/fjod/go_cart/internal/domain"
)

// Oracle looks up a product by id. Implementations return
// domain.ErrProductNotFound when the catalog has no such product.
type Oracle interface {
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
}
