package inventory

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/internal/domain"
)

// MemoryCatalog implements Oracle with in-memory storage
type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[string]domain.Product // productID -> product
}

// NewMemoryCatalog creates a catalog holding the given products
func NewMemoryCatalog(products ...domain.Product) *MemoryCatalog {
	c := &MemoryCatalog{
		products: make(map[string]domain.Product, len(products)),
	}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

// GetProduct returns the product as currently stored
func (c *MemoryCatalog) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	p, exists := c.products[productID]
	if !exists {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

// SetProduct creates or replaces a product
func (c *MemoryCatalog) SetProduct(p domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

// SetStock sets the stock level for a product, reporting whether it exists
func (c *MemoryCatalog) SetStock(productID string, stock int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, exists := c.products[productID]
	if !exists {
		return false
	}
	p.Stock = stock
	c.products[productID] = p
	return true
}
