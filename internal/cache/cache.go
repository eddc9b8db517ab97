package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/internal/domain"
)

// CartCache holds read copies of stored carts. Set is version guarded: a
// cart older than the cached one is dropped, so a slow read can never
// replace the result of a later write.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")

// NopCache always misses. It is used when caching is disabled.
type NopCache struct{}

func (NopCache) Get(context.Context, string) (*domain.Cart, error) { return nil, ErrCacheMiss }

func (NopCache) Set(context.Context, string, *domain.Cart) error { return nil }

func (NopCache) Delete(context.Context, string) error { return nil }
