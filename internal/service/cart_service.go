package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/internal/cache"
	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/events"
	"github.com/fjod/go_cart/internal/inventory"
	"github.com/fjod/go_cart/internal/repository"
	"golang.org/x/sync/singleflight"
)

const (
	defaultLookupTimeout = 3 * time.Second
	readTimeout          = 5 * time.Second
	sideEffectTimeout    = time.Second
)

// CartService validates item requests against the inventory and applies
// them to the user's cart through a single atomic store update.
type CartService struct {
	repo          repository.CartRepository
	oracle        inventory.Oracle
	cache         cache.CartCache
	publisher     events.Publisher
	logger        *slog.Logger
	lookupTimeout time.Duration
	now           func() time.Time
	sfg           singleflight.Group // Prevents cache stampede
}

type Option func(*CartService)

func WithPublisher(p events.Publisher) Option {
	return func(s *CartService) { s.publisher = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *CartService) { s.logger = l }
}

// WithLookupTimeout bounds every inventory lookup.
func WithLookupTimeout(d time.Duration) Option {
	return func(s *CartService) { s.lookupTimeout = d }
}

func NewCartService(repo repository.CartRepository, oracle inventory.Oracle, c cache.CartCache, opts ...Option) *CartService {
	s := &CartService{
		repo:          repo,
		oracle:        oracle,
		cache:         c,
		publisher:     events.NopPublisher{},
		logger:        slog.Default(),
		lookupTimeout: defaultLookupTimeout,
		now:           time.Now,
	}
	if s.cache == nil {
		s.cache = cache.NopCache{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetCart returns the user's cart, or an empty unsaved cart when the user
// has none. Concurrent reads for one user share a single load; a caller
// that gives up does not cancel the load for the others.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	ch := s.sfg.DoChan(userID, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), readTimeout)
		defer cancel()
		return s.loadCart(loadCtx, userID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.Cart), nil
	}
}

func (s *CartService) loadCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.cache.Get(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("cache get failed", "user_id", userID, "error", err)
	}

	cart, err = s.repo.GetCart(ctx, userID)
	if errors.Is(err, domain.ErrCartNotFound) {
		return domain.NewCart(userID, s.now()), nil
	}
	if err != nil {
		return nil, err
	}

	// The cache drops this copy if a write has cached a newer version.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		if err := s.cache.Set(ctx, userID, cart); err != nil {
			s.logger.Warn("cache set failed", "user_id", userID, "error", err)
		}
	}()

	return cart, nil
}

// AddItem merges the requested units into the cart, creating the cart on
// first use.
func (s *CartService) AddItem(ctx context.Context, userID string, req domain.ItemRequest) error {
	product, err := s.checkItem(ctx, req)
	if err != nil {
		return err
	}

	var line domain.CartLine
	cart, err := s.repo.UpdateCart(ctx, userID, true, func(c *domain.Cart) error {
		line = c.MergeLine(product, req, s.now())
		return nil
	})
	if err != nil {
		s.logFailure("add item", userID, err)
		return err
	}

	s.afterWrite(ctx, cart, domain.NewLineEvent(domain.EventItemAdded, cart, line, s.now()))
	return nil
}

// UpdateItem sets the variant's quantity. The cart must already exist; a
// variant it does not hold yet is appended.
func (s *CartService) UpdateItem(ctx context.Context, userID string, req domain.ItemRequest) error {
	product, err := s.checkItem(ctx, req)
	if err != nil {
		return err
	}

	var line domain.CartLine
	cart, err := s.repo.UpdateCart(ctx, userID, false, func(c *domain.Cart) error {
		line = c.OverwriteLine(product, req, s.now())
		return nil
	})
	if err != nil {
		s.logFailure("update item", userID, err)
		return err
	}

	s.afterWrite(ctx, cart, domain.NewLineEvent(domain.EventItemUpdated, cart, line, s.now()))
	return nil
}

// RemoveItem deletes one line by id and returns the updated cart.
func (s *CartService) RemoveItem(ctx context.Context, userID, lineID string) (*domain.Cart, error) {
	var removed domain.CartLine
	cart, err := s.repo.UpdateCart(ctx, userID, false, func(c *domain.Cart) error {
		var err error
		removed, err = c.RemoveLine(lineID, s.now())
		return err
	})
	if err != nil {
		s.logFailure("remove item", userID, err)
		return nil, err
	}

	s.afterWrite(ctx, cart, domain.NewLineEvent(domain.EventItemRemoved, cart, removed, s.now()))
	return cart, nil
}

// ClearCart empties an existing cart. The emptied cart stays stored.
func (s *CartService) ClearCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.UpdateCart(ctx, userID, false, func(c *domain.Cart) error {
		c.Clear(s.now())
		return nil
	})
	if err != nil {
		s.logFailure("clear cart", userID, err)
		return nil, err
	}

	s.afterWrite(ctx, cart, domain.NewClearedEvent(cart, s.now()))
	return cart, nil
}

// checkItem runs every check that must pass before the cart is touched.
func (s *CartService) checkItem(ctx context.Context, req domain.ItemRequest) (domain.Product, error) {
	if err := req.Validate(); err != nil {
		return domain.Product{}, err
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	product, err := s.oracle.GetProduct(lookupCtx, req.ProductID)
	if errors.Is(err, domain.ErrProductNotFound) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		s.logger.Error("inventory lookup failed", "product_id", req.ProductID, "error", err)
		return domain.Product{}, fmt.Errorf("inventory lookup: %w", err)
	}

	if err := product.CheckAvailability(req.Quantity); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// afterWrite caches the written cart and announces the change. Neither step
// can fail the already persisted mutation.
func (s *CartService) afterWrite(ctx context.Context, cart *domain.Cart, event domain.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if err := s.cache.Set(ctx, cart.UserID, cart.Clone()); err != nil {
		s.logger.Warn("cache refresh failed", "user_id", cart.UserID, "error", err)
		if err := s.cache.Delete(ctx, cart.UserID); err != nil {
			s.logger.Warn("cache invalidate failed", "user_id", cart.UserID, "error", err)
		}
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event failed", "user_id", event.UserID, "event_type", event.Type, "error", err)
	}
}

func (s *CartService) logFailure(op, userID string, err error) {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrUnavailable) {
		s.logger.Info(op+" rejected", "user_id", userID, "error", err)
		return
	}
	s.logger.Error(op+" failed", "user_id", userID, "error", err)
}
