package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/internal/domain"
)

// MemoryRepository implements CartRepository with in-memory storage.
// Updates for one user run under that user's lock; different users never
// wait on each other. A lock lives only while some update holds or waits
// for it.
type MemoryRepository struct {
	mu    sync.RWMutex
	carts map[string]*domain.Cart // userID -> stored cart
	locks map[string]*userLock    // userID -> update lock in use

	now func() time.Time
}

type userLock struct {
	sync.Mutex
	refs int
}

// NewMemoryRepository creates a new in-memory cart store
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		carts: make(map[string]*domain.Cart),
		locks: make(map[string]*userLock),
		now:   time.Now,
	}
}

// GetCart returns a copy of the stored cart
func (r *MemoryRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, exists := r.carts[userID]
	if !exists {
		return nil, domain.ErrCartNotFound
	}
	return cart.Clone(), nil
}

// UpdateCart applies fn to a private copy and swaps it in only on success
func (r *MemoryRepository) UpdateCart(ctx context.Context, userID string, createIfMissing bool, fn MutateFunc) (*domain.Cart, error) {
	lock := r.acquire(userID)
	defer r.release(userID, lock)

	cart, err := r.GetCart(ctx, userID)
	if errors.Is(err, domain.ErrCartNotFound) && createIfMissing {
		cart = domain.NewCart(userID, r.now())
	} else if err != nil {
		return nil, err
	}

	if err := fn(cart); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("cart update aborted: %w", err)
	}

	cart.Version++
	cart.UpdatedAt = r.now()

	r.mu.Lock()
	r.carts[userID] = cart.Clone()
	r.mu.Unlock()

	return cart, nil
}

func (r *MemoryRepository) acquire(userID string) *userLock {
	r.mu.Lock()
	lock, exists := r.locks[userID]
	if !exists {
		lock = &userLock{}
		r.locks[userID] = lock
	}
	lock.refs++
	r.mu.Unlock()

	lock.Lock()
	return lock
}

func (r *MemoryRepository) release(userID string, lock *userLock) {
	lock.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(r.locks, userID)
	}
}

// lockCount reports how many user locks are currently tracked.
func (r *MemoryRepository) lockCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.locks)
}
