package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/fjod/go_cart/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cartOpts compares carts as they come back from a store: decimals by value,
// timestamps within the precision the backends keep.
var cartOpts = cmp.Options{
	cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) }),
	cmpopts.IgnoreUnexported(domain.Cart{}),
	cmpopts.EquateApproxTime(time.Millisecond),
}

func randomProduct() domain.Product {
	return domain.Product{
		ID:       gofakeit.UUID(),
		Name:     gofakeit.ProductName(),
		Image:    gofakeit.URL(),
		Price:    decimal.NewFromFloat(gofakeit.Price(1, 100)).Round(2),
		Stock:    100,
		IsActive: true,
	}
}

func randomRequest(p domain.Product) domain.ItemRequest {
	return domain.ItemRequest{
		ProductID: p.ID,
		Quantity:  gofakeit.Number(1, 5),
		Size:      gofakeit.RandomString([]string{"S", "M", "L"}),
		Color:     gofakeit.Color(),
	}
}

func addLine(p domain.Product, req domain.ItemRequest) MutateFunc {
	return func(c *domain.Cart) error {
		c.MergeLine(p, req, time.Now())
		return nil
	}
}

// testCartRepository runs the behaviour every CartRepository must share.
func testCartRepository(t *testing.T, repo CartRepository) {
	ctx := context.Background()

	t.Run("get missing cart", func(t *testing.T) {
		cart, err := repo.GetCart(ctx, gofakeit.UUID())
		assert.ErrorIs(t, err, domain.ErrCartNotFound)
		assert.Nil(t, cart)
	})

	t.Run("update missing cart without create", func(t *testing.T) {
		called := false
		_, err := repo.UpdateCart(ctx, gofakeit.UUID(), false, func(*domain.Cart) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, domain.ErrCartNotFound)
		assert.False(t, called)
	})

	t.Run("create and round trip", func(t *testing.T) {
		userID := gofakeit.UUID()
		p1, p2 := randomProduct(), randomProduct()

		_, err := repo.UpdateCart(ctx, userID, true, addLine(p1, randomRequest(p1)))
		require.NoError(t, err)
		saved, err := repo.UpdateCart(ctx, userID, true, addLine(p2, randomRequest(p2)))
		require.NoError(t, err)
		assert.Equal(t, int64(2), saved.Version)

		loaded, err := repo.GetCart(ctx, userID)
		require.NoError(t, err)
		if diff := cmp.Diff(saved, loaded, cartOpts); diff != "" {
			t.Errorf("stored cart mismatch (-want +got):\n%s", diff)
		}
		require.Len(t, loaded.Lines, 2)
		assert.Equal(t, p1.ID, loaded.Lines[0].ProductID)
		assert.Equal(t, p2.ID, loaded.Lines[1].ProductID)
	})

	t.Run("failing mutation writes nothing", func(t *testing.T) {
		userID := gofakeit.UUID()
		p := randomProduct()
		before, err := repo.UpdateCart(ctx, userID, true, addLine(p, randomRequest(p)))
		require.NoError(t, err)

		boom := errors.New("boom")
		_, err = repo.UpdateCart(ctx, userID, false, func(c *domain.Cart) error {
			c.Clear(time.Now())
			return boom
		})
		assert.ErrorIs(t, err, boom)

		after, err := repo.GetCart(ctx, userID)
		require.NoError(t, err)
		if diff := cmp.Diff(before, after, cartOpts); diff != "" {
			t.Errorf("cart changed after failed mutation (-want +got):\n%s", diff)
		}
	})

	t.Run("failing mutation on create leaves no cart", func(t *testing.T) {
		userID := gofakeit.UUID()
		_, err := repo.UpdateCart(ctx, userID, true, func(*domain.Cart) error {
			return domain.ErrProductUnavailable
		})
		assert.ErrorIs(t, err, domain.ErrProductUnavailable)

		_, err = repo.GetCart(ctx, userID)
		assert.ErrorIs(t, err, domain.ErrCartNotFound)
	})

	t.Run("cleared cart persists empty", func(t *testing.T) {
		userID := gofakeit.UUID()
		p := randomProduct()
		_, err := repo.UpdateCart(ctx, userID, true, addLine(p, randomRequest(p)))
		require.NoError(t, err)

		_, err = repo.UpdateCart(ctx, userID, false, func(c *domain.Cart) error {
			c.Clear(time.Now())
			return nil
		})
		require.NoError(t, err)

		cart, err := repo.GetCart(ctx, userID)
		require.NoError(t, err)
		assert.Empty(t, cart.Lines)
		assert.True(t, cart.TotalPrice.IsZero())
		assert.Zero(t, cart.TotalQuantity)
	})

	t.Run("concurrent updates are serialized", func(t *testing.T) {
		userID := gofakeit.UUID()
		p := randomProduct()
		req := domain.ItemRequest{ProductID: p.ID, Quantity: 1, Size: "M", Color: "Red"}

		const workers = 8
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.UpdateCart(ctx, userID, true, addLine(p, req))
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		succeeded := 0
		for err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			// optimistic stores may give up under heavy contention, never lose a write
			assert.ErrorIs(t, err, domain.ErrConcurrentUpdate)
		}

		cart, err := repo.GetCart(ctx, userID)
		require.NoError(t, err)
		require.Len(t, cart.Lines, 1)
		assert.Equal(t, succeeded, cart.Lines[0].Quantity)
		assert.Equal(t, int64(succeeded), cart.Version)
		assert.True(t, p.Price.Mul(decimal.NewFromInt(int64(succeeded))).Equal(cart.TotalPrice))
	})
}
