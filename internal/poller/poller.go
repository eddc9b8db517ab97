package poller

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/segmentio/kafka-go"
)

const defaultRetryDelay = time.Second

// CartClearer empties a user's cart once their checkout has completed.
type CartClearer interface {
	ClearCart(ctx context.Context, userID string) (*domain.Cart, error)
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// checkoutCompleted is the part of the checkout outbox payload the cart needs.
type checkoutCompleted struct {
	CheckoutID string `json:"checkout_id"`
	UserID     string `json:"user_id"`
}

// Poller consumes completed checkouts and clears the purchased carts.
type Poller struct {
	carts      CartClearer
	reader     messageReader
	logger     *slog.Logger
	retryDelay time.Duration
}

func NewPoller(carts CartClearer, logger *slog.Logger, topic, groupID string, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{carts: carts, reader: reader, logger: logger, retryDelay: defaultRetryDelay}
}

// Run blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := p.processNext(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("checkout consumer", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(p.retryDelay):
			}
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.logger.Error("error closing reader", "error", err)
	}
}

// processNext handles one message. A cart that cannot be cleared is retried
// until it succeeds or ctx ends, and only then is the offset committed.
func (p *Poller) processNext(ctx context.Context) error {
	m, err := p.reader.FetchMessage(ctx)
	if err != nil {
		return err
	}

	var event checkoutCompleted
	if errUnmarshal := json.Unmarshal(m.Value, &event); errUnmarshal != nil {
		p.logger.Warn("skipping malformed checkout message", "offset", m.Offset, "error", errUnmarshal)
		return p.reader.CommitMessages(ctx, m)
	}
	if event.UserID == "" {
		p.logger.Warn("skipping checkout message without user_id", "offset", m.Offset)
		return p.reader.CommitMessages(ctx, m)
	}

	for {
		errClear := p.clearCart(ctx, event)
		if errClear == nil {
			break
		}
		p.logger.Error("failed to clear cart", "user_id", event.UserID, "error", errClear)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.retryDelay):
		}
	}

	return p.reader.CommitMessages(ctx, m)
}

func (p *Poller) clearCart(ctx context.Context, event checkoutCompleted) error {
	_, err := p.carts.ClearCart(ctx, event.UserID)
	switch {
	case err == nil:
		p.logger.Info("cart cleared after checkout", "user_id", event.UserID, "checkout_id", event.CheckoutID)
	case errors.Is(err, domain.ErrCartNotFound):
		p.logger.Info("no cart to clear after checkout", "user_id", event.UserID, "checkout_id", event.CheckoutID)
	default:
		return err
	}
	return nil
}
