package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventItemAdded   EventType = "cart.item.added"
	EventItemUpdated EventType = "cart.item.updated"
	EventItemRemoved EventType = "cart.item.removed"
	EventCartCleared EventType = "cart.cleared"
)

// Event is emitted after a cart mutation has been persisted.
type Event struct {
	Type          EventType       `json:"type"`
	UserID        string          `json:"user_id"`
	LineID        string          `json:"line_id,omitempty"`
	ProductID     string          `json:"product_id,omitempty"`
	Size          string          `json:"size,omitempty"`
	Color         string          `json:"color,omitempty"`
	Quantity      int             `json:"quantity,omitempty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	TotalQuantity int             `json:"total_quantity"`
	Version       int64           `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
}

func NewLineEvent(t EventType, cart *Cart, line CartLine, now time.Time) Event {
	return Event{
		Type:          t,
		UserID:        cart.UserID,
		LineID:        line.ID,
		ProductID:     line.ProductID,
		Size:          line.Size,
		Color:         line.Color,
		Quantity:      line.Quantity,
		UnitPrice:     line.UnitPrice,
		TotalPrice:    cart.TotalPrice,
		TotalQuantity: cart.TotalQuantity,
		Version:       cart.Version,
		Timestamp:     now,
	}
}

func NewClearedEvent(cart *Cart, now time.Time) Event {
	return Event{
		Type:       EventCartCleared,
		UserID:     cart.UserID,
		UnitPrice:  decimal.Zero,
		TotalPrice: cart.TotalPrice,
		Version:    cart.Version,
		Timestamp:  now,
	}
}
