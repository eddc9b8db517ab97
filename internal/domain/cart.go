package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Cart struct {
	UserID        string          `bson:"user_id" json:"user_id"`
	Lines         []CartLine      `bson:"lines" json:"lines"`
	TotalPrice    decimal.Decimal `bson:"total_price" json:"total_price"`
	TotalQuantity int             `bson:"total_quantity" json:"total_quantity"`
	Version       int64           `bson:"version" json:"version"`
	CreatedAt     time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `bson:"updated_at" json:"updated_at"`

	index map[VariantKey]int
}

type CartLine struct {
	ID           string          `bson:"id" json:"id"`
	ProductID    string          `bson:"product_id" json:"product_id"`
	Size         string          `bson:"size" json:"size"`
	Color        string          `bson:"color" json:"color"`
	Quantity     int             `bson:"quantity" json:"quantity"`
	UnitPrice    decimal.Decimal `bson:"unit_price" json:"unit_price"`
	LineTotal    decimal.Decimal `bson:"line_total" json:"line_total"`
	DisplayName  string          `bson:"display_name" json:"display_name"`
	DisplayImage string          `bson:"display_image" json:"display_image"`
	CreatedAt    time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `bson:"updated_at" json:"updated_at"`
}

// VariantKey identifies a purchasable option of a product. It is unique
// among the lines of one cart.
type VariantKey struct {
	ProductID string
	Size      string
	Color     string
}

func (l CartLine) Key() VariantKey {
	return VariantKey{ProductID: l.ProductID, Size: l.Size, Color: l.Color}
}

// Summary is what Remove and Clear report back to the caller.
type Summary struct {
	TotalItems    int             `json:"totalItems"`
	TotalQuantity int             `json:"totalQuantity"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
}

func NewCart(userID string, now time.Time) *Cart {
	return &Cart{
		UserID:     userID,
		Lines:      []CartLine{},
		TotalPrice: decimal.Zero,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (c *Cart) Summary() Summary {
	return Summary{
		TotalItems:    len(c.Lines),
		TotalQuantity: c.TotalQuantity,
		TotalPrice:    c.TotalPrice,
	}
}

// Stored reports whether the cart has been written to a store at least once.
func (c *Cart) Stored() bool {
	return c.Version > 0
}

// Clone returns a deep copy that shares no state with c.
func (c *Cart) Clone() *Cart {
	clone := *c
	clone.Lines = make([]CartLine, len(c.Lines))
	copy(clone.Lines, c.Lines)
	clone.index = nil
	return &clone
}

// FindLine returns the position of the line holding key.
func (c *Cart) FindLine(key VariantKey) (int, bool) {
	if c.index == nil || len(c.index) != len(c.Lines) {
		c.reindex()
	}
	i, ok := c.index[key]
	return i, ok
}

// MergeLine adds quantity units of the requested variant. An existing line
// keeps its id and accumulates quantity; its price snapshot is refreshed.
func (c *Cart) MergeLine(p Product, req ItemRequest, now time.Time) CartLine {
	if i, ok := c.FindLine(req.Key()); ok {
		line := &c.Lines[i]
		line.Quantity += req.Quantity
		line.reprice(p.Price)
		line.UpdatedAt = now
		c.touch(now)
		return *line
	}
	return c.appendLine(p, req, now)
}

// OverwriteLine sets the variant's quantity to the requested value, creating
// the line when the cart does not hold it yet.
func (c *Cart) OverwriteLine(p Product, req ItemRequest, now time.Time) CartLine {
	if i, ok := c.FindLine(req.Key()); ok {
		line := &c.Lines[i]
		line.Quantity = req.Quantity
		line.reprice(p.Price)
		line.UpdatedAt = now
		c.touch(now)
		return *line
	}
	return c.appendLine(p, req, now)
}

func (c *Cart) RemoveLine(lineID string, now time.Time) (CartLine, error) {
	for i, line := range c.Lines {
		if line.ID != lineID {
			continue
		}
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
		c.index = nil
		c.touch(now)
		return line, nil
	}
	return CartLine{}, ErrLineNotFound
}

func (c *Cart) Clear(now time.Time) {
	c.Lines = []CartLine{}
	c.index = nil
	c.touch(now)
}

// Recalculate re-derives the cart totals from its lines.
func (c *Cart) Recalculate() {
	c.TotalPrice, c.TotalQuantity = Totals(c.Lines)
}

func (c *Cart) appendLine(p Product, req ItemRequest, now time.Time) CartLine {
	line := CartLine{
		ID:           uuid.NewString(),
		ProductID:    req.ProductID,
		Size:         req.Size,
		Color:        req.Color,
		Quantity:     req.Quantity,
		DisplayName:  p.Name,
		DisplayImage: p.Image,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	line.reprice(p.Price)
	c.Lines = append(c.Lines, line)
	if c.index != nil {
		c.index[line.Key()] = len(c.Lines) - 1
	}
	c.touch(now)
	return line
}

// touch keeps totals in step with every structural change.
func (c *Cart) touch(now time.Time) {
	c.Recalculate()
	c.UpdatedAt = now
}

func (c *Cart) reindex() {
	c.index = make(map[VariantKey]int, len(c.Lines))
	for i, line := range c.Lines {
		c.index[line.Key()] = i
	}
}

func (l *CartLine) reprice(unitPrice decimal.Decimal) {
	l.UnitPrice = unitPrice
	l.LineTotal = unitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}
