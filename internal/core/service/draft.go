package service

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"

	"github.com/rl1809/order-console/internal/core/domain"
)

var ErrUnknownLineItem = errors.New("unknown line item")

// ClampQuantity floors q and clamps it to [0, MaxInt32]; NaN becomes 0.
func ClampQuantity(q float64) int {
	if math.IsNaN(q) {
		return 0
	}
	q = math.Floor(q)
	if q <= 0 {
		return 0
	}
	if q > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(q)
}

// Draft is the working copy of an order's quantities while editing, keyed by
// UPC. It is submitted whole or discarded.
type Draft struct {
	orderID string
	lines   []domain.OrderLineItem
	index   map[string]int
}

// NewDraft seeds the draft from the order's current items.
func NewDraft(order domain.Order) *Draft {
	d := &Draft{
		orderID: order.ID,
		lines:   append([]domain.OrderLineItem(nil), order.Items...),
		index:   make(map[string]int, len(order.Items)),
	}
	for i, it := range d.lines {
		d.index[it.UPC] = i
	}
	return d
}

func (d *Draft) OrderID() string { return d.orderID }

func (d *Draft) Set(upc string, qty float64) error {
	i, ok := d.index[upc]
	if !ok {
		return ErrUnknownLineItem
	}
	d.lines[i].Quantity = ClampQuantity(qty)
	return nil
}

func (d *Draft) Quantity(upc string) int {
	if i, ok := d.index[upc]; ok {
		return d.lines[i].Quantity
	}
	return 0
}

// Lines returns every line, including those set to zero.
func (d *Draft) Lines() []domain.OrderLineItem {
	lines := make([]domain.OrderLineItem, len(d.lines))
	copy(lines, d.lines)
	return lines
}

// Items is the replace-items payload: zero quantities are dropped.
func (d *Draft) Items() []domain.ItemQuantity {
	items := make([]domain.ItemQuantity, 0, len(d.lines))
	for _, it := range d.lines {
		if it.Quantity > 0 {
			items = append(items, domain.ItemQuantity{UPC: it.UPC, Quantity: it.Quantity})
		}
	}
	return items
}

// Total is the locally derived amount for display before submission.
func (d *Draft) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range d.lines {
		total = total.Add(it.Subtotal())
	}
	return total
}

func (d *Draft) TotalQuantity() int {
	total := 0
	for _, it := range d.lines {
		total += it.Quantity
	}
	return total
}
