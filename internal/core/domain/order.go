package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "CREATED"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCanceled  OrderStatus = "CANCELED"
)

// Terminal reports whether no further edits, payments or cancellations are allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCanceled
}

type OrderLineItem struct {
	ItemID    string          `json:"itemId"`
	UPC       string          `json:"upc"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
}

// Subtotal is UnitPrice × Quantity.
func (li OrderLineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Order is the order service's record. TotalAmount is whatever the service
// returned; it is never recomputed locally.
type Order struct {
	ID           string          `json:"id"`
	AccountEmail string          `json:"accountEmail"`
	Status       OrderStatus     `json:"status"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	Items        []OrderLineItem `json:"items"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

func (o Order) Editable() bool {
	return o.Status == OrderStatusCreated
}

func (o Order) TotalQuantity() int {
	total := 0
	for _, it := range o.Items {
		total += it.Quantity
	}
	return total
}

// Clone returns a deep copy so cached snapshots never share the items slice.
func (o Order) Clone() Order {
	c := o
	c.Items = append([]OrderLineItem(nil), o.Items...)
	return c
}
