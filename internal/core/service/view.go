package service

import (
	"github.com/shopspring/decimal"

	"github.com/rl1809/order-console/internal/core/domain"
)

// View is an immutable copy of the coordinator's state for rendering.
type View struct {
	State   State
	Command domain.Command // set only while Submitting
	OrderID string
	Order   *domain.Order
	Payment *domain.Payment

	// PaymentUnknown means the payment lookup failed, so a nil Payment does
	// not imply that none exists
	PaymentUnknown bool

	// Draft holds the candidate lines while Editing
	Draft []domain.OrderLineItem

	// PaymentAmount is the proposed amount while the payment dialog is open
	PaymentAmount decimal.Decimal

	// Failure is the display message of the last failed action, if any
	Failure string

	CanEdit   bool
	CanPay    bool
	CanCancel bool
}

func (v View) editing() bool {
	return v.Draft != nil
}

// DisplayTotal is the draft's locally derived total while editing and the
// service's totalAmount otherwise.
func (v View) DisplayTotal() decimal.Decimal {
	if v.editing() {
		total := decimal.Zero
		for _, it := range v.Draft {
			total = total.Add(it.Subtotal())
		}
		return total
	}
	if v.Order == nil {
		return decimal.Zero
	}
	return v.Order.TotalAmount
}

func (v View) TotalQuantity() int {
	if v.editing() {
		total := 0
		for _, it := range v.Draft {
			total += it.Quantity
		}
		return total
	}
	if v.Order == nil {
		return 0
	}
	return v.Order.TotalQuantity()
}
