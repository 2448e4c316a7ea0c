package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusCreated  PaymentStatus = "CREATED"
	PaymentStatusSuccess  PaymentStatus = "SUCCESS"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

type Payment struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"orderId"`
	Status       PaymentStatus   `json:"status"`
	Amount       decimal.Decimal `json:"amount"`
	AccountEmail string          `json:"accountEmail"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// PaymentRequest is the create-payment command. IdempotencyKey lets the
// payment service collapse repeated submissions into one record.
type PaymentRequest struct {
	OrderID        string          `json:"orderId"`
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey string          `json:"idempotencyKey"`
}

func (r PaymentRequest) Validate() error {
	if r.OrderID == "" {
		return NewValidationFailure("order id is required")
	}
	if !r.Amount.IsPositive() {
		return NewValidationFailure("payment amount must be greater than 0")
	}
	if r.IdempotencyKey == "" {
		return NewValidationFailure("idempotency key is required")
	}
	return nil
}
