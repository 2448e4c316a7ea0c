package port

import (
	"context"

	"github.com/rl1809/order-console/internal/core/domain"
)

// Every facade call returns either a result or an error classifiable with
// domain.AsFailure.

type CatalogService interface {
	ListItems(ctx context.Context) ([]domain.Item, error)
}

type OrderService interface {
	// CreateOrder requires a non-empty item list with quantity > 0 each
	CreateOrder(ctx context.Context, items []domain.ItemQuantity) (*domain.Order, error)

	// ListOrders returns the orders of the signed-in account
	ListOrders(ctx context.Context) ([]domain.Order, error)

	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// ReplaceOrderItems swaps the whole item list of a CREATED order
	ReplaceOrderItems(ctx context.Context, orderID string, items []domain.ItemQuantity) (*domain.Order, error)

	CancelOrder(ctx context.Context, orderID string) (*domain.Order, error)
}

type PaymentService interface {
	CreatePayment(ctx context.Context, req domain.PaymentRequest) (*domain.Payment, error)

	// GetPaymentByOrder returns nil, nil when the order has no payment yet
	GetPaymentByOrder(ctx context.Context, orderID string) (*domain.Payment, error)

	GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error)
}

type AccountService interface {
	Login(ctx context.Context, creds domain.Credentials) (string, error)
	Register(ctx context.Context, reg domain.Registration) (*domain.Account, error)
	GetAccount(ctx context.Context, accountID int64) (*domain.Account, error)
	UpdateAccount(ctx context.Context, accountID int64, update domain.AccountUpdate) (*domain.Account, error)
}
