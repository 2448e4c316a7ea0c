package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/rl1809/order-console/internal/core/domain"
)

// paymentBody sends the amount as a JSON number rather than decimal's
// default quoted string.
type paymentBody struct {
	OrderID        string      `json:"orderId"`
	Amount         json.Number `json:"amount"`
	IdempotencyKey string      `json:"idempotencyKey"`
}

func (c *Client) CreatePayment(ctx context.Context, req domain.PaymentRequest) (*domain.Payment, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body := paymentBody{
		OrderID:        req.OrderID,
		Amount:         json.Number(req.Amount.String()),
		IdempotencyKey: req.IdempotencyKey,
	}
	var payment domain.Payment
	if err := c.do(ctx, http.MethodPost, "/api/v1/payments", true, body, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (c *Client) GetPaymentByOrder(ctx context.Context, orderID string) (*domain.Payment, error) {
	var payment domain.Payment
	path := "/api/v1/payments/by-order?orderId=" + url.QueryEscape(orderID)
	if err := c.do(ctx, http.MethodGet, path, true, nil, &payment); err != nil {
		if domain.IsKind(err, domain.FailureNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	var payment domain.Payment
	if err := c.do(ctx, http.MethodGet, "/api/v1/payments/"+url.PathEscape(paymentID), true, nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}
