package rest

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rl1809/order-console/internal/core/domain"
)

type itemsBody struct {
	Items []domain.ItemQuantity `json:"items"`
}

func orderPath(orderID string) string {
	return "/api/v1/orders/" + url.PathEscape(orderID)
}

func (c *Client) CreateOrder(ctx context.Context, items []domain.ItemQuantity) (*domain.Order, error) {
	if err := domain.ValidateItemQuantities(items); err != nil {
		return nil, err
	}
	var order domain.Order
	if err := c.do(ctx, http.MethodPost, "/api/v1/orders", true, itemsBody{Items: items}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) ListOrders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	if err := c.do(ctx, http.MethodGet, "/api/v1/orders", true, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var order domain.Order
	if err := c.do(ctx, http.MethodGet, orderPath(orderID), true, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) ReplaceOrderItems(ctx context.Context, orderID string, items []domain.ItemQuantity) (*domain.Order, error) {
	if err := domain.ValidateItemQuantities(items); err != nil {
		return nil, err
	}
	var order domain.Order
	if err := c.do(ctx, http.MethodPut, orderPath(orderID), true, itemsBody{Items: items}, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var order domain.Order
	if err := c.do(ctx, http.MethodPost, orderPath(orderID)+"/cancel", true, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}
