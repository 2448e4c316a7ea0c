package rest

import (
	"context"
	"net/http"

	"github.com/rl1809/order-console/internal/core/domain"
)

func (c *Client) ListItems(ctx context.Context) ([]domain.Item, error) {
	var items []domain.Item
	if err := c.do(ctx, http.MethodGet, "/api/v1/items", false, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}
