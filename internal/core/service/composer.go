package service

import (
	"context"
	"errors"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/order-console/internal/core/domain"
	"github.com/rl1809/order-console/internal/port"
)

var ErrUnknownItem = errors.New("item not in catalog")

// OrderComposer assembles a new order from the catalog. It is meant for a
// single caller and is not safe for concurrent use.
type OrderComposer struct {
	catalog    port.CatalogService
	orders     port.OrderService
	journal    port.CommandJournal
	log        logrus.FieldLogger
	items      []domain.Item
	quantities map[string]int
}

func NewOrderComposer(catalog port.CatalogService, orders port.OrderService, journal port.CommandJournal, log logrus.FieldLogger) *OrderComposer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &OrderComposer{
		catalog:    catalog,
		orders:     orders,
		journal:    journal,
		log:        log,
		quantities: make(map[string]int),
	}
}

// LoadCatalog fetches the catalog and drops selections for items that are
// no longer listed.
func (c *OrderComposer) LoadCatalog(ctx context.Context) error {
	items, err := c.catalog.ListItems(ctx)
	if err != nil {
		return err
	}
	c.items = items
	listed := make(map[string]bool, len(items))
	for _, it := range items {
		listed[it.UPC] = true
	}
	for upc := range c.quantities {
		if !listed[upc] {
			delete(c.quantities, upc)
		}
	}
	return nil
}

func (c *OrderComposer) Items() []domain.Item {
	return append([]domain.Item(nil), c.items...)
}

func (c *OrderComposer) SetQuantity(upc string, qty float64) error {
	if _, ok := c.item(upc); !ok {
		return ErrUnknownItem
	}
	c.quantities[upc] = ClampQuantity(qty)
	return nil
}

func (c *OrderComposer) Quantity(upc string) int {
	return c.quantities[upc]
}

// Totals returns Σq and Σ unitPrice×q over the current selection.
func (c *OrderComposer) Totals() (int, decimal.Decimal) {
	qty, amount := 0, decimal.Zero
	for _, it := range c.items {
		q := c.quantities[it.UPC]
		qty += q
		amount = amount.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(q))))
	}
	return qty, amount
}

// Selection lists the non-zero quantities in catalog order.
func (c *OrderComposer) Selection() []domain.ItemQuantity {
	sel := make([]domain.ItemQuantity, 0, len(c.quantities))
	for _, it := range c.items {
		if q := c.quantities[it.UPC]; q > 0 {
			sel = append(sel, domain.ItemQuantity{UPC: it.UPC, Quantity: q})
		}
	}
	return sel
}

// Submit creates the order. An empty selection is rejected without a
// network call.
func (c *OrderComposer) Submit(ctx context.Context) (*domain.Order, error) {
	sel := c.Selection()
	if len(sel) == 0 {
		return nil, domain.NewValidationFailure("please choose at least one item quantity > 0")
	}
	order, err := c.orders.CreateOrder(ctx, sel)
	if err != nil {
		c.log.WithError(err).Info("create order failed")
		recordCommand(c.journal, c.log, "", domain.CommandCreate, err)
		return nil, err
	}
	recordCommand(c.journal, c.log, order.ID, domain.CommandCreate, nil)
	c.log.WithField("order_id", order.ID).Info("order created")
	c.quantities = make(map[string]int)
	return order, nil
}

func (c *OrderComposer) item(upc string) (domain.Item, bool) {
	for _, it := range c.items {
		if it.UPC == upc {
			return it, true
		}
	}
	return domain.Item{}, false
}

// OrderHistory lists the signed-in account's orders, newest first.
func OrderHistory(ctx context.Context, orders port.OrderService) ([]domain.Order, error) {
	list, err := orders.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}
