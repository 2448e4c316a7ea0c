package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/order-console/internal/core/domain"
)

type fakeCatalog struct {
	items []domain.Item
	err   error
}

func (f *fakeCatalog) ListItems(ctx context.Context) ([]domain.Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]domain.Item(nil), f.items...), nil
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{items: []domain.Item{
		{ID: "item-001", UPC: "001", Name: "Pen", UnitPrice: decimal.RequireFromString("10.00"), AvailableUnits: 50},
		{ID: "item-002", UPC: "002", Name: "Ink", UnitPrice: decimal.RequireFromString("5.00"), AvailableUnits: 8},
	}}
}

func TestOrderComposer_Totals(t *testing.T) {
	c := NewOrderComposer(testCatalog(), newFakeBackend(), nil, quietLogger())
	require.NoError(t, c.LoadCatalog(context.Background()))

	require.NoError(t, c.SetQuantity("001", 2))
	require.NoError(t, c.SetQuantity("002", 1.8))
	assert.ErrorIs(t, c.SetQuantity("999", 1), ErrUnknownItem)

	qty, amount := c.Totals()
	assert.Equal(t, 3, qty)
	assert.True(t, amount.Equal(decimal.NewFromInt(25)), "got %s", amount)
	assert.Equal(t, []domain.ItemQuantity{{UPC: "001", Quantity: 2}, {UPC: "002", Quantity: 1}}, c.Selection())
}

func TestOrderComposer_EmptySelectionRejectedLocally(t *testing.T) {
	backend := newFakeBackend()
	c := NewOrderComposer(testCatalog(), backend, nil, quietLogger())
	require.NoError(t, c.LoadCatalog(context.Background()))
	require.NoError(t, c.SetQuantity("001", -3))

	order, err := c.Submit(context.Background())
	assert.Nil(t, order)
	assert.True(t, domain.IsKind(err, domain.FailureValidation))
	assert.Equal(t, "please choose at least one item quantity > 0", domain.DisplayMessage(err))
	assert.Equal(t, 0, backend.callCount("CreateOrder"))
}

func TestOrderComposer_SubmitCreatesAndJournals(t *testing.T) {
	backend := newFakeBackend()
	journal := &memoryJournal{}
	c := NewOrderComposer(testCatalog(), backend, journal, quietLogger())
	require.NoError(t, c.LoadCatalog(context.Background()))
	require.NoError(t, c.SetQuantity("002", 4))

	order, err := c.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCreated, order.Status)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(20)))
	assert.Empty(t, c.Selection(), "selection resets after a successful create")

	entries, _ := journal.ListByOrder(context.Background(), order.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.CommandCreate, entries[0].Command)
	assert.Equal(t, domain.OutcomeSucceeded, entries[0].Outcome)
}

func TestOrderComposer_SubmitFailureKeepsSelection(t *testing.T) {
	backend := newFakeBackend()
	backend.failNext("CreateOrder", &domain.Failure{Kind: domain.FailureUnauthorized, Status: 401})
	c := NewOrderComposer(testCatalog(), backend, nil, quietLogger())
	require.NoError(t, c.LoadCatalog(context.Background()))
	require.NoError(t, c.SetQuantity("001", 1))

	_, err := c.Submit(context.Background())
	assert.True(t, domain.IsKind(err, domain.FailureUnauthorized))
	assert.Equal(t, 1, c.Quantity("001"))
}

func TestOrderComposer_ReloadDropsDelistedSelections(t *testing.T) {
	catalog := testCatalog()
	c := NewOrderComposer(catalog, newFakeBackend(), nil, quietLogger())
	require.NoError(t, c.LoadCatalog(context.Background()))
	require.NoError(t, c.SetQuantity("001", 1))
	require.NoError(t, c.SetQuantity("002", 2))

	catalog.items = catalog.items[:1]
	require.NoError(t, c.LoadCatalog(context.Background()))
	assert.Equal(t, 0, c.Quantity("002"))
	assert.Equal(t, 1, c.Quantity("001"))

	catalog.err = domain.NewTransportFailure(errors.New("dial tcp: refused"))
	assert.Error(t, c.LoadCatalog(context.Background()))
	assert.Len(t, c.Items(), 1, "failed reload keeps the previous catalog")
}

func TestOrderHistory_NewestFirst(t *testing.T) {
	backend := newFakeBackend()
	now := time.Now()
	backend.orders["a"] = domain.Order{ID: "a", CreatedAt: now.Add(-2 * time.Hour)}
	backend.orders["b"] = domain.Order{ID: "b", CreatedAt: now}
	backend.orders["c"] = domain.Order{ID: "c", CreatedAt: now.Add(-time.Hour)}

	list, err := OrderHistory(context.Background(), backend)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "c", list[1].ID)
	assert.Equal(t, "a", list[2].ID)
}
