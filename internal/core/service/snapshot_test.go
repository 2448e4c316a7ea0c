package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rl1809/order-console/internal/core/domain"
)

func TestSnapshotStore_RefusesOtherOrders(t *testing.T) {
	var s SnapshotStore
	s.Reset("o1")

	assert.False(t, s.SetOrder(domain.Order{ID: "o2"}))
	_, ok := s.Order()
	assert.False(t, ok)

	assert.True(t, s.SetOrder(domain.Order{ID: "o1", Status: domain.OrderStatusCreated}))
	assert.False(t, s.SetPayment(&domain.Payment{ID: "p", OrderID: "o2"}))
	_, paid := s.Payment()
	assert.False(t, paid)
}

func TestSnapshotStore_VersionBumpsOnEveryWrite(t *testing.T) {
	var s SnapshotStore
	s.Reset("o1")
	v0 := s.Version()

	s.SetOrder(domain.Order{ID: "o1"})
	v1 := s.Version()
	s.SetPayment(nil)
	v2 := s.Version()

	assert.Greater(t, v1, v0)
	assert.Greater(t, v2, v1)

	s.SetOrder(domain.Order{ID: "o2"})
	assert.Equal(t, v2, s.Version(), "refused write must not bump the version")
}

func TestSnapshotStore_ReturnsCopies(t *testing.T) {
	var s SnapshotStore
	s.Reset("o1")
	order := penAndInkOrder()
	s.SetOrder(order)
	order.Items[0].Quantity = 50

	got, _ := s.Order()
	assert.Equal(t, 2, got.Items[0].Quantity)

	got.Items[1].Quantity = 70
	again, _ := s.Order()
	assert.Equal(t, 1, again.Items[1].Quantity)

	payment := &domain.Payment{ID: "p1", OrderID: "o1", Status: domain.PaymentStatusSuccess}
	s.SetPayment(payment)
	payment.Status = domain.PaymentStatusRefunded
	p, paid := s.Payment()
	assert.True(t, paid)
	assert.Equal(t, domain.PaymentStatusSuccess, p.Status)
}

func TestSnapshotStore_ResetClears(t *testing.T) {
	var s SnapshotStore
	s.Reset("o1")
	s.SetOrder(domain.Order{ID: "o1"})
	s.SetPayment(&domain.Payment{ID: "p1", OrderID: "o1"})

	s.Reset("o2")
	assert.Equal(t, "o2", s.OrderID())
	_, ok := s.Order()
	assert.False(t, ok)
	_, paid := s.Payment()
	assert.False(t, paid)
}
