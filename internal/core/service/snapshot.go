package service

import "github.com/rl1809/order-console/internal/core/domain"

// SnapshotStore holds the last-fetched order and payment of the order being
// viewed. It is plain data; the coordinator serialises access to it.
type SnapshotStore struct {
	orderID string
	order   *domain.Order
	payment *domain.Payment
	version uint64
}

// Reset empties the store and keys it to orderID.
func (s *SnapshotStore) Reset(orderID string) {
	s.orderID = orderID
	s.order = nil
	s.payment = nil
	s.version++
}

func (s *SnapshotStore) OrderID() string { return s.orderID }

// Version increases on every write.
func (s *SnapshotStore) Version() uint64 { return s.version }

func (s *SnapshotStore) Order() (domain.Order, bool) {
	if s.order == nil {
		return domain.Order{}, false
	}
	return s.order.Clone(), true
}

func (s *SnapshotStore) Payment() (domain.Payment, bool) {
	if s.payment == nil {
		return domain.Payment{}, false
	}
	return *s.payment, true
}

// SetOrder replaces the cached order. Orders keyed to another identifier are
// refused.
func (s *SnapshotStore) SetOrder(o domain.Order) bool {
	if o.ID != s.orderID {
		return false
	}
	c := o.Clone()
	s.order = &c
	s.version++
	return true
}

// SetPayment replaces the cached payment; nil records that none exists.
func (s *SnapshotStore) SetPayment(p *domain.Payment) bool {
	if p != nil && p.OrderID != "" && p.OrderID != s.orderID {
		return false
	}
	if p != nil {
		c := *p
		p = &c
	}
	s.payment = p
	s.version++
	return true
}
