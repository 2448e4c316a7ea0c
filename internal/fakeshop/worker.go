package fakeshop

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rl1809/order-console/internal/core/domain"
)

type eventKind int

const (
	eventComplete eventKind = iota + 1
	eventRefund
)

// event is a backend-side transition applied after transitionDelay.
type event struct {
	kind      eventKind
	orderID   string
	paymentID string
	due       time.Time
}

func (s *Shop) enqueueLocked(ev event) {
	if s.closed {
		return
	}
	ev.due = s.now().Add(s.transitionDelay)
	select {
	case s.events <- ev:
	default:
		s.log.WithFields(logrus.Fields{"order_id": ev.orderID, "payment_id": ev.paymentID}).Error("transition queue full, event dropped")
	}
}

func (s *Shop) workerLoop(id int) {
	log := s.log.WithField("worker", id)
	for ev := range s.events {
		if wait := time.Until(ev.due); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-s.done:
				timer.Stop()
				return
			}
		}
		s.apply(log, ev)
	}
}

func (s *Shop) apply(log logrus.FieldLogger, ev event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.kind {
	case eventComplete:
		o, ok := s.orders[ev.orderID]
		if !ok || o.Status != domain.OrderStatusCreated {
			log.WithField("order_id", ev.orderID).Debug("skipping completion of non-CREATED order")
			return
		}
		o.Status = domain.OrderStatusCompleted
		o.UpdatedAt = s.now()
		log.WithField("order_id", ev.orderID).Info("order completed")
	case eventRefund:
		p, ok := s.payments[ev.paymentID]
		if !ok || p.Status != domain.PaymentStatusSuccess {
			return
		}
		p.Status = domain.PaymentStatusRefunded
		p.UpdatedAt = s.now()
		log.WithField("payment_id", ev.paymentID).Info("payment refunded")
	}
}
