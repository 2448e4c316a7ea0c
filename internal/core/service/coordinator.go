package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/order-console/internal/core/domain"
	"github.com/rl1809/order-console/internal/port"
)

var (
	ErrNoOrderLoaded        = errors.New("no order loaded")
	ErrTransitionNotAllowed = errors.New("transition not allowed")
	ErrCommandInFlight      = errors.New("a command is already in flight")
	ErrViewSuperseded       = errors.New("view superseded by a newer load")
	ErrCancelNotConfirmed   = errors.New("cancellation not confirmed")
)

const journalTimeout = 2 * time.Second

type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoadFailed
	StateViewing
	StateEditing
	StatePaymentPending
	StateSubmitting
	StateReconciling
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoadFailed:
		return "load_failed"
	case StateViewing:
		return "viewing"
	case StateEditing:
		return "editing"
	case StatePaymentPending:
		return "payment_pending"
	case StateSubmitting:
		return "submitting"
	case StateReconciling:
		return "reconciling"
	default:
		return "idle"
	}
}

// Confirmer asks the operator to approve a destructive command.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// viewToken identifies one load of one order. Every state mutation checks
// that its token is still the current one.
type viewToken struct {
	id      string
	orderID string
	ctx     context.Context
	cancel  context.CancelFunc
}

// bind derives a request context that also ends when the view is abandoned.
func (t *viewToken) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(t.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// OrderCoordinator drives the lifecycle of a single viewed order: editing,
// payment and cancellation, plus the reconciliation polls that observe the
// backend's asynchronous transitions. Network calls run without the lock;
// results are applied only if the view that issued them is still current.
type OrderCoordinator struct {
	orders   port.OrderService
	payments port.PaymentService
	journal  port.CommandJournal
	poller   *Poller
	log      logrus.FieldLogger

	mu           sync.Mutex
	view         *viewToken
	state        State
	command      domain.Command
	resume       State
	store        SnapshotStore
	draft        *Draft
	payAmount    decimal.Decimal
	payKey       string
	pendingPolls int
	stopPolls    []func() bool
	failure      string

	// paymentUnknown is set when the payment lookup of the current load
	// failed; paying stays unavailable until the next load.
	paymentUnknown bool
}

type CoordinatorOption func(*OrderCoordinator)

func WithJournal(j port.CommandJournal) CoordinatorOption {
	return func(c *OrderCoordinator) { c.journal = j }
}

func WithLogger(log logrus.FieldLogger) CoordinatorOption {
	return func(c *OrderCoordinator) { c.log = log }
}

func WithReconcileDelay(d time.Duration) CoordinatorOption {
	return func(c *OrderCoordinator) { c.poller = NewPoller(d) }
}

func NewOrderCoordinator(orders port.OrderService, payments port.PaymentService, opts ...CoordinatorOption) *OrderCoordinator {
	c := &OrderCoordinator{
		orders:   orders,
		payments: payments,
		poller:   NewPoller(DefaultReconcileDelay),
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load starts a new view of orderID, abandoning any previous one. The view
// reaches Viewing only once the order fetch succeeds; a failed fetch leaves
// it in LoadFailed.
func (c *OrderCoordinator) Load(ctx context.Context, orderID string) error {
	if orderID == "" {
		return domain.NewValidationFailure("order id is required")
	}

	c.mu.Lock()
	tok := c.beginViewLocked(orderID)
	c.mu.Unlock()

	fctx, cancel := tok.bind(ctx)
	defer cancel()

	order, err := c.orders.GetOrder(fctx, orderID)

	c.mu.Lock()
	if !c.currentLocked(tok) {
		c.mu.Unlock()
		return ErrViewSuperseded
	}
	if err == nil && !c.store.SetOrder(*order) {
		err = unexpectedRecord("order", order.ID, orderID)
	}
	if err != nil {
		c.state = StateLoadFailed
		c.failure = domain.DisplayMessage(err)
		c.mu.Unlock()
		c.log.WithError(err).WithField("order_id", orderID).Warn("failed to load order")
		return err
	}
	c.mu.Unlock()

	payment, perr := c.payments.GetPaymentByOrder(fctx, orderID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(tok) {
		return ErrViewSuperseded
	}
	if perr != nil {
		// The order is usable without its payment; show why it is missing.
		c.failure = domain.DisplayMessage(perr)
		c.paymentUnknown = true
		c.log.WithError(perr).WithField("order_id", orderID).Warn("failed to load payment")
	} else if !c.store.SetPayment(payment) {
		c.failure = domain.DisplayMessage(unexpectedRecord("payment for order", payment.OrderID, orderID))
		c.paymentUnknown = true
	}
	c.state = StateViewing
	return nil
}

// Close abandons the current view. Outstanding fetches and scheduled polls
// of that view have no further effect.
func (c *OrderCoordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopPollsLocked()
	if c.view != nil {
		c.view.cancel()
		c.view = nil
	}
	c.store.Reset("")
	c.resetLocked(StateIdle)
}

// BeginEdit enters Editing with a draft seeded from the current order.
func (c *OrderCoordinator) BeginEdit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guardLocked(StateViewing, StateReconciling); err != nil {
		return err
	}
	order, _ := c.store.Order()
	if !order.Editable() {
		return ErrTransitionNotAllowed
	}
	c.draft = NewDraft(order)
	c.state = StateEditing
	c.failure = ""
	return nil
}

func (c *OrderCoordinator) SetQuantity(upc string, qty float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guardLocked(StateEditing); err != nil {
		return err
	}
	return c.draft.Set(upc, qty)
}

// DiscardEdit drops the draft without submitting anything.
func (c *OrderCoordinator) DiscardEdit() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guardLocked(StateEditing); err != nil {
		return err
	}
	c.draft = nil
	c.failure = ""
	c.state = c.restLocked()
	return nil
}

// SaveEdit submits the whole draft as the order's new item list.
func (c *OrderCoordinator) SaveEdit(ctx context.Context) error {
	c.mu.Lock()
	if err := c.guardLocked(StateEditing); err != nil {
		c.mu.Unlock()
		return err
	}
	items := c.draft.Items()
	if len(items) == 0 {
		err := domain.NewValidationFailure("order must have at least one item")
		c.failure = domain.DisplayMessage(err)
		c.mu.Unlock()
		return err
	}
	tok, orderID := c.view, c.store.OrderID()
	c.beginCommandLocked(domain.CommandUpdate)
	c.mu.Unlock()

	fctx, cancel := tok.bind(ctx)
	defer cancel()
	updated, err := c.orders.ReplaceOrderItems(fctx, orderID, items)
	if err == nil && (updated == nil || updated.ID != orderID) {
		got := ""
		if updated != nil {
			got = updated.ID
		}
		err = unexpectedRecord("order", got, orderID)
	}
	c.record(orderID, domain.CommandUpdate, err)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(tok) {
		return ErrViewSuperseded
	}
	if err != nil {
		c.failCommandLocked(domain.CommandUpdate, err)
		return err
	}
	c.store.SetOrder(*updated)
	c.draft = nil
	c.finishCommandLocked(c.restLocked())
	return nil
}

// BeginPayment opens the payment dialog with the order total as the
// proposed amount.
func (c *OrderCoordinator) BeginPayment() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guardLocked(StateViewing, StateReconciling); err != nil {
		return err
	}
	order, _ := c.store.Order()
	if _, paid := c.store.Payment(); paid || c.paymentUnknown || order.Status != domain.OrderStatusCreated {
		return ErrTransitionNotAllowed
	}
	c.payAmount = order.TotalAmount
	c.payKey = uuid.NewString()
	c.state = StatePaymentPending
	c.failure = ""
	return nil
}

func (c *OrderCoordinator) SetPaymentAmount(amount decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guardLocked(StatePaymentPending); err != nil {
		return err
	}
	c.payAmount = amount
	return nil
}

func (c *OrderCoordinator) DismissPayment() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.guardLocked(StatePaymentPending); err != nil {
		return err
	}
	c.payKey = ""
	c.failure = ""
	c.state = c.restLocked()
	return nil
}

// SubmitPayment creates the payment and schedules one delayed order re-fetch
// to observe the order's transition to COMPLETED.
func (c *OrderCoordinator) SubmitPayment(ctx context.Context) error {
	c.mu.Lock()
	if err := c.guardLocked(StatePaymentPending); err != nil {
		c.mu.Unlock()
		return err
	}
	tok, orderID := c.view, c.store.OrderID()
	req := domain.PaymentRequest{OrderID: orderID, Amount: c.payAmount, IdempotencyKey: c.payKey}
	if err := req.Validate(); err != nil {
		c.failure = domain.DisplayMessage(err)
		c.mu.Unlock()
		return err
	}
	c.beginCommandLocked(domain.CommandPay)
	c.mu.Unlock()

	fctx, cancel := tok.bind(ctx)
	defer cancel()
	payment, err := c.payments.CreatePayment(fctx, req)
	if err == nil && (payment == nil || (payment.OrderID != "" && payment.OrderID != orderID)) {
		got := ""
		if payment != nil {
			got = payment.OrderID
		}
		err = unexpectedRecord("payment for order", got, orderID)
	}
	c.record(orderID, domain.CommandPay, err)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(tok) {
		return ErrViewSuperseded
	}
	if err != nil {
		c.failCommandLocked(domain.CommandPay, err)
		return err
	}
	c.store.SetPayment(payment)
	c.payKey = ""
	c.scheduleReconcileLocked(tok, "order", func(ctx context.Context) (func(), error) {
		order, err := c.orders.GetOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		return func() { c.store.SetOrder(*order) }, nil
	})
	c.finishCommandLocked(StateReconciling)
	return nil
}

// Cancel cancels the order after confirm approves it. When a payment exists
// one delayed payment re-fetch is scheduled to observe the refund.
func (c *OrderCoordinator) Cancel(ctx context.Context, confirm Confirmer) error {
	c.mu.Lock()
	if err := c.cancelableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	tok, orderID := c.view, c.store.OrderID()
	c.mu.Unlock()

	if confirm == nil {
		return ErrCancelNotConfirmed
	}
	ok, err := confirm.Confirm(ctx, fmt.Sprintf("Are you sure you want to cancel order %s?", orderID))
	if err != nil {
		return fmt.Errorf("confirm cancellation: %w", err)
	}
	if !ok {
		return ErrCancelNotConfirmed
	}

	c.mu.Lock()
	if !c.currentLocked(tok) {
		c.mu.Unlock()
		return ErrViewSuperseded
	}
	if err := c.cancelableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.beginCommandLocked(domain.CommandCancel)
	c.mu.Unlock()

	fctx, cancel := tok.bind(ctx)
	defer cancel()
	updated, err := c.orders.CancelOrder(fctx, orderID)
	if err == nil && updated != nil && updated.ID != "" && updated.ID != orderID {
		err = unexpectedRecord("order", updated.ID, orderID)
	}
	c.record(orderID, domain.CommandCancel, err)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.currentLocked(tok) {
		return ErrViewSuperseded
	}
	if err != nil {
		c.failCommandLocked(domain.CommandCancel, err)
		return err
	}
	if updated == nil || updated.ID == "" {
		// 204: the service confirmed without returning the order.
		order, _ := c.store.Order()
		order.Status = domain.OrderStatusCanceled
		c.store.SetOrder(order)
	} else {
		c.store.SetOrder(*updated)
	}

	payment, paid := c.store.Payment()
	if !paid {
		c.finishCommandLocked(c.restLocked())
		return nil
	}
	c.scheduleReconcileLocked(tok, "payment", func(ctx context.Context) (func(), error) {
		refreshed, err := c.payments.GetPayment(ctx, payment.ID)
		if err != nil {
			return nil, err
		}
		return func() { c.store.SetPayment(refreshed) }, nil
	})
	c.finishCommandLocked(StateReconciling)
	return nil
}

func (c *OrderCoordinator) cancelableLocked() error {
	if err := c.guardLocked(StateViewing, StateReconciling); err != nil {
		return err
	}
	order, _ := c.store.Order()
	if order.Status.Terminal() {
		return ErrTransitionNotAllowed
	}
	return nil
}

// Snapshot returns a copy of everything a renderer needs.
func (c *OrderCoordinator) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		State:         c.state,
		OrderID:       c.store.OrderID(),
		PaymentAmount: c.payAmount,
		Failure:       c.failure,
	}
	if c.state == StateSubmitting {
		v.Command = c.command
	}
	order, hasOrder := c.store.Order()
	if hasOrder {
		v.Order = &order
	}
	payment, paid := c.store.Payment()
	if paid {
		v.Payment = &payment
	}
	if c.draft != nil {
		v.Draft = c.draft.Lines()
	}

	viewing := c.state == StateViewing || c.state == StateReconciling
	v.CanEdit = viewing && hasOrder && order.Editable()
	v.PaymentUnknown = c.paymentUnknown
	v.CanPay = v.CanEdit && !paid && !c.paymentUnknown
	v.CanCancel = viewing && hasOrder && !order.Status.Terminal()
	return v
}

func (c *OrderCoordinator) beginViewLocked(orderID string) *viewToken {
	c.stopPollsLocked()
	if c.view != nil {
		c.view.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.view = &viewToken{id: uuid.NewString(), orderID: orderID, ctx: ctx, cancel: cancel}
	c.store.Reset(orderID)
	c.resetLocked(StateLoading)
	return c.view
}

func (c *OrderCoordinator) resetLocked(state State) {
	c.state = state
	c.command = ""
	c.resume = StateIdle
	c.draft = nil
	c.payAmount = decimal.Zero
	c.payKey = ""
	c.pendingPolls = 0
	c.failure = ""
	c.paymentUnknown = false
}

// stopPollsLocked stops the timers of every poll scheduled for the current
// view.
func (c *OrderCoordinator) stopPollsLocked() {
	for _, stop := range c.stopPolls {
		stop()
	}
	c.stopPolls = nil
}

// unexpectedRecord reports a service response that belongs to another order.
func unexpectedRecord(what, got, want string) error {
	return &domain.Failure{Kind: domain.FailureServer, Message: fmt.Sprintf("service returned %s %q for %q", what, got, want)}
}

func (c *OrderCoordinator) currentLocked(tok *viewToken) bool {
	return tok != nil && c.view == tok && tok.ctx.Err() == nil
}

// guardLocked admits a transition only from one of the allowed states.
func (c *OrderCoordinator) guardLocked(allowed ...State) error {
	if _, ok := c.store.Order(); !ok || c.view == nil {
		return ErrNoOrderLoaded
	}
	if c.state == StateSubmitting {
		return ErrCommandInFlight
	}
	for _, s := range allowed {
		if c.state == s {
			return nil
		}
	}
	return ErrTransitionNotAllowed
}

func (c *OrderCoordinator) restLocked() State {
	if c.pendingPolls > 0 {
		return StateReconciling
	}
	return StateViewing
}

func (c *OrderCoordinator) beginCommandLocked(cmd domain.Command) {
	c.resume = c.state
	c.command = cmd
	c.state = StateSubmitting
	c.failure = ""
}

func (c *OrderCoordinator) finishCommandLocked(next State) {
	c.log.WithFields(logrus.Fields{
		"order_id": c.store.OrderID(),
		"command":  c.command,
	}).Info("command succeeded")
	c.command = ""
	c.failure = ""
	c.state = next
}

// failCommandLocked returns to the pre-command state with the failure
// attached for display. Editing keeps its draft, the payment dialog its amount.
func (c *OrderCoordinator) failCommandLocked(cmd domain.Command, err error) {
	c.log.WithError(err).WithFields(logrus.Fields{
		"order_id": c.store.OrderID(),
		"command":  cmd,
		"kind":     domain.AsFailure(err).Kind.String(),
	}).Info("command failed")
	c.command = ""
	c.failure = domain.DisplayMessage(err)
	switch c.resume {
	case StateEditing, StatePaymentPending:
		c.state = c.resume
	default:
		c.state = c.restLocked()
	}
}

// scheduleReconcileLocked arranges the single delayed fetch. Its result is
// applied only if the view is still current and no command wrote the store
// while the fetch was in flight; a failed fetch is swallowed.
func (c *OrderCoordinator) scheduleReconcileLocked(tok *viewToken, target string, fetch func(ctx context.Context) (func(), error)) {
	c.pendingPolls++
	log := c.log.WithFields(logrus.Fields{"order_id": tok.orderID, "target": target})

	stop := c.poller.Schedule(tok.ctx, func(ctx context.Context) {
		c.mu.Lock()
		if !c.currentLocked(tok) {
			c.mu.Unlock()
			return
		}
		version := c.store.Version()
		c.mu.Unlock()

		apply, err := fetch(ctx)

		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.currentLocked(tok) {
			return
		}
		c.pendingPolls--
		switch {
		case err != nil:
			log.WithError(err).Debug("reconciliation poll failed")
		case c.store.Version() != version:
			log.Debug("reconciliation result superseded by a newer write")
		default:
			apply()
			log.Debug("reconciliation poll applied")
		}
		c.settleLocked()
	})
	c.stopPolls = append(c.stopPolls, stop)
}

// settleLocked re-derives the state after the snapshot changed underneath a
// non-submitting state.
func (c *OrderCoordinator) settleLocked() {
	order, _ := c.store.Order()
	_, paid := c.store.Payment()
	switch c.state {
	case StateReconciling:
		c.state = c.restLocked()
	case StateEditing:
		if !order.Editable() {
			c.draft = nil
			c.state = c.restLocked()
		}
	case StatePaymentPending:
		if paid || order.Status != domain.OrderStatusCreated {
			c.payKey = ""
			c.state = c.restLocked()
		}
	}
}

// record writes the command outcome to the journal. Journal failures are
// logged and otherwise ignored.
func (c *OrderCoordinator) record(orderID string, cmd domain.Command, cmdErr error) {
	recordCommand(c.journal, c.log, orderID, cmd, cmdErr)
}

func recordCommand(journal port.CommandJournal, log logrus.FieldLogger, orderID string, cmd domain.Command, cmdErr error) {
	if journal == nil {
		return
	}
	entry := domain.JournalEntry{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		Command:   cmd,
		Outcome:   domain.OutcomeSucceeded,
		CreatedAt: time.Now(),
	}
	if cmdErr != nil {
		entry.Outcome = domain.OutcomeFailed
		entry.Message = domain.DisplayMessage(cmdErr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := journal.Record(ctx, entry); err != nil {
		log.WithError(err).WithField("order_id", orderID).Warn("failed to journal command")
	}
}
