package fakeshop

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/order-console/internal/core/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalid      = errors.New("invalid request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// rejection carries a client-facing message and unwraps to one of the
// sentinels above.
type rejection struct {
	kind error
	msg  string
}

func (r *rejection) Error() string { return r.msg }
func (r *rejection) Unwrap() error { return r.kind }

func reject(kind error, format string, args ...interface{}) error {
	return &rejection{kind: kind, msg: fmt.Sprintf(format, args...)}
}

const (
	defaultWorkers   = 4
	defaultQueueSize = 1024
)

type account struct {
	domain.Account
	password string
}

// Shop is an in-memory catalog, account, order and payment backend. Payment
// completion and refunds happen asynchronously, transitionDelay after the
// triggering request.
type Shop struct {
	mu             sync.Mutex
	items          map[string]*domain.Item // by upc
	upcs           []string
	accounts       map[string]*account // by email
	nextAccountID  int64
	orders         map[string]*domain.Order
	payments       map[string]*domain.Payment
	paymentByOrder map[string]string
	paymentByKey   map[string]string
	closed         bool
	done           chan struct{}

	transitionDelay time.Duration
	events          chan event
	wg              sync.WaitGroup
	log             logrus.FieldLogger
	now             func() time.Time
}

type Option func(*Shop)

func WithTransitionDelay(d time.Duration) Option {
	return func(s *Shop) { s.transitionDelay = d }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Shop) { s.log = log }
}

// WithItems replaces the seeded catalog.
func WithItems(items ...domain.Item) Option {
	return func(s *Shop) {
		s.items = make(map[string]*domain.Item, len(items))
		s.upcs = nil
		for i := range items {
			it := items[i]
			s.items[it.UPC] = &it
			s.upcs = append(s.upcs, it.UPC)
		}
	}
}

// DefaultItems is the catalog a new Shop starts with.
func DefaultItems() []domain.Item {
	return []domain.Item{
		{ID: "item-001", UPC: "001", Name: "Fountain pen", UnitPrice: decimal.RequireFromString("10.00"), AvailableUnits: 100},
		{ID: "item-002", UPC: "002", Name: "Ink bottle", UnitPrice: decimal.RequireFromString("5.00"), AvailableUnits: 100},
		{ID: "item-003", UPC: "003", Name: "Notebook", UnitPrice: decimal.RequireFromString("7.50"), AvailableUnits: 40},
		{ID: "item-004", UPC: "004", Name: "Desk lamp", UnitPrice: decimal.RequireFromString("42.99"), AvailableUnits: 5},
	}
}

// New starts a shop and its transition workers. Close stops them.
func New(opts ...Option) *Shop {
	s := &Shop{
		accounts:        make(map[string]*account),
		orders:          make(map[string]*domain.Order),
		payments:        make(map[string]*domain.Payment),
		paymentByOrder:  make(map[string]string),
		paymentByKey:    make(map[string]string),
		transitionDelay: 500 * time.Millisecond,
		events:          make(chan event, defaultQueueSize),
		done:            make(chan struct{}),
		log:             logrus.StandardLogger(),
		now:             time.Now,
	}
	WithItems(DefaultItems()...)(s)
	for _, opt := range opts {
		opt(s)
	}

	for i := 0; i < defaultWorkers; i++ {
		s.wg.Add(1)
		go func(id int) {
			defer s.wg.Done()
			s.workerLoop(id)
		}(i)
	}
	return s
}

// Close stops the transition workers. Transitions not yet due are dropped.
func (s *Shop) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	close(s.events)
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Shop) Items() []domain.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]domain.Item, 0, len(s.upcs))
	for _, upc := range s.upcs {
		items = append(items, *s.items[upc])
	}
	return items
}

func (s *Shop) Register(reg domain.Registration) (*domain.Account, error) {
	if err := reg.Validate(); err != nil {
		return nil, reject(ErrInvalid, "%s", domain.DisplayMessage(err))
	}
	email := strings.ToLower(strings.TrimSpace(reg.Email))

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[email]; exists {
		return nil, reject(ErrConflict, "an account with email %s already exists", email)
	}
	s.nextAccountID++
	a := &account{
		Account: domain.Account{
			ID:              s.nextAccountID,
			Email:           email,
			Username:        reg.Username,
			ShippingAddress: reg.ShippingAddress,
			BillingAddress:  reg.BillingAddress,
		},
		password: reg.Password,
	}
	s.accounts[email] = a
	out := a.Account
	return &out, nil
}

// Authenticate returns the account matching the credentials.
func (s *Shop) Authenticate(creds domain.Credentials) (*domain.Account, error) {
	email := strings.ToLower(strings.TrimSpace(creds.Email))

	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[email]
	if !ok || a.password != creds.Password {
		return nil, reject(ErrUnauthorized, "invalid email or password")
	}
	out := a.Account
	return &out, nil
}

func (s *Shop) Account(caller string, id int64) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.ownAccountLocked(caller, id)
	if err != nil {
		return nil, err
	}
	out := a.Account
	return &out, nil
}

func (s *Shop) UpdateAccount(caller string, id int64, update domain.AccountUpdate) (*domain.Account, error) {
	if update.Username == "" {
		return nil, reject(ErrInvalid, "username is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.ownAccountLocked(caller, id)
	if err != nil {
		return nil, err
	}
	a.Username = update.Username
	a.ShippingAddress = update.ShippingAddress
	a.BillingAddress = update.BillingAddress
	out := a.Account
	return &out, nil
}

func (s *Shop) ownAccountLocked(caller string, id int64) (*account, error) {
	a, ok := s.accounts[caller]
	if !ok {
		return nil, reject(ErrUnauthorized, "unknown account")
	}
	if a.ID != id {
		return nil, reject(ErrForbidden, "cannot access account %d", id)
	}
	return a, nil
}

func (s *Shop) CreateOrder(caller string, items []domain.ItemQuantity) (*domain.Order, error) {
	if err := domain.ValidateItemQuantities(items); err != nil {
		return nil, reject(ErrInvalid, "%s", domain.DisplayMessage(err))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	order := &domain.Order{
		ID:           uuid.NewString(),
		AccountEmail: caller,
		Status:       domain.OrderStatusCreated,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.reserveLocked(order, items); err != nil {
		return nil, err
	}
	s.orders[order.ID] = order
	s.log.WithFields(logrus.Fields{"order_id": order.ID, "total": order.TotalAmount.String()}).Info("order created")
	out := order.Clone()
	return &out, nil
}

func (s *Shop) ListOrders(caller string) []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []domain.Order
	for _, o := range s.orders {
		if o.AccountEmail == caller {
			list = append(list, o.Clone())
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list
}

func (s *Shop) Order(caller, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.ownOrderLocked(caller, id)
	if err != nil {
		return nil, err
	}
	out := o.Clone()
	return &out, nil
}

// ReplaceItems swaps the item list of a CREATED order, re-pricing it.
func (s *Shop) ReplaceItems(caller, id string, items []domain.ItemQuantity) (*domain.Order, error) {
	if err := domain.ValidateItemQuantities(items); err != nil {
		return nil, reject(ErrInvalid, "%s", domain.DisplayMessage(err))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.ownOrderLocked(caller, id)
	if err != nil {
		return nil, err
	}
	if o.Status != domain.OrderStatusCreated {
		return nil, reject(ErrConflict, "Only orders in CREATED status can be updated")
	}

	previous := o.Items
	s.releaseLocked(previous)
	if err := s.reserveLocked(o, items); err != nil {
		s.restoreLocked(o, previous)
		return nil, err
	}
	o.UpdatedAt = s.now()
	out := o.Clone()
	return &out, nil
}

// CancelOrder cancels an order that has not completed. Cancelling twice is a
// no-op. A successful payment is refunded asynchronously.
func (s *Shop) CancelOrder(caller, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.ownOrderLocked(caller, id)
	if err != nil {
		return nil, err
	}
	switch o.Status {
	case domain.OrderStatusCanceled:
		out := o.Clone()
		return &out, nil
	case domain.OrderStatusCompleted:
		return nil, reject(ErrConflict, "Completed orders cannot be canceled")
	}

	o.Status = domain.OrderStatusCanceled
	o.UpdatedAt = s.now()
	s.releaseLocked(o.Items)
	if pid, ok := s.paymentByOrder[id]; ok && s.payments[pid].Status == domain.PaymentStatusSuccess {
		s.enqueueLocked(event{kind: eventRefund, paymentID: pid})
	}
	s.log.WithField("order_id", id).Info("order canceled")
	out := o.Clone()
	return &out, nil
}

// CreatePayment records a payment for a CREATED order. A request carrying a
// key already seen returns the original payment.
func (s *Shop) CreatePayment(caller string, req domain.PaymentRequest) (*domain.Payment, bool, error) {
	if req.OrderID == "" {
		return nil, false, reject(ErrInvalid, "orderId is required")
	}
	if !req.Amount.IsPositive() {
		return nil, false, reject(ErrInvalid, "payment amount must be greater than 0")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if req.IdempotencyKey != "" {
		if pid, seen := s.paymentByKey[req.IdempotencyKey]; seen {
			p := *s.payments[pid]
			if p.OrderID != req.OrderID {
				return nil, false, reject(ErrConflict, "idempotency key already used for another order")
			}
			return &p, false, nil
		}
	}
	o, err := s.ownOrderLocked(caller, req.OrderID)
	if err != nil {
		return nil, false, err
	}
	if _, paid := s.paymentByOrder[o.ID]; paid {
		return nil, false, reject(ErrConflict, "order %s already has a payment", o.ID)
	}
	if o.Status != domain.OrderStatusCreated {
		return nil, false, reject(ErrConflict, "order %s is %s and cannot be paid", o.ID, o.Status)
	}

	now := s.now()
	p := &domain.Payment{
		ID:           uuid.NewString(),
		OrderID:      o.ID,
		Status:       domain.PaymentStatusSuccess,
		Amount:       req.Amount,
		AccountEmail: caller,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if !req.Amount.Equal(o.TotalAmount) {
		p.Status = domain.PaymentStatusFailed
	}
	s.payments[p.ID] = p
	s.paymentByOrder[o.ID] = p.ID
	if req.IdempotencyKey != "" {
		s.paymentByKey[req.IdempotencyKey] = p.ID
	}
	if p.Status == domain.PaymentStatusSuccess {
		s.enqueueLocked(event{kind: eventComplete, orderID: o.ID})
	}
	s.log.WithFields(logrus.Fields{"order_id": o.ID, "payment_id": p.ID, "status": p.Status}).Info("payment recorded")
	out := *p
	return &out, true, nil
}

func (s *Shop) PaymentByOrder(caller, orderID string) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.ownOrderLocked(caller, orderID); err != nil {
		return nil, err
	}
	pid, ok := s.paymentByOrder[orderID]
	if !ok {
		return nil, reject(ErrNotFound, "no payment for order %s", orderID)
	}
	out := *s.payments[pid]
	return &out, nil
}

func (s *Shop) Payment(caller, id string) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok || p.AccountEmail != caller {
		return nil, reject(ErrNotFound, "payment %s not found", id)
	}
	out := *p
	return &out, nil
}

func (s *Shop) ownOrderLocked(caller, id string) (*domain.Order, error) {
	o, ok := s.orders[id]
	if !ok || o.AccountEmail != caller {
		return nil, reject(ErrNotFound, "order %s not found", id)
	}
	return o, nil
}

// reserveLocked prices items onto o and takes them out of stock. Nothing is
// reserved when any line fails.
func (s *Shop) reserveLocked(o *domain.Order, items []domain.ItemQuantity) error {
	want := make(map[string]int, len(items))
	for _, it := range items {
		want[it.UPC] += it.Quantity
	}
	for upc, qty := range want {
		item, ok := s.items[upc]
		if !ok {
			return reject(ErrInvalid, "unknown item %s", upc)
		}
		if item.AvailableUnits < qty {
			return reject(ErrConflict, "insufficient stock for %s", upc)
		}
	}

	lines := make([]domain.OrderLineItem, 0, len(want))
	total := decimal.Zero
	for _, upc := range s.upcs {
		qty, ok := want[upc]
		if !ok {
			continue
		}
		item := s.items[upc]
		item.AvailableUnits -= qty
		line := domain.OrderLineItem{ItemID: item.ID, UPC: upc, Name: item.Name, UnitPrice: item.UnitPrice, Quantity: qty}
		lines = append(lines, line)
		total = total.Add(line.Subtotal())
	}
	o.Items = lines
	o.TotalAmount = total
	return nil
}

// releaseLocked returns the lines' units to stock.
func (s *Shop) releaseLocked(lines []domain.OrderLineItem) {
	for _, line := range lines {
		if item, ok := s.items[line.UPC]; ok {
			item.AvailableUnits += line.Quantity
		}
	}
}

// restoreLocked puts back an item list that was released for a failed replace.
func (s *Shop) restoreLocked(o *domain.Order, lines []domain.OrderLineItem) {
	for _, line := range lines {
		if item, ok := s.items[line.UPC]; ok {
			item.AvailableUnits -= line.Quantity
		}
	}
	o.Items = lines
}
