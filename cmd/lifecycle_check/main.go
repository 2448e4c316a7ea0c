package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/order-console/internal/app"
	"github.com/rl1809/order-console/internal/config"
	"github.com/rl1809/order-console/internal/core/domain"
	"github.com/rl1809/order-console/internal/core/service"
	"github.com/rl1809/order-console/internal/port"
	"github.com/rl1809/order-console/internal/telemetry"
)

// slowOrders delays fetches of one order so a second load can overtake it.
type slowOrders struct {
	port.OrderService
	orderID string
	delay   time.Duration
}

func (s slowOrders) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if orderID == s.orderID {
		time.Sleep(s.delay)
	}
	return s.OrderService.GetOrder(ctx, orderID)
}

type checker struct {
	failed int
}

func (c *checker) check(name string, ok bool, format string, args ...interface{}) {
	if ok {
		fmt.Printf("PASS: %s\n", name)
		return
	}
	c.failed++
	fmt.Printf("FAIL: %s: %s\n", name, fmt.Sprintf(format, args...))
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Fallback().WithError(err).Fatal("invalid configuration")
	}
	log := cfg.NewLogger()
	ctx := context.Background()

	shutdownTracing := telemetry.Init(log, cfg.EnableTracing)
	defer shutdownTracing(ctx)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize")
	}
	defer a.Close()

	email := fmt.Sprintf("lifecycle-%s@example.com", uuid.NewString()[:8])
	if _, err := a.Session.Register(ctx, domain.Registration{Email: email, Username: "lifecycle", Password: "lifecycle"}); err != nil {
		log.WithError(err).Fatal("register")
	}
	if err := a.Session.Login(ctx, email, "lifecycle"); err != nil {
		log.WithError(err).Fatal("login")
	}

	var c checker
	start := time.Now()

	checkLoadTotals(ctx, a, &c)
	checkPayCompletes(ctx, a, cfg, &c)
	checkCancelRefunds(ctx, a, cfg, &c)
	checkLaterLoadWins(ctx, a, log, cfg, &c)

	fmt.Println("========== LIFECYCLE RESULTS ==========")
	fmt.Printf("Backend:   %s\n", cfg.BaseURL)
	fmt.Printf("Failures:  %d\n", c.failed)
	fmt.Printf("Duration:  %v\n", time.Since(start))
	fmt.Println("======================================")
	if c.failed > 0 {
		a.Close()
		os.Exit(1)
	}
}

func createPenAndInkOrder(ctx context.Context, a *app.App) (*domain.Order, error) {
	return a.Client.CreateOrder(ctx, []domain.ItemQuantity{{UPC: "001", Quantity: 2}, {UPC: "002", Quantity: 1}})
}

// waitSettled waits for outstanding reconciliation polls, for at most two
// reconcile delays plus one request timeout.
func waitSettled(c *service.OrderCoordinator, cfg *config.Config) service.View {
	deadline := time.Now().Add(2*cfg.ReconcileDelay + cfg.HTTPTimeout)
	for time.Now().Before(deadline) {
		v := c.Snapshot()
		if v.State != service.StateReconciling {
			return v
		}
		time.Sleep(50 * time.Millisecond)
	}
	return c.Snapshot()
}

// checkLoadTotals: quantities and totals of a freshly loaded order.
func checkLoadTotals(ctx context.Context, a *app.App, c *checker) {
	order, err := createPenAndInkOrder(ctx, a)
	if err != nil {
		c.check("load: create order", false, "%v", err)
		return
	}
	coord := a.Coordinator()
	defer coord.Close()
	if err := coord.Load(ctx, order.ID); err != nil {
		c.check("load: load order", false, "%v", err)
		return
	}
	v := coord.Snapshot()
	c.check("load: total quantity is 3", v.TotalQuantity() == 3, "got %d", v.TotalQuantity())
	c.check("load: total amount matches service", v.DisplayTotal().Equal(order.TotalAmount), "got %s", v.DisplayTotal())
	c.check("load: no payment yet", v.Payment == nil && v.CanPay, "payment %+v", v.Payment)
}

// checkPayCompletes: pay, then observe COMPLETED through the reconciliation poll.
func checkPayCompletes(ctx context.Context, a *app.App, cfg *config.Config, c *checker) {
	order, err := createPenAndInkOrder(ctx, a)
	if err != nil {
		c.check("pay: create order", false, "%v", err)
		return
	}
	coord := a.Coordinator()
	defer coord.Close()
	if err := coord.Load(ctx, order.ID); err != nil {
		c.check("pay: load order", false, "%v", err)
		return
	}
	if err := coord.BeginPayment(); err != nil {
		c.check("pay: open payment", false, "%v", err)
		return
	}
	if err := coord.SubmitPayment(ctx); err != nil {
		c.check("pay: submit payment", false, "%v", err)
		return
	}

	v := coord.Snapshot()
	c.check("pay: payment succeeded", v.Payment != nil && v.Payment.Status == domain.PaymentStatusSuccess, "payment %+v", v.Payment)
	c.check("pay: order still CREATED before the poll", v.Order.Status == domain.OrderStatusCreated, "got %s", v.Order.Status)
	c.check("pay: pay unavailable after payment", errors.Is(coord.BeginPayment(), service.ErrTransitionNotAllowed), "payment dialog reopened")

	v = waitSettled(coord, cfg)
	c.check("pay: order COMPLETED after reconcile", v.Order.Status == domain.OrderStatusCompleted, "got %s", v.Order.Status)
}

// checkCancelRefunds: cancel a paid order before it completes and observe the refund.
func checkCancelRefunds(ctx context.Context, a *app.App, cfg *config.Config, c *checker) {
	order, err := createPenAndInkOrder(ctx, a)
	if err != nil {
		c.check("cancel: create order", false, "%v", err)
		return
	}
	payment, err := a.Client.CreatePayment(ctx, domain.PaymentRequest{OrderID: order.ID, Amount: order.TotalAmount, IdempotencyKey: uuid.NewString()})
	if err != nil {
		c.check("cancel: pay order", false, "%v", err)
		return
	}

	coord := a.Coordinator()
	defer coord.Close()
	if err := coord.Load(ctx, order.ID); err != nil {
		c.check("cancel: load order", false, "%v", err)
		return
	}
	yes := service.ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })
	if err := coord.Cancel(ctx, yes); err != nil {
		c.check("cancel: cancel order", false, "%v (the backend may have completed the order first)", err)
		return
	}

	v := coord.Snapshot()
	c.check("cancel: order CANCELED", v.Order.Status == domain.OrderStatusCanceled, "got %s", v.Order.Status)
	c.check("cancel: cancel unavailable afterwards", !v.CanCancel, "cancel still offered")

	v = waitSettled(coord, cfg)
	c.check("cancel: payment REFUNDED after reconcile", v.Payment != nil && v.Payment.ID == payment.ID && v.Payment.Status == domain.PaymentStatusRefunded, "payment %+v", v.Payment)
}

// checkLaterLoadWins: a slow load of one order is overtaken by a load of another.
func checkLaterLoadWins(ctx context.Context, a *app.App, log logrus.FieldLogger, cfg *config.Config, c *checker) {
	first, err := createPenAndInkOrder(ctx, a)
	if err != nil {
		c.check("reload: create first order", false, "%v", err)
		return
	}
	second, err := a.Client.CreateOrder(ctx, []domain.ItemQuantity{{UPC: "003", Quantity: 4}})
	if err != nil {
		c.check("reload: create second order", false, "%v", err)
		return
	}

	orders := slowOrders{OrderService: a.Client, orderID: first.ID, delay: 300 * time.Millisecond}
	coord := service.NewOrderCoordinator(orders, a.Client,
		service.WithLogger(log), service.WithReconcileDelay(cfg.ReconcileDelay))
	defer coord.Close()

	errc := make(chan error, 1)
	go func() { errc <- coord.Load(ctx, first.ID) }()
	time.Sleep(50 * time.Millisecond)
	if err := coord.Load(ctx, second.ID); err != nil {
		c.check("reload: load second order", false, "%v", err)
		return
	}
	staleErr := <-errc

	v := coord.Snapshot()
	c.check("reload: stale load reported superseded", errors.Is(staleErr, service.ErrViewSuperseded), "got %v", staleErr)
	c.check("reload: view shows the second order", v.Order != nil && v.Order.ID == second.ID, "got %+v", v.Order)
	c.check("reload: totals belong to the second order", v.DisplayTotal().Equal(second.TotalAmount), "got %s", v.DisplayTotal())
}
