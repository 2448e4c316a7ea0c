package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/order-console/internal/adapter/storage"
	"github.com/rl1809/order-console/internal/app"
	"github.com/rl1809/order-console/internal/core/domain"
	"github.com/rl1809/order-console/internal/core/service"
)

var errUsage = errors.New("invalid arguments, run ordercli without arguments for usage")

type itemArg struct {
	upc string
	qty float64
}

// itemFlags collects repeated -item UPC=QTY flags.
type itemFlags []itemArg

func (f *itemFlags) String() string { return fmt.Sprint(*f) }

func (f *itemFlags) Set(v string) error {
	upc, qty, ok := strings.Cut(v, "=")
	if !ok || upc == "" {
		return fmt.Errorf("expected UPC=QTY, got %q", v)
	}
	q, err := strconv.ParseFloat(qty, 64)
	if err != nil {
		return fmt.Errorf("quantity for %s: %w", upc, err)
	}
	*f = append(*f, itemArg{upc: upc, qty: q})
	return nil
}

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet(name, flag.ContinueOnError)
}

// orderArgs splits "ORDER_ID [flags]".
func orderArgs(fs *flag.FlagSet, args []string) (string, error) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "", errUsage
	}
	if err := fs.Parse(args[1:]); err != nil {
		return "", err
	}
	return args[0], nil
}

func runRegister(ctx context.Context, a *app.App, args []string) error {
	fs := newFlagSet("register")
	email := fs.String("email", "", "account email")
	username := fs.String("username", "", "display name")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	account, err := a.Session.Register(ctx, domain.Registration{Email: *email, Username: *username, Password: *password})
	if err != nil {
		return err
	}
	fmt.Printf("registered account %d (%s)\n", account.ID, account.Email)
	return nil
}

func runLogin(ctx context.Context, a *app.App, args []string) error {
	fs := newFlagSet("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.Session.Login(ctx, *email, *password); err != nil {
		return err
	}
	fmt.Println("signed in")
	if _, inMemory := a.Credentials.(*storage.MemoryCredentialStore); inMemory {
		token, _ := a.Credentials.Token(ctx)
		fmt.Println("REDIS_ADDR is not set, the credential is not kept; export it for later commands:")
		fmt.Printf("  export ORDER_API_TOKEN=%s\n", token)
	}
	return nil
}

func runLogout(ctx context.Context, a *app.App, args []string) error {
	if err := a.Session.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("signed out")
	return nil
}

func runAccount(ctx context.Context, a *app.App, args []string) error {
	fs := newFlagSet("account")
	id := fs.Int64("id", 0, "account id")
	username := fs.String("username", "", "new display name")
	city := fs.String("city", "", "shipping city")
	country := fs.String("country", "", "shipping country")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		return errUsage
	}

	account, err := a.Session.Account(ctx, *id)
	if err != nil {
		return err
	}
	if *username != "" || *city != "" || *country != "" {
		update := domain.AccountUpdate{
			Username:        account.Username,
			ShippingAddress: account.ShippingAddress,
			BillingAddress:  account.BillingAddress,
		}
		if *username != "" {
			update.Username = *username
		}
		if *city != "" || *country != "" {
			addr := domain.Address{}
			if update.ShippingAddress != nil {
				addr = *update.ShippingAddress
			}
			if *city != "" {
				addr.City = *city
			}
			if *country != "" {
				addr.Country = *country
			}
			update.ShippingAddress = &addr
		}
		if account, err = a.Session.UpdateAccount(ctx, *id, update); err != nil {
			return err
		}
	}
	renderAccount(os.Stdout, account)
	return nil
}

func runItems(ctx context.Context, a *app.App, args []string) error {
	items, err := a.Client.ListItems(ctx)
	if err != nil {
		return err
	}
	renderItems(os.Stdout, items)
	return nil
}

func runOrders(ctx context.Context, a *app.App, args []string) error {
	orders, err := service.OrderHistory(ctx, a.Client)
	if err != nil {
		return err
	}
	renderOrders(os.Stdout, orders)
	return nil
}

func runCreate(ctx context.Context, a *app.App, args []string) error {
	fs := newFlagSet("create")
	var items itemFlags
	fs.Var(&items, "item", "UPC=QTY, repeatable")
	if err := fs.Parse(args); err != nil {
		return err
	}

	composer := a.Composer()
	if err := composer.LoadCatalog(ctx); err != nil {
		return err
	}
	for _, it := range items {
		if err := composer.SetQuantity(it.upc, it.qty); err != nil {
			return fmt.Errorf("%s: %w", it.upc, err)
		}
	}
	qty, amount := composer.Totals()
	fmt.Printf("creating order: %d items, total %s\n", qty, amount.StringFixed(2))

	order, err := composer.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("created order %s\n", order.ID)
	return nil
}

func runShow(ctx context.Context, a *app.App, args []string) error {
	orderID, err := orderArgs(newFlagSet("show"), args)
	if err != nil {
		return err
	}
	c := a.Coordinator()
	defer c.Close()
	if err := c.Load(ctx, orderID); err != nil {
		return err
	}
	renderView(os.Stdout, c.Snapshot())
	return nil
}

func runEdit(ctx context.Context, a *app.App, args []string) error {
	fs := newFlagSet("edit")
	var items itemFlags
	fs.Var(&items, "item", "UPC=QTY, repeatable; 0 removes the line")
	orderID, err := orderArgs(fs, args)
	if err != nil {
		return err
	}

	c := a.Coordinator()
	defer c.Close()
	if err := c.Load(ctx, orderID); err != nil {
		return err
	}
	if err := c.BeginEdit(); err != nil {
		return fmt.Errorf("order %s cannot be edited: %w", orderID, err)
	}
	for _, it := range items {
		if err := c.SetQuantity(it.upc, it.qty); err != nil {
			return fmt.Errorf("%s: %w", it.upc, err)
		}
	}
	v := c.Snapshot()
	fmt.Printf("saving %d items, total %s\n", v.TotalQuantity(), v.DisplayTotal().StringFixed(2))
	if err := c.SaveEdit(ctx); err != nil {
		return err
	}
	renderView(os.Stdout, c.Snapshot())
	return nil
}

func runPay(ctx context.Context, a *app.App, args []string) error {
	fs := newFlagSet("pay")
	amount := fs.String("amount", "", "amount to pay, defaults to the order total")
	wait := fs.Bool("wait", false, "wait for the order to be observed as completed")
	orderID, err := orderArgs(fs, args)
	if err != nil {
		return err
	}

	c := a.Coordinator()
	defer c.Close()
	if err := c.Load(ctx, orderID); err != nil {
		return err
	}
	if err := c.BeginPayment(); err != nil {
		return fmt.Errorf("order %s cannot be paid: %w", orderID, err)
	}
	if *amount != "" {
		d, err := decimal.NewFromString(*amount)
		if err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		if err := c.SetPaymentAmount(d); err != nil {
			return err
		}
	}
	if err := c.SubmitPayment(ctx); err != nil {
		return err
	}
	if *wait {
		waitSettled(ctx, c)
	}
	renderView(os.Stdout, c.Snapshot())
	return nil
}

func runCancel(ctx context.Context, a *app.App, args []string) error {
	fs := newFlagSet("cancel")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	wait := fs.Bool("wait", false, "wait for a refund to be observed")
	orderID, err := orderArgs(fs, args)
	if err != nil {
		return err
	}

	c := a.Coordinator()
	defer c.Close()
	if err := c.Load(ctx, orderID); err != nil {
		return err
	}

	var confirm service.Confirmer = stdinConfirmer{in: bufio.NewReader(os.Stdin), out: os.Stdout}
	if *yes {
		confirm = service.ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })
	}
	if err := c.Cancel(ctx, confirm); err != nil {
		if errors.Is(err, service.ErrCancelNotConfirmed) {
			fmt.Println("order not canceled")
			return nil
		}
		return err
	}
	if *wait {
		waitSettled(ctx, c)
	}
	renderView(os.Stdout, c.Snapshot())
	return nil
}

func runJournal(ctx context.Context, a *app.App, args []string) error {
	orderID, err := orderArgs(newFlagSet("journal"), args)
	if err != nil {
		return err
	}
	if a.Journal == nil {
		return errors.New("the command journal is disabled, set MYSQL_DSN")
	}
	entries, err := a.Journal.ListByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	renderJournal(os.Stdout, entries)
	return nil
}

// waitSettled blocks until no reconciliation poll is outstanding.
func waitSettled(ctx context.Context, c *service.OrderCoordinator) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for c.Snapshot().State == service.StateReconciling {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

type stdinConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func (s stdinConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	fmt.Fprintf(s.out, "%s [y/N] ", prompt)
	line, err := s.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
