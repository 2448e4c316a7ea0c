package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rl1809/order-console/internal/app"
	"github.com/rl1809/order-console/internal/config"
	"github.com/rl1809/order-console/internal/core/domain"
	"github.com/rl1809/order-console/internal/telemetry"
)

const usage = `usage: ordercli <command> [flags]

commands:
  register  -email E -username U -password P
  login     -email E -password P
  logout
  account   -id N [-username U -city C -country C]
  items
  orders
  create    -item UPC=QTY [-item UPC=QTY ...]
  show      ORDER_ID
  edit      ORDER_ID -item UPC=QTY [-item UPC=QTY ...]
  pay       ORDER_ID [-amount A] [-wait]
  cancel    ORDER_ID [-yes] [-wait]
  journal   ORDER_ID
`

type command func(ctx context.Context, a *app.App, args []string) error

var commands = map[string]command{
	"register": runRegister,
	"login":    runLogin,
	"logout":   runLogout,
	"account":  runAccount,
	"items":    runItems,
	"orders":   runOrders,
	"create":   runCreate,
	"show":     runShow,
	"edit":     runEdit,
	"pay":      runPay,
	"cancel":   runCancel,
	"journal":  runJournal,
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	run, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		config.Fallback().WithError(err).Fatal("invalid configuration")
	}
	log := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Init(log, cfg.EnableTracing)
	defer shutdownTracing(context.Background())

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize")
	}
	defer a.Close()

	if err := run(ctx, a, os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", describe(err))
		a.Close()
		os.Exit(1)
	}
}

// describe prefers the display message for classified failures.
func describe(err error) string {
	if f := domain.AsFailure(err); f != nil && f.Kind != domain.FailureServer {
		return domain.DisplayMessage(err)
	}
	return err.Error()
}
