package tests

import (
	"context"
	"io"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/order-console/internal/adapter/handler"
	"github.com/rl1809/order-console/internal/app"
	"github.com/rl1809/order-console/internal/config"
	"github.com/rl1809/order-console/internal/core/domain"
	"github.com/rl1809/order-console/internal/core/service"
	"github.com/rl1809/order-console/internal/fakeshop"
)

const (
	transitionDelay = 250 * time.Millisecond
	reconcileDelay  = 600 * time.Millisecond
)

type testEnv struct {
	app     *app.App
	shop    *fakeshop.Shop
	cleanup func()
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.Out = io.Discard
	return log
}

// setupTestEnv starts a fakeshop behind httptest and signs a fresh account
// in. Extra config fields are applied by tweak before the app is built.
func setupTestEnv(t *testing.T, tweak func(cfg *config.Config)) *testEnv {
	log := quietLogger()
	shop := fakeshop.New(fakeshop.WithLogger(log), fakeshop.WithTransitionDelay(transitionDelay))
	srv := httptest.NewServer(handler.NewHTTPHandler(shop, "integration-secret", log).Router())

	cfg := &config.Config{
		BaseURL:        srv.URL,
		HTTPTimeout:    2 * time.Second,
		ReconcileDelay: reconcileDelay,
		CredentialTTL:  time.Hour,
		Profile:        "integration-" + uuid.NewString()[:8],
	}
	if tweak != nil {
		tweak(cfg)
	}

	a, err := app.New(context.Background(), cfg, log)
	if err != nil {
		srv.Close()
		shop.Close()
		if cfg.RedisAddr != "" || cfg.MySQLDSN != "" {
			t.Skipf("Redis or MySQL not available: %v", err)
		}
		t.Fatalf("build app: %v", err)
	}

	ctx := context.Background()
	email := "buyer-" + uuid.NewString()[:8] + "@example.com"
	_, err = a.Session.Register(ctx, domain.Registration{Email: email, Username: "buyer", Password: "pw"})
	require.NoError(t, err)
	require.NoError(t, a.Session.Login(ctx, email, "pw"))

	return &testEnv{
		app:  a,
		shop: shop,
		cleanup: func() {
			a.Session.Logout(context.Background())
			a.Close()
			srv.Close()
			shop.Close()
		},
	}
}

func (env *testEnv) createOrder(t *testing.T, qty map[string]float64) *domain.Order {
	t.Helper()
	composer := env.app.Composer()
	require.NoError(t, composer.LoadCatalog(context.Background()))
	for upc, q := range qty {
		require.NoError(t, composer.SetQuantity(upc, q))
	}
	order, err := composer.Submit(context.Background())
	require.NoError(t, err)
	return order
}

func waitSettled(t *testing.T, c *service.OrderCoordinator) service.View {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Snapshot().State != service.StateReconciling
	}, 3*reconcileDelay, 20*time.Millisecond)
	return c.Snapshot()
}

func confirmYes() service.Confirmer {
	return service.ConfirmFunc(func(context.Context, string) (bool, error) { return true, nil })
}

func TestIntegration_LoadShowsQuantitiesAndTotal(t *testing.T) {
	env := setupTestEnv(t, nil)
	defer env.cleanup()

	order := env.createOrder(t, map[string]float64{"001": 2, "002": 1})

	c := env.app.Coordinator()
	defer c.Close()
	require.NoError(t, c.Load(context.Background(), order.ID))

	v := c.Snapshot()
	assert.Equal(t, service.StateViewing, v.State)
	assert.Equal(t, 3, v.TotalQuantity())
	assert.True(t, v.DisplayTotal().Equal(decimal.NewFromInt(25)), "total %s", v.DisplayTotal())
	assert.Nil(t, v.Payment, "a 404 from payment-by-order means no payment")
	assert.Empty(t, v.Failure)
	assert.True(t, v.CanEdit && v.CanPay && v.CanCancel)
}

func TestIntegration_PayThenReconcileToCompleted(t *testing.T) {
	env := setupTestEnv(t, nil)
	defer env.cleanup()

	ctx := context.Background()
	order := env.createOrder(t, map[string]float64{"001": 2, "002": 1})

	c := env.app.Coordinator()
	defer c.Close()
	require.NoError(t, c.Load(ctx, order.ID))
	require.NoError(t, c.BeginPayment())
	require.NoError(t, c.SubmitPayment(ctx))

	v := c.Snapshot()
	assert.Equal(t, service.StateReconciling, v.State)
	require.NotNil(t, v.Payment)
	assert.Equal(t, domain.PaymentStatusSuccess, v.Payment.Status)
	assert.Equal(t, domain.OrderStatusCreated, v.Order.Status)
	assert.ErrorIs(t, c.BeginPayment(), service.ErrTransitionNotAllowed)

	v = waitSettled(t, c)
	assert.Equal(t, service.StateViewing, v.State)
	assert.Equal(t, domain.OrderStatusCompleted, v.Order.Status)
	assert.False(t, v.CanEdit || v.CanPay || v.CanCancel)
}

func TestIntegration_CancelPaidOrderObservesRefund(t *testing.T) {
	env := setupTestEnv(t, nil)
	defer env.cleanup()

	ctx := context.Background()
	order := env.createOrder(t, map[string]float64{"003": 2})
	payment, err := env.app.Client.CreatePayment(ctx, domain.PaymentRequest{
		OrderID:        order.ID,
		Amount:         order.TotalAmount,
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)

	c := env.app.Coordinator()
	defer c.Close()
	require.NoError(t, c.Load(ctx, order.ID))
	require.NoError(t, c.Cancel(ctx, confirmYes()))

	v := c.Snapshot()
	assert.Equal(t, domain.OrderStatusCanceled, v.Order.Status)
	assert.False(t, v.CanCancel)

	v = waitSettled(t, c)
	require.NotNil(t, v.Payment)
	assert.Equal(t, payment.ID, v.Payment.ID)
	assert.Equal(t, domain.PaymentStatusRefunded, v.Payment.Status)
}

func TestIntegration_LaterLoadWins(t *testing.T) {
	env := setupTestEnv(t, nil)
	defer env.cleanup()

	ctx := context.Background()
	first := env.createOrder(t, map[string]float64{"001": 1})
	second := env.createOrder(t, map[string]float64{"003": 4})

	c := env.app.Coordinator()
	defer c.Close()
	require.NoError(t, c.Load(ctx, first.ID))
	require.NoError(t, c.Load(ctx, second.ID))

	v := c.Snapshot()
	assert.Equal(t, second.ID, v.Order.ID)
	assert.Equal(t, 4, v.TotalQuantity())
	assert.True(t, v.DisplayTotal().Equal(second.TotalAmount))
}

func TestIntegration_EditReplacesItems(t *testing.T) {
	env := setupTestEnv(t, nil)
	defer env.cleanup()

	ctx := context.Background()
	order := env.createOrder(t, map[string]float64{"001": 2, "002": 1})

	c := env.app.Coordinator()
	defer c.Close()
	require.NoError(t, c.Load(ctx, order.ID))
	require.NoError(t, c.BeginEdit())
	require.NoError(t, c.SetQuantity("002", 0))
	require.NoError(t, c.SetQuantity("001", 3))
	assert.True(t, c.Snapshot().DisplayTotal().Equal(decimal.NewFromInt(30)))
	require.NoError(t, c.SaveEdit(ctx))

	v := c.Snapshot()
	assert.Equal(t, service.StateViewing, v.State)
	require.Len(t, v.Order.Items, 1)
	assert.Equal(t, 3, v.Order.Items[0].Quantity)
	assert.True(t, v.Order.TotalAmount.Equal(decimal.NewFromInt(30)))
}

func TestIntegration_StaleEditIsRejected(t *testing.T) {
	env := setupTestEnv(t, nil)
	defer env.cleanup()

	ctx := context.Background()
	order := env.createOrder(t, map[string]float64{"001": 1})

	c := env.app.Coordinator()
	defer c.Close()
	require.NoError(t, c.Load(ctx, order.ID))
	require.NoError(t, c.BeginEdit())
	require.NoError(t, c.SetQuantity("001", 2))

	// Another client pays and the backend completes the order.
	_, err := env.app.Client.CreatePayment(ctx, domain.PaymentRequest{
		OrderID:        order.ID,
		Amount:         order.TotalAmount,
		IdempotencyKey: uuid.NewString(),
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		o, err := env.app.Client.GetOrder(ctx, order.ID)
		return err == nil && o.Status == domain.OrderStatusCompleted
	}, time.Second, 20*time.Millisecond)

	err = c.SaveEdit(ctx)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.FailureValidation))

	v := c.Snapshot()
	assert.Equal(t, service.StateEditing, v.State)
	assert.Equal(t, "Only orders in CREATED status can be updated", v.Failure)
}

func TestIntegration_SignedOutActionsAreUnauthorized(t *testing.T) {
	env := setupTestEnv(t, nil)
	defer env.cleanup()

	ctx := context.Background()
	order := env.createOrder(t, map[string]float64{"004": 1})
	require.NoError(t, env.app.Session.Logout(ctx))

	c := env.app.Coordinator()
	defer c.Close()
	err := c.Load(ctx, order.ID)
	assert.True(t, domain.IsKind(err, domain.FailureUnauthorized))
	assert.Equal(t, service.StateLoadFailed, c.Snapshot().State)
	assert.Equal(t, "must sign in", c.Snapshot().Failure)
}

func TestIntegration_JournalAndRedisCredentials(t *testing.T) {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/orderconsole?parseTime=true"
	}

	env := setupTestEnv(t, func(cfg *config.Config) {
		cfg.RedisAddr = redisAddr
		cfg.MySQLDSN = mysqlDSN
	})
	defer env.cleanup()

	ctx := context.Background()
	signedIn, err := env.app.Session.SignedIn(ctx)
	require.NoError(t, err)
	assert.True(t, signedIn)

	order := env.createOrder(t, map[string]float64{"001": 1})

	c := env.app.Coordinator()
	defer c.Close()
	require.NoError(t, c.Load(ctx, order.ID))
	require.NoError(t, c.BeginPayment())
	require.NoError(t, c.SetPaymentAmount(decimal.NewFromInt(1)))
	require.NoError(t, c.SubmitPayment(ctx))

	entries, err := env.app.Journal.ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	var commands []domain.Command
	for _, e := range entries {
		commands = append(commands, e.Command)
	}
	assert.Equal(t, []domain.Command{domain.CommandCreate, domain.CommandPay}, commands)
}
