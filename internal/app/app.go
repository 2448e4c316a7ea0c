package app

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/order-console/internal/adapter/rest"
	"github.com/rl1809/order-console/internal/adapter/storage"
	"github.com/rl1809/order-console/internal/config"
	"github.com/rl1809/order-console/internal/core/service"
	"github.com/rl1809/order-console/internal/port"
)

const connectTimeout = 5 * time.Second

// App wires the REST facade, the credential store and the optional command
// journal from a Config.
type App struct {
	Client      *rest.Client
	Credentials port.CredentialStore
	Journal     port.CommandJournal
	Session     *service.Session

	cfg     *config.Config
	log     logrus.FieldLogger
	closers []func() error
}

func New(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*App, error) {
	a := &App{cfg: cfg, log: log}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, PoolSize: 10})
		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			rdb.Close()
			return nil, errors.Wrapf(err, "connect redis %s", cfg.RedisAddr)
		}
		a.closers = append(a.closers, rdb.Close)
		a.Credentials = storage.NewRedisCredentialStore(rdb, cfg.Profile, cfg.CredentialTTL)
		log.WithField("profile", cfg.Profile).Debug("credentials kept in redis")
	} else {
		mem := storage.NewMemoryCredentialStore()
		if cfg.Token != "" {
			mem.SaveToken(ctx, cfg.Token)
		}
		a.Credentials = mem
	}

	if cfg.MySQLDSN != "" {
		journal, closeDB, err := openJournal(ctx, cfg.MySQLDSN)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, closeDB)
		a.Journal = journal
		log.Debug("command journal enabled")
	}

	a.Client = rest.NewClient(cfg.BaseURL, a.Credentials,
		rest.WithTimeout(cfg.HTTPTimeout),
		rest.WithLogger(log.WithField("component", "rest")),
	)
	a.Session = service.NewSession(a.Client, a.Credentials, log)
	return a, nil
}

func openJournal(ctx context.Context, dsn string) (*storage.MySQLJournal, func() error, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open mysql")
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, errors.Wrap(err, "ping mysql")
	}
	journal := storage.NewMySQLJournal(db)
	if err := journal.EnsureSchema(pingCtx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return journal, db.Close, nil
}

// Coordinator returns a coordinator for one order view.
func (a *App) Coordinator() *service.OrderCoordinator {
	opts := []service.CoordinatorOption{
		service.WithLogger(a.log.WithField("component", "coordinator")),
		service.WithReconcileDelay(a.cfg.ReconcileDelay),
	}
	if a.Journal != nil {
		opts = append(opts, service.WithJournal(a.Journal))
	}
	return service.NewOrderCoordinator(a.Client, a.Client, opts...)
}

func (a *App) Composer() *service.OrderComposer {
	return service.NewOrderComposer(a.Client, a.Client, a.Journal, a.log.WithField("component", "composer"))
}

// Close releases the redis and mysql connections.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
