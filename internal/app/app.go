// Package app assembles the ledger service: storage, interceptor chain and metrics.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"txchain/internal/core/proxy"
	"txchain/internal/core/tx"
	"txchain/internal/domain/ledger"
	"txchain/internal/infrastructure/metrics"
	"txchain/internal/infrastructure/storage/postgres"
	"txchain/internal/infrastructure/storage/postgres/ledger_repo"
	"txchain/internal/infrastructure/storage/sqlstore"
	"txchain/internal/metadata"
	"txchain/pkg/logger"
)

// Supported storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config selects and tunes the storage backend.
type Config struct {
	Driver           string
	DatabaseURL      string
	StatementTimeout time.Duration
	MaxConns         int32

	// Rules are semicolon-separated CEL expressions marking targets transactional.
	Rules string

	// Registerer receives the metrics; nil uses the default registerer.
	Registerer prometheus.Registerer
}

// App is a wired ledger.
type App struct {
	Dispatcher *proxy.Dispatcher
	Ledger     *ledger.Service
	Metrics    *metrics.Collector
	// Tx groups several ledger calls into one transaction.
	Tx *tx.TxManager

	ping  func(ctx context.Context) error
	stats func(ctx context.Context)
	close func() error
}

// New opens storage, ensures the schema and registers the ledger targets.
func New(ctx context.Context, cfg Config) (*App, error) {
	rules, err := metadata.ParseRules(cfg.Rules)
	if err != nil {
		return nil, err
	}

	collector, err := metrics.NewCollector(cfg.Registerer)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	a := &App{Metrics: collector}
	resource, repo, err := a.openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// Logging is outermost so it sees the final outcome, metrics time the
	// whole transaction including begin and commit.
	txi := tx.NewInterceptor(resource, tx.WithObserver(collector))
	a.Dispatcher = proxy.NewDispatcher(metadata.NewRegistry(rules),
		proxy.Logging(),
		collector.Interceptor(),
		txi,
	)
	a.Tx = tx.NewManager(txi)

	a.Ledger, err = ledger.NewService(repo, a.Dispatcher)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	logger.Info(ctx, "ledger ready",
		"driver", cfg.Driver,
		"targets", len(a.Dispatcher.Registry().List()),
		"rules", rules.Len(),
	)
	return a, nil
}

type migrator interface {
	Migrate(ctx context.Context) error
}

func (a *App) openStorage(ctx context.Context, cfg Config) (tx.Resource, ledger.Repository, error) {
	var (
		resource tx.Resource
		repo     interface {
			ledger.Repository
			migrator
		}
	)

	switch cfg.Driver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, nil, errors.New("postgres driver requires a database URL")
		}
		poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
		if cfg.MaxConns > 0 {
			poolCfg.MaxConns = cfg.MaxConns
		}
		pool, err := postgres.NewPool(ctx, poolCfg)
		if err != nil {
			return nil, nil, err
		}

		res := postgres.NewTxResourceFromPool(pool)
		if cfg.StatementTimeout > 0 {
			opts := postgres.DefaultTxOptions()
			opts.StatementTimeout = cfg.StatementTimeout
			res = postgres.NewTxResource(pool, opts)
		}
		resource, repo = res, ledger_repo.NewAccountRepo(res)

		a.ping = pool.Ping
		a.stats = pool.LogStats
		a.close = func() error { pool.Close(); return nil }

	case DriverSQLite, "":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "file:txchain?mode=memory&cache=shared"
		}
		db, err := sqlstore.OpenSQLite(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			_ = sqlstore.Close(db)
			return nil, nil, err
		}

		res := sqlstore.NewTxResource(db)
		resource, repo = res, sqlstore.NewAccountRepo(res)

		a.ping = sqlDB.PingContext
		a.close = func() error { return sqlstore.Close(db) }

	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	if err := repo.Migrate(ctx); err != nil {
		_ = a.Close()
		return nil, nil, err
	}
	return resource, repo, nil
}

// Ping checks the storage connection.
func (a *App) Ping(ctx context.Context) error {
	if a.ping == nil {
		return errors.New("storage not open")
	}
	return a.ping(ctx)
}

// LogStats logs connection pool usage when the backend reports it.
func (a *App) LogStats(ctx context.Context) {
	if a.stats != nil {
		a.stats(ctx)
	}
}

// Close releases the storage.
func (a *App) Close() error {
	if a.close == nil {
		return nil
	}
	err := a.close()
	a.close = nil
	return err
}
