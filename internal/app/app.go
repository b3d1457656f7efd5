package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/cartledger/internal/data/aggregates"
	"github.com/yungbote/cartledger/internal/data/db"
	"github.com/yungbote/cartledger/internal/data/store"
	"github.com/yungbote/cartledger/internal/data/store/gormstore"
	"github.com/yungbote/cartledger/internal/data/store/memory"
	"github.com/yungbote/cartledger/internal/observability"
	"github.com/yungbote/cartledger/internal/platform/logger"
)

type App struct {
	Log     *logger.Logger
	Cfg     Config
	Store   store.Store
	Carts   *aggregates.Repository
	Metrics *observability.Metrics

	cancel       context.CancelFunc
	otelShutdown func(context.Context) error
}

// New wires the store, runner and cart repository from cfg. The caller owns
// the returned App and must Close it.
func New(cfg Config, log *logger.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		var err error
		log, err = logger.New(cfg.LogMode)
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{Log: log, Cfg: cfg, cancel: cancel}
	a.otelShutdown = observability.InitOTel(ctx, log, cfg.Otel)

	if cfg.Metrics.Enabled {
		a.Metrics = observability.NewMetrics(cfg.Metrics.Namespace)
		a.Metrics.StartServer(ctx, log, cfg.Metrics.Addr)
	}

	st, err := openStore(cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Store = st

	a.Carts = aggregates.NewCartAggregate(aggregates.CartAggregateDeps{
		Base: aggregates.BaseDeps{
			Store:  st,
			Log:    log,
			Hooks:  aggregates.NewObservabilityHooks(a.Metrics),
			Tracer: observability.Tracer(),
		},
		Policy: cfg.DeletePolicy,
	})
	log.Info("cartledger ready", "store", cfg.Store, "delete_policy", string(cfg.DeletePolicy))
	return a, nil
}

func openStore(cfg Config, log *logger.Logger) (store.Store, error) {
	switch cfg.Store {
	case StoreMemory:
		return memory.New(log), nil
	default:
		gdb, err := db.Open(cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("init database: %w", err)
		}
		return gormstore.New(gdb, log), nil
	}
}

// Close releases the store, flushes traces and syncs the logger. Failures are
// logged; Close is safe to call more than once.
func (a *App) Close() {
	if a == nil {
		return
	}
	var errs []error
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
		a.Store = nil
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("otel shutdown: %w", err))
		}
		a.otelShutdown = nil
	}
	if err := errors.Join(errs...); err != nil && a.Log != nil {
		a.Log.Warn("app close", "error", err)
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
