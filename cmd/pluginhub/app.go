package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	redis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leeforge/pluginhub/config"
	"github.com/leeforge/pluginhub/events"
	"github.com/leeforge/pluginhub/events/redisbridge"
	"github.com/leeforge/pluginhub/http/api"
	"github.com/leeforge/pluginhub/lifecycle"
	"github.com/leeforge/pluginhub/loader"
	"github.com/leeforge/pluginhub/metrics"
	"github.com/leeforge/pluginhub/redis_client"
	"github.com/leeforge/pluginhub/store"
	"github.com/leeforge/pluginhub/store/memory"
	"github.com/leeforge/pluginhub/store/sqlstore"
)

// app is the wired service: store, loader, controller and the optional
// Redis fan-out.
type app struct {
	cfg     *config.AppConfig
	logger  *zap.Logger
	store   store.Store
	bus     *events.Bus
	loader  *loader.Loader
	ctrl    *lifecycle.Controller
	metrics *metrics.Metrics
	redis   *redis.Client
	checks  map[string]api.HealthCheck
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, checks: map[string]api.HealthCheck{}}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	st, check, err := openStore(ctx, a.cfg.Storage, a.logger)
	if err != nil {
		return err
	}
	a.store = st
	a.closers = append(a.closers, st.Close)
	if check != nil {
		a.checks["store"] = check
	}

	a.bus = events.NewBus(0, a.logger)
	a.closers = append(a.closers, a.bus.Close)

	a.loader, err = loader.New(a.cfg.Loader, loader.WithLogger(a.logger))
	if err != nil {
		return fmt.Errorf("create loader: %w", err)
	}
	if err := loader.RegisterBuiltins(a.loader.Handlers()); err != nil {
		return fmt.Errorf("register builtin handlers: %w", err)
	}

	a.metrics = metrics.New()
	a.ctrl = lifecycle.NewController(a.cfg.Lifecycle, a.store, a.loader,
		lifecycle.WithLogger(a.logger),
		lifecycle.WithEventBus(a.bus),
		lifecycle.WithMetrics(a.metrics),
	)

	if a.cfg.Redis.Enabled {
		client, err := redis_client.NewRedis(ctx, a.cfg.Redis, a.logger)
		if err != nil {
			return err
		}
		a.redis = client
		a.closers = append(a.closers, client.Close)
		a.checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}
	return nil
}

// openStore opens the configured backend. The memory store has no health
// check.
func openStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (store.Store, api.HealthCheck, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		logger.Warn("using the memory store, state is lost on exit")
		return memory.New(), nil, nil
	case config.DriverSQLite, config.DriverPostgres:
		st, err := sqlstore.Open(ctx, cfg.Driver, cfg.DSN, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
		}
		return st, func(ctx context.Context) error { return st.DB().PingContext(ctx) }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// runBridge relays lifecycle events through Redis until ctx ends. It is a
// no-op without Redis.
func (a *app) runBridge(ctx context.Context) {
	if a.redis == nil {
		return
	}
	bridge := redisbridge.New(a.redis, a.cfg.Redis.Channel, uuid.NewString(), a.logger)
	sub := bridge.Attach(a.bus)
	go func() {
		defer sub.Unsubscribe()
		if err := bridge.Run(ctx, a.ctrl.HandleRemoteEvent); err != nil {
			a.logger.Error("lifecycle event bridge stopped", zap.Error(err))
		}
	}()
}

func (a *app) handler(version string) http.Handler {
	return api.NewRouter(api.Options{
		Controller:   a.ctrl,
		Loader:       a.loader,
		Metrics:      a.metrics,
		Logger:       a.logger,
		HealthChecks: a.checks,
		Version:      version,
		Mode:         string(a.cfg.Mode),
	})
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
