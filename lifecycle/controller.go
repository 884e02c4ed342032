// Package lifecycle orchestrates plugin state changes. Every mutation of a
// plugin runs under that plugin's FIFO lock, commits its state, releases
// and history entry in one store transaction, and keeps the loader's
// mounts in line with the committed state.
package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/leeforge/pluginhub/errors"
	"github.com/leeforge/pluginhub/metrics"
	"github.com/leeforge/pluginhub/plugin"
	"github.com/leeforge/pluginhub/store"
)

// DefaultUser attributes operations that name no caller.
const DefaultUser = "system"

type Config struct {
	// LockTimeout bounds the wait for a plugin lock when the caller's
	// context has no deadline of its own.
	LockTimeout    time.Duration `mapstructure:"lock_timeout" json:"lock_timeout" yaml:"lock_timeout" default:"30s"`
	RestoreWorkers int           `mapstructure:"restore_workers" json:"restore_workers" yaml:"restore_workers" default:"4"`
}

// Loader mounts plugins into the serving path.
type Loader interface {
	Load(ctx context.Context, p *plugin.Plugin) error
	Unload(ctx context.Context, name string)
	IsLoaded(name string) bool
	LoadedCount() int
}

type Option func(*Controller)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger.Named("lifecycle")
		}
	}
}

func WithEventBus(bus plugin.EventBus) Option {
	return func(c *Controller) { c.bus = bus }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithClock replaces time.Now for history and release timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// Controller is the single entry point for plugin lifecycle operations.
type Controller struct {
	cfg     Config
	store   store.Store
	loader  Loader
	bus     plugin.EventBus
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
	locks   lockTable
}

func NewController(cfg Config, st store.Store, ld Loader, opts ...Option) *Controller {
	c := &Controller{
		cfg:    cfg,
		store:  st,
		loader: ld,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// withLock runs fn while holding the plugin's lock. Waiting gives up with
// LockTimeout when ctx ends; once the lock is held fn runs to completion
// regardless of caller cancellation.
func (c *Controller) withLock(ctx context.Context, name string, action plugin.Action, fn func(ctx context.Context) error) error {
	// Locks are never pruned, so only names that could exist get one.
	if !plugin.ValidName(name) {
		return apperrors.NewNotFound("plugin", name)
	}
	start := time.Now()
	lock := c.locks.get(name)

	lockCtx, cancel := ctx, context.CancelFunc(func() {})
	if _, ok := ctx.Deadline(); !ok && c.cfg.LockTimeout > 0 {
		lockCtx, cancel = context.WithTimeout(ctx, c.cfg.LockTimeout)
	}
	err := lock.Lock(lockCtx)
	cancel()
	c.metrics.ObserveLockWait(time.Since(start))
	if err != nil {
		err = apperrors.NewLockTimeout(name, err)
		c.metrics.ObserveOperation(string(action), err, time.Since(start))
		return err
	}
	defer lock.Unlock()

	err = fn(context.WithoutCancel(ctx))
	c.metrics.ObserveOperation(string(action), err, time.Since(start))
	c.metrics.SetLoaded(c.loader.LoadedCount())
	return err
}

// current reads the committed plugin. Invalid names can never exist.
func (c *Controller) current(ctx context.Context, name string) (*plugin.Plugin, error) {
	if !plugin.ValidName(name) {
		return nil, apperrors.NewNotFound("plugin", name)
	}
	return c.store.GetPlugin(ctx, name)
}

// commit runs write and appends the history entry for the same change in
// one transaction. When before is set, the plugin row is locked first and
// the commit fails with a Conflict if another instance changed the plugin
// after before was read.
func (c *Controller) commit(ctx context.Context, name string, before *plugin.Plugin, rec record, write func(tx store.Tx) error) error {
	err := c.store.Update(ctx, func(tx store.Tx) error {
		if before != nil {
			locked, err := tx.LockPlugin(name)
			if err != nil {
				return err
			}
			if !sameRevision(locked, before) {
				return apperrors.NewConflict("plugin", name).
					WithMessage("plugin " + name + " was changed by another instance, retry the request")
			}
		}
		if err := write(tx); err != nil {
			return err
		}
		_, err := c.appendHistory(tx, name, rec)
		return err
	})
	if err == nil {
		return nil
	}
	if apperrors.TypeOf(err) == apperrors.ErrorTypeUnknown {
		return apperrors.WrapInternal(err, "commit "+string(rec.action))
	}
	return err
}

// sameRevision ignores loaded and last_error: those describe one
// instance's mount and are last-writer-wins across instances.
func sameRevision(a, b *plugin.Plugin) bool {
	return a.Version == b.Version &&
		a.Enabled == b.Enabled &&
		a.UpdatedAt.Equal(b.UpdatedAt) &&
		a.Manifest.Equal(b.Manifest)
}

// remount replaces the plugin's mount with p's manifest and records the
// outcome on p.
func (c *Controller) remount(ctx context.Context, p *plugin.Plugin) error {
	c.loader.Unload(ctx, p.Name)
	err := c.loader.Load(ctx, p)
	if err != nil && !apperrors.IsLoadError(err) {
		err = apperrors.NewLoadError(p.Name, "load", err)
	}
	p.Loaded = err == nil
	p.LastError = ""
	if err != nil {
		p.LastError = err.Error()
	}
	return err
}

// restoreMount puts the loader back the way it was before a failed commit.
func (c *Controller) restoreMount(ctx context.Context, before *plugin.Plugin, wasMounted bool) {
	if !wasMounted {
		c.loader.Unload(ctx, before.Name)
		return
	}
	if err := c.loader.Load(ctx, before); err != nil {
		c.logger.Error("failed to restore previous mount",
			zap.String("plugin", before.Name),
			zap.Error(err))
	}
}

func (c *Controller) publish(ctx context.Context, p *plugin.Plugin, action plugin.Action, user string) {
	if c.bus == nil {
		return
	}
	event := plugin.Event{
		Plugin:  p.Name,
		Action:  action,
		Version: p.Version,
		User:    user,
		Loaded:  p.Loaded,
	}
	if err := c.bus.Publish(ctx, event); err != nil {
		c.logger.Warn("failed to publish lifecycle event",
			zap.String("plugin", p.Name),
			zap.String("action", string(action)),
			zap.Error(err))
	}
}

func userOrDefault(user string) string {
	if user == "" {
		return DefaultUser
	}
	return user
}

func loadDetail(err error) string {
	if err == nil {
		return ""
	}
	return "load failed: " + err.Error()
}
