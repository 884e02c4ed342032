package lifecycle

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/leeforge/pluginhub/concurrency"
	apperrors "github.com/leeforge/pluginhub/errors"
	"github.com/leeforge/pluginhub/plugin"
	"github.com/leeforge/pluginhub/store"
)

const restoreDetail = "restore on startup"

// RestoreSummary reports the plugins Restore mounted and the ones that
// stayed unloaded.
type RestoreSummary struct {
	Restored []string `json:"restored"`
	Failed   []string `json:"failed"`
}

// Restore mounts every enabled plugin after a restart. Each plugin's
// outcome is committed under its lock with a reload history entry. Load
// failures are recorded on the plugin; only store failures are returned.
func (c *Controller) Restore(ctx context.Context) (RestoreSummary, error) {
	summary := RestoreSummary{Restored: []string{}, Failed: []string{}}
	plugins, err := c.store.ListPlugins(ctx)
	if err != nil {
		return summary, err
	}

	var (
		names []string
		jobs  []concurrency.Job
	)
	for _, p := range plugins {
		if !p.Enabled {
			continue
		}
		name := p.Name
		names = append(names, name)
		jobs = append(jobs, concurrency.JobFunc(func(ctx context.Context) error {
			return c.restoreOne(ctx, name)
		}))
	}
	if len(jobs) == 0 {
		return summary, nil
	}

	var errs []error
	for i, err := range concurrency.RunAll(ctx, c.cfg.RestoreWorkers, jobs) {
		switch {
		case err == nil:
			summary.Restored = append(summary.Restored, names[i])
		case apperrors.IsLoadError(err):
			summary.Failed = append(summary.Failed, names[i])
		default:
			summary.Failed = append(summary.Failed, names[i])
			errs = append(errs, err)
		}
	}
	c.logger.Info("plugins restored",
		zap.Strings("restored", summary.Restored),
		zap.Strings("failed", summary.Failed))
	return summary, errors.Join(errs...)
}

func (c *Controller) restoreOne(ctx context.Context, name string) error {
	var loadErr error
	err := c.withLock(ctx, name, plugin.ActionReload, func(ctx context.Context) error {
		before, err := c.current(ctx, name)
		if err != nil {
			return err
		}
		if !before.Enabled {
			return nil
		}
		wasMounted := c.loader.IsLoaded(name)

		next := before.Clone()
		loadErr = c.remount(ctx, next)
		rec := record{
			action:  plugin.ActionReload,
			version: next.Version,
			user:    DefaultUser,
			detail:  joinDetail(restoreDetail, loadDetail(loadErr)),
		}
		if err := c.commit(ctx, name, before, rec, func(tx store.Tx) error { return tx.SavePlugin(next) }); err != nil {
			c.restoreMount(ctx, before, wasMounted)
			loadErr = nil
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	return loadErr
}

// Resync brings the local mount in line with the committed state after
// another instance changed the plugin. Nothing is written.
func (c *Controller) Resync(ctx context.Context, name string) error {
	return c.withLock(ctx, name, "resync", func(ctx context.Context) error {
		p, err := c.current(ctx, name)
		if err != nil {
			return err
		}
		if !p.Enabled || !p.Loaded {
			c.loader.Unload(ctx, name)
			return nil
		}
		c.loader.Unload(ctx, name)
		if err := c.loader.Load(ctx, p); err != nil {
			c.loader.Unload(ctx, name)
			c.logger.Warn("resync failed to mount plugin", zap.String("plugin", name), zap.Error(err))
			return err
		}
		return nil
	})
}

// HandleRemoteEvent applies a lifecycle event published by a peer.
func (c *Controller) HandleRemoteEvent(ctx context.Context, event plugin.Event) error {
	return c.Resync(ctx, event.Plugin)
}
