package lifecycle

import (
	"context"

	"go.uber.org/zap"

	apperrors "github.com/leeforge/pluginhub/errors"
	"github.com/leeforge/pluginhub/plugin"
	"github.com/leeforge/pluginhub/store"
)

// Enable marks the plugin enabled and mounts it. A LoadError is committed
// as state (enabled, not loaded) and returned together with the plugin.
// Enabling a plugin that is already serving only records the request.
func (c *Controller) Enable(ctx context.Context, name, user string) (*plugin.Plugin, error) {
	var (
		result  *plugin.Plugin
		loadErr error
	)
	err := c.withLock(ctx, name, plugin.ActionEnable, func(ctx context.Context) error {
		before, err := c.current(ctx, name)
		if err != nil {
			return err
		}
		wasMounted := c.loader.IsLoaded(name)

		next := before.Clone()
		if before.Enabled && before.Loaded && wasMounted {
			rec := record{action: plugin.ActionEnable, version: next.Version, user: user, detail: "already enabled"}
			if err := c.commit(ctx, name, before, rec, func(store.Tx) error { return nil }); err != nil {
				return err
			}
			result = next
			c.publish(ctx, next, plugin.ActionEnable, userOrDefault(user))
			return nil
		}

		next.Enabled = true
		next.UpdatedAt = c.now().UTC()
		loadErr = c.remount(ctx, next)

		rec := record{action: plugin.ActionEnable, version: next.Version, user: user, detail: loadDetail(loadErr)}
		if err := c.commit(ctx, name, before, rec, func(tx store.Tx) error { return tx.SavePlugin(next) }); err != nil {
			c.restoreMount(ctx, before, wasMounted)
			loadErr = nil
			return err
		}
		result = next
		c.publish(ctx, next, plugin.ActionEnable, userOrDefault(user))
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logResult("plugin enabled", result, user, loadErr)
	return result, loadErr
}

// Disable unmounts the plugin and marks it disabled. Disabling a disabled
// plugin succeeds and is still recorded.
func (c *Controller) Disable(ctx context.Context, name, user string) (*plugin.Plugin, error) {
	var result *plugin.Plugin
	err := c.withLock(ctx, name, plugin.ActionDisable, func(ctx context.Context) error {
		before, err := c.current(ctx, name)
		if err != nil {
			return err
		}
		wasMounted := c.loader.IsLoaded(name)
		c.loader.Unload(ctx, name)

		next := before.Clone()
		next.Enabled = false
		next.Loaded = false
		next.LastError = ""
		next.UpdatedAt = c.now().UTC()

		rec := record{action: plugin.ActionDisable, version: next.Version, user: user}
		if err := c.commit(ctx, name, before, rec, func(tx store.Tx) error { return tx.SavePlugin(next) }); err != nil {
			c.restoreMount(ctx, before, wasMounted)
			return err
		}
		result = next
		c.publish(ctx, next, plugin.ActionDisable, userOrDefault(user))
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logResult("plugin disabled", result, user, nil)
	return result, nil
}

// Reload remounts an enabled plugin against its live manifest.
func (c *Controller) Reload(ctx context.Context, name, user string) (*plugin.Plugin, error) {
	var (
		result  *plugin.Plugin
		loadErr error
	)
	err := c.withLock(ctx, name, plugin.ActionReload, func(ctx context.Context) error {
		before, err := c.current(ctx, name)
		if err != nil {
			return err
		}
		if !before.Enabled {
			return apperrors.NewInvalidState("plugin " + name + " is disabled").
				WithDetail("plugin", name)
		}
		wasMounted := c.loader.IsLoaded(name)

		next := before.Clone()
		next.UpdatedAt = c.now().UTC()
		loadErr = c.remount(ctx, next)

		rec := record{action: plugin.ActionReload, version: next.Version, user: user, detail: loadDetail(loadErr)}
		if err := c.commit(ctx, name, before, rec, func(tx store.Tx) error { return tx.SavePlugin(next) }); err != nil {
			c.restoreMount(ctx, before, wasMounted)
			loadErr = nil
			return err
		}
		result = next
		c.publish(ctx, next, plugin.ActionReload, userOrDefault(user))
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logResult("plugin reloaded", result, user, loadErr)
	return result, loadErr
}

// UpdateManifest replaces the live working copy of the manifest. A plugin
// that is serving is remounted with the same LoadError handling as Reload.
func (c *Controller) UpdateManifest(ctx context.Context, name string, manifest plugin.Manifest, user string) (*plugin.Plugin, error) {
	manifest = manifest.Clone()
	manifest.Normalize()
	if err := manifest.Validate(); err != nil {
		return nil, apperrors.NewValidation(err.Error()).WithDetail("field", "manifest")
	}

	var (
		result  *plugin.Plugin
		loadErr error
	)
	err := c.withLock(ctx, name, plugin.ActionUpdateManifest, func(ctx context.Context) error {
		before, err := c.current(ctx, name)
		if err != nil {
			return err
		}
		wasMounted := c.loader.IsLoaded(name)

		next := before.Clone()
		next.Manifest = manifest
		next.UpdatedAt = c.now().UTC()
		if before.Loaded {
			loadErr = c.remount(ctx, next)
		}

		rec := record{action: plugin.ActionUpdateManifest, version: next.Version, user: user, detail: loadDetail(loadErr)}
		if err := c.commit(ctx, name, before, rec, func(tx store.Tx) error { return tx.SavePlugin(next) }); err != nil {
			if before.Loaded {
				c.restoreMount(ctx, before, wasMounted)
			}
			loadErr = nil
			return err
		}
		result = next
		c.publish(ctx, next, plugin.ActionUpdateManifest, userOrDefault(user))
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logResult("plugin manifest updated", result, user, loadErr)
	return result, loadErr
}

func (c *Controller) logResult(msg string, p *plugin.Plugin, user string, loadErr error) {
	fields := []zap.Field{
		zap.String("plugin", p.Name),
		zap.String("version", p.Version),
		zap.Bool("loaded", p.Loaded),
		zap.String("user", userOrDefault(user)),
	}
	if loadErr != nil {
		c.logger.Warn(msg+" with load error", append(fields, zap.Error(loadErr))...)
		return
	}
	c.logger.Info(msg, fields...)
}
