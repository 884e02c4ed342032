package lifecycle

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/leeforge/pluginhub/errors"
	"github.com/leeforge/pluginhub/plugin"
	"github.com/leeforge/pluginhub/store"
)

// Release snapshots the live manifest as a new active release and makes
// it the plugin's version. Mounts are left alone.
func (c *Controller) Release(ctx context.Context, name, version, user string) (*plugin.Release, error) {
	version = strings.TrimSpace(version)
	if version == "" {
		return nil, apperrors.NewValidation("version is required").WithDetail("field", "version")
	}
	user = userOrDefault(user)

	var created *plugin.Release
	err := c.withLock(ctx, name, plugin.ActionRelease, func(ctx context.Context) error {
		before, err := c.current(ctx, name)
		if err != nil {
			return err
		}
		now := c.now().UTC().Truncate(time.Microsecond)
		next := before.Clone()
		next.Version = version
		next.UpdatedAt = now

		rel := &plugin.Release{
			PluginName: name,
			Version:    version,
			CreatedAt:  now,
			CreatedBy:  user,
			Manifest:   before.Manifest.Clone(),
			Status:     plugin.ReleaseActive,
		}
		rec := record{action: plugin.ActionRelease, version: version, user: user}
		err = c.commit(ctx, name, before, rec, func(tx store.Tx) error {
			releases, err := tx.Releases(name)
			if err != nil {
				return err
			}
			for _, r := range releases {
				if r.Version == version {
					return apperrors.NewConflict("release", name+"@"+version)
				}
				rel.Seq = max(rel.Seq, r.Seq)
				if !rel.CreatedAt.After(r.CreatedAt) {
					rel.CreatedAt = r.CreatedAt.UTC().Add(time.Microsecond)
				}
			}
			rel.Seq++
			if err := supersedeActive(tx, releases, version); err != nil {
				return err
			}
			if err := tx.CreateRelease(rel); err != nil {
				return err
			}
			return tx.SavePlugin(next)
		})
		if err != nil {
			return err
		}
		created = rel
		c.publish(ctx, next, plugin.ActionRelease, user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Sugar().Infow("plugin released", "plugin", name, "version", version, "user", user)
	return created, nil
}

// Rollback makes an earlier release active again and restores its manifest
// as the live working copy. A serving plugin is remounted; a LoadError is
// committed as state and returned with the plugin.
func (c *Controller) Rollback(ctx context.Context, name, version, user string) (*plugin.Plugin, error) {
	version = strings.TrimSpace(version)
	var (
		result  *plugin.Plugin
		loadErr error
	)
	err := c.withLock(ctx, name, plugin.ActionRollback, func(ctx context.Context) error {
		before, err := c.current(ctx, name)
		if err != nil {
			return err
		}
		target, err := c.findRelease(ctx, name, version)
		if err != nil {
			return err
		}
		wasMounted := c.loader.IsLoaded(name)

		next := before.Clone()
		next.Version = target.Version
		next.Manifest = target.Manifest.Clone()
		next.UpdatedAt = c.now().UTC()
		if before.Loaded {
			loadErr = c.remount(ctx, next)
		}

		rec := record{
			action:  plugin.ActionRollback,
			version: target.Version,
			user:    user,
			detail:  joinDetail("rolled back from "+before.Version, loadDetail(loadErr)),
		}
		err = c.commit(ctx, name, before, rec, func(tx store.Tx) error {
			releases, err := tx.Releases(name)
			if err != nil {
				return err
			}
			if err := supersedeActive(tx, releases, target.Version); err != nil {
				return err
			}
			if err := tx.SetReleaseStatus(name, target.Version, plugin.ReleaseActive); err != nil {
				return err
			}
			return tx.SavePlugin(next)
		})
		if err != nil {
			if before.Loaded {
				c.restoreMount(ctx, before, wasMounted)
			}
			loadErr = nil
			return err
		}
		result = next
		c.publish(ctx, next, plugin.ActionRollback, userOrDefault(user))
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logResult("plugin rolled back", result, user, loadErr)
	return result, loadErr
}

// ListReleases returns the plugin's releases, oldest first.
func (c *Controller) ListReleases(ctx context.Context, name string) ([]*plugin.Release, error) {
	if _, err := c.current(ctx, name); err != nil {
		return nil, err
	}
	return c.store.ListReleases(ctx, name)
}

func (c *Controller) findRelease(ctx context.Context, name, version string) (*plugin.Release, error) {
	releases, err := c.store.ListReleases(ctx, name)
	if err != nil {
		return nil, err
	}
	for _, r := range releases {
		if r.Version == version {
			return r, nil
		}
	}
	return nil, apperrors.NewNotFound("release", name+"@"+version)
}

// supersedeActive retires every active release other than keep.
func supersedeActive(tx store.Tx, releases []*plugin.Release, keep string) error {
	for _, r := range releases {
		if r.Status == plugin.ReleaseActive && r.Version != keep {
			if err := tx.SetReleaseStatus(r.PluginName, r.Version, plugin.ReleaseSuperseded); err != nil {
				return err
			}
		}
	}
	return nil
}

func joinDetail(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "; ")
}
