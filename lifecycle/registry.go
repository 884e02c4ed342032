package lifecycle

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	apperrors "github.com/leeforge/pluginhub/errors"
	"github.com/leeforge/pluginhub/plugin"
	"github.com/leeforge/pluginhub/store"
)

// CreateInput describes a new plugin and its first release.
type CreateInput struct {
	Name        string
	DisplayName string
	Version     string
	Description string
	Author      string
	Category    string
	Manifest    *plugin.Manifest
}

var titleCaser = cases.Title(language.English)

// defaultDisplayName turns a slug like "order-reports" into "Order Reports".
func defaultDisplayName(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' })
	return titleCaser.String(strings.Join(words, " "))
}

func (in CreateInput) validate() (plugin.Manifest, error) {
	if !plugin.ValidName(in.Name) {
		return plugin.Manifest{}, apperrors.NewValidation("name must be a lowercase slug of 2 to 64 characters").
			WithDetail("field", "name")
	}
	if strings.TrimSpace(in.Version) == "" {
		return plugin.Manifest{}, apperrors.NewValidation("version is required").WithDetail("field", "version")
	}
	var manifest plugin.Manifest
	if in.Manifest != nil {
		manifest = *in.Manifest
	}
	manifest = manifest.Clone()
	manifest.Normalize()
	if err := manifest.Validate(); err != nil {
		return plugin.Manifest{}, apperrors.NewValidation(err.Error()).WithDetail("field", "manifest")
	}
	return manifest, nil
}

// Create registers a disabled plugin together with its first, active
// release.
func (c *Controller) Create(ctx context.Context, in CreateInput, user string) (*plugin.Plugin, error) {
	manifest, err := in.validate()
	if err != nil {
		return nil, err
	}
	user = userOrDefault(user)

	var created *plugin.Plugin
	err = c.withLock(ctx, in.Name, plugin.ActionCreate, func(ctx context.Context) error {
		now := c.now().UTC()
		p := &plugin.Plugin{
			Name:        in.Name,
			DisplayName: in.DisplayName,
			Version:     strings.TrimSpace(in.Version),
			Description: in.Description,
			Author:      in.Author,
			Category:    in.Category,
			Manifest:    manifest,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if p.DisplayName == "" {
			p.DisplayName = defaultDisplayName(p.Name)
		}
		rec := record{action: plugin.ActionCreate, version: p.Version, user: user}
		err := c.commit(ctx, p.Name, nil, rec, func(tx store.Tx) error {
			if err := tx.CreatePlugin(p); err != nil {
				return err
			}
			return tx.CreateRelease(&plugin.Release{
				PluginName: p.Name,
				Version:    p.Version,
				Seq:        1,
				CreatedAt:  now,
				CreatedBy:  user,
				Manifest:   manifest.Clone(),
				Status:     plugin.ReleaseActive,
			})
		})
		if err != nil {
			return err
		}
		created = p
		c.publish(ctx, p, plugin.ActionCreate, user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Sugar().Infow("plugin created", "plugin", created.Name, "version", created.Version, "user", user)
	return created, nil
}

// Get returns the committed plugin.
func (c *Controller) Get(ctx context.Context, name string) (*plugin.Plugin, error) {
	return c.current(ctx, name)
}

// List returns every plugin ordered by name.
func (c *Controller) List(ctx context.Context) ([]*plugin.Plugin, error) {
	return c.store.ListPlugins(ctx)
}
