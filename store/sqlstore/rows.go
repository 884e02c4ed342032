package sqlstore

import (
	"time"

	"github.com/leeforge/pluginhub/plugin"
)

const (
	selectPlugins = `SELECT name, display_name, version, description, author, category,
		enabled, loaded, manifest, last_error, created_at, updated_at FROM plugins`
	selectReleases = `SELECT plugin_name, version, seq, created_at, created_by, manifest, status
		FROM plugin_releases`
	selectHistory = `SELECT id, plugin_name, seq, action, version, ts, actor, detail
		FROM plugin_history`
)

type pluginRow struct {
	Name        string    `db:"name"`
	DisplayName string    `db:"display_name"`
	Version     string    `db:"version"`
	Description string    `db:"description"`
	Author      string    `db:"author"`
	Category    string    `db:"category"`
	Enabled     bool      `db:"enabled"`
	Loaded      bool      `db:"loaded"`
	Manifest    string    `db:"manifest"`
	LastError   string    `db:"last_error"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r pluginRow) toPlugin() (*plugin.Plugin, error) {
	manifest, err := decodeManifest(r.Manifest)
	if err != nil {
		return nil, err
	}
	return &plugin.Plugin{
		Name:        r.Name,
		DisplayName: r.DisplayName,
		Version:     r.Version,
		Description: r.Description,
		Author:      r.Author,
		Category:    r.Category,
		Enabled:     r.Enabled,
		Loaded:      r.Loaded,
		Manifest:    manifest,
		LastError:   r.LastError,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}, nil
}

type releaseRow struct {
	PluginName string    `db:"plugin_name"`
	Version    string    `db:"version"`
	Seq        int64     `db:"seq"`
	CreatedAt  time.Time `db:"created_at"`
	CreatedBy  string    `db:"created_by"`
	Manifest   string    `db:"manifest"`
	Status     string    `db:"status"`
}

func (r releaseRow) toRelease() (*plugin.Release, error) {
	manifest, err := decodeManifest(r.Manifest)
	if err != nil {
		return nil, err
	}
	return &plugin.Release{
		PluginName: r.PluginName,
		Version:    r.Version,
		Seq:        r.Seq,
		CreatedAt:  r.CreatedAt.UTC(),
		CreatedBy:  r.CreatedBy,
		Manifest:   manifest,
		Status:     plugin.ReleaseStatus(r.Status),
	}, nil
}

type historyRow struct {
	ID         string    `db:"id"`
	PluginName string    `db:"plugin_name"`
	Seq        int64     `db:"seq"`
	Action     string    `db:"action"`
	Version    string    `db:"version"`
	Timestamp  time.Time `db:"ts"`
	User       string    `db:"actor"`
	Detail     string    `db:"detail"`
}

func (r historyRow) toEntry() *plugin.HistoryEntry {
	return &plugin.HistoryEntry{
		ID:         r.ID,
		PluginName: r.PluginName,
		Seq:        r.Seq,
		Action:     plugin.Action(r.Action),
		Version:    r.Version,
		Timestamp:  r.Timestamp.UTC(),
		User:       r.User,
		Detail:     r.Detail,
	}
}
