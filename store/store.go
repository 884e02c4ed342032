// Package store defines the persistence contract behind the plugin
// registry, the release store and the history log. Every lifecycle
// mutation runs inside one Update call so a plugin change, its releases
// and its history entry commit together or not at all.
package store

import (
	"context"

	"github.com/leeforge/pluginhub/plugin"
)

// Reader serves committed snapshots. Returned values are copies owned by
// the caller.
type Reader interface {
	GetPlugin(ctx context.Context, name string) (*plugin.Plugin, error)
	// ListPlugins returns every plugin ordered by name.
	ListPlugins(ctx context.Context) ([]*plugin.Plugin, error)
	// ListReleases returns the plugin's releases ordered by Seq.
	ListReleases(ctx context.Context, name string) ([]*plugin.Release, error)
	// History returns the plugin's entries ordered by Seq.
	History(ctx context.Context, name string) ([]*plugin.HistoryEntry, error)
}

// Tx is the write view handed to Update. Reads through a Tx see the
// transaction's own writes.
type Tx interface {
	// Plugin returns errors.NotFound when the plugin does not exist.
	Plugin(name string) (*plugin.Plugin, error)
	// LockPlugin reads the plugin like Plugin and keeps other writers, in
	// this process or another, off its row until the transaction ends.
	LockPlugin(name string) (*plugin.Plugin, error)
	// CreatePlugin returns errors.Conflict when the name is taken.
	CreatePlugin(p *plugin.Plugin) error
	// SavePlugin overwrites an existing plugin.
	SavePlugin(p *plugin.Plugin) error

	Releases(name string) ([]*plugin.Release, error)
	// Release returns errors.NotFound when the version does not exist.
	Release(name, version string) (*plugin.Release, error)
	// CreateRelease returns errors.Conflict when (plugin, version) exists.
	CreateRelease(r *plugin.Release) error
	SetReleaseStatus(name, version string, status plugin.ReleaseStatus) error

	// LastHistory returns nil when the plugin has no history yet.
	LastHistory(name string) (*plugin.HistoryEntry, error)
	AppendHistory(e *plugin.HistoryEntry) error
}

// Store is a transactional plugin store.
type Store interface {
	Reader
	// Update runs fn in a transaction. Any error returned by fn rolls the
	// whole transaction back and is returned unchanged.
	Update(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}
