// Package memory is an in-process store.Store. Committed state is an
// immutable snapshot published through an atomic pointer; readers never
// take a lock and writers build the next snapshot copy-on-write.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	apperrors "github.com/leeforge/pluginhub/errors"
	"github.com/leeforge/pluginhub/plugin"
	"github.com/leeforge/pluginhub/store"
)

// snapshot is never mutated after it has been published.
type snapshot struct {
	plugins  map[string]*plugin.Plugin
	releases map[string][]*plugin.Release
	history  map[string][]*plugin.HistoryEntry
}

type Store struct {
	current atomic.Pointer[snapshot]
	writeMu sync.Mutex
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	s := &Store{}
	s.current.Store(&snapshot{
		plugins:  map[string]*plugin.Plugin{},
		releases: map[string][]*plugin.Release{},
		history:  map[string][]*plugin.HistoryEntry{},
	})
	return s
}

func (s *Store) GetPlugin(_ context.Context, name string) (*plugin.Plugin, error) {
	p, ok := s.current.Load().plugins[name]
	if !ok {
		return nil, apperrors.NewNotFound("plugin", name)
	}
	return p.Clone(), nil
}

func (s *Store) ListPlugins(_ context.Context) ([]*plugin.Plugin, error) {
	snap := s.current.Load()
	out := make([]*plugin.Plugin, 0, len(snap.plugins))
	for _, p := range snap.plugins {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ListReleases(_ context.Context, name string) ([]*plugin.Release, error) {
	rs := s.current.Load().releases[name]
	out := make([]*plugin.Release, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out, nil
}

func (s *Store) History(_ context.Context, name string) ([]*plugin.HistoryEntry, error) {
	hs := s.current.Load().history[name]
	out := make([]*plugin.HistoryEntry, len(hs))
	for i, h := range hs {
		e := *h
		out[i] = &e
	}
	return out, nil
}

// Update serializes writers. fn works on a private copy of the top-level
// maps; the copy is published only when fn returns nil.
func (s *Store) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	base := s.current.Load()
	tx := &memTx{next: &snapshot{
		plugins:  cloneMap(base.plugins),
		releases: cloneMap(base.releases),
		history:  cloneMap(base.history),
	}}
	if err := fn(tx); err != nil {
		return err
	}
	s.current.Store(tx.next)
	return nil
}

func (s *Store) Close() error { return nil }

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type memTx struct {
	next *snapshot
}

// LockPlugin is Plugin: writers are already serialized on writeMu.
func (tx *memTx) LockPlugin(name string) (*plugin.Plugin, error) {
	return tx.Plugin(name)
}

func (tx *memTx) Plugin(name string) (*plugin.Plugin, error) {
	p, ok := tx.next.plugins[name]
	if !ok {
		return nil, apperrors.NewNotFound("plugin", name)
	}
	return p.Clone(), nil
}

func (tx *memTx) CreatePlugin(p *plugin.Plugin) error {
	if _, ok := tx.next.plugins[p.Name]; ok {
		return apperrors.NewConflict("plugin", p.Name)
	}
	tx.next.plugins[p.Name] = p.Clone()
	return nil
}

func (tx *memTx) SavePlugin(p *plugin.Plugin) error {
	if _, ok := tx.next.plugins[p.Name]; !ok {
		return apperrors.NewNotFound("plugin", p.Name)
	}
	tx.next.plugins[p.Name] = p.Clone()
	return nil
}

func (tx *memTx) Releases(name string) ([]*plugin.Release, error) {
	rs := tx.next.releases[name]
	out := make([]*plugin.Release, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out, nil
}

func (tx *memTx) Release(name, version string) (*plugin.Release, error) {
	for _, r := range tx.next.releases[name] {
		if r.Version == version {
			return r.Clone(), nil
		}
	}
	return nil, apperrors.NewNotFound("release", name+"@"+version)
}

func (tx *memTx) CreateRelease(r *plugin.Release) error {
	rs := tx.next.releases[r.PluginName]
	for _, existing := range rs {
		if existing.Version == r.Version {
			return apperrors.NewConflict("release", r.PluginName+"@"+r.Version)
		}
	}
	// Clip so the append never writes into the published backing array.
	tx.next.releases[r.PluginName] = append(slices.Clip(rs), r.Clone())
	return nil
}

func (tx *memTx) SetReleaseStatus(name, version string, status plugin.ReleaseStatus) error {
	rs := tx.next.releases[name]
	for i, r := range rs {
		if r.Version != version {
			continue
		}
		updated := r.Clone()
		updated.Status = status
		next := slices.Clone(rs)
		next[i] = updated
		tx.next.releases[name] = next
		return nil
	}
	return apperrors.NewNotFound("release", name+"@"+version)
}

func (tx *memTx) LastHistory(name string) (*plugin.HistoryEntry, error) {
	hs := tx.next.history[name]
	if len(hs) == 0 {
		return nil, nil
	}
	e := *hs[len(hs)-1]
	return &e, nil
}

func (tx *memTx) AppendHistory(e *plugin.HistoryEntry) error {
	hs := tx.next.history[e.PluginName]
	entry := *e
	tx.next.history[e.PluginName] = append(slices.Clip(hs), &entry)
	return nil
}
