// Package storetest is a behavioural suite every store.Store must pass.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/leeforge/pluginhub/errors"
	"github.com/leeforge/pluginhub/plugin"
	"github.com/leeforge/pluginhub/store"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

func Run(t *testing.T, newStore Factory) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newStore(t)) })
	t.Run("CreateConflict", func(t *testing.T) { testCreateConflict(t, newStore(t)) })
	t.Run("LockPlugin", func(t *testing.T) { testLockPlugin(t, newStore(t)) })
	t.Run("RollbackOnError", func(t *testing.T) { testRollbackOnError(t, newStore(t)) })
	t.Run("Releases", func(t *testing.T) { testReleases(t, newStore(t)) })
	t.Run("History", func(t *testing.T) { testHistory(t, newStore(t)) })
	t.Run("ListOrderedByName", func(t *testing.T) { testListOrdered(t, newStore(t)) })
	t.Run("ReadsAreCopies", func(t *testing.T) { testReadsAreCopies(t, newStore(t)) })
}

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func samplePlugin(name string) *plugin.Plugin {
	return &plugin.Plugin{
		Name:        name,
		DisplayName: "Sample " + name,
		Version:     "1.0.0",
		Author:      "ops",
		Category:    "tools",
		Manifest: plugin.Manifest{
			Menus:  []plugin.MenuItem{{Title: "Home", Path: "/home", Roles: []string{"admin"}, Order: 1}},
			Routes: []plugin.RouteItem{{Path: "/ping", Methods: []string{"GET"}, Handler: "ping", Roles: []string{}}},
		},
		CreatedAt: epoch,
		UpdatedAt: epoch,
	}
}

func seed(t *testing.T, s store.Store, name string) {
	t.Helper()
	err := s.Update(context.Background(), func(tx store.Tx) error {
		p := samplePlugin(name)
		if err := tx.CreatePlugin(p); err != nil {
			return err
		}
		return tx.CreateRelease(&plugin.Release{
			PluginName: name, Version: p.Version, Seq: 1, CreatedAt: epoch,
			CreatedBy: "system", Manifest: p.Manifest, Status: plugin.ReleaseActive,
		})
	})
	require.NoError(t, err)
}

func testCreateAndGet(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	seed(t, s, "reports")

	got, err := s.GetPlugin(ctx, "reports")
	require.NoError(t, err)
	assert.Equal(t, "Sample reports", got.DisplayName)
	assert.False(t, got.Enabled)
	assert.True(t, got.Manifest.Equal(samplePlugin("reports").Manifest))
	assert.True(t, got.CreatedAt.Equal(epoch))

	_, err = s.GetPlugin(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))

	got.Enabled = true
	got.Loaded = true
	got.LastError = ""
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error { return tx.SavePlugin(got) }))

	again, err := s.GetPlugin(ctx, "reports")
	require.NoError(t, err)
	assert.True(t, again.Enabled)
	assert.True(t, again.Loaded)

	err = s.Update(ctx, func(tx store.Tx) error { return tx.SavePlugin(samplePlugin("ghost")) })
	assert.True(t, apperrors.IsNotFound(err))
}

func testCreateConflict(t *testing.T, s store.Store) {
	defer s.Close()
	seed(t, s, "reports")

	err := s.Update(context.Background(), func(tx store.Tx) error {
		return tx.CreatePlugin(samplePlugin("reports"))
	})
	assert.True(t, apperrors.IsConflict(err))
}

func testLockPlugin(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	seed(t, s, "reports")

	err := s.Update(ctx, func(tx store.Tx) error {
		p, err := tx.LockPlugin("reports")
		if err != nil {
			return err
		}
		if p.Version != "1.0.0" {
			return fmt.Errorf("locked version %s", p.Version)
		}
		p.Version = "1.1.0"
		return tx.SavePlugin(p)
	})
	require.NoError(t, err)

	p, err := s.GetPlugin(ctx, "reports")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", p.Version)

	err = s.Update(ctx, func(tx store.Tx) error {
		_, err := tx.LockPlugin("ghost")
		return err
	})
	assert.True(t, apperrors.IsNotFound(err))
}

func testRollbackOnError(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	seed(t, s, "reports")

	boom := fmt.Errorf("boom")
	err := s.Update(ctx, func(tx store.Tx) error {
		p, err := tx.Plugin("reports")
		if err != nil {
			return err
		}
		p.Version = "2.0.0"
		if err := tx.SavePlugin(p); err != nil {
			return err
		}
		if err := tx.AppendHistory(&plugin.HistoryEntry{
			ID: uuid.NewString(), PluginName: "reports", Seq: 1,
			Action: plugin.ActionRelease, Version: "2.0.0", Timestamp: epoch, User: "a",
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, err := s.GetPlugin(ctx, "reports")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", p.Version)

	history, err := s.History(ctx, "reports")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func testReleases(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	seed(t, s, "reports")

	err := s.Update(ctx, func(tx store.Tx) error {
		if err := tx.SetReleaseStatus("reports", "1.0.0", plugin.ReleaseSuperseded); err != nil {
			return err
		}
		return tx.CreateRelease(&plugin.Release{
			PluginName: "reports", Version: "1.1.0", Seq: 2, CreatedAt: epoch.Add(time.Second),
			CreatedBy: "alice", Manifest: plugin.Manifest{}.Clone(), Status: plugin.ReleaseActive,
		})
	})
	require.NoError(t, err)

	releases, err := s.ListReleases(ctx, "reports")
	require.NoError(t, err)
	require.Len(t, releases, 2)
	assert.Equal(t, "1.0.0", releases[0].Version)
	assert.Equal(t, plugin.ReleaseSuperseded, releases[0].Status)
	assert.Equal(t, "1.1.0", releases[1].Version)
	assert.Equal(t, plugin.ReleaseActive, releases[1].Status)
	assert.Equal(t, "alice", releases[1].CreatedBy)

	err = s.Update(ctx, func(tx store.Tx) error {
		return tx.CreateRelease(&plugin.Release{
			PluginName: "reports", Version: "1.1.0", Seq: 3, CreatedAt: epoch,
			CreatedBy: "bob", Status: plugin.ReleaseActive,
		})
	})
	assert.True(t, apperrors.IsConflict(err))

	err = s.Update(ctx, func(tx store.Tx) error {
		_, err := tx.Release("reports", "9.9.9")
		return err
	})
	assert.True(t, apperrors.IsNotFound(err))

	err = s.Update(ctx, func(tx store.Tx) error {
		return tx.SetReleaseStatus("reports", "9.9.9", plugin.ReleaseActive)
	})
	assert.True(t, apperrors.IsNotFound(err))
}

func testHistory(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	seed(t, s, "reports")

	for i := 1; i <= 3; i++ {
		err := s.Update(ctx, func(tx store.Tx) error {
			last, err := tx.LastHistory("reports")
			if err != nil {
				return err
			}
			seq := int64(1)
			if last != nil {
				seq = last.Seq + 1
			}
			return tx.AppendHistory(&plugin.HistoryEntry{
				ID: uuid.NewString(), PluginName: "reports", Seq: seq,
				Action: plugin.ActionReload, Version: "1.0.0",
				Timestamp: epoch.Add(time.Duration(seq) * time.Millisecond), User: "ops",
				Detail: fmt.Sprintf("run %d", i),
			})
		})
		require.NoError(t, err)
	}

	history, err := s.History(ctx, "reports")
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, e := range history {
		assert.Equal(t, int64(i+1), e.Seq)
		assert.Equal(t, fmt.Sprintf("run %d", i+1), e.Detail)
		assert.Equal(t, "ops", e.User)
		if i > 0 {
			assert.True(t, e.Timestamp.After(history[i-1].Timestamp))
		}
	}

	empty, err := s.History(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testListOrdered(t *testing.T, s store.Store) {
	defer s.Close()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		seed(t, s, name)
	}

	list, err := s.ListPlugins(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "mid", list[1].Name)
	assert.Equal(t, "zeta", list[2].Name)
}

func testReadsAreCopies(t *testing.T, s store.Store) {
	defer s.Close()
	ctx := context.Background()
	seed(t, s, "reports")

	p, err := s.GetPlugin(ctx, "reports")
	require.NoError(t, err)
	p.Manifest.Menus[0].Title = "mutated"
	p.Manifest.Routes[0].Roles = append(p.Manifest.Routes[0].Roles, "x")

	again, err := s.GetPlugin(ctx, "reports")
	require.NoError(t, err)
	assert.Equal(t, "Home", again.Manifest.Menus[0].Title)
	assert.Empty(t, again.Manifest.Routes[0].Roles)

	releases, err := s.ListReleases(ctx, "reports")
	require.NoError(t, err)
	releases[0].Manifest.Menus[0].Title = "mutated"

	releases, err = s.ListReleases(ctx, "reports")
	require.NoError(t, err)
	assert.Equal(t, "Home", releases[0].Manifest.Menus[0].Title)
}
