package lifecycle

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leeforge/pluginhub/plugin"
	"github.com/leeforge/pluginhub/store/memory"
)

func TestRestoreMountsEnabledPlugins(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	first := newHarness(t, st)
	first.create(t, "reports", pingManifest())
	first.create(t, "billing", pingManifest())
	broken := brokenManifest()
	first.create(t, "legacy", &broken)
	first.create(t, "drafts", pingManifest())
	for _, name := range []string{"reports", "billing", "legacy"} {
		_, _ = first.ctrl.Enable(ctx, name, "")
	}

	// A fresh process shares the store but has nothing mounted.
	second := newHarness(t, st)
	summary, err := second.ctrl.Restore(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"billing", "reports"}, summary.Restored)
	assert.Equal(t, []string{"legacy"}, summary.Failed)

	assert.True(t, second.loader.IsLoaded("reports"))
	assert.True(t, second.loader.IsLoaded("billing"))
	assert.False(t, second.loader.IsLoaded("legacy"))
	assert.False(t, second.loader.IsLoaded("drafts"))
	assert.Equal(t, http.StatusOK, second.status(http.MethodGet, "/ext/reports/ping"))

	entries := second.history(t, "reports")
	last := entries[len(entries)-1]
	assert.Equal(t, plugin.ActionReload, last.Action)
	assert.Equal(t, restoreDetail, last.Detail)
	assert.Equal(t, DefaultUser, last.User)

	legacy, err := second.ctrl.Get(ctx, "legacy")
	require.NoError(t, err)
	assert.True(t, legacy.Enabled)
	assert.False(t, legacy.Loaded)
	assert.NotEmpty(t, legacy.LastError)

	assert.Len(t, second.history(t, "drafts"), 1)
}

func TestRestoreWithNothingEnabled(t *testing.T) {
	h := newHarness(t, memory.New())
	h.create(t, "reports", nil)

	summary, err := h.ctrl.Restore(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary.Restored)
	assert.Empty(t, summary.Failed)
}

func TestResyncFollowsCommittedState(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	local := newHarness(t, st)
	peer := newHarness(t, st)

	local.create(t, "reports", pingManifest())
	_, err := peer.ctrl.Enable(ctx, "reports", "")
	require.NoError(t, err)
	historyLen := len(local.history(t, "reports"))

	require.NoError(t, local.ctrl.HandleRemoteEvent(ctx, plugin.Event{Plugin: "reports", Action: plugin.ActionEnable}))
	assert.True(t, local.loader.IsLoaded("reports"))

	_, err = peer.ctrl.Disable(ctx, "reports", "")
	require.NoError(t, err)
	require.NoError(t, local.ctrl.Resync(ctx, "reports"))
	assert.False(t, local.loader.IsLoaded("reports"))

	// Resync only touches the mount.
	assert.Len(t, local.history(t, "reports"), historyLen+1)
}

// hookRecorder is a module that records its Enable and Disable calls.
type hookRecorder struct {
	name  string
	mu    sync.Mutex
	calls []string
}

func (m *hookRecorder) Name() string { return m.name }

func (m *hookRecorder) Enable(context.Context, *plugin.AppContext) error {
	m.record("enable")
	return nil
}

func (m *hookRecorder) Disable(context.Context, *plugin.AppContext) error {
	m.record("disable")
	return nil
}

func (m *hookRecorder) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *hookRecorder) seen() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func TestResyncDisablesTheOldMountBeforeRemounting(t *testing.T) {
	h := newHarness(t, memory.New())
	hooks := &hookRecorder{name: "reports"}
	require.NoError(t, h.loader.RegisterModule(hooks))
	ctx := context.Background()

	h.create(t, "reports", pingManifest())
	_, err := h.ctrl.Enable(ctx, "reports", "")
	require.NoError(t, err)

	require.NoError(t, h.ctrl.Resync(ctx, "reports"))
	assert.Equal(t, []string{"enable", "disable", "enable"}, hooks.seen())
	assert.True(t, h.loader.IsLoaded("reports"))
	assert.Equal(t, http.StatusOK, h.status(http.MethodGet, "/ext/reports/ping"))
}
