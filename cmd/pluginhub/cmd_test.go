package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leeforge/pluginhub/config"
	"github.com/leeforge/pluginhub/json"
	"github.com/leeforge/pluginhub/lifecycle"
	"github.com/leeforge/pluginhub/loader"
	"github.com/leeforge/pluginhub/plugin"
	"github.com/leeforge/pluginhub/store/memory"
)

const reportsDefinition = `name: reports
display_name: Order Reports
version: 1.0.0
author: ops
manifest:
  menus:
    - title: Reports
      path: /reports
      order: 1
  routes:
    - path: /ping
      methods: [get]
      handler: builtin.ping
`

const auditDefinition = `name: audit
version: 0.3.0
manifest:
  routes: []
`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newController(t *testing.T) *lifecycle.Controller {
	t.Helper()
	ld, err := loader.New(loader.Config{})
	require.NoError(t, err)
	require.NoError(t, loader.RegisterBuiltins(ld.Handlers()))
	return lifecycle.NewController(lifecycle.Config{LockTimeout: time.Second, RestoreWorkers: 1}, memory.New(), ld)
}

func TestImportDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "reports.yaml", reportsDefinition)
	writeFile(t, dir, "audit.yml", auditDefinition)
	writeFile(t, dir, "README.md", "not a definition")
	ctrl := newController(t)
	ctx := context.Background()

	report, err := importDir(ctx, ctrl, dir, "ops-bot")
	require.NoError(t, err)
	assert.Equal(t, []string{"audit", "reports"}, report.Created)
	assert.Empty(t, report.Skipped)

	p, err := ctrl.Get(ctx, "reports")
	require.NoError(t, err)
	assert.Equal(t, "Order Reports", p.DisplayName)
	assert.Equal(t, "1.0.0", p.Version)
	require.Len(t, p.Manifest.Routes, 1)
	assert.Equal(t, []string{"GET"}, p.Manifest.Routes[0].Methods)

	entries, err := ctrl.History(ctx, "reports")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, plugin.ActionCreate, entries[0].Action)
	assert.Equal(t, "ops-bot", entries[0].User)

	report, err = importDir(ctx, ctrl, dir, "ops-bot")
	require.NoError(t, err)
	assert.Empty(t, report.Created)
	assert.Equal(t, []string{"audit", "reports"}, report.Skipped)
}

func TestImportDirCreatesNothingOnBadDefinition(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid name", "name: Bad Name\nversion: 1.0.0\n"},
		{"missing version", "name: broken\n"},
		{"unknown field", "name: broken\nversion: 1.0.0\nowner: me\n"},
		{"bad route", "name: broken\nversion: 1.0.0\nmanifest:\n  routes:\n    - path: nope\n      handler: builtin.ping\n"},
		{"duplicate plugin", reportsDefinition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "a.yaml", reportsDefinition)
			writeFile(t, dir, "b.yaml", tt.content)
			ctrl := newController(t)

			_, err := importDir(context.Background(), ctrl, dir, lifecycle.DefaultUser)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "b.yaml")

			plugins, err := ctrl.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, plugins)
		})
	}
}

func TestImportDirEmpty(t *testing.T) {
	_, err := importDir(context.Background(), newController(t), t.TempDir(), lifecycle.DefaultUser)
	assert.ErrorContains(t, err, "no plugin definitions")
}

func TestImportCommand(t *testing.T) {
	confDir := t.TempDir()
	writeFile(t, confDir, "config.yaml", `storage:
  driver: memory
logging:
  log_in_terminal: false
`)
	defsDir := t.TempDir()
	writeFile(t, defsDir, "reports.yaml", reportsDefinition)

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", confDir, "--mode", "test", "import", defsDir})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "created reports\n", out.String())
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version", "--json"})
	require.NoError(t, cmd.Execute())

	var info versionInfo
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
	assert.NotEmpty(t, info.Platform)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	st, check, err := openStore(ctx, config.StorageConfig{Driver: config.DriverMemory}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, check)
	require.NoError(t, st.Close())

	st, check, err = openStore(ctx, config.StorageConfig{Driver: config.DriverSQLite, DSN: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, check)
	assert.NoError(t, check(ctx))
	require.NoError(t, st.Close())

	_, _, err = openStore(ctx, config.StorageConfig{Driver: "mongo"}, zap.NewNop())
	assert.ErrorContains(t, err, "unknown storage driver")
}

func TestNewAppWiresHealthChecks(t *testing.T) {
	cfg := &config.AppConfig{
		Storage:   config.StorageConfig{Driver: config.DriverSQLite, DSN: ":memory:"},
		Lifecycle: lifecycle.Config{LockTimeout: time.Second, RestoreWorkers: 1},
	}
	a, err := newApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.Contains(t, a.checks, "store")
	assert.NotContains(t, a.checks, "redis")
	assert.Equal(t, "/ext", a.loader.Prefix())
	assert.NotNil(t, a.handler("test"))
}
