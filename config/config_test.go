package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testOptions(dir string, mode Mode) Options {
	return Options{BasePath: dir, FileName: "config", FileType: "yaml", EnvPrefix: "PLUGINHUB", Mode: mode}
}

func TestParseMode(t *testing.T) {
	tests := map[string]Mode{
		"":            DevMode,
		"dev":         DevMode,
		"PROD":        ProMode,
		"production":  ProMode,
		" testing ":   TestMode,
		"unsupported": DevMode,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseMode(in), in)
	}
}

func TestLoadDefaultsWithoutFiles(t *testing.T) {
	cfg, c, err := Load(testOptions(t.TempDir(), DevMode))
	require.NoError(t, err)
	assert.Empty(t, c.Files())

	assert.Equal(t, DevMode, cfg.Mode)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "127.0.0.1", cfg.Redis.Host)
	assert.Equal(t, 30*time.Second, cfg.Lifecycle.LockTimeout)
	assert.Equal(t, 4, cfg.Lifecycle.RestoreWorkers)
	assert.Equal(t, "/ext", cfg.Loader.MountPrefix)
}

func TestLoadLayersFilesByMode(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", `
server:
  addr: ":7000"
storage:
  driver: memory
logging:
  level: debug
`)
	writeFile(t, dir, "config.test.yaml", `
server:
  addr: ":7100"
lifecycle:
  lock_timeout: 2s
`)
	writeFile(t, dir, "config.production.yaml", `
server:
  addr: ":9000"
`)

	cfg, c, err := Load(testOptions(dir, TestMode))
	require.NoError(t, err)
	assert.Len(t, c.Files(), 2)
	assert.Equal(t, ":7100", cfg.Server.Addr)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 2*time.Second, cfg.Lifecycle.LockTimeout)
	assert.Equal(t, 4, cfg.Lifecycle.RestoreWorkers)
}

func TestEnvOverridesFilesAndDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", "server:\n  addr: \":7000\"\n")
	t.Setenv("PLUGINHUB_SERVER_ADDR", ":7777")
	t.Setenv("PLUGINHUB_REDIS_ENABLED", "true")
	t.Setenv("PLUGINHUB_LOADER_MOUNT_PREFIX", "/plugins")

	cfg, _, err := Load(testOptions(dir, DevMode))
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Server.Addr)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "/plugins", cfg.Loader.MountPrefix)
}

func TestValidation(t *testing.T) {
	tests := map[string]string{
		"driver": "storage:\n  driver: mongo\n",
		"level":  "logging:\n  level: loud\n",
		"dsn":    "storage:\n  driver: postgres\n  dsn: \"\"\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "config.yaml", content)
			_, _, err := Load(testOptions(dir, DevMode))
			assert.Error(t, err)
		})
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "logging:\n  level: info\n")

	c, err := NewConfig(testOptions(dir, DevMode))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloaded := make(chan error, 8)
	require.NoError(t, c.Watch(ctx, func(err error) { reloaded <- err }))

	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0o644))

	select {
	case err := <-reloaded:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}
	assert.Eventually(t, func() bool {
		cfg, err := c.App()
		return err == nil && cfg.Logging.Level == "warn"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatchWithoutFiles(t *testing.T) {
	c, err := NewConfig(testOptions(t.TempDir(), DevMode))
	require.NoError(t, err)
	assert.Error(t, c.Watch(context.Background(), func(error) {}))
}
