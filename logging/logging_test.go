package logging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/creasty/defaults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/leeforge/pluginhub/http/middleware"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	require.NoError(t, defaults.Set(&cfg))

	assert.Equal(t, "logs", cfg.Dir)
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.True(t, cfg.LogInTerminal)
	assert.False(t, cfg.LogToFile)
	assert.Equal(t, 100, cfg.MaxSize)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zapcore.Level
		wantErr  bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{"", zapcore.InfoLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"fatal", zapcore.FatalLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			got, err := ParseLevel(tt.level)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestFileOutputPerLevel(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{Dir: dir, Level: "info", LogToFile: true, MaxSize: 1})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("plugin loaded", zap.String("plugin", "reports"))
	logger.Warn("slow reload")
	require.NoError(t, logger.Close())

	info, err := os.ReadFile(filepath.Join(dir, "info.log"))
	require.NoError(t, err)
	assert.Contains(t, string(info), `"plugin":"reports"`)
	assert.NotContains(t, string(info), "slow reload")

	warn, err := os.ReadFile(filepath.Join(dir, "warn.log"))
	require.NoError(t, err)
	assert.Contains(t, string(warn), "slow reload")

	_, err = os.Stat(filepath.Join(dir, "debug.log"))
	assert.True(t, os.IsNotExist(err))
}

func TestSetLevel(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Config{Dir: dir, Level: "error", LogToFile: true, MaxSize: 1})
	require.NoError(t, err)

	logger.Info("before")
	require.NoError(t, logger.SetLevel("debug"))
	assert.Equal(t, zapcore.DebugLevel, logger.Level())
	logger.Info("after")
	assert.Error(t, logger.SetLevel("loud"))
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(dir, "info.log"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "before")
	assert.Contains(t, string(data), "after")
}

func TestWithContextAddsTraceAndUser(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := middleware.WithTraceID(context.Background(), "trace-1")
	WithContext(base, ctx).Info("hello")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "trace-1", entries[0].ContextMap()["trace_id"])

	assert.Same(t, base, WithContext(base, context.Background()))
}

func TestHTTPMiddlewareLogsRequest(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	h := HTTPMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotNil(t, FromContext(r.Context(), nil))
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/plugins", nil))

	entries := logs.FilterMessage("http.request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(http.StatusTeapot), fields["status"])
	assert.Equal(t, "/plugins", fields["path"])
	assert.Equal(t, int64(5), fields["bytes"])
}

func TestRecoveryMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	h := RecoveryMiddleware(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), `"status":"error"`))
	assert.Equal(t, 1, logs.FilterMessage("http.panic.recovered").Len())
}
