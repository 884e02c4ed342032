package redis_client

import (
	"context"
	"net"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisConfigLogFields_RedactsPassword(t *testing.T) {
	config := Config{Host: "127.0.0.1", Port: "6379", Password: "super-secret", DB: 2}

	logFields := redisConfigLogFields(config)
	assert.NotContains(t, logFields, config.Password)
	assert.Contains(t, logFields, "password=[REDACTED]")
}

func TestRedisConfigLogFields_EmptyPassword(t *testing.T) {
	logFields := redisConfigLogFields(Config{Host: "127.0.0.1", Port: "6379"})
	assert.Contains(t, logFields, "password=<empty>")
}

// integrationRedisConfig reads REDIS_TEST_ADDR / REDIS_TEST_DB /
// REDIS_TEST_PASSWORD and skips the test when no address is set.
func integrationRedisConfig(t *testing.T) Config {
	t.Helper()

	addr := strings.TrimSpace(os.Getenv("REDIS_TEST_ADDR"))
	if addr == "" {
		t.Skip("set REDIS_TEST_ADDR to run redis integration tests")
	}

	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err, "invalid REDIS_TEST_ADDR")

	db := 0
	if dbRaw := strings.TrimSpace(os.Getenv("REDIS_TEST_DB")); dbRaw != "" {
		db, err = strconv.Atoi(dbRaw)
		require.NoError(t, err, "invalid REDIS_TEST_DB")
	}

	return Config{
		Enabled:     true,
		Host:        host,
		Port:        port,
		Password:    os.Getenv("REDIS_TEST_PASSWORD"),
		DB:          db,
		DialTimeout: 2 * time.Second,
	}
}

func TestNewRedis_ConnectionSuccess(t *testing.T) {
	config := integrationRedisConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := NewRedis(ctx, config, zap.NewNop())
	require.NoError(t, err)
	defer client.Close()

	pong, err := client.Ping(ctx).Result()
	require.NoError(t, err)
	assert.Equal(t, "PONG", pong)
}

func TestNewRedis_ConnectionFailure_UnreachablePort(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := NewRedis(ctx, Config{Host: "127.0.0.1", Port: "1", DialTimeout: time.Second}, zap.NewNop())
	assert.Error(t, err)
}

func TestNewRedis_ConnectionFailure_WrongHost(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := NewRedis(ctx, Config{Host: "nonexistent-host.invalid", Port: "6379", DialTimeout: time.Second}, zap.NewNop())
	assert.Error(t, err)
}
