package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	for _, k := range []string{"REDIS_URL", "PORT", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "tcp://127.0.0.1:6379", cfg.Redis.URL)
	assert.Equal(t, BackendRedis, cfg.Redis.Backend)
	assert.Equal(t, 250*time.Millisecond, cfg.Redis.Timeout())
	assert.Equal(t, time.Hour, cfg.Redis.TTL())
	assert.Equal(t, "rate_limit:", cfg.Redis.KeyPrefix)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
	assert.Equal(t, "/prometheus", cfg.Observability.PrometheusPath)
	assert.Equal(t, Policy{Capacity: 100, RefillRate: 10, Tokens: 1}, cfg.Policy)
	assert.Equal(t, LoadTest{ClientID: "load_test", Policy: Policy{Capacity: 1000, RefillRate: 100, Tokens: 1}}, cfg.LoadTest)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBody())
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout())
}

func TestLoad_FileAndEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 9000
  read_timeout_ms: 1500
redis:
  url: redis://cache:6380/2
  timeout_ms: 100
  pool_size: 32
observability:
  log_level: debug
policy:
  capacity: 50
  refill_rate: 2.5
load_test:
  client_id: bench
  capacity: 10
`)
	t.Setenv("PORT", "9100")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9100", cfg.Server.Addr())
	assert.Equal(t, 1500*time.Millisecond, cfg.Server.ReadTimeout())
	assert.Equal(t, 100*time.Millisecond, cfg.Redis.Timeout())
	assert.Equal(t, "warn", cfg.Observability.LogLevel)
	assert.Equal(t, Policy{Capacity: 50, RefillRate: 2.5, Tokens: 1}, cfg.Policy)
	assert.Equal(t, "bench", cfg.LoadTest.ClientID)
	assert.Equal(t, int64(10), cfg.LoadTest.Capacity)
	assert.Equal(t, 100.0, cfg.LoadTest.RefillRate)

	opts, err := cfg.Redis.ClientOptions()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 32, opts.PoolSize)
}

func TestLoad_RedisURLFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_URL", "tcp://10.0.0.5:6379")

	cfg, err := Load("")
	require.NoError(t, err)

	opts, err := cfg.Redis.ClientOptions()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5:6379", opts.Addr)
	assert.Equal(t, "tcp", opts.Network)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{name: "bad port env", env: map[string]string{"PORT": "http"}},
		{name: "port out of range", env: map[string]string{"PORT": "70000"}},
		{name: "bad yaml", body: "server: [\n"},
		{name: "unknown backend", body: "redis:\n  backend: etcd\n"},
		{name: "relative prometheus path", body: "observability:\n  prometheus_path: metrics\n"},
	}
	clearEnv(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.body != "" {
				path = writeConfig(t, tt.body)
			}
			_, err := Load(path)
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRedis_ClientOptionsRejectsUnknownScheme(t *testing.T) {
	_, err := Redis{URL: "http://localhost:6379"}.ClientOptions()
	assert.Error(t, err)
}

func TestLoad_ExampleFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("../../config.example.yaml")
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Redis.PoolSize)
	assert.Equal(t, "load_test", cfg.LoadTest.ClientID)

	opts, err := cfg.Redis.ClientOptions()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6379", opts.Addr)
}
