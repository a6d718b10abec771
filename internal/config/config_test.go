package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 256, cfg.Server.SendBuffer)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envFrom(map[string]string{
		"PORT":             "9090",
		"WS_SEND_BUFFER":   "32",
		"WS_PING_INTERVAL": "5s",
		"LOG_LEVEL":        " debug ",
		"JWT_REQUIRED":     "true",
		"JWT_SECRET":       "s3cret",
		"KAFKA_BROKER":     "kafka:9092",
		"KAFKA_TOPICS":     "orders=chat, alerts",
		"AMQP_QUEUES":      "",
		"METRICS_ENABLED":  "false",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 32, cfg.Server.SendBuffer)
	assert.Equal(t, 5*time.Second, cfg.Server.PingInterval)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Security.RequireToken)
	assert.Equal(t, []string{"kafka:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, map[string]string{"orders": "chat", "alerts": "alerts"}, cfg.Kafka.Bindings)
	assert.Empty(t, cfg.AMQP.Bindings, "blank values are ignored")
	assert.False(t, cfg.Metrics.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnvPrefersBrokerList(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.applyEnv(envFrom(map[string]string{
		"KAFKA_BROKERS": "a:9092,b:9092",
		"KAFKA_BROKER":  "legacy:9092",
	})))
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
}

func TestApplyEnvCollectsErrors(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envFrom(map[string]string{
		"WS_SEND_BUFFER":   "lots",
		"WS_PING_INTERVAL": "soon",
		"JWT_REQUIRED":     "maybe",
		"KAFKA_TOPICS":     "=chat",
	}))
	require.Error(t, err)
	for _, key := range []string{"WS_SEND_BUFFER", "WS_PING_INTERVAL", "JWT_REQUIRED", "KAFKA_TOPICS"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"port":                  func(c *Config) { c.Server.Port = "http" },
		"send buffer":           func(c *Config) { c.Server.SendBuffer = 0 },
		"ping vs idle":          func(c *Config) { c.Server.PingInterval = c.Server.ReadIdleTimeout },
		"token without key":     func(c *Config) { c.Security.RequireToken = true },
		"kafka without brokers": func(c *Config) { c.Kafka.Bindings = map[string]string{"a": "b"} },
		"amqp without url":      func(c *Config) { c.AMQP.Bindings = map[string]string{"q": "t"} },
		"metrics path":          func(c *Config) { c.Metrics.Path = "metrics" },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadFromFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "7070"
  pingInterval: 10s
kafka:
  brokers: ["kafka:9092"]
  bindings:
    orders: chat
metrics:
  enabled: false
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7171")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7171", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.PingInterval)
	assert.Equal(t, 256, cfg.Server.SendBuffer, "defaults survive a partial file")
	assert.Equal(t, map[string]string{"orders": "chat"}, cfg.Kafka.Bindings)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestParseBindings(t *testing.T) {
	b, err := ParseBindings(" orders = chat ,alerts,, ")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"orders": "chat", "alerts": "alerts"}, b)

	_, err = ParseBindings("orders=")
	assert.Error(t, err)
}
