package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestYamlConfigLoad(t *testing.T) {
	t.Setenv("TEST_SUMMARIZER_KEY", "sk-test")
	path := writeConfig(t, `
server:
  address: ":9010"
  name: "deepscout-test"
  version: "1.2.3"
  log_level: "debug"
  ssl:
    enabled: true
    mode: "manual"
    cert_file: "/tmp/cert.pem"
    key_file: "/tmp/key.pem"
research:
  timeout: "45s"
  heartbeat: "5s"
  progress_buffer: 64
  max_results: 7
cache:
  backend: "memory"
  ttl: "30m"
history:
  path: "/tmp/runs.db"
limits:
  rps: 2.5
  burst: 4
summarizer:
  endpoint: "https://example.test/v1/chat/completions"
  model: "test-model"
  api_key_env: "TEST_SUMMARIZER_KEY"
`)

	cfg, err := NewYamlConfig(path, zap.NewNop())
	require.NoError(t, err)
	defer cfg.Close()

	addr, err := cfg.ListenAddr()
	require.NoError(t, err)
	assert.Equal(t, ":9010", addr)

	name, _ := cfg.ServerName()
	assert.Equal(t, "deepscout-test", name)
	version, _ := cfg.ServerVersion()
	assert.Equal(t, "1.2.3", version)
	level, _ := cfg.LogLevel()
	assert.Equal(t, "debug", level)

	timeout, _ := cfg.ResearchTimeout()
	assert.Equal(t, 45*time.Second, timeout)
	heartbeat, _ := cfg.HeartbeatInterval()
	assert.Equal(t, 5*time.Second, heartbeat)
	buffer, _ := cfg.ProgressBuffer()
	assert.Equal(t, 64, buffer)
	maxResults, _ := cfg.MaxResults()
	assert.Equal(t, 7, maxResults)

	backend, _ := cfg.CacheBackend()
	assert.Equal(t, "memory", backend)
	ttl, _ := cfg.CacheTTL()
	assert.Equal(t, 30*time.Minute, ttl)

	historyPath, _ := cfg.HistoryPath()
	assert.Equal(t, "/tmp/runs.db", historyPath)

	rps, _ := cfg.RatePerSecond()
	assert.Equal(t, 2.5, rps)
	burst, _ := cfg.RateBurst()
	assert.Equal(t, 4, burst)

	endpoint, _ := cfg.SummarizerEndpoint()
	assert.Equal(t, "https://example.test/v1/chat/completions", endpoint)
	model, _ := cfg.SummarizerModel()
	assert.Equal(t, "test-model", model)
	apiKey, _ := cfg.SummarizerAPIKey()
	assert.Equal(t, "sk-test", apiKey)

	sslEnabled, _ := cfg.SSLEnabled()
	assert.True(t, sslEnabled)
	sslMode, _ := cfg.SSLMode()
	assert.Equal(t, "manual", sslMode)
	certFile, _ := cfg.SSLCertFile()
	assert.Equal(t, "/tmp/cert.pem", certFile)

	assert.NoError(t, cfg.Status(context.Background()))
}

func TestYamlConfigDefaults(t *testing.T) {
	path := writeConfig(t, `server: {}`)

	cfg, err := NewYamlConfig(path, zap.NewNop())
	require.NoError(t, err)

	addr, _ := cfg.ListenAddr()
	assert.Equal(t, ":8001", addr)
	timeout, _ := cfg.ResearchTimeout()
	assert.Equal(t, 30*time.Second, timeout)
	heartbeat, _ := cfg.HeartbeatInterval()
	assert.Equal(t, 10*time.Second, heartbeat)
	backend, _ := cfg.CacheBackend()
	assert.Equal(t, "memory", backend)
	ttl, _ := cfg.CacheTTL()
	assert.Equal(t, time.Hour, ttl)
}

func TestYamlConfigRejectsUnknownCacheBackend(t *testing.T) {
	path := writeConfig(t, `
cache:
  backend: "redis"
`)
	_, err := NewYamlConfig(path, zap.NewNop())
	assert.Error(t, err)
}

func TestYamlConfigPostgresRequiresDSN(t *testing.T) {
	path := writeConfig(t, `
cache:
  backend: "postgres"
`)
	_, err := NewYamlConfig(path, zap.NewNop())
	assert.Error(t, err)
}

func TestYamlConfigRejectsBadDurations(t *testing.T) {
	path := writeConfig(t, `
research:
  timeout: "soon"
`)
	_, err := NewYamlConfig(path, zap.NewNop())
	assert.Error(t, err)

	path = writeConfig(t, `
research:
  timeout: "-5s"
`)
	_, err = NewYamlConfig(path, zap.NewNop())
	assert.Error(t, err)
}

func TestYamlConfigMissingFile(t *testing.T) {
	_, err := NewYamlConfig(filepath.Join(t.TempDir(), "absent.yaml"), zap.NewNop())
	assert.Error(t, err)
}

func TestInternalConfigSetListenAddr(t *testing.T) {
	cfg := NewInternalConfig()
	cfg.SetListenAddr(":7777")
	addr, err := cfg.ListenAddr()
	require.NoError(t, err)
	assert.Equal(t, ":7777", addr)
}
