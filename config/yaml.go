package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var _ IConfig = (*YamlConfig)(nil)

// YamlConfig implements IConfig with YAML file-based storage. All values are
// parsed at load time; getters never touch the file again.
type YamlConfig struct {
	configPath string
	logger     *zap.Logger
	settings   *InternalConfig
}

// YAML configuration structure matching the required format.
type yamlConfig struct {
	Server struct {
		Address  string `yaml:"address"`
		Name     string `yaml:"name"`
		Version  string `yaml:"version"`
		LogLevel string `yaml:"log_level"`
		SSL      struct {
			Enabled      bool     `yaml:"enabled"`
			Mode         string   `yaml:"mode"`
			CertFile     string   `yaml:"cert_file"`
			KeyFile      string   `yaml:"key_file"`
			AcmeDomains  []string `yaml:"acme_domains"`
			AcmeEmail    string   `yaml:"acme_email"`
			AcmeCacheDir string   `yaml:"acme_cache_dir"`
		} `yaml:"ssl"`
	} `yaml:"server"`

	Research struct {
		Timeout        string `yaml:"timeout"`
		Heartbeat      string `yaml:"heartbeat"`
		ProgressBuffer int    `yaml:"progress_buffer"`
		MaxResults     int    `yaml:"max_results"`
	} `yaml:"research"`

	Cache struct {
		Backend string `yaml:"backend"`
		DSN     string `yaml:"dsn"`
		TTL     string `yaml:"ttl"`
	} `yaml:"cache"`

	History struct {
		Path string `yaml:"path"`
	} `yaml:"history"`

	Limits struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"limits"`

	Summarizer struct {
		Endpoint  string `yaml:"endpoint"`
		Model     string `yaml:"model"`
		APIKeyEnv string `yaml:"api_key_env"`
	} `yaml:"summarizer"`
}

// NewYamlConfig loads and validates a YAML configuration file.
func NewYamlConfig(configPath string, logger *zap.Logger) (*YamlConfig, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &YamlConfig{
		configPath: configPath,
		logger:     logger.Named("config"),
		settings:   NewInternalConfig(),
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *YamlConfig) load() error {
	data, err := os.ReadFile(c.configPath)
	if err != nil {
		return fmt.Errorf("read config file %q: %w", c.configPath, err)
	}

	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config file %q: %w", c.configPath, err)
	}

	s := c.settings
	if raw.Server.Address != "" {
		s.ServerAddress = raw.Server.Address
	}
	if raw.Server.Name != "" {
		s.ServerNameValue = raw.Server.Name
	}
	if raw.Server.Version != "" {
		s.ServerVersionValue = raw.Server.Version
	}
	if raw.Server.LogLevel != "" {
		s.LogLevelValue = raw.Server.LogLevel
	}

	s.SSLEnabledValue = raw.Server.SSL.Enabled
	if raw.Server.SSL.Mode != "" {
		s.SSLModeValue = raw.Server.SSL.Mode
	}
	s.SSLCertFileValue = raw.Server.SSL.CertFile
	s.SSLKeyFileValue = raw.Server.SSL.KeyFile
	s.SSLAcmeDomainsValue = raw.Server.SSL.AcmeDomains
	s.SSLAcmeEmailValue = raw.Server.SSL.AcmeEmail
	s.SSLAcmeCacheDirValue = raw.Server.SSL.AcmeCacheDir

	if err := setDuration(&s.ResearchTimeoutValue, raw.Research.Timeout, "research.timeout"); err != nil {
		return err
	}
	if err := setDuration(&s.HeartbeatIntervalValue, raw.Research.Heartbeat, "research.heartbeat"); err != nil {
		return err
	}
	if raw.Research.ProgressBuffer > 0 {
		s.ProgressBufferValue = raw.Research.ProgressBuffer
	}
	if raw.Research.MaxResults > 0 {
		s.MaxResultsValue = raw.Research.MaxResults
	}

	if raw.Cache.Backend != "" {
		s.CacheBackendValue = raw.Cache.Backend
	}
	s.CacheDSNValue = raw.Cache.DSN
	if err := setDuration(&s.CacheTTLValue, raw.Cache.TTL, "cache.ttl"); err != nil {
		return err
	}

	s.HistoryPathValue = raw.History.Path

	if raw.Limits.RPS > 0 {
		s.RatePerSecondValue = raw.Limits.RPS
	}
	if raw.Limits.Burst > 0 {
		s.RateBurstValue = raw.Limits.Burst
	}

	if raw.Summarizer.Endpoint != "" {
		s.SummarizerEndpointValue = raw.Summarizer.Endpoint
	}
	if raw.Summarizer.Model != "" {
		s.SummarizerModelValue = raw.Summarizer.Model
	}
	if raw.Summarizer.APIKeyEnv != "" {
		s.SummarizerAPIKeyValue = os.Getenv(raw.Summarizer.APIKeyEnv)
	}

	switch s.CacheBackendValue {
	case "memory", "postgres":
	default:
		return fmt.Errorf("unknown cache backend %q (expected memory or postgres)", s.CacheBackendValue)
	}
	if s.CacheBackendValue == "postgres" && s.CacheDSNValue == "" {
		return fmt.Errorf("cache backend postgres requires cache.dsn")
	}

	c.logger.Info("Configuration loaded",
		zap.String("path", c.configPath),
		zap.String("cacheBackend", s.CacheBackendValue),
	)
	return nil
}

func setDuration(dst *time.Duration, raw, key string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse %s %q: %w", key, raw, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive", key)
	}
	*dst = d
	return nil
}

func (c *YamlConfig) ListenAddr() (string, error)         { return c.settings.ListenAddr() }
func (c *YamlConfig) ServerName() (string, error)         { return c.settings.ServerName() }
func (c *YamlConfig) ServerVersion() (string, error)      { return c.settings.ServerVersion() }
func (c *YamlConfig) LogLevel() (string, error)           { return c.settings.LogLevel() }
func (c *YamlConfig) ResearchTimeout() (time.Duration, error) {
	return c.settings.ResearchTimeout()
}
func (c *YamlConfig) HeartbeatInterval() (time.Duration, error) {
	return c.settings.HeartbeatInterval()
}
func (c *YamlConfig) ProgressBuffer() (int, error)        { return c.settings.ProgressBuffer() }
func (c *YamlConfig) MaxResults() (int, error)            { return c.settings.MaxResults() }
func (c *YamlConfig) CacheBackend() (string, error)       { return c.settings.CacheBackend() }
func (c *YamlConfig) CacheDSN() (string, error)           { return c.settings.CacheDSN() }
func (c *YamlConfig) CacheTTL() (time.Duration, error)    { return c.settings.CacheTTL() }
func (c *YamlConfig) HistoryPath() (string, error)        { return c.settings.HistoryPath() }
func (c *YamlConfig) RatePerSecond() (float64, error)     { return c.settings.RatePerSecond() }
func (c *YamlConfig) RateBurst() (int, error)             { return c.settings.RateBurst() }
func (c *YamlConfig) SummarizerEndpoint() (string, error) { return c.settings.SummarizerEndpoint() }
func (c *YamlConfig) SummarizerModel() (string, error)    { return c.settings.SummarizerModel() }
func (c *YamlConfig) SummarizerAPIKey() (string, error)   { return c.settings.SummarizerAPIKey() }
func (c *YamlConfig) SSLEnabled() (bool, error)           { return c.settings.SSLEnabled() }
func (c *YamlConfig) SSLMode() (string, error)            { return c.settings.SSLMode() }
func (c *YamlConfig) SSLCertFile() (string, error)        { return c.settings.SSLCertFile() }
func (c *YamlConfig) SSLKeyFile() (string, error)         { return c.settings.SSLKeyFile() }
func (c *YamlConfig) SSLAcmeDomains() ([]string, error)   { return c.settings.SSLAcmeDomains() }
func (c *YamlConfig) SSLAcmeEmail() (string, error)       { return c.settings.SSLAcmeEmail() }
func (c *YamlConfig) SSLAcmeCacheDir() (string, error)    { return c.settings.SSLAcmeCacheDir() }

// Status verifies the config file is still readable.
func (c *YamlConfig) Status(_ context.Context) error {
	_, err := os.Stat(c.configPath)
	return err
}

func (c *YamlConfig) Close() error { return nil }
