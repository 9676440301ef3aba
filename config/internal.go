package config

import (
	"context"
	"sync"
	"time"
)

var _ IConfig = (*InternalConfig)(nil)

// InternalConfig implements IConfig with in-memory storage. It is the default
// for tests and for embedding the server without a config file.
type InternalConfig struct {
	mu sync.RWMutex

	ServerAddress      string
	ServerNameValue    string
	ServerVersionValue string
	LogLevelValue      string

	ResearchTimeoutValue   time.Duration
	HeartbeatIntervalValue time.Duration
	ProgressBufferValue    int
	MaxResultsValue        int

	CacheBackendValue string
	CacheDSNValue     string
	CacheTTLValue     time.Duration

	HistoryPathValue string

	RatePerSecondValue float64
	RateBurstValue     int

	SummarizerEndpointValue string
	SummarizerModelValue    string
	SummarizerAPIKeyValue   string

	SSLEnabledValue      bool
	SSLModeValue         string
	SSLCertFileValue     string
	SSLKeyFileValue      string
	SSLAcmeDomainsValue  []string
	SSLAcmeEmailValue    string
	SSLAcmeCacheDirValue string
}

// NewInternalConfig creates an in-memory configuration with usable defaults.
func NewInternalConfig() *InternalConfig {
	return &InternalConfig{
		ServerAddress:      ":8001",
		ServerNameValue:    "deepscout",
		ServerVersionValue: "0.0.0",
		LogLevelValue:      "info",

		ResearchTimeoutValue:   30 * time.Second,
		HeartbeatIntervalValue: 10 * time.Second,
		ProgressBufferValue:    32,
		MaxResultsValue:        10,

		CacheBackendValue: "memory",
		CacheTTLValue:     time.Hour,

		RatePerSecondValue: 5,
		RateBurstValue:     10,

		SummarizerEndpointValue: "https://api.openai.com/v1/chat/completions",
		SummarizerModelValue:    "gpt-4o-mini",

		SSLModeValue: "manual",
	}
}

func (c *InternalConfig) ListenAddr() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ServerAddress, nil
}

// SetListenAddr overrides the listen address.
func (c *InternalConfig) SetListenAddr(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ServerAddress = addr
}

func (c *InternalConfig) ServerName() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ServerNameValue, nil
}

func (c *InternalConfig) ServerVersion() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ServerVersionValue, nil
}

func (c *InternalConfig) LogLevel() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.LogLevelValue, nil
}

func (c *InternalConfig) ResearchTimeout() (time.Duration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ResearchTimeoutValue, nil
}

func (c *InternalConfig) HeartbeatInterval() (time.Duration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.HeartbeatIntervalValue, nil
}

func (c *InternalConfig) ProgressBuffer() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ProgressBufferValue, nil
}

func (c *InternalConfig) MaxResults() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.MaxResultsValue, nil
}

func (c *InternalConfig) CacheBackend() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.CacheBackendValue, nil
}

func (c *InternalConfig) CacheDSN() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.CacheDSNValue, nil
}

func (c *InternalConfig) CacheTTL() (time.Duration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.CacheTTLValue, nil
}

func (c *InternalConfig) HistoryPath() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.HistoryPathValue, nil
}

func (c *InternalConfig) RatePerSecond() (float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.RatePerSecondValue, nil
}

func (c *InternalConfig) RateBurst() (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.RateBurstValue, nil
}

func (c *InternalConfig) SummarizerEndpoint() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SummarizerEndpointValue, nil
}

func (c *InternalConfig) SummarizerModel() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SummarizerModelValue, nil
}

func (c *InternalConfig) SummarizerAPIKey() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SummarizerAPIKeyValue, nil
}

func (c *InternalConfig) SSLEnabled() (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SSLEnabledValue, nil
}

func (c *InternalConfig) SSLMode() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SSLModeValue, nil
}

func (c *InternalConfig) SSLCertFile() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SSLCertFileValue, nil
}

func (c *InternalConfig) SSLKeyFile() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SSLKeyFileValue, nil
}

func (c *InternalConfig) SSLAcmeDomains() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SSLAcmeDomainsValue, nil
}

func (c *InternalConfig) SSLAcmeEmail() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SSLAcmeEmailValue, nil
}

func (c *InternalConfig) SSLAcmeCacheDir() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.SSLAcmeCacheDirValue, nil
}

func (c *InternalConfig) Status(_ context.Context) error { return nil }

func (c *InternalConfig) Close() error { return nil }
