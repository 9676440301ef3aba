// Package config defines the configuration contract and its in-memory and
// YAML-backed implementations. Components read settings through IConfig so
// the source (file, embedded defaults, tests) stays interchangeable.
package config

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// IConfig is the configuration surface consumed by the server components.
type IConfig interface {
	// Core server settings
	ListenAddr() (string, error)
	ServerName() (string, error)
	ServerVersion() (string, error)
	LogLevel() (string, error)

	// Research orchestration settings
	ResearchTimeout() (time.Duration, error)
	HeartbeatInterval() (time.Duration, error)
	ProgressBuffer() (int, error)
	MaxResults() (int, error)

	// Result cache settings
	CacheBackend() (string, error) // "memory" or "postgres"
	CacheDSN() (string, error)
	CacheTTL() (time.Duration, error)

	// History journal settings; empty path disables journaling
	HistoryPath() (string, error)

	// Ingress rate limits
	RatePerSecond() (float64, error)
	RateBurst() (int, error)

	// Summarizer backend settings
	SummarizerEndpoint() (string, error)
	SummarizerModel() (string, error)
	SummarizerAPIKey() (string, error)

	// SSL settings
	SSLEnabled() (bool, error)
	SSLMode() (string, error) // "manual" or "acme"
	SSLCertFile() (string, error)
	SSLKeyFile() (string, error)
	SSLAcmeDomains() ([]string, error)
	SSLAcmeEmail() (string, error)
	SSLAcmeCacheDir() (string, error)

	// Status reports whether the configuration source is healthy.
	Status(ctx context.Context) error
	Close() error
}
