// Package cache provides the TTL-bounded result cache consulted before any
// worker is spawned. Caching is an optimization: every implementation must
// degrade to miss/no-op rather than surface backend failures to callers.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/deepscout/deepscout/research"
)

// ErrUnavailable indicates the backing store cannot be reached. The Resilient
// wrapper swallows it; raw stores may return it.
var ErrUnavailable = errors.New("cache backend unavailable")

// Store is the result cache contract. Get must treat entries past their TTL
// as absent even if still physically present; Set overwrites unconditionally.
type Store interface {
	Get(ctx context.Context, key string) (*research.Result, bool, error)
	Set(ctx context.Context, key string, result *research.Result, ttl time.Duration) error
	Close() error
}

const keyPrefix = "research:"

// Fingerprint derives the deterministic cache key for a query. Queries that
// differ only in surrounding whitespace or letter case share a fingerprint.
func Fingerprint(q research.Query) string {
	sum := sha256.Sum256([]byte(q.Normalized()))
	return keyPrefix + hex.EncodeToString(sum[:])
}
