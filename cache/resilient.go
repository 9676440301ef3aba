package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/deepscout/deepscout/research"
)

var _ Store = (*Resilient)(nil)

// Resilient wraps a Store so backend failures never reach the orchestrator:
// a failing Get reports a miss, a failing Set is a logged no-op.
type Resilient struct {
	inner  Store
	logger *zap.Logger
}

// NewResilient wraps inner. A nil inner yields a cache that always misses.
func NewResilient(inner Store, logger *zap.Logger) *Resilient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resilient{inner: inner, logger: logger.Named("cache")}
}

func (r *Resilient) Get(ctx context.Context, key string) (*research.Result, bool, error) {
	if r.inner == nil {
		return nil, false, nil
	}
	result, ok, err := r.inner.Get(ctx, key)
	if err != nil {
		r.logger.Warn("Cache get failed, treating as miss", zap.String("key", key), zap.Error(err))
		return nil, false, nil
	}
	return result, ok, nil
}

func (r *Resilient) Set(ctx context.Context, key string, result *research.Result, ttl time.Duration) error {
	if r.inner == nil {
		return nil
	}
	if err := r.inner.Set(ctx, key, result, ttl); err != nil {
		r.logger.Warn("Cache set failed, skipping write", zap.String("key", key), zap.Error(err))
	}
	return nil
}

func (r *Resilient) Close() error {
	if r.inner == nil {
		return nil
	}
	return r.inner.Close()
}
