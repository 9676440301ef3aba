package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gopkg.in/cenkalti/backoff.v1"

	"github.com/deepscout/deepscout/research"
)

var _ Store = (*PostgresStore)(nil)

// PostgresStore keeps cache entries in a single Postgres table so multiple
// server instances share one result cache. Expiry is lazy: reads filter on
// expires_at, rows are purged on overwrite.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

const createCacheTable = `CREATE TABLE IF NOT EXISTS research_cache (
	cache_key  TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	expires_at TIMESTAMPTZ NOT NULL
)`

// NewPostgresStore connects to Postgres, retrying the initial ping with
// exponential backoff bounded by ctx, and ensures the cache table exists.
func NewPostgresStore(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dsn == "" {
		return nil, errors.New("postgres cache requires a connection string")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres cache: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = 30 * time.Second
	ping := func() error { return db.PingContext(ctx) }
	if err := backoff.Retry(ping, backoff.WithContext(expBackoff, ctx)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres cache: %w", err)
	}

	if _, err := db.ExecContext(ctx, createCacheTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache table: %w", err)
	}

	logger.Info("Postgres result cache enabled")
	return &PostgresStore{db: db, logger: logger.Named("cache-pg")}, nil
}

// Get loads a non-expired entry.
func (s *PostgresStore) Get(ctx context.Context, key string) (*research.Result, bool, error) {
	const query = `SELECT payload FROM research_cache WHERE cache_key = $1 AND expires_at > NOW()`

	var payload []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var result research.Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, false, fmt.Errorf("decode cache payload: %w", err)
	}
	return &result, true, nil
}

// Set upserts the entry; last writer wins.
func (s *PostgresStore) Set(ctx context.Context, key string, result *research.Result, ttl time.Duration) error {
	if result == nil || ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode cache payload: %w", err)
	}

	const query = `INSERT INTO research_cache (cache_key, payload, expires_at)
              VALUES ($1, $2, NOW() + $3::interval)
              ON CONFLICT (cache_key) DO UPDATE
              SET payload = EXCLUDED.payload,
                  created_at = NOW(),
                  expires_at = EXCLUDED.expires_at`

	interval := fmt.Sprintf("%d seconds", int64(ttl.Seconds()))
	if _, err := s.db.ExecContext(ctx, query, key, payload, interval); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
