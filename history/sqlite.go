// Package history journals finished research runs into a local SQLite
// database. The journal is best-effort: storage failures are logged and
// swallowed so a broken disk never fails a request.
package history

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/deepscout/deepscout/orchestrator"
)

var _ orchestrator.Recorder = (*SQLiteStore)(nil)

// Entry is one journaled run as returned to API consumers.
type Entry struct {
	RequestID  string    `json:"requestId"`
	Query      string    `json:"query"`
	Success    bool      `json:"success"`
	ErrorKind  string    `json:"errorKind,omitempty"`
	Cached     bool      `json:"cached"`
	DurationMS int64     `json:"durationMs"`
	Sources    int       `json:"sources"`
	FinishedAt time.Time `json:"finishedAt"`
}

// SQLiteStore persists run records in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewSQLiteStore creates (or opens) the journal database at path, creating
// parent directories as needed.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &SQLiteStore{db: db, path: path, logger: logger.Named("history")}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS research_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT,
		query TEXT,
		success INTEGER,
		error_kind TEXT,
		cached INTEGER,
		duration_ms INTEGER,
		sources INTEGER,
		finished_at TEXT
	);`)
	return err
}

// Record inserts one terminal run record. Errors are logged, not returned;
// journaling must never disturb the request that produced the record.
func (s *SQLiteStore) Record(record orchestrator.RunRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO research_runs
		(request_id, query, success, error_kind, cached, duration_ms, sources, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.RequestID,
		record.Query,
		boolToInt(record.Success),
		string(record.ErrorKind),
		boolToInt(record.Cached),
		record.Duration.Milliseconds(),
		record.Sources,
		record.FinishedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		s.logger.Warn("Failed to journal run record", zap.Error(err), zap.String("requestID", record.RequestID))
	}
}

// Recent returns up to limit entries, newest first. limit <= 0 means all.
func (s *SQLiteStore) Recent(limit int) ([]Entry, error) {
	query := `SELECT request_id, query, success, error_kind, cached, duration_ms, sources, finished_at
		FROM research_runs ORDER BY id DESC`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var success, cached int
		var finishedAt string
		if err := rows.Scan(&e.RequestID, &e.Query, &success, &e.ErrorKind, &cached, &e.DurationMS, &e.Sources, &finishedAt); err != nil {
			return nil, err
		}
		e.Success = success == 1
		e.Cached = cached == 1
		if t, err := time.Parse(time.RFC3339, finishedAt); err == nil {
			e.FinishedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string { return s.path }

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
