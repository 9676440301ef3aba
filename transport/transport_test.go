package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/deepscout/deepscout/cache"
	"github.com/deepscout/deepscout/config"
	"github.com/deepscout/deepscout/history"
	"github.com/deepscout/deepscout/orchestrator"
	"github.com/deepscout/deepscout/research"
	"github.com/deepscout/deepscout/worker"
)

func newTestServer(t *testing.T, backend worker.Backend, cfg *config.InternalConfig, options ...TransportOption) *httptest.Server {
	t.Helper()
	if cfg == nil {
		cfg = config.NewInternalConfig()
		cfg.RatePerSecondValue = 1000
		cfg.RateBurstValue = 1000
	}
	runner, err := worker.NewRunner(backend, zap.NewNop())
	require.NoError(t, err)
	orch, err := orchestrator.New(runner, cache.NewMemoryStore(), zap.NewNop(),
		orchestrator.WithTimeout(5*time.Second))
	require.NoError(t, err)
	tr, err := New(orch, zap.NewNop(), cfg, options...)
	require.NoError(t, err)

	mux := http.NewServeMux()
	tr.RegisterHandlers(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func okBackend() worker.Backend {
	return worker.BackendFunc(func(ctx context.Context, query research.Query, report worker.ProgressFunc) (*research.Result, error) {
		report(research.ProgressEvent{Stage: research.StageSearching, Message: "Searching the web..."})
		return &research.Result{
			Query:   query.Text,
			Summary: "the answer",
			Sources: []research.SourceRecord{{Title: "Source", URL: "http://example.test"}},
		}, nil
	})
}

func TestHandleStreamSuccess(t *testing.T) {
	server := newTestServer(t, okBackend(), nil)

	resp, err := http.Get(server.URL + StreamPath + "?query=what+is+go")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, contentTypeSSE, resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "no", resp.Header.Get("X-Accel-Buffering"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)

	assert.Contains(t, text, "event: progress")
	assert.Contains(t, text, `"stage":"starting"`)
	assert.Contains(t, text, `"stage":"searching"`)
	assert.Contains(t, text, "event: complete")
	assert.Contains(t, text, `"success":true`)
	assert.Contains(t, text, `"summary":"the answer"`)
	// Progress precedes the terminal event on the wire.
	assert.Less(t, bytes.Index(body, []byte("event: progress")), bytes.Index(body, []byte("event: complete")))
}

func TestHandleStreamErrorEvent(t *testing.T) {
	backend := worker.BackendFunc(func(ctx context.Context, query research.Query, report worker.ProgressFunc) (*research.Result, error) {
		return nil, research.NewTaskError(research.ErrKindUnavailable, "Search is temporarily unavailable. Please try again.")
	})
	server := newTestServer(t, backend, nil)

	resp, err := http.Get(server.URL + StreamPath + "?query=broken")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)

	assert.Contains(t, text, "event: error")
	assert.Contains(t, text, `"success":false`)
	assert.Contains(t, text, `"code":"backend_unavailable"`)
}

func TestHandleStreamRejectsMissingQuery(t *testing.T) {
	server := newTestServer(t, okBackend(), nil)

	resp, err := http.Get(server.URL + StreamPath)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var envelope apiEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.False(t, envelope.Success)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "invalid_query", envelope.Error.Code)
}

func TestHandleStreamMethodNotAllowed(t *testing.T) {
	server := newTestServer(t, okBackend(), nil)

	resp, err := http.Post(server.URL+StreamPath, contentTypeJSON, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandleResearchSync(t *testing.T) {
	server := newTestServer(t, okBackend(), nil)

	payload := bytes.NewBufferString(`{"query":"what is go"}`)
	resp, err := http.Post(server.URL+ResearchPath, contentTypeJSON, payload)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope struct {
		Success bool             `json:"success"`
		Data    *research.Result `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.True(t, envelope.Success)
	require.NotNil(t, envelope.Data)
	assert.Equal(t, "the answer", envelope.Data.Summary)
	assert.False(t, envelope.Data.Cached)
}

func TestHandleResearchSyncFailure(t *testing.T) {
	backend := worker.BackendFunc(func(ctx context.Context, query research.Query, report worker.ProgressFunc) (*research.Result, error) {
		return nil, research.NewTaskError(research.ErrKindUnavailable, "Search is temporarily unavailable. Please try again.")
	})
	server := newTestServer(t, backend, nil)

	resp, err := http.Post(server.URL+ResearchPath, contentTypeJSON, bytes.NewBufferString(`{"query":"x"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var envelope apiEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.False(t, envelope.Success)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, string(research.ErrKindUnavailable), envelope.Error.Code)
}

func TestHandleResearchRejectsBadBody(t *testing.T) {
	server := newTestServer(t, okBackend(), nil)

	resp, err := http.Post(server.URL+ResearchPath, contentTypeJSON, bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleHistoryDisabled(t *testing.T) {
	server := newTestServer(t, okBackend(), nil)

	resp, err := http.Get(server.URL + HistoryPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleHistoryListsRuns(t *testing.T) {
	journal, err := history.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })

	journal.Record(orchestrator.RunRecord{
		RequestID:  "req-1",
		Query:      "what is go",
		Success:    true,
		Sources:    2,
		FinishedAt: time.Now(),
	})

	server := newTestServer(t, okBackend(), nil, WithHistory(journal))

	resp, err := http.Get(server.URL + HistoryPath + "?limit=10")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope struct {
		Success bool            `json:"success"`
		Data    []history.Entry `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.True(t, envelope.Success)
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "what is go", envelope.Data[0].Query)
}

func TestHandleHistoryRejectsBadLimit(t *testing.T) {
	journal, err := history.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })

	server := newTestServer(t, okBackend(), nil, WithHistory(journal))

	resp, err := http.Get(server.URL + HistoryPath + "?limit=zero")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRateLimitReturns429(t *testing.T) {
	cfg := config.NewInternalConfig()
	cfg.RatePerSecondValue = 0.001
	cfg.RateBurstValue = 1
	server := newTestServer(t, okBackend(), cfg)

	first, err := http.Get(server.URL + StreamPath + "?query=one")
	require.NoError(t, err)
	io.Copy(io.Discard, first.Body)
	first.Body.Close()
	require.Equal(t, http.StatusOK, first.StatusCode)

	second, err := http.Get(server.URL + StreamPath + "?query=two")
	require.NoError(t, err)
	defer second.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
}

func TestHostLimiter(t *testing.T) {
	limiter := newHostLimiter(0.001, 2)

	assert.True(t, limiter.Allow("10.0.0.1:1234"))
	assert.True(t, limiter.Allow("10.0.0.1:5678"), "same host, different port shares the bucket")
	assert.False(t, limiter.Allow("10.0.0.1:9012"))

	// An unrelated host has its own budget.
	assert.True(t, limiter.Allow("10.0.0.2:1234"))
}
