// Package node assembles the research server from its parts: cache backend,
// history journal, research agent, worker runner, orchestrator, and HTTP
// transport.
package node

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/deepscout/deepscout/backend"
	"github.com/deepscout/deepscout/cache"
	"github.com/deepscout/deepscout/config"
	"github.com/deepscout/deepscout/extra"
	"github.com/deepscout/deepscout/history"
	"github.com/deepscout/deepscout/orchestrator"
	"github.com/deepscout/deepscout/transport"
	"github.com/deepscout/deepscout/worker"
)

// Node is the running research server and its owned resources.
type Node struct {
	logger       *zap.Logger
	cfg          config.IConfig
	store        cache.Store
	journal      *history.SQLiteStore
	orchestrator *orchestrator.Orchestrator
	transport    *transport.Transport
	httpServer   *http.Server
	done         chan struct{}
}

// New builds the node from configuration. The worker backend may be supplied
// for tests; nil selects the reference agent.
func New(ctx context.Context, logger *zap.Logger, cfg config.IConfig, researchBackend worker.Backend) (*Node, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	n := &Node{
		logger: logger,
		cfg:    cfg,
		done:   make(chan struct{}),
	}

	store, err := buildStore(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}
	n.store = store

	if path, err := cfg.HistoryPath(); err == nil && path != "" {
		journal, err := history.NewSQLiteStore(path, logger)
		if err != nil {
			// The journal is best-effort; a broken path must not stop the
			// server.
			logger.Warn("Failed to open history journal, continuing without it",
				zap.String("path", path), zap.Error(err))
		} else {
			n.journal = journal
		}
	}

	if researchBackend == nil {
		researchBackend, err = buildAgent(logger, cfg)
		if err != nil {
			return nil, err
		}
	}

	progressBuffer, err := cfg.ProgressBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to get progress buffer size: %w", err)
	}
	runner, err := worker.NewRunner(researchBackend, logger, worker.WithProgressBuffer(progressBuffer))
	if err != nil {
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}

	orchOptions, err := orchestratorOptions(cfg, n.journal)
	if err != nil {
		return nil, err
	}
	n.orchestrator, err = orchestrator.New(runner, store, logger, orchOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	transportOptions := []transport.TransportOption{}
	if n.journal != nil {
		transportOptions = append(transportOptions, transport.WithHistory(n.journal))
	}
	n.transport, err = transport.New(n.orchestrator, logger, cfg, transportOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	return n, nil
}

func buildStore(ctx context.Context, logger *zap.Logger, cfg config.IConfig) (cache.Store, error) {
	cacheBackend, err := cfg.CacheBackend()
	if err != nil {
		return nil, fmt.Errorf("failed to get cache backend: %w", err)
	}
	switch cacheBackend {
	case "memory":
		return cache.NewMemoryStore(), nil
	case "postgres":
		dsn, err := cfg.CacheDSN()
		if err != nil || dsn == "" {
			return nil, fmt.Errorf("postgres cache backend requires a DSN: %w", err)
		}
		store, err := cache.NewPostgresStore(ctx, dsn, logger)
		if err != nil {
			// Degrade to cache misses rather than refuse to start; the
			// orchestrator wraps the store resiliently anyway.
			logger.Warn("Postgres cache unavailable, running without cache", zap.Error(err))
			return nil, nil
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cacheBackend)
	}
}

func buildAgent(logger *zap.Logger, cfg config.IConfig) (worker.Backend, error) {
	endpoint, err := cfg.SummarizerEndpoint()
	if err != nil {
		return nil, fmt.Errorf("failed to get summarizer endpoint: %w", err)
	}
	model, err := cfg.SummarizerModel()
	if err != nil {
		return nil, fmt.Errorf("failed to get summarizer model: %w", err)
	}
	apiKey, err := cfg.SummarizerAPIKey()
	if err != nil {
		return nil, fmt.Errorf("failed to get summarizer API key: %w", err)
	}
	maxResults, err := cfg.MaxResults()
	if err != nil {
		return nil, fmt.Errorf("failed to get max results: %w", err)
	}

	searcher := backend.NewDuckDuckGoSearcher()
	summarizer := backend.NewChatSummarizer(endpoint, model, apiKey)
	return backend.NewAgent(searcher, summarizer, maxResults, logger)
}

func orchestratorOptions(cfg config.IConfig, journal *history.SQLiteStore) ([]orchestrator.Option, error) {
	timeout, err := cfg.ResearchTimeout()
	if err != nil {
		return nil, fmt.Errorf("failed to get research timeout: %w", err)
	}
	heartbeat, err := cfg.HeartbeatInterval()
	if err != nil {
		return nil, fmt.Errorf("failed to get heartbeat interval: %w", err)
	}
	ttl, err := cfg.CacheTTL()
	if err != nil {
		return nil, fmt.Errorf("failed to get cache TTL: %w", err)
	}
	options := []orchestrator.Option{
		orchestrator.WithTimeout(timeout),
		orchestrator.WithHeartbeat(heartbeat),
		orchestrator.WithCacheTTL(ttl),
	}
	if journal != nil {
		options = append(options, orchestrator.WithRecorder(journal))
	}
	return options, nil
}

// Start registers handlers and begins serving. It returns once the listener
// is up; shutdown is driven by ctx.
func (n *Node) Start(ctx context.Context, mux *http.ServeMux, overwriteListenAddr string) error {
	n.logger.Info("Starting research node")
	n.transport.RegisterHandlers(mux)

	n.logger.Info("Registering status handler", zap.String("path", "/status"))
	mux.HandleFunc("/status", extra.StatusHandler(n.cfg, n.store, n.logger))

	httpServer, listenerErrChan, err := transport.StartHTTPServer(ctx, n.logger, n.cfg, mux, overwriteListenAddr)
	if err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	n.httpServer = httpServer

	go func() {
		select {
		case err, ok := <-listenerErrChan:
			if ok && err != nil {
				n.logger.Error("HTTP listener failed", zap.Error(err))
			}
		case <-ctx.Done():
		}
	}()

	// Monitor the parent context for cancellation.
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		transport.ShutdownHTTPServer(shutdownCtx, n.logger, n.httpServer)

		if n.store != nil {
			if err := n.store.Close(); err != nil {
				n.logger.Error("Cache store close error", zap.Error(err))
			}
		}
		if n.journal != nil {
			if err := n.journal.Close(); err != nil {
				n.logger.Error("History journal close error", zap.Error(err))
			}
		}

		n.logger.Info("Research node stopped")
		close(n.done)
	}()

	n.logger.Info("Research node started successfully")
	return nil
}

// WaitForShutdown blocks until shutdown completes or timeout passes.
func (n *Node) WaitForShutdown(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-n.done:
		return true
	case <-timer.C:
		n.logger.Warn("Shutdown timeout reached, forcing exit")
		return false
	}
}

// Start creates and starts a node in one call.
func Start(ctx context.Context, logger *zap.Logger, cfg config.IConfig, overwriteListenAddr string) (*Node, error) {
	n, err := New(ctx, logger, cfg, nil)
	if err != nil {
		return nil, err
	}
	if err := n.Start(ctx, http.NewServeMux(), overwriteListenAddr); err != nil {
		return nil, err
	}
	return n, nil
}
