// Package transport exposes the research orchestrator over HTTP: an SSE
// streaming endpoint, a synchronous JSON endpoint, the run history listing,
// and server status.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/deepscout/deepscout/config"
	"github.com/deepscout/deepscout/history"
	"github.com/deepscout/deepscout/orchestrator"
)

const (
	StreamPath   = "/api/research/stream" // SSE endpoint
	ResearchPath = "/api/research"        // Synchronous endpoint
	HistoryPath  = "/api/research/history"

	// Query parameter carrying the research question on GET requests.
	queryParamKey = "query"

	contentTypeJSON = "application/json"
	contentTypeSSE  = "text/event-stream"
)

// Transport manages the research HTTP endpoints.
type Transport struct {
	orchestrator *orchestrator.Orchestrator
	logger       *zap.Logger
	config       config.IConfig
	journal      *history.SQLiteStore
	limiter      *hostLimiter
}

// TransportOption defines a function type for configuring the Transport.
type TransportOption func(*Transport) error

// WithHistory attaches the run journal so HistoryPath can serve entries.
func WithHistory(journal *history.SQLiteStore) TransportOption {
	return func(t *Transport) error {
		t.journal = journal
		return nil
	}
}

// New creates the research HTTP transport handler.
func New(orch *orchestrator.Orchestrator, logger *zap.Logger, cfg config.IConfig, options ...TransportOption) (*Transport, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if orch == nil {
		return nil, errors.New("orchestrator cannot be nil")
	}
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	rps, err := cfg.RatePerSecond()
	if err != nil {
		return nil, fmt.Errorf("failed to get rate limit from config: %w", err)
	}
	burst, err := cfg.RateBurst()
	if err != nil {
		return nil, fmt.Errorf("failed to get rate burst from config: %w", err)
	}

	transport := &Transport{
		orchestrator: orch,
		logger:       logger.Named("transport"),
		config:       cfg,
		limiter:      newHostLimiter(rps, burst),
	}

	for _, option := range options {
		if err := option(transport); err != nil {
			return nil, fmt.Errorf("failed to apply transport option: %w", err)
		}
	}

	logger.Info("Research HTTP transport created",
		zap.Float64("rps", rps),
		zap.Int("burst", burst),
		zap.Bool("historyEnabled", transport.journal != nil),
	)
	return transport, nil
}

// RegisterHandlers registers the research handlers with the HTTP mux.
func (t *Transport) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc(StreamPath, t.HandleStream())
	mux.HandleFunc(ResearchPath, t.HandleResearch())
	mux.HandleFunc(HistoryPath, t.HandleHistory())
	t.logger.Info("Registered research handlers",
		zap.String("stream", StreamPath),
		zap.String("sync", ResearchPath),
		zap.String("history", HistoryPath),
	)
}

// apiError is the error half of the JSON envelope.
type apiError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// apiEnvelope is the uniform JSON response shape for non-streaming endpoints.
type apiEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

func sendJSONResponse(w http.ResponseWriter, statusCode int, data interface{}, logger *zap.Logger) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logger.Error("Failed to encode JSON response", zap.Error(err))
		}
	}
}

func sendAPIError(w http.ResponseWriter, statusCode int, code, message string, logger *zap.Logger) {
	logger.Warn("Sending API error",
		zap.Int("status", statusCode),
		zap.String("code", code),
		zap.String("message", message),
	)
	sendJSONResponse(w, statusCode, apiEnvelope{
		Success: false,
		Error:   &apiError{Code: code, Message: message},
	}, logger)
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

// allowRequest applies the per-host rate limit and writes a 429 envelope when
// the caller is over budget.
func (t *Transport) allowRequest(w http.ResponseWriter, r *http.Request, logger *zap.Logger) bool {
	if t.limiter.Allow(r.RemoteAddr) {
		return true
	}
	logger.Warn("Rate limit exceeded", zap.String("remoteAddr", r.RemoteAddr))
	sendAPIError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests. Please slow down.", logger)
	return false
}
