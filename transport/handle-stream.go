package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/deepscout/deepscout/orchestrator"
	"github.com/deepscout/deepscout/research"
)

// HandleStream serves the SSE research stream. Each request runs one research
// task and streams progress, keep-alives, and a single terminal event.
func (t *Transport) HandleStream() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := t.logger.With(
			zap.String("path", r.URL.Path),
			zap.String("remoteAddr", r.RemoteAddr),
		)

		switch r.Method {
		case http.MethodGet:
			// Continue below.
		case http.MethodOptions:
			setCORSHeaders(w)
			w.WriteHeader(http.StatusNoContent)
			return
		default:
			logger.Warn("Method not allowed", zap.String("method", r.Method))
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		if !t.allowRequest(w, r, logger) {
			return
		}

		query, err := research.NewQuery(r.URL.Query().Get(queryParamKey), research.Options{})
		if err != nil {
			sendAPIError(w, http.StatusBadRequest, "invalid_query", queryErrorMessage(err), logger)
			return
		}
		logger = logger.With(zap.String("query", query.Text))

		flusher, ok := w.(http.Flusher)
		if !ok {
			logger.Error("Streaming unsupported (http.Flusher missing)")
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		setCORSHeaders(w)
		w.Header().Set("Content-Type", contentTypeSSE)
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		pub := &ssePublisher{w: w, flusher: flusher, logger: logger}
		logger.Info("SSE research stream initiated")

		if err := t.orchestrator.Run(r.Context(), query, pub); err != nil {
			logger.Error("Research run failed before streaming", zap.Error(err))
		}
		logger.Debug("SSE research stream closed")
	}
}

func queryErrorMessage(err error) string {
	switch {
	case errors.Is(err, research.ErrEmptyQuery):
		return "Query parameter is required"
	case errors.Is(err, research.ErrQueryTooLong):
		return fmt.Sprintf("Query must be at most %d characters", research.MaxQueryLength)
	default:
		return "Invalid query"
	}
}

var _ orchestrator.Publisher = (*ssePublisher)(nil)

// ssePublisher adapts the orchestrator's event sequence to one SSE response.
// Every write error means the client went away.
type ssePublisher struct {
	w       http.ResponseWriter
	flusher http.Flusher
	logger  *zap.Logger
}

func (p *ssePublisher) send(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("Failed to encode SSE payload", zap.String("event", event), zap.Error(err))
		return err
	}
	if _, err := fmt.Fprintf(p.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	p.flusher.Flush()
	return nil
}

func (p *ssePublisher) Progress(ev research.ProgressEvent) error {
	return p.send("progress", ev)
}

func (p *ssePublisher) KeepAlive() error {
	if _, err := fmt.Fprintf(p.w, ": keepalive %s\n\n", time.Now().Format(time.RFC3339)); err != nil {
		return err
	}
	p.flusher.Flush()
	return nil
}

func (p *ssePublisher) Complete(result *research.Result) error {
	return p.send("complete", apiEnvelope{Success: true, Data: result})
}

func (p *ssePublisher) Error(kind research.ErrorKind, message string) error {
	return p.send("error", sseErrorPayload{Success: false, Message: message, Code: string(kind)})
}

// sseErrorPayload is the data body of an `error` SSE event.
type sseErrorPayload struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
