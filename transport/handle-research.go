package transport

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/deepscout/deepscout/orchestrator"
	"github.com/deepscout/deepscout/research"
)

// researchRequest is the body of a synchronous POST request.
type researchRequest struct {
	Query   string           `json:"query"`
	Options research.Options `json:"options"`
}

// HandleResearch serves the synchronous JSON endpoint. It runs the same
// orchestration as the stream but buffers everything and answers with a
// single envelope; progress events are discarded.
func (t *Transport) HandleResearch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := t.logger.With(
			zap.String("path", r.URL.Path),
			zap.String("remoteAddr", r.RemoteAddr),
		)

		switch r.Method {
		case http.MethodPost:
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

		var req researchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			sendAPIError(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON", logger)
			return
		}
		query, err := research.NewQuery(req.Query, req.Options)
		if err != nil {
			sendAPIError(w, http.StatusBadRequest, "invalid_query", queryErrorMessage(err), logger)
			return
		}
		logger = logger.With(zap.String("query", query.Text))
		logger.Info("Synchronous research request accepted")

		pub := &collectingPublisher{}
		if err := t.orchestrator.Run(r.Context(), query, pub); err != nil {
			logger.Error("Research run failed", zap.Error(err))
			sendAPIError(w, http.StatusInternalServerError, "internal", "Unable to process your request", logger)
			return
		}

		setCORSHeaders(w)
		switch {
		case pub.result != nil:
			sendJSONResponse(w, http.StatusOK, apiEnvelope{Success: true, Data: pub.result}, logger)
		case pub.errKind != "":
			status := http.StatusInternalServerError
			if pub.errKind == research.ErrKindTimeout {
				status = http.StatusGatewayTimeout
			}
			sendAPIError(w, status, string(pub.errKind), pub.errMessage, logger)
		default:
			// The client context was canceled before a terminal event; there
			// is nobody left to answer, but write a response anyway in case
			// the connection is still up.
			sendAPIError(w, http.StatusInternalServerError, "canceled", "Research canceled", logger)
		}
	}
}

var _ orchestrator.Publisher = (*collectingPublisher)(nil)

// collectingPublisher buffers the terminal event for synchronous responses.
// Progress and keep-alives are accepted and dropped.
type collectingPublisher struct {
	result     *research.Result
	errKind    research.ErrorKind
	errMessage string
}

func (p *collectingPublisher) Progress(research.ProgressEvent) error { return nil }
func (p *collectingPublisher) KeepAlive() error                      { return nil }

func (p *collectingPublisher) Complete(result *research.Result) error {
	p.result = result
	return nil
}

func (p *collectingPublisher) Error(kind research.ErrorKind, message string) error {
	p.errKind = kind
	p.errMessage = message
	return nil
}
