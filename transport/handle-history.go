package transport

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

const defaultHistoryLimit = 50

// HandleHistory lists recent research runs from the journal, newest first.
func (t *Transport) HandleHistory() http.HandlerFunc {
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

		if t.journal == nil {
			sendAPIError(w, http.StatusNotFound, "history_disabled", "Run history is not enabled", logger)
			return
		}

		limit := defaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				sendAPIError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer", logger)
				return
			}
			limit = parsed
		}

		entries, err := t.journal.Recent(limit)
		if err != nil {
			logger.Error("Failed to read run history", zap.Error(err))
			sendAPIError(w, http.StatusInternalServerError, "internal", "Unable to read run history", logger)
			return
		}

		setCORSHeaders(w)
		sendJSONResponse(w, http.StatusOK, apiEnvelope{Success: true, Data: entries}, logger)
	}
}
