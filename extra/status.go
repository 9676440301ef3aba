// Package extra holds auxiliary HTTP handlers that are not part of the
// research API surface.
package extra

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/deepscout/deepscout/cache"
	"github.com/deepscout/deepscout/config"
)

// StatusResponse represents the response structure for the status endpoint.
type StatusResponse struct {
	Config  string `json:"config"`
	Cache   string `json:"cache,omitempty"`
	Version string `json:"version,omitempty"`
}

// StatusHandler creates an HTTP handler for checking system status. store may
// be nil when the server runs without a cache backend.
func StatusHandler(cfg config.IConfig, store cache.Store, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handlerLogger := logger.With(zap.String("handler", "StatusHandler"))
		w.Header().Set("Content-Type", "application/json")

		// Always return 200 status code; degraded components are reported in
		// the body.
		w.WriteHeader(http.StatusOK)

		response := StatusResponse{
			Config: "none",
			Cache:  "none",
		}

		if err := cfg.Status(r.Context()); err != nil {
			handlerLogger.Error("Failed to get config status", zap.Error(err))
			response.Config = "error"
		} else {
			response.Config = "ok"
		}

		if version, err := cfg.ServerVersion(); err == nil {
			response.Version = version
		}

		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			if _, _, err := store.Get(ctx, "status:probe"); err != nil {
				handlerLogger.Error("Cache backend probe failed", zap.Error(err))
				response.Cache = "error"
			} else {
				response.Cache = "ok"
			}
		}

		if err := json.NewEncoder(w).Encode(response); err != nil {
			handlerLogger.Error("Failed to encode status response", zap.Error(err))
		}
	}
}
