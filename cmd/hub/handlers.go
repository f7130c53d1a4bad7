package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/cognitive-hub/internal/connection"
	"github.com/rickgao/cognitive-hub/internal/router"
	"github.com/rickgao/cognitive-hub/internal/version"
)

// registerHandlers mounts the health, clock and debug endpoints.
func registerHandlers(mux *http.ServeMux, manager *connection.Manager, rt *router.Router, started time.Time, logger *slog.Logger) {
	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, struct {
			Status  string           `json:"status"`
			Version string           `json:"version"`
			Uptime  string           `json:"uptime"`
			Stats   connection.Stats `json:"connections"`
		}{
			Status:  "OK",
			Version: version.Version,
			Uptime:  time.Since(started).Round(time.Second).String(),
			Stats:   manager.Stats(),
		})
	})

	mux.HandleFunc("/time", func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		writeJSON(w, logger, map[string]any{
			"time":   now.UTC().Format(time.RFC3339Nano),
			"millis": now.UnixMilli(),
		})
	})

	mux.HandleFunc("/debug/connections", func(w http.ResponseWriter, r *http.Request) {
		listing := make(map[string][]string)
		for _, typ := range []connection.Type{connection.TypeDevice, connection.TypeController, connection.TypeApp} {
			lines := []string{}
			for _, c := range manager.Connections(typ) {
				lines = append(lines, c.String())
			}
			listing[string(typ)] = lines
		}

		writeJSON(w, logger, map[string]any{
			"stats":       manager.Stats(),
			"router":      rt.Stats(),
			"connections": listing,
		})
	})
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write response", "error", err)
	}
}
