package handler

import (
	"context"
	"net/http"
	"time"

	"minidoodle/pkg/db"
	httputil "minidoodle/pkg/http"
	"minidoodle/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

const readyTimeout = 2 * time.Second

type HealthResponse struct {
	Status   string `json:"status"`
	Backend  string `json:"backend,omitempty"`
	Database string `json:"database,omitempty"`
}

// HealthHandler serves liveness and readiness. Readiness pings every
// configured dependency.
type HealthHandler struct {
	backend string
	pingers []db.Pinger
	log     *logger.Logger
}

func NewHealthHandler(backend string, log *logger.Logger, pingers ...db.Pinger) *HealthHandler {
	return &HealthHandler{
		backend: backend,
		pingers: pingers,
		log:     log,
	}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	for _, p := range h.pingers {
		if err := p.Ping(ctx); err != nil {
			h.log.Error("Database health check failed",
				"error", err,
				"backend", h.backend,
				"path", r.URL.Path,
			)
			if writeErr := httputil.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status:   "unavailable",
				Backend:  h.backend,
				Database: "error",
			}); writeErr != nil {
				h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", writeErr)
			}
			return
		}
	}

	if err := httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:   "ready",
		Backend:  h.backend,
		Database: "ok",
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}
