package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthHandler answers liveness probes. check, when set, verifies the
// record store is reachable.
type HealthHandler struct {
	check  func(context.Context) error
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. check may be nil.
func NewHealthHandler(check func(context.Context) error, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{check: check, logger: logger}
}

// HandleHealth reports {"status":"ok"} or 503 {"status":"unavailable"}.
//
// HTTP: GET /healthz
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.check != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.check(ctx); err != nil {
			h.logger.Warn("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
