package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/geopoint/internal/apperror"
)

// Pinger is satisfied by both storage backends.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler answers the root path with the storage backend's health.
type HealthHandler struct {
	db      Pinger
	backend string
	timeout time.Duration
	logger  *slog.Logger
}

func NewHealthHandler(db Pinger, backend string, timeout time.Duration, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, backend: backend, timeout: timeout, logger: logger}
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// HandleHealth pings storage and reports {"status":"ok","database":"<backend>"}.
//
// HTTP: GET /
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		writeError(w, r, h.logger, apperror.Unavailable("storage", err))
		return
	}

	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Database: h.backend})
}
