package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/geopoint/internal/model"
)

// PresenceTracker is what UserHandler needs from the service layer.
type PresenceTracker interface {
	SetStatus(ctx context.Context, externalID, status string) error
	List(ctx context.Context) ([]model.UserSummary, error)
}

// UserHandler serves the user directory and presence updates.
type UserHandler struct {
	presence PresenceTracker
	logger   *slog.Logger
}

func NewUserHandler(presence PresenceTracker, logger *slog.Logger) *UserHandler {
	return &UserHandler{presence: presence, logger: logger}
}

// HandleList returns every known user with their presence, sorted by name.
//
// HTTP: GET /users
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.presence.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

type setStatusRequest struct {
	ExternalID string `json:"externalId"`
	Status     string `json:"status"`
}

// HandleSetStatus records a status for an existing user.
//
// HTTP: POST /users/status  {"externalId": "...", "status": "online"}
func (h *UserHandler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.presence.SetStatus(r.Context(), req.ExternalID, req.Status); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}
