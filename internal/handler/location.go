package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/geopoint/internal/apperror"
	"github.com/sakif/geopoint/internal/model"
)

// LocationBook is what LocationHandler needs from the service layer.
type LocationBook interface {
	Create(ctx context.Context, name string, latitude, longitude float64) (*model.Location, error)
	List(ctx context.Context) ([]model.Location, error)
}

type LocationHandler struct {
	locations LocationBook
	logger    *slog.Logger
}

func NewLocationHandler(locations LocationBook, logger *slog.Logger) *LocationHandler {
	return &LocationHandler{locations: locations, logger: logger}
}

// Coordinates are pointers so a missing field is told apart from 0.
type createLocationRequest struct {
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// HandleCreate stores a new location and returns it with 201.
//
// HTTP: POST /locations  {"name": "...", "latitude": 1.5, "longitude": 2.5}
func (h *LocationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createLocationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.Latitude == nil {
		writeError(w, r, h.logger, apperror.InvalidRequest("latitude", "latitude is required"))
		return
	}
	if req.Longitude == nil {
		writeError(w, r, h.logger, apperror.InvalidRequest("longitude", "longitude is required"))
		return
	}

	loc, err := h.locations.Create(r.Context(), req.Name, *req.Latitude, *req.Longitude)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, loc)
}

// HandleList returns every location, newest first.
//
// HTTP: GET /locations
func (h *LocationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	locs, err := h.locations.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, locs)
}
