package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/sakif/geopoint/internal/apperror"
	"github.com/sakif/geopoint/internal/model"
	"github.com/sakif/geopoint/internal/repository"
)

const MaxLocationNameLength = 200

// LocationService validates and stores named geographic points.
type LocationService struct {
	repo     repository.LocationRepository
	timeouts Timeouts
	logger   *slog.Logger
}

func NewLocationService(repo repository.LocationRepository, timeouts Timeouts, logger *slog.Logger) *LocationService {
	return &LocationService{
		repo:     repo,
		timeouts: timeouts.withDefaults(),
		logger:   logger,
	}
}

// Create validates the point and saves it. The repository assigns the id and
// creation time.
func (s *LocationService) Create(ctx context.Context, name string, latitude, longitude float64) (*model.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.InvalidRequest("name", "name is required")
	}
	if utf8.RuneCountInString(name) > MaxLocationNameLength {
		return nil, apperror.InvalidRequest("name",
			fmt.Sprintf("name must be %d characters or less", MaxLocationNameLength))
	}
	// NaN fails both comparisons, so check it explicitly.
	if math.IsNaN(latitude) || latitude < -90 || latitude > 90 {
		return nil, apperror.InvalidRequest("latitude", "latitude must be between -90 and 90")
	}
	if math.IsNaN(longitude) || longitude < -180 || longitude > 180 {
		return nil, apperror.InvalidRequest("longitude", "longitude must be between -180 and 180")
	}

	loc := &model.Location{Name: name, Latitude: latitude, Longitude: longitude}
	err := boundedErr(ctx, s.timeouts.Store, "storage", func(c context.Context) error {
		return s.repo.CreateLocation(c, loc)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("location created",
		slog.String("id", loc.ID),
		slog.String("name", loc.Name),
	)
	return loc, nil
}

// List returns every location, newest first.
func (s *LocationService) List(ctx context.Context) ([]model.Location, error) {
	locs, err := bounded(ctx, s.timeouts.Store, "storage", s.repo.ListLocations)
	if err != nil {
		return nil, err
	}
	if locs == nil {
		locs = []model.Location{}
	}
	return locs, nil
}
