package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakif/geopoint/internal/model"
	"github.com/sakif/geopoint/internal/repository"
)

var _ repository.LocationRepository = (*LocationStore)(nil)

type LocationStore struct {
	pool *pgxpool.Pool
}

// CreateLocation inserts loc and fills in the ID and creation time chosen by
// the database.
func (s *LocationStore) CreateLocation(ctx context.Context, loc *model.Location) error {
	id := uuid.New()

	var err error
	if loc.CreatedAt.IsZero() {
		err = s.pool.QueryRow(ctx,
			`INSERT INTO locations (id, name, latitude, longitude)
			 VALUES ($1, $2, $3, $4)
			 RETURNING created_at`,
			id, loc.Name, loc.Latitude, loc.Longitude,
		).Scan(&loc.CreatedAt)
	} else {
		_, err = s.pool.Exec(ctx,
			`INSERT INTO locations (id, name, latitude, longitude, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			id, loc.Name, loc.Latitude, loc.Longitude, loc.CreatedAt,
		)
	}
	if err != nil {
		return fmt.Errorf("postgres: creating location: %w", err)
	}

	loc.ID = id.String()
	return nil
}

// ListLocations returns every location, newest first.
func (s *LocationStore) ListLocations(ctx context.Context) ([]model.Location, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, name, latitude, longitude, created_at
		 FROM locations
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing locations: %w", err)
	}
	defer rows.Close()

	locations := make([]model.Location, 0)
	for rows.Next() {
		var l model.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Latitude, &l.Longitude, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scanning location row: %w", err)
		}
		locations = append(locations, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating locations: %w", err)
	}
	return locations, nil
}
