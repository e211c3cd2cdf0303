package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sakif/geopoint/internal/model"
	"github.com/sakif/geopoint/internal/repository"
)

var _ repository.LocationRepository = (*LocationStore)(nil)

// LocationStore is the locations table.
type LocationStore struct {
	conn *sql.DB
}

// CreateLocation inserts loc, filling in its ID and, when unset, CreatedAt.
func (s *LocationStore) CreateLocation(ctx context.Context, loc *model.Location) error {
	loc.ID = uuid.NewString()
	if loc.CreatedAt.IsZero() {
		loc.CreatedAt = time.Now().UTC()
	}

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO locations (id, name, latitude, longitude, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		loc.ID,
		loc.Name,
		loc.Latitude,
		loc.Longitude,
		loc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating location: %w", err)
	}
	return nil
}

// ListLocations returns every location, newest first.
func (s *LocationStore) ListLocations(ctx context.Context) ([]model.Location, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, name, latitude, longitude, created_at
		 FROM locations
		 ORDER BY created_at DESC, rowid DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing locations: %w", err)
	}
	defer rows.Close()

	locations := make([]model.Location, 0)
	for rows.Next() {
		var l model.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Latitude, &l.Longitude, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning location row: %w", err)
		}
		locations = append(locations, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating locations: %w", err)
	}

	return locations, nil
}
