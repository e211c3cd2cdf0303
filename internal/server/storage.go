package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sakif/geopoint/internal/config"
	"github.com/sakif/geopoint/internal/repository"
	pgRepo "github.com/sakif/geopoint/internal/repository/postgres"
	sqliteRepo "github.com/sakif/geopoint/internal/repository/sqlite"
)

// Storage is one opened backend: its repositories plus the pool that owns
// them. The server closes it on shutdown.
type Storage struct {
	Backend   string // "postgres" or "sqlite", reported by GET /
	Users     repository.UserRepository
	Locations repository.LocationRepository

	ping  func(context.Context) error
	close func() error
}

func (s *Storage) Ping(ctx context.Context) error { return s.ping(ctx) }
func (s *Storage) Close() error                  { return s.close() }

// OpenStorage opens the backend selected by cfg.DBDriver and runs its
// migrations.
func OpenStorage(ctx context.Context, cfg config.Config) (*Storage, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		db, err := pgRepo.New(ctx, cfg.DatabaseURL, pgRepo.DefaultPoolConfig())
		if err != nil {
			return nil, err
		}
		return &Storage{
			Backend:   config.DriverPostgres,
			Users:     db.Users(),
			Locations: db.Locations(),
			ping:      db.Ping,
			close:     db.Close,
		}, nil

	case config.DriverSQLite:
		if cfg.DBPath != ":memory:" {
			// Like `mkdir -p`: create the data directory if needed.
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return nil, fmt.Errorf("server: creating database directory: %w", err)
			}
		}
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStorage(db), nil

	default:
		return nil, fmt.Errorf("server: unknown database driver %q", cfg.DBDriver)
	}
}

// NewSQLiteStorage wraps an already opened sqlite database.
func NewSQLiteStorage(db *sqliteRepo.DB) *Storage {
	return &Storage{
		Backend:   config.DriverSQLite,
		Users:     db.Users(),
		Locations: db.Locations(),
		ping:      db.Ping,
		close:     db.Close,
	}
}
