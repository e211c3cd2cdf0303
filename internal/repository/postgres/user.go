package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/xid"
	"github.com/sakif/geopoint/internal/apperror"
	"github.com/sakif/geopoint/internal/model"
	"github.com/sakif/geopoint/internal/repository"
)

var _ repository.UserRepository = (*UserStore)(nil)

type UserStore struct {
	pool *pgxpool.Pool
}

const userColumns = `id, external_id, email, full_name, first_name, last_name, avatar,
	status, last_seen, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.ExternalID,
		&u.Email,
		&u.FullName,
		&u.FirstName,
		&u.LastName,
		&u.Avatar,
		&u.Status,
		&u.LastSeen,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UserStore) FindByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE external_id = $1`,
		externalID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user", externalID)
		}
		return nil, fmt.Errorf("postgres: looking up user by external id: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("postgres: getting user %s: %w", id, err)
	}
	return u, nil
}

// Create inserts a new user. A concurrent insert of the same external id
// fails on the UNIQUE constraint and is reported as apperror.ErrConflict.
func (s *UserStore) Create(ctx context.Context, claims model.Claims) (*model.User, error) {
	now := time.Now().UTC()
	u, err := scanUser(s.pool.QueryRow(ctx,
		`INSERT INTO users (id, external_id, email, full_name, first_name, last_name, avatar, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		 RETURNING `+userColumns,
		xid.New().String(),
		claims.ExternalID,
		claims.Email,
		claims.FullName,
		claims.FirstName,
		claims.LastName,
		claims.Avatar,
		now,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Conflict("user", claims.ExternalID)
		}
		return nil, fmt.Errorf("postgres: inserting user: %w", err)
	}
	return u, nil
}

// UpdateProfileByExternalID overwrites the profile columns in one statement
// and returns the row as written.
func (s *UserStore) UpdateProfileByExternalID(ctx context.Context, externalID string, claims model.Claims) (*model.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`UPDATE users
		 SET email = $1, full_name = $2, first_name = $3, last_name = $4, avatar = $5, updated_at = $6
		 WHERE external_id = $7
		 RETURNING `+userColumns,
		claims.Email,
		claims.FullName,
		claims.FirstName,
		claims.LastName,
		claims.Avatar,
		time.Now().UTC(),
		externalID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user", externalID)
		}
		return nil, fmt.Errorf("postgres: updating user profile: %w", err)
	}
	return u, nil
}

func (s *UserStore) TouchStatus(ctx context.Context, externalID, status string) error {
	if strings.TrimSpace(status) == "" {
		return apperror.InvalidRequest("status", "status is required")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET status = $1, last_seen = $2 WHERE external_id = $3`,
		status,
		time.Now().UTC(),
		externalID,
	)
	if err != nil {
		return fmt.Errorf("postgres: touching user status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("user", externalID)
	}
	return nil
}

func (s *UserStore) ListSummaries(ctx context.Context) ([]model.UserSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, full_name, status, last_seen
		 FROM users
		 ORDER BY full_name, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing users: %w", err)
	}
	defer rows.Close()

	summaries := make([]model.UserSummary, 0)
	for rows.Next() {
		var sum model.UserSummary
		if err := rows.Scan(&sum.ID, &sum.FullName, &sum.Status, &sum.LastSeen); err != nil {
			return nil, fmt.Errorf("postgres: scanning user row: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating users: %w", err)
	}
	return summaries, nil
}
