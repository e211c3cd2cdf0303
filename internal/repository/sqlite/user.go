package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/geopoint/internal/apperror"
	"github.com/sakif/geopoint/internal/model"
	"github.com/sakif/geopoint/internal/repository"
)

// compile-time check that *UserStore implements repository.UserRepository
var _ repository.UserRepository = (*UserStore)(nil)

// UserStore is the users table.
type UserStore struct {
	conn *sql.DB
}

const userColumns = `id, external_id, email, full_name, first_name, last_name, avatar,
	status, last_seen, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u        model.User
		lastSeen sql.NullTime
	)
	err := row.Scan(
		&u.ID,
		&u.ExternalID,
		&u.Email,
		&u.FullName,
		&u.FirstName,
		&u.LastName,
		&u.Avatar,
		&u.Status,
		&lastSeen,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		u.LastSeen = &t
	}
	return &u, nil
}

// FindByExternalID looks a user up by the identity provider's subject.
func (s *UserStore) FindByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	u, err := scanUser(s.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE external_id = ?`,
		externalID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", externalID)
		}
		return nil, fmt.Errorf("sqlite: looking up user by external id: %w", err)
	}
	return u, nil
}

// GetByID retrieves a user by their surrogate ID.
func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(s.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`,
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// Create inserts a brand-new user for the given claims.
//
// There is no existence check here. If another request created the same
// external identity first, the UNIQUE constraint rejects this INSERT and we
// report apperror.ErrConflict; the caller decides how to recover.
func (s *UserStore) Create(ctx context.Context, claims model.Claims) (*model.User, error) {
	now := time.Now().UTC()
	u := &model.User{
		ID:         xid.New().String(),
		ExternalID: claims.ExternalID,
		Email:      claims.Email,
		FullName:   claims.FullName,
		FirstName:  claims.FirstName,
		LastName:   claims.LastName,
		Avatar:     claims.Avatar,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO users (id, external_id, email, full_name, first_name, last_name, avatar, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID,
		u.ExternalID,
		u.Email,
		u.FullName,
		u.FirstName,
		u.LastName,
		u.Avatar,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, apperror.Conflict("user", claims.ExternalID)
		}
		return nil, fmt.Errorf("sqlite: inserting user: %w", err)
	}

	return u, nil
}

// UpdateProfileByExternalID overwrites the profile fields with the claims and
// returns the stored record. Status and last_seen are not touched.
//
// The UPDATE and the read-back share one transaction, so the returned record
// is exactly what this call wrote.
func (s *UserStore) UpdateProfileByExternalID(ctx context.Context, externalID string, claims model.Claims) (*model.User, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning profile update: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE users
		 SET email = ?, full_name = ?, first_name = ?, last_name = ?, avatar = ?, updated_at = ?
		 WHERE external_id = ?`,
		claims.Email,
		claims.FullName,
		claims.FirstName,
		claims.LastName,
		claims.Avatar,
		time.Now().UTC(),
		externalID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating user profile: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, apperror.NotFound("user", externalID)
	}

	u, err := scanUser(tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE external_id = ?`,
		externalID,
	))
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading updated user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing profile update: %w", err)
	}

	return u, nil
}

// TouchStatus sets the user's status and stamps last_seen with the current time.
func (s *UserStore) TouchStatus(ctx context.Context, externalID, status string) error {
	if strings.TrimSpace(status) == "" {
		return apperror.InvalidRequest("status", "status is required")
	}

	result, err := s.conn.ExecContext(ctx,
		`UPDATE users SET status = ?, last_seen = ? WHERE external_id = ?`,
		status,
		time.Now().UTC(),
		externalID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: touching user status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", externalID)
	}

	return nil
}

// ListSummaries returns the user directory sorted by full name.
func (s *UserStore) ListSummaries(ctx context.Context) ([]model.UserSummary, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, full_name, status, last_seen
		 FROM users
		 ORDER BY full_name, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	summaries := make([]model.UserSummary, 0)
	for rows.Next() {
		var (
			sum      model.UserSummary
			lastSeen sql.NullTime
		)
		if err := rows.Scan(&sum.ID, &sum.FullName, &sum.Status, &lastSeen); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		if lastSeen.Valid {
			t := lastSeen.Time
			sum.LastSeen = &t
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}

	return summaries, nil
}
