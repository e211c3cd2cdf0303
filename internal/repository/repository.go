// Package repository declares the storage contracts. The sqlite and postgres
// sub-packages implement them; services only ever see these interfaces.
package repository

import (
	"context"

	"github.com/sakif/geopoint/internal/model"
)

// UserRepository owns persistent user records.
//
// Every write is a single statement, so a partially applied profile update
// is never observable. Errors are *apperror.AppError for the expected cases:
//   - ErrNotFound     when the external id (or surrogate id) is unknown
//   - ErrConflict     when Create races another Create for the same identity
//   - ErrInvalidRequest when TouchStatus gets an empty status
type UserRepository interface {
	FindByExternalID(ctx context.Context, externalID string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	Create(ctx context.Context, claims model.Claims) (*model.User, error)
	UpdateProfileByExternalID(ctx context.Context, externalID string, claims model.Claims) (*model.User, error)
	TouchStatus(ctx context.Context, externalID, status string) error
	ListSummaries(ctx context.Context) ([]model.UserSummary, error)
}

// LocationRepository stores immutable geographic points.
type LocationRepository interface {
	CreateLocation(ctx context.Context, loc *model.Location) error
	ListLocations(ctx context.Context) ([]model.Location, error)
}
