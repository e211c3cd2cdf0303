package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/geopoint/internal/apperror"
	"github.com/sakif/geopoint/internal/model"
	"github.com/sakif/geopoint/internal/repository"
)

// MaxStatusLength caps the free-form presence string, in characters.
const MaxStatusLength = 64

// PresenceService records "status + last seen" for existing users. It never
// creates users and never touches profile fields.
type PresenceService struct {
	users    repository.UserRepository
	timeouts Timeouts
	logger   *slog.Logger
}

func NewPresenceService(users repository.UserRepository, timeouts Timeouts, logger *slog.Logger) *PresenceService {
	return &PresenceService{
		users:    users,
		timeouts: timeouts.withDefaults(),
		logger:   logger,
	}
}

// SetStatus stores status for the user with externalID and stamps last-seen.
// Input is checked before any write; an unknown user is NotFound. The external
// id is an opaque provider key and is looked up exactly as given.
func (s *PresenceService) SetStatus(ctx context.Context, externalID, status string) error {
	status = strings.TrimSpace(status)

	if strings.TrimSpace(externalID) == "" {
		return apperror.InvalidRequest("externalId", "externalId is required")
	}
	if status == "" {
		return apperror.InvalidRequest("status", "status is required")
	}
	if utf8.RuneCountInString(status) > MaxStatusLength {
		return apperror.InvalidRequest("status",
			fmt.Sprintf("status must be %d characters or less", MaxStatusLength))
	}

	err := boundedErr(ctx, s.timeouts.Store, "storage", func(c context.Context) error {
		return s.users.TouchStatus(c, externalID, status)
	})
	if err != nil {
		return err
	}

	s.logger.Debug("status updated", slog.String("status", status))
	return nil
}

// List returns the user directory sorted by full name.
func (s *PresenceService) List(ctx context.Context) ([]model.UserSummary, error) {
	users, err := bounded(ctx, s.timeouts.Store, "storage", s.users.ListSummaries)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []model.UserSummary{}
	}
	return users, nil
}
