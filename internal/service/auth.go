// Package service holds the business rules. Handlers call services, services
// call repositories and verifiers through interfaces, and nothing here knows
// about HTTP or SQL.
//
//	Handler (HTTP) → Service (rules, timeouts) → Repository (DB)
//	                                           ↘ auth.Verifier (identity provider)
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/geopoint/internal/apperror"
	"github.com/sakif/geopoint/internal/auth"
	"github.com/sakif/geopoint/internal/model"
	"github.com/sakif/geopoint/internal/repository"
)

// maxReconcileAttempts bounds the create/update loop. Two attempts already
// cover a lost create race; the third absorbs a store that is slow to expose
// the winning row.
const maxReconcileAttempts = 3

// AuthService turns a verified identity into exactly one local user.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users     repository.UserRepository → read/write user records
//   - verifiers *auth.Registry            → provider name → token verifier
//   - tokens    *auth.TokenService        → session JWTs; nil disables sessions
//   - timeouts  Timeouts                  → bounds for every outbound call
type AuthService struct {
	users     repository.UserRepository
	verifiers *auth.Registry
	tokens    *auth.TokenService
	timeouts  Timeouts
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	verifiers *auth.Registry,
	tokens *auth.TokenService,
	timeouts Timeouts,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		verifiers: verifiers,
		tokens:    tokens,
		timeouts:  timeouts.withDefaults(),
		logger:    logger,
	}
}

// LoginResult bundles the user view and, when sessions are enabled, a signed
// session token so the handler can respond and set the cookie in one step.
type LoginResult struct {
	User  *model.UserView
	Token string // empty when sessions are disabled
}

// Login verifies token with the named provider and reconciles the identity.
//
// A missing token is rejected before the provider is resolved. The verifier
// call completes (or times out) before the first repository call, so no
// storage connection is held while waiting on the provider.
func (s *AuthService) Login(ctx context.Context, provider, token string) (*LoginResult, error) {
	if strings.TrimSpace(token) == "" {
		return nil, apperror.InvalidRequest("token", "token is required")
	}

	verifier, err := s.verifiers.Get(provider)
	if err != nil {
		return nil, err
	}

	claims, err := bounded(ctx, s.timeouts.Verify, "identity provider", func(c context.Context) (*model.Claims, error) {
		return verifier.Verify(c, token)
	})
	if err != nil {
		return nil, err
	}

	view, err := s.Reconcile(ctx, *claims)
	if err != nil {
		return nil, err
	}

	result := &LoginResult{User: view}
	if s.tokens != nil {
		result.Token, err = s.tokens.Generate(view.ID)
		if err != nil {
			return nil, fmt.Errorf("service/auth: generating session for user %s: %w", view.ID, err)
		}
	}

	s.logger.Info("user logged in",
		slog.String("provider", provider),
		slog.String("userID", view.ID),
	)
	return result, nil
}

// Reconcile maps verified claims to the single stored user for
// claims.ExternalID, creating it on first sight and overwriting the profile
// on every later call.
//
// Concurrent first logins race on Create. The storage UNIQUE constraint
// picks one winner; every loser gets Conflict and goes back round the loop,
// this time finding the row and updating it. All callers end up with the
// same surrogate id. Conflict never leaves this method.
func (s *AuthService) Reconcile(ctx context.Context, claims model.Claims) (*model.UserView, error) {
	if claims.ExternalID == "" {
		return nil, apperror.InvalidRequest("externalId", "claims carry no external id")
	}

	for attempt := 1; attempt <= maxReconcileAttempts; attempt++ {
		user, err := s.reconcileOnce(ctx, claims)
		if err == nil {
			view := user.View()
			return &view, nil
		}
		if !errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		s.logger.Debug("lost create race, retrying as update",
			slog.Int("attempt", attempt),
		)
	}

	return nil, fmt.Errorf("service/auth: reconcile did not settle after %d attempts", maxReconcileAttempts)
}

func (s *AuthService) reconcileOnce(ctx context.Context, claims model.Claims) (*model.User, error) {
	d := s.timeouts.Store

	_, err := bounded(ctx, d, "storage", func(c context.Context) (*model.User, error) {
		return s.users.FindByExternalID(c, claims.ExternalID)
	})
	switch {
	case err == nil:
		u, err := bounded(ctx, d, "storage", func(c context.Context) (*model.User, error) {
			return s.users.UpdateProfileByExternalID(c, claims.ExternalID, claims)
		})
		return u, err
	case errors.Is(err, apperror.ErrNotFound):
		u, err := bounded(ctx, d, "storage", func(c context.Context) (*model.User, error) {
			return s.users.Create(c, claims)
		})
		if err == nil {
			s.logger.Info("user created", slog.String("userID", u.ID))
		}
		return u, err
	default:
		return nil, err
	}
}

// CurrentUser returns the view for a surrogate id taken from a session.
func (s *AuthService) CurrentUser(ctx context.Context, id string) (*model.UserView, error) {
	if id == "" {
		return nil, apperror.InvalidRequest("id", "user id is required")
	}

	user, err := bounded(ctx, s.timeouts.Store, "storage", func(c context.Context) (*model.User, error) {
		return s.users.GetByID(c, id)
	})
	if err != nil {
		return nil, err
	}

	view := user.View()
	return &view, nil
}
