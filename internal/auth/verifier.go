package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sakif/geopoint/internal/apperror"
	"github.com/sakif/geopoint/internal/model"
)

// Verifier validates an opaque identity token from one external provider and
// returns the verified claims.
//
// Implementations must:
//   - fail with apperror.ErrInvalidRequest on an empty token, before any I/O
//   - fail with apperror.ErrInvalidToken on a bad signature, audience or expiry,
//     and also when the provider cannot be reached
//   - fail with apperror.ErrUnavailable only when ctx ran out first
//   - leave optional claims empty instead of failing
//
// Verifiers return facts only. Creating or updating users is not their job.
type Verifier interface {
	Verify(ctx context.Context, token string) (*model.Claims, error)
}

// Registry maps provider names (the {provider} path segment) to verifiers.
type Registry struct {
	verifiers map[string]Verifier
}

func NewRegistry() *Registry {
	return &Registry{verifiers: make(map[string]Verifier)}
}

// Register adds v under name, replacing any earlier registration.
func (r *Registry) Register(name string, v Verifier) {
	r.verifiers[name] = v
}

// Get returns the verifier for name, or a NotFound error.
func (r *Registry) Get(name string) (Verifier, error) {
	v, ok := r.verifiers[name]
	if !ok {
		return nil, &apperror.AppError{
			Err:     apperror.ErrNotFound,
			Message: fmt.Sprintf("unknown identity provider %q", name),
		}
	}
	return v, nil
}

// Names lists the registered providers in alphabetical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.verifiers))
	for name := range r.verifiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// providerFailure classifies an error from talking to a provider. The caller
// cannot tell a bad token from an unreachable provider, so both are
// InvalidToken; only an expired deadline is reported as Unavailable.
func providerFailure(ctx context.Context, provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return apperror.Unavailable(provider+" identity provider", err)
	}
	return apperror.InvalidToken(fmt.Errorf("%s: %w", provider, err))
}
