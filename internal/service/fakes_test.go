package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sakif/geopoint/internal/apperror"
	"github.com/sakif/geopoint/internal/auth"
	"github.com/sakif/geopoint/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeUserRepo is an in-memory repository.UserRepository. Hooks let a test
// inject the failures a real store produces under contention or load.
type fakeUserRepo struct {
	mu     sync.Mutex
	byExt  map[string]*model.User
	nextID int
	calls  []string // method names, in call order

	// loseCreateRace makes the next Create behave like the loser of a race:
	// a competing login inserts the row first, then this Create gets Conflict.
	loseCreateRace *model.Claims
	alwaysConflict bool
	// block makes every call wait for its context to end.
	block bool
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byExt: make(map[string]*model.User), nextID: 1}
}

func (f *fakeUserRepo) record(ctx context.Context, name string) error {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	block := f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (f *fakeUserRepo) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeUserRepo) insertLocked(c model.Claims) *model.User {
	now := time.Now().UTC()
	u := &model.User{
		ID:         "u" + strconv.Itoa(f.nextID),
		ExternalID: c.ExternalID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	f.nextID++
	applyClaims(u, c)
	f.byExt[c.ExternalID] = u
	return u
}

func applyClaims(u *model.User, c model.Claims) {
	u.Email, u.FullName, u.FirstName, u.LastName, u.Avatar = c.Email, c.FullName, c.FirstName, c.LastName, c.Avatar
}

func (f *fakeUserRepo) FindByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	if err := f.record(ctx, "FindByExternalID"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byExt[externalID]
	if !ok {
		return nil, apperror.NotFound("user", externalID)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	if err := f.record(ctx, "GetByID"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byExt {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", id)
}

func (f *fakeUserRepo) Create(ctx context.Context, c model.Claims) (*model.User, error) {
	if err := f.record(ctx, "Create"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.alwaysConflict {
		return nil, apperror.Conflict("user", c.ExternalID)
	}
	if f.loseCreateRace != nil {
		f.insertLocked(*f.loseCreateRace)
		f.loseCreateRace = nil
	}
	if _, exists := f.byExt[c.ExternalID]; exists {
		return nil, apperror.Conflict("user", c.ExternalID)
	}
	cp := *f.insertLocked(c)
	return &cp, nil
}

func (f *fakeUserRepo) UpdateProfileByExternalID(ctx context.Context, externalID string, c model.Claims) (*model.User, error) {
	if err := f.record(ctx, "UpdateProfileByExternalID"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byExt[externalID]
	if !ok {
		return nil, apperror.NotFound("user", externalID)
	}
	applyClaims(u, c)
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) TouchStatus(ctx context.Context, externalID, status string) error {
	if err := f.record(ctx, "TouchStatus"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byExt[externalID]
	if !ok {
		return apperror.NotFound("user", externalID)
	}
	now := time.Now().UTC()
	u.Status, u.LastSeen = status, &now
	return nil
}

func (f *fakeUserRepo) ListSummaries(ctx context.Context) ([]model.UserSummary, error) {
	if err := f.record(ctx, "ListSummaries"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.UserSummary, 0, len(f.byExt))
	for _, u := range f.byExt {
		out = append(out, model.UserSummary{ID: u.ID, FullName: u.FullName, Status: u.Status, LastSeen: u.LastSeen})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

// fakeVerifier returns its fixed claims for any non-empty token.
type fakeVerifier struct {
	claims model.Claims
	err    error
	delay  time.Duration
	onCall func()
}

func (v *fakeVerifier) Verify(ctx context.Context, token string) (*model.Claims, error) {
	if v.onCall != nil {
		v.onCall()
	}
	if v.delay > 0 {
		select {
		case <-time.After(v.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if v.err != nil {
		return nil, v.err
	}
	if token == "" {
		return nil, apperror.InvalidRequest("token", "token is required")
	}
	c := v.claims
	return &c, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	require.NoError(t, err)
	return ts
}

// newTestAuthService wires an AuthService with the "google" provider backed
// by v.
func newTestAuthService(t *testing.T, repo *fakeUserRepo, v auth.Verifier) *AuthService {
	t.Helper()
	reg := auth.NewRegistry()
	reg.Register("google", v)
	return NewAuthService(repo, reg, newTestTokens(t), Timeouts{}, discardLogger())
}
