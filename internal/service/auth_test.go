package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/geopoint/internal/apperror"
	"github.com/sakif/geopoint/internal/auth"
	"github.com/sakif/geopoint/internal/model"
	"github.com/sakif/geopoint/internal/repository/sqlite"
)

var adaClaims = model.Claims{
	ExternalID: "g-1",
	Email:      "a@x.com",
	FullName:   "Ada Lovelace",
	FirstName:  "Ada",
	LastName:   "Lovelace",
	Avatar:     "https://example.com/ada.png",
}

// =========================================================================
// Reconcile TESTS
// =========================================================================

func TestReconcile_FirstLoginCreates(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, &fakeVerifier{})

	view, err := svc.Reconcile(context.Background(), adaClaims)
	require.NoError(t, err)

	assert.NotEmpty(t, view.ID)
	assert.Equal(t, "a@x.com", view.Email)
	assert.Equal(t, "Ada Lovelace", view.FullName)
	assert.Equal(t, []string{"FindByExternalID", "Create"}, repo.callLog())
}

func TestReconcile_ReturningUserUpdates(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, &fakeVerifier{})

	first, err := svc.Reconcile(context.Background(), adaClaims)
	require.NoError(t, err)

	changed := adaClaims
	changed.Email = "b@x.com"
	second, err := svc.Reconcile(context.Background(), changed)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "surrogate id must be stable")
	assert.Equal(t, "b@x.com", second.Email)
	assert.Equal(t,
		[]string{"FindByExternalID", "Create", "FindByExternalID", "UpdateProfileByExternalID"},
		repo.callLog())
}

func TestReconcile_LastWriteWinsWithoutMerge(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, &fakeVerifier{})

	_, err := svc.Reconcile(context.Background(), adaClaims)
	require.NoError(t, err)

	// A later token without optional claims blanks them out.
	_, err = svc.Reconcile(context.Background(), model.Claims{ExternalID: "g-1", Email: "a@x.com"})
	require.NoError(t, err)

	stored := repo.byExt["g-1"]
	assert.Empty(t, stored.FullName)
	assert.Empty(t, stored.Avatar)
	assert.Empty(t, stored.FirstName)
}

func TestReconcile_LostCreateRaceConvergesOnUpdate(t *testing.T) {
	repo := newFakeUserRepo()
	winner := adaClaims
	winner.Email = "winner@x.com"
	repo.loseCreateRace = &winner
	svc := newTestAuthService(t, repo, &fakeVerifier{})

	view, err := svc.Reconcile(context.Background(), adaClaims)
	require.NoError(t, err, "Conflict must never escape")

	assert.Equal(t, "u1", view.ID, "loser must adopt the winner's record")
	assert.Equal(t, "a@x.com", view.Email, "loser's claims are applied as an update")
	assert.Len(t, repo.byExt, 1)
	assert.Equal(t,
		[]string{"FindByExternalID", "Create", "FindByExternalID", "UpdateProfileByExternalID"},
		repo.callLog())
}

func TestReconcile_PersistentConflictIsInternal(t *testing.T) {
	repo := newFakeUserRepo()
	repo.alwaysConflict = true
	svc := newTestAuthService(t, repo, &fakeVerifier{})

	_, err := svc.Reconcile(context.Background(), adaClaims)
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperror.ErrConflict)

	creates := 0
	for _, c := range repo.callLog() {
		if c == "Create" {
			creates++
		}
	}
	assert.Equal(t, maxReconcileAttempts, creates)
}

func TestReconcile_RequiresExternalID(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, &fakeVerifier{})

	_, err := svc.Reconcile(context.Background(), model.Claims{Email: "a@x.com"})
	assert.ErrorIs(t, err, apperror.ErrInvalidRequest)
	assert.Empty(t, repo.callLog())
}

func TestReconcile_StoreTimeoutIsUnavailable(t *testing.T) {
	repo := newFakeUserRepo()
	repo.block = true
	reg := auth.NewRegistry()
	svc := NewAuthService(repo, reg, nil, Timeouts{Store: 20 * time.Millisecond}, discardLogger())

	_, err := svc.Reconcile(context.Background(), adaClaims)
	assert.ErrorIs(t, err, apperror.ErrUnavailable)
}

// =========================================================================
// Login TESTS
// =========================================================================

func TestLogin_IssuesSession(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, &fakeVerifier{claims: adaClaims})

	res, err := svc.Login(context.Background(), "google", "id-token")
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)

	userID, err := newTestTokens(t).Validate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, userID)
}

func TestLogin_WithoutSessions(t *testing.T) {
	repo := newFakeUserRepo()
	reg := auth.NewRegistry()
	reg.Register("google", &fakeVerifier{claims: adaClaims})
	svc := NewAuthService(repo, reg, nil, Timeouts{}, discardLogger())

	res, err := svc.Login(context.Background(), "google", "id-token")
	require.NoError(t, err)
	assert.Empty(t, res.Token)
	assert.Equal(t, "a@x.com", res.User.Email)
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		token    string
		verifier *fakeVerifier
		wantErr  error
	}{
		{"unknown provider", "myspace", "t", &fakeVerifier{claims: adaClaims}, apperror.ErrNotFound},
		{"empty token", "google", "", &fakeVerifier{claims: adaClaims}, apperror.ErrInvalidRequest},
		{"blank token", "google", "  ", &fakeVerifier{claims: adaClaims}, apperror.ErrInvalidRequest},
		{"unknown provider, empty token", "myspace", "", &fakeVerifier{claims: adaClaims}, apperror.ErrInvalidRequest},
		{"rejected token", "google", "t", &fakeVerifier{err: apperror.InvalidToken(errors.New("bad sig"))}, apperror.ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeUserRepo()
			svc := newTestAuthService(t, repo, tt.verifier)

			_, err := svc.Login(context.Background(), tt.provider, tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, repo.callLog(), "no storage access on a failed verification")
		})
	}
}

func TestLogin_VerifierTimeoutIsUnavailable(t *testing.T) {
	repo := newFakeUserRepo()
	reg := auth.NewRegistry()
	reg.Register("google", &fakeVerifier{claims: adaClaims, delay: time.Second})
	svc := NewAuthService(repo, reg, nil, Timeouts{Verify: 20 * time.Millisecond}, discardLogger())

	_, err := svc.Login(context.Background(), "google", "t")
	assert.ErrorIs(t, err, apperror.ErrUnavailable)
	assert.Empty(t, repo.callLog())
}

func TestLogin_VerifyCompletesBeforeStorage(t *testing.T) {
	repo := newFakeUserRepo()
	var callsAtVerify []string
	v := &fakeVerifier{claims: adaClaims}
	v.onCall = func() { callsAtVerify = repo.callLog() }
	svc := newTestAuthService(t, repo, v)

	_, err := svc.Login(context.Background(), "google", "t")
	require.NoError(t, err)
	assert.Empty(t, callsAtVerify)
}

func TestLogin_DoesNotTouchPresence(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, &fakeVerifier{claims: adaClaims})

	_, err := svc.Login(context.Background(), "google", "t")
	require.NoError(t, err)

	stored := repo.byExt["g-1"]
	assert.Empty(t, stored.Status)
	assert.Nil(t, stored.LastSeen)
}

// =========================================================================
// CurrentUser TESTS
// =========================================================================

func TestCurrentUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, &fakeVerifier{})

	created, err := svc.Reconcile(context.Background(), adaClaims)
	require.NoError(t, err)

	got, err := svc.CurrentUser(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	_, err = svc.CurrentUser(context.Background(), "nope")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = svc.CurrentUser(context.Background(), "")
	assert.ErrorIs(t, err, apperror.ErrInvalidRequest)
}

// =========================================================================
// AGAINST REAL SQLITE
// =========================================================================

func newSQLiteAuthService(t *testing.T) (*AuthService, *sqlite.DB) {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewAuthService(db.Users(), auth.NewRegistry(), nil, Timeouts{}, discardLogger()), db
}

func TestReconcileSQLite_Idempotent(t *testing.T) {
	svc, db := newSQLiteAuthService(t)
	ctx := context.Background()

	first, err := svc.Reconcile(ctx, adaClaims)
	require.NoError(t, err)
	second, err := svc.Reconcile(ctx, adaClaims)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	users, err := db.Users().ListSummaries(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestReconcileSQLite_ConcurrentFirstLogins(t *testing.T) {
	svc, db := newSQLiteAuthService(t)
	ctx := context.Background()

	const n = 16
	ids := make([]string, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			view, err := svc.Reconcile(ctx, adaClaims)
			errs[i] = err
			if err == nil {
				ids[i] = view.ID
			}
		}()
	}
	close(start)
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i], "goroutine %d", i)
		assert.Equal(t, ids[0], ids[i], "goroutine %d got a different user", i)
	}

	users, err := db.Users().ListSummaries(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestReconcileSQLite_ProfileChangeKeepsPresence(t *testing.T) {
	svc, db := newSQLiteAuthService(t)
	ctx := context.Background()

	_, err := svc.Reconcile(ctx, adaClaims)
	require.NoError(t, err)
	require.NoError(t, db.Users().TouchStatus(ctx, "g-1", "online"))

	changed := adaClaims
	changed.Email = "b@x.com"
	_, err = svc.Reconcile(ctx, changed)
	require.NoError(t, err)

	u, err := db.Users().FindByExternalID(ctx, "g-1")
	require.NoError(t, err)
	assert.Equal(t, "b@x.com", u.Email)
	assert.Equal(t, "online", u.Status)
	assert.NotNil(t, u.LastSeen)
}
