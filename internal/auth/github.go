package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"

	"github.com/sakif/geopoint/internal/apperror"
	"github.com/sakif/geopoint/internal/model"
)

const githubAPI = "https://api.github.com"

// GitHubUser is the portion of a GitHub user object we care about.
type GitHubUser struct {
	ID        int64  `json:"id"`         // GitHub's numeric user ID, stable for the account's lifetime
	Login     string `json:"login"`      // GitHub username, e.g. "octocat"
	Name      string `json:"name"`       // Display name, may be empty
	Email     string `json:"email"`      // Public email, empty if hidden
	AvatarURL string `json:"avatar_url"` // Profile picture URL
}

// GitHubConfig holds the OAuth App credentials. The client id doubles as the
// expected audience: a token minted for another app is rejected.
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	APIBase      string       // defaults to https://api.github.com
	HTTPClient   *http.Client // defaults to http.DefaultClient
}

// GitHubVerifier treats the login token as a GitHub OAuth access token.
//
// VERIFICATION:
// GitHub access tokens are opaque, so there is no signature to check locally.
// Instead we ask GitHub: POST /applications/{client_id}/token, authenticated
// with our app's client id and secret, answers 200 with the owning user only
// if the token is live AND was issued to our app. Anything else is an invalid
// token.
type GitHubVerifier struct {
	clientID     string
	clientSecret string
	apiBase      string
	httpClient   *http.Client
}

func NewGitHubVerifier(cfg GitHubConfig) (*GitHubVerifier, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("auth: github verifier needs client id and secret")
	}
	if cfg.APIBase == "" {
		cfg.APIBase = githubAPI
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	return &GitHubVerifier{
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		apiBase:      strings.TrimRight(cfg.APIBase, "/"),
		httpClient:   cfg.HTTPClient,
	}, nil
}

// Verify checks the token with GitHub and maps the owning user to claims.
// The external id is namespaced ("github:<id>") so it can never collide with
// another provider's subject.
func (v *GitHubVerifier) Verify(ctx context.Context, token string) (*model.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperror.InvalidRequest("token", "token is required")
	}

	user, err := v.checkToken(ctx, token)
	if err != nil {
		return nil, err
	}

	email := user.Email
	if email == "" {
		// Optional: a hidden email just stays empty.
		email = v.primaryEmail(ctx, token)
	}

	fullName := user.Name
	if fullName == "" {
		fullName = user.Login
	}
	first, last := splitName(user.Name)

	return &model.Claims{
		ExternalID: "github:" + strconv.FormatInt(user.ID, 10),
		Email:      email,
		FullName:   fullName,
		FirstName:  first,
		LastName:   last,
		Avatar:     user.AvatarURL,
	}, nil
}

func (v *GitHubVerifier) checkToken(ctx context.Context, token string) (*GitHubUser, error) {
	body, err := json.Marshal(map[string]string{"access_token": token})
	if err != nil {
		return nil, fmt.Errorf("auth: encoding github token check: %w", err)
	}

	endpoint := v.apiBase + "/applications/" + url.PathEscape(v.clientID) + "/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("auth: building github token check: %w", err)
	}
	req.SetBasicAuth(v.clientID, v.clientSecret)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, providerFailure(ctx, "github", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperror.InvalidToken(fmt.Errorf("github: token check returned status %d", resp.StatusCode))
	}

	var check struct {
		User GitHubUser `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&check); err != nil {
		return nil, apperror.InvalidToken(fmt.Errorf("github: decoding token check: %w", err))
	}
	if check.User.ID == 0 {
		return nil, apperror.InvalidToken(errors.New("github: token check returned no user"))
	}

	return &check.User, nil
}

// primaryEmail asks GitHub, on behalf of the user, for their primary verified
// email. oauth2's static token source adds "Authorization: Bearer <token>".
// Any failure yields "".
func (v *GitHubVerifier) primaryEmail(ctx context.Context, token string) string {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, v.httpClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.apiBase+"/user/emails", nil)
	if err != nil {
		return ""
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return ""
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	return ""
}

// splitName splits "Ada King Lovelace" into "Ada" and "King Lovelace".
func splitName(name string) (first, last string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
