package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/sakif/geopoint/internal/auth"
	"github.com/sakif/geopoint/internal/config"
)

// BuildRegistry registers a verifier for every configured provider. No
// network call is made: Google's keys are fetched on the first login.
//
// ctx must outlive the server; the Google key set refreshes under it.
func BuildRegistry(ctx context.Context, cfg config.Config, httpClient *http.Client) (*auth.Registry, error) {
	reg := auth.NewRegistry()

	if httpClient != nil {
		ctx = oidc.ClientContext(ctx, httpClient)
	}

	if cfg.GoogleEnabled() {
		google, err := auth.NewOIDCVerifier(ctx, auth.OIDCConfig{
			Name:     "google",
			Issuers:  auth.GoogleIssuers,
			ClientID: cfg.GoogleClientID,
			JWKSURL:  cfg.GoogleJWKSURL,
		})
		if err != nil {
			return nil, fmt.Errorf("server: google verifier: %w", err)
		}
		reg.Register("google", google)
	}

	if cfg.GitHubEnabled() {
		github, err := auth.NewGitHubVerifier(auth.GitHubConfig{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			HTTPClient:   httpClient,
		})
		if err != nil {
			return nil, fmt.Errorf("server: github verifier: %w", err)
		}
		reg.Register("github", github)
	}

	if len(reg.Names()) == 0 {
		return nil, fmt.Errorf("server: no identity provider configured")
	}
	return reg, nil
}
