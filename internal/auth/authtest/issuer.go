// Package authtest mints OpenID Connect ID tokens for tests, so verifier and
// end-to-end tests run without a real identity provider.
package authtest

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/geopoint/internal/auth"
)

const (
	DefaultIssuer   = "https://accounts.google.com"
	DefaultClientID = "geopoint-test.apps.googleusercontent.com"
)

// Issuer signs RS256 ID tokens with a throwaway key.
type Issuer struct {
	Issuer   string
	ClientID string
	key      *rsa.PrivateKey
}

// NewIssuer creates an issuer with a fresh 2048-bit key.
func NewIssuer(t testing.TB) *Issuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("authtest: generating key: %v", err)
	}
	return &Issuer{Issuer: DefaultIssuer, ClientID: DefaultClientID, key: key}
}

// Profile is the optional part of an ID token.
type Profile struct {
	Email      string
	Name       string
	GivenName  string
	FamilyName string
	Picture    string
}

// Token returns a valid ID token for subject, expiring in an hour.
func (i *Issuer) Token(t testing.TB, subject string, p Profile) string {
	t.Helper()
	return i.Sign(t, i.Claims(subject, p))
}

// Claims builds the claim map Token would sign, for tests that want to
// tamper with it first.
func (i *Issuer) Claims(subject string, p Profile) jwt.MapClaims {
	now := time.Now()
	c := jwt.MapClaims{
		"iss": i.Issuer,
		"aud": i.ClientID,
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	set := func(k, v string) {
		if v != "" {
			c[k] = v
		}
	}
	set("email", p.Email)
	set("name", p.Name)
	set("given_name", p.GivenName)
	set("family_name", p.FamilyName)
	set("picture", p.Picture)
	return c
}

// Sign signs arbitrary claims with the issuer's key.
func (i *Issuer) Sign(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = "authtest"
	signed, err := tok.SignedString(i.key)
	if err != nil {
		t.Fatalf("authtest: signing token: %v", err)
	}
	return signed
}

// Verifier returns a Google-style verifier that trusts this issuer's key.
func (i *Issuer) Verifier(t testing.TB) *auth.OIDCVerifier {
	t.Helper()
	v, err := auth.NewStaticOIDCVerifier(auth.OIDCConfig{
		Name:     "google",
		Issuers:  auth.GoogleIssuers,
		ClientID: i.ClientID,
	}, i.key.Public())
	if err != nil {
		t.Fatalf("authtest: building verifier: %v", err)
	}
	return v
}
