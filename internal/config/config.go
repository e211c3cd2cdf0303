// Package config loads server settings from the environment.
//
// An optional .env file in the working directory is loaded first; variables
// already set in the process environment win over the file.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/sakif/geopoint/internal/auth"
)

// Storage backends.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port     int
	LogLevel string

	DBDriver    string
	DatabaseURL string // postgres DSN, from DATABASE_URL or the PG* variables
	DBPath      string // sqlite file

	GoogleClientID     string
	GoogleJWKSURL      string
	GitHubClientID     string
	GitHubClientSecret string

	// raw secret kept in-memory only; never log it
	JWTSecret    string
	SessionTTL   time.Duration
	CookieSecure bool

	CORSOrigins        []string
	LoginRatePerMinute int
	LoginBurst         int

	StoreTimeout  time.Duration
	VerifyTimeout time.Duration
}

// GoogleEnabled reports whether Google login is configured.
func (c Config) GoogleEnabled() bool { return c.GoogleClientID != "" }

// GitHubEnabled reports whether GitHub login is configured.
func (c Config) GitHubEnabled() bool { return c.GitHubClientID != "" && c.GitHubClientSecret != "" }

// SessionsEnabled reports whether login issues a session cookie.
func (c Config) SessionsEnabled() bool { return c.JWTSecret != "" }

// Load reads .env (if present) and then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (Config, error) {
	var p parser

	cfg := Config{
		Port:     p.int("PORT", 3000),
		LogLevel: getenvDefault("LOG_LEVEL", "info"),

		DBDriver: strings.ToLower(getenvDefault("DB_DRIVER", DriverPostgres)),
		DBPath:   getenvDefault("DB_PATH", "data/geopoint.db"),

		GoogleClientID:     strings.TrimSpace(os.Getenv("GOOGLE_CLIENT_ID")),
		GoogleJWKSURL:      getenvDefault("GOOGLE_JWKS_URL", auth.GoogleJWKSURL),
		GitHubClientID:     strings.TrimSpace(os.Getenv("GITHUB_CLIENT_ID")),
		GitHubClientSecret: strings.TrimSpace(os.Getenv("GITHUB_CLIENT_SECRET")),

		JWTSecret:    os.Getenv("JWT_SECRET"),
		SessionTTL:   p.duration("SESSION_TTL", auth.DefaultSessionTTL),
		CookieSecure: p.bool("COOKIE_SECURE", false),

		CORSOrigins:        splitList(getenvDefault("CORS_ORIGINS", "*")),
		LoginRatePerMinute: p.int("LOGIN_RATE_PER_MINUTE", 30),
		LoginBurst:         p.int("LOGIN_BURST", 10),

		StoreTimeout:  p.duration("STORE_TIMEOUT", 5*time.Second),
		VerifyTimeout: p.duration("VERIFY_TIMEOUT", 10*time.Second),
	}
	if p.err != nil {
		return Config{}, p.err
	}

	switch cfg.DBDriver {
	case DriverPostgres:
		dsn, err := postgresDSN()
		if err != nil {
			return Config{}, err
		}
		cfg.DatabaseURL = dsn
	case DriverSQLite:
	default:
		return Config{}, fmt.Errorf("config: DB_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, cfg.DBDriver)
	}

	if !cfg.GoogleEnabled() && !cfg.GitHubEnabled() {
		return Config{}, errors.New("config: no identity provider configured (set GOOGLE_CLIENT_ID or GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET)")
	}
	if (cfg.GitHubClientID == "") != (cfg.GitHubClientSecret == "") {
		return Config{}, errors.New("config: GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET must be set together")
	}
	if cfg.JWTSecret != "" && len(cfg.JWTSecret) < 16 {
		return Config{}, errors.New("config: JWT_SECRET must be at least 16 characters")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("config: PORT out of range: %d", cfg.Port)
	}
	if cfg.LoginRatePerMinute <= 0 || cfg.LoginBurst <= 0 {
		return Config{}, errors.New("config: LOGIN_RATE_PER_MINUTE and LOGIN_BURST must be positive")
	}
	if cfg.StoreTimeout <= 0 || cfg.VerifyTimeout <= 0 {
		return Config{}, errors.New("config: STORE_TIMEOUT and VERIFY_TIMEOUT must be positive")
	}

	return cfg, nil
}

// postgresDSN prefers DATABASE_URL and otherwise assembles a URL from the
// libpq-style PG* variables. Missing credentials are an error.
func postgresDSN() (string, error) {
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		return dsn, nil
	}

	host := strings.TrimSpace(os.Getenv("PGHOST"))
	user := strings.TrimSpace(os.Getenv("PGUSER"))
	dbname := strings.TrimSpace(os.Getenv("PGDATABASE"))
	if host == "" || user == "" || dbname == "" {
		return "", errors.New("config: postgres needs DATABASE_URL or PGHOST, PGUSER and PGDATABASE")
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, getenvDefault("PGPORT", "5432")),
		Path:   "/" + dbname,
	}
	if pw := os.Getenv("PGPASSWORD"); pw != "" {
		u.User = url.UserPassword(user, pw)
	} else {
		u.User = url.User(user)
	}

	q := url.Values{}
	q.Set("sslmode", getenvDefault("PGSSLMODE", "prefer"))
	if ca := strings.TrimSpace(os.Getenv("PGSSLROOTCERT")); ca != "" {
		q.Set("sslrootcert", ca)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// parser reads typed variables and remembers the first bad one.
type parser struct{ err error }

func (p *parser) fail(key, val string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("config: invalid %s %q: %w", key, val, err)
	}
}

func (p *parser) int(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return d
}

func (p *parser) bool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return b
}

func getenvDefault(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
