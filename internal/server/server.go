// Package server is the composition root: it wires storage, verifiers,
// services, handlers and middleware into one chi router, and runs the HTTP
// server with graceful shutdown.
//
//	Storage ─┬─ AuthService ───── AuthHandler
//	Registry ┘  PresenceService ─ UserHandler
//	            LocationService ─ LocationHandler
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/geopoint/internal/auth"
	"github.com/sakif/geopoint/internal/config"
	"github.com/sakif/geopoint/internal/handler"
	"github.com/sakif/geopoint/internal/middleware"
	"github.com/sakif/geopoint/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the storage pool and closes it during shutdown, after
// in-flight requests have finished.
type Server struct {
	router  *chi.Mux
	config  config.Config
	logger  *slog.Logger
	storage *Storage
}

// New wires a Server over an opened storage backend and a provider registry.
// Ownership of storage passes to the Server.
func New(cfg config.Config, logger *slog.Logger, storage *Storage, verifiers *auth.Registry) (*Server, error) {
	var tokens *auth.TokenService
	if cfg.SessionsEnabled() {
		var err error
		tokens, err = auth.NewTokenService(cfg.JWTSecret, cfg.SessionTTL)
		if err != nil {
			return nil, fmt.Errorf("server: session tokens: %w", err)
		}
	} else {
		logger.Warn("JWT_SECRET not set: sessions are disabled and /me is not served")
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		storage: storage,
	}
	s.setupRoutes(verifiers, tokens)
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /                       → health (storage ping)
// POST   /auth/{provider}/login  → token login (rate limited)
// POST   /auth/logout            → clear the session cookie
// GET    /me                     → current user (session required)
// GET    /users                  → user directory with presence
// POST   /users/status           → record a status
// POST   /locations              → create a location
// GET    /locations              → list locations, newest first
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns a unique ID to each request (for tracing)
// 2. RealIP: takes the client IP from proxy headers, so the login limiter
//    and the logs see the real address
// 3. Logger: logs each request with timing info
// 4. Recoverer: catches panics and returns 500 instead of crashing
// 5. CORS: answers preflights before routing
func (s *Server) setupRoutes(verifiers *auth.Registry, tokens *auth.TokenService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.CORS(s.config.CORSOrigins))

	timeouts := service.Timeouts{Store: s.config.StoreTimeout, Verify: s.config.VerifyTimeout}

	authService := service.NewAuthService(s.storage.Users, verifiers, tokens, timeouts, s.logger)
	presenceService := service.NewPresenceService(s.storage.Users, timeouts, s.logger)
	locationService := service.NewLocationService(s.storage.Locations, timeouts, s.logger)

	var sessionTTL time.Duration
	if tokens != nil {
		sessionTTL = tokens.TTL()
	}
	authHandler := handler.NewAuthHandler(authService, sessionTTL, s.config.CookieSecure, s.logger)
	userHandler := handler.NewUserHandler(presenceService, s.logger)
	locationHandler := handler.NewLocationHandler(locationService, s.logger)
	healthHandler := handler.NewHealthHandler(s.storage, s.storage.Backend, s.config.StoreTimeout, s.logger)

	limiter := middleware.NewLimiterStore(s.config.LoginRatePerMinute, s.config.LoginBurst, 10*time.Minute)

	s.router.Get("/", healthHandler.HandleHealth)

	s.router.Route("/auth", func(r chi.Router) {
		r.With(middleware.RateLimit(limiter)).Post("/{provider}/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
	})

	if tokens != nil {
		s.router.With(auth.RequireAuth(tokens)).Get("/me", authHandler.HandleMe)
	}

	s.router.Get("/users", userHandler.HandleList)
	s.router.Post("/users/status", userHandler.HandleSetStatus)

	s.router.Get("/locations", locationHandler.HandleList)
	s.router.Post("/locations", locationHandler.HandleCreate)

	s.logger.Info("routes ready", slog.Any("providers", verifiers.Names()))
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the storage pool
func (s *Server) Start() error {
	defer func() {
		if err := s.storage.Close(); err != nil {
			s.logger.Error("closing storage", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.storage.Backend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
