package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/geopoint/internal/auth"
	"github.com/sakif/geopoint/internal/model"
	"github.com/sakif/geopoint/internal/service"
)

// Authenticator is what AuthHandler needs from the service layer.
type Authenticator interface {
	Login(ctx context.Context, provider, token string) (*service.LoginResult, error)
	CurrentUser(ctx context.Context, id string) (*model.UserView, error)
}

// AuthHandler serves token login, logout and the current-user lookup.
//
//   - HandleLogin  → POST /auth/{provider}/login
//   - HandleLogout → POST /auth/logout
//   - HandleMe     → GET  /me (behind auth.RequireAuth)
type AuthHandler struct {
	auth       Authenticator
	sessionTTL time.Duration // 0 disables the session cookie
	secure     bool
	logger     *slog.Logger
}

// NewAuthHandler creates an AuthHandler. sessionTTL is the cookie lifetime and
// should match the token service's TTL; secureCookies marks cookies HTTPS-only.
func NewAuthHandler(a Authenticator, sessionTTL time.Duration, secureCookies bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:       a,
		sessionTTL: sessionTTL,
		secure:     secureCookies,
		logger:     logger,
	}
}

type loginRequest struct {
	Token string `json:"token"`
}

type userResponse struct {
	User *model.UserView `json:"user"`
}

// HandleLogin exchanges a provider identity token for the local user.
//
// HTTP: POST /auth/{provider}/login  {"token": "..."}
//
// On success the body is {"user": {...}}. When sessions are enabled a
// session cookie is set as well, so browser clients can call /me afterwards.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	provider := chi.URLParam(r, "provider")
	result, err := h.auth.Login(r.Context(), provider, req.Token)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if result.Token != "" {
		h.setSessionCookie(w, result.Token, int(h.sessionTTL.Seconds()))
	}

	writeJSON(w, http.StatusOK, userResponse{User: result.User})
}

// HandleLogout clears the session cookie. Sessions are stateless JWTs, so the
// token itself stays valid until it expires; without the cookie the browser
// simply stops sending it.
//
// HTTP: POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.setSessionCookie(w, "", -1)
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// HandleMe returns the logged-in user's view.
//
// HTTP: GET /me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		// Only reachable if the route is mounted without RequireAuth.
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "valid session required"})
		return
	}

	user, err := h.auth.CurrentUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{User: user})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
