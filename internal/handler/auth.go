package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/chat-gateway/internal/auth"
	"github.com/sakif/chat-gateway/internal/model"
	"github.com/sakif/chat-gateway/internal/service"
)

// Authenticator is the part of service.AuthService the handlers use.
type Authenticator interface {
	Register(ctx context.Context, email, password string) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	Me(ctx context.Context, uid string) (model.PublicUser, error)
}

// AuthHandler serves registration, login, logout and the current user.
type AuthHandler struct {
	svc          Authenticator
	cookieSecure bool
	logger       *slog.Logger
}

// NewAuthHandler creates an AuthHandler. cookieSecure marks the session
// cookie Secure; turn it on behind HTTPS.
func NewAuthHandler(svc Authenticator, cookieSecure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, cookieSecure: cookieSecure, logger: logger}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is the body of a successful register or login.
type AuthResponse struct {
	Token string           `json:"token"`
	User  model.PublicUser `json:"user"`
}

// HandleRegister creates an account and starts a session.
//
// HTTP: POST /auth/register  {"email": "...", "password": "..."}
// 201 with {token, user}; 409 when the email is taken.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.svc.Register(r.Context(), body.Email, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSession(w, res)
	writeJSON(w, http.StatusCreated, AuthResponse{Token: res.Token, User: res.User})
}

// HandleLogin starts a session for an existing account.
//
// HTTP: POST /auth/login  {"email": "...", "password": "..."}
// 200 with {token, user}; 401 on bad credentials.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.svc.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSession(w, res)
	writeJSON(w, http.StatusOK, AuthResponse{Token: res.Token, User: res.User})
}

// HandleLogout clears the session cookie. Tokens are stateless, so one
// already copied elsewhere stays valid until it expires.
//
// HTTP: POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the caller's public profile.
//
// HTTP: GET /auth/me (RequireAuth)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "valid authentication required"})
		return
	}

	user, err := h.svc.Me(r.Context(), uid)
	if err != nil {
		h.logger.Warn("HandleMe: lookup failed", slog.String("uid", uid), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) setSession(w http.ResponseWriter, res *service.AuthResult) {
	maxAge := int(time.Until(res.ExpiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = int(auth.DefaultTokenTTL.Seconds())
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    res.Token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
