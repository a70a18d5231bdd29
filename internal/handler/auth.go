package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/aithera/therapy-server-go/internal/audit"
	"github.com/aithera/therapy-server-go/internal/config"
	apperrors "github.com/aithera/therapy-server-go/internal/errors"
	"github.com/aithera/therapy-server-go/internal/httputil"
	"github.com/aithera/therapy-server-go/internal/model"
	"github.com/aithera/therapy-server-go/internal/service"
)

type authService interface {
	Signup(ctx context.Context, in service.SignupInput) (*model.User, error)
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	IsAuthenticated(ctx context.Context, refreshToken string) bool
	Logout(ctx context.Context, refreshToken string) (int64, error)
	CurrentUser(ctx context.Context, userID int64) (*model.User, error)
}

type AuthHandler struct {
	authService  authService
	isProduction bool
}

func NewAuthHandler(authService authService, isProduction bool) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		isProduction: isProduction,
	}
}

// Routes mounts the cookie-based endpoints. signupLimit and loginLimit wrap
// their single routes; requireAuth guards current-user.
func (h *AuthHandler) Routes(requireAuth, signupLimit, loginLimit func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.With(signupLimit).Post("/signup", h.Signup)
	r.With(loginLimit).Post("/login", h.Login)
	r.Post("/refresh-token", h.RefreshToken)
	r.Get("/session", h.Session)
	r.Delete("/logout", h.Logout)
	r.With(requireAuth).Get("/current-user", h.CurrentUser)

	return r
}

// POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req service.SignupInput
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	user, err := h.authService.Signup(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventSignup, UserID: user.ID})
	writeJSON(w, http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrCodeInvalidCredentials) {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventLoginFailure,
				Details: map[string]any{"email": req.Email},
			})
		}
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventLoginSuccess, UserID: result.UserID})
	h.setRefreshCookie(w, result.RefreshToken, result.RefreshExpiresAt)
	writeJSON(w, http.StatusOK, map[string]string{"accessToken": result.AccessToken})
}

// POST /api/auth/refresh-token
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	token, err := refreshCookie(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	accessToken, err := h.authService.Refresh(r.Context(), token)
	if err != nil {
		audit.LogFromRequest(r, audit.Event{
			Type:    audit.EventRefreshFailure,
			Details: map[string]any{"code": string(apperrors.GetCode(err))},
		})
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"accessToken": accessToken})
}

// GET /api/auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	authenticated := false
	if cookie, err := r.Cookie(config.RefreshCookieName); err == nil {
		authenticated = h.authService.IsAuthenticated(r.Context(), cookie.Value)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isAuthenticated": authenticated})
}

// DELETE /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, err := refreshCookie(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	userID, err := h.authService.Logout(r.Context(), token)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventLogout, UserID: userID})
	h.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// GET /api/auth/current-user
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	user, err := h.authService.CurrentUser(r.Context(), p.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func refreshCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(config.RefreshCookieName)
	if err != nil || cookie.Value == "" {
		return "", apperrors.MissingRequired("Refresh token")
	}
	return cookie.Value, nil
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge <= 0 {
		log.Warn().Time("expiresAt", expiresAt).Msg("refresh token already expired when issued")
		maxAge = -1
	}

	http.SetCookie(w, &http.Cookie{
		Name:     config.RefreshCookieName,
		Value:    token,
		Path:     config.RefreshCookiePath,
		Expires:  expiresAt,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     config.RefreshCookieName,
		Value:    "",
		Path:     config.RefreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}
