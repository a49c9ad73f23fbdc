package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/relayonprem/control-plane/internal/api/helpers"
	"github.com/relayonprem/control-plane/internal/api/middleware"
	"github.com/relayonprem/control-plane/internal/auth"
	"github.com/relayonprem/control-plane/internal/store"
)

// userView is the JSON shape of a user; the password hash and TOTP secret
// never leave the service layer through it.
type userView struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	IsAdmin       bool      `json:"is_admin"`
	IsActive      bool      `json:"is_active"`
	EmailVerified bool      `json:"email_verified"`
	TOTPEnabled   bool      `json:"totp_enabled"`
	CreatedAt     time.Time `json:"created_at"`
}

func viewUser(u *store.User) userView {
	return userView{
		ID:            u.ID,
		Email:         u.Email,
		IsAdmin:       u.IsAdmin,
		IsActive:      u.IsActive,
		EmailVerified: u.EmailVerified,
		TOTPEnabled:   u.TOTPEnabled,
		CreatedAt:     u.CreatedAt,
	}
}

// requestMeta collects the per-request context recorded in sessions and audit
// rows.
func requestMeta(r *http.Request) auth.RequestMeta {
	return auth.RequestMeta{
		IPAddress:  helpers.GetRealIP(r),
		UserAgent:  r.UserAgent(),
		DeviceName: r.Header.Get("X-Device-Name"),
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code,omitempty"` // only on the 2FA variant
}

type loginResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	User         userView `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		helpers.RespondError(w, r, http.StatusUnprocessableEntity, "email and password are required")
		return
	}

	result, err := s.auth.Login(r.Context(), req.Email, req.Password, requestMeta(r))
	if err != nil {
		if errors.Is(err, auth.ErrTwoFactorRequired) {
			w.Header().Set("X-2FA-Required", "true")
			helpers.RespondError(w, r, http.StatusForbidden, "Two-factor authentication required")
			return
		}
		slog.Warn("login_failed", "email", req.Email, "ip", helpers.GetRealIP(r))
		respondServiceError(w, r, err)
		return
	}

	helpers.RespondJSON(w, http.StatusOK, loginResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		User:         viewUser(result.User),
	})
}

func (s *Server) handleLogin2FA(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" || req.Code == "" {
		helpers.RespondError(w, r, http.StatusUnprocessableEntity, "email, password and code are required")
		return
	}

	result, err := s.auth.LoginWith2FA(r.Context(), req.Email, req.Password, req.Code, requestMeta(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	helpers.RespondJSON(w, http.StatusOK, loginResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		User:         viewUser(result.User),
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := helpers.DecodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		helpers.RespondError(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}

	result, err := s.auth.Refresh(r.Context(), req.RefreshToken, requestMeta(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	helpers.RespondJSON(w, http.StatusOK, map[string]string{
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
	})
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetPrincipal(r.Context())
	if err != nil {
		helpers.RespondError(w, r, http.StatusUnauthorized, "Authorization required")
		return
	}

	var req logoutRequest
	_ = helpers.DecodeJSON(r, &req) // body is optional

	if err := s.auth.Logout(r.Context(), user, req.RefreshToken, requestMeta(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetPrincipal(r.Context())
	if err != nil {
		helpers.RespondError(w, r, http.StatusUnauthorized, "Authorization required")
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]userView{"user": viewUser(user)})
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"is_admin,omitempty"`
}

// handleRegister is the admin-only user creation endpoint; it shares its
// implementation with POST /admin/users.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		helpers.RespondError(w, r, http.StatusUnprocessableEntity, "invalid email address")
		return
	}
	actor, err := middleware.GetPrincipal(r.Context())
	if err != nil {
		helpers.RespondError(w, r, http.StatusUnauthorized, "Authorization required")
		return
	}

	user, err := s.auth.AdminCreateUser(r.Context(), actor, req.Email, req.Password, req.IsAdmin, requestMeta(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusCreated, map[string]userView{"user": viewUser(user)})
}
