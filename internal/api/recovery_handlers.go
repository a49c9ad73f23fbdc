package api

import (
	"net/http"

	"github.com/relayonprem/control-plane/internal/api/helpers"
	"github.com/relayonprem/control-plane/internal/api/middleware"
)

type resetRequestBody struct {
	Email string `json:"email"`
}

// handlePasswordResetRequest always answers 200 so the endpoint cannot be
// used to probe which addresses exist.
func (s *Server) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	var req resetRequestBody
	if err := helpers.DecodeJSON(r, &req); err != nil || req.Email == "" {
		helpers.RespondError(w, r, http.StatusBadRequest, "email is required")
		return
	}

	if err := s.auth.RequestPasswordReset(r.Context(), req.Email, requestMeta(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]string{
		"message": "If the address exists, a reset link has been sent",
	})
}

type resetCompleteBody struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (s *Server) handlePasswordResetComplete(w http.ResponseWriter, r *http.Request) {
	var req resetCompleteBody
	if err := helpers.DecodeJSON(r, &req); err != nil || req.Token == "" || req.Password == "" {
		helpers.RespondError(w, r, http.StatusBadRequest, "token and password are required")
		return
	}

	if err := s.auth.CompletePasswordReset(r.Context(), req.Token, req.Password, requestMeta(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

type changePasswordBody struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetPrincipal(r.Context())
	if err != nil {
		helpers.RespondError(w, r, http.StatusUnauthorized, "Authorization required")
		return
	}

	var req changePasswordBody
	if err := helpers.DecodeJSON(r, &req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		helpers.RespondError(w, r, http.StatusBadRequest, "current_password and new_password are required")
		return
	}

	if err := s.auth.ChangePassword(r.Context(), user, req.CurrentPassword, req.NewPassword, requestMeta(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]string{"message": "Password changed"})
}

func (s *Server) handleEmailVerifyRequest(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetPrincipal(r.Context())
	if err != nil {
		helpers.RespondError(w, r, http.StatusUnauthorized, "Authorization required")
		return
	}

	if err := s.auth.RequestEmailVerification(r.Context(), user, requestMeta(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]string{"message": "Verification email queued"})
}

type verifyEmailBody struct {
	Token string `json:"token"`
}

func (s *Server) handleEmailVerifyConfirm(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailBody
	if err := helpers.DecodeJSON(r, &req); err != nil || req.Token == "" {
		helpers.RespondError(w, r, http.StatusBadRequest, "token is required")
		return
	}

	if err := s.auth.VerifyEmail(r.Context(), req.Token, requestMeta(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]string{"message": "Email verified"})
}
