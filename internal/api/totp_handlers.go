package api

import (
	"net/http"

	"github.com/relayonprem/control-plane/internal/api/helpers"
	"github.com/relayonprem/control-plane/internal/api/middleware"
)

func (s *Server) handleTOTPStatus(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetPrincipal(r.Context())
	if err != nil {
		helpers.RespondError(w, r, http.StatusUnauthorized, "Authorization required")
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]bool{"enabled": user.TOTPEnabled})
}

// handleTOTPEnable starts enrollment: the secret, otpauth URI and backup
// codes are returned once; nothing is active until the user verifies a code.
func (s *Server) handleTOTPEnable(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetPrincipal(r.Context())
	if err != nil {
		helpers.RespondError(w, r, http.StatusUnauthorized, "Authorization required")
		return
	}

	setup, err := s.auth.BeginTOTPEnrollment(r.Context(), user)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{
		"secret":       setup.Secret,
		"otpauth_url":  setup.OTPAuthURL,
		"backup_codes": setup.BackupCodes,
	})
}

type totpCodeRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleTOTPVerify(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetPrincipal(r.Context())
	if err != nil {
		helpers.RespondError(w, r, http.StatusUnauthorized, "Authorization required")
		return
	}

	var req totpCodeRequest
	if err := helpers.DecodeJSON(r, &req); err != nil || req.Code == "" {
		helpers.RespondError(w, r, http.StatusBadRequest, "code is required")
		return
	}

	if err := s.auth.ConfirmTOTPEnrollment(r.Context(), user, req.Code, requestMeta(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]string{"message": "Two-factor authentication enabled"})
}

func (s *Server) handleTOTPDisable(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetPrincipal(r.Context())
	if err != nil {
		helpers.RespondError(w, r, http.StatusUnauthorized, "Authorization required")
		return
	}

	var req totpCodeRequest
	if err := helpers.DecodeJSON(r, &req); err != nil || req.Code == "" {
		helpers.RespondError(w, r, http.StatusBadRequest, "code is required")
		return
	}

	if err := s.auth.DisableTOTP(r.Context(), user, req.Code, requestMeta(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]string{"message": "Two-factor authentication disabled"})
}
