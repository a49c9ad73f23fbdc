package api

import (
	"net/http"

	"github.com/relayonprem/control-plane/internal/api/helpers"
	"github.com/relayonprem/control-plane/internal/api/middleware"
	"github.com/relayonprem/control-plane/internal/store"
)

type emailPrefsView struct {
	InviteNotifications      bool `json:"invite_notifications"`
	ShareUpdateNotifications bool `json:"share_update_notifications"`
	MemberNotifications      bool `json:"member_notifications"`
	SecurityAlerts           bool `json:"security_alerts"`
	DigestEmails             bool `json:"digest_emails"`
}

func (s *Server) handleGetEmailPreferences(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetPrincipal(r.Context())
	if err != nil {
		helpers.RespondError(w, r, http.StatusUnauthorized, "Authorization required")
		return
	}

	prefs, err := s.store.GetEmailPreferences(r.Context(), user.ID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, emailPrefsView{
		InviteNotifications:      prefs.InviteNotifications,
		ShareUpdateNotifications: prefs.ShareUpdateNotifications,
		MemberNotifications:      prefs.MemberNotifications,
		SecurityAlerts:           prefs.SecurityAlerts,
		DigestEmails:             prefs.DigestEmails,
	})
}

func (s *Server) handleUpdateEmailPreferences(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetPrincipal(r.Context())
	if err != nil {
		helpers.RespondError(w, r, http.StatusUnauthorized, "Authorization required")
		return
	}

	var req emailPrefsView
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Security alerts are always delivered regardless of the stored flag;
	// the preference is persisted as sent for transparency.
	prefs := store.EmailPreferences{
		UserID:                   user.ID,
		InviteNotifications:      req.InviteNotifications,
		ShareUpdateNotifications: req.ShareUpdateNotifications,
		MemberNotifications:      req.MemberNotifications,
		SecurityAlerts:           req.SecurityAlerts,
		DigestEmails:             req.DigestEmails,
	}
	if err := s.store.SetEmailPreferences(r.Context(), prefs); err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, req)
}
