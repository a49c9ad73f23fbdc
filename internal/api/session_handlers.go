package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/relayonprem/control-plane/internal/api/helpers"
	"github.com/relayonprem/control-plane/internal/api/middleware"
)

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetPrincipal(r.Context())
	if err != nil {
		helpers.RespondError(w, r, http.StatusUnauthorized, "Authorization required")
		return
	}

	sessions, err := s.auth.ListSessions(r.Context(), user.ID, middleware.GetSessionID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (s *Server) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetPrincipal(r.Context())
	if err != nil {
		helpers.RespondError(w, r, http.StatusUnauthorized, "Authorization required")
		return
	}

	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.RespondError(w, r, http.StatusBadRequest, "session id must be a uuid")
		return
	}

	if err := s.auth.RevokeSession(r.Context(), user, sessionID, requestMeta(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]string{"message": "Session revoked"})
}

func (s *Server) handleRevokeAllSessions(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetPrincipal(r.Context())
	if err != nil {
		helpers.RespondError(w, r, http.StatusUnauthorized, "Authorization required")
		return
	}

	count, err := s.auth.RevokeAllSessions(r.Context(), user, requestMeta(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]int64{"revoked_count": count})
}
