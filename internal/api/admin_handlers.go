package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/relayonprem/control-plane/internal/api/helpers"
	"github.com/relayonprem/control-plane/internal/api/middleware"
	"github.com/relayonprem/control-plane/internal/auth"
	"github.com/relayonprem/control-plane/internal/store"
)

func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	users, err := s.store.ListUsers(r.Context(), limit, offset)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	views := make([]userView, 0, len(users))
	for i := range users {
		views = append(views, viewUser(&users[i]))
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"users": views})
}

func (s *Server) handleAdminGetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.RespondError(w, r, http.StatusBadRequest, "user id must be a uuid")
		return
	}

	user, err := s.store.GetUserByID(r.Context(), userID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]userView{"user": viewUser(user)})
}

type adminUpdateUserRequest struct {
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
	IsAdmin  *bool   `json:"is_admin,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

func (s *Server) handleAdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.GetPrincipal(r.Context())
	if err != nil {
		helpers.RespondError(w, r, http.StatusUnauthorized, "Authorization required")
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.RespondError(w, r, http.StatusBadRequest, "user id must be a uuid")
		return
	}

	var req adminUpdateUserRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := s.auth.AdminUpdateUser(r.Context(), actor, userID, auth.AdminUpdateInput{
		Email:    req.Email,
		Password: req.Password,
		IsAdmin:  req.IsAdmin,
		IsActive: req.IsActive,
	}, requestMeta(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]userView{"user": viewUser(user)})
}

func (s *Server) handleAdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.GetPrincipal(r.Context())
	if err != nil {
		helpers.RespondError(w, r, http.StatusUnauthorized, "Authorization required")
		return
	}
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.RespondError(w, r, http.StatusBadRequest, "user id must be a uuid")
		return
	}
	if userID == actor.ID {
		helpers.RespondError(w, r, http.StatusBadRequest, "cannot delete your own account")
		return
	}

	if err := s.auth.AdminDeleteUser(r.Context(), actor, userID, requestMeta(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
}

type auditEntryView struct {
	ID            uuid.UUID       `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	Action        string          `json:"action"`
	ActorUserID   *uuid.UUID      `json:"actor_user_id,omitempty"`
	TargetUserID  *uuid.UUID      `json:"target_user_id,omitempty"`
	TargetShareID *uuid.UUID      `json:"target_share_id,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
	IPAddress     string          `json:"ip_address,omitempty"`
	UserAgent     string          `json:"user_agent,omitempty"`
}

func (s *Server) handleAdminAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := store.AuditQuery{Action: q.Get("action")}
	query.Limit, _ = strconv.Atoi(q.Get("limit"))
	query.Offset, _ = strconv.Atoi(q.Get("offset"))

	if v := q.Get("actor_user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			helpers.RespondError(w, r, http.StatusBadRequest, "actor_user_id must be a uuid")
			return
		}
		query.ActorUserID = &id
	}
	if v := q.Get("target_user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			helpers.RespondError(w, r, http.StatusBadRequest, "target_user_id must be a uuid")
			return
		}
		query.TargetUserID = &id
	}
	if v := q.Get("target_share_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			helpers.RespondError(w, r, http.StatusBadRequest, "target_share_id must be a uuid")
			return
		}
		query.TargetShareID = &id
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			helpers.RespondError(w, r, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		query.Since = &t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			helpers.RespondError(w, r, http.StatusBadRequest, "until must be RFC 3339")
			return
		}
		query.Until = &t
	}

	entries, err := s.store.QueryAuditEntries(r.Context(), query)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	views := make([]auditEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, auditEntryView{
			ID:            e.ID,
			Timestamp:     e.Timestamp,
			Action:        e.Action,
			ActorUserID:   e.ActorUserID,
			TargetUserID:  e.TargetUserID,
			TargetShareID: e.TargetShareID,
			Details:       json.RawMessage(e.Details),
			IPAddress:     e.IPAddress,
			UserAgent:     e.UserAgent,
		})
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"entries": views})
}

func (s *Server) handleAdminListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.ListSettings(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

func (s *Server) handleAdminSetSetting(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := helpers.DecodeJSON(r, &req); err != nil || req.Key == "" {
		helpers.RespondError(w, r, http.StatusBadRequest, "key is required")
		return
	}

	if err := s.store.SetSetting(r.Context(), req.Key, req.Value); err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]string{"message": "Setting saved"})
}
