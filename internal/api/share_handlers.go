package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/relayonprem/control-plane/internal/api/helpers"
	"github.com/relayonprem/control-plane/internal/api/middleware"
	"github.com/relayonprem/control-plane/internal/share"
	"github.com/relayonprem/control-plane/internal/store"
)

type shareView struct {
	ID           uuid.UUID        `json:"id"`
	Kind         store.ShareKind  `json:"kind"`
	Path         string           `json:"path"`
	Visibility   store.Visibility `json:"visibility"`
	OwnerUserID  uuid.UUID        `json:"owner_user_id"`
	WebPublished bool             `json:"web_published"`
	WebSlug      string           `json:"web_slug,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

func viewShare(sh *store.Share) shareView {
	return shareView{
		ID:           sh.ID,
		Kind:         sh.Kind,
		Path:         sh.Path,
		Visibility:   sh.Visibility,
		OwnerUserID:  sh.OwnerUserID,
		WebPublished: sh.WebPublished,
		WebSlug:      sh.WebSlug,
		CreatedAt:    sh.CreatedAt,
		UpdatedAt:    sh.UpdatedAt,
	}
}

// principalAndShareID is boilerplate shared by the share-scoped handlers.
func (s *Server) principalAndShareID(w http.ResponseWriter, r *http.Request) (*store.User, uuid.UUID, bool) {
	user, err := middleware.GetPrincipal(r.Context())
	if err != nil {
		helpers.RespondError(w, r, http.StatusUnauthorized, "Authorization required")
		return nil, uuid.Nil, false
	}
	shareID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		helpers.RespondError(w, r, http.StatusBadRequest, "share id must be a uuid")
		return nil, uuid.Nil, false
	}
	return user, shareID, true
}

type createShareRequest struct {
	Kind       string `json:"kind"`
	Path       string `json:"path"`
	Visibility string `json:"visibility,omitempty"`
	Password   string `json:"password,omitempty"`
}

func (s *Server) handleCreateShare(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetPrincipal(r.Context())
	if err != nil {
		helpers.RespondError(w, r, http.StatusUnauthorized, "Authorization required")
		return
	}

	var req createShareRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Kind != string(store.ShareKindDoc) && req.Kind != string(store.ShareKindFolder) {
		helpers.RespondError(w, r, http.StatusUnprocessableEntity, "kind must be doc or folder")
		return
	}

	sh, err := s.shares.CreateShare(r.Context(), user, share.CreateShareInput{
		Kind:       store.ShareKind(req.Kind),
		Path:       req.Path,
		Visibility: store.Visibility(req.Visibility),
		Password:   req.Password,
	}, requestMeta(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusCreated, map[string]shareView{"share": viewShare(sh)})
}

func (s *Server) handleListShares(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetPrincipal(r.Context())
	if err != nil {
		helpers.RespondError(w, r, http.StatusUnauthorized, "Authorization required")
		return
	}

	shares, err := s.shares.ListShares(r.Context(), user)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	views := make([]shareView, 0, len(shares))
	for i := range shares {
		views = append(views, viewShare(&shares[i]))
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"shares": views})
}

func (s *Server) handleGetShare(w http.ResponseWriter, r *http.Request) {
	user, shareID, ok := s.principalAndShareID(w, r)
	if !ok {
		return
	}

	sh, err := s.shares.GetShare(r.Context(), user, shareID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]shareView{"share": viewShare(sh)})
}

type updateShareRequest struct {
	Path         *string `json:"path,omitempty"`
	Visibility   *string `json:"visibility,omitempty"`
	Password     *string `json:"password,omitempty"`
	WebPublished *bool   `json:"web_published,omitempty"`
	WebSlug      *string `json:"web_slug,omitempty"`
	WebNoindex   *bool   `json:"web_noindex,omitempty"`
}

func (s *Server) handleUpdateShare(w http.ResponseWriter, r *http.Request) {
	user, shareID, ok := s.principalAndShareID(w, r)
	if !ok {
		return
	}

	var req updateShareRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}

	in := share.UpdateShareInput{
		Path:         req.Path,
		Password:     req.Password,
		WebPublished: req.WebPublished,
		WebSlug:      req.WebSlug,
		WebNoindex:   req.WebNoindex,
	}
	if req.Visibility != nil {
		v := store.Visibility(*req.Visibility)
		in.Visibility = &v
	}

	sh, err := s.shares.UpdateShare(r.Context(), user, shareID, in, requestMeta(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]shareView{"share": viewShare(sh)})
}

func (s *Server) handleDeleteShare(w http.ResponseWriter, r *http.Request) {
	user, shareID, ok := s.principalAndShareID(w, r)
	if !ok {
		return
	}

	if err := s.shares.DeleteShare(r.Context(), user, shareID, requestMeta(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]string{"message": "Share deleted"})
}

type memberView struct {
	UserID    uuid.UUID  `json:"user_id"`
	Role      store.Role `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
}

func viewMember(m *store.ShareMember) memberView {
	return memberView{UserID: m.UserID, Role: m.Role, CreatedAt: m.CreatedAt}
}

type memberRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	user, shareID, ok := s.principalAndShareID(w, r)
	if !ok {
		return
	}

	var req memberRequest
	if err := helpers.DecodeJSON(r, &req); err != nil || req.UserID == uuid.Nil {
		helpers.RespondError(w, r, http.StatusBadRequest, "user_id is required")
		return
	}
	role, ok := parseRole(req.Role)
	if !ok {
		helpers.RespondError(w, r, http.StatusUnprocessableEntity, "role must be viewer or editor")
		return
	}

	m, err := s.shares.AddMember(r.Context(), user, shareID, req.UserID, role, requestMeta(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusCreated, map[string]memberView{"member": viewMember(m)})
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	user, shareID, ok := s.principalAndShareID(w, r)
	if !ok {
		return
	}

	members, err := s.shares.ListMembers(r.Context(), user, shareID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	views := make([]memberView, 0, len(members))
	for i := range members {
		views = append(views, viewMember(&members[i]))
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"members": views})
}

func (s *Server) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	user, shareID, ok := s.principalAndShareID(w, r)
	if !ok {
		return
	}
	memberID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		helpers.RespondError(w, r, http.StatusBadRequest, "user id must be a uuid")
		return
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	role, ok := parseRole(req.Role)
	if !ok {
		helpers.RespondError(w, r, http.StatusUnprocessableEntity, "role must be viewer or editor")
		return
	}

	m, err := s.shares.UpdateMemberRole(r.Context(), user, shareID, memberID, role, requestMeta(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]memberView{"member": viewMember(m)})
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	user, shareID, ok := s.principalAndShareID(w, r)
	if !ok {
		return
	}
	memberID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		helpers.RespondError(w, r, http.StatusBadRequest, "user id must be a uuid")
		return
	}

	if err := s.shares.RemoveMember(r.Context(), user, shareID, memberID, requestMeta(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]string{"message": "Member removed"})
}

func parseRole(role string) (store.Role, bool) {
	switch store.Role(role) {
	case store.RoleViewer, store.RoleEditor:
		return store.Role(role), true
	case "":
		return store.RoleViewer, true
	}
	return "", false
}
