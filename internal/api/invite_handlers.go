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

type inviteView struct {
	ID        uuid.UUID  `json:"id"`
	ShareID   uuid.UUID  `json:"share_id"`
	Token     string     `json:"token,omitempty"` // only on creation
	Role      store.Role `json:"role"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	MaxUses   *int32     `json:"max_uses,omitempty"`
	UseCount  int32      `json:"use_count"`
	Revoked   bool       `json:"revoked"`
	CreatedAt time.Time  `json:"created_at"`
}

func viewInvite(inv *store.ShareInvite, includeToken bool) inviteView {
	v := inviteView{
		ID:        inv.ID,
		ShareID:   inv.ShareID,
		Role:      inv.Role,
		ExpiresAt: inv.ExpiresAt,
		MaxUses:   inv.MaxUses,
		UseCount:  inv.UseCount,
		Revoked:   inv.RevokedAt != nil,
		CreatedAt: inv.CreatedAt,
	}
	if includeToken {
		v.Token = inv.Token
	}
	return v
}

type createInviteRequest struct {
	Role          string `json:"role,omitempty"`
	ExpiresInDays *int   `json:"expires_in_days,omitempty"`
	MaxUses       *int32 `json:"max_uses,omitempty"`
	Email         string `json:"email,omitempty"`
}

func (s *Server) handleCreateInvite(w http.ResponseWriter, r *http.Request) {
	user, shareID, ok := s.principalAndShareID(w, r)
	if !ok {
		return
	}

	var req createInviteRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	role, ok := parseRole(req.Role)
	if !ok {
		helpers.RespondError(w, r, http.StatusUnprocessableEntity, "role must be viewer or editor")
		return
	}

	inv, err := s.shares.CreateInvite(r.Context(), user, shareID, share.CreateInviteInput{
		Role:          role,
		ExpiresInDays: req.ExpiresInDays,
		MaxUses:       req.MaxUses,
		Email:         req.Email,
	}, requestMeta(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusCreated, map[string]inviteView{"invite": viewInvite(inv, true)})
}

func (s *Server) handleListInvites(w http.ResponseWriter, r *http.Request) {
	user, shareID, ok := s.principalAndShareID(w, r)
	if !ok {
		return
	}

	invites, err := s.shares.ListInvites(r.Context(), user, shareID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	views := make([]inviteView, 0, len(invites))
	for i := range invites {
		views = append(views, viewInvite(&invites[i], false))
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{"invites": views})
}

func (s *Server) handleRevokeInvite(w http.ResponseWriter, r *http.Request) {
	user, shareID, ok := s.principalAndShareID(w, r)
	if !ok {
		return
	}
	inviteID, err := uuid.Parse(chi.URLParam(r, "invite_id"))
	if err != nil {
		helpers.RespondError(w, r, http.StatusBadRequest, "invite id must be a uuid")
		return
	}

	if err := s.shares.RevokeInvite(r.Context(), user, shareID, inviteID, requestMeta(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]string{"message": "Invite revoked"})
}

// handleInvitePreview is public: it shows what the invite grants without
// consuming it, so the redemption page can render.
func (s *Server) handleInvitePreview(w http.ResponseWriter, r *http.Request) {
	preview, err := s.shares.PreviewInvite(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, map[string]any{
		"share_path": preview.SharePath,
		"share_kind": preview.ShareKind,
		"role":       preview.Role,
		"valid":      preview.Valid,
	})
}

type redeemRequest struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

func (s *Server) handleRedeemInvite(w http.ResponseWriter, r *http.Request) {
	caller := middleware.Principal(r.Context())

	var req redeemRequest
	_ = helpers.DecodeJSON(r, &req) // body is optional for logged-in callers

	var form *share.NewUserForm
	if caller == nil {
		if req.Email == "" || req.Password == "" {
			helpers.RespondError(w, r, http.StatusBadRequest, "email and password are required to register")
			return
		}
		form = &share.NewUserForm{Email: req.Email, Password: req.Password}
	}

	result, err := s.shares.RedeemInvite(r.Context(), caller, chi.URLParam(r, "token"), form, requestMeta(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	resp := map[string]any{
		"user_id":    result.UserID,
		"share_id":   result.ShareID,
		"share_path": result.SharePath,
		"role":       result.Role,
	}
	if result.AccessToken != "" {
		resp["access_token"] = result.AccessToken
	} else {
		resp["access_token"] = nil
	}
	helpers.RespondJSON(w, http.StatusOK, resp)
}
