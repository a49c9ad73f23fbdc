package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/relayonprem/control-plane/internal/api/helpers"
	"github.com/relayonprem/control-plane/internal/api/middleware"
	"github.com/relayonprem/control-plane/internal/relay"
)

func (s *Server) handlePublicKey(w http.ResponseWriter, r *http.Request) {
	helpers.RespondJSON(w, http.StatusOK, s.minter.PublicKey())
}

type relayTokenRequest struct {
	ShareID  uuid.UUID `json:"share_id"`
	DocID    string    `json:"doc_id"`
	Mode     string    `json:"mode"`
	FilePath string    `json:"file_path,omitempty"`
	Password string    `json:"password,omitempty"`
}

// handleMintRelayToken issues a relay capability. Anonymous read on public
// shares is allowed, so authentication is optional here.
func (s *Server) handleMintRelayToken(w http.ResponseWriter, r *http.Request) {
	var req relayTokenRequest
	if err := helpers.DecodeJSON(r, &req); err != nil {
		helpers.RespondError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ShareID == uuid.Nil || req.DocID == "" {
		helpers.RespondError(w, r, http.StatusUnprocessableEntity, "share_id and doc_id are required")
		return
	}

	token, err := s.minter.Issue(r.Context(), middleware.Principal(r.Context()), relay.TokenRequest{
		ShareID:  req.ShareID,
		DocID:    req.DocID,
		Mode:     req.Mode,
		FilePath: req.FilePath,
		Password: req.Password,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	helpers.RespondJSON(w, http.StatusOK, token)
}
