package share

import (
	"context"
	"errors"
	"fmt"

	"github.com/relayonprem/control-plane/internal/crypto"
	"github.com/relayonprem/control-plane/internal/store"
)

// Action is what the caller wants to do with a share's content.
type Action string

const (
	ActionRead  Action = "read"
	ActionWrite Action = "write"
)

// AccessRequest is one authorization question.
type AccessRequest struct {
	Principal         *store.User // nil for anonymous callers
	Share             *store.Share
	Action            Action
	PresentedPassword string // only consulted for protected shares
}

// Authorize answers an AccessRequest. First matching rule decides:
// admin, then owner, then membership role, then public read, then
// protected read with a matching password, then deny.
func (s *Service) Authorize(ctx context.Context, req AccessRequest) (bool, error) {
	var member *store.ShareMember
	if req.Principal != nil {
		m, err := s.store.GetShareMember(ctx, req.Share.ID, req.Principal.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return false, fmt.Errorf("membership lookup failed: %w", err)
		}
		member = m
	}
	return decide(req, member, s.webHasher), nil
}

// decide is the pure decision core; membership is resolved by the caller.
func decide(req AccessRequest, member *store.ShareMember, webHasher crypto.PasswordHasher) bool {
	if req.Principal != nil {
		if req.Principal.IsAdmin {
			return true
		}
		if req.Share.OwnerUserID == req.Principal.ID {
			return true
		}
		if member != nil {
			switch member.Role {
			case store.RoleEditor:
				return true
			case store.RoleViewer:
				return req.Action == ActionRead
			}
			return false
		}
	}

	if req.Action != ActionRead {
		return false
	}

	switch req.Share.Visibility {
	case store.VisibilityPublic:
		return true
	case store.VisibilityProtected:
		if req.PresentedPassword == "" || req.Share.PasswordHash == "" {
			return false
		}
		return webHasher.Compare(req.Share.PasswordHash, req.PresentedPassword) == nil
	}
	return false
}

// CanManage reports whether the principal may administer the share: list and
// change members, create and revoke invites, edit or delete the share.
func CanManage(principal *store.User, sh *store.Share) bool {
	if principal == nil {
		return false
	}
	return principal.IsAdmin || sh.OwnerUserID == principal.ID
}
