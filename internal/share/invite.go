package share

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relayonprem/control-plane/internal/audit"
	"github.com/relayonprem/control-plane/internal/auth"
	"github.com/relayonprem/control-plane/internal/crypto"
	"github.com/relayonprem/control-plane/internal/notify"
	"github.com/relayonprem/control-plane/internal/store"
)

// CreateInviteInput describes a new invite.
type CreateInviteInput struct {
	Role          store.Role
	ExpiresInDays *int
	MaxUses       *int32
	Email         string // informational; an invite email is sent if set
}

// CreateInvite issues a token-keyed offer to join the share. The plaintext
// token is returned once and also stored; invites are share-scoped
// capabilities, not credentials, so they are not hashed.
func (s *Service) CreateInvite(ctx context.Context, actor *store.User, shareID uuid.UUID, in CreateInviteInput, meta auth.RequestMeta) (*store.ShareInvite, error) {
	sh, err := s.requireManageable(ctx, actor, shareID)
	if err != nil {
		return nil, err
	}
	if in.Role == "" {
		in.Role = store.RoleViewer
	}

	token, err := crypto.GenerateSecureToken(32)
	if err != nil {
		return nil, err
	}

	var expiresAt *time.Time
	if in.ExpiresInDays != nil {
		t := time.Now().AddDate(0, 0, *in.ExpiresInDays)
		expiresAt = &t
	}

	inv, err := s.store.CreateInvite(ctx, store.CreateInviteParams{
		ShareID:   shareID,
		Token:     token,
		Role:      in.Role,
		ExpiresAt: expiresAt,
		MaxUses:   in.MaxUses,
		CreatedBy: actor.ID,
		Email:     in.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create invite: %w", err)
	}

	var emails []notify.EmailIntent
	if in.Email != "" {
		emails = append(emails, notify.EmailIntent{
			ToAddress: in.Email,
			Template:  notify.TemplateInvite,
			Class:     notify.EmailClassInvites,
			Data: map[string]any{
				"path":       sh.Path,
				"role":       in.Role,
				"invite_url": fmt.Sprintf("%s/invite/%s", s.config.PublicURL, token),
			},
		})
	}

	s.audit.Log(ctx, audit.Entry{
		Action:        audit.ActionInviteCreated,
		ActorUserID:   &actor.ID,
		TargetShareID: &shareID,
		Details:       map[string]any{"invite_id": inv.ID.String(), "role": in.Role},
		IPAddress:     meta.IPAddress,
		UserAgent:     meta.UserAgent,
	})
	s.dispatch.Dispatch(ctx, notify.Event{
		Type:  notify.EventInviteCreated,
		Actor: actor,
		Data: map[string]any{
			"share_id":  shareID.String(),
			"invite_id": inv.ID.String(),
			"role":      in.Role,
		},
		Meta:   notify.Meta{IPAddress: meta.IPAddress, UserAgent: meta.UserAgent},
		Emails: emails,
	})
	return inv, nil
}

// ListInvites returns the share's invites for owner or admin callers.
func (s *Service) ListInvites(ctx context.Context, actor *store.User, shareID uuid.UUID) ([]store.ShareInvite, error) {
	if _, err := s.requireManageable(ctx, actor, shareID); err != nil {
		return nil, err
	}
	return s.store.ListInvitesByShare(ctx, shareID)
}

// RevokeInvite permanently disables an invite.
func (s *Service) RevokeInvite(ctx context.Context, actor *store.User, shareID, inviteID uuid.UUID, meta auth.RequestMeta) error {
	if _, err := s.requireManageable(ctx, actor, shareID); err != nil {
		return err
	}

	inv, err := s.store.GetInviteByID(ctx, inviteID)
	if err != nil || inv.ShareID != shareID {
		return ErrInviteNotFound
	}

	if err := s.store.RevokeInvite(ctx, inviteID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInviteNotFound
		}
		return fmt.Errorf("failed to revoke invite: %w", err)
	}

	s.audit.Log(ctx, audit.Entry{
		Action:        audit.ActionInviteRevoked,
		ActorUserID:   &actor.ID,
		TargetShareID: &shareID,
		Details:       map[string]any{"invite_id": inviteID.String()},
		IPAddress:     meta.IPAddress,
		UserAgent:     meta.UserAgent,
	})
	s.dispatch.Dispatch(ctx, notify.Event{
		Type:  notify.EventInviteRevoked,
		Actor: actor,
		Data: map[string]any{
			"share_id":  shareID.String(),
			"invite_id": inviteID.String(),
		},
		Meta: notify.Meta{IPAddress: meta.IPAddress, UserAgent: meta.UserAgent},
	})
	return nil
}

// InvitePreview is the unauthenticated view of an invite used by the landing
// page before redemption.
type InvitePreview struct {
	SharePath string
	ShareKind store.ShareKind
	Role      store.Role
	Valid     bool
}

// PreviewInvite describes an invite without consuming it.
func (s *Service) PreviewInvite(ctx context.Context, token string) (*InvitePreview, error) {
	inv, err := s.store.GetInviteByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("invite lookup failed: %w", err)
	}
	sh, err := s.store.GetShareByID(ctx, inv.ShareID)
	if err != nil {
		return nil, fmt.Errorf("share lookup failed: %w", err)
	}
	return &InvitePreview{
		SharePath: sh.Path,
		ShareKind: sh.Kind,
		Role:      inv.Role,
		Valid:     inviteValid(inv, time.Now()),
	}, nil
}

// NewUserForm registers an account during anonymous redemption.
type NewUserForm struct {
	Email    string
	Password string
}

// RedeemResult reports the outcome of a redemption. AccessToken is set only
// when a new user was created, so they can proceed without a separate login.
type RedeemResult struct {
	UserID      uuid.UUID
	ShareID     uuid.UUID
	SharePath   string
	Role        store.Role
	AccessToken string
}

// RedeemInvite turns a valid invite into a membership. Redemption is
// idempotent per user: an existing member succeeds without consuming a use.
// The invite row is locked for the critical section so concurrent
// redemptions cannot oversubscribe max_uses.
func (s *Service) RedeemInvite(ctx context.Context, caller *store.User, token string, form *NewUserForm, meta auth.RequestMeta) (*RedeemResult, error) {
	var result *RedeemResult
	var createdUser *store.User

	err := s.store.WithTx(ctx, func(txStore *store.Store) error {
		inv, err := txStore.GetInviteByTokenForUpdate(ctx, token)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInviteNotFound
			}
			return fmt.Errorf("invite lookup failed: %w", err)
		}
		if inviteDead(inv, time.Now()) {
			return ErrInviteExhausted
		}

		sh, err := txStore.GetShareByID(ctx, inv.ShareID)
		if err != nil {
			return fmt.Errorf("share lookup failed: %w", err)
		}

		user := caller
		if user == nil {
			if form == nil || form.Email == "" || form.Password == "" {
				return auth.ErrInvalidCredentials
			}
			if err := auth.ValidateNewPassword(form.Password); err != nil {
				return err
			}
			hash, err := s.userHasher.Hash(form.Password)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}
			user, err = txStore.CreateUser(ctx, store.CreateUserParams{
				Email:        form.Email,
				PasswordHash: hash,
			})
			if err != nil {
				if errors.Is(err, store.ErrDuplicate) {
					return auth.ErrEmailTaken
				}
				return fmt.Errorf("failed to create user: %w", err)
			}
			createdUser = user
		}

		if user.ID == sh.OwnerUserID {
			return ErrInviteOwnerRedeem
		}

		result = &RedeemResult{
			UserID:    user.ID,
			ShareID:   sh.ID,
			SharePath: sh.Path,
			Role:      inv.Role,
		}

		// Already a member: succeed without consuming a use. This runs
		// before the use budget so a re-clicked link keeps working after
		// the invite's last use went to this same user.
		if _, err := txStore.GetShareMember(ctx, sh.ID, user.ID); err == nil {
			return nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("membership lookup failed: %w", err)
		}

		if inv.MaxUses != nil && inv.UseCount >= *inv.MaxUses {
			return ErrInviteExhausted
		}

		if _, err := txStore.AddShareMember(ctx, sh.ID, user.ID, inv.Role); err != nil {
			return fmt.Errorf("failed to add member: %w", err)
		}
		if err := txStore.IncrementInviteUseCount(ctx, inv.ID); err != nil {
			return fmt.Errorf("failed to count invite use: %w", err)
		}

		return s.audit.LogTx(ctx, txStore, audit.Entry{
			Action:        audit.ActionInviteRedeemed,
			ActorUserID:   &user.ID,
			TargetShareID: &sh.ID,
			Details:       map[string]any{"invite_id": inv.ID.String(), "role": inv.Role},
			IPAddress:     meta.IPAddress,
			UserAgent:     meta.UserAgent,
		})
	})
	if err != nil {
		return nil, err
	}

	if createdUser != nil {
		// The session backs the access token's session_id claim. Its
		// refresh token is never returned; the user logs in normally to
		// get one.
		refresh, err := crypto.GenerateSecureToken(32)
		if err != nil {
			return nil, err
		}
		session, err := s.store.CreateSession(ctx, store.CreateSessionParams{
			UserID:           createdUser.ID,
			RefreshTokenHash: crypto.HashToken(refresh),
			DeviceName:       "Invite redemption",
			UserAgent:        meta.UserAgent,
			IPAddress:        meta.IPAddress,
			ExpiresAt:        time.Now().Add(s.config.SessionTTL),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
		if result.AccessToken, err = s.tokens.GenerateAccessToken(createdUser.ID, session.ID); err != nil {
			return nil, fmt.Errorf("token generation failed: %w", err)
		}
	}

	actor := caller
	if actor == nil {
		actor = createdUser
	}
	owner, err := s.store.GetShareByID(ctx, result.ShareID)
	var emails []notify.EmailIntent
	if err == nil {
		if ownerUser, err := s.store.GetUserByID(ctx, owner.OwnerUserID); err == nil {
			emails = append(emails, notify.EmailIntent{
				Recipient: ownerUser,
				ToAddress: ownerUser.Email,
				Template:  notify.TemplateInviteRedeemed,
				Class:     notify.EmailClassInvites,
				Data:      map[string]any{"path": result.SharePath, "email": actor.Email},
			})
		}
	}
	s.dispatch.Dispatch(ctx, notify.Event{
		Type:  notify.EventInviteRedeem,
		Actor: actor,
		Data: map[string]any{
			"share_id": result.ShareID.String(),
			"role":     result.Role,
		},
		Meta:   notify.Meta{IPAddress: meta.IPAddress, UserAgent: meta.UserAgent},
		Emails: emails,
	})
	return result, nil
}

// inviteDead reports revocation or expiry. The use budget is checked
// separately during redemption because existing members bypass it.
func inviteDead(inv *store.ShareInvite, now time.Time) bool {
	if inv.RevokedAt != nil {
		return true
	}
	return inv.ExpiresAt != nil && now.After(*inv.ExpiresAt)
}

// inviteValid checks revocation, expiry and the use budget.
func inviteValid(inv *store.ShareInvite, now time.Time) bool {
	if inv.RevokedAt != nil {
		return false
	}
	if inv.ExpiresAt != nil && now.After(*inv.ExpiresAt) {
		return false
	}
	if inv.MaxUses != nil && inv.UseCount >= *inv.MaxUses {
		return false
	}
	return true
}
