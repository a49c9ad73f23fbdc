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

var (
	ErrShareNotFound     = errors.New("share not found")
	ErrForbidden         = errors.New("not allowed")
	ErrPasswordRequired  = errors.New("protected shares require a password")
	ErrMemberExists      = errors.New("user is already a member")
	ErrMemberNotFound    = errors.New("member not found")
	ErrOwnerMembership   = errors.New("the owner cannot be a member of their own share")
	ErrInviteNotFound    = errors.New("invite not found")
	ErrInviteExhausted   = errors.New("invite is revoked, expired or used up")
	ErrInviteOwnerRedeem = errors.New("the share owner cannot redeem an invite")
)

// Dispatcher fans a domain event out to webhooks and queued emails.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev notify.Event)
}

// Config holds share service tunables.
type Config struct {
	// PublicURL is the base for invite links in emails.
	PublicURL string
	// SessionTTL bounds the session created for a user registered through
	// invite redemption.
	SessionTTL time.Duration
}

// Service is the share registry: share CRUD, membership, invites and the
// authorization decision. User passwords and share web passwords use
// different hashers; the web one is cheaper because protected-share reads
// verify on every request.
type Service struct {
	config     Config
	store      *store.Store
	userHasher crypto.PasswordHasher
	webHasher  crypto.PasswordHasher
	tokens     auth.TokenProvider
	audit      *audit.Recorder
	dispatch   Dispatcher
}

func NewService(
	config Config,
	st *store.Store,
	userHasher, webHasher crypto.PasswordHasher,
	tokens auth.TokenProvider,
	rec *audit.Recorder,
	dispatch Dispatcher,
) *Service {
	if config.SessionTTL == 0 {
		config.SessionTTL = 30 * 24 * time.Hour
	}
	return &Service{
		config:     config,
		store:      st,
		userHasher: userHasher,
		webHasher:  webHasher,
		tokens:     tokens,
		audit:      rec,
		dispatch:   dispatch,
	}
}

// CreateShareInput describes a new share.
type CreateShareInput struct {
	Kind       store.ShareKind
	Path       string
	Visibility store.Visibility
	Password   string
}

// CreateShare registers a share owned by the actor.
func (s *Service) CreateShare(ctx context.Context, actor *store.User, in CreateShareInput, meta auth.RequestMeta) (*store.Share, error) {
	if err := ValidatePath(in.Kind, in.Path); err != nil {
		return nil, err
	}
	if in.Visibility == "" {
		in.Visibility = store.VisibilityPrivate
	}

	var passwordHash string
	if in.Visibility == store.VisibilityProtected {
		if in.Password == "" {
			return nil, ErrPasswordRequired
		}
		var err error
		if passwordHash, err = s.webHasher.Hash(in.Password); err != nil {
			return nil, fmt.Errorf("failed to hash share password: %w", err)
		}
	}

	sh, err := s.store.CreateShare(ctx, store.CreateShareParams{
		Kind:         in.Kind,
		Path:         in.Path,
		Visibility:   in.Visibility,
		PasswordHash: passwordHash,
		OwnerUserID:  actor.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create share: %w", err)
	}

	s.audit.Log(ctx, audit.Entry{
		Action:        audit.ActionShareCreated,
		ActorUserID:   &actor.ID,
		TargetShareID: &sh.ID,
		Details:       map[string]any{"kind": sh.Kind, "path": sh.Path, "visibility": sh.Visibility},
		IPAddress:     meta.IPAddress,
		UserAgent:     meta.UserAgent,
	})
	s.dispatch.Dispatch(ctx, notify.Event{
		Type:  notify.EventShareCreated,
		Actor: actor,
		Data:  shareEventData(sh),
		Meta:  notify.Meta{IPAddress: meta.IPAddress, UserAgent: meta.UserAgent},
	})
	return sh, nil
}

// GetShare loads a share the actor may manage or read metadata for.
func (s *Service) GetShare(ctx context.Context, actor *store.User, shareID uuid.UUID) (*store.Share, error) {
	sh, err := s.store.GetShareByID(ctx, shareID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrShareNotFound
		}
		return nil, fmt.Errorf("share lookup failed: %w", err)
	}

	if CanManage(actor, sh) {
		return sh, nil
	}
	if actor != nil {
		if _, err := s.store.GetShareMember(ctx, sh.ID, actor.ID); err == nil {
			return sh, nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("membership lookup failed: %w", err)
		}
	}
	return nil, ErrForbidden
}

// ListShares returns the shares visible to the actor: everything for admins,
// owned-or-member shares otherwise.
func (s *Service) ListShares(ctx context.Context, actor *store.User) ([]store.Share, error) {
	if actor.IsAdmin {
		return s.store.ListAllShares(ctx)
	}
	return s.store.ListSharesForUser(ctx, actor.ID)
}

// UpdateShareInput is a partial update; nil fields stay unchanged.
type UpdateShareInput struct {
	Path         *string
	Visibility   *store.Visibility
	Password     *string
	WebPublished *bool
	WebSlug      *string
	WebNoindex   *bool
	WebContent   *string
	WebDocID     *string
}

// UpdateShare applies a partial update under the visibility invariants:
// becoming protected requires a password, leaving protected clears it.
func (s *Service) UpdateShare(ctx context.Context, actor *store.User, shareID uuid.UUID, in UpdateShareInput, meta auth.RequestMeta) (*store.Share, error) {
	sh, err := s.requireManageable(ctx, actor, shareID)
	if err != nil {
		return nil, err
	}

	if in.Path != nil {
		if err := ValidatePath(sh.Kind, *in.Path); err != nil {
			return nil, err
		}
	}

	params := store.UpdateShareParams{
		Path:         in.Path,
		Visibility:   in.Visibility,
		WebPublished: in.WebPublished,
		WebSlug:      in.WebSlug,
		WebNoindex:   in.WebNoindex,
		WebContent:   in.WebContent,
		WebDocID:     in.WebDocID,
	}

	targetVisibility := sh.Visibility
	if in.Visibility != nil {
		targetVisibility = *in.Visibility
	}

	switch {
	case targetVisibility == store.VisibilityProtected:
		if in.Password != nil && *in.Password != "" {
			hash, err := s.webHasher.Hash(*in.Password)
			if err != nil {
				return nil, fmt.Errorf("failed to hash share password: %w", err)
			}
			params.PasswordHash = &hash
		} else if sh.PasswordHash == "" {
			return nil, ErrPasswordRequired
		}
	case sh.Visibility == store.VisibilityProtected:
		// Leaving protected drops the password.
		empty := ""
		params.PasswordHash = &empty
	}

	updated, err := s.store.UpdateShare(ctx, shareID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to update share: %w", err)
	}

	s.audit.Log(ctx, audit.Entry{
		Action:        audit.ActionShareUpdated,
		ActorUserID:   &actor.ID,
		TargetShareID: &updated.ID,
		Details:       map[string]any{"visibility": updated.Visibility},
		IPAddress:     meta.IPAddress,
		UserAgent:     meta.UserAgent,
	})
	s.dispatch.Dispatch(ctx, notify.Event{
		Type:  notify.EventShareUpdated,
		Actor: actor,
		Data:  shareEventData(updated),
		Meta:  notify.Meta{IPAddress: meta.IPAddress, UserAgent: meta.UserAgent},
	})
	return updated, nil
}

// DeleteShare removes a share, its members and its invites, notifying former
// members by email.
func (s *Service) DeleteShare(ctx context.Context, actor *store.User, shareID uuid.UUID, meta auth.RequestMeta) error {
	sh, err := s.requireManageable(ctx, actor, shareID)
	if err != nil {
		return err
	}

	members, err := s.store.ListShareMembers(ctx, sh.ID)
	if err != nil {
		return fmt.Errorf("failed to list members: %w", err)
	}

	if err := s.store.DeleteShare(ctx, sh.ID); err != nil {
		return fmt.Errorf("failed to delete share: %w", err)
	}

	var emails []notify.EmailIntent
	for i := range members {
		member, err := s.store.GetUserByID(ctx, members[i].UserID)
		if err != nil {
			continue
		}
		emails = append(emails, notify.EmailIntent{
			Recipient: member,
			ToAddress: member.Email,
			Template:  notify.TemplateShareDeleted,
			Class:     notify.EmailClassSharing,
			Data:      map[string]any{"path": sh.Path},
		})
	}

	s.audit.Log(ctx, audit.Entry{
		Action:        audit.ActionShareDeleted,
		ActorUserID:   &actor.ID,
		TargetShareID: &sh.ID,
		Details:       map[string]any{"path": sh.Path},
		IPAddress:     meta.IPAddress,
		UserAgent:     meta.UserAgent,
	})
	s.dispatch.Dispatch(ctx, notify.Event{
		Type:   notify.EventShareDeleted,
		Actor:  actor,
		Data:   shareEventData(sh),
		Meta:   notify.Meta{IPAddress: meta.IPAddress, UserAgent: meta.UserAgent},
		Emails: emails,
	})
	return nil
}

// AddMember grants a user a role on the share.
func (s *Service) AddMember(ctx context.Context, actor *store.User, shareID, userID uuid.UUID, role store.Role, meta auth.RequestMeta) (*store.ShareMember, error) {
	sh, err := s.requireManageable(ctx, actor, shareID)
	if err != nil {
		return nil, err
	}
	if userID == sh.OwnerUserID {
		return nil, ErrOwnerMembership
	}

	member, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}

	m, err := s.store.AddShareMember(ctx, shareID, userID, role)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrMemberExists
		}
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	s.audit.Log(ctx, audit.Entry{
		Action:        audit.ActionMemberAdded,
		ActorUserID:   &actor.ID,
		TargetUserID:  &userID,
		TargetShareID: &shareID,
		Details:       map[string]any{"role": role},
		IPAddress:     meta.IPAddress,
		UserAgent:     meta.UserAgent,
	})
	s.dispatch.Dispatch(ctx, notify.Event{
		Type:  notify.EventMemberAdded,
		Actor: actor,
		Data: map[string]any{
			"share_id": shareID.String(),
			"user_id":  userID.String(),
			"role":     role,
		},
		Meta: notify.Meta{IPAddress: meta.IPAddress, UserAgent: meta.UserAgent},
		Emails: []notify.EmailIntent{{
			Recipient: member,
			ToAddress: member.Email,
			Template:  notify.TemplateMemberAdded,
			Class:     notify.EmailClassMembers,
			Data:      map[string]any{"path": sh.Path, "role": role},
		}},
	})
	return m, nil
}

// ListMembers returns the share's membership for owner or admin callers.
func (s *Service) ListMembers(ctx context.Context, actor *store.User, shareID uuid.UUID) ([]store.ShareMember, error) {
	if _, err := s.requireManageable(ctx, actor, shareID); err != nil {
		return nil, err
	}
	return s.store.ListShareMembers(ctx, shareID)
}

// UpdateMemberRole changes a member's role.
func (s *Service) UpdateMemberRole(ctx context.Context, actor *store.User, shareID, userID uuid.UUID, role store.Role, meta auth.RequestMeta) (*store.ShareMember, error) {
	if _, err := s.requireManageable(ctx, actor, shareID); err != nil {
		return nil, err
	}

	m, err := s.store.UpdateShareMemberRole(ctx, shareID, userID, role)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to update member: %w", err)
	}

	s.audit.Log(ctx, audit.Entry{
		Action:        audit.ActionMemberUpdated,
		ActorUserID:   &actor.ID,
		TargetUserID:  &userID,
		TargetShareID: &shareID,
		Details:       map[string]any{"role": role},
		IPAddress:     meta.IPAddress,
		UserAgent:     meta.UserAgent,
	})
	s.dispatch.Dispatch(ctx, notify.Event{
		Type:  notify.EventMemberUpdated,
		Actor: actor,
		Data: map[string]any{
			"share_id": shareID.String(),
			"user_id":  userID.String(),
			"role":     role,
		},
		Meta: notify.Meta{IPAddress: meta.IPAddress, UserAgent: meta.UserAgent},
	})
	return m, nil
}

// RemoveMember revokes a user's membership.
func (s *Service) RemoveMember(ctx context.Context, actor *store.User, shareID, userID uuid.UUID, meta auth.RequestMeta) error {
	if _, err := s.requireManageable(ctx, actor, shareID); err != nil {
		return err
	}

	if err := s.store.RemoveShareMember(ctx, shareID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMemberNotFound
		}
		return fmt.Errorf("failed to remove member: %w", err)
	}

	s.audit.Log(ctx, audit.Entry{
		Action:        audit.ActionMemberRemoved,
		ActorUserID:   &actor.ID,
		TargetUserID:  &userID,
		TargetShareID: &shareID,
		IPAddress:     meta.IPAddress,
		UserAgent:     meta.UserAgent,
	})
	s.dispatch.Dispatch(ctx, notify.Event{
		Type:  notify.EventMemberRemoved,
		Actor: actor,
		Data: map[string]any{
			"share_id": shareID.String(),
			"user_id":  userID.String(),
		},
		Meta: notify.Meta{IPAddress: meta.IPAddress, UserAgent: meta.UserAgent},
	})
	return nil
}

// requireManageable loads a share and checks owner-or-admin.
func (s *Service) requireManageable(ctx context.Context, actor *store.User, shareID uuid.UUID) (*store.Share, error) {
	sh, err := s.store.GetShareByID(ctx, shareID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrShareNotFound
		}
		return nil, fmt.Errorf("share lookup failed: %w", err)
	}
	if !CanManage(actor, sh) {
		return nil, ErrForbidden
	}
	return sh, nil
}

func shareEventData(sh *store.Share) map[string]any {
	return map[string]any{
		"share_id":   sh.ID.String(),
		"kind":       sh.Kind,
		"path":       sh.Path,
		"visibility": sh.Visibility,
	}
}
