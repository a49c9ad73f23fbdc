package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/relayonprem/control-plane/internal/audit"
	"github.com/relayonprem/control-plane/internal/notify"
	"github.com/relayonprem/control-plane/internal/store"
)

// AdminCreateUser provisions an account on behalf of an administrator.
func (s *Service) AdminCreateUser(ctx context.Context, actor *store.User, email, password string, isAdmin bool, meta RequestMeta) (*store.User, error) {
	if err := ValidateNewPassword(password); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("password hashing failed: %w", err)
	}

	user, err := s.store.CreateUser(ctx, store.CreateUserParams{
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      isAdmin,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.audit.Log(ctx, audit.Entry{
		Action:       audit.ActionUserCreated,
		ActorUserID:  &actor.ID,
		TargetUserID: &user.ID,
		Details:      map[string]any{"email": user.Email, "is_admin": user.IsAdmin},
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	})
	s.dispatch.Dispatch(ctx, notify.Event{
		Type:  notify.EventUserCreated,
		Actor: actor,
		Data:  map[string]any{"user_id": user.ID.String(), "email": user.Email},
		Meta:  notify.Meta{IPAddress: meta.IPAddress, UserAgent: meta.UserAgent},
	})
	return user, nil
}

// AdminUpdateInput is a partial update to another user's account.
type AdminUpdateInput struct {
	Email    *string
	Password *string
	IsAdmin  *bool
	IsActive *bool
}

// AdminUpdateUser applies an administrative update. Deactivation revokes the
// target's sessions so existing refresh tokens die with the account.
func (s *Service) AdminUpdateUser(ctx context.Context, actor *store.User, userID uuid.UUID, in AdminUpdateInput, meta RequestMeta) (*store.User, error) {
	params := store.UpdateUserParams{
		Email:    in.Email,
		IsAdmin:  in.IsAdmin,
		IsActive: in.IsActive,
	}
	if in.Password != nil {
		if err := ValidateNewPassword(*in.Password); err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("password hashing failed: %w", err)
		}
		params.PasswordHash = &hash
	}

	user, err := s.store.UpdateUser(ctx, userID, params)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if in.IsActive != nil && !*in.IsActive {
		if _, err := s.store.DeleteSessionsByUser(ctx, userID); err != nil {
			return nil, fmt.Errorf("failed to revoke sessions: %w", err)
		}
	}

	s.audit.Log(ctx, audit.Entry{
		Action:       audit.ActionUserUpdated,
		ActorUserID:  &actor.ID,
		TargetUserID: &user.ID,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	})
	s.dispatch.Dispatch(ctx, notify.Event{
		Type:  notify.EventUserUpdated,
		Actor: actor,
		Data:  map[string]any{"user_id": user.ID.String()},
		Meta:  notify.Meta{IPAddress: meta.IPAddress, UserAgent: meta.UserAgent},
	})
	return user, nil
}

// AdminDeleteUser removes an account. Audit rows referencing it survive with
// a nulled foreign key.
func (s *Service) AdminDeleteUser(ctx context.Context, actor *store.User, userID uuid.UUID, meta RequestMeta) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("user lookup failed: %w", err)
	}

	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	s.audit.Log(ctx, audit.Entry{
		Action:       audit.ActionUserDeleted,
		ActorUserID:  &actor.ID,
		TargetUserID: &userID,
		Details:      map[string]any{"email": user.Email},
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	})
	s.dispatch.Dispatch(ctx, notify.Event{
		Type:  notify.EventUserDeleted,
		Actor: actor,
		Data:  map[string]any{"user_id": userID.String(), "email": user.Email},
		Meta:  notify.Meta{IPAddress: meta.IPAddress, UserAgent: meta.UserAgent},
	})
	return nil
}
