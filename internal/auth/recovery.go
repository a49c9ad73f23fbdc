package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/relayonprem/control-plane/internal/audit"
	"github.com/relayonprem/control-plane/internal/crypto"
	"github.com/relayonprem/control-plane/internal/notify"
	"github.com/relayonprem/control-plane/internal/store"
)

var ErrInvalidActionToken = errors.New("token is invalid, expired or already used")

// ChangePassword sets a new password for an authenticated user after
// verifying the current one, then revokes every session of the user. The
// caller keeps working on its access token until that expires and must log
// in again afterwards. OAuth-only users (empty hash) cannot change a
// password this way; they must go through the reset flow.
func (s *Service) ChangePassword(ctx context.Context, user *store.User, currentPassword, newPassword string, meta RequestMeta) error {
	if user.PasswordHash == "" {
		return ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, currentPassword); err != nil {
		return ErrInvalidCredentials
	}
	if err := ValidateNewPassword(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	err = s.store.WithTx(ctx, func(txStore *store.Store) error {
		if _, err := txStore.UpdateUser(ctx, user.ID, store.UpdateUserParams{PasswordHash: &hash}); err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}

		// The old password may have leaked; drop every session so stolen
		// refresh tokens stop rotating.
		if _, err := txStore.DeleteSessionsByUser(ctx, user.ID); err != nil {
			return fmt.Errorf("failed to revoke sessions: %w", err)
		}

		return s.audit.LogTx(ctx, txStore, audit.Entry{
			Action:      audit.ActionPasswordChanged,
			ActorUserID: &user.ID,
			IPAddress:   meta.IPAddress,
			UserAgent:   meta.UserAgent,
		})
	})
	if err != nil {
		return err
	}
	s.dispatch.Dispatch(ctx, notify.Event{
		Type:  notify.EventPasswordReset,
		Actor: user,
		Data:  map[string]any{"method": "change"},
		Meta:  notify.Meta{IPAddress: meta.IPAddress, UserAgent: meta.UserAgent},
		Emails: []notify.EmailIntent{{
			Recipient: user,
			ToAddress: user.Email,
			Template:  notify.TemplatePasswordChanged,
			Class:     notify.EmailClassSecurity,
		}},
	})
	return nil
}

// RequestPasswordReset issues a reset token and queues the email. It reveals
// nothing about account existence: unknown and inactive addresses return nil
// without side effects.
func (s *Service) RequestPasswordReset(ctx context.Context, email string, meta RequestMeta) error {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("user lookup failed: %w", err)
	}
	if !user.IsActive {
		return nil
	}

	token, err := crypto.GenerateSecureToken(32)
	if err != nil {
		return err
	}
	expiresAt := time.Now().Add(s.config.PasswordResetTTL)
	if _, err := s.store.CreateActionToken(ctx, user.ID, store.TokenPasswordReset, crypto.HashToken(token), expiresAt); err != nil {
		return fmt.Errorf("failed to create reset token: %w", err)
	}

	s.dispatch.Dispatch(ctx, notify.Event{
		Type:  notify.EventPasswordReset,
		Actor: user,
		Data:  map[string]any{"phase": "requested"},
		Meta:  notify.Meta{IPAddress: meta.IPAddress, UserAgent: meta.UserAgent},
		Emails: []notify.EmailIntent{{
			Recipient: user,
			ToAddress: user.Email,
			Template:  notify.TemplatePasswordReset,
			Class:     notify.EmailClassSecurity,
			Data: map[string]any{
				"reset_url":  fmt.Sprintf("%s/reset-password?token=%s", s.config.PublicURL, token),
				"expires_at": expiresAt,
			},
		}},
	})
	return nil
}

// CompletePasswordReset consumes the token, sets the new password and revokes
// every existing session of the user.
func (s *Service) CompletePasswordReset(ctx context.Context, token, newPassword string, meta RequestMeta) error {
	if err := ValidateNewPassword(newPassword); err != nil {
		return err
	}

	var resetUser *store.User
	err := s.store.WithTx(ctx, func(txStore *store.Store) error {
		tok, err := txStore.ConsumeActionToken(ctx, store.TokenPasswordReset, crypto.HashToken(token))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidActionToken
			}
			return fmt.Errorf("failed to consume reset token: %w", err)
		}

		hash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		if resetUser, err = txStore.UpdateUser(ctx, tok.UserID, store.UpdateUserParams{PasswordHash: &hash}); err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}

		// A reset means the old credential may be compromised.
		if _, err := txStore.DeleteSessionsByUser(ctx, tok.UserID); err != nil {
			return fmt.Errorf("failed to revoke sessions: %w", err)
		}

		return s.audit.LogTx(ctx, txStore, audit.Entry{
			Action:      audit.ActionPasswordReset,
			ActorUserID: &tok.UserID,
			IPAddress:   meta.IPAddress,
			UserAgent:   meta.UserAgent,
		})
	})
	if err != nil {
		return err
	}

	s.dispatch.Dispatch(ctx, notify.Event{
		Type:  notify.EventPasswordReset,
		Actor: resetUser,
		Data:  map[string]any{"phase": "completed"},
		Meta:  notify.Meta{IPAddress: meta.IPAddress, UserAgent: meta.UserAgent},
		Emails: []notify.EmailIntent{{
			Recipient: resetUser,
			ToAddress: resetUser.Email,
			Template:  notify.TemplatePasswordChanged,
			Class:     notify.EmailClassSecurity,
		}},
	})
	return nil
}

// RequestEmailVerification issues a verification token for the user's address.
func (s *Service) RequestEmailVerification(ctx context.Context, user *store.User, meta RequestMeta) error {
	if user.EmailVerified {
		return nil
	}

	token, err := crypto.GenerateSecureToken(32)
	if err != nil {
		return err
	}
	expiresAt := time.Now().Add(24 * time.Hour)
	if _, err := s.store.CreateActionToken(ctx, user.ID, store.TokenEmailVerification, crypto.HashToken(token), expiresAt); err != nil {
		return fmt.Errorf("failed to create verification token: %w", err)
	}

	// Email-only: no webhook event type exists for verification requests.
	s.dispatch.Dispatch(ctx, notify.Event{
		Actor: user,
		Meta:  notify.Meta{IPAddress: meta.IPAddress, UserAgent: meta.UserAgent},
		Emails: []notify.EmailIntent{{
			Recipient: user,
			ToAddress: user.Email,
			Template:  notify.TemplateVerifyEmail,
			Class:     notify.EmailClassSecurity,
			Data: map[string]any{
				"verify_url": fmt.Sprintf("%s/verify-email?token=%s", s.config.PublicURL, token),
				"expires_at": expiresAt,
			},
		}},
	})
	return nil
}

// VerifyEmail consumes a verification token and marks the address verified.
func (s *Service) VerifyEmail(ctx context.Context, token string, meta RequestMeta) error {
	tok, err := s.store.ConsumeActionToken(ctx, store.TokenEmailVerification, crypto.HashToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidActionToken
		}
		return fmt.Errorf("failed to consume verification token: %w", err)
	}

	verified := true
	if _, err := s.store.UpdateUser(ctx, tok.UserID, store.UpdateUserParams{EmailVerified: &verified}); err != nil {
		return fmt.Errorf("failed to mark email verified: %w", err)
	}

	s.audit.Log(ctx, audit.Entry{
		Action:      audit.ActionEmailVerified,
		ActorUserID: &tok.UserID,
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
	})
	return nil
}
