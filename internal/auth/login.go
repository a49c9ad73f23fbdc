package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relayonprem/control-plane/internal/audit"
	"github.com/relayonprem/control-plane/internal/crypto"
	"github.com/relayonprem/control-plane/internal/notify"
	"github.com/relayonprem/control-plane/internal/store"
)

// LoginResult contains the tokens to return to the client.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         *store.User
	SessionID    uuid.UUID
}

// Login authenticates with email and password. Users with TOTP enabled get
// ErrTwoFactorRequired without any tokens; they must complete LoginWith2FA.
func (s *Service) Login(ctx context.Context, email, password string, meta RequestMeta) (*LoginResult, error) {
	user, err := s.verifyPassword(ctx, email, password, meta)
	if err != nil {
		return nil, err
	}

	if user.TOTPEnabled {
		return nil, ErrTwoFactorRequired
	}

	return s.establishSession(ctx, user, "password", meta)
}

// LoginWith2FA completes a password login carrying a TOTP code or backup code.
func (s *Service) LoginWith2FA(ctx context.Context, email, password, code string, meta RequestMeta) (*LoginResult, error) {
	user, err := s.verifyPassword(ctx, email, password, meta)
	if err != nil {
		return nil, err
	}

	if !user.TOTPEnabled {
		return nil, ErrTOTPNotEnabled
	}

	if err := s.checkSecondFactor(ctx, user, code); err != nil {
		s.audit.Log(ctx, audit.Entry{
			Action:      audit.ActionLoginFailed,
			ActorUserID: &user.ID,
			Details:     map[string]any{"reason": "invalid_2fa_code"},
			IPAddress:   meta.IPAddress,
			UserAgent:   meta.UserAgent,
		})
		return nil, ErrInvalidCredentials
	}

	return s.establishSession(ctx, user, "password+totp", meta)
}

// IssueSession creates a session and token pair outside the password flow,
// for logins brokered by an external identity provider.
func (s *Service) IssueSession(ctx context.Context, user *store.User, meta RequestMeta) (*LoginResult, error) {
	return s.establishSession(ctx, user, "oauth", meta)
}

// verifyPassword resolves and checks a user without issuing tokens. All
// failure modes collapse into ErrInvalidCredentials to prevent enumeration.
func (s *Service) verifyPassword(ctx context.Context, email, password string, meta RequestMeta) (*store.User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}

	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	// Users with only OAuth logins have no password hash.
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		s.audit.Log(ctx, audit.Entry{
			Action:      audit.ActionLoginFailed,
			ActorUserID: &user.ID,
			Details:     map[string]any{"reason": "bad_password"},
			IPAddress:   meta.IPAddress,
			UserAgent:   meta.UserAgent,
		})
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// establishSession creates a session row, mints both tokens, audits the login
// and dispatches user.login / session.created events.
func (s *Service) establishSession(ctx context.Context, user *store.User, method string, meta RequestMeta) (*LoginResult, error) {
	refreshToken, err := crypto.GenerateSecureToken(32)
	if err != nil {
		return nil, err
	}

	session, err := s.store.CreateSession(ctx, store.CreateSessionParams{
		UserID:           user.ID,
		RefreshTokenHash: crypto.HashToken(refreshToken),
		DeviceName:       meta.DeviceName,
		UserAgent:        meta.UserAgent,
		IPAddress:        meta.IPAddress,
		ExpiresAt:        time.Now().Add(s.config.RefreshTokenTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	accessToken, err := s.tokens.GenerateAccessToken(user.ID, session.ID)
	if err != nil {
		return nil, fmt.Errorf("token generation failed: %w", err)
	}

	s.audit.Log(ctx, audit.Entry{
		Action:      audit.ActionUserLogin,
		ActorUserID: &user.ID,
		Details:     map[string]any{"method": method},
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
	})

	s.dispatch.Dispatch(ctx, notify.Event{
		Type:  notify.EventUserLogin,
		Actor: user,
		Data:  map[string]any{"method": method},
		Meta:  notify.Meta{IPAddress: meta.IPAddress, UserAgent: meta.UserAgent},
	})
	s.dispatch.Dispatch(ctx, notify.Event{
		Type:  notify.EventSessionCreated,
		Actor: user,
		Data: map[string]any{
			"session_id":  session.ID.String(),
			"device_name": session.DeviceName,
		},
		Meta: notify.Meta{IPAddress: meta.IPAddress, UserAgent: meta.UserAgent},
	})

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken, // Return the RAW token; only its hash is stored
		User:         user,
		SessionID:    session.ID,
	}, nil
}
