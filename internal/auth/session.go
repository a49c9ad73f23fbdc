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

// RefreshResult carries the rotated token pair.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	User         *store.User
	SessionID    uuid.UUID
}

// Refresh exchanges a refresh token for a new access/refresh pair. Rotation
// is single-use: the session keeps its id but its token hash is swapped, and
// of two concurrent calls with the same token only one wins. The loser, and
// any replayed token, gets ErrInvalidCredentials.
func (s *Service) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (*RefreshResult, error) {
	oldHash := crypto.HashToken(refreshToken)

	session, err := s.store.GetSessionByTokenHash(ctx, oldHash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("session lookup failed: %w", err)
	}

	if time.Now().After(session.ExpiresAt) {
		return nil, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("user lookup failed: %w", err)
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	newToken, err := crypto.GenerateSecureToken(32)
	if err != nil {
		return nil, err
	}

	session, err = s.store.RotateSession(ctx, oldHash, crypto.HashToken(newToken))
	if err != nil {
		// Not found here means another refresh with the same token won
		// the rotation race after our lookup.
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("session rotation failed: %w", err)
	}

	accessToken, err := s.tokens.GenerateAccessToken(user.ID, session.ID)
	if err != nil {
		return nil, fmt.Errorf("token generation failed: %w", err)
	}

	// Refresh is audited but intentionally emits no webhook event.
	s.audit.Log(ctx, audit.Entry{
		Action:      audit.ActionTokenRefreshed,
		ActorUserID: &user.ID,
		Details:     map[string]any{"session_id": session.ID.String()},
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
	})

	return &RefreshResult{
		AccessToken:  accessToken,
		RefreshToken: newToken,
		User:         user,
		SessionID:    session.ID,
	}, nil
}

// SessionInfo is one row of a user's session listing.
type SessionInfo struct {
	ID           uuid.UUID `json:"id"`
	DeviceName   string    `json:"device_name,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	IsCurrent    bool      `json:"is_current"`
}

// ListSessions returns the user's unexpired sessions, flagging the one the
// request was authenticated with.
func (s *Service) ListSessions(ctx context.Context, userID, currentSessionID uuid.UUID) ([]SessionInfo, error) {
	sessions, err := s.store.ListSessionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	infos := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		infos = append(infos, SessionInfo{
			ID:           sess.ID,
			DeviceName:   sess.DeviceName,
			UserAgent:    sess.UserAgent,
			IPAddress:    sess.IPAddress,
			LastActivity: sess.LastActivity,
			CreatedAt:    sess.CreatedAt,
			ExpiresAt:    sess.ExpiresAt,
			IsCurrent:    sess.ID == currentSessionID,
		})
	}
	return infos, nil
}

// RevokeSession deletes one of the user's sessions. Revoking the current
// session is allowed and acts as a logout. Another user's session is
// ErrNotOwnSession, distinct from a missing one.
func (s *Service) RevokeSession(ctx context.Context, user *store.User, sessionID uuid.UUID, meta RequestMeta) error {
	session, err := s.store.GetSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("session lookup failed: %w", err)
	}
	if session.UserID != user.ID {
		return ErrNotOwnSession
	}

	if err := s.store.DeleteSession(ctx, user.ID, sessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	s.audit.Log(ctx, audit.Entry{
		Action:      audit.ActionSessionRevoked,
		ActorUserID: &user.ID,
		Details:     map[string]any{"session_id": sessionID.String()},
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
	})
	s.dispatch.Dispatch(ctx, notify.Event{
		Type:  notify.EventSessionRevoked,
		Actor: user,
		Data:  map[string]any{"session_id": sessionID.String()},
		Meta:  notify.Meta{IPAddress: meta.IPAddress, UserAgent: meta.UserAgent},
	})
	return nil
}

// RevokeAllSessions deletes every session of the user and returns the count.
func (s *Service) RevokeAllSessions(ctx context.Context, user *store.User, meta RequestMeta) (int64, error) {
	n, err := s.store.DeleteSessionsByUser(ctx, user.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}

	s.audit.Log(ctx, audit.Entry{
		Action:      audit.ActionSessionRevoked,
		ActorUserID: &user.ID,
		Details:     map[string]any{"all": true, "count": n},
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
	})
	return n, nil
}

// Logout invalidates the session behind the presented refresh token. An
// unknown token is not an error; logout is idempotent.
func (s *Service) Logout(ctx context.Context, user *store.User, refreshToken string, meta RequestMeta) error {
	session, err := s.store.GetSessionByTokenHash(ctx, crypto.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("session lookup failed: %w", err)
	}
	if session.UserID != user.ID {
		return nil
	}

	if err := s.store.DeleteSession(ctx, user.ID, session.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.audit.Log(ctx, audit.Entry{
		Action:      audit.ActionUserLogout,
		ActorUserID: &user.ID,
		Details:     map[string]any{"session_id": session.ID.String()},
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
	})
	s.dispatch.Dispatch(ctx, notify.Event{
		Type:  notify.EventUserLogout,
		Actor: user,
		Meta:  notify.Meta{IPAddress: meta.IPAddress, UserAgent: meta.UserAgent},
	})
	return nil
}
