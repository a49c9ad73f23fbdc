package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CreateActionToken inserts a password-reset or email-verification token hash,
// invalidating any prior unused tokens of the same kind for the same user.
func (s *Store) CreateActionToken(ctx context.Context, userID uuid.UUID, kind ActionTokenKind, tokenHash string, expiresAt time.Time) (*ActionToken, error) {
	_, err := s.db.Exec(ctx, `
		UPDATE action_tokens SET used_at = NOW()
		WHERE user_id = $1 AND kind = $2 AND used_at IS NULL`,
		userID, kind)
	if err != nil {
		return nil, wrapErr(err)
	}

	var tok ActionToken
	err = s.db.QueryRow(ctx, `
		INSERT INTO action_tokens (user_id, kind, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, kind, token_hash, expires_at, used_at`,
		userID, kind, tokenHash, expiresAt).
		Scan(&tok.ID, &tok.UserID, &tok.Kind, &tok.TokenHash, &tok.ExpiresAt, &tok.UsedAt)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &tok, nil
}

// ConsumeActionToken atomically marks a valid token used and returns it.
// The WHERE clause performs the not-used, not-expired check in one statement,
// so a token can only ever be consumed once.
func (s *Store) ConsumeActionToken(ctx context.Context, kind ActionTokenKind, tokenHash string) (*ActionToken, error) {
	var tok ActionToken
	err := s.db.QueryRow(ctx, `
		UPDATE action_tokens SET used_at = NOW()
		WHERE kind = $1 AND token_hash = $2 AND used_at IS NULL AND expires_at > NOW()
		RETURNING id, user_id, kind, token_hash, expires_at, used_at`,
		kind, tokenHash).
		Scan(&tok.ID, &tok.UserID, &tok.Kind, &tok.TokenHash, &tok.ExpiresAt, &tok.UsedAt)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &tok, nil
}
