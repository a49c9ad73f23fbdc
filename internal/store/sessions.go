package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const sessionColumns = `id, user_id, refresh_token_hash, device_name, user_agent,
	ip_address, last_activity, expires_at, created_at`

func scanSession(row pgx.Row) (*UserSession, error) {
	var sess UserSession
	err := row.Scan(&sess.ID, &sess.UserID, &sess.RefreshTokenHash, &sess.DeviceName,
		&sess.UserAgent, &sess.IPAddress, &sess.LastActivity, &sess.ExpiresAt, &sess.CreatedAt)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &sess, nil
}

type CreateSessionParams struct {
	UserID           uuid.UUID
	RefreshTokenHash string
	DeviceName       string
	UserAgent        string
	IPAddress        string
	ExpiresAt        time.Time
}

func (s *Store) CreateSession(ctx context.Context, p CreateSessionParams) (*UserSession, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO user_sessions (user_id, refresh_token_hash, device_name, user_agent, ip_address, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+sessionColumns,
		p.UserID, p.RefreshTokenHash, p.DeviceName, p.UserAgent, p.IPAddress, p.ExpiresAt)
	return scanSession(row)
}

func (s *Store) GetSessionByTokenHash(ctx context.Context, hash string) (*UserSession, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM user_sessions WHERE refresh_token_hash = $1`, hash)
	return scanSession(row)
}

func (s *Store) GetSessionByID(ctx context.Context, id uuid.UUID) (*UserSession, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM user_sessions WHERE id = $1`, id)
	return scanSession(row)
}

// RotateSession replaces the refresh token hash in place and bumps activity.
// The WHERE clause on the old hash makes rotation single-use: of two
// concurrent refresh calls with the same token, exactly one matches a row.
func (s *Store) RotateSession(ctx context.Context, oldHash, newHash string) (*UserSession, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE user_sessions
		SET refresh_token_hash = $2, last_activity = NOW()
		WHERE refresh_token_hash = $1
		RETURNING `+sessionColumns,
		oldHash, newHash)
	return scanSession(row)
}

func (s *Store) ListSessionsByUser(ctx context.Context, userID uuid.UUID) ([]UserSession, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+sessionColumns+` FROM user_sessions
		WHERE user_id = $1 AND expires_at > NOW()
		ORDER BY last_activity DESC`, userID)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var sessions []UserSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, wrapErr(rows.Err())
}

// DeleteSession revokes one session, scoped to its owner.
func (s *Store) DeleteSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM user_sessions WHERE id = $1 AND user_id = $2`, sessionID, userID)
	if err != nil {
		return wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteSessionsByUser revokes every session for a user (mass-logout) and
// returns how many were removed.
func (s *Store) DeleteSessionsByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM user_sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, wrapErr(err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpiredSessions is run by the background janitor.
func (s *Store) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM user_sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, wrapErr(err)
	}
	return tag.RowsAffected(), nil
}
