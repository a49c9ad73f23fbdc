package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, email, password_hash, is_admin, is_active, email_verified,
	totp_secret, totp_enabled, backup_codes, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var backupCodes []byte
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.IsActive,
		&u.EmailVerified, &u.TOTPSecret, &u.TOTPEnabled, &backupCodes,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, wrapErr(err)
	}
	if len(backupCodes) > 0 {
		if err := json.Unmarshal(backupCodes, &u.BackupCodes); err != nil {
			return nil, fmt.Errorf("corrupt backup codes for user %s: %w", u.ID, err)
		}
	}
	return &u, nil
}

type CreateUserParams struct {
	Email         string
	PasswordHash  string
	IsAdmin       bool
	EmailVerified bool
}

func (s *Store) CreateUser(ctx context.Context, p CreateUserParams) (*User, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, is_admin, email_verified)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		p.Email, p.PasswordHash, p.IsAdmin, p.EmailVerified)
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetUserByEmail looks up a user case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	return scanUser(row)
}

func (s *Store) ListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+userColumns+` FROM users ORDER BY created_at LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, wrapErr(rows.Err())
}

type UpdateUserParams struct {
	Email         *string
	PasswordHash  *string
	IsAdmin       *bool
	IsActive      *bool
	EmailVerified *bool
}

// UpdateUser applies a partial update; nil fields are left untouched.
func (s *Store) UpdateUser(ctx context.Context, id uuid.UUID, p UpdateUserParams) (*User, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE users SET
			email          = COALESCE($2, email),
			password_hash  = COALESCE($3, password_hash),
			is_admin       = COALESCE($4, is_admin),
			is_active      = COALESCE($5, is_active),
			email_verified = COALESCE($6, email_verified),
			updated_at     = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		id, p.Email, p.PasswordHash, p.IsAdmin, p.IsActive, p.EmailVerified)
	return scanUser(row)
}

// SetUserTOTP atomically writes all three TOTP fields.
func (s *Store) SetUserTOTP(ctx context.Context, id uuid.UUID, secret string, enabled bool, codes []BackupCode) error {
	var codesJSON []byte
	if codes != nil {
		var err error
		if codesJSON, err = json.Marshal(codes); err != nil {
			return fmt.Errorf("failed to serialize backup codes: %w", err)
		}
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET totp_secret = $2, totp_enabled = $3, backup_codes = $4, updated_at = NOW()
		WHERE id = $1`,
		id, secret, enabled, codesJSON)
	if err != nil {
		return wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountOAuthAccounts reports how many OAuth accounts are linked to a user.
// A user may have an empty password hash only while this count is non-zero.
func (s *Store) CountOAuthAccounts(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM user_oauth_accounts WHERE user_id = $1`, userID).Scan(&n)
	return n, wrapErr(err)
}
