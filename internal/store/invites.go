package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const inviteColumns = `id, share_id, token, role, expires_at, max_uses, use_count,
	revoked_at, created_by, email, created_at`

func scanInvite(row pgx.Row) (*ShareInvite, error) {
	var inv ShareInvite
	err := row.Scan(&inv.ID, &inv.ShareID, &inv.Token, &inv.Role, &inv.ExpiresAt,
		&inv.MaxUses, &inv.UseCount, &inv.RevokedAt, &inv.CreatedBy, &inv.Email, &inv.CreatedAt)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &inv, nil
}

type CreateInviteParams struct {
	ShareID   uuid.UUID
	Token     string
	Role      Role
	ExpiresAt *time.Time
	MaxUses   *int32
	CreatedBy uuid.UUID
	Email     string
}

func (s *Store) CreateInvite(ctx context.Context, p CreateInviteParams) (*ShareInvite, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO share_invites (share_id, token, role, expires_at, max_uses, created_by, email)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+inviteColumns,
		p.ShareID, p.Token, p.Role, p.ExpiresAt, p.MaxUses, p.CreatedBy, p.Email)
	return scanInvite(row)
}

func (s *Store) GetInviteByToken(ctx context.Context, token string) (*ShareInvite, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+inviteColumns+` FROM share_invites WHERE token = $1`, token)
	return scanInvite(row)
}

func (s *Store) GetInviteByID(ctx context.Context, id uuid.UUID) (*ShareInvite, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+inviteColumns+` FROM share_invites WHERE id = $1`, id)
	return scanInvite(row)
}

// GetInviteByTokenForUpdate locks the invite row for the redemption critical
// section, serializing concurrent redemptions of the same invite.
func (s *Store) GetInviteByTokenForUpdate(ctx context.Context, token string) (*ShareInvite, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+inviteColumns+` FROM share_invites WHERE token = $1 FOR UPDATE`, token)
	return scanInvite(row)
}

func (s *Store) ListInvitesByShare(ctx context.Context, shareID uuid.UUID) ([]ShareInvite, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+inviteColumns+` FROM share_invites WHERE share_id = $1 ORDER BY created_at`,
		shareID)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var invites []ShareInvite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		invites = append(invites, *inv)
	}
	return invites, wrapErr(rows.Err())
}

func (s *Store) IncrementInviteUseCount(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`UPDATE share_invites SET use_count = use_count + 1 WHERE id = $1`, id)
	return wrapErr(err)
}

func (s *Store) RevokeInvite(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE share_invites SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
