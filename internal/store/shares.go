package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const shareColumns = `id, kind, path, visibility, password_hash, owner_user_id,
	web_published, COALESCE(web_slug, ''), web_noindex, web_content, web_doc_id, created_at, updated_at`

func scanShare(row pgx.Row) (*Share, error) {
	var sh Share
	err := row.Scan(&sh.ID, &sh.Kind, &sh.Path, &sh.Visibility, &sh.PasswordHash,
		&sh.OwnerUserID, &sh.WebPublished, &sh.WebSlug, &sh.WebNoindex,
		&sh.WebContent, &sh.WebDocID, &sh.CreatedAt, &sh.UpdatedAt)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &sh, nil
}

type CreateShareParams struct {
	Kind         ShareKind
	Path         string
	Visibility   Visibility
	PasswordHash string
	OwnerUserID  uuid.UUID
}

func (s *Store) CreateShare(ctx context.Context, p CreateShareParams) (*Share, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO shares (kind, path, visibility, password_hash, owner_user_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+shareColumns,
		p.Kind, p.Path, p.Visibility, p.PasswordHash, p.OwnerUserID)
	return scanShare(row)
}

func (s *Store) GetShareByID(ctx context.Context, id uuid.UUID) (*Share, error) {
	row := s.db.QueryRow(ctx, `SELECT `+shareColumns+` FROM shares WHERE id = $1`, id)
	return scanShare(row)
}

func (s *Store) GetShareBySlug(ctx context.Context, slug string) (*Share, error) {
	row := s.db.QueryRow(ctx, `SELECT `+shareColumns+` FROM shares WHERE web_slug = $1`, slug)
	return scanShare(row)
}

// GetDocShareByPath returns the doc share with an exact path match, if any.
func (s *Store) GetDocShareByPath(ctx context.Context, path string) (*Share, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+shareColumns+` FROM shares WHERE kind = 'doc' AND path = $1`, path)
	return scanShare(row)
}

// ListFolderShares returns every folder share; the resolver filters by prefix.
func (s *Store) ListFolderShares(ctx context.Context) ([]Share, error) {
	return s.queryShares(ctx, `SELECT `+shareColumns+` FROM shares WHERE kind = 'folder'`)
}

// ListSharesForUser returns shares the user owns or is a member of.
// Admins list everything via ListAllShares.
func (s *Store) ListSharesForUser(ctx context.Context, userID uuid.UUID) ([]Share, error) {
	return s.queryShares(ctx, `
		SELECT DISTINCT `+shareColumns+` FROM shares
		LEFT JOIN share_members m ON m.share_id = shares.id
		WHERE shares.owner_user_id = $1 OR m.user_id = $1
		ORDER BY created_at`, userID)
}

func (s *Store) ListAllShares(ctx context.Context) ([]Share, error) {
	return s.queryShares(ctx, `SELECT `+shareColumns+` FROM shares ORDER BY created_at`)
}

func (s *Store) queryShares(ctx context.Context, sql string, args ...any) ([]Share, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var shares []Share
	for rows.Next() {
		sh, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		shares = append(shares, *sh)
	}
	return shares, wrapErr(rows.Err())
}

type UpdateShareParams struct {
	Path         *string
	Visibility   *Visibility
	PasswordHash *string
	WebPublished *bool
	WebSlug      *string
	WebNoindex   *bool
	WebContent   *string
	WebDocID     *string
}

func (s *Store) UpdateShare(ctx context.Context, id uuid.UUID, p UpdateShareParams) (*Share, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE shares SET
			path          = COALESCE($2, path),
			visibility    = COALESCE($3, visibility),
			password_hash = COALESCE($4, password_hash),
			web_published = COALESCE($5, web_published),
			web_slug      = COALESCE(NULLIF($6, ''), web_slug),
			web_noindex   = COALESCE($7, web_noindex),
			web_content   = COALESCE($8, web_content),
			web_doc_id    = COALESCE($9, web_doc_id),
			updated_at    = NOW()
		WHERE id = $1
		RETURNING `+shareColumns,
		id, p.Path, p.Visibility, p.PasswordHash, p.WebPublished, p.WebSlug,
		p.WebNoindex, p.WebContent, p.WebDocID)
	return scanShare(row)
}

func (s *Store) DeleteShare(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM shares WHERE id = $1`, id)
	if err != nil {
		return wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const memberColumns = `id, share_id, user_id, role, created_at`

func scanMember(row pgx.Row) (*ShareMember, error) {
	var m ShareMember
	if err := row.Scan(&m.ID, &m.ShareID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
		return nil, wrapErr(err)
	}
	return &m, nil
}

func (s *Store) AddShareMember(ctx context.Context, shareID, userID uuid.UUID, role Role) (*ShareMember, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO share_members (share_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING `+memberColumns,
		shareID, userID, role)
	return scanMember(row)
}

func (s *Store) GetShareMember(ctx context.Context, shareID, userID uuid.UUID) (*ShareMember, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+memberColumns+` FROM share_members WHERE share_id = $1 AND user_id = $2`,
		shareID, userID)
	return scanMember(row)
}

func (s *Store) ListShareMembers(ctx context.Context, shareID uuid.UUID) ([]ShareMember, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+memberColumns+` FROM share_members WHERE share_id = $1 ORDER BY created_at`,
		shareID)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var members []ShareMember
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, wrapErr(rows.Err())
}

func (s *Store) UpdateShareMemberRole(ctx context.Context, shareID, userID uuid.UUID, role Role) (*ShareMember, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE share_members SET role = $3 WHERE share_id = $1 AND user_id = $2
		RETURNING `+memberColumns,
		shareID, userID, role)
	return scanMember(row)
}

func (s *Store) RemoveShareMember(ctx context.Context, shareID, userID uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM share_members WHERE share_id = $1 AND user_id = $2`, shareID, userID)
	if err != nil {
		return wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
