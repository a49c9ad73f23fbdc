package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const providerColumns = `id, name, issuer_url, client_id, client_secret_encrypted, enabled, auto_register`

func scanProvider(row pgx.Row) (*OAuthProvider, error) {
	var p OAuthProvider
	err := row.Scan(&p.ID, &p.Name, &p.IssuerURL, &p.ClientID,
		&p.ClientSecretEncrypted, &p.Enabled, &p.AutoRegister)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &p, nil
}

type CreateOAuthProviderParams struct {
	Name                  string
	IssuerURL             string
	ClientID              string
	ClientSecretEncrypted string
	Enabled               bool
	AutoRegister          bool
}

func (s *Store) CreateOAuthProvider(ctx context.Context, p CreateOAuthProviderParams) (*OAuthProvider, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO oauth_providers (name, issuer_url, client_id, client_secret_encrypted, enabled, auto_register)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+providerColumns,
		p.Name, p.IssuerURL, p.ClientID, p.ClientSecretEncrypted, p.Enabled, p.AutoRegister)
	return scanProvider(row)
}

func (s *Store) GetOAuthProviderByName(ctx context.Context, name string) (*OAuthProvider, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+providerColumns+` FROM oauth_providers WHERE name = $1`, name)
	return scanProvider(row)
}

func (s *Store) ListOAuthProviders(ctx context.Context) ([]OAuthProvider, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+providerColumns+` FROM oauth_providers WHERE enabled ORDER BY name`)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var providers []OAuthProvider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		providers = append(providers, *p)
	}
	return providers, wrapErr(rows.Err())
}

const oauthAccountColumns = `id, user_id, provider_id, provider_user_id, email, name, picture_url`

func scanOAuthAccount(row pgx.Row) (*UserOAuthAccount, error) {
	var a UserOAuthAccount
	err := row.Scan(&a.ID, &a.UserID, &a.ProviderID, &a.ProviderUserID,
		&a.Email, &a.Name, &a.PictureURL)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &a, nil
}

type LinkOAuthAccountParams struct {
	UserID         uuid.UUID
	ProviderID     uuid.UUID
	ProviderUserID string
	Email          string
	Name           string
	PictureURL     string
}

func (s *Store) LinkOAuthAccount(ctx context.Context, p LinkOAuthAccountParams) (*UserOAuthAccount, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO user_oauth_accounts (user_id, provider_id, provider_user_id, email, name, picture_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+oauthAccountColumns,
		p.UserID, p.ProviderID, p.ProviderUserID, p.Email, p.Name, p.PictureURL)
	return scanOAuthAccount(row)
}

func (s *Store) GetOAuthAccount(ctx context.Context, providerID uuid.UUID, providerUserID string) (*UserOAuthAccount, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+oauthAccountColumns+` FROM user_oauth_accounts
		WHERE provider_id = $1 AND provider_user_id = $2`,
		providerID, providerUserID)
	return scanOAuthAccount(row)
}

// SyncOAuthAccount refreshes profile fields from the provider's userinfo.
func (s *Store) SyncOAuthAccount(ctx context.Context, id uuid.UUID, email, name, pictureURL string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE user_oauth_accounts SET email = $2, name = $3, picture_url = $4 WHERE id = $1`,
		id, email, name, pictureURL)
	return wrapErr(err)
}
