package store

import (
	"context"

	"github.com/google/uuid"
)

// GetSetting returns the value for an instance setting key.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRow(ctx,
		`SELECT value FROM instance_settings WHERE key = $1`, key).Scan(&value)
	return value, wrapErr(err)
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO instance_settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value)
	return wrapErr(err)
}

func (s *Store) ListSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.Query(ctx, `SELECT key, value FROM instance_settings`)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, wrapErr(err)
		}
		settings[k] = v
	}
	return settings, wrapErr(rows.Err())
}

// GetEmailPreferences returns the user's notification preferences, falling
// back to defaults (everything on except digests) when no row exists.
func (s *Store) GetEmailPreferences(ctx context.Context, userID uuid.UUID) (*EmailPreferences, error) {
	var p EmailPreferences
	err := s.db.QueryRow(ctx, `
		SELECT user_id, invite_notifications, share_update_notifications,
		       member_notifications, security_alerts, digest_emails
		FROM email_preferences WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.InviteNotifications, &p.ShareUpdateNotifications,
			&p.MemberNotifications, &p.SecurityAlerts, &p.DigestEmails)
	if err != nil {
		if wrapErr(err) == ErrNotFound {
			return &EmailPreferences{
				UserID:                   userID,
				InviteNotifications:      true,
				ShareUpdateNotifications: true,
				MemberNotifications:      true,
				SecurityAlerts:           true,
				DigestEmails:             false,
			}, nil
		}
		return nil, wrapErr(err)
	}
	return &p, nil
}

func (s *Store) SetEmailPreferences(ctx context.Context, p EmailPreferences) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO email_preferences (user_id, invite_notifications, share_update_notifications,
		                               member_notifications, security_alerts, digest_emails)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			invite_notifications       = EXCLUDED.invite_notifications,
			share_update_notifications = EXCLUDED.share_update_notifications,
			member_notifications       = EXCLUDED.member_notifications,
			security_alerts            = EXCLUDED.security_alerts,
			digest_emails              = EXCLUDED.digest_emails`,
		p.UserID, p.InviteNotifications, p.ShareUpdateNotifications,
		p.MemberNotifications, p.SecurityAlerts, p.DigestEmails)
	return wrapErr(err)
}
