package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const emailColumns = `id, to_email, subject, body_text, body_html, email_type,
	status, attempt_count, error_message, next_retry_at, sent_at, created_at`

func scanEmail(row pgx.Row) (*QueuedEmail, error) {
	var e QueuedEmail
	err := row.Scan(&e.ID, &e.ToEmail, &e.Subject, &e.BodyText, &e.BodyHTML,
		&e.EmailType, &e.Status, &e.AttemptCount, &e.ErrorMessage,
		&e.NextRetryAt, &e.SentAt, &e.CreatedAt)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &e, nil
}

type EnqueueEmailParams struct {
	ToEmail   string
	Subject   string
	BodyText  string
	BodyHTML  string
	EmailType string
}

// EnqueueEmail writes an email to the outbox table for async processing.
// This is fast and non-blocking; the email worker picks it up later.
func (s *Store) EnqueueEmail(ctx context.Context, p EnqueueEmailParams) (*QueuedEmail, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO email_queue (to_email, subject, body_text, body_html, email_type, next_retry_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING `+emailColumns,
		p.ToEmail, p.Subject, p.BodyText, p.BodyHTML, p.EmailType)
	return scanEmail(row)
}

// ClaimDueEmails picks up to limit pending emails that are due, with the same
// SKIP LOCKED plus lease pattern as webhook deliveries.
func (s *Store) ClaimDueEmails(ctx context.Context, limit int, lease time.Duration) ([]QueuedEmail, error) {
	rows, err := s.db.Query(ctx, `
		UPDATE email_queue SET next_retry_at = NOW() + $2
		WHERE id IN (
			SELECT id FROM email_queue
			WHERE status = 'pending' AND next_retry_at <= NOW()
			ORDER BY next_retry_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+emailColumns,
		limit, lease)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var emails []QueuedEmail
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		emails = append(emails, *e)
	}
	return emails, wrapErr(rows.Err())
}

func (s *Store) MarkEmailSent(ctx context.Context, id uuid.UUID, attempts int32) error {
	_, err := s.db.Exec(ctx, `
		UPDATE email_queue SET status = 'sent', attempt_count = $2, sent_at = NOW(), next_retry_at = NULL
		WHERE id = $1`,
		id, attempts)
	return wrapErr(err)
}

// MarkEmailFailed records a failed attempt. With retryAt nil the email is
// terminally failed; otherwise it stays pending for the worker to retry.
func (s *Store) MarkEmailFailed(ctx context.Context, id uuid.UUID, attempts int32, errMsg string, retryAt *time.Time) error {
	status := EmailPending
	if retryAt == nil {
		status = EmailFailed
	}
	_, err := s.db.Exec(ctx, `
		UPDATE email_queue SET status = $2, attempt_count = $3, error_message = $4, next_retry_at = $5
		WHERE id = $1`,
		id, status, attempts, errMsg, retryAt)
	return wrapErr(err)
}
