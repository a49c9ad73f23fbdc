package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const webhookColumns = `id, user_id, name, url, secret, events, active, failure_count, created_at`

func scanWebhook(row pgx.Row) (*Webhook, error) {
	var w Webhook
	err := row.Scan(&w.ID, &w.UserID, &w.Name, &w.URL, &w.Secret, &w.Events,
		&w.Active, &w.FailureCount, &w.CreatedAt)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &w, nil
}

type CreateWebhookParams struct {
	UserID *uuid.UUID // nil for admin/global webhooks
	Name   string
	URL    string
	Secret string
	Events []string
}

func (s *Store) CreateWebhook(ctx context.Context, p CreateWebhookParams) (*Webhook, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO webhooks (user_id, name, url, secret, events)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+webhookColumns,
		p.UserID, p.Name, p.URL, p.Secret, p.Events)
	return scanWebhook(row)
}

func (s *Store) GetWebhookByID(ctx context.Context, id uuid.UUID) (*Webhook, error) {
	row := s.db.QueryRow(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE id = $1`, id)
	return scanWebhook(row)
}

func (s *Store) ListWebhooksByUser(ctx context.Context, userID uuid.UUID) ([]Webhook, error) {
	return s.queryWebhooks(ctx,
		`SELECT `+webhookColumns+` FROM webhooks WHERE user_id = $1 ORDER BY created_at`, userID)
}

func (s *Store) ListAdminWebhooks(ctx context.Context) ([]Webhook, error) {
	return s.queryWebhooks(ctx,
		`SELECT `+webhookColumns+` FROM webhooks WHERE user_id IS NULL ORDER BY created_at`)
}

// FindMatchingWebhooks returns active webhooks subscribed to eventType, scoped
// to the originating user's own webhooks plus admin/global ones. Pass a nil
// originating user to match admin/global webhooks only.
func (s *Store) FindMatchingWebhooks(ctx context.Context, eventType string, originatingUserID *uuid.UUID) ([]Webhook, error) {
	return s.queryWebhooks(ctx, `
		SELECT `+webhookColumns+` FROM webhooks
		WHERE active AND $1 = ANY(events)
		  AND (user_id IS NULL OR user_id = $2)
		ORDER BY created_at`,
		eventType, originatingUserID)
}

func (s *Store) queryWebhooks(ctx context.Context, sql string, args ...any) ([]Webhook, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var hooks []Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		hooks = append(hooks, *w)
	}
	return hooks, wrapErr(rows.Err())
}

type UpdateWebhookParams struct {
	Name   *string
	URL    *string
	Events []string
	Active *bool
}

func (s *Store) UpdateWebhook(ctx context.Context, id uuid.UUID, p UpdateWebhookParams) (*Webhook, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE webhooks SET
			name   = COALESCE($2, name),
			url    = COALESCE($3, url),
			events = COALESCE($4, events),
			active = COALESCE($5, active)
		WHERE id = $1
		RETURNING `+webhookColumns,
		id, p.Name, p.URL, p.Events, p.Active)
	return scanWebhook(row)
}

func (s *Store) UpdateWebhookSecret(ctx context.Context, id uuid.UUID, secret string) error {
	tag, err := s.db.Exec(ctx, `UPDATE webhooks SET secret = $2 WHERE id = $1`, id, secret)
	if err != nil {
		return wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ResetWebhookFailures(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE webhooks SET failure_count = 0 WHERE id = $1`, id)
	return wrapErr(err)
}

// BumpWebhookFailures increments the consecutive-failure counter, deactivating
// the webhook when it reaches the threshold. Returns the new count.
func (s *Store) BumpWebhookFailures(ctx context.Context, id uuid.UUID, disableAt int32) (int32, error) {
	var count int32
	err := s.db.QueryRow(ctx, `
		UPDATE webhooks
		SET failure_count = failure_count + 1,
		    active = active AND failure_count + 1 < $2
		WHERE id = $1
		RETURNING failure_count`,
		id, disableAt).Scan(&count)
	return count, wrapErr(err)
}

func (s *Store) DeleteWebhook(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM webhooks WHERE id = $1`, id)
	if err != nil {
		return wrapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const deliveryColumns = `id, webhook_id, event_id, event_type, payload, status,
	response_status_code, response_body, attempt_count, next_retry_at, created_at`

func scanDelivery(row pgx.Row) (*WebhookDelivery, error) {
	var d WebhookDelivery
	err := row.Scan(&d.ID, &d.WebhookID, &d.EventID, &d.EventType, &d.Payload,
		&d.Status, &d.ResponseStatusCode, &d.ResponseBody, &d.AttemptCount,
		&d.NextRetryAt, &d.CreatedAt)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &d, nil
}

type CreateDeliveryParams struct {
	WebhookID uuid.UUID
	EventID   uuid.UUID
	EventType string
	Payload   []byte
}

func (s *Store) CreateDelivery(ctx context.Context, p CreateDeliveryParams) (*WebhookDelivery, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO webhook_deliveries (webhook_id, event_id, event_type, payload, next_retry_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING `+deliveryColumns,
		p.WebhookID, p.EventID, p.EventType, p.Payload)
	return scanDelivery(row)
}

func (s *Store) GetDeliveryByID(ctx context.Context, id uuid.UUID) (*WebhookDelivery, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+deliveryColumns+` FROM webhook_deliveries WHERE id = $1`, id)
	return scanDelivery(row)
}

func (s *Store) ListDeliveriesByWebhook(ctx context.Context, webhookID uuid.UUID, limit int) ([]WebhookDelivery, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+deliveryColumns+` FROM webhook_deliveries
		WHERE webhook_id = $1 ORDER BY created_at DESC LIMIT $2`,
		webhookID, limit)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var deliveries []WebhookDelivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, *d)
	}
	return deliveries, wrapErr(rows.Err())
}

// ClaimDueDeliveries picks up to limit pending deliveries that are due.
// SKIP LOCKED keeps concurrent workers off the same rows while claiming, and
// the lease pushes next_retry_at forward so a claimed delivery stays invisible
// to other polls even after the row lock is released.
func (s *Store) ClaimDueDeliveries(ctx context.Context, limit int, lease time.Duration) ([]WebhookDelivery, error) {
	rows, err := s.db.Query(ctx, `
		UPDATE webhook_deliveries SET next_retry_at = NOW() + $2
		WHERE id IN (
			SELECT id FROM webhook_deliveries
			WHERE status = 'pending' AND next_retry_at <= NOW()
			ORDER BY next_retry_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+deliveryColumns,
		limit, lease)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var deliveries []WebhookDelivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, *d)
	}
	return deliveries, wrapErr(rows.Err())
}

type DeliveryOutcomeParams struct {
	Status             DeliveryStatus
	ResponseStatusCode *int32
	ResponseBody       string
	AttemptCount       int32
	NextRetryAt        *time.Time
}

func (s *Store) RecordDeliveryOutcome(ctx context.Context, id uuid.UUID, p DeliveryOutcomeParams) error {
	_, err := s.db.Exec(ctx, `
		UPDATE webhook_deliveries SET
			status = $2, response_status_code = $3, response_body = $4,
			attempt_count = $5, next_retry_at = $6
		WHERE id = $1`,
		id, p.Status, p.ResponseStatusCode, p.ResponseBody, p.AttemptCount, p.NextRetryAt)
	return wrapErr(err)
}
