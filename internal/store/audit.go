package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const auditColumns = `id, timestamp, action, actor_user_id, target_user_id,
	target_share_id, details, ip_address, user_agent`

func scanAuditEntry(row pgx.Row) (*AuditEntry, error) {
	var e AuditEntry
	err := row.Scan(&e.ID, &e.Timestamp, &e.Action, &e.ActorUserID, &e.TargetUserID,
		&e.TargetShareID, &e.Details, &e.IPAddress, &e.UserAgent)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &e, nil
}

type CreateAuditEntryParams struct {
	Action        string
	ActorUserID   *uuid.UUID
	TargetUserID  *uuid.UUID
	TargetShareID *uuid.UUID
	Details       []byte
	IPAddress     string
	UserAgent     string
}

// CreateAuditEntry appends one row. The application never updates or deletes
// audit rows; referent deletion nulls the foreign keys.
func (s *Store) CreateAuditEntry(ctx context.Context, p CreateAuditEntryParams) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO audit_logs (action, actor_user_id, target_user_id, target_share_id, details, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.Action, p.ActorUserID, p.TargetUserID, p.TargetShareID, p.Details, p.IPAddress, p.UserAgent)
	return wrapErr(err)
}

type AuditQuery struct {
	Action        string
	ActorUserID   *uuid.UUID
	TargetUserID  *uuid.UUID
	TargetShareID *uuid.UUID
	Since         *time.Time
	Until         *time.Time
	Limit         int
	Offset        int
}

// QueryAuditEntries returns entries matching the filters, newest first.
// Zero-valued filters are ignored.
func (s *Store) QueryAuditEntries(ctx context.Context, q AuditQuery) ([]AuditEntry, error) {
	if q.Limit <= 0 || q.Limit > 500 {
		q.Limit = 100
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+auditColumns+` FROM audit_logs
		WHERE ($1 = '' OR action = $1)
		  AND ($2::uuid IS NULL OR actor_user_id = $2)
		  AND ($3::uuid IS NULL OR target_user_id = $3)
		  AND ($4::uuid IS NULL OR target_share_id = $4)
		  AND ($5::timestamptz IS NULL OR timestamp >= $5)
		  AND ($6::timestamptz IS NULL OR timestamp <= $6)
		ORDER BY timestamp DESC
		LIMIT $7 OFFSET $8`,
		q.Action, q.ActorUserID, q.TargetUserID, q.TargetShareID, q.Since, q.Until,
		q.Limit, q.Offset)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, wrapErr(rows.Err())
}
