// Package audit appends principal-authored actions to the audit_logs table.
// Rows are append-only and survive deletion of their referents.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/relayonprem/control-plane/internal/store"
)

// Action is the closed set of auditable actions.
type Action string

const (
	ActionUserLogin       Action = "user.login"
	ActionUserLogout      Action = "user.logout"
	ActionLoginFailed     Action = "user.login_failed"
	ActionTokenRefreshed  Action = "token.refreshed"
	ActionSessionRevoked  Action = "session.revoked"
	ActionPasswordChanged Action = "user.password_changed"
	ActionPasswordReset   Action = "user.password_reset"
	ActionEmailVerified   Action = "user.email_verified"
	ActionTOTPEnabled     Action = "totp.enabled"
	ActionTOTPDisabled    Action = "totp.disabled"
	ActionOAuthLogin      Action = "oauth.login"
	ActionOAuthLinked     Action = "oauth.account_linked"
	ActionUserCreated     Action = "user.created"
	ActionUserUpdated     Action = "user.updated"
	ActionUserDeleted     Action = "user.deleted"
	ActionShareCreated    Action = "share.created"
	ActionShareUpdated    Action = "share.updated"
	ActionShareDeleted    Action = "share.deleted"
	ActionMemberAdded     Action = "share.member_added"
	ActionMemberUpdated   Action = "share.member_updated"
	ActionMemberRemoved   Action = "share.member_removed"
	ActionInviteCreated   Action = "invite.created"
	ActionInviteRedeemed  Action = "invite.redeemed"
	ActionInviteRevoked   Action = "invite.revoked"
	ActionRelayTokenMint  Action = "relay.token_minted"
	ActionWebhookCreated  Action = "webhook.created"
	ActionWebhookUpdated  Action = "webhook.updated"
	ActionWebhookDeleted  Action = "webhook.deleted"
	ActionSettingChanged  Action = "setting.changed"
)

// Entry describes one auditable action.
type Entry struct {
	Action        Action
	ActorUserID   *uuid.UUID
	TargetUserID  *uuid.UUID
	TargetShareID *uuid.UUID
	Details       map[string]any
	IPAddress     string
	UserAgent     string
}

// Recorder writes audit entries through a store. Pass a tx-scoped store to
// make the entry part of the surrounding transaction.
type Recorder struct {
	store *store.Store
}

func NewRecorder(st *store.Store) *Recorder {
	return &Recorder{store: st}
}

// Log appends one entry. Failures are logged, not propagated: an audit write
// must never fail the action it describes (transactional writes use LogTx).
func (r *Recorder) Log(ctx context.Context, e Entry) {
	if err := r.LogTx(ctx, r.store, e); err != nil {
		slog.Error("audit_write_failed", "action", e.Action, "error", err)
	}
}

// LogTx appends one entry on the given (possibly tx-scoped) store and returns
// the error, so callers inside a transaction can abort on failure.
func (r *Recorder) LogTx(ctx context.Context, st *store.Store, e Entry) error {
	var details []byte
	if e.Details != nil {
		var err error
		if details, err = json.Marshal(e.Details); err != nil {
			return err
		}
	}

	return st.CreateAuditEntry(ctx, store.CreateAuditEntryParams{
		Action:        string(e.Action),
		ActorUserID:   e.ActorUserID,
		TargetUserID:  e.TargetUserID,
		TargetShareID: e.TargetShareID,
		Details:       details,
		IPAddress:     e.IPAddress,
		UserAgent:     e.UserAgent,
	})
}
