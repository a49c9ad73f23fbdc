// Package notify fans domain events out into webhook deliveries and queued
// emails. Services publish events through the Dispatcher; the webhook and
// email workers drain the resulting queue rows.
package notify

import (
	"github.com/relayonprem/control-plane/internal/store"
)

// EventType is the closed vocabulary of domain events webhooks can subscribe
// to. Admin-only types never match user-owned subscriptions.
type EventType string

const (
	EventShareCreated   EventType = "share.created"
	EventShareUpdated   EventType = "share.updated"
	EventShareDeleted   EventType = "share.deleted"
	EventMemberAdded    EventType = "share.member.added"
	EventMemberUpdated  EventType = "share.member.updated"
	EventMemberRemoved  EventType = "share.member.removed"
	EventInviteCreated  EventType = "invite.created"
	EventInviteRedeem   EventType = "invite.redeemed"
	EventInviteRevoked  EventType = "invite.revoked"
	EventUserLogin      EventType = "user.login"
	EventUserLogout     EventType = "user.logout"
	EventPasswordReset  EventType = "user.password_reset"
	EventSessionCreated EventType = "session.created"
	EventSessionRevoked EventType = "session.revoked"
	EventOAuthLogin     EventType = "oauth.login"
	EventOAuthLinked    EventType = "oauth.account.linked"
	EventTOTPEnabled    EventType = "totp.enabled"
	EventTOTPDisabled   EventType = "totp.disabled"

	// Admin-only: match only admin/global subscriptions.
	EventUserCreated EventType = "user.created"
	EventUserUpdated EventType = "user.updated"
	EventUserDeleted EventType = "user.deleted"

	// Synthesized by the webhook test endpoint, never by services.
	EventPing EventType = "ping"
)

// adminOnly lists event types that must never be routed to user-owned
// webhook subscriptions.
var adminOnly = map[EventType]bool{
	EventUserCreated: true,
	EventUserUpdated: true,
	EventUserDeleted: true,
}

// IsAdminOnly reports whether the event type may only match admin/global
// webhook subscriptions.
func (t EventType) IsAdminOnly() bool {
	return adminOnly[t]
}

// Known reports whether t is in the subscription vocabulary.
func (t EventType) Known() bool {
	switch t {
	case EventShareCreated, EventShareUpdated, EventShareDeleted,
		EventMemberAdded, EventMemberUpdated, EventMemberRemoved,
		EventInviteCreated, EventInviteRedeem, EventInviteRevoked,
		EventUserLogin, EventUserLogout, EventPasswordReset,
		EventSessionCreated, EventSessionRevoked,
		EventOAuthLogin, EventOAuthLinked,
		EventTOTPEnabled, EventTOTPDisabled,
		EventUserCreated, EventUserUpdated, EventUserDeleted:
		return true
	}
	return false
}

// Meta carries the request context an event originated from, surfaced in the
// delivery payload's optional context object.
type Meta struct {
	IPAddress string
	UserAgent string
}

// Event is one domain occurrence to fan out. Actor is the user whose action
// produced the event; it scopes which user-owned webhooks match and is
// embedded into the payload's data.actor. An event with an empty Type skips
// webhook fanout and only sends its Emails.
type Event struct {
	Type  EventType
	Actor *store.User
	Data  map[string]any
	Meta  Meta

	// Emails lists human notifications this event should produce, each
	// gated by the recipient's preferences unless the class is security.
	Emails []EmailIntent
}

// EmailClass selects which preference flag gates an email. Security emails
// are always sent.
type EmailClass string

const (
	EmailClassSecurity EmailClass = "security"
	EmailClassSharing  EmailClass = "sharing"
	EmailClassMembers  EmailClass = "members"
	EmailClassInvites  EmailClass = "invites"
)

// Template names understood by the email renderer.
const (
	TemplatePasswordReset   = "password_reset"
	TemplatePasswordChanged = "password_changed"
	TemplateVerifyEmail     = "verify_email"
	TemplateNewSession      = "new_session"
	TemplateInvite          = "invite"
	TemplateInviteRedeemed  = "invite_redeemed"
	TemplateMemberAdded     = "member_added"
	TemplateShareDeleted    = "share_deleted"
)

// EmailIntent is a request to send one templated email to one recipient.
// Recipient is nil for addresses without an account (invite emails).
type EmailIntent struct {
	Recipient *store.User
	ToAddress string
	Template  string
	Class     EmailClass
	Data      map[string]any
}
