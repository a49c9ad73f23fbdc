package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/relayonprem/control-plane/internal/store"
)

// Dispatcher turns one domain event into webhook delivery rows and queued
// emails. Both fanouts are database writes; the actual HTTP and SMTP work
// happens in the background workers. Fanout failures are logged, never
// propagated: the action that produced the event has already happened.
type Dispatcher struct {
	store *store.Store
}

func NewDispatcher(st *store.Store) *Dispatcher {
	return &Dispatcher{store: st}
}

// Dispatch fans the event out. Matching and enqueueing are best-effort per
// subscriber; one broken webhook does not stop the others.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) {
	if ev.Type != "" {
		d.fanOutWebhooks(ctx, ev)
	}
	for _, intent := range ev.Emails {
		d.enqueueEmail(ctx, intent)
	}
}

func (d *Dispatcher) fanOutWebhooks(ctx context.Context, ev Event) {
	// Admin-only events never reach user-owned subscriptions, regardless
	// of which user's action produced them.
	var originating *uuid.UUID
	if ev.Actor != nil && !ev.Type.IsAdminOnly() {
		originating = &ev.Actor.ID
	}

	hooks, err := d.store.FindMatchingWebhooks(ctx, string(ev.Type), originating)
	if err != nil {
		slog.Error("webhook_match_failed", "event_type", ev.Type, "error", err)
		return
	}
	if len(hooks) == 0 {
		return
	}

	eventID := uuid.New()
	payload, err := BuildPayload(eventID, string(ev.Type), d.eventData(ev), d.eventContext(ev), time.Now())
	if err != nil {
		slog.Error("webhook_payload_failed", "event_type", ev.Type, "error", err)
		return
	}

	for i := range hooks {
		if _, err := d.store.CreateDelivery(ctx, store.CreateDeliveryParams{
			WebhookID: hooks[i].ID,
			EventID:   eventID,
			EventType: string(ev.Type),
			Payload:   payload,
		}); err != nil {
			slog.Error("webhook_enqueue_failed", "webhook_id", hooks[i].ID, "error", err)
		}
	}
}

// eventData merges the event data with the actor block.
func (d *Dispatcher) eventData(ev Event) map[string]any {
	data := make(map[string]any, len(ev.Data)+1)
	for k, v := range ev.Data {
		data[k] = v
	}
	if ev.Actor != nil {
		data["actor"] = map[string]any{
			"user_id": ev.Actor.ID.String(),
			"email":   ev.Actor.Email,
		}
	}
	return data
}

func (d *Dispatcher) eventContext(ev Event) map[string]any {
	if ev.Meta.IPAddress == "" && ev.Meta.UserAgent == "" {
		return nil
	}
	ctx := map[string]any{}
	if ev.Meta.IPAddress != "" {
		ctx["ip_address"] = ev.Meta.IPAddress
	}
	if ev.Meta.UserAgent != "" {
		ctx["user_agent"] = ev.Meta.UserAgent
	}
	return ctx
}

// enqueueEmail renders the intent and writes it to the outbox, unless the
// recipient's preferences opt the class out. Security emails always send.
func (d *Dispatcher) enqueueEmail(ctx context.Context, intent EmailIntent) {
	if !d.wantsEmail(ctx, intent) {
		return
	}

	subject, body, err := RenderEmail(intent.Template, intent.Data)
	if err != nil {
		slog.Error("email_render_failed", "template", intent.Template, "error", err)
		return
	}

	if _, err := d.store.EnqueueEmail(ctx, store.EnqueueEmailParams{
		ToEmail:   intent.ToAddress,
		Subject:   subject,
		BodyText:  body,
		EmailType: intent.Template,
	}); err != nil {
		slog.Error("email_enqueue_failed", "template", intent.Template, "error", err)
	}
}

func (d *Dispatcher) wantsEmail(ctx context.Context, intent EmailIntent) bool {
	if intent.Class == EmailClassSecurity || intent.Recipient == nil {
		return true
	}
	prefs, err := d.store.GetEmailPreferences(ctx, intent.Recipient.ID)
	if err != nil {
		slog.Error("email_prefs_lookup_failed", "user_id", intent.Recipient.ID, "error", err)
		return true
	}
	switch intent.Class {
	case EmailClassSharing:
		return prefs.ShareUpdateNotifications
	case EmailClassMembers:
		return prefs.MemberNotifications
	case EmailClassInvites:
		return prefs.InviteNotifications
	}
	return true
}
