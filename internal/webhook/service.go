package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relayonprem/control-plane/internal/audit"
	"github.com/relayonprem/control-plane/internal/crypto"
	"github.com/relayonprem/control-plane/internal/notify"
	"github.com/relayonprem/control-plane/internal/store"
)

var (
	ErrWebhookNotFound = errors.New("webhook not found")
	ErrForbidden       = errors.New("not allowed")
	ErrUnknownEvent    = errors.New("unknown event type")
	ErrNoEvents        = errors.New("at least one event type is required")
)

// Service manages webhook subscriptions. Admin/global webhooks have no owner
// and are the only ones eligible for admin-only event types.
type Service struct {
	store    *store.Store
	urlCheck *URLChecker
	audit    *audit.Recorder
	sender   *Sender
}

func NewService(st *store.Store, urlCheck *URLChecker, rec *audit.Recorder, sender *Sender) *Service {
	return &Service{store: st, urlCheck: urlCheck, audit: rec, sender: sender}
}

// CreateInput describes a new subscription. A nil OwnerID makes it
// admin/global.
type CreateInput struct {
	OwnerID *uuid.UUID
	Name    string
	URL     string
	Events  []string
}

// CreateResult carries the webhook plus its secret, returned only here and on
// rotation.
type CreateResult struct {
	Webhook *store.Webhook
	Secret  string
}

// Create registers a subscription with a fresh 256-bit signing secret.
func (s *Service) Create(ctx context.Context, actor *store.User, in CreateInput) (*CreateResult, error) {
	if err := s.validateEvents(in.Events, in.OwnerID == nil); err != nil {
		return nil, err
	}
	if err := s.urlCheck.Check(in.URL); err != nil {
		return nil, err
	}

	secret, err := crypto.GenerateSecureToken(32)
	if err != nil {
		return nil, err
	}

	w, err := s.store.CreateWebhook(ctx, store.CreateWebhookParams{
		UserID: in.OwnerID,
		Name:   in.Name,
		URL:    in.URL,
		Secret: secret,
		Events: in.Events,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook: %w", err)
	}

	s.audit.Log(ctx, audit.Entry{
		Action:      audit.ActionWebhookCreated,
		ActorUserID: &actor.ID,
		Details:     map[string]any{"webhook_id": w.ID.String(), "url": w.URL},
	})
	return &CreateResult{Webhook: w, Secret: secret}, nil
}

// Get loads a webhook the actor may manage.
func (s *Service) Get(ctx context.Context, actor *store.User, id uuid.UUID) (*store.Webhook, error) {
	return s.requireManageable(ctx, actor, id)
}

// List returns the actor's webhooks; admins asking for global ones get the
// ownerless set instead.
func (s *Service) List(ctx context.Context, actor *store.User, global bool) ([]store.Webhook, error) {
	if global {
		if !actor.IsAdmin {
			return nil, ErrForbidden
		}
		return s.store.ListAdminWebhooks(ctx)
	}
	return s.store.ListWebhooksByUser(ctx, actor.ID)
}

// UpdateInput is a partial update; nil fields stay unchanged.
type UpdateInput struct {
	Name   *string
	URL    *string
	Events []string
	Active *bool
}

// Update patches a subscription. Re-enabling a tripped webhook resets its
// consecutive-failure counter.
func (s *Service) Update(ctx context.Context, actor *store.User, id uuid.UUID, in UpdateInput) (*store.Webhook, error) {
	w, err := s.requireManageable(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if in.Events != nil {
		if err := s.validateEvents(in.Events, w.UserID == nil); err != nil {
			return nil, err
		}
	}
	if in.URL != nil {
		if err := s.urlCheck.Check(*in.URL); err != nil {
			return nil, err
		}
	}

	updated, err := s.store.UpdateWebhook(ctx, id, store.UpdateWebhookParams{
		Name:   in.Name,
		URL:    in.URL,
		Events: in.Events,
		Active: in.Active,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update webhook: %w", err)
	}

	if in.Active != nil && *in.Active && !w.Active {
		if err := s.store.ResetWebhookFailures(ctx, id); err != nil {
			return nil, fmt.Errorf("failed to reset failures: %w", err)
		}
		updated.FailureCount = 0
	}

	s.audit.Log(ctx, audit.Entry{
		Action:      audit.ActionWebhookUpdated,
		ActorUserID: &actor.ID,
		Details:     map[string]any{"webhook_id": id.String()},
	})
	return updated, nil
}

// Delete removes a subscription and its delivery history.
func (s *Service) Delete(ctx context.Context, actor *store.User, id uuid.UUID) error {
	if _, err := s.requireManageable(ctx, actor, id); err != nil {
		return err
	}
	if err := s.store.DeleteWebhook(ctx, id); err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	s.audit.Log(ctx, audit.Entry{
		Action:      audit.ActionWebhookDeleted,
		ActorUserID: &actor.ID,
		Details:     map[string]any{"webhook_id": id.String()},
	})
	return nil
}

// RotateSecret replaces the signing secret and returns the new one once.
// In-flight deliveries sign with the new secret from the next attempt on.
func (s *Service) RotateSecret(ctx context.Context, actor *store.User, id uuid.UUID) (string, error) {
	if _, err := s.requireManageable(ctx, actor, id); err != nil {
		return "", err
	}

	secret, err := crypto.GenerateSecureToken(32)
	if err != nil {
		return "", err
	}
	if err := s.store.UpdateWebhookSecret(ctx, id, secret); err != nil {
		return "", fmt.Errorf("failed to rotate secret: %w", err)
	}

	s.audit.Log(ctx, audit.Entry{
		Action:      audit.ActionWebhookUpdated,
		ActorUserID: &actor.ID,
		Details:     map[string]any{"webhook_id": id.String(), "secret_rotated": true},
	})
	return secret, nil
}

// Test synthesizes a ping event, attempts immediate delivery and returns the
// resulting delivery record.
func (s *Service) Test(ctx context.Context, actor *store.User, id uuid.UUID) (*store.WebhookDelivery, error) {
	w, err := s.requireManageable(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	payload, err := notify.BuildPayload(uuid.New(), string(notify.EventPing), map[string]any{
		"message": "test delivery",
	}, nil, time.Now())
	if err != nil {
		return nil, err
	}

	d, err := s.store.CreateDelivery(ctx, store.CreateDeliveryParams{
		WebhookID: w.ID,
		EventID:   uuid.New(),
		EventType: string(notify.EventPing),
		Payload:   payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create delivery: %w", err)
	}

	s.sender.Attempt(ctx, w, d)
	return s.store.GetDeliveryByID(ctx, d.ID)
}

// ListDeliveries returns recent delivery attempts for a webhook.
func (s *Service) ListDeliveries(ctx context.Context, actor *store.User, id uuid.UUID, limit int) ([]store.WebhookDelivery, error) {
	if _, err := s.requireManageable(ctx, actor, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.store.ListDeliveriesByWebhook(ctx, id, limit)
}

func (s *Service) requireManageable(ctx context.Context, actor *store.User, id uuid.UUID) (*store.Webhook, error) {
	w, err := s.store.GetWebhookByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrWebhookNotFound
		}
		return nil, fmt.Errorf("webhook lookup failed: %w", err)
	}
	if actor.IsAdmin {
		return w, nil
	}
	if w.UserID == nil || *w.UserID != actor.ID {
		return nil, ErrWebhookNotFound
	}
	return w, nil
}

// validateEvents checks the subscription list against the event vocabulary.
// Admin-only types are rejected on user-owned webhooks.
func (s *Service) validateEvents(events []string, global bool) error {
	if len(events) == 0 {
		return ErrNoEvents
	}
	for _, e := range events {
		t := notify.EventType(e)
		if !t.Known() {
			return fmt.Errorf("%w: %s", ErrUnknownEvent, e)
		}
		if t.IsAdminOnly() && !global {
			return fmt.Errorf("%w: %s is admin-only", ErrUnknownEvent, e)
		}
	}
	return nil
}
