package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/relayonprem/control-plane/internal/store"
)

const (
	// Version is reported in the delivery User-Agent.
	Version = "1.0.0"

	maxAttempts     = 6
	disableAt       = 10
	attemptTimeout  = 10 * time.Second
	maxResponseBody = 1024 // bytes of the endpoint's response kept for debugging
	claimLease      = time.Minute
)

// retrySchedule holds the delay after the nth failed attempt.
var retrySchedule = []time.Duration{
	60 * time.Second,
	300 * time.Second,
	900 * time.Second,
	3600 * time.Second,
	21600 * time.Second,
	86400 * time.Second,
}

// Sender performs single delivery attempts and records their outcome.
type Sender struct {
	store    *store.Store
	urlCheck *URLChecker
	client   *http.Client
	signer   func(secret string, body []byte) string
}

func NewSender(st *store.Store, urlCheck *URLChecker, signer func(secret string, body []byte) string) *Sender {
	return &Sender{
		store:    st,
		urlCheck: urlCheck,
		client:   &http.Client{Timeout: attemptTimeout},
		signer:   signer,
	}
}

// Attempt delivers once and records the outcome. Outcome classes:
// 2xx is success and clears the webhook's failure streak; 429 and 5xx and
// transport errors are transient and retried on the schedule; any other 4xx
// is permanent. Terminal failures bump the failure streak, tripping the
// webhook at the threshold.
func (s *Sender) Attempt(ctx context.Context, w *store.Webhook, d *store.WebhookDelivery) {
	attempts := d.AttemptCount + 1

	statusCode, body, err := s.post(ctx, w, d)
	switch {
	case err == nil && statusCode >= 200 && statusCode < 300:
		s.recordOutcome(ctx, d.ID, store.DeliveryOutcomeParams{
			Status:             store.DeliverySuccess,
			ResponseStatusCode: &statusCode,
			ResponseBody:       body,
			AttemptCount:       attempts,
		})
		if err := s.store.ResetWebhookFailures(ctx, w.ID); err != nil {
			slog.Error("webhook_failure_reset_failed", "webhook_id", w.ID, "error", err)
		}

	case err != nil || statusCode == http.StatusTooManyRequests || statusCode >= 500:
		// Transient: retry until the attempt budget runs out.
		outcome := store.DeliveryOutcomeParams{
			Status:       store.DeliveryPending,
			ResponseBody: body,
			AttemptCount: attempts,
		}
		if err != nil {
			outcome.ResponseBody = truncate(err.Error())
		} else {
			outcome.ResponseStatusCode = &statusCode
		}
		if attempts >= maxAttempts {
			outcome.Status = store.DeliveryMaxRetriesExceeded
			s.bumpFailures(ctx, w.ID)
		} else {
			next := time.Now().Add(retrySchedule[attempts-1])
			outcome.NextRetryAt = &next
		}
		s.recordOutcome(ctx, d.ID, outcome)

	default:
		// Other 4xx: the endpoint rejected the event; retrying cannot help.
		s.recordOutcome(ctx, d.ID, store.DeliveryOutcomeParams{
			Status:             store.DeliveryFailed,
			ResponseStatusCode: &statusCode,
			ResponseBody:       body,
			AttemptCount:       attempts,
		})
		s.bumpFailures(ctx, w.ID)
	}
}

// post makes the HTTP call. The URL is re-validated on every attempt to catch
// DNS records flipped to internal addresses after registration.
func (s *Sender) post(ctx context.Context, w *store.Webhook, d *store.WebhookDelivery) (int32, string, error) {
	if err := s.urlCheck.Check(w.URL); err != nil {
		return 0, "", err
	}

	ctx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(d.Payload))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "RelayOnPrem-Webhooks/"+Version)
	req.Header.Set("X-Relay-Event", d.EventType)
	req.Header.Set("X-Relay-Delivery", d.ID.String())
	req.Header.Set("X-Relay-Signature", s.signer(w.Secret, d.Payload))

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	return int32(resp.StatusCode), string(body), nil
}

func (s *Sender) recordOutcome(ctx context.Context, id uuid.UUID, p DeliveryOutcome) {
	p.ResponseBody = truncate(p.ResponseBody)
	if err := s.store.RecordDeliveryOutcome(ctx, id, p); err != nil {
		slog.Error("delivery_outcome_write_failed", "delivery_id", id, "error", err)
	}
}

func (s *Sender) bumpFailures(ctx context.Context, webhookID uuid.UUID) {
	count, err := s.store.BumpWebhookFailures(ctx, webhookID, disableAt)
	if err != nil {
		slog.Error("webhook_failure_bump_failed", "webhook_id", webhookID, "error", err)
		return
	}
	if count >= disableAt {
		slog.Warn("webhook_auto_disabled", "webhook_id", webhookID, "failure_count", count)
	}
}

func truncate(s string) string {
	if len(s) > maxResponseBody {
		return s[:maxResponseBody]
	}
	return s
}

// DeliveryOutcome aliases the store params to keep call sites short.
type DeliveryOutcome = store.DeliveryOutcomeParams

// Worker polls for due deliveries and attempts them.
type Worker struct {
	store     *store.Store
	sender    *Sender
	interval  time.Duration
	batchSize int
}

func NewWorker(st *store.Store, sender *Sender, interval time.Duration, batchSize int) *Worker {
	if interval == 0 {
		interval = 5 * time.Second
	}
	if batchSize == 0 {
		batchSize = 20
	}
	return &Worker{store: st, sender: sender, interval: interval, batchSize: batchSize}
}

// Run blocks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	slog.Info("webhook_worker_started", "interval", w.interval, "batch_size", w.batchSize)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("webhook_worker_stopped")
			return
		case <-ticker.C:
			if err := w.processBatch(ctx); err != nil {
				slog.Error("webhook_batch_failed", "error", err)
			}
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) error {
	deliveries, err := w.store.ClaimDueDeliveries(ctx, w.batchSize, claimLease)
	if err != nil {
		return fmt.Errorf("failed to claim deliveries: %w", err)
	}

	for i := range deliveries {
		d := &deliveries[i]
		hook, err := w.store.GetWebhookByID(ctx, d.WebhookID)
		if err != nil {
			slog.Error("webhook_lookup_failed", "webhook_id", d.WebhookID, "error", err)
			continue
		}
		if !hook.Active {
			// Tripped since the delivery was queued; leave it for the
			// operator to re-enable, its lease keeps it quiet meanwhile.
			continue
		}
		w.sender.Attempt(ctx, hook, d)
	}
	return nil
}
