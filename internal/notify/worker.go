package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/relayonprem/control-plane/internal/store"
)

const (
	emailMaxAttempts = 5
	emailSendTimeout = 15 * time.Second
	emailClaimLease  = time.Minute
)

// emailRetrySchedule holds the delay after the nth failed send.
var emailRetrySchedule = []time.Duration{
	time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	time.Hour,
}

// EmailWorker drains the email outbox through an SMTPSender.
type EmailWorker struct {
	store     *store.Store
	sender    *SMTPSender
	interval  time.Duration
	batchSize int
}

func NewEmailWorker(st *store.Store, sender *SMTPSender, interval time.Duration, batchSize int) *EmailWorker {
	if interval == 0 {
		interval = 10 * time.Second
	}
	if batchSize == 0 {
		batchSize = 20
	}
	return &EmailWorker{store: st, sender: sender, interval: interval, batchSize: batchSize}
}

// Run blocks until the context is cancelled.
func (w *EmailWorker) Run(ctx context.Context) {
	slog.Info("email_worker_started", "interval", w.interval, "batch_size", w.batchSize)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("email_worker_stopped")
			return
		case <-ticker.C:
			if err := w.processBatch(ctx); err != nil {
				slog.Error("email_batch_failed", "error", err)
			}
		}
	}
}

func (w *EmailWorker) processBatch(ctx context.Context) error {
	emails, err := w.store.ClaimDueEmails(ctx, w.batchSize, emailClaimLease)
	if err != nil {
		return fmt.Errorf("failed to claim emails: %w", err)
	}

	for i := range emails {
		// Per-send timeout so one slow server cannot starve the batch.
		sendCtx, cancel := context.WithTimeout(ctx, emailSendTimeout)
		w.processOne(sendCtx, &emails[i])
		cancel()
	}
	return nil
}

func (w *EmailWorker) processOne(ctx context.Context, e *store.QueuedEmail) {
	attempts := e.AttemptCount + 1

	err := w.sender.Send(ctx, e.ToEmail, e.Subject, e.BodyText)
	if err == nil {
		if err := w.store.MarkEmailSent(ctx, e.ID, attempts); err != nil {
			slog.Error("email_mark_sent_failed", "email_id", e.ID, "error", err)
		}
		return
	}

	var retryAt *time.Time
	if attempts < emailMaxAttempts {
		idx := int(attempts) - 1
		if idx >= len(emailRetrySchedule) {
			idx = len(emailRetrySchedule) - 1
		}
		t := time.Now().Add(emailRetrySchedule[idx])
		retryAt = &t
	}
	slog.Warn("email_send_failed", "email_id", e.ID, "attempt", attempts, "error", err)
	if err := w.store.MarkEmailFailed(ctx, e.ID, attempts, err.Error(), retryAt); err != nil {
		slog.Error("email_mark_failed_failed", "email_id", e.ID, "error", err)
	}
}
