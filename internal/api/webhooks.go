package api

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Nic-Huzz/findmyflow-sub001/internal/email"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/store"
	stripeinternal "github.com/Nic-Huzz/findmyflow-sub001/internal/stripe"
)

// ─── POST /api/webhooks/stripe ────────────────────────────────────────────────

// handleStripeWebhook is the entry point for all Stripe webhook deliveries.
//
// Stripe delivers events at-least-once and retries on non-2xx responses, so
// every write below is idempotent. The events acted on are:
//   - payment_intent.succeeded       → mark the flow unlock paid, send receipt
//   - payment_intent.payment_failed  → mark the pending unlock failed
//   - charge.refunded                → revoke the unlock (a late success
//     event does not restore it)
func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	// ── 1. Read and size-limit the body ───────────────────────────────────────
	// The signature check must run against the exact bytes Stripe signed.
	r.Body = http.MaxBytesReader(w, r.Body, 65536)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondErr(w, http.StatusBadRequest, "could not read request body")
		return
	}

	// ── 2. Verify the Stripe-Signature header ─────────────────────────────────
	sig := r.Header.Get("Stripe-Signature")
	event, err := s.stripe.VerifyWebhook(payload, sig, s.cfg.StripeWebhookSecret)
	if err != nil {
		s.logger.Warn("webhook: invalid signature", "error", err, logField(r))
		respondErr(w, http.StatusBadRequest, "invalid webhook signature")
		return
	}

	// ── 3. Idempotency: record the event, skip if already processed ───────────
	// UpsertStripeEvent returns no row once processed_at is set, which
	// surfaces as sql.ErrNoRows. Earlier failed deliveries still return the
	// row and are processed again.
	_, err = s.q.UpsertStripeEvent(r.Context(), stripeinternal.ToUpsertParams(event, payload))
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Debug("webhook: duplicate event, skipping", "event_id", event.ID, logField(r))
		w.WriteHeader(http.StatusOK)
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("upsert stripe event: %w", err))
		return
	}

	// ── 4. Dispatch by event type ─────────────────────────────────────────────
	var handlerErr error

	switch event.Type {
	case "payment_intent.succeeded":
		handlerErr = s.onPaymentSucceeded(r, event)

	case "payment_intent.payment_failed":
		handlerErr = s.onPaymentFailed(r, event)

	case "charge.refunded":
		handlerErr = s.onChargeRefunded(r, event)

	default:
		s.logger.Debug("webhook: unhandled event type", "type", event.Type, logField(r))
	}

	// ── 5. Mark event processed (or failed) ───────────────────────────────────
	if handlerErr != nil {
		s.logger.Error("webhook: handler error",
			"event_id", event.ID,
			"type", event.Type,
			"error", handlerErr,
			logField(r),
		)
		_, _ = s.q.MarkStripeEventFailed(r.Context(), stripeinternal.ToMarkFailedParams(event.ID, handlerErr))
		// 500 so Stripe retries delivery.
		respondErr(w, http.StatusInternalServerError, "webhook handler failed")
		return
	}

	_, _ = s.q.MarkStripeEventProcessed(r.Context(), event.ID)
	w.WriteHeader(http.StatusOK)
}

// ─── EVENT HANDLERS ───────────────────────────────────────────────────────────

func (s *Server) onPaymentSucceeded(r *http.Request, event stripeinternal.Event) error {
	piID, err := stripeinternal.ExtractPaymentIntentID(event)
	if err != nil {
		return fmt.Errorf("onPaymentSucceeded: extract PI id: %w", err)
	}

	unlock, err := s.store.ConfirmUnlock(r.Context(), piID)
	if errors.Is(err, store.ErrUnlockAlreadyPaid) {
		s.logger.Debug("webhook: unlock already paid", "unlock_id", unlock.ID, logField(r))
		return nil
	}
	if errors.Is(err, store.ErrUnlockRefunded) {
		s.logger.Warn("webhook: success event for a refunded unlock, ignoring",
			"pi_id", piID,
			"unlock_id", unlock.ID,
			logField(r),
		)
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		if _, ours := stripeinternal.ExtractUnlockMetadata(event); !ours {
			s.logger.Info("webhook: payment intent is not a flow unlock, ignoring", "pi_id", piID, logField(r))
			return nil
		}
		// Ours, but the checkout transaction has not committed yet. Let
		// Stripe retry.
		return fmt.Errorf("onPaymentSucceeded: no unlock for %s yet: %w", piID, err)
	}
	if err != nil {
		return fmt.Errorf("onPaymentSucceeded: confirm unlock: %w", err)
	}

	s.logger.Info("webhook: flow unlocked",
		"session_id", unlock.SessionID,
		"flow_id", unlock.FlowID,
		logField(r),
	)

	if unlock.Email.Valid && unlock.Email.String != "" {
		title := unlock.FlowID
		if f, err := s.registry.Flow(unlock.FlowID); err == nil {
			title = f.Title
		}
		receiptErr := s.mailer.SendReceipt(r.Context(), email.ReceiptParams{
			To:          unlock.Email.String,
			FlowTitle:   title,
			AmountCents: unlock.AmountCents,
			Currency:    "usd",
		})
		s.logAndIgnoreEmailErr(r, receiptErr, "send receipt")
	}

	return nil
}

func (s *Server) onPaymentFailed(r *http.Request, event stripeinternal.Event) error {
	piID, err := stripeinternal.ExtractPaymentIntentID(event)
	if err != nil {
		return fmt.Errorf("onPaymentFailed: extract PI id: %w", err)
	}

	_, err = s.q.MarkUnlockFailed(r.Context(), sql.NullString{String: piID, Valid: true})
	if errors.Is(err, sql.ErrNoRows) {
		// Unknown PI, or the unlock is no longer pending.
		s.logger.Debug("webhook: no pending unlock for failed PI", "pi_id", piID, logField(r))
		return nil
	}
	if err != nil {
		return fmt.Errorf("onPaymentFailed: mark unlock failed: %w", err)
	}
	return nil
}

func (s *Server) onChargeRefunded(r *http.Request, event stripeinternal.Event) error {
	piID, err := stripeinternal.ExtractPIFromCharge(event)
	if err != nil {
		// Refund events without a linked PI are informational only.
		s.logger.Warn("webhook: charge.refunded without PI id", "event_id", event.ID, logField(r))
		return nil
	}

	unlock, err := s.q.MarkUnlockRefunded(r.Context(), sql.NullString{String: piID, Valid: true})
	if errors.Is(err, sql.ErrNoRows) {
		s.logger.Debug("webhook: refund for unknown PI", "pi_id", piID, logField(r))
		return nil
	}
	if err != nil {
		return fmt.Errorf("onChargeRefunded: mark unlock refunded: %w", err)
	}

	s.logger.Info("webhook: flow unlock refunded",
		"session_id", unlock.SessionID,
		"flow_id", unlock.FlowID,
		logField(r),
	)
	return nil
}
