package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Nic-Huzz/findmyflow-sub001/internal/db"
)

// ─── INPUT TYPES ─────────────────────────────────────────────────────────────

// AttachUnlockPaymentParams groups the Stripe and email fields written when
// checkout for a priced flow is initiated.
type AttachUnlockPaymentParams struct {
	SessionID           uuid.UUID
	FlowID              string
	AmountCents         int64
	StripeCustomerID    string
	StripePaymentIntent string
	Email               string

	// ExpectedPaymentIntent is the pending PaymentIntent the caller found
	// unusable in Stripe. When it still matches the row, the new
	// PaymentIntent replaces it instead of losing to it.
	ExpectedPaymentIntent string
}

// ─── ERRORS ──────────────────────────────────────────────────────────────────

var (
	// ErrPaymentIntentAlreadyAttached is returned when the session already
	// has a live PaymentIntent for the flow. The checkout handler returns the
	// existing client_secret instead of creating a second PaymentIntent.
	ErrPaymentIntentAlreadyAttached = errors.New("store: payment intent already attached to flow unlock")

	// ErrUnlockAlreadyPaid is returned by AttachUnlockPayment when the flow is
	// already unlocked, and by ConfirmUnlock on a replayed success event.
	ErrUnlockAlreadyPaid = errors.New("store: flow unlock already paid")

	// ErrUnlockRefunded is returned by ConfirmUnlock when a success event
	// arrives for an unlock that was already refunded.
	ErrUnlockRefunded = errors.New("store: flow unlock refunded")
)

// ─── METHODS ─────────────────────────────────────────────────────────────────

// AttachUnlockPayment records a new PaymentIntent against (session, flow).
//
// Two tabs opening checkout at once both reach Stripe, but under serializable
// isolation only one commit attaches its PaymentIntent. The other sees the
// attached row and gets ErrPaymentIntentAlreadyAttached along with the
// existing unlock. A failed or refunded unlock may be retried with a new
// PaymentIntent, and so may a pending one whose PaymentIntent matches
// p.ExpectedPaymentIntent.
func (s *Store) AttachUnlockPayment(ctx context.Context, p AttachUnlockPaymentParams) (db.FlowUnlock, error) {
	var unlock db.FlowUnlock

	err := s.withTx(ctx, func(ctx context.Context, q db.Querier) error {
		existing, err := q.GetFlowUnlock(ctx, db.GetFlowUnlockParams{
			SessionID: p.SessionID,
			FlowID:    p.FlowID,
		})
		switch {
		case err == nil:
			if err := attachBlocked(existing, p.ExpectedPaymentIntent); err != nil {
				unlock = existing
				return err
			}
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("AttachUnlockPayment: get unlock: %w", err)
		}

		updated, err := q.UpsertFlowUnlock(ctx, db.UpsertFlowUnlockParams{
			SessionID:           p.SessionID,
			FlowID:              p.FlowID,
			StripePaymentIntent: sql.NullString{String: p.StripePaymentIntent, Valid: true},
			StripeCustomerID:    sql.NullString{String: p.StripeCustomerID, Valid: p.StripeCustomerID != ""},
			AmountCents:         p.AmountCents,
			Email:               sql.NullString{String: p.Email, Valid: p.Email != ""},
		})
		if err != nil {
			return fmt.Errorf("AttachUnlockPayment: upsert unlock: %w", err)
		}
		unlock = updated
		return nil
	})

	if errors.Is(err, ErrPaymentIntentAlreadyAttached) || errors.Is(err, ErrUnlockAlreadyPaid) {
		return unlock, err
	}
	if err != nil {
		return db.FlowUnlock{}, err
	}
	return unlock, nil
}

// ConfirmUnlock marks the unlock owning stripePaymentIntent as paid. A
// replayed payment_intent.succeeded gets ErrUnlockAlreadyPaid and the current
// row, which the webhook treats as success. A refunded unlock stays refunded
// and gets ErrUnlockRefunded.
func (s *Store) ConfirmUnlock(ctx context.Context, stripePaymentIntent string) (db.FlowUnlock, error) {
	pi := sql.NullString{String: stripePaymentIntent, Valid: true}
	var unlock db.FlowUnlock

	err := s.withTx(ctx, func(ctx context.Context, q db.Querier) error {
		existing, err := q.GetFlowUnlockByPaymentIntent(ctx, pi)
		if err != nil {
			return fmt.Errorf("ConfirmUnlock: get unlock: %w", err)
		}
		if err := confirmBlocked(existing); err != nil {
			unlock = existing
			return err
		}

		paid, err := q.MarkUnlockPaid(ctx, pi)
		if err != nil {
			return fmt.Errorf("ConfirmUnlock: mark paid: %w", err)
		}
		unlock = paid
		return nil
	})

	if errors.Is(err, ErrUnlockAlreadyPaid) || errors.Is(err, ErrUnlockRefunded) {
		return unlock, err
	}
	if err != nil {
		return db.FlowUnlock{}, err
	}
	return unlock, nil
}

// ─── GUARDS ──────────────────────────────────────────────────────────────────

// attachBlocked decides whether a new PaymentIntent may be written over the
// existing unlock row.
func attachBlocked(existing db.FlowUnlock, expectedPI string) error {
	switch existing.Status {
	case db.UnlockStatusPaid:
		return ErrUnlockAlreadyPaid
	case db.UnlockStatusPending:
		if !existing.StripePaymentIntent.Valid {
			return nil
		}
		if expectedPI != "" && existing.StripePaymentIntent.String == expectedPI {
			return nil
		}
		return ErrPaymentIntentAlreadyAttached
	}
	return nil
}

// confirmBlocked decides whether a succeeded PaymentIntent may mark the
// unlock paid.
func confirmBlocked(existing db.FlowUnlock) error {
	switch existing.Status {
	case db.UnlockStatusPaid:
		return ErrUnlockAlreadyPaid
	case db.UnlockStatusRefunded:
		return ErrUnlockRefunded
	}
	return nil
}
