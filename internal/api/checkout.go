package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/Nic-Huzz/findmyflow-sub001/internal/db"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/store"
	stripeinternal "github.com/Nic-Huzz/findmyflow-sub001/internal/stripe"
)

// ─── POST /api/session/:sessionID/flows/:flowID/checkout ──────────────────────

type createCheckoutRequest struct {
	Email string `json:"email"`
}

type createCheckoutResponse struct {
	// ClientSecret is the Stripe PaymentIntent client_secret. The browser
	// passes this to Stripe.js to render the payment UI and confirm the charge.
	ClientSecret string `json:"client_secret"`
	AmountCents  int64  `json:"amount_cents"`
	// IsExisting is true when the unlock already had a PaymentIntent (i.e. the
	// user opened checkout twice). The returned secret is still confirmable.
	IsExisting bool `json:"is_existing,omitempty"`
}

// handleCreateCheckout creates a Stripe PaymentIntent that unlocks a priced
// flow and returns the client_secret to the browser.
//
// Two concurrent calls for the same session and flow are serialised by
// store.AttachUnlockPayment. The loser gets ErrPaymentIntentAlreadyAttached
// and returns the winner's client_secret instead of a second PI. A pending
// PI that Stripe can no longer return is replaced by the new one.
func (s *Server) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionIDFrom(r)
	f := flowFrom(r)

	if f.PriceCents <= 0 {
		respondErr(w, http.StatusBadRequest, "flow does not require payment")
		return
	}

	var req createCheckoutRequest
	if !decode(w, r, &req) {
		return
	}

	email, ok := normaliseEmail(req.Email)
	if !ok || email == "" {
		respondErr(w, http.StatusBadRequest, "a valid email is required")
		return
	}

	// Required flows must be done before the unlock is sold.
	status, msg, err := s.checkPrerequisites(r.Context(), sessionID, f)
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("check prerequisites: %w", err))
		return
	}
	if status != 0 {
		respondErr(w, status, msg)
		return
	}

	// ── Fast path: unlock already exists ──────────────────────────────────────
	// The store transaction is the authoritative guard; this only skips the
	// Stripe call in the common retry case.
	var stalePI string
	existing, err := s.q.GetFlowUnlock(r.Context(), db.GetFlowUnlockParams{SessionID: sessionID, FlowID: f.ID})
	switch {
	case err == nil:
		if existing.Status == db.UnlockStatusPaid {
			respondErr(w, http.StatusConflict, "flow already unlocked")
			return
		}
		if existing.Status == db.UnlockStatusPending && existing.StripePaymentIntent.Valid {
			clientSecret, err := s.stripe.GetClientSecret(r.Context(), existing.StripePaymentIntent.String)
			if err == nil {
				respond(w, http.StatusOK, createCheckoutResponse{
					ClientSecret: clientSecret,
					AmountCents:  existing.AmountCents,
					IsExisting:   true,
				})
				return
			}
			// PI exists in our DB but Stripe can't return it. Replace it below.
			stalePI = existing.StripePaymentIntent.String
			s.logger.Warn("checkout: existing PI not found in Stripe, creating new",
				"pi", existing.StripePaymentIntent.String,
				"error", err,
				logField(r),
			)
		}
	case !errors.Is(err, sql.ErrNoRows):
		s.respondInternalErr(w, r, fmt.Errorf("get flow unlock: %w", err))
		return
	}

	// ── Create a new Stripe PaymentIntent ─────────────────────────────────────
	pi, err := s.stripe.CreatePaymentIntent(r.Context(),
		stripeinternal.UnlockParams(sessionID.String(), f.ID, f.Title, email, f.PriceCents))
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("create payment intent: %w", err))
		return
	}

	// ── Atomically attach the PI to the unlock ────────────────────────────────
	unlock, err := s.store.AttachUnlockPayment(r.Context(), store.AttachUnlockPaymentParams{
		SessionID:             sessionID,
		FlowID:                f.ID,
		AmountCents:           f.PriceCents,
		StripeCustomerID:      pi.CustomerID,
		StripePaymentIntent:   pi.ID,
		Email:                 email,
		ExpectedPaymentIntent: stalePI,
	})

	switch {
	case errors.Is(err, store.ErrUnlockAlreadyPaid):
		respondErr(w, http.StatusConflict, "flow already unlocked")
		return

	case errors.Is(err, store.ErrPaymentIntentAlreadyAttached):
		// Lost the race. The PI we just created expires unused in Stripe.
		s.logger.Info("checkout: lost race, returning existing PI",
			"session_id", sessionID,
			"flow_id", f.ID,
			logField(r),
		)
		clientSecret, stripeErr := s.stripe.GetClientSecret(r.Context(), unlock.StripePaymentIntent.String)
		if stripeErr != nil {
			s.respondInternalErr(w, r, fmt.Errorf("get client secret after race: %w", stripeErr))
			return
		}
		respond(w, http.StatusOK, createCheckoutResponse{
			ClientSecret: clientSecret,
			AmountCents:  unlock.AmountCents,
			IsExisting:   true,
		})
		return

	case err != nil:
		s.respondInternalErr(w, r, fmt.Errorf("attach unlock payment: %w", err))
		return
	}

	respond(w, http.StatusOK, createCheckoutResponse{
		ClientSecret: pi.ClientSecret,
		AmountCents:  f.PriceCents,
	})
}
