// Package stripe wraps the Stripe calls behind paid flow unlocks and the
// helpers the webhook handler uses to turn events into database writes.
package stripe

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Nic-Huzz/findmyflow-sub001/internal/db"
)

// ─── TYPES ────────────────────────────────────────────────────────────────────

// Metadata keys written onto every unlock PaymentIntent.
const (
	MetaSessionID = "session_id"
	MetaFlowID    = "flow_id"
)

// CreatePaymentIntentParams holds the inputs for creating a Stripe PI.
type CreatePaymentIntentParams struct {
	AmountCents int64
	Currency    string
	Email       string
	Description string
	Metadata    map[string]string
}

// PaymentIntent is the subset of a Stripe PaymentIntent that callers need.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	CustomerID   string // empty when no email was given
}

// Event is a parsed Stripe webhook event. DataRaw is the raw JSON of the
// event's data.object.
type Event struct {
	ID      string
	Type    string
	DataRaw json.RawMessage
}

// UnlockMetadata identifies the flow unlock a PaymentIntent pays for.
type UnlockMetadata struct {
	SessionID string
	FlowID    string
}

// ─── CLIENT INTERFACE ─────────────────────────────────────────────────────────

// Client is what the api package uses for every Stripe call. Tests inject a
// stub.
type Client interface {
	// CreatePaymentIntent creates a new PI and returns its client_secret.
	CreatePaymentIntent(ctx context.Context, p CreatePaymentIntentParams) (PaymentIntent, error)

	// GetClientSecret retrieves the client_secret for an existing PI. Used
	// when the unlock already has a PI attached.
	GetClientSecret(ctx context.Context, paymentIntentID string) (string, error)

	// VerifyWebhook validates the Stripe-Signature header and returns the
	// parsed event.
	VerifyWebhook(payload []byte, sigHeader string, secret string) (Event, error)
}

// ─── HELPERS USED BY api/ ────────────────────────────────────────────────────

// UnlockParams builds the PaymentIntent for unlocking flowID.
func UnlockParams(sessionID, flowID, flowTitle, email string, amountCents int64) CreatePaymentIntentParams {
	return CreatePaymentIntentParams{
		AmountCents: amountCents,
		Currency:    "usd",
		Email:       email,
		Description: "Find My Flow: " + flowTitle,
		Metadata: map[string]string{
			MetaSessionID: sessionID,
			MetaFlowID:    flowID,
		},
	}
}

// ToUpsertParams converts a parsed Event and its raw payload into the params
// for db.Querier.UpsertStripeEvent.
func ToUpsertParams(event Event, rawPayload []byte) db.UpsertStripeEventParams {
	return db.UpsertStripeEventParams{
		StripeEventID: event.ID,
		Type:          event.Type,
		Payload:       json.RawMessage(rawPayload),
	}
}

// ToMarkFailedParams builds the params for db.Querier.MarkStripeEventFailed.
func ToMarkFailedParams(eventID string, err error) db.MarkStripeEventFailedParams {
	return db.MarkStripeEventFailedParams{
		StripeEventID: eventID,
		Error:         sql.NullString{String: err.Error(), Valid: true},
	}
}

// ExtractPaymentIntentID pulls the PaymentIntent id field from the event's
// data.object. Works for payment_intent.* events.
func ExtractPaymentIntentID(event Event) (string, error) {
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(event.DataRaw, &obj); err != nil {
		return "", fmt.Errorf("stripe: unmarshal payment intent id: %w", err)
	}
	if obj.ID == "" {
		return "", fmt.Errorf("stripe: payment intent id is empty in event %s", event.ID)
	}
	return obj.ID, nil
}

// ExtractUnlockMetadata reads the session and flow ids from a PaymentIntent
// event. ok is false for PaymentIntents this service did not create.
func ExtractUnlockMetadata(event Event) (UnlockMetadata, bool) {
	var obj struct {
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(event.DataRaw, &obj); err != nil {
		return UnlockMetadata{}, false
	}
	m := UnlockMetadata{
		SessionID: obj.Metadata[MetaSessionID],
		FlowID:    obj.Metadata[MetaFlowID],
	}
	return m, m.SessionID != "" && m.FlowID != ""
}

// ExtractPIFromCharge pulls the payment_intent field from a charge object.
// Works for charge.refunded events.
func ExtractPIFromCharge(event Event) (string, error) {
	var obj struct {
		PaymentIntent string `json:"payment_intent"`
	}
	if err := json.Unmarshal(event.DataRaw, &obj); err != nil {
		return "", fmt.Errorf("stripe: unmarshal charge: %w", err)
	}
	if obj.PaymentIntent == "" {
		return "", fmt.Errorf("stripe: no payment_intent on charge in event %s", event.ID)
	}
	return obj.PaymentIntent, nil
}
