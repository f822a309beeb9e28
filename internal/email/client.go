// Package email defines the interface for transactional email delivery and
// provides a Resend-backed implementation.
package email

import "context"

// ResultsReadyParams holds the data for the "your results are ready" email.
type ResultsReadyParams struct {
	To          string // recipient email address
	FlowTitle   string // e.g. "Which offer fits you?"
	OfferName   string // recommended offer; empty for flows without a catalog
	AccessToken string // inserted into the results URL
}

// ReceiptParams holds the data for the unlock receipt email.
type ReceiptParams struct {
	To          string
	FlowTitle   string
	AmountCents int64  // e.g. 2900 for $29.00
	Currency    string // e.g. "usd"
}

// Sender is what the worker and the webhook handler use to send email.
// Tests inject a stub that records calls.
type Sender interface {
	// SendResultsReady is sent by the worker once a saved result is final.
	SendResultsReady(ctx context.Context, p ResultsReadyParams) error

	// SendReceipt is sent by the webhook handler when a flow unlock is paid.
	SendReceipt(ctx context.Context, p ReceiptParams) error
}
