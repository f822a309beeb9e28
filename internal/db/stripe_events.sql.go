package db

import (
	"context"
	"database/sql"
	"encoding/json"
)

const stripeEventColumns = `stripe_event_id, type, payload, processed_at, error, received_at`

func scanStripeEvent(row scanner) (StripeEvent, error) {
	var i StripeEvent
	err := row.Scan(
		&i.StripeEventID,
		&i.Type,
		&i.Payload,
		&i.ProcessedAt,
		&i.Error,
		&i.ReceivedAt,
	)
	return i, err
}

// UpsertStripeEvent returns sql.ErrNoRows when the event was already
// processed. A redelivery of an event whose handler failed returns the row
// again so it can be retried.
const upsertStripeEvent = `-- name: UpsertStripeEvent :one
INSERT INTO stripe_events (stripe_event_id, type, payload)
VALUES ($1, $2, $3)
ON CONFLICT (stripe_event_id) DO UPDATE
SET type = EXCLUDED.type
WHERE stripe_events.processed_at IS NULL
RETURNING ` + stripeEventColumns

type UpsertStripeEventParams struct {
	StripeEventID string
	Type          string
	Payload       json.RawMessage
}

func (q *Queries) UpsertStripeEvent(ctx context.Context, arg UpsertStripeEventParams) (StripeEvent, error) {
	row := q.db.QueryRowContext(ctx, upsertStripeEvent, arg.StripeEventID, arg.Type, arg.Payload)
	return scanStripeEvent(row)
}

const markStripeEventProcessed = `-- name: MarkStripeEventProcessed :one
UPDATE stripe_events
SET processed_at = now(), error = NULL
WHERE stripe_event_id = $1
RETURNING ` + stripeEventColumns

func (q *Queries) MarkStripeEventProcessed(ctx context.Context, stripeEventID string) (StripeEvent, error) {
	row := q.db.QueryRowContext(ctx, markStripeEventProcessed, stripeEventID)
	return scanStripeEvent(row)
}

const markStripeEventFailed = `-- name: MarkStripeEventFailed :one
UPDATE stripe_events
SET error = $2
WHERE stripe_event_id = $1
RETURNING ` + stripeEventColumns

type MarkStripeEventFailedParams struct {
	StripeEventID string
	Error         sql.NullString
}

func (q *Queries) MarkStripeEventFailed(ctx context.Context, arg MarkStripeEventFailedParams) (StripeEvent, error) {
	row := q.db.QueryRowContext(ctx, markStripeEventFailed, arg.StripeEventID, arg.Error)
	return scanStripeEvent(row)
}
