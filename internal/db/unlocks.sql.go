package db

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

const unlockColumns = `id, session_id, flow_id, status, stripe_payment_intent, stripe_customer_id,
          amount_cents, email, paid_at, created_at, updated_at`

func scanFlowUnlock(row scanner) (FlowUnlock, error) {
	var i FlowUnlock
	err := row.Scan(
		&i.ID,
		&i.SessionID,
		&i.FlowID,
		&i.Status,
		&i.StripePaymentIntent,
		&i.StripeCustomerID,
		&i.AmountCents,
		&i.Email,
		&i.PaidAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getFlowUnlock = `-- name: GetFlowUnlock :one
SELECT ` + unlockColumns + ` FROM flow_unlocks WHERE session_id = $1 AND flow_id = $2`

type GetFlowUnlockParams struct {
	SessionID uuid.UUID
	FlowID    string
}

func (q *Queries) GetFlowUnlock(ctx context.Context, arg GetFlowUnlockParams) (FlowUnlock, error) {
	row := q.db.QueryRowContext(ctx, getFlowUnlock, arg.SessionID, arg.FlowID)
	return scanFlowUnlock(row)
}

const getFlowUnlockByPaymentIntent = `-- name: GetFlowUnlockByPaymentIntent :one
SELECT ` + unlockColumns + ` FROM flow_unlocks WHERE stripe_payment_intent = $1`

func (q *Queries) GetFlowUnlockByPaymentIntent(ctx context.Context, stripePaymentIntent sql.NullString) (FlowUnlock, error) {
	row := q.db.QueryRowContext(ctx, getFlowUnlockByPaymentIntent, stripePaymentIntent)
	return scanFlowUnlock(row)
}

const upsertFlowUnlock = `-- name: UpsertFlowUnlock :one
INSERT INTO flow_unlocks (session_id, flow_id, stripe_payment_intent, stripe_customer_id, amount_cents, email)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (session_id, flow_id) DO UPDATE
SET stripe_payment_intent = EXCLUDED.stripe_payment_intent,
    stripe_customer_id    = EXCLUDED.stripe_customer_id,
    amount_cents          = EXCLUDED.amount_cents,
    email                 = EXCLUDED.email,
    status                = 'pending',
    updated_at            = now()
RETURNING ` + unlockColumns

type UpsertFlowUnlockParams struct {
	SessionID           uuid.UUID
	FlowID              string
	StripePaymentIntent sql.NullString
	StripeCustomerID    sql.NullString
	AmountCents         int64
	Email               sql.NullString
}

func (q *Queries) UpsertFlowUnlock(ctx context.Context, arg UpsertFlowUnlockParams) (FlowUnlock, error) {
	row := q.db.QueryRowContext(ctx, upsertFlowUnlock,
		arg.SessionID,
		arg.FlowID,
		arg.StripePaymentIntent,
		arg.StripeCustomerID,
		arg.AmountCents,
		arg.Email,
	)
	return scanFlowUnlock(row)
}

const markUnlockPaid = `-- name: MarkUnlockPaid :one
UPDATE flow_unlocks
SET status = 'paid', paid_at = now(), updated_at = now()
WHERE stripe_payment_intent = $1 AND status IN ('pending', 'failed')
RETURNING ` + unlockColumns

func (q *Queries) MarkUnlockPaid(ctx context.Context, stripePaymentIntent sql.NullString) (FlowUnlock, error) {
	row := q.db.QueryRowContext(ctx, markUnlockPaid, stripePaymentIntent)
	return scanFlowUnlock(row)
}

const markUnlockFailed = `-- name: MarkUnlockFailed :one
UPDATE flow_unlocks
SET status = 'failed', updated_at = now()
WHERE stripe_payment_intent = $1 AND status = 'pending'
RETURNING ` + unlockColumns

func (q *Queries) MarkUnlockFailed(ctx context.Context, stripePaymentIntent sql.NullString) (FlowUnlock, error) {
	row := q.db.QueryRowContext(ctx, markUnlockFailed, stripePaymentIntent)
	return scanFlowUnlock(row)
}

const markUnlockRefunded = `-- name: MarkUnlockRefunded :one
UPDATE flow_unlocks
SET status = 'refunded', updated_at = now()
WHERE stripe_payment_intent = $1
RETURNING ` + unlockColumns

func (q *Queries) MarkUnlockRefunded(ctx context.Context, stripePaymentIntent sql.NullString) (FlowUnlock, error) {
	row := q.db.QueryRowContext(ctx, markUnlockRefunded, stripePaymentIntent)
	return scanFlowUnlock(row)
}
