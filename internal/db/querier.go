package db

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

type Querier interface {
	// sessions
	CreateSession(ctx context.Context, arg CreateSessionParams) (Session, error)
	GetSessionByID(ctx context.Context, id uuid.UUID) (Session, error)
	GetSessionByAnonToken(ctx context.Context, anonToken string) (Session, error)
	UpdateSessionEmail(ctx context.Context, arg UpdateSessionEmailParams) (Session, error)

	// quiz_results, quiz_offer_scores
	CreateQuizResult(ctx context.Context, arg CreateQuizResultParams) (QuizResult, error)
	InsertOfferScore(ctx context.Context, arg InsertOfferScoreParams) (QuizOfferScore, error)
	GetQuizResultByID(ctx context.Context, id uuid.UUID) (QuizResult, error)
	GetQuizResultByAccessToken(ctx context.Context, accessToken string) (QuizResult, error)
	GetOfferScoresByResult(ctx context.Context, resultID uuid.UUID) ([]QuizOfferScore, error)
	ListPendingResults(ctx context.Context) ([]QuizResult, error)
	HasSavedResult(ctx context.Context, arg HasSavedResultParams) (bool, error)
	SetResultProcessing(ctx context.Context, id uuid.UUID) (QuizResult, error)
	FinalizeResult(ctx context.Context, arg FinalizeResultParams) (QuizResult, error)
	SetResultError(ctx context.Context, arg SetResultErrorParams) (QuizResult, error)

	// flow_unlocks
	GetFlowUnlock(ctx context.Context, arg GetFlowUnlockParams) (FlowUnlock, error)
	GetFlowUnlockByPaymentIntent(ctx context.Context, stripePaymentIntent sql.NullString) (FlowUnlock, error)
	UpsertFlowUnlock(ctx context.Context, arg UpsertFlowUnlockParams) (FlowUnlock, error)
	MarkUnlockPaid(ctx context.Context, stripePaymentIntent sql.NullString) (FlowUnlock, error)
	MarkUnlockFailed(ctx context.Context, stripePaymentIntent sql.NullString) (FlowUnlock, error)
	MarkUnlockRefunded(ctx context.Context, stripePaymentIntent sql.NullString) (FlowUnlock, error)

	// stripe_events
	UpsertStripeEvent(ctx context.Context, arg UpsertStripeEventParams) (StripeEvent, error)
	MarkStripeEventProcessed(ctx context.Context, stripeEventID string) (StripeEvent, error)
	MarkStripeEventFailed(ctx context.Context, arg MarkStripeEventFailedParams) (StripeEvent, error)
}

var _ Querier = (*Queries)(nil)
