package db

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type ResultStatus string

const (
	ResultStatusPending    ResultStatus = "pending"
	ResultStatusProcessing ResultStatus = "processing"
	ResultStatusReady      ResultStatus = "ready"
	ResultStatusError      ResultStatus = "error"
)

type UnlockStatus string

const (
	UnlockStatusPending  UnlockStatus = "pending"
	UnlockStatusPaid     UnlockStatus = "paid"
	UnlockStatusFailed   UnlockStatus = "failed"
	UnlockStatusRefunded UnlockStatus = "refunded"
)

type Session struct {
	ID        uuid.UUID
	AnonToken string
	Email     sql.NullString
	CreatedAt time.Time
	UpdatedAt time.Time
}

type QuizResult struct {
	ID                 uuid.UUID
	SessionID          uuid.UUID
	FlowID             string
	Answers            json.RawMessage
	RecommendedOfferID sql.NullString
	ConfidenceScore    sql.NullFloat64
	AllOfferScores     pqtype.NullRawMessage
	Status             ResultStatus
	AccessToken        string
	Narrative          sql.NullString
	ErrorMessage       sql.NullString
	CreatedAt          time.Time
	GeneratedAt        sql.NullTime
}

type QuizOfferScore struct {
	ID                      uuid.UUID
	ResultID                uuid.UUID
	OfferID                 string
	Rank                    int16
	TotalScore              float64
	MaxPossibleScore        float64
	Confidence              float64
	IsDisqualified          bool
	DisqualificationReasons []string
}

type FlowUnlock struct {
	ID                  uuid.UUID
	SessionID           uuid.UUID
	FlowID              string
	Status              UnlockStatus
	StripePaymentIntent sql.NullString
	StripeCustomerID    sql.NullString
	AmountCents         int64
	Email               sql.NullString
	PaidAt              sql.NullTime
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type StripeEvent struct {
	StripeEventID string
	Type          string
	Payload       json.RawMessage
	ProcessedAt   sql.NullTime
	Error         sql.NullString
	ReceivedAt    time.Time
}
