package db

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

const resultColumns = `id, session_id, flow_id, answers, recommended_offer_id, confidence_score,
       all_offer_scores, status, access_token, narrative, error_message, created_at, generated_at`

func scanQuizResult(row scanner) (QuizResult, error) {
	var i QuizResult
	err := row.Scan(
		&i.ID,
		&i.SessionID,
		&i.FlowID,
		&i.Answers,
		&i.RecommendedOfferID,
		&i.ConfidenceScore,
		&i.AllOfferScores,
		&i.Status,
		&i.AccessToken,
		&i.Narrative,
		&i.ErrorMessage,
		&i.CreatedAt,
		&i.GeneratedAt,
	)
	return i, err
}

const createQuizResult = `-- name: CreateQuizResult :one
INSERT INTO quiz_results (session_id, flow_id, answers, recommended_offer_id, confidence_score, all_offer_scores)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + resultColumns

type CreateQuizResultParams struct {
	SessionID          uuid.UUID
	FlowID             string
	Answers            json.RawMessage
	RecommendedOfferID sql.NullString
	ConfidenceScore    sql.NullFloat64
	AllOfferScores     pqtype.NullRawMessage
}

func (q *Queries) CreateQuizResult(ctx context.Context, arg CreateQuizResultParams) (QuizResult, error) {
	row := q.db.QueryRowContext(ctx, createQuizResult,
		arg.SessionID,
		arg.FlowID,
		arg.Answers,
		arg.RecommendedOfferID,
		arg.ConfidenceScore,
		arg.AllOfferScores,
	)
	return scanQuizResult(row)
}

const insertOfferScore = `-- name: InsertOfferScore :one
INSERT INTO quiz_offer_scores (result_id, offer_id, rank, total_score, max_possible_score,
                               confidence, is_disqualified, disqualification_reasons)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, result_id, offer_id, rank, total_score, max_possible_score,
          confidence, is_disqualified, disqualification_reasons`

type InsertOfferScoreParams struct {
	ResultID                uuid.UUID
	OfferID                 string
	Rank                    int16
	TotalScore              float64
	MaxPossibleScore        float64
	Confidence              float64
	IsDisqualified          bool
	DisqualificationReasons []string
}

func (q *Queries) InsertOfferScore(ctx context.Context, arg InsertOfferScoreParams) (QuizOfferScore, error) {
	reasons := arg.DisqualificationReasons
	if reasons == nil {
		reasons = []string{}
	}
	row := q.db.QueryRowContext(ctx, insertOfferScore,
		arg.ResultID,
		arg.OfferID,
		arg.Rank,
		arg.TotalScore,
		arg.MaxPossibleScore,
		arg.Confidence,
		arg.IsDisqualified,
		pq.Array(reasons),
	)
	var i QuizOfferScore
	err := row.Scan(
		&i.ID,
		&i.ResultID,
		&i.OfferID,
		&i.Rank,
		&i.TotalScore,
		&i.MaxPossibleScore,
		&i.Confidence,
		&i.IsDisqualified,
		pq.Array(&i.DisqualificationReasons),
	)
	return i, err
}

const getQuizResultByID = `-- name: GetQuizResultByID :one
SELECT ` + resultColumns + ` FROM quiz_results WHERE id = $1`

func (q *Queries) GetQuizResultByID(ctx context.Context, id uuid.UUID) (QuizResult, error) {
	row := q.db.QueryRowContext(ctx, getQuizResultByID, id)
	return scanQuizResult(row)
}

const getQuizResultByAccessToken = `-- name: GetQuizResultByAccessToken :one
SELECT ` + resultColumns + ` FROM quiz_results WHERE access_token = $1`

func (q *Queries) GetQuizResultByAccessToken(ctx context.Context, accessToken string) (QuizResult, error) {
	row := q.db.QueryRowContext(ctx, getQuizResultByAccessToken, accessToken)
	return scanQuizResult(row)
}

const getOfferScoresByResult = `-- name: GetOfferScoresByResult :many
SELECT id, result_id, offer_id, rank, total_score, max_possible_score,
       confidence, is_disqualified, disqualification_reasons
FROM quiz_offer_scores
WHERE result_id = $1
ORDER BY rank`

func (q *Queries) GetOfferScoresByResult(ctx context.Context, resultID uuid.UUID) ([]QuizOfferScore, error) {
	rows, err := q.db.QueryContext(ctx, getOfferScoresByResult, resultID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []QuizOfferScore
	for rows.Next() {
		var i QuizOfferScore
		if err := rows.Scan(
			&i.ID,
			&i.ResultID,
			&i.OfferID,
			&i.Rank,
			&i.TotalScore,
			&i.MaxPossibleScore,
			&i.Confidence,
			&i.IsDisqualified,
			pq.Array(&i.DisqualificationReasons),
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listPendingResults = `-- name: ListPendingResults :many
SELECT ` + resultColumns + `
FROM quiz_results
WHERE status IN ('pending', 'processing')
ORDER BY created_at
LIMIT 100`

func (q *Queries) ListPendingResults(ctx context.Context) ([]QuizResult, error) {
	rows, err := q.db.QueryContext(ctx, listPendingResults)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []QuizResult
	for rows.Next() {
		i, err := scanQuizResult(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const hasSavedResult = `-- name: HasSavedResult :one
SELECT EXISTS (
    SELECT 1 FROM quiz_results WHERE session_id = $1 AND flow_id = $2
)`

type HasSavedResultParams struct {
	SessionID uuid.UUID
	FlowID    string
}

func (q *Queries) HasSavedResult(ctx context.Context, arg HasSavedResultParams) (bool, error) {
	row := q.db.QueryRowContext(ctx, hasSavedResult, arg.SessionID, arg.FlowID)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

const setResultProcessing = `-- name: SetResultProcessing :one
UPDATE quiz_results
SET status = 'processing'
WHERE id = $1
RETURNING ` + resultColumns

func (q *Queries) SetResultProcessing(ctx context.Context, id uuid.UUID) (QuizResult, error) {
	row := q.db.QueryRowContext(ctx, setResultProcessing, id)
	return scanQuizResult(row)
}

const finalizeResult = `-- name: FinalizeResult :one
UPDATE quiz_results
SET status = 'ready', narrative = $2, error_message = NULL, generated_at = now()
WHERE id = $1
RETURNING ` + resultColumns

type FinalizeResultParams struct {
	ID        uuid.UUID
	Narrative sql.NullString
}

func (q *Queries) FinalizeResult(ctx context.Context, arg FinalizeResultParams) (QuizResult, error) {
	row := q.db.QueryRowContext(ctx, finalizeResult, arg.ID, arg.Narrative)
	return scanQuizResult(row)
}

const setResultError = `-- name: SetResultError :one
UPDATE quiz_results
SET status = 'error', error_message = $2
WHERE id = $1
RETURNING ` + resultColumns

type SetResultErrorParams struct {
	ID           uuid.UUID
	ErrorMessage sql.NullString
}

func (q *Queries) SetResultError(ctx context.Context, arg SetResultErrorParams) (QuizResult, error) {
	row := q.db.QueryRowContext(ctx, setResultError, arg.ID, arg.ErrorMessage)
	return scanQuizResult(row)
}
