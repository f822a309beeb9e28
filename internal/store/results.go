package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/Nic-Huzz/findmyflow-sub001/internal/db"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/scoring"
)

// ─── INPUT TYPES ─────────────────────────────────────────────────────────────

// SaveResultParams is a finished flow session handed over on an explicit save.
// Scored is the ranked output of scoring.ScoreOffers and is empty for flows
// without an offer catalog.
type SaveResultParams struct {
	SessionID uuid.UUID
	FlowID    string
	Answers   scoring.AnswerContext
	Scored    []scoring.ScoredOffer
}

// ─── METHODS ─────────────────────────────────────────────────────────────────

// SaveResult writes one quiz_results row and one quiz_offer_scores row per
// scored offer in a single transaction. The result row carries the export
// shape: answers, the recommended offer id, its confidence and every offer's
// confidence keyed by offer id.
//
// The new row starts in pending status; the worker picks it up from there.
func (s *Store) SaveResult(ctx context.Context, p SaveResultParams) (db.QuizResult, error) {
	answersJSON, err := json.Marshal(p.Answers)
	if err != nil {
		return db.QuizResult{}, fmt.Errorf("SaveResult: marshal answers: %w", err)
	}

	params := db.CreateQuizResultParams{
		SessionID: p.SessionID,
		FlowID:    p.FlowID,
		Answers:   answersJSON,
	}
	if len(p.Scored) > 0 {
		scoresJSON, err := json.Marshal(scoring.OfferScores(p.Scored))
		if err != nil {
			return db.QuizResult{}, fmt.Errorf("SaveResult: marshal offer scores: %w", err)
		}
		params.AllOfferScores = pqtype.NullRawMessage{RawMessage: scoresJSON, Valid: true}
	}
	if top, ok := scoring.TopOffer(p.Scored); ok {
		params.RecommendedOfferID = sql.NullString{String: top.OfferID, Valid: true}
		params.ConfidenceScore = sql.NullFloat64{Float64: top.Confidence, Valid: true}
	}

	var result db.QuizResult
	err = s.withTx(ctx, func(ctx context.Context, q db.Querier) error {
		created, err := q.CreateQuizResult(ctx, params)
		if err != nil {
			return fmt.Errorf("SaveResult: create result: %w", err)
		}

		for i, so := range p.Scored {
			if _, err := q.InsertOfferScore(ctx, db.InsertOfferScoreParams{
				ResultID:                created.ID,
				OfferID:                 so.OfferID,
				Rank:                    int16(i + 1),
				TotalScore:              so.TotalScore,
				MaxPossibleScore:        so.MaxPossibleScore,
				Confidence:              so.Confidence,
				IsDisqualified:          so.IsDisqualified,
				DisqualificationReasons: so.DisqualificationReasons,
			}); err != nil {
				return fmt.Errorf("SaveResult: insert score %q: %w", so.OfferID, err)
			}
		}

		result = created
		return nil
	})
	if err != nil {
		return db.QuizResult{}, err
	}
	return result, nil
}

// FinalizeResult claims the result for processing and marks it ready with the
// generated narrative (empty is fine) in one transaction.
func (s *Store) FinalizeResult(ctx context.Context, resultID uuid.UUID, narrative string) (db.QuizResult, error) {
	var result db.QuizResult

	err := s.withTx(ctx, func(ctx context.Context, q db.Querier) error {
		if _, err := q.SetResultProcessing(ctx, resultID); err != nil {
			return fmt.Errorf("FinalizeResult: set processing: %w", err)
		}
		finalised, err := q.FinalizeResult(ctx, db.FinalizeResultParams{
			ID:        resultID,
			Narrative: sql.NullString{String: narrative, Valid: narrative != ""},
		})
		if err != nil {
			return fmt.Errorf("FinalizeResult: finalize: %w", err)
		}
		result = finalised
		return nil
	})
	if err != nil {
		return db.QuizResult{}, err
	}
	return result, nil
}

// MarkResultFailed sets the result status to error. Called by the worker once
// retries are exhausted so the poller stops picking the row up.
func (s *Store) MarkResultFailed(ctx context.Context, resultID uuid.UUID, reason string) (db.QuizResult, error) {
	result, err := s.q.SetResultError(ctx, db.SetResultErrorParams{
		ID:           resultID,
		ErrorMessage: sql.NullString{String: reason, Valid: true},
	})
	if err != nil {
		return db.QuizResult{}, fmt.Errorf("MarkResultFailed: %w", err)
	}
	return result, nil
}
