package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Nic-Huzz/findmyflow-sub001/internal/ai"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/catalog"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/db"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/email"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/scoring"
)

// ResultStore is the subset of *store.Store the worker writes through.
type ResultStore interface {
	FinalizeResult(ctx context.Context, resultID uuid.UUID, narrative string) (db.QuizResult, error)
	MarkResultFailed(ctx context.Context, resultID uuid.UUID, reason string) (db.QuizResult, error)
}

// Job holds the dependencies for the finalise pipeline of a saved result.
type Job struct {
	q        db.Querier
	store    ResultStore
	registry *catalog.Registry
	narrator ai.Narrator // nil disables narratives
	mailer   email.Sender
	logger   *slog.Logger
}

// NewJob constructs a Job. narrator may be nil when no AI provider is
// configured.
func NewJob(
	q db.Querier,
	st ResultStore,
	registry *catalog.Registry,
	narrator ai.Narrator,
	mailer email.Sender,
	logger *slog.Logger,
) *Job {
	return &Job{
		q:        q,
		store:    st,
		registry: registry,
		narrator: narrator,
		mailer:   mailer,
		logger:   logger,
	}
}

// Run finalises a single saved result:
//
//  1. Load the result row.
//  2. Resolve its flow and recommended offer from the catalog.
//  3. Ask the narrator for a short explanation (failure is non-fatal).
//  4. Mark the result ready via store.FinalizeResult.
//  5. Email the results link if the session has an address.
//
// Any error is returned to the Runner, which retries before calling
// store.MarkResultFailed.
func (j *Job) Run(ctx context.Context, resultID uuid.UUID) error {
	log := j.logger.With("result_id", resultID)
	log.Info("job: starting")

	// ── 1. Load the result ────────────────────────────────────────────────────
	result, err := j.q.GetQuizResultByID(ctx, resultID)
	if err != nil {
		return fmt.Errorf("job: get result: %w", err)
	}
	if result.Status == db.ResultStatusReady {
		log.Info("job: result already ready, skipping")
		return nil
	}

	// ── 2. Resolve flow and offer ─────────────────────────────────────────────
	f, err := j.registry.Flow(result.FlowID)
	if err != nil {
		return fmt.Errorf("job: %w", err)
	}

	var offer scoring.Offer
	hasOffer := false
	if result.RecommendedOfferID.Valid {
		offer, hasOffer = j.registry.Offer(f, result.RecommendedOfferID.String)
		if !hasOffer {
			log.Warn("job: recommended offer no longer in catalog", "offer_id", result.RecommendedOfferID.String)
		}
	}

	// ── 3. Narrative ──────────────────────────────────────────────────────────
	var narrative string
	if j.narrator != nil && hasOffer {
		var answers scoring.AnswerContext
		if err := json.Unmarshal(result.Answers, &answers); err != nil {
			return fmt.Errorf("job: decode answers: %w", err)
		}

		n, err := j.narrator.Narrate(ctx, ai.NarrativeInput{
			FlowTitle:  f.Title,
			Answers:    answers.All(),
			Offer:      offer,
			Confidence: result.ConfidenceScore.Float64,
		})
		if err != nil {
			log.Warn("job: narrative generation failed, finalising without it", "error", err)
		} else {
			narrative = n.String()
		}
	}

	// ── 4. Finalise ───────────────────────────────────────────────────────────
	final, err := j.store.FinalizeResult(ctx, resultID, narrative)
	if err != nil {
		return fmt.Errorf("job: finalize result: %w", err)
	}
	log.Info("job: result ready",
		"flow_id", final.FlowID,
		"offer_id", final.RecommendedOfferID.String,
		"has_narrative", narrative != "",
	)

	// ── 5. Delivery email ─────────────────────────────────────────────────────
	// The result is reachable by its access token either way, so email
	// problems are logged and swallowed.
	session, err := j.q.GetSessionByID(ctx, result.SessionID)
	if err != nil {
		log.Error("job: could not load session for email delivery", "error", err)
		return nil
	}
	if !session.Email.Valid || session.Email.String == "" {
		log.Debug("job: session has no email address, skipping delivery email")
		return nil
	}

	if err := j.mailer.SendResultsReady(ctx, email.ResultsReadyParams{
		To:          session.Email.String,
		FlowTitle:   f.Title,
		OfferName:   offer.Name,
		AccessToken: final.AccessToken,
	}); err != nil {
		log.Error("job: failed to send results email", "to", session.Email.String, "error", err)
	}

	return nil
}
