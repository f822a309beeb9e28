package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Nic-Huzz/findmyflow-sub001/internal/db"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/scoring"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/store"
)

// ─── POST /api/session/:sessionID/flows/:flowID/save ──────────────────────────

type saveResponse struct {
	ResultID    string        `json:"result_id"`
	AccessToken string        `json:"access_token"`
	Status      string        `json:"status"`
	Score       scoreResponse `json:"score"`
}

// handleSave persists a finished session: the answers, the recommended offer
// with its confidence and every offer's score. The result job is enqueued to
// add the narrative and send the results email.
//
// A failed write is logged and answered with 500, and the cached session is
// left exactly as it was so the user still sees their results and can retry.
// After a successful write the cached session is cleared.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionIDFrom(r)
	f := flowFrom(r)

	st, ok := s.loadState(w, r)
	if !ok {
		return
	}
	if !st.Finished() {
		respondErr(w, http.StatusConflict, "flow is not finished")
		return
	}

	scored := s.registry.Score(f, st.Answers)

	result, err := s.store.SaveResult(r.Context(), store.SaveResultParams{
		SessionID: sessionID,
		FlowID:    f.ID,
		Answers:   st.Answers,
		Scored:    scored,
	})
	if err != nil {
		s.logger.Error("save: persistence failed",
			"session_id", sessionID,
			"flow_id", f.ID,
			"error", err,
			logField(r),
		)
		respondErr(w, http.StatusInternalServerError, "could not save result, please retry")
		return
	}

	// The session is no longer in progress; a repeated save gets 404.
	if err := s.flows.Delete(r.Context(), sessionID, f.ID); err != nil {
		s.logger.Warn("save: could not clear flow state",
			"session_id", sessionID,
			"flow_id", f.ID,
			"error", err,
			logField(r),
		)
	}

	if err := s.worker.Enqueue(r.Context(), result.ID); err != nil {
		// Queue full; the poller picks pending results up.
		s.logger.Warn("save: enqueue failed, will be picked up by poller",
			"result_id", result.ID,
			"error", err,
			logField(r),
		)
	}

	respond(w, http.StatusCreated, saveResponse{
		ResultID:    result.ID.String(),
		AccessToken: result.AccessToken,
		Status:      string(result.Status),
		Score:       scoreView(f.ID, scored),
	})
}

// ─── GET /api/result/:accessToken ─────────────────────────────────────────────

type offerScoreResponse struct {
	Rank                    int16    `json:"rank"`
	OfferID                 string   `json:"offer_id"`
	OfferName               string   `json:"offer_name,omitempty"`
	TotalScore              float64  `json:"total_score"`
	MaxPossibleScore        float64  `json:"max_possible_score"`
	Confidence              float64  `json:"confidence"`
	IsDisqualified          bool     `json:"is_disqualified"`
	DisqualificationReasons []string `json:"disqualification_reasons"`
}

type resultResponse struct {
	ResultID           string               `json:"result_id"`
	FlowID             string               `json:"flow_id"`
	FlowTitle          string               `json:"flow_title,omitempty"`
	Status             string               `json:"status"`
	RecommendedOfferID string               `json:"recommended_offer_id,omitempty"`
	ConfidenceScore    *float64             `json:"confidence_score,omitempty"`
	Answers            []scoring.Answer     `json:"answers"`
	Offers             []offerScoreResponse `json:"offers"`
	Narrative          string               `json:"narrative,omitempty"`
	CreatedAt          string               `json:"created_at"`
	GeneratedAt        string               `json:"generated_at,omitempty"`
}

// handleGetResult serves a saved result by its opaque access token. No
// session authentication is needed; the link is what gets emailed.
//
// Returns 404 for an unknown token and 202 while the result job has not run
// yet so the frontend can poll. A result whose job gave up is served with
// status "error": its scores were already final at save time.
func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	accessToken := chi.URLParam(r, "accessToken")
	if accessToken == "" {
		respondErr(w, http.StatusBadRequest, "missing access token")
		return
	}

	result, err := s.q.GetQuizResultByAccessToken(r.Context(), accessToken)
	if errors.Is(err, sql.ErrNoRows) {
		respondErr(w, http.StatusNotFound, "result not found")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("get result: %w", err))
		return
	}

	if result.Status == db.ResultStatusPending || result.Status == db.ResultStatusProcessing {
		respond(w, http.StatusAccepted, map[string]string{
			"status":  string(result.Status),
			"message": "result is being prepared, please check back shortly",
		})
		return
	}

	rows, err := s.q.GetOfferScoresByResult(r.Context(), result.ID)
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("get offer scores: %w", err))
		return
	}

	var answers scoring.AnswerContext
	if err := json.Unmarshal(result.Answers, &answers); err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("decode answers: %w", err))
		return
	}

	resp := resultResponse{
		ResultID:           result.ID.String(),
		FlowID:             result.FlowID,
		Status:             string(result.Status),
		RecommendedOfferID: result.RecommendedOfferID.String,
		Answers:            answers.All(),
		Offers:             make([]offerScoreResponse, len(rows)),
		Narrative:          result.Narrative.String,
		CreatedAt:          result.CreatedAt.UTC().Format(time.RFC3339),
	}
	if resp.Answers == nil {
		resp.Answers = []scoring.Answer{}
	}
	if result.ConfidenceScore.Valid {
		c := result.ConfidenceScore.Float64
		resp.ConfidenceScore = &c
	}
	if result.GeneratedAt.Valid {
		resp.GeneratedAt = result.GeneratedAt.Time.UTC().Format(time.RFC3339)
	}

	f, flowErr := s.registry.Flow(result.FlowID)
	if flowErr == nil {
		resp.FlowTitle = f.Title
	}
	for i, row := range rows {
		o := offerScoreResponse{
			Rank:                    row.Rank,
			OfferID:                 row.OfferID,
			TotalScore:              row.TotalScore,
			MaxPossibleScore:        row.MaxPossibleScore,
			Confidence:              row.Confidence,
			IsDisqualified:          row.IsDisqualified,
			DisqualificationReasons: row.DisqualificationReasons,
		}
		if o.DisqualificationReasons == nil {
			o.DisqualificationReasons = []string{}
		}
		if flowErr == nil {
			if offer, ok := s.registry.Offer(f, row.OfferID); ok {
				o.OfferName = offer.Name
			}
		}
		resp.Offers[i] = o
	}

	respond(w, http.StatusOK, resp)
}
