package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Nic-Huzz/findmyflow-sub001/internal/cache"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/catalog"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/db"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/flow"
	"github.com/Nic-Huzz/findmyflow-sub001/internal/scoring"
)

// ─── RESPONSE SHAPES ─────────────────────────────────────────────────────────

type flowSummary struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Steps      int      `json:"steps"`
	Scored     bool     `json:"scored"`
	Requires   []string `json:"requires,omitempty"`
	PriceCents int64    `json:"price_cents,omitempty"`
	Gated      bool     `json:"gated"`
}

func summarise(f *flow.Flow) flowSummary {
	return flowSummary{
		ID:         f.ID,
		Title:      f.Title,
		Steps:      f.Len(),
		Scored:     f.CatalogID != "",
		Requires:   f.Requires,
		PriceCents: f.PriceCents,
		Gated:      f.IsGated(),
	}
}

// stateResponse is what every flow-session endpoint returns. Step is the
// resolved current step and is omitted once the session is finished.
type stateResponse struct {
	FlowID     string           `json:"flow_id"`
	Status     flow.Status      `json:"status"`
	Index      int              `json:"index"`
	Total      int              `json:"total"`
	Step       *flow.Rendered   `json:"step,omitempty"`
	Answers    []scoring.Answer `json:"answers"`
	NavigateTo string           `json:"navigate_to,omitempty"`
}

func stateView(f *flow.Flow, st flow.State) stateResponse {
	resp := stateResponse{
		FlowID:     f.ID,
		Status:     st.Status,
		Index:      st.Index,
		Total:      f.Len(),
		Answers:    st.Answers.All(),
		NavigateTo: st.Target,
	}
	if _, ok := f.Current(st); ok {
		rendered := f.Render(st.Index, st.Vars)
		resp.Step = &rendered
	}
	if resp.Answers == nil {
		resp.Answers = []scoring.Answer{}
	}
	return resp
}

// ─── GET /api/flows ───────────────────────────────────────────────────────────

func (s *Server) handleListFlows(w http.ResponseWriter, r *http.Request) {
	flows := s.registry.Flows()
	out := make([]flowSummary, len(flows))
	for i, f := range flows {
		out[i] = summarise(f)
	}
	respond(w, http.StatusOK, map[string]any{"flows": out})
}

// ─── GET /api/flows/:flowID ───────────────────────────────────────────────────

// handleGetFlow returns the raw flow definition with unresolved templates.
func (s *Server) handleGetFlow(w http.ResponseWriter, r *http.Request) {
	f, err := s.registry.Flow(chi.URLParam(r, "flowID"))
	if errors.Is(err, catalog.ErrUnknownFlow) {
		respondErr(w, http.StatusNotFound, "flow not found")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, err)
		return
	}
	respond(w, http.StatusOK, f)
}

// ─── POST /api/session/:sessionID/flows/:flowID/start ─────────────────────────

// handleStartFlow checks the flow's gates and (re)starts it at step 0. Any
// in-progress state for the same flow is replaced.
func (s *Server) handleStartFlow(w http.ResponseWriter, r *http.Request) {
	sessionID := sessionIDFrom(r)
	f := flowFrom(r)

	status, msg, err := s.checkAccess(r.Context(), sessionID, f)
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("check access: %w", err))
		return
	}
	if status != 0 {
		respondErr(w, status, msg)
		return
	}

	st := flow.Start(f)
	if err := s.flows.Set(r.Context(), sessionID, st); err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("start flow: %w", err))
		return
	}

	respond(w, http.StatusCreated, stateView(f, st))
}

// checkAccess decides whether sessionID may start f. A zero status means
// yes; otherwise status and msg are the HTTP rejection.
//
// Every flow in f.Requires needs at least one saved result, and a priced
// flow needs a paid unlock.
func (s *Server) checkAccess(ctx context.Context, sessionID uuid.UUID, f *flow.Flow) (int, string, error) {
	if status, msg, err := s.checkPrerequisites(ctx, sessionID, f); status != 0 || err != nil {
		return status, msg, err
	}

	if f.PriceCents <= 0 {
		return 0, "", nil
	}
	unlock, err := s.q.GetFlowUnlock(ctx, db.GetFlowUnlockParams{SessionID: sessionID, FlowID: f.ID})
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusPaymentRequired, "flow must be unlocked", nil
	}
	if err != nil {
		return 0, "", fmt.Errorf("get flow unlock: %w", err)
	}
	if unlock.Status != db.UnlockStatusPaid {
		return http.StatusPaymentRequired, "flow must be unlocked", nil
	}
	return 0, "", nil
}

// checkPrerequisites is the requires half of checkAccess: 403 until every
// required flow has a saved result.
func (s *Server) checkPrerequisites(ctx context.Context, sessionID uuid.UUID, f *flow.Flow) (int, string, error) {
	for _, req := range f.Requires {
		done, err := s.q.HasSavedResult(ctx, db.HasSavedResultParams{SessionID: sessionID, FlowID: req})
		if err != nil {
			return 0, "", fmt.Errorf("has saved result %q: %w", req, err)
		}
		if !done {
			return http.StatusForbidden, fmt.Sprintf("complete %q first", req), nil
		}
	}
	return 0, "", nil
}

// ─── GET /api/session/:sessionID/flows/:flowID/state ──────────────────────────

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	f := flowFrom(r)
	st, ok := s.loadState(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, stateView(f, st))
}

// loadState reads the cached session for the route's flow. It writes 404 when
// the flow was never started or has expired, and returns false on any error.
func (s *Server) loadState(w http.ResponseWriter, r *http.Request) (flow.State, bool) {
	st, err := s.flows.Get(r.Context(), sessionIDFrom(r), flowFrom(r).ID)
	if errors.Is(err, cache.ErrStateNotFound) {
		respondErr(w, http.StatusNotFound, "flow not started")
		return flow.State{}, false
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("load flow state: %w", err))
		return flow.State{}, false
	}
	return st, true
}

// ─── POST /api/session/:sessionID/flows/:flowID/answer ────────────────────────

type answerRequest struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// handleAnswer records an answer to the current step and advances.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	f := flowFrom(r)

	var req answerRequest
	if !decode(w, r, &req) {
		return
	}

	st, ok := s.loadState(w, r)
	if !ok {
		return
	}

	next, err := f.Advance(st, req.Value, req.Label)
	switch {
	case errors.Is(err, flow.ErrFlowFinished):
		respondErr(w, http.StatusConflict, "flow already finished")
		return
	case errors.Is(err, flow.ErrInvalidChoice), errors.Is(err, flow.ErrEmptyAnswer):
		respondErr(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.respondInternalErr(w, r, fmt.Errorf("advance: %w", err))
		return
	}

	if err := s.flows.Set(r.Context(), sessionIDFrom(r), next); err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("store flow state: %w", err))
		return
	}

	respond(w, http.StatusOK, stateView(f, next))
}

// ─── POST /api/session/:sessionID/flows/:flowID/back ──────────────────────────

type backRequest struct {
	Index *int `json:"index"`
}

// handleBack rewinds the session to an earlier step.
func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	f := flowFrom(r)

	var req backRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Index == nil {
		respondErr(w, http.StatusBadRequest, "index is required")
		return
	}

	st, ok := s.loadState(w, r)
	if !ok {
		return
	}

	prev, err := f.Rewind(st, *req.Index)
	switch {
	case errors.Is(err, flow.ErrFlowFinished):
		respondErr(w, http.StatusConflict, "flow already left")
		return
	case errors.Is(err, flow.ErrInvalidRewind):
		respondErr(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.respondInternalErr(w, r, fmt.Errorf("rewind: %w", err))
		return
	}

	if err := s.flows.Set(r.Context(), sessionIDFrom(r), prev); err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("store flow state: %w", err))
		return
	}

	respond(w, http.StatusOK, stateView(f, prev))
}

// ─── POST /api/session/:sessionID/flows/:flowID/score ─────────────────────────

type scoreResponse struct {
	FlowID         string                `json:"flow_id"`
	Offers         []scoring.ScoredOffer `json:"offers"`
	Top            *scoring.ScoredOffer  `json:"top,omitempty"`
	QualifiedCount int                   `json:"qualified_count"`
}

func scoreView(flowID string, scored []scoring.ScoredOffer) scoreResponse {
	resp := scoreResponse{
		FlowID:         flowID,
		Offers:         scored,
		QualifiedCount: scoring.QualifiedCount(scored),
	}
	if top, ok := scoring.TopOffer(scored); ok {
		resp.Top = &top
	}
	if resp.Offers == nil {
		resp.Offers = []scoring.ScoredOffer{}
	}
	return resp
}

// handleScore runs the scoring engine over a finished session. Nothing is
// persisted; call save for that.
func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	f := flowFrom(r)
	st, ok := s.loadState(w, r)
	if !ok {
		return
	}
	if !st.Finished() {
		respondErr(w, http.StatusConflict, "flow is not finished")
		return
	}

	respond(w, http.StatusOK, scoreView(f.ID, s.registry.Score(f, st.Answers)))
}
