package api

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/Nic-Huzz/findmyflow-sub001/internal/db"
)

// ─── POST /api/session ────────────────────────────────────────────────────────

type createSessionRequest struct {
	// Email is optional; without it no results email is sent.
	Email string `json:"email"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
	AnonToken string `json:"anon_token"`
}

// handleCreateSession creates an anonymous session for a new visitor.
// Called once when the app first loads. An empty body is accepted.
//
// The anon_token is returned to the browser and sent as X-Anon-Token on all
// subsequent session-scoped requests.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0 {
		if !decode(w, r, &req) {
			return
		}
	}

	email, ok := normaliseEmail(req.Email)
	if !ok {
		respondErr(w, http.StatusBadRequest, "invalid email")
		return
	}

	// 32 random bytes → 64 hex chars.
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("generate anon token: %w", err))
		return
	}
	anonToken := hex.EncodeToString(tokenBytes)

	session, err := s.q.CreateSession(r.Context(), db.CreateSessionParams{
		AnonToken: anonToken,
		Email:     nullString(email),
	})
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("create session: %w", err))
		return
	}

	respond(w, http.StatusCreated, createSessionResponse{
		SessionID: session.ID.String(),
		AnonToken: anonToken,
	})
}

// ─── PATCH /api/session/:sessionID ────────────────────────────────────────────

type updateEmailRequest struct {
	Email string `json:"email"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	Email     string `json:"email,omitempty"`
}

// handleUpdateEmail sets or clears the address results are emailed to. The
// route is behind requireAnonToken, so the session is already verified.
func (s *Server) handleUpdateEmail(w http.ResponseWriter, r *http.Request) {
	var req updateEmailRequest
	if !decode(w, r, &req) {
		return
	}

	email, ok := normaliseEmail(req.Email)
	if !ok {
		respondErr(w, http.StatusBadRequest, "invalid email")
		return
	}

	session, err := s.q.UpdateSessionEmail(r.Context(), db.UpdateSessionEmailParams{
		ID:    sessionIDFrom(r),
		Email: nullString(email),
	})
	if errors.Is(err, sql.ErrNoRows) {
		respondErr(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("update session email: %w", err))
		return
	}

	respond(w, http.StatusOK, sessionResponse{
		SessionID: session.ID.String(),
		Email:     session.Email.String,
	})
}

// ─── HELPERS ─────────────────────────────────────────────────────────────────

// nullString converts a Go string to sql.NullString. Empty string → NULL.
func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

// normaliseEmail trims raw and checks it parses as a bare address. Blank
// input is valid and means "no email".
func normaliseEmail(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", true
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", false
	}
	return strings.ToLower(addr.Address), true
}
