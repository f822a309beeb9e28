package db

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

const sessionColumns = `id, anon_token, email, created_at, updated_at`

func scanSession(row scanner) (Session, error) {
	var i Session
	err := row.Scan(
		&i.ID,
		&i.AnonToken,
		&i.Email,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createSession = `-- name: CreateSession :one
INSERT INTO sessions (anon_token, email)
VALUES ($1, $2)
RETURNING ` + sessionColumns

type CreateSessionParams struct {
	AnonToken string
	Email     sql.NullString
}

func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) (Session, error) {
	row := q.db.QueryRowContext(ctx, createSession, arg.AnonToken, arg.Email)
	return scanSession(row)
}

const getSessionByID = `-- name: GetSessionByID :one
SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

func (q *Queries) GetSessionByID(ctx context.Context, id uuid.UUID) (Session, error) {
	row := q.db.QueryRowContext(ctx, getSessionByID, id)
	return scanSession(row)
}

const getSessionByAnonToken = `-- name: GetSessionByAnonToken :one
SELECT ` + sessionColumns + ` FROM sessions WHERE anon_token = $1`

func (q *Queries) GetSessionByAnonToken(ctx context.Context, anonToken string) (Session, error) {
	row := q.db.QueryRowContext(ctx, getSessionByAnonToken, anonToken)
	return scanSession(row)
}

const updateSessionEmail = `-- name: UpdateSessionEmail :one
UPDATE sessions
SET email = $2, updated_at = now()
WHERE id = $1
RETURNING ` + sessionColumns

type UpdateSessionEmailParams struct {
	ID    uuid.UUID
	Email sql.NullString
}

func (q *Queries) UpdateSessionEmail(ctx context.Context, arg UpdateSessionEmailParams) (Session, error) {
	row := q.db.QueryRowContext(ctx, updateSessionEmail, arg.ID, arg.Email)
	return scanSession(row)
}
