// Package db is the typed query layer over Postgres. Each *.sql.go file holds
// the queries for one table; Querier lists them all so callers and tests can
// depend on the interface.
package db

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// New returns Queries that run directly on db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries implements Querier.
type Queries struct {
	db DBTX
}

// WithTx returns a copy of q whose queries run inside tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// scanner is the shared Scan method of *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}
