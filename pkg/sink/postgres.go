// Package sink implements report.Reporter backends that persist or
// forward violations instead of halting the process, grounded on the
// teacher's own storage-layer drivers (pkg/budget's Postgres store,
// pkg/store/ledger's SQL ledger, pkg/kernel's Redis limiter).
package sink

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/Mindburn-Labs/thintesla/pkg/report"
)

// Postgres persists every violation as a row, for deployments that want
// a durable audit trail instead of (or in addition to) a process halt.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an already-opened *sql.DB (lib/pq driver).
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema creates the violations table if it doesn't already
// exist — a single idempotent statement, matching the teacher's own
// stores that expect the operator to have run migrations but tolerate
// a fresh database in tests.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tesla_violations (
			id serial PRIMARY KEY,
			automaton_name text NOT NULL,
			run_id text NOT NULL,
			message text NOT NULL,
			reported_at timestamptz NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("sink: create violations table: %w", err)
	}
	return nil
}

// Report implements report.Reporter by inserting a row. A write error
// is printed to stdout rather than propagated — Reporter has no error
// return, matching the original's fire-and-forget failure reporting.
func (p *Postgres) Report(v report.Violation) {
	_, err := p.db.ExecContext(context.Background(),
		`INSERT INTO tesla_violations (automaton_name, run_id, message) VALUES ($1, $2, $3)`,
		v.AutomatonName, v.RunID, v.Message)
	if err != nil {
		fmt.Printf("sink: failed to persist violation: %v\n", err)
	}
}
