package sink

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/Mindburn-Labs/thintesla/pkg/report"
)

// SQLite persists violations to a local database, for single-process
// runs where a Postgres/Redis deployment is overkill.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if necessary) the database at path and
// migrates its schema.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sink: open sqlite: %w", err)
	}
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLite wraps an already-open *sql.DB (modernc.org/sqlite driver),
// migrating its schema — the path an in-memory test database takes.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	_, err := s.db.ExecContext(context.Background(), `
		CREATE TABLE IF NOT EXISTS tesla_violations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			automaton_name TEXT NOT NULL,
			run_id TEXT NOT NULL,
			message TEXT NOT NULL,
			reported_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("sink: migrate sqlite schema: %w", err)
	}
	return nil
}

// Report implements report.Reporter.
func (s *SQLite) Report(v report.Violation) {
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO tesla_violations (automaton_name, run_id, message) VALUES (?, ?, ?)`,
		v.AutomatonName, v.RunID, v.Message)
	if err != nil {
		fmt.Printf("sink: failed to persist violation: %v\n", err)
	}
}

// Count returns the number of violations recorded, for test assertions
// and summary output.
func (s *SQLite) Count() (int, error) {
	var n int
	err := s.db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM tesla_violations`).Scan(&n)
	return n, err
}

// Close closes the underlying database handle.
func (s *SQLite) Close() error { return s.db.Close() }
