// Package store persists the metadata ledger: which artifacts have already
// been retrieved, and the notices they belong to. The ledger is append-only;
// no update or delete operations are part of the contract.
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/jonesrussell/campuscnr/internal/logger"
)

// schema creates the ledger tables. Safe to run on every startup.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS notices(
		id INTEGER PRIMARY KEY,
		link TEXT,
		title TEXT,
		category TEXT,
		date TEXT,
		content TEXT,
		primary_file TEXT,
		files TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS notice_files(
		name TEXT PRIMARY KEY,
		sln INTEGER,
		original_name TEXT,
		link TEXT,
		last_modified INTEGER,
		content_hash TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS calendars(
		name TEXT,
		last_modified INTEGER,
		link TEXT,
		content_hash TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS term_exams(
		name TEXT,
		last_modified INTEGER,
		link TEXT,
		content_hash TEXT,
		is_day INTEGER
	)`,
	`CREATE TABLE IF NOT EXISTS suppli_exams(
		name TEXT,
		last_modified INTEGER,
		link TEXT,
		content_hash TEXT,
		is_day INTEGER
	)`,
}

// Store is the process-wide ledger handle. It is opened once at startup and
// shared by all pipelines. Inserts accumulate in an open transaction until
// Commit; callers commit at defined checkpoints.
type Store struct {
	db  *sqlx.DB
	tx  *sqlx.Tx
	log logger.Interface
}

// Open opens (or creates) the SQLite ledger at path.
func Open(path string, log logger.Interface) (*Store, error) {
	log.Info("opening database", "path", path)

	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The ledger is written by a single sequential process.
	db.SetMaxOpenConns(1)

	return New(db, log)
}

// New wraps an existing database handle, creating the schema if absent and
// opening the initial transaction.
func New(db *sqlx.DB, log logger.Interface) (*Store, error) {
	s := &Store{db: db, log: log}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	if err := s.begin(); err != nil {
		return nil, err
	}

	return s, nil
}

// begin opens a new write transaction.
func (s *Store) begin() error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.tx = tx
	return nil
}

// q returns the execution target for queries: the open transaction, or the
// bare connection if none is open.
func (s *Store) q() sqlx.ExtContext {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// Commit durably persists all inserts since the last commit and opens a
// fresh transaction. Safe to call multiple times. Storage-layer contention
// errors are logged, never propagated.
func (s *Store) Commit(ctx context.Context) {
	if s.tx == nil {
		return
	}

	if err := s.tx.Commit(); err != nil {
		s.log.Warn("error during commit", "error", err)
	}
	s.tx = nil

	if ctx.Err() != nil {
		return
	}
	if err := s.begin(); err != nil {
		s.log.Error("failed to reopen transaction after commit", "error", err)
	}
}

// Close performs a final commit if a transaction is open and closes the
// database.
func (s *Store) Close() error {
	s.log.Info("closing database")

	if s.tx != nil {
		if err := s.tx.Commit(); err != nil {
			s.log.Warn("error during final commit", "error", err)
		}
		s.tx = nil
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// TableCount is one row of the ledger summary.
type TableCount struct {
	Table string
	Count int
}

// Counts returns per-table row counts for the ledger summary.
func (s *Store) Counts(ctx context.Context) ([]TableCount, error) {
	tables := []string{"notices", "notice_files", "calendars", "term_exams", "suppli_exams"}

	counts := make([]TableCount, 0, len(tables))
	for _, table := range tables {
		var count int
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
		if err := sqlx.GetContext(ctx, s.q(), &count, query); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts = append(counts, TableCount{Table: table, Count: count})
	}

	return counts, nil
}
