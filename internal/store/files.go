package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/campuscnr/internal/domain"
)

// FileTable identifies one of the ledger's file tables. Table names are
// interpolated into queries, so values are restricted to these constants.
type FileTable string

const (
	// TableCalendars holds academic calendar files.
	TableCalendars FileTable = "calendars"
	// TableTermExams holds term exam routine files.
	TableTermExams FileTable = "term_exams"
	// TableSuppliExams holds supplementary exam routine files.
	TableSuppliExams FileTable = "suppli_exams"
)

// Valid reports whether t names a known file table.
func (t FileTable) Valid() bool {
	switch t {
	case TableCalendars, TableTermExams, TableSuppliExams:
		return true
	}
	return false
}

// hasDayColumn reports whether the table carries the is_day column.
func (t FileTable) hasDayColumn() bool {
	return t == TableTermExams || t == TableSuppliExams
}

// LookupFile returns records matching the content hash or the name, newest
// first by last-modified. An empty result means the artifact is unknown.
func (s *Store) LookupFile(
	ctx context.Context,
	table FileTable,
	contentHash, name string,
) ([]domain.File, error) {
	if !table.Valid() {
		return nil, fmt.Errorf("unknown file table: %s", table)
	}

	columns := "name, last_modified, link, content_hash"
	if table.hasDayColumn() {
		columns += ", is_day"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE content_hash = ? OR name = ?
		ORDER BY last_modified DESC
	`, columns, table)

	var files []domain.File
	if err := sqlx.SelectContext(ctx, s.q(), &files, query, contentHash, name); err != nil {
		return nil, fmt.Errorf("failed to look up file in %s: %w", table, err)
	}

	return files, nil
}

// InsertFile appends a new file record to the given table.
func (s *Store) InsertFile(ctx context.Context, table FileTable, file *domain.File) error {
	if !table.Valid() {
		return fmt.Errorf("unknown file table: %s", table)
	}

	var query string
	var args []any
	if table.hasDayColumn() {
		query = fmt.Sprintf(`
			INSERT INTO %s (name, last_modified, link, content_hash, is_day)
			VALUES (?, ?, ?, ?, ?)
		`, table)
		args = []any{file.Name, file.LastModified, file.Link, file.ContentHash, file.IsDay}
	} else {
		query = fmt.Sprintf(`
			INSERT INTO %s (name, last_modified, link, content_hash)
			VALUES (?, ?, ?, ?)
		`, table)
		args = []any{file.Name, file.LastModified, file.Link, file.ContentHash}
	}

	if _, err := s.q().ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert file into %s: %w", table, err)
	}

	return nil
}
