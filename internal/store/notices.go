package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/campuscnr/internal/domain"
)

// InsertNotice appends a new notice record.
func (s *Store) InsertNotice(ctx context.Context, notice *domain.Notice) error {
	query := `
		INSERT INTO notices (id, link, title, category, date, content, primary_file, files)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.q().ExecContext(
		ctx,
		query,
		notice.ID,
		notice.Link,
		notice.Title,
		notice.Category,
		notice.Date,
		notice.Content,
		notice.PrimaryFile,
		notice.Files,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notice %d: %w", notice.ID, err)
	}

	return nil
}

// InsertNoticeFile appends a new notice file record.
func (s *Store) InsertNoticeFile(ctx context.Context, file *domain.NoticeFile) error {
	query := `
		INSERT INTO notice_files (name, sln, original_name, link, last_modified, content_hash)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.q().ExecContext(
		ctx,
		query,
		file.Name,
		file.Sequence,
		file.OriginalName,
		file.Link,
		file.LastModified,
		file.ContentHash,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notice file %s: %w", file.Name, err)
	}

	return nil
}

// LookupNoticeFile returns records matching the synthetic name or the
// original source file name. An empty result means the file is unknown.
func (s *Store) LookupNoticeFile(
	ctx context.Context,
	name, originalName string,
) ([]domain.NoticeFile, error) {
	query := `
		SELECT name, sln, original_name, link, last_modified, content_hash
		FROM notice_files
		WHERE name = ? OR original_name = ?
	`

	var files []domain.NoticeFile
	if err := sqlx.SelectContext(ctx, s.q(), &files, query, name, originalName); err != nil {
		return nil, fmt.Errorf("failed to look up notice file %s: %w", name, err)
	}

	return files, nil
}

// MaxNoticeID returns the notice high-water mark: the maximum persisted
// notice id, or 0 when the table is empty. The mark is derived at query
// time, never stored.
func (s *Store) MaxNoticeID(ctx context.Context) (int, error) {
	var id int
	query := `SELECT COALESCE(MAX(id), 0) FROM notices`

	if err := sqlx.GetContext(ctx, s.q(), &id, query); err != nil {
		return 0, fmt.Errorf("failed to get max notice id: %w", err)
	}

	return id, nil
}

// CountNoticesAtOrBelow returns how many notices have id <= the given id.
// Used for diagnostic sequencing only.
func (s *Store) CountNoticesAtOrBelow(ctx context.Context, id int) (int, error) {
	var count int
	query := `SELECT COUNT(id) FROM notices WHERE id <= ?`

	if err := sqlx.GetContext(ctx, s.q(), &count, query, id); err != nil {
		return 0, fmt.Errorf("failed to count notices: %w", err)
	}

	return count, nil
}
