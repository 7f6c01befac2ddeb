// Package domain provides domain models used across the application.
package domain

import (
	"database/sql"
)

// File represents one downloaded artifact in the calendar or exam domains.
// Records are created on successful download and never mutated or deleted.
// Identity for dedup purposes is ContentHash or Name; either match means
// the artifact is already known.
type File struct {
	Name         string        `db:"name"`
	LastModified sql.NullInt64 `db:"last_modified"`
	Link         string        `db:"link"`
	ContentHash  string        `db:"content_hash"`
	// IsDay is only meaningful for exam routine tables.
	IsDay sql.NullBool `db:"is_day"`
}

// NoticeFile represents one downloaded notice attachment. Name is synthetic
// and unique per notice+sequence; OriginalName is the filename from the
// source URL and is not guaranteed unique. Identity for dedup is Name or
// OriginalName.
type NoticeFile struct {
	Name         string        `db:"name"`
	Sequence     int           `db:"sln"`
	OriginalName string        `db:"original_name"`
	Link         string        `db:"link"`
	LastModified sql.NullInt64 `db:"last_modified"`
	ContentHash  string        `db:"content_hash"`
}

// Notice represents one published notice. ID is source-assigned, monotonic,
// and the sole ordering and dedup key.
type Notice struct {
	ID          int            `db:"id"`
	Link        string         `db:"link"`
	Title       string         `db:"title"`
	Category    string         `db:"category"`
	Date        string         `db:"date"`
	Content     sql.NullString `db:"content"`
	PrimaryFile sql.NullString `db:"primary_file"`
	Files       NameList       `db:"files"`

	// FromAPI marks notices sourced from the structured feed rather than
	// the HTML listing. Not persisted.
	FromAPI bool `db:"-"`
	// FeedFile is the feed entry's explicit file field, if any. Not persisted.
	FeedFile string `db:"-"`
}
