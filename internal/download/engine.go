// Package download implements the deduplication and download engine: fetch
// a candidate artifact, compute its content identity, consult the ledger,
// and decide store/skip/error.
package download

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/jonesrussell/campuscnr/internal/domain"
	"github.com/jonesrussell/campuscnr/internal/fetch"
	"github.com/jonesrussell/campuscnr/internal/logger"
	"github.com/jonesrussell/campuscnr/internal/store"
)

// Outcome classifies the result of processing one candidate.
type Outcome int

const (
	// OutcomeFailed means the candidate could not be fetched or recorded.
	OutcomeFailed Outcome = iota
	// OutcomeStored means the artifact was new and a ledger row was added.
	OutcomeStored
	// OutcomeAlreadyPresent means the ledger already knew the artifact.
	// The bytes were still written to disk, overwriting any stale copy,
	// but no new row was added.
	OutcomeAlreadyPresent
)

// String returns a human-readable outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeStored:
		return "stored"
	case OutcomeAlreadyPresent:
		return "already present"
	default:
		return "failed"
	}
}

// Candidate is one artifact to fetch and record.
type Candidate struct {
	// URL is the absolute, normalized artifact URL.
	URL string
	// Dir is the target directory the bytes are written into.
	Dir string
	// Table is the ledger table recording this artifact.
	Table store.FileTable
	// IsDay marks day-shift exam routines; unset for other tables.
	IsDay sql.NullBool
}

// Result is the outcome of processing one candidate.
type Result struct {
	Outcome Outcome
	// Name is the derived file name; empty when the fetch failed.
	Name string
}

// Ledger is the subset of the content store the engine consults.
type Ledger interface {
	LookupFile(ctx context.Context, table store.FileTable, contentHash, name string) ([]domain.File, error)
	InsertFile(ctx context.Context, table store.FileTable, file *domain.File) error
}

// Engine fetches candidates and decides store/skip/error against the ledger.
type Engine struct {
	fetcher fetch.Getter
	ledger  Ledger
	log     logger.Interface
}

// NewEngine creates a dedup and download engine.
func NewEngine(fetcher fetch.Getter, ledger Ledger, log logger.Interface) *Engine {
	return &Engine{fetcher: fetcher, ledger: ledger, log: log}
}

// ComputeHash returns the hex-encoded SHA-256 of content.
func ComputeHash(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// FileName derives a filesystem-safe name from the URL's final path segment.
func FileName(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return filepath.Base(rawURL)
	}
	return path.Base(parsed.Path)
}

// Delay pauses for d between successive items, returning early when the
// context is done. This is a sequential throttling courtesy to the origin
// server, not a concurrency control.
func Delay(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Process fetches the candidate, writes its bytes to the target directory,
// and classifies it against the ledger. The hash is computed over the exact
// bytes received, after the fetch, so re-running the pipeline on unchanged
// remote content always reclassifies as already present.
func (e *Engine) Process(ctx context.Context, c Candidate) Result {
	resp, err := e.fetcher.Get(ctx, c.URL)
	if err != nil {
		e.log.Error("failed to download file", "url", c.URL, "error", err)
		return Result{Outcome: OutcomeFailed}
	}

	name := FileName(c.URL)
	target := filepath.Join(c.Dir, name)

	if err := os.WriteFile(target, resp.Body, 0o644); err != nil {
		e.log.Error("failed to write file", "path", target, "error", err)
		return Result{Outcome: OutcomeFailed, Name: name}
	}

	file := &domain.File{
		Name:        name,
		Link:        c.URL,
		ContentHash: ComputeHash(resp.Body),
		IsDay:       c.IsDay,
	}
	if resp.LastModified != nil {
		file.LastModified = sql.NullInt64{Int64: resp.LastModified.Unix(), Valid: true}
	}

	existing, err := e.ledger.LookupFile(ctx, c.Table, file.ContentHash, file.Name)
	if err != nil {
		e.log.Error("failed to query ledger", "url", c.URL, "error", err)
		return Result{Outcome: OutcomeFailed, Name: name}
	}
	if len(existing) > 0 {
		return Result{Outcome: OutcomeAlreadyPresent, Name: name}
	}

	if err := e.ledger.InsertFile(ctx, c.Table, file); err != nil {
		e.log.Error("failed to record file", "url", c.URL, "error", err)
		return Result{Outcome: OutcomeFailed, Name: name}
	}

	return Result{Outcome: OutcomeStored, Name: name}
}
