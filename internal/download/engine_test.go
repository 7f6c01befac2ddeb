package download_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/campuscnr/internal/domain"
	"github.com/jonesrussell/campuscnr/internal/download"
	"github.com/jonesrussell/campuscnr/internal/fetch"
	"github.com/jonesrussell/campuscnr/internal/logger"
	"github.com/jonesrussell/campuscnr/internal/store"
)

// fakeFetcher serves canned responses keyed by URL.
type fakeFetcher struct {
	responses map[string][]byte
	err       error
}

func (f *fakeFetcher) Get(_ context.Context, url string) (*fetch.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.responses[url]
	if !ok {
		return nil, fmt.Errorf("no response configured for %s", url)
	}
	lm := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &fetch.Response{StatusCode: 200, LastModified: &lm, Body: body}, nil
}

// fakeLedger is an in-memory file ledger matching on hash or name.
type fakeLedger struct {
	rows      []domain.File
	insertErr error
}

func (l *fakeLedger) LookupFile(
	_ context.Context, _ store.FileTable, contentHash, name string,
) ([]domain.File, error) {
	var matches []domain.File
	for _, row := range l.rows {
		if row.ContentHash == contentHash || row.Name == name {
			matches = append(matches, row)
		}
	}
	return matches, nil
}

func (l *fakeLedger) InsertFile(_ context.Context, _ store.FileTable, file *domain.File) error {
	if l.insertErr != nil {
		return l.insertErr
	}
	l.rows = append(l.rows, *file)
	return nil
}

func TestProcess_StoresNewArtifact(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{responses: map[string][]byte{
		"https://example.org/files/spring.pdf": []byte("pdf bytes"),
	}}
	ledger := &fakeLedger{}
	engine := download.NewEngine(fetcher, ledger, logger.NewNoOp())

	result := engine.Process(context.Background(), download.Candidate{
		URL:   "https://example.org/files/spring.pdf",
		Dir:   dir,
		Table: store.TableCalendars,
	})

	assert.Equal(t, download.OutcomeStored, result.Outcome)
	assert.Equal(t, "spring.pdf", result.Name)

	written, err := os.ReadFile(filepath.Join(dir, "spring.pdf"))
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf bytes"), written)

	require.Len(t, ledger.rows, 1)
	assert.Equal(t, download.ComputeHash([]byte("pdf bytes")), ledger.rows[0].ContentHash)
	assert.True(t, ledger.rows[0].LastModified.Valid)
}

func TestProcess_IsIdempotent(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{responses: map[string][]byte{
		"https://example.org/files/spring.pdf": []byte("pdf bytes"),
	}}
	ledger := &fakeLedger{}
	engine := download.NewEngine(fetcher, ledger, logger.NewNoOp())
	candidate := download.Candidate{
		URL:   "https://example.org/files/spring.pdf",
		Dir:   dir,
		Table: store.TableCalendars,
	}

	first := engine.Process(context.Background(), candidate)
	second := engine.Process(context.Background(), candidate)

	assert.Equal(t, download.OutcomeStored, first.Outcome)
	assert.Equal(t, download.OutcomeAlreadyPresent, second.Outcome)
	assert.Equal(t, first.Name, second.Name)
	// Exactly one ledger row despite two runs.
	assert.Len(t, ledger.rows, 1)
}

func TestProcess_SameNameDifferentContentIsAlreadyPresent(t *testing.T) {
	dir := t.TempDir()
	fetcher := &fakeFetcher{responses: map[string][]byte{
		"https://example.org/files/spring.pdf": []byte("revised bytes"),
	}}
	ledger := &fakeLedger{rows: []domain.File{{
		Name:        "spring.pdf",
		ContentHash: download.ComputeHash([]byte("original bytes")),
	}}}
	engine := download.NewEngine(fetcher, ledger, logger.NewNoOp())

	result := engine.Process(context.Background(), download.Candidate{
		URL:   "https://example.org/files/spring.pdf",
		Dir:   dir,
		Table: store.TableCalendars,
	})

	// Name match counts as known; the ledger stays append-only with one row.
	assert.Equal(t, download.OutcomeAlreadyPresent, result.Outcome)
	assert.Len(t, ledger.rows, 1)

	// The bytes on disk are still refreshed.
	written, err := os.ReadFile(filepath.Join(dir, "spring.pdf"))
	require.NoError(t, err)
	assert.Equal(t, []byte("revised bytes"), written)
}

func TestProcess_FetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("connection refused")}
	ledger := &fakeLedger{}
	engine := download.NewEngine(fetcher, ledger, logger.NewNoOp())

	result := engine.Process(context.Background(), download.Candidate{
		URL:   "https://example.org/files/spring.pdf",
		Dir:   t.TempDir(),
		Table: store.TableCalendars,
	})

	assert.Equal(t, download.OutcomeFailed, result.Outcome)
	assert.Empty(t, ledger.rows)
}

func TestProcess_InsertFailure(t *testing.T) {
	fetcher := &fakeFetcher{responses: map[string][]byte{
		"https://example.org/files/spring.pdf": []byte("pdf bytes"),
	}}
	ledger := &fakeLedger{insertErr: errors.New("disk I/O error")}
	engine := download.NewEngine(fetcher, ledger, logger.NewNoOp())

	result := engine.Process(context.Background(), download.Candidate{
		URL:   "https://example.org/files/spring.pdf",
		Dir:   t.TempDir(),
		Table: store.TableCalendars,
	})

	assert.Equal(t, download.OutcomeFailed, result.Outcome)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "a.pdf", download.FileName("https://example.org/files/a.pdf"))
	assert.Equal(t, "a.pdf", download.FileName("https://example.org/files/a.pdf?v=2"))
}

func TestDelay_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := download.Delay(ctx, time.Minute)

	require.ErrorIs(t, err, context.Canceled)
}
