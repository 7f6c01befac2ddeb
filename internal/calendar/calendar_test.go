package calendar_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/campuscnr/internal/calendar"
	"github.com/jonesrussell/campuscnr/internal/download"
	"github.com/jonesrussell/campuscnr/internal/fetch"
	"github.com/jonesrussell/campuscnr/internal/links"
	"github.com/jonesrussell/campuscnr/internal/logger"
	"github.com/jonesrussell/campuscnr/internal/store"
)

const pageURL = "https://campus.test/home/academic_calendar"

type fakeFetcher struct {
	pages   map[string]string
	failing map[string]bool
}

func (f *fakeFetcher) Get(_ context.Context, url string) (*fetch.Response, error) {
	if f.failing[url] {
		return nil, errors.New("connection refused")
	}
	body, ok := f.pages[url]
	if !ok {
		return nil, errors.New("no such page")
	}
	return &fetch.Response{StatusCode: 200, Body: []byte(body)}, nil
}

type fakeEngine struct {
	candidates []download.Candidate
	outcomes   map[string]download.Outcome
}

func (e *fakeEngine) Process(_ context.Context, c download.Candidate) download.Result {
	e.candidates = append(e.candidates, c)
	outcome, ok := e.outcomes[c.URL]
	if !ok {
		outcome = download.OutcomeStored
	}
	return download.Result{Outcome: outcome, Name: download.FileName(c.URL)}
}

type fakeCommitter struct {
	commits int
}

func (c *fakeCommitter) Commit(context.Context) {
	c.commits++
}

func newPipeline(
	t *testing.T, fetcher *fakeFetcher, engine *fakeEngine, ledger *fakeCommitter,
) *calendar.Pipeline {
	t.Helper()

	norm, err := links.New("https://campus.test", logger.NewNoOp())
	require.NoError(t, err)

	return calendar.New(
		fetcher, engine, ledger, norm, pageURL, t.TempDir(), 0, logger.NewNoOp())
}

func TestUpdate_DiscoversPanelLinksInOrder(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		pageURL: `<html><body>
			<div class="panel"><div class="panel-body">
				<img src="/uploads/spring_2024.jpg">
				<a href="/uploads/spring_2024.pdf">PDF version</a>
				<a href="/home/faq">FAQ</a>
			</div></div>
			<div class="panel"><div class="panel-body">
				<object data="https://campus.test/uploads/fall_2024.pdf"></object>
			</div></div>
		</body></html>`,
	}}
	engine := &fakeEngine{}
	ledger := &fakeCommitter{}
	pipeline := newPipeline(t, fetcher, engine, ledger)

	err := pipeline.Update(context.Background())

	require.NoError(t, err)
	require.Len(t, engine.candidates, 3)
	assert.Equal(t, "https://campus.test/uploads/spring_2024.jpg", engine.candidates[0].URL)
	assert.Equal(t, "https://campus.test/uploads/spring_2024.pdf", engine.candidates[1].URL)
	assert.Equal(t, "https://campus.test/uploads/fall_2024.pdf", engine.candidates[2].URL)
	for _, c := range engine.candidates {
		assert.Equal(t, store.TableCalendars, c.Table)
		assert.False(t, c.IsDay.Valid)
	}
	assert.Equal(t, 1, ledger.commits)
}

func TestUpdate_DuplicateLinksProcessedOnce(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		pageURL: `<html><body>
			<div class="panel"><div class="panel-body">
				<a href="/uploads/spring_2024.pdf">first</a>
				<a href="/uploads/spring_2024.pdf">again</a>
			</div></div>
		</body></html>`,
	}}
	engine := &fakeEngine{}
	ledger := &fakeCommitter{}
	pipeline := newPipeline(t, fetcher, engine, ledger)

	err := pipeline.Update(context.Background())

	require.NoError(t, err)
	assert.Len(t, engine.candidates, 1)
}

func TestUpdate_FailedDownloadDoesNotStopOthers(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		pageURL: `<html><body>
			<div class="panel"><div class="panel-body">
				<a href="/uploads/spring_2024.pdf">spring</a>
				<a href="/uploads/fall_2024.pdf">fall</a>
			</div></div>
		</body></html>`,
	}}
	engine := &fakeEngine{outcomes: map[string]download.Outcome{
		"https://campus.test/uploads/spring_2024.pdf": download.OutcomeFailed,
	}}
	ledger := &fakeCommitter{}
	pipeline := newPipeline(t, fetcher, engine, ledger)

	err := pipeline.Update(context.Background())

	require.NoError(t, err)
	assert.Len(t, engine.candidates, 2)
	assert.Equal(t, 1, ledger.commits)
}

func TestUpdate_PageFetchFailureFails(t *testing.T) {
	fetcher := &fakeFetcher{failing: map[string]bool{pageURL: true}}
	engine := &fakeEngine{}
	ledger := &fakeCommitter{}
	pipeline := newPipeline(t, fetcher, engine, ledger)

	err := pipeline.Update(context.Background())

	require.Error(t, err)
	assert.Empty(t, engine.candidates)
	assert.Zero(t, ledger.commits)
}
