package notice_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/campuscnr/internal/fetch"
	"github.com/jonesrussell/campuscnr/internal/links"
	"github.com/jonesrussell/campuscnr/internal/logger"
	"github.com/jonesrussell/campuscnr/internal/notice"
)

const (
	listURL = "https://campus.test/Home/all_notice"
	apiURL  = "https://feed.test/notices"
)

// fakeFetcher serves canned bodies keyed by URL and records requests.
type fakeFetcher struct {
	pages    map[string]string
	failing  map[string]bool
	requests []string
}

func (f *fakeFetcher) Get(_ context.Context, url string) (*fetch.Response, error) {
	f.requests = append(f.requests, url)
	if f.failing[url] {
		return nil, errors.New("connection refused")
	}
	body, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("no page configured for %s", url)
	}
	return &fetch.Response{StatusCode: 200, Body: []byte(body)}, nil
}

func listingPage(rows string) string {
	return fmt.Sprintf(`<html><body>
		<table id="dtNoticeTable"><tbody>%s</tbody></table>
	</body></html>`, rows)
}

func listingRow(id int, title, category, date string) string {
	return fmt.Sprintf(`<tr>
		<td><a href="https://campus.test/home/notice_details/%d"><h4>%s</h4></a></td>
		<td>%s</td>
		<td>%s</td>
	</tr>`, id, title, category, date)
}

func newSyncer(t *testing.T, fetcher *fakeFetcher, api string) *notice.Syncer {
	t.Helper()

	norm, err := links.New("https://campus.test", logger.NewNoOp())
	require.NoError(t, err)

	return notice.NewSyncer(fetcher, norm, listURL, api, logger.NewNoOp())
}

func TestPending_FiltersHighWaterMark(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		listURL: listingPage(
			listingRow(1181, "Newest", "Exam", "05 Jan 2024") +
				listingRow(1180, "Newer", "Exam", "04 Jan 2024") +
				listingRow(1179, "Old", "Exam", "03 Jan 2024"),
		),
	}}
	syncer := newSyncer(t, fetcher, "")

	pending, err := syncer.Pending(context.Background(), 1180)

	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1181, pending[0].ID)
	for _, n := range pending {
		assert.Greater(t, n.ID, 1180)
	}
}

func TestPending_SortsAscendingByID(t *testing.T) {
	// The listing serves newest first; output must be ascending.
	fetcher := &fakeFetcher{pages: map[string]string{
		listURL: listingPage(
			listingRow(1183, "C", "Exam", "07 Jan 2024") +
				listingRow(1181, "A", "Exam", "05 Jan 2024") +
				listingRow(1182, "B", "Exam", "06 Jan 2024"),
		),
	}}
	syncer := newSyncer(t, fetcher, "")

	pending, err := syncer.Pending(context.Background(), 0)

	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, 1181, pending[0].ID)
	assert.Equal(t, 1182, pending[1].ID)
	assert.Equal(t, 1183, pending[2].ID)
}

func TestPending_FeedVersionWinsOnSameID(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		listURL: listingPage(
			listingRow(1181, "Listing title", "Exam", "05 Jan 2024"),
		),
		apiURL: `{"notices":[{
			"id": 1181,
			"link": "https://campus.test/home/notice_details/1181",
			"title": "Feed title",
			"content": "<p>inline</p>",
			"cat_title": "Academic",
			"date": "2024-01-05",
			"file": "/files/routine.pdf"
		}]}`,
	}}
	syncer := newSyncer(t, fetcher, apiURL)

	pending, err := syncer.Pending(context.Background(), 0)

	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Feed title", pending[0].Title)
	assert.Equal(t, "Academic", pending[0].Category)
	assert.True(t, pending[0].FromAPI)
	assert.Equal(t, "/files/routine.pdf", pending[0].FeedFile)
}

func TestPending_MergesDistinctIDsFromBothSources(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		listURL: listingPage(listingRow(1181, "From listing", "Exam", "05 Jan 2024")),
		apiURL:  `{"notices":[{"id": "1182", "title": "From feed", "cat_title": "General", "date": "2024-01-06"}]}`,
	}}
	syncer := newSyncer(t, fetcher, apiURL)

	pending, err := syncer.Pending(context.Background(), 0)

	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, 1181, pending[0].ID)
	assert.False(t, pending[0].FromAPI)
	assert.Equal(t, 1182, pending[1].ID)
	assert.True(t, pending[1].FromAPI)
}

func TestPending_FeedFailureDegradesToListingOnly(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[string]string{
			listURL: listingPage(listingRow(1181, "Only", "Exam", "05 Jan 2024")),
		},
		failing: map[string]bool{apiURL: true},
	}
	syncer := newSyncer(t, fetcher, apiURL)

	pending, err := syncer.Pending(context.Background(), 0)

	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1181, pending[0].ID)
}

func TestPending_UnparseableFeedDegradesToListingOnly(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		listURL: listingPage(listingRow(1181, "Only", "Exam", "05 Jan 2024")),
		apiURL:  `<html>not json</html>`,
	}}
	syncer := newSyncer(t, fetcher, apiURL)

	pending, err := syncer.Pending(context.Background(), 0)

	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestPending_ListingFailureFailsTheCall(t *testing.T) {
	fetcher := &fakeFetcher{
		pages:   map[string]string{apiURL: `{"notices":[]}`},
		failing: map[string]bool{listURL: true},
	}
	syncer := newSyncer(t, fetcher, apiURL)

	_, err := syncer.Pending(context.Background(), 0)

	require.Error(t, err)
}

func TestPending_MissingTableFailsTheCall(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		listURL: `<html><body><p>maintenance</p></body></html>`,
	}}
	syncer := newSyncer(t, fetcher, "")

	_, err := syncer.Pending(context.Background(), 0)

	require.Error(t, err)
}

func TestPending_FeedConsultedBeforeListing(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		listURL: listingPage(listingRow(1181, "A", "Exam", "05 Jan 2024")),
		apiURL:  `{"notices":[]}`,
	}}
	syncer := newSyncer(t, fetcher, apiURL)

	_, err := syncer.Pending(context.Background(), 0)

	require.NoError(t, err)
	require.Len(t, fetcher.requests, 2)
	assert.Equal(t, apiURL, fetcher.requests[0])
	assert.Equal(t, listURL, fetcher.requests[1])
}
