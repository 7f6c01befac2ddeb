// Package notice implements the notice pipeline: incremental sync of the
// campus notice board, per-notice link extraction, and attachment download.
package notice

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/campuscnr/internal/domain"
	"github.com/jonesrussell/campuscnr/internal/fetch"
	"github.com/jonesrussell/campuscnr/internal/links"
	"github.com/jonesrussell/campuscnr/internal/logger"
)

// listTableSelector locates the notice listing table body on the HTML page.
const listTableSelector = "#dtNoticeTable tbody"

// Syncer gathers pending notices from the structured feed and the HTML
// listing. The HTML listing is the source of truth; the feed is
// supplementary and consulted first.
type Syncer struct {
	fetcher fetch.Getter
	norm    *links.Normalizer
	listURL string
	apiURL  string
	log     logger.Interface
}

// NewSyncer creates a notice syncer. apiURL may be empty, in which case
// only the HTML listing is consulted.
func NewSyncer(
	fetcher fetch.Getter,
	norm *links.Normalizer,
	listURL, apiURL string,
	log logger.Interface,
) *Syncer {
	return &Syncer{
		fetcher: fetcher,
		norm:    norm,
		listURL: listURL,
		apiURL:  apiURL,
		log:     log,
	}
}

// Pending returns the notices with id above the high-water mark, merged
// from both sources and sorted ascending by id. A notice id seen from
// either source is included exactly once; the feed version wins when both
// carry the same id. Feed failures degrade to an empty feed contribution;
// a listing failure fails the whole call.
func (s *Syncer) Pending(ctx context.Context, highWater int) ([]domain.Notice, error) {
	var fromAPI []domain.Notice
	if s.apiURL != "" {
		fromAPI = s.pendingFromAPI(ctx, highWater)
	}

	fromHTML, err := s.pendingFromHTML(ctx, highWater)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]bool)
	pending := make([]domain.Notice, 0, len(fromAPI)+len(fromHTML))

	for _, n := range fromAPI {
		if !seen[n.ID] {
			seen[n.ID] = true
			pending = append(pending, n)
		}
	}
	for _, n := range fromHTML {
		if !seen[n.ID] {
			seen[n.ID] = true
			pending = append(pending, n)
		}
	}

	sort.Slice(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })

	return pending, nil
}

// apiEnvelope is the structured feed payload.
type apiEnvelope struct {
	Notices []apiNotice `json:"notices"`
}

// apiNotice is one feed entry. The id is left untyped because the feed
// has served it both as a number and as a string.
type apiNotice struct {
	ID       any    `json:"id"`
	Link     string `json:"link"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"cat_title"`
	Date     string `json:"date"`
	File     string `json:"file"`
}

// noticeID coerces the feed id field to an int.
func (a apiNotice) noticeID() (int, error) {
	switch v := a.ID.(type) {
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, fmt.Errorf("unsupported notice id type %T", v)
	}
}

// pendingFromAPI fetches the structured feed. Any failure is logged and
// treated as an empty contribution.
func (s *Syncer) pendingFromAPI(ctx context.Context, highWater int) []domain.Notice {
	var envelope apiEnvelope
	if err := fetch.GetJSON(ctx, s.fetcher, s.apiURL, &envelope); err != nil {
		s.log.Error("failed to get notices from api", "error", err)
		return nil
	}

	var notices []domain.Notice
	for _, entry := range envelope.Notices {
		id, err := entry.noticeID()
		if err != nil {
			s.log.Error("failed to parse api notice id", "id", entry.ID, "error", err)
			continue
		}
		if id <= highWater {
			continue
		}

		notice := domain.Notice{
			ID:       id,
			Link:     entry.Link,
			Title:    entry.Title,
			Category: entry.Category,
			Date:     entry.Date,
			FromAPI:  true,
			FeedFile: entry.File,
		}
		if entry.Content != "" {
			notice.Content = nullString(entry.Content)
		}

		notices = append(notices, notice)
	}

	return notices
}

// pendingFromHTML fetches and parses the notice listing page.
func (s *Syncer) pendingFromHTML(ctx context.Context, highWater int) ([]domain.Notice, error) {
	resp, err := s.fetcher.Get(ctx, s.listURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get notice page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse notice page: %w", err)
	}

	table := doc.Find(listTableSelector).First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("notice table not found on %s", s.listURL)
	}

	var notices []domain.Notice
	var rowErr error

	table.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		notice, err := parseListingRow(row)
		if err != nil {
			rowErr = err
			return false
		}
		if notice.ID > highWater {
			notices = append(notices, *notice)
		}
		return true
	})
	if rowErr != nil {
		return nil, fmt.Errorf("failed to parse notice listing: %w", rowErr)
	}

	return notices, nil
}

// parseListingRow extracts one notice from a listing table row. The first
// cell holds the detail link and title, the second the category, the third
// the date. The notice id is the final path segment of the detail link.
func parseListingRow(row *goquery.Selection) (*domain.Notice, error) {
	cells := row.Find("td")

	link, ok := cells.Eq(0).Find("a").First().Attr("href")
	if !ok {
		return nil, fmt.Errorf("listing row has no detail link")
	}

	segments := strings.Split(link, "/")
	id, err := strconv.Atoi(segments[len(segments)-1])
	if err != nil {
		return nil, fmt.Errorf("listing row has malformed notice id in %q: %w", link, err)
	}

	return &domain.Notice{
		ID:       id,
		Link:     link,
		Title:    strings.TrimSpace(cells.Eq(0).Find("h4").Text()),
		Category: strings.TrimSpace(cells.Eq(1).Text()),
		Date:     strings.TrimSpace(cells.Eq(2).Text()),
	}, nil
}
