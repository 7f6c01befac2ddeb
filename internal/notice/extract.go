package notice

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/campuscnr/internal/domain"
)

// Selectors for the notice detail page.
const (
	detailBodySelector     = "div.devs_history_body"
	narrativeSelector      = "div.event-details"
	downloadButtonSelector = "a.btn"
)

// urlPattern matches raw URL substrings embedded in narrative text.
var urlPattern = regexp.MustCompile(`https?://\S+`)

// PageLinks is the set of downloadable links derived from one notice.
// A link is either the primary file or an attachment, never both.
type PageLinks struct {
	NoticeID int
	// PrimaryFile is the designated download link, empty when none.
	PrimaryFile string
	// Attachments are the remaining harvested links, in discovery order.
	Attachments []string
	// ContentHTML is the preserved narrative HTML fragment. Empty for
	// feed-sourced notices, whose content arrives inline.
	ContentHTML string
}

// ExtractPageLinks fetches an HTML-sourced notice's detail page and derives
// its narrative content, attachment links and primary file link.
func (s *Syncer) ExtractPageLinks(ctx context.Context, n *domain.Notice) (*PageLinks, error) {
	resp, err := s.fetcher.Get(ctx, n.Link)
	if err != nil {
		return nil, fmt.Errorf("failed to get notice page %s: %w", n.Link, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse notice page %s: %w", n.Link, err)
	}

	body := doc.Find(detailBodySelector).First()
	if body.Length() == 0 {
		return nil, fmt.Errorf("notice body not found on %s", n.Link)
	}

	narrative := body.Find(narrativeSelector).First()
	narrativeText := strings.TrimSpace(narrative.Text())
	narrativeHTML, err := narrative.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to render notice content for %d: %w", n.ID, err)
	}

	attachments := s.linksFromSelection(body, n.ID)

	if narrativeText != "" {
		s.log.Debug("found narrative, checking for links", "notice_id", n.ID)
		textLinks := s.linksFromText(narrativeText, n.ID)
		attachments = mergeLinks(attachments, textLinks)
		s.log.Debug("narrative links collected",
			"notice_id", n.ID, "count", len(textLinks))
	}

	page := &PageLinks{
		NoticeID:    n.ID,
		Attachments: attachments,
		ContentHTML: strings.TrimSpace(narrativeHTML),
	}

	if href, ok := body.Find(downloadButtonSelector).First().Attr("href"); ok {
		if primary, valid := s.norm.Normalize(href, n.ID); valid {
			page.PrimaryFile = primary
			page.Attachments = removeLink(page.Attachments, primary)
			s.log.Debug("removed primary file link from attachments",
				"notice_id", n.ID, "link", primary)
		}
	}

	return page, nil
}

// ExtractFeedLinks derives links for a feed-sourced notice from its inline
// content and explicit file field. No network access is needed.
func (s *Syncer) ExtractFeedLinks(n *domain.Notice) (*PageLinks, error) {
	page := &PageLinks{NoticeID: n.ID}

	if n.Content.Valid && n.Content.String != "" {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(n.Content.String))
		if err != nil {
			return nil, fmt.Errorf("failed to parse feed content for %d: %w", n.ID, err)
		}
		page.Attachments = s.linksFromSelection(doc.Selection, n.ID)
	}

	if n.FeedFile != "" {
		if primary, ok := s.norm.Normalize(n.FeedFile, n.ID); ok {
			page.PrimaryFile = primary
			page.Attachments = removeLink(page.Attachments, primary)
		}
	}

	return page, nil
}

// linksFromSelection harvests every src and href attribute under sel and
// normalizes each, keeping valid file links in discovery order.
func (s *Syncer) linksFromSelection(sel *goquery.Selection, noticeID int) []string {
	var found []string
	seen := make(map[string]bool)

	add := func(raw string) {
		link, ok := s.norm.Normalize(raw, noticeID)
		if ok && !seen[link] {
			seen[link] = true
			found = append(found, link)
		}
	}

	sel.Find("[src]").Each(func(_ int, el *goquery.Selection) {
		add(el.AttrOr("src", ""))
	})
	sel.Find("[href]").Each(func(_ int, el *goquery.Selection) {
		add(el.AttrOr("href", ""))
	})

	return found
}

// linksFromText scans text for raw URL substrings and normalizes each.
func (s *Syncer) linksFromText(text string, noticeID int) []string {
	var found []string
	seen := make(map[string]bool)

	for _, raw := range urlPattern.FindAllString(text, -1) {
		link, ok := s.norm.Normalize(raw, noticeID)
		if ok && !seen[link] {
			seen[link] = true
			found = append(found, link)
		}
	}

	return found
}

// mergeLinks appends the entries of extra not already present in base.
func mergeLinks(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	for _, link := range base {
		seen[link] = true
	}
	for _, link := range extra {
		if !seen[link] {
			seen[link] = true
			base = append(base, link)
		}
	}
	return base
}

// removeLink returns links without the given link.
func removeLink(links []string, link string) []string {
	out := links[:0]
	for _, l := range links {
		if l != link {
			out = append(out, l)
		}
	}
	return out
}

// nullString wraps a non-empty string as a valid sql.NullString.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}
