// Package calendar implements the academic calendar pipeline: discover
// calendar file links on the calendar page and run them through the dedup
// and download engine.
package calendar

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/campuscnr/internal/download"
	"github.com/jonesrussell/campuscnr/internal/fetch"
	"github.com/jonesrussell/campuscnr/internal/links"
	"github.com/jonesrussell/campuscnr/internal/logger"
	"github.com/jonesrussell/campuscnr/internal/store"
)

// panelSelector locates the content panels that carry calendar links.
const panelSelector = "div.panel > div.panel-body"

// Processor runs one candidate through the dedup and download engine.
type Processor interface {
	Process(ctx context.Context, c download.Candidate) download.Result
}

// Committer commits accumulated ledger writes.
type Committer interface {
	Commit(ctx context.Context)
}

// Pipeline is the calendar update pipeline.
type Pipeline struct {
	fetcher fetch.Getter
	engine  Processor
	ledger  Committer
	norm    *links.Normalizer
	pageURL string
	dir     string
	delay   time.Duration
	log     logger.Interface
}

// New creates the calendar pipeline.
func New(
	fetcher fetch.Getter,
	engine Processor,
	ledger Committer,
	norm *links.Normalizer,
	pageURL, dir string,
	delay time.Duration,
	log logger.Interface,
) *Pipeline {
	return &Pipeline{
		fetcher: fetcher,
		engine:  engine,
		ledger:  ledger,
		norm:    norm,
		pageURL: pageURL,
		dir:     dir,
		delay:   delay,
		log:     log,
	}
}

// Update checks the calendar page for new files and downloads them, one at
// a time with a fixed delay. The ledger is committed once at the end.
func (p *Pipeline) Update(ctx context.Context) error {
	p.log.Info("checking for calendar update")

	urls, err := p.discover(ctx)
	if err != nil {
		return err
	}

	for _, u := range urls {
		result := p.engine.Process(ctx, download.Candidate{
			URL:   u,
			Dir:   p.dir,
			Table: store.TableCalendars,
		})

		switch result.Outcome {
		case download.OutcomeStored:
			p.log.Info("downloaded new calendar", "name", result.Name)
		case download.OutcomeAlreadyPresent:
			p.log.Info("calendar was already downloaded", "name", result.Name)
		case download.OutcomeFailed:
			p.log.Info("failed to download the calendar", "url", u)
		}

		if err := download.Delay(ctx, p.delay); err != nil {
			return err
		}
	}

	p.ledger.Commit(ctx)
	return nil
}

// discover fetches the calendar page and harvests every src, href and data
// attribute under the content panels, keeping normalized file links in
// discovery order.
func (p *Pipeline) discover(ctx context.Context) ([]string, error) {
	resp, err := p.fetcher.Get(ctx, p.pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get calendar page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse calendar page: %w", err)
	}

	var urls []string
	seen := make(map[string]bool)

	add := func(raw string, ok bool) {
		if !ok {
			return
		}
		link, valid := p.norm.Normalize(raw, 0)
		if valid && !seen[link] {
			seen[link] = true
			urls = append(urls, link)
		}
	}

	doc.Find(panelSelector).Each(func(_ int, panel *goquery.Selection) {
		for _, attr := range []string{"src", "href", "data"} {
			panel.Find("[" + attr + "]").Each(func(_ int, el *goquery.Selection) {
				add(el.Attr(attr))
			})
		}
	})

	return urls, nil
}
