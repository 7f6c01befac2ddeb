// Package examroutine implements the exam routine pipeline: parse the term
// and supplementary routine tables and run every linked file through the
// dedup and download engine, split by day/evening shift.
package examroutine

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/campuscnr/internal/download"
	"github.com/jonesrussell/campuscnr/internal/fetch"
	"github.com/jonesrussell/campuscnr/internal/links"
	"github.com/jonesrussell/campuscnr/internal/logger"
	"github.com/jonesrussell/campuscnr/internal/store"
)

// Processor runs one candidate through the dedup and download engine.
type Processor interface {
	Process(ctx context.Context, c download.Candidate) download.Result
}

// Committer commits accumulated ledger writes.
type Committer interface {
	Commit(ctx context.Context)
}

// Shift identifies an exam routine section of the routines page.
type Shift string

const (
	// ShiftTerm is the regular term exam section.
	ShiftTerm Shift = "term"
	// ShiftSupplementary is the supplementary exam section.
	ShiftSupplementary Shift = "suppli"
)

// section describes where one shift's routines live: the page selector,
// the download directory and the ledger table.
type section struct {
	shift    Shift
	selector string
	dir      string
	table    store.FileTable
}

// Pipeline is the exam routine update pipeline.
type Pipeline struct {
	fetcher fetch.Getter
	engine  Processor
	ledger  Committer
	norm    *links.Normalizer
	pageURL string
	examDir string
	suppDir string
	delay   time.Duration
	log     logger.Interface
}

// New creates the exam routine pipeline. examDir and suppDir are the root
// directories for term and supplementary routines; day/evening shifts go
// into day/ and evn/ subdirectories.
func New(
	fetcher fetch.Getter,
	engine Processor,
	ledger Committer,
	norm *links.Normalizer,
	pageURL, examDir, suppDir string,
	delay time.Duration,
	log logger.Interface,
) *Pipeline {
	return &Pipeline{
		fetcher: fetcher,
		engine:  engine,
		ledger:  ledger,
		norm:    norm,
		pageURL: pageURL,
		examDir: examDir,
		suppDir: suppDir,
		delay:   delay,
		log:     log,
	}
}

// sections returns the two routine sections in processing order.
func (p *Pipeline) sections() []section {
	return []section{
		{
			shift:    ShiftTerm,
			selector: "div#Exam_Routine tbody tr",
			dir:      p.examDir,
			table:    store.TableTermExams,
		},
		{
			shift:    ShiftSupplementary,
			selector: "div#Sup_Exam_Routine tbody tr",
			dir:      p.suppDir,
			table:    store.TableSuppliExams,
		},
	}
}

// Update checks the routines page for new exam routine files and downloads
// them, one at a time with a fixed delay. A download error stops the
// current section; the ledger is committed once at the end.
func (p *Pipeline) Update(ctx context.Context) error {
	resp, err := p.fetcher.Get(ctx, p.pageURL)
	if err != nil {
		return fmt.Errorf("failed to get routines page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return fmt.Errorf("failed to parse routines page: %w", err)
	}

	bySection := make(map[Shift][]download.Candidate)
	total := 0
	for _, sec := range p.sections() {
		candidates := p.candidates(doc, sec)
		if len(candidates) == 0 {
			p.log.Warn("found no exam routines", "shift", string(sec.shift))
		}
		bySection[sec.shift] = candidates
		total += len(candidates)
	}
	if total == 0 {
		p.log.Error("found no exam routines")
		return nil
	}

	for _, sec := range p.sections() {
		for _, c := range bySection[sec.shift] {
			result := p.engine.Process(ctx, c)

			switch result.Outcome {
			case download.OutcomeStored:
				p.log.Info("downloaded exam routine",
					"shift", string(sec.shift), "name", result.Name,
					"day", c.IsDay.Bool)
			case download.OutcomeAlreadyPresent:
				p.log.Info("exam routine already downloaded", "name", result.Name)
			case download.OutcomeFailed:
				p.log.Error("failed to download exam routine", "url", c.URL)
			}
			if result.Outcome == download.OutcomeFailed {
				break
			}

			if err := download.Delay(ctx, p.delay); err != nil {
				return err
			}
		}
	}

	p.ledger.Commit(ctx)
	return nil
}

// candidates parses one routine section's table rows. The first cell names
// the program (day or evening); the second cell carries the file links.
func (p *Pipeline) candidates(doc *goquery.Document, sec section) []download.Candidate {
	var candidates []download.Candidate

	doc.Find(sec.selector).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")

		program := strings.ToLower(cells.Eq(0).Text())
		program = strings.TrimSpace(strings.ReplaceAll(program, "program", ""))
		isDay := strings.Contains(program, "day")

		subdir := "evn"
		if isDay {
			subdir = "day"
		}

		cells.Eq(1).Find("a").Each(func(_ int, a *goquery.Selection) {
			link, ok := p.norm.Normalize(a.AttrOr("href", ""), 0)
			if !ok {
				return
			}

			candidates = append(candidates, download.Candidate{
				URL:   link,
				Dir:   filepath.Join(sec.dir, subdir),
				Table: sec.table,
				IsDay: sql.NullBool{Bool: isDay, Valid: true},
			})
		})
	})

	return candidates
}
