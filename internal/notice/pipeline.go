package notice

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/jonesrussell/campuscnr/internal/domain"
	"github.com/jonesrussell/campuscnr/internal/download"
	"github.com/jonesrussell/campuscnr/internal/fetch"
	"github.com/jonesrussell/campuscnr/internal/logger"
)

// Ledger is the subset of the content store the notice pipeline uses.
type Ledger interface {
	MaxNoticeID(ctx context.Context) (int, error)
	CountNoticesAtOrBelow(ctx context.Context, id int) (int, error)
	InsertNotice(ctx context.Context, notice *domain.Notice) error
	InsertNoticeFile(ctx context.Context, file *domain.NoticeFile) error
	LookupNoticeFile(ctx context.Context, name, originalName string) ([]domain.NoticeFile, error)
	Commit(ctx context.Context)
}

// Pipeline processes pending notices one at a time: extract links, download
// each file with a fixed delay, persist the file records and the notice,
// then commit. A notice-level failure aborts the remainder of the run so
// the high-water mark never advances past an unprocessed notice.
type Pipeline struct {
	syncer      *Syncer
	fetcher     fetch.Getter
	ledger      Ledger
	dir         string
	fileDelay   time.Duration
	noticeDelay time.Duration
	log         logger.Interface
}

// NewPipeline creates the notice pipeline.
func NewPipeline(
	syncer *Syncer,
	fetcher fetch.Getter,
	ledger Ledger,
	dir string,
	fileDelay, noticeDelay time.Duration,
	log logger.Interface,
) *Pipeline {
	return &Pipeline{
		syncer:      syncer,
		fetcher:     fetcher,
		ledger:      ledger,
		dir:         dir,
		fileDelay:   fileDelay,
		noticeDelay: noticeDelay,
		log:         log,
	}
}

// Update runs one incremental sync of the notice board.
func (p *Pipeline) Update(ctx context.Context) error {
	highWater, err := p.ledger.MaxNoticeID(ctx)
	if err != nil {
		return fmt.Errorf("failed to read notice high-water mark: %w", err)
	}

	sequence, err := p.ledger.CountNoticesAtOrBelow(ctx, highWater)
	if err != nil {
		p.log.Warn("failed to count processed notices", "error", err)
	}
	p.log.Info("last notice id", "id", highWater, "sequence", sequence)

	pending, err := p.syncer.Pending(ctx, highWater)
	if err != nil {
		return fmt.Errorf("failed to gather pending notices: %w", err)
	}
	p.log.Info("found pending notices", "count", len(pending))

	for i := range pending {
		n := &pending[i]
		p.log.Info("processing notice", "notice_id", n.ID)

		if err := p.processNotice(ctx, n); err != nil {
			// Stop here: committing later notices first would advance
			// the high-water mark past this one.
			return fmt.Errorf("failed to process notice %d: %w", n.ID, err)
		}

		p.ledger.Commit(ctx)

		if err := download.Delay(ctx, p.noticeDelay); err != nil {
			return err
		}
	}

	return nil
}

// processNotice takes one notice through link extraction, file download and
// persistence.
func (p *Pipeline) processNotice(ctx context.Context, n *domain.Notice) error {
	var page *PageLinks
	var err error

	if n.FromAPI {
		page, err = p.syncer.ExtractFeedLinks(n)
	} else {
		page, err = p.syncer.ExtractPageLinks(ctx, n)
	}
	if err != nil {
		return err
	}

	if !n.FromAPI && page.ContentHTML != "" {
		n.Content = nullString(page.ContentHTML)
	}

	p.log.Debug("extracted links",
		"notice_id", n.ID,
		"attachments", len(page.Attachments),
		"has_primary", page.PrimaryFile != "")

	var primary []string
	if page.PrimaryFile != "" {
		primary = []string{page.PrimaryFile}
	}
	files := prepareFiles(n.ID, primary, 0)
	files = append(files, prepareFiles(n.ID, page.Attachments, 1)...)

	stored, err := p.downloadFiles(ctx, n.ID, files)
	if err != nil {
		return err
	}
	p.log.Info("downloaded notice files",
		"notice_id", n.ID, "stored", len(stored), "total", len(files))

	names := make(domain.NameList, 0, len(stored))
	for i := range stored {
		file := &stored[i]
		names = append(names, file.Name)

		if page.PrimaryFile != "" && file.Sequence == 0 {
			n.PrimaryFile = nullString(file.Name)
		}

		existing, lookupErr := p.ledger.LookupNoticeFile(ctx, file.Name, file.OriginalName)
		if lookupErr != nil {
			return lookupErr
		}
		if len(existing) > 0 {
			p.log.Info("notice file already recorded",
				"notice_id", n.ID, "name", file.Name)
			continue
		}

		if insertErr := p.ledger.InsertNoticeFile(ctx, file); insertErr != nil {
			return insertErr
		}
	}
	n.Files = names

	return p.ledger.InsertNotice(ctx, n)
}

// prepareFiles assigns synthetic per-notice file names of the form
// {id}_{NN}{ext}: the primary file is sequence 0, attachments start at 1
// in discovery order.
func prepareFiles(noticeID int, urls []string, start int) []domain.NoticeFile {
	files := make([]domain.NoticeFile, 0, len(urls))

	for i, link := range urls {
		sequence := start + i
		originalName := download.FileName(link)
		name := fmt.Sprintf("%d_%02d%s", noticeID, sequence, path.Ext(originalName))

		files = append(files, domain.NoticeFile{
			Name:         name,
			Sequence:     sequence,
			OriginalName: originalName,
			Link:         link,
		})
	}

	return files
}

// downloadFiles fetches each prepared file in order with a fixed delay
// between files. A per-file failure is logged and the file skipped; its
// metadata is never persisted. Partial success is expected for notices
// with multiple attachments. The returned slice holds only the files that
// were downloaded, with hash and last-modified filled in.
func (p *Pipeline) downloadFiles(
	ctx context.Context,
	noticeID int,
	files []domain.NoticeFile,
) ([]domain.NoticeFile, error) {
	stored := make([]domain.NoticeFile, 0, len(files))

	for i := range files {
		file := files[i]
		progress := fmt.Sprintf("%d/%d", i+1, len(files))

		p.log.Info("downloading file",
			"notice_id", noticeID, "progress", progress,
			"name", file.Name, "url", file.Link)

		resp, err := p.fetcher.Get(ctx, file.Link)
		if err != nil {
			p.log.Error("failed to download file",
				"notice_id", noticeID, "progress", progress,
				"name", file.Name, "error", err)
			continue
		}

		target := filepath.Join(p.dir, file.Name)
		if err := os.WriteFile(target, resp.Body, 0o644); err != nil {
			p.log.Error("failed to write file",
				"notice_id", noticeID, "path", target, "error", err)
			continue
		}

		file.ContentHash = download.ComputeHash(resp.Body)
		if resp.LastModified != nil {
			file.LastModified = sql.NullInt64{Int64: resp.LastModified.Unix(), Valid: true}
		}
		stored = append(stored, file)

		p.log.Info("downloaded file",
			"notice_id", noticeID, "progress", progress, "name", file.Name)

		if err := download.Delay(ctx, p.fileDelay); err != nil {
			return nil, err
		}
	}

	return stored, nil
}
