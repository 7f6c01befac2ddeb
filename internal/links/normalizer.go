// Package links validates and canonicalizes raw URL strings into absolute
// file URLs.
package links

import (
	"fmt"
	"mime"
	"net/url"
	"path"

	"github.com/jonesrussell/campuscnr/internal/logger"
)

// Extensions the campus site publishes that are missing from the Go mime
// package's built-in table.
var extraMimeTypes = map[string]string{
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".csv":  "text/csv",
	".rtf":  "application/rtf",
	".txt":  "text/plain",
	".zip":  "application/zip",
	".rar":  "application/vnd.rar",
	".7z":   "application/x-7z-compressed",
	".odt":  "application/vnd.oasis.opendocument.text",
}

func init() {
	for ext, typ := range extraMimeTypes {
		// AddExtensionType only fails on malformed input; the table is static.
		_ = mime.AddExtensionType(ext, typ)
	}
}

// Normalizer validates raw URLs and rewrites relative ones against a fixed
// base origin.
type Normalizer struct {
	base *url.URL
	log  logger.Interface
}

// New creates a normalizer for the given base origin.
func New(base string, log logger.Interface) (*Normalizer, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL %q: %w", base, err)
	}
	return &Normalizer{base: parsed, log: log}, nil
}

// Normalize validates and canonicalizes a raw URL. It returns false when
// the URL has no path or its path does not reference a downloadable file.
// Relative URLs are joined against the base origin; absolute ones are
// returned unchanged. noticeID, when non-zero, correlates debug log lines
// with the notice being processed.
func (n *Normalizer) Normalize(raw string, noticeID int) (string, bool) {
	log := n.log
	if noticeID != 0 {
		log = log.With("notice_id", noticeID)
	}
	log.Debug("processing url", "url", raw)

	parsed, err := url.Parse(raw)
	if err != nil {
		log.Debug("url failed to parse", "url", raw, "error", err)
		return "", false
	}

	if parsed.Path == "" {
		log.Debug("url missing path", "url", raw)
		return "", false
	}

	if mime.TypeByExtension(path.Ext(parsed.Path)) == "" {
		log.Debug("url not a file", "url", raw)
		return "", false
	}

	if parsed.Host == "" {
		log.Debug("url missing base url", "url", raw)
		return n.base.ResolveReference(parsed).String(), true
	}

	log.Debug("url is valid, no fixes required", "url", raw)
	return raw, true
}
