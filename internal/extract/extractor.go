// Package extract normalizes heterogeneous source units (file bytes,
// web pages, site maps, notes, directories) into plain text plus a
// title. Extraction performs network reads only and never touches the
// knowledge store.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oak-labs/corpora/internal/domain"
)

// Extraction is the normalized output of any source unit.
type Extraction struct {
	Title   string
	Content string
}

// Extractor turns source units into extractions. The fetcher is
// injectable so tests can run without a network.
type Extractor struct {
	fetcher *Fetcher
}

// NewExtractor creates an Extractor over the given fetcher.
func NewExtractor(fetcher *Fetcher) *Extractor {
	return &Extractor{fetcher: fetcher}
}

// FromBytes decodes raw file bytes into text, trying the encoding
// fallback ladder when UTF-8 decoding looks wrong.
func (e *Extractor) FromBytes(name string, data []byte) (Extraction, error) {
	text, err := DecodeText(data)
	if err != nil {
		return Extraction{}, domain.NewDomainErrorWithCause(domain.ErrCodeExtraction, fmt.Sprintf("failed to decode file %s", name), err)
	}
	if strings.TrimSpace(text) == "" {
		return Extraction{}, domain.ErrEmptyExtraction
	}
	return Extraction{Title: name, Content: text}, nil
}

// FromPath reads and decodes a file readable by the daemon.
func (e *Extractor) FromPath(path string) (Extraction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Extraction{}, domain.NewDomainErrorWithCause(domain.ErrCodeExtraction, fmt.Sprintf("failed to read file %s", path), err)
	}
	return e.FromBytes(filepath.Base(path), data)
}

// FromURL fetches a page and strips it to text. The page title (or
// first heading) becomes the extraction title, falling back to the URL.
func (e *Extractor) FromURL(ctx context.Context, url string) (Extraction, error) {
	page, err := e.fetcher.FetchHTML(ctx, url)
	if err != nil {
		return Extraction{}, domain.NewDomainErrorWithCause(domain.ErrCodeExtraction, fmt.Sprintf("failed to fetch %s", url), err)
	}

	title, text := StripHTML(page)
	if title == "" {
		title = url
	}
	if strings.TrimSpace(text) == "" {
		return Extraction{}, domain.ErrEmptyExtraction
	}
	return Extraction{Title: title, Content: text}, nil
}

// FromSitemap fetches a site map and returns its URL listing. The
// content is a formatted list of locations, not page text.
func (e *Extractor) FromSitemap(ctx context.Context, url string) (Extraction, []string, error) {
	body, err := e.fetcher.FetchText(ctx, url)
	if err != nil {
		return Extraction{}, nil, domain.NewDomainErrorWithCause(domain.ErrCodeExtraction, fmt.Sprintf("failed to fetch sitemap %s", url), err)
	}

	urls, err := ParseSitemap([]byte(body))
	if err != nil {
		return Extraction{}, nil, domain.NewDomainErrorWithCause(domain.ErrCodeExtraction, fmt.Sprintf("failed to parse sitemap %s", url), err)
	}
	if len(urls) == 0 {
		return Extraction{}, nil, domain.ErrEmptyExtraction
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Sitemap: %s (%d URLs)\n", url, len(urls))
	for _, u := range urls {
		b.WriteString(u)
		b.WriteByte('\n')
	}
	return Extraction{Title: url, Content: b.String()}, urls, nil
}

// FromDirectory returns a placeholder record for a directory unit.
// Contained files are ingested as their own units by the caller.
func (e *Extractor) FromDirectory(path string) Extraction {
	name := filepath.Base(path)
	return Extraction{
		Title:   name,
		Content: fmt.Sprintf("Directory: %s", path),
	}
}
