package extract

import (
	"encoding/xml"
	"fmt"
	"strings"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	URLs    []sitemapLoc `xml:"url"`
}

type sitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// ParseSitemap extracts the <loc> entries of a sitemap or sitemap index
// document into a flat URL list, preserving document order.
func ParseSitemap(data []byte) ([]string, error) {
	var set sitemapURLSet
	if err := xml.Unmarshal(data, &set); err == nil && len(set.URLs) > 0 {
		return collectLocs(set.URLs), nil
	}

	var index sitemapIndex
	if err := xml.Unmarshal(data, &index); err == nil && len(index.Sitemaps) > 0 {
		return collectLocs(index.Sitemaps), nil
	}

	// A well-formed urlset with zero entries is valid and empty.
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("not a sitemap document: %w", err)
	}
	return nil, nil
}

func collectLocs(entries []sitemapLoc) []string {
	urls := make([]string, 0, len(entries))
	for _, e := range entries {
		loc := strings.TrimSpace(e.Loc)
		if loc != "" {
			urls = append(urls, loc)
		}
	}
	return urls
}
