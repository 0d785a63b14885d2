package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultFetchTimeout = 15 * time.Second
	fetchUserAgent      = "Mozilla/5.0 (compatible; corpora/1.0)"

	// Fetched bodies are truncated to bound memory and downstream work.
	maxHTMLBytes = 500_000
	maxTextBytes = 100_000
)

// Strategy rewrites a target URL into the URL actually requested. The
// identity strategy is a direct fetch; the others route through public
// relay services for pages that refuse direct daemon traffic.
type Strategy struct {
	Name    string
	Rewrite func(target string) string
}

// DefaultStrategies returns the ordered access strategy list: direct
// first, then the public relays.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "direct", Rewrite: func(target string) string { return target }},
		{Name: "corsproxy", Rewrite: func(target string) string {
			return "https://corsproxy.io/?url=" + url.QueryEscape(target)
		}},
		{Name: "allorigins", Rewrite: func(target string) string {
			return "https://api.allorigins.win/raw?url=" + url.QueryEscape(target)
		}},
		{Name: "codetabs", Rewrite: func(target string) string {
			return "https://api.codetabs.com/v1/proxy?quest=" + url.QueryEscape(target)
		}},
	}
}

// Fetcher retrieves remote documents through an ordered strategy list,
// trying each in turn until one succeeds.
type Fetcher struct {
	client     *http.Client
	strategies []Strategy
}

// NewFetcher creates a Fetcher with the given strategies; nil means the
// default list. A zero timeout means the default 15 seconds.
func NewFetcher(strategies []Strategy, timeout time.Duration) *Fetcher {
	if strategies == nil {
		strategies = DefaultStrategies()
	}
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Fetcher{
		client:     &http.Client{Timeout: timeout},
		strategies: strategies,
	}
}

// FetchHTML retrieves a page body, truncated to the HTML byte cap.
func (f *Fetcher) FetchHTML(ctx context.Context, target string) (string, error) {
	return f.fetch(ctx, target, maxHTMLBytes)
}

// FetchText retrieves a plain document body, truncated to the text
// byte cap.
func (f *Fetcher) FetchText(ctx context.Context, target string) (string, error) {
	return f.fetch(ctx, target, maxTextBytes)
}

func (f *Fetcher) fetch(ctx context.Context, target string, limit int64) (string, error) {
	var lastErr error
	for _, s := range f.strategies {
		body, err := f.fetchOnce(ctx, s.Rewrite(target), limit)
		if err == nil {
			return body, nil
		}
		lastErr = fmt.Errorf("%s: %w", s.Name, err)
		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("all access strategies failed for %s: %w", target, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, requestURL string, limit int64) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return "", err
	}
	return string(body), nil
}
