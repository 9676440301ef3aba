// Package backend provides the reference research implementation: a web
// search against DuckDuckGo's lite HTML interface and a summary produced by
// an OpenAI-compatible chat model, composed into a worker backend.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/deepscout/deepscout/research"
)

const ddgLiteEndpoint = "https://lite.duckduckgo.com/lite/"

// ddgThrottle enforces a global 1 QPS ceiling across all searcher instances;
// the lite endpoint bans aggressive clients.
var ddgThrottle struct {
	mu   sync.Mutex
	last time.Time
}

// Searcher finds web sources for a query.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]research.SourceRecord, error)
}

// DuckDuckGoSearcher scrapes the DuckDuckGo lite HTML page for results.
type DuckDuckGoSearcher struct {
	client   *http.Client
	endpoint string
}

// NewDuckDuckGoSearcher creates a searcher with a modest timeout.
func NewDuckDuckGoSearcher() *DuckDuckGoSearcher {
	return &DuckDuckGoSearcher{
		client:   &http.Client{Timeout: 15 * time.Second},
		endpoint: ddgLiteEndpoint,
	}
}

// NewDuckDuckGoSearcherWithClient creates a searcher using the supplied HTTP
// client and endpoint; endpoint == "" keeps the default.
func NewDuckDuckGoSearcherWithClient(client *http.Client, endpoint string) *DuckDuckGoSearcher {
	if endpoint == "" {
		endpoint = ddgLiteEndpoint
	}
	return &DuckDuckGoSearcher{client: client, endpoint: endpoint}
}

// Search posts the query to the lite page and parses the result table.
func (d *DuckDuckGoSearcher) Search(ctx context.Context, query string, maxResults int) ([]research.SourceRecord, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is empty")
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	// Enforce the global 1 QPS rate limit.
	ddgThrottle.mu.Lock()
	if wait := time.Until(ddgThrottle.last.Add(time.Second)); wait > 0 {
		ddgThrottle.mu.Unlock()
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		ddgThrottle.mu.Lock()
	}
	ddgThrottle.last = time.Now()
	ddgThrottle.mu.Unlock()

	formData := url.Values{}
	formData.Set("q", query)

	var resp *http.Response
	delay := 1 * time.Second
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(formData.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err = d.client.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		resp.Body.Close()

		// Back off and retry on 429, doubling the delay each time up to 30s.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo http %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse duckduckgo response: %w", err)
	}
	return parseLiteResults(doc, maxResults), nil
}

// parseLiteResults extracts results from the lite page. Each result is a
// `a.result-link` anchor with an adjacent `td.result-snippet` cell.
func parseLiteResults(doc *goquery.Document, maxResults int) []research.SourceRecord {
	snippets := doc.Find("td.result-snippet").Map(func(_ int, s *goquery.Selection) string {
		return strings.TrimSpace(s.Text())
	})

	var results []research.SourceRecord
	seen := make(map[string]bool)

	doc.Find("a.result-link").EachWithBreak(func(i int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		href = strings.TrimSpace(href)
		title := strings.TrimSpace(s.Text())
		if !ok || href == "" || title == "" {
			return true
		}
		// Skip DuckDuckGo internal and relative links.
		if strings.Contains(href, "duckduckgo.com") || strings.HasPrefix(href, "/") || strings.HasPrefix(href, "#") {
			return true
		}
		if seen[href] {
			return true
		}
		seen[href] = true

		snippet := ""
		if i < len(snippets) {
			snippet = snippets[i]
		}
		results = append(results, research.SourceRecord{
			Title:   title,
			URL:     href,
			Snippet: snippet,
		})
		return len(results) < maxResults
	})

	return results
}
