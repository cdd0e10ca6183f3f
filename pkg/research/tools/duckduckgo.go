package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/mikeboe/deep-research/pkg/research"
)

const (
	duckDuckGoLiteURL = "https://lite.duckduckgo.com/lite/"
	browserUserAgent  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// DuckDuckGo scrapes the DuckDuckGo lite HTML interface. Requests share one
// limiter so concurrent runs stay under the configured rate.
type DuckDuckGo struct {
	BaseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewDuckDuckGo creates a scraper allowing perSecond queries per second. A
// non-positive rate disables limiting.
func NewDuckDuckGo(client *http.Client, perSecond float64) *DuckDuckGo {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &DuckDuckGo{
		BaseURL: duckDuckGoLiteURL,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Query implements research.SearchBackend.
func (d *DuckDuckGo) Query(ctx context.Context, query string, maxResults int) ([]research.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is empty")
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("q", query)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo http %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse duckduckgo page: %w", err)
	}
	return parseLiteResults(doc, maxResults), nil
}

// parseLiteResults pairs each result link with the snippet cell that follows it.
func parseLiteResults(doc *goquery.Document, maxResults int) []research.SearchResult {
	snippets := doc.Find("td.result-snippet")
	var results []research.SearchResult

	doc.Find("a.result-link").EachWithBreak(func(i int, s *goquery.Selection) bool {
		link := resolveRedirect(strings.TrimSpace(s.AttrOr("href", "")))
		title := strings.TrimSpace(s.Text())
		if link == "" || title == "" {
			return true
		}
		snippet := ""
		if i < snippets.Length() {
			snippet = collapseSpace(snippets.Eq(i).Text())
		}
		results = append(results, research.SearchResult{Title: title, URL: link, Snippet: snippet})
		return maxResults <= 0 || len(results) < maxResults
	})
	return results
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if !u.IsAbs() {
		return ""
	}
	return href
}
