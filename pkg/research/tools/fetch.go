package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/mikeboe/deep-research/pkg/research"
)

const defaultMaxFetchBytes = 4 << 20

// noiseSelectors are removed from pages before conversion.
const noiseSelectors = "script, style, noscript, iframe, svg, nav, header, footer, aside, form"

// PageFetcher downloads documents and returns their readable text. HTML is
// converted to Markdown; PDFs go to the PDF fetcher when one is configured.
type PageFetcher struct {
	PDF      research.Fetcher
	MaxBytes int64

	client    *http.Client
	converter *md.Converter
}

func NewPageFetcher(client *http.Client, pdf research.Fetcher) *PageFetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &PageFetcher{
		PDF:       pdf,
		MaxBytes:  defaultMaxFetchBytes,
		client:    client,
		converter: md.NewConverter("", true, nil),
	}
}

// Fetch implements research.Fetcher.
func (f *PageFetcher) Fetch(ctx context.Context, url string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", errors.New("fetch url is empty")
	}
	if f.PDF != nil && isPDFURL(url) {
		return f.PDF.Fetch(ctx, url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch http %d: %s", resp.StatusCode, url)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case mediaType == "application/pdf":
		if f.PDF == nil {
			return "", fmt.Errorf("no PDF reader configured for %s", url)
		}
		return f.PDF.Fetch(ctx, url)
	case mediaType == "" || mediaType == "text/html" || mediaType == "application/xhtml+xml":
		return f.htmlToMarkdown(io.LimitReader(resp.Body, f.MaxBytes))
	case strings.HasPrefix(mediaType, "text/") || mediaType == "application/json":
		body, err := io.ReadAll(io.LimitReader(resp.Body, f.MaxBytes))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(body)), nil
	default:
		return "", fmt.Errorf("unsupported content type %q: %s", mediaType, url)
	}
}

func (f *PageFetcher) htmlToMarkdown(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find(noiseSelectors).Remove()

	content := doc.Find("article").First()
	if content.Length() == 0 {
		content = doc.Find("main").First()
	}
	if content.Length() == 0 {
		content = doc.Find("body")
	}

	text := f.converter.Convert(content)
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title != "" && !strings.Contains(text, title) {
		text = "# " + title + "\n\n" + text
	}
	return strings.TrimSpace(text), nil
}

func isPDFURL(url string) bool {
	lower := strings.ToLower(url)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	return strings.HasSuffix(lower, ".pdf") || strings.Contains(lower, "arxiv.org/pdf/")
}
