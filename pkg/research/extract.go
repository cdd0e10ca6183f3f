package research

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/mikeboe/deep-research/pkg/observability"
)

// Fetcher is the outbound document collaborator.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Extractor turns search results into budgeted content.
type Extractor struct {
	fetcher  Fetcher
	llm      *LLMClient
	retry    *Retrier
	maxChars int
	maxPar   int
	logger   *slog.Logger
	metrics  *observability.Metrics
}

func NewExtractor(fetcher Fetcher, llm *LLMClient, retry *Retrier, cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		fetcher:  fetcher,
		llm:      llm,
		retry:    retry,
		maxChars: cfg.MaxContentChars,
		maxPar:   cfg.MaxSearchResults,
		logger:   logger,
	}
}

// Truncate cuts s to at most max characters, dropping the tail.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// Extract fetches and budgets one result. ok is false when the source is skipped.
func (x *Extractor) Extract(ctx context.Context, topic Topic, result SearchResult) (content ExtractedContent, ok bool) {
	if strings.TrimSpace(result.URL) == "" {
		return ExtractedContent{}, false
	}

	raw, err := Retry(ctx, x.retry, "fetch", func(ctx context.Context) (string, error) {
		return x.fetcher.Fetch(ctx, result.URL)
	})
	if err != nil {
		if ctx.Err() == nil {
			x.logger.Warn("Skipping source, fetch failed", "url", result.URL, "error", err)
		}
		return ExtractedContent{}, false
	}
	if strings.TrimSpace(raw) == "" {
		x.logger.Warn("Skipping source, empty document", "url", result.URL)
		return ExtractedContent{}, false
	}

	content = ExtractedContent{
		SourceURL: result.URL,
		Title:     result.Title,
		Text:      Truncate(raw, x.maxChars),
	}

	if x.llm == nil {
		return content, true
	}
	condensed, err := Retry(ctx, x.retry, "extract", func(ctx context.Context) (string, error) {
		return x.llm.Invoke(ctx, RoleExtraction, extractionPrompt(topic, content))
	})
	if err != nil {
		if ctx.Err() != nil {
			return ExtractedContent{}, false
		}
		x.logger.Warn("Condensing failed, keeping raw text", "url", result.URL, "error", err)
		return content, true
	}
	content.Condensed = Truncate(strings.TrimSpace(condensed), x.maxChars)
	return content, true
}

// ExtractAll extracts results concurrently and returns the kept contents in input
// order. It only fails when ctx is done.
func (x *Extractor) ExtractAll(ctx context.Context, topic Topic, results []SearchResult) ([]ExtractedContent, error) {
	if len(results) == 0 {
		return nil, ctx.Err()
	}

	slots := make([]ExtractedContent, len(results))
	kept := make([]bool, len(results))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(len(results), max(x.maxPar, 1)))
	for i, result := range results {
		g.Go(func() error {
			x.logger.Info("Extracting source", "title", result.Title, "url", result.URL)
			slots[i], kept[i] = x.Extract(gctx, topic, result)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	contents := make([]ExtractedContent, 0, len(results))
	for i := range slots {
		if !kept[i] {
			x.metrics.RecordSkippedSource(ctx)
			continue
		}
		contents = append(contents, slots[i])
	}
	return contents, nil
}
