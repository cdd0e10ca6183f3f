package research

import (
	"context"
	"errors"
	"log/slog"
)

// SearchBackend is the outbound search collaborator. Results are in relevance order.
type SearchBackend interface {
	Query(ctx context.Context, text string, maxResults int) ([]SearchResult, error)
}

// Searcher issues one query per call and caps the result list.
type Searcher struct {
	backend    SearchBackend
	retry      *Retrier
	maxResults int
	logger     *slog.Logger
}

func NewSearcher(backend SearchBackend, retry *Retrier, maxResults int, logger *slog.Logger) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Searcher{backend: backend, retry: retry, maxResults: maxResults, logger: logger}
}

// Search returns at most maxResults results in backend order. Results past the
// cap are discarded. Retry exhaustion becomes a SearchUnavailableError.
func (s *Searcher) Search(ctx context.Context, query string) ([]SearchResult, error) {
	results, err := Retry(ctx, s.retry, "search", func(ctx context.Context) ([]SearchResult, error) {
		return s.backend.Query(ctx, query, s.maxResults)
	})
	if err != nil {
		var exhausted *RetryExhaustedError
		if errors.As(err, &exhausted) {
			return nil, &SearchUnavailableError{Query: query, Err: err}
		}
		return nil, err
	}

	if len(results) > s.maxResults {
		s.logger.Debug("Discarding excess search results", "query", query, "received", len(results), "kept", s.maxResults)
		results = results[:s.maxResults]
	}
	return dedupeResults(results), nil
}

// dedupeResults drops later results pointing at an already seen URL.
func dedupeResults(results []SearchResult) []SearchResult {
	unique := make([]SearchResult, 0, len(results))
	seen := make(map[string]bool)
	for _, r := range results {
		key := r.URL
		if key == "" {
			key = r.Title
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, r)
	}
	return unique
}
