package research

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var testModels = RoleModels{
	Planning:   "plan-model",
	Extraction: "extract-model",
	Analysis:   "analysis-model",
	Report:     "report-model",
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryDelay = 0
	cfg.Models = testModels
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type roleHandler func(call int, prompt string) (string, error)

// fakeProvider answers per role and counts calls. Safe for concurrent use.
type fakeProvider struct {
	mu       sync.Mutex
	handlers map[Role]roleHandler
	calls    map[Role]int
	prompts  map[Role][]string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		handlers: map[Role]roleHandler{
			RolePlanning:   func(int, string) (string, error) { return `{"query": "planned query"}`, nil },
			RoleExtraction: func(int, string) (string, error) { return "condensed text", nil },
			RoleAnalysis: func(int, string) (string, error) {
				return `{"summary": "a finding", "sufficient": false}`, nil
			},
			RoleReport: func(int, string) (string, error) { return "# Report", nil },
		},
		calls:   make(map[Role]int),
		prompts: make(map[Role][]string),
	}
}

func (f *fakeProvider) on(role Role, h roleHandler) *fakeProvider {
	f.handlers[role] = h
	return f
}

func (f *fakeProvider) Generate(_ context.Context, modelID, prompt string) (string, error) {
	var role Role
	for _, r := range Roles() {
		if testModels.Model(r) == modelID {
			role = r
		}
	}

	f.mu.Lock()
	f.calls[role]++
	n := f.calls[role]
	f.prompts[role] = append(f.prompts[role], prompt)
	h := f.handlers[role]
	f.mu.Unlock()

	if h == nil {
		return "", errors.New("unexpected model " + modelID)
	}
	return h(n, prompt)
}

func (f *fakeProvider) count(role Role) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[role]
}

func (f *fakeProvider) promptsFor(role Role) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts[role]...)
}

type fakeBackend struct {
	mu      sync.Mutex
	calls   int
	queries []string
	limits  []int
	fn      func(ctx context.Context, text string, maxResults int) ([]SearchResult, error)
}

func (b *fakeBackend) Query(ctx context.Context, text string, maxResults int) ([]SearchResult, error) {
	b.mu.Lock()
	b.calls++
	b.queries = append(b.queries, text)
	b.limits = append(b.limits, maxResults)
	b.mu.Unlock()
	return b.fn(ctx, text, maxResults)
}

func resultsBackend(n int) *fakeBackend {
	return &fakeBackend{fn: func(context.Context, string, int) ([]SearchResult, error) {
		return makeResults(n), nil
	}}
}

func makeResults(n int) []SearchResult {
	results := make([]SearchResult, n)
	for i := range results {
		results[i] = SearchResult{
			Title:   "Result " + string(rune('A'+i)),
			URL:     "https://example.com/" + string(rune('a'+i)),
			Snippet: "snippet",
		}
	}
	return results
}

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, url string) (string, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(ctx, url)
}

func textFetcher(text string) *fakeFetcher {
	return &fakeFetcher{fn: func(context.Context, string) (string, error) { return text, nil }}
}

func newTestEngine(t *testing.T, cfg Config, p Provider, b SearchBackend, f Fetcher) *ResearchEngine {
	t.Helper()
	e, err := NewEngine(cfg, p, b, f)
	require.NoError(t, err)
	e.Logger = discardLogger()
	return e
}
