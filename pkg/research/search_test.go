package research

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearcher_CapsResults(t *testing.T) {
	tests := []struct {
		name     string
		returned int
		want     int
	}{
		{"Fewer than cap", 3, 3},
		{"Exactly cap", 5, 5},
		{"More than cap", 7, 5},
		{"Empty", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := resultsBackend(tt.returned)
			s := NewSearcher(b, newTestRetrier(3, 0), 5, discardLogger())

			results, err := s.Search(context.Background(), "q")
			require.NoError(t, err)
			assert.Len(t, results, tt.want)
			assert.Equal(t, []int{5}, b.limits)
			if tt.want > 0 {
				assert.Equal(t, "https://example.com/a", results[0].URL)
			}
		})
	}
}

func TestSearcher_DropsDuplicateURLs(t *testing.T) {
	b := &fakeBackend{fn: func(context.Context, string, int) ([]SearchResult, error) {
		return []SearchResult{
			{Title: "one", URL: "https://example.com/x"},
			{Title: "two", URL: "https://example.com/y"},
			{Title: "again", URL: "https://example.com/x"},
		}, nil
	}}
	s := NewSearcher(b, newTestRetrier(1, 0), 5, nil)

	results, err := s.Search(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "one", results[0].Title)
	assert.Equal(t, "two", results[1].Title)
}

func TestSearcher_RetriesThenUnavailable(t *testing.T) {
	b := &fakeBackend{fn: func(context.Context, string, int) ([]SearchResult, error) {
		return nil, errors.New("503")
	}}
	s := NewSearcher(b, newTestRetrier(3, 0), 5, discardLogger())

	_, err := s.Search(context.Background(), "gene editing")

	var unavailable *SearchUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "gene editing", unavailable.Query)
	assert.Equal(t, 3, b.calls)
}

func TestSearcher_RecoversAfterTransientFailure(t *testing.T) {
	b := &fakeBackend{}
	b.fn = func(context.Context, string, int) ([]SearchResult, error) {
		if b.calls == 1 {
			return nil, errors.New("timeout")
		}
		return makeResults(2), nil
	}
	s := NewSearcher(b, newTestRetrier(3, 0), 5, discardLogger())

	results, err := s.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, 2, b.calls)
}
