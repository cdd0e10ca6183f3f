package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/deep-research/pkg/research"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// scriptedProvider answers by model id; each role has its own model in testConfig.
type scriptedProvider struct {
	failReport bool
}

func (p *scriptedProvider) Generate(_ context.Context, modelID, _ string) (string, error) {
	switch modelID {
	case "plan":
		return `{"query": "q"}`, nil
	case "extract":
		return "condensed", nil
	case "analyze":
		return `{"summary": "finding", "sources": ["https://example.com/1"], "sufficient": true}`, nil
	case "report":
		if p.failReport {
			return "", errors.New("401 unauthorized")
		}
		return "# Report", nil
	}
	return "", errors.New("unknown model " + modelID)
}

type staticBackend struct{}

func (staticBackend) Query(context.Context, string, int) ([]research.SearchResult, error) {
	return []research.SearchResult{{Title: "One", URL: "https://example.com/1"}}, nil
}

type staticFetcher struct{}

func (staticFetcher) Fetch(context.Context, string) (string, error) {
	return "page text", nil
}

func testConfig() research.Config {
	cfg := research.DefaultConfig()
	cfg.RetryDelay = 0
	cfg.MaxRetryAttempts = 1
	cfg.Models = research.RoleModels{Planning: "plan", Extraction: "extract", Analysis: "analyze", Report: "report"}
	return cfg
}

func newTestService(t *testing.T, p research.Provider) *Service {
	t.Helper()
	s, err := NewService(testConfig(), p, staticBackend{}, staticFetcher{})
	require.NoError(t, err)
	s.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return s
}
