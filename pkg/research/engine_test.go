package research

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngine_Validation(t *testing.T) {
	p := newFakeProvider()
	b := resultsBackend(1)
	f := textFetcher("text")

	bad := testConfig()
	bad.MaxIterations = 0

	tests := []struct {
		name    string
		cfg     Config
		p       Provider
		b       SearchBackend
		f       Fetcher
		wantErr bool
	}{
		{"Valid", testConfig(), p, b, f, false},
		{"Zero iterations", bad, p, b, f, true},
		{"Missing provider", testConfig(), nil, b, f, true},
		{"Missing backend", testConfig(), p, nil, f, true},
		{"Missing fetcher", testConfig(), p, b, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.cfg, tt.p, tt.b, tt.f)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEngine_NeverExceedsMaxIterations(t *testing.T) {
	for _, maxIter := range []int{1, 2, 3, 5} {
		cfg := testConfig()
		cfg.MaxIterations = maxIter

		p := newFakeProvider()
		b := resultsBackend(2)
		e := newTestEngine(t, cfg, p, b, textFetcher("body"))

		report, err := e.Run(context.Background(), Topic{Text: "topic"})
		require.NoError(t, err)

		assert.Equal(t, maxIter, report.Iterations)
		assert.Equal(t, maxIter, b.calls)
		assert.Equal(t, maxIter, p.count(RoleAnalysis))
		assert.Equal(t, 1, p.count(RoleReport))
		assert.Len(t, report.Findings, maxIter)
		assert.False(t, report.StoppedEarly)
	}
}

func TestEngine_StopsEarlyWhenSufficient(t *testing.T) {
	p := newFakeProvider().on(RoleAnalysis, func(int, string) (string, error) {
		return `{"summary": "enough", "sufficient": true}`, nil
	})
	b := resultsBackend(3)
	f := textFetcher("body")
	e := newTestEngine(t, testConfig(), p, b, f)

	report, err := e.Run(context.Background(), Topic{Text: "topic"})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Iterations)
	assert.True(t, report.StoppedEarly)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 3, f.calls)
	assert.Equal(t, 1, p.count(RoleAnalysis))
	assert.Equal(t, 1, p.count(RoleReport))
}

func TestEngine_ProteinFoldingScenario(t *testing.T) {
	long := strings.Repeat("¶", 25000)
	p := newFakeProvider().
		on(RoleExtraction, func(int, string) (string, error) {
			return "", errors.New("extraction model unavailable")
		}).
		on(RoleAnalysis, func(call int, prompt string) (string, error) {
			if call == 1 {
				return `{"summary": "first", "sufficient": false}`, nil
			}
			return `{"summary": "second", "sufficient": true}`, nil
		})
	b := resultsBackend(7)
	f := textFetcher(long)
	e := newTestEngine(t, testConfig(), p, b, f)

	report, err := e.Run(context.Background(), Topic{Text: "protein folding"})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Iterations)
	assert.Equal(t, []int{5, 5}, b.limits)
	assert.Equal(t, 10, f.calls, "only the first five results are extracted each iteration")

	analysisPrompts := p.promptsFor(RoleAnalysis)
	require.Len(t, analysisPrompts, 2)
	for _, prompt := range analysisPrompts {
		assert.Equal(t, 5*20000, strings.Count(prompt, "¶"))
	}

	require.Equal(t, 1, p.count(RoleReport))
	require.Len(t, report.Findings, 2)
	assert.Equal(t, "first", report.Findings[0].Summary)
	assert.Equal(t, "second", report.Findings[1].Summary)

	reportPrompt := p.promptsFor(RoleReport)[0]
	first := strings.Index(reportPrompt, "Finding 1: first")
	second := strings.Index(reportPrompt, "Finding 2: second")
	assert.True(t, first >= 0 && second > first, "findings are reported oldest first")
}

func TestEngine_SearchAlwaysFailsStillReports(t *testing.T) {
	p := newFakeProvider()
	b := &fakeBackend{fn: func(context.Context, string, int) ([]SearchResult, error) {
		return nil, errors.New("backend down")
	}}
	e := newTestEngine(t, testConfig(), p, b, textFetcher("body"))

	report, err := e.Run(context.Background(), Topic{Text: "topic"})
	require.NoError(t, err)

	assert.Equal(t, "# Report", report.Markdown)
	assert.Empty(t, report.Findings)
	assert.Equal(t, 3, report.Iterations)
	assert.Equal(t, 3*DefaultMaxRetryAttempts, b.calls)
	assert.Zero(t, p.count(RoleAnalysis))
	assert.Equal(t, 1, p.count(RoleReport))
}

func TestEngine_FetchFailuresAreSkipped(t *testing.T) {
	p := newFakeProvider()
	f := &fakeFetcher{fn: func(_ context.Context, url string) (string, error) {
		if strings.HasSuffix(url, "/a") {
			return "", errors.New("404")
		}
		return "body", nil
	}}
	cfg := testConfig()
	cfg.MaxIterations = 1
	e := newTestEngine(t, cfg, p, resultsBackend(3), f)

	report, err := e.Run(context.Background(), Topic{Text: "topic"})
	require.NoError(t, err)

	require.Len(t, report.Findings, 1)
	assert.Equal(t, []string{"https://example.com/b", "https://example.com/c"}, report.Findings[0].Sources)
}

func TestEngine_AnalysisFailureIsFatal(t *testing.T) {
	p := newFakeProvider().on(RoleAnalysis, func(int, string) (string, error) {
		return "not json at all", nil
	})
	e := newTestEngine(t, testConfig(), p, resultsBackend(1), textFetcher("body"))

	report, err := e.Run(context.Background(), Topic{Text: "topic"})
	require.Error(t, err)
	assert.Nil(t, report)

	var pf *PipelineFailedError
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, StateAnalyzing, pf.Stage)

	var exhausted *RetryExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Len(t, exhausted.Errors, DefaultMaxRetryAttempts)

	var malformed *MalformedResponseError
	assert.ErrorAs(t, err, &malformed)
	assert.Equal(t, DefaultMaxRetryAttempts, p.count(RoleAnalysis))
	assert.Zero(t, p.count(RoleReport))
}

func TestEngine_ReportFailureIsFatal(t *testing.T) {
	p := newFakeProvider().on(RoleReport, func(int, string) (string, error) {
		return "", errors.New("401 unauthorized")
	})
	e := newTestEngine(t, testConfig(), p, resultsBackend(1), textFetcher("body"))

	_, err := e.Run(context.Background(), Topic{Text: "topic"})

	var pf *PipelineFailedError
	require.ErrorAs(t, err, &pf)
	var provider *ProviderError
	assert.ErrorAs(t, err, &provider)
	assert.Equal(t, DefaultMaxRetryAttempts, p.count(RoleReport))
}

func TestEngine_CancellationAbortsWithoutReport(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := newFakeProvider()
	f := &fakeFetcher{fn: func(ctx context.Context, _ string) (string, error) {
		cancel()
		<-ctx.Done()
		return "", ctx.Err()
	}}
	e := newTestEngine(t, testConfig(), p, resultsBackend(2), f)

	report, err := e.Run(ctx, Topic{Text: "topic"})
	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsPipelineFailure(err))
	assert.Zero(t, p.count(RoleAnalysis))
	assert.Zero(t, p.count(RoleReport))
}

func TestEngine_PlanningFailureFallsBackToTopic(t *testing.T) {
	p := newFakeProvider().on(RolePlanning, func(int, string) (string, error) {
		return "I cannot help with that", nil
	})
	b := resultsBackend(1)
	cfg := testConfig()
	cfg.MaxIterations = 1
	e := newTestEngine(t, cfg, p, b, textFetcher("body"))

	_, err := e.Run(context.Background(), Topic{Text: "quantum dots"})
	require.NoError(t, err)
	assert.Equal(t, []string{"quantum dots"}, b.queries)
	assert.Equal(t, DefaultMaxRetryAttempts, p.count(RolePlanning))
}

func TestEngine_StateUpdatesFollowStateMachine(t *testing.T) {
	p := newFakeProvider().on(RoleAnalysis, func(call int, _ string) (string, error) {
		return `{"summary": "s", "sufficient": ` + map[bool]string{true: "true", false: "false"}[call == 2] + `}`, nil
	})

	var mu sync.Mutex
	var states []State
	e := newTestEngine(t, testConfig(), p, resultsBackend(1), textFetcher("body"))
	e.OnStateUpdate = func(s IterationState) {
		mu.Lock()
		defer mu.Unlock()
		if len(states) == 0 || states[len(states)-1] != s.State {
			states = append(states, s.State)
		}
		assert.Less(t, s.Iteration, testConfig().MaxIterations)
	}

	_, err := e.Run(context.Background(), Topic{Text: "topic"})
	require.NoError(t, err)

	assert.Equal(t, []State{
		StateInit,
		StatePlanning, StateSearching, StateExtracting, StateAnalyzing,
		StatePlanning, StateSearching, StateExtracting, StateAnalyzing,
		StateDone, StateReported,
	}, states)
}

func TestEngine_ClarifyingAnswersReachPrompts(t *testing.T) {
	p := newFakeProvider()
	cfg := testConfig()
	cfg.MaxIterations = 1
	e := newTestEngine(t, cfg, p, resultsBackend(1), textFetcher("body"))

	_, err := e.Run(context.Background(), Topic{
		Text:      "protein folding",
		Questions: []string{"Which structure level?"},
		Answers:   []string{"tertiary"},
	})
	require.NoError(t, err)

	for _, role := range Roles() {
		for _, prompt := range p.promptsFor(role) {
			assert.Contains(t, prompt, "tertiary", "role %s", role)
		}
	}
}
