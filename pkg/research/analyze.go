package research

import (
	"context"
	"strings"
)

// Planner asks the PLANNING model for the next search query.
type Planner struct {
	llm   *LLMClient
	retry *Retrier
}

func NewPlanner(llm *LLMClient, retry *Retrier) *Planner {
	return &Planner{llm: llm, retry: retry}
}

// Next returns the query for the given iteration.
func (p *Planner) Next(ctx context.Context, topic Topic, iteration, maxIterations int, findings []Finding) (string, error) {
	prompt := planningPrompt(topic, iteration, maxIterations, findings)
	return Retry(ctx, p.retry, "plan", func(ctx context.Context) (string, error) {
		content, err := p.llm.Invoke(ctx, RolePlanning, prompt)
		if err != nil {
			return "", err
		}
		var resp struct {
			Query string `json:"query"`
		}
		if err := decodeJSON(RolePlanning, content, &resp); err != nil {
			return "", err
		}
		query := strings.TrimSpace(resp.Query)
		if query == "" {
			return "", &MalformedResponseError{Role: RolePlanning, Reason: "empty query"}
		}
		return query, nil
	})
}

// Analysis is the outcome of one analysis call.
type Analysis struct {
	Finding    Finding
	Sufficient bool
}

// Analyzer synthesizes new content into a Finding and decides sufficiency.
type Analyzer struct {
	llm   *LLMClient
	retry *Retrier
}

func NewAnalyzer(llm *LLMClient, retry *Retrier) *Analyzer {
	return &Analyzer{llm: llm, retry: retry}
}

// Analyze runs the ANALYSIS model over prior findings and new contents.
func (a *Analyzer) Analyze(ctx context.Context, topic Topic, prior []Finding, contents []ExtractedContent) (Analysis, error) {
	prompt := analysisPrompt(topic, prior, contents)
	return Retry(ctx, a.retry, "analyze", func(ctx context.Context) (Analysis, error) {
		content, err := a.llm.Invoke(ctx, RoleAnalysis, prompt)
		if err != nil {
			return Analysis{}, err
		}
		var resp struct {
			Summary    string   `json:"summary"`
			Sources    []string `json:"sources"`
			Sufficient bool     `json:"sufficient"`
		}
		if err := decodeJSON(RoleAnalysis, content, &resp); err != nil {
			return Analysis{}, err
		}
		summary := strings.TrimSpace(resp.Summary)
		if summary == "" {
			return Analysis{}, &MalformedResponseError{Role: RoleAnalysis, Reason: "empty summary"}
		}

		sources := resp.Sources
		if len(sources) == 0 {
			for _, c := range contents {
				sources = append(sources, c.SourceURL)
			}
		}
		return Analysis{
			Finding:    Finding{Summary: summary, Sources: uniqueStrings(sources)},
			Sufficient: resp.Sufficient,
		}, nil
	})
}

func uniqueStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Reporter writes the final report.
type Reporter struct {
	llm   *LLMClient
	retry *Retrier
}

func NewReporter(llm *LLMClient, retry *Retrier) *Reporter {
	return &Reporter{llm: llm, retry: retry}
}

// Report renders findings, oldest first, into Markdown.
func (r *Reporter) Report(ctx context.Context, topic Topic, findings []Finding) (string, error) {
	prompt := reportPrompt(topic, findings)
	return Retry(ctx, r.retry, "report", func(ctx context.Context) (string, error) {
		content, err := r.llm.Invoke(ctx, RoleReport, prompt)
		if err != nil {
			return "", err
		}
		report := strings.TrimSpace(reThink.ReplaceAllString(content, ""))
		if report == "" {
			return "", &MalformedResponseError{Role: RoleReport, Reason: "report is empty after removing reasoning"}
		}
		return report, nil
	})
}
