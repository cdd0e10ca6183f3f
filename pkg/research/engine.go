package research

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mikeboe/deep-research/pkg/observability"
)

var tracer = otel.Tracer("github.com/mikeboe/deep-research/pkg/research")

// ResearchEngine runs the bounded plan/search/extract/analyze loop and writes
// the final report. One engine may serve many runs; all run state is local to Run.
type ResearchEngine struct {
	Config        Config
	Logger        *slog.Logger
	Metrics       *observability.Metrics
	OnStateUpdate func(state IterationState)

	llm     *LLMClient
	backend SearchBackend
	fetcher Fetcher
}

func NewEngine(cfg Config, provider Provider, backend SearchBackend, fetcher Fetcher) (*ResearchEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid research config: %w", err)
	}
	if provider == nil {
		return nil, fmt.Errorf("a model provider is required")
	}
	if backend == nil {
		return nil, fmt.Errorf("a search backend is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("a fetcher is required")
	}

	return &ResearchEngine{
		Config:  cfg,
		llm:     NewLLMClient(provider, cfg.Models),
		backend: backend,
		fetcher: fetcher,
		Logger:  slog.Default(),
	}, nil
}

// LLM returns the role-routing client the engine uses.
func (e *ResearchEngine) LLM() *LLMClient {
	return e.llm
}

// run holds the collaborators and state of a single research run.
type run struct {
	cfg       Config
	topic     Topic
	state     IterationState
	logger    *slog.Logger
	metrics   *observability.Metrics
	onUpdate  func(IterationState)
	planner   *Planner
	searcher  *Searcher
	extractor *Extractor
	analyzer  *Analyzer
	reporter  *Reporter
}

// Run researches topic and returns the report. Any fatal failure, including
// cancellation of ctx, is returned as a *PipelineFailedError and no report is
// produced.
func (e *ResearchEngine) Run(ctx context.Context, topic Topic) (*Report, error) {
	runID := uuid.NewString()
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("run_id", runID)

	retry := NewRetrier(e.Config, logger)
	retry.Metrics = e.Metrics
	extractor := NewExtractor(e.fetcher, e.llm, retry, e.Config, logger)
	extractor.metrics = e.Metrics

	r := &run{
		cfg:       e.Config,
		topic:     topic,
		state:     IterationState{RunID: runID, Topic: topic.Text, State: StateInit},
		logger:    logger,
		metrics:   e.Metrics,
		onUpdate:  e.OnStateUpdate,
		planner:   NewPlanner(e.llm, retry),
		searcher:  NewSearcher(e.backend, retry, e.Config.MaxSearchResults, logger),
		extractor: extractor,
		analyzer:  NewAnalyzer(e.llm, retry),
		reporter:  NewReporter(e.llm, retry),
	}

	ctx, span := tracer.Start(ctx, "research.run", trace.WithAttributes(
		attribute.String("research.run_id", runID),
		attribute.String("research.topic", topic.Text),
		attribute.Int("research.max_iterations", e.Config.MaxIterations),
	))
	defer span.End()

	start := time.Now()
	e.Metrics.RunStarted()
	logger.Info("Starting research loop", "topic", topic.Text, "max_iterations", e.Config.MaxIterations)

	report, err := r.execute(ctx)
	outcome := "completed"
	switch {
	case err != nil && ctx.Err() != nil:
		outcome = "canceled"
	case err != nil:
		outcome = "failed"
	}
	e.Metrics.RecordRun(ctx, outcome, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("Research failed", "error", err)
		return nil, err
	}

	report.ID = runID
	logger.Info("Final report generated", "length", len(report.Markdown), "iterations", report.Iterations, "findings", len(report.Findings))
	return report, nil
}

func (r *run) execute(ctx context.Context) (*Report, error) {
	r.update()
	stoppedEarly := false

	for {
		r.logger.Info("Starting iteration", "iteration", r.state.Iteration+1, "max", r.cfg.MaxIterations)

		// 1. Plan
		r.transition(StatePlanning)
		var query string
		if err := r.stage(ctx, func(ctx context.Context) error {
			query = r.plan(ctx)
			return ctx.Err()
		}); err != nil {
			return nil, r.fail(err)
		}
		r.state.Query = query
		r.update()

		// 2. Search
		r.transition(StateSearching)
		var results []SearchResult
		if err := r.stage(ctx, func(ctx context.Context) error {
			var err error
			results, err = r.searcher.Search(ctx, query)
			if err != nil && ctx.Err() == nil {
				r.logger.Warn("Search failed, continuing with no results", "query", query, "error", err)
				return nil
			}
			return err
		}); err != nil {
			return nil, r.fail(err)
		}
		r.metrics.RecordSearchResults(ctx, len(results))
		r.logger.Info("Search complete", "query", query, "results", len(results))

		// 3. Extract
		r.transition(StateExtracting)
		var contents []ExtractedContent
		if err := r.stage(ctx, func(ctx context.Context) error {
			var err error
			contents, err = r.extractor.ExtractAll(ctx, r.topic, results)
			return err
		}); err != nil {
			return nil, r.fail(err)
		}

		// 4. Analyze
		r.transition(StateAnalyzing)
		sufficient := false
		if len(contents) == 0 {
			r.logger.Info("No content gathered in this iteration, skipping analysis")
			if err := ctx.Err(); err != nil {
				return nil, r.fail(err)
			}
		} else {
			var analysis Analysis
			if err := r.stage(ctx, func(ctx context.Context) error {
				var err error
				analysis, err = r.analyzer.Analyze(ctx, r.topic, r.state.Findings, contents)
				return err
			}); err != nil {
				return nil, r.fail(err)
			}
			r.state.Findings = append(r.state.Findings, analysis.Finding)
			sufficient = analysis.Sufficient
		}
		r.metrics.RecordIteration(ctx)

		if sufficient || r.state.Iteration+1 >= r.cfg.MaxIterations {
			stoppedEarly = sufficient
			r.state.Done = true
			r.transition(StateDone)
			r.logger.Info("Research loop finished", "iterations", r.state.Iteration+1, "sufficient", sufficient)
			break
		}
		r.state.Iteration++
	}

	// Generate Final Report
	var markdown string
	if err := r.stage(ctx, func(ctx context.Context) error {
		var err error
		markdown, err = r.reporter.Report(ctx, r.topic, r.state.Findings)
		return err
	}); err != nil {
		return nil, r.fail(err)
	}
	r.transition(StateReported)

	return &Report{
		Topic:        r.topic.Text,
		Markdown:     markdown,
		Findings:     append([]Finding(nil), r.state.Findings...),
		Iterations:   r.state.Iteration + 1,
		StoppedEarly: stoppedEarly,
	}, nil
}

// plan returns the next query. A planning failure falls back to the topic text so
// that the iteration can still search.
func (r *run) plan(ctx context.Context) string {
	query, err := r.planner.Next(ctx, r.topic, r.state.Iteration, r.cfg.MaxIterations, r.state.Findings)
	// Unlike analysis, exhausted planning retries are not fatal: the topic
	// itself is always a usable query.
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Warn("Planning failed, searching for the topic instead", "error", err)
		}
		return r.topic.Text
	}
	r.logger.Info("Planned query", "query", query)
	return query
}

func (r *run) stage(ctx context.Context, fn func(context.Context) error) error {
	name := string(r.state.State)
	ctx, span := tracer.Start(ctx, "research."+name, trace.WithAttributes(
		attribute.Int("research.iteration", r.state.Iteration),
	))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	r.metrics.RecordStage(ctx, name, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *run) transition(s State) {
	r.state.State = s
	r.update()
}

func (r *run) update() {
	if r.onUpdate != nil {
		r.onUpdate(r.state.snapshot())
	}
}

func (r *run) fail(err error) error {
	return &PipelineFailedError{Stage: r.state.State, Err: err}
}
