package server

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/mikeboe/deep-research/pkg/clarify"
	"github.com/mikeboe/deep-research/pkg/observability"
	"github.com/mikeboe/deep-research/pkg/research"
)

// Service runs research requests. Every request gets its own engine run; nothing
// outlives the request.
type Service struct {
	Cfg      research.Config
	Provider research.Provider
	Backend  research.SearchBackend
	Fetcher  research.Fetcher
	Metrics  *observability.Metrics
	Logger   *slog.Logger
}

func NewService(cfg research.Config, provider research.Provider, backend research.SearchBackend, fetcher research.Fetcher) (*Service, error) {
	s := &Service{
		Cfg:      cfg,
		Provider: provider,
		Backend:  backend,
		Fetcher:  fetcher,
		Logger:   slog.Default(),
	}
	if _, err := s.newEngine(s.Logger); err != nil {
		return nil, err
	}
	return s, nil
}

type ResearchRequest struct {
	Topic     string   `json:"topic" binding:"required"`
	Questions []string `json:"questions"`
	Answers   []string `json:"answers"`
}

func (r ResearchRequest) toTopic() research.Topic {
	return research.Topic{
		Text:      strings.TrimSpace(r.Topic),
		Questions: r.Questions,
		Answers:   r.Answers,
	}
}

// Event is one item of a research stream.
type Event struct {
	Type    string `json:"type"` // "state", "log", "report", "error"
	Payload any    `json:"payload"`
}

func (s *Service) newEngine(logger *slog.Logger) (*research.ResearchEngine, error) {
	engine, err := research.NewEngine(s.Cfg, s.Provider, s.Backend, s.Fetcher)
	if err != nil {
		return nil, fmt.Errorf("failed to init engine: %w", err)
	}
	engine.Logger = logger
	engine.Metrics = s.Metrics
	return engine, nil
}

// Questions returns clarifying questions for topic.
func (s *Service) Questions(ctx context.Context, topic string) []string {
	retry := research.NewRetrier(s.Cfg, s.Logger)
	retry.Metrics = s.Metrics
	g := clarify.NewGenerator(research.NewLLMClient(s.Provider, s.Cfg.Models), retry)
	g.Logger = s.Logger
	return g.Questions(ctx, topic)
}

// Research runs the pipeline and blocks until the report is ready or ctx is done.
func (s *Service) Research(ctx context.Context, topic research.Topic) (*research.Report, error) {
	engine, err := s.newEngine(s.Logger)
	if err != nil {
		return nil, err
	}
	return engine.Run(ctx, topic)
}

// Stream runs the pipeline and yields state changes and log records as they
// happen, then a single "report" or "error" event. Stopping the iteration
// cancels the run.
func (s *Service) Stream(ctx context.Context, topic research.Topic) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		events := make(chan Event, 64)
		emit := func(e Event) {
			select {
			case events <- e:
			case <-ctx.Done():
			}
		}

		engine, err := s.newEngine(slog.New(NewEventLogHandler(emit, s.Logger.Handler())))
		if err != nil {
			yield(Event{Type: "error", Payload: err.Error()})
			return
		}
		engine.OnStateUpdate = func(state research.IterationState) {
			emit(Event{Type: "state", Payload: state})
		}

		var (
			report *research.Report
			runErr error
		)
		go func() {
			defer close(events)
			report, runErr = engine.Run(ctx, topic)
		}()

		for e := range events {
			if !yield(e) {
				cancel()
				for range events {
				}
				return
			}
		}

		if runErr != nil {
			yield(Event{Type: "error", Payload: runErr.Error()})
			return
		}
		yield(Event{Type: "report", Payload: report})
	}
}
