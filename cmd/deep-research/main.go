package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mikeboe/deep-research/pkg/clarify"
	"github.com/mikeboe/deep-research/pkg/clients"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/observability"
	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/mikeboe/deep-research/pkg/research/tools"
)

var (
	topic         string
	answers       []string
	outputPath    string
	maxIterations int
	searchFlag    string
	verbose       bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "deep-research",
		Short: "A terminal-based research agent",
		Long: `deep-research researches a topic by iterating plan, search, extract and analyze steps
and writes a Markdown report. Without --topic it asks for a topic and clarifying answers interactively.`,
		SilenceUsage: true,
		RunE:         run,
	}

	rootCmd.Flags().StringVarP(&topic, "topic", "t", "", "The research topic")
	rootCmd.Flags().StringArrayVarP(&answers, "answer", "a", nil, "Answer to a clarifying question (repeatable)")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the report to this file instead of stdout")
	rootCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Override MAX_ITERATIONS")
	rootCmd.Flags().StringVar(&searchFlag, "search", "", "Override SEARCH_PROVIDER (duckduckgo, tavily, arxiv)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if maxIterations > 0 {
		cfg.Research.MaxIterations = maxIterations
	}
	if searchFlag != "" {
		cfg.Search.Provider = searchFlag
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	// Logs go to stderr so the report can be piped from stdout.
	logger := observability.NewLogger(os.Stderr, cfg.LogFormat, level)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	engine, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}
	engine.Logger = logger

	t, err := resolveTopic(ctx, cmd, engine)
	if err != nil {
		return err
	}

	slog.Info("Starting research", "topic", t.Text, "answers", len(t.Answers))
	report, err := engine.Run(ctx, t)
	if err != nil {
		slog.Error("Error running research", "error", err)
		return err
	}

	return writeReport(cmd.OutOrStdout(), report)
}

func newEngine(ctx context.Context, cfg *config.Config) (*research.ResearchEngine, error) {
	provider, err := clients.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	backend, err := tools.NewSearchBackend(tools.BackendOptions{
		Provider:     cfg.Search.Provider,
		TavilyAPIKey: cfg.Search.TavilyApiKey,
		RateLimit:    cfg.Search.RateLimit,
		PreferPDF:    cfg.Search.MistralApiKey != "",
	})
	if err != nil {
		return nil, err
	}
	engine, err := research.NewEngine(cfg.ResearchConfig(), provider, backend, tools.NewFetcher(cfg.Search.MistralApiKey, nil))
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return engine, nil
}

// resolveTopic takes the topic from flags, or asks for it and for answers to
// generated clarifying questions.
func resolveTopic(ctx context.Context, cmd *cobra.Command, engine *research.ResearchEngine) (research.Topic, error) {
	if cmd.Flags().Changed("topic") {
		// Non-Interactive Mode (Flag provided)
		if strings.TrimSpace(topic) == "" {
			return research.Topic{}, fmt.Errorf("--topic flag provided but empty")
		}
		return research.Topic{Text: strings.TrimSpace(topic), Answers: answers}, nil
	}

	// Interactive Mode
	reader := bufio.NewReader(cmd.InOrStdin())
	out := cmd.ErrOrStderr()

	fmt.Fprint(out, "Enter research topic: ")
	input, _ := reader.ReadString('\n')
	text := strings.TrimSpace(input)
	if text == "" {
		return research.Topic{}, fmt.Errorf("topic cannot be empty")
	}

	retry := research.NewRetrier(engine.Config, engine.Logger)
	questions := clarify.NewGenerator(engine.LLM(), retry).Questions(ctx, text)
	fmt.Fprintln(out, "\nA few questions to focus the research (press Enter to skip):")
	var replies []string
	for i, q := range questions {
		fmt.Fprintf(out, "%d. %s\n> ", i+1, q)
		input, _ := reader.ReadString('\n')
		replies = append(replies, strings.TrimSpace(input))
	}

	return research.Topic{Text: text, Questions: questions, Answers: replies}, nil
}

func writeReport(stdout io.Writer, report *research.Report) error {
	if outputPath == "" {
		_, err := fmt.Fprintln(stdout, report.Markdown)
		return err
	}
	if err := os.WriteFile(outputPath, []byte(report.Markdown+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	slog.Info("Report written", "path", outputPath, "iterations", report.Iterations, "findings", len(report.Findings))
	return nil
}
