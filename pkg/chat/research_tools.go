package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"

	"github.com/mikeboe/deep-research/pkg/research"
)

// Researcher runs the research pipeline on behalf of a tool call.
type Researcher interface {
	Research(ctx context.Context, topic research.Topic) (*research.Report, error)
	Questions(ctx context.Context, topic string) []string
}

// ResearchToolset exposes the research pipeline as agent tools.
type ResearchToolset struct {
	Researcher Researcher
}

func NewResearchToolset(r Researcher) *ResearchToolset {
	return &ResearchToolset{Researcher: r}
}

func (t *ResearchToolset) Name() string {
	return "research_tools"
}

func (t *ResearchToolset) Tools(ctx agent.ReadonlyContext) ([]tool.Tool, error) {
	researchTool, err := functiontool.New[DeepResearchArgs, DeepResearchResp](
		functiontool.Config{
			Name:        "deep_research",
			Description: "Research a topic on the web over several search iterations and return a Markdown report with sources.",
		},
		t.deepResearchTool,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create deep_research tool: %w", err)
	}

	questionsTool, err := functiontool.New[ClarifyArgs, ClarifyResp](
		functiontool.Config{
			Name:        "clarifying_questions",
			Description: "Generate questions that narrow down the scope of a research topic before researching it.",
		},
		t.clarifyingQuestionsTool,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create clarifying_questions tool: %w", err)
	}

	return []tool.Tool{researchTool, questionsTool}, nil
}

// --- Tool Implementations ---

type DeepResearchArgs struct {
	Topic     string   `json:"topic" description:"The research topic"`
	Questions []string `json:"questions,omitempty" description:"Clarifying questions that were asked"`
	Answers   []string `json:"answers,omitempty" description:"The user's answers, in question order"`
}

type DeepResearchResp struct {
	Report     string   `json:"report"`
	Sources    []string `json:"sources"`
	Iterations int      `json:"iterations"`
}

func (t *ResearchToolset) deepResearchTool(ctx tool.Context, args DeepResearchArgs) (DeepResearchResp, error) {
	return t.DeepResearch(ctx, args)
}

// DeepResearch runs a full research pipeline for args.Topic.
func (t *ResearchToolset) DeepResearch(ctx context.Context, args DeepResearchArgs) (DeepResearchResp, error) {
	topic := strings.TrimSpace(args.Topic)
	if topic == "" {
		return DeepResearchResp{}, fmt.Errorf("topic is required")
	}
	slog.Info("Deep research tool called", "topic", topic, "answers", len(args.Answers))

	report, err := t.Researcher.Research(ctx, research.Topic{
		Text:      topic,
		Questions: args.Questions,
		Answers:   args.Answers,
	})
	if err != nil {
		return DeepResearchResp{}, fmt.Errorf("research failed: %w", err)
	}
	return DeepResearchResp{
		Report:     report.Markdown,
		Sources:    Sources(report),
		Iterations: report.Iterations,
	}, nil
}

type ClarifyArgs struct {
	Topic string `json:"topic" description:"The research topic to clarify"`
}

type ClarifyResp struct {
	Questions []string `json:"questions"`
}

func (t *ResearchToolset) clarifyingQuestionsTool(ctx tool.Context, args ClarifyArgs) (ClarifyResp, error) {
	return t.ClarifyingQuestions(ctx, args)
}

// ClarifyingQuestions returns questions for args.Topic.
func (t *ResearchToolset) ClarifyingQuestions(ctx context.Context, args ClarifyArgs) (ClarifyResp, error) {
	topic := strings.TrimSpace(args.Topic)
	if topic == "" {
		return ClarifyResp{}, fmt.Errorf("topic is required")
	}
	return ClarifyResp{Questions: t.Researcher.Questions(ctx, topic)}, nil
}

// Sources lists the distinct source URLs of a report's findings in discovery order.
func Sources(report *research.Report) []string {
	var sources []string
	seen := make(map[string]bool)
	for _, f := range report.Findings {
		for _, s := range f.Sources {
			if !seen[s] {
				seen[s] = true
				sources = append(sources, s)
			}
		}
	}
	return sources
}
