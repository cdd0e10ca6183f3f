// Package clarify asks the planning model for questions that narrow a research topic.
package clarify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/mikeboe/deep-research/pkg/research"
)

// DefaultQuestions are returned whenever the model cannot produce usable questions.
var DefaultQuestions = []string{
	"Which specific aspects of the topic are you most interested in?",
	"What depth do you need: an introductory overview or a detailed technical analysis?",
	"Is there a particular perspective, methodology or time period you want the research to focus on?",
	"What will you use the results for, and are there applications or examples that matter most?",
}

var reArray = regexp.MustCompile(`(?s)\[.*?\]`)

// Generator produces clarifying questions with the PLANNING role model.
type Generator struct {
	llm    *research.LLMClient
	retry  *research.Retrier
	Logger *slog.Logger
}

func NewGenerator(llm *research.LLMClient, retry *research.Retrier) *Generator {
	return &Generator{llm: llm, retry: retry, Logger: slog.Default()}
}

// Questions never fails: once retries are exhausted, any model or parsing
// problem yields DefaultQuestions.
func (g *Generator) Questions(ctx context.Context, topic string) []string {
	questions, err := research.Retry(ctx, g.retry, "clarify", func(ctx context.Context) ([]string, error) {
		text, err := g.llm.Invoke(ctx, research.RolePlanning, prompt(topic))
		if err != nil {
			return nil, err
		}
		return parseQuestions(text)
	})
	if err != nil {
		g.Logger.Warn("Error while generating questions", "topic", topic, "error", err)
		return defaults()
	}
	g.Logger.Info("Generated clarifying questions", "topic", topic, "count", len(questions))
	return questions
}

func prompt(topic string) string {
	return fmt.Sprintf(`Given the research topic: %s

Generate 4 clarifying questions to help narrow down the research scope. Focus on identifying:
- Specific aspects of interest
- Required depth/complexity level
- Particular perspective or methodologies
- Potential applications or relevance

Format your response as a JSON array of questions, like:
["Question 1?", "Question 2?", "Question 3?", "Question 4?"]`, topic)
}

// parseQuestions decodes the first JSON array of strings in text.
func parseQuestions(text string) ([]string, error) {
	match := reArray.FindString(text)
	if match == "" {
		return nil, fmt.Errorf("no JSON array in response")
	}
	var raw []string
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return nil, &research.MalformedResponseError{Role: research.RolePlanning, Reason: "questions are not a JSON string array", Err: err}
	}

	questions := make([]string, 0, len(raw))
	for _, q := range raw {
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("empty question list")
	}
	return questions, nil
}

func defaults() []string {
	return append([]string(nil), DefaultQuestions...)
}
