package chat

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/adk/tool"
	"google.golang.org/genai"

	"github.com/mikeboe/deep-research/pkg/config"
)

const (
	appName = "deep-research"
	userID  = "user" // Single user for now
)

// Service runs the research chat agent. Conversations live in memory for the
// lifetime of the process.
type Service struct {
	Agent    agent.Agent
	sessions session.Service
}

// StreamEvent represents a single event in the chat stream
type StreamEvent struct {
	Type    string `json:"type"` // "session", "content", "tool_call", "tool_result", "error", "done"
	Payload any    `json:"payload"`
}

func NewService(ctx context.Context, cfg *config.Config, researcher Researcher) (*Service, error) {
	if cfg.GoogleApiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is required for the chat agent")
	}

	modelClient, err := gemini.NewModel(ctx, cfg.ChatModel, &genai.ClientConfig{
		APIKey: cfg.GoogleApiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create model: %w", err)
	}

	researchAgent, err := llmagent.New(llmagent.Config{
		Name:        "deep_research",
		Model:       modelClient,
		Description: "A research assistant that can run deep web research.",
		Instruction: "You are a helpful research assistant. When the user asks about a topic that needs current or detailed information, " +
			"first call clarifying_questions and ask the user those questions. Once the user has answered, call deep_research with the topic, " +
			"the questions and the answers. Present the returned report as is and list its sources at the end.",
		Toolsets: []tool.Toolset{
			NewResearchToolset(researcher),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	return &Service{Agent: researchAgent, sessions: session.InMemoryService()}, nil
}

// session returns the stored session, creating it when sessionID is empty or unknown.
func (s *Service) session(ctx context.Context, sessionID string) (string, error) {
	if sessionID != "" {
		if _, err := s.sessions.Get(ctx, &session.GetRequest{AppName: appName, UserID: userID, SessionID: sessionID}); err == nil {
			return sessionID, nil
		}
	} else {
		sessionID = uuid.NewString()
	}

	if _, err := s.sessions.Create(ctx, &session.CreateRequest{
		AppName:   appName,
		UserID:    userID,
		SessionID: sessionID,
	}); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return sessionID, nil
}

// SendMessage runs the agent on content and streams its output. The first event
// carries the session id to send with follow-up messages.
func (s *Service) SendMessage(ctx context.Context, sessionID, content string) (iter.Seq2[StreamEvent, error], error) {
	sessionID, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	r, err := runner.New(runner.Config{
		AppName:        appName,
		Agent:          s.Agent,
		SessionService: s.sessions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}

	userContent := &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: content}},
	}

	return func(yield func(StreamEvent, error) bool) {
		if !yield(StreamEvent{Type: "session", Payload: sessionID}, nil) {
			return
		}

		slog.Info("Starting agent run", "session_id", sessionID)
		runCfg := agent.RunConfig{
			StreamingMode: agent.StreamingModeSSE,
		}

		for event, err := range r.Run(ctx, userID, sessionID, userContent, runCfg) {
			if err != nil {
				slog.Error("Agent runner error", "error", err)
				yield(StreamEvent{Type: "error", Payload: err.Error()}, err)
				return
			}
			for _, ev := range toStreamEvents(event) {
				if !yield(ev, nil) {
					return
				}
			}
		}

		slog.Info("Agent run completed", "session_id", sessionID)
		yield(StreamEvent{Type: "done", Payload: "done"}, nil)
	}, nil
}

func toStreamEvents(event *session.Event) []StreamEvent {
	if event == nil || event.LLMResponse.Content == nil {
		return nil
	}
	var out []StreamEvent
	for _, part := range event.LLMResponse.Content.Parts {
		if part.Text != "" {
			out = append(out, StreamEvent{Type: "content", Payload: part.Text})
		}
		if part.FunctionCall != nil {
			slog.Info("Agent tool call", "tool", part.FunctionCall.Name)
			out = append(out, StreamEvent{Type: "tool_call", Payload: part.FunctionCall})
		}
		if part.FunctionResponse != nil {
			slog.Info("Agent tool result", "tool", part.FunctionResponse.Name)
			out = append(out, StreamEvent{Type: "tool_result", Payload: part.FunctionResponse})
		}
	}
	return out
}
