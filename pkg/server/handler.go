package server

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mikeboe/deep-research/pkg/chat"
	"github.com/mikeboe/deep-research/pkg/research"
)

// ChatStreamer is the chat agent as seen by the HTTP layer.
type ChatStreamer interface {
	SendMessage(ctx context.Context, sessionID, content string) (iter.Seq2[chat.StreamEvent, error], error)
}

type Handler struct {
	Service *Service
	Chat    ChatStreamer
	MCP     http.Handler
	Metrics http.Handler
}

func NewHandler(s *Service, c ChatStreamer, mcpHandler, metrics http.Handler) *Handler {
	return &Handler{Service: s, Chat: c, MCP: mcpHandler, Metrics: metrics}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}
	if h.MCP != nil {
		mcpHandler := gin.WrapH(h.MCP)
		r.POST("/mcp", mcpHandler)
		r.GET("/mcp", mcpHandler)
		r.DELETE("/mcp", mcpHandler)
	}

	api := r.Group("/api")
	{
		api.POST("/questions", h.generateQuestions)
		api.POST("/research", h.runResearch)
		api.POST("/research/stream", h.streamResearch)
		api.POST("/chat", h.sendMessage)
	}
}

type questionsRequest struct {
	Topic string `json:"topic" binding:"required"`
}

func (h *Handler) generateQuestions(c *gin.Context) {
	var req questionsRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Topic) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "topic is required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": h.Service.Questions(c.Request.Context(), strings.TrimSpace(req.Topic))})
}

func bindResearch(c *gin.Context) (research.Topic, bool) {
	var req ResearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return research.Topic{}, false
	}
	topic := req.toTopic()
	if topic.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "topic is required"})
		return research.Topic{}, false
	}
	return topic, true
}

func (h *Handler) runResearch(c *gin.Context) {
	topic, ok := bindResearch(c)
	if !ok {
		return
	}

	report, err := h.Service.Research(c.Request.Context(), topic)
	if err != nil {
		status := http.StatusBadGateway
		body := gin.H{"error": err.Error()}
		var pf *research.PipelineFailedError
		if errors.As(err, &pf) {
			body["stage"] = pf.Stage
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) streamResearch(c *gin.Context) {
	topic, ok := bindResearch(c)
	if !ok {
		return
	}

	startStream(c)
	for event := range h.Service.Stream(c.Request.Context(), topic) {
		if !writeEvent(c, event) {
			return
		}
	}
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content" binding:"required"`
}

func (h *Handler) sendMessage(c *gin.Context) {
	if h.Chat == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat agent is not configured"})
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	next, err := h.Chat.SendMessage(c.Request.Context(), req.SessionID, req.Content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	startStream(c)
	for event, err := range next {
		if err != nil {
			// If we encounter an error during the stream, we try to send it as an event
			writeEvent(c, chat.StreamEvent{Type: "error", Payload: err.Error()})
			return
		}
		if !writeEvent(c, event) {
			return
		}
	}
}

func startStream(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
}

// writeEvent sends v as one SSE data frame. It reports false once the client is gone.
func writeEvent(c *gin.Context, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	if _, err := c.Writer.Write([]byte("data: ")); err != nil {
		return false
	}
	_, _ = c.Writer.Write(data)
	_, _ = c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
	return c.Request.Context().Err() == nil
}
