package server

import (
	"context"
	"log/slog"
	"time"
)

// LogEntry is a log record as sent to stream clients.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata"`
}

// EventLogHandler is a slog.Handler that emits records as "log" events and
// optionally passes them on to another handler.
type EventLogHandler struct {
	emit  func(Event)
	next  slog.Handler
	level slog.Leveler
	attrs []slog.Attr
	group string
}

func NewEventLogHandler(emit func(Event), next slog.Handler) *EventLogHandler {
	return &EventLogHandler{emit: emit, next: next, level: slog.LevelInfo}
}

func (h *EventLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level() || (h.next != nil && h.next.Enabled(ctx, level))
}

func (h *EventLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.level.Level() {
		meta := make(map[string]any, len(h.attrs)+r.NumAttrs())
		for _, a := range h.attrs {
			meta[a.Key] = a.Value.Any()
		}
		r.Attrs(func(a slog.Attr) bool {
			key := a.Key
			if h.group != "" {
				key = h.group + "." + key
			}
			meta[key] = attrValue(a.Value)
			return true
		})
		h.emit(Event{Type: "log", Payload: LogEntry{
			Timestamp: r.Time,
			Level:     r.Level.String(),
			Message:   r.Message,
			Metadata:  meta,
		}})
	}

	if h.next != nil && h.next.Enabled(ctx, r.Level) {
		return h.next.Handle(ctx, r)
	}
	return nil
}

// attrValue keeps errors readable once marshalled to JSON.
func attrValue(v slog.Value) any {
	v = v.Resolve()
	if err, ok := v.Any().(error); ok {
		return err.Error()
	}
	return v.Any()
}

func (h *EventLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	if h.next != nil {
		clone.next = h.next.WithAttrs(attrs)
	}
	return &clone
}

func (h *EventLogHandler) WithGroup(name string) slog.Handler {
	clone := *h
	if clone.group != "" {
		clone.group += "." + name
	} else {
		clone.group = name
	}
	if h.next != nil {
		clone.next = h.next.WithGroup(name)
	}
	return &clone
}
