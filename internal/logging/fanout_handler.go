package logging

import (
	"context"
	"log/slog"
)

// fanoutHandler forwards each record to every child that accepts its level.
type fanoutHandler struct {
	handlers []slog.Handler
}

func newFanoutHandler(handlers ...slog.Handler) slog.Handler {
	filtered := make([]slog.Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			filtered = append(filtered, h)
		}
	}
	switch len(filtered) {
	case 0:
		return NoopHandler{}
	case 1:
		return filtered[0]
	default:
		return &fanoutHandler{handlers: filtered}
	}
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for idx, handler := range h.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		rec := record
		if idx < len(h.handlers)-1 {
			rec = record.Clone()
		}
		if err := handler.Handle(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: next}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &fanoutHandler{handlers: next}
}

// TeeLogger duplicates log output from base into the provided handlers.
func TeeLogger(base *slog.Logger, handlers ...slog.Handler) *slog.Logger {
	if base == nil {
		return slog.New(newFanoutHandler(handlers...))
	}
	all := append([]slog.Handler{base.Handler()}, handlers...)
	return slog.New(newFanoutHandler(all...))
}

// decisionHandler passes through only records that carry a decision_type
// attribute, either bound via With or attached to the record itself.
type decisionHandler struct {
	next  slog.Handler
	bound bool
}

// NewDecisionHandler wraps next so it only receives decision records. The
// daemon tees one of these into the audit log.
func NewDecisionHandler(next slog.Handler) slog.Handler {
	if next == nil {
		return NoopHandler{}
	}
	return &decisionHandler{next: next}
}

func (h *decisionHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *decisionHandler) Handle(ctx context.Context, record slog.Record) error {
	if !h.bound && !recordHasKey(record, FieldDecisionType) {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *decisionHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &decisionHandler{next: h.next.WithAttrs(attrs), bound: h.bound || HasAttrKey(attrs, FieldDecisionType)}
}

func (h *decisionHandler) WithGroup(name string) slog.Handler {
	return &decisionHandler{next: h.next.WithGroup(name), bound: h.bound}
}

func recordHasKey(record slog.Record, key string) bool {
	found := false
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == key {
			found = true
			return false
		}
		return true
	})
	return found
}
