package logging

import (
	"context"
	"log/slog"
)

// ContextProvider returns the attributes describing what the process is doing
// right now, such as the match code, local player and match status.
type ContextProvider func() []slog.Attr

// ContextHandler adds the provider's attributes to every record. Keys the
// logger already carries through With are not repeated, and empty values are
// left out so records logged before a match exists stay short.
type ContextHandler struct {
	inner    slog.Handler
	provider ContextProvider
	bound    map[string]bool
}

// NewContextHandler wraps inner with the dynamic attributes from provider.
func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{inner: inner, provider: provider}
}

// Enabled delegates to the inner handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle appends the context attributes and delegates to the inner handler.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider == nil {
		return h.inner.Handle(ctx, r)
	}
	own := make(map[string]bool, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		own[a.Key] = true
		return true
	})
	for _, a := range h.provider() {
		if h.bound[a.Key] || own[a.Key] {
			continue
		}
		if a.Value.Kind() == slog.KindString && a.Value.String() == "" {
			continue
		}
		r.AddAttrs(a)
	}
	return h.inner.Handle(ctx, r)
}

// WithAttrs remembers the bound keys so the provider does not repeat them.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := make(map[string]bool, len(h.bound)+len(attrs))
	for k := range h.bound {
		bound[k] = true
	}
	for _, a := range attrs {
		bound[a.Key] = true
	}
	return &ContextHandler{
		inner:    h.inner.WithAttrs(attrs),
		provider: h.provider,
		bound:    bound,
	}
}

// WithGroup returns a new ContextHandler with the given group.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{
		inner:    h.inner.WithGroup(name),
		provider: h.provider,
		bound:    h.bound,
	}
}
