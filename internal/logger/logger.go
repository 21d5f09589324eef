// Package logger wires slog for the binaries and lets request- or
// journal-scoped attributes ride along on a context.
package logger

import (
	"context"
	"io"
	"log/slog"
	"slices"
)

type contextKey string

const attrKey contextKey = "attrKey"

// ContextHandler implements [slog.Handler] and appends to every record the
// attributes stored on the context by [Ctx].
type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(handler slog.Handler) ContextHandler {
	return ContextHandler{Handler: handler}
}

// Handle implements [slog.Handler].
func (h ContextHandler) Handle(ctx context.Context, record slog.Record) error {
	if attrs := attrsFrom(ctx); len(attrs) > 0 {
		record.AddAttrs(attrs...)
	}

	return h.Handler.Handle(ctx, record)
}

// WithAttrs keeps the context behaviour on derived handlers.
func (h ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h ContextHandler) WithGroup(name string) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithGroup(name)}
}

// Ctx returns a child context carrying toAppend on top of whatever the
// parent already had. The parent's attributes are never mutated.
func Ctx(ctx context.Context, toAppend ...slog.Attr) context.Context {
	attrs := slices.Clone(attrsFrom(ctx))
	attrs = append(attrs, toAppend...)
	return context.WithValue(ctx, attrKey, attrs)
}

func attrsFrom(ctx context.Context) []slog.Attr {
	attrs, _ := ctx.Value(attrKey).([]slog.Attr)
	return attrs
}

// New builds the process logger: "json" selects the JSON handler, anything
// else gets text.
func New(format string, w io.Writer) *slog.Logger {
	var handler slog.Handler = slog.NewTextHandler(w, nil)
	if format == "json" {
		handler = slog.NewJSONHandler(w, nil)
	}

	return slog.New(NewContextHandler(handler))
}
