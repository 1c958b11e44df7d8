// Package log builds the slog logger used across the service. A
// context aware handler stamps per command attributes (subcommand,
// pid, run id) on every record without threading a logger through
// each call site.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type attrsKey struct{}

// ContextAttrs returns a context carrying attrs; every record logged
// with that context includes them. Repeated calls accumulate, and the
// stored slice is copied so derived contexts never alias each other.
func ContextAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	prev, _ := ctx.Value(attrsKey{}).([]slog.Attr)
	merged := make([]slog.Attr, 0, len(prev)+len(attrs))
	merged = append(merged, prev...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, attrsKey{}, merged)
}

// ContextHandler decorates records with the attributes carried by the
// logging context.
type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(h slog.Handler) ContextHandler {
	return ContextHandler{Handler: h}
}

func (h ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(attrsKey{}).([]slog.Attr); ok {
		r.AddAttrs(attrs...)
	}
	return h.Handler.Handle(ctx, r)
}

// New builds the stderr JSON logger. Verbose lowers the level to
// debug.
func New(verbose bool) *slog.Logger {
	return NewWriter(os.Stderr, verbose)
}

// NewWriter is New with an explicit sink, used by tests.
func NewWriter(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	base := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(NewContextHandler(base))
}
