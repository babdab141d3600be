package logging

import (
	"context"
	"errors"
	"log/slog"
)

// fanoutHandler duplicates each record onto every sink. A record is
// cloned per sink because slog.Record carries shared state that a
// handler may consume.
type fanoutHandler struct {
	sinks []slog.Handler
}

func newFanoutHandler(sinks ...slog.Handler) slog.Handler {
	return &fanoutHandler{sinks: sinks}
}

// Enabled reports true when at least one sink would accept the level;
// per-sink gating happens again in Handle.
func (f *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, sink := range f.sinks {
		if sink.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, sink := range f.sinks {
		if !sink.Enabled(ctx, r.Level) {
			continue
		}
		if err := sink.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, 0, len(f.sinks))
	for _, sink := range f.sinks {
		out = append(out, sink.WithAttrs(attrs))
	}
	return &fanoutHandler{sinks: out}
}

func (f *fanoutHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, 0, len(f.sinks))
	for _, sink := range f.sinks {
		out = append(out, sink.WithGroup(name))
	}
	return &fanoutHandler{sinks: out}
}
