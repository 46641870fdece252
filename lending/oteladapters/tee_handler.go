package oteladapters

import (
	"context"
	"errors"
	"log/slog"
)

// teeHandler passes each record to every handler that is enabled for its level.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

func (t teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error

	for _, h := range t {
		if !h.Enabled(ctx, record.Level) {
			continue
		}

		if err := h.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make(teeHandler, len(t))
	for i, h := range t {
		handlers[i] = h.WithAttrs(attrs)
	}

	return handlers
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	handlers := make(teeHandler, len(t))
	for i, h := range t {
		handlers[i] = h.WithGroup(name)
	}

	return handlers
}
