// Package notify provides timer.Notifier implementations for processes
// without a browser: a terminal writer, a structured log sink and a fan-out.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"focusflow/backend/internal/timer"
)

// Writer prints notifications to a terminal, optionally ringing the bell.
// Permission is implicit.
type Writer struct {
	mu   sync.Mutex
	out  io.Writer
	bell bool
}

func NewWriter(out io.Writer, bell bool) *Writer {
	return &Writer{out: out, bell: bell}
}

func (w *Writer) RequestPermission(context.Context) error {
	return nil
}

func (w *Writer) Notify(_ context.Context, title, body string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	prefix := ""
	if w.bell {
		prefix = "\a"
	}
	if _, err := fmt.Fprintf(w.out, "%s%s %s\n", prefix, title, body); err != nil {
		return fmt.Errorf("write notification: %w", err)
	}
	return nil
}

// Log records notifications at info level.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) RequestPermission(context.Context) error {
	return nil
}

func (l *Log) Notify(ctx context.Context, title, body string) error {
	l.logger.InfoContext(ctx, "timer notification", "title", title, "body", body)
	return nil
}

// Multi delivers to every notifier and joins their errors.
type Multi []timer.Notifier

func (m Multi) RequestPermission(ctx context.Context) error {
	var errs []error
	for _, n := range m {
		if err := n.RequestPermission(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Notify(ctx context.Context, title, body string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, title, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ timer.Notifier = (*Writer)(nil)
	_ timer.Notifier = (*Log)(nil)
	_ timer.Notifier = Multi(nil)
)
