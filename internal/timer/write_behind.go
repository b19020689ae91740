package timer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"focusflow/backend/internal/model"
)

var ErrStoreClosed = errors.New("store closed")

const defaultWriteTimeout = 5 * time.Second

type writeOp struct {
	state   *model.TimerState
	session *model.CompletedSession
}

// WriteBehind makes SaveState and AppendCompletedSession fire-and-forget.
// Writes are applied in order by a single worker; queued SaveState calls
// that follow each other collapse into the latest one. Failures are logged
// and dropped.
type WriteBehind struct {
	store   Store
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	queue   []writeOp
	busy    bool
	closed  bool
	waiters []chan struct{}

	wake chan struct{}
	done chan struct{}
}

func NewWriteBehind(store Store, logger *slog.Logger) *WriteBehind {
	if logger == nil {
		logger = slog.Default()
	}
	w := &WriteBehind{
		store:   store,
		logger:  logger,
		timeout: defaultWriteTimeout,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *WriteBehind) LoadState(ctx context.Context) (model.TimerState, error) {
	return w.store.LoadState(ctx)
}

func (w *WriteBehind) SaveState(_ context.Context, state model.TimerState) error {
	state = state.Clone()
	return w.enqueue(writeOp{state: &state})
}

func (w *WriteBehind) AppendCompletedSession(_ context.Context, session model.CompletedSession) error {
	return w.enqueue(writeOp{session: &session})
}

// ListCompletedSessions waits for queued writes so callers read their own
// appends.
func (w *WriteBehind) ListCompletedSessions(ctx context.Context, dateRange model.DateRange) ([]model.CompletedSession, error) {
	if err := w.Flush(ctx); err != nil {
		return nil, fmt.Errorf("flush pending writes: %w", err)
	}
	return w.store.ListCompletedSessions(ctx, dateRange)
}

// Flush blocks until every write queued before the call has been applied.
func (w *WriteBehind) Flush(ctx context.Context) error {
	w.mu.Lock()
	if len(w.queue) == 0 && !w.busy {
		w.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	w.waiters = append(w.waiters, ch)
	w.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the queue and stops the worker.
func (w *WriteBehind) Close(ctx context.Context) error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.signal()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *WriteBehind) enqueue(op writeOp) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrStoreClosed
	}
	if n := len(w.queue); op.state != nil && n > 0 && w.queue[n-1].state != nil {
		w.queue[n-1] = op
	} else {
		w.queue = append(w.queue, op)
	}
	w.mu.Unlock()
	w.signal()
	return nil
}

func (w *WriteBehind) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *WriteBehind) run() {
	defer close(w.done)

	for {
		w.mu.Lock()
		w.busy = false
		for len(w.queue) == 0 {
			for _, ch := range w.waiters {
				close(ch)
			}
			w.waiters = nil
			if w.closed {
				w.mu.Unlock()
				return
			}
			w.mu.Unlock()
			<-w.wake
			w.mu.Lock()
		}
		op := w.queue[0]
		w.queue = w.queue[1:]
		w.busy = true
		w.mu.Unlock()

		w.apply(op)
	}
}

func (w *WriteBehind) apply(op writeOp) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	switch {
	case op.state != nil:
		if err := w.store.SaveState(ctx, *op.state); err != nil {
			w.logger.Warn("write-behind save state", "error", err)
		}
	case op.session != nil:
		if err := w.store.AppendCompletedSession(ctx, *op.session); err != nil {
			w.logger.Warn("write-behind append session", "error", err, "session_id", op.session.ID)
		}
	}
}
