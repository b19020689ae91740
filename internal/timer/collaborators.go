package timer

import (
	"context"

	"focusflow/backend/internal/model"
)

// Store persists one user's timer state and session history.
//
// LoadState returns the canonical idle state when nothing was saved yet.
// ListCompletedSessions returns sessions ordered by StartedAt.
type Store interface {
	LoadState(ctx context.Context) (model.TimerState, error)
	SaveState(ctx context.Context, state model.TimerState) error
	AppendCompletedSession(ctx context.Context, session model.CompletedSession) error
	ListCompletedSessions(ctx context.Context, dateRange model.DateRange) ([]model.CompletedSession, error)
}

// Notifier delivers human readable alerts. Implementations must not block
// for long; the machine ignores their errors.
type Notifier interface {
	RequestPermission(ctx context.Context) error
	Notify(ctx context.Context, title, body string) error
}

type nopNotifier struct{}

func (nopNotifier) RequestPermission(context.Context) error      { return nil }
func (nopNotifier) Notify(context.Context, string, string) error { return nil }
