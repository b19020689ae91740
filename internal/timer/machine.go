// Package timer implements the pomodoro state machine (idle, work, break,
// long break), the one second scheduling loop that drives it, and a
// write-behind decorator that keeps persistence off the caller's path.
package timer

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"focusflow/backend/internal/model"
)

const (
	titleWorkComplete = "Work session complete!"
	bodyLongBreak     = "Time for a long break!"
	bodyShortBreak    = "Time for a short break!"
	titleBreakOver    = "Break over!"
	bodyBreakOver     = "Ready to focus again?"
)

// Machine owns one TimerState and applies transitions to it. It is not safe
// for concurrent use; Runner serializes access.
type Machine struct {
	state     model.TimerState
	durations Durations
	store     Store
	notifier  Notifier
	now       func() time.Time
	newID     func() string
	logger    *slog.Logger
}

type Option func(*Machine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		if now != nil {
			m.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithIDGenerator replaces the CompletedSession id source.
func WithIDGenerator(newID func() string) Option {
	return func(m *Machine) {
		if newID != nil {
			m.newID = newID
		}
	}
}

// New restores the machine from store. A failed load falls back to the
// canonical idle state.
func New(ctx context.Context, store Store, notifier Notifier, durations Durations, opts ...Option) *Machine {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	m := &Machine{
		durations: durations.Normalized(),
		store:     store,
		notifier:  notifier,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.state = model.IdleState(m.durations.Work)
	loaded, err := store.LoadState(ctx)
	if err != nil {
		m.logger.Warn("load timer state, starting idle", "error", err)
		return m
	}
	m.state = m.normalize(loaded)
	return m
}

// Replace installs a state persisted elsewhere, repairing it like a
// restored one. Nothing is written back to the store.
func (m *Machine) Replace(state model.TimerState) model.TimerState {
	m.state = m.normalize(state)
	return m.State()
}

func (m *Machine) Durations() Durations {
	return m.durations
}

// State returns a copy of the current state.
func (m *Machine) State() model.TimerState {
	return m.state.Clone()
}

func (m *Machine) IsRunning() bool {
	return m.state.ActiveSince != nil
}

func (m *Machine) ProgressPercent() float64 {
	return ProgressPercent(m.state, m.durations)
}

func (m *Machine) CurrentSessionOrdinal() int {
	return SessionOrdinal(m.state, m.durations)
}

// Start begins a work interval from idle, or resumes the current phase.
// Calling it while running refreshes the start marker.
func (m *Machine) Start(ctx context.Context) model.TimerState {
	if err := m.notifier.RequestPermission(ctx); err != nil {
		m.logger.Debug("request notification permission", "error", err)
	}

	now := m.now()
	if m.state.Status == model.StatusIdle {
		m.state.Status = model.StatusWork
		m.state.TimeRemaining = m.durations.Work
	}
	m.state.ActiveSince = &now
	m.persist(ctx)
	return m.State()
}

func (m *Machine) Pause(ctx context.Context) model.TimerState {
	if m.state.ActiveSince == nil {
		return m.State()
	}
	m.state.ActiveSince = nil
	m.persist(ctx)
	return m.State()
}

// Reset returns to the canonical idle state. Session history is kept.
func (m *Machine) Reset(ctx context.Context) model.TimerState {
	m.state = model.IdleState(m.durations.Work)
	m.persist(ctx)
	return m.State()
}

// Skip ends the current phase immediately. Skipping work records the time
// spent so far; skipping a break (or idle) moves to a paused work phase.
func (m *Machine) Skip(ctx context.Context) model.TimerState {
	if m.state.Status == model.StatusWork {
		m.completeWork(ctx, m.durations.Work-m.state.TimeRemaining, false)
	} else {
		m.enterWork(ctx, false)
	}
	return m.State()
}

// Tick advances the active phase by one second. It is a no-op while paused.
func (m *Machine) Tick(ctx context.Context) model.TimerState {
	if m.state.ActiveSince == nil || m.state.TimeRemaining <= 0 {
		return m.State()
	}

	m.state.TimeRemaining--
	if m.state.TimeRemaining > 0 {
		m.persist(ctx)
		return m.State()
	}

	if m.state.Status == model.StatusWork {
		m.completeWork(ctx, m.durations.Work, true)
	} else {
		m.enterWork(ctx, true)
	}
	return m.State()
}

func (m *Machine) completeWork(ctx context.Context, duration int, notify bool) {
	if duration < 0 {
		duration = 0
	}
	completedAt := m.now()
	startedAt := completedAt
	if m.state.ActiveSince != nil && !m.state.ActiveSince.After(completedAt) {
		startedAt = *m.state.ActiveSince
	}

	session := model.CompletedSession{
		ID:          m.newID(),
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		Type:        model.SessionTypeWork,
		Duration:    duration,
	}
	if err := m.store.AppendCompletedSession(ctx, session); err != nil {
		m.logger.Warn("record completed session", "error", err, "session_id", session.ID)
	}

	m.state.SessionsCompleted++
	longBreak := m.state.SessionsCompleted%m.durations.SessionsBeforeLongBreak == 0
	if longBreak {
		m.state.Status = model.StatusLongBreak
		m.state.TimeRemaining = m.durations.LongBreak
	} else {
		m.state.Status = model.StatusBreak
		m.state.TimeRemaining = m.durations.ShortBreak
	}
	m.state.ActiveSince = nil
	m.persist(ctx)

	if notify {
		body := bodyShortBreak
		if longBreak {
			body = bodyLongBreak
		}
		m.alert(ctx, titleWorkComplete, body)
	}
}

func (m *Machine) enterWork(ctx context.Context, notify bool) {
	m.state.Status = model.StatusWork
	m.state.TimeRemaining = m.durations.Work
	m.state.ActiveSince = nil
	m.persist(ctx)

	if notify {
		m.alert(ctx, titleBreakOver, bodyBreakOver)
	}
}

func (m *Machine) persist(ctx context.Context) {
	if err := m.store.SaveState(ctx, m.State()); err != nil {
		m.logger.Warn("persist timer state", "error", err, "status", m.state.Status)
	}
}

func (m *Machine) alert(ctx context.Context, title, body string) {
	if err := m.notifier.Notify(ctx, title, body); err != nil {
		m.logger.Debug("send notification", "error", err, "title", title)
	}
}

// normalize repairs a loaded state so the machine invariants hold.
func (m *Machine) normalize(state model.TimerState) model.TimerState {
	if !state.Status.Valid() || state.Status == model.StatusIdle {
		return model.IdleState(m.durations.Work)
	}
	if state.SessionsCompleted < 0 {
		state.SessionsCompleted = 0
	}
	phase := m.durations.PhaseDuration(state.Status)
	if state.TimeRemaining <= 0 || state.TimeRemaining > phase {
		state.TimeRemaining = phase
		state.ActiveSince = nil
	}
	return state.Clone()
}
