package timer

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"focusflow/backend/internal/model"
)

var errUnavailable = errors.New("store unavailable")

// recordingStore is an in-memory Store that records every write.
type recordingStore struct {
	mu       sync.Mutex
	state    *model.TimerState
	saves    []model.TimerState
	sessions []model.CompletedSession
	loadErr  error
	writeErr error
	block    chan struct{}
}

func (s *recordingStore) LoadState(context.Context) (model.TimerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return model.TimerState{}, s.loadErr
	}
	if s.state == nil {
		return model.IdleState(model.DefaultWorkDurationSeconds), nil
	}
	return s.state.Clone(), nil
}

func (s *recordingStore) SaveState(_ context.Context, state model.TimerState) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	saved := state.Clone()
	s.state = &saved
	s.saves = append(s.saves, saved)
	return nil
}

func (s *recordingStore) AppendCompletedSession(_ context.Context, session model.CompletedSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.sessions = append(s.sessions, session)
	return nil
}

func (s *recordingStore) ListCompletedSessions(_ context.Context, dateRange model.DateRange) ([]model.CompletedSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.CompletedSession, 0, len(s.sessions))
	for _, session := range s.sessions {
		if dateRange.Contains(session.StartedAt) {
			out = append(out, session)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (s *recordingStore) savedStates() []model.TimerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.TimerState(nil), s.saves...)
}

func (s *recordingStore) completed() []model.CompletedSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.CompletedSession(nil), s.sessions...)
}

type notification struct {
	title string
	body  string
}

type recordingNotifier struct {
	mu            sync.Mutex
	requests      int
	notifications []notification
	err           error
}

func (n *recordingNotifier) RequestPermission(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requests++
	return n.err
}

func (n *recordingNotifier) Notify(_ context.Context, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notification{title: title, body: body})
	return n.err
}

func (n *recordingNotifier) sent() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification(nil), n.notifications...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
