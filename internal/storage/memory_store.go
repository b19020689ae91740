package storage

import (
	"context"
	"sync"

	"focusflow/backend/internal/model"
	"focusflow/backend/internal/timer"
)

// MemoryStore keeps timer state in process memory. Used by tests and as a
// throwaway store when no persistence is configured.
type MemoryStore struct {
	mu          sync.RWMutex
	workSeconds int
	state       *model.TimerState
	sessions    []model.CompletedSession
}

func NewMemoryStore(workSeconds int) *MemoryStore {
	return &MemoryStore{workSeconds: workSeconds}
}

func (s *MemoryStore) LoadState(context.Context) (model.TimerState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return model.IdleState(s.workSeconds), nil
	}
	return s.state.Clone(), nil
}

func (s *MemoryStore) SaveState(_ context.Context, state model.TimerState) error {
	state = state.Clone()
	s.mu.Lock()
	s.state = &state
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) AppendCompletedSession(_ context.Context, session model.CompletedSession) error {
	s.mu.Lock()
	s.sessions = append(s.sessions, session)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListCompletedSessions(_ context.Context, dateRange model.DateRange) ([]model.CompletedSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterSessions(s.sessions, dateRange), nil
}

var _ timer.Store = (*MemoryStore)(nil)
