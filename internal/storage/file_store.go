package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"focusflow/backend/internal/model"
	"focusflow/backend/internal/timer"
)

const (
	StateFileName    = "state.yaml"
	SessionsFileName = "sessions.yaml"
)

type yamlSessions struct {
	Sessions []model.CompletedSession `yaml:"sessions"`
}

// FileStore is the local-only store: the timer state and the session
// history live in two YAML files under one directory. Writes replace the
// file atomically, so concurrent processes see last-write-wins.
type FileStore struct {
	mu          sync.Mutex
	dir         string
	workSeconds int
}

func NewFileStore(dir string, workSeconds int) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("storage dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{dir: dir, workSeconds: workSeconds}, nil
}

// DefaultDir resolves <user config dir>/<appName>.
func DefaultDir(appName string) (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(configDir, appName), nil
}

func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) StatePath() string {
	return filepath.Join(s.dir, StateFileName)
}

func (s *FileStore) LoadState(context.Context) (model.TimerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := model.IdleState(s.workSeconds)
	raw, err := os.ReadFile(s.StatePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return state, nil
		}
		return state, fmt.Errorf("read state file: %w", err)
	}

	var loaded model.TimerState
	if err := yaml.Unmarshal(raw, &loaded); err != nil {
		return state, fmt.Errorf("parse state yaml: %w", err)
	}
	return loaded, nil
}

func (s *FileStore) SaveState(_ context.Context, state model.TimerState) error {
	serialized, err := yaml.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state yaml: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return AtomicWriteFile(s.StatePath(), serialized, 0o644)
}

func (s *FileStore) AppendCompletedSession(_ context.Context, session model.CompletedSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.readSessionsLocked()
	if err != nil {
		return err
	}
	history.Sessions = append(history.Sessions, session)

	serialized, err := yaml.Marshal(history)
	if err != nil {
		return fmt.Errorf("marshal sessions yaml: %w", err)
	}
	return AtomicWriteFile(filepath.Join(s.dir, SessionsFileName), serialized, 0o644)
}

func (s *FileStore) ListCompletedSessions(_ context.Context, dateRange model.DateRange) ([]model.CompletedSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.readSessionsLocked()
	if err != nil {
		return nil, err
	}
	return filterSessions(history.Sessions, dateRange), nil
}

func (s *FileStore) readSessionsLocked() (yamlSessions, error) {
	var history yamlSessions
	raw, err := os.ReadFile(filepath.Join(s.dir, SessionsFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return history, nil
		}
		return history, fmt.Errorf("read sessions file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &history); err != nil {
		return history, fmt.Errorf("parse sessions yaml: %w", err)
	}
	return history, nil
}

var _ timer.Store = (*FileStore)(nil)
