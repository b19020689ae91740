package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "focusflow/backend/internal/errors"
	"focusflow/backend/internal/model"
	"focusflow/backend/internal/protocol"
	"focusflow/backend/internal/timer"
)

// StoreFactory returns the durable store of one user.
type StoreFactory func(userID string) timer.Store

// Realtime is the push channel to a user's connected clients.
type Realtime interface {
	Notifier(userID string) timer.Notifier
	Publish(userID, msgType string, payload interface{}) int
}

// TimerService keeps one running timer per user in memory. Timers are
// restored from the store on first use and keep ticking between requests.
type TimerService struct {
	stores    StoreFactory
	realtime  Realtime
	durations timer.Durations
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.Mutex
	timers map[string]*userTimer
	closed bool
	done   chan struct{}
}

type userTimer struct {
	runner   *timer.Runner
	store    *timer.WriteBehind
	lastUsed time.Time
}

const (
	// Paused timers untouched for this long are flushed and dropped from
	// memory; the next request restores them from the store.
	idleTimerTTL      = 10 * time.Minute
	evictInterval     = time.Minute
	evictFlushTimeout = 10 * time.Second
)

type StateView struct {
	Status                  model.TimerStatus `json:"status"`
	TimeRemaining           int               `json:"timeRemaining"`
	SessionsCompleted       int               `json:"sessionsCompleted"`
	ActiveSince             *time.Time        `json:"activeSince"`
	IsRunning               bool              `json:"isRunning"`
	ProgressPercent         float64           `json:"progressPercent"`
	CurrentSession          int               `json:"currentSession"`
	SessionsBeforeLongBreak int               `json:"sessionsBeforeLongBreak"`
	Display                 string            `json:"display"`
	Durations               timer.Durations   `json:"durations"`
	ServerTime              time.Time         `json:"serverTime"`
}

type ImportSessionInput struct {
	ID          string
	StartedAt   time.Time
	CompletedAt time.Time
	Type        string
	Duration    int
}

var errServiceClosed = errors.New("timer service closed")

func NewTimerService(
	stores StoreFactory,
	realtime Realtime,
	durations timer.Durations,
	interval time.Duration,
	logger *slog.Logger,
) *TimerService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &TimerService{
		stores:    stores,
		realtime:  realtime,
		durations: durations.Normalized(),
		interval:  interval,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		timers:    make(map[string]*userTimer),
		done:      make(chan struct{}),
	}
	go s.evictLoop()
	return s
}

func (s *TimerService) GetState(ctx context.Context, userID string) (*StateView, *apperrors.APIError) {
	ut, err := s.timerFor(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to load timer")
	}
	view := s.toStateView(ut.runner.State())
	return &view, nil
}

func (s *TimerService) Start(ctx context.Context, userID string) (*StateView, *apperrors.APIError) {
	return s.apply(ctx, userID, (*timer.Runner).Start)
}

func (s *TimerService) Pause(ctx context.Context, userID string) (*StateView, *apperrors.APIError) {
	return s.apply(ctx, userID, (*timer.Runner).Pause)
}

func (s *TimerService) Reset(ctx context.Context, userID string) (*StateView, *apperrors.APIError) {
	return s.apply(ctx, userID, (*timer.Runner).Reset)
}

func (s *TimerService) Skip(ctx context.Context, userID string) (*StateView, *apperrors.APIError) {
	return s.apply(ctx, userID, (*timer.Runner).Skip)
}

// Command runs a timer action received over a WebSocket connection. The
// resulting state reaches the clients through the change broadcast.
func (s *TimerService) Command(ctx context.Context, userID, action string) error {
	var apiErr *apperrors.APIError
	switch action {
	case protocol.ActionStart:
		_, apiErr = s.Start(ctx, userID)
	case protocol.ActionPause:
		_, apiErr = s.Pause(ctx, userID)
	case protocol.ActionReset:
		_, apiErr = s.Reset(ctx, userID)
	case protocol.ActionSkip:
		_, apiErr = s.Skip(ctx, userID)
	default:
		return fmt.Errorf("unknown timer action %q", action)
	}
	if apiErr != nil {
		return apiErr
	}
	return nil
}

// Snapshot returns the state view sent to a newly connected client.
func (s *TimerService) Snapshot(ctx context.Context, userID string) (interface{}, error) {
	view, apiErr := s.GetState(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	return view, nil
}

func (s *TimerService) ListSessions(ctx context.Context, userID string, dateRange model.DateRange) ([]model.CompletedSession, *apperrors.APIError) {
	if !dateRange.From.IsZero() && !dateRange.To.IsZero() && !dateRange.From.Before(dateRange.To) {
		return nil, apperrors.Validation("invalid date range", map[string]string{"to": "must be after from"})
	}

	ut, err := s.timerFor(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to load timer")
	}
	sessions, err := ut.store.ListCompletedSessions(ctx, dateRange)
	if err != nil {
		s.logger.Error("list completed sessions", "user_id", userID, "error", err)
		return nil, apperrors.Internal("failed to list sessions")
	}
	return sessions, nil
}

// ImportSession records a work session completed by a local-only client.
func (s *TimerService) ImportSession(ctx context.Context, userID string, input ImportSessionInput) (*model.CompletedSession, *apperrors.APIError) {
	fields := map[string]string{}
	if input.StartedAt.IsZero() {
		fields["startedAt"] = "is required"
	}
	if input.CompletedAt.IsZero() {
		fields["completedAt"] = "is required"
	}
	if !input.StartedAt.IsZero() && !input.CompletedAt.IsZero() && input.CompletedAt.Before(input.StartedAt) {
		fields["completedAt"] = "must not be before startedAt"
	}
	if input.Type == "" {
		input.Type = model.SessionTypeWork
	}
	if input.Type != model.SessionTypeWork {
		fields["type"] = "must be work"
	}
	if input.Duration < 0 {
		fields["duration"] = "must not be negative"
	}
	if len(fields) > 0 {
		return nil, apperrors.Validation("invalid session", fields)
	}

	session := model.CompletedSession{
		ID:          strings.TrimSpace(input.ID),
		StartedAt:   input.StartedAt.UTC(),
		CompletedAt: input.CompletedAt.UTC(),
		Type:        input.Type,
		Duration:    input.Duration,
	}
	if session.ID == "" {
		session.ID = uuid.NewString()
	}

	if err := s.stores(userID).AppendCompletedSession(ctx, session); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, apperrors.Conflict("session_exists", "session already recorded", map[string]string{"id": session.ID})
		}
		s.logger.Error("import completed session", "user_id", userID, "error", err)
		return nil, apperrors.Internal("failed to record session")
	}
	return &session, nil
}

// Close stops every timer and drains pending writes.
func (s *TimerService) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	timers := make([]*userTimer, 0, len(s.timers))
	for _, ut := range s.timers {
		timers = append(timers, ut)
	}
	s.mu.Unlock()

	return closeTimers(ctx, timers)
}

func closeTimers(ctx context.Context, timers []*userTimer) error {
	var errs []error
	for _, ut := range timers {
		ut.runner.Close()
		if err := ut.store.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *TimerService) evictLoop() {
	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), evictFlushTimeout)
			s.evictIdle(ctx, idleTimerTTL)
			cancel()
		}
	}
}

// evictIdle drops timers that are not ticking and were last used at least
// maxIdle ago, after flushing their pending writes.
func (s *TimerService) evictIdle(ctx context.Context, maxIdle time.Duration) int {
	now := time.Now()
	var idle []*userTimer
	s.mu.Lock()
	for userID, ut := range s.timers {
		if ut.runner.Running() || now.Sub(ut.lastUsed) < maxIdle {
			continue
		}
		delete(s.timers, userID)
		idle = append(idle, ut)
	}
	s.mu.Unlock()

	if err := closeTimers(ctx, idle); err != nil {
		s.logger.Warn("flush evicted timers", "error", err)
	}
	if len(idle) > 0 {
		s.logger.Debug("evicted idle timers", "count", len(idle))
	}
	return len(idle)
}

func (s *TimerService) apply(
	ctx context.Context,
	userID string,
	op func(*timer.Runner, context.Context) model.TimerState,
) (*StateView, *apperrors.APIError) {
	ut, err := s.timerFor(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to load timer")
	}
	view := s.toStateView(op(ut.runner, ctx))
	return &view, nil
}

func (s *TimerService) timerFor(ctx context.Context, userID string) (*userTimer, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errServiceClosed
	}
	if ut, ok := s.timers[userID]; ok {
		ut.lastUsed = time.Now()
		s.mu.Unlock()
		return ut, nil
	}
	s.mu.Unlock()

	// Restoring reads the store, so it runs without holding s.mu.
	logger := s.logger.With("user_id", userID)
	store := timer.NewWriteBehind(s.stores(userID), logger)
	machine := timer.New(ctx, store, s.realtime.Notifier(userID), s.durations,
		timer.WithClock(s.now),
		timer.WithLogger(logger),
	)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.timers[userID] != nil {
		if err := store.Close(ctx); err != nil {
			logger.Warn("close unused timer store", "error", err)
		}
		if s.closed {
			return nil, errServiceClosed
		}
		ut := s.timers[userID]
		ut.lastUsed = time.Now()
		return ut, nil
	}

	runner := timer.NewRunner(machine, s.interval, func(state model.TimerState) {
		s.realtime.Publish(userID, protocol.TypeTimerState, s.toStateView(state))
	})
	// A timer that was running when the process stopped continues from the
	// persisted remaining time.
	runner.Resume()

	ut := &userTimer{runner: runner, store: store, lastUsed: time.Now()}
	s.timers[userID] = ut
	logger.Debug("timer restored", "status", runner.State().Status)
	return ut, nil
}

func (s *TimerService) toStateView(state model.TimerState) StateView {
	return StateView{
		Status:                  state.Status,
		TimeRemaining:           state.TimeRemaining,
		SessionsCompleted:       state.SessionsCompleted,
		ActiveSince:             state.ActiveSince,
		IsRunning:               state.ActiveSince != nil,
		ProgressPercent:         timer.ProgressPercent(state, s.durations),
		CurrentSession:          timer.SessionOrdinal(state, s.durations),
		SessionsBeforeLongBreak: s.durations.SessionsBeforeLongBreak,
		Display:                 timer.FormatSeconds(state.TimeRemaining),
		Durations:               s.durations,
		ServerTime:              s.now(),
	}
}
