package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"focusflow/backend/internal/model"
	"focusflow/backend/internal/timer"
)

// TimerRepository persists timer states and completed sessions for all
// users. ForUser narrows it to the timer.Store of one user.
type TimerRepository struct {
	db          *sql.DB
	workSeconds int
}

func NewTimerRepository(db *sql.DB, workSeconds int) *TimerRepository {
	return &TimerRepository{db: db, workSeconds: workSeconds}
}

func (r *TimerRepository) ForUser(userID string) *UserTimerStore {
	return &UserTimerStore{repo: r, userID: userID}
}

func (r *TimerRepository) GetState(ctx context.Context, userID string) (*model.TimerState, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT status, time_remaining, sessions_completed, active_since
		 FROM timer_states WHERE user_id = ?`,
		userID,
	)

	var state model.TimerState
	var status string
	var activeSince sql.NullString
	if err := row.Scan(&status, &state.TimeRemaining, &state.SessionsCompleted, &activeSince); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get timer state: %w", err)
	}
	state.Status = model.TimerStatus(status)

	parsed, err := parseNullableTime(activeSince)
	if err != nil {
		return nil, fmt.Errorf("parse state active_since: %w", err)
	}
	state.ActiveSince = parsed
	return &state, nil
}

// UpsertState overwrites the user's state. Concurrent writers are
// last-write-wins.
func (r *TimerRepository) UpsertState(ctx context.Context, userID string, state model.TimerState) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO timer_states (
			user_id, status, time_remaining, sessions_completed, active_since, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			status = excluded.status,
			time_remaining = excluded.time_remaining,
			sessions_completed = excluded.sessions_completed,
			active_since = excluded.active_since,
			updated_at = excluded.updated_at`,
		userID,
		string(state.Status),
		state.TimeRemaining,
		state.SessionsCompleted,
		formatNullableTime(state.ActiveSince),
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("upsert timer state: %w", err)
	}
	return nil
}

func (r *TimerRepository) InsertSession(ctx context.Context, userID string, session model.CompletedSession) error {
	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO completed_sessions (
			id, user_id, type, duration_seconds, started_at, completed_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		userID,
		session.Type,
		session.Duration,
		formatTime(session.StartedAt),
		formatTime(session.CompletedAt),
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert completed session: %w", err)
	}
	return nil
}

func (r *TimerRepository) ListSessions(ctx context.Context, userID string, dateRange model.DateRange) ([]model.CompletedSession, error) {
	query := `SELECT id, type, duration_seconds, started_at, completed_at
		 FROM completed_sessions
		 WHERE user_id = ?`
	args := []interface{}{userID}
	if !dateRange.From.IsZero() {
		query += ` AND started_at >= ?`
		args = append(args, formatTime(dateRange.From))
	}
	if !dateRange.To.IsZero() {
		query += ` AND started_at < ?`
		args = append(args, formatTime(dateRange.To))
	}
	query += ` ORDER BY started_at ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list completed sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]model.CompletedSession, 0)
	for rows.Next() {
		var session model.CompletedSession
		var startedAt string
		var completedAt string
		if err := rows.Scan(&session.ID, &session.Type, &session.Duration, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan completed session: %w", err)
		}
		if session.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("parse session started_at: %w", err)
		}
		if session.CompletedAt, err = parseTime(completedAt); err != nil {
			return nil, fmt.Errorf("parse session completed_at: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completed sessions: %w", err)
	}
	return sessions, nil
}

// UserTimerStore is the networked timer.Store of a single user.
type UserTimerStore struct {
	repo   *TimerRepository
	userID string
}

func (s *UserTimerStore) LoadState(ctx context.Context) (model.TimerState, error) {
	state, err := s.repo.GetState(ctx, s.userID)
	if errors.Is(err, ErrNotFound) {
		return model.IdleState(s.repo.workSeconds), nil
	}
	if err != nil {
		return model.IdleState(s.repo.workSeconds), err
	}
	return *state, nil
}

func (s *UserTimerStore) SaveState(ctx context.Context, state model.TimerState) error {
	return s.repo.UpsertState(ctx, s.userID, state)
}

func (s *UserTimerStore) AppendCompletedSession(ctx context.Context, session model.CompletedSession) error {
	return s.repo.InsertSession(ctx, s.userID, session)
}

func (s *UserTimerStore) ListCompletedSessions(ctx context.Context, dateRange model.DateRange) ([]model.CompletedSession, error) {
	return s.repo.ListSessions(ctx, s.userID, dateRange)
}

var _ timer.Store = (*UserTimerStore)(nil)
