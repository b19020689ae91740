package model

import "time"

type TimerStatus string

const (
	StatusIdle      TimerStatus = "idle"
	StatusWork      TimerStatus = "work"
	StatusBreak     TimerStatus = "break"
	StatusLongBreak TimerStatus = "longBreak"
)

// Valid reports whether s is one of the four timer phases.
func (s TimerStatus) Valid() bool {
	switch s {
	case StatusIdle, StatusWork, StatusBreak, StatusLongBreak:
		return true
	}
	return false
}

const SessionTypeWork = "work"

const (
	DefaultWorkDurationSeconds       = 25 * 60
	DefaultShortBreakDurationSeconds = 5 * 60
	DefaultLongBreakDurationSeconds  = 15 * 60
	DefaultSessionsBeforeLongBreak   = 4
)

// TimerState is the persisted pomodoro timer of a single user.
// ActiveSince is nil while the timer is idle or paused.
type TimerState struct {
	Status            TimerStatus `json:"status" yaml:"status"`
	TimeRemaining     int         `json:"timeRemaining" yaml:"time_remaining"`
	SessionsCompleted int         `json:"sessionsCompleted" yaml:"sessions_completed"`
	ActiveSince       *time.Time  `json:"activeSince" yaml:"active_since,omitempty"`
}

// Clone returns a copy that does not share ActiveSince with s.
func (s TimerState) Clone() TimerState {
	if s.ActiveSince != nil {
		activeSince := *s.ActiveSince
		s.ActiveSince = &activeSince
	}
	return s
}

// Equal reports whether both states hold the same values.
func (s TimerState) Equal(other TimerState) bool {
	if s.Status != other.Status || s.TimeRemaining != other.TimeRemaining || s.SessionsCompleted != other.SessionsCompleted {
		return false
	}
	if s.ActiveSince == nil || other.ActiveSince == nil {
		return s.ActiveSince == nil && other.ActiveSince == nil
	}
	return s.ActiveSince.Equal(*other.ActiveSince)
}

// IdleState returns the canonical post-reset state for the given work duration.
func IdleState(workSeconds int) TimerState {
	return TimerState{
		Status:        StatusIdle,
		TimeRemaining: workSeconds,
	}
}

// CompletedSession is an immutable record of a finished or skipped work interval.
type CompletedSession struct {
	ID          string    `json:"id" yaml:"id"`
	StartedAt   time.Time `json:"startedAt" yaml:"started_at"`
	CompletedAt time.Time `json:"completedAt" yaml:"completed_at"`
	Type        string    `json:"type" yaml:"type"`
	Duration    int       `json:"duration" yaml:"duration"`
}

// DateRange bounds CompletedSession.StartedAt. From is inclusive, To is
// exclusive; a zero bound is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}

// DailySummary aggregates the work sessions started on one UTC day.
type DailySummary struct {
	Date         string `json:"date"`
	Sessions     int    `json:"sessions"`
	TotalMinutes int    `json:"totalMinutes"`
	TotalTime    string `json:"totalTime"`
}
