package timer

import (
	"fmt"

	"focusflow/backend/internal/model"
)

// Durations holds the phase lengths in seconds and the long break cadence.
type Durations struct {
	Work                    int `json:"workDurationSeconds" yaml:"work_duration_seconds"`
	ShortBreak              int `json:"shortBreakDurationSeconds" yaml:"short_break_duration_seconds"`
	LongBreak               int `json:"longBreakDurationSeconds" yaml:"long_break_duration_seconds"`
	SessionsBeforeLongBreak int `json:"sessionsBeforeLongBreak" yaml:"sessions_before_long_break"`
}

func DefaultDurations() Durations {
	return Durations{
		Work:                    model.DefaultWorkDurationSeconds,
		ShortBreak:              model.DefaultShortBreakDurationSeconds,
		LongBreak:               model.DefaultLongBreakDurationSeconds,
		SessionsBeforeLongBreak: model.DefaultSessionsBeforeLongBreak,
	}
}

// Normalized replaces every non-positive field with its default.
func (d Durations) Normalized() Durations {
	defaults := DefaultDurations()
	if d.Work <= 0 {
		d.Work = defaults.Work
	}
	if d.ShortBreak <= 0 {
		d.ShortBreak = defaults.ShortBreak
	}
	if d.LongBreak <= 0 {
		d.LongBreak = defaults.LongBreak
	}
	if d.SessionsBeforeLongBreak <= 0 {
		d.SessionsBeforeLongBreak = defaults.SessionsBeforeLongBreak
	}
	return d
}

// PhaseDuration is the nominal length of status. Idle counts as work.
func (d Durations) PhaseDuration(status model.TimerStatus) int {
	switch status {
	case model.StatusBreak:
		return d.ShortBreak
	case model.StatusLongBreak:
		return d.LongBreak
	default:
		return d.Work
	}
}

// ProgressPercent reports how much of the current phase has elapsed, 0-100.
func ProgressPercent(state model.TimerState, d Durations) float64 {
	total := d.PhaseDuration(state.Status)
	if total <= 0 {
		return 0
	}
	return float64(total-state.TimeRemaining) / float64(total) * 100
}

// SessionOrdinal is the 1-based position of the current work interval in
// the cycle leading up to a long break.
func SessionOrdinal(state model.TimerState, d Durations) int {
	if d.SessionsBeforeLongBreak <= 0 {
		return 1
	}
	return state.SessionsCompleted%d.SessionsBeforeLongBreak + 1
}

// FormatSeconds renders seconds as mm:ss.
func FormatSeconds(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
