package service

import (
	"context"
	"fmt"
	"time"

	apperrors "focusflow/backend/internal/errors"
	"focusflow/backend/internal/model"
)

const (
	DefaultSummaryDays = 7
	MaxSummaryDays     = 31
	summaryDateLayout  = "2006-01-02"
)

type Summary struct {
	Today model.DailySummary   `json:"today"`
	Days  []model.DailySummary `json:"days"`
}

// Summary aggregates the work sessions of the last days UTC days, today
// included, oldest first.
func (s *TimerService) Summary(ctx context.Context, userID string, days int) (*Summary, *apperrors.APIError) {
	if days == 0 {
		days = DefaultSummaryDays
	}
	if days < 1 || days > MaxSummaryDays {
		return nil, apperrors.Validation("invalid days", map[string]string{
			"days": fmt.Sprintf("must be between 1 and %d", MaxSummaryDays),
		})
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from := today.AddDate(0, 0, -(days - 1))

	sessions, apiErr := s.ListSessions(ctx, userID, model.DateRange{From: from, To: today.AddDate(0, 0, 1)})
	if apiErr != nil {
		return nil, apiErr
	}

	summaries := Summarize(sessions, from, days)
	return &Summary{
		Today: summaries[len(summaries)-1],
		Days:  summaries,
	}, nil
}

// Summarize buckets work sessions into days consecutive UTC days starting at
// from. Sessions outside that window are ignored.
func Summarize(sessions []model.CompletedSession, from time.Time, days int) []model.DailySummary {
	index := make(map[string]int, days)
	summaries := make([]model.DailySummary, days)
	for i := 0; i < days; i++ {
		date := from.AddDate(0, 0, i).Format(summaryDateLayout)
		summaries[i] = model.DailySummary{Date: date}
		index[date] = i
	}

	for _, session := range sessions {
		if session.Type != model.SessionTypeWork {
			continue
		}
		i, ok := index[session.StartedAt.UTC().Format(summaryDateLayout)]
		if !ok {
			continue
		}
		summaries[i].Sessions++
		summaries[i].TotalMinutes += session.Duration / 60
	}

	for i := range summaries {
		summaries[i].TotalTime = FormatTotalTime(summaries[i].TotalMinutes)
	}
	return summaries
}

// FormatTotalTime renders minutes as "Xh Ym", or "Ym" under an hour.
func FormatTotalTime(minutes int) string {
	hours := minutes / 60
	mins := minutes % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}
