package storage

import (
	"sort"

	"focusflow/backend/internal/model"
)

func filterSessions(sessions []model.CompletedSession, dateRange model.DateRange) []model.CompletedSession {
	out := make([]model.CompletedSession, 0, len(sessions))
	for _, session := range sessions {
		if dateRange.Contains(session.StartedAt) {
			out = append(out, session)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}
