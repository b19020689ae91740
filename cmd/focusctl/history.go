package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"focusflow/backend/internal/model"
	"focusflow/backend/internal/service"
	"focusflow/backend/internal/timer"
)

func newHistoryCmd(a *app) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List completed work sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 || days > service.MaxSummaryDays {
				return fmt.Errorf("--days must be between 1 and %d", service.MaxSummaryDays)
			}

			now := time.Now().UTC()
			today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
			from := today.AddDate(0, 0, -(days - 1))

			sessions, err := a.store.ListCompletedSessions(commandContext(cmd), model.DateRange{
				From: from,
				To:   today.AddDate(0, 0, 1),
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tCOMPLETED\tDURATION")
			for _, session := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\n",
					session.StartedAt.Local().Format("2006-01-02 15:04"),
					session.CompletedAt.Local().Format("15:04"),
					timer.FormatSeconds(session.Duration),
				)
			}
			fmt.Fprintln(w)
			for _, day := range service.Summarize(sessions, from, days) {
				fmt.Fprintf(w, "%s\t%d sessions\t%s\n", day.Date, day.Sessions, day.TotalTime)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&days, "days", service.DefaultSummaryDays, "number of days to show, today included")
	return cmd
}
