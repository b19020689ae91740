package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"focusflow/backend/internal/model"
	"focusflow/backend/internal/notify"
	"focusflow/backend/internal/timer"
)

func newPauseCmd(a *app) *cobra.Command {
	return newControlCmd(a, "pause", "Pause the timer", (*timer.Machine).Pause)
}

func newResetCmd(a *app) *cobra.Command {
	return newControlCmd(a, "reset", "Return to idle; history is kept", (*timer.Machine).Reset)
}

func newSkipCmd(a *app) *cobra.Command {
	return newControlCmd(a, "skip", "End the current phase now", (*timer.Machine).Skip)
}

// newControlCmd applies one transition to the stored state and exits. A
// foreground start in another terminal picks the new state up from disk.
func newControlCmd(
	a *app,
	use, short string,
	op func(*timer.Machine, context.Context) model.TimerState,
) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			store := timer.NewWriteBehind(a.store, a.logger)
			machine := a.newMachine(ctx, store, notify.NewLog(a.logger))

			state := op(machine, ctx)

			flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			defer cancel()
			if err := store.Close(flushCtx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderState(state, machine.Durations()))
			return nil
		},
	}
}
