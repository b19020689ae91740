package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"focusflow/backend/internal/model"
	"focusflow/backend/internal/notify"
	"focusflow/backend/internal/storage"
	"focusflow/backend/internal/timer"
)

const (
	flushTimeout = 5 * time.Second
	// Enough to cover every state still queued in the write-behind.
	recentStateLimit = 64
)

func newStartCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start or resume the timer in the foreground",
		Long: "start runs the current phase in the foreground until it ends. " +
			"Interrupting the command pauses the timer. A pause, reset or skip " +
			"run from another terminal is picked up and ends the foreground run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			line := newStatusLine(cmd.OutOrStdout())
			store := timer.NewWriteBehind(a.store, a.logger)
			notifier := notify.Multi{
				notify.NewWriter(line, a.bell),
				notify.NewLog(a.logger),
			}
			machine := a.newMachine(ctx, store, notifier)

			own := newRecentStates(recentStateLimit)
			finished := make(chan struct{})
			var once sync.Once
			var runner *timer.Runner
			runner = timer.NewRunner(machine, a.cfg.TickInterval, func(state model.TimerState) {
				own.Add(state)
				line.Repaint(renderState(state, runner.Durations()))
				if state.ActiveSince == nil {
					once.Do(func() { close(finished) })
				}
			})

			runner.Start(ctx)

			watchCtx, cancelWatch := context.WithCancel(ctx)
			watchDone := make(chan error, 1)
			go func() {
				watchDone <- storage.Watch(watchCtx, a.store.StatePath(), func() {
					adoptExternal(watchCtx, a, store, runner, own, line)
				})
			}()

			select {
			case <-finished:
			case <-ctx.Done():
				runner.Pause(context.Background())
			}
			cancelWatch()
			if err := <-watchDone; err != nil {
				a.logger.Warn("follow state file", "error", err)
			}
			runner.Close()
			line.End()

			flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			defer cancel()
			return store.Close(flushCtx)
		},
	}
}

// adoptExternal hands a state written by another focusctl command to the
// runner. States this process wrote itself are ignored. The adopted state is
// queued behind any pending writes so an older tick cannot overwrite it.
func adoptExternal(ctx context.Context, a *app, store timer.Store, runner *timer.Runner, own *recentStates, line *statusLine) {
	state, err := a.store.LoadState(ctx)
	if err != nil {
		a.logger.Warn("reload timer state", "error", err)
		return
	}
	if own.Contains(state) {
		return
	}
	fmt.Fprintln(line, "timer changed by another command")
	adopted := runner.Adopt(state)
	if err := store.SaveState(ctx, adopted); err != nil {
		a.logger.Warn("save adopted state", "error", err)
	}
}
