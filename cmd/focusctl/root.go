package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"focusflow/backend/internal/config"
	"focusflow/backend/internal/model"
	"focusflow/backend/internal/storage"
	"focusflow/backend/internal/timer"
)

const appName = "focusflow"

// app carries what every subcommand needs once flags are parsed.
type app struct {
	dir  string
	bell bool

	cfg    config.Config
	logger *slog.Logger
	store  *storage.FileStore
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "focusctl",
		Short: "Local pomodoro timer",
		Long:  "focusctl runs the focus timer against files in a local data directory, without a server.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.ErrOrStderr())
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&a.dir, "dir", "", "data directory (default <user config dir>/focusflow)")
	root.PersistentFlags().BoolVar(&a.bell, "bell", true, "ring the terminal bell with notifications")

	root.AddCommand(newStatusCmd(a))
	root.AddCommand(newStartCmd(a))
	root.AddCommand(newPauseCmd(a))
	root.AddCommand(newResetCmd(a))
	root.AddCommand(newSkipCmd(a))
	root.AddCommand(newHistoryCmd(a))

	return root
}

func (a *app) init(errOut io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: cfg.LogLevel}))

	dir := a.dir
	if dir == "" {
		dir, err = storage.DefaultDir(appName)
		if err != nil {
			return err
		}
	}
	store, err := storage.NewFileStore(dir, cfg.Timer.Work)
	if err != nil {
		return err
	}
	a.store = store
	a.logger.Debug("using data directory", "dir", store.Dir())
	return nil
}

func (a *app) newMachine(ctx context.Context, store timer.Store, notifier timer.Notifier) *timer.Machine {
	return timer.New(ctx, store, notifier, a.cfg.Timer, timer.WithLogger(a.logger))
}

// renderState formats one status line, e.g. "work  24:59  3%  session 1/4  running".
func renderState(state model.TimerState, d timer.Durations) string {
	running := "paused"
	if state.ActiveSince != nil {
		running = "running"
	}
	if state.Status == model.StatusIdle {
		running = "ready"
	}
	return fmt.Sprintf("%-9s %s  %3.0f%%  session %d/%d  %s",
		state.Status,
		timer.FormatSeconds(state.TimeRemaining),
		timer.ProgressPercent(state, d),
		timer.SessionOrdinal(state, d),
		d.SessionsBeforeLongBreak,
		running,
	)
}
