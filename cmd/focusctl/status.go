package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"focusflow/backend/internal/storage"
)

func newStatusCmd(a *app) *cobra.Command {
	var follow bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current timer",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			show := func() {
				state, err := a.store.LoadState(commandContext(cmd))
				if err != nil {
					a.logger.Warn("load timer state", "error", err)
					return
				}
				fmt.Fprintln(out, renderState(state, a.cfg.Timer))
			}

			show()
			if !follow {
				return nil
			}

			ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return storage.Watch(ctx, a.store.StatePath(), show)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing as the state changes")
	return cmd
}

// cobra leaves Context nil when Execute is used without ExecuteContext.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
