package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusflow/backend/internal/config"
	"focusflow/backend/internal/model"
	"focusflow/backend/internal/storage"
	"focusflow/backend/internal/timer"
)

func runCLI(t *testing.T, dir string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--dir", dir, "--bell=false"}, args...))
	require.NoError(t, root.Execute())
	return out.String()
}

func TestRenderState(t *testing.T) {
	d := timer.DefaultDurations()
	assert.Equal(t, "idle      25:00    0%  session 1/4  ready", renderState(model.IdleState(1500), d))

	activeSince := time.Now().UTC()
	running := model.TimerState{Status: model.StatusWork, TimeRemaining: 750, SessionsCompleted: 1, ActiveSince: &activeSince}
	assert.Equal(t, "work      12:30   50%  session 2/4  running", renderState(running, d))

	paused := model.TimerState{Status: model.StatusLongBreak, TimeRemaining: 900, SessionsCompleted: 4}
	assert.Equal(t, "longBreak 15:00    0%  session 1/4  paused", renderState(paused, d))
}

func TestControlCommands(t *testing.T) {
	dir := t.TempDir()

	out := runCLI(t, dir, "status")
	assert.Contains(t, out, "idle")

	out = runCLI(t, dir, "skip")
	assert.Contains(t, out, "work      25:00")

	out = runCLI(t, dir, "skip")
	assert.Contains(t, out, "break     05:00")
	assert.Contains(t, out, "session 2/4")

	store, err := storage.NewFileStore(dir, 1500)
	require.NoError(t, err)
	sessions, err := store.ListCompletedSessions(context.Background(), model.DateRange{})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, 0, sessions[0].Duration, "skipped before any time elapsed")

	out = runCLI(t, dir, "history", "--days", "1")
	assert.Contains(t, out, "1 sessions")

	out = runCLI(t, dir, "reset")
	assert.Contains(t, out, "idle")
	state, err := store.LoadState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.IdleState(1500), state)

	out = runCLI(t, dir, "pause")
	assert.Contains(t, out, "ready")
}

func TestStatusLineEndsBeforeNotification(t *testing.T) {
	var buf bytes.Buffer
	line := newStatusLine(&buf)

	line.Repaint("work 00:01")
	_, err := io.WriteString(line, "Work session complete! Time for a short break!\n")
	require.NoError(t, err)
	line.Repaint("break 05:00")
	line.End()
	line.End()

	assert.Equal(t, "\rwork 00:01 \nWork session complete! Time for a short break!\n\rbreak 05:00 \n", buf.String())
}

func TestRecentStates(t *testing.T) {
	recent := newRecentStates(2)
	first := model.TimerState{Status: model.StatusWork, TimeRemaining: 3}
	second := model.TimerState{Status: model.StatusWork, TimeRemaining: 2}
	third := model.TimerState{Status: model.StatusWork, TimeRemaining: 1}

	recent.Add(first)
	recent.Add(second)
	assert.True(t, recent.Contains(first))
	recent.Add(third)
	assert.False(t, recent.Contains(first), "oldest entry is dropped")
	assert.True(t, recent.Contains(second))
	assert.True(t, recent.Contains(third))
}

func TestAdoptExternalState(t *testing.T) {
	dir := t.TempDir()
	files, err := storage.NewFileStore(dir, 1500)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := &app{cfg: config.Config{Timer: timer.DefaultDurations()}, logger: logger, store: files}

	var buf bytes.Buffer
	line := newStatusLine(&buf)
	own := newRecentStates(recentStateLimit)
	ctx := context.Background()
	machine := a.newMachine(ctx, files, nil)
	runner := timer.NewRunner(machine, time.Hour, func(state model.TimerState) { own.Add(state) })
	defer runner.Close()

	started := runner.Start(ctx)
	require.NotNil(t, started.ActiveSince)

	// A state this process wrote is not reported.
	adoptExternal(ctx, a, files, runner, own, line)
	assert.Empty(t, buf.String())
	assert.True(t, runner.Running())

	paused := started
	paused.ActiveSince = nil
	require.NoError(t, files.SaveState(ctx, paused))
	adoptExternal(ctx, a, files, runner, own, line)
	assert.Contains(t, buf.String(), "timer changed by another command")
	assert.False(t, runner.Running())
	assert.Nil(t, runner.State().ActiveSince)
}
