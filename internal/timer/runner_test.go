package timer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusflow/backend/internal/model"
)

const testInterval = 2 * time.Millisecond

type stateLog struct {
	mu     sync.Mutex
	states []model.TimerState
}

func (l *stateLog) record(state model.TimerState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, state)
}

func (l *stateLog) all() []model.TimerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.TimerState(nil), l.states...)
}

func newTestRunner(t *testing.T, store *recordingStore, durations Durations) (*Runner, *stateLog) {
	t.Helper()
	if store == nil {
		store = &recordingStore{}
	}
	log := &stateLog{}
	machine := New(context.Background(), store, nil, durations)
	runner := NewRunner(machine, testInterval, log.record)
	t.Cleanup(runner.Close)
	return runner, log
}

func TestRunnerRunsPhaseToCompletion(t *testing.T) {
	store := &recordingStore{}
	runner, log := newTestRunner(t, store, Durations{Work: 5, ShortBreak: 3, LongBreak: 4, SessionsBeforeLongBreak: 4})

	state := runner.Start(context.Background())
	require.Equal(t, model.StatusWork, state.Status)
	assert.True(t, runner.Running())

	require.Eventually(t, func() bool {
		return runner.State().Status == model.StatusBreak
	}, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return !runner.Running() }, time.Second, time.Millisecond)

	final := runner.State()
	assert.Equal(t, 3, final.TimeRemaining)
	assert.Nil(t, final.ActiveSince)
	assert.Len(t, store.completed(), 1)

	states := log.all()
	require.Len(t, states, 6, "start plus five ticks")
	for i := 1; i < len(states)-1; i++ {
		assert.Equal(t, 5-i, states[i].TimeRemaining)
	}

	time.Sleep(10 * testInterval)
	assert.Equal(t, final, runner.State(), "break starts paused")
}

func TestRunnerPauseStopsTicks(t *testing.T) {
	runner, log := newTestRunner(t, nil, DefaultDurations())

	runner.Start(context.Background())
	require.Eventually(t, func() bool {
		return runner.State().TimeRemaining <= 1495
	}, time.Second, time.Millisecond)

	paused := runner.Pause(context.Background())
	assert.False(t, runner.Running())
	assert.Nil(t, paused.ActiveSince)
	emitted := len(log.all())

	time.Sleep(20 * testInterval)
	assert.Equal(t, paused, runner.State())
	assert.Len(t, log.all(), emitted, "no tick after pause")
}

func TestRunnerResetAndSkipStopTicks(t *testing.T) {
	runner, _ := newTestRunner(t, nil, DefaultDurations())
	ctx := context.Background()

	runner.Start(ctx)
	state := runner.Skip(ctx)
	assert.Equal(t, model.StatusBreak, state.Status)
	assert.False(t, runner.Running())

	runner.Start(ctx)
	state = runner.Reset(ctx)
	assert.Equal(t, model.IdleState(1500), state)
	assert.False(t, runner.Running())

	time.Sleep(10 * testInterval)
	assert.Equal(t, model.IdleState(1500), runner.State())
}

func TestRunnerRepeatedStartKeepsOneLoop(t *testing.T) {
	runner, _ := newTestRunner(t, nil, DefaultDurations())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		runner.Start(ctx)
	}
	runner.Pause(ctx)
	before := runner.State().TimeRemaining

	began := time.Now()
	runner.Start(ctx)
	time.Sleep(25 * testInterval)
	runner.Pause(ctx)
	wall := time.Since(began)
	ticked := before - runner.State().TimeRemaining

	// A second loop would tick twice per interval.
	assert.LessOrEqual(t, ticked, int(wall/testInterval)+1)
}

func TestRunnerResumeRestoredState(t *testing.T) {
	activeSince := time.Now().UTC()
	store := &recordingStore{state: &model.TimerState{
		Status:        model.StatusWork,
		TimeRemaining: 1000,
		ActiveSince:   &activeSince,
	}}
	runner, _ := newTestRunner(t, store, DefaultDurations())
	assert.False(t, runner.Running())

	runner.Resume()
	assert.True(t, runner.Running())
	require.Eventually(t, func() bool {
		return runner.State().TimeRemaining < 1000
	}, time.Second, time.Millisecond)
}

func TestRunnerResumeIgnoresPausedState(t *testing.T) {
	runner, _ := newTestRunner(t, nil, DefaultDurations())
	runner.Resume()
	assert.False(t, runner.Running())
}

func TestRunnerClose(t *testing.T) {
	runner, log := newTestRunner(t, nil, DefaultDurations())
	ctx := context.Background()

	runner.Start(ctx)
	runner.Close()
	assert.False(t, runner.Running())
	emitted := len(log.all())

	state := runner.Start(ctx)
	assert.False(t, runner.Running())
	assert.Equal(t, runner.State(), state)
	runner.Skip(ctx)
	assert.Len(t, log.all(), emitted, "closed runner applies nothing")
}

func TestRunnerAdoptExternalState(t *testing.T) {
	store := &recordingStore{}
	runner, log := newTestRunner(t, store, DefaultDurations())
	ctx := context.Background()
	assert.Equal(t, DefaultDurations(), runner.Durations())

	runner.Start(ctx)
	require.True(t, runner.Running())

	paused := runner.State()
	paused.ActiveSince = nil
	adopted := runner.Adopt(paused)
	assert.Nil(t, adopted.ActiveSince)
	assert.False(t, runner.Running(), "adopting a paused state stops ticking")
	assert.Equal(t, adopted, log.all()[len(log.all())-1])
	for _, saved := range store.savedStates() {
		assert.NotNil(t, saved.ActiveSince, "adopted state is not written back")
	}

	activeSince := time.Now().UTC()
	running := model.TimerState{Status: model.StatusBreak, TimeRemaining: 200, SessionsCompleted: 1, ActiveSince: &activeSince}
	runner.Adopt(running)
	assert.True(t, runner.Running())
	require.Eventually(t, func() bool {
		return runner.State().TimeRemaining < 200
	}, time.Second, time.Millisecond)

	invalid := runner.Adopt(model.TimerState{Status: "paused", TimeRemaining: -3})
	assert.Equal(t, model.IdleState(DefaultDurations().Work), invalid)
	assert.False(t, runner.Running())
}
