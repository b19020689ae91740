package timer

import (
	"context"
	"sync"
	"time"

	"focusflow/backend/internal/model"
)

// Runner drives a Machine with a ticker while the timer is active. It owns
// the only goroutine that calls Tick and serializes every operation on the
// machine behind one mutex.
type Runner struct {
	mu       sync.Mutex
	machine  *Machine
	interval time.Duration
	onChange func(model.TimerState)
	stop     chan struct{}
	closed   bool
}

// NewRunner wraps machine. onChange, if set, observes every resulting state
// while the runner lock is held, so it must not call back into the runner.
func NewRunner(machine *Machine, interval time.Duration, onChange func(model.TimerState)) *Runner {
	if interval <= 0 {
		interval = time.Second
	}
	return &Runner{
		machine:  machine,
		interval: interval,
		onChange: onChange,
	}
}

func (r *Runner) State() model.TimerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.machine.State()
}

func (r *Runner) Durations() Durations {
	return r.machine.Durations()
}

// Running reports whether the ticker loop is currently scheduled.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stop != nil
}

func (r *Runner) Start(ctx context.Context) model.TimerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.machine.State()
	}
	state := r.machine.Start(ctx)
	r.ensureLoopLocked()
	r.emitLocked(state)
	return state
}

// Resume restarts scheduling for a state restored with an active marker.
func (r *Runner) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || !r.machine.IsRunning() {
		return
	}
	r.ensureLoopLocked()
}

// Adopt switches to a state written by another process and schedules
// ticks only if that state is active.
func (r *Runner) Adopt(state model.TimerState) model.TimerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.machine.State()
	}
	r.stopLoopLocked()
	current := r.machine.Replace(state)
	if r.machine.IsRunning() {
		r.ensureLoopLocked()
	}
	r.emitLocked(current)
	return current
}

// Pause stops scheduling before returning; no tick is applied afterwards.
func (r *Runner) Pause(ctx context.Context) model.TimerState {
	return r.stopAndApply(ctx, r.machine.Pause)
}

func (r *Runner) Reset(ctx context.Context) model.TimerState {
	return r.stopAndApply(ctx, r.machine.Reset)
}

func (r *Runner) Skip(ctx context.Context) model.TimerState {
	return r.stopAndApply(ctx, r.machine.Skip)
}

// Close stops the loop for good. Later operations only read state.
func (r *Runner) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLoopLocked()
	r.closed = true
}

func (r *Runner) stopAndApply(ctx context.Context, op func(context.Context) model.TimerState) model.TimerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLoopLocked()
	if r.closed {
		return r.machine.State()
	}
	state := op(ctx)
	r.emitLocked(state)
	return state
}

func (r *Runner) ensureLoopLocked() {
	if r.stop != nil {
		return
	}
	stop := make(chan struct{})
	r.stop = stop
	go r.loop(stop)
}

func (r *Runner) stopLoopLocked() {
	if r.stop == nil {
		return
	}
	close(r.stop)
	r.stop = nil
}

func (r *Runner) loop(stop chan struct{}) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !r.tick(stop) {
				return
			}
		}
	}
}

// tick applies one second under the lock. It returns false once the loop
// has been cancelled or the phase has ended.
func (r *Runner) tick(stop chan struct{}) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-stop:
		return false
	default:
	}

	state := r.machine.Tick(context.Background())
	r.emitLocked(state)
	if !r.machine.IsRunning() {
		r.stopLoopLocked()
		return false
	}
	return true
}

func (r *Runner) emitLocked(state model.TimerState) {
	if r.onChange != nil {
		r.onChange(state)
	}
}
