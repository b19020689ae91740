package main

import (
	"fmt"
	"io"
	"sync"

	"focusflow/backend/internal/model"
)

// statusLine repaints one line in place with \r. Anything written through
// Write first ends the open line so it is not painted over.
type statusLine struct {
	mu   sync.Mutex
	out  io.Writer
	open bool
}

func newStatusLine(out io.Writer) *statusLine {
	return &statusLine{out: out}
}

func (s *statusLine) Repaint(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "\r%s ", line)
	s.open = true
}

func (s *statusLine) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endLocked()
	return s.out.Write(p)
}

// End moves past the status line, if one is showing.
func (s *statusLine) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endLocked()
}

func (s *statusLine) endLocked() {
	if s.open {
		fmt.Fprintln(s.out)
		s.open = false
	}
}

// recentStates remembers the last states this process produced, so a
// change seen on disk can be told apart from one written elsewhere.
type recentStates struct {
	mu     sync.Mutex
	states []model.TimerState
	limit  int
}

func newRecentStates(limit int) *recentStates {
	return &recentStates{limit: limit}
}

func (r *recentStates) Add(state model.TimerState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state.Clone())
	if len(r.states) > r.limit {
		r.states = r.states[len(r.states)-r.limit:]
	}
}

func (r *recentStates) Contains(state model.TimerState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, own := range r.states {
		if own.Equal(state) {
			return true
		}
	}
	return false
}
