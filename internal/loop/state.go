package loop

import "go.uber.org/atomic"

// RunState is the shared active/paused flag. It starts active.
type RunState struct {
	active *atomic.Bool
}

// NewRunState returns an active RunState.
func NewRunState() *RunState {
	return &RunState{active: atomic.NewBool(true)}
}

// Active reports whether the loop should read.
func (s *RunState) Active() bool {
	return s.active.Load()
}

// Set stores the flag and returns the previous value.
func (s *RunState) Set(active bool) bool {
	return s.active.Swap(active)
}

// Toggle flips the flag and returns the new value.
func (s *RunState) Toggle() bool {
	return !s.active.Toggle()
}
