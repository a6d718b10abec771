package domain

import (
	"slices"
	"sync/atomic"
)

// State is the lifecycle position of one connection.
type State int32

const (
	StateNew State = iota
	StateSubscribed
	StateRunning
	StateCompleted
	StateErrored
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateSubscribed:
		return "subscribed"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateErrored:
		return "errored"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further callbacks can fire. Cancelled is not terminal: the
// closing notification is still owed.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateErrored
}

// StateMachine guards the connection lifecycle transitions.
type StateMachine struct {
	v atomic.Int32
}

func (m *StateMachine) Load() State { return State(m.v.Load()) }

// Advance moves from one of the allowed states to next and reports whether it happened.
func (m *StateMachine) Advance(next State, from ...State) bool {
	for {
		cur := State(m.v.Load())
		if !slices.Contains(from, cur) {
			return false
		}
		if m.v.CompareAndSwap(int32(cur), int32(next)) {
			return true
		}
	}
}

// Cancel moves any non-terminal state to Cancelled.
func (m *StateMachine) Cancel() bool {
	return m.Advance(StateCancelled, StateNew, StateSubscribed, StateRunning)
}

// Finish moves to a terminal state from anything but another terminal state.
func (m *StateMachine) Finish(next State) bool {
	return m.Advance(next, StateNew, StateSubscribed, StateRunning, StateCancelled)
}
