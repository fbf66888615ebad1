package eventreg

import (
	"sync"
	"sync/atomic"
)

// State is the outcome of a TimedRegistration.
type State int32

// statePending is held while a TimedRegistration is being constructed.
const statePending State = -1

const (
	// StateArmed means neither the event nor the deadline has won yet.
	StateArmed State = iota
	// StateEventWon means an event arrived first; the deadline is barred.
	StateEventWon
	// StateTimeoutWon means the deadline elapsed first; events are barred.
	StateTimeoutWon
	// StateTornDown means the registration was closed.
	StateTornDown
)

func (s State) String() string {
	switch s {
	case statePending:
		return "pending"
	case StateArmed:
		return "armed"
	case StateEventWon:
		return "event_won"
	case StateTimeoutWon:
		return "timeout_won"
	case StateTornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}

// gate decides, exactly once, which of the racing completions wins.
//
// The outcome is a compare-and-swap on state. Callbacks run while holding
// the read side of active, which trampolines only ever try to take: if
// teardown holds or awaits the write side they give up immediately.
type gate struct {
	state  atomic.Int32
	active sync.RWMutex
}

// enter attempts to start a trampoline. A false result means teardown is in
// progress and the caller must drop its work.
func (g *gate) enter() bool {
	return g.active.TryRLock()
}

func (g *gate) leave() {
	g.active.RUnlock()
}

// win moves the gate from armed to s.
func (g *gate) win(s State) bool {
	return g.advance(StateArmed, s)
}

func (g *gate) advance(from, to State) bool {
	return g.state.CompareAndSwap(int32(from), int32(to))
}

func (g *gate) load() State {
	return State(g.state.Load())
}

// close waits for every running trampoline, then bars all further ones,
// returning the state it replaced. The caller must call release afterwards.
func (g *gate) close() State {
	g.active.Lock()
	return State(g.state.Swap(int32(StateTornDown)))
}

func (g *gate) release() {
	g.active.Unlock()
}
