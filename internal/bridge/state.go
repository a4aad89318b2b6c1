package bridge

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of one client connection.
type State int

const (
	// StateAwaitingInit - Connection open, waiting for the init message.
	StateAwaitingInit State = iota
	// StateConnecting - Init accepted, session and upstream being set up.
	StateConnecting
	// StateActive - Audio and events are relayed in both directions.
	StateActive
	// StateClosing - Teardown in progress (upstream close, session end).
	StateClosing
	// StateClosed - Terminal. Both connections released.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateAwaitingInit:
		return "AWAITING_INIT"
	case StateConnecting:
		return "CONNECTING"
	case StateActive:
		return "ACTIVE"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true once the connection has entered teardown.
func (s State) IsTerminal() bool {
	return s == StateClosing || s == StateClosed
}

// Errors for invalid state transitions.
var (
	ErrAlreadyInitialized = errors.New("connection already initialized")
	ErrNotConnecting      = errors.New("connection is not in CONNECTING state")
)

// Lifecycle manages the state machine for a single client connection.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	AWAITING_INIT → CONNECTING → ACTIVE → CLOSING → CLOSED
//
// BeginClosing may be entered from any non-terminal state: a protocol
// error before activation tears the connection down the same way a
// disconnect during ACTIVE does.
type Lifecycle struct {
	mu    sync.RWMutex
	state State
}

// NewLifecycle creates a connection lifecycle in AWAITING_INIT state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateAwaitingInit}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// BeginConnecting records acceptance of the init message.
func (l *Lifecycle) BeginConnecting() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateAwaitingInit {
		return ErrAlreadyInitialized
	}
	l.state = StateConnecting
	return nil
}

// Activate records that the session and upstream connection are live.
func (l *Lifecycle) Activate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateConnecting {
		return ErrNotConnecting
	}
	l.state = StateActive
	return nil
}

// BeginClosing transitions to CLOSING. Idempotent: returns true only
// for the caller that performed the transition, so teardown runs once.
func (l *Lifecycle) BeginClosing() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	l.state = StateClosing
	return true
}

// Finish transitions to the terminal CLOSED state.
func (l *Lifecycle) Finish() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = StateClosed
}
