package debug

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dshills/auxlab/internal/engine"
)

// SessionState is either idle in the root scope or paused at a location.
type SessionState struct {
	Paused bool
	Scope  Scope
	File   string
	Line   int
}

// String returns a short description of the state.
func (s SessionState) String() string {
	if !s.Paused {
		return "idle"
	}
	return fmt.Sprintf("paused at %s:%d", s.File, s.Line)
}

// ControllerHandlers contains callbacks for session transitions.
type ControllerHandlers struct {
	// OnStateChanged is called after every transition that changes the state.
	OnStateChanged func(old, new SessionState)
}

// Controller owns the session state. Apply is the only way to change it.
type Controller struct {
	stateMu sync.RWMutex
	state   SessionState
	root    Scope

	busy atomic.Bool

	handlers   ControllerHandlers
	handlersMu sync.RWMutex
}

// NewController creates an idle controller rooted at root.
func NewController(root Scope) *Controller {
	return &Controller{
		root:  root,
		state: SessionState{Scope: root},
	}
}

// SetHandlers sets the transition handlers.
func (c *Controller) SetHandlers(handlers ControllerHandlers) {
	c.handlersMu.Lock()
	c.handlers = handlers
	c.handlersMu.Unlock()
}

// Reset returns to idle under a new root, after an engine re-init.
func (c *Controller) Reset(root Scope) {
	c.stateMu.Lock()
	c.root = root
	c.stateMu.Unlock()
	c.setState(SessionState{Scope: root})
}

// Apply derives the next state from an outcome.
//
// A paused outcome moves to Paused at its location; when the outcome names no
// scope the previous current scope is kept. A rejected evaluation leaves the
// state unchanged. Every other outcome returns to idle.
func (c *Controller) Apply(o Outcome) SessionState {
	c.stateMu.RLock()
	old := c.state
	root := c.root
	c.stateMu.RUnlock()

	var next SessionState
	switch {
	case o.Paused():
		scope := o.Pause.Scope
		if scope.IsZero() {
			scope = old.Scope
		}
		next = SessionState{Paused: true, Scope: scope, File: o.Pause.File, Line: o.Pause.Line}
	case o.Status == engine.StatusError && o.Origin == OriginEvaluate:
		return old
	default:
		next = SessionState{Scope: root}
	}

	c.setState(next)
	return next
}

func (c *Controller) setState(state SessionState) {
	c.stateMu.Lock()
	old := c.state
	c.state = state
	c.stateMu.Unlock()

	if old == state {
		return
	}

	c.handlersMu.RLock()
	handler := c.handlers.OnStateChanged
	c.handlersMu.RUnlock()

	if handler != nil {
		handler(old, state)
	}
}

// State returns the current state.
func (c *Controller) State() SessionState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// IsPaused reports whether the session is paused.
func (c *Controller) IsPaused() bool {
	return c.State().Paused
}

// CurrentScope returns the scope commands run in.
func (c *Controller) CurrentScope() Scope {
	return c.State().Scope
}

// Root returns the root scope.
func (c *Controller) Root() Scope {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.root
}

// PauseLocation returns the pause file and line while paused.
func (c *Controller) PauseLocation() (string, int, bool) {
	s := c.State()
	if !s.Paused {
		return "", 0, false
	}
	return s.File, s.Line, true
}

// Begin marks an engine call in flight. It fails with ErrBusy if one is
// already outstanding.
func (c *Controller) Begin() error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

// End clears the in-flight mark set by Begin.
func (c *Controller) End() {
	c.busy.Store(false)
}
