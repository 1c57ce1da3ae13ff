package debug

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	// ErrEngineNotInitialized indicates no root scope has been obtained yet.
	ErrEngineNotInitialized = errors.New("engine not initialized")

	// ErrNotPaused indicates a resume was requested while idle.
	ErrNotPaused = errors.New("session is not paused")

	// ErrBusy indicates an engine call is already in flight.
	ErrBusy = errors.New("engine call already in flight")

	// ErrStaleScope indicates a scope handle whose engine scope has ended.
	ErrStaleScope = errors.New("scope is no longer live")

	// ErrPauseInfoUnavailable indicates the engine reported a pause but could
	// not say where.
	ErrPauseInfoUnavailable = errors.New("pause info unavailable")

	// ErrAbortIgnored indicates the engine still reported a pause after an
	// abort. The session leaves the pause regardless.
	ErrAbortIgnored = errors.New("engine still paused after abort")

	// ErrQueueClosed indicates the command queue no longer accepts work.
	ErrQueueClosed = errors.New("command queue closed")

	// ErrDuplicateResource indicates a resource ref registered twice.
	ErrDuplicateResource = errors.New("resource already registered")

	// ErrInvalidResource indicates a registration without a ref or resource.
	ErrInvalidResource = errors.New("invalid resource")
)

// EvalError carries the message of a command the engine rejected.
type EvalError struct {
	Command string
	Message string
}

// Error implements the error interface.
func (e *EvalError) Error() string {
	return fmt.Sprintf("eval %q: %s", e.Command, e.Message)
}

// InvalidBreakpointError reports a breakpoint request rejected before any
// engine call.
type InvalidBreakpointError struct {
	File   string
	Line   int
	Reason string
}

// Error implements the error interface.
func (e *InvalidBreakpointError) Error() string {
	return fmt.Sprintf("invalid breakpoint %s:%d: %s", e.File, e.Line, e.Reason)
}
