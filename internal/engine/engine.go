// Package engine defines the boundary to the numeric evaluation engine.
//
// The engine is an opaque, stateful, non-reentrant collaborator. It evaluates
// commands in a variable namespace identified by a raw ScopeID, can suspend
// execution inside a user-defined function (UDF) at a breakpoint, and exposes
// the variables of every live namespace. Raw scope identities are only
// meaningful for the instant they are reported: an engine may hand the same
// identity back for a different frame once the earlier one has ended.
//
// Everything the engine reports about variable contents is decoded once, at
// this boundary, into the closed Value union.
package engine

import "fmt"

// ScopeID is a raw, engine-issued scope identity.
// The zero value means "no scope".
type ScopeID uint64

// NoScope is the absent scope identity.
const NoScope ScopeID = 0

// Status is the normalized result of an evaluate or resume call.
type Status int

const (
	// StatusOK means the call ran to completion.
	StatusOK Status = iota
	// StatusError means the engine rejected or failed the command.
	StatusError
	// StatusPaused means execution is suspended inside a UDF.
	StatusPaused
)

// String returns a string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	case StatusPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// DebugAction is sent to the engine to leave a pause.
type DebugAction int

const (
	// ActionContinue runs until the next breakpoint or completion.
	ActionContinue DebugAction = iota
	// ActionStepOver runs to the next line in the same or an outer frame.
	ActionStepOver
	// ActionStepIn runs to the next line in any frame.
	ActionStepIn
	// ActionStepOut runs until the current frame returns.
	ActionStepOut
	// ActionAbort abandons the suspended program.
	ActionAbort
)

// String returns a string representation of the action.
func (a DebugAction) String() string {
	switch a {
	case ActionContinue:
		return "continue"
	case ActionStepOver:
		return "step-over"
	case ActionStepIn:
		return "step-in"
	case ActionStepOut:
		return "step-out"
	case ActionAbort:
		return "abort"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Reply is what the engine returns from Eval and Resume.
type Reply struct {
	Status Status
	// Output is the preview text: echoed values, printed output or the
	// error message when Status is StatusError.
	Output string
}

// Frame is one suspended UDF activation.
type Frame struct {
	// Scope is the raw identity of the frame's namespace.
	Scope ScopeID
	// Activation distinguishes two activations that share a raw identity.
	// Zero means the engine cannot tell them apart.
	Activation uint64
	// Function is the name of the called function.
	Function string
	// File is the UDF the function is defined in.
	File string
	// Line is the line the frame is currently executing.
	Line int
}

// PauseInfo describes a suspended program.
type PauseInfo struct {
	Scope ScopeID
	File  string
	Line  int
	// Frames lists the suspended activations, outermost first. The last
	// element is the frame that owns Scope. Engines that cannot report a
	// frame chain leave it empty.
	Frames []Frame
}

// Variable is a named value in some scope.
type Variable struct {
	Name  string
	Value Value
}

// Config is the runtime configuration forwarded to the engine.
type Config struct {
	SampleRate        int
	DisplayPrecision  int
	DisplayLimitX     int
	DisplayLimitY     int
	DisplayLimitBytes int
	DisplayLimitStr   int
	SearchPaths       []string
}

// Engine is the consumed engine surface.
//
// Implementations are not safe for concurrent use. Callers serialize every
// call, and no call may be issued while another is in flight.
type Engine interface {
	// Init prepares the engine and returns the root scope.
	Init(cfg Config) (ScopeID, error)
	// Close releases engine resources.
	Close() error

	// Eval evaluates command in scope.
	Eval(scope ScopeID, command string) (Reply, error)
	// PauseInfo reports where the program is suspended.
	PauseInfo(scope ScopeID) (PauseInfo, error)
	// Resume leaves the current pause.
	Resume(scope ScopeID, action DebugAction) (Reply, error)

	AddBreakpoints(scope ScopeID, udf string, lines []int) error
	RemoveBreakpoints(scope ScopeID, udf string, lines []int) error
	ViewBreakpoints(scope ScopeID, udf string) ([]int, error)

	// Variables enumerates the variables visible in scope.
	Variables(scope ScopeID) ([]Variable, error)
	// Variable returns one variable from scope.
	Variable(scope ScopeID, name string) (Value, error)
	// DeleteVariable removes name from scope. It reports whether the
	// variable existed.
	DeleteVariable(scope ScopeID, name string) (bool, error)

	// LoadUDF registers the UDF file at path and returns its name.
	LoadUDF(path string) (string, error)
	// SetConfig replaces the engine configuration.
	SetConfig(cfg Config) error
	// Config returns the active configuration.
	Config() Config
}
