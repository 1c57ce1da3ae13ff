package debug

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dshills/auxlab/internal/engine"
)

// Origin identifies the kind of call that produced an Outcome.
type Origin int

const (
	// OriginEvaluate is a command evaluation.
	OriginEvaluate Origin = iota
	// OriginResume is a debug action leaving a pause.
	OriginResume
)

// String returns the origin name.
func (o Origin) String() string {
	switch o {
	case OriginEvaluate:
		return "evaluate"
	case OriginResume:
		return "resume"
	default:
		return "unknown"
	}
}

// ResumeAction is the debug action that leaves a pause.
type ResumeAction = engine.DebugAction

// Resume actions.
const (
	Continue = engine.ActionContinue
	StepOver = engine.ActionStepOver
	StepIn   = engine.ActionStepIn
	StepOut  = engine.ActionStepOut
	Abort    = engine.ActionAbort
)

// ParseResumeAction maps a console word to an action.
func ParseResumeAction(s string) (ResumeAction, bool) {
	switch s {
	case "continue", "c":
		return Continue, true
	case "step", "next", "n":
		return StepOver, true
	case "stepin", "step-in", "s":
		return StepIn, true
	case "stepout", "step-out", "o":
		return StepOut, true
	case "abort":
		return Abort, true
	default:
		return Continue, false
	}
}

// PauseInfo locates a pause in scope-handle terms.
type PauseInfo struct {
	Scope Scope
	File  string
	Line  int
	Stack CallStack
}

// Outcome is the complete result of an evaluate or resume.
type Outcome struct {
	Origin  Origin
	Status  engine.Status
	Message string
	// Pause is set only for a paused outcome whose location is known.
	Pause *PauseInfo
	// Anomaly records an inconsistency the gateway recovered from.
	Anomaly error
}

// Paused reports whether the outcome leaves the session paused.
func (o Outcome) Paused() bool {
	return o.Status == engine.StatusPaused && o.Pause != nil
}

// Err returns the engine's rejection of a command as an *EvalError.
func (o Outcome) Err(command string) error {
	if o.Status != engine.StatusError {
		return nil
	}
	return &EvalError{Command: command, Message: o.Message}
}

// BreakpointRequest is AddBreakpoint or RemoveBreakpoint.
type BreakpointRequest interface {
	Location() (file string, line int)
	breakpointRequest()
}

// AddBreakpoint asks the engine to set a breakpoint.
type AddBreakpoint struct {
	File string
	Line int
}

// RemoveBreakpoint asks the engine to clear a breakpoint.
type RemoveBreakpoint struct {
	File string
	Line int
}

// Location returns the file and line.
func (r AddBreakpoint) Location() (string, int) { return r.File, r.Line }

// Location returns the file and line.
func (r RemoveBreakpoint) Location() (string, int) { return r.File, r.Line }

func (AddBreakpoint) breakpointRequest()    {}
func (RemoveBreakpoint) breakpointRequest() {}

// GatewayHandlers contains callbacks for gateway events.
type GatewayHandlers struct {
	// OnAnomaly is called when an outcome was corrected, for example a
	// pause without pause info demoted to a non-paused outcome.
	OnAnomaly func(origin Origin, err error)
}

// Gateway is the only path to the engine. It translates raw engine scope
// identities into generation-checked handles and turns every evaluate or
// resume into a complete Outcome.
type Gateway struct {
	eng    engine.Engine
	scopes *ScopeTable

	mu      sync.Mutex
	rootRaw engine.ScopeID
	ready   bool
	paused  bool
	current Scope

	handlers   GatewayHandlers
	handlersMu sync.RWMutex
}

// NewGateway creates a gateway over eng.
func NewGateway(eng engine.Engine) *Gateway {
	return &Gateway{
		eng:    eng,
		scopes: NewScopeTable(),
	}
}

// SetHandlers sets the gateway event handlers.
func (g *Gateway) SetHandlers(handlers GatewayHandlers) {
	g.handlersMu.Lock()
	g.handlers = handlers
	g.handlersMu.Unlock()
}

// Scopes returns the handle table.
func (g *Gateway) Scopes() *ScopeTable {
	return g.scopes
}

// Init initializes the engine and mints the root scope handle.
func (g *Gateway) Init(cfg engine.Config) error {
	raw, err := g.eng.Init(cfg)

	g.mu.Lock()
	defer g.mu.Unlock()

	g.paused = false
	g.current = Scope{}
	if err != nil {
		g.ready = false
		return fmt.Errorf("init engine: %w", err)
	}
	if raw == engine.NoScope {
		g.ready = false
		return fmt.Errorf("init engine: %w", ErrEngineNotInitialized)
	}
	g.rootRaw = raw
	g.ready = true
	g.current = g.scopes.Reset(raw)
	return nil
}

// Initialized reports whether Init succeeded.
func (g *Gateway) Initialized() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready
}

// Root returns the root scope handle.
func (g *Gateway) Root() Scope {
	return g.scopes.Root()
}

// Close releases the engine.
func (g *Gateway) Close() error {
	g.mu.Lock()
	g.ready = false
	g.paused = false
	g.mu.Unlock()
	return g.eng.Close()
}

// Evaluate runs command in target.
func (g *Gateway) Evaluate(command string, target Scope) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.ready {
		return Outcome{}, ErrEngineNotInitialized
	}
	raw, ok := g.scopes.Raw(target)
	if !ok {
		return Outcome{}, fmt.Errorf("evaluate in %s: %w", target, ErrStaleScope)
	}

	reply, err := g.eng.Eval(raw, command)
	if err != nil {
		return Outcome{}, fmt.Errorf("evaluate: %w", err)
	}
	return g.settle(OriginEvaluate, reply), nil
}

// Resume leaves the current pause with action. Abort always yields a
// non-paused outcome.
func (g *Gateway) Resume(action ResumeAction) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.ready {
		return Outcome{}, ErrEngineNotInitialized
	}
	if !g.paused {
		return Outcome{}, ErrNotPaused
	}
	raw, ok := g.scopes.Raw(g.current)
	if !ok {
		raw = g.rootRaw
	}

	reply, err := g.eng.Resume(raw, action)
	if action == Abort {
		return g.forceIdle(reply, err), nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("resume %s: %w", action, err)
	}
	return g.settle(OriginResume, reply), nil
}

// forceIdle builds the outcome of an abort. Whatever the engine says, the
// session leaves the pause.
func (g *Gateway) forceIdle(reply engine.Reply, err error) Outcome {
	o := Outcome{Origin: OriginResume, Status: engine.StatusOK, Message: reply.Output}
	switch {
	case err != nil:
		o.Anomaly = fmt.Errorf("abort: %w", err)
		o.Message = ""
	case reply.Status == engine.StatusPaused:
		o.Anomaly = ErrAbortIgnored
	case reply.Status == engine.StatusError:
		o.Status = engine.StatusError
	}
	g.leave()
	if o.Anomaly != nil {
		g.anomaly(OriginResume, o.Anomaly)
	}
	return o
}

// settle completes an engine reply. Paused replies are followed by a
// pause-info query; a failed or inconclusive query demotes the outcome.
func (g *Gateway) settle(origin Origin, reply engine.Reply) Outcome {
	o := Outcome{Origin: origin, Status: reply.Status, Message: reply.Output}

	switch reply.Status {
	case engine.StatusPaused:
		pause, err := g.queryPause()
		if err != nil {
			o.Status = engine.StatusOK
			o.Anomaly = err
			g.leave()
			g.anomaly(origin, err)
			return o
		}
		o.Pause = pause
		g.paused = true
		if !pause.Scope.IsZero() {
			g.current = pause.Scope
		}
	case engine.StatusError:
		// A rejected command leaves the engine where it was. A program
		// that fails while running has ended.
		if origin == OriginResume {
			g.leave()
		}
	default:
		g.leave()
	}
	return o
}

func (g *Gateway) queryPause() (*PauseInfo, error) {
	info, err := g.eng.PauseInfo(g.rootRaw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPauseInfoUnavailable, err)
	}
	if info.File == "" || info.Line <= 0 {
		return nil, fmt.Errorf("%w: no location reported", ErrPauseInfoUnavailable)
	}

	pause := &PauseInfo{File: info.File, Line: info.Line}
	if len(info.Frames) > 0 {
		handles := g.scopes.Retain(info.Frames)
		pause.Stack = make(CallStack, len(info.Frames))
		for i, f := range info.Frames {
			pause.Stack[i] = StackFrame{
				Depth:    i,
				Scope:    handles[i],
				Function: f.Function,
				File:     f.File,
				Line:     f.Line,
			}
			if f.Scope == info.Scope {
				pause.Scope = handles[i]
			}
		}
	}
	if pause.Scope.IsZero() && info.Scope != engine.NoScope {
		pause.Scope = g.scopes.Observe(info.Scope, 0)
	}
	return pause, nil
}

func (g *Gateway) leave() {
	g.paused = false
	g.scopes.LeaveAll()
	g.current = g.scopes.Root()
}

func (g *Gateway) anomaly(origin Origin, err error) {
	g.handlersMu.RLock()
	handler := g.handlers.OnAnomaly
	g.handlersMu.RUnlock()

	if handler != nil {
		handler(origin, err)
	}
}

func (g *Gateway) raw(scope Scope) (engine.ScopeID, error) {
	g.mu.Lock()
	ready := g.ready
	g.mu.Unlock()
	if !ready {
		return engine.NoScope, ErrEngineNotInitialized
	}
	raw, ok := g.scopes.Raw(scope)
	if !ok {
		return engine.NoScope, fmt.Errorf("%s: %w", scope, ErrStaleScope)
	}
	return raw, nil
}

// ListVariables lists the variables of scope, sorted by name.
func (g *Gateway) ListVariables(scope Scope) ([]VariableSummary, error) {
	raw, err := g.raw(scope)
	if err != nil {
		return nil, err
	}
	vars, err := g.eng.Variables(raw)
	if err != nil {
		return nil, fmt.Errorf("list variables: %w", err)
	}
	return summarizeAll(vars, engine.PreviewOptionsFrom(g.eng.Config())), nil
}

// Variable returns the value of name in scope.
func (g *Gateway) Variable(name string, scope Scope) (engine.Value, error) {
	raw, err := g.raw(scope)
	if err != nil {
		return nil, err
	}
	v, err := g.eng.Variable(raw, name)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", name, err)
	}
	return v, nil
}

// DeleteVariable removes name from scope and reports whether it existed.
func (g *Gateway) DeleteVariable(name string, scope Scope) (bool, error) {
	raw, err := g.raw(scope)
	if err != nil {
		return false, err
	}
	ok, err := g.eng.DeleteVariable(raw, name)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", name, err)
	}
	return ok, nil
}

// SetBreakpoint forwards a breakpoint request.
func (g *Gateway) SetBreakpoint(req BreakpointRequest) error {
	root, err := g.raw(g.Root())
	if err != nil {
		return err
	}
	file, line := req.Location()
	switch req.(type) {
	case AddBreakpoint:
		err = g.eng.AddBreakpoints(root, file, []int{line})
	case RemoveBreakpoint:
		err = g.eng.RemoveBreakpoints(root, file, []int{line})
	default:
		err = errors.New("unknown breakpoint request")
	}
	if err != nil {
		return fmt.Errorf("breakpoint %s:%d: %w", file, line, err)
	}
	return nil
}

// ViewBreakpoints returns the engine's breakpoint lines for file.
func (g *Gateway) ViewBreakpoints(file string) ([]int, error) {
	root, err := g.raw(g.Root())
	if err != nil {
		return nil, err
	}
	lines, err := g.eng.ViewBreakpoints(root, file)
	if err != nil {
		return nil, fmt.Errorf("view breakpoints %s: %w", file, err)
	}
	return lines, nil
}

// LoadUDF loads a UDF file and returns its name.
func (g *Gateway) LoadUDF(path string) (string, error) {
	if !g.Initialized() {
		return "", ErrEngineNotInitialized
	}
	name, err := g.eng.LoadUDF(path)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", path, err)
	}
	return name, nil
}

// ApplyConfig forwards runtime settings.
func (g *Gateway) ApplyConfig(cfg engine.Config) error {
	if !g.Initialized() {
		return ErrEngineNotInitialized
	}
	if err := g.eng.SetConfig(cfg); err != nil {
		return fmt.Errorf("apply config: %w", err)
	}
	return nil
}

// Config returns the engine configuration.
func (g *Gateway) Config() engine.Config {
	return g.eng.Config()
}
