package debug

import (
	"sync"

	"github.com/dshills/auxlab/internal/engine"
)

// Result is what one user action did to the session.
type Result struct {
	Outcome Outcome
	State   SessionState
	Report  ReconcileReport
}

// Debugger sequences user actions over the gateway, the controller, the
// registry and the breakpoint store. Each action makes one engine call,
// applies its outcome, and reconciles the open inspectors.
//
// Debugger methods are not reentrant; callers serialize them, normally
// through a Queue.
type Debugger struct {
	gateway     *Gateway
	controller  *Controller
	registry    *Registry
	breakpoints *BreakpointStore

	mu    sync.RWMutex
	stack CallStack

	// selected is the outer frame chosen with SelectFrame, kept across
	// evaluations that leave the program suspended at the same point.
	selected *frameSelection
}

type frameSelection struct {
	frame StackFrame
	inner StackFrame
}

// NewDebugger creates a debugger over eng. Init must be called before use.
func NewDebugger(eng engine.Engine) *Debugger {
	gw := NewGateway(eng)
	return &Debugger{
		gateway:     gw,
		controller:  NewController(Scope{}),
		registry:    NewRegistry(),
		breakpoints: NewBreakpointStore(gw),
	}
}

// Gateway returns the engine gateway.
func (d *Debugger) Gateway() *Gateway { return d.gateway }

// Controller returns the session controller.
func (d *Debugger) Controller() *Controller { return d.controller }

// Registry returns the inspector registry.
func (d *Debugger) Registry() *Registry { return d.registry }

// Breakpoints returns the breakpoint store.
func (d *Debugger) Breakpoints() *BreakpointStore { return d.breakpoints }

// Init initializes the engine and returns to idle in the new root scope.
// Inspectors bound to scopes of the previous engine session are closed.
func (d *Debugger) Init(cfg engine.Config) (ReconcileReport, error) {
	if err := d.controller.Begin(); err != nil {
		return ReconcileReport{}, err
	}
	defer d.controller.End()

	if err := d.gateway.Init(cfg); err != nil {
		return ReconcileReport{}, err
	}
	d.controller.Reset(d.gateway.Root())
	d.setStack(nil)
	d.selected = nil
	return d.reconcile(), nil
}

// Evaluate runs command in the current scope.
func (d *Debugger) Evaluate(command string) (Result, error) {
	if err := d.controller.Begin(); err != nil {
		return Result{}, err
	}
	defer d.controller.End()

	o, err := d.gateway.Evaluate(command, d.controller.CurrentScope())
	if err != nil {
		return Result{}, err
	}
	return d.apply(o), nil
}

// reselect restores the selected outer frame after an evaluation that left
// the program suspended where it was.
func (d *Debugger) reselect(o Outcome) (SessionState, bool) {
	sel := d.selected
	if sel == nil || o.Origin != OriginEvaluate || !o.Paused() {
		return SessionState{}, false
	}
	if o.Pause.Scope != sel.inner.Scope || o.Pause.Line != sel.inner.Line {
		return SessionState{}, false
	}
	if !d.gateway.Scopes().IsLive(sel.frame.Scope) {
		return SessionState{}, false
	}
	return d.controller.Apply(selectionOutcome(sel.frame, o.Pause.Stack)), true
}

func selectionOutcome(f StackFrame, stack CallStack) Outcome {
	return Outcome{
		Origin: OriginResume,
		Status: engine.StatusPaused,
		Pause:  &PauseInfo{Scope: f.Scope, File: f.File, Line: f.Line, Stack: stack},
	}
}

// Resume leaves the current pause.
func (d *Debugger) Resume(action ResumeAction) (Result, error) {
	if err := d.controller.Begin(); err != nil {
		return Result{}, err
	}
	defer d.controller.End()

	if !d.controller.IsPaused() {
		return Result{}, ErrNotPaused
	}
	o, err := d.gateway.Resume(action)
	if err != nil {
		return Result{}, err
	}
	return d.apply(o), nil
}

func (d *Debugger) apply(o Outcome) Result {
	state := d.controller.Apply(o)
	if st, ok := d.reselect(o); ok {
		state = st
	} else if o.Status != engine.StatusError || o.Origin != OriginEvaluate {
		d.selected = nil
	}
	switch {
	case o.Paused():
		d.setStack(o.Pause.Stack)
	case !state.Paused:
		d.setStack(nil)
	}
	return Result{Outcome: o, State: state, Report: d.reconcile()}
}

// DeleteVariable removes name from the current scope.
func (d *Debugger) DeleteVariable(name string) (bool, ReconcileReport, error) {
	if err := d.controller.Begin(); err != nil {
		return false, ReconcileReport{}, err
	}
	defer d.controller.End()

	ok, err := d.gateway.DeleteVariable(name, d.controller.CurrentScope())
	if err != nil {
		return false, ReconcileReport{}, err
	}
	return ok, d.reconcile(), nil
}

// Variables lists the current scope.
func (d *Debugger) Variables() ([]VariableSummary, error) {
	return d.gateway.ListVariables(d.controller.CurrentScope())
}

// Variable returns a variable of the current scope.
func (d *Debugger) Variable(name string) (engine.Value, error) {
	return d.gateway.Variable(name, d.controller.CurrentScope())
}

// Open registers an inspector for variable in the current scope.
func (d *Debugger) Open(variable, ref string, kind ResourceKind, res Resource) (Scope, error) {
	scope := d.controller.CurrentScope()
	if err := d.registry.Register(variable, scope, ref, kind, res); err != nil {
		return Scope{}, err
	}
	return scope, nil
}

// Reconcile runs a reconciliation pass against the current state.
func (d *Debugger) Reconcile() ReconcileReport {
	return d.reconcile()
}

func (d *Debugger) reconcile() ReconcileReport {
	st := d.controller.State()
	var live VariableSet
	if vars, err := d.gateway.ListVariables(st.Scope); err == nil {
		live = VariableNames(vars)
	}
	return d.registry.ReconcileWith(st.Scope, st.Paused, live, d.gateway.Scopes().IsLive)
}

// Stack returns the frame chain of the current pause.
func (d *Debugger) Stack() CallStack {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stack
}

func (d *Debugger) setStack(stack CallStack) {
	d.mu.Lock()
	d.stack = stack
	d.mu.Unlock()
}

// SelectFrame makes the frame at depth current, for inspecting an outer
// call while paused. Depth 0 is the outermost frame. The selection holds
// until the program moves.
func (d *Debugger) SelectFrame(depth int) (SessionState, error) {
	stack := d.Stack()
	if !d.controller.IsPaused() {
		return d.controller.State(), ErrNotPaused
	}
	if depth < 0 || depth >= len(stack) {
		return d.controller.State(), ErrStaleScope
	}
	f := stack[depth]
	if !d.gateway.Scopes().IsLive(f.Scope) {
		return d.controller.State(), ErrStaleScope
	}
	inner, _ := stack.Innermost()
	if f.File == "" {
		f.File = inner.File
	}
	state := d.controller.Apply(selectionOutcome(f, stack))
	if f.Scope == inner.Scope {
		d.selected = nil
	} else {
		d.selected = &frameSelection{frame: f, inner: inner}
	}
	d.reconcile()
	return state, nil
}
