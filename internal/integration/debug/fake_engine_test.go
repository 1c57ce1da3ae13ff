package debug

import (
	"errors"
	"sort"
	"sync"

	"github.com/dshills/auxlab/internal/engine"
)

var errFake = errors.New("fake failure")

// fakeEngine is a scripted engine.Engine.
type fakeEngine struct {
	mu sync.Mutex

	root    engine.ScopeID
	initErr error
	cfg     engine.Config

	// evalReplies maps a command to its reply; unknown commands succeed.
	evalReplies map[string]engine.Reply
	evalErr     error
	evalScopes  []engine.ScopeID

	resumeReplies map[engine.DebugAction]engine.Reply
	resumeErr     error
	resumed       []engine.DebugAction

	pause      engine.PauseInfo
	pauseErr   error
	pauseCalls int

	vars map[engine.ScopeID]map[string]engine.Value

	bps      map[string]map[int]bool
	bpErr    error
	viewErr  error
	bpCalls  int
	closed   bool
	loaded   []string
	loadErr  error
	setCalls int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		root:          1,
		evalReplies:   make(map[string]engine.Reply),
		resumeReplies: make(map[engine.DebugAction]engine.Reply),
		vars: map[engine.ScopeID]map[string]engine.Value{
			1: {},
		},
		bps: make(map[string]map[int]bool),
	}
}

// pauseAt scripts the pause location and its frame chain, innermost last.
func (f *fakeEngine) pauseAt(file string, line int, frames ...engine.Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pause = engine.PauseInfo{File: file, Line: line, Frames: frames}
	if len(frames) > 0 {
		f.pause.Scope = frames[len(frames)-1].Scope
	}
	for _, fr := range frames {
		if f.vars[fr.Scope] == nil {
			f.vars[fr.Scope] = map[string]engine.Value{}
		}
	}
}

func (f *fakeEngine) setVar(scope engine.ScopeID, name string, v engine.Value) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.vars[scope] == nil {
		f.vars[scope] = map[string]engine.Value{}
	}
	f.vars[scope][name] = v
}

func (f *fakeEngine) Init(cfg engine.Config) (engine.ScopeID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.initErr != nil {
		return engine.NoScope, f.initErr
	}
	f.cfg = cfg
	return f.root, nil
}

func (f *fakeEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeEngine) Eval(scope engine.ScopeID, command string) (engine.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evalScopes = append(f.evalScopes, scope)
	if f.evalErr != nil {
		return engine.Reply{}, f.evalErr
	}
	if r, ok := f.evalReplies[command]; ok {
		return r, nil
	}
	return engine.Reply{Status: engine.StatusOK}, nil
}

func (f *fakeEngine) PauseInfo(engine.ScopeID) (engine.PauseInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauseCalls++
	if f.pauseErr != nil {
		return engine.PauseInfo{}, f.pauseErr
	}
	return f.pause, nil
}

func (f *fakeEngine) Resume(_ engine.ScopeID, action engine.DebugAction) (engine.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumed = append(f.resumed, action)
	if f.resumeErr != nil {
		return engine.Reply{}, f.resumeErr
	}
	if r, ok := f.resumeReplies[action]; ok {
		return r, nil
	}
	return engine.Reply{Status: engine.StatusOK}, nil
}

func (f *fakeEngine) AddBreakpoints(_ engine.ScopeID, udf string, lines []int) error {
	return f.editBreakpoints(udf, lines, true)
}

func (f *fakeEngine) RemoveBreakpoints(_ engine.ScopeID, udf string, lines []int) error {
	return f.editBreakpoints(udf, lines, false)
}

func (f *fakeEngine) editBreakpoints(udf string, lines []int, set bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bpCalls++
	if f.bpErr != nil {
		return f.bpErr
	}
	if f.bps[udf] == nil {
		f.bps[udf] = make(map[int]bool)
	}
	for _, l := range lines {
		if set {
			f.bps[udf][l] = true
		} else {
			delete(f.bps[udf], l)
		}
	}
	return nil
}

func (f *fakeEngine) ViewBreakpoints(_ engine.ScopeID, udf string) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.viewErr != nil {
		return nil, f.viewErr
	}
	var lines []int
	for l := range f.bps[udf] {
		lines = append(lines, l)
	}
	sort.Ints(lines)
	return lines, nil
}

func (f *fakeEngine) Variables(scope engine.ScopeID) ([]engine.Variable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	vars, ok := f.vars[scope]
	if !ok {
		return nil, errFake
	}
	out := make([]engine.Variable, 0, len(vars))
	for name, v := range vars {
		out = append(out, engine.Variable{Name: name, Value: v})
	}
	return out, nil
}

func (f *fakeEngine) Variable(scope engine.ScopeID, name string) (engine.Value, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vars[scope][name]
	if !ok {
		return nil, errFake
	}
	return v, nil
}

func (f *fakeEngine) DeleteVariable(scope engine.ScopeID, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.vars[scope][name]; !ok {
		return false, nil
	}
	delete(f.vars[scope], name)
	return true, nil
}

func (f *fakeEngine) LoadUDF(path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return "", f.loadErr
	}
	f.loaded = append(f.loaded, path)
	return path, nil
}

func (f *fakeEngine) SetConfig(cfg engine.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	f.cfg = cfg
	return nil
}

func (f *fakeEngine) Config() engine.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

// fakeResource records what the registry asked of it.
type fakeResource struct {
	mu      sync.Mutex
	closes  int
	active  bool
	toggles int
	gone    bool
	onClose func()
}

func (r *fakeResource) Close() {
	r.mu.Lock()
	r.closes++
	cb := r.onClose
	r.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (r *fakeResource) SetActive(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = active
	r.toggles++
}

func (r *fakeResource) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gone
}

func (r *fakeResource) closeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closes
}

func (r *fakeResource) isActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}
