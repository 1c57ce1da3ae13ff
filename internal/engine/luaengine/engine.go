package luaengine

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/auxlab/internal/engine"
)

// rootScope is the raw identity of the global namespace. Suspended frames
// are numbered from rootScope+1 by depth, so the same identity is reported
// for every frame that ever sits at a given depth.
const rootScope engine.ScopeID = 1

// maxStackWalk caps stack walks; gopher-lua may report the bottom frame
// repeatedly when tail calls are involved.
const maxStackWalk = 256

var assignPattern = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*=[^=]`)

type stepMode int

const (
	modeContinue stepMode = iota
	modeStepOver
	modeStepIn
	modeStepOut
)

// Engine evaluates Lua commands and debugs Lua UDF files.
//
// Commands at the root scope run in a fresh coroutine. An instrumented UDF
// line that hits a breakpoint, or a step target, yields that coroutine and
// leaves the program suspended until Resume. While suspended, commands run
// on the main thread against the variables of the chosen frame.
type Engine struct {
	mu sync.Mutex

	state *State
	opts  []StateOption
	cfg   engine.Config
	ready bool

	udfs    map[string]*udf
	files   []*udf
	sources map[string]*udf
	bps     map[string]map[int]bool

	builtins  map[string]bool
	audioMeta *lua.LTable
	out       bytes.Buffer

	run            *execution
	nextActivation uint64
	nesting        int
}

// execution is a program started from the root scope.
type execution struct {
	co       *lua.LState
	mode     stepMode
	depth    int
	assigned string

	// hit is set by the checkpoint hook just before it yields.
	hit *checkpointHit
	// frames is the suspended UDF stack, outermost first.
	frames []frameRef
	// extras holds variables created in a frame by commands evaluated
	// while suspended, keyed by frameRef.key.
	extras map[string]*lua.LTable
}

type checkpointHit struct {
	udf  *udf
	line int
}

// New creates an engine. Options apply to every state the engine creates.
func New(opts ...StateOption) *Engine {
	return &Engine{
		opts:    opts,
		udfs:    make(map[string]*udf),
		sources: make(map[string]*udf),
		bps:     make(map[string]map[int]bool),
	}
}

var _ engine.Engine = (*Engine)(nil)

// Init creates a fresh Lua state. Loaded UDFs and breakpoints survive a
// re-initialization; every known UDF file is loaded again.
func (e *Engine) Init(cfg engine.Config) (engine.ScopeID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != nil {
		e.state.Close()
	}
	e.run = nil
	e.cfg = cfg
	e.state = NewState(&e.out, e.opts...)
	e.installBuiltins()

	e.builtins = make(map[string]bool)
	e.state.L.G.Global.ForEach(func(k, _ lua.LValue) {
		if s, ok := k.(lua.LString); ok {
			e.builtins[string(s)] = true
		}
	})

	for _, u := range e.files {
		if _, err := e.loadUDF(e.state.L, u.path); err != nil {
			return engine.NoScope, fmt.Errorf("reload %s: %w", u.name, err)
		}
	}

	e.ready = true
	return rootScope, nil
}

// Close releases the Lua state.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != nil {
		e.state.Close()
	}
	e.state = nil
	e.run = nil
	e.ready = false
	return nil
}

// Eval evaluates command in scope. While a program is suspended the reply
// status stays StatusPaused unless the command fails.
func (e *Engine) Eval(scope engine.ScopeID, command string) (engine.Reply, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return engine.Reply{}, ErrNotInitialized
	}
	e.out.Reset()

	if e.run != nil {
		return e.evalSuspended(scope, command)
	}
	if scope != rootScope {
		return engine.Reply{}, fmt.Errorf("%w: %d", ErrUnknownScope, scope)
	}

	fn, assigned, err := e.compile(command)
	if err != nil {
		return e.errorReply(err), nil
	}

	co, _ := e.state.L.NewThread()
	e.run = &execution{
		co:       co,
		mode:     modeContinue,
		assigned: assigned,
		extras:   make(map[string]*lua.LTable),
	}
	return e.drive(fn), nil
}

// Resume leaves the current pause.
func (e *Engine) Resume(scope engine.ScopeID, action engine.DebugAction) (engine.Reply, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return engine.Reply{}, ErrNotInitialized
	}
	if e.run == nil {
		return engine.Reply{}, ErrNotPaused
	}
	e.out.Reset()

	run := e.run
	switch action {
	case engine.ActionAbort:
		e.run = nil
		return engine.Reply{Status: engine.StatusOK, Output: "aborted"}, nil
	case engine.ActionStepOver:
		run.mode = modeStepOver
	case engine.ActionStepIn:
		run.mode = modeStepIn
	case engine.ActionStepOut:
		run.mode = modeStepOut
	default:
		run.mode = modeContinue
	}
	run.depth = len(run.frames)

	return e.drive(nil), nil
}

// drive runs the current execution until it yields or ends.
func (e *Engine) drive(fn *lua.LFunction) engine.Reply {
	run := e.run
	run.hit = nil

	st, values, err := e.state.Resume(run.co, fn)
	switch {
	case err != nil || st == lua.ResumeError:
		e.run = nil
		msg := "execution failed"
		if err != nil {
			msg = errMessage(err)
		}
		return engine.Reply{Status: engine.StatusError, Output: e.joinOutput(msg)}
	case st == lua.ResumeYield && run.hit != nil:
		run.frames = e.walkFrames(run.co)
		e.pruneExtras()
		return engine.Reply{Status: engine.StatusPaused, Output: e.joinOutput("")}
	case st == lua.ResumeYield:
		e.run = nil
		return engine.Reply{Status: engine.StatusError, Output: e.joinOutput("unexpected yield")}
	default:
		e.run = nil
		return engine.Reply{Status: engine.StatusOK, Output: e.joinOutput(e.echo(values, run.assigned, e.state.L.G.Global))}
	}
}

// evalSuspended runs command on the main thread in the namespace of scope
// while the program stays suspended. Checkpoints are ignored meanwhile.
func (e *Engine) evalSuspended(scope engine.ScopeID, command string) (engine.Reply, error) {
	var (
		env   = e.state.L.G.Global
		frame *frameRef
	)
	if scope != rootScope {
		f, err := e.frameFor(scope)
		if err != nil {
			return engine.Reply{}, err
		}
		frame = f
		env = e.frameEnv(f)
	}

	fn, assigned, err := e.compile(command)
	if err != nil {
		return e.errorReply(err), nil
	}
	fn.Env = env

	e.nesting++
	values, err := e.state.Call(fn)
	e.nesting--

	if frame != nil {
		e.writeBack(frame, env)
	}
	if err != nil {
		return e.errorReply(err), nil
	}
	return engine.Reply{Status: engine.StatusPaused, Output: e.joinOutput(e.echo(values, assigned, env))}, nil
}

// PauseInfo reports the suspended location. The scope argument is accepted
// for any live scope; the answer is always the innermost frame.
func (e *Engine) PauseInfo(scope engine.ScopeID) (engine.PauseInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return engine.PauseInfo{}, ErrNotInitialized
	}
	if e.run == nil || e.run.hit == nil || len(e.run.frames) == 0 {
		return engine.PauseInfo{}, ErrNotPaused
	}
	if !e.scopeLive(scope) {
		return engine.PauseInfo{}, fmt.Errorf("%w: %d", ErrUnknownScope, scope)
	}

	frames := make([]engine.Frame, 0, len(e.run.frames))
	for i, f := range e.run.frames {
		frames = append(frames, engine.Frame{
			Scope:      frameScope(i),
			Activation: f.activation,
			Function:   f.name,
			File:       f.udf.name,
			Line:       f.line,
		})
	}
	return engine.PauseInfo{
		Scope:  frameScope(len(e.run.frames) - 1),
		File:   e.run.hit.udf.name,
		Line:   e.run.hit.line,
		Frames: frames,
	}, nil
}

// SetConfig replaces the engine configuration.
func (e *Engine) SetConfig(cfg engine.Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg
	return nil
}

// Config returns the active configuration.
func (e *Engine) Config() engine.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// checkpoint is called by instrumented UDF lines. It yields the running
// program when the line is a breakpoint or satisfies the step mode.
func (e *Engine) checkpoint(L *lua.LState) int {
	run := e.run
	if run == nil || L != run.co || e.nesting > 0 {
		return 0
	}
	idx := L.CheckInt(1)
	line := L.CheckInt(2)
	if idx < 0 || idx >= len(e.files) {
		return 0
	}
	u := e.files[idx]

	stop := e.bps[u.name][line]
	if !stop && run.mode != modeContinue {
		depth := len(e.walkFrames(L))
		switch run.mode {
		case modeStepIn:
			stop = true
		case modeStepOver:
			stop = depth <= run.depth
		case modeStepOut:
			stop = depth < run.depth
		}
	}
	if !stop {
		return 0
	}

	run.hit = &checkpointHit{udf: u, line: line}
	return L.Yield()
}

func (e *Engine) compile(command string) (*lua.LFunction, string, error) {
	// Parenthesized so a call is never a tail call; a tail call would
	// replace the command's frame and hide the outermost UDF frame.
	if fn, err := e.state.L.Load(strings.NewReader("return ("+command+"\n)"), "command"); err == nil {
		return fn, "", nil
	}
	fn, err := e.state.L.Load(strings.NewReader(command), "command")
	if err != nil {
		return nil, "", err
	}
	assigned := ""
	if m := assignPattern.FindStringSubmatch(command); m != nil {
		assigned = m[1]
	}
	return fn, assigned, nil
}

// echo renders the values a command produced: the returned value of an
// expression, or the new value of a simple assignment.
func (e *Engine) echo(values []lua.LValue, assigned string, env *lua.LTable) string {
	opts := engine.PreviewOptionsFrom(e.cfg)
	if assigned != "" {
		v := env.RawGetString(assigned)
		if v == lua.LNil {
			v = e.state.L.G.Global.RawGetString(assigned)
		}
		return assigned + " = " + engine.Preview(decode(v), opts)
	}

	var parts []string
	for _, v := range values {
		if v == lua.LNil {
			continue
		}
		parts = append(parts, "ans = "+engine.Preview(decode(v), opts))
	}
	return strings.Join(parts, "\n")
}

func (e *Engine) errorReply(err error) engine.Reply {
	return engine.Reply{Status: engine.StatusError, Output: e.joinOutput(errMessage(err))}
}

// joinOutput appends msg to whatever the command printed.
func (e *Engine) joinOutput(msg string) string {
	printed := strings.TrimRight(e.out.String(), "\n")
	e.out.Reset()
	switch {
	case printed == "":
		return msg
	case msg == "":
		return printed
	default:
		return printed + "\n" + msg
	}
}
