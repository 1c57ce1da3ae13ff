package luaengine

import (
	"context"
	"fmt"
	"io"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultExecutionTimeout bounds a single evaluate or resume call.
const DefaultExecutionTimeout = 30 * time.Second

// State wraps a sandboxed gopher-lua state.
//
// gopher-lua's LState is not goroutine-safe. A State is owned by one Engine
// and only touched while the engine lock is held.
type State struct {
	L *lua.LState

	executionTimeout time.Duration
	sandbox          *Sandbox
	closed           bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithExecutionTimeout sets the per-call timeout. Zero disables it.
func WithExecutionTimeout(d time.Duration) StateOption {
	return func(s *State) {
		s.executionTimeout = d
	}
}

// NewState creates a sandboxed Lua state whose print output goes to out.
func NewState(out io.Writer, opts ...StateOption) *State {
	s := &State{executionTimeout: DefaultExecutionTimeout}
	for _, opt := range opts {
		opt(s)
	}

	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})
	s.L = L

	openSafeLibraries(L)

	s.sandbox = NewSandbox(L, out)
	s.sandbox.Install()

	return s
}

// openSafeLibraries opens only the standard libraries UDFs may use.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// callContext returns the context bounding one call.
func (s *State) callContext() (context.Context, context.CancelFunc) {
	if s.executionTimeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), s.executionTimeout)
}

// Call runs fn on the main thread and returns its results.
func (s *State) Call(fn *lua.LFunction) ([]lua.LValue, error) {
	if s.closed {
		return nil, ErrStateClosed
	}

	ctx, cancel := s.callContext()
	defer cancel()
	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	top := s.L.GetTop()
	s.L.Push(fn)

	var results []lua.LValue
	err := s.doWithRecovery(func() error {
		if err := s.L.PCall(0, lua.MultRet, nil); err != nil {
			return err
		}
		n := s.L.GetTop() - top
		results = make([]lua.LValue, 0, n)
		for i := 1; i <= n; i++ {
			results = append(results, s.L.Get(top+i))
		}
		return nil
	})
	s.L.SetTop(top)

	return results, err
}

// Resume runs or continues th. fn is only used on the first resume.
func (s *State) Resume(th *lua.LState, fn *lua.LFunction) (lua.ResumeState, []lua.LValue, error) {
	if s.closed {
		return lua.ResumeError, nil, ErrStateClosed
	}

	ctx, cancel := s.callContext()
	defer cancel()
	th.SetContext(ctx)
	defer th.RemoveContext()

	var (
		st     lua.ResumeState
		values []lua.LValue
	)
	err := s.doWithRecovery(func() error {
		var rerr error
		st, rerr, values = s.L.Resume(th, fn)
		return rerr
	})
	if err != nil {
		st = lua.ResumeError
	}
	return st, values, err
}

// doWithRecovery executes a function with panic recovery.
func (s *State) doWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// Close releases the Lua state.
func (s *State) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.L.Close()
}

// errMessage extracts the Lua error text without a traceback.
func errMessage(err error) string {
	if apiErr, ok := err.(*lua.ApiError); ok && apiErr.Object != nil {
		return apiErr.Object.String()
	}
	return err.Error()
}
