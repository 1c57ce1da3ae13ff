package luaengine

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/auxlab/internal/engine"
)

// frameRef locates one suspended UDF activation on the coroutine stack.
// Stack levels stay valid for as long as the coroutine stays suspended.
type frameRef struct {
	level      int
	udf        *udf
	activation uint64
	name       string
	line       int
}

// key identifies the activation for per-frame bookkeeping.
func (f frameRef) key() string {
	if f.activation != 0 {
		return fmt.Sprintf("a%d", f.activation)
	}
	return fmt.Sprintf("l%d:%s", f.level, f.udf.name)
}

// frameScope returns the raw scope identity of the frame at index i,
// counting from the outermost suspended frame.
func frameScope(i int) engine.ScopeID {
	return rootScope + 1 + engine.ScopeID(i)
}

// walkFrames lists the UDF activations on L's stack, outermost first.
func (e *Engine) walkFrames(L *lua.LState) []frameRef {
	var frames []frameRef
	for level := 0; level < maxStackWalk; level++ {
		dbg, ok := L.GetStack(level)
		if !ok {
			break
		}
		if _, err := L.GetInfo("Sln", dbg, lua.LNil); err != nil {
			break
		}
		if dbg.What == "main" {
			break
		}
		if dbg.What == "G" {
			continue
		}
		u, ok := e.sources[dbg.Source]
		if !ok {
			continue
		}

		name := dbg.Name
		if name == "" || strings.HasPrefix(name, "<") {
			name = u.name
		}
		frames = append(frames, frameRef{
			level:      level,
			udf:        u,
			activation: activationOf(L, dbg),
			name:       name,
			line:       dbg.CurrentLine,
		})
	}

	for i, j := 0, len(frames)-1; i < j; i, j = i+1, j-1 {
		frames[i], frames[j] = frames[j], frames[i]
	}
	return frames
}

func activationOf(L *lua.LState, dbg *lua.Debug) uint64 {
	for n := 1; ; n++ {
		name, v := L.GetLocal(dbg, n)
		if name == "" {
			return 0
		}
		if name == activationVar {
			if num, ok := v.(lua.LNumber); ok {
				return uint64(num)
			}
		}
	}
}

// frameLocals returns the visible locals of a frame: their current values
// and their slots. Shadowed names resolve to the innermost declaration.
func frameLocals(L *lua.LState, dbg *lua.Debug) (map[string]lua.LValue, map[string]int) {
	values := make(map[string]lua.LValue)
	slots := make(map[string]int)
	for n := 1; ; n++ {
		name, v := L.GetLocal(dbg, n)
		if name == "" {
			break
		}
		if strings.HasPrefix(name, "(") || name == activationVar {
			continue
		}
		values[name] = v
		slots[name] = n
	}
	return values, slots
}

func (e *Engine) scopeLive(scope engine.ScopeID) bool {
	if scope == rootScope {
		return true
	}
	if e.run == nil {
		return false
	}
	i := int(scope - rootScope - 1)
	return scope > rootScope && i < len(e.run.frames)
}

func (e *Engine) frameFor(scope engine.ScopeID) (*frameRef, error) {
	if scope == rootScope || !e.scopeLive(scope) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownScope, scope)
	}
	f := e.run.frames[int(scope-rootScope-1)]
	return &f, nil
}

// frameEnv builds an environment exposing a frame's locals and extras,
// falling back to globals.
func (e *Engine) frameEnv(f *frameRef) *lua.LTable {
	L := e.state.L
	env := L.NewTable()

	if dbg, ok := e.run.co.GetStack(f.level); ok {
		values, _ := frameLocals(e.run.co, dbg)
		for name, v := range values {
			env.RawSetString(name, v)
		}
	}
	if extra := e.run.extras[f.key()]; extra != nil {
		extra.ForEach(func(k, v lua.LValue) {
			env.RawSet(k, v)
		})
	}

	mt := L.NewTable()
	mt.RawSetString("__index", L.G.Global)
	L.SetMetatable(env, mt)
	return env
}

// writeBack stores the environment of a suspended-frame command back into
// the frame: locals in place, anything new as a frame extra.
func (e *Engine) writeBack(f *frameRef, env *lua.LTable) {
	dbg, ok := e.run.co.GetStack(f.level)
	if !ok {
		return
	}
	_, slots := frameLocals(e.run.co, dbg)
	for name, slot := range slots {
		e.run.co.SetLocal(dbg, slot, env.RawGetString(name))
	}

	extra := e.state.L.NewTable()
	env.ForEach(func(k, v lua.LValue) {
		if s, ok := k.(lua.LString); ok {
			if _, isLocal := slots[string(s)]; isLocal {
				return
			}
		}
		extra.RawSet(k, v)
	})
	e.run.extras[f.key()] = extra
}

// pruneExtras forgets extras of activations that are no longer suspended.
func (e *Engine) pruneExtras() {
	live := make(map[string]bool, len(e.run.frames))
	for _, f := range e.run.frames {
		live[f.key()] = true
	}
	for k := range e.run.extras {
		if !live[k] {
			delete(e.run.extras, k)
		}
	}
}

// frameVariables lists the variables of a suspended frame.
func (e *Engine) frameVariables(f *frameRef) map[string]lua.LValue {
	out := make(map[string]lua.LValue)
	if dbg, ok := e.run.co.GetStack(f.level); ok {
		values, _ := frameLocals(e.run.co, dbg)
		for name, v := range values {
			out[name] = v
		}
	}
	if extra := e.run.extras[f.key()]; extra != nil {
		extra.ForEach(func(k, v lua.LValue) {
			if s, ok := k.(lua.LString); ok {
				out[string(s)] = v
			}
		})
	}
	return out
}
