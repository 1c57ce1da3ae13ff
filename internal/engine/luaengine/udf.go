package luaengine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/auxlab/internal/engine"
)

// UDFExtensions are the file extensions searched for UDFs, in order.
var UDFExtensions = []string{".aux", ".lua"}

// udf is a loaded user-defined function file. The file defines a global
// function named after its stem.
type udf struct {
	name  string
	path  string
	chunk string
	idx   int
}

// LoadUDF registers the UDF file at path and returns its name.
func (e *Engine) LoadUDF(path string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return "", ErrNotInitialized
	}
	return e.loadUDF(e.state.L, path)
}

// loadUDF instruments and runs a UDF file on L. Checkpoints are ignored
// while the file's top level runs.
func (e *Engine) loadUDF(L *lua.LState, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUDFNotFound, path)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}

	name := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	u, ok := e.udfs[name]
	if !ok {
		u = &udf{name: name, idx: len(e.files)}
	}
	if u.chunk != "" {
		delete(e.sources, u.chunk)
	}
	u.path = abs
	u.chunk = filepath.Base(abs)

	fn, err := L.Load(strings.NewReader(instrument(string(src), u.idx)), u.chunk)
	if err != nil {
		return "", err
	}

	if !ok {
		e.files = append(e.files, u)
		e.udfs[name] = u
	}
	e.sources[u.chunk] = u

	e.nesting++
	defer func() { e.nesting-- }()
	L.Push(fn)
	if err := L.PCall(0, 0, nil); err != nil {
		return "", err
	}
	return name, nil
}

// findUDF looks for a UDF file by name on the search path and then in the
// working directory.
func (e *Engine) findUDF(name string) (string, bool) {
	dirs := append(append([]string(nil), e.cfg.SearchPaths...), ".")
	for _, dir := range dirs {
		for _, ext := range UDFExtensions {
			p := filepath.Join(dir, name+ext)
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return p, true
			}
		}
	}
	return "", false
}

// resolveUDF returns a loaded UDF, loading it from the search path if
// needed.
func (e *Engine) resolveUDF(name string) (*udf, error) {
	if u, ok := e.udfs[name]; ok {
		return u, nil
	}
	path, found := e.findUDF(name)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUDFNotFound, name)
	}
	if _, err := e.loadUDF(e.state.L, path); err != nil {
		return nil, err
	}
	return e.udfs[name], nil
}

// AddBreakpoints enables breakpoints on lines of a UDF.
func (e *Engine) AddBreakpoints(scope engine.ScopeID, name string, lines []int) error {
	return e.editBreakpoints(name, lines, true)
}

// RemoveBreakpoints disables breakpoints on lines of a UDF.
func (e *Engine) RemoveBreakpoints(scope engine.ScopeID, name string, lines []int) error {
	return e.editBreakpoints(name, lines, false)
}

func (e *Engine) editBreakpoints(name string, lines []int, enable bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return ErrNotInitialized
	}
	for _, line := range lines {
		if line <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidLine, line)
		}
	}
	u, err := e.resolveUDF(name)
	if err != nil {
		return err
	}

	set := e.bps[u.name]
	if set == nil {
		set = make(map[int]bool)
		e.bps[u.name] = set
	}
	for _, line := range lines {
		if enable {
			set[line] = true
		} else {
			delete(set, line)
		}
	}
	return nil
}

// ViewBreakpoints lists the breakpoint lines of a UDF in ascending order.
func (e *Engine) ViewBreakpoints(scope engine.ScopeID, name string) ([]int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return nil, ErrNotInitialized
	}
	if _, ok := e.udfs[name]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUDFNotFound, name)
	}
	lines := make([]int, 0, len(e.bps[name]))
	for line := range e.bps[name] {
		lines = append(lines, line)
	}
	sort.Ints(lines)
	return lines, nil
}

// Variables enumerates the variables of scope, sorted by name.
func (e *Engine) Variables(scope engine.ScopeID) ([]engine.Variable, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	raw, err := e.rawVariables(scope)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	vars := make([]engine.Variable, 0, len(names))
	for _, name := range names {
		vars = append(vars, engine.Variable{Name: name, Value: decode(raw[name])})
	}
	return vars, nil
}

// Variable returns one variable of scope.
func (e *Engine) Variable(scope engine.ScopeID, name string) (engine.Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	raw, err := e.rawVariables(scope)
	if err != nil {
		return nil, err
	}
	v, ok := raw[name]
	if !ok {
		return nil, fmt.Errorf("variable %q not found", name)
	}
	return decode(v), nil
}

func (e *Engine) rawVariables(scope engine.ScopeID) (map[string]lua.LValue, error) {
	if !e.ready {
		return nil, ErrNotInitialized
	}

	out := make(map[string]lua.LValue)
	if scope == rootScope {
		e.state.L.G.Global.ForEach(func(k, v lua.LValue) {
			s, ok := k.(lua.LString)
			if !ok || e.builtins[string(s)] || strings.HasPrefix(string(s), "__") || !listed(v) {
				return
			}
			out[string(s)] = v
		})
		return out, nil
	}

	f, err := e.frameFor(scope)
	if err != nil {
		return nil, err
	}
	for name, v := range e.frameVariables(f) {
		if listed(v) {
			out[name] = v
		}
	}
	return out, nil
}

// DeleteVariable removes a variable from scope. Locals of a suspended frame
// cannot be undeclared; they are cleared to nil, which hides them.
func (e *Engine) DeleteVariable(scope engine.ScopeID, name string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return false, ErrNotInitialized
	}

	if scope == rootScope {
		g := e.state.L.G.Global
		if e.builtins[name] || !listed(g.RawGetString(name)) {
			return false, nil
		}
		g.RawSetString(name, lua.LNil)
		return true, nil
	}

	f, err := e.frameFor(scope)
	if err != nil {
		return false, err
	}
	if extra := e.run.extras[f.key()]; extra != nil && extra.RawGetString(name) != lua.LNil {
		extra.RawSetString(name, lua.LNil)
		return true, nil
	}
	dbg, ok := e.run.co.GetStack(f.level)
	if !ok {
		return false, nil
	}
	values, slots := frameLocals(e.run.co, dbg)
	if v, ok := values[name]; !ok || !listed(v) {
		return false, nil
	}
	e.run.co.SetLocal(dbg, slots[name], lua.LNil)
	return true, nil
}
