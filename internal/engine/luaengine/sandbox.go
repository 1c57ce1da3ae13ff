package luaengine

import (
	"io"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// Sandbox restricts Lua execution to operations a UDF needs.
type Sandbox struct {
	L   *lua.LState
	out io.Writer
}

// NewSandbox creates a sandbox for the Lua state.
func NewSandbox(L *lua.LState, out io.Writer) *Sandbox {
	return &Sandbox{L: L, out: out}
}

// Install removes loaders that bypass the UDF search path and redirects
// print to the engine's output buffer.
func (s *Sandbox) Install() {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		s.L.SetGlobal(name, lua.LNil)
	}
	s.installPrint()
}

func (s *Sandbox) installPrint() {
	s.L.SetGlobal("print", s.L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		parts := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		if s.out != nil {
			_, _ = io.WriteString(s.out, strings.Join(parts, "\t")+"\n")
		}
		return 0
	}))
}
