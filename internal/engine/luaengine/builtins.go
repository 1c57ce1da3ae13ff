package luaengine

import (
	"math"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// installBuiltins registers the engine functions and hooks, and the global
// lookup fallback that loads UDFs from the search path on first use.
func (e *Engine) installBuiltins() {
	L := e.state.L

	L.SetGlobal(checkpointFunc, L.NewFunction(e.checkpoint))
	L.SetGlobal(enterFunc, L.NewFunction(e.enter))
	L.SetGlobal(passFunc, L.NewFunction(pass))
	L.SetGlobal("audio", L.NewFunction(e.audio))
	L.SetGlobal("tone", L.NewFunction(e.tone))
	L.SetGlobal("zeros", L.NewFunction(zeros))
	L.SetGlobal("bytes", L.NewFunction(bytesValue))

	mt := L.NewTable()
	mt.RawSetString("__index", L.NewFunction(e.autoload))
	L.SetMetatable(L.G.Global, mt)

	e.audioMeta = L.NewTable()
	e.audioMeta.RawSetString(kindField, lua.LString(kindAudio))
}

// enter hands out activation serials for instrumented function headers.
func (e *Engine) enter(L *lua.LState) int {
	e.nextActivation++
	L.Push(lua.LNumber(e.nextActivation))
	return 1
}

// autoload resolves a missing global by loading the UDF of that name.
func (e *Engine) autoload(L *lua.LState) int {
	name, ok := L.Get(2).(lua.LString)
	if !ok || strings.HasPrefix(string(name), "__") {
		L.Push(lua.LNil)
		return 1
	}
	path, found := e.findUDF(string(name))
	if !found {
		L.Push(lua.LNil)
		return 1
	}
	if _, err := e.loadUDF(L, path); err != nil {
		L.RaiseError("loading %s: %s", path, errMessage(err))
		return 0
	}
	L.Push(L.G.Global.RawGetString(string(name)))
	return 1
}

// audio(fs, ch1 [, ch2 ...]) builds an audio value.
func (e *Engine) audio(L *lua.LState) int {
	fs := L.CheckNumber(1)
	t := L.NewTable()
	t.RawSetString("fs", fs)
	for i := 2; i <= L.GetTop(); i++ {
		t.Append(L.CheckTable(i))
	}
	L.SetMetatable(t, e.audioMeta)
	L.Push(t)
	return 1
}

// tone(freq, ms [, amplitude]) builds a mono sine at the configured rate.
func (e *Engine) tone(L *lua.LState) int {
	freq := float64(L.CheckNumber(1))
	ms := float64(L.CheckNumber(2))
	amp := float64(L.OptNumber(3, 1))

	fs := e.cfg.SampleRate
	if fs <= 0 {
		fs = 22050
	}
	n := int(float64(fs) * ms / 1000)
	ch := L.CreateTable(n, 0)
	for i := 0; i < n; i++ {
		ch.Append(lua.LNumber(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(fs))))
	}

	t := L.NewTable()
	t.RawSetString("fs", lua.LNumber(fs))
	t.Append(ch)
	L.SetMetatable(t, e.audioMeta)
	L.Push(t)
	return 1
}

func zeros(L *lua.LState) int {
	n := L.CheckInt(1)
	t := L.CreateTable(n, 0)
	for i := 0; i < n; i++ {
		t.Append(lua.LNumber(0))
	}
	L.Push(t)
	return 1
}

func bytesValue(L *lua.LState) int {
	ud := L.NewUserData()
	ud.Value = []byte(L.CheckString(1))
	L.Push(ud)
	return 1
}

// pass returns its arguments unchanged.
func pass(L *lua.LState) int {
	return L.GetTop()
}
