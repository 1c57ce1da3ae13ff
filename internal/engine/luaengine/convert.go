package luaengine

import (
	"sort"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/auxlab/internal/engine"
)

// Metatable field used to tag tables that represent engine-level types.
const kindField = "__kind"

const (
	kindAudio = "audio"
)

// maxDecodeDepth bounds recursion through nested tables, which may be cyclic.
const maxDecodeDepth = 16

// decode converts a Lua value into the engine value union.
func decode(lv lua.LValue) engine.Value {
	return decodeDepth(lv, 0)
}

func decodeDepth(lv lua.LValue, depth int) engine.Value {
	if depth > maxDecodeDepth {
		return engine.Null{}
	}

	switch v := lv.(type) {
	case *lua.LNilType:
		return engine.Null{}
	case lua.LBool:
		if v {
			return engine.Scalar{V: 1}
		}
		return engine.Scalar{V: 0}
	case lua.LNumber:
		return engine.Scalar{V: float64(v)}
	case lua.LString:
		return engine.Text{S: string(v)}
	case *lua.LUserData:
		if b, ok := v.Value.([]byte); ok {
			return engine.Binary{Data: append([]byte(nil), b...)}
		}
		return engine.Text{S: "<userdata>"}
	case *lua.LFunction:
		return engine.Text{S: "<function>"}
	case *lua.LTable:
		return decodeTable(v, depth)
	default:
		return engine.Text{S: lv.String()}
	}
}

func decodeTable(t *lua.LTable, depth int) engine.Value {
	if tableKind(t) == kindAudio {
		return decodeAudio(t)
	}

	n := t.MaxN()
	count := 0
	numeric := true
	t.ForEach(func(k, v lua.LValue) {
		count++
		if _, ok := v.(lua.LNumber); !ok {
			numeric = false
		}
	})

	if count == 0 {
		return engine.Null{}
	}

	if count == n {
		if numeric {
			return engine.Signal{Channels: []engine.Channel{{Samples: numbers(t)}}}
		}
		items := make([]engine.Value, 0, n)
		for i := 1; i <= n; i++ {
			items = append(items, decodeDepth(t.RawGetInt(i), depth+1))
		}
		return engine.Cell{Items: items}
	}

	var names []string
	t.ForEach(func(k, _ lua.LValue) {
		if s, ok := k.(lua.LString); ok {
			names = append(names, string(s))
		}
	})
	sort.Strings(names)

	fields := make([]engine.Field, 0, len(names))
	for _, name := range names {
		fields = append(fields, engine.Field{
			Name:  name,
			Value: decodeDepth(t.RawGetString(name), depth+1),
		})
	}
	return engine.Struct{Fields: fields}
}

// decodeAudio reads a table built by the audio builtin: fs at key "fs",
// optional per-channel start times in "start", channels in the array part.
func decodeAudio(t *lua.LTable) engine.Value {
	sig := engine.Signal{Audio: true}
	if fs, ok := t.RawGetString("fs").(lua.LNumber); ok {
		sig.SampleRate = int(fs)
	}
	starts, _ := t.RawGetString("start").(*lua.LTable)

	for i := 1; i <= t.MaxN(); i++ {
		ch, ok := t.RawGetInt(i).(*lua.LTable)
		if !ok {
			continue
		}
		c := engine.Channel{Samples: numbers(ch)}
		if starts != nil {
			if s, ok := starts.RawGetInt(i).(lua.LNumber); ok {
				c.Start = float64(s)
			}
		}
		sig.Channels = append(sig.Channels, c)
	}
	return sig
}

func numbers(t *lua.LTable) []float64 {
	n := t.MaxN()
	out := make([]float64, 0, n)
	for i := 1; i <= n; i++ {
		if v, ok := t.RawGetInt(i).(lua.LNumber); ok {
			out = append(out, float64(v))
		} else {
			out = append(out, 0)
		}
	}
	return out
}

func tableKind(t *lua.LTable) string {
	mt, ok := t.Metatable.(*lua.LTable)
	if !ok {
		return ""
	}
	if s, ok := mt.RawGetString(kindField).(lua.LString); ok {
		return string(s)
	}
	return ""
}

// listed reports whether a Lua value is shown as a variable.
func listed(lv lua.LValue) bool {
	switch lv.(type) {
	case *lua.LNilType, *lua.LFunction:
		return false
	}
	return true
}
