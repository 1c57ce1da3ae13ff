package debug

import (
	"fmt"
	"strings"
)

// StackFrame is one suspended UDF call.
type StackFrame struct {
	// Depth is 0 for the outermost frame.
	Depth    int
	Scope    Scope
	Function string
	File     string
	Line     int
}

// CallStack is the frame chain of a pause, outermost first.
type CallStack []StackFrame

// Innermost returns the frame the program is suspended in.
func (c CallStack) Innermost() (StackFrame, bool) {
	if len(c) == 0 {
		return StackFrame{}, false
	}
	return c[len(c)-1], true
}

// Find returns the frame holding scope s.
func (c CallStack) Find(s Scope) (StackFrame, bool) {
	for _, f := range c {
		if f.Scope == s {
			return f, true
		}
	}
	return StackFrame{}, false
}

// Format renders the stack innermost first, marking the frame in current.
func (c CallStack) Format(current Scope) string {
	if len(c) == 0 {
		return "(no frames)"
	}
	var b strings.Builder
	for i := len(c) - 1; i >= 0; i-- {
		f := c[i]
		marker := "  "
		if f.Scope == current {
			marker = "> "
		}
		name := f.Function
		if name == "" {
			name = "?"
		}
		fmt.Fprintf(&b, "%s#%d %s (%s:%d)\n", marker, len(c)-1-i, name, f.File, f.Line)
	}
	return strings.TrimRight(b.String(), "\n")
}
