package luaengine

import (
	"fmt"
	"regexp"
	"strings"
)

// Names of the hooks injected into UDF sources. They are installed as
// globals and hidden from variable listings.
const (
	checkpointFunc = "__ck"
	enterFunc      = "__enter"
	activationVar  = "__act"
	passFunc       = "__pass"
)

var headerPattern = regexp.MustCompile(`^(local\s+)?function\s+[A-Za-z_][\w.:]*\s*\([^()]*\)\s*$`)

// lineLeaders are tokens that cannot begin a statement, so a line starting
// with one continues or closes an earlier construct.
var lineLeaders = []string{
	")", "}", "]", ".", ":", "(", ",", ";", "+", "-", "*", "/", "%", "^",
	"=", "<", ">", "~", "#", "[", `"`, "'",
}

var blockKeywords = map[string]bool{
	"end": true, "else": true, "elseif": true, "until": true,
	"then": true, "do": true, "and": true, "or": true,
}

var trailingOperators = []string{
	"..", "==", "~=", "<=", ">=", "+", "-", "*", "/", "%", "^", "=", "<", ">",
	",", "(", "{", "[",
}

var trailingKeywords = []string{"and", "or", "not", "local", "return", "in"}

// instrument rewrites UDF source so that every statement line reports itself
// to the checkpoint hook before it runs. Line numbers are preserved: hooks
// are only ever added to an existing line.
//
// A function header that fits on one line also records a fresh activation
// serial in a hidden local, and checkpoints the header line itself so a
// breakpoint there stops on entry.
func instrument(src string, fileIdx int) string {
	lines := strings.Split(src, "\n")
	var st scanState
	depth := 0
	cont := false

	for i, line := range lines {
		lineNo := i + 1
		startedInLong := st.long

		var code string
		code, st = scanLine(line, st)
		stripped := strings.TrimSpace(code)

		if startedInLong || stripped == "" {
			if stripped != "" {
				depth += bracketDelta(stripped)
				cont = continues(stripped)
			}
			continue
		}

		hook := fmt.Sprintf("%s(%d,%d)", checkpointFunc, fileIdx, lineNo)
		switch {
		case depth > 0 || cont:
		case headerPattern.MatchString(stripped):
			at := strings.LastIndexByte(code, ')') + 1
			lines[i] = line[:at] + fmt.Sprintf(" local %s=%s() %s", activationVar, enterFunc, hook) + line[at:]
		case startsContinuation(stripped):
		default:
			lines[i] = hook + " " + untail(line, code)
		}

		depth += bracketDelta(stripped)
		if depth < 0 {
			depth = 0
		}
		cont = continues(stripped)
	}

	return strings.Join(lines, "\n")
}

// untail wraps the expression of a one-line "return f(x)" in the identity
// hook, so the call runs in this frame instead of replacing it and the
// caller stays on the stack while f is suspended.
func untail(line, code string) string {
	stripped := strings.TrimSpace(code)
	if firstWord(stripped) != "return" || len(stripped) <= len("return") {
		return line
	}
	if !strings.HasSuffix(stripped, ")") || bracketDelta(stripped) != 0 {
		return line
	}
	start := strings.Index(code, "return") + len("return")
	end := strings.LastIndexByte(code, ')') + 1
	expr := strings.TrimLeft(line[start:end], " \t")
	return line[:start] + " " + passFunc + "(" + expr + ")" + line[end:]
}

func startsContinuation(code string) bool {
	for _, l := range lineLeaders {
		if strings.HasPrefix(code, l) {
			return true
		}
	}
	return blockKeywords[firstWord(code)]
}

func continues(code string) bool {
	for _, op := range trailingOperators {
		if strings.HasSuffix(code, op) {
			return true
		}
	}
	last := lastWord(code)
	for _, kw := range trailingKeywords {
		if last == kw {
			return true
		}
	}
	return false
}

func bracketDelta(code string) int {
	d := 0
	for i := 0; i < len(code); i++ {
		switch code[i] {
		case '(', '{', '[':
			d++
		case ')', '}', ']':
			d--
		}
	}
	return d
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func firstWord(code string) string {
	end := 0
	for end < len(code) && isWordByte(code[end]) {
		end++
	}
	return code[:end]
}

func lastWord(code string) string {
	start := len(code)
	for start > 0 && isWordByte(code[start-1]) {
		start--
	}
	return code[start:]
}

// scanState carries an open long bracket across lines.
type scanState struct {
	long    bool
	level   int
	comment bool
}

// scanLine returns line with comments blanked and string contents masked,
// so the result can be inspected for tokens without false matches. Byte
// offsets are preserved.
func scanLine(line string, st scanState) (string, scanState) {
	out := []byte(line)
	i := 0

	if st.long {
		end := closeLong(line, 0, st.level)
		if end < 0 {
			fill(out, 0, len(out), st.comment)
			return string(out), st
		}
		fill(out, 0, end-st.level-2, st.comment)
		if st.comment {
			fill(out, end-st.level-2, end, true)
		}
		i = end
		st = scanState{}
	}

	for i < len(line) {
		c := line[i]
		switch {
		case c == '-' && i+1 < len(line) && line[i+1] == '-':
			if lvl, ok := openLong(line, i+2); ok {
				end := closeLong(line, i+lvl+4, lvl)
				if end < 0 {
					fill(out, i, len(out), true)
					return string(out), scanState{long: true, level: lvl, comment: true}
				}
				fill(out, i, end, true)
				i = end
				continue
			}
			fill(out, i, len(out), true)
			return string(out), st
		case c == '[':
			lvl, ok := openLong(line, i)
			if !ok {
				i++
				continue
			}
			start := i + lvl + 2
			end := closeLong(line, start, lvl)
			if end < 0 {
				fill(out, start, len(out), false)
				return string(out), scanState{long: true, level: lvl}
			}
			fill(out, start, end-lvl-2, false)
			i = end
		case c == '"' || c == '\'':
			j := i + 1
			for j < len(line) && line[j] != c {
				if line[j] == '\\' {
					j++
				}
				j++
			}
			if j > len(line) {
				j = len(line)
			}
			fill(out, i+1, j, false)
			i = j + 1
		default:
			i++
		}
	}
	return string(out), st
}

// openLong reports whether a long bracket opens at line[i] and its level.
func openLong(line string, i int) (int, bool) {
	if i >= len(line) || line[i] != '[' {
		return 0, false
	}
	j := i + 1
	for j < len(line) && line[j] == '=' {
		j++
	}
	if j < len(line) && line[j] == '[' {
		return j - i - 1, true
	}
	return 0, false
}

// closeLong returns the offset just past the closing bracket of the given
// level at or after from, or -1.
func closeLong(line string, from, level int) int {
	if from > len(line) {
		return -1
	}
	closer := "]" + strings.Repeat("=", level) + "]"
	idx := strings.Index(line[from:], closer)
	if idx < 0 {
		return -1
	}
	return from + idx + len(closer)
}

func fill(b []byte, from, to int, blank bool) {
	ch := byte('_')
	if blank {
		ch = ' '
	}
	if from < 0 {
		from = 0
	}
	if to > len(b) {
		to = len(b)
	}
	for i := from; i < to; i++ {
		b[i] = ch
	}
}
