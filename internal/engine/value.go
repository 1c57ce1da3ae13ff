package engine

import (
	"strconv"
	"strings"
)

// Kind classifies a Value.
type Kind int

const (
	KindNull Kind = iota
	KindScalar
	KindVector
	KindAudio
	KindText
	KindBinary
	KindCell
	KindStruct
)

// String returns a string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindScalar:
		return "scalar"
	case KindVector:
		return "vector"
	case KindAudio:
		return "audio"
	case KindText:
		return "text"
	case KindBinary:
		return "binary"
	case KindCell:
		return "cell"
	case KindStruct:
		return "struct"
	default:
		return "unknown"
	}
}

// Value is the closed union of engine values. The only implementations are
// the types in this file.
type Value interface {
	Kind() Kind
	// Len is the element count: samples of the first channel, bytes,
	// characters, items or fields.
	Len() int

	value()
}

// Null is an empty value.
type Null struct{}

// Scalar is a single number.
type Scalar struct {
	V float64
}

// Channel is one channel of a signal.
type Channel struct {
	// Start is the channel start time in milliseconds.
	Start   float64
	Samples []float64
}

// Signal is a sampled vector or, when Audio is set, a multi-channel audio
// buffer.
type Signal struct {
	Channels   []Channel
	SampleRate int
	Audio      bool
}

// Text is a character string.
type Text struct {
	S string
}

// Binary is an opaque byte buffer.
type Binary struct {
	Data []byte
}

// Cell is an ordered list of values.
type Cell struct {
	Items []Value
}

// Field is one named member of a Struct.
type Field struct {
	Name  string
	Value Value
}

// Struct is an ordered set of named fields.
type Struct struct {
	Fields []Field
}

func (Null) Kind() Kind   { return KindNull }
func (Scalar) Kind() Kind { return KindScalar }
func (s Signal) Kind() Kind {
	if s.Audio {
		return KindAudio
	}
	return KindVector
}
func (Text) Kind() Kind   { return KindText }
func (Binary) Kind() Kind { return KindBinary }
func (Cell) Kind() Kind   { return KindCell }
func (Struct) Kind() Kind { return KindStruct }

func (Null) Len() int   { return 0 }
func (Scalar) Len() int { return 1 }
func (s Signal) Len() int {
	if len(s.Channels) == 0 {
		return 0
	}
	return len(s.Channels[0].Samples)
}
func (t Text) Len() int   { return len([]rune(t.S)) }
func (b Binary) Len() int { return len(b.Data) }
func (c Cell) Len() int   { return len(c.Items) }
func (s Struct) Len() int { return len(s.Fields) }

func (Null) value()   {}
func (Scalar) value() {}
func (Signal) value() {}
func (Text) value()   {}
func (Binary) value() {}
func (Cell) value()   {}
func (Struct) value() {}

// FieldByName returns the named field of s.
func (s Struct) FieldByName(name string) (Value, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// PreviewOptions bounds how much of a value Preview renders.
type PreviewOptions struct {
	Precision int
	LimitX    int
	LimitStr  int
}

// PreviewOptionsFrom derives preview bounds from a configuration.
func PreviewOptionsFrom(cfg Config) PreviewOptions {
	return PreviewOptions{
		Precision: cfg.DisplayPrecision,
		LimitX:    cfg.DisplayLimitX,
		LimitStr:  cfg.DisplayLimitStr,
	}
}

// Preview renders a one-line summary of v.
func Preview(v Value, opts PreviewOptions) string {
	switch x := v.(type) {
	case nil, Null:
		return "[]"
	case Scalar:
		return FormatNumber(x.V, opts.Precision)
	case Signal:
		if len(x.Channels) == 0 {
			return "[]"
		}
		var b strings.Builder
		for i, ch := range x.Channels {
			if i > 0 {
				b.WriteString("; ")
			}
			b.WriteString(previewSamples(ch.Samples, opts))
		}
		if x.Audio {
			b.WriteString(" (audio, fs=")
			b.WriteString(strconv.Itoa(x.SampleRate))
			b.WriteString(")")
		}
		return b.String()
	case Text:
		s := x.S
		if opts.LimitStr > 0 {
			r := []rune(s)
			if len(r) > opts.LimitStr {
				s = string(r[:opts.LimitStr]) + "..."
			}
		}
		return strconv.Quote(s)
	case Binary:
		return "<" + strconv.Itoa(len(x.Data)) + " bytes>"
	case Cell:
		return "{" + strconv.Itoa(len(x.Items)) + " items}"
	case Struct:
		names := make([]string, 0, len(x.Fields))
		for _, f := range x.Fields {
			names = append(names, f.Name)
		}
		return "struct{" + strings.Join(names, ", ") + "}"
	default:
		return "?"
	}
}

func previewSamples(samples []float64, opts PreviewOptions) string {
	n := len(samples)
	if opts.LimitX > 0 && n > opts.LimitX {
		n = opts.LimitX
	}
	parts := make([]string, 0, n+1)
	for _, s := range samples[:n] {
		parts = append(parts, FormatNumber(s, opts.Precision))
	}
	if n < len(samples) {
		parts = append(parts, "...")
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// FormatNumber formats v with up to precision significant digits.
func FormatNumber(v float64, precision int) string {
	if precision <= 0 {
		precision = -1
	}
	return strconv.FormatFloat(v, 'g', precision, 64)
}
