package inspector

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/dshills/auxlab/internal/engine"
	"github.com/dshills/auxlab/internal/integration/debug"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	activeBox    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("39")).Padding(0, 1)
	dormantBox   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	sparkLevels  = []rune("▁▂▃▄▅▆▇█")
	defaultWidth = 64
)

// Options bounds a rendered view.
type Options struct {
	// Width is the number of sparkline columns.
	Width int
	// MaxBytes limits the bytes shown in a hex dump. Zero shows all.
	MaxBytes int
	// Precision is used for scalars and tree leaves.
	Precision int
}

// Inspector is a view of one variable. It is created by the UI layer and
// handed to the scope registry, which closes it or toggles it between
// active and dormant as the session moves.
type Inspector struct {
	mu       sync.Mutex
	ref      string
	variable string
	kind     debug.ResourceKind
	value    engine.Value
	active   bool
	closed   bool
	updates  int
	onClose  func(ref string)
}

// New creates an active inspector showing v.
func New(ref, variable string, kind debug.ResourceKind, v engine.Value) *Inspector {
	return &Inspector{
		ref:      ref,
		variable: variable,
		kind:     kind,
		value:    v,
		active:   true,
	}
}

// OnClose registers a callback run once when the inspector closes.
func (in *Inspector) OnClose(fn func(ref string)) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.onClose = fn
}

// Ref returns the inspector reference.
func (in *Inspector) Ref() string { return in.ref }

// Variable returns the inspected variable name.
func (in *Inspector) Variable() string { return in.variable }

// Kind returns the view kind.
func (in *Inspector) Kind() debug.ResourceKind { return in.kind }

// Close closes the view. Further calls do nothing.
func (in *Inspector) Close() {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return
	}
	in.closed = true
	in.active = false
	fn := in.onClose
	in.mu.Unlock()

	if fn != nil {
		fn(in.ref)
	}
}

// Closed reports whether the view has been closed.
func (in *Inspector) Closed() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.closed
}

// SetActive enables or greys out the view.
func (in *Inspector) SetActive(active bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if !in.closed {
		in.active = active
	}
}

// Active reports whether the view is enabled.
func (in *Inspector) Active() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.active
}

// Update replaces the displayed value. Closed views ignore updates.
func (in *Inspector) Update(v engine.Value) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return
	}
	in.value = v
	in.updates++
}

// Value returns the displayed value.
func (in *Inspector) Value() engine.Value {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.value
}

// Updates returns how many times the value was refreshed.
func (in *Inspector) Updates() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.updates
}

// Render draws the view in a bordered box. Dormant views are greyed out.
func (in *Inspector) Render(opts Options) string {
	in.mu.Lock()
	value, active, closed := in.value, in.active, in.closed
	in.mu.Unlock()

	title := fmt.Sprintf("%s [%s]", in.variable, in.kind)
	switch {
	case closed:
		title += " (closed)"
	case !active:
		title += " (dormant)"
	}

	body := Body(in.kind, value, opts)
	if !active {
		return dormantBox.Render(dimStyle.Render(title) + "\n" + dimStyle.Render(body))
	}
	return activeBox.Render(titleStyle.Render(title) + "\n" + body)
}

// Body renders value as the given kind of view, without decoration.
func Body(kind debug.ResourceKind, v engine.Value, opts Options) string {
	switch kind {
	case debug.KindSignal:
		if sig, ok := v.(engine.Signal); ok {
			return signalBody(sig, opts)
		}
	case debug.KindTable:
		if sig, ok := v.(engine.Signal); ok {
			return Table(sig)
		}
		if s, ok := v.(engine.Scalar); ok {
			return Table(engine.Signal{Channels: []engine.Channel{{Samples: []float64{s.V}}}})
		}
	case debug.KindBinary:
		data := bytesOf(v)
		if opts.MaxBytes > 0 && len(data) > opts.MaxBytes {
			return HexDump(data[:opts.MaxBytes]) + fmt.Sprintf("\n... %d more bytes", len(data)-opts.MaxBytes)
		}
		return HexDump(data)
	case debug.KindText:
		return Tree(v, opts.Precision)
	}
	return engine.Preview(v, engine.PreviewOptions{Precision: opts.Precision})
}

func bytesOf(v engine.Value) []byte {
	switch x := v.(type) {
	case engine.Binary:
		return x.Data
	case engine.Text:
		return []byte(x.S)
	default:
		return nil
	}
}

func signalBody(sig engine.Signal, opts Options) string {
	width := opts.Width
	if width <= 0 {
		width = defaultWidth
	}
	lines := make([]string, 0, len(sig.Channels)+1)
	for i, ch := range sig.Channels {
		lines = append(lines, fmt.Sprintf("Ch%d %s", i+1, Sparkline(ch.Samples, width)))
	}
	if sig.Audio {
		lines = append(lines, fmt.Sprintf("fs=%d  rms=%s dB  %s ms", sig.SampleRate, RMSdB(sig), Intervals(sig)))
	}
	return strings.Join(lines, "\n")
}

// Sparkline condenses samples into width columns of block characters, each
// column showing the peak magnitude of its bucket.
func Sparkline(samples []float64, width int) string {
	if len(samples) == 0 || width <= 0 {
		return ""
	}
	width = min(width, len(samples))

	peaks := make([]float64, width)
	var top float64
	for i, s := range samples {
		col := i * width / len(samples)
		peaks[col] = math.Max(peaks[col], math.Abs(s))
		top = math.Max(top, peaks[col])
	}

	out := make([]rune, width)
	for i, p := range peaks {
		level := 0
		if top > 0 {
			level = int(p / top * float64(len(sparkLevels)-1))
		}
		out[i] = sparkLevels[level]
	}
	return string(out)
}

// Tree renders v as an indented outline. Cells list their items by index
// and structs their fields by name.
func Tree(v engine.Value, precision int) string {
	var b strings.Builder
	writeTree(&b, v, 0, precision)
	return strings.TrimRight(b.String(), "\n")
}

func writeTree(b *strings.Builder, v engine.Value, depth, precision int) {
	indent := strings.Repeat("  ", depth)
	switch x := v.(type) {
	case engine.Text:
		for _, line := range strings.Split(x.S, "\n") {
			b.WriteString(indent + line + "\n")
		}
	case engine.Cell:
		for i, item := range x.Items {
			writeNode(b, fmt.Sprintf("{%d}", i+1), item, depth, precision)
		}
	case engine.Struct:
		for _, f := range x.Fields {
			writeNode(b, "."+f.Name, f.Value, depth, precision)
		}
	default:
		b.WriteString(indent + engine.Preview(v, engine.PreviewOptions{Precision: precision}) + "\n")
	}
}

func writeNode(b *strings.Builder, label string, v engine.Value, depth, precision int) {
	indent := strings.Repeat("  ", depth)
	switch v.(type) {
	case engine.Cell, engine.Struct:
		fmt.Fprintf(b, "%s%s %s\n", indent, label, TypeTag(v))
		writeTree(b, v, depth+1, precision)
	default:
		fmt.Fprintf(b, "%s%s = %s\n", indent, label, engine.Preview(v, engine.PreviewOptions{Precision: precision}))
	}
}
