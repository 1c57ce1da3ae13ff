package inspector

import (
	"reflect"
	"strings"
	"testing"

	"github.com/dshills/auxlab/internal/engine"
	"github.com/dshills/auxlab/internal/integration/debug"
)

func TestTypeTag(t *testing.T) {
	tests := []struct {
		value engine.Value
		want  string
	}{
		{engine.Scalar{V: 1}, "SCLR"},
		{engine.Signal{Channels: []engine.Channel{{Samples: []float64{1}}}}, "VECT"},
		{engine.Signal{Audio: true}, "AUD"},
		{engine.Text{S: "a"}, "TEXT"},
		{engine.Binary{}, "BIN"},
		{engine.Cell{}, "CELL"},
		{engine.Struct{}, "STRC"},
		{engine.Null{}, ""},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := TypeTag(tt.value); got != tt.want {
			t.Errorf("TypeTag(%#v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestSize(t *testing.T) {
	stereo := engine.Signal{Channels: []engine.Channel{
		{Samples: make([]float64, 4)},
		{Samples: make([]float64, 4)},
	}}
	if got := Size(stereo); got != "2x4" {
		t.Errorf("Size(stereo) = %q", got)
	}
	if got := Size(engine.Text{S: "héllo"}); got != "5" {
		t.Errorf("Size(text) = %q", got)
	}
	if got := Size(nil); got != "0" {
		t.Errorf("Size(nil) = %q", got)
	}
}

func TestRMSdB(t *testing.T) {
	sig := engine.Signal{Audio: true, SampleRate: 1000, Channels: []engine.Channel{
		{Samples: []float64{1, -1, 1, -1}},
		{Samples: []float64{0.5, 0.5}},
		{Samples: []float64{0, 0}},
		{},
	}}
	if got, want := RMSdB(sig), "3.0, -3.0, -inf, -inf"; got != want {
		t.Errorf("RMSdB() = %q, want %q", got, want)
	}
}

func TestIntervals(t *testing.T) {
	sig := engine.Signal{SampleRate: 1000, Channels: []engine.Channel{
		{Samples: make([]float64, 10)},
		{Start: 5, Samples: make([]float64, 5)},
	}}
	if got, want := Intervals(sig), "0-10, 5-10"; got != want {
		t.Errorf("Intervals() = %q, want %q", got, want)
	}
	if got := Intervals(engine.Signal{}); got != "" {
		t.Errorf("Intervals(no rate) = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	accent := strings.Repeat("é", 5)
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"abcdef", 5, "ab..."},
		{"abcde", 5, "abcde"},
		{"abc", 0, "abc"},
		{"abcdef", 2, "..."},
		{accent, 4, "é..."},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestHexDump(t *testing.T) {
	if got := HexDump(nil); got != "" {
		t.Errorf("HexDump(nil) = %q", got)
	}

	got := HexDump([]byte("ABC"))
	want := "00000000: 41 42 43 " + strings.Repeat("   ", 13) + " | ABC"
	if got != want {
		t.Errorf("HexDump(ABC)\n got %q\nwant %q", got, want)
	}

	data := make([]byte, 17)
	for i := range data {
		data[i] = byte(i + 60)
	}
	data[16] = 0x0A
	lines := strings.Split(HexDump(data), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d rows, want 2", len(lines))
	}
	if !strings.HasPrefix(lines[1], "00000010: 0A ") || !strings.HasSuffix(lines[1], " | .") {
		t.Errorf("second row = %q", lines[1])
	}
	if !strings.HasSuffix(lines[0], " | <=>?@ABCDEFGHIJK") {
		t.Errorf("first row = %q", lines[0])
	}
}

func TestTableCells(t *testing.T) {
	sig := engine.Signal{Channels: []engine.Channel{
		{Samples: []float64{1, 2, 3}},
		{Samples: []float64{0.123456789}},
	}}
	header, rows := TableCells(sig)
	if !reflect.DeepEqual(header, []string{"Index", "Ch1", "Ch2"}) {
		t.Errorf("header = %q", header)
	}
	want := [][]string{
		{"0", "1", "0.12345679"},
		{"1", "2", ""},
		{"2", "3", ""},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %q, want %q", rows, want)
	}

	lines := strings.Split(Table(sig), "\n")
	if len(lines) != 4 || !strings.HasPrefix(lines[0], "Index  Ch1") {
		t.Errorf("Table() = %q", lines)
	}
}

func TestTableRowCap(t *testing.T) {
	sig := engine.Signal{Channels: []engine.Channel{{Samples: make([]float64, MaxTableRows+10)}}}
	_, rows := TableCells(sig)
	if len(rows) != MaxTableRows {
		t.Errorf("got %d rows, want %d", len(rows), MaxTableRows)
	}
	if h, r := TableCells(engine.Signal{}); h != nil || r != nil {
		t.Error("empty signal produced a table")
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline([]float64{0, 1, -1, 0.5}, 4); got != "▁██▄" {
		t.Errorf("Sparkline() = %q", got)
	}
	if got := Sparkline([]float64{0, 0}, 10); got != "▁▁" {
		t.Errorf("Sparkline(silence) = %q", got)
	}
	if got := Sparkline(nil, 4); got != "" {
		t.Errorf("Sparkline(nil) = %q", got)
	}
}

func TestTree(t *testing.T) {
	v := engine.Struct{Fields: []engine.Field{
		{Name: "a", Value: engine.Scalar{V: 1}},
		{Name: "c", Value: engine.Cell{Items: []engine.Value{engine.Text{S: "x"}}}},
	}}
	want := ".a = 1\n.c CELL\n  {1} = \"x\""
	if got := Tree(v, 6); got != want {
		t.Errorf("Tree()\n got %q\nwant %q", got, want)
	}
}

func TestInspectorLifecycle(t *testing.T) {
	in := New("ref-1", "x", debug.KindText, engine.Text{S: "hello"})
	var closed []string
	in.OnClose(func(ref string) { closed = append(closed, ref) })

	if !in.Active() {
		t.Fatal("new inspector is not active")
	}
	in.SetActive(false)
	if out := in.Render(Options{}); !strings.Contains(out, "(dormant)") || !strings.Contains(out, "hello") {
		t.Errorf("dormant render = %q", out)
	}

	in.SetActive(true)
	in.Update(engine.Text{S: "world"})
	if in.Updates() != 1 || !strings.Contains(in.Render(Options{}), "world") {
		t.Errorf("update not rendered: %q", in.Render(Options{}))
	}

	in.Close()
	in.Close()
	if !in.Closed() || in.Active() {
		t.Error("closed inspector still open or active")
	}
	if !reflect.DeepEqual(closed, []string{"ref-1"}) {
		t.Errorf("onClose calls = %q", closed)
	}

	in.SetActive(true)
	in.Update(engine.Text{S: "late"})
	if in.Active() || in.Updates() != 1 {
		t.Error("closed inspector accepted changes")
	}
}

func TestInspectorAsResource(t *testing.T) {
	reg := debug.NewRegistry()
	scope := debug.NewScopeTable().Reset(1)
	in := New("ref-2", "y", debug.KindBinary, engine.Binary{Data: []byte("hi")})
	if err := reg.Register("y", scope, in.Ref(), in.Kind(), in); err != nil {
		t.Fatalf("Register: %v", err)
	}

	report := reg.Reconcile(scope, false, debug.NewVariableSet())
	if len(report.Closed) != 1 || !in.Closed() {
		t.Errorf("deleted variable did not close the inspector: %+v", report)
	}
}

func TestBody(t *testing.T) {
	bin := Body(debug.KindBinary, engine.Binary{Data: []byte("ABCDEF")}, Options{MaxBytes: 2})
	if !strings.HasPrefix(bin, "00000000: 41 42 ") || !strings.HasSuffix(bin, "... 4 more bytes") {
		t.Errorf("binary body = %q", bin)
	}

	sig := engine.Signal{Audio: true, SampleRate: 1000, Channels: []engine.Channel{{Samples: []float64{1, -1}}}}
	body := Body(debug.KindSignal, sig, Options{Width: 2})
	if !strings.Contains(body, "Ch1 ██") || !strings.Contains(body, "rms=3.0 dB") {
		t.Errorf("signal body = %q", body)
	}

	if got := Body(debug.KindSignal, engine.Scalar{V: 2}, Options{Precision: 3}); got != "2" {
		t.Errorf("fallback body = %q", got)
	}
}
