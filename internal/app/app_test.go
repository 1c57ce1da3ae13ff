package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dshills/auxlab/internal/config"
	"github.com/dshills/auxlab/internal/engine/luaengine"
	"github.com/dshills/auxlab/internal/integration/debug"
)

const fooSource = `function foo(a)
  local b = a + 1
  local c = b * 2
  return c
end
`

type testApp struct {
	*Application
	dir string
}

func newTestApp(t *testing.T) testApp {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "foo.aux"), []byte(fooSource), 0644); err != nil {
		t.Fatal(err)
	}

	s := config.Default()
	s.Engine.SampleRate = 8000
	s.Engine.UDFPaths = []string{dir}

	app, err := New(Options{
		Engine:          luaengine.New(),
		Settings:        s,
		SettingsPath:    filepath.Join(dir, "settings.toml"),
		HistoryPath:     filepath.Join(dir, "history"),
		BreakpointsPath: filepath.Join(dir, "breakpoints.json"),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := app.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return testApp{Application: app, dir: dir}
}

func wait[T any](t *testing.T, f *debug.Future) T {
	t.Helper()
	v, err := waitErr(f)
	if err != nil {
		t.Fatalf("future failed: %v", err)
	}
	out, _ := v.(T)
	return out
}

func waitErr(f *debug.Future) (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return f.Wait(ctx)
}

func TestNewRequiresEngine(t *testing.T) {
	if _, err := New(Options{Settings: config.Default()}); !errors.Is(err, ErrNoEngine) {
		t.Errorf("New without engine = %v, want ErrNoEngine", err)
	}
	bad := config.Default()
	bad.Engine.SampleRate = 0
	if _, err := New(Options{Engine: luaengine.New(), Settings: bad}); err == nil {
		t.Error("New accepted invalid settings")
	}
}

func TestSubmitCommand(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		cmd    string
		output string
		failed bool
	}{
		{"x = 5", "x = 5", false},
		{"y = 2;", "", false},
		{"1 + 2", "ans = 3", false},
		{"error('boom')", "boom", true},
	}
	for _, tt := range tests {
		res := wait[CommandResult](t, app.SubmitCommand(tt.cmd))
		if tt.failed {
			var evalErr *debug.EvalError
			if !errors.As(res.Err, &evalErr) || !strings.Contains(res.Output, tt.output) {
				t.Errorf("%q: result %+v, want an eval error mentioning %q", tt.cmd, res, tt.output)
			}
			continue
		}
		if res.Err != nil || res.Output != tt.output {
			t.Errorf("%q: output %q err %v, want %q", tt.cmd, res.Output, res.Err, tt.output)
		}
		if res.Prompt != IdlePrompt {
			t.Errorf("%q: prompt %q", tt.cmd, res.Prompt)
		}
	}

	if got := app.History().Entries(); len(got) != len(tests) {
		t.Errorf("history = %q", got)
	}
}

func TestPauseLifecycleWithInspectors(t *testing.T) {
	app := newTestApp(t)

	wait[CommandResult](t, app.SubmitCommand("v = {1, 2, 3}"))
	if name := wait[string](t, app.LoadUDF(filepath.Join(app.dir, "foo.aux"))); name != "foo" {
		t.Fatalf("LoadUDF = %q, want foo", name)
	}
	if !wait[bool](t, app.ToggleBreakpoint("foo", 2)) {
		t.Fatal("breakpoint not enabled")
	}

	rootRef := wait[string](t, app.OpenInspector("v", debug.KindSignal))
	if again := wait[string](t, app.OpenInspector("v", debug.KindSignal)); again != rootRef {
		t.Errorf("second signal view = %q, want reuse of %q", again, rootRef)
	}
	rootView, ok := app.Inspector(rootRef)
	if !ok {
		t.Fatal("root inspector not registered")
	}

	res := wait[CommandResult](t, app.SubmitCommand("r = foo(3)"))
	if !res.State.Paused || res.State.Line != 2 {
		t.Fatalf("state = %v, want paused at line 2", res.State)
	}
	if app.Prompt() != "foo:2> " {
		t.Errorf("prompt = %q", app.Prompt())
	}
	if rootView.Active() || rootView.Closed() {
		t.Error("root inspector should be dormant while paused")
	}

	frameRef := wait[string](t, app.OpenInspector("a", debug.KindText))
	frameView, _ := app.Inspector(frameRef)
	if len(app.FocusableInspectors()) != 1 {
		t.Errorf("focusable = %+v, want the frame view only", app.FocusableInspectors())
	}

	res = wait[CommandResult](t, app.SubmitDebugAction(debug.Continue))
	if res.State.Paused || res.Output != "r = 20" {
		t.Errorf("continue = %v %q", res.State, res.Output)
	}
	if !frameView.Closed() {
		t.Error("frame inspector survived the return to idle")
	}
	if !rootView.Active() {
		t.Error("root inspector not reactivated")
	}
	if app.Prompt() != IdlePrompt {
		t.Errorf("prompt = %q", app.Prompt())
	}
	if len(app.Inspectors()) != 1 {
		t.Errorf("open inspectors = %d, want 1", len(app.Inspectors()))
	}
}

func TestAbortReturnsToIdle(t *testing.T) {
	app := newTestApp(t)
	wait[bool](t, app.SetBreakpoint("foo", 3, true))

	res := wait[CommandResult](t, app.SubmitCommand("foo(1)"))
	if !res.State.Paused {
		t.Fatalf("state = %v, want paused", res.State)
	}
	res = wait[CommandResult](t, app.SubmitDebugAction(debug.Abort))
	if res.State.Paused {
		t.Errorf("state after abort = %v", res.State)
	}

	_, err := waitErr(app.SubmitDebugAction(debug.Continue))
	if !errors.Is(err, debug.ErrNotPaused) {
		t.Errorf("resume while idle = %v, want ErrNotPaused", err)
	}
}

func TestOpenInspectorRejectsUnsupportedValues(t *testing.T) {
	app := newTestApp(t)
	wait[CommandResult](t, app.SubmitCommand("n = 4"))

	if _, err := waitErr(app.OpenInspector("n", debug.KindSignal)); !errors.Is(err, ErrUnsupportedView) {
		t.Errorf("signal view of a scalar = %v", err)
	}
	if _, err := waitErr(app.OpenInspector("missing", debug.KindText)); err == nil {
		t.Error("opened a view of a missing variable")
	}
	if err := app.CloseInspector("nope"); !errors.Is(err, ErrUnknownInspector) {
		t.Errorf("CloseInspector(nope) = %v", err)
	}
}

func TestDeleteVariableClosesViews(t *testing.T) {
	app := newTestApp(t)
	wait[CommandResult](t, app.SubmitCommand("s = 'hello'"))
	ref := wait[string](t, app.OpenInspector("s", debug.KindBinary))
	view, _ := app.Inspector(ref)

	if !wait[bool](t, app.DeleteVariable("s")) {
		t.Fatal("variable did not exist")
	}
	if !view.Closed() || len(app.Inspectors()) != 0 {
		t.Error("view of a deleted variable stayed open")
	}
}

func TestCloseAllInScope(t *testing.T) {
	app := newTestApp(t)
	wait[CommandResult](t, app.SubmitCommand("a = 1; b = 'x'"))
	wait[string](t, app.OpenInspector("a", debug.KindText))
	wait[string](t, app.OpenInspector("b", debug.KindText))

	if n := wait[int](t, app.CloseAllInScope()); n != 2 {
		t.Errorf("closed %d, want 2", n)
	}
	if len(app.Inspectors()) != 0 {
		t.Error("inspectors left open")
	}
}

func TestVariablesListing(t *testing.T) {
	app := newTestApp(t)
	wait[CommandResult](t, app.SubmitCommand("x = 5"))
	wait[CommandResult](t, app.SubmitCommand("t = 'text'"))

	rows := wait[[]VariableRow](t, app.Variables())
	tags := make(map[string]string)
	for _, r := range rows {
		tags[r.Name] = r.Tag
	}
	if tags["x"] != "SCLR" || tags["t"] != "TEXT" {
		t.Errorf("tags = %v", tags)
	}
}

func TestBreakpointsPersist(t *testing.T) {
	app := newTestApp(t)
	wait[bool](t, app.ToggleBreakpoint("foo", 2))

	data, err := os.ReadFile(filepath.Join(app.dir, "breakpoints.json"))
	if err != nil {
		t.Fatalf("breakpoints not saved: %v", err)
	}
	if got := gjson.GetBytes(data, "breakpoints.0.lines.0").Int(); got != 2 {
		t.Errorf("saved breakpoints = %s", data)
	}

	if wait[bool](t, app.ToggleBreakpoint("foo", 2)) {
		t.Error("second toggle did not clear the breakpoint")
	}
	if _, err := waitErr(app.ToggleBreakpoint("foo", 0)); err == nil {
		t.Error("line 0 accepted")
	}
}

func TestApplySettings(t *testing.T) {
	app := newTestApp(t)

	bad := app.Settings()
	bad.Display.LimitX = -1
	var verrs *config.ValidationErrors
	if _, err := waitErr(app.ApplySettings(bad)); !errors.As(err, &verrs) {
		t.Fatalf("invalid settings = %v, want validation errors", err)
	}
	if app.Debugger().Gateway().Config().DisplayLimitX == -1 {
		t.Error("invalid settings reached the engine")
	}

	good := app.Settings()
	good.Engine.SampleRate = 16000
	good.Console.LogLevel = "debug"
	wait[config.Settings](t, app.ApplySettings(good))
	if app.Debugger().Gateway().Config().SampleRate != 16000 {
		t.Error("engine config not updated")
	}

	saved, err := config.Load(filepath.Join(app.dir, "settings.toml"))
	if err != nil {
		t.Fatalf("Load saved settings: %v", err)
	}
	if saved.Engine.SampleRate != 16000 {
		t.Errorf("saved sample rate = %d", saved.Engine.SampleRate)
	}
}

func TestExportState(t *testing.T) {
	app := newTestApp(t)
	wait[CommandResult](t, app.SubmitCommand("v = {1, 2}"))
	wait[string](t, app.OpenInspector("v", debug.KindTable))
	wait[bool](t, app.ToggleBreakpoint("foo", 2))
	wait[string](t, app.LoadUDF(filepath.Join(app.dir, "foo.aux")))

	state := app.ExportState()
	if !gjson.Valid(state) {
		t.Fatalf("invalid JSON: %s", state)
	}
	checks := map[string]string{
		"state":                 "idle",
		"prompt":                IdlePrompt,
		"inspectors.0.variable": "v",
		"inspectors.0.kind":     "table",
		"breakpoints.0.file":    "foo",
		"settings.sample_rate":  "8000",
	}
	for path, want := range checks {
		if got := gjson.Get(state, path).String(); got != want {
			t.Errorf("%s = %q, want %q", path, got, want)
		}
	}
	if gjson.Get(state, "stack.#").Int() != 0 || gjson.Get(state, "recent.#").Int() != 1 {
		t.Errorf("state = %s", state)
	}

	wait[CommandResult](t, app.SubmitCommand("foo(1)"))
	state = app.ExportState()
	if !gjson.Get(state, "paused").Bool() || gjson.Get(state, "location.line").Int() != 2 {
		t.Errorf("paused state = %s", state)
	}
	if gjson.Get(state, "stack.0.function").String() != "foo" {
		t.Errorf("stack = %s", gjson.Get(state, "stack").Raw)
	}
}

func TestCloseSavesHistory(t *testing.T) {
	app := newTestApp(t)
	wait[CommandResult](t, app.SubmitCommand("x = 1"))
	if err := app.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	h := NewHistory(10)
	if err := h.Load(filepath.Join(app.dir, "history")); err != nil {
		t.Fatal(err)
	}
	if got := h.Entries(); len(got) != 1 || got[0] != "x = 1" {
		t.Errorf("saved history = %q", got)
	}

	if _, err := waitErr(app.SubmitCommand("x = 2")); !errors.Is(err, debug.ErrQueueClosed) {
		t.Errorf("submit after close = %v", err)
	}
}
