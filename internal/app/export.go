package app

import (
	"github.com/tidwall/sjson"
)

// ExportState returns a JSON snapshot of the session: state, location,
// call stack, breakpoints, open inspectors and recent files.
func (app *Application) ExportState() string {
	d := app.debugger
	st := d.Controller().State()

	json := `{}`
	set := func(path string, value any) {
		if out, err := sjson.Set(json, path, value); err == nil {
			json = out
		}
	}

	set("state", st.String())
	set("paused", st.Paused)
	set("scope", st.Scope.String())
	set("prompt", app.Prompt())
	if st.Paused {
		set("location.file", st.File)
		set("location.line", st.Line)
	}

	set("stack", []any{})
	for _, f := range d.Stack() {
		set("stack.-1", map[string]any{
			"depth":    f.Depth,
			"function": f.Function,
			"file":     f.File,
			"line":     f.Line,
			"scope":    f.Scope.String(),
			"current":  f.Scope == st.Scope,
		})
	}

	set("breakpoints", []any{})
	for _, file := range d.Breakpoints().Files() {
		set("breakpoints.-1", map[string]any{
			"file":  file,
			"lines": d.Breakpoints().View(file),
		})
	}

	set("inspectors", []any{})
	for _, rec := range d.Registry().Records() {
		entry := map[string]any{
			"ref":      rec.Ref,
			"variable": rec.Variable,
			"kind":     rec.Kind.String(),
			"scope":    rec.Scope.String(),
			"active":   rec.Scope == st.Scope,
		}
		set("inspectors.-1", entry)
	}

	set("recent", []any{})
	for _, f := range app.recent.List() {
		set("recent.-1", f)
	}

	s := app.Settings()
	set("settings.sample_rate", s.Engine.SampleRate)
	set("settings.udf_paths", s.Engine.UDFPaths)
	return json
}
