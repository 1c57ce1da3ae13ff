package console

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/dshills/auxlab/internal/app"
	"github.com/dshills/auxlab/internal/config"
	"github.com/dshills/auxlab/internal/inspector"
	"github.com/dshills/auxlab/internal/integration/debug"
)

type cmdfunc func(ctx context.Context, c *Console, args []string) error

type command struct {
	aliases []string
	usage   string
	help    string
	run     cmdfunc
}

func (cmd *command) match(name string) bool {
	return slices.Contains(cmd.aliases, name)
}

func (c *Console) find(name string) *command {
	for _, cmd := range c.commands {
		if cmd.match(name) {
			return cmd
		}
	}
	return nil
}

func defaultCommands() []*command {
	return []*command{
		{aliases: []string{"help", "h", "?"}, help: "list commands", run: help},
		{aliases: []string{"c", "continue"}, help: "continue to the next breakpoint", run: resume(debug.Continue)},
		{aliases: []string{"n", "next"}, help: "step over the current line", run: resume(debug.StepOver)},
		{aliases: []string{"s", "step"}, help: "step into a call", run: resume(debug.StepIn)},
		{aliases: []string{"o", "out"}, help: "step out of the current function", run: resume(debug.StepOut)},
		{aliases: []string{"abort"}, help: "abandon the suspended program", run: resume(debug.Abort)},
		{aliases: []string{"b", "break"}, usage: "<udf> <line> [on|off]", help: "toggle, set or clear a breakpoint", run: breakpoint},
		{aliases: []string{"bps", "breakpoints"}, usage: "[udf]", help: "list breakpoints", run: breakpoints},
		{aliases: []string{"where", "bt"}, help: "show the call stack", run: where},
		{aliases: []string{"frame", "f"}, usage: "<depth>", help: "inspect an outer frame (0 is outermost)", run: frame},
		{aliases: []string{"vars", "who"}, help: "list variables of the current scope", run: vars},
		{aliases: []string{"del", "clear"}, usage: "<name>...", help: "delete variables", run: del},
		{aliases: []string{"open"}, usage: "<name> [signal|table|text|binary]", help: "open an inspector", run: open},
		{aliases: []string{"show"}, usage: "[ref]", help: "render inspectors of the current scope, or one by ref", run: show},
		{aliases: []string{"views"}, help: "list open inspectors", run: views},
		{aliases: []string{"close"}, usage: "<ref>", help: "close an inspector", run: closeView},
		{aliases: []string{"closeall"}, help: "close every inspector of the current scope", run: closeAll},
		{aliases: []string{"load"}, usage: "<path>", help: "load a UDF file", run: load},
		{aliases: []string{"recent"}, help: "list recently loaded UDF files", run: recent},
		{aliases: []string{"set"}, usage: "<key> <value>", help: "change a setting", run: set},
		{aliases: []string{"settings"}, help: "show settings", run: settings},
		{aliases: []string{"history"}, usage: "[n]", help: "show command history", run: history},
		{aliases: []string{"search"}, usage: "[term]", help: "search history backwards; repeat for older matches", run: search},
		{aliases: []string{"state"}, usage: "[path]", help: "print the session as JSON", run: state},
		{aliases: []string{"quit", "q", "exit"}, help: "leave auxlab", run: quit},
	}
}

func help(_ context.Context, c *Console, _ []string) error {
	c.println(titleStyle.Render("Commands"))
	for _, cmd := range c.commands {
		names := ":" + strings.Join(cmd.aliases, ", :")
		if cmd.usage != "" {
			names += " " + cmd.usage
		}
		c.println(fmt.Sprintf("  %s\n      %s", names, dimStyle.Render(cmd.help)))
	}
	c.println("Anything else is evaluated by the engine. End a command with ; to suppress its echo.")
	return nil
}

func resume(action debug.ResumeAction) cmdfunc {
	return func(ctx context.Context, c *Console, _ []string) error {
		v, err := c.app.SubmitDebugAction(action).Wait(ctx)
		if err != nil {
			return err
		}
		c.printResult(v.(app.CommandResult))
		return nil
	}
}

func breakpoint(ctx context.Context, c *Console, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: :b <udf> <line> [on|off]")
	}
	line, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid line %q", args[1])
	}

	var f *debug.Future
	if len(args) > 2 {
		switch strings.ToLower(args[2]) {
		case "on":
			f = c.app.SetBreakpoint(args[0], line, true)
		case "off":
			f = c.app.SetBreakpoint(args[0], line, false)
		default:
			return fmt.Errorf("expected on or off, got %q", args[2])
		}
	} else {
		f = c.app.ToggleBreakpoint(args[0], line)
	}

	v, err := f.Wait(ctx)
	if err != nil {
		return err
	}
	if v.(bool) {
		c.println(successStyle.Render(fmt.Sprintf("breakpoint set at %s:%d", args[0], line)))
	} else {
		c.println(fmt.Sprintf("breakpoint cleared at %s:%d", args[0], line))
	}
	return nil
}

func breakpoints(_ context.Context, c *Console, args []string) error {
	store := c.app.Debugger().Breakpoints()
	files := store.Files()
	if len(args) > 0 {
		files = args
	}
	if len(files) == 0 {
		c.println(dimStyle.Render("no breakpoints"))
		return nil
	}
	for _, f := range files {
		lines := store.View(f)
		parts := make([]string, len(lines))
		for i, l := range lines {
			parts[i] = strconv.Itoa(l)
		}
		c.println(fmt.Sprintf("%s: %s", f, strings.Join(parts, " ")))
	}
	return nil
}

func where(_ context.Context, c *Console, _ []string) error {
	st := c.app.State()
	if !st.Paused {
		c.println(dimStyle.Render("not paused"))
		return nil
	}
	c.println(c.app.Debugger().Stack().Format(st.Scope))
	return nil
}

func frame(ctx context.Context, c *Console, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: :frame <depth>")
	}
	depth, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid depth %q", args[0])
	}
	v, err := c.app.SelectFrame(depth).Wait(ctx)
	if err != nil {
		return err
	}
	st := v.(debug.SessionState)
	c.println(pausedStyle.Render(fmt.Sprintf("frame %d at %s:%d", depth, st.File, st.Line)))
	return nil
}

func vars(ctx context.Context, c *Console, _ []string) error {
	v, err := c.app.Variables().Wait(ctx)
	if err != nil {
		return err
	}
	rows := v.([]app.VariableRow)
	if len(rows) == 0 {
		c.println(dimStyle.Render("no variables"))
		return nil
	}
	c.println(formatVariables(rows))
	return nil
}

// formatVariables lays out a variable listing in aligned columns.
func formatVariables(rows []app.VariableRow) string {
	header := []string{"Name", "Type", "Size", "Value"}
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		value := r.Preview
		if r.RMS != "" {
			value = fmt.Sprintf("%s  (%s dB RMS)", value, r.RMS)
		}
		cells = append(cells, []string{r.Name, r.Tag, r.Size, value})
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = inspector.Width(h)
	}
	for _, row := range cells {
		for i, cell := range row[:len(row)-1] {
			widths[i] = max(widths[i], inspector.Width(cell))
		}
	}

	var b strings.Builder
	line := func(row []string) {
		for i, cell := range row {
			if i < len(row)-1 {
				b.WriteString(inspector.Pad(cell, widths[i]+2))
			} else {
				b.WriteString(cell)
			}
		}
	}
	b.WriteString(titleStyle.Render(strings.TrimRight(joinHeader(header, widths), " ")))
	for _, row := range cells {
		b.WriteByte('\n')
		line(row)
	}
	return b.String()
}

func joinHeader(header []string, widths []int) string {
	var b strings.Builder
	for i, h := range header {
		b.WriteString(inspector.Pad(h, widths[i]+2))
	}
	return b.String()
}

func del(ctx context.Context, c *Console, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: :del <name>...")
	}
	for _, name := range args {
		v, err := c.app.DeleteVariable(name).Wait(ctx)
		if err != nil {
			return err
		}
		if !v.(bool) {
			c.println(dimStyle.Render(name + " does not exist"))
		}
	}
	return nil
}

func open(ctx context.Context, c *Console, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: :open <name> [signal|table|text|binary]")
	}
	kind := debug.KindText
	if len(args) > 1 {
		k, err := debug.ParseResourceKind(args[1])
		if err != nil {
			return err
		}
		kind = k
	}

	v, err := c.app.OpenInspector(args[0], kind).Wait(ctx)
	if err != nil {
		return err
	}
	in, ok := c.app.Inspector(v.(string))
	if !ok {
		return app.ErrUnknownInspector
	}
	c.println(dimStyle.Render("ref " + shortRef(in.Ref())))
	c.println(in.Render(c.renderOptions()))
	return nil
}

func (c *Console) renderOptions() inspector.Options {
	s := c.app.Settings()
	return inspector.Options{
		Width:     64,
		MaxBytes:  s.Display.LimitBytes,
		Precision: s.Display.Precision,
	}
}

func show(_ context.Context, c *Console, args []string) error {
	if len(args) > 0 {
		ref, err := c.resolveRef(args[0])
		if err != nil {
			return err
		}
		in, _ := c.app.Inspector(ref)
		c.println(in.Render(c.renderOptions()))
		return nil
	}

	recs := c.app.FocusableInspectors()
	if len(recs) == 0 {
		c.println(dimStyle.Render("no inspectors in this scope"))
		return nil
	}
	for _, rec := range recs {
		if in, ok := c.app.Inspector(rec.Ref); ok {
			c.println(in.Render(c.renderOptions()))
		}
	}
	return nil
}

func views(_ context.Context, c *Console, _ []string) error {
	recs := c.app.Inspectors()
	if len(recs) == 0 {
		c.println(dimStyle.Render("no inspectors"))
		return nil
	}
	current := c.app.State().Scope
	for _, rec := range recs {
		status := "dormant"
		if rec.Scope == current {
			status = "active"
		}
		c.println(fmt.Sprintf("%s  %-8s %-10s %s  %s", shortRef(rec.Ref), rec.Kind, rec.Variable, rec.Scope, status))
	}
	return nil
}

func closeView(_ context.Context, c *Console, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: :close <ref>")
	}
	ref, err := c.resolveRef(args[0])
	if err != nil {
		return err
	}
	return c.app.CloseInspector(ref)
}

func closeAll(ctx context.Context, c *Console, _ []string) error {
	v, err := c.app.CloseAllInScope().Wait(ctx)
	if err != nil {
		return err
	}
	c.println(fmt.Sprintf("closed %d inspector(s)", v.(int)))
	return nil
}

// resolveRef expands a unique ref prefix to the full ref.
func (c *Console) resolveRef(prefix string) (string, error) {
	var match string
	for _, rec := range c.app.Inspectors() {
		if strings.HasPrefix(rec.Ref, prefix) {
			if match != "" {
				return "", fmt.Errorf("ambiguous ref %q", prefix)
			}
			match = rec.Ref
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", app.ErrUnknownInspector, prefix)
	}
	return match, nil
}

func shortRef(ref string) string {
	if len(ref) > 8 {
		return ref[:8]
	}
	return ref
}

func load(ctx context.Context, c *Console, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: :load <path>")
	}
	v, err := c.app.LoadUDF(args[0]).Wait(ctx)
	if err != nil {
		return err
	}
	c.println(successStyle.Render("loaded " + v.(string)))
	return nil
}

func recent(_ context.Context, c *Console, _ []string) error {
	files := c.app.RecentFiles()
	if len(files) == 0 {
		c.println(dimStyle.Render("no recent files"))
	}
	for i, f := range files {
		c.println(fmt.Sprintf("%d  %s", i+1, f))
	}
	return nil
}

func set(ctx context.Context, c *Console, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: :set <key> <value>")
	}
	s, err := applySetting(c.app.Settings(), args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	if _, err := c.app.ApplySettings(s).Wait(ctx); err != nil {
		return err
	}
	c.println(successStyle.Render(fmt.Sprintf("%s = %s", args[0], strings.Join(args[1:], " "))))
	return nil
}

// applySetting changes one setting by its file key, with or without the
// section prefix.
func applySetting(s config.Settings, key, value string) (config.Settings, error) {
	key = strings.ToLower(key)
	if i := strings.IndexByte(key, '.'); i >= 0 {
		key = key[i+1:]
	}

	intField := map[string]*int{
		"sample_rate":  &s.Engine.SampleRate,
		"precision":    &s.Display.Precision,
		"limit_x":      &s.Display.LimitX,
		"limit_y":      &s.Display.LimitY,
		"limit_bytes":  &s.Display.LimitBytes,
		"limit_str":    &s.Display.LimitStr,
		"history_size": &s.Console.HistorySize,
	}
	if p, ok := intField[key]; ok {
		n, err := strconv.Atoi(value)
		if err != nil {
			return s, fmt.Errorf("%s: %q is not a number", key, value)
		}
		*p = n
		return s, nil
	}

	switch key {
	case "udf_paths":
		s.Engine.UDFPaths = filepath.SplitList(value)
	case "log_level":
		s.Console.LogLevel = value
	case "history_file":
		s.Console.HistoryFile = value
	default:
		return s, fmt.Errorf("unknown setting %q", key)
	}
	return s, nil
}

func settings(_ context.Context, c *Console, _ []string) error {
	s := c.app.Settings()
	rows := [][2]string{
		{"engine.sample_rate", strconv.Itoa(s.Engine.SampleRate)},
		{"engine.udf_paths", strings.Join(s.Engine.UDFPaths, string(os.PathListSeparator))},
		{"display.precision", strconv.Itoa(s.Display.Precision)},
		{"display.limit_x", strconv.Itoa(s.Display.LimitX)},
		{"display.limit_y", strconv.Itoa(s.Display.LimitY)},
		{"display.limit_bytes", strconv.Itoa(s.Display.LimitBytes)},
		{"display.limit_str", strconv.Itoa(s.Display.LimitStr)},
		{"console.log_level", s.Console.LogLevel},
		{"console.history_size", strconv.Itoa(s.Console.HistorySize)},
	}
	for _, r := range rows {
		c.println(fmt.Sprintf("%-22s %s", r[0], r[1]))
	}
	return nil
}

func history(_ context.Context, c *Console, args []string) error {
	entries := c.app.History().Entries()
	n := len(entries)
	if len(args) > 0 {
		if v, err := strconv.Atoi(args[0]); err == nil && v < n {
			n = v
		}
	}
	start := len(entries) - n
	for i, e := range entries[start:] {
		c.println(fmt.Sprintf("%4d  %s", start+i+1, e))
	}
	return nil
}

func search(_ context.Context, c *Console, args []string) error {
	term := strings.Join(args, " ")
	from := -1
	if term == "" || term == c.searchTerm {
		term = c.searchTerm
		from = c.searchIdx
	}

	match, idx, ok := c.app.History().Search(term, from)
	if !ok {
		c.searchTerm, c.searchIdx = term, -1
		c.println(dimStyle.Render(fmt.Sprintf("no match for %q", term)))
		return nil
	}
	c.searchTerm, c.searchIdx = term, idx
	c.println(fmt.Sprintf("%4d  %s", idx+1, match))
	return nil
}

func state(_ context.Context, c *Console, args []string) error {
	json := c.app.ExportState()
	if len(args) > 0 {
		res := gjson.Get(json, args[0])
		if !res.Exists() {
			return fmt.Errorf("no state at %q", args[0])
		}
		c.println(res.String())
		return nil
	}
	c.println(gjson.Get(json, "@pretty").String())
	return nil
}

func quit(context.Context, *Console, []string) error {
	return app.ErrQuit
}
