// Package app wires the debug core, the inspectors and the settings into
// the application the console drives.
//
// Every engine call goes through one queue, so the engine sees a strict
// sequence of requests no matter how many goroutines submit work. Methods
// that touch the engine return a *debug.Future; methods that only read
// session state answer directly.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/auxlab/internal/config"
	"github.com/dshills/auxlab/internal/engine"
	"github.com/dshills/auxlab/internal/inspector"
	"github.com/dshills/auxlab/internal/integration/debug"
)

// IdlePrompt is shown while no program is suspended.
const IdlePrompt = "AUX> "

// Options configures an Application.
type Options struct {
	// Engine is the engine to drive. Required.
	Engine engine.Engine
	// Settings are the initial settings.
	Settings config.Settings
	// SettingsPath is where ApplySettings persists. Empty disables saving.
	SettingsPath string
	// HistoryPath is the command history file. Empty disables persistence.
	HistoryPath string
	// BreakpointsPath is the breakpoint file. Empty disables persistence.
	BreakpointsPath string
	// Logger receives application logs. Defaults to NullLogger.
	Logger *Logger
	// QueueSize bounds pending engine calls.
	QueueSize int
	// WatchFiles reloads loaded UDF files when they change on disk.
	WatchFiles bool
}

// CommandResult is the result of a command or a debug action.
type CommandResult struct {
	Outcome debug.Outcome
	State   debug.SessionState
	// Output is the text to echo. It is empty for a successful command
	// ending in ';'.
	Output string
	Prompt string
	// Err is the *debug.EvalError of a failed evaluation.
	Err error
}

// VariableRow is one line of a variable listing.
type VariableRow struct {
	Name    string
	Tag     string
	Size    string
	Preview string
	// RMS is the per-channel level in dB for audio variables.
	RMS string
}

// Application is the interface the console talks to.
type Application struct {
	debugger *debug.Debugger
	queue    *debug.Queue
	logger   *Logger
	history  *History
	recent   *RecentFiles
	watcher  *UDFWatcher

	mu              sync.RWMutex
	settings        config.Settings
	settingsPath    string
	historyPath     string
	breakpointsPath string
	watchFiles      bool
	loaded          map[string]string // UDF path to name

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates an application. Start must be called before use.
func New(opts Options) (*Application, error) {
	if opts.Engine == nil {
		return nil, NewOperationError("create", "application", ErrNoEngine)
	}
	s := opts.Settings.Normalize()
	if err := s.Validate(); err != nil {
		return nil, NewOperationError("create", "application", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = NullLogger
	}

	app := &Application{
		debugger:        debug.NewDebugger(opts.Engine),
		queue:           debug.NewQueue(opts.QueueSize),
		logger:          logger,
		history:         NewHistory(s.Console.HistorySize),
		recent:          NewRecentFiles(),
		settings:        s,
		settingsPath:    opts.SettingsPath,
		historyPath:     opts.HistoryPath,
		breakpointsPath: opts.BreakpointsPath,
		watchFiles:      opts.WatchFiles,
		loaded:          make(map[string]string),
	}

	gwLog := logger.WithComponent("gateway")
	app.debugger.Gateway().SetHandlers(debug.GatewayHandlers{
		OnAnomaly: func(origin debug.Origin, err error) {
			gwLog.Warn("%s: %v; session returned to idle", origin, err)
		},
	})
	ctlLog := logger.WithComponent("session")
	app.debugger.Controller().SetHandlers(debug.ControllerHandlers{
		OnStateChanged: func(from, to debug.SessionState) {
			ctlLog.Debug("%s -> %s", from, to)
		},
	})
	app.debugger.Breakpoints().SetPersistPath(opts.BreakpointsPath)
	return app, nil
}

// Start initializes the engine and starts processing engine calls.
func (app *Application) Start(ctx context.Context) error {
	app.runMu.Lock()
	defer app.runMu.Unlock()
	if app.running {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	app.cancel = cancel
	app.done = make(chan struct{})
	go func() {
		defer close(app.done)
		app.queue.Run(runCtx)
	}()
	app.running = true

	if app.historyPath != "" {
		if err := app.history.Load(app.historyPath); err != nil {
			app.logComponentError("history", err)
		}
	}
	if app.breakpointsPath != "" {
		if err := app.debugger.Breakpoints().Load(); err != nil {
			app.logComponentError("breakpoints", err)
		}
	}
	if app.watchFiles {
		w, err := NewUDFWatcher(DefaultReloadDelay, app.reload, func(err error) {
			app.logComponentError("watcher", err)
		})
		if err != nil {
			app.logComponentError("watcher", err)
		} else {
			app.watcher = w
		}
	}

	_, err := app.queue.Submit(func() (any, error) {
		if _, err := app.debugger.Init(app.Settings().EngineConfig()); err != nil {
			return nil, err
		}
		if err := app.debugger.Breakpoints().ResyncAll(); err != nil {
			app.logComponentError("breakpoints", err)
		}
		return nil, nil
	}).Wait(ctx)
	if err != nil {
		return NewOperationError("initialize", "engine", err)
	}
	app.Logger().Info("engine ready at %d Hz", app.Settings().Engine.SampleRate)
	return nil
}

// Close stops the queue, saves the history and breakpoints and closes the
// engine.
func (app *Application) Close() error {
	app.runMu.Lock()
	defer app.runMu.Unlock()
	if !app.running {
		return nil
	}
	app.running = false

	var errs ErrorList
	if app.watcher != nil {
		errs.Add(app.watcher.Close())
	}
	app.queue.Close()
	app.cancel()
	<-app.done

	for _, rec := range app.debugger.Registry().Records() {
		app.debugger.Registry().Close(rec.Ref)
	}
	if app.historyPath != "" {
		errs.Add(app.history.Save(app.historyPath))
	}
	if app.breakpointsPath != "" {
		errs.Add(app.debugger.Breakpoints().Save())
	}
	errs.Add(app.debugger.Gateway().Close())
	return errs.AsError()
}

// Debugger returns the debug core.
func (app *Application) Debugger() *debug.Debugger { return app.debugger }

// History returns the command history.
func (app *Application) History() *History { return app.history }

// RecentFiles returns recently loaded UDF files, most recent first.
func (app *Application) RecentFiles() []string { return app.recent.List() }

// State returns the session state.
func (app *Application) State() debug.SessionState {
	return app.debugger.Controller().State()
}

// Prompt returns the console prompt for the current state.
func (app *Application) Prompt() string {
	if file, line, ok := app.debugger.Controller().PauseLocation(); ok {
		return fmt.Sprintf("%s:%d> ", file, line)
	}
	return IdlePrompt
}

// Settings returns the active settings.
func (app *Application) Settings() config.Settings {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.settings
}

// SubmitCommand queues text for evaluation in the current scope. The
// command is added to the history before it runs.
func (app *Application) SubmitCommand(text string) *debug.Future {
	app.history.Add(text)
	return app.queue.Submit(func() (any, error) {
		res, err := app.debugger.Evaluate(text)
		if err != nil {
			return nil, NewOperationError("evaluate", "", err)
		}
		return app.finish(res, text), nil
	})
}

// SubmitDebugAction queues a resume action.
func (app *Application) SubmitDebugAction(action debug.ResumeAction) *debug.Future {
	return app.queue.Submit(func() (any, error) {
		res, err := app.debugger.Resume(action)
		if err != nil {
			return nil, NewOperationError(action.String(), "", err)
		}
		return app.finish(res, ""), nil
	})
}

func (app *Application) finish(res debug.Result, command string) CommandResult {
	app.refresh(res.Report)

	out := CommandResult{
		Outcome: res.Outcome,
		State:   res.State,
		Output:  res.Outcome.Message,
		Prompt:  app.Prompt(),
		Err:     res.Outcome.Err(command),
	}
	if out.Err == nil && strings.HasSuffix(strings.TrimSpace(command), ";") {
		out.Output = ""
	}
	for _, rec := range res.Report.Closed {
		app.Logger().Debug("closed %s view of %s in %s", rec.Kind, rec.Variable, rec.Scope)
	}
	return out
}

// refresh pushes current values into the active inspectors.
func (app *Application) refresh(report debug.ReconcileReport) {
	for _, rec := range report.Active {
		in, ok := rec.Resource.(*inspector.Inspector)
		if !ok {
			continue
		}
		v, err := app.debugger.Variable(rec.Variable)
		if err != nil {
			app.Logger().Debug("refresh %s: %v", rec.Variable, err)
			continue
		}
		in.Update(v)
	}
}

// OpenInspector opens a view of variable in the current scope and
// resolves to its reference. Asking for a second signal view of the same
// variable in the same scope refreshes and returns the first.
func (app *Application) OpenInspector(variable string, kind debug.ResourceKind) *debug.Future {
	return app.queue.Submit(func() (any, error) {
		d := app.debugger
		v, err := d.Variable(variable)
		if err != nil {
			return nil, NewOperationError("open", variable, err)
		}
		if !viewable(kind, v) {
			return nil, NewOperationError("open", variable, ErrUnsupportedView).WithContext(kind.String())
		}

		if kind == debug.KindSignal {
			if rec, ok := d.Registry().Find(variable, d.Controller().CurrentScope(), kind); ok {
				if in, ok := rec.Resource.(*inspector.Inspector); ok {
					in.Update(v)
				}
				return rec.Ref, nil
			}
		}

		ref := uuid.NewString()
		in := inspector.New(ref, variable, kind, v)
		in.OnClose(func(ref string) { d.Registry().UnregisterExternally(ref) })
		scope, err := d.Open(variable, ref, kind, in)
		if err != nil {
			return nil, NewOperationError("open", variable, err)
		}
		app.Logger().Debug("opened %s view of %s in %s", kind, variable, scope)
		return ref, nil
	})
}

func viewable(kind debug.ResourceKind, v engine.Value) bool {
	switch kind {
	case debug.KindSignal:
		_, ok := v.(engine.Signal)
		return ok
	case debug.KindTable:
		switch v.(type) {
		case engine.Signal, engine.Scalar:
			return true
		}
		return false
	case debug.KindBinary:
		switch v.(type) {
		case engine.Binary, engine.Text:
			return true
		}
		return false
	default:
		return true
	}
}

// Inspector returns the open view with ref.
func (app *Application) Inspector(ref string) (*inspector.Inspector, bool) {
	rec, ok := app.debugger.Registry().Get(ref)
	if !ok {
		return nil, false
	}
	in, ok := rec.Resource.(*inspector.Inspector)
	return in, ok
}

// Inspectors returns the open views, oldest first.
func (app *Application) Inspectors() []debug.Record {
	return app.debugger.Registry().Records()
}

// FocusableInspectors returns the open views of the current scope.
func (app *Application) FocusableInspectors() []debug.Record {
	return app.debugger.Registry().InScope(app.debugger.Controller().CurrentScope())
}

// CloseInspector closes the view with ref.
func (app *Application) CloseInspector(ref string) error {
	if !app.debugger.Registry().Close(ref) {
		return NewOperationError("close", ref, ErrUnknownInspector)
	}
	return nil
}

// CloseAllInScope closes every view of the current scope and resolves to
// the number closed.
func (app *Application) CloseAllInScope() *debug.Future {
	return app.queue.Submit(func() (any, error) {
		closed := app.debugger.Registry().CloseAllInScope(app.debugger.Controller().CurrentScope())
		return len(closed), nil
	})
}

// ToggleBreakpoint flips the breakpoint at file:line and resolves to
// whether it is now set.
func (app *Application) ToggleBreakpoint(file string, line int) *debug.Future {
	return app.queue.Submit(func() (any, error) {
		enabled, err := app.debugger.Breakpoints().Flip(file, line)
		if err != nil {
			return nil, NewOperationError("toggle breakpoint", fmt.Sprintf("%s:%d", file, line), err)
		}
		app.saveBreakpoints()
		return enabled, nil
	})
}

// SetBreakpoint sets or clears the breakpoint at file:line.
func (app *Application) SetBreakpoint(file string, line int, enable bool) *debug.Future {
	return app.queue.Submit(func() (any, error) {
		if err := app.debugger.Breakpoints().Toggle(file, line, enable); err != nil {
			return nil, NewOperationError("set breakpoint", fmt.Sprintf("%s:%d", file, line), err)
		}
		app.saveBreakpoints()
		return enable, nil
	})
}

func (app *Application) saveBreakpoints() {
	if app.breakpointsPath == "" {
		return
	}
	if err := app.debugger.Breakpoints().Save(); err != nil {
		app.logComponentError("breakpoints", err)
	}
}

// DeleteVariable removes name from the current scope and resolves to
// whether it existed. Views of the variable close.
func (app *Application) DeleteVariable(name string) *debug.Future {
	return app.queue.Submit(func() (any, error) {
		ok, report, err := app.debugger.DeleteVariable(name)
		if err != nil {
			return nil, NewOperationError("delete", name, err)
		}
		app.refresh(report)
		return ok, nil
	})
}

// Variables resolves to the listing of the current scope as []VariableRow.
func (app *Application) Variables() *debug.Future {
	return app.queue.Submit(func() (any, error) {
		vars, err := app.debugger.Variables()
		if err != nil {
			return nil, NewOperationError("list", "variables", err)
		}
		rows := make([]VariableRow, 0, len(vars))
		for _, v := range vars {
			row := VariableRow{
				Name:    v.Name,
				Tag:     inspector.TypeTag(v.Value),
				Size:    inspector.Size(v.Value),
				Preview: inspector.Truncate(v.Preview, inspector.MaxDisplayChars),
			}
			if sig, ok := v.Value.(engine.Signal); ok && sig.Audio {
				row.RMS = inspector.RMSdB(sig)
			}
			rows = append(rows, row)
		}
		return rows, nil
	})
}

// SelectFrame makes the frame at depth current and resolves to the new
// session state.
func (app *Application) SelectFrame(depth int) *debug.Future {
	return app.queue.Submit(func() (any, error) {
		st, err := app.debugger.SelectFrame(depth)
		if err != nil {
			return nil, NewOperationError("select frame", fmt.Sprint(depth), err)
		}
		app.refresh(app.debugger.Reconcile())
		return st, nil
	})
}

// LoadUDF loads the UDF file at path and resolves to its name. Persisted
// breakpoints of the UDF are pushed to the engine, and the file is watched
// for changes when watching is enabled.
func (app *Application) LoadUDF(path string) *debug.Future {
	return app.queue.Submit(func() (any, error) {
		name, err := app.load(path)
		if err != nil {
			return nil, NewOperationError("load", path, err)
		}
		app.recent.Add(path)
		if app.watcher != nil && !app.watcher.IsWatching(path) {
			if err := app.watcher.Watch(path); err != nil {
				app.logComponentError("watcher", NewComponentError("watcher", "watch "+path, err))
			}
		}
		return name, nil
	})
}

func (app *Application) load(path string) (string, error) {
	name, err := app.debugger.Gateway().LoadUDF(path)
	if err != nil {
		return "", err
	}
	app.mu.Lock()
	app.loaded[path] = name
	app.mu.Unlock()

	if err := app.debugger.Breakpoints().Resync(name); err != nil {
		app.logComponentError("breakpoints", err)
	}
	return name, nil
}

// reload is called by the watcher when a loaded file changes.
func (app *Application) reload(path string) {
	app.queue.Submit(func() (any, error) {
		name, err := app.load(path)
		if err != nil {
			app.logComponentError("watcher", NewComponentError("watcher", "reload "+path, err))
			return nil, err
		}
		app.Logger().Info("reloaded %s from %s", name, path)
		return name, nil
	})
}

// ApplySettings validates s, forwards it to the engine and persists it.
// Invalid settings never reach the engine.
func (app *Application) ApplySettings(s config.Settings) *debug.Future {
	s = s.Normalize()
	if err := s.Validate(); err != nil {
		return debug.Resolved(nil, NewOperationError("apply", "settings", err))
	}
	return app.queue.Submit(func() (any, error) {
		if err := app.debugger.Gateway().ApplyConfig(s.EngineConfig()); err != nil {
			return nil, NewOperationError("apply", "settings", err)
		}
		app.mu.Lock()
		app.settings = s
		path := app.settingsPath
		app.mu.Unlock()

		app.Logger().SetLevel(ParseLogLevel(s.Console.LogLevel))
		if path != "" {
			if err := config.Save(path, s); err != nil {
				return s, NewOperationError("save", path, err)
			}
		}
		return s, nil
	})
}

// SaveSettings writes the active settings to the settings path.
func (app *Application) SaveSettings() error {
	app.mu.RLock()
	path, s := app.settingsPath, app.settings
	app.mu.RUnlock()
	if path == "" {
		return ErrNoSettingsPath
	}
	return config.Save(path, s)
}
