// Package debug is the scope-aware debugging core of auxlab.
//
// The core sits between the console and an engine.Engine:
//
//	console ──► Queue ──► Debugger ──► Gateway ──► engine.Engine
//	                          │
//	                          ├──► Controller       (session state)
//	                          ├──► Registry         (open inspectors)
//	                          └──► BreakpointStore  (per-file lines)
//
// # Scopes
//
// The engine identifies variable namespaces with raw ScopeID values that it
// may reuse once a call frame ends. The Gateway never exposes them. It mints
// Scope handles carrying a generation, invalidates them when their frame
// leaves the call chain, and gives a reused raw identity a new generation.
// The root scope handle lives from Init until the next Init.
//
// # Session State
//
// The session is either idle, with the root scope current, or paused at a
// file and line with the paused frame's scope current. Controller.Apply is
// the only transition:
//
//   - a paused outcome with a known location pauses there
//   - a rejected evaluation changes nothing
//   - anything else returns to idle
//
// A pause the engine cannot locate is treated as idle and reported as an
// anomaly. Abort always returns to idle.
//
// # Inspectors
//
// Every inspector the console opens is registered with the scope that was
// current at the time, and that binding never changes. After every action
// the Registry closes inspectors whose variable disappeared from the current
// scope, inspectors of other scopes once the session is idle, and inspectors
// whose scope handle went stale. Inspectors of other scopes stay open but
// dormant while paused.
//
// # Concurrency
//
// The engine is not reentrant. All engine work runs on the single worker of
// a Queue, one job at a time in submission order, and callers wait on the
// returned Future.
package debug
