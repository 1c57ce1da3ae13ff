// Package luaengine implements engine.Engine on top of gopher-lua.
//
// Commands are Lua chunks. A UDF is a Lua file named after the global
// function it defines (foo.aux defines foo); UDFs are loaded explicitly or
// on first reference from the configured search paths.
//
// # Debugging
//
// UDF sources are instrumented when loaded: each statement line first calls
// a checkpoint hook with its file index and line number, and each one-line
// function header records an activation serial in a hidden local. The hook
// yields the coroutine running the current command when a breakpoint or a
// step target is reached, which suspends the whole call chain in place.
//
// While suspended, the locals of every UDF frame on the chain are readable
// and writable. Raw scope identities are frame depths: the root namespace is
// 1 and the outermost suspended frame is 2. A depth is reused by whatever
// frame next occupies it, so callers that track scopes across pauses must
// compare activation serials, which are never reused.
//
// # Sandbox
//
// Only the base, table, string and math libraries are opened. File loaders
// are removed, and print writes to the reply of the current call.
package luaengine
