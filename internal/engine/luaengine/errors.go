package luaengine

import "errors"

// Errors for engine operations.
var (
	// ErrNotInitialized is returned when the engine is used before Init.
	ErrNotInitialized = errors.New("engine not initialized")

	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrNotPaused is returned by pause queries and resume while running.
	ErrNotPaused = errors.New("no suspended program")

	// ErrUnknownScope is returned for a scope that is not live.
	ErrUnknownScope = errors.New("unknown scope")

	// ErrUDFNotFound is returned when a UDF is neither loaded nor on the
	// search path.
	ErrUDFNotFound = errors.New("udf not found")

	// ErrInvalidLine is returned for non-positive breakpoint lines.
	ErrInvalidLine = errors.New("invalid breakpoint line")
)
