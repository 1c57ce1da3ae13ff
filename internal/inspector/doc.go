// Package inspector implements the variable views opened from the console:
// signal graphs, signal tables, text and outline views, and hex dumps.
//
// An Inspector satisfies debug.Resource. The scope registry decides when a
// view is closed or greyed out; the inspector only renders whatever value
// it was last given.
//
// The formatting helpers (TypeTag, Size, RMSdB, Truncate, HexDump, Table)
// are shared with the variable listing.
package inspector
