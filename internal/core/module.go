// Package core wires the SH4 interpreter/translator, the ASIC event bus,
// the unified memory map and the ARM7 memory window into one runnable
// machine, and implements the module-registration scheduler and
// save-state framing described in spec §6/§9 ("Module registration via
// function pointer structs... recast as a trait-style interface").
package core

// Module is the capability set every scheduled device exposes: the
// "trait-style interface" spec §9 calls for in place of the original's
// hand-written function-pointer struct. The scheduler holds a
// heterogeneous list of Modules by dynamic dispatch (interface values),
// exactly as that section prescribes.
type Module interface {
	// Name is a stable identifier used for diagnostics only (spec §6:
	// modules are written/read in registration order, so Name is not a
	// reader key and does not order save-state chunks).
	Name() string

	// Reset restores the module's post-reset state.
	Reset()

	// RunSlice executes up to ns nanoseconds of the module's work and
	// returns the amount actually consumed (spec §2/§5's run_slice
	// contract). A module that has nothing to do for a tick may return 0
	// and let the scheduler carry on to the next module; the scheduler's
	// overall slice is considered used once every Module reports back.
	RunSlice(ns int64) int64

	// Save serializes the module's state as a raw byte dump (spec §6:
	// "raw little-endian dump of that module's state structure").
	Save() []byte

	// Load restores state previously produced by Save. Machine.LoadState
	// checks the file's magic and version and hands each module exactly
	// len(Save()) bytes; the module implementations do not validate the
	// chunk themselves.
	Load(data []byte) error
}
