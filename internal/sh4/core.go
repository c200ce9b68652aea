package sh4

import "github.com/dreamon-emu/sh4core/internal/memmap"

// Breakpoint is a single instruction-fetch breakpoint, checked before each
// instruction decode (spec §4.3, debugger integration). Modeled on the
// teacher's DebuggableCPU.SetBreakpoint/ClearBreakpoint pair.
type Breakpoint struct {
	Address uint32
	Enabled bool
}

// Core ties the register file, memory bus and MMU together into the
// runnable SH4 interpreter. A Core is what internal/core.Module wraps for
// scheduling, and what internal/translator compiles basic blocks against.
type Core struct {
	Regs *Registers
	Bus  *memmap.Bus
	MMU  *MMU

	breakpoints map[uint32]*Breakpoint
	halted      bool
	haltReason  string

	// icache holds recently fetched instruction words keyed by fetch
	// address (the PC as issued), avoiding a full bus round trip per fetch
	// in the interpreter loop. 4KiB direct-mapped, matching the scale of
	// similar lookaside caches elsewhere in the teacher
	// (coprocessor_manager.go's opcode cache), not the real SH4's larger
	// hardware I-cache.
	icache [2048]icacheLine
}

type icacheLine struct {
	valid bool
	phys  uint32
	word  uint16
}

// NewCore wires a fresh register file and MMU onto the given bus.
func NewCore(bus *memmap.Bus) *Core {
	c := &Core{
		Regs:        NewRegisters(),
		Bus:         bus,
		MMU:         NewMMU(),
		breakpoints: make(map[uint32]*Breakpoint),
	}
	bus.SetTranslator(mmuTranslatorAdapter{mmu: c.MMU})
	bus.SetPrivilegeFunc(func() bool { return c.Regs.Privileged() })
	return c
}

// Reset restores the register file to its post-reset state and clears the
// fetch cache (stale translations would otherwise survive a soft reset).
func (c *Core) Reset() {
	c.Regs.Reset()
	c.MMU.Flush()
	c.MMU.SetEnabled(false)
	for i := range c.icache {
		c.icache[i] = icacheLine{}
	}
	c.halted = false
	c.haltReason = ""
}

// SetBreakpoint arms a fetch breakpoint at addr.
func (c *Core) SetBreakpoint(addr uint32) {
	c.breakpoints[addr] = &Breakpoint{Address: addr, Enabled: true}
}

// ClearBreakpoint disarms a previously set breakpoint.
func (c *Core) ClearBreakpoint(addr uint32) { delete(c.breakpoints, addr) }

func (c *Core) breakpointHit(addr uint32) bool {
	bp, ok := c.breakpoints[addr]
	return ok && bp.Enabled
}

// Halted reports whether the core has stopped itself after a FatalError
// from a previous step. SLEEP does not halt the core; it parks it through
// Registers.RunState until an interrupt wakes it.
func (c *Core) Halted() bool { return c.halted }

// HaltReason explains why Halted is true; empty if it isn't.
func (c *Core) HaltReason() string { return c.haltReason }

func (c *Core) halt(reason string) { c.halted = true; c.haltReason = reason }

// fetch reads the 16-bit instruction word at the current PC, consulting
// the tiny direct-mapped icache first.
func (c *Core) fetch(pc uint32) (uint16, error) {
	idx := (pc >> 1) & 2047
	line := &c.icache[idx]
	if line.valid && line.phys == pc {
		return line.word, nil
	}
	w, err := c.readWord(pc)
	if err != nil {
		return 0, err
	}
	*line = icacheLine{valid: true, phys: pc, word: w}
	return w, nil
}

// PeekOpcode reads the instruction word at addr without advancing any
// state, for use by internal/translator's block compiler when deciding
// how to compile a run of instructions.
func (c *Core) PeekOpcode(addr uint32) (uint16, error) {
	return c.fetch(addr)
}

// InvalidateFetchCache drops cached instruction words overlapping
// [addr, addr+size). Called whenever code memory is written, mirroring
// the self-modifying-code handling the translator also needs for its own
// translation cache (spec §4.5).
func (c *Core) InvalidateFetchCache(addr, size uint32) {
	for i := range c.icache {
		line := &c.icache[i]
		if line.valid && line.phys >= addr && line.phys < addr+size {
			line.valid = false
		}
	}
}
