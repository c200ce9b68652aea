package core

import (
	"github.com/dreamon-emu/sh4core/internal/arm7"
	"github.com/dreamon-emu/sh4core/internal/asic"
	"github.com/dreamon-emu/sh4core/internal/memmap"
	"github.com/dreamon-emu/sh4core/internal/sh4"
	"github.com/dreamon-emu/sh4core/internal/translator"
)

// Physical memory map constants (spec §6 "SH4 address map (essential)").
// Region bounds are given in their already-masked (29-bit) physical form;
// memmap.Bus collapses the P0-P4 virtual aliases onto these same bytes,
// so a single MapRegion call covers every cached/uncached mirror at once.
const (
	mainRAMBase = 0x0C000000
	mainRAMSize = 16 * 1024 * 1024

	aicaMirrorBase = 0x00700000 // SH4-side alias of the ARM7 sound RAM/MMIO window
	aicaMirrorSize = 0x00100000

	tmuBase  = 0x00440000
	tmuSize  = 0x30
	scifBase = 0x00450000
	scifSize = 0x30
	intcBase = 0x00460000
	intcSize = 0x10
)

// Machine assembles the SH4 core, translator, ASIC bus and ARM7 window
// into one schedulable unit and owns the module-registration list spec §6
// requires for save-state framing. This is the "scheduler" spec §2's data
// flow paragraph describes: it calls RunSlice on the SH4 module, whose
// memory/MMIO accesses reach ASIC and ARM7 through the shared bus.
type Machine struct {
	Mem   *memmap.Bus
	CPU   *sh4.Core
	Cache *translator.Cache
	ASIC  *asic.Bus
	ARM7  *arm7.Window
	INTC  *InterruptController

	cpuMod *cpuModule
	modules []Module // registration order; fixes save-state chunk order
}

// NewMachine builds a fully wired machine: main RAM, the ASIC MMIO/EXTDMA
// windows, the ARM7 memory window's SH4-side mirror, and the shadow TMU/
// SCIF/INTC peripheral windows (spec §4.1-§4.7, §6).
func NewMachine() (*Machine, error) {
	mem := memmap.NewBus()
	mem.MapRegion(memmap.NewRAM("main-ram", mainRAMBase, mainRAMSize))

	cpu := sh4.NewCore(mem)

	cache, err := translator.NewCache()
	if err != nil {
		return nil, err
	}
	cache.AttachTo(mem)

	intc := NewInterruptController()
	cpuMod := newCPUModule(cpu, cache, intc)

	asicBus := asic.NewBus(intc, func() int64 { return cpuMod.InstructionCount() })
	asicBus.AttachTo(mem)

	win := arm7.NewWindow()
	asicBus.SetARM7Memory(win)
	mem.MapRegion(memmap.NewMMIO("aica-mirror", aicaMirrorBase, aicaMirrorBase+aicaMirrorSize-1,
		win.ReadByte, win.WriteByte))

	tmu := newShadowPeripheral("tmu", tmuBase, tmuSize, mem)
	scif := newShadowPeripheral("scif", scifBase, scifSize, mem)
	intcRegs := newShadowPeripheral("intc-regs", intcBase, intcSize, mem)
	mmuMod := newMMUModule(cpu.MMU)
	asicMod := newASICModule(asicBus)
	arm7Mod := newARM7Module(win)

	m := &Machine{
		Mem: mem, CPU: cpu, Cache: cache, ASIC: asicBus, ARM7: win, INTC: intc,
		cpuMod: cpuMod,
		// Order matches spec §6 literally: "The SH4 dumps its register
		// struct; ASIC dumps the G2 timer struct; TMU, SCIF, INTC, MMU
		// each dump their state" — ARM7 appended last since it is this
		// core's own addition beyond that enumerated list (spec §4.7).
		modules: []Module{cpuMod, asicMod, tmu, scif, intcRegs, mmuMod, arm7Mod},
	}
	asicBus.SetResetter(m)
	return m, nil
}

// Reset resets every registered module in registration order. Wired as
// internal/asic.Resetter, so a guest write of the SYSRESET magic value
// (spec §4.6) reaches here too.
func (m *Machine) Reset() {
	for _, mod := range m.modules {
		mod.Reset()
	}
}

// RunSlice drives the SH4 core for up to ns nanoseconds (spec §4.3). ASIC
// and ARM7 have no autonomous per-tick behavior of their own in this
// core, so the scheduler's single time budget belongs entirely to the
// CPU module; their RunSlice calls exist only to satisfy the Module
// contract spec §2's data-flow paragraph describes as round-robin.
func (m *Machine) RunSlice(ns int64) int64 {
	used := m.cpuMod.RunSlice(ns)
	for _, mod := range m.modules {
		if mod != Module(m.cpuMod) {
			mod.RunSlice(used)
		}
	}
	return used
}

// SetUseJIT toggles translated-code execution (see cpuModule.SetUseJIT).
func (m *Machine) SetUseJIT(v bool) { m.cpuMod.SetUseJIT(v) }

// LastStopReason reports why the most recent RunSlice returned early.
func (m *Machine) LastStopReason() StopReason { return m.cpuMod.LastStopReason() }

// SetBreakpoint/ClearBreakpoint proxy to the CPU core.
func (m *Machine) SetBreakpoint(addr uint32)   { m.CPU.SetBreakpoint(addr) }
func (m *Machine) ClearBreakpoint(addr uint32) { m.CPU.ClearBreakpoint(addr) }
