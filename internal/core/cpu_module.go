package core

import (
	"errors"

	"github.com/dreamon-emu/sh4core/internal/sh4"
	"github.com/dreamon-emu/sh4core/internal/translator"
)

// cpuPeriodNs is the fixed per-instruction time charged to slice_cycle
// (spec §4.3 run-loop step 3), corresponding to a 200MHz SH4 core clock.
const cpuPeriodNs int64 = 5

// StopReason tags why RunSlice returned early, recast per spec §9's note
// on turning "coroutine-like run until event" control flow into an
// explicit, restartable state tag instead of resumable coroutines.
type StopReason int

const (
	StopSliceDone StopReason = iota
	StopBreakpoint
	StopHalted
	StopFatal
)

// cpuModule wires the interpreter/translator pair into the Module
// contract. Every exit from RunSlice, including an interpreter fallback
// for opcodes the translator doesn't inline, goes through here so
// slice_cycle bookkeeping and interrupt delivery stay centralized (spec
// §5: "the dispatcher is the only place a device-switch occurs").
type cpuModule struct {
	core     *sh4.Core
	cache    *translator.Cache
	intc     *InterruptController
	useJIT   bool
	lastStop StopReason

	// instrCount tracks retired instructions for internal/asic's G2 status
	// timers (spec §3: "G2 status bits... derived from cycle-based on/off
	// timers"), which key off instruction count rather than wall time.
	instrCount int64
}

func newCPUModule(core *sh4.Core, cache *translator.Cache, intc *InterruptController) *cpuModule {
	return &cpuModule{core: core, cache: cache, intc: intc, useJIT: true}
}

// InstructionCount returns the running total of retired instructions,
// wired as internal/asic.NewBus's icount callback.
func (m *cpuModule) InstructionCount() int64 { return m.instrCount }

func (m *cpuModule) Name() string { return "sh4" }

func (m *cpuModule) Reset() { m.core.Reset() }

// SetUseJIT toggles whether RunSlice dispatches through the translation
// cache (default) or the interpreter alone; the debugger's single-step
// mode forces this off so Step/PC observations are never surprised by a
// multi-instruction native block running in between (spec §4.3's
// breakpoint contract, §4.4's "every exit... looks up... the next block").
func (m *cpuModule) SetUseJIT(v bool) { m.useJIT = v }

func (m *cpuModule) LastStopReason() StopReason { return m.lastStop }

// RunSlice implements the run_slice(ns) loop from spec §4.3:
//  1. deliver a pending, unmasked interrupt if one exists;
//  2. execute one instruction (translated block or interpreter fallback);
//  3. charge slice_cycle;
//  4. stop on breakpoint or halt;
//  5. stop once slice_cycle >= ns.
func (m *cpuModule) RunSlice(ns int64) int64 {
	r := m.core.Regs
	r.SliceCycle = 0
	m.lastStop = StopSliceDone

loop:
	for r.SliceCycle < ns {
		if m.core.Halted() {
			m.lastStop = StopHalted
			break
		}
		if r.RunState != sh4.StateRunning {
			// Parked by SLEEP/STANDBY: still consult pending interrupts,
			// which are what wakes the core back up, but don't burn a
			// full instruction's worth of time fetching nothing.
			if m.deliverInterrupt(r) {
				continue
			}
			r.SliceCycle = ns
			break
		}

		if m.deliverInterrupt(r) {
			continue
		}

		var err error
		if m.useJIT {
			err = m.cache.Run(m.core)
		} else {
			_, err = m.core.Step()
		}
		r.SliceCycle += cpuPeriodNs
		m.instrCount++

		if err != nil {
			// The JIT path wraps the interpreter's error in
			// *translator.RecoveryError (see translator.annotateRecovery);
			// errors.As unwraps it so breakpoint/fatal stop reasons are
			// still recognized on that path, not just the interpreter one.
			var bp *sh4.ErrBreakpoint
			var fatal *sh4.FatalError
			if errors.As(err, &bp) {
				m.lastStop = StopBreakpoint
				break loop
			}
			if errors.As(err, &fatal) {
				m.lastStop = StopFatal
				break loop
			}
			// Any other error is an *sh4.Exception already reified as a
			// register-file transition by Core.Step/runBlock; nothing
			// further to do here (spec §7: never escapes to the host).
		}
	}
	return r.SliceCycle
}

// deliverInterrupt performs step 1 of the run loop: if a line is pending
// and unmasked, and the core is at a deliverable boundary, vector into
// it. Returns true if an interrupt was delivered (caller should re-poll
// before fetching the next instruction, since the vectored ISR is now
// what "the next instruction" means).
func (m *cpuModule) deliverInterrupt(r *sh4.Registers) bool {
	if !m.core.CanTakeInterrupt() {
		return false
	}
	intevt, ok := m.intc.Pending(r.IMask())
	if !ok {
		return false
	}
	if err := m.core.RaiseInterrupt(intevt); err != nil {
		return false
	}
	return true
}

func (m *cpuModule) Save() []byte {
	snap := m.core.Regs.Save()
	return snap[:]
}

func (m *cpuModule) Load(data []byte) error {
	var snap sh4.Snapshot
	copy(snap[:], data)
	m.core.Regs.Load(snap)
	return nil
}
