package core

import (
	"bytes"
	"testing"

	"github.com/dreamon-emu/sh4core/internal/asic"
)

func newTestMachine(t *testing.T) *Machine {
	t.Helper()
	m, err := NewMachine()
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	m.Reset()
	// Interpreter-only for deterministic, architecture-independent
	// assertions; the translated path is covered separately in
	// internal/translator.
	m.SetUseJIT(false)
	return m
}

func writeOp(t *testing.T, m *Machine, addr uint32, op uint16) {
	t.Helper()
	if err := m.Mem.WriteWord(addr, op, false); err != nil {
		t.Fatalf("WriteWord(%#x, %#x): %v", addr, op, err)
	}
}

// RunSlice retires NOPs at cpuPeriodNs each and stops once the requested
// budget is charged (spec §4.3 run-loop step 5).
func TestRunSliceChargesSliceCycle(t *testing.T) {
	m := newTestMachine(t)
	const pc = mainRAMBase + 0x100
	for i := uint32(0); i < 8; i++ {
		writeOp(t, m, pc+i*2, 0x0009) // NOP
	}
	m.CPU.Regs.PC = pc

	used := m.RunSlice(3 * cpuPeriodNs)
	if used < 3*cpuPeriodNs {
		t.Fatalf("RunSlice returned %d, want at least %d", used, 3*cpuPeriodNs)
	}
	if m.LastStopReason() != StopSliceDone {
		t.Fatalf("LastStopReason() = %v, want StopSliceDone", m.LastStopReason())
	}
}

// A fetch breakpoint stops RunSlice before the budget is exhausted (spec
// §4.3's breakpoint contract).
func TestRunSliceStopsOnBreakpoint(t *testing.T) {
	m := newTestMachine(t)
	const pc = mainRAMBase + 0x200
	for i := uint32(0); i < 8; i++ {
		writeOp(t, m, pc+i*2, 0x0009) // NOP
	}
	m.CPU.Regs.PC = pc
	m.SetBreakpoint(pc + 6) // fourth instruction

	used := m.RunSlice(1000 * cpuPeriodNs)
	if m.LastStopReason() != StopBreakpoint {
		t.Fatalf("LastStopReason() = %v, want StopBreakpoint", m.LastStopReason())
	}
	if used >= 1000*cpuPeriodNs {
		t.Fatalf("RunSlice ran to completion instead of stopping at the breakpoint")
	}
}

// Modules are registered in a fixed order so save-state chunks resync
// correctly on load (spec §6).
func TestModuleRegistrationOrder(t *testing.T) {
	m := newTestMachine(t)
	want := []string{"sh4", "asic", "tmu", "scif", "intc-regs", "mmu", "arm7"}
	if len(m.modules) != len(want) {
		t.Fatalf("len(modules) = %d, want %d", len(m.modules), len(want))
	}
	for i, mod := range m.modules {
		if mod.Name() != want[i] {
			t.Fatalf("modules[%d].Name() = %q, want %q", i, mod.Name(), want[i])
		}
	}
}

// SaveState/LoadState round-trips machine state byte-for-byte (spec §8's
// save-state round-trip property, spec §6's fixed-order framing).
func TestSaveLoadStateRoundTrip(t *testing.T) {
	m := newTestMachine(t)
	const pc = mainRAMBase + 0x300
	writeOp(t, m, pc, 0x0009) // NOP
	m.CPU.Regs.PC = pc
	m.CPU.Regs.R[3] = 0xCAFEBABE

	var buf bytes.Buffer
	if err := m.SaveState(&buf); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	saved := append([]byte(nil), buf.Bytes()...)

	m2, err := NewMachine()
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	if err := m2.LoadState(bytes.NewReader(saved)); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if m2.CPU.Regs.PC != pc {
		t.Fatalf("PC after load = %#x, want %#x", m2.CPU.Regs.PC, pc)
	}
	if m2.CPU.Regs.R[3] != 0xCAFEBABE {
		t.Fatalf("R3 after load = %#x, want 0xCAFEBABE", m2.CPU.Regs.R[3])
	}

	var buf2 bytes.Buffer
	if err := m2.SaveState(&buf2); err != nil {
		t.Fatalf("second SaveState: %v", err)
	}
	if !bytes.Equal(saved, buf2.Bytes()) {
		t.Fatalf("save-state round trip is not byte-identical")
	}
}

// LoadState rejects a buffer with the wrong magic or version rather than
// partially applying it (spec §6).
func TestLoadStateRejectsBadHeader(t *testing.T) {
	m := newTestMachine(t)
	bad := bytes.Repeat([]byte{0xFF}, 20)
	if err := m.LoadState(bytes.NewReader(bad)); err == nil {
		t.Fatalf("LoadState accepted a buffer with a bad magic/version header")
	}
}

// InterruptController.Pending resolves the highest-priority unmasked line;
// IRQ13 outranks IRQ11 and IRQ9 (core/intc.go's fixed literal priority
// table).
func TestInterruptControllerPriority(t *testing.T) {
	ic := NewInterruptController()
	ic.RaiseLine(asic.LineIRQ9)
	ic.RaiseLine(asic.LineIRQ13)

	intevt, ok := ic.Pending(0)
	if !ok {
		t.Fatalf("Pending(0) = false, want a pending interrupt")
	}
	if intevt != intevtIRQ13 {
		t.Fatalf("Pending returned %#x, want IRQ13's vector %#x (higher priority line should win)", intevt, intevtIRQ13)
	}

	ic.ClearLine(asic.LineIRQ13)
	intevt, ok = ic.Pending(0)
	if !ok || intevt != intevtIRQ9 {
		t.Fatalf("after clearing IRQ13, Pending = (%#x, %v), want (%#x, true)", intevt, ok, intevtIRQ9)
	}
}

// An imask at or above a line's priority level masks it (spec §4.3 step 1).
func TestInterruptControllerMasking(t *testing.T) {
	ic := NewInterruptController()
	ic.RaiseLine(asic.LineIRQ9)

	if _, ok := ic.Pending(levelIRQ9); ok {
		t.Fatalf("Pending(levelIRQ9) reported a pending interrupt that should be masked")
	}
	if _, ok := ic.Pending(levelIRQ9 - 1); !ok {
		t.Fatalf("Pending(levelIRQ9-1) reported no interrupt, want IRQ9 unmasked")
	}
}
