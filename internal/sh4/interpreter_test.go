package sh4

import (
	"math"
	"testing"

	"github.com/dreamon-emu/sh4core/internal/memmap"
)

func newTestCore(t *testing.T) *Core {
	t.Helper()
	mem := memmap.NewBus()
	mem.MapRegion(memmap.NewRAM("ram", 0x0C000000, 0x00100000))
	c := NewCore(mem)
	c.Reset()
	return c
}

// writeOp places a 16-bit instruction word at a P1 (cached) address.
func writeOp(t *testing.T, c *Core, vaddr uint32, op uint16) {
	t.Helper()
	if err := c.writeWord(vaddr, op); err != nil {
		t.Fatalf("writeWord(%#08x): %v", vaddr, err)
	}
}

// Scenario 1 (spec §8): ADD r2,r1 then TST r1,r1.
func TestAddThenTst(t *testing.T) {
	c := newTestCore(t)
	r := c.Regs
	r.R[1] = 0x7FFFFFFE
	r.R[2] = 3
	r.T = true

	const addR2R1 = 0x312C // ADD Rm=2,Rn=1
	if _, _, _, err := c.execute(addR2R1, false); err != nil {
		t.Fatalf("ADD: %v", err)
	}
	if r.R[1] != 0x80000001 {
		t.Fatalf("r1 = %#08x, want 0x80000001", r.R[1])
	}
	if !r.T {
		t.Fatalf("T flag changed by ADD, want unchanged (true)")
	}

	const tstR1R1 = 0x2118 // TST Rm=1,Rn=1
	if _, _, _, err := c.execute(tstR1R1, false); err != nil {
		t.Fatalf("TST: %v", err)
	}
	if r.T {
		t.Fatalf("T = true after TST r1,r1 with r1 != 0, want false")
	}
}

// Scenario 2 (spec §8): DIV0S/DIV1 unsigned-looking division via the
// non-restoring step algorithm, 0x1234 / 0x17 = quotient 0xCB.
func TestDiv0sDiv1Quotient(t *testing.T) {
	c := newTestCore(t)
	r := c.Regs
	r.R[0] = 0x00001234
	r.R[1] = 0x00000017

	const div0sR1R0 = 0x2017 // DIV0S Rm=1,Rn=0
	if _, _, _, err := c.execute(div0sR1R0, false); err != nil {
		t.Fatalf("DIV0S: %v", err)
	}

	const div1R1R0 = 0x3014 // DIV1 Rm=1,Rn=0
	for i := 0; i < 32; i++ {
		if _, _, _, err := c.execute(div1R1R0, false); err != nil {
			t.Fatalf("DIV1 iteration %d: %v", i, err)
		}
	}

	const rotclR0 = 0x4024 // ROTCL Rn=0
	if _, _, _, err := c.execute(rotclR0, false); err != nil {
		t.Fatalf("ROTCL: %v", err)
	}

	if got := r.R[0] & 0xFFFF; got != 0x0CB {
		t.Fatalf("quotient = %#04x, want 0x0CB", got)
	}
}

// Scenario 3 (spec §8): BSRF r3 at pc=0x8C001000 with r3=0x20 must run the
// delay-slot instruction before landing at pc+4+r3, and PR must hold the
// address of the instruction after the delay slot.
func TestBsrfDelaySlot(t *testing.T) {
	c := newTestCore(t)
	r := c.Regs
	const startPC = 0x8C001000
	r.PC = startPC
	r.NewPC = startPC + 2
	r.R[3] = 0x20
	r.R[4] = 0

	const bsrfR3 = 0x0003 | (3 << 8) // BSRF Rn=3
	writeOp(t, c, startPC, bsrfR3)

	const movImm1R4 = 0xE401 // MOV #1,R4
	writeOp(t, c, startPC+2, movImm1R4)

	if _, err := c.Step(); err != nil {
		t.Fatalf("BSRF step: %v", err)
	}
	if !r.InDelaySlot {
		t.Fatalf("core not in delay slot after BSRF")
	}
	if r.PC != startPC+2 {
		t.Fatalf("pc after BSRF = %#08x, want %#08x (delay slot)", r.PC, startPC+2)
	}
	if r.PR != startPC+4 {
		t.Fatalf("PR = %#08x, want %#08x", r.PR, startPC+4)
	}

	if _, err := c.Step(); err != nil {
		t.Fatalf("delay-slot step: %v", err)
	}
	if r.R[4] != 1 {
		t.Fatalf("delay-slot instruction did not execute: r4 = %d, want 1", r.R[4])
	}
	if r.PC != startPC+4+0x20 {
		t.Fatalf("pc after delay slot = %#08x, want %#08x", r.PC, startPC+4+0x20)
	}
}

// Scenario 4 (spec §8): LDC r0,SR from non-privileged state raises
// illegal-instruction, vectoring to VBR+0x100 with EXPEVT=0x180.
func TestLdcSrPrivilegeException(t *testing.T) {
	c := newTestCore(t)
	r := c.Regs
	const vbr = 0x8C010000
	r.VBR = vbr
	r.WriteSR(r.ReadSR() &^ (1 << 30)) // clear MD: drop to user mode

	const startPC = 0x8C002000
	r.PC = startPC
	r.NewPC = startPC + 2

	const ldcR0SR = 0x400E // LDC Rm=0,SR
	writeOp(t, c, startPC, ldcR0SR)

	if _, err := c.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if r.SPC != startPC {
		t.Fatalf("SPC = %#08x, want %#08x", r.SPC, startPC)
	}
	if r.PC != vbr+0x100 {
		t.Fatalf("pc = %#08x, want VBR+0x100 = %#08x", r.PC, vbr+0x100)
	}
	if r.EXPEVT != 0x180 {
		t.Fatalf("EXPEVT = %#x, want 0x180", r.EXPEVT)
	}
}

// spec §8 "flag<->SR coherence": ReadSR/WriteSR round-trip the T/S/M/Q
// flag cache losslessly regardless of which bits are set.
func TestFlagSRCoherence(t *testing.T) {
	c := newTestCore(t)
	r := c.Regs
	for _, bits := range []uint32{0, srT, srS, srM, srQ, srT | srS | srM | srQ} {
		base := r.ReadSR() &^ (srT | srS | srM | srQ)
		r.WriteSR(base | bits)
		got := r.ReadSR() & (srT | srS | srM | srQ)
		if got != bits {
			t.Fatalf("SR flag bits = %#x after WriteSR(%#x), want %#x", got, bits, bits)
		}
	}
}

// spec §8 "bank swap": toggling SR.RB exchanges r0..r7 with the bank and
// leaves r8..r15 untouched.
func TestBankSwap(t *testing.T) {
	c := newTestCore(t)
	r := c.Regs
	for i := 0; i < 16; i++ {
		r.R[i] = uint32(0x1000 + i)
	}
	for i := 0; i < 8; i++ {
		r.RBank[i] = uint32(0x2000 + i)
	}

	before := r.R
	sr := r.ReadSR()
	r.WriteSR(sr ^ srRB)

	for i := 0; i < 8; i++ {
		if r.R[i] != uint32(0x2000+i) {
			t.Fatalf("r%d = %#x after bank swap, want %#x", i, r.R[i], 0x2000+i)
		}
	}
	for i := 8; i < 16; i++ {
		if r.R[i] != before[i] {
			t.Fatalf("r%d changed across bank swap: %#x -> %#x", i, before[i], r.R[i])
		}
	}

	r.WriteSR(r.ReadSR() ^ srRB)
	for i := 0; i < 16; i++ {
		if r.R[i] != before[i] {
			t.Fatalf("r%d not restored after swapping back: %#x, want %#x", i, r.R[i], before[i])
		}
	}
}

// PC monotonicity: a straight-line run of non-branching instructions always
// advances PC by exactly 2 per step.
func TestPCMonotonicity(t *testing.T) {
	c := newTestCore(t)
	const base = 0x8C003000
	c.Regs.PC = base
	c.Regs.NewPC = base + 2
	for i := uint32(0); i < 8; i++ {
		writeOp(t, c, base+i*2, 0x0009) // NOP
	}
	for i := uint32(0); i < 8; i++ {
		want := base + i*2
		if c.Regs.PC != want {
			t.Fatalf("step %d: pc = %#08x, want %#08x", i, c.Regs.PC, want)
		}
		if _, err := c.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	if c.Regs.PC != base+16 {
		t.Fatalf("final pc = %#08x, want %#08x", c.Regs.PC, base+16)
	}
}

// MAC.L saturates to the 48-bit signed bound when SR.S is set, and wraps
// modulo 2^64 when it is clear (spec §8 "MAC saturation").
func TestMacLSaturation(t *testing.T) {
	c := newTestCore(t)
	r := c.Regs
	r.R[0], r.R[1] = 0x0C000000, 0x0C000010 // @Rm+, @Rn+ source addresses
	if err := c.writeLong(r.R[1], uint32(int64(-1)&0xFFFFFFFF)); err != nil { // b = -1
		t.Fatal(err)
	}
	if err := c.writeLong(r.R[0], uint32(int64(math.MinInt32)&0xFFFFFFFF)); err != nil { // a = INT32_MIN
		t.Fatal(err)
	}
	r.S = true
	r.MACH, r.MACL = uint32(uint64(macMax48)>>32), uint32(macMax48&0xFFFFFFFF)

	// a*b = -INT32_MIN = 0x80000000, a huge positive product added on top
	// of an already-maxed accumulator must clamp, not wrap.
	if err := c.macL(1, 0); err != nil {
		t.Fatal(err)
	}
	got := int64(uint64(r.MACH)<<32 | uint64(r.MACL))
	if got != macMax48 {
		t.Fatalf("MAC = %#x, want saturated bound %#x", got, macMax48)
	}

	// With SR.S clear the same setup must wrap instead of clamping.
	r.R[0], r.R[1] = 0x0C000000, 0x0C000010
	r.S = false
	r.MACH, r.MACL = uint32(uint64(macMax48)>>32), uint32(macMax48&0xFFFFFFFF)
	if err := c.macL(1, 0); err != nil {
		t.Fatal(err)
	}
	got = int64(uint64(r.MACH)<<32 | uint64(r.MACL))
	if got == macMax48 {
		t.Fatalf("MAC did not wrap with SR.S clear, stuck at saturated bound")
	}
}

// STC Rm_BANK,Rn / LDC Rm,Rn_BANK round-trip the banked register file
// without disturbing the selector's own destination/source register.
func TestStcLdcBankForms(t *testing.T) {
	c := newTestCore(t)
	r := c.Regs
	r.RBank[3] = 0xCAFEBABE

	const stcR3BankR5 = 0x0002 | (5 << 8) | (0xB << 4) // STC R3_BANK,R5 (sel=0xB -> bank 3)
	if _, _, _, err := c.execute(stcR3BankR5, false); err != nil {
		t.Fatalf("STC bank: %v", err)
	}
	if r.R[5] != 0xCAFEBABE {
		t.Fatalf("r5 = %#08x after STC R3_BANK,R5, want 0xCAFEBABE", r.R[5])
	}

	r.R[6] = 0x11223344
	const ldcR6BankR3 = 0x400E | (6 << 8) | (0xB << 4) // LDC R6,R3_BANK (sel=0xB)
	if _, _, _, err := c.execute(ldcR6BankR3, false); err != nil {
		t.Fatalf("LDC bank: %v", err)
	}
	if r.RBank[3] != 0x11223344 {
		t.Fatalf("RBank[3] = %#08x after LDC R6,R3_BANK, want 0x11223344", r.RBank[3])
	}
}

// SHAD saturates to an all-ones/all-zeros fill once the shift magnitude
// reaches 32, and otherwise shifts by the low-5-bit magnitude with
// direction given by the sign of the shift register.
func TestShadBoundary(t *testing.T) {
	c := newTestCore(t)
	r := c.Regs

	r.R[0] = 0x80000000
	r.R[1] = uint32(int64(-32) & 0xFFFFFFFF) // magnitude 32, right shift: saturate sign-fill
	const shadR1R0 = 0x400C | (0 << 8) | (1 << 4)
	if _, _, _, err := c.execute(shadR1R0, false); err != nil {
		t.Fatal(err)
	}
	if r.R[0] != 0xFFFFFFFF {
		t.Fatalf("SHAD right-saturate = %#08x, want 0xFFFFFFFF", r.R[0])
	}

	r.R[0] = 1
	r.R[1] = 32 // magnitude 32, left shift: saturate to zero
	if _, _, _, err := c.execute(shadR1R0, false); err != nil {
		t.Fatal(err)
	}
	if r.R[0] != 0 {
		t.Fatalf("SHAD left-saturate = %#08x, want 0", r.R[0])
	}
}
