// Package sh4 implements the Hitachi SH4 register file, interpreter and
// exception sequencing used by the Dreamcast CPU core.
package sh4

import "encoding/binary"

// State tracks the CPU's overall run mode, set by SLEEP and cleared by an
// external wake event (interrupt, reset).
type State int

const (
	StateRunning State = iota
	StateSleep
	StateStandby
)

// SR bit positions used when exchanging r0..r7 with the banked set and when
// forcing privilege bits on exception entry.
const (
	srT    = 1 << 0
	srS    = 1 << 1
	srIMaskShift = 4
	srIMask = 0xF << srIMaskShift
	srQ    = 1 << 8
	srM    = 1 << 9
	srFD   = 1 << 15
	srBL   = 1 << 28
	srRB   = 1 << 29
	srMD   = 1 << 30
)

// Reset values reproduced literally from lxdream's sh4_init (original_source
// src/sh4/sh4core.c): P2 (uncached) reset vector, VBR zeroed, FPSCR with
// DN=1/RM=1, SR with MD|RB|BL set and IMASK=0xF.
const (
	ResetPC    = 0xA0000000
	ResetFPSCR = 0x00040001
	ResetSR    = 0x700000F0
)

// FPSCR bit layout.
const (
	fpscrRM    = 0x3
	fpscrDN    = 1 << 18
	fpscrPR    = 1 << 19
	fpscrSZ    = 1 << 20
	fpscrFR    = 1 << 21
	fpscrFrMask = fpscrFR
)

// Registers is the single process-wide SH4 register file. Every read/write
// the interpreter or translated code performs against SH4-visible state goes
// through this struct; the translator addresses its fields by constant byte
// offset from a reserved host "machine context" register (see
// internal/translator).
type Registers struct {
	R     [16]uint32
	RBank [8]uint32 // alternate bank for r0..r7

	// Flag cache: authoritative for SR's T/S/M/Q bits (spec §3 invariant).
	T, S, M, Q bool

	sr   uint32 // holds only the non-flag-cache bits; flags computed on read
	GBR  uint32
	VBR  uint32
	SSR  uint32
	SPC  uint32
	SGR  uint32
	DBR  uint32
	PR   uint32
	MACH uint32
	MACL uint32

	EXPEVT uint32
	INTEVT uint32

	FPSCR uint32
	FPUL  uint32
	FR    [16]uint32 // bank 0 of the float register file
	XF    [16]uint32 // bank 1

	PC    uint32
	NewPC uint32

	InDelaySlot bool
	SliceCycle  int64

	RunState State

	// EventPending/EventTypes model the asynchronous wake sources (timer
	// expiry, interrupt request) consulted at the top of each run_slice
	// iteration (spec §4.3 run loop step 1).
	EventPending int64
	EventTypes   uint32
}

// Event type bits for EventTypes.
const (
	PendingEvent = 1 << 0
	PendingIRQ   = 1 << 1
)

// NewRegisters returns a register file in its post-reset state.
func NewRegisters() *Registers {
	r := &Registers{}
	r.Reset()
	return r
}

// Reset restores every register to its post-reset value (spec §3).
func (r *Registers) Reset() {
	*r = Registers{}
	r.PC = ResetPC
	r.NewPC = ResetPC + 2
	r.FPSCR = ResetFPSCR
	r.RunState = StateRunning
	r.writeSR(ResetSR)
}

// ReadSR reconstructs the full 32-bit SR from the control bits plus the
// authoritative flag cache (spec §3 invariant, tested by TestFlagSRCoherence).
func (r *Registers) ReadSR() uint32 {
	v := r.sr
	if r.T {
		v |= srT
	}
	if r.S {
		v |= srS
	}
	if r.M {
		v |= srM
	}
	if r.Q {
		v |= srQ
	}
	return v
}

// WriteSR installs a full 32-bit SR value, updating the flag cache and
// performing a register bank swap if RB toggled.
func (r *Registers) WriteSR(v uint32) {
	wasRB := r.sr&srRB != 0
	r.writeSR(v)
	nowRB := r.sr&srRB != 0
	if wasRB != nowRB {
		r.swapBank()
	}
}

func (r *Registers) writeSR(v uint32) {
	r.T = v&srT != 0
	r.S = v&srS != 0
	r.M = v&srM != 0
	r.Q = v&srQ != 0
	r.sr = v &^ (srT | srS | srM | srQ)
}

// swapBank exchanges r0..r7 with r_bank0..r_bank7 in place, leaving r8..r15
// untouched (spec §8 bank-swap property).
func (r *Registers) swapBank() {
	for i := 0; i < 8; i++ {
		r.R[i], r.RBank[i] = r.RBank[i], r.R[i]
	}
}

// Privileged reports whether the CPU is currently in privileged (MD=1) mode.
func (r *Registers) Privileged() bool { return r.sr&srMD != 0 }

// BankedRB reports the current state of SR.RB without reconstructing SR.
func (r *Registers) BankedRB() bool { return r.sr&srRB != 0 }

// IMask returns the 4-bit interrupt priority mask (SR.IMASK).
func (r *Registers) IMask() uint32 { return (r.sr & srIMask) >> srIMaskShift }

// FPUDisabled reports SR.FD.
func (r *Registers) FPUDisabled() bool { return r.sr&srFD != 0 }

// DoublePrecision reports FPSCR.PR.
func (r *Registers) DoublePrecision() bool { return r.FPSCR&fpscrPR != 0 }

// SizeDouble reports FPSCR.SZ (FMOV transfer size).
func (r *Registers) SizeDouble() bool { return r.FPSCR&fpscrSZ != 0 }

// FRBank reports FPSCR.FR (selects which bank FR(i) names).
func (r *Registers) FRBank() bool { return r.FPSCR&fpscrFR != 0 }

// bankFR returns the float-register bank currently addressed as "FR" (i.e.
// the one FR(i) resolves against); the other bank is addressed as XF(i).
func (r *Registers) bankFR() *[16]uint32 {
	if r.FRBank() {
		return &r.XF
	}
	return &r.FR
}

func (r *Registers) bankXF() *[16]uint32 {
	if r.FRBank() {
		return &r.FR
	}
	return &r.XF
}

// GetFR reads FR(i) honoring FPSCR.FR bank selection.
func (r *Registers) GetFR(i int) uint32 { return r.bankFR()[i&0xF] }

// SetFR writes FR(i) honoring FPSCR.FR bank selection.
func (r *Registers) SetFR(i int, v uint32) { r.bankFR()[i&0xF] = v }

// GetXF reads XF(i) honoring FPSCR.FR bank selection.
func (r *Registers) GetXF(i int) uint32 { return r.bankXF()[i&0xF] }

// SetXF writes XF(i) honoring FPSCR.FR bank selection.
func (r *Registers) SetXF(i int, v uint32) { r.bankXF()[i&0xF] = v }

// GetDR reads the 64-bit double formed by the pair (FR(i), FR(i|1)),
// big-endian within the pair as SH4 requires for paired-single/double data.
func (r *Registers) GetDR(i int) uint64 {
	bank := r.bankFR()
	hi := bank[i&0xE]
	lo := bank[(i&0xE)|1]
	return uint64(hi)<<32 | uint64(lo)
}

// SetDR writes a 64-bit double into the (FR(i), FR(i|1)) pair.
func (r *Registers) SetDR(i int, v uint64) {
	bank := r.bankFR()
	bank[i&0xE] = uint32(v >> 32)
	bank[(i&0xE)|1] = uint32(v)
}

// Mac returns the combined 64-bit MACH:MACL accumulator.
func (r *Registers) Mac() int64 {
	return int64(uint64(r.MACH)<<32 | uint64(r.MACL))
}

// SetMac splits a 64-bit accumulator value back into MACH/MACL.
func (r *Registers) SetMac(v int64) {
	u := uint64(v)
	r.MACH = uint32(u >> 32)
	r.MACL = uint32(u)
}

// Snapshot is the raw little-endian dump written by save-state (spec §6):
// field order must never change once shipped, since the reader has no chunk
// framing to resynchronize with.
type Snapshot [sh4SnapshotSize]byte

const sh4SnapshotSize = 16*4 /* R */ + 8*4 /* RBank */ + 10*4 /* SR..MACL */ +
	2*4 /* EXPEVT, INTEVT */ + 2*4 /* FPSCR, FPUL */ + 16*4 /* FR */ + 16*4 /* XF */ + 2*4 /* PC, NewPC */ +
	1 /* InDelaySlot */ + 8 /* SliceCycle */ + 4 /* RunState */ +
	8 /* EventPending */ + 4 /* EventTypes */

// Save serializes the register file in the exact field order it is declared,
// matching §6's "raw little-endian dump of that module's state structure".
func (r *Registers) Save() Snapshot {
	var buf Snapshot
	o := 0
	putU32s := func(vals ...uint32) {
		for _, v := range vals {
			binary.LittleEndian.PutUint32(buf[o:], v)
			o += 4
		}
	}
	putU32s(r.R[:]...)
	putU32s(r.RBank[:]...)
	putU32s(r.ReadSR(), r.GBR, r.VBR, r.SSR, r.SPC, r.SGR, r.DBR, r.PR, r.MACH, r.MACL)
	putU32s(r.EXPEVT, r.INTEVT)
	putU32s(r.FPSCR, r.FPUL)
	putU32s(r.FR[:]...)
	putU32s(r.XF[:]...)
	putU32s(r.PC, r.NewPC)
	if r.InDelaySlot {
		buf[o] = 1
	}
	o++
	binary.LittleEndian.PutUint64(buf[o:], uint64(r.SliceCycle))
	o += 8
	putU32s(uint32(r.RunState))
	binary.LittleEndian.PutUint64(buf[o:], uint64(r.EventPending))
	o += 8
	putU32s(r.EventTypes)
	return buf
}

// Load restores state written by Save. Save followed by Load followed by
// Save reproduces identical bytes (spec §8 round-trip property).
func (r *Registers) Load(buf Snapshot) {
	o := 0
	getU32 := func() uint32 {
		v := binary.LittleEndian.Uint32(buf[o:])
		o += 4
		return v
	}
	for i := range r.R {
		r.R[i] = getU32()
	}
	for i := range r.RBank {
		r.RBank[i] = getU32()
	}
	r.writeSR(getU32())
	r.GBR = getU32()
	r.VBR = getU32()
	r.SSR = getU32()
	r.SPC = getU32()
	r.SGR = getU32()
	r.DBR = getU32()
	r.PR = getU32()
	r.MACH = getU32()
	r.MACL = getU32()
	r.EXPEVT = getU32()
	r.INTEVT = getU32()
	r.FPSCR = getU32()
	r.FPUL = getU32()
	for i := range r.FR {
		r.FR[i] = getU32()
	}
	for i := range r.XF {
		r.XF[i] = getU32()
	}
	r.PC = getU32()
	r.NewPC = getU32()
	r.InDelaySlot = buf[o] != 0
	o++
	r.SliceCycle = int64(binary.LittleEndian.Uint64(buf[o:]))
	o += 8
	r.RunState = State(getU32())
	r.EventPending = int64(binary.LittleEndian.Uint64(buf[o:]))
	o += 8
	r.EventTypes = getU32()
}
