package sh4

import "fmt"

// Kind enumerates the CPU-exception taxonomy from spec §7. Callers
// distinguish by Kind, never by the raw vector/event numbers.
type Kind int

const (
	KindAddressErrorRead Kind = iota
	KindAddressErrorWrite
	KindIllegalInstruction
	KindSlotIllegal
	KindFPUDisabled
	KindSlotFPUDisabled
	KindTLBMiss
	KindTLBProtection
	KindTLBModification
	KindTrap
)

func (k Kind) String() string {
	switch k {
	case KindAddressErrorRead:
		return "address-error-read"
	case KindAddressErrorWrite:
		return "address-error-write"
	case KindIllegalInstruction:
		return "illegal-instruction"
	case KindSlotIllegal:
		return "slot-illegal"
	case KindFPUDisabled:
		return "fpu-disabled"
	case KindSlotFPUDisabled:
		return "slot-fpu-disabled"
	case KindTLBMiss:
		return "tlb-miss"
	case KindTLBProtection:
		return "tlb-protection"
	case KindTLBModification:
		return "tlb-modification"
	case KindTrap:
		return "trap"
	default:
		return "unknown-exception"
	}
}

// Exception is a guest-visible SH4 fault (spec §7's "CPU exception" kind).
// It is never propagated as a panic across the translator/interpreter
// boundary; Raise reifies it directly as a register-file state transition.
type Exception struct {
	Kind    Kind
	Address uint32 // faulting address, where applicable
	TRA     uint32 // TRAPA immediate << 2, only meaningful for KindTrap
}

func (e *Exception) Error() string {
	return fmt.Sprintf("sh4 exception %s at pc/addr=%#08x", e.Kind, e.Address)
}

// Exception vector offsets from VBR (spec §4.3).
const (
	vecException = 0x100
	vecTLBMiss   = 0x400
	vecInterrupt = 0x600
)

// EXPEVT codes (a subset sufficient to distinguish every Kind; values match
// the real SH4 hardware encoding used by lxdream).
const (
	expevtAddressErrorRead  = 0x0E0
	expevtAddressErrorWrite = 0x100
	expevtIllegalInstr      = 0x180
	expevtSlotIllegal       = 0x1A0
	expevtFPUDisabled       = 0x800
	expevtSlotFPUDisabled   = 0x820
	expevtTLBMissRead       = 0x040
	expevtTLBMissWrite      = 0x060
	expevtTLBProtRead       = 0x0A0
	expevtTLBProtWrite      = 0x0C0
	expevtTLBMod            = 0x080
	expevtTrap              = 0x160
)

func (e *Exception) expevt() uint32 {
	switch e.Kind {
	case KindAddressErrorRead:
		return expevtAddressErrorRead
	case KindAddressErrorWrite:
		return expevtAddressErrorWrite
	case KindIllegalInstruction:
		return expevtIllegalInstr
	case KindSlotIllegal:
		return expevtSlotIllegal
	case KindFPUDisabled:
		return expevtFPUDisabled
	case KindSlotFPUDisabled:
		return expevtSlotFPUDisabled
	case KindTLBMiss:
		return expevtTLBMissRead
	case KindTLBProtection:
		return expevtTLBProtRead
	case KindTLBModification:
		return expevtTLBMod
	case KindTrap:
		return expevtTrap
	default:
		return expevtIllegalInstr
	}
}

func (e *Exception) vector() uint32 {
	if e.Kind == KindTLBMiss {
		return vecTLBMiss
	}
	return vecException
}

// FatalError is an Integrity-fatal condition (spec §7): VBR uninitialized
// while raising, corrupt save-state, instruction fetch reaching an I/O
// region. No recovery is attempted; the machine halts.
type FatalError struct {
	Reason string
	PC     uint32
}

func (f *FatalError) Error() string {
	return fmt.Sprintf("%08X: %s, halting", f.PC, f.Reason)
}

// Raise performs the general SH4 exception-entry procedure (spec §4.3):
// save PC→SPC, SR→SSR, R15→SGR, set EXPEVT, force SR bits MD|BL|RB, jump to
// VBR+offset. If the faulting instruction was in a delay slot, SPC is
// adjusted back by 2 so the recovered PC points at the branch, not the slot.
//
// A VBR of zero while raising is fatal (lxdream sh4core.c's RAISE_EXCEPTION
// macro halts rather than vectoring through address zero).
func (r *Registers) Raise(exc *Exception) error {
	if r.VBR == 0 {
		return &FatalError{Reason: fmt.Sprintf("VBR not initialized while raising exception %#x", exc.expevt()), PC: r.PC}
	}
	r.SPC = r.PC
	r.SSR = r.ReadSR()
	r.SGR = r.R[15]
	if r.InDelaySlot {
		r.InDelaySlot = false
		r.SPC -= 2
	}
	r.EXPEVT = exc.expevt()
	r.PC = r.VBR + exc.vector()
	r.NewPC = r.PC + 2
	r.WriteSR(r.SSR | srMD | srBL | srRB)
	return nil
}

// RaiseInterrupt performs the exception-entry procedure for an externally
// delivered interrupt (vector 0x600, INTEVT rather than EXPEVT).
func (r *Registers) RaiseInterrupt(intevt uint32) error {
	if r.VBR == 0 {
		return &FatalError{Reason: fmt.Sprintf("VBR not initialized while raising interrupt %#x", intevt), PC: r.PC}
	}
	r.SPC = r.PC
	r.SSR = r.ReadSR()
	r.SGR = r.R[15]
	if r.InDelaySlot {
		r.InDelaySlot = false
		r.SPC -= 2
	}
	r.INTEVT = intevt
	r.PC = r.VBR + vecInterrupt
	r.NewPC = r.PC + 2
	r.WriteSR(r.SSR | srMD | srBL | srRB)
	return nil
}
