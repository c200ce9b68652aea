package sh4

import "github.com/dreamon-emu/sh4core/internal/memmap"

// mmuTranslatorAdapter lets *MMU satisfy memmap.Translator without the
// memmap package importing internal/sh4 (kept loosely coupled, per the
// teacher's habit of small single-purpose adapter types, e.g.
// DebuggableCPU in debug_interface.go).
type mmuTranslatorAdapter struct{ mmu *MMU }

func (a mmuTranslatorAdapter) VMAToPhysRead(addr uint32, priv bool) (uint32, bool) {
	phys, exc := a.mmu.VMAToPhysRead(addr, priv)
	return phys, exc == nil
}

func (a mmuTranslatorAdapter) VMAToPhysWrite(addr uint32, priv bool) (uint32, bool) {
	phys, exc := a.mmu.VMAToPhysWrite(addr, priv)
	return phys, exc == nil
}

// mmuApplies reports whether address translation is consulted for a given
// virtual address: P1 (0x80..0x9F) and P2 (0xA0..0xBF) are always direct,
// P4 (0xE0..0xFF, including the store queue sub-range) bypasses the TLB,
// and P0/U0/P3 go through the TLB only when the MMU is enabled.
func mmuApplies(addr uint32, mmuEnabled bool) bool {
	if !mmuEnabled {
		return false
	}
	nibble := addr >> 28
	switch {
	case nibble <= 0x7: // P0/U0
		return true
	case nibble == 0x8 || nibble == 0x9: // P1
		return false
	case nibble == 0xA || nibble == 0xB: // P2
		return false
	case nibble == 0xC || nibble == 0xD: // P3
		return true
	default: // P4 (0xE0000000 and up): store queues + control regs, never translated
		return false
	}
}

// faultFromMemmap converts a memmap-level error into an sh4.Exception/
// FatalError, keeping the two packages decoupled (memmap has no notion of
// EXPEVT/vector numbers).
func faultFromMemmap(err error, write bool) error {
	switch e := err.(type) {
	case *memmap.Fault:
		k := KindAddressErrorRead
		if e.Kind == memmap.FaultAddressErrorWrite {
			k = KindAddressErrorWrite
		}
		return &Exception{Kind: k, Address: e.Address}
	case *memmap.MMUMissError:
		return &Exception{Kind: KindTLBMiss, Address: e.Address}
	default:
		return err
	}
}

// ReadByte/WriteByte.../ReadLong etc. are the interpreter's memory access
// entry points: they resolve the mmuOn flag from the address class, call
// into the bus, and translate bus-level errors into sh4.Exception values
// the caller can feed straight into Registers.Raise.

func (c *Core) readByte(addr uint32) (uint8, error) {
	v, err := c.Bus.ReadByte(addr, mmuApplies(addr, c.MMU.Enabled()))
	if err != nil {
		return 0, faultFromMemmap(err, false)
	}
	return v, nil
}

func (c *Core) writeByte(addr uint32, v uint8) error {
	err := c.Bus.WriteByte(addr, v, mmuApplies(addr, c.MMU.Enabled()))
	if err != nil {
		return faultFromMemmap(err, true)
	}
	return nil
}

func (c *Core) readWord(addr uint32) (uint16, error) {
	v, err := c.Bus.ReadWord(addr, mmuApplies(addr, c.MMU.Enabled()))
	if err != nil {
		return 0, faultFromMemmap(err, false)
	}
	return v, nil
}

func (c *Core) writeWord(addr uint32, v uint16) error {
	err := c.Bus.WriteWord(addr, v, mmuApplies(addr, c.MMU.Enabled()))
	if err != nil {
		return faultFromMemmap(err, true)
	}
	return nil
}

func (c *Core) readLong(addr uint32) (uint32, error) {
	v, err := c.Bus.ReadLong(addr, mmuApplies(addr, c.MMU.Enabled()))
	if err != nil {
		return 0, faultFromMemmap(err, false)
	}
	return v, nil
}

func (c *Core) writeLong(addr uint32, v uint32) error {
	err := c.Bus.WriteLong(addr, v, mmuApplies(addr, c.MMU.Enabled()))
	if err != nil {
		return faultFromMemmap(err, true)
	}
	return nil
}
