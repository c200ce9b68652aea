package core

import "github.com/dreamon-emu/sh4core/internal/memmap"

// shadowPeripheral is a minimal Module for an on-chip SH4 peripheral this
// core does not model behaviorally (TMU, SCIF, INTC's own priority
// registers) but must still expose as an addressable, save-stateable MMIO
// window per spec §6's external interfaces list. It is exactly spec
// §4.2's baseline MMIO contract with no read/write callbacks at all:
// "Reads not explicitly handled return the shadow value; writes update
// it." These three peripherals sit outside the core's component budget
// (§2's table), so no timer tick, baud-rate, or priority-register
// side-effect is implemented.
type shadowPeripheral struct {
	name   string
	shadow []byte
}

func newShadowPeripheral(name string, base, size uint32, mem *memmap.Bus) *shadowPeripheral {
	s := &shadowPeripheral{name: name, shadow: make([]byte, size)}
	mem.MapRegion(memmap.NewMMIO(name, base, base+size-1, s.readByte, s.writeByte))
	return s
}

func (s *shadowPeripheral) readByte(offset uint32) uint8 { return s.shadow[offset] }
func (s *shadowPeripheral) writeByte(offset uint32, v uint8) { s.shadow[offset] = v }

func (s *shadowPeripheral) Name() string { return s.name }
func (s *shadowPeripheral) Reset() {
	for i := range s.shadow {
		s.shadow[i] = 0
	}
}
func (s *shadowPeripheral) RunSlice(ns int64) int64 { return ns }
func (s *shadowPeripheral) Save() []byte {
	out := make([]byte, len(s.shadow))
	copy(out, s.shadow)
	return out
}
func (s *shadowPeripheral) Load(data []byte) error {
	copy(s.shadow, data)
	return nil
}
