package core

import "github.com/dreamon-emu/sh4core/internal/sh4"

// mmuModule adapts *sh4.MMU to the Module contract, dumping the TLB
// separately from the register file (spec §6 names MMU as its own
// save-state chunk).
type mmuModule struct{ mmu *sh4.MMU }

func newMMUModule(mmu *sh4.MMU) *mmuModule { return &mmuModule{mmu: mmu} }

func (m *mmuModule) Name() string { return "mmu" }
func (m *mmuModule) Reset() {
	m.mmu.Flush()
	m.mmu.SetEnabled(false)
}
func (m *mmuModule) RunSlice(ns int64) int64 { return ns }
func (m *mmuModule) Save() []byte            { return m.mmu.Save() }
func (m *mmuModule) Load(data []byte) error {
	m.mmu.Load(data)
	return nil
}
