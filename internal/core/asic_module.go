package core

import "github.com/dreamon-emu/sh4core/internal/asic"

// asicModule adapts *asic.Bus to the Module contract. ASIC has no
// autonomous per-tick work of its own (every effect is driven by MMIO
// writes or DMA completion callbacks), so RunSlice is a no-op that
// consumes the full slice — G2's status timers read directly off the
// shared instruction counter instead of ticking here.
type asicModule struct{ bus *asic.Bus }

func newASICModule(bus *asic.Bus) *asicModule { return &asicModule{bus: bus} }

func (m *asicModule) Name() string             { return "asic" }
func (m *asicModule) Reset()                   { m.bus.Reset() }
func (m *asicModule) RunSlice(ns int64) int64   { return ns }
func (m *asicModule) Save() []byte              { return m.bus.Save() }
func (m *asicModule) Load(data []byte) error {
	m.bus.Load(data)
	return nil
}
