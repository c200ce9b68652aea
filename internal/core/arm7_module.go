package core

import "github.com/dreamon-emu/sh4core/internal/arm7"

// arm7Module adapts *arm7.Window to the Module contract. Full ARM7
// instruction execution is out of scope (spec §4.7 names this a memory
// window, not a CPU); RunSlice consumes the full slice with no stepping.
type arm7Module struct{ win *arm7.Window }

func newARM7Module(win *arm7.Window) *arm7Module { return &arm7Module{win: win} }

func (m *arm7Module) Name() string           { return "arm7" }
func (m *arm7Module) Reset()                 { m.win.Reset() }
func (m *arm7Module) RunSlice(ns int64) int64 { return ns }
func (m *arm7Module) Save() []byte            { return m.win.Save() }
func (m *arm7Module) Load(data []byte) error {
	m.win.Load(data)
	return nil
}
