package translator

import (
	"unsafe"

	"github.com/dreamon-emu/sh4core/internal/sh4"
)

// runBlock replays a compiled Block's segments against core: native
// segments are dispatched through callNative (the register-convention
// trampoline in call_<arch>.s), and interpreted segments fall through to
// the already-correct single-step interpreter. A segment boundary is
// always an instruction boundary, so an exception raised by Core.Step
// surfaces exactly as it would running the interpreter alone; runBlock
// does no exception handling of its own, only PC bookkeeping for the
// native path (see recovery.go for why that split needs no unwinder).
func runBlock(core *sh4.Core, block *Block) error {
	for i, seg := range block.segments {
		if core.Regs.PC != seg.startPC {
			return nil // control left the block (branch, delay slot or exception)
		}
		if seg.native && !core.Regs.InDelaySlot {
			callNative(seg.base, uintptr(unsafe.Pointer(core.Regs)))
			core.Regs.PC = seg.endPC
			continue
		}
		if _, err := core.Step(); err != nil {
			return annotateRecovery(err, block, i)
		}
	}
	return nil
}
