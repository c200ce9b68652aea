package translator

import "fmt"

// RecoveryError wraps an interpreter-reported error with the block and
// segment index that was executing when it occurred, letting a debugger
// front end show "fault inside translated block starting at X" instead
// of just the bare SH4 exception.
type RecoveryError struct {
	Block   *Block
	Segment int
	Err     error
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("translator: fault in block@%#08x segment %d: %v", e.Block.StartPC, e.Segment, e.Err)
}

func (e *RecoveryError) Unwrap() error { return e.Err }

func annotateRecovery(err error, block *Block, segmentIndex int) error {
	return &RecoveryError{Block: block, Segment: segmentIndex, Err: err}
}

// RecoverNativePC maps a raw native code address inside the arena back
// to the SH4 PC whose segment contains it, by linear scan over the
// block's segment table (spec §4.4's "frame-scan fallback"). This is the
// only recovery strategy wired up: native segments in this translator
// are restricted by construction to register-only transforms (see
// compiler.go's inlineOp) that can never themselves fault, so there is
// no hardware exception to unwind out of compiled code and no need for
// the heavier unwinder-table-based strategy real native JIT runtimes use
// to recover a PC from an arbitrary faulting instruction. If inline
// coverage ever grows to include memory operations, that unwinder-based
// path belongs here alongside this one, not in place of it.
func RecoverNativePC(block *Block, nativeAddr uintptr) (sh4PC uint32, ok bool) {
	for i, seg := range block.segments {
		if !seg.native {
			continue
		}
		if nativeAddr >= seg.base && nativeAddr < seg.base+uintptr(seg.length) {
			return block.recoverSH4PC(i), true
		}
	}
	return 0, false
}
