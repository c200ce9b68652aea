//go:build amd64

package translator

import (
	"reflect"

	"github.com/dreamon-emu/sh4core/internal/sh4"
)

// amd64Backend emits System V AMD64 machine code directly into a byte
// slice, the same low-level style as the pack's only real native-code
// emitter (tinyrange-rtg's CodeGen: emitByte/emitBytes/emitU32 plus named
// mov/add/xor helpers). call_amd64.s loads *sh4.Registers into RDI before
// jumping to the emitted code; RAX is the scratch accumulator and RCX a
// secondary operand register for EmitAddRegReg.
type amd64Backend struct {
	buf []byte
}

func newHostBackend() HostBackend { return &amd64Backend{} }

func (g *amd64Backend) Reset()        { g.buf = g.buf[:0] }
func (g *amd64Backend) Bytes() []byte { return g.buf }

func (g *amd64Backend) emitByte(b byte)      { g.buf = append(g.buf, b) }
func (g *amd64Backend) emitBytes(bs ...byte) { g.buf = append(g.buf, bs...) }
func (g *amd64Backend) emitU32(v uint32) {
	g.emitBytes(byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// rFieldOffset resolves the byte offset of sh4.Registers.R[i] via
// reflection once at package init, rather than a hand-maintained
// constant that would silently drift if registers.go's field order ever
// changes.
var rFieldOffset = func() uint32 {
	f, ok := reflect.TypeOf(sh4.Registers{}).FieldByName("R")
	if !ok {
		panic("translator: sh4.Registers has no R field")
	}
	return uint32(f.Offset)
}()

func regOffset(i int) uint32 { return rFieldOffset + uint32(i)*4 }

// EmitLoadReg moves SH4 GPR i into EAX: mov eax, [rdi+off].
func (g *amd64Backend) EmitLoadReg(i int) {
	g.emitBytes(0x8b, 0x87) // mov eax, [rdi+disp32]
	g.emitU32(regOffset(i))
}

// EmitStoreReg moves EAX into SH4 GPR i: mov [rdi+off], eax.
func (g *amd64Backend) EmitStoreReg(i int) {
	g.emitBytes(0x89, 0x87) // mov [rdi+disp32], eax
	g.emitU32(regOffset(i))
}

// EmitAddRegReg adds ECX into EAX; the compiler sequences an
// EmitLoadReg-into-ECX variant before this (see compiler.go's
// loadSecondary), so the two scratch registers never alias.
func (g *amd64Backend) EmitAddRegReg() {
	g.emitBytes(0x01, 0xc8) // add eax, ecx
}

func (g *amd64Backend) EmitMovImm32(v uint32) {
	g.emitByte(0xb8) // mov eax, imm32
	g.emitU32(v)
}

func (g *amd64Backend) EmitNop() { g.emitByte(0x90) }

// EmitReturn emits a bare ret; the compiled segment leaves its result
// already written into the register file via EmitStoreReg, so nothing
// needs to come back in EAX.
func (g *amd64Backend) EmitReturn() { g.emitByte(0xc3) }

// PatchBranchTarget rewrites the 4-byte little-endian displacement at
// siteOffset to point at targetOffset, used once a forward branch's
// destination has been emitted.
func (g *amd64Backend) PatchBranchTarget(siteOffset, targetOffset int) {
	rel := int32(targetOffset - (siteOffset + 4))
	g.buf[siteOffset+0] = byte(rel)
	g.buf[siteOffset+1] = byte(rel >> 8)
	g.buf[siteOffset+2] = byte(rel >> 16)
	g.buf[siteOffset+3] = byte(rel >> 24)
}

// EmitLoadSecondary moves SH4 GPR i into ECX, used ahead of
// EmitAddRegReg. Not part of HostBackend (only amd64/386 need the
// two-scratch-register dance today); the compiler type-asserts for it.
func (g *amd64Backend) EmitLoadSecondary(i int) {
	g.emitBytes(0x8b, 0x8f) // mov ecx, [rdi+disp32]
	g.emitU32(regOffset(i))
}
