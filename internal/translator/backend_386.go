//go:build 386

package translator

import (
	"reflect"

	"github.com/dreamon-emu/sh4core/internal/sh4"
)

// i386Backend mirrors amd64Backend's contract using the 32-bit register
// set call_386.s wires up (EDI holds *sh4.Registers, EAX the
// accumulator), the same split the pack keeps its amd64/i386 backends in
// as separate files rather than one ifdef'd source.
type i386Backend struct {
	buf []byte
}

func newHostBackend() HostBackend { return &i386Backend{} }

func (g *i386Backend) Reset()        { g.buf = g.buf[:0] }
func (g *i386Backend) Bytes() []byte { return g.buf }

func (g *i386Backend) emitByte(b byte)      { g.buf = append(g.buf, b) }
func (g *i386Backend) emitBytes(bs ...byte) { g.buf = append(g.buf, bs...) }
func (g *i386Backend) emitU32(v uint32) {
	g.emitBytes(byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

var rFieldOffset32 = func() uint32 {
	f, ok := reflect.TypeOf(sh4.Registers{}).FieldByName("R")
	if !ok {
		panic("translator: sh4.Registers has no R field")
	}
	return uint32(f.Offset)
}()

func regOffset32(i int) uint32 { return rFieldOffset32 + uint32(i)*4 }

func (g *i386Backend) EmitLoadReg(i int) {
	g.emitBytes(0x8b, 0x87) // mov eax, [edi+disp32]
	g.emitU32(regOffset32(i))
}

func (g *i386Backend) EmitStoreReg(i int) {
	g.emitBytes(0x89, 0x87) // mov [edi+disp32], eax
	g.emitU32(regOffset32(i))
}

func (g *i386Backend) EmitAddRegReg() { g.emitBytes(0x01, 0xc8) } // add eax, ecx

func (g *i386Backend) EmitMovImm32(v uint32) {
	g.emitByte(0xb8)
	g.emitU32(v)
}

func (g *i386Backend) EmitNop() { g.emitByte(0x90) }

func (g *i386Backend) EmitReturn() { g.emitByte(0xc3) }

func (g *i386Backend) PatchBranchTarget(siteOffset, targetOffset int) {
	rel := int32(targetOffset - (siteOffset + 4))
	g.buf[siteOffset+0] = byte(rel)
	g.buf[siteOffset+1] = byte(rel >> 8)
	g.buf[siteOffset+2] = byte(rel >> 16)
	g.buf[siteOffset+3] = byte(rel >> 24)
}

func (g *i386Backend) EmitLoadSecondary(i int) {
	g.emitBytes(0x8b, 0x8f) // mov ecx, [edi+disp32]
	g.emitU32(regOffset32(i))
}
