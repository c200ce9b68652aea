package sh4

import (
	"math"

	"github.com/dreamon-emu/sh4core/internal/memmap"
)

// StepResult reports what a single Step call did, mainly for the debugger
// and the translator's fallback call-out path (spec §4.4: unimplemented
// opcodes defer to the interpreter one instruction at a time).
type StepResult struct {
	Cycles int
}

// ErrBreakpoint is returned by Step when a fetch breakpoint fires instead
// of executing the instruction at that address.
type ErrBreakpoint struct{ Address uint32 }

func (e *ErrBreakpoint) Error() string { return "breakpoint" }

// Step executes exactly one instruction (or, if the core is mid delay
// slot, the delay-slot instruction) and advances PC accordingly. It
// implements the run_slice(ns) inner loop described in spec §4.3.
func (c *Core) Step() (StepResult, error) {
	if c.halted {
		return StepResult{}, &FatalError{Reason: c.haltReason, PC: c.Regs.PC}
	}
	if c.Regs.RunState == StateSleep {
		return StepResult{Cycles: 1}, nil
	}

	addr := c.Regs.PC
	inSlot := c.Regs.InDelaySlot
	if !inSlot && c.breakpointHit(addr) {
		return StepResult{}, &ErrBreakpoint{Address: addr}
	}

	op, err := c.fetch(addr)
	if err != nil {
		if ferr := c.raiseOrFatal(err); ferr != nil {
			return StepResult{}, ferr
		}
		return StepResult{Cycles: 1}, nil
	}

	branch, target, delayed, err := c.execute(op, inSlot)
	if err != nil {
		if ferr := c.raiseOrFatal(err); ferr != nil {
			return StepResult{}, ferr
		}
		return StepResult{Cycles: 1}, nil
	}

	switch {
	case inSlot:
		c.Regs.PC = c.Regs.NewPC
		c.Regs.InDelaySlot = false
	case branch && delayed:
		c.Regs.NewPC = target
		c.Regs.InDelaySlot = true
		c.Regs.PC = addr + 2
	case branch:
		c.Regs.PC = target
	default:
		c.Regs.PC = addr + 2
	}
	return StepResult{Cycles: 1}, nil
}

// raiseOrFatal feeds an sh4 error into the exception-entry sequence,
// returning the resulting *FatalError (VBR==0) or nil if the exception was
// handled in-core.
func (c *Core) raiseOrFatal(err error) error {
	exc, ok := err.(*Exception)
	if !ok {
		return err
	}
	if rerr := c.Regs.Raise(exc); rerr != nil {
		c.halt(rerr.Error())
		return rerr
	}
	return nil
}

// RaiseInterrupt delivers an externally sourced interrupt (from
// internal/asic) at the next instruction boundary. Call only when not mid
// delay-slot; the scheduler checks this via Core.CanTakeInterrupt.
func (c *Core) RaiseInterrupt(intevt uint32) error {
	c.Regs.RunState = StateRunning
	if rerr := c.Regs.RaiseInterrupt(intevt); rerr != nil {
		c.halt(rerr.Error())
		return rerr
	}
	return nil
}

// CanTakeInterrupt reports whether the core is at an instruction boundary
// where an interrupt may be delivered (never mid delay-slot).
func (c *Core) CanTakeInterrupt() bool { return !c.Regs.InDelaySlot }

func signExtend8(v uint8) int32  { return int32(int8(v)) }
func signExtend12(v uint16) int32 {
	x := int32(v & 0x0FFF)
	if x&0x0800 != 0 {
		x -= 0x1000
	}
	return x
}

// isBranchOpcode reports whether op is one of the instructions forbidden
// in a delay slot (spec: nested delay slots raise slot-illegal-instruction).
func isBranchOpcode(op uint16) bool {
	switch op & 0xF000 {
	case 0xA000, 0xB000: // BRA, BSR
		return true
	}
	switch {
	case op&0xF0FF == 0x400B: // JSR
		return true
	case op&0xF0FF == 0x0023: // BRAF
		return true
	case op&0xF0FF == 0x0003: // BSRF
		return true
	case op&0xFF00 == 0x8D00: // BT.S
		return true
	case op&0xFF00 == 0x8F00: // BF.S
		return true
	case op == 0x000B: // RTS
		return true
	case op == 0x002B: // RTE
		return true
	}
	return false
}

// execute decodes and runs a single opcode. It returns whether the
// instruction branches, the branch target (valid only if branch==true),
// and whether the branch carries a delay slot. inSlot indicates op is
// itself executing as a delay-slot instruction, used only to detect
// illegal nesting.
func (c *Core) execute(op uint16, inSlot bool) (branch bool, target uint32, delayed bool, err error) {
	r := c.Regs
	n := (op >> 8) & 0xF
	m := (op >> 4) & 0xF

	if inSlot && isBranchOpcode(op) {
		return false, 0, false, &Exception{Kind: KindSlotIllegal, Address: r.PC}
	}

	switch op & 0xF000 {
	case 0x6000: // MOV/sign-extend/swap family, sub-decoded by low nibble
		switch op & 0xF {
		case 0x3: // MOV Rm,Rn
			r.R[n] = r.R[m]
		case 0x8: // SWAP.B
			lo := r.R[m] & 0xFF
			hi := (r.R[m] >> 8) & 0xFF
			r.R[n] = (r.R[m] &^ 0xFFFF) | (lo << 8) | hi
		case 0x9: // SWAP.W
			r.R[n] = (r.R[m] << 16) | (r.R[m] >> 16)
		case 0x7: // NOT
			r.R[n] = ^r.R[m]
		case 0xA: // NEGC
			sub := uint64(r.R[m]) + b2u64(r.T)
			r.R[n] = uint32(0 - sub)
			r.T = sub != 0
		case 0xB: // NEG
			r.R[n] = uint32(-int32(r.R[m]))
		case 0xC: // EXTU.B
			r.R[n] = r.R[m] & 0xFF
		case 0xD: // EXTU.W
			r.R[n] = r.R[m] & 0xFFFF
		case 0xE: // EXTS.B
			r.R[n] = uint32(int32(int8(r.R[m])))
		case 0xF: // EXTS.W
			r.R[n] = uint32(int32(int16(r.R[m])))
		case 0x6: // MOV.L @Rm+,Rn
			v, e := c.readLong(r.R[m])
			if e != nil {
				return false, 0, false, e
			}
			r.R[n] = v
			if n != m {
				r.R[m] += 4
			}
		case 0x0: // MOV.B @Rm,Rn
			v, e := c.readByte(r.R[m])
			if e != nil {
				return false, 0, false, e
			}
			r.R[n] = uint32(int32(int8(v)))
		case 0x1: // MOV.W @Rm,Rn
			v, e := c.readWord(r.R[m])
			if e != nil {
				return false, 0, false, e
			}
			r.R[n] = uint32(int32(int16(v)))
		case 0x4: // MOV.B @Rm+,Rn
			v, e := c.readByte(r.R[m])
			if e != nil {
				return false, 0, false, e
			}
			r.R[n] = uint32(int32(int8(v)))
			if n != m {
				r.R[m]++
			}
		case 0x5: // MOV.W @Rm+,Rn
			v, e := c.readWord(r.R[m])
			if e != nil {
				return false, 0, false, e
			}
			r.R[n] = uint32(int32(int16(v)))
			if n != m {
				r.R[m] += 2
			}
		case 0x2: // MOV.L @Rm,Rn
			v, e := c.readLong(r.R[m])
			if e != nil {
				return false, 0, false, e
			}
			r.R[n] = v
		}
	case 0x2000: // MOV.x Rm,@Rn family / logical / CMP
		switch op & 0xF {
		case 0x0: // MOV.B Rm,@Rn
			if e := c.writeByte(r.R[n], uint8(r.R[m])); e != nil {
				return false, 0, false, e
			}
		case 0x1: // MOV.W Rm,@Rn
			if e := c.writeWord(r.R[n], uint16(r.R[m])); e != nil {
				return false, 0, false, e
			}
		case 0x2: // MOV.L Rm,@Rn
			if e := c.writeLong(r.R[n], r.R[m]); e != nil {
				return false, 0, false, e
			}
		case 0x4: // MOV.B Rm,@-Rn
			r.R[n]--
			if e := c.writeByte(r.R[n], uint8(r.R[m])); e != nil {
				return false, 0, false, e
			}
		case 0x5: // MOV.W Rm,@-Rn
			r.R[n] -= 2
			if e := c.writeWord(r.R[n], uint16(r.R[m])); e != nil {
				return false, 0, false, e
			}
		case 0x6: // MOV.L Rm,@-Rn
			r.R[n] -= 4
			if e := c.writeLong(r.R[n], r.R[m]); e != nil {
				return false, 0, false, e
			}
		case 0x7: // DIV0S
			r.Q = r.R[n]&0x80000000 != 0
			r.M = r.R[m]&0x80000000 != 0
			r.T = r.Q != r.M
		case 0x8: // TST
			r.T = r.R[n]&r.R[m] == 0
		case 0x9: // AND
			r.R[n] &= r.R[m]
		case 0xA: // XOR
			r.R[n] ^= r.R[m]
		case 0xB: // OR
			r.R[n] |= r.R[m]
		case 0xC: // CMP/STR
			x := r.R[n] ^ r.R[m]
			r.T = byte(x) == 0 || byte(x>>8) == 0 || byte(x>>16) == 0 || byte(x>>24) == 0
		case 0xD: // XTRCT
			r.R[n] = (r.R[n] >> 16) | (r.R[m] << 16)
		case 0xE: // MULU.W
			r.MACL = uint32(uint16(r.R[n])) * uint32(uint16(r.R[m]))
		case 0xF: // MULS.W
			r.MACL = uint32(int32(int16(r.R[n])) * int32(int16(r.R[m])))
		}
	case 0x3000: // arithmetic/compare Rm,Rn
		switch op & 0xF {
		case 0x0: // CMP/EQ
			r.T = r.R[n] == r.R[m]
		case 0x2: // CMP/HS
			r.T = r.R[n] >= r.R[m]
		case 0x3: // CMP/GE
			r.T = int32(r.R[n]) >= int32(r.R[m])
		case 0x6: // CMP/HI
			r.T = r.R[n] > r.R[m]
		case 0x7: // CMP/GT
			r.T = int32(r.R[n]) > int32(r.R[m])
		case 0x4: // DIV1
			c.div1(n, m)
		case 0x5: // DMULU.L
			prod := uint64(r.R[n]) * uint64(r.R[m])
			r.MACH, r.MACL = uint32(prod>>32), uint32(prod)
		case 0xD: // DMULS.L
			prod := int64(int32(r.R[n])) * int64(int32(r.R[m]))
			r.MACH, r.MACL = uint32(uint64(prod)>>32), uint32(prod)
		case 0x8: // SUB
			r.R[n] -= r.R[m]
		case 0xA: // SUBC
			res := uint64(r.R[n]) - uint64(r.R[m]) - b2u64(r.T)
			r.T = res>>32 != 0
			r.R[n] = uint32(res)
		case 0xB: // SUBV
			rn, rm := int32(r.R[n]), int32(r.R[m])
			res := rn - rm
			r.T = ((rn ^ rm) & (rn ^ res)) < 0
			r.R[n] = uint32(res)
		case 0xC: // ADD
			r.R[n] += r.R[m]
		case 0xE: // ADDC
			res := uint64(r.R[n]) + uint64(r.R[m]) + b2u64(r.T)
			r.T = res>>32 != 0
			r.R[n] = uint32(res)
		case 0xF: // ADDV
			rn, rm := int32(r.R[n]), int32(r.R[m])
			res := rn + rm
			r.T = ((rn ^ res) & (rm ^ res)) < 0
			r.R[n] = uint32(res)
		}
	case 0x7000: // ADD #imm,Rn
		r.R[n] += uint32(signExtend8(uint8(op & 0xFF)))
	case 0x8000:
		switch (op >> 8) & 0xF {
		case 0x0: // MOV.B R0,@(disp,Rn) -- n here is actually Rn field at bits 4-7
			rn := m
			disp := uint32(op & 0xF)
			if e := c.writeByte(r.R[rn]+disp, uint8(r.R[0])); e != nil {
				return false, 0, false, e
			}
		case 0x1: // MOV.W R0,@(disp,Rn)
			rn := m
			disp := uint32(op&0xF) * 2
			if e := c.writeWord(r.R[rn]+disp, uint16(r.R[0])); e != nil {
				return false, 0, false, e
			}
		case 0x4: // MOV.B @(disp,Rm),R0
			rm := m
			disp := uint32(op & 0xF)
			v, e := c.readByte(r.R[rm] + disp)
			if e != nil {
				return false, 0, false, e
			}
			r.R[0] = uint32(int32(int8(v)))
		case 0x5: // MOV.W @(disp,Rm),R0
			rm := m
			disp := uint32(op&0xF) * 2
			v, e := c.readWord(r.R[rm] + disp)
			if e != nil {
				return false, 0, false, e
			}
			r.R[0] = uint32(int32(int16(v)))
		case 0x8: // CMP/EQ #imm,R0
			r.T = int32(r.R[0]) == int32(signExtend8(uint8(op&0xFF)))
		case 0x9: // BT
			if r.T {
				return true, uint32(int32(r.PC) + 4 + signExtend8(uint8(op&0xFF))*2), false, nil
			}
		case 0xB: // BF
			if !r.T {
				return true, uint32(int32(r.PC) + 4 + signExtend8(uint8(op&0xFF))*2), false, nil
			}
		case 0xD: // BT.S
			if r.T {
				return true, uint32(int32(r.PC) + 4 + signExtend8(uint8(op&0xFF))*2), true, nil
			}
		case 0xF: // BF.S
			if !r.T {
				return true, uint32(int32(r.PC) + 4 + signExtend8(uint8(op&0xFF))*2), true, nil
			}
		}
	case 0x9000: // MOV.W @(disp,PC),Rn
		disp := uint32(op&0xFF) * 2
		v, e := c.readWord((r.PC &^ 3) + 4 + disp)
		if e != nil {
			return false, 0, false, e
		}
		r.R[n] = uint32(int32(int16(v)))
	case 0xD000: // MOV.L @(disp,PC),Rn
		disp := uint32(op&0xFF) * 4
		v, e := c.readLong((r.PC&^3 + 4) + disp)
		if e != nil {
			return false, 0, false, e
		}
		r.R[n] = v
	case 0xE000: // MOV #imm,Rn
		r.R[n] = uint32(signExtend8(uint8(op & 0xFF)))
	case 0xA000: // BRA
		return true, uint32(int32(r.PC) + 4 + signExtend12(op&0x0FFF)*2), true, nil
	case 0xB000: // BSR
		r.PR = r.PC + 4
		return true, uint32(int32(r.PC) + 4 + signExtend12(op&0x0FFF)*2), true, nil
	case 0xC000:
		switch (op >> 8) & 0xF {
		case 0x3: // TRAPA
			return false, 0, false, &Exception{Kind: KindTrap, TRA: uint32(op&0xFF) << 2}
		case 0x8: // TST #imm,R0
			r.T = r.R[0]&uint32(op&0xFF) == 0
		case 0x9: // AND #imm,R0
			r.R[0] &= uint32(op & 0xFF)
		case 0xA: // XOR #imm,R0
			r.R[0] ^= uint32(op & 0xFF)
		case 0xB: // OR #imm,R0
			r.R[0] |= uint32(op & 0xFF)
		case 0x0: // MOV.B R0,@(disp,GBR)
			if e := c.writeByte(r.GBR+uint32(op&0xFF), uint8(r.R[0])); e != nil {
				return false, 0, false, e
			}
		case 0x1: // MOV.W R0,@(disp,GBR)
			if e := c.writeWord(r.GBR+uint32(op&0xFF)*2, uint16(r.R[0])); e != nil {
				return false, 0, false, e
			}
		case 0x2: // MOV.L R0,@(disp,GBR)
			if e := c.writeLong(r.GBR+uint32(op&0xFF)*4, r.R[0]); e != nil {
				return false, 0, false, e
			}
		case 0x4: // MOV.B @(disp,GBR),R0
			v, e := c.readByte(r.GBR + uint32(op&0xFF))
			if e != nil {
				return false, 0, false, e
			}
			r.R[0] = uint32(int32(int8(v)))
		case 0x5: // MOV.W @(disp,GBR),R0
			v, e := c.readWord(r.GBR + uint32(op&0xFF)*2)
			if e != nil {
				return false, 0, false, e
			}
			r.R[0] = uint32(int32(int16(v)))
		case 0x6: // MOV.L @(disp,GBR),R0
			v, e := c.readLong(r.GBR + uint32(op&0xFF)*4)
			if e != nil {
				return false, 0, false, e
			}
			r.R[0] = v
		case 0x7: // MOVA @(disp,PC),R0
			r.R[0] = (r.PC&^3 + 4) + uint32(op&0xFF)*4
		}
	case 0x0000:
		return c.executeGroup0(op, n, m, inSlot)
	case 0x1000: // MOV.L Rm,@(disp,Rn)
		disp := uint32(op&0xF) * 4
		if e := c.writeLong(r.R[n]+disp, r.R[m]); e != nil {
			return false, 0, false, e
		}
	case 0x4000:
		return c.executeGroup4(op, n, inSlot)
	case 0x5000: // MOV.L @(disp,Rm),Rn
		disp := uint32(op&0xF) * 4
		v, e := c.readLong(r.R[m] + disp)
		if e != nil {
			return false, 0, false, e
		}
		r.R[n] = v
	case 0xF000:
		return c.executeFPU(op, n, m)
	default:
		return false, 0, false, &Exception{Kind: KindIllegalInstruction, Address: r.PC}
	}
	return false, 0, false, nil
}

func (c *Core) executeGroup0(op uint16, n, m uint16, inSlot bool) (bool, uint32, bool, error) {
	r := c.Regs
	switch op & 0xFF {
	case 0x02, 0x12, 0x22, 0x32, 0x42, 0x52, 0x62, 0x72, 0x82, 0x92, 0xA2, 0xB2, 0xC2, 0xD2, 0xE2, 0xF2:
		return false, 0, false, c.execSTC(op, n)
	case 0x83: // PREF @Rn
		return false, 0, false, c.execPref(r.R[n])
	case 0x29: // MOVT Rn
		if r.T {
			r.R[n] = 1
		} else {
			r.R[n] = 0
		}
		return false, 0, false, nil
	case 0x93: // OCBI @Rn -- cache invalidate, no-op (no cache timing modeled)
		return false, 0, false, nil
	case 0xA3: // OCBP @Rn -- cache purge, no-op
		return false, 0, false, nil
	case 0xB3: // OCBWB @Rn -- cache writeback, no-op
		return false, 0, false, nil
	case 0xC3: // MOVCA.L R0,@Rn
		return false, 0, false, c.writeLong(r.R[n], r.R[0])
	case 0xFA: // STC DBR,Rn -- privileged
		if !r.Privileged() {
			return false, 0, false, &Exception{Kind: KindIllegalInstruction, Address: r.PC}
		}
		r.R[n] = r.DBR
		return false, 0, false, nil
	case 0x0A: // STS MACH,Rn
		r.R[n] = r.MACH
		return false, 0, false, nil
	case 0x1A: // STS MACL,Rn
		r.R[n] = r.MACL
		return false, 0, false, nil
	case 0x2A: // STS PR,Rn
		r.R[n] = r.PR
		return false, 0, false, nil
	case 0x5A: // STS FPUL,Rn
		r.R[n] = r.FPUL
		return false, 0, false, nil
	case 0x6A: // STS FPSCR,Rn
		r.R[n] = r.FPSCR
		return false, 0, false, nil
	}
	switch op & 0xF {
	case 0x4: // MOV.B Rm,@(R0,Rn)
		if e := c.writeByte(r.R[n]+r.R[0], uint8(r.R[m])); e != nil {
			return false, 0, false, e
		}
		return false, 0, false, nil
	case 0x5: // MOV.W Rm,@(R0,Rn)
		if e := c.writeWord(r.R[n]+r.R[0], uint16(r.R[m])); e != nil {
			return false, 0, false, e
		}
		return false, 0, false, nil
	case 0x6: // MOV.L Rm,@(R0,Rn)
		if e := c.writeLong(r.R[n]+r.R[0], r.R[m]); e != nil {
			return false, 0, false, e
		}
		return false, 0, false, nil
	case 0xC: // MOV.B @(R0,Rm),Rn
		v, e := c.readByte(r.R[m] + r.R[0])
		if e != nil {
			return false, 0, false, e
		}
		r.R[n] = uint32(int32(int8(v)))
		return false, 0, false, nil
	case 0xD: // MOV.W @(R0,Rm),Rn
		v, e := c.readWord(r.R[m] + r.R[0])
		if e != nil {
			return false, 0, false, e
		}
		r.R[n] = uint32(int32(int16(v)))
		return false, 0, false, nil
	case 0xE: // MOV.L @(R0,Rm),Rn
		v, e := c.readLong(r.R[m] + r.R[0])
		if e != nil {
			return false, 0, false, e
		}
		r.R[n] = v
		return false, 0, false, nil
	case 0x7: // MUL.L
		r.MACL = r.R[n] * r.R[m]
		return false, 0, false, nil
	case 0xF: // MAC.L @Rm+,@Rn+
		return false, 0, false, c.macL(n, m)
	}
	switch op {
	case 0x0008: // CLRT
		r.T = false
	case 0x0028: // CLRMAC
		r.MACH, r.MACL = 0, 0
	case 0x0048: // CLRS
		r.S = false
	case 0x0009: // NOP
	case 0x0018: // SETT
		r.T = true
	case 0x0058: // SETS
		r.S = true
	case 0x0019: // DIV0U
		r.Q, r.M, r.T = false, false, false
	case 0x000B: // RTS
		if inSlot {
			return false, 0, false, &Exception{Kind: KindSlotIllegal, Address: r.PC}
		}
		return true, r.PR, true, nil
	case 0x002B: // RTE
		r.WriteSR(r.SSR)
		return true, r.SPC, true, nil
	case 0x0038: // LDTLB -- not modeled beyond a no-op (single combined TLB store here)
	case 0x001B: // SLEEP
		r.RunState = StateSleep
	default:
		if op&0xF0FF == 0x0023 { // BRAF Rn
			if inSlot {
				return false, 0, false, &Exception{Kind: KindSlotIllegal, Address: r.PC}
			}
			return true, r.PC + 4 + r.R[n], true, nil
		}
		if op&0xF0FF == 0x0003 { // BSRF Rn
			if inSlot {
				return false, 0, false, &Exception{Kind: KindSlotIllegal, Address: r.PC}
			}
			r.PR = r.PC + 4
			return true, r.PC + 4 + r.R[n], true, nil
		}
		return false, 0, false, &Exception{Kind: KindIllegalInstruction, Address: r.PC}
	}
	return false, 0, false, nil
}

// execPref implements PREF @Rn: a flush if addr falls in the store-queue
// window, a no-op everywhere else (no real cache timing modeled).
func (c *Core) execPref(addr uint32) error {
	if memmap.IsStoreQueueAddress(addr) {
		c.Bus.FlushStoreQueue(addr)
	}
	return nil
}

// execSTC handles the STC family (0000nnnnssss0010): n is the destination
// general register, ssss (bits 7-4 of op) selects the control register.
// Selectors 0x8-0xF read the banked R0_BANK..R7_BANK set (STC Rm_BANK,Rn),
// matching LDC's equivalent banked-register forms in executeGroup4.
func (c *Core) execSTC(op uint16, n uint16) error {
	r := c.Regs
	sel := (op >> 4) & 0xF
	if sel != 0x1 && !r.Privileged() { // every form but STC GBR,Rn is privileged
		return &Exception{Kind: KindIllegalInstruction, Address: r.PC}
	}
	switch sel {
	case 0x0: // STC SR,Rn
		r.R[n] = r.ReadSR()
	case 0x1: // STC GBR,Rn
		r.R[n] = r.GBR
	case 0x2: // STC VBR,Rn
		r.R[n] = r.VBR
	case 0x3: // STC SSR,Rn
		r.R[n] = r.SSR
	case 0x4: // STC SPC,Rn
		r.R[n] = r.SPC
	default:
		if sel&0x8 != 0 { // STC Rm_BANK,Rn
			r.R[n] = r.RBank[sel&0x7]
			return nil
		}
		return &Exception{Kind: KindIllegalInstruction, Address: r.PC}
	}
	return nil
}

func (c *Core) executeGroup4(op uint16, n uint16, inSlot bool) (bool, uint32, bool, error) {
	r := c.Regs
	m := (op >> 4) & 0xF

	// SHAD/SHLD/MAC.W all carry a real Rm operand in the m field, unlike
	// every other 0100-group opcode below (which fixes m=0 and switches on
	// the full byte). Dispatch them first on the low nibble alone so any m
	// value reaches them.
	switch op & 0xF {
	case 0xC: // SHAD Rm,Rn
		shiftDynamic(&r.R[n], int32(r.R[m]), false)
		return false, 0, false, nil
	case 0xD: // SHLD Rm,Rn
		shiftDynamic(&r.R[n], int32(r.R[m]), true)
		return false, 0, false, nil
	case 0xF: // MAC.W @Rm+,@Rn+
		return false, 0, false, c.macW(n, m)
	}

	switch op & 0xFF {
	case 0x2E, 0x3E, 0x4E, 0xFA, 0x8E, 0x9E, 0xAE, 0xBE, 0xCE, 0xDE, 0xEE, 0xFE: // LDC Rm,VBR/SSR/SPC/DBR/Rn_BANK -- privileged
		if !r.Privileged() {
			return false, 0, false, &Exception{Kind: KindIllegalInstruction, Address: r.PC}
		}
	}

	switch op & 0xFF {
	case 0x00: // SHLL
		r.T = r.R[n]&0x80000000 != 0
		r.R[n] <<= 1
	case 0x01: // SHLR
		r.T = r.R[n]&1 != 0
		r.R[n] >>= 1
	case 0x02: // STS.L MACH,@-Rn
		r.R[n] -= 4
		return false, 0, false, c.writeLong(r.R[n], r.MACH)
	case 0x12: // STS.L MACL,@-Rn
		r.R[n] -= 4
		return false, 0, false, c.writeLong(r.R[n], r.MACL)
	case 0x52: // STS.L FPUL,@-Rn
		r.R[n] -= 4
		return false, 0, false, c.writeLong(r.R[n], r.FPUL)
	case 0x62: // STS.L FPSCR,@-Rn
		r.R[n] -= 4
		return false, 0, false, c.writeLong(r.R[n], r.FPSCR)
	case 0x32: // STC.L SGR,@-Rn -- privileged
		if !r.Privileged() {
			return false, 0, false, &Exception{Kind: KindIllegalInstruction, Address: r.PC}
		}
		r.R[n] -= 4
		return false, 0, false, c.writeLong(r.R[n], r.SGR)
	case 0xF2: // STC.L DBR,@-Rn -- privileged
		if !r.Privileged() {
			return false, 0, false, &Exception{Kind: KindIllegalInstruction, Address: r.PC}
		}
		r.R[n] -= 4
		return false, 0, false, c.writeLong(r.R[n], r.DBR)
	case 0x03: // STC.L SR,@-Rn -- privileged
		if !r.Privileged() {
			return false, 0, false, &Exception{Kind: KindIllegalInstruction, Address: r.PC}
		}
		r.R[n] -= 4
		return false, 0, false, c.writeLong(r.R[n], r.ReadSR())
	case 0x13: // STC.L GBR,@-Rn
		r.R[n] -= 4
		return false, 0, false, c.writeLong(r.R[n], r.GBR)
	case 0x23: // STC.L VBR,@-Rn -- privileged
		if !r.Privileged() {
			return false, 0, false, &Exception{Kind: KindIllegalInstruction, Address: r.PC}
		}
		r.R[n] -= 4
		return false, 0, false, c.writeLong(r.R[n], r.VBR)
	case 0x33: // STC.L SSR,@-Rn -- privileged
		if !r.Privileged() {
			return false, 0, false, &Exception{Kind: KindIllegalInstruction, Address: r.PC}
		}
		r.R[n] -= 4
		return false, 0, false, c.writeLong(r.R[n], r.SSR)
	case 0x43: // STC.L SPC,@-Rn -- privileged
		if !r.Privileged() {
			return false, 0, false, &Exception{Kind: KindIllegalInstruction, Address: r.PC}
		}
		r.R[n] -= 4
		return false, 0, false, c.writeLong(r.R[n], r.SPC)
	case 0x83, 0x93, 0xA3, 0xB3, 0xC3, 0xD3, 0xE3, 0xF3: // STC.L Rm_BANK,@-Rn -- privileged
		if !r.Privileged() {
			return false, 0, false, &Exception{Kind: KindIllegalInstruction, Address: r.PC}
		}
		r.R[n] -= 4
		return false, 0, false, c.writeLong(r.R[n], r.RBank[(op>>4)&0x7])
	case 0x04: // ROTL
		t := r.R[n]&0x80000000 != 0
		r.R[n] = (r.R[n] << 1) | b2u32(t)
		r.T = t
	case 0x05: // ROTR
		t := r.R[n]&1 != 0
		r.R[n] = (r.R[n] >> 1) | (b2u32(t) << 31)
		r.T = t
	case 0x06: // LDS.L @Rn+,MACH
		v, e := c.readLong(r.R[n])
		if e != nil {
			return false, 0, false, e
		}
		r.MACH = v
		r.R[n] += 4
	case 0x16: // LDS.L @Rn+,MACL
		v, e := c.readLong(r.R[n])
		if e != nil {
			return false, 0, false, e
		}
		r.MACL = v
		r.R[n] += 4
	case 0x56: // LDS.L @Rn+,FPUL
		v, e := c.readLong(r.R[n])
		if e != nil {
			return false, 0, false, e
		}
		r.FPUL = v
		r.R[n] += 4
	case 0x66: // LDS.L @Rn+,FPSCR
		v, e := c.readLong(r.R[n])
		if e != nil {
			return false, 0, false, e
		}
		r.FPSCR = v
		r.R[n] += 4
	case 0x36: // LDC.L @Rn+,SGR -- privileged
		if !r.Privileged() {
			return false, 0, false, &Exception{Kind: KindIllegalInstruction, Address: r.PC}
		}
		v, e := c.readLong(r.R[n])
		if e != nil {
			return false, 0, false, e
		}
		r.SGR = v
		r.R[n] += 4
	case 0xF6: // LDC.L @Rn+,DBR -- privileged
		if !r.Privileged() {
			return false, 0, false, &Exception{Kind: KindIllegalInstruction, Address: r.PC}
		}
		v, e := c.readLong(r.R[n])
		if e != nil {
			return false, 0, false, e
		}
		r.DBR = v
		r.R[n] += 4
	case 0x17: // LDC.L @Rn+,GBR
		v, e := c.readLong(r.R[n])
		if e != nil {
			return false, 0, false, e
		}
		r.GBR = v
		r.R[n] += 4
	case 0x27: // LDC.L @Rn+,VBR -- privileged
		if !r.Privileged() {
			return false, 0, false, &Exception{Kind: KindIllegalInstruction, Address: r.PC}
		}
		v, e := c.readLong(r.R[n])
		if e != nil {
			return false, 0, false, e
		}
		r.VBR = v
		r.R[n] += 4
	case 0x37: // LDC.L @Rn+,SSR -- privileged
		if !r.Privileged() {
			return false, 0, false, &Exception{Kind: KindIllegalInstruction, Address: r.PC}
		}
		v, e := c.readLong(r.R[n])
		if e != nil {
			return false, 0, false, e
		}
		r.SSR = v
		r.R[n] += 4
	case 0x47: // LDC.L @Rn+,SPC -- privileged
		if !r.Privileged() {
			return false, 0, false, &Exception{Kind: KindIllegalInstruction, Address: r.PC}
		}
		v, e := c.readLong(r.R[n])
		if e != nil {
			return false, 0, false, e
		}
		r.SPC = v
		r.R[n] += 4
	case 0x87, 0x97, 0xA7, 0xB7, 0xC7, 0xD7, 0xE7, 0xF7: // LDC.L @Rn+,Rm_BANK -- privileged
		if !r.Privileged() {
			return false, 0, false, &Exception{Kind: KindIllegalInstruction, Address: r.PC}
		}
		v, e := c.readLong(r.R[n])
		if e != nil {
			return false, 0, false, e
		}
		r.RBank[(op>>4)&0x7] = v
		r.R[n] += 4
	case 0x08: // SHLL2
		r.R[n] <<= 2
	case 0x09: // SHLR2
		r.R[n] >>= 2
	case 0x0B: // JSR @Rn
		if inSlot {
			return false, 0, false, &Exception{Kind: KindSlotIllegal, Address: r.PC}
		}
		r.PR = r.PC + 4
		return true, r.R[n], true, nil
	case 0x10: // DT
		r.R[n]--
		r.T = r.R[n] == 0
	case 0x11: // CMP/PZ
		r.T = int32(r.R[n]) >= 0
	case 0x15: // CMP/PL
		r.T = int32(r.R[n]) > 0
	case 0x18: // SHLL8
		r.R[n] <<= 8
	case 0x19: // SHLR8
		r.R[n] >>= 8
	case 0x1B: // TAS.B @Rn
		v, e := c.readByte(r.R[n])
		if e != nil {
			return false, 0, false, e
		}
		r.T = v == 0
		return false, 0, false, c.writeByte(r.R[n], v|0x80)
	case 0x20: // SHAL
		r.T = r.R[n]&0x80000000 != 0
		r.R[n] <<= 1
	case 0x21: // SHAR
		r.T = r.R[n]&1 != 0
		r.R[n] = uint32(int32(r.R[n]) >> 1)
	case 0x22: // STS.L PR,@-Rn
		r.R[n] -= 4
		return false, 0, false, c.writeLong(r.R[n], r.PR)
	case 0x24: // ROTCL
		t := r.R[n]&0x80000000 != 0
		r.R[n] = (r.R[n] << 1) | b2u32(r.T)
		r.T = t
	case 0x25: // ROTCR
		t := r.R[n]&1 != 0
		r.R[n] = (r.R[n] >> 1) | (b2u32(r.T) << 31)
		r.T = t
	case 0x26: // LDS.L @Rn+,PR
		v, e := c.readLong(r.R[n])
		if e != nil {
			return false, 0, false, e
		}
		r.PR = v
		r.R[n] += 4
	case 0x28: // SHLL16
		r.R[n] <<= 16
	case 0x29: // SHLR16
		r.R[n] >>= 16
	case 0x2B: // JMP @Rn
		if inSlot {
			return false, 0, false, &Exception{Kind: KindSlotIllegal, Address: r.PC}
		}
		return true, r.R[n], true, nil
	case 0x0A: // LDS Rm,MACH
		r.MACH = r.R[n]
	case 0x1A: // LDS Rm,MACL
		r.MACL = r.R[n]
	case 0x2A: // LDS Rm,PR
		r.PR = r.R[n]
	case 0x5A: // LDS Rm,FPUL
		r.FPUL = r.R[n]
	case 0x6A: // LDS Rm,FPSCR
		r.FPSCR = r.R[n]
	case 0x3A: // LDC Rm,SGR -- privileged
		if !r.Privileged() {
			return false, 0, false, &Exception{Kind: KindIllegalInstruction, Address: r.PC}
		}
		r.SGR = r.R[n]
	case 0x0E: // LDC Rm,SR -- privileged; user mode raises illegal-instruction
		if !r.Privileged() {
			return false, 0, false, &Exception{Kind: KindIllegalInstruction, Address: r.PC}
		}
		r.WriteSR(r.R[n])
	case 0x1E: // LDC Rm,GBR
		r.GBR = r.R[n]
	case 0x2E: // LDC Rm,VBR
		r.VBR = r.R[n]
	case 0x3E: // LDC Rm,SSR
		r.SSR = r.R[n]
	case 0x4E: // LDC Rm,SPC
		r.SPC = r.R[n]
	case 0xFA: // LDC Rm,DBR
		r.DBR = r.R[n]
	case 0x8E, 0x9E, 0xAE, 0xBE, 0xCE, 0xDE, 0xEE, 0xFE: // LDC Rm,Rn_BANK
		r.RBank[(op>>4)&0x7] = r.R[n]
	case 0x07: // LDC.L @Rn+,SR -- privileged
		if !r.Privileged() {
			return false, 0, false, &Exception{Kind: KindIllegalInstruction, Address: r.PC}
		}
		v, e := c.readLong(r.R[n])
		if e != nil {
			return false, 0, false, e
		}
		r.WriteSR(v)
		r.R[n] += 4
	default:
		return false, 0, false, &Exception{Kind: KindIllegalInstruction, Address: r.PC}
	}
	return false, 0, false, nil
}

// shiftDynamic implements SHAD/SHLD's shared dynamic-shift-amount rule: the
// whole signed value of shift is used, its magnitude giving the distance and
// its sign the direction, and any magnitude of 32 or more saturates. logical
// selects SHLD's zero-fill right shift over SHAD's sign-extending one.
func shiftDynamic(reg *uint32, shift int32, logical bool) {
	switch {
	case shift == 0:
	case shift > 0:
		if shift >= 32 {
			*reg = 0
		} else {
			*reg <<= uint(shift)
		}
	default:
		s := uint(-shift)
		switch {
		case s >= 32 && logical:
			*reg = 0
		case s >= 32: // SHAD: sign-extend fill
			if int32(*reg) < 0 {
				*reg = 0xFFFFFFFF
			} else {
				*reg = 0
			}
		case logical:
			*reg >>= s
		default:
			*reg = uint32(int32(*reg) >> s)
		}
	}
}

// div1 implements the SH4 DIV1 step exactly per the hardware manual's
// quotient-bit algorithm (grounded on lxdream's sh4core.c DIV1): one
// iteration of non-restoring division producing one quotient bit per call.
func (c *Core) div1(n, m uint16) {
	r := c.Regs
	oldQ := r.Q
	newQ := r.R[n]&0x80000000 != 0
	divisor := r.R[m]
	r.R[n] = (r.R[n] << 1) | b2u32(r.T)

	var tmp1 bool
	if oldQ == r.M {
		before := r.R[n]
		r.R[n] -= divisor
		tmp1 = r.R[n] > before // borrow
	} else {
		before := r.R[n]
		r.R[n] += divisor
		tmp1 = r.R[n] < before // carry
	}
	r.Q = (newQ != tmp1) != r.M
	r.T = r.Q == r.M
}

// macMax48 and macMin48 are the 48-bit signed accumulator bounds that
// SR.S=1 saturation clamps to (spec §8 "MAC saturation").
const (
	macMax48 = int64(0x00007FFFFFFFFFFF)
	macMin48 = -int64(0x0000800000000000)
)

// macL implements MAC.L @Rm+,@Rn+ (grounded on lxdream's sh4core.c MAC.L):
// a signed 32x32 multiply accumulated into the 64-bit MACH:MACL pair,
// saturating to 48 bits when SR.S is set and wrapping mod 2^64 otherwise.
func (c *Core) macL(n, m uint16) error {
	r := c.Regs
	a, e := c.readLong(r.R[m])
	if e != nil {
		return e
	}
	b, e := c.readLong(r.R[n])
	if e != nil {
		return e
	}
	r.R[m] += 4
	r.R[n] += 4

	prod := int64(int32(a)) * int64(int32(b))
	sum := int64(uint64(r.MACH)<<32|uint64(r.MACL)) + prod
	if r.S {
		if sum > macMax48 {
			sum = macMax48
		} else if sum < macMin48 {
			sum = macMin48
		}
	}
	r.MACH = uint32(uint64(sum) >> 32)
	r.MACL = uint32(uint64(sum))
	return nil
}

// macW implements MAC.W @Rm+,@Rn+: a signed 16x16 multiply. With SR.S=0 the
// product accumulates into the full 64-bit MACH:MACL pair; with SR.S=1 it
// accumulates into MACL alone and saturates to the 32-bit signed range,
// setting MACH to 1 on overflow (hardware manual's MAC.W saturation mode).
func (c *Core) macW(n, m uint16) error {
	r := c.Regs
	a, e := c.readWord(r.R[m])
	if e != nil {
		return e
	}
	b, e := c.readWord(r.R[n])
	if e != nil {
		return e
	}
	r.R[m] += 2
	r.R[n] += 2

	prod := int64(int16(a)) * int64(int16(b))
	if !r.S {
		sum := int64(uint64(r.MACH)<<32|uint64(r.MACL)) + prod
		r.MACH = uint32(uint64(sum) >> 32)
		r.MACL = uint32(uint64(sum))
		return nil
	}
	sum := int64(int32(r.MACL)) + prod
	const max32 = int64(0x7FFFFFFF)
	const min32 = -int64(0x80000000)
	if sum > max32 {
		r.MACL = 0x7FFFFFFF
		r.MACH = 1
	} else if sum < min32 {
		r.MACL = 0x80000000
		r.MACH = 1
	} else {
		r.MACL = uint32(int32(sum))
	}
	return nil
}

func b2u32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
func b2u64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
// executeFPU covers the 0xFxxx FPU opcode group: register moves, the four
// basic arithmetic ops, compare, conversions and — via execFPUExt/FIPR's own
// case below — the paired-double/vector instructions (FIPR, FTRV, FSCA) and
// the FSCHG/FRCHG bank-toggle pair, all gated by FPSCR.PR/SZ as on real
// hardware.
func (c *Core) executeFPU(op uint16, n, m uint16) (bool, uint32, bool, error) {
	r := c.Regs
	if r.FPUDisabled() {
		return false, 0, false, &Exception{Kind: KindFPUDisabled, Address: r.PC}
	}
	switch op & 0xF {
	case 0x0: // FADD
		if r.DoublePrecision() {
			r.SetDR(int(n), math.Float64bits(math.Float64frombits(r.GetDR(int(n)))+math.Float64frombits(r.GetDR(int(m)))))
		} else {
			r.SetFR(int(n), math.Float32bits(math.Float32frombits(r.GetFR(int(n)))+math.Float32frombits(r.GetFR(int(m)))))
		}
	case 0x1: // FSUB
		if r.DoublePrecision() {
			r.SetDR(int(n), math.Float64bits(math.Float64frombits(r.GetDR(int(n)))-math.Float64frombits(r.GetDR(int(m)))))
		} else {
			r.SetFR(int(n), math.Float32bits(math.Float32frombits(r.GetFR(int(n)))-math.Float32frombits(r.GetFR(int(m)))))
		}
	case 0x2: // FMUL
		if r.DoublePrecision() {
			r.SetDR(int(n), math.Float64bits(math.Float64frombits(r.GetDR(int(n)))*math.Float64frombits(r.GetDR(int(m)))))
		} else {
			r.SetFR(int(n), math.Float32bits(math.Float32frombits(r.GetFR(int(n)))*math.Float32frombits(r.GetFR(int(m)))))
		}
	case 0x3: // FDIV
		if r.DoublePrecision() {
			r.SetDR(int(n), math.Float64bits(math.Float64frombits(r.GetDR(int(n)))/math.Float64frombits(r.GetDR(int(m)))))
		} else {
			r.SetFR(int(n), math.Float32bits(math.Float32frombits(r.GetFR(int(n)))/math.Float32frombits(r.GetFR(int(m)))))
		}
	case 0x4: // FCMP/EQ
		if r.DoublePrecision() {
			r.T = math.Float64frombits(r.GetDR(int(n))) == math.Float64frombits(r.GetDR(int(m)))
		} else {
			r.T = math.Float32frombits(r.GetFR(int(n))) == math.Float32frombits(r.GetFR(int(m)))
		}
	case 0x5: // FCMP/GT
		if r.DoublePrecision() {
			r.T = math.Float64frombits(r.GetDR(int(n))) > math.Float64frombits(r.GetDR(int(m)))
		} else {
			r.T = math.Float32frombits(r.GetFR(int(n))) > math.Float32frombits(r.GetFR(int(m)))
		}
	case 0x6: // FMOV.S @(R0,Rm),FRn / DRn
		return false, 0, false, c.fmovLoadIndexed(n, m)
	case 0x7: // FMOV.S FRm,@(R0,Rn) / DRm,@(R0,Rn)
		return false, 0, false, c.fmovStoreIndexed(n, m)
	case 0x8: // FMOV.S @Rm,FRn / DRn
		return false, 0, false, c.fmovLoad(n, m, false)
	case 0x9: // FMOV.S @Rm+,FRn / DRn
		return false, 0, false, c.fmovLoad(n, m, true)
	case 0xA: // FMOV.S FRm,@Rn / DRm,@Rn
		return false, 0, false, c.fmovStore(n, m, false)
	case 0xB: // FMOV.S FRm,@-Rn / DRm,@-Rn
		return false, 0, false, c.fmovStore(n, m, true)
	case 0xC: // FMOV FRm,FRn / DRm,DRn (register form, non-indexed)
		if r.SizeDouble() {
			r.SetDR(int(n), r.GetDR(int(m)))
		} else {
			r.SetFR(int(n), r.GetFR(int(m)))
		}
	case 0xE: // FMAC FR0,Rm,Rn
		v := math.Float32frombits(r.GetFR(0))*math.Float32frombits(r.GetFR(int(m))) + math.Float32frombits(r.GetFR(int(n)))
		r.SetFR(int(n), math.Float32bits(v))
	case 0xD:
		return c.executeFPUMisc(op, n)
	default:
		return false, 0, false, &Exception{Kind: KindIllegalInstruction, Address: r.PC}
	}
	return false, 0, false, nil
}

func (c *Core) executeFPUMisc(op uint16, n uint16) (bool, uint32, bool, error) {
	r := c.Regs
	switch op & 0xFF {
	case 0x0D: // FSTS FPUL,FRn
		r.SetFR(int(n), r.FPUL)
	case 0x1D: // FLDS FRm,FPUL
		r.FPUL = r.GetFR(int(n))
	case 0x2D: // FLOAT FPUL,FRn/DRn
		if r.DoublePrecision() {
			r.SetDR(int(n), math.Float64bits(float64(int32(r.FPUL))))
		} else {
			r.SetFR(int(n), math.Float32bits(float32(int32(r.FPUL))))
		}
	case 0x3D: // FTRC FRn/DRn,FPUL
		var f float64
		if r.DoublePrecision() {
			f = math.Float64frombits(r.GetDR(int(n)))
		} else {
			f = float64(math.Float32frombits(r.GetFR(int(n))))
		}
		switch {
		case math.IsNaN(f), f > float64(math.MaxInt32):
			r.FPUL = 0x7FFFFFFF
		case f < float64(math.MinInt32):
			r.FPUL = 0x80000000
		default:
			r.FPUL = uint32(int32(f))
		}
	case 0x4D: // FNEG
		if r.DoublePrecision() {
			r.SetDR(int(n), r.GetDR(int(n))^0x8000000000000000)
		} else {
			r.SetFR(int(n), r.GetFR(int(n))^0x80000000)
		}
	case 0x5D: // FABS
		if r.DoublePrecision() {
			r.SetDR(int(n), r.GetDR(int(n))&0x7FFFFFFFFFFFFFFF)
		} else {
			r.SetFR(int(n), r.GetFR(int(n))&0x7FFFFFFF)
		}
	case 0x6D: // FSQRT
		if r.DoublePrecision() {
			r.SetDR(int(n), math.Float64bits(math.Sqrt(math.Float64frombits(r.GetDR(int(n))))))
		} else {
			r.SetFR(int(n), math.Float32bits(float32(math.Sqrt(float64(math.Float32frombits(r.GetFR(int(n))))))))
		}
	case 0x7D: // FSRRA FRn (single precision only, per hardware manual)
		f := math.Float32frombits(r.GetFR(int(n)))
		r.SetFR(int(n), math.Float32bits(float32(1/math.Sqrt(float64(f)))))
	case 0x8D: // FLDI0
		r.SetFR(int(n), 0)
	case 0x9D: // FLDI1
		r.SetFR(int(n), math.Float32bits(1.0))
	case 0xAD: // FCNVSD FPUL,DRn -- widen the single in FPUL into a double
		r.SetDR(int(n), math.Float64bits(float64(math.Float32frombits(r.FPUL))))
	case 0xED: // FIPR FVm,FVn (single precision only)
		if !r.DoublePrecision() {
			fvn, fvm := int((n>>2)&0x3)<<2, int(n&0x3)<<2
			var dot float32
			for i := 0; i < 4; i++ {
				dot += math.Float32frombits(r.GetFR(fvm+i)) * math.Float32frombits(r.GetFR(fvn+i))
			}
			r.SetFR(fvn+3, math.Float32bits(dot))
		}
	case 0xBD: // FCNVDS DRn,FPUL -- narrow a double down into FPUL
		if r.DoublePrecision() {
			r.FPUL = math.Float32bits(float32(math.Float64frombits(r.GetDR(int(n)))))
		}
	case 0xFD: // FSCA/FTRV/FSCHG/FRCHG, sub-decoded on bits 11-8 (n)
		return false, 0, false, c.execFPUExt(n)
	default:
		return false, 0, false, &Exception{Kind: KindIllegalInstruction, Address: r.PC}
	}
	return false, 0, false, nil
}

// execFPUExt decodes the four instructions packed under opcode byte 0xFD
// (m field all-ones): FSCA, FTRV, FSCHG and FRCHG share the low byte and are
// distinguished by bits 8-11 of the word, which arrive here as n (grounded
// on lxdream's sh4core.c nested switch on bit8/bit9/bits10-11).
func (c *Core) execFPUExt(n uint16) error {
	r := c.Regs
	switch {
	case n&0x1 == 0: // FSCA FPUL,DRn (single precision only)
		if !r.DoublePrecision() {
			frn := int((n >> 1) & 0x7 << 1)
			angle := float64(r.FPUL&0xFFFF) / 65536.0 * 2 * math.Pi
			r.SetFR(frn, math.Float32bits(float32(math.Sin(angle))))
			r.SetFR(frn+1, math.Float32bits(float32(math.Cos(angle))))
		}
	case n&0x2 == 0: // FTRV XMTRX,FVn (single precision only)
		if !r.DoublePrecision() {
			base := int((n >> 2) & 0x3 << 2)
			var fv [4]float32
			for i := 0; i < 4; i++ {
				fv[i] = math.Float32frombits(r.GetFR(base + i))
			}
			for row := 0; row < 4; row++ {
				v := float32(0)
				for col := 0; col < 4; col++ {
					v += math.Float32frombits(r.GetXF(row+col*4)) * fv[col]
				}
				r.SetFR(base+row, math.Float32bits(v))
			}
		}
	case (n>>2)&0x3 == 0x0: // FSCHG
		r.FPSCR ^= fpscrSZ
	case (n>>2)&0x3 == 0x2: // FRCHG
		r.FPSCR ^= fpscrFR
	default:
		return &Exception{Kind: KindIllegalInstruction, Address: r.PC}
	}
	return nil
}

// fmovLoad implements FMOV.S @Rm,FRn and @Rm+,FRn, transferring a DR pair
// (8 bytes) in place of a single FR (4 bytes) when FPSCR.SZ selects
// double-precision transfer size (spec §4.3's FPU dual-bank model).
func (c *Core) fmovLoad(n, m uint16, postInc bool) error {
	r := c.Regs
	addr := r.R[m]
	if r.SizeDouble() {
		hi, e := c.readLong(addr)
		if e != nil {
			return e
		}
		lo, e := c.readLong(addr + 4)
		if e != nil {
			return e
		}
		r.SetDR(int(n), uint64(hi)<<32|uint64(lo))
		if postInc {
			r.R[m] += 8
		}
		return nil
	}
	v, e := c.readLong(addr)
	if e != nil {
		return e
	}
	r.SetFR(int(n), v)
	if postInc {
		r.R[m] += 4
	}
	return nil
}

// fmovStore implements FMOV.S FRm,@Rn and FRm,@-Rn.
func (c *Core) fmovStore(n, m uint16, preDec bool) error {
	r := c.Regs
	if r.SizeDouble() {
		if preDec {
			r.R[n] -= 8
		}
		d := r.GetDR(int(m))
		if e := c.writeLong(r.R[n], uint32(d>>32)); e != nil {
			return e
		}
		return c.writeLong(r.R[n]+4, uint32(d))
	}
	if preDec {
		r.R[n] -= 4
	}
	return c.writeLong(r.R[n], r.GetFR(int(m)))
}

// fmovLoadIndexed implements FMOV.S @(R0,Rm),FRn.
func (c *Core) fmovLoadIndexed(n, m uint16) error {
	r := c.Regs
	addr := r.R[0] + r.R[m]
	if r.SizeDouble() {
		hi, e := c.readLong(addr)
		if e != nil {
			return e
		}
		lo, e := c.readLong(addr + 4)
		if e != nil {
			return e
		}
		r.SetDR(int(n), uint64(hi)<<32|uint64(lo))
		return nil
	}
	v, e := c.readLong(addr)
	if e != nil {
		return e
	}
	r.SetFR(int(n), v)
	return nil
}

// fmovStoreIndexed implements FMOV.S FRm,@(R0,Rn).
func (c *Core) fmovStoreIndexed(n, m uint16) error {
	r := c.Regs
	addr := r.R[0] + r.R[n]
	if r.SizeDouble() {
		d := r.GetDR(int(m))
		if e := c.writeLong(addr, uint32(d>>32)); e != nil {
			return e
		}
		return c.writeLong(addr+4, uint32(d))
	}
	return c.writeLong(addr, r.GetFR(int(m)))
}
