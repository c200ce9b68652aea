package asic

// EXTDMA implements the IDE task-file/DMA page and the SPU (G2) DMA
// channels sharing its address window (spec §4.6, §12 "EXTDMA IDE register
// gating"). Both reads and writes to the IDE task-file registers are
// dropped while ideState.interfaceEnabled is false, matching lxdream's
// ide_can_write_regs/IS_IDE_REGISTER guards on both directions; everything
// else on the page (DMA control, activation, SPU channels, the second PVR
// DMA control pair) is always live.

func (b *Bus) readEXTDMAByte(offset uint32) uint8 {
	regBase, byteOff := alignedReg(offset)
	b.mu.Lock()
	val := b.readEXTDMAReg(regBase)
	b.mu.Unlock()
	return uint8(val >> (byteOff * 8))
}

func (b *Bus) writeEXTDMAByte(offset uint32, v uint8) {
	regBase, byteOff := alignedReg(offset)
	b.mu.Lock()
	existing := b.readEXTDMAReg(regBase)
	shift := byteOff * 8
	full := (existing &^ (0xFF << shift)) | (uint32(v) << shift)
	b.writeEXTDMAReg(regBase, full)
	b.mu.Unlock()
}

// readEXTDMAReg. Caller holds b.mu.
func (b *Bus) readEXTDMAReg(reg uint32) uint32 {
	if isIDERegister(reg) && !b.ide.interfaceEnabled {
		return 0xFFFFFFFF
	}
	switch reg {
	case regIDEAltStatus:
		return uint32(b.ide.status)
	case regIDECount:
		return uint32(b.ide.count)
	case regIDELBA0:
		return 0
	case regIDELBA1:
		return uint32(b.ide.lba1)
	case regIDELBA2:
		return uint32(b.ide.lba2)
	case regIDEDev:
		return uint32(b.ide.device)
	case regIDEDMACtl1:
		return b.ideDMACtl1
	case regIDEDMACtl2:
		return b.ideDMACtl2
	case regIDEDMASiz:
		return b.ideDMASiz
	case regIDEDMASH4:
		return b.ideDMADest
	case regIDEDMATxSiz:
		return b.ideDMATxSiz
	case regIDEActivate:
		if b.ide.interfaceEnabled {
			return ideActivateEnable
		}
		return ideActivateDisable
	case regPVRDMA2Ctl1:
		return b.pvr2Ctl1
	case regPVRDMA2Ctl2:
		return b.pvr2Ctl2
	}
	for ch := 0; ch < spuChannelCount; ch++ {
		if v, ok := b.readSPUChannelReg(ch, reg); ok {
			return v
		}
	}
	return 0
}

// writeEXTDMAReg. Caller holds b.mu.
func (b *Bus) writeEXTDMAReg(reg uint32, val uint32) {
	if isIDERegister(reg) && !b.ide.interfaceEnabled {
		return
	}
	switch reg {
	case regIDELBA1:
		b.ide.lba1 = uint8(val)
		return
	case regIDELBA2:
		b.ide.lba2 = uint8(val)
		return
	case regIDEDev:
		b.ide.device = uint8(val)
		return
	case regIDEDMASiz:
		b.ideDMASiz = val
		return
	case regIDEDMASH4:
		b.ideDMADest = val
		return
	case regIDEDMACtl1:
		b.ideDMACtl1 = val
		b.maybeStartIDEDMA()
		return
	case regIDEDMACtl2:
		b.ideDMACtl2 = val
		b.maybeStartIDEDMA()
		return
	case regIDEActivate:
		switch val {
		case ideActivateEnable:
			b.ide.interfaceEnabled = true
		case ideActivateDisable:
			b.ide.interfaceEnabled = false
		}
		return
	case regPVRDMA2Ctl1:
		b.pvr2Ctl1 = val
		return
	case regPVRDMA2Ctl2:
		b.pvr2Ctl2 = val
		return
	}
	for ch := 0; ch < spuChannelCount; ch++ {
		if b.writeSPUChannelReg(ch, reg, val) {
			return
		}
	}
}

func (b *Bus) readSPUChannelReg(ch int, reg uint32) (uint32, bool) {
	s := &b.spu[ch]
	switch reg {
	case spuReg(ch, spuCtl1Off):
		return s.ctl1, true
	case spuReg(ch, spuCtl2Off):
		return s.ctl2, true
	case spuReg(ch, spuSizOff):
		return s.size, true
	case spuReg(ch, spuDirOff):
		return s.dir, true
	case spuReg(ch, spuExtOff):
		return s.extAddr, true
	case spuReg(ch, spuSH4Off):
		return s.sh4Addr, true
	}
	return 0, false
}

func (b *Bus) writeSPUChannelReg(ch int, reg uint32, val uint32) bool {
	s := &b.spu[ch]
	switch reg {
	case spuReg(ch, spuCtl1Off):
		s.ctl1 = val
		b.maybeStartSPUDMA(ch)
		return true
	case spuReg(ch, spuCtl2Off):
		s.ctl2 = val
		b.maybeStartSPUDMA(ch)
		return true
	case spuReg(ch, spuSizOff):
		s.size = val
		return true
	case spuReg(ch, spuDirOff):
		s.dir = val
		return true
	case spuReg(ch, spuExtOff):
		s.extAddr = val
		return true
	case spuReg(ch, spuSH4Off):
		s.sh4Addr = val
		return true
	}
	return false
}

// maybeStartSPUDMA fires the channel's transfer once both control bits are
// set (spec §4.6 "G2 DMA"), moving size bytes between SH4 memory and the
// external (AICA) memory in the direction given by dir, then raising
// EVENT_SPU_DMA<ch> and clearing the control bits so a poll loop observes
// completion. The bytes are copied between SH4 memory and the AICA side
// through the ExternalMemory the bus was given; with either memory unset,
// no bytes move and only the event and the control bits change.
func (b *Bus) maybeStartSPUDMA(ch int) {
	s := &b.spu[ch]
	if s.ctl1&1 == 0 || s.ctl2&1 == 0 {
		return
	}
	if b.mem != nil && b.arm7Mem != nil {
		buf := make([]byte, s.size)
		if s.dir&1 == 0 { // SH4 -> external
			for i := range buf {
				buf[i] = b.mem.ReadByteDirect(s.sh4Addr + uint32(i))
			}
			b.arm7Mem.WriteBulk(s.extAddr, buf)
		} else { // external -> SH4
			b.arm7Mem.ReadBulk(s.extAddr, buf)
			for i, v := range buf {
				b.mem.WriteByteDirect(s.sh4Addr+uint32(i), v)
			}
		}
	}
	s.ctl1, s.ctl2 = 0, 0
	b.raiseEventLocked(eventSPUDMA0 + ch)
}

// maybeStartIDEDMA fires a bulk GD-ROM read once both IDE DMA control bits
// are set, reporting the actual transferred size back through
// ideDMATxSiz (spec §4.6 "IDE DMA").
func (b *Bus) maybeStartIDEDMA() {
	if b.ideDMACtl1&1 == 0 || b.ideDMACtl2&1 == 0 {
		return
	}
	var got uint32
	if b.ideDevice != nil {
		got = b.ideDevice.ReadData(b.ideDMADest, b.ideDMASiz)
	}
	b.ideDMATxSiz = got
	b.ideDMACtl1, b.ideDMACtl2 = 0, 0
	b.raiseEventLocked(eventIDEDMA)
}

// ExternalMemory is the AICA-side collaborator for G2 (SPU) DMA: a flat
// byte-addressable window, satisfied by internal/arm7.Window.
type ExternalMemory interface {
	ReadBulk(addr uint32, dst []byte)
	WriteBulk(addr uint32, src []byte)
}

// SetARM7Memory attaches the AICA sound-RAM window G2 DMA channels copy
// to/from.
func (b *Bus) SetARM7Memory(m ExternalMemory) { b.arm7Mem = m }
