// Package memmap implements the SH4 unified address space: region
// decoding, the P0-P4 cache-alias collapse to a 29-bit physical address,
// MMIO dispatch, and the store-queue fast path used by both the
// interpreter and translated code (spec §4.1/§4.2).
package memmap

import (
	"encoding/binary"
	"math"
	"sync"
)

// Fault mirrors the subset of sh4.Exception kinds that originate from the
// memory map itself (alignment, unmapped access). Kept as its own type so
// this package has no import-cycle dependency on internal/sh4; the SH4
// interpreter translates a Fault into an sh4.Exception at the call site.
type Fault struct {
	Kind    FaultKind
	Address uint32
}

func (f *Fault) Error() string { return "memmap fault" }

// FaultKind enumerates the error taxonomy this package can raise.
type FaultKind int

const (
	FaultAddressErrorRead FaultKind = iota
	FaultAddressErrorWrite
)

// Translator resolves a virtual address to a physical one, or reports
// MMU failure. internal/sh4.MMU satisfies this via a thin adapter so the
// bus never imports internal/sh4 directly.
type Translator interface {
	VMAToPhysRead(addr uint32, privileged bool) (uint32, bool)
	VMAToPhysWrite(addr uint32, privileged bool) (uint32, bool)
}

// MMUMissError is returned by the Read/Write helpers when the Translator
// reports a miss; the bus itself does not know the SH4 exception vector.
type MMUMissError struct {
	Write   bool
	Address uint32
}

func (e *MMUMissError) Error() string { return "mmu translation miss" }

const (
	regionMaskBits = 29
	physMask       = (1 << regionMaskBits) - 1
)

// Region is one physically mapped span of the address space: RAM/ROM
// (backed by a byte slice) or MMIO (backed by read/write callbacks),
// following the teacher's IORegion shape (memory_bus.go) generalized to
// byte/word/long/quad access and to a physical rather than flat space.
type Region struct {
	Start, End uint32 // inclusive physical bounds
	Name       string

	// RAM/ROM backing. ReadOnly true means writes are silently dropped.
	Data     []byte
	ReadOnly bool

	// MMIO backing; nil Data implies an MMIO region using these callbacks.
	// Matches the teacher's onRead/onWrite pair (memory_bus.go IORegion).
	ReadByte  func(offset uint32) uint8
	WriteByte func(offset uint32, v uint8)
}

func (r *Region) isMMIO() bool { return r.Data == nil }

// Bus is the unified SH4 memory map. A sync.RWMutex guards the region list
// only, mirroring the teacher's SystemBus.mutex; it is released once the
// target region is found, so RAM contents are read and written and MMIO
// callbacks are invoked without holding it (the callback itself is
// responsible for its own internal synchronization, exactly as
// coprocessor_manager.go's HandleRead/HandleWrite guard themselves).
type Bus struct {
	mu      sync.RWMutex
	regions []*Region

	storeQueue   [2][32]byte
	qacr         [2]uint32
	sqFlush      func(physAddr uint32, data []byte)
	translator   Translator
	privileged   func() bool
	writeObserver func(physAddr, size uint32)
}

// SetWriteObserver installs a callback invoked after every successful write
// with the physical address and byte count touched. The translator wires
// this to Cache.Invalidate so a self-modifying write can never leave a
// stale compiled block behind (spec §4.5 "invalidate-on-write"); nil by
// default, since most callers of this package never compile native code.
func (b *Bus) SetWriteObserver(f func(physAddr, size uint32)) { b.writeObserver = f }

// NewBus returns an empty bus. Regions must be registered with MapRegion
// before use.
func NewBus() *Bus {
	return &Bus{privileged: func() bool { return true }}
}

// SetTranslator installs the MMU translation hook used when the caller
// indicates MMU-on access via ReadX/WriteX's mmuOn parameter.
func (b *Bus) SetTranslator(t Translator) { b.translator = t }

// SetPrivilegeFunc installs a callback reporting whether the current
// accessor is privileged, consulted only for MMU protection checks.
func (b *Bus) SetPrivilegeFunc(f func() bool) { b.privileged = f }

// SetStoreQueueFlush installs the callback PREF uses to flush a 32-byte
// store queue to its target physical address (spec §4.1).
func (b *Bus) SetStoreQueueFlush(f func(physAddr uint32, data []byte)) { b.sqFlush = f }

// MapRegion registers a new region of the physical address space. Regions
// must not overlap; later registrations take precedence on overlap (mirrors
// the teacher's append-only IORegion list combined with first-match scan).
func (b *Bus) MapRegion(r *Region) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.regions = append(b.regions, r)
}

// PhysicalAddress collapses an SH4 virtual address through the P0-P4 alias
// scheme to a 29-bit physical address. P0/P1/P3 are cacheable mirrors of
// the same physical space as P2/P4 (uncached); the low 29 bits always name
// the same physical byte regardless of which segment addressed it.
func PhysicalAddress(vaddr uint32) uint32 {
	return vaddr & physMask
}

func (b *Bus) findRegion(phys uint32) *Region {
	for i := len(b.regions) - 1; i >= 0; i-- {
		r := b.regions[i]
		if phys >= r.Start && phys <= r.End {
			return r
		}
	}
	return nil
}

func (b *Bus) resolve(vaddr uint32, write, mmuOn bool) (uint32, error) {
	if mmuOn && b.translator != nil {
		var phys uint32
		var ok bool
		if write {
			phys, ok = b.translator.VMAToPhysWrite(vaddr, b.privileged())
		} else {
			phys, ok = b.translator.VMAToPhysRead(vaddr, b.privileged())
		}
		if !ok {
			return 0, &MMUMissError{Write: write, Address: vaddr}
		}
		return PhysicalAddress(phys), nil
	}
	return PhysicalAddress(vaddr), nil
}

// ReadByte never faults on alignment (spec §4.1: byte ops never fault).
// Store-queue addresses (spec §4.1) are P4 control-space, not part of the
// P0-P3 cacheable/physical alias system, so they are recognized on the
// raw virtual address before any physical-address masking or MMU lookup.
func (b *Bus) ReadByte(vaddr uint32, mmuOn bool) (uint8, error) {
	if IsStoreQueueAddress(vaddr) {
		return b.readStoreQueueByte(vaddr), nil
	}
	phys, err := b.resolve(vaddr, false, mmuOn)
	if err != nil {
		return 0, err
	}
	return b.readByteAt(phys), nil
}

func (b *Bus) readByteAt(phys uint32) uint8 {
	b.mu.RLock()
	r := b.findRegion(phys)
	b.mu.RUnlock()
	if r == nil {
		return 0
	}
	off := phys - r.Start
	if r.isMMIO() {
		if r.ReadByte == nil {
			return 0
		}
		return r.ReadByte(off)
	}
	if int(off) >= len(r.Data) {
		return 0
	}
	return r.Data[off]
}

// WriteByte never faults on alignment.
func (b *Bus) WriteByte(vaddr uint32, v uint8, mmuOn bool) error {
	if IsStoreQueueAddress(vaddr) {
		b.writeStoreQueueByte(vaddr, v)
		return nil
	}
	phys, err := b.resolve(vaddr, true, mmuOn)
	if err != nil {
		return err
	}
	b.writeByteAt(phys, v)
	if b.writeObserver != nil {
		b.writeObserver(phys, 1)
	}
	return nil
}

func (b *Bus) writeByteAt(phys uint32, v uint8) {
	b.mu.RLock()
	r := b.findRegion(phys)
	b.mu.RUnlock()
	if r == nil {
		return
	}
	off := phys - r.Start
	if r.isMMIO() {
		if r.WriteByte != nil {
			r.WriteByte(off, v)
		}
		return
	}
	if r.ReadOnly || int(off) >= len(r.Data) {
		return
	}
	r.Data[off] = v
}

// ReadWord reads a 16-bit little-endian value. addr bit 0 set is a
// misaligned access (spec §4.1).
func (b *Bus) ReadWord(vaddr uint32, mmuOn bool) (uint16, error) {
	if vaddr&1 != 0 {
		return 0, &Fault{Kind: FaultAddressErrorRead, Address: vaddr}
	}
	if IsStoreQueueAddress(vaddr) {
		lo := b.readStoreQueueByte(vaddr)
		hi := b.readStoreQueueByte(vaddr + 1)
		return uint16(lo) | uint16(hi)<<8, nil
	}
	phys, err := b.resolve(vaddr, false, mmuOn)
	if err != nil {
		return 0, err
	}
	lo := b.readByteAt(phys)
	hi := b.readByteAt(phys + 1)
	return uint16(lo) | uint16(hi)<<8, nil
}

// WriteWord writes a 16-bit little-endian value.
func (b *Bus) WriteWord(vaddr uint32, v uint16, mmuOn bool) error {
	if vaddr&1 != 0 {
		return &Fault{Kind: FaultAddressErrorWrite, Address: vaddr}
	}
	if IsStoreQueueAddress(vaddr) {
		b.writeStoreQueueByte(vaddr, uint8(v))
		b.writeStoreQueueByte(vaddr+1, uint8(v>>8))
		return nil
	}
	phys, err := b.resolve(vaddr, true, mmuOn)
	if err != nil {
		return err
	}
	b.writeByteAt(phys, uint8(v))
	b.writeByteAt(phys+1, uint8(v>>8))
	if b.writeObserver != nil {
		b.writeObserver(phys, 2)
	}
	return nil
}

// ReadLong reads a 32-bit little-endian value. addr bits 0-1 must be clear.
func (b *Bus) ReadLong(vaddr uint32, mmuOn bool) (uint32, error) {
	if vaddr&3 != 0 {
		return 0, &Fault{Kind: FaultAddressErrorRead, Address: vaddr}
	}
	if IsStoreQueueAddress(vaddr) {
		var buf [4]byte
		for i := range buf {
			buf[i] = b.readStoreQueueByte(vaddr + uint32(i))
		}
		return binary.LittleEndian.Uint32(buf[:]), nil
	}
	phys, err := b.resolve(vaddr, false, mmuOn)
	if err != nil {
		return 0, err
	}
	var buf [4]byte
	for i := 0; i < 4; i++ {
		buf[i] = b.readByteAt(phys + uint32(i))
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// WriteLong writes a 32-bit little-endian value.
func (b *Bus) WriteLong(vaddr uint32, v uint32, mmuOn bool) error {
	if vaddr&3 != 0 {
		return &Fault{Kind: FaultAddressErrorWrite, Address: vaddr}
	}
	if IsStoreQueueAddress(vaddr) {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], v)
		for i := range buf {
			b.writeStoreQueueByte(vaddr+uint32(i), buf[i])
		}
		return nil
	}
	phys, err := b.resolve(vaddr, true, mmuOn)
	if err != nil {
		return err
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	for i := 0; i < 4; i++ {
		b.writeByteAt(phys+uint32(i), buf[i])
	}
	if b.writeObserver != nil {
		b.writeObserver(phys, 4)
	}
	return nil
}

// ReadQuad reads a 64-bit little-endian value. addr bits 0-2 must be clear.
func (b *Bus) ReadQuad(vaddr uint32, mmuOn bool) (uint64, error) {
	if vaddr&7 != 0 {
		return 0, &Fault{Kind: FaultAddressErrorRead, Address: vaddr}
	}
	lo, err := b.ReadLong(vaddr, mmuOn)
	if err != nil {
		return 0, err
	}
	hi, err := b.ReadLong(vaddr+4, mmuOn)
	if err != nil {
		return 0, err
	}
	return uint64(hi)<<32 | uint64(lo), nil
}

// WriteQuad writes a 64-bit little-endian value.
func (b *Bus) WriteQuad(vaddr uint32, v uint64, mmuOn bool) error {
	if vaddr&7 != 0 {
		return &Fault{Kind: FaultAddressErrorWrite, Address: vaddr}
	}
	if err := b.WriteLong(vaddr, uint32(v), mmuOn); err != nil {
		return err
	}
	return b.WriteLong(vaddr+4, uint32(v>>32), mmuOn)
}

// ReadByteDirect/WriteByteDirect operate on a physical address with no
// alignment check and no MMU translation, for use by DMA engines (ASIC G2/
// IDE/PVR/Maple transfers) that move bytes between regions outside of any
// CPU instruction's addressing mode (spec §4.6).
func (b *Bus) ReadByteDirect(phys uint32) uint8 { return b.readByteAt(PhysicalAddress(phys)) }

func (b *Bus) WriteByteDirect(phys uint32, v uint8) {
	phys = PhysicalAddress(phys)
	b.writeByteAt(phys, v)
	if b.writeObserver != nil {
		b.writeObserver(phys, 1)
	}
}

// ReadFloat reads a 32-bit IEEE-754 single.
func (b *Bus) ReadFloat(vaddr uint32, mmuOn bool) (float32, error) {
	v, err := b.ReadLong(vaddr, mmuOn)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// WriteFloat writes a 32-bit IEEE-754 single.
func (b *Bus) WriteFloat(vaddr uint32, v float32, mmuOn bool) error {
	return b.WriteLong(vaddr, math.Float32bits(v), mmuOn)
}

// ReadDouble reads a 64-bit IEEE-754 double.
func (b *Bus) ReadDouble(vaddr uint32, mmuOn bool) (float64, error) {
	v, err := b.ReadQuad(vaddr, mmuOn)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// WriteDouble writes a 64-bit IEEE-754 double.
func (b *Bus) WriteDouble(vaddr uint32, v float64, mmuOn bool) error {
	return b.WriteQuad(vaddr, math.Float64bits(v), mmuOn)
}
