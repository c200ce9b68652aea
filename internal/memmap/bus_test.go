package memmap

import "testing"

func newTestBus() *Bus {
	b := NewBus()
	b.MapRegion(NewRAM("ram", 0x0C000000, 0x1000))
	return b
}

// spec §4.1: byte accesses never fault on alignment; word/long/quad do.
func TestAlignmentFaults(t *testing.T) {
	b := newTestBus()

	if _, err := b.ReadByte(0x0C000001, false); err != nil {
		t.Fatalf("byte read at odd address faulted: %v", err)
	}
	if _, err := b.ReadWord(0x0C000001, false); err == nil {
		t.Fatalf("word read at odd address did not fault")
	}
	if _, err := b.ReadLong(0x0C000002, false); err == nil {
		t.Fatalf("long read at address with bit 1 set did not fault")
	}
	if _, err := b.ReadQuad(0x0C000004, false); err == nil {
		t.Fatalf("quad read at address with bit 2 set did not fault")
	}
	if _, err := b.ReadLong(0x0C000004, false); err != nil {
		t.Fatalf("long read at long-aligned address faulted: %v", err)
	}
}

// Round-trips a value through each access width.
func TestReadWriteRoundTrip(t *testing.T) {
	b := newTestBus()
	if err := b.WriteLong(0x0C000010, 0xDEADBEEF, false); err != nil {
		t.Fatal(err)
	}
	got, err := b.ReadLong(0x0C000010, false)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0xDEADBEEF {
		t.Fatalf("got %#08x, want 0xDEADBEEF", got)
	}

	if err := b.WriteWord(0x0C000020, 0xBEEF, false); err != nil {
		t.Fatal(err)
	}
	gotW, err := b.ReadWord(0x0C000020, false)
	if err != nil {
		t.Fatal(err)
	}
	if gotW != 0xBEEF {
		t.Fatalf("got %#04x, want 0xBEEF", gotW)
	}
}

// Cached/uncached P0/P1/P2 aliases collapse to the same physical bytes
// (spec §4.1): a write through one alias is visible through another.
func TestCacheAliasCollapse(t *testing.T) {
	b := newTestBus()
	const physOffset = 0x0C000000
	if err := b.WriteLong(0x8C000000+0x04, 0x11223344, false); err != nil { // P1 cached alias
		t.Fatal(err)
	}
	got, err := b.ReadLong(0xAC000000+0x04, false) // P2 uncached alias
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x11223344 {
		t.Fatalf("alias collapse failed: got %#08x", got)
	}
	_ = physOffset
}

// spec §8 scenario 6 / §4.1 store queue: 32 bytes written to a queue then
// flushed via PREF land at (QACRx<<24)|(addr&0x03FFFFE0).
func TestStoreQueueFlush(t *testing.T) {
	b := newTestBus()
	b.MapRegion(NewRAM("vram", 0x1C000000, 0x100))
	b.SetQACR(0, 0x1C)

	const base = uint32(0xE0000000)
	for i := uint32(0); i < 32; i++ {
		if err := b.WriteByte(base+i, uint8(i), false); err != nil {
			t.Fatal(err)
		}
	}
	b.FlushStoreQueue(base)

	for i := uint32(0); i < 32; i++ {
		got := b.ReadByteDirect(0x1C000000 + i)
		if got != uint8(i) {
			t.Fatalf("byte %d at flushed destination = %#02x, want %#02x", i, got, i)
		}
	}
}

// MMIO reads/writes dispatch through the region's callbacks with the
// region-local offset, not the absolute address (spec §4.2).
func TestMMIODispatch(t *testing.T) {
	b := NewBus()
	var shadow [16]uint8
	b.MapRegion(NewMMIO("dev", 0x00500000, 0x00500FFF,
		func(off uint32) uint8 { return shadow[off] },
		func(off uint32, v uint8) { shadow[off] = v },
	))

	if err := b.WriteByte(0x00500005, 0x42, false); err != nil {
		t.Fatal(err)
	}
	if shadow[5] != 0x42 {
		t.Fatalf("shadow[5] = %#02x, want 0x42", shadow[5])
	}
	got, err := b.ReadByte(0x00500005, false)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x42 {
		t.Fatalf("got %#02x, want 0x42", got)
	}
}

// A read-only region silently discards writes instead of faulting (spec
// §4.1 "write to read-only region is silently ignored").
func TestReadOnlyRegionIgnoresWrites(t *testing.T) {
	b := NewBus()
	image := []byte{1, 2, 3, 4}
	b.MapRegion(NewROM("rom", 0x00000000, image))

	if err := b.WriteByte(0x00000000, 0xFF, false); err != nil {
		t.Fatal(err)
	}
	got, err := b.ReadByte(0x00000000, false)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Fatalf("ROM byte changed by write: got %#02x, want 1", got)
	}
}

// A read from unmapped space returns zero rather than faulting, matching
// spec §4.1's "read from write-only MMIO returns zero or a region-specific
// value" baseline for completely unmapped addresses.
func TestUnmappedReadReturnsZero(t *testing.T) {
	b := NewBus()
	got, err := b.ReadByte(0x77777777, false)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Fatalf("got %#02x, want 0", got)
	}
}

// WriteObserver fires with the physical address and width on every
// successful write, which is how internal/translator invalidates stale
// compiled blocks (spec §4.5).
func TestWriteObserverFires(t *testing.T) {
	b := newTestBus()
	var sawAddr, sawSize uint32
	b.SetWriteObserver(func(addr, size uint32) { sawAddr, sawSize = addr, size })

	if err := b.WriteLong(0x0C000040, 0, false); err != nil {
		t.Fatal(err)
	}
	if sawAddr != 0x0C000040 || sawSize != 4 {
		t.Fatalf("observer saw (%#08x, %d), want (%#08x, 4)", sawAddr, sawSize, 0x0C000040)
	}
}
