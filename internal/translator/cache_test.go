package translator

import (
	"testing"

	"github.com/dreamon-emu/sh4core/internal/memmap"
	"github.com/dreamon-emu/sh4core/internal/sh4"
)

// newTestCore wires a Core onto a small RAM region, for compiling blocks
// without touching any architecture-specific native execution path — every
// assertion here stays at the Compile/Lookup/Invalidate level, which only
// ever builds byte buffers (arena.alloc) and never calls callNative.
func newTestCore(t *testing.T) (*sh4.Core, *memmap.Bus) {
	t.Helper()
	bus := memmap.NewBus()
	bus.MapRegion(memmap.NewRAM("ram", 0x0C000000, 0x10000))
	core := sh4.NewCore(bus)
	core.Reset()
	return core, bus
}

func writeOp(t *testing.T, bus *memmap.Bus, addr uint32, op uint16) {
	t.Helper()
	if err := bus.WriteWord(addr, op, false); err != nil {
		t.Fatalf("WriteWord(%#x, %#x): %v", addr, op, err)
	}
}

// A run of NOPs followed by RTS compiles to a single block whose segments
// span exactly the instructions covered (spec §4.4 tier-0 compiler shape).
func TestCompileCoversInlineAndFallbackOps(t *testing.T) {
	core, bus := newTestCore(t)
	const base = uint32(0x0C001000)
	writeOp(t, bus, base+0, 0x0009) // NOP, inlined
	writeOp(t, bus, base+2, 0x0009) // NOP, inlined
	writeOp(t, bus, base+4, 0x000B) // RTS, block terminator, interpreted

	cache, err := NewCache()
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	defer cache.Close()

	block, err := cache.Lookup(core, base)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if block.StartPC != base {
		t.Fatalf("StartPC = %#x, want %#x", block.StartPC, base)
	}
	if block.EndPC != base+6 {
		t.Fatalf("EndPC = %#x, want %#x (RTS ends the block without consuming a slot beyond it)", block.EndPC, base+6)
	}
}

// A second Lookup for the same PC returns the identical cached Block
// instance rather than recompiling (spec §4.5).
func TestLookupReusesCachedBlock(t *testing.T) {
	core, bus := newTestCore(t)
	const base = uint32(0x0C002000)
	writeOp(t, bus, base, 0x000B) // RTS

	cache, err := NewCache()
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	defer cache.Close()

	first, err := cache.Lookup(core, base)
	if err != nil {
		t.Fatal(err)
	}
	second, err := cache.Lookup(core, base)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("Lookup recompiled instead of returning the cached block")
	}
}

// Translation cache soundness (spec §8 TESTABLE PROPERTIES): after a write
// invalidates the page a block lives on, no subsequent Lookup for any PC in
// that block returns the stale pointer — it is recompiled fresh instead.
func TestInvalidateDropsStaleBlock(t *testing.T) {
	core, bus := newTestCore(t)
	const base = uint32(0x0C003000)
	writeOp(t, bus, base, 0x000B) // RTS

	cache, err := NewCache()
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	defer cache.Close()

	stale, err := cache.Lookup(core, base)
	if err != nil {
		t.Fatal(err)
	}

	cache.Invalidate(base, 2)

	fresh, err := cache.Lookup(core, base)
	if err != nil {
		t.Fatal(err)
	}
	if fresh == stale {
		t.Fatalf("Lookup returned the stale block after its page was invalidated")
	}
}

// A write to an address outside a block's span leaves that block cached.
func TestInvalidateLeavesUnrelatedBlocksCached(t *testing.T) {
	core, bus := newTestCore(t)
	const base = uint32(0x0C004000)
	writeOp(t, bus, base, 0x000B) // RTS

	cache, err := NewCache()
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	defer cache.Close()

	block, err := cache.Lookup(core, base)
	if err != nil {
		t.Fatal(err)
	}

	cache.Invalidate(base+0x1000, 4)

	again, err := cache.Lookup(core, base)
	if err != nil {
		t.Fatal(err)
	}
	if again != block {
		t.Fatalf("unrelated write invalidated a block outside its range")
	}
}

// Block.Overlaps is the primitive Invalidate relies on; exercise it directly
// against the half-open ranges spec §4.5 describes.
func TestBlockOverlaps(t *testing.T) {
	b := &Block{StartPC: 0x1000, EndPC: 0x1008}
	cases := []struct {
		addr, size uint32
		want       bool
	}{
		{0x0FF0, 0x10, false}, // range ends exactly at StartPC, half-open so no overlap
		{0x1000, 0x2, true},   // exactly at start
		{0x1006, 0x4, true},   // straddles EndPC
		{0x1008, 0x4, false},  // starts exactly at EndPC, no overlap
		{0x0800, 0x10, false}, // entirely before
	}
	for _, c := range cases {
		if got := b.Overlaps(c.addr, c.size); got != c.want {
			t.Fatalf("Overlaps(%#x, %#x) = %v, want %v", c.addr, c.size, got, c.want)
		}
	}
}

// recoverSH4PC maps a segment index back to the SH4 PC it was compiled
// from, used by the exception recovery path when a fault lands mid-block.
func TestRecoverSH4PC(t *testing.T) {
	core, bus := newTestCore(t)
	const base = uint32(0x0C005000)
	writeOp(t, bus, base+0, 0x0009) // NOP
	writeOp(t, bus, base+2, 0x0009) // NOP
	writeOp(t, bus, base+4, 0x000B) // RTS

	cache, err := NewCache()
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	defer cache.Close()

	block, err := cache.Lookup(core, base)
	if err != nil {
		t.Fatal(err)
	}
	if got := block.recoverSH4PC(0); got != base {
		t.Fatalf("recoverSH4PC(0) = %#x, want %#x", got, base)
	}
	if got := block.recoverSH4PC(-1); got != block.StartPC {
		t.Fatalf("recoverSH4PC(-1) out of range should fall back to StartPC, got %#x", got)
	}
}

// AttachTo wires the cache as the bus's write observer: a write through the
// public memory API invalidates a compiled block the same way a direct
// Invalidate call does.
func TestAttachToInvalidatesOnBusWrite(t *testing.T) {
	core, bus := newTestCore(t)
	const base = uint32(0x0C006000)
	writeOp(t, bus, base, 0x000B) // RTS

	cache, err := NewCache()
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	defer cache.Close()
	cache.AttachTo(bus)

	stale, err := cache.Lookup(core, base)
	if err != nil {
		t.Fatal(err)
	}

	if err := bus.WriteWord(base, 0x0009, false); err != nil { // self-modifying write
		t.Fatal(err)
	}

	fresh, err := cache.Lookup(core, base)
	if err != nil {
		t.Fatal(err)
	}
	if fresh == stale {
		t.Fatalf("self-modifying write through the bus did not invalidate the cached block")
	}
}
