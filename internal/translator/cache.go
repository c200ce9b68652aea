package translator

import (
	"github.com/dreamon-emu/sh4core/internal/memmap"
	"github.com/dreamon-emu/sh4core/internal/sh4"
)

// Cache is the page-indexed translation cache described in spec §4.5: a
// lookup from SH4 start address to compiled Block, plus a coarser
// page-granularity index so a memory write can cheaply find every block
// it might have clobbered without scanning the whole cache.
type Cache struct {
	compiler *Compiler
	byAddr   map[uint32]*Block
	byPage   map[uint32][]uint32
}

// NewCache builds an empty cache backed by a fresh executable arena.
func NewCache() (*Cache, error) {
	compiler, err := NewCompiler()
	if err != nil {
		return nil, err
	}
	return &Cache{
		compiler: compiler,
		byAddr:   make(map[uint32]*Block),
		byPage:   make(map[uint32][]uint32),
	}, nil
}

func (c *Cache) Close() error { return c.compiler.Close() }

// AttachTo wires this cache's Invalidate as bus's write observer, so any
// store through the unified memory map (interpreter, DMA, ASIC) drops
// stale compiled blocks instead of leaving the cache serving translated
// code for memory that has since changed (spec §4.5).
func (c *Cache) AttachTo(bus *memmap.Bus) {
	bus.SetWriteObserver(c.Invalidate)
}

const pageShift = 12

// Lookup returns the cached block starting exactly at pc, compiling and
// inserting one if none exists yet.
func (c *Cache) Lookup(core *sh4.Core, pc uint32) (*Block, error) {
	if b, ok := c.byAddr[pc]; ok {
		return b, nil
	}
	b, err := c.compiler.Compile(core, pc)
	if err != nil {
		return nil, err
	}
	c.byAddr[pc] = b
	page := pc >> pageShift
	c.byPage[page] = append(c.byPage[page], pc)
	return b, nil
}

// Invalidate drops every cached block whose instruction span overlaps
// [addr, addr+size), called whenever the interpreter or ASIC DMA engine
// writes to code memory (spec §4.5: "invalidate-on-write").
func (c *Cache) Invalidate(addr, size uint32) {
	if size == 0 {
		return
	}
	startPage := addr >> pageShift
	endPage := (addr + size - 1) >> pageShift
	for page := startPage; page <= endPage; page++ {
		for _, startPC := range c.byPage[page] {
			if b, ok := c.byAddr[startPC]; ok && b.Overlaps(addr, size) {
				delete(c.byAddr, startPC)
			}
		}
		delete(c.byPage, page)
	}
}

// Run looks up (compiling if needed) and executes the block starting at
// core.Regs.PC, leaving PC at whatever address control flow landed on.
func (c *Cache) Run(core *sh4.Core) error {
	block, err := c.Lookup(core, core.Regs.PC)
	if err != nil {
		return err
	}
	return runBlock(core, block)
}
