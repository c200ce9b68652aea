package memmap

// NewRAM allocates a read/write region backed by a zeroed byte slice,
// mirroring the teacher's NewSystemBus main-memory allocation
// (memory_bus.go) but scoped to an arbitrary physical span instead of a
// single flat 16MB block.
func NewRAM(name string, start, size uint32) *Region {
	return &Region{Start: start, End: start + size - 1, Name: name, Data: make([]byte, size)}
}

// NewROM wraps a pre-loaded image as a read-only region.
func NewROM(name string, start uint32, image []byte) *Region {
	return &Region{Start: start, End: start + uint32(len(image)) - 1, Name: name, Data: image, ReadOnly: true}
}

// NewMMIO registers a byte-addressable MMIO window with explicit
// byte-granularity callbacks (spec §4.2: "a shadow array plus two function
// pointers"). Every MMIO device in this module is mapped through it:
// internal/arm7 splices bytes into its window directly, and
// internal/asic.Bus layers its 32-bit-register-keyed dispatch on top of
// these byte callbacks.
func NewMMIO(name string, start, end uint32, read func(offset uint32) uint8, write func(offset uint32, v uint8)) *Region {
	return &Region{Start: start, End: end, Name: name, ReadByte: read, WriteByte: write}
}
