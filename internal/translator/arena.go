package translator

// arenaSize is the size of the single executable arena each Compiler
// allocates. The arena is neither grown nor reclaimed while the Compiler
// lives: once it is full, Compile emits no further native segments.
const arenaSize = 1 << 20 // 1MB

// codeArena is one executable memory region blocks are emitted into.
// allocExecutable/freeExecutable are supplied per-OS (arena_unix.go,
// arena_other.go) since making pages executable is inherently a syscall,
// not a language feature.
type codeArena struct {
	mem  []byte
	used int
}

func newCodeArena() (*codeArena, error) {
	mem, err := allocExecutable(arenaSize)
	if err != nil {
		return nil, err
	}
	return &codeArena{mem: mem}, nil
}

// alloc copies code into the arena and returns the slice backing it
// (still pointing at executable memory) along with its base address as
// a uintptr, or ok=false if the arena is full.
func (a *codeArena) alloc(code []byte) (base uintptr, slice []byte, ok bool) {
	if a.used+len(code) > len(a.mem) {
		return 0, nil, false
	}
	dst := a.mem[a.used : a.used+len(code)]
	copy(dst, code)
	base = arenaBaseAddr(a.mem) + uintptr(a.used)
	a.used += len(code)
	return base, dst, true
}

func (a *codeArena) reset() { a.used = 0 }

func (a *codeArena) close() error { return freeExecutable(a.mem) }
