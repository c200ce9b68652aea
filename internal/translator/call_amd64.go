//go:build amd64

package translator

// callNative is implemented in call_amd64.s: it calls into a compiled
// segment's raw machine code with the *sh4.Registers pointer pre-loaded
// into the register amd64Backend's emitted accesses expect.
func callNative(code uintptr, regs uintptr)
