//go:build !amd64 && !386

package translator

// genericBackend backs the translator on host architectures the pack has
// no native-code-emission reference for (only amd64 and i386 backends
// exist in the corpus). It satisfies HostBackend without producing real
// machine code; since Bytes is always empty, Compiler.Compile degrades to
// "every instruction is interpreted" on this path, which is always
// correct, just not accelerated.
type genericBackend struct{ n int }

func newHostBackend() HostBackend { return &genericBackend{} }

func (g *genericBackend) Reset()                              { g.n = 0 }
func (g *genericBackend) Bytes() []byte                       { return nil }
func (g *genericBackend) EmitLoadReg(int)                     { g.n++ }
func (g *genericBackend) EmitStoreReg(int)                    { g.n++ }
func (g *genericBackend) EmitAddRegReg()                      { g.n++ }
func (g *genericBackend) EmitMovImm32(uint32)                 { g.n++ }
func (g *genericBackend) EmitNop()                             { g.n++ }
func (g *genericBackend) EmitReturn()                          { g.n++ }
func (g *genericBackend) PatchBranchTarget(int, int)          {}
