//go:build unix

package translator

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// allocExecutable maps a fresh anonymous RWX region for code emission.
// Mapping RW+X together (rather than RW then mprotect to RX) keeps the
// arena simple; spec §4.5 doesn't require W^X hardening, only a working
// translation cache.
func allocExecutable(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC, unix.MAP_PRIVATE|unix.MAP_ANON)
}

func freeExecutable(mem []byte) error {
	return unix.Munmap(mem)
}

func arenaBaseAddr(mem []byte) uintptr {
	if len(mem) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&mem[0]))
}
