package sh4

import (
	"encoding/binary"
	"sort"
)

// MMUVMAError is the sentinel returned by VMAToPhysRead/Write on translation
// failure (spec §4.1). Physical addresses are 29-bit, so the top 3 bits
// being set is never a valid result.
const MMUVMAError = 0xFFFFFFFF

// MMUCR bit enabling address translation.
const mmucrAT = 1 << 0

// tlbEntry is one UTLB/ITLB slot. The baseline implementation models a
// single combined store rather than separate 64-entry UTLB / 4-entry ITLB
// arrays, since the spec only requires the two translation entry points and
// their miss/protection behavior, not associativity-accurate timing.
type tlbEntry struct {
	valid     bool
	vpn       uint32 // virtual page number (addr >> 12)
	ppn       uint32 // physical page number
	writable  bool
	userOK    bool
	cacheable bool
}

// MMU models the SH4 translation-lookaside buffer plus the MMUCR enable
// bit. It exposes the two entry points named in spec §4.1.
type MMU struct {
	enabled bool
	entries map[uint32]tlbEntry // keyed by vpn
}

// NewMMU returns a disabled MMU with an empty TLB.
func NewMMU() *MMU {
	return &MMU{entries: make(map[uint32]tlbEntry)}
}

// SetEnabled toggles translation (MMUCR.AT). Toggling invalidates no
// entries by itself; callers are expected to also invalidate the
// translation cache on a state transition per spec §4.5.
func (m *MMU) SetEnabled(on bool) { m.enabled = on }

// Enabled reports whether the MMU currently translates addresses.
func (m *MMU) Enabled() bool { return m.enabled }

// Map installs (or replaces) a UTLB entry mapping a 4KiB virtual page to a
// physical page.
func (m *MMU) Map(vpn, ppn uint32, writable, userOK, cacheable bool) {
	m.entries[vpn] = tlbEntry{valid: true, vpn: vpn, ppn: ppn, writable: writable, userOK: userOK, cacheable: cacheable}
}

// Unmap removes a UTLB entry. No instruction handler calls it; LDTLB is a
// no-op in the interpreter.
func (m *MMU) Unmap(vpn uint32) { delete(m.entries, vpn) }

// Flush clears every TLB entry.
func (m *MMU) Flush() { m.entries = make(map[uint32]tlbEntry) }

func (m *MMU) translate(addr uint32, write, privileged bool) (uint32, *Exception) {
	vpn := addr >> 12
	e, ok := m.entries[vpn]
	if !ok || !e.valid {
		k := KindTLBMiss
		return MMUVMAError, &Exception{Kind: k, Address: addr}
	}
	if !privileged && !e.userOK {
		return MMUVMAError, &Exception{Kind: KindTLBProtection, Address: addr}
	}
	if write && !e.writable {
		return MMUVMAError, &Exception{Kind: KindTLBModification, Address: addr}
	}
	return (e.ppn << 12) | (addr & 0xFFF), nil
}

// VMAToPhysRead resolves a virtual address for a read access. Returns
// MMUVMAError and a non-nil exception on failure.
func (m *MMU) VMAToPhysRead(addr uint32, privileged bool) (uint32, *Exception) {
	if !m.enabled {
		return addr, nil
	}
	return m.translate(addr, false, privileged)
}

// VMAToPhysWrite resolves a virtual address for a write access.
func (m *MMU) VMAToPhysWrite(addr uint32, privileged bool) (uint32, *Exception) {
	if !m.enabled {
		return addr, nil
	}
	return m.translate(addr, true, privileged)
}

// mmuEntrySize is the on-disk width of one serialized tlbEntry (spec §6's
// "MMU... dump its state" module, distinct from the SH4 register file's
// own Save/Load).
const mmuEntrySize = 4 /* vpn */ + 4 /* ppn */ + 1 /* flags */

// Save dumps the enable bit plus every TLB entry, sorted by VPN so the
// round-trip property (spec §8) holds regardless of map iteration order.
func (m *MMU) Save() []byte {
	vpns := make([]uint32, 0, len(m.entries))
	for vpn := range m.entries {
		vpns = append(vpns, vpn)
	}
	sort.Slice(vpns, func(i, j int) bool { return vpns[i] < vpns[j] })

	buf := make([]byte, 5+4+len(vpns)*mmuEntrySize)
	if m.enabled {
		buf[0] = 1
	}
	binary.LittleEndian.PutUint32(buf[1:], uint32(len(vpns)))
	o := 5
	for _, vpn := range vpns {
		e := m.entries[vpn]
		binary.LittleEndian.PutUint32(buf[o:], e.vpn)
		binary.LittleEndian.PutUint32(buf[o+4:], e.ppn)
		var flags byte
		if e.writable {
			flags |= 1
		}
		if e.userOK {
			flags |= 2
		}
		if e.cacheable {
			flags |= 4
		}
		buf[o+8] = flags
		o += mmuEntrySize
	}
	return buf
}

// Load restores state written by Save.
func (m *MMU) Load(buf []byte) {
	m.enabled = buf[0] != 0
	count := binary.LittleEndian.Uint32(buf[1:])
	m.entries = make(map[uint32]tlbEntry, count)
	o := 5
	for i := uint32(0); i < count; i++ {
		vpn := binary.LittleEndian.Uint32(buf[o:])
		ppn := binary.LittleEndian.Uint32(buf[o+4:])
		flags := buf[o+8]
		m.entries[vpn] = tlbEntry{
			valid:     true,
			vpn:       vpn,
			ppn:       ppn,
			writable:  flags&1 != 0,
			userOK:    flags&2 != 0,
			cacheable: flags&4 != 0,
		}
		o += mmuEntrySize
	}
}
