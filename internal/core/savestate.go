package core

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Save-state file format (spec §6): a 16-byte magic, a 4-byte
// little-endian version, then each registered module's raw dump
// concatenated in registration order with no chunk framing — a reader
// must register the same modules in the same order to resynchronize.
var saveStateMagic = [16]byte{'%', '!', '-', 'D', 'r', 'e', 'a', 'm', 'O', 'n', '!', 'S', 'a', 'v', 'e', 0}

const saveStateVersion uint32 = 0x00010000

// SaveState writes the full machine snapshot to w per spec §6.
func (m *Machine) SaveState(w io.Writer) error {
	if _, err := w.Write(saveStateMagic[:]); err != nil {
		return err
	}
	var verBuf [4]byte
	binary.LittleEndian.PutUint32(verBuf[:], saveStateVersion)
	if _, err := w.Write(verBuf[:]); err != nil {
		return err
	}
	for _, mod := range m.modules {
		if _, err := w.Write(mod.Save()); err != nil {
			return fmt.Errorf("save-state: writing module %q: %w", mod.Name(), err)
		}
	}
	return nil
}

// LoadState reads a snapshot written by SaveState. Modules must have been
// registered in the exact order they were saved (spec §6: "no chunk
// framing; readers must register modules in the same order they were
// written"); a version mismatch fails the load without touching any
// module state.
func (m *Machine) LoadState(r io.Reader) error {
	var header [20]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return fmt.Errorf("save-state: reading header: %w", err)
	}
	if [16]byte(header[:16]) != saveStateMagic {
		return fmt.Errorf("save-state: bad magic")
	}
	version := binary.LittleEndian.Uint32(header[16:20])
	if version != saveStateVersion {
		return fmt.Errorf("save-state: unsupported version %#08x (want %#08x)", version, saveStateVersion)
	}

	// Every module's dump is a fixed size known only by calling Save once;
	// read module-by-module using that length as the chunk boundary, since
	// the format carries no explicit framing of its own.
	for _, mod := range m.modules {
		size := len(mod.Save())
		buf := make([]byte, size)
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("save-state: reading module %q: %w", mod.Name(), err)
		}
		if err := mod.Load(buf); err != nil {
			return fmt.Errorf("save-state: loading module %q: %w", mod.Name(), err)
		}
	}
	return nil
}
