// Package elfloader parses an in-memory ELF image and copies its loadable
// segments into guest memory. It is a collaborator, not core: spec §6 says
// only "parses an ELF image, enumerates PT_LOAD segments, copies filesz
// bytes from file offset to virtual address vaddr, zero-fills
// [filesz, memsz)". No third-party ELF library appears anywhere in the
// example pack, and the standard library's debug/elf already does exactly
// this job, so this package is justified stdlib use (see DESIGN.md).
package elfloader

import (
	"bytes"
	"debug/elf"
	"fmt"

	"github.com/rvjit/rvjit/mem"
)

// Load parses data as an ELF image, copies every PT_LOAD segment into m at
// its virtual address (zero-filling the tail between filesz and memsz), and
// returns the image's entry point.
func Load(m *mem.Memory, data []byte) (entry uint64, err error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("elfloader: parse: %w", err)
	}
	defer f.Close()

	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if err := loadSegment(m, prog, data); err != nil {
			return 0, err
		}
	}
	return f.Entry, nil
}

func loadSegment(m *mem.Memory, prog *elf.Prog, data []byte) error {
	start := prog.Off
	end := start + prog.Filesz
	if end > uint64(len(data)) {
		return fmt.Errorf("elfloader: segment file range [%d,%d) exceeds image size %d", start, end, len(data))
	}
	seg := data[start:end]
	m.LoadBytes(prog.Vaddr, seg)

	if prog.Memsz > prog.Filesz {
		zeroLen := prog.Memsz - prog.Filesz
		zeroStart := prog.Vaddr + prog.Filesz
		for i := uint64(0); i < zeroLen; i++ {
			m.WriteByte(zeroStart+i, 0)
		}
	}
	return nil
}
