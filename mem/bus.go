// Package mem implements the guest's byte-addressable memory: a sparse
// collection of 64 KiB pages allocated on first touch, plus an optional
// page-table translator sitting on top of it (see translate.go).
//
// Memory has no notion of guest instructions, registers, or traps. It is a
// Bus in the sense the teacher's NES bus was one: the thing every other
// component reaches through to read or write bytes.
package mem

const (
	// PageBits is the width of the page-offset field within a GVA.
	PageBits = 16
	// PageSize is the number of bytes in one page (64 KiB).
	PageSize = 1 << PageBits
	pageMask = PageSize - 1
)

// Memory is a sparse, page-allocated byte-addressable store. Pages are
// allocated on first write (or GetPage); unmapped reads yield zero and
// allocate nothing.
// Memory is not safe for concurrent use — the reactor is its only owner
// (spec §5: single-threaded, cooperative).
type Memory struct {
	pages map[uint64]*[PageSize]byte
}

// NewMemory returns a ready-to-use, empty Memory.
func NewMemory() *Memory {
	return &Memory{pages: make(map[uint64]*[PageSize]byte)}
}

func pageOf(addr uint64) uint64 { return addr >> PageBits }

// GetPage returns a writable handle to the page containing addr,
// allocating it on demand. Allocation is idempotent: repeated calls for
// addresses in the same page return the same backing array.
func (m *Memory) GetPage(addr uint64) *[PageSize]byte {
	if m.pages == nil {
		m.pages = make(map[uint64]*[PageSize]byte)
	}
	pn := pageOf(addr)
	p, ok := m.pages[pn]
	if !ok {
		p = &[PageSize]byte{}
		m.pages[pn] = p
	}
	return p
}

// pageIfMapped returns the page containing addr without allocating it.
func (m *Memory) pageIfMapped(addr uint64) (*[PageSize]byte, bool) {
	if m.pages == nil {
		return nil, false
	}
	p, ok := m.pages[pageOf(addr)]
	return p, ok
}

// ReadByte reads one byte at addr. An unmapped page reads as zero and is
// not allocated by the read.
func (m *Memory) ReadByte(addr uint64) byte {
	p, ok := m.pageIfMapped(addr)
	if !ok {
		return 0
	}
	return p[addr&pageMask]
}

// WriteByte writes one byte at addr, allocating the containing page first
// if necessary.
func (m *Memory) WriteByte(addr uint64, v byte) {
	p := m.GetPage(addr)
	p[addr&pageMask] = v
}

// Mapped reports whether the page containing addr has been allocated yet.
// It only observes allocation; no semantics depend on it.
func (m *Memory) Mapped(addr uint64) bool {
	_, ok := m.pageIfMapped(addr)
	return ok
}

// readN reads n little-endian bytes starting at addr as an unsigned
// integer. Reads may straddle a page boundary; each byte goes through
// ReadByte independently, so misalignment needs no special handling.
func (m *Memory) readN(addr uint64, n int) uint64 {
	var v uint64
	for i := 0; i < n; i++ {
		v |= uint64(m.ReadByte(addr+uint64(i))) << (8 * i)
	}
	return v
}

// writeN writes the low n bytes of v as a little-endian sequence starting
// at addr.
func (m *Memory) writeN(addr uint64, v uint64, n int) {
	for i := 0; i < n; i++ {
		m.WriteByte(addr+uint64(i), byte(v>>(8*i)))
	}
}

// Read8/16/32/64 and Write8/16/32/64 are the typed accesses the decoder,
// interpreter, and JIT actually use.
func (m *Memory) Read8(addr uint64) uint8   { return m.ReadByte(addr) }
func (m *Memory) Read16(addr uint64) uint16 { return uint16(m.readN(addr, 2)) }
func (m *Memory) Read32(addr uint64) uint32 { return uint32(m.readN(addr, 4)) }
func (m *Memory) Read64(addr uint64) uint64 { return m.readN(addr, 8) }

func (m *Memory) Write8(addr uint64, v uint8)   { m.WriteByte(addr, v) }
func (m *Memory) Write16(addr uint64, v uint16) { m.writeN(addr, uint64(v), 2) }
func (m *Memory) Write32(addr uint64, v uint32) { m.writeN(addr, uint64(v), 4) }
func (m *Memory) Write64(addr uint64, v uint64) { m.writeN(addr, v, 8) }

// LoadBytes copies data into memory starting at addr, a convenience used
// by the ELF loader and by tests that seed a program image directly
// (mirrors the teacher's Cpu.LoadProgram, generalized from a hex-string
// fixture format to raw bytes).
func (m *Memory) LoadBytes(addr uint64, data []byte) {
	for i, b := range data {
		m.WriteByte(addr+uint64(i), b)
	}
}
