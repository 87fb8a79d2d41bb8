package elfloader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvjit/rvjit/mem"
)

// buildMinimalELF hand-assembles the smallest valid little-endian 64-bit
// ELF image with one PT_LOAD segment, for loader testing without pulling in
// an external toolchain.
func buildMinimalELF(t *testing.T, vaddr uint64, payload []byte, memsz uint64, entry uint64) []byte {
	t.Helper()
	const ehsize = 64
	const phsize = 56
	phoff := uint64(ehsize)
	dataOff := phoff + phsize

	var buf bytes.Buffer
	buf.Write([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0})
	buf.Write(make([]byte, 8)) // padding

	write16 := func(v uint16) { binary.Write(&buf, binary.LittleEndian, v) }
	write32 := func(v uint32) { binary.Write(&buf, binary.LittleEndian, v) }
	write64 := func(v uint64) { binary.Write(&buf, binary.LittleEndian, v) }

	write16(uint16(elf.ET_EXEC))
	write16(uint16(elf.EM_RISCV))
	write32(1) // e_version
	write64(entry)
	write64(phoff)
	write64(0) // e_shoff
	write32(0) // e_flags
	write16(ehsize)
	write16(phsize)
	write16(1) // e_phnum
	write16(0) // e_shentsize
	write16(0) // e_shnum
	write16(0) // e_shstrndx

	// program header: PT_LOAD
	write32(uint32(elf.PT_LOAD))
	write32(uint32(elf.PF_R | elf.PF_X))
	write64(dataOff)
	write64(vaddr)
	write64(vaddr)
	write64(uint64(len(payload)))
	write64(memsz)
	write64(0x1000)

	buf.Write(payload)
	return buf.Bytes()
}

func TestLoadCopiesSegmentAndReturnsEntry(t *testing.T) {
	payload := []byte{0x93, 0x00, 0x70, 0x00} // addi x1, x0, 7
	img := buildMinimalELF(t, 0x10000, payload, uint64(len(payload)), 0x10000)

	m := mem.NewMemory()
	entry, err := Load(m, img)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x10000), entry)
	assert.Equal(t, uint32(0x00700093), m.Read32(0x10000))
}

func TestLoadZeroFillsBssTail(t *testing.T) {
	payload := []byte{0xAA, 0xBB}
	img := buildMinimalELF(t, 0x2000, payload, 8, 0x2000)

	m := mem.NewMemory()
	_, err := Load(m, img)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAA), m.ReadByte(0x2000))
	assert.Equal(t, byte(0xBB), m.ReadByte(0x2001))
	assert.Equal(t, byte(0), m.ReadByte(0x2002))
	assert.Equal(t, byte(0), m.ReadByte(0x2007))
}

func TestLoadRejectsTruncatedImage(t *testing.T) {
	m := mem.NewMemory()
	_, err := Load(m, []byte{0x7f, 'E', 'L', 'F'})
	assert.Error(t, err)
}
