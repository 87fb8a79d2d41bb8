package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadWriteByteCommutesWithAllocation(t *testing.T) {
	m := NewMemory()
	assert.False(t, m.Mapped(0x1234))
	assert.Equal(t, byte(0), m.ReadByte(0x1234)) // unmapped read yields zero, no alloc
	assert.False(t, m.Mapped(0x1234))

	m.WriteByte(0x1234, 0xAB)
	assert.True(t, m.Mapped(0x1234))
	assert.Equal(t, byte(0xAB), m.ReadByte(0x1234))
}

func TestGetPageIsIdempotent(t *testing.T) {
	m := NewMemory()
	p1 := m.GetPage(0x10000)
	p2 := m.GetPage(0x1FFFF) // same page, different offset
	assert.Same(t, p1, p2)
}

func TestLittleEndianCrossesPageBoundary(t *testing.T) {
	m := NewMemory()
	addr := uint64(PageSize - 2) // straddles page 0 / page 1
	m.Write32(addr, 0xDEADBEEF)
	assert.Equal(t, uint32(0xDEADBEEF), m.Read32(addr))
	assert.True(t, m.Mapped(addr))
	assert.True(t, m.Mapped(addr+3))
}

func TestWrite64RoundTrip(t *testing.T) {
	m := NewMemory()
	m.Write64(0x8000, 0x0123456789ABCDEF)
	assert.Equal(t, uint64(0x0123456789ABCDEF), m.Read64(0x8000))
	// verify actual little-endian byte order
	assert.Equal(t, byte(0xEF), m.ReadByte(0x8000))
	assert.Equal(t, byte(0x01), m.ReadByte(0x8007))
}

func TestLoadBytes(t *testing.T) {
	m := NewMemory()
	m.LoadBytes(0x400, []byte{1, 2, 3, 4})
	assert.Equal(t, byte(3), m.ReadByte(0x402))
}
