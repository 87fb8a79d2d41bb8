package bits

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRange(t *testing.T) {
	w := uint32(0b1111_0000_1010)
	assert.Equal(t, uint32(0b1010), Range(w, 3, 0))
	assert.Equal(t, uint32(0b0000_1010), Range(w, 7, 0))
	assert.Equal(t, uint32(0b1111), Range(w, 11, 8))
}

func TestBit(t *testing.T) {
	w := uint32(0b1000_0001)
	assert.True(t, Bit(w, 0))
	assert.True(t, Bit(w, 7))
	assert.False(t, Bit(w, 3))
}

func TestSignExtend(t *testing.T) {
	assert.Equal(t, int64(-1), SignExtend(0b1, 1))
	assert.Equal(t, int64(0), SignExtend(0b0, 1))
	assert.Equal(t, int64(-2048), SignExtend(0x800, 12))
	assert.Equal(t, int64(2047), SignExtend(0x7FF, 12))
}

func TestSignExtend64(t *testing.T) {
	assert.Equal(t, int64(-1), SignExtend64(0xFFFFFFFF, 32))
	assert.Equal(t, int64(5), SignExtend64(5, 32))
}
