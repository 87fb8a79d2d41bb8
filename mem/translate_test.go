package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLegacyTranslateIsIdentity(t *testing.T) {
	m := NewMemory()
	tr := NewTranslator(m, TranslatorConfig{Mode: Legacy})
	assert.Equal(t, uint64(0xABCD1234), tr.Translate(0xABCD1234))
}

func TestSharedSingleLevel64BitWalk(t *testing.T) {
	m := NewMemory()
	const ptBase = 0x100000
	const sdBase = 0x200000
	const gva = 0x0000_0000_0005_0042 // pageNum=5, offset=0x42

	// leaf entry: low 16 bits select security-directory index 3,
	// remaining 48 bits are the low half of the physical page base.
	const dirIndex = 3
	const lowBase = 0x0000_0000_7000 // arbitrary low 48 bits, shifted later
	leaf := uint64(lowBase<<16) | dirIndex
	m.Write64(ptBase+5*8, leaf)

	// directory entry: top 16 bits of its own 64-bit value supply the
	// top half of the physical page base.
	const topBase = uint64(0x9) << (64 - 16)
	m.Write64(sdBase+dirIndex*8, topBase)

	cfg := TranslatorConfig{
		Mode:         Shared,
		PageTableBase: ptBase,
		SecurityDirectoryBase: sdBase,
		EntryWidth64: true,
	}
	tr := NewTranslator(m, cfg)

	wantPhysBase := (uint64(0x9) << 48) | lowBase
	assert.Equal(t, wantPhysBase+0x42, tr.Translate(gva))
}

func TestSharedZeroTablesTranslateToOffset(t *testing.T) {
	m := NewMemory()
	cfg := TranslatorConfig{
		Mode:                  Shared,
		PageTableBase:         0x1000,
		SecurityDirectoryBase: 0x2000,
		EntryWidth64:          true,
	}
	tr := NewTranslator(m, cfg)
	// no entries written: everything reads as zero, no trap.
	assert.Equal(t, uint64(0x42), tr.Translate(0x123_0042))
}

func TestBothNestedTablesLiveInOuterMemory(t *testing.T) {
	m := NewMemory()
	cfg := TranslatorConfig{
		Mode:                  Both,
		PageTableBase:         0x5000,
		SecurityDirectoryBase: 0x6000,
		EntryWidth64:          true,
	}
	tr := NewTranslator(m, cfg)
	m.Write64(0x5000+7*8, (uint64(0x10)<<16)|1)
	m.Write64(0x6000+1*8, uint64(0x3)<<(64-16))

	got := tr.Translate(7<<16 | 0x99)
	want := (uint64(0x3)<<48 | uint64(0x10)) + 0x99
	assert.Equal(t, want, got)
	// the page-table entries themselves were allocated in the outer Memory
	assert.True(t, m.Mapped(0x5000))
}

func TestMultiLevelThreeLevelWalk(t *testing.T) {
	m := NewMemory()
	cfg := TranslatorConfig{
		Mode:                  Shared,
		PageTableBase:         0x10000,
		SecurityDirectoryBase: 0x20000,
		EntryWidth64:          true,
		MultiLevel:            true,
	}
	tr := NewTranslator(m, cfg)

	gva := (uint64(2) << 48) | (uint64(3) << 32) | (uint64(4) << 16) | 0x77

	l2Table := uint64(0x30000)
	l1Table := uint64(0x40000)
	m.Write64(cfg.PageTableBase+2*8, l2Table)
	m.Write64(l2Table+3*8, l1Table)
	m.Write64(l1Table+4*8, (uint64(0xAA)<<16)|5)
	m.Write64(cfg.SecurityDirectoryBase+5*8, uint64(0x1)<<(64-16))

	want := (uint64(0x1)<<48 | uint64(0xAA)) + 0x77
	assert.Equal(t, want, tr.Translate(gva))
}
