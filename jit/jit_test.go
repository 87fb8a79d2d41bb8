package jit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvjit/rvjit/cpu"
)

func encodeI(opcode, rd, funct3, rs1 uint32, imm int32) uint32 {
	return (uint32(imm)&0xFFF)<<20 | (rs1 << 15) | (funct3 << 12) | (rd << 7) | opcode
}

func encodeR(opcode, rd, funct3, rs1, rs2, funct7 uint32) uint32 {
	return (funct7 << 25) | (rs2 << 20) | (rs1 << 15) | (funct3 << 12) | (rd << 7) | opcode
}

func encodeB(funct3 uint32, rs1, rs2 int, byteOffset int32) uint32 {
	imm := uint32(byteOffset) & 0x1FFF
	bit12 := (imm >> 12) & 1
	bit11 := (imm >> 11) & 1
	bits10_5 := (imm >> 5) & 0x3F
	bits4_1 := (imm >> 1) & 0xF
	return (bit12 << 31) | (bits10_5 << 25) | (uint32(rs2) << 20) | (uint32(rs1) << 15) |
		(funct3 << 12) | (bits4_1 << 8) | (bit11 << 7) | 0b1100011
}

func TestCompileStraightLineTraceComputesX1PlusX2(t *testing.T) {
	s := cpu.NewState()
	// addi x1, x0, 2 ; addi x2, x0, 40 ; add x3, x1, x2 ; ecall
	s.Mem.Write32(0, encodeI(0b0010011, 1, 0b000, 0, 2))
	s.Mem.Write32(4, encodeI(0b0010011, 2, 0b000, 0, 40))
	s.Mem.Write32(8, encodeR(0b0110011, 3, 0b000, 1, 2, 0))
	s.Mem.Write32(12, 0x00000073) // ecall
	s.PC = 0

	cache := NewBlockCache()
	tr := Compile(s, cache, 0)
	cache.Insert(tr)

	outcome, nextPC, err := tr.Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSyscall, outcome)
	assert.Equal(t, uint64(16), nextPC)
	assert.Equal(t, uint64(42), s.Regs.Get(3))
}

func TestCompileBackEdgeReusesSameStepIndex(t *testing.T) {
	s := cpu.NewState()
	// addi x1, x1, -1 at pc 0; bne x1, x0, -4 (back to pc 0) at pc 4; ecall at pc 8
	s.Mem.Write32(0, encodeI(0b0010011, 1, 0b000, 1, -1))
	s.Mem.Write32(4, encodeB(0b001, 1, 0, -4))
	s.Mem.Write32(8, 0x00000073)
	s.Regs.Set(1, 3)
	s.PC = 0

	cache := NewBlockCache()
	tr := Compile(s, cache, 0)
	cache.Insert(tr)

	outcome, nextPC, err := tr.Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSyscall, outcome)
	assert.Equal(t, uint64(12), nextPC)
	assert.Equal(t, uint64(0), s.Regs.Get(1))
}

func TestCompileIndirectJumpExitsToCache(t *testing.T) {
	s := cpu.NewState()
	// jalr x0, x1, 0  (jump to whatever x1 holds)
	s.Mem.Write32(0, encodeI(0b1100111, 0, 0b000, 1, 0))
	s.Regs.Set(1, 0x2000)
	s.PC = 0

	cache := NewBlockCache()
	tr := Compile(s, cache, 0)
	cache.Insert(tr)

	outcome, nextPC, err := tr.Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, OutcomeContinueCache, outcome)
	assert.Equal(t, uint64(0x2000), nextPC)
}

func TestBlockCacheLookupEvictsOnFingerprintMismatch(t *testing.T) {
	s := cpu.NewState()
	s.Mem.Write32(0, encodeI(0b0010011, 1, 0b000, 0, 1))
	cache := NewBlockCache()
	tr := Compile(s, cache, 0)
	cache.Insert(tr)

	_, hit := cache.Lookup(0, s.FetchWord(0))
	assert.True(t, hit)

	s.Mem.Write32(0, encodeI(0b0010011, 1, 0b000, 0, 2)) // self-modified
	_, hit = cache.Lookup(0, s.FetchWord(0))
	assert.False(t, hit)
	assert.Equal(t, 0, cache.Size())
	assert.Equal(t, uint64(1), cache.Stats().Evictions)
}

func TestBlockCacheInvalidateRemovesEntry(t *testing.T) {
	s := cpu.NewState()
	s.Mem.Write32(0, encodeI(0b0010011, 1, 0b000, 0, 1))
	cache := NewBlockCache()
	cache.Insert(Compile(s, cache, 0))
	require.Equal(t, 1, cache.Size())
	cache.Invalidate(0)
	assert.Equal(t, 0, cache.Size())
}

func TestFingerprintGuardForcesRecompileOnSelfModifyingCodeWithinTrace(t *testing.T) {
	s := cpu.NewState()
	// addi x1, x0, 1 at pc 0 ; addi x2, x0, 1 at pc 4 (fallthrough target)
	s.Mem.Write32(0, encodeI(0b0010011, 1, 0b000, 0, 1))
	s.Mem.Write32(4, encodeI(0b0010011, 2, 0b000, 0, 1))
	s.PC = 0

	cache := NewBlockCache()
	tr := Compile(s, cache, 0)
	cache.Insert(tr)

	// Mutate the second instruction after compiling but before running.
	s.Mem.Write32(4, encodeI(0b0010011, 2, 0b000, 0, 99))

	outcome, nextPC, err := tr.Run(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, OutcomeContinueCache, outcome)
	assert.Equal(t, uint64(0), nextPC)
	assert.Equal(t, 0, cache.Size())
}

func TestLabelDebugAndReleaseForms(t *testing.T) {
	assert.Equal(t, "pc=0x10", Label(LabelDebug, 0x10))
	assert.Equal(t, "10", Label(LabelRelease, 0x10))
}
