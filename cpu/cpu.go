// Package cpu implements the RV64IM register file and the authoritative
// single-step instruction semantics shared by the interpreter and the JIT
// (see step.go, instructions.go). This package has no notion of a block
// cache or of traces — that is the jit package's concern; cpu only knows
// how to execute one decoded instruction against a State.
package cpu

import (
	"github.com/rvjit/rvjit/decode"
	"github.com/rvjit/rvjit/mem"
)

// Regs is the 32-entry general-purpose register file. Index 0 is wired to
// zero: Set(0, ...) is a no-op and Get(0) always returns 0, exactly as
// spec §3 "Register file" requires.
type Regs [32]uint64

// Get reads register i. Register 0 always reads as 0.
func (r *Regs) Get(i int) uint64 {
	if i == 0 {
		return 0
	}
	return r[i]
}

// Set writes v to register i. Writes to register 0 are discarded.
func (r *Regs) Set(i int, v uint64) {
	if i == 0 {
		return
	}
	r[i] = v
}

// TestMarker is the test-mode hook of spec §8 scenario 6: invoked with the
// PC and immediate whenever the interpreter or JIT executes the
// `addi x0, x0, N` marker form. It must not otherwise disturb architectural
// state.
type TestMarker func(pc uint64, n int64)

// State is everything one instruction needs to execute: the register file,
// the program counter, the memory it reads and writes, and an optional
// translator for Shared/Both paging. State carries no block-cache or
// trace bookkeeping — the jit package wraps a *State, it does not embed
// one.
type State struct {
	Regs Regs
	PC   uint64
	Mem  *mem.Memory

	// Translator is nil under Legacy paging (data() is then the identity
	// function over Mem); non-nil under Shared/Both.
	Translator *mem.Translator

	// TestMode, when true, invokes Marker for every observed
	// `addi x0, x0, N`. Nil Marker with TestMode true is a no-op.
	TestMode bool
	Marker   TestMarker
}

// NewState returns a State with a fresh Memory and all registers zeroed.
func NewState() *State {
	return &State{Mem: mem.NewMemory()}
}

// phys translates addr through the configured Translator, or returns addr
// unchanged under Legacy paging — this is the `data(v)` helper of spec
// §4.5, made explicit as a method so the JIT's step closures and the
// interpreter's Step both route every multi-byte access through it.
func (s *State) phys(addr uint64) uint64 {
	if s.Translator == nil {
		return addr
	}
	return s.Translator.Translate(addr)
}

func (s *State) read8(addr uint64) uint64  { return uint64(s.Mem.Read8(s.phys(addr))) }
func (s *State) read16(addr uint64) uint64 { return uint64(s.Mem.Read16(s.phys(addr))) }
func (s *State) read32(addr uint64) uint64 { return uint64(s.Mem.Read32(s.phys(addr))) }
func (s *State) read64(addr uint64) uint64 { return s.Mem.Read64(s.phys(addr)) }

func (s *State) write8(addr uint64, v uint64)  { s.Mem.Write8(s.phys(addr), uint8(v)) }
func (s *State) write16(addr uint64, v uint64) { s.Mem.Write16(s.phys(addr), uint16(v)) }
func (s *State) write32(addr uint64, v uint64) { s.Mem.Write32(s.phys(addr), uint32(v)) }
func (s *State) write64(addr uint64, v uint64) { s.Mem.Write64(s.phys(addr), v) }

// FetchWord reads the raw 32-bit instruction word at pc, for both ordinary
// fetch-decode-execute and for the JIT's fingerprint check (spec §3
// "Basic block (JIT)": "the 32-bit instruction word at the entry PC at
// compile time").
func (s *State) FetchWord(pc uint64) uint32 {
	return s.Mem.Read32(s.phys(pc))
}

// Decode fetches and decodes the instruction at pc.
func (s *State) Decode(pc uint64) (decode.Instruction, decode.Length, error) {
	return decode.Decode(pc, s.FetchWord(pc))
}
