package cpu

import (
	"fmt"

	"github.com/rvjit/rvjit/decode"
)

// Outcome reports what State.Exec/Step did to control flow.
type Outcome int

const (
	// OutcomeContinue means PC has already been advanced (fallthrough or
	// taken branch/jump) and the caller should keep stepping.
	OutcomeContinue Outcome = iota
	// OutcomeEcall means the instruction was ECALL: PC has already been
	// advanced to the following instruction, and the caller (interpreter
	// loop or reactor) must service the syscall named by register a7
	// before resuming.
	OutcomeEcall
)

// A7 is the register index carrying the syscall number on ECALL (the
// standard RISC-V Linux syscall ABI register).
const A7 = 17

// UnknownOpcode reports a decoded instruction this emulator has no
// execution semantics for. Decode currently only ever produces opcodes
// Exec knows about, so this is defensive: it exists for the day the
// decoder grows an opcode before its semantics are wired up, per spec §7.
type UnknownOpcode struct {
	PC uint64
	Op decode.Op
}

func (e *UnknownOpcode) Error() string {
	return fmt.Sprintf("cpu: unimplemented opcode %s at pc 0x%x", e.Op, e.PC)
}

// Step fetches, decodes, and executes exactly one instruction at s.PC.
// This is the authoritative interpreter baseline of spec §4.3: the JIT's
// per-instruction step closures call Exec directly against instructions
// decoded once at compile time, so both execution modes run the identical
// Exec implementation for a given opcode (spec §8's equivalence invariant
// is structural, not incidental).
func (s *State) Step() (Outcome, error) {
	pc := s.PC
	inst, length, err := s.Decode(pc)
	if err != nil {
		return OutcomeContinue, err
	}
	return s.Exec(pc, inst, length)
}

// Exec executes inst, which was decoded at pc with the given length. It
// updates s.PC to the correct next program counter (spec §4.3 steps 2-4)
// and returns whether the caller must now service a syscall.
func (s *State) Exec(pc uint64, inst decode.Instruction, length decode.Length) (Outcome, error) {
	nextPC := pc + uint64(length)

	fn, ok := execTable[inst.Op]
	if !ok {
		return OutcomeContinue, &UnknownOpcode{PC: pc, Op: inst.Op}
	}

	s.PC = pc
	ctl := fn(s, inst)

	if s.TestMode && s.Marker != nil && inst.Op == decode.Addi && inst.Rd == 0 && inst.Rs1 == 0 {
		s.Marker(pc, inst.Imm)
	}

	switch ctl.kind {
	case ctlFallthrough:
		s.PC = nextPC
		return OutcomeContinue, nil
	case ctlJump:
		s.PC = ctl.target
		return OutcomeContinue, nil
	case ctlBranch:
		if ctl.taken {
			s.PC = ctl.target
		} else {
			s.PC = nextPC
		}
		return OutcomeContinue, nil
	case ctlEcall:
		s.PC = nextPC
		return OutcomeEcall, nil
	default:
		s.PC = nextPC
		return OutcomeContinue, nil
	}
}

// control describes how an instruction affects PC; returned by every entry
// in execTable so Exec can apply spec §4.3's PC-update rules uniformly
// (jumpCtl clears bit 0 of a jump target; branchCtl keeps its target as
// given).
type control struct {
	kind   ctlKind
	target uint64
	taken  bool
}

type ctlKind int

const (
	ctlFallthrough ctlKind = iota
	ctlJump
	ctlBranch
	ctlEcall
)

func fallthroughCtl() control { return control{kind: ctlFallthrough} }

func jumpCtl(target uint64) control {
	return control{kind: ctlJump, target: target & ^uint64(1)}
}

func branchCtl(taken bool, target uint64) control {
	return control{kind: ctlBranch, taken: taken, target: target}
}

func ecallCtl() control { return control{kind: ctlEcall} }
