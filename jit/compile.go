package jit

import (
	"github.com/rvjit/rvjit/cpu"
	"github.com/rvjit/rvjit/decode"
)

// maxTraceSteps bounds how far a single compile walks straight-line code
// before forcing a cache exit, so a long branch-free run of guest code
// cannot make one compilation walk unboundedly far ahead of execution.
const maxTraceSteps = 4096

// builder accumulates one trace's compiled steps and its PC→index map
// during the walk described in spec §4.5 ("keep a label environment
// mapping PCs seen during this compilation to a label").
type builder struct {
	state    *cpu.State
	cache    *BlockCache
	rootPC   uint64
	indexOf  map[uint64]int
	steps    []stepFn
}

// Compile compiles the trace entered at entryPC: the entry block plus every
// block reachable from it by direct (statically resolvable) control flow,
// stopping at indirect jumps, syscalls, decode errors, or blocks the cache
// already holds.
func Compile(s *cpu.State, cache *BlockCache, entryPC uint64) *Trace {
	b := &builder{
		state:   s,
		cache:   cache,
		rootPC:  entryPC,
		indexOf: make(map[uint64]int),
	}
	entryWord := s.FetchWord(entryPC)
	entryIdx := b.walk(entryPC)
	return &Trace{
		Entry:       entryPC,
		Fingerprint: entryWord,
		steps:       b.steps,
		entryIndex:  entryIdx,
	}
}

// walk returns the step index for pc, compiling it (and, recursively, its
// direct successors) on first visit. Indices are recorded before recursing
// so a back-edge to a PC already being compiled resolves to its reserved
// index instead of looping forever.
func (b *builder) walk(pc uint64) int {
	if idx, ok := b.indexOf[pc]; ok {
		return idx
	}

	if len(b.steps) >= maxTraceSteps {
		return b.emit(pc, continuationStep(pc))
	}

	// Cache-probe hook: a block other than our own entry that the cache
	// already holds is not recompiled — the trace exits back to the cache
	// to share that work (spec §4.5).
	if pc != b.rootPC && b.cache.Has(pc, b.state.FetchWord(pc)) {
		return b.emit(pc, continuationStep(pc))
	}

	word := b.state.FetchWord(pc)
	inst, length, err := b.state.Decode(pc)
	if err != nil {
		return b.emit(pc, errorStep(err))
	}

	idx := b.reserve(pc)
	nextPC := pc + uint64(length)

	switch inst.Op {
	case decode.Jal:
		targetPC := pc + uint64(inst.Offset*2)
		targetIdx := b.walk(targetPC)
		b.steps[idx] = b.guarded(pc, word, straightToStep(pc, inst, length, targetIdx))
	case decode.Jalr:
		b.steps[idx] = b.guarded(pc, word, jalrStep(pc, inst, length))
	case decode.Beq, decode.Bne, decode.Blt, decode.Bge, decode.Bltu, decode.Bgeu:
		targetPC := pc + uint64(inst.Offset*2)
		takenIdx := b.walk(targetPC)
		fallIdx := b.walk(nextPC)
		b.steps[idx] = b.guarded(pc, word, branchStep(pc, inst, length, nextPC, takenIdx, fallIdx))
	case decode.Ecall:
		b.steps[idx] = b.guarded(pc, word, ecallStep(pc, inst, length))
	default:
		nextIdx := b.walk(nextPC)
		b.steps[idx] = b.guarded(pc, word, straightToStep(pc, inst, length, nextIdx))
	}
	return idx
}

// reserve allocates a step slot for pc and records its index before the
// step function itself is known, so recursive walk calls for targets of
// this instruction can discover the back-edge.
func (b *builder) reserve(pc uint64) int {
	idx := len(b.steps)
	b.indexOf[pc] = idx
	b.steps = append(b.steps, nil)
	return idx
}

// emit is reserve plus an immediately-known step function, for leaf cases
// (cache-probe continuations, decode errors) that need no recursive walk.
func (b *builder) emit(pc uint64, fn stepFn) int {
	idx := b.reserve(pc)
	b.steps[idx] = fn
	return idx
}

// guarded wraps fn with the fingerprint check spec §4.5 assigns to every
// emitted block's prologue: if the guest word at pc no longer matches what
// was decoded at compile time, the trace's root entry is evicted from the
// cache and control returns to the cache at that root, forcing
// recompilation rather than running against stale semantics.
func (b *builder) guarded(pc uint64, word uint32, fn stepFn) stepFn {
	root := b.rootPC
	return func(s *cpu.State) stepResult {
		if s.FetchWord(pc) != word {
			b.cache.Invalidate(root)
			return stepResult{outcome: OutcomeContinueCache, nextPC: root}
		}
		return fn(s)
	}
}

// continuationStep exits the trace to the cache at pc without executing
// anything — used for the cache-probe hook and the maxTraceSteps cutoff.
func continuationStep(pc uint64) stepFn {
	return func(*cpu.State) stepResult {
		return stepResult{outcome: OutcomeContinueCache, nextPC: pc}
	}
}

// errorStep reports a compile-time decode failure the first time this step
// is reached at runtime (it is never reached if control never flows there).
func errorStep(err error) stepFn {
	return func(*cpu.State) stepResult {
		return stepResult{outcome: OutcomeErr, err: err}
	}
}

// straightToStep executes inst, then unconditionally resumes the trace at
// nextIndex — used for fallthrough instructions and for JAL, whose target
// cpu.Exec already wrote into s.PC.
func straightToStep(pc uint64, inst decode.Instruction, length decode.Length, nextIndex int) stepFn {
	return func(s *cpu.State) stepResult {
		if _, err := s.Exec(pc, inst, length); err != nil {
			return stepResult{outcome: OutcomeErr, err: err}
		}
		return stepResult{outcome: outcomeContinueTrace, nextIndex: nextIndex}
	}
}

// branchStep executes a conditional branch and resumes the trace at
// takenIndex or fallIndex depending on which way cpu.Exec moved s.PC.
func branchStep(pc uint64, inst decode.Instruction, length decode.Length, fallPC uint64, takenIndex, fallIndex int) stepFn {
	return func(s *cpu.State) stepResult {
		if _, err := s.Exec(pc, inst, length); err != nil {
			return stepResult{outcome: OutcomeErr, err: err}
		}
		if s.PC == fallPC {
			return stepResult{outcome: outcomeContinueTrace, nextIndex: fallIndex}
		}
		return stepResult{outcome: outcomeContinueTrace, nextIndex: takenIndex}
	}
}

// jalrStep executes an indirect jump; its target is only known at runtime,
// so the trace always exits to the cache here (spec §4.5: "Indirect jump:
// write link register, return a continuation pointing at the computed
// target PC").
func jalrStep(pc uint64, inst decode.Instruction, length decode.Length) stepFn {
	return func(s *cpu.State) stepResult {
		if _, err := s.Exec(pc, inst, length); err != nil {
			return stepResult{outcome: OutcomeErr, err: err}
		}
		return stepResult{outcome: OutcomeContinueCache, nextPC: s.PC}
	}
}

// ecallStep executes ECALL and suspends the trace for the façade to service
// the syscall, per spec §4.5.
func ecallStep(pc uint64, inst decode.Instruction, length decode.Length) stepFn {
	return func(s *cpu.State) stepResult {
		if _, err := s.Exec(pc, inst, length); err != nil {
			return stepResult{outcome: OutcomeErr, err: err}
		}
		return stepResult{outcome: OutcomeSyscall, nextPC: s.PC}
	}
}
