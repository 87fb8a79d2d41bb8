// Package jit realizes spec §4.5's trace compiler. Go has no runtime eval
// of Go source, so a trace is not emitted host source text: it is compiled
// once into a slice of Go closures (stepFn) indexed by guest PC, and run by
// a tight for-loop that plays the role of the labelled host loop the
// original design describes — a back-edge is a stepFn returning
// outcomeContinueTrace with the target index, resuming the same loop with
// no recursion and no cache dispatch.
package jit

import (
	"context"

	"github.com/rvjit/rvjit/cpu"
)

// Outcome reports what a Trace.Run (or a single step within it) did.
type Outcome int

const (
	// outcomeContinueTrace means control stays inside this trace; the loop
	// in Run should resume at the returned index.
	outcomeContinueTrace Outcome = iota
	// OutcomeContinueCache means control left the trace for a PC the
	// façade must look up in the block cache (an indirect jump, a branch
	// to an address outside this trace, or a fingerprint mismatch).
	OutcomeContinueCache
	// OutcomeSyscall means an ECALL was executed; the façade must service
	// it (see cpu.A7) before resuming at the returned PC.
	OutcomeSyscall
	// OutcomeErr means step execution failed; the error returned with it
	// holds the cause.
	OutcomeErr
)

// stepResult is what one compiled step produces.
type stepResult struct {
	outcome   Outcome
	nextIndex int
	nextPC    uint64
	err       error
}

// stepFn is one compiled instruction: it executes against s via cpu.Exec (or,
// for a baked-in decode failure, returns an error without touching s) and
// reports where control goes next.
type stepFn func(s *cpu.State) stepResult

// Trace is one compiled unit: all blocks reachable by direct control flow
// from Entry, each PC visited at most once.
type Trace struct {
	Entry       uint64
	Fingerprint uint32
	steps       []stepFn
	entryIndex  int
}

// Run trampolines the compiled closures starting at t.entryIndex until the
// trace exits to the cache, hits a syscall, or errors. It does not itself
// consult the block cache; the only cache change during a run is a
// fingerprint guard evicting the trace root (see builder.guarded). All
// other cache work is Reactor's job, driven by the Outcome and nextPC/err
// this returns.
func (t *Trace) Run(ctx context.Context, s *cpu.State) (Outcome, uint64, error) {
	idx := t.entryIndex
	for {
		if err := ctx.Err(); err != nil {
			return OutcomeErr, 0, err
		}
		res := t.steps[idx](s)
		switch res.outcome {
		case outcomeContinueTrace:
			idx = res.nextIndex
		case OutcomeContinueCache, OutcomeSyscall:
			return res.outcome, res.nextPC, nil
		case OutcomeErr:
			return OutcomeErr, 0, res.err
		default:
			return OutcomeErr, 0, res.err
		}
	}
}
