// Package reactor implements the façade of spec §4.6: the single owner of
// memory, registers, and the block cache, exposing LoadElf/Interp/JitRun
// and the ECALL-driven run state machine. It is the only component that
// sees both the interpreter (cpu package) and the JIT (jit package) at
// once.
package reactor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rvjit/rvjit/config"
	"github.com/rvjit/rvjit/cpu"
	"github.com/rvjit/rvjit/elfloader"
	"github.com/rvjit/rvjit/jit"
	"github.com/rvjit/rvjit/mem"
)

// RunState names a point in the façade's state machine (spec §4.6).
type RunState int

const (
	Ready RunState = iota
	Running
	AwaitingSyscall
	DoneOk
	DoneErr
)

func (s RunState) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case AwaitingSyscall:
		return "awaiting_syscall"
	case DoneOk:
		return "done_ok"
	case DoneErr:
		return "done_err"
	default:
		return "unknown"
	}
}

// Snapshot is a read-only view of reactor state for the optional TUI
// inspector (spec §4.6 "[FULL] Domain-stack supplement").
type Snapshot struct {
	State      RunState
	PC         uint64
	Regs       [32]uint64
	CacheStats jit.Stats
	CacheSize  int
}

// Reactor is the façade. Exactly one Memory, one register file (embedded
// in state), and one block cache are owned here; both Interp and JitRun
// share them.
type Reactor struct {
	state *cpu.State
	cache *jit.BlockCache
	cfg   config.Config
	log   *slog.Logger

	runState RunState
}

// New builds a Reactor from cfg, wiring up Legacy/Shared/Both paging per
// the resolved flags. logger may be nil, in which case a no-op discard
// logger is used.
func New(cfg config.Config, logger *slog.Logger) (*Reactor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &TranslationMisconfigured{Reason: err.Error()}
	}
	mode, err := cfg.PagingMode()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(discardWriter{}, nil))
	}

	st := cpu.NewState()
	st.TestMode = cfg.TestMode

	if mode != mem.Legacy {
		tcfg := mem.TranslatorConfig{
			Mode:                  mode,
			PageTableBase:         cfg.SharedPageTableVaddr,
			SecurityDirectoryBase: cfg.SharedSecurityDirectoryVaddr,
			EntryWidth64:          !cfg.Use32BitPaging,
			MultiLevel:            cfg.UseMultilevelPaging,
		}
		st.Translator = mem.NewTranslator(st.Mem, tcfg)
	}

	return &Reactor{
		state:    st,
		cache:    jit.NewBlockCache(),
		cfg:      cfg,
		log:      logger,
		runState: Ready,
	}, nil
}

// State returns the register/memory state the reactor owns, for tests and
// embedders that need direct access (e.g. to seed a test-mode marker).
func (r *Reactor) State() *cpu.State { return r.state }

// SetMarker installs a cpu.TestMarker, active only when Config.TestMode is
// set (spec §8 scenario 6).
func (r *Reactor) SetMarker(fn cpu.TestMarker) { r.state.Marker = fn }

// LoadElf parses an ELF image into guest memory and returns its entry
// point, resetting the run state to Ready on every successful load.
func (r *Reactor) LoadElf(data []byte) (uint64, error) {
	entry, err := elfloader.Load(r.state.Mem, data)
	if err != nil {
		return 0, err
	}
	r.state.PC = entry
	r.runState = Ready
	r.log.Info("elf loaded", "entry", fmt.Sprintf("0x%x", entry))
	return entry, nil
}

// transition moves the state machine and logs it at info level (spec
// §4.6 "[FULL]").
func (r *Reactor) transition(to RunState) {
	r.log.Info("state transition", "from", r.runState.String(), "to", to.String())
	r.runState = to
}

// Snapshot returns the current register/PC/cache-stat view.
func (r *Reactor) Snapshot() Snapshot {
	return Snapshot{
		State:      r.runState,
		PC:         r.state.PC,
		Regs:       r.state.Regs,
		CacheStats: r.cache.Stats(),
		CacheSize:  r.cache.Size(),
	}
}

// ecall implements the system-call ABI of spec §6: a7=93 is a normal exit,
// everything else is a successful no-op.
func (r *Reactor) ecall() error {
	a7 := r.state.Regs.Get(cpu.A7)
	if a7 == 93 {
		return NormalExit
	}
	return nil
}

// Interp runs the straight-line interpreter from pc until ECALL(93),
// cancellation, or error, checking ctx once per instruction (the finest
// cooperative boundary the interpreter has).
func (r *Reactor) Interp(ctx context.Context, pc uint64) error {
	r.transition(Running)
	r.state.PC = pc
	for {
		if err := ctx.Err(); err != nil {
			r.transition(DoneErr)
			return err
		}
		outcome, err := r.state.Step()
		if err != nil {
			r.transition(DoneErr)
			return err
		}
		if outcome == cpu.OutcomeEcall {
			r.transition(AwaitingSyscall)
			if err := r.ecall(); err != nil {
				if errors.Is(err, NormalExit) {
					r.transition(DoneOk)
				} else {
					r.transition(DoneErr)
				}
				return err
			}
			r.transition(Running)
		}
	}
}

// JitRun runs the JIT-compiled trace starting at pc, trampolining through
// the block cache on trace exits and servicing ECALL the same way Interp
// does, until ECALL(93), cancellation, or error. A JIT compile failure is
// reported as a HostFailure and recovered by falling back to the
// interpreter for that single PC (spec §7) rather than aborting the run.
func (r *Reactor) JitRun(ctx context.Context, pc uint64) error {
	r.transition(Running)
	r.state.PC = pc
	for {
		if err := ctx.Err(); err != nil {
			r.transition(DoneErr)
			return err
		}

		tr, hit := r.cache.Lookup(pc, r.state.FetchWord(pc))
		r.log.Debug("block cache lookup", "pc", fmt.Sprintf("0x%x", pc), "hit", hit)
		if !hit {
			compiled, err := r.compile(pc)
			if err != nil {
				if stepErr := r.interpOneBlockFallback(pc); stepErr != nil {
					r.transition(DoneErr)
					return stepErr
				}
				pc = r.state.PC
				continue
			}
			tr = compiled
			r.cache.Insert(tr)
		}

		outcome, nextPC, err := tr.Run(ctx, r.state)
		if err != nil {
			r.transition(DoneErr)
			return err
		}

		switch outcome {
		case jit.OutcomeContinueCache:
			pc = nextPC
		case jit.OutcomeSyscall:
			r.transition(AwaitingSyscall)
			if err := r.ecall(); err != nil {
				if errors.Is(err, NormalExit) {
					r.transition(DoneOk)
				} else {
					r.transition(DoneErr)
				}
				return err
			}
			r.transition(Running)
			pc = nextPC
		}
	}
}

// compile wraps jit.Compile with a recover, since a JIT code-generation
// failure is a HostFailure to be handled locally rather than a panic
// escaping the reactor (spec §7: "JIT code generation/compilation failed
// at the host level").
func (r *Reactor) compile(pc uint64) (tr *jit.Trace, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &HostFailure{PC: pc, Cause: fmt.Errorf("%v", rec)}
		}
	}()
	tr = jit.Compile(r.state, r.cache, pc)
	return tr, nil
}

// interpOneBlockFallback steps the interpreter one instruction at pc when
// the JIT could not compile it, so one bad block does not abort the run.
func (r *Reactor) interpOneBlockFallback(pc uint64) error {
	r.state.PC = pc
	_, err := r.state.Step()
	return err
}

// discardWriter is an io.Writer that drops everything, used as the default
// slog sink when no logger is supplied.
type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
