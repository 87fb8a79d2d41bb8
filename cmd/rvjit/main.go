// Command rvjit runs a RISC-V (RV64IM) ELF binary under the interpreter or
// the trace-compiling JIT, per spec §6's command-line front end.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/rvjit/rvjit/config"
	"github.com/rvjit/rvjit/reactor"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("rvjit", flag.ContinueOnError)

	configPath := fs.String("config", "", "YAML config file supplying defaults")
	jit := fs.Bool("jit", true, "run under the trace JIT (false selects the interpreter)")
	testMode := fs.Bool("test-mode", false, "enable the addi x0,x0,N test-marker hook")
	paging := fs.String("paging", "legacy", "paging mode: legacy|shared|both")
	pageTableVaddr := fs.Uint64("shared-page-table-vaddr", 0, "GVA of the shared page table root")
	securityDirVaddr := fs.Uint64("shared-security-directory-vaddr", 0, "GVA of the security directory")
	use32Bit := fs.Bool("use-32bit-paging", false, "use 32-bit page-table entries under shared/both paging")
	multilevel := fs.Bool("use-multilevel-paging", false, "use a three-level walk under shared/both paging")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	logFormat := fs.String("log-format", "text", "log format: text|json")
	stats := fs.Bool("stats", false, "print block-cache stats to stderr at exit")
	tui := fs.Bool("tui", false, "launch the interactive inspector instead of running unattended")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: rvjit [flags] <elf-path>")
		return 2
	}
	elfPath := fs.Arg(0)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		cfg = loaded
	}
	fs.Visit(func(f *flag.Flag) { applyFlagOverride(&cfg, f.Name, jit, testMode, paging, pageTableVaddr, securityDirVaddr, use32Bit, multilevel, logLevel, logFormat, stats, tui) })

	logger := newLogger(cfg.LogFormat, cfg.LogLevel)

	r, err := reactor.New(cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	data, err := os.ReadFile(elfPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	entry, err := r.LoadElf(data)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if cfg.TUI && term.IsTerminal(int(os.Stdout.Fd())) {
		runTUI(r, entry)
	} else {
		ctx := context.Background()
		if cfg.JIT {
			err = r.JitRun(ctx, entry)
		} else {
			err = r.Interp(ctx, entry)
		}
		if err != nil && !errors.Is(err, reactor.NormalExit) {
			fmt.Fprintln(os.Stderr, err)
			if cfg.Stats {
				printStats(r)
			}
			return 1
		}
	}

	if cfg.Stats {
		printStats(r)
	}
	return 0
}

// applyFlagOverride copies explicitly-set CLI flags on top of whatever
// config.Load produced, per spec §6 ("explicit flags override it").
func applyFlagOverride(cfg *config.Config, name string, jit, testMode *bool, paging *string, pageTableVaddr, securityDirVaddr *uint64, use32Bit, multilevel *bool, logLevel, logFormat *string, stats, tui *bool) {
	switch name {
	case "jit":
		cfg.JIT = *jit
	case "test-mode":
		cfg.TestMode = *testMode
	case "paging":
		cfg.Paging = *paging
	case "shared-page-table-vaddr":
		cfg.SharedPageTableVaddr = *pageTableVaddr
	case "shared-security-directory-vaddr":
		cfg.SharedSecurityDirectoryVaddr = *securityDirVaddr
	case "use-32bit-paging":
		cfg.Use32BitPaging = *use32Bit
	case "use-multilevel-paging":
		cfg.UseMultilevelPaging = *multilevel
	case "log-level":
		cfg.LogLevel = *logLevel
	case "log-format":
		cfg.LogFormat = *logFormat
	case "stats":
		cfg.Stats = *stats
	case "tui":
		cfg.TUI = *tui
	}
}

func newLogger(format, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func printStats(r *reactor.Reactor) {
	snap := r.Snapshot()
	fmt.Fprintf(os.Stderr, "block cache: size=%d hits=%d misses=%d evictions=%d\n",
		snap.CacheSize, snap.CacheStats.Hits, snap.CacheStats.Misses, snap.CacheStats.Evictions)
}
