package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/davecgh/go-spew/spew"

	"github.com/rvjit/rvjit/cpu"
	"github.com/rvjit/rvjit/decode"
	"github.com/rvjit/rvjit/reactor"
)

// model is the interactive inspector's bubbletea model: one step of the
// interpreter per keypress, rendering the reactor's Snapshot (spec §4.6).
type model struct {
	r     *reactor.Reactor
	entry uint64
	err   error
}

func (m model) Init() tea.Cmd {
	m.r.State().PC = m.entry
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ", "j":
			outcome, err := m.r.State().Step()
			if err != nil {
				m.err = err
				return m, tea.Quit
			}
			if outcome == cpu.OutcomeEcall && m.r.State().Regs.Get(cpu.A7) == 93 {
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m model) status() string {
	snap := m.r.Snapshot()
	var b strings.Builder
	fmt.Fprintf(&b, "state: %s\npc: 0x%x\n\n", snap.State, snap.PC)
	for i := 0; i < 32; i += 4 {
		fmt.Fprintf(&b, "x%-2d %016x  x%-2d %016x  x%-2d %016x  x%-2d %016x\n",
			i, snap.Regs[i], i+1, snap.Regs[i+1], i+2, snap.Regs[i+2], i+3, snap.Regs[i+3])
	}
	fmt.Fprintf(&b, "\ncache: size=%d hits=%d misses=%d evictions=%d\n",
		snap.CacheSize, snap.CacheStats.Hits, snap.CacheStats.Misses, snap.CacheStats.Evictions)
	if inst, _, err := decode.Decode(snap.PC, m.r.State().FetchWord(snap.PC)); err == nil {
		fmt.Fprintf(&b, "\nnext: %s", spew.Sdump(inst))
	}
	if m.err != nil {
		fmt.Fprintf(&b, "\nerror: %v\n", m.err)
	}
	return b.String()
}

// View renders the program's UI, which is just a string. The view is
// rendered after every Update.
func (m model) View() string {
	return lipgloss.JoinVertical(lipgloss.Left, m.status())
}

// runTUI starts the interactive inspector, single-stepping the
// interpreter one instruction per keypress from entry.
func runTUI(r *reactor.Reactor, entry uint64) {
	if _, err := tea.NewProgram(model{r: r, entry: entry}).Run(); err != nil {
		panic(err)
	}
}
