package jit

import "fmt"

// LabelStyle picks how a trace/step PC is rendered as text — the reduced
// form spec §4.5's `Flate` hook survives as in a
// closure-based realization: there are no textual helper names left to
// shrink, but trace labels still get a debug and a release spelling.
type LabelStyle int

const (
	// LabelDebug renders the full "pc=0x..." form.
	LabelDebug LabelStyle = iota
	// LabelRelease renders a short hex-only form.
	LabelRelease
)

// Label renders pc as a trace/step identifier in the given style. The
// reactor's log lines do not call it; they format PCs themselves.
func Label(style LabelStyle, pc uint64) string {
	if style == LabelRelease {
		return fmt.Sprintf("%x", pc)
	}
	return fmt.Sprintf("pc=0x%x", pc)
}
