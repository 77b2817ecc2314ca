package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/evalforge/coverplan/internal/plan"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD966")).
			Bold(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#805800")).
			Padding(0, 1)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFB000")).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#805800"))
)

// renderSummary builds the styled terminal summary printed after a
// successful plan build. The full report travels inside the artifact; this
// is the operator-facing digest.
func renderSummary(p *plan.CoveragePlan) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Coverage plan %s", p.ID)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%d items across %d strata, strategy %s\n",
		p.TotalItems, len(p.Rows), p.StrategyUsed)
	fmt.Fprintf(&b, "leaf coverage %.1f%%  entropy %.3f bits  gini %.3f\n",
		p.Diagnostics.LeafCoverage*100, p.Diagnostics.Entropy, p.Diagnostics.Gini)

	if p.FailureManifest != nil {
		b.WriteString(warnStyle.Render(
			fmt.Sprintf("solver fallback: %s", p.FailureManifest.Reason)))
		b.WriteString("\n")
	}
	if n := len(p.Diagnostics.RedFlags); n > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("%d red flag(s)", n)))
		b.WriteString("\n")
	}
	if n := len(p.Quarantine); n > 0 {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("%d concept(s) quarantined", n)))
		b.WriteString("\n")
	}
	if n := len(p.BlockedCombinations); n > 0 {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("%d combination(s) blocked", n)))
		b.WriteString("\n")
	}

	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}
