package plan

import (
	"fmt"
	"sort"
	"strings"
)

// buildReport renders the human-readable allocation report embedded in the
// plan: a summary block, branch quota breakdown, fairness notes, deviations,
// and red flags.
func buildReport(p *CoveragePlan) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Coverage plan %s\n", p.ID)
	fmt.Fprintf(&b, "Total items: %d across %d strata\n", p.TotalItems, len(p.Rows))
	if p.StrategyUsed == p.StrategyRequested {
		fmt.Fprintf(&b, "Strategy: %s\n", p.StrategyUsed)
	} else {
		fmt.Fprintf(&b, "Strategy: %s (requested %s, fell back)\n", p.StrategyUsed, p.StrategyRequested)
	}
	fmt.Fprintf(&b, "Leaf coverage: %.1f%%  entropy: %.3f bits  gini: %.3f\n",
		p.Diagnostics.LeafCoverage*100, p.Diagnostics.Entropy, p.Diagnostics.Gini)

	if len(p.Diagnostics.BranchQuotas) > 0 {
		b.WriteString("\nBranch quotas:\n")
		branches := make([]string, 0, len(p.Diagnostics.BranchQuotas))
		for name := range p.Diagnostics.BranchQuotas {
			branches = append(branches, name)
		}
		sort.Strings(branches)
		for _, name := range branches {
			fmt.Fprintf(&b, "  %-24s %d\n", name, p.Diagnostics.BranchQuotas[name])
		}
	}

	writeSection(&b, "Fairness notes", p.FairnessNotes)
	writeSection(&b, "Deviations", p.Deviations)
	writeSection(&b, "Red flags", p.Diagnostics.RedFlags)

	if len(p.Quarantine) > 0 {
		fmt.Fprintf(&b, "\nQuarantined concepts: %d\n", len(p.Quarantine))
	}
	if len(p.BlockedCombinations) > 0 {
		fmt.Fprintf(&b, "Blocked combinations: %d\n", len(p.BlockedCombinations))
	}
	if p.FailureManifest != nil {
		fmt.Fprintf(&b, "\nSolver failure: %s (fell back to %s)\n",
			p.FailureManifest.Reason, p.FailureManifest.FallbackStrategy)
	}

	return b.String()
}

func writeSection(b *strings.Builder, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, line := range lines {
		fmt.Fprintf(b, "  - %s\n", line)
	}
}
