// Package diagnostics computes distributional health metrics and
// machine-readable audit flags over a finished coverage plan. It is a pure
// function over the plan rows: no state, no I/O.
package diagnostics

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// RowStat is the per-row view the diagnostics layer consumes. The plan
// assembler projects its rows into this shape so this package stays free of
// plan dependencies.
type RowStat struct {
	StratumID string
	ConceptID string
	Branch    string
	DepthBand string
	Facets    map[string]string
	Quota     int
	IsLeaf    bool
}

// Input bundles the plan view with the frame-level context the metrics need.
type Input struct {
	Rows []RowStat

	// TotalLeafConcepts is the number of usable leaf concepts in the frame,
	// the denominator of leaf coverage.
	TotalLeafConcepts int

	// OrphanedConcepts lists usable concepts that produced no rows and are
	// not in quarantine (e.g. every combination was blocked).
	OrphanedConcepts []string

	// BranchFloors / BranchCeilings carry the absolute fairness bound per
	// branch, with explicit per-branch overrides already resolved. A zero
	// floor, or a zero or +Inf ceiling, disables the corresponding red flag
	// for that branch.
	BranchFloors   map[string]float64
	BranchCeilings map[string]float64
}

// Diagnostics is the audit summary attached to every coverage plan.
type Diagnostics struct {
	// BranchQuotas, DepthBandQuotas, and FacetQuotas break the budget down
	// along the three stratification axes. FacetQuotas is keyed by facet
	// name, then value.
	BranchQuotas    map[string]int            `json:"branch_quotas"`
	DepthBandQuotas map[string]int            `json:"depth_band_quotas"`
	FacetQuotas     map[string]map[string]int `json:"facet_quotas"`

	// LeafCoverage is distinct allocated leaf concepts over total leaf
	// concepts, in [0,1].
	LeafCoverage float64 `json:"leaf_coverage"`

	// Entropy is the Shannon entropy (base 2) of the branch quota
	// distribution. Zero-probability branches contribute nothing.
	Entropy float64 `json:"entropy"`

	// Gini is the Gini coefficient of the branch quota distribution.
	Gini float64 `json:"gini"`

	// RedFlags lists machine-checkable audit findings.
	RedFlags []string `json:"red_flags,omitempty"`
}

// Compute derives the full diagnostics set from the input.
func Compute(in Input) Diagnostics {
	d := Diagnostics{
		BranchQuotas:    make(map[string]int),
		DepthBandQuotas: make(map[string]int),
		FacetQuotas:     make(map[string]map[string]int),
	}

	allocatedLeaves := make(map[string]bool)
	for _, row := range in.Rows {
		d.BranchQuotas[row.Branch] += row.Quota
		d.DepthBandQuotas[row.DepthBand] += row.Quota
		for facet, value := range row.Facets {
			if d.FacetQuotas[facet] == nil {
				d.FacetQuotas[facet] = make(map[string]int)
			}
			d.FacetQuotas[facet][value] += row.Quota
		}
		if row.IsLeaf && row.Quota > 0 {
			allocatedLeaves[row.ConceptID] = true
		}
	}

	if in.TotalLeafConcepts > 0 {
		d.LeafCoverage = float64(len(allocatedLeaves)) / float64(in.TotalLeafConcepts)
	}

	branchValues := sortedBranchQuotas(d.BranchQuotas)
	d.Entropy = branchEntropy(branchValues)
	d.Gini = giniCoefficient(branchValues)
	d.RedFlags = redFlags(in, d.BranchQuotas)

	return d
}

// sortedBranchQuotas returns branch quota values ordered by branch name so
// the metrics are computed over a deterministic sequence.
func sortedBranchQuotas(quotas map[string]int) []float64 {
	names := make([]string, 0, len(quotas))
	for name := range quotas {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make([]float64, len(names))
	for i, name := range names {
		values[i] = float64(quotas[name])
	}
	return values
}

// branchEntropy computes base-2 Shannon entropy over the normalized branch
// distribution. gonum's stat.Entropy works in nats; dividing by ln 2
// converts to bits.
func branchEntropy(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	if total <= 0 {
		return 0
	}

	probs := make([]float64, 0, len(values))
	for _, v := range values {
		if v > 0 {
			probs = append(probs, v/total)
		}
	}
	if len(probs) == 0 {
		return 0
	}
	return stat.Entropy(probs) / math.Ln2
}

// giniCoefficient computes the Gini coefficient over the branch quota
// distribution: 0 is perfect equality, values near 1 indicate concentration.
func giniCoefficient(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	var cumWeighted, total float64
	for i, v := range sorted {
		cumWeighted += float64(i+1) * v
		total += v
	}
	if total == 0 {
		return 0
	}
	return (2*cumWeighted)/(float64(n)*total) - float64(n+1)/float64(n)
}

// redFlags scans for zero-quota strata, orphaned concepts, and branches
// breaching their effective fairness bounds.
func redFlags(in Input, branchQuotas map[string]int) []string {
	var flags []string

	for _, row := range in.Rows {
		if row.Quota == 0 {
			flags = append(flags, fmt.Sprintf("zero_quota_stratum:%s", row.StratumID))
		}
	}

	orphans := make([]string, len(in.OrphanedConcepts))
	copy(orphans, in.OrphanedConcepts)
	sort.Strings(orphans)
	for _, concept := range orphans {
		flags = append(flags, fmt.Sprintf("orphaned_concept:%s", concept))
	}

	branches := make([]string, 0, len(branchQuotas))
	for b := range branchQuotas {
		branches = append(branches, b)
	}
	sort.Strings(branches)
	for _, b := range branches {
		quota := float64(branchQuotas[b])
		if floor := in.BranchFloors[b]; floor > 0 && quota < floor {
			flags = append(flags, fmt.Sprintf("branch_below_floor:%s (%d < %.2f)", b, branchQuotas[b], floor))
		}
		if ceiling := in.BranchCeilings[b]; ceiling > 0 && !math.IsInf(ceiling, 1) && quota > ceiling {
			flags = append(flags, fmt.Sprintf("branch_above_ceiling:%s (%d > %.2f)", b, branchQuotas[b], ceiling))
		}
	}

	return flags
}
