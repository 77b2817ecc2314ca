package allocation

import (
	"fmt"
	"math"
	"sort"
)

// enforceBranchFairness applies branch quota floors and ceilings in a
// single corrective pass. Effective bounds come from explicit per-branch
// overrides, falling back to the fairness floor/ceiling fractions of the
// total budget for branches without an override.
//
// For each branch below its minimum, the shortfall is added evenly across
// the branch's strata; for each branch above its maximum, the excess is
// subtracted evenly (never below zero). The whole vector is then rescaled
// to the total budget. No convergence loop runs, so conflicting constraints
// across branches can leave residual violations; the diagnostics layer flags
// those downstream. Every adjustment is recorded as a human-readable
// fairness note.
func enforceBranchFairness(targets []float64, strata []Stratum, cfg ConstraintConfig) ([]float64, []string) {
	total := float64(cfg.TotalItems)

	members := make(map[string][]int)
	for i, s := range strata {
		members[s.Branch] = append(members[s.Branch], i)
	}
	branches := make([]string, 0, len(members))
	for b := range members {
		branches = append(branches, b)
	}
	sort.Strings(branches)

	adjusted := make([]float64, len(targets))
	copy(adjusted, targets)

	var notes []string
	changed := false

	for _, branch := range branches {
		idx := members[branch]
		var sum float64
		for _, i := range idx {
			sum += adjusted[i]
		}

		minimum := EffectiveBranchMinimum(branch, cfg)
		maximum := EffectiveBranchMaximum(branch, cfg)

		switch {
		case sum < minimum:
			shortfall := minimum - sum
			per := shortfall / float64(len(idx))
			for _, i := range idx {
				adjusted[i] += per
			}
			changed = true
			notes = append(notes, fmt.Sprintf(
				"branch %q below minimum: raised %.2f -> %.2f (+%.2f each across %d strata)",
				branch, sum, minimum, per, len(idx)))

		case sum > maximum:
			excess := sum - maximum
			per := excess / float64(len(idx))
			for _, i := range idx {
				adjusted[i] -= per
				if adjusted[i] < 0 {
					adjusted[i] = 0
				}
			}
			changed = true
			notes = append(notes, fmt.Sprintf(
				"branch %q above maximum: lowered %.2f -> %.2f (-%.2f each across %d strata)",
				branch, sum, maximum, per, len(idx)))
		}
	}

	if !changed {
		return targets, nil
	}
	return scaleTo(adjusted, total), notes
}

// EffectiveBranchMinimum returns the absolute quota floor for a branch: the
// explicit override when present, otherwise the fairness floor fraction of
// the total budget. Exported so the diagnostics projection judges branches
// against the same bounds the enforcement pass used.
func EffectiveBranchMinimum(branch string, cfg ConstraintConfig) float64 {
	if v, ok := cfg.BranchMinimums[branch]; ok {
		return float64(v)
	}
	return cfg.FairnessFloor * float64(cfg.TotalItems)
}

// EffectiveBranchMaximum returns the absolute quota ceiling for a branch:
// the explicit override when present, otherwise the fairness ceiling
// fraction of the total budget, or +Inf when no ceiling applies.
func EffectiveBranchMaximum(branch string, cfg ConstraintConfig) float64 {
	if v, ok := cfg.BranchMaximums[branch]; ok {
		return float64(v)
	}
	if cfg.FairnessCeiling > 0 {
		return cfg.FairnessCeiling * float64(cfg.TotalItems)
	}
	return math.Inf(1)
}
