package allocation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
)

// solveCostConstrained formulates and solves the cost-constrained linear
// program:
//
//	maximize   Σ (weight_i / cost_i) · x_i
//	s.t.       Σ x_i == TotalItems
//	           branch minimum <= Σ_branch x_i <= branch maximum
//	           Minimum_i <= x_i <= Maximum_i
//
// where weight_i is the risk weight when supplied, else the size weight.
// On success the solution is rescaled for floating drift and returned as
// continuous targets. On any failure a SolverFailureManifest is returned
// instead; the engine never raises on solver failure.
func (e *Engine) solveCostConstrained(ctx context.Context, strata []Stratum, cfg ConstraintConfig) ([]float64, *SolverDiagnostics, *SolverFailureManifest) {
	if e.solver == nil {
		return nil, nil, newFailureManifest("no LP solver configured", SolveUnavailable, strata, cfg)
	}

	problem := buildProblem(strata, cfg)

	sol, err := e.solver.Solve(ctx, problem)
	if err != nil {
		return nil, nil, newFailureManifest(fmt.Sprintf("solver error: %v", err), SolveError, strata, cfg)
	}
	if sol.Status != SolveOptimal {
		return nil, nil, newFailureManifest(
			fmt.Sprintf("solver returned non-optimal status %q", sol.Status), sol.Status, strata, cfg)
	}
	if len(sol.Values) != len(strata) {
		return nil, nil, newFailureManifest(
			fmt.Sprintf("solver returned %d values for %d strata", len(sol.Values), len(strata)),
			SolveError, strata, cfg)
	}

	// Clamp solver noise below zero, then rescale for floating drift.
	targets := make([]float64, len(sol.Values))
	for i, v := range sol.Values {
		if v < 0 {
			v = 0
		}
		targets[i] = v
	}
	targets = scaleTo(targets, float64(cfg.TotalItems))

	diag := &SolverDiagnostics{
		Status:           sol.Status,
		Objective:        sol.Objective,
		ConstraintSlacks: sol.Slacks,
	}
	return targets, diag, nil
}

// buildProblem translates strata and constraints into the solver's
// maximization form.
func buildProblem(strata []Stratum, cfg ConstraintConfig) Problem {
	n := len(strata)

	objective := make([]float64, n)
	lower := make([]float64, n)
	upper := make([]float64, n)
	for i, s := range strata {
		weight := riskOf(s, cfg)
		if weight <= 0 {
			weight = flooredWeight(s.SizeWeight)
		}
		objective[i] = weight / costOf(s, cfg)

		lower[i] = float64(s.Minimum)
		if s.hasMaximum() {
			upper[i] = float64(s.Maximum)
		} else {
			upper[i] = math.Inf(1)
		}
	}

	eqRow := make([]float64, n)
	for i := range eqRow {
		eqRow[i] = 1
	}

	var leMatrix [][]float64
	var leBounds []float64
	for _, branch := range sortedBranches(strata) {
		row := make([]float64, n)
		for i, s := range strata {
			if s.Branch == branch {
				row[i] = 1
			}
		}
		if minimum := EffectiveBranchMinimum(branch, cfg); minimum > 0 {
			neg := make([]float64, n)
			for i, v := range row {
				neg[i] = -v
			}
			leMatrix = append(leMatrix, neg)
			leBounds = append(leBounds, -minimum)
		}
		if maximum := EffectiveBranchMaximum(branch, cfg); !math.IsInf(maximum, 1) {
			leMatrix = append(leMatrix, row)
			leBounds = append(leBounds, maximum)
		}
	}

	return Problem{
		Objective: objective,
		EqMatrix:  [][]float64{eqRow},
		EqBounds:  []float64{float64(cfg.TotalItems)},
		LeMatrix:  leMatrix,
		LeBounds:  leBounds,
		Lower:     lower,
		Upper:     upper,
		TimeLimit: cfg.lpTimeLimit(),
	}
}

func sortedBranches(strata []Stratum) []string {
	seen := make(map[string]bool)
	var branches []string
	for _, s := range strata {
		if !seen[s.Branch] {
			seen[s.Branch] = true
			branches = append(branches, s.Branch)
		}
	}
	sort.Strings(branches)
	return branches
}

// newFailureManifest synthesizes the failure record, including any
// heuristically-detected constraint conflicts.
func newFailureManifest(reason string, status SolveStatus, strata []Stratum, cfg ConstraintConfig) *SolverFailureManifest {
	return &SolverFailureManifest{
		Reason:              reason,
		Status:              status,
		ViolatedConstraints: detectViolatedConstraints(strata, cfg),
		FallbackStrategy:    cfg.fallback(),
		OccurredAt:          time.Now().UTC(),
	}
}

// detectViolatedConstraints scans for conflicts that make the LP
// infeasible by construction. Best effort: an empty list does not mean the
// program was feasible.
func detectViolatedConstraints(strata []Stratum, cfg ConstraintConfig) []string {
	var violations []string

	sumMin := 0
	for _, s := range strata {
		sumMin += s.Minimum
		if s.hasMaximum() && s.Minimum > s.Maximum {
			violations = append(violations, fmt.Sprintf(
				"stratum %q minimum %d exceeds its maximum %d", s.ID, s.Minimum, s.Maximum))
		}
	}
	if sumMin > cfg.TotalItems {
		violations = append(violations, fmt.Sprintf(
			"sum of stratum minimums (%d) exceeds total budget (%d)", sumMin, cfg.TotalItems))
	}

	var branchMinSum float64
	for _, branch := range sortedBranches(strata) {
		minimum := EffectiveBranchMinimum(branch, cfg)
		branchMinSum += minimum
		if minimum > float64(cfg.TotalItems) {
			violations = append(violations, fmt.Sprintf(
				"branch %q minimum %.0f exceeds total budget (%d)", branch, minimum, cfg.TotalItems))
		}
	}
	if branchMinSum > float64(cfg.TotalItems) {
		violations = append(violations, fmt.Sprintf(
			"sum of branch minimums (%.0f) exceeds total budget (%d)", branchMinSum, cfg.TotalItems))
	}

	return violations
}
