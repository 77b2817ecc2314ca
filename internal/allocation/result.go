package allocation

import (
	"time"

	"github.com/evalforge/coverplan/internal/types"
)

// SolverDiagnostics records what the LP backend reported, for audit.
type SolverDiagnostics struct {
	Status    SolveStatus `json:"status"`
	Objective float64     `json:"objective"`

	// ConstraintSlacks holds the slack per inequality constraint in the
	// order the constraints were posed.
	ConstraintSlacks []float64 `json:"constraint_slacks,omitempty"`
}

// SolverFailureManifest is synthesized whenever the cost-constrained solve
// cannot be used: solver absent, infeasible, non-optimal, timed out, or
// errored. The engine never raises on solver failure; it records the
// manifest and re-runs the configured fallback strategy.
type SolverFailureManifest struct {
	// Reason is the human-readable failure description.
	Reason string `json:"reason"`

	// Status is the uniform solve status the adapter reported.
	Status SolveStatus `json:"status"`

	// ViolatedConstraints lists heuristically-detected constraint
	// conflicts (e.g. sum of minimums exceeding the budget).
	ViolatedConstraints []string `json:"violated_constraints,omitempty"`

	// FallbackStrategy is the strategy the engine re-ran with.
	FallbackStrategy types.Strategy `json:"fallback_strategy"`

	// OccurredAt timestamps the failure.
	OccurredAt time.Time `json:"occurred_at"`
}

// Result is the full outcome of one allocation run.
type Result struct {
	// RawTargets holds the pre-round continuous target per stratum ID.
	RawTargets map[string]float64 `json:"raw_targets"`

	// Quotas holds the post-round integer quota per stratum ID.
	// Sums exactly to the configured total budget.
	Quotas map[string]int `json:"quotas"`

	// RoundingDelta is quota minus raw target, captured at rounding time
	// (before any maximum-enforcement redistribution).
	RoundingDelta map[string]float64 `json:"rounding_delta"`

	// FairnessNotes explains every branch floor/ceiling adjustment.
	FairnessNotes []string `json:"fairness_notes,omitempty"`

	// Deviations records departures from the requested configuration,
	// such as a solver fallback or capacity redistribution.
	Deviations []string `json:"deviations,omitempty"`

	// StrategyUsed is the strategy that actually produced the quotas. It
	// differs from the requested strategy on the fallback path.
	StrategyUsed types.Strategy `json:"strategy_used"`

	// SolverDiagnostics is set when the LP solve succeeded.
	SolverDiagnostics *SolverDiagnostics `json:"solver_diagnostics,omitempty"`

	// FailureManifest is set when the LP solve failed.
	FailureManifest *SolverFailureManifest `json:"failure_manifest,omitempty"`
}
