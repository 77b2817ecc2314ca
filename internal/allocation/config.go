// Package allocation computes integer item quotas per stratum under a fixed
// total budget. Four strategies are supported (uniform, proportional,
// Neyman, and LP cost-constrained with fallback), with fairness floors and
// ceilings enforced per branch, deterministic largest-remainder rounding,
// and per-stratum capacity bounds.
package allocation

import (
	"time"

	"github.com/evalforge/coverplan/internal/types"
)

// DefaultLPTimeLimit bounds the external solver call when the SLO config
// does not override it.
const DefaultLPTimeLimit = 15 * time.Second

// SLOConfig carries operational limits attached to the allocation run.
type SLOConfig struct {
	// LPTimeLimit bounds the cost-constrained solver call. Zero means
	// DefaultLPTimeLimit.
	LPTimeLimit time.Duration `json:"lp_time_limit,omitempty" yaml:"lp_time_limit,omitempty" mapstructure:"lp_time_limit"`

	// JurisdictionBlocklist lists additional "facet:value" keys excluded
	// from stratification, on top of the policy constraint's own list.
	JurisdictionBlocklist []string `json:"jurisdiction_blocklist,omitempty" yaml:"jurisdiction_blocklist,omitempty" mapstructure:"jurisdiction_blocklist"`

	// Extra carries SLO entries the planner does not interpret.
	Extra map[string]string `json:"extra,omitempty" yaml:"extra,omitempty" mapstructure:"extra"`
}

// ConstraintConfig is the validated global constraint set for one
// allocation run. All weight maps are keyed by concept ID.
type ConstraintConfig struct {
	// TotalItems is the fixed total item budget. Must be positive.
	TotalItems int `json:"total_items" yaml:"total_items" mapstructure:"total_items" validate:"required,gt=0"`

	// BranchMinimums and BranchMaximums are explicit absolute quota bounds
	// per branch. Branches without an explicit bound fall back to the
	// fairness floor/ceiling fractions.
	BranchMinimums map[string]int `json:"branch_minimums,omitempty" yaml:"branch_minimums,omitempty" mapstructure:"branch_minimums"`
	BranchMaximums map[string]int `json:"branch_maximums,omitempty" yaml:"branch_maximums,omitempty" mapstructure:"branch_maximums"`

	// FairnessFloor and FairnessCeiling are fractions of TotalItems each
	// branch must / may receive. Both live in [0,1]; zero disables.
	FairnessFloor   float64 `json:"fairness_floor" yaml:"fairness_floor" mapstructure:"fairness_floor" validate:"gte=0,lte=1"`
	FairnessCeiling float64 `json:"fairness_ceiling" yaml:"fairness_ceiling" mapstructure:"fairness_ceiling" validate:"gte=0,lte=1"`

	// CostWeights, RiskWeights, and VarianceWeights feed the strategies.
	CostWeights     map[string]float64 `json:"cost_weights,omitempty" yaml:"cost_weights,omitempty" mapstructure:"cost_weights"`
	RiskWeights     map[string]float64 `json:"risk_weights,omitempty" yaml:"risk_weights,omitempty" mapstructure:"risk_weights"`
	VarianceWeights map[string]float64 `json:"variance_weights,omitempty" yaml:"variance_weights,omitempty" mapstructure:"variance_weights"`

	// Prevalence is the observed prevalence share per concept, blended into
	// proportional shares by MixingParameter.
	Prevalence map[string]float64 `json:"prevalence,omitempty" yaml:"prevalence,omitempty" mapstructure:"prevalence"`

	// MixingParameter is the linear interpolation weight for prevalence
	// blending, in [0,1]. Zero disables blending.
	MixingParameter float64 `json:"mixing_parameter" yaml:"mixing_parameter" mapstructure:"mixing_parameter" validate:"gte=0,lte=1"`

	// Strategy is the requested allocation strategy.
	Strategy types.Strategy `json:"strategy" yaml:"strategy" mapstructure:"strategy"`

	// FallbackStrategy is used when the cost-constrained solver fails.
	// Must not itself be cost_constrained. Empty means uniform.
	FallbackStrategy types.Strategy `json:"fallback_strategy,omitempty" yaml:"fallback_strategy,omitempty" mapstructure:"fallback_strategy"`

	// SLO carries operational limits for the run.
	SLO SLOConfig `json:"slo,omitempty" yaml:"slo,omitempty" mapstructure:"slo"`

	// Snapshot identifiers pin the inputs for provenance.
	ConceptSnapshotID    string `json:"concept_snapshot_id,omitempty" yaml:"concept_snapshot_id,omitempty" mapstructure:"concept_snapshot_id"`
	PrevalenceSnapshotID string `json:"prevalence_snapshot_id,omitempty" yaml:"prevalence_snapshot_id,omitempty" mapstructure:"prevalence_snapshot_id"`

	// Version tags the allocation configuration.
	Version string `json:"version,omitempty" yaml:"version,omitempty" mapstructure:"version"`
}

// Validate fails fast on malformed configuration. It must be called (and is
// called by the engine) before any allocation work.
func (c ConstraintConfig) Validate() error {
	if c.TotalItems <= 0 {
		return types.NewErrorf(types.CONFIG_VALIDATION_FAILED, "total_items must be positive, got %d", c.TotalItems)
	}
	if c.MixingParameter < 0 || c.MixingParameter > 1 {
		return types.NewErrorf(types.CONFIG_VALIDATION_FAILED, "mixing_parameter must be in [0,1], got %g", c.MixingParameter)
	}
	if c.FairnessFloor < 0 || c.FairnessFloor > 1 {
		return types.NewErrorf(types.CONFIG_VALIDATION_FAILED, "fairness_floor must be in [0,1], got %g", c.FairnessFloor)
	}
	if c.FairnessCeiling < 0 || c.FairnessCeiling > 1 {
		return types.NewErrorf(types.CONFIG_VALIDATION_FAILED, "fairness_ceiling must be in [0,1], got %g", c.FairnessCeiling)
	}
	if c.FairnessCeiling > 0 && c.FairnessFloor > c.FairnessCeiling {
		return types.NewErrorf(types.CONFIG_VALIDATION_FAILED,
			"fairness_floor %g exceeds fairness_ceiling %g", c.FairnessFloor, c.FairnessCeiling)
	}
	if !c.Strategy.IsValid() {
		return types.NewErrorf(types.CONFIG_VALIDATION_FAILED, "unknown strategy %q", c.Strategy)
	}
	if c.FallbackStrategy == types.StrategyCostConstrained {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "fallback_strategy cannot be cost_constrained")
	}
	if c.FallbackStrategy != "" && !c.FallbackStrategy.IsValid() {
		return types.NewErrorf(types.CONFIG_VALIDATION_FAILED, "unknown fallback_strategy %q", c.FallbackStrategy)
	}
	for branch, minimum := range c.BranchMinimums {
		if minimum < 0 {
			return types.NewErrorf(types.CONFIG_VALIDATION_FAILED, "branch %q minimum cannot be negative", branch)
		}
		if maximum, ok := c.BranchMaximums[branch]; ok && minimum > maximum {
			return types.NewErrorf(types.CONFIG_VALIDATION_FAILED,
				"branch %q minimum %d exceeds maximum %d", branch, minimum, maximum)
		}
	}
	for branch, maximum := range c.BranchMaximums {
		if maximum < 0 {
			return types.NewErrorf(types.CONFIG_VALIDATION_FAILED, "branch %q maximum cannot be negative", branch)
		}
	}
	return nil
}

// fallback returns the configured fallback strategy, defaulting to uniform.
func (c ConstraintConfig) fallback() types.Strategy {
	if c.FallbackStrategy == "" {
		return types.StrategyUniform
	}
	return c.FallbackStrategy
}

// lpTimeLimit returns the solver time limit, applying the default.
func (c ConstraintConfig) lpTimeLimit() time.Duration {
	if c.SLO.LPTimeLimit > 0 {
		return c.SLO.LPTimeLimit
	}
	return DefaultLPTimeLimit
}
