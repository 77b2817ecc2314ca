package allocation

// Stratum is one allocation unit: a (concept, facet-combination) pair with
// the weights and bounds the strategies consume. Strata are immutable once
// handed to the engine.
type Stratum struct {
	// ID is the deterministic stratum identity derived from the concept ID
	// and the sorted facet assignments.
	ID string `json:"id"`

	// Branch is the top-level ancestor grouping used for fairness.
	Branch string `json:"branch"`

	// ConceptID keys the stratum back to its concept.
	ConceptID string `json:"concept_id"`

	// SizeWeight is the stratum's size signal (population share, document
	// count, etc.). Floored at a small epsilon when used as a divisor.
	SizeWeight float64 `json:"size_weight"`

	// VarianceWeight feeds Neyman allocation. Zero means unknown.
	VarianceWeight float64 `json:"variance_weight,omitempty"`

	// CostWeight is the per-item cost for the cost-constrained strategy.
	// Zero means unit cost.
	CostWeight float64 `json:"cost_weight,omitempty"`

	// RiskWeight multiplies the strategy weight when positive.
	RiskWeight float64 `json:"risk_weight,omitempty"`

	// Minimum is the per-stratum quota floor.
	Minimum int `json:"minimum"`

	// Maximum is the per-stratum quota ceiling. Zero means unbounded.
	Maximum int `json:"maximum,omitempty"`

	// PolicyFlags carries policy labels surfaced on the plan row.
	PolicyFlags []string `json:"policy_flags,omitempty"`

	// Prevalence is the observed prevalence share, when measured.
	Prevalence *float64 `json:"prevalence,omitempty"`
}

// hasMaximum reports whether a finite quota ceiling applies.
func (s Stratum) hasMaximum() bool {
	return s.Maximum > 0
}

// capacity returns the remaining quota headroom above the given value.
// Unbounded strata report a negative sentinel meaning infinite.
func (s Stratum) capacity(current int) int {
	if !s.hasMaximum() {
		return -1
	}
	if s.Maximum < current {
		return 0
	}
	return s.Maximum - current
}
