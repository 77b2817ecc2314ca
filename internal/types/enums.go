package types

// Difficulty classifies how hard a concept is expected to be for annotators
// or evaluators. Inferred by the stratifier unless an approved override or an
// explicit hint is present.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// String returns the string representation of Difficulty.
func (d Difficulty) String() string {
	return string(d)
}

// IsValid checks if the difficulty is a recognized value.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	default:
		return false
	}
}

// RiskTier classifies the policy risk attached to a concept.
type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// String returns the string representation of RiskTier.
func (r RiskTier) String() string {
	return string(r)
}

// IsValid checks if the risk tier is a recognized value.
func (r RiskTier) IsValid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	default:
		return false
	}
}

// Strategy identifies a quota allocation strategy.
type Strategy string

const (
	// StrategyUniform gives every stratum equal weight.
	StrategyUniform Strategy = "uniform"

	// StrategyProportional weights strata by their size weight.
	StrategyProportional Strategy = "proportional"

	// StrategyNeyman weights strata by size multiplied by variance,
	// minimizing estimator variance for a fixed budget.
	StrategyNeyman Strategy = "neyman"

	// StrategyCostConstrained formulates a linear program maximizing
	// value-per-cost under branch and stratum bounds.
	StrategyCostConstrained Strategy = "cost_constrained"
)

// String returns the string representation of Strategy.
func (s Strategy) String() string {
	return string(s)
}

// IsValid checks if the strategy is a recognized value.
func (s Strategy) IsValid() bool {
	switch s {
	case StrategyUniform, StrategyProportional, StrategyNeyman, StrategyCostConstrained:
		return true
	default:
		return false
	}
}

// QuarantineReason explains why a concept was excluded from stratification.
// Deprecated takes precedence over forbidden when both apply.
type QuarantineReason string

const (
	QuarantineDeprecated QuarantineReason = "deprecated"
	QuarantineForbidden  QuarantineReason = "forbidden"
)

// String returns the string representation of QuarantineReason.
func (q QuarantineReason) String() string {
	return string(q)
}

// RejectReason explains why a difficulty-override suggestion was not applied.
type RejectReason string

const (
	RejectUnknownConcept      RejectReason = "unknown_concept"
	RejectNotApproved         RejectReason = "not_approved"
	RejectInvalidPayload      RejectReason = "invalid_payload"
	RejectUnsupportedProposal RejectReason = "unsupported_proposal"
)

// String returns the string representation of RejectReason.
func (r RejectReason) String() string {
	return string(r)
}
