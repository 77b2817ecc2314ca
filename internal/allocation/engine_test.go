package allocation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalforge/coverplan/internal/types"
)

// fakeSolver returns a canned solution or error, for exercising the
// cost-constrained paths without gonum.
type fakeSolver struct {
	solution *Solution
	err      error
}

func (f *fakeSolver) Solve(_ context.Context, _ Problem) (*Solution, error) {
	return f.solution, f.err
}

func floatPtr(v float64) *float64 { return &v }

func baseConfig(total int, strategy types.Strategy) ConstraintConfig {
	return ConstraintConfig{
		TotalItems:       total,
		Strategy:         strategy,
		FallbackStrategy: types.StrategyUniform,
	}
}

func sumQuotas(r *Result) int {
	sum := 0
	for _, q := range r.Quotas {
		sum += q
	}
	return sum
}

func TestConstraintConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ConstraintConfig)
	}{
		{"zero budget", func(c *ConstraintConfig) { c.TotalItems = 0 }},
		{"negative budget", func(c *ConstraintConfig) { c.TotalItems = -5 }},
		{"mixing above one", func(c *ConstraintConfig) { c.MixingParameter = 1.5 }},
		{"mixing below zero", func(c *ConstraintConfig) { c.MixingParameter = -0.1 }},
		{"floor above one", func(c *ConstraintConfig) { c.FairnessFloor = 2 }},
		{"ceiling above one", func(c *ConstraintConfig) { c.FairnessCeiling = 1.2 }},
		{"floor above ceiling", func(c *ConstraintConfig) { c.FairnessFloor = 0.8; c.FairnessCeiling = 0.2 }},
		{"unknown strategy", func(c *ConstraintConfig) { c.Strategy = "greedy" }},
		{"cost_constrained fallback", func(c *ConstraintConfig) { c.FallbackStrategy = types.StrategyCostConstrained }},
		{"unknown fallback", func(c *ConstraintConfig) { c.FallbackStrategy = "magic" }},
		{"negative branch minimum", func(c *ConstraintConfig) { c.BranchMinimums = map[string]int{"b": -1} }},
		{"branch min above max", func(c *ConstraintConfig) {
			c.BranchMinimums = map[string]int{"b": 5}
			c.BranchMaximums = map[string]int{"b": 2}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig(10, types.StrategyUniform)
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, types.NewError(types.CONFIG_VALIDATION_FAILED, ""))
		})
	}

	assert.NoError(t, baseConfig(10, types.StrategyNeyman).Validate())
}

func TestAllocateQuotas_UniformConservation(t *testing.T) {
	strata := []Stratum{
		{ID: "s1", Branch: "a", ConceptID: "c1", SizeWeight: 1},
		{ID: "s2", Branch: "a", ConceptID: "c2", SizeWeight: 1},
		{ID: "s3", Branch: "b", ConceptID: "c3", SizeWeight: 1},
	}

	res, err := NewEngine().AllocateQuotas(context.Background(), strata, baseConfig(10, types.StrategyUniform))
	require.NoError(t, err)

	assert.Equal(t, 10, sumQuotas(res))
	assert.Equal(t, types.StrategyUniform, res.StrategyUsed)
	for id, q := range res.Quotas {
		assert.GreaterOrEqual(t, q, 0)
		assert.Less(t, res.RoundingDelta[id], 1.0)
		assert.Greater(t, res.RoundingDelta[id], -1.0)
	}
}

func TestAllocateQuotas_Proportional(t *testing.T) {
	strata := []Stratum{
		{ID: "big", Branch: "a", ConceptID: "c1", SizeWeight: 3},
		{ID: "small", Branch: "a", ConceptID: "c2", SizeWeight: 1},
	}

	res, err := NewEngine().AllocateQuotas(context.Background(), strata, baseConfig(8, types.StrategyProportional))
	require.NoError(t, err)

	assert.Equal(t, 6, res.Quotas["big"])
	assert.Equal(t, 2, res.Quotas["small"])
}

func TestAllocateQuotas_NeymanWeightsBySizeTimesVariance(t *testing.T) {
	strata := []Stratum{
		{ID: "volatile", Branch: "a", ConceptID: "c1", SizeWeight: 1, VarianceWeight: 4},
		{ID: "stable", Branch: "a", ConceptID: "c2", SizeWeight: 1, VarianceWeight: 1},
	}

	res, err := NewEngine().AllocateQuotas(context.Background(), strata, baseConfig(10, types.StrategyNeyman))
	require.NoError(t, err)

	assert.Equal(t, 8, res.Quotas["volatile"])
	assert.Equal(t, 2, res.Quotas["stable"])
}

func TestAllocateQuotas_NeymanVarianceFromConfigMap(t *testing.T) {
	strata := []Stratum{
		{ID: "volatile", Branch: "a", ConceptID: "c1", SizeWeight: 1},
		{ID: "stable", Branch: "a", ConceptID: "c2", SizeWeight: 1},
	}
	cfg := baseConfig(10, types.StrategyNeyman)
	cfg.VarianceWeights = map[string]float64{"c1": 4, "c2": 1}

	res, err := NewEngine().AllocateQuotas(context.Background(), strata, cfg)
	require.NoError(t, err)

	assert.Equal(t, 8, res.Quotas["volatile"])
	assert.Equal(t, 2, res.Quotas["stable"])
}

func TestAllocateQuotas_RiskWeightMultiplies(t *testing.T) {
	strata := []Stratum{
		{ID: "risky", Branch: "a", ConceptID: "c1", SizeWeight: 1, RiskWeight: 3},
		{ID: "plain", Branch: "a", ConceptID: "c2", SizeWeight: 1},
	}

	res, err := NewEngine().AllocateQuotas(context.Background(), strata, baseConfig(8, types.StrategyUniform))
	require.NoError(t, err)

	assert.Equal(t, 6, res.Quotas["risky"])
	assert.Equal(t, 2, res.Quotas["plain"])
}

func TestAllocateQuotas_MinimumsRaised(t *testing.T) {
	strata := []Stratum{
		{ID: "tiny", Branch: "a", ConceptID: "c1", SizeWeight: 0.01, Minimum: 5},
		{ID: "huge", Branch: "a", ConceptID: "c2", SizeWeight: 10},
	}

	res, err := NewEngine().AllocateQuotas(context.Background(), strata, baseConfig(20, types.StrategyProportional))
	require.NoError(t, err)

	assert.Equal(t, 20, sumQuotas(res))
	// 0.01:10 proportional would give tiny ~0; the minimum pulls it up
	// before the rescale, so it lands well above zero.
	assert.GreaterOrEqual(t, res.Quotas["tiny"], 3)
}

func TestAllocateQuotas_FairnessFloorRaisesBranch(t *testing.T) {
	strata := []Stratum{
		{ID: "a1", Branch: "a", ConceptID: "c1", SizeWeight: 5},
		{ID: "a2", Branch: "a", ConceptID: "c2", SizeWeight: 5},
		{ID: "a3", Branch: "a", ConceptID: "c3", SizeWeight: 5},
		{ID: "b1", Branch: "b", ConceptID: "c4", SizeWeight: 1},
	}
	cfg := baseConfig(16, types.StrategyProportional)
	cfg.FairnessFloor = 0.25

	res, err := NewEngine().AllocateQuotas(context.Background(), strata, cfg)
	require.NoError(t, err)

	assert.Equal(t, 16, sumQuotas(res))
	assert.Equal(t, 4, res.Quotas["b1"], "branch b should be raised to the 25%% floor")
	require.Len(t, res.FairnessNotes, 1)
	assert.Contains(t, res.FairnessNotes[0], `branch "b" below minimum`)
}

func TestAllocateQuotas_BranchMaximumLowersBranch(t *testing.T) {
	strata := []Stratum{
		{ID: "a1", Branch: "a", ConceptID: "c1", SizeWeight: 5},
		{ID: "a2", Branch: "a", ConceptID: "c2", SizeWeight: 5},
		{ID: "b1", Branch: "b", ConceptID: "c3", SizeWeight: 2},
	}
	cfg := baseConfig(12, types.StrategyProportional)
	cfg.BranchMaximums = map[string]int{"a": 6}

	res, err := NewEngine().AllocateQuotas(context.Background(), strata, cfg)
	require.NoError(t, err)

	assert.Equal(t, 12, sumQuotas(res))
	require.Len(t, res.FairnessNotes, 1)
	assert.Contains(t, res.FairnessNotes[0], `branch "a" above maximum`)
	// The single corrective pass shifts mass toward branch b.
	assert.Greater(t, res.Quotas["b1"], 2)
}

func TestAllocateQuotas_PrevalenceMixingFull(t *testing.T) {
	strata := []Stratum{
		{ID: "common", Branch: "a", ConceptID: "c1", SizeWeight: 1, Prevalence: floatPtr(0.9)},
		{ID: "rare", Branch: "a", ConceptID: "c2", SizeWeight: 1, Prevalence: floatPtr(0.1)},
	}
	cfg := baseConfig(10, types.StrategyUniform)
	cfg.MixingParameter = 1.0

	res, err := NewEngine().AllocateQuotas(context.Background(), strata, cfg)
	require.NoError(t, err)

	assert.Equal(t, 9, res.Quotas["common"])
	assert.Equal(t, 1, res.Quotas["rare"])
}

func TestAllocateQuotas_PrevalenceMixingHalf(t *testing.T) {
	strata := []Stratum{
		{ID: "common", Branch: "a", ConceptID: "c1", SizeWeight: 1},
		{ID: "rare", Branch: "a", ConceptID: "c2", SizeWeight: 1},
	}
	cfg := baseConfig(10, types.StrategyUniform)
	cfg.MixingParameter = 0.5
	cfg.Prevalence = map[string]float64{"c1": 0.9, "c2": 0.1}

	res, err := NewEngine().AllocateQuotas(context.Background(), strata, cfg)
	require.NoError(t, err)

	// Shares blend 0.5*(0.5,0.5) + 0.5*(0.9,0.1) = (0.7,0.3).
	assert.Equal(t, 7, res.Quotas["common"])
	assert.Equal(t, 3, res.Quotas["rare"])
}

func TestAllocateQuotas_RoundingTieBreaksByID(t *testing.T) {
	strata := []Stratum{
		{ID: "c", Branch: "x", ConceptID: "c3", SizeWeight: 1},
		{ID: "a", Branch: "x", ConceptID: "c1", SizeWeight: 1},
		{ID: "b", Branch: "x", ConceptID: "c2", SizeWeight: 1},
	}

	res, err := NewEngine().AllocateQuotas(context.Background(), strata, baseConfig(5, types.StrategyUniform))
	require.NoError(t, err)

	// 5/3 each: floors 1,1,1; two leftover units go to "a" then "b".
	assert.Equal(t, 2, res.Quotas["a"])
	assert.Equal(t, 2, res.Quotas["b"])
	assert.Equal(t, 1, res.Quotas["c"])
}

func TestAllocateQuotas_MaximumEnforcement(t *testing.T) {
	strata := []Stratum{
		{ID: "capped", Branch: "a", ConceptID: "c1", SizeWeight: 1, Maximum: 2},
		{ID: "open", Branch: "a", ConceptID: "c2", SizeWeight: 1},
	}

	res, err := NewEngine().AllocateQuotas(context.Background(), strata, baseConfig(10, types.StrategyUniform))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Quotas["capped"])
	assert.Equal(t, 8, res.Quotas["open"])
	assert.Equal(t, 10, sumQuotas(res))
	require.NotEmpty(t, res.Deviations)
	assert.Contains(t, res.Deviations[0], `stratum "capped" capped at maximum 2`)
}

func TestAllocateQuotas_CapacityExhaustionIsFatal(t *testing.T) {
	strata := []Stratum{
		{ID: "s1", Branch: "a", ConceptID: "c1", SizeWeight: 1, Maximum: 2},
		{ID: "s2", Branch: "a", ConceptID: "c2", SizeWeight: 1, Maximum: 3},
	}

	_, err := NewEngine().AllocateQuotas(context.Background(), strata, baseConfig(10, types.StrategyUniform))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.NewError(types.CAPACITY_EXHAUSTED, ""))
}

func TestAllocateQuotas_EmptyStrata(t *testing.T) {
	_, err := NewEngine().AllocateQuotas(context.Background(), nil, baseConfig(10, types.StrategyUniform))
	assert.Error(t, err)
}

func TestAllocateQuotas_CostConstrainedSuccess(t *testing.T) {
	strata := []Stratum{
		{ID: "cheap", Branch: "a", ConceptID: "c1", SizeWeight: 1, CostWeight: 1},
		{ID: "costly", Branch: "a", ConceptID: "c2", SizeWeight: 1, CostWeight: 5},
	}
	solver := &fakeSolver{solution: &Solution{
		Status:    SolveOptimal,
		Values:    []float64{7, 3},
		Objective: 7.6,
		Slacks:    []float64{0},
	}}
	cfg := baseConfig(10, types.StrategyCostConstrained)

	res, err := NewEngine(WithSolver(solver)).AllocateQuotas(context.Background(), strata, cfg)
	require.NoError(t, err)

	assert.Equal(t, types.StrategyCostConstrained, res.StrategyUsed)
	assert.Equal(t, 7, res.Quotas["cheap"])
	assert.Equal(t, 3, res.Quotas["costly"])
	require.NotNil(t, res.SolverDiagnostics)
	assert.Equal(t, SolveOptimal, res.SolverDiagnostics.Status)
	assert.Nil(t, res.FailureManifest)
}

func TestAllocateQuotas_FallbackOnInfeasible(t *testing.T) {
	strata := []Stratum{
		{ID: "s1", Branch: "a", ConceptID: "c1", SizeWeight: 1},
		{ID: "s2", Branch: "b", ConceptID: "c2", SizeWeight: 1},
	}
	solver := &fakeSolver{solution: &Solution{Status: SolveInfeasible}}
	cfg := baseConfig(10, types.StrategyCostConstrained)
	cfg.FallbackStrategy = types.StrategyProportional

	res, err := NewEngine(WithSolver(solver)).AllocateQuotas(context.Background(), strata, cfg)
	require.NoError(t, err)

	assert.Equal(t, types.StrategyProportional, res.StrategyUsed)
	assert.Equal(t, 10, sumQuotas(res))
	require.NotNil(t, res.FailureManifest)
	assert.NotEmpty(t, res.FailureManifest.Reason)
	assert.Equal(t, SolveInfeasible, res.FailureManifest.Status)
	assert.Equal(t, types.StrategyProportional, res.FailureManifest.FallbackStrategy)
	require.NotEmpty(t, res.Deviations)
	assert.Contains(t, res.Deviations[0], "fallback strategy proportional")
}

func TestAllocateQuotas_FallbackOnSolverError(t *testing.T) {
	strata := []Stratum{
		{ID: "s1", Branch: "a", ConceptID: "c1", SizeWeight: 1},
	}
	solver := &fakeSolver{err: context.DeadlineExceeded}

	res, err := NewEngine(WithSolver(solver)).AllocateQuotas(context.Background(), strata, baseConfig(4, types.StrategyCostConstrained))
	require.NoError(t, err)

	assert.Equal(t, types.StrategyUniform, res.StrategyUsed)
	assert.Equal(t, 4, sumQuotas(res))
	require.NotNil(t, res.FailureManifest)
	assert.Equal(t, SolveError, res.FailureManifest.Status)
}

func TestAllocateQuotas_FallbackOnTimeout(t *testing.T) {
	strata := []Stratum{
		{ID: "s1", Branch: "a", ConceptID: "c1", SizeWeight: 1},
	}
	solver := &fakeSolver{solution: &Solution{Status: SolveTimeout}}

	res, err := NewEngine(WithSolver(solver)).AllocateQuotas(context.Background(), strata, baseConfig(4, types.StrategyCostConstrained))
	require.NoError(t, err)

	require.NotNil(t, res.FailureManifest)
	assert.Equal(t, SolveTimeout, res.FailureManifest.Status)
	assert.Equal(t, 4, sumQuotas(res))
}

func TestAllocateQuotas_InfeasibleBudgetFallsBackWithViolations(t *testing.T) {
	// A branch minimum of 3 against a total budget of 1 cannot be solved;
	// the plan must still come back, built by the fallback strategy.
	strata := []Stratum{
		{ID: "s1", Branch: "b1", ConceptID: "c1", SizeWeight: 1},
		{ID: "s2", Branch: "b1", ConceptID: "c2", SizeWeight: 1},
	}
	cfg := baseConfig(1, types.StrategyCostConstrained)
	cfg.BranchMinimums = map[string]int{"b1": 3}

	res, err := NewEngine().AllocateQuotas(context.Background(), strata, cfg)
	require.NoError(t, err)

	assert.Equal(t, types.StrategyUniform, res.StrategyUsed)
	assert.Equal(t, 1, sumQuotas(res))
	require.NotNil(t, res.FailureManifest)
	assert.NotEmpty(t, res.FailureManifest.Reason)
	assert.NotEmpty(t, res.FailureManifest.ViolatedConstraints)
	require.NotEmpty(t, res.Deviations)
	assert.Contains(t, res.Deviations[0], "fallback")
}

func TestAllocateQuotas_ConservationAcrossStrategies(t *testing.T) {
	strata := []Stratum{
		{ID: "s1", Branch: "a", ConceptID: "c1", SizeWeight: 2.7, VarianceWeight: 0.3, Minimum: 1},
		{ID: "s2", Branch: "a", ConceptID: "c2", SizeWeight: 0.4, VarianceWeight: 2.1},
		{ID: "s3", Branch: "b", ConceptID: "c3", SizeWeight: 9.9, VarianceWeight: 0.01, Maximum: 40},
		{ID: "s4", Branch: "c", ConceptID: "c4", SizeWeight: 0.001},
	}

	for _, strategy := range []types.Strategy{
		types.StrategyUniform, types.StrategyProportional, types.StrategyNeyman,
	} {
		t.Run(string(strategy), func(t *testing.T) {
			cfg := baseConfig(97, strategy)
			cfg.FairnessFloor = 0.05

			res, err := NewEngine().AllocateQuotas(context.Background(), strata, cfg)
			require.NoError(t, err)
			assert.Equal(t, 97, sumQuotas(res))
			for _, q := range res.Quotas {
				assert.GreaterOrEqual(t, q, 0)
			}
		})
	}
}
