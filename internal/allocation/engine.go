package allocation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/evalforge/coverplan/internal/types"
)

// weightEpsilon floors size and variance weights to avoid division by zero.
const weightEpsilon = 1e-9

// Engine computes integer quotas per stratum. It holds no per-call state:
// every AllocateQuotas invocation is an independent, side-effect-free
// computation, so one engine is safe for concurrent use.
type Engine struct {
	solver Solver
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithSolver replaces the LP backend used by the cost-constrained strategy.
func WithSolver(s Solver) Option {
	return func(e *Engine) { e.solver = s }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an allocation engine. The default solver is the gonum
// simplex adapter; the default logger is slog.Default().
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		solver: NewSimplexSolver(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AllocateQuotas computes integer quotas for the strata under the
// constraint config. The config is validated first and a malformed config
// is the only fatal error besides capacity exhaustion; solver failures
// degrade to the fallback strategy and are recorded in the result.
//
// The returned quotas always sum exactly to cfg.TotalItems.
func (e *Engine) AllocateQuotas(ctx context.Context, strata []Stratum, cfg ConstraintConfig) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(strata) == 0 {
		return nil, types.NewError(types.PLAN_BUILD_FAILED, "cannot allocate: no strata")
	}

	res := &Result{StrategyUsed: cfg.Strategy}

	var targets []float64
	if cfg.Strategy == types.StrategyCostConstrained {
		solved, diag, manifest := e.solveCostConstrained(ctx, strata, cfg)
		if manifest == nil {
			targets = solved
			res.SolverDiagnostics = diag
		} else {
			res.FailureManifest = manifest
			res.StrategyUsed = cfg.fallback()
			res.Deviations = append(res.Deviations, fmt.Sprintf(
				"cost_constrained solve failed (%s); re-ran with fallback strategy %s",
				manifest.Reason, res.StrategyUsed))
			e.logger.Warn("LP solve failed, degrading to fallback strategy",
				"reason", manifest.Reason,
				"status", manifest.Status,
				"fallback", res.StrategyUsed)
		}
	}

	if targets == nil {
		var notes []string
		targets, notes = heuristicTargets(strata, cfg, res.StrategyUsed)
		res.FairnessNotes = notes
	}

	quotas, deltas := roundLargestRemainder(targets, strata, cfg.TotalItems)

	capNotes, err := enforceMaximums(quotas, strata, cfg.TotalItems)
	if err != nil {
		return nil, err
	}
	res.Deviations = append(res.Deviations, capNotes...)

	res.RawTargets = make(map[string]float64, len(strata))
	res.Quotas = make(map[string]int, len(strata))
	res.RoundingDelta = make(map[string]float64, len(strata))
	for i, s := range strata {
		res.RawTargets[s.ID] = targets[i]
		res.Quotas[s.ID] = quotas[i]
		res.RoundingDelta[s.ID] = deltas[i]
	}

	return res, nil
}

// heuristicTargets runs the non-LP pipeline: strategy weights, raw targets,
// prevalence mixing, minimum enforcement, and branch fairness enforcement.
func heuristicTargets(strata []Stratum, cfg ConstraintConfig, strategy types.Strategy) ([]float64, []string) {
	weights := computeWeights(strata, cfg, strategy)
	targets := scaleTo(weights, float64(cfg.TotalItems))
	targets = mixPrevalence(targets, strata, cfg)
	targets = enforceMinimums(targets, strata, float64(cfg.TotalItems))
	return enforceBranchFairness(targets, strata, cfg)
}

// computeWeights derives per-stratum strategy weights: uniform=1,
// proportional=size, neyman=size*variance, each multiplied by the risk
// weight when one is supplied. Size and variance are floored at epsilon.
func computeWeights(strata []Stratum, cfg ConstraintConfig, strategy types.Strategy) []float64 {
	weights := make([]float64, len(strata))
	for i, s := range strata {
		var w float64
		switch strategy {
		case types.StrategyProportional:
			w = flooredWeight(s.SizeWeight)
		case types.StrategyNeyman:
			w = flooredWeight(s.SizeWeight) * flooredWeight(varianceOf(s, cfg))
		default: // uniform
			w = 1
		}
		if r := riskOf(s, cfg); r > 0 {
			w *= r
		}
		weights[i] = w
	}
	return weights
}

func flooredWeight(w float64) float64 {
	if w < weightEpsilon {
		return weightEpsilon
	}
	return w
}

// varianceOf resolves the variance weight from the stratum or the config map.
func varianceOf(s Stratum, cfg ConstraintConfig) float64 {
	if s.VarianceWeight > 0 {
		return s.VarianceWeight
	}
	return cfg.VarianceWeights[s.ConceptID]
}

// riskOf resolves the risk weight from the stratum or the config map.
// Zero means no risk multiplier.
func riskOf(s Stratum, cfg ConstraintConfig) float64 {
	if s.RiskWeight > 0 {
		return s.RiskWeight
	}
	return cfg.RiskWeights[s.ConceptID]
}

// costOf resolves the per-item cost, defaulting to unit cost.
func costOf(s Stratum, cfg ConstraintConfig) float64 {
	if s.CostWeight > 0 {
		return s.CostWeight
	}
	if c, ok := cfg.CostWeights[s.ConceptID]; ok && c > 0 {
		return c
	}
	return 1
}

// prevalenceOf resolves the observed prevalence, preferring the stratum's
// own measurement over the config map.
func prevalenceOf(s Stratum, cfg ConstraintConfig) (float64, bool) {
	if s.Prevalence != nil {
		return *s.Prevalence, true
	}
	p, ok := cfg.Prevalence[s.ConceptID]
	return p, ok
}

// scaleTo rescales values so they sum exactly to total. A vector with no
// positive mass is replaced by a uniform spread.
func scaleTo(values []float64, total float64) []float64 {
	out := make([]float64, len(values))
	var sum float64
	for _, v := range values {
		if v > 0 {
			sum += v
		}
	}
	if sum <= 0 {
		per := total / float64(len(values))
		for i := range out {
			out[i] = per
		}
		return out
	}
	factor := total / sum
	for i, v := range values {
		if v > 0 {
			out[i] = v * factor
		}
	}
	return out
}

// mixPrevalence blends each stratum's normalized prevalence share with its
// current proportional share, using the mixing parameter as the linear
// interpolation weight, then rescales back to the running total.
func mixPrevalence(targets []float64, strata []Stratum, cfg ConstraintConfig) []float64 {
	alpha := cfg.MixingParameter
	if alpha <= 0 {
		return targets
	}

	prev := make([]float64, len(strata))
	var prevSum float64
	any := false
	for i, s := range strata {
		if p, ok := prevalenceOf(s, cfg); ok && p > 0 {
			prev[i] = p
			prevSum += p
			any = true
		}
	}
	if !any || prevSum <= 0 {
		return targets
	}

	var running float64
	for _, t := range targets {
		running += t
	}
	if running <= 0 {
		return targets
	}

	blended := make([]float64, len(targets))
	for i := range targets {
		share := targets[i] / running
		prevShare := prev[i] / prevSum
		blended[i] = (1-alpha)*share + alpha*prevShare
	}
	return scaleTo(blended, running)
}

// enforceMinimums raises every target below its declared minimum up to the
// minimum, then proportionally rescales the vector back to the total budget.
func enforceMinimums(targets []float64, strata []Stratum, total float64) []float64 {
	raised := make([]float64, len(targets))
	changed := false
	for i, s := range strata {
		raised[i] = targets[i]
		if minimum := float64(s.Minimum); raised[i] < minimum {
			raised[i] = minimum
			changed = true
		}
	}
	if !changed {
		return targets
	}
	return scaleTo(raised, total)
}
