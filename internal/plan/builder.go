package plan

import (
	"context"
	"log/slog"
	"time"

	"github.com/evalforge/coverplan/internal/allocation"
	"github.com/evalforge/coverplan/internal/diagnostics"
	"github.com/evalforge/coverplan/internal/facet"
	"github.com/evalforge/coverplan/internal/taxonomy"
	"github.com/evalforge/coverplan/internal/types"
	"github.com/evalforge/coverplan/pkg/version"
)

// BuildInput carries everything one plan build consumes. All fields are
// read-only during the build.
type BuildInput struct {
	// Concepts is the full concept frame from the upstream taxonomy
	// snapshot, including deprecated and non-leaf records.
	Concepts []taxonomy.Concept

	// Facets defines the combination grid.
	Facets facet.Config

	// Policy drives quarantine and jurisdiction blocking.
	Policy taxonomy.PolicyConstraint

	// Constraints is the allocation configuration. Validated before use.
	Constraints allocation.ConstraintConfig

	// Suggestions are pre-approved difficulty-override proposals.
	Suggestions []taxonomy.Suggestion

	// LeafOnly keeps only leaf concepts when true; otherwise the full
	// tree participates.
	LeafOnly bool

	// SizeWeights optionally overrides the unit size weight per concept.
	SizeWeights map[string]float64
}

// CoveragePlan is the versioned, self-describing plan artifact. It is owned
// exclusively by the Build call that produced it and never mutated after
// return.
type CoveragePlan struct {
	ID          types.ID  `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`

	Rows []Row `json:"rows"`

	TotalItems        int            `json:"total_items"`
	StrategyRequested types.Strategy `json:"strategy_requested"`
	StrategyUsed      types.Strategy `json:"strategy_used"`

	ConceptSnapshotID    string `json:"concept_snapshot_id,omitempty"`
	PrevalenceSnapshotID string `json:"prevalence_snapshot_id,omitempty"`
	AllocationVersion    string `json:"allocation_version,omitempty"`
	EngineVersion        string `json:"engine_version"`

	Diagnostics    diagnostics.Diagnostics `json:"diagnostics"`
	DataDictionary map[string]string       `json:"data_dictionary"`
	Report         string                  `json:"report"`

	Quarantine           []taxonomy.QuarantineRecord    `json:"quarantine,omitempty"`
	SuggestionRejections []taxonomy.SuggestionRejection `json:"suggestion_rejections,omitempty"`
	BlockedCombinations  []BlockedCombination           `json:"blocked_combinations,omitempty"`

	FairnessNotes []string `json:"fairness_notes,omitempty"`
	Deviations    []string `json:"deviations,omitempty"`

	SolverDiagnostics *allocation.SolverDiagnostics     `json:"solver_diagnostics,omitempty"`
	FailureManifest   *allocation.SolverFailureManifest `json:"failure_manifest,omitempty"`
}

// RowsByStratumID returns the plan rows keyed by stratum ID, the
// mapping-of-mappings shape row consumers index into; each row serializes
// as a field map under its json tags.
func (p *CoveragePlan) RowsByStratumID() map[string]Row {
	out := make(map[string]Row, len(p.Rows))
	for _, row := range p.Rows {
		out[row.StratumID] = row
	}
	return out
}

// Builder orchestrates the planning pipeline. It holds only immutable
// collaborators, so one Builder may serve concurrent Build calls; all
// per-call state lives in a call-scoped buildState.
type Builder struct {
	engine *allocation.Engine
	logger *slog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithEngine replaces the default allocation engine.
func WithEngine(e *allocation.Engine) BuilderOption {
	return func(b *Builder) { b.engine = e }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder creates a plan builder with the default engine and logger.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		engine: allocation.NewEngine(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// buildState is the call-scoped working set: the certificate cache and the
// blocked-combination log live here, never on the Builder, so concurrent
// Build calls cannot observe each other.
type buildState struct {
	certificates map[string][]string
	blocked      []BlockedCombination
	blockedSeen  map[string]bool
}

func newBuildState() *buildState {
	return &buildState{
		certificates: make(map[string][]string),
		blockedSeen:  make(map[string]bool),
	}
}

// logBlocked records one excluded combination, collapsing repeats of the
// same (combination, reason) pair.
func (st *buildState) logBlocked(combination, reason string) {
	key := combination + "\x00" + reason
	if st.blockedSeen[key] {
		return
	}
	st.blockedSeen[key] = true
	st.blocked = append(st.blocked, BlockedCombination{Combination: combination, Reason: reason})
}

// certificate returns the coverage certificate for a combination, computing
// it once per distinct combination key.
func (st *buildState) certificate(combo facet.Combination, strength int) []string {
	key := combo.Key()
	if cert, ok := st.certificates[key]; ok {
		return cert
	}
	cert := combo.Certificate(strength)
	st.certificates[key] = cert
	return cert
}

// Build runs the full pipeline: facet grid, policy filter, override intake,
// stratification, allocation, quota merge, diagnostics, and packaging. The
// caller receives either a complete plan or a single fatal configuration or
// capacity error; solver failures never surface as errors.
func (b *Builder) Build(ctx context.Context, in BuildInput) (*CoveragePlan, error) {
	if err := in.Facets.Validate(); err != nil {
		return nil, err
	}
	if err := in.Constraints.Validate(); err != nil {
		return nil, err
	}

	combos, err := facet.Generate(in.Facets)
	if err != nil {
		return nil, err
	}

	filtered := taxonomy.Filter(in.Concepts, in.Policy, in.LeafOnly)

	known := make(map[string]bool, len(filtered.Usable))
	for _, c := range filtered.Usable {
		known[c.ID] = true
	}
	overrides, rejections := taxonomy.ApplyOverrides(in.Suggestions, known)

	st := newBuildState()
	entries := stratify(st, in, filtered.Usable, combos, overrides)
	if len(entries) == 0 {
		return nil, types.NewError(types.PLAN_BUILD_FAILED,
			"no strata to allocate: every concept is quarantined or every combination is blocked")
	}

	strata := make([]allocation.Stratum, len(entries))
	for i, e := range entries {
		strata[i] = e.stratum
	}

	result, err := b.engine.AllocateQuotas(ctx, strata, in.Constraints)
	if err != nil {
		return nil, err
	}

	rows := b.mergeQuotas(st, entries, result, in)
	plan := b.assemble(st, rows, result, filtered, rejections, in)

	b.logger.Info("coverage plan built",
		"plan_id", plan.ID,
		"rows", len(plan.Rows),
		"total_items", plan.TotalItems,
		"strategy_used", plan.StrategyUsed,
		"quarantined", len(plan.Quarantine),
		"red_flags", len(plan.Diagnostics.RedFlags))

	return plan, nil
}

// mergeQuotas copies the allocation outcome back into the draft rows and
// attaches coverage certificates.
func (b *Builder) mergeQuotas(st *buildState, entries []stratumEntry, result *allocation.Result, in BuildInput) []Row {
	strength := in.Facets.Strength
	rows := make([]Row, len(entries))
	for i, e := range entries {
		row := e.row
		row.PlannedQuota = result.Quotas[row.StratumID]
		row.MinimumQuota = e.stratum.Minimum
		row.MaximumQuota = e.stratum.Maximum
		row.AllocationMethod = result.StrategyUsed
		row.RoundingDelta = result.RoundingDelta[row.StratumID]
		row.Provenance.CoverageCertificate = st.certificate(rowCombination(row), strength)
		rows[i] = row
	}
	return rows
}

// rowCombination rebuilds the facet combination from the row's facet map.
func rowCombination(row Row) facet.Combination {
	combo := make(facet.Combination, 0, len(row.Facets))
	for name, value := range row.Facets {
		combo = append(combo, facet.Assignment{Facet: name, Value: value})
	}
	return combo
}

func (b *Builder) assemble(st *buildState, rows []Row, result *allocation.Result, filtered taxonomy.FilterResult, rejections []taxonomy.SuggestionRejection, in BuildInput) *CoveragePlan {
	diag := diagnostics.Compute(diagnosticsInput(rows, filtered, in.Constraints))

	plan := &CoveragePlan{
		ID:          types.NewID(),
		GeneratedAt: time.Now().UTC(),
		Rows:        rows,

		TotalItems:        in.Constraints.TotalItems,
		StrategyRequested: in.Constraints.Strategy,
		StrategyUsed:      result.StrategyUsed,

		ConceptSnapshotID:    in.Constraints.ConceptSnapshotID,
		PrevalenceSnapshotID: in.Constraints.PrevalenceSnapshotID,
		AllocationVersion:    in.Constraints.Version,
		EngineVersion:        version.Version,

		Diagnostics:    diag,
		DataDictionary: DataDictionary(),

		Quarantine:           filtered.Quarantined,
		SuggestionRejections: rejections,
		BlockedCombinations:  st.blocked,

		FairnessNotes: result.FairnessNotes,
		Deviations:    result.Deviations,

		SolverDiagnostics: result.SolverDiagnostics,
		FailureManifest:   result.FailureManifest,
	}
	plan.Report = buildReport(plan)
	return plan
}

// diagnosticsInput projects the final rows into the diagnostics view and
// resolves the effective fairness bound per branch, explicit overrides
// winning over the fraction-derived defaults, the same way the enforcement
// pass resolves them.
func diagnosticsInput(rows []Row, filtered taxonomy.FilterResult, cfg allocation.ConstraintConfig) diagnostics.Input {
	stats := make([]diagnostics.RowStat, len(rows))
	covered := make(map[string]bool, len(rows))
	leafByID := make(map[string]bool, len(filtered.Usable))
	totalLeaves := 0
	for _, c := range filtered.Usable {
		leafByID[c.ID] = c.IsLeaf
		if c.IsLeaf {
			totalLeaves++
		}
	}

	for i, row := range rows {
		stats[i] = diagnostics.RowStat{
			StratumID: row.StratumID,
			ConceptID: row.ConceptID,
			Branch:    row.Branch,
			DepthBand: row.DepthBand,
			Facets:    row.Facets,
			Quota:     row.PlannedQuota,
			IsLeaf:    leafByID[row.ConceptID],
		}
		covered[row.ConceptID] = true
	}

	var orphaned []string
	for _, c := range filtered.Usable {
		if !covered[c.ID] {
			orphaned = append(orphaned, c.ID)
		}
	}

	branchFloors := make(map[string]float64)
	branchCeilings := make(map[string]float64)
	for _, row := range rows {
		if _, ok := branchFloors[row.Branch]; ok {
			continue
		}
		branchFloors[row.Branch] = allocation.EffectiveBranchMinimum(row.Branch, cfg)
		branchCeilings[row.Branch] = allocation.EffectiveBranchMaximum(row.Branch, cfg)
	}

	return diagnostics.Input{
		Rows:              stats,
		TotalLeafConcepts: totalLeaves,
		OrphanedConcepts:  orphaned,
		BranchFloors:      branchFloors,
		BranchCeilings:    branchCeilings,
	}
}
