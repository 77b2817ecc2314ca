// Package plan assembles the coverage plan artifact: it stratifies usable
// concepts across the facet grid, runs the allocation engine, merges quotas
// back into rows, and packages the versioned plan with diagnostics, a data
// dictionary, and a human-readable report.
package plan

import (
	"github.com/evalforge/coverplan/internal/types"
)

// Depth bands group concepts by taxonomy depth for the diagnostics
// breakdowns.
const (
	DepthBandShallow = "shallow"
	DepthBandMid     = "mid"
	DepthBandDeep    = "deep"
)

// Provenance records how a row came to be, for downstream audit.
type Provenance struct {
	// CoverageCertificate lists the facet-value sub-combinations this
	// row's combination is credited with covering.
	CoverageCertificate []string `json:"coverage_certificate,omitempty"`

	// Deduplicated is true when the same (concept, combination) pair was
	// generated more than once and collapsed onto this canonical row.
	Deduplicated bool `json:"deduplicated,omitempty"`

	// Snapshot identifiers pin the inputs the row was derived from.
	ConceptSnapshotID    string `json:"concept_snapshot_id,omitempty"`
	PrevalenceSnapshotID string `json:"prevalence_snapshot_id,omitempty"`
}

// Row is one output record per stratum.
type Row struct {
	StratumID      string            `json:"stratum_id"`
	ConceptID      string            `json:"concept_id"`
	PreferredLabel string            `json:"preferred_label"`
	AncestorPath   []string          `json:"ancestor_path,omitempty"`
	Branch         string            `json:"branch"`
	DepthBand      string            `json:"depth_band"`
	Difficulty     types.Difficulty  `json:"difficulty"`
	RiskTier       types.RiskTier    `json:"risk_tier"`
	Facets         map[string]string `json:"facets"`

	// PlannedQuota is the rounded integer quota after all enforcement.
	PlannedQuota int `json:"planned_quota"`

	// MinimumQuota and MaximumQuota are the per-stratum bounds the
	// allocation honored. Zero maximum means unbounded.
	MinimumQuota int `json:"minimum_quota"`
	MaximumQuota int `json:"maximum_quota,omitempty"`

	// AllocationMethod is the strategy that actually produced the quota.
	AllocationMethod types.Strategy `json:"allocation_method"`

	// RoundingDelta is quota minus raw target at rounding time.
	RoundingDelta float64 `json:"rounding_delta"`

	PolicyFlags []string   `json:"policy_flags,omitempty"`
	Provenance  Provenance `json:"provenance"`
}

// depthBand buckets a taxonomy depth into the three reporting bands.
func depthBand(depth int) string {
	switch {
	case depth <= 2:
		return DepthBandShallow
	case depth >= 4:
		return DepthBandDeep
	default:
		return DepthBandMid
	}
}
