package plan

import (
	"fmt"
	"sort"

	"github.com/evalforge/coverplan/internal/allocation"
	"github.com/evalforge/coverplan/internal/facet"
	"github.com/evalforge/coverplan/internal/taxonomy"
	"github.com/evalforge/coverplan/internal/types"
)

// BlockedCombination logs one facet combination excluded by a jurisdiction
// rule. Each (combination, reason) pair is logged once, never per concept.
type BlockedCombination struct {
	Combination string `json:"combination"`
	Reason      string `json:"reason"`
}

// stratumEntry pairs a draft row with its allocation input. The two stay
// index-aligned through the pipeline; quotas are merged back by stratum ID.
type stratumEntry struct {
	row     Row
	stratum allocation.Stratum
}

// stratify crosses every usable concept with every unblocked facet
// combination, synthesizing the stratum ID from the concept ID and the
// sorted facet assignments. Duplicate (concept, combination) pairs collapse
// onto the canonical entry with deduplicated provenance.
func stratify(st *buildState, in BuildInput, usable []taxonomy.Concept, combos []facet.Combination, overrides map[string]types.Difficulty) []stratumEntry {
	fanout := taxonomy.Fanout(in.Concepts)
	blocked := blockedKeys(in.Policy, in.Constraints.SLO.JurisdictionBlocklist)

	allowed := make([]facet.Combination, 0, len(combos))
	for _, combo := range combos {
		if key, hit := firstBlockedAssignment(combo, blocked); hit {
			st.logBlocked(combo.Key(), "jurisdiction:"+key)
			continue
		}
		allowed = append(allowed, combo)
	}

	entries := make([]stratumEntry, 0, len(usable)*len(allowed))
	seen := make(map[string]int, len(usable)*len(allowed))

	for _, concept := range usable {
		difficulty := taxonomy.InferDifficulty(concept, fanout)
		if override, ok := overrides[concept.ID]; ok {
			difficulty = override
		}
		risk := taxonomy.InferRisk(concept)

		for _, combo := range allowed {
			id := stratumID(concept.ID, combo)
			if idx, dup := seen[id]; dup {
				entries[idx].row.Provenance.Deduplicated = true
				continue
			}
			seen[id] = len(entries)
			entries = append(entries, stratumEntry{
				row:     draftRow(concept, combo, id, difficulty, risk, in.Constraints),
				stratum: draftStratum(concept, id, in),
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].row.StratumID < entries[j].row.StratumID
	})
	return entries
}

// stratumID derives the deterministic stratum identity. Combination keys
// are already sorted by facet name.
func stratumID(conceptID string, combo facet.Combination) string {
	return fmt.Sprintf("%s|%s", conceptID, combo.Key())
}

func draftRow(concept taxonomy.Concept, combo facet.Combination, id string, difficulty types.Difficulty, risk types.RiskTier, cfg allocation.ConstraintConfig) Row {
	label := concept.PreferredLabel
	if concept.Attributes.LocalizedLabel != "" {
		label = concept.Attributes.LocalizedLabel
	}
	return Row{
		StratumID:      id,
		ConceptID:      concept.ID,
		PreferredLabel: label,
		AncestorPath:   concept.AncestorPath,
		Branch:         concept.Branch(),
		DepthBand:      depthBand(concept.Depth),
		Difficulty:     difficulty,
		RiskTier:       risk,
		Facets:         combo.ToMap(),
		PolicyFlags:    concept.PolicyTags,
		Provenance: Provenance{
			ConceptSnapshotID:    cfg.ConceptSnapshotID,
			PrevalenceSnapshotID: cfg.PrevalenceSnapshotID,
		},
	}
}

func draftStratum(concept taxonomy.Concept, id string, in BuildInput) allocation.Stratum {
	s := allocation.Stratum{
		ID:          id,
		Branch:      concept.Branch(),
		ConceptID:   concept.ID,
		SizeWeight:  1,
		PolicyFlags: concept.PolicyTags,
	}
	if w, ok := in.SizeWeights[concept.ID]; ok && w > 0 {
		s.SizeWeight = w
	}
	if min := concept.Attributes.MinimumQuota; min != nil && *min > 0 {
		s.Minimum = *min
	}
	if max := concept.Attributes.MaximumQuota; max != nil && *max > 0 {
		s.Maximum = *max
	}
	return s
}

// blockedKeys merges the policy jurisdiction blocks with the SLO blocklist
// into one "facet:value" set.
func blockedKeys(policy taxonomy.PolicyConstraint, sloBlocklist []string) map[string]bool {
	blocked := make(map[string]bool, len(policy.JurisdictionBlocked)+len(sloBlocklist))
	for _, key := range policy.JurisdictionBlocked {
		blocked[key] = true
	}
	for _, key := range sloBlocklist {
		blocked[key] = true
	}
	return blocked
}

func firstBlockedAssignment(combo facet.Combination, blocked map[string]bool) (string, bool) {
	for _, a := range combo {
		key := a.Facet + ":" + a.Value
		if blocked[key] {
			return key, true
		}
	}
	return "", false
}
