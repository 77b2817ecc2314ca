package taxonomy

import (
	"github.com/evalforge/coverplan/internal/types"
)

// PolicyConstraint names the concepts and combinations the plan may never
// touch: forbidden concept IDs, forbidden policy tags, and jurisdiction
// block keys of the form "facet:value".
type PolicyConstraint struct {
	ForbiddenConcepts []string `json:"forbidden_concepts,omitempty" yaml:"forbidden_concepts,omitempty" mapstructure:"forbidden_concepts"`
	ForbiddenTags     []string `json:"forbidden_tags,omitempty" yaml:"forbidden_tags,omitempty" mapstructure:"forbidden_tags"`

	// JurisdictionBlocked lists "facet:value" keys; any combination carrying
	// one of these assignments is excluded from stratification.
	JurisdictionBlocked []string `json:"jurisdiction_blocked,omitempty" yaml:"jurisdiction_blocked,omitempty" mapstructure:"jurisdiction_blocked"`
}

// QuarantineRecord retains an excluded concept and the reason for audit.
// Quarantined concepts never contribute plan rows but are never silently
// dropped either.
type QuarantineRecord struct {
	ConceptID string                 `json:"concept_id"`
	Reason    types.QuarantineReason `json:"reason"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// FilterResult partitions the input concept frame.
type FilterResult struct {
	// Usable concepts survive policy filtering and the tree policy.
	Usable []Concept

	// Quarantined concepts were deprecated or forbidden; kept for audit.
	Quarantined []QuarantineRecord
}

// Filter partitions concepts into usable vs. quarantined and applies the
// tree policy. Deprecation takes precedence over forbidden rules when both
// apply. When leafOnly is true, non-leaf concepts are excluded structurally
// (they are not policy exclusions, so they do not enter quarantine).
func Filter(concepts []Concept, policy PolicyConstraint, leafOnly bool) FilterResult {
	forbiddenID := make(map[string]bool, len(policy.ForbiddenConcepts))
	for _, id := range policy.ForbiddenConcepts {
		forbiddenID[id] = true
	}
	forbiddenTag := make(map[string]bool, len(policy.ForbiddenTags))
	for _, tag := range policy.ForbiddenTags {
		forbiddenTag[tag] = true
	}

	var result FilterResult
	for _, c := range concepts {
		if c.IsDeprecated {
			result.Quarantined = append(result.Quarantined, QuarantineRecord{
				ConceptID: c.ID,
				Reason:    types.QuarantineDeprecated,
				Metadata:  map[string]string{"label": c.PreferredLabel},
			})
			continue
		}

		if forbiddenID[c.ID] {
			result.Quarantined = append(result.Quarantined, QuarantineRecord{
				ConceptID: c.ID,
				Reason:    types.QuarantineForbidden,
				Metadata:  map[string]string{"label": c.PreferredLabel, "matched": "concept_id"},
			})
			continue
		}

		if tag, hit := firstForbiddenTag(c, forbiddenTag); hit {
			result.Quarantined = append(result.Quarantined, QuarantineRecord{
				ConceptID: c.ID,
				Reason:    types.QuarantineForbidden,
				Metadata:  map[string]string{"label": c.PreferredLabel, "matched": "policy_tag:" + tag},
			})
			continue
		}

		if leafOnly && !c.IsLeaf {
			continue
		}

		result.Usable = append(result.Usable, c)
	}

	return result
}

func firstForbiddenTag(c Concept, forbidden map[string]bool) (string, bool) {
	for _, tag := range c.PolicyTags {
		if forbidden[tag] {
			return tag, true
		}
	}
	return "", false
}
