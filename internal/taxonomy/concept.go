// Package taxonomy models the concept frame consumed by the coverage
// planner: immutable concept records from an upstream taxonomy snapshot,
// policy filtering with quarantine, breadth/difficulty/risk inference, and
// intake of pre-approved difficulty-override suggestions.
package taxonomy

import (
	"github.com/evalforge/coverplan/internal/types"
)

// Attributes carries the free-form domain attributes a concept record may
// declare. The planner reads a closed set of keys; anything else upstream
// attaches is ignored here.
type Attributes struct {
	// MinimumQuota is an explicit per-concept quota floor.
	MinimumQuota *int `json:"minimum_quota,omitempty" yaml:"minimum_quota,omitempty"`

	// MaximumQuota is an explicit per-concept quota ceiling.
	MaximumQuota *int `json:"maximum_quota,omitempty" yaml:"maximum_quota,omitempty"`

	// DifficultyHint, when set to a valid difficulty, wins over the heuristic.
	DifficultyHint string `json:"difficulty_hint,omitempty" yaml:"difficulty_hint,omitempty"`

	// Risk is an upstream risk label ("high", "medium", or empty).
	Risk string `json:"risk,omitempty" yaml:"risk,omitempty"`

	// LocalizedLabel is an optional display label in the target locale.
	LocalizedLabel string `json:"localized_label,omitempty" yaml:"localized_label,omitempty"`
}

// Concept is one immutable record from the upstream concept frame.
type Concept struct {
	// ID is the stable concept identifier from the taxonomy snapshot.
	ID string `json:"id" yaml:"id"`

	// PreferredLabel is the canonical human-readable label.
	PreferredLabel string `json:"preferred_label" yaml:"preferred_label"`

	// AncestorPath lists ancestor IDs ordered root-first.
	AncestorPath []string `json:"ancestor_path,omitempty" yaml:"ancestor_path,omitempty"`

	// Depth is the concept's depth in the taxonomy tree.
	Depth int `json:"depth" yaml:"depth"`

	// IsLeaf marks concepts with no descendants.
	IsLeaf bool `json:"is_leaf" yaml:"is_leaf"`

	// IsDeprecated marks concepts retired upstream; they are quarantined.
	IsDeprecated bool `json:"is_deprecated" yaml:"is_deprecated"`

	// Attributes carries optional per-concept planner inputs.
	Attributes Attributes `json:"attributes,omitempty" yaml:"attributes,omitempty"`

	// PolicyTags carries upstream policy labels (e.g. "safety-critical").
	PolicyTags []string `json:"policy_tags,omitempty" yaml:"policy_tags,omitempty"`
}

// Branch returns the top-level ancestor grouping used as the fairness
// enforcement unit. Root concepts are their own branch.
func (c Concept) Branch() string {
	if len(c.AncestorPath) > 0 {
		return c.AncestorPath[0]
	}
	return c.ID
}

// HasTag reports whether the concept carries the given policy tag.
func (c Concept) HasTag(tag string) bool {
	for _, t := range c.PolicyTags {
		if t == tag {
			return true
		}
	}
	return false
}

// Validate checks the structural invariants of the record.
func (c Concept) Validate() error {
	if c.ID == "" {
		return types.NewError(types.CONCEPT_INVALID, "concept id cannot be empty")
	}
	if c.Depth < 0 {
		return types.NewErrorf(types.CONCEPT_INVALID, "concept %q has negative depth %d", c.ID, c.Depth)
	}
	for _, ancestor := range c.AncestorPath {
		if ancestor == "" {
			return types.NewErrorf(types.CONCEPT_INVALID, "concept %q has an empty ancestor id", c.ID)
		}
		if ancestor == c.ID {
			return types.NewErrorf(types.CONCEPT_INVALID, "concept %q lists itself as an ancestor", c.ID)
		}
	}
	if c.Attributes.MinimumQuota != nil && *c.Attributes.MinimumQuota < 0 {
		return types.NewErrorf(types.CONCEPT_INVALID, "concept %q has negative minimum_quota", c.ID)
	}
	if c.Attributes.MaximumQuota != nil && *c.Attributes.MaximumQuota < 0 {
		return types.NewErrorf(types.CONCEPT_INVALID, "concept %q has negative maximum_quota", c.ID)
	}
	return nil
}

// Fanout counts, per ancestor ID, how many concepts descend from it.
// The count is used as a breadth signal by difficulty inference.
func Fanout(concepts []Concept) map[string]int {
	fanout := make(map[string]int)
	for _, c := range concepts {
		for _, ancestor := range c.AncestorPath {
			fanout[ancestor]++
		}
	}
	return fanout
}
