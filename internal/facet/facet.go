// Package facet models evaluation facets (orthogonal dimensions such as
// locale, modality, or length band) and generates the bounded set of
// facet-value combinations a coverage plan stratifies over.
package facet

import (
	"sort"
	"strings"

	"github.com/evalforge/coverplan/internal/types"
)

// Assignment is a single (facet, value) binding.
type Assignment struct {
	Facet string `json:"facet" yaml:"facet"`
	Value string `json:"value" yaml:"value"`
}

// String returns the canonical "facet=value" form used in keys and certificates.
func (a Assignment) String() string {
	return a.Facet + "=" + a.Value
}

// Combination is a concrete set of assignments, one per facet,
// kept sorted by facet name so keys are stable.
type Combination []Assignment

// Key returns a deterministic string identity for the combination.
// Facets are joined in sorted order, so equal assignment sets
// always produce equal keys.
func (c Combination) Key() string {
	parts := make([]string, len(c))
	for i, a := range c {
		parts[i] = a.String()
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

// Value returns the value assigned to the named facet, if any.
func (c Combination) Value(facet string) (string, bool) {
	for _, a := range c {
		if a.Facet == facet {
			return a.Value, true
		}
	}
	return "", false
}

// Contains reports whether the combination carries the given assignment.
func (c Combination) Contains(target Assignment) bool {
	for _, a := range c {
		if a == target {
			return true
		}
	}
	return false
}

// ToMap converts the combination into a facet-to-value map for plan rows.
func (c Combination) ToMap() map[string]string {
	m := make(map[string]string, len(c))
	for _, a := range c {
		m[a.Facet] = a.Value
	}
	return m
}

// sorted returns a copy of the combination ordered by facet name.
func (c Combination) sorted() Combination {
	out := make(Combination, len(c))
	copy(out, c)
	sort.Slice(out, func(i, j int) bool { return out[i].Facet < out[j].Facet })
	return out
}

// InvalidRule is a set of assignments that may never co-occur.
// A rule matches a combination when every one of its assignments
// is present in the combination.
type InvalidRule []Assignment

// Matches reports whether every assignment in the rule appears in the
// candidate. Partial combinations are checked the same way, so a rule
// can reject a prefix before the combination is complete.
func (r InvalidRule) Matches(c Combination) bool {
	if len(r) == 0 {
		return false
	}
	for _, a := range r {
		if !c.Contains(a) {
			return false
		}
	}
	return true
}

// Definition describes one facet: its name, the ordered set of allowed
// values, whether it is required, and an optional default value.
type Definition struct {
	Name     string   `json:"name" yaml:"name" mapstructure:"name" validate:"required"`
	Values   []string `json:"values" yaml:"values" mapstructure:"values" validate:"required,min=1"`
	Required bool     `json:"required" yaml:"required" mapstructure:"required"`
	Default  string   `json:"default,omitempty" yaml:"default,omitempty" mapstructure:"default"`
}

// Validate checks the structural invariants of the definition:
// non-empty values, and a default (when present) that is a member of Values.
func (d Definition) Validate() error {
	if d.Name == "" {
		return types.NewError(types.FACET_INVALID, "facet name cannot be empty")
	}
	if len(d.Values) == 0 {
		return types.NewErrorf(types.FACET_INVALID, "facet %q must declare at least one value", d.Name)
	}
	seen := make(map[string]bool, len(d.Values))
	for _, v := range d.Values {
		if v == "" {
			return types.NewErrorf(types.FACET_INVALID, "facet %q has an empty value", d.Name)
		}
		if seen[v] {
			return types.NewErrorf(types.FACET_INVALID, "facet %q declares duplicate value %q", d.Name, v)
		}
		seen[v] = true
	}
	if d.Default != "" && !seen[d.Default] {
		return types.NewErrorf(types.FACET_INVALID, "facet %q default %q is not a declared value", d.Name, d.Default)
	}
	return nil
}

// Config bundles the facet definitions with combination constraints:
// invalid-combination rules, the maximum grid size before the generator
// switches to pairwise covering, and the coverage strength
// (2 = pairwise, <=1 = full grid).
type Config struct {
	Facets          []Definition  `json:"facets" yaml:"facets" mapstructure:"facets"`
	InvalidRules    []InvalidRule `json:"invalid_rules,omitempty" yaml:"invalid_rules,omitempty" mapstructure:"invalid_rules"`
	MaxCombinations int           `json:"max_combinations" yaml:"max_combinations" mapstructure:"max_combinations"`
	Strength        int           `json:"strength" yaml:"strength" mapstructure:"strength"`
}

// Validate checks every facet definition and rejects duplicate facet names.
func (c Config) Validate() error {
	names := make(map[string]bool, len(c.Facets))
	for _, d := range c.Facets {
		if err := d.Validate(); err != nil {
			return err
		}
		if names[d.Name] {
			return types.NewErrorf(types.FACET_INVALID, "duplicate facet name %q", d.Name)
		}
		names[d.Name] = true
	}
	for _, rule := range c.InvalidRules {
		if len(rule) == 0 {
			return types.NewError(types.FACET_INVALID, "invalid-combination rule cannot be empty")
		}
	}
	return nil
}

// CartesianSize returns the size of the full cross-product grid.
func (c Config) CartesianSize() int {
	if len(c.Facets) == 0 {
		return 0
	}
	size := 1
	for _, d := range c.Facets {
		size *= len(d.Values)
	}
	return size
}

// isValid reports whether no invalid rule matches the (possibly partial)
// combination.
func (c Config) isValid(combo Combination) bool {
	for _, rule := range c.InvalidRules {
		if rule.Matches(combo) {
			return false
		}
	}
	return true
}
