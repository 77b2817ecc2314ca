package facet

import (
	"sort"
)

// Generate produces the list of concrete facet-value combinations for the
// config. When the coverage strength is <=1, or the full Cartesian grid fits
// under MaxCombinations, the full grid minus invalid combinations is emitted.
// Otherwise a greedy pairwise cover is built: a reduced combination set in
// which every valid pair of facet values across two distinct facets co-occurs
// at least once.
//
// The pairwise cover is a heuristic for an NP-hard covering problem. It is
// not guaranteed minimal, only deterministic and safe: it never emits a
// combination matched by an invalid rule. Output is sorted by combination
// key so downstream diffs are reproducible.
func Generate(cfg Config) ([]Combination, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// With no facets the plan still needs one stratum per concept,
	// carried by a single empty combination.
	if len(cfg.Facets) == 0 {
		return []Combination{{}}, nil
	}

	var combos []Combination
	if cfg.Strength <= 1 || len(cfg.Facets) < 2 || cfg.MaxCombinations <= 0 || cfg.CartesianSize() <= cfg.MaxCombinations {
		combos = fullGrid(cfg)
	} else {
		combos = pairwiseCover(cfg)
	}

	sort.Slice(combos, func(i, j int) bool { return combos[i].Key() < combos[j].Key() })
	return combos, nil
}

// fullGrid enumerates the complete Cartesian product in declared facet and
// value order, dropping combinations matched by an invalid rule.
func fullGrid(cfg Config) []Combination {
	var out []Combination
	walkGrid(cfg, func(combo Combination) bool {
		if cfg.isValid(combo) {
			out = append(out, combo.sorted())
		}
		return true
	})
	return out
}

// walkGrid visits every full combination in deterministic order, calling
// visit for each. The walk stops early when visit returns false.
func walkGrid(cfg Config, visit func(Combination) bool) {
	combo := make(Combination, len(cfg.Facets))
	var rec func(i int) bool
	rec = func(i int) bool {
		if i == len(cfg.Facets) {
			snapshot := make(Combination, len(combo))
			copy(snapshot, combo)
			return visit(snapshot)
		}
		for _, v := range cfg.Facets[i].Values {
			combo[i] = Assignment{Facet: cfg.Facets[i].Name, Value: v}
			if !rec(i + 1) {
				return false
			}
		}
		return true
	}
	rec(0)
}

// pairKey identifies one required pair of assignments across two facets.
type pairKey struct {
	a, b Assignment
}

// pairwiseCover runs the greedy pairwise covering loop. Every pair of
// (facet,value) assignments between distinct facets that co-occurs in at
// least one valid full combination must appear in at least one emitted
// combination; pairs no valid full combination realizes are dropped.
func pairwiseCover(cfg Config) []Combination {
	uncovered := requiredPairs(cfg)

	var out []Combination
	emitted := make(map[string]bool)

	for len(uncovered) > 0 {
		combo := buildGreedyCombination(cfg, uncovered)
		if combo != nil && !cfg.isValid(combo) {
			combo = nil
		}
		if combo == nil || !coversAny(combo, uncovered) {
			// The unseeded greedy pass stalled. Target the first remaining
			// pair directly: seed a combination with both of its assignments
			// and complete it greedily, scanning the full grid when the
			// seeded completion dead-ends on the rule set. A pair is dropped
			// only after the scan proves no valid full combination realizes
			// it, so every realizable pair ends up covered.
			pk := firstPair(uncovered)
			combo = completeFromPair(cfg, pk, uncovered)
			if combo == nil {
				combo = firstValidCombinationWith(cfg, pk)
			}
			if combo == nil {
				delete(uncovered, pk)
				continue
			}
		}

		markCovered(combo, uncovered)

		key := combo.Key()
		if !emitted[key] {
			emitted[key] = true
			out = append(out, combo.sorted())
		}
	}

	return out
}

// requiredPairs enumerates every pair of assignments between distinct facets
// that is not itself invalid.
func requiredPairs(cfg Config) map[pairKey]bool {
	pairs := make(map[pairKey]bool)
	for i := 0; i < len(cfg.Facets); i++ {
		for j := i + 1; j < len(cfg.Facets); j++ {
			for _, v1 := range cfg.Facets[i].Values {
				for _, v2 := range cfg.Facets[j].Values {
					a := Assignment{Facet: cfg.Facets[i].Name, Value: v1}
					b := Assignment{Facet: cfg.Facets[j].Name, Value: v2}
					if cfg.isValid(Combination{a, b}) {
						pairs[pairKey{a: a, b: b}] = true
					}
				}
			}
		}
	}
	return pairs
}

// buildGreedyCombination visits facets in declared order, choosing at each
// facet the value that covers the most currently-uncovered pairs among the
// values that keep the partial combination valid. Ties break to the first
// value in the facet's declared order.
func buildGreedyCombination(cfg Config, uncovered map[pairKey]bool) Combination {
	partial := make(Combination, 0, len(cfg.Facets))

	for _, def := range cfg.Facets {
		bestValue := ""
		bestCount := -1
		for _, v := range def.Values {
			cand := Assignment{Facet: def.Name, Value: v}
			if !cfg.isValid(append(partial, cand)) {
				continue
			}
			count := coverable(partial, cand, uncovered)
			if count > bestCount {
				bestCount = count
				bestValue = v
			}
		}
		if bestCount < 0 {
			// Every value for this facet breaks a rule given the partial.
			return nil
		}
		partial = append(partial, Assignment{Facet: def.Name, Value: bestValue})
	}

	return partial
}

// coverable counts the uncovered pairs the candidate assignment can still
// cover given the partial combination: pairs whose other assignment is
// already placed, plus pairs whose other facet has not been placed yet and
// so remains reachable.
func coverable(partial Combination, cand Assignment, uncovered map[pairKey]bool) int {
	placed := make(map[string]Assignment, len(partial))
	for _, a := range partial {
		placed[a.Facet] = a
	}

	count := 0
	for pk := range uncovered {
		var other Assignment
		switch cand {
		case pk.a:
			other = pk.b
		case pk.b:
			other = pk.a
		default:
			continue
		}
		if p, ok := placed[other.Facet]; ok {
			if p == other {
				count++
			}
		} else {
			count++
		}
	}
	return count
}

// markCovered removes every uncovered pair subsumed by the combination.
func markCovered(combo Combination, uncovered map[pairKey]bool) {
	for pk := range uncovered {
		if combo.Contains(pk.a) && combo.Contains(pk.b) {
			delete(uncovered, pk)
		}
	}
}

// coversAny reports whether the combination subsumes at least one
// remaining uncovered pair.
func coversAny(combo Combination, uncovered map[pairKey]bool) bool {
	for pk := range uncovered {
		if combo.Contains(pk.a) && combo.Contains(pk.b) {
			return true
		}
	}
	return false
}

// firstPair returns the lexically-first remaining pair.
func firstPair(uncovered map[pairKey]bool) pairKey {
	var first pairKey
	found := false
	for pk := range uncovered {
		if !found || pairLess(pk, first) {
			first = pk
			found = true
		}
	}
	return first
}

func pairLess(x, y pairKey) bool {
	if x.a.String() != y.a.String() {
		return x.a.String() < y.a.String()
	}
	return x.b.String() < y.b.String()
}

// completeFromPair builds a combination seeded with both assignments of the
// target pair, filling the remaining facets greedily the same way the
// unseeded construction does. Returns nil when the seed itself is invalid or
// the completion dead-ends on the rule set.
func completeFromPair(cfg Config, pk pairKey, uncovered map[pairKey]bool) Combination {
	partial := Combination{pk.a, pk.b}
	if !cfg.isValid(partial) {
		return nil
	}

	for _, def := range cfg.Facets {
		if def.Name == pk.a.Facet || def.Name == pk.b.Facet {
			continue
		}
		bestValue := ""
		bestCount := -1
		for _, v := range def.Values {
			cand := Assignment{Facet: def.Name, Value: v}
			if !cfg.isValid(append(partial, cand)) {
				continue
			}
			count := coverable(partial, cand, uncovered)
			if count > bestCount {
				bestCount = count
				bestValue = v
			}
		}
		if bestCount < 0 {
			return nil
		}
		partial = append(partial, Assignment{Facet: def.Name, Value: bestValue})
	}

	return partial
}

// firstValidCombinationWith scans the full Cartesian product in
// deterministic order and returns the first valid combination containing
// both assignments of the pair, or nil when none exists.
func firstValidCombinationWith(cfg Config, pk pairKey) Combination {
	var found Combination
	walkGrid(cfg, func(combo Combination) bool {
		if combo.Contains(pk.a) && combo.Contains(pk.b) && cfg.isValid(combo) {
			found = combo
			return false
		}
		return true
	})
	return found
}
