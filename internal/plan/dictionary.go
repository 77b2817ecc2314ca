package plan

// DataDictionary describes every row field so the artifact is
// self-describing for downstream consumers that never see this source.
func DataDictionary() map[string]string {
	return map[string]string{
		"stratum_id":        "deterministic stratum identity: concept id + sorted facet assignments",
		"concept_id":        "stable concept identifier from the taxonomy snapshot",
		"preferred_label":   "human-readable concept label (localized when available)",
		"ancestor_path":     "ancestor concept ids ordered root-first",
		"branch":            "top-level ancestor grouping, the fairness enforcement unit",
		"depth_band":        "taxonomy depth bucket: shallow, mid, or deep",
		"difficulty":        "easy, medium, or hard; hint or approved override wins over the heuristic",
		"risk_tier":         "low, medium, or high",
		"facets":            "facet name to value assignments for this stratum",
		"planned_quota":     "integer item quota after rounding and capacity enforcement",
		"minimum_quota":     "per-stratum quota floor honored by the allocation",
		"maximum_quota":     "per-stratum quota ceiling; zero means unbounded",
		"allocation_method": "strategy that actually produced the quota",
		"rounding_delta":    "planned quota minus the continuous target, captured at rounding time",
		"policy_flags":      "upstream policy labels attached to the concept",
		"provenance":        "coverage certificate, deduplication flag, and input snapshot ids",
	}
}
