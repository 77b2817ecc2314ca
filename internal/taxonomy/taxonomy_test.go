package taxonomy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalforge/coverplan/internal/types"
)

func intPtr(v int) *int { return &v }

func sampleConcepts() []Concept {
	return []Concept{
		{ID: "root", PreferredLabel: "Root", Depth: 0, IsLeaf: false},
		{ID: "math", PreferredLabel: "Mathematics", AncestorPath: []string{"root"}, Depth: 1, IsLeaf: false},
		{ID: "algebra", PreferredLabel: "Algebra", AncestorPath: []string{"root", "math"}, Depth: 2, IsLeaf: true},
		{ID: "calculus", PreferredLabel: "Advanced Calculus", AncestorPath: []string{"root", "math"}, Depth: 2, IsLeaf: true},
		{ID: "retired", PreferredLabel: "Retired Topic", AncestorPath: []string{"root"}, Depth: 1, IsLeaf: true, IsDeprecated: true},
	}
}

func TestFilter_QuarantinesDeprecatedAndForbidden(t *testing.T) {
	concepts := sampleConcepts()
	concepts = append(concepts, Concept{
		ID: "banned", PreferredLabel: "Banned", AncestorPath: []string{"root"}, Depth: 1, IsLeaf: true,
	})
	concepts = append(concepts, Concept{
		ID: "tagged", PreferredLabel: "Tagged", AncestorPath: []string{"root"}, Depth: 1, IsLeaf: true,
		PolicyTags: []string{"restricted-license"},
	})

	policy := PolicyConstraint{
		ForbiddenConcepts: []string{"banned"},
		ForbiddenTags:     []string{"restricted-license"},
	}

	result := Filter(concepts, policy, false)

	require.Len(t, result.Quarantined, 3)
	reasons := map[string]types.QuarantineReason{}
	for _, q := range result.Quarantined {
		reasons[q.ConceptID] = q.Reason
	}
	assert.Equal(t, types.QuarantineDeprecated, reasons["retired"])
	assert.Equal(t, types.QuarantineForbidden, reasons["banned"])
	assert.Equal(t, types.QuarantineForbidden, reasons["tagged"])

	for _, u := range result.Usable {
		assert.NotContains(t, []string{"retired", "banned", "tagged"}, u.ID)
	}
}

func TestFilter_DeprecatedBeatsForbidden(t *testing.T) {
	concepts := []Concept{
		{ID: "both", PreferredLabel: "Both", Depth: 1, IsLeaf: true, IsDeprecated: true},
	}
	policy := PolicyConstraint{ForbiddenConcepts: []string{"both"}}

	result := Filter(concepts, policy, false)

	require.Len(t, result.Quarantined, 1)
	assert.Equal(t, types.QuarantineDeprecated, result.Quarantined[0].Reason)
}

func TestFilter_LeafOnlyDropsInteriorWithoutQuarantine(t *testing.T) {
	result := Filter(sampleConcepts(), PolicyConstraint{}, true)

	// root and math drop structurally; retired quarantines.
	require.Len(t, result.Usable, 2)
	assert.Equal(t, "algebra", result.Usable[0].ID)
	assert.Equal(t, "calculus", result.Usable[1].ID)
	require.Len(t, result.Quarantined, 1)
	assert.Equal(t, "retired", result.Quarantined[0].ConceptID)
}

func TestFanout(t *testing.T) {
	fanout := Fanout(sampleConcepts())

	assert.Equal(t, 4, fanout["root"])
	assert.Equal(t, 2, fanout["math"])
	assert.Zero(t, fanout["algebra"])
}

func TestInferDifficulty(t *testing.T) {
	fanout := map[string]int{"wide": 30, "narrow": 2}

	tests := []struct {
		name    string
		concept Concept
		want    types.Difficulty
	}{
		{
			name:    "explicit hint wins",
			concept: Concept{ID: "deep", Depth: 6, Attributes: Attributes{DifficultyHint: "easy"}},
			want:    types.DifficultyEasy,
		},
		{
			name:    "invalid hint falls through to heuristic",
			concept: Concept{ID: "x", Depth: 5, Attributes: Attributes{DifficultyHint: "brutal"}},
			want:    types.DifficultyHard,
		},
		{
			name:    "deep is hard",
			concept: Concept{ID: "x", Depth: 4},
			want:    types.DifficultyHard,
		},
		{
			name:    "keyword flagged is hard",
			concept: Concept{ID: "x", PreferredLabel: "Adversarial prompts", Depth: 1},
			want:    types.DifficultyHard,
		},
		{
			name:    "wide is hard",
			concept: Concept{ID: "wide", Depth: 2},
			want:    types.DifficultyHard,
		},
		{
			name:    "shallow and narrow is easy",
			concept: Concept{ID: "narrow", Depth: 1},
			want:    types.DifficultyEasy,
		},
		{
			name:    "middling is medium",
			concept: Concept{ID: "x", Depth: 3},
			want:    types.DifficultyMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferDifficulty(tt.concept, fanout))
		})
	}
}

func TestInferRisk(t *testing.T) {
	tests := []struct {
		name    string
		concept Concept
		want    types.RiskTier
	}{
		{
			name:    "safety-critical tag is high",
			concept: Concept{ID: "x", PolicyTags: []string{"safety-critical"}},
			want:    types.RiskHigh,
		},
		{
			name:    "risk attribute high",
			concept: Concept{ID: "x", Attributes: Attributes{Risk: "high"}},
			want:    types.RiskHigh,
		},
		{
			name:    "risk attribute medium",
			concept: Concept{ID: "x", Attributes: Attributes{Risk: "medium"}},
			want:    types.RiskMedium,
		},
		{
			name:    "deep concept is medium",
			concept: Concept{ID: "x", Depth: 4},
			want:    types.RiskMedium,
		},
		{
			name:    "default is low",
			concept: Concept{ID: "x", Depth: 1},
			want:    types.RiskLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferRisk(tt.concept))
		})
	}
}

func TestApplyOverrides(t *testing.T) {
	now := time.Now()
	known := map[string]bool{"algebra": true, "calculus": true}

	suggestions := []Suggestion{
		{
			ConceptID:    "algebra",
			ProposalType: ProposalDifficultyAdjustment,
			Payload:      map[string]any{"difficulty": "hard"},
			ApprovedBy:   "reviewer@example.com",
			ApprovedAt:   &now,
		},
		{
			ConceptID:    "ghost",
			ProposalType: ProposalDifficultyAdjustment,
			Payload:      map[string]any{"difficulty": "hard"},
			ApprovedBy:   "reviewer@example.com",
			ApprovedAt:   &now,
		},
		{
			ConceptID:    "calculus",
			ProposalType: "relabel",
			Payload:      map[string]any{"label": "Calc"},
			ApprovedBy:   "reviewer@example.com",
			ApprovedAt:   &now,
		},
		{
			ConceptID:    "calculus",
			ProposalType: ProposalDifficultyAdjustment,
			Payload:      map[string]any{"difficulty": "hard"},
		},
		{
			ConceptID:    "calculus",
			ProposalType: ProposalDifficultyAdjustment,
			Payload:      map[string]any{"difficulty": 3},
			ApprovedBy:   "reviewer@example.com",
			ApprovedAt:   &now,
		},
		{
			ConceptID:    "calculus",
			ProposalType: ProposalDifficultyAdjustment,
			Payload:      map[string]any{"difficulty": "impossible"},
			ApprovedBy:   "reviewer@example.com",
			ApprovedAt:   &now,
		},
	}

	overrides, rejections := ApplyOverrides(suggestions, known)

	require.Len(t, overrides, 1)
	assert.Equal(t, types.DifficultyHard, overrides["algebra"])

	require.Len(t, rejections, 5)
	byReason := map[types.RejectReason]int{}
	for _, r := range rejections {
		byReason[r.Reason]++
	}
	assert.Equal(t, 1, byReason[types.RejectUnknownConcept])
	assert.Equal(t, 1, byReason[types.RejectUnsupportedProposal])
	assert.Equal(t, 1, byReason[types.RejectNotApproved])
	assert.Equal(t, 2, byReason[types.RejectInvalidPayload])
}

func TestParseConcepts(t *testing.T) {
	yamlData := []byte(`
snapshot_id: frame-2026-08
concepts:
  - id: root
    preferred_label: Root
    depth: 0
  - id: leaf
    preferred_label: Leaf
    ancestor_path: [root]
    depth: 1
    is_leaf: true
    attributes:
      minimum_quota: 2
      difficulty_hint: hard
    policy_tags: [safety-critical]
`)

	concepts, snapshot, err := ParseConcepts(yamlData)
	require.NoError(t, err)
	assert.Equal(t, "frame-2026-08", snapshot)
	require.Len(t, concepts, 2)

	leaf := concepts[1]
	assert.Equal(t, "leaf", leaf.ID)
	assert.True(t, leaf.IsLeaf)
	require.NotNil(t, leaf.Attributes.MinimumQuota)
	assert.Equal(t, 2, *leaf.Attributes.MinimumQuota)
	assert.Equal(t, "hard", leaf.Attributes.DifficultyHint)
	assert.True(t, leaf.HasTag("safety-critical"))
}

func TestParseConcepts_DuplicateID(t *testing.T) {
	yamlData := []byte(`
concepts:
  - id: dup
    depth: 0
  - id: dup
    depth: 0
`)

	_, _, err := ParseConcepts(yamlData)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.NewError(types.CONCEPT_DUPLICATE, ""))
}

func TestConcept_Validate(t *testing.T) {
	assert.Error(t, Concept{}.Validate())
	assert.Error(t, Concept{ID: "x", Depth: -1}.Validate())
	assert.Error(t, Concept{ID: "x", AncestorPath: []string{"x"}}.Validate())
	assert.Error(t, Concept{ID: "x", Attributes: Attributes{MinimumQuota: intPtr(-1)}}.Validate())
	assert.NoError(t, Concept{ID: "x", AncestorPath: []string{"root"}, Depth: 1}.Validate())
}

func TestConcept_Branch(t *testing.T) {
	assert.Equal(t, "root", Concept{ID: "leaf", AncestorPath: []string{"root", "mid"}}.Branch())
	assert.Equal(t, "solo", Concept{ID: "solo"}.Branch())
}
