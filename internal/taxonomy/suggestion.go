package taxonomy

import (
	"time"

	"github.com/evalforge/coverplan/internal/types"
)

// ProposalDifficultyAdjustment is the only suggestion type the planner
// consumes. Anything else is rejected with a reason code.
const ProposalDifficultyAdjustment = "difficulty_adjustment"

// Suggestion is a pre-approved override proposal produced by an external
// suggestion pipeline and vetted by a human approver. The planner never
// generates these; it only validates and applies them.
type Suggestion struct {
	ConceptID    string         `json:"concept_id" yaml:"concept_id"`
	ProposalType string         `json:"proposal_type" yaml:"proposal_type"`
	Payload      map[string]any `json:"payload" yaml:"payload"`
	Citations    []string       `json:"citations,omitempty" yaml:"citations,omitempty"`
	ApprovedBy   string         `json:"approved_by,omitempty" yaml:"approved_by,omitempty"`
	ApprovedAt   *time.Time     `json:"approved_at,omitempty" yaml:"approved_at,omitempty"`
}

// approved reports whether both approver identity and approval time are set.
func (s Suggestion) approved() bool {
	return s.ApprovedBy != "" && s.ApprovedAt != nil && !s.ApprovedAt.IsZero()
}

// SuggestionRejection records a suggestion that was not applied, with its
// reason code. Rejections are surfaced in plan metadata, never silently
// ignored.
type SuggestionRejection struct {
	ConceptID    string             `json:"concept_id"`
	ProposalType string             `json:"proposal_type"`
	Reason       types.RejectReason `json:"reason"`
	Detail       string             `json:"detail,omitempty"`
}

// ApplyOverrides validates suggestions against the known concept set and
// returns the difficulty overrides to apply plus every rejection. An
// override is applied only when the proposal type is difficulty_adjustment,
// the payload's difficulty is a valid difficulty string, and the suggestion
// carries both an approver and an approval timestamp.
func ApplyOverrides(suggestions []Suggestion, known map[string]bool) (map[string]types.Difficulty, []SuggestionRejection) {
	overrides := make(map[string]types.Difficulty)
	var rejections []SuggestionRejection

	reject := func(s Suggestion, reason types.RejectReason, detail string) {
		rejections = append(rejections, SuggestionRejection{
			ConceptID:    s.ConceptID,
			ProposalType: s.ProposalType,
			Reason:       reason,
			Detail:       detail,
		})
	}

	for _, s := range suggestions {
		if !known[s.ConceptID] {
			reject(s, types.RejectUnknownConcept, "concept not present in the usable frame")
			continue
		}
		if s.ProposalType != ProposalDifficultyAdjustment {
			reject(s, types.RejectUnsupportedProposal, "proposal type "+s.ProposalType+" is not supported")
			continue
		}
		if !s.approved() {
			reject(s, types.RejectNotApproved, "approver identity or approval time missing")
			continue
		}

		raw, ok := s.Payload["difficulty"].(string)
		if !ok {
			reject(s, types.RejectInvalidPayload, "payload difficulty must be a string")
			continue
		}
		difficulty := types.Difficulty(raw)
		if !difficulty.IsValid() {
			reject(s, types.RejectInvalidPayload, "payload difficulty "+raw+" is not a recognized level")
			continue
		}

		overrides[s.ConceptID] = difficulty
	}

	return overrides, rejections
}
