package taxonomy

import (
	"strings"

	"github.com/evalforge/coverplan/internal/types"
)

// Thresholds for the depth/fan-out difficulty heuristic.
const (
	shallowDepth = 2  // depth at or below this counts as shallow
	deepDepth    = 4  // depth at or above this counts as deep
	narrowFanout = 5  // fan-out below this counts as narrow
	wideFanout   = 25 // fan-out at or above this counts as wide
)

// hardKeywords flag a concept as hard regardless of its position in the tree.
var hardKeywords = []string{
	"advanced",
	"ambiguous",
	"adversarial",
	"edge case",
	"multi-step",
	"nuanc",
}

// InferDifficulty assigns a difficulty to the concept. An explicit, valid
// difficulty_hint always wins. Otherwise the heuristic applies: deep,
// keyword-flagged, or wide concepts are hard; shallow and narrow concepts
// are easy; everything else is medium. Approved override suggestions are
// applied by the caller on top of this (see ApplyOverrides).
func InferDifficulty(c Concept, fanout map[string]int) types.Difficulty {
	if hint := types.Difficulty(c.Attributes.DifficultyHint); hint.IsValid() {
		return hint
	}

	breadth := fanout[c.ID]
	if c.Depth >= deepDepth || hasHardKeyword(c) || breadth >= wideFanout {
		return types.DifficultyHard
	}
	if c.Depth <= shallowDepth && breadth < narrowFanout {
		return types.DifficultyEasy
	}
	return types.DifficultyMedium
}

func hasHardKeyword(c Concept) bool {
	label := strings.ToLower(c.PreferredLabel)
	for _, kw := range hardKeywords {
		if strings.Contains(label, kw) {
			return true
		}
	}
	return false
}

// InferRisk assigns a risk tier to the concept. The "safety-critical"
// policy tag or an explicit risk=high attribute forces high; risk=medium
// or depth at or beyond the deep threshold yields medium; else low.
func InferRisk(c Concept) types.RiskTier {
	if c.HasTag("safety-critical") || c.Attributes.Risk == "high" {
		return types.RiskHigh
	}
	if c.Attributes.Risk == "medium" || c.Depth >= deepDepth {
		return types.RiskMedium
	}
	return types.RiskLow
}
