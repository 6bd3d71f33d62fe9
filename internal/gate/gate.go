// Package gate turns raw reviewer critiques into boolean verdicts so the
// routing logic never has to interpret critique payloads itself.
package gate

import (
	"github.com/cerinalabs/foundry/internal/role"
)

// DefaultThreshold is the minimum sub-score that counts as passing when a
// critique carries scores but no explicit verdict.
const DefaultThreshold = 0.7

// Verdict is the gate's evaluation of a single critique.
type Verdict struct {
	Approved bool               `json:"approved"`
	Scores   map[string]float64 `json:"scores,omitempty"`
}

// Gate encapsulates the approval derivation policy.
type Gate struct {
	threshold float64
}

// New creates a gate with the given score threshold. A non-positive
// threshold falls back to DefaultThreshold.
func New(threshold float64) *Gate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Gate{threshold: threshold}
}

// requiredScores maps each reviewer to the sub-scores its critique must
// carry for score-based approval.
func requiredScores(author role.Role) []string {
	switch author {
	case role.RoleSafetyGuardian:
		return []string{"safety"}
	case role.RoleClinicalCritic:
		return []string{"empathy", "clarity"}
	}
	return nil
}

// Evaluate derives a verdict from a critique.
//
// An explicit boolean verdict always wins. Without one, every sub-score the
// reviewer is required to produce must be present and at or above the
// threshold; a missing score never passes. A critique with neither a verdict
// nor scores is rejected.
func (g *Gate) Evaluate(c role.Critique) Verdict {
	scores := map[string]float64{}
	if c.SafetyScore != nil {
		scores["safety"] = *c.SafetyScore
	}
	if c.EmpathyScore != nil {
		scores["empathy"] = *c.EmpathyScore
	}
	if c.ClarityScore != nil {
		scores["clarity"] = *c.ClarityScore
	}

	if c.Approved != nil {
		return Verdict{Approved: *c.Approved, Scores: scores}
	}

	required := requiredScores(c.Author)
	if len(required) == 0 {
		return Verdict{Approved: false, Scores: scores}
	}
	for _, name := range required {
		v, ok := scores[name]
		if !ok || v < g.threshold {
			return Verdict{Approved: false, Scores: scores}
		}
	}
	return Verdict{Approved: true, Scores: scores}
}
