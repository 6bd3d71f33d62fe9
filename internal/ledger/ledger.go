package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/cerinalabs/foundry/internal/role"
)

// ErrVersionNotFound is returned when a critique targets a version that was
// never appended. This is an integrity error and is never retried.
var ErrVersionNotFound = errors.New("draft version not found")

// DraftVersion is one immutable snapshot of the produced artifact.
type DraftVersion struct {
	Version      int       `json:"version"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Instructions string    `json:"instructions"`
	CreatedBy    role.Role `json:"created_by"`
	ChangeNote   string    `json:"change_note,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ReviewMetadata aggregates the most recent review outcome for the current
// draft version. Scores are nil until the corresponding reviewer has run on
// the current version; a new version clears scores that no longer apply.
type ReviewMetadata struct {
	SafetyScore    *float64 `json:"safety_score,omitempty"`
	EmpathyScore   *float64 `json:"empathy_score,omitempty"`
	ClarityScore   *float64 `json:"clarity_score,omitempty"`
	TotalRevisions int      `json:"total_revisions"`
}

// Ledger is the versioned draft history for one session. The zero value is
// ready to use. Fields are exported so session snapshots serialize, but all
// mutation goes through Append and AttachCritique.
type Ledger struct {
	Versions  []DraftVersion  `json:"versions"`
	Critiques []role.Critique `json:"critiques"`
	Meta      ReviewMetadata  `json:"meta"`
}

// Append records a new immutable draft version and returns its version
// number. Version numbers are gapless and start at 1.
func (l *Ledger) Append(author role.Role, d role.Draft, changeNote string) int {
	v := DraftVersion{
		Version:      len(l.Versions) + 1,
		Title:        d.Title,
		Content:      d.Content,
		Instructions: d.Instructions,
		CreatedBy:    author,
		ChangeNote:   changeNote,
		CreatedAt:    time.Now().UTC(),
	}
	l.Versions = append(l.Versions, v)
	l.recompute()
	return v.Version
}

// AttachCritique appends a critique targeting an existing version and
// recomputes the review metadata. Fails with ErrVersionNotFound if the
// target version was never appended.
func (l *Ledger) AttachCritique(c role.Critique) error {
	if c.TargetVersion < 1 || c.TargetVersion > len(l.Versions) {
		return fmt.Errorf("%w: v%d (have %d versions)", ErrVersionNotFound, c.TargetVersion, len(l.Versions))
	}
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}
	l.Critiques = append(l.Critiques, c)
	l.recompute()
	return nil
}

// Latest returns the current draft version, or nil if none exists.
func (l *Ledger) Latest() *DraftVersion {
	if len(l.Versions) == 0 {
		return nil
	}
	return &l.Versions[len(l.Versions)-1]
}

// History returns all versions in insertion order. The returned slice is a
// copy; the ledger's history cannot be mutated through it.
func (l *Ledger) History() []DraftVersion {
	out := make([]DraftVersion, len(l.Versions))
	copy(out, l.Versions)
	return out
}

// CritiquesFor returns all critiques attached to the given version, in
// attachment order.
func (l *Ledger) CritiquesFor(version int) []role.Critique {
	var out []role.Critique
	for _, c := range l.Critiques {
		if c.TargetVersion == version {
			out = append(out, c)
		}
	}
	return out
}

// Metadata returns the current review metadata aggregate.
func (l *Ledger) Metadata() ReviewMetadata { return l.Meta }

// recompute rebuilds the metadata aggregate from scratch. Scores reflect the
// most recent critique of each kind on the current version only; stale
// critiques of older versions never leak through.
func (l *Ledger) recompute() {
	meta := ReviewMetadata{}
	for _, v := range l.Versions {
		if v.CreatedBy == role.RoleDrafter {
			meta.TotalRevisions++
		}
	}
	if latest := l.Latest(); latest != nil {
		for _, c := range l.Critiques {
			if c.TargetVersion != latest.Version {
				continue
			}
			switch c.Author {
			case role.RoleSafetyGuardian:
				meta.SafetyScore = scoreOrDerived(c.SafetyScore, c.Approved, 0.5)
			case role.RoleClinicalCritic:
				meta.EmpathyScore = scoreOrDerived(c.EmpathyScore, c.Approved, 0.6)
				meta.ClarityScore = scoreOrDerived(c.ClarityScore, c.Approved, 0.6)
			}
		}
	}
	l.Meta = meta
}

// scoreOrDerived prefers an explicit sub-score; otherwise it derives one from
// the boolean verdict (1.0 on approval, the reviewer's floor on rejection).
// With neither present the score stays nil.
func scoreOrDerived(score *float64, approved *bool, rejectedValue float64) *float64 {
	if score != nil {
		v := *score
		return &v
	}
	if approved != nil {
		v := rejectedValue
		if *approved {
			v = 1.0
		}
		return &v
	}
	return nil
}
