package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerinalabs/foundry/internal/role"
)

func fp(v float64) *float64 { return &v }
func bp(v bool) *bool       { return &v }

func TestAppendVersionsAreGapless(t *testing.T) {
	var l Ledger

	v1 := l.Append(role.RoleDrafter, role.Draft{Title: "a"}, "")
	v2 := l.Append(role.RoleDrafter, role.Draft{Title: "b"}, "")
	v3 := l.Append(role.RoleHuman, role.Draft{Title: "c"}, "human edit")

	assert.Equal(t, 1, v1)
	assert.Equal(t, 2, v2)
	assert.Equal(t, 3, v3)

	history := l.History()
	require.Len(t, history, 3)
	for i, v := range history {
		assert.Equal(t, i+1, v.Version)
	}
	assert.Equal(t, "c", l.Latest().Title)
}

func TestTotalRevisionsCountsDrafterVersionsOnly(t *testing.T) {
	var l Ledger

	l.Append(role.RoleDrafter, role.Draft{Title: "v1"}, "")
	l.Append(role.RoleDrafter, role.Draft{Title: "v2"}, "")
	l.Append(role.RoleHuman, role.Draft{Title: "v3"}, "human edit")

	assert.Equal(t, 2, l.Metadata().TotalRevisions)
}

func TestAttachCritiqueUnknownVersion(t *testing.T) {
	var l Ledger
	l.Append(role.RoleDrafter, role.Draft{Title: "v1"}, "")

	err := l.AttachCritique(role.Critique{Author: role.RoleSafetyGuardian, TargetVersion: 2})
	require.ErrorIs(t, err, ErrVersionNotFound)

	err = l.AttachCritique(role.Critique{Author: role.RoleSafetyGuardian, TargetVersion: 0})
	require.ErrorIs(t, err, ErrVersionNotFound)
}

func TestMetadataReflectsCurrentVersionOnly(t *testing.T) {
	var l Ledger
	l.Append(role.RoleDrafter, role.Draft{Title: "v1"}, "")

	require.NoError(t, l.AttachCritique(role.Critique{
		Author:        role.RoleSafetyGuardian,
		TargetVersion: 1,
		SafetyScore:   fp(0.9),
	}))
	require.NotNil(t, l.Metadata().SafetyScore)
	assert.InDelta(t, 0.9, *l.Metadata().SafetyScore, 1e-9)

	// A new version clears scores that no longer apply.
	l.Append(role.RoleDrafter, role.Draft{Title: "v2"}, "revised")
	assert.Nil(t, l.Metadata().SafetyScore)
	assert.Nil(t, l.Metadata().EmpathyScore)
	assert.Equal(t, 2, l.Metadata().TotalRevisions)

	require.NoError(t, l.AttachCritique(role.Critique{
		Author:        role.RoleClinicalCritic,
		TargetVersion: 2,
		EmpathyScore:  fp(0.8),
		ClarityScore:  fp(0.85),
	}))
	meta := l.Metadata()
	assert.Nil(t, meta.SafetyScore)
	require.NotNil(t, meta.EmpathyScore)
	assert.InDelta(t, 0.8, *meta.EmpathyScore, 1e-9)
	require.NotNil(t, meta.ClarityScore)
	assert.InDelta(t, 0.85, *meta.ClarityScore, 1e-9)
}

func TestMetadataDerivesScoresFromVerdicts(t *testing.T) {
	t.Run("approval derives 1.0", func(t *testing.T) {
		var l Ledger
		l.Append(role.RoleDrafter, role.Draft{}, "")
		require.NoError(t, l.AttachCritique(role.Critique{
			Author: role.RoleSafetyGuardian, TargetVersion: 1, Approved: bp(true),
		}))
		require.NotNil(t, l.Metadata().SafetyScore)
		assert.InDelta(t, 1.0, *l.Metadata().SafetyScore, 1e-9)
	})

	t.Run("safety rejection derives its floor", func(t *testing.T) {
		var l Ledger
		l.Append(role.RoleDrafter, role.Draft{}, "")
		require.NoError(t, l.AttachCritique(role.Critique{
			Author: role.RoleSafetyGuardian, TargetVersion: 1, Approved: bp(false),
		}))
		require.NotNil(t, l.Metadata().SafetyScore)
		assert.InDelta(t, 0.5, *l.Metadata().SafetyScore, 1e-9)
	})

	t.Run("explicit score beats verdict derivation", func(t *testing.T) {
		var l Ledger
		l.Append(role.RoleDrafter, role.Draft{}, "")
		require.NoError(t, l.AttachCritique(role.Critique{
			Author: role.RoleSafetyGuardian, TargetVersion: 1,
			Approved: bp(false), SafetyScore: fp(0.3),
		}))
		assert.InDelta(t, 0.3, *l.Metadata().SafetyScore, 1e-9)
	})
}

func TestCritiquesFor(t *testing.T) {
	var l Ledger
	l.Append(role.RoleDrafter, role.Draft{}, "")
	l.Append(role.RoleDrafter, role.Draft{}, "")

	require.NoError(t, l.AttachCritique(role.Critique{Author: role.RoleSafetyGuardian, TargetVersion: 1, Rationale: "first"}))
	require.NoError(t, l.AttachCritique(role.Critique{Author: role.RoleSafetyGuardian, TargetVersion: 2, Rationale: "second"}))
	require.NoError(t, l.AttachCritique(role.Critique{Author: role.RoleClinicalCritic, TargetVersion: 2, Rationale: "third"}))

	assert.Len(t, l.CritiquesFor(1), 1)
	got := l.CritiquesFor(2)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].Rationale)
	assert.Equal(t, "third", got[1].Rationale)
	assert.Empty(t, l.CritiquesFor(3))
}

func TestHistoryIsACopy(t *testing.T) {
	var l Ledger
	l.Append(role.RoleDrafter, role.Draft{Title: "original"}, "")

	h := l.History()
	h[0].Title = "mutated"
	assert.Equal(t, "original", l.Latest().Title)
}
