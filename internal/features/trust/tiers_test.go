package trust

import (
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/engagement-guard/internal/common"
	"serotonyl.ru/engagement-guard/internal/features/ledger"
)

func TestDefaultLadderIsValid(t *testing.T) {
	l, err := NewLadder(DefaultLadder)
	require.NoError(t, err)
	assert.Equal(t, 5, l.Top())
}

// Монотонность проверяется для всех пар i < j, а не только для соседей.
func TestDefaultLadderMonotonicForAllPairs(t *testing.T) {
	tiers := DefaultLadder
	for i := 0; i < len(tiers); i++ {
		for j := i + 1; j < len(tiers); j++ {
			lo, hi := tiers[i], tiers[j]
			assert.GreaterOrEqual(t, hi.Requirements.MinAccountAgeDays, lo.Requirements.MinAccountAgeDays)
			assert.GreaterOrEqual(t, hi.Requirements.MinKarma, lo.Requirements.MinKarma)
			assert.GreaterOrEqual(t, hi.Requirements.MinSuccessfulActions, lo.Requirements.MinSuccessfulActions)
			assert.GreaterOrEqual(t, hi.Requirements.MinSuccessRate, lo.Requirements.MinSuccessRate)
			assert.LessOrEqual(t, hi.Requirements.MaxWarnings, lo.Requirements.MaxWarnings)

			assert.GreaterOrEqual(t, hi.Benefits.MaxActionsPerHour, lo.Benefits.MaxActionsPerHour)
			assert.GreaterOrEqual(t, hi.Benefits.MaxActionsPerDay, lo.Benefits.MaxActionsPerDay)
			assert.LessOrEqual(t, hi.Benefits.MinInterval, lo.Benefits.MinInterval)
			for _, k := range ledger.Kinds {
				assert.GreaterOrEqual(t, hi.Benefits.KindCap(k), lo.Benefits.KindCap(k))
			}
		}
	}
}

func cloneLadder() []Tier {
	out := slices.Clone(DefaultLadder)
	for i := range out {
		kinds := make(map[ledger.Kind]int, len(out[i].Benefits.KindHourly))
		for k, v := range out[i].Benefits.KindHourly {
			kinds[k] = v
		}
		out[i].Benefits.KindHourly = kinds
		out[i].Benefits.Features = slices.Clone(out[i].Benefits.Features)
	}
	return out
}

func TestValidateLadderRejectsViolations(t *testing.T) {
	cases := map[string]func(tiers []Tier){
		"karma decreases":        func(tiers []Tier) { tiers[2].Requirements.MinKarma = 50 },
		"warnings ceiling grows": func(tiers []Tier) { tiers[3].Requirements.MaxWarnings = 5 },
		"hourly cap decreases":   func(tiers []Tier) { tiers[4].Benefits.MaxActionsPerHour = 1 },
		"interval grows":         func(tiers []Tier) { tiers[1].Benefits.MinInterval = time.Hour },
		"kind cap decreases":     func(tiers []Tier) { tiers[2].Benefits.KindHourly[ledger.KindComment] = 0 },
		"feature disappears":     func(tiers []Tier) { tiers[4].Benefits.Features = tiers[4].Benefits.Features[:1] },
		"level gap":              func(tiers []Tier) { tiers[3].Level = 7 },
	}

	for name, breakIt := range cases {
		t.Run(name, func(t *testing.T) {
			tiers := cloneLadder()
			breakIt(tiers)
			_, err := NewLadder(tiers)
			assert.ErrorIs(t, err, common.ErrInvalidTierLadder)
		})
	}

	_, err := NewLadder(nil)
	assert.ErrorIs(t, err, common.ErrInvalidTierLadder)
}

func TestLadderLookups(t *testing.T) {
	l, err := NewLadder(DefaultLadder)
	require.NoError(t, err)

	next, ok := l.Next(1)
	require.True(t, ok)
	assert.Equal(t, 2, next.Level)

	_, ok = l.Next(5)
	assert.False(t, ok)

	req, ok := l.FeatureRequirement(FeatureOpportunityAlerts)
	require.True(t, ok)
	assert.Equal(t, 3, req.Level)

	_, ok = l.FeatureRequirement("teleportation")
	assert.False(t, ok)
}
