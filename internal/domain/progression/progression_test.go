package progression

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelForExp(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		exp   int
		level int
	}{
		{-50, 1},
		{0, 1},
		{99, 1},
		{100, 2},
		{299, 2},
		{300, 3},
		{599, 3},
		{600, 4},
		{1000, 5},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.level, rules.LevelForExp(tt.exp), "exp=%d", tt.exp)
	}
}

func TestLevelForExp_IsMonotonic(t *testing.T) {
	rules := DefaultRules()
	prev := rules.LevelForExp(0)
	for exp := 1; exp < 20000; exp += 7 {
		lvl := rules.LevelForExp(exp)
		require.GreaterOrEqual(t, lvl, prev, "exp=%d", exp)
		prev = lvl
	}
}

func TestLevelForExp_CapsAtMaxLevel(t *testing.T) {
	rules := DefaultRules()
	rules.MaxLevel = 3

	assert.Equal(t, 3, rules.LevelForExp(1_000_000))
	assert.Equal(t, 0, rules.Progress(1_000_000).Span)
}

func TestProgress(t *testing.T) {
	rules := DefaultRules()

	p := rules.Progress(150)
	assert.Equal(t, LevelProgress{Level: 2, Current: 50, Span: 200, Remaining: 150}, p)
}

func TestApply_LevelUpGrantsGold(t *testing.T) {
	rules := DefaultRules()
	state := State{Level: 1, Exp: 90, Points: 3}

	out := Apply(rules, state, Grant{Exp: 220, Gold: 5})

	assert.Equal(t, 1, out.LevelBefore)
	assert.Equal(t, 3, out.LevelAfter)
	assert.Equal(t, 2, out.LevelsGained)
	assert.Equal(t, 100, out.GoldFromLevel)
	assert.Equal(t, 310, out.State.Exp)
	assert.Equal(t, 3, out.State.Level)
	assert.Equal(t, 3+5+100, out.State.Points)
}

func TestApply_NoLevelChange(t *testing.T) {
	rules := DefaultRules()
	out := Apply(rules, State{Level: 2, Exp: 120}, Grant{Exp: 10})

	assert.False(t, out.LeveledUp())
	assert.Zero(t, out.GoldTotal())
	assert.Equal(t, 130, out.State.Exp)
}

func TestApply_RaisesFlaggedAbilities(t *testing.T) {
	rules := DefaultRules()
	rules.AbilityIncrement = 2

	out := Apply(rules, State{}, Grant{
		Abilities: FlagsOf(AbilityCreativity, AbilityHealth),
	})

	assert.Equal(t, 2, out.State.Abilities.Creativity)
	assert.Equal(t, 2, out.State.Abilities.Health)
	assert.Zero(t, out.State.Abilities.Intelligence)
	assert.Equal(t, []Ability{AbilityCreativity, AbilityHealth}, out.Raised)
}

func TestApply_TitleReplacesHonorific(t *testing.T) {
	out := Apply(DefaultRules(), State{Honorific: "Novice"}, Grant{Title: "Dragon Slayer"})

	assert.Equal(t, "Dragon Slayer", out.State.Honorific)
	assert.Equal(t, "Dragon Slayer", out.TitleGranted)
}

func TestApply_StaleStoredLevelIsCorrected(t *testing.T) {
	// Stored level 9 came from an older curve; 120 exp is level 2.
	out := Apply(DefaultRules(), State{Level: 9, Exp: 120}, Grant{Exp: 1})

	assert.Equal(t, 2, out.State.Level)
	assert.Zero(t, out.GoldFromLevel)
}

func TestApply_SaturatesInsteadOfOverflowing(t *testing.T) {
	rules := DefaultRules()
	tests := []struct {
		name  string
		state State
		grant Grant
	}{
		{"exp at the ceiling", State{Exp: math.MaxInt, Points: 10}, Grant{Exp: 1}},
		{"exp near the ceiling", State{Exp: math.MaxInt - 5, Points: 10}, Grant{Exp: 100}},
		{"points at the ceiling", State{Exp: math.MaxInt, Points: math.MaxInt}, Grant{Exp: 1, Gold: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Apply(rules, tt.state, tt.grant)
			assert.Equal(t, math.MaxInt, out.State.Exp)
			assert.Equal(t, rules.MaxLevel, out.State.Level)
			assert.GreaterOrEqual(t, out.State.Points, tt.state.Points)
		})
	}
}

func TestAddSat(t *testing.T) {
	assert.Equal(t, 5, addSat(2, 3))
	assert.Equal(t, math.MaxInt, addSat(math.MaxInt, 1))
	assert.Equal(t, math.MinInt, addSat(math.MinInt, -1))
	assert.Equal(t, math.MaxInt-1, addSat(math.MaxInt, -1))
}

func TestGrantValidate(t *testing.T) {
	assert.NoError(t, Grant{Exp: 1}.Validate())
	assert.NoError(t, Grant{Exp: MaxGrantAmount, Gold: MaxGrantAmount}.Validate())
	assert.ErrorIs(t, Grant{Exp: -1}.Validate(), ErrInvalidGrant)
	assert.ErrorIs(t, Grant{Gold: -1}.Validate(), ErrInvalidGrant)
	assert.ErrorIs(t, Grant{Exp: MaxGrantAmount + 1}.Validate(), ErrGrantTooLarge)
	assert.ErrorIs(t, Grant{Gold: math.MaxInt}.Validate(), ErrGrantTooLarge)
	assert.True(t, Grant{}.IsEmpty())
}

func TestRoadmapStepReward_Escalates(t *testing.T) {
	rules := DefaultRules()
	assert.Equal(t, 20, rules.RoadmapStepReward(0))
	assert.Equal(t, 40, rules.RoadmapStepReward(1))
	assert.Equal(t, 60, rules.RoadmapStepReward(2))
}

func TestRulesValidate(t *testing.T) {
	assert.NoError(t, DefaultRules().Validate())

	bad := DefaultRules()
	bad.ExpPerLevelStep = 0
	bad.MaxLevel = 0
	err := bad.Validate()
	require.ErrorIs(t, err, ErrInvalidRules)
	assert.Contains(t, err.Error(), "max level")
}

func TestAbilitiesMax(t *testing.T) {
	a := Abilities{Intelligence: 3, Health: 1}
	b := Abilities{Intelligence: 1, Health: 4, Diligence: 2}

	assert.Equal(t, Abilities{Intelligence: 3, Health: 4, Diligence: 2}, a.Max(b))
	assert.Equal(t, 9, a.Max(b).Total())
}
