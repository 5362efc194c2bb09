package praise

import (
	"testing"

	"github.com/classquest/classroom-hub/internal/domain/progression"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCard_Grant(t *testing.T) {
	rules := progression.DefaultRules()

	c, err := NewCard(NewCardParams{
		ID:        "card-1",
		ClassID:   "c-1",
		Name:      "Great question",
		Abilities: progression.FlagsOf(progression.AbilityCommunication, progression.AbilityCreativity),
	})
	require.NoError(t, err)

	g := c.Grant(rules)
	assert.Equal(t, rules.PraiseCardExp, g.Exp)
	assert.Equal(t, rules.PraiseCardGold, g.Gold)
	assert.Equal(t, []progression.Ability{progression.AbilityCreativity, progression.AbilityCommunication}, g.Abilities.Names())
	assert.Empty(t, g.Title)
}

func TestCard_Validation(t *testing.T) {
	_, err := NewCard(NewCardParams{ID: "x", ClassID: "c"})
	assert.ErrorIs(t, err, ErrInvalidName)

	_, err = NewCard(NewCardParams{ID: "x", ClassID: "c", Name: "ok", GoldReward: -3})
	assert.ErrorIs(t, err, ErrInvalidReward)
}
