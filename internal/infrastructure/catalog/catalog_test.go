package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/classquest/classroom-hub/internal/domain/progression"
	"github.com/classquest/classroom-hub/internal/domain/shop"
	"github.com/classquest/classroom-hub/internal/domain/student"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counter() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func TestDefault_IsValid(t *testing.T) {
	c := Default()
	assert.NotEmpty(t, c.PraiseCards)
	assert.NotEmpty(t, c.ShopItems)
	assert.NotEmpty(t, c.Roadmaps)
	assert.NoError(t, c.Validate())
}

func TestInstantiate(t *testing.T) {
	seed, err := Default().Instantiate("c1", counter())
	require.NoError(t, err)

	require.Len(t, seed.Cards, len(Default().PraiseCards))
	assert.Equal(t, "c1", seed.Cards[0].ClassID)
	assert.True(t, seed.Cards[0].Abilities.Has(progression.AbilityCommunication))

	byName := map[string]*shop.Item{}
	for _, it := range seed.Items {
		byName[it.Name] = it
	}
	assert.Equal(t, shop.UnlimitedStock, byName["Seat Swap"].Stock)
	assert.Equal(t, 5, byName["Homework Pass"].Stock)
	assert.Equal(t, student.SlotHat, byName["Wizard Hat"].Slot)

	require.NotEmpty(t, seed.Roadmaps)
	r := seed.Roadmaps[0]
	assert.Len(t, r.Steps, 3)
	assert.Equal(t, "Bookworm", r.RewardTitle)

	seen := map[string]bool{}
	for _, s := range r.Steps {
		assert.False(t, seen[s.ID], "step ids are unique")
		seen[s.ID] = true
	}
}

func TestLoad_ReportsEveryProblem(t *testing.T) {
	doc := `
praise_cards:
  - name: ""
    abilities: [luck]
shop_items:
  - name: Cape
    price: -1
    slot: cape
roadmaps:
  - name: Empty
`
	_, err := Load(strings.NewReader(doc))
	require.Error(t, err)
	for _, want := range []string{
		"praise_cards[0]: name is required",
		`praise_cards[0]: unknown ability "luck"`,
		"shop_items[0]: price cannot be negative",
		`shop_items[0]: unknown slot "cape"`,
		"roadmaps[0]: at least one step is required",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	_, err := Load(strings.NewReader("praise_cards:\n  - name: A\n    colour: red\n"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("shop_items:\n  - name: Sticker\n    price: 5\n"), 0o600))

	c, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, c.ShopItems, 1)
	assert.Empty(t, c.PraiseCards)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_EmptyDocument(t *testing.T) {
	c, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, c.Roadmaps)
}
