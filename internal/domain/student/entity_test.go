package student

import (
	"testing"

	"github.com/classquest/classroom-hub/internal/domain/progression"
	"github.com/classquest/classroom-hub/internal/domain/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStudent(t *testing.T) *Student {
	t.Helper()
	s, err := NewStudent(NewStudentParams{ID: "s-1", ClassID: "c-1", Name: "  Mina  ", Number: 3})
	require.NoError(t, err)
	return s
}

func TestNewStudent(t *testing.T) {
	s := newTestStudent(t)

	assert.Equal(t, "Mina", s.Name)
	assert.Equal(t, 1, s.Level)
	assert.Zero(t, s.Exp)
	assert.True(t, s.Avatar.IsEmpty())
}

func TestNewStudent_Validation(t *testing.T) {
	tests := []struct {
		name   string
		params NewStudentParams
	}{
		{"missing id", NewStudentParams{ClassID: "c", Name: "A", Number: 1}},
		{"missing class", NewStudentParams{ID: "s", Name: "A", Number: 1}},
		{"blank name", NewStudentParams{ID: "s", ClassID: "c", Name: "   ", Number: 1}},
		{"zero number", NewStudentParams{ID: "s", ClassID: "c", Name: "A", Number: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStudent(tt.params)
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestApplyGrant(t *testing.T) {
	s := newTestStudent(t)
	rules := progression.DefaultRules()

	out, err := s.ApplyGrant(rules, progression.Grant{
		Exp:       120,
		Gold:      5,
		Abilities: progression.FlagsOf(progression.AbilityIntelligence),
		Title:     "Explorer",
	})
	require.NoError(t, err)

	assert.True(t, out.LeveledUp())
	assert.Equal(t, 2, s.Level)
	assert.Equal(t, 120, s.Exp)
	assert.Equal(t, 55, s.Points)
	assert.Equal(t, 1, s.Abilities.Intelligence)
	assert.Equal(t, "Explorer", s.Honorific)
	assert.Equal(t, "Explorer Mina", s.DisplayName())
}

func TestApplyGrant_RejectsNegative(t *testing.T) {
	s := newTestStudent(t)
	_, err := s.ApplyGrant(progression.DefaultRules(), progression.Grant{Exp: -5})
	assert.True(t, shared.IsValidation(err))
	assert.Zero(t, s.Exp)
}

func TestSpendPoints(t *testing.T) {
	s := newTestStudent(t)
	s.Points = 10

	require.NoError(t, s.SpendPoints(4))
	assert.Equal(t, 6, s.Points)

	err := s.SpendPoints(7)
	assert.ErrorIs(t, err, ErrInsufficientPoints)
	assert.True(t, shared.IsInvalidState(err))
	assert.Equal(t, 6, s.Points)
}

func TestNormalize(t *testing.T) {
	s := newTestStudent(t)
	s.Exp = 650
	s.Level = 12

	assert.True(t, s.Normalize(progression.DefaultRules()))
	assert.Equal(t, 4, s.Level)
	assert.False(t, s.Normalize(progression.DefaultRules()))
}

func TestAvatar(t *testing.T) {
	s := newTestStudent(t)

	require.NoError(t, s.EquipItem(SlotHat, "item-hat"))
	assert.Equal(t, "item-hat", s.Avatar.Get(SlotHat))

	require.NoError(t, s.Avatar.Unequip(SlotHat))
	assert.True(t, s.Avatar.IsEmpty())

	assert.ErrorIs(t, s.EquipItem(Slot("cape"), "x"), ErrInvalidSlot)

	slot, err := ParseSlot(" Weapon ")
	require.NoError(t, err)
	assert.Equal(t, SlotWeapon, slot)
}

func TestDedupe(t *testing.T) {
	a := &Student{ID: "1", ClassID: "c", Name: "Ann", Number: 1, Exp: 50, Abilities: progression.Abilities{Health: 3}}
	aCopy := &Student{ID: "1", ClassID: "c", Name: "Ann", Number: 1, Exp: 80, Honorific: "Sage", Avatar: Avatar{Hat: "h"}}
	b := &Student{ID: "2", ClassID: "c", Name: "Ben", Number: 2}
	noID1 := &Student{ClassID: "c", Name: "Cy", Number: 3, Exp: 5}
	noID2 := &Student{ClassID: "c", Name: " cy ", Number: 3, Exp: 9}

	kept, reports := Dedupe([]*Student{a, b, aCopy, noID1, noID2, nil})

	require.Len(t, kept, 3)
	assert.Equal(t, "1", kept[0].ID)
	assert.Equal(t, 80, kept[0].Exp)
	assert.Equal(t, 3, kept[0].Abilities.Health)
	assert.Equal(t, "Sage", kept[0].Honorific)
	assert.Equal(t, "h", kept[0].Avatar.Hat)
	assert.Equal(t, "2", kept[1].ID)
	assert.Equal(t, 9, kept[2].Exp)
	assert.Len(t, reports, 2)

	// inputs are not mutated
	assert.Equal(t, 50, a.Exp)
}

func TestMergeDuplicates(t *testing.T) {
	a := &Student{ID: "1", ClassID: "c", Name: "Ann", Number: 1, Exp: 10}
	b := &Student{ID: "2", ClassID: "c", Name: "ann ", Number: 1, Exp: 40}
	c := &Student{ID: "3", ClassID: "c", Name: "Ann", Number: 2}

	kept, reports := MergeDuplicates([]*Student{a, b, c})

	require.Len(t, kept, 2)
	assert.Equal(t, "2", kept[0].ID, "highest exp survives")
	assert.Equal(t, "3", kept[1].ID)
	require.Len(t, reports, 1)
	assert.Equal(t, MergeReport{KeptID: "2", MergedIDs: []string{"1"}}, reports[0])
}

func TestSortRosterAndNextNumber(t *testing.T) {
	list := []*Student{
		{Name: "Zed", Number: 2},
		{Name: "Amy", Number: 2},
		{Name: "Bob", Number: 1},
	}
	SortRoster(list)

	assert.Equal(t, "Bob", list[0].Name)
	assert.Equal(t, "Amy", list[1].Name)
	assert.Equal(t, 3, NextNumber(list))
	assert.Equal(t, 1, NextNumber(nil))
}
