package roadmap

import (
	"fmt"
	"testing"

	"github.com/classquest/classroom-hub/internal/domain/progression"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stepIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("step-%d", n)
	}
}

func newTestRoadmap(t *testing.T) *Roadmap {
	t.Helper()
	r, err := NewRoadmap(NewRoadmapParams{
		ID:          "r-1",
		ClassID:     "c-1",
		Name:        "Reading Quest",
		Goals:       []string{"Read 1 book", "Read 3 books", "Read 5 books"},
		RewardTitle: "Bookworm",
		Abilities:   progression.FlagsOf(progression.AbilityIntelligence),
		NewStepID:   stepIDs(),
	})
	require.NoError(t, err)
	return r
}

func TestNewRoadmap_Validation(t *testing.T) {
	_, err := NewRoadmap(NewRoadmapParams{ID: "r", ClassID: "c", Name: "x", NewStepID: stepIDs()})
	assert.ErrorIs(t, err, ErrNoSteps)

	_, err = NewRoadmap(NewRoadmapParams{ID: "r", ClassID: "c", Name: "x", Goals: []string{"a", " "}, NewStepID: stepIDs()})
	assert.ErrorIs(t, err, ErrNoSteps)

	_, err = NewRoadmap(NewRoadmapParams{ID: "r", ClassID: "c", Name: "", Goals: []string{"a"}, NewStepID: stepIDs()})
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestCompleteStep_InOrder(t *testing.T) {
	r := newTestRoadmap(t)

	_, _, err := r.CompleteStep("s1", 1)
	assert.ErrorIs(t, err, ErrPreviousStepIncomplete)

	recorded, _, err := r.CompleteStep("s1", 0)
	require.NoError(t, err)
	assert.True(t, recorded)

	recorded, _, err = r.CompleteStep("s1", 0)
	require.NoError(t, err)
	assert.False(t, recorded, "second completion is a no-op")

	_, _, err = r.CompleteStep("s1", 3)
	assert.ErrorIs(t, err, ErrStepOutOfRange)

	_, _, err = r.CompleteStep("s1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, r.CurrentStep("s1"))
	assert.Equal(t, -1, r.CurrentStep("s2"))
}

func TestCompleteStep_ReportsFinalStep(t *testing.T) {
	r := newTestRoadmap(t)
	tests := []struct {
		index    int
		recorded bool
		final    bool
	}{
		{0, true, false},
		{1, true, false},
		{2, true, true},
		{2, false, true},
	}
	for _, tt := range tests {
		recorded, final, err := r.CompleteStep("s1", tt.index)
		require.NoError(t, err)
		assert.Equal(t, tt.recorded, recorded, "step %d", tt.index)
		assert.Equal(t, tt.final, final, "step %d", tt.index)
	}

	_, final, err := r.CompleteStep("s1", 5)
	assert.ErrorIs(t, err, ErrStepOutOfRange)
	assert.False(t, final)
}

func TestUncompleteStep_RemovesLaterSteps(t *testing.T) {
	r := newTestRoadmap(t)
	for i := 0; i < 3; i++ {
		_, _, err := r.CompleteStep("s1", i)
		require.NoError(t, err)
	}
	assert.True(t, r.IsCompletedBy("s1"))

	removed, err := r.UncompleteStep("s1", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, r.CurrentStep("s1"))
	assert.False(t, r.IsCompletedBy("s1"))

	assert.True(t, r.RemoveStudent("s1"))
	assert.False(t, r.RemoveStudent("s1"))
}

func TestGrantFor(t *testing.T) {
	r := newTestRoadmap(t)
	rules := progression.DefaultRules()

	first := r.GrantFor(rules, 0)
	assert.Equal(t, 20, first.Exp)
	assert.Empty(t, first.Title)
	assert.True(t, first.Abilities.Intelligence)

	last := r.GrantFor(rules, 2)
	assert.Equal(t, 60, last.Exp)
	assert.Equal(t, "Bookworm", last.Title)
}

func TestSetSteps_KeepsAchieversByIndex(t *testing.T) {
	r := newTestRoadmap(t)
	_, _, err := r.CompleteStep("s1", 0)
	require.NoError(t, err)
	firstID := r.Steps[0].ID

	require.NoError(t, r.SetSteps([]string{"Read a book", "Write a review"}, stepIDs()))

	require.Len(t, r.Steps, 2)
	assert.Equal(t, firstID, r.Steps[0].ID)
	assert.Equal(t, "Read a book", r.Steps[0].Goal)
	assert.True(t, r.Steps[0].HasAchiever("s1"))
}

func TestBoard(t *testing.T) {
	r := newTestRoadmap(t)
	_, _, _ = r.CompleteStep("s1", 0)
	_, _, _ = r.CompleteStep("s1", 1)
	_, _, _ = r.CompleteStep("s2", 0)

	board := r.Board([]string{"s1", "s2", "s3"})
	assert.Equal(t, []string{"s1"}, board[1])
	assert.Equal(t, []string{"s2"}, board[0])
	assert.Equal(t, []string{"s3"}, board[-1])
}
