package leaderboard

import (
	"testing"

	"github.com/classquest/classroom-hub/internal/domain/progression"
	"github.com/classquest/classroom-hub/internal/domain/student"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStudent(t *testing.T, id string, number, exp int) *student.Student {
	t.Helper()
	s, err := student.NewStudent(student.NewStudentParams{ID: id, ClassID: "c-1", Name: "S " + id, Number: number})
	require.NoError(t, err)
	s.Exp = exp
	return s
}

func TestBuild_RanksByExpThenNumber(t *testing.T) {
	rules := progression.DefaultRules()
	entries := Build([]*student.Student{
		newStudent(t, "a", 3, 50),
		newStudent(t, "b", 1, 120),
		newStudent(t, "c", 2, 50),
		newStudent(t, "d", 4, 0),
	}, rules)

	var ids []string
	var ranks []Rank
	for _, e := range entries {
		ids = append(ids, e.StudentID)
		ranks = append(ranks, e.Rank)
	}
	assert.Equal(t, []string{"b", "c", "a", "d"}, ids)
	assert.Equal(t, []Rank{1, 2, 2, 4}, ranks)
	assert.Equal(t, 2, entries[0].Level)
}

func TestTop(t *testing.T) {
	entries := []Entry{{StudentID: "a"}, {StudentID: "b"}, {StudentID: "c"}}
	assert.Len(t, Top(entries, 2), 2)
	assert.Len(t, Top(entries, 0), 3)
	assert.Len(t, Top(entries, 10), 3)
}

func TestRank(t *testing.T) {
	assert.True(t, Rank(3).IsPodium())
	assert.False(t, Rank(4).IsPodium())
	assert.False(t, Rank(0).IsValid())
	assert.Equal(t, "#2", Rank(2).String())
}
