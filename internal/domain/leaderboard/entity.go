// Package leaderboard содержит рейтинг класса: ученики упорядочены по опыту,
// при равном опыте - по номеру в списке.
package leaderboard

import (
	"fmt"
	"sort"

	"github.com/classquest/classroom-hub/internal/domain/progression"
	"github.com/classquest/classroom-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Rank - позиция в рейтинге, начиная с 1.
type Rank int

// IsValid проверяет, что ранг положительный.
func (r Rank) IsValid() bool {
	return r > 0
}

// IsPodium возвращает true для первых трёх мест.
func (r Rank) IsPodium() bool {
	return r >= 1 && r <= 3
}

// String возвращает строковое представление ранга.
func (r Rank) String() string {
	return fmt.Sprintf("#%d", r)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Entry - одна строка рейтинга.
type Entry struct {
	Rank      Rank   `json:"rank"`
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Honorific string `json:"honorific,omitempty"`
	Number    int    `json:"number"`
	Level     int    `json:"level"`
	Exp       int    `json:"exp"`
}

// EntryFor строит строку рейтинга для ученика. Уровень берётся из кривой
// rules, а не из сохранённого значения.
func EntryFor(s *student.Student, rules progression.Rules) Entry {
	return Entry{
		StudentID: s.ID,
		Name:      s.Name,
		Honorific: s.Honorific,
		Number:    s.Number,
		Level:     rules.LevelForExp(s.Exp),
		Exp:       s.Exp,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING
// ══════════════════════════════════════════════════════════════════════════════

// Build строит рейтинг класса.
func Build(students []*student.Student, rules progression.Rules) []Entry {
	entries := make([]Entry, 0, len(students))
	for _, s := range students {
		entries = append(entries, EntryFor(s, rules))
	}
	Sort(entries)
	return entries
}

// Sort сортирует записи по опыту (по убыванию), затем по номеру, и
// присваивает ранги. Одинаковый опыт = одинаковый ранг.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Exp != entries[j].Exp {
			return entries[i].Exp > entries[j].Exp
		}
		return entries[i].Number < entries[j].Number
	})

	for i := range entries {
		if i > 0 && entries[i].Exp == entries[i-1].Exp {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = Rank(i + 1)
	}
}

// Top возвращает первые n записей; n <= 0 означает все.
func Top(entries []Entry, n int) []Entry {
	if n <= 0 || n >= len(entries) {
		return entries
	}
	return entries[:n]
}
