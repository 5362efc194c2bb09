package student

import (
	"sort"
	"strconv"
	"strings"
)

// MergeReport описывает одно слияние дублей.
type MergeReport struct {
	KeptID    string   `json:"kept_id"`
	MergedIDs []string `json:"merged_ids"`
}

// Dedupe сливает дубли ученика. Дублями считаются записи с одинаковым ID,
// а для записей без ID - с одинаковыми классом, именем (без учёта регистра)
// и номером. Из группы остаётся запись с наибольшим опытом; способности
// берутся по максимуму, пустые обращение и слоты аватара заполняются
// из остальных записей.
//
// Порядок первых вхождений сохраняется.
func Dedupe(students []*Student) ([]*Student, []MergeReport) {
	return dedupeBy(students, dedupeKey)
}

// MergeDuplicates сливает записи одного класса с одинаковыми именем (без учёта
// регистра) и номером, даже если ID у них разные. Так чистится уже
// сохранённый список, где ID всегда уникальны.
func MergeDuplicates(students []*Student) ([]*Student, []MergeReport) {
	return dedupeBy(students, naturalKey)
}

func dedupeBy(students []*Student, keyOf func(*Student) string) ([]*Student, []MergeReport) {
	type group struct {
		kept   *Student
		merged []string
	}

	groups := make(map[string]*group)
	var order []string

	for _, s := range students {
		if s == nil {
			continue
		}
		key := keyOf(s)
		g, ok := groups[key]
		if !ok {
			groups[key] = &group{kept: s.Clone()}
			order = append(order, key)
			continue
		}

		incoming := s.Clone()
		if incoming.Exp > g.kept.Exp {
			g.merged = append(g.merged, g.kept.ID)
			g.kept, incoming = incoming, g.kept
		} else {
			g.merged = append(g.merged, incoming.ID)
		}
		mergeInto(g.kept, incoming)
	}

	kept := make([]*Student, 0, len(order))
	var reports []MergeReport
	for _, key := range order {
		g := groups[key]
		kept = append(kept, g.kept)
		if len(g.merged) > 0 {
			reports = append(reports, MergeReport{KeptID: g.kept.ID, MergedIDs: g.merged})
		}
	}
	return kept, reports
}

func dedupeKey(s *Student) string {
	if id := strings.TrimSpace(s.ID); id != "" {
		return "id:" + id
	}
	return naturalKey(s)
}

func naturalKey(s *Student) string {
	return "nk:" + s.ClassID + "|" + strings.ToLower(strings.TrimSpace(s.Name)) + "|" + strconv.Itoa(s.Number)
}

func mergeInto(dst, src *Student) {
	dst.Abilities = dst.Abilities.Max(src.Abilities)
	if dst.Honorific == "" {
		dst.Honorific = src.Honorific
	}
	dst.Avatar.fillFrom(src.Avatar)
	if !src.CreatedAt.IsZero() && (dst.CreatedAt.IsZero() || src.CreatedAt.Before(dst.CreatedAt)) {
		dst.CreatedAt = src.CreatedAt
	}
}

// SortRoster сортирует учеников по номеру, затем по имени.
func SortRoster(students []*Student) {
	sort.SliceStable(students, func(i, j int) bool {
		if students[i].Number != students[j].Number {
			return students[i].Number < students[j].Number
		}
		return students[i].Name < students[j].Name
	})
}

// NextNumber возвращает первый номер после максимального в списке.
func NextNumber(students []*Student) int {
	max := 0
	for _, s := range students {
		if s.Number > max {
			max = s.Number
		}
	}
	return max + 1
}
