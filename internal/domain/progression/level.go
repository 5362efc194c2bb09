package progression

import (
	"errors"
	"fmt"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// RULES
// ══════════════════════════════════════════════════════════════════════════════

// Rules - настраиваемые константы начисления наград.
type Rules struct {
	// ExpPerLevelStep - шаг кривой: переход с уровня n на n+1 стоит n*ExpPerLevelStep опыта.
	ExpPerLevelStep int

	// GoldPerLevel - золото за каждый полученный уровень.
	GoldPerLevel int

	// AbilityIncrement - прирост отмеченной способности за одну награду.
	AbilityIncrement int

	// MaxLevel - верхняя граница уровня.
	MaxLevel int

	// PraiseCardExp, PraiseCardGold - награда карточки по умолчанию.
	PraiseCardExp  int
	PraiseCardGold int

	// MissionExp, MissionGold - награда миссии по умолчанию.
	MissionExp  int
	MissionGold int

	// RoadmapStepExp - базовый опыт шага челленджа; шаг i даёт RoadmapStepExp*(i+1).
	RoadmapStepExp int
}

// DefaultRules возвращает правила по умолчанию.
func DefaultRules() Rules {
	return Rules{
		ExpPerLevelStep:  100,
		GoldPerLevel:     50,
		AbilityIncrement: 1,
		MaxLevel:         100,
		PraiseCardExp:    10,
		PraiseCardGold:   5,
		MissionExp:       30,
		MissionGold:      10,
		RoadmapStepExp:   20,
	}
}

// ErrInvalidRules - правила не прошли проверку.
var ErrInvalidRules = errors.New("invalid progression rules")

// Validate проверяет правила.
func (r Rules) Validate() error {
	var problems []string
	if r.ExpPerLevelStep <= 0 {
		problems = append(problems, "exp per level step must be positive")
	}
	if r.GoldPerLevel < 0 {
		problems = append(problems, "gold per level cannot be negative")
	}
	if r.AbilityIncrement <= 0 {
		problems = append(problems, "ability increment must be positive")
	}
	if r.MaxLevel < 1 {
		problems = append(problems, "max level must be at least 1")
	}
	if r.PraiseCardExp < 0 || r.PraiseCardGold < 0 || r.MissionExp < 0 || r.MissionGold < 0 || r.RoadmapStepExp < 0 {
		problems = append(problems, "default rewards cannot be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRules, strings.Join(problems, "; "))
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL CURVE
// ══════════════════════════════════════════════════════════════════════════════

// ThresholdFor возвращает суммарный опыт, с которого начинается уровень.
// Уровень 1 начинается с нуля.
func (r Rules) ThresholdFor(level int) int {
	if level <= 1 {
		return 0
	}
	if level > r.MaxLevel {
		level = r.MaxLevel
	}
	return r.ExpPerLevelStep * level * (level - 1) / 2
}

// LevelForExp вычисляет уровень по суммарному опыту.
// Функция монотонна; отрицательный опыт считается нулём.
func (r Rules) LevelForExp(exp int) int {
	if exp <= 0 || r.ExpPerLevelStep <= 0 {
		return 1
	}
	level := 1
	for level < r.MaxLevel && r.ThresholdFor(level+1) <= exp {
		level++
	}
	return level
}

// LevelProgress описывает положение ученика внутри текущего уровня.
type LevelProgress struct {
	Level     int `json:"level"`
	Current   int `json:"current"`   // опыт, набранный внутри уровня
	Span      int `json:"span"`      // длина уровня; 0 на максимальном уровне
	Remaining int `json:"remaining"` // опыт до следующего уровня
}

// Progress возвращает прогресс для полосы уровня.
func (r Rules) Progress(exp int) LevelProgress {
	if exp < 0 {
		exp = 0
	}
	level := r.LevelForExp(exp)
	start := r.ThresholdFor(level)
	if level >= r.MaxLevel {
		return LevelProgress{Level: level, Current: exp - start}
	}
	next := r.ThresholdFor(level + 1)
	return LevelProgress{
		Level:     level,
		Current:   exp - start,
		Span:      next - start,
		Remaining: next - exp,
	}
}

// RoadmapStepReward возвращает опыт за шаг челленджа с индексом stepIndex (с нуля).
// Каждый следующий шаг дороже предыдущего.
func (r Rules) RoadmapStepReward(stepIndex int) int {
	if stepIndex < 0 {
		stepIndex = 0
	}
	return r.RoadmapStepExp * (stepIndex + 1)
}
