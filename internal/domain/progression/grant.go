package progression

import (
	"errors"
	"math"
)

// MaxGrantAmount - верхняя граница опыта и золота в одной награде.
const MaxGrantAmount = 1_000_000

var (
	// ErrInvalidGrant - награда содержит отрицательные значения.
	ErrInvalidGrant = errors.New("invalid grant: exp and gold must be non-negative")
	// ErrGrantTooLarge - опыт или золото больше MaxGrantAmount.
	ErrGrantTooLarge = errors.New("invalid grant: exp and gold must not exceed 1000000")
)

// Grant - то, что выдаёт наградной объект: карточка, миссия, шаг челленджа
// или учитель вручную.
type Grant struct {
	Exp       int          `json:"exp"`
	Gold      int          `json:"gold"`
	Abilities AbilityFlags `json:"abilities"`
	// Title непустой только для финального шага челленджа.
	Title string `json:"title,omitempty"`
}

// Validate проверяет награду.
func (g Grant) Validate() error {
	if g.Exp < 0 || g.Gold < 0 {
		return ErrInvalidGrant
	}
	if g.Exp > MaxGrantAmount || g.Gold > MaxGrantAmount {
		return ErrGrantTooLarge
	}
	return nil
}

// IsEmpty возвращает true, если награда ничего не меняет.
func (g Grant) IsEmpty() bool {
	return g.Exp == 0 && g.Gold == 0 && !g.Abilities.Any() && g.Title == ""
}

// State - часть ученика, которую меняет награда.
type State struct {
	Level     int
	Exp       int
	Points    int
	Abilities Abilities
	Honorific string
}

// Outcome - результат применения награды.
type Outcome struct {
	State State `json:"-"`

	LevelBefore   int       `json:"level_before"`
	LevelAfter    int       `json:"level_after"`
	LevelsGained  int       `json:"levels_gained"`
	ExpGained     int       `json:"exp_gained"`
	GoldFromGrant int       `json:"gold_from_grant"`
	GoldFromLevel int       `json:"gold_from_level"`
	Raised        []Ability `json:"raised,omitempty"`
	TitleGranted  string    `json:"title_granted,omitempty"`
}

// GoldTotal возвращает всё начисленное золото.
func (o Outcome) GoldTotal() int {
	return o.GoldFromGrant + o.GoldFromLevel
}

// LeveledUp возвращает true при повышении уровня.
func (o Outcome) LeveledUp() bool {
	return o.LevelsGained > 0
}

// Apply применяет награду к состоянию. Это единственное место расчёта:
//  1. опыт прибавляется к суммарному;
//  2. уровень пересчитывается по кривой;
//  3. за каждый полученный уровень начисляется GoldPerLevel золота;
//  4. отмеченные способности растут на AbilityIncrement;
//  5. непустой Title становится обращением ученика.
//
// Уровень из state не используется как источник истины: он всегда
// выводится из опыта, поэтому рассинхронизированные записи исправляются
// при первой же награде. Опыт и золото насыщаются на math.MaxInt.
func Apply(rules Rules, state State, grant Grant) Outcome {
	before := rules.LevelForExp(state.Exp)

	next := state
	next.Exp = addSat(next.Exp, grant.Exp)
	if next.Exp < 0 {
		next.Exp = 0
	}
	next.Level = rules.LevelForExp(next.Exp)

	out := Outcome{
		LevelBefore:   before,
		LevelAfter:    next.Level,
		ExpGained:     grant.Exp,
		GoldFromGrant: grant.Gold,
	}

	if next.Level > before {
		out.LevelsGained = next.Level - before
		out.GoldFromLevel = out.LevelsGained * rules.GoldPerLevel
	}
	next.Points = addSat(addSat(next.Points, out.GoldFromGrant), out.GoldFromLevel)

	for _, ab := range grant.Abilities.Names() {
		next.Abilities.add(ab, rules.AbilityIncrement)
		out.Raised = append(out.Raised, ab)
	}

	if grant.Title != "" {
		next.Honorific = grant.Title
		out.TitleGranted = grant.Title
	}

	out.State = next
	return out
}

// addSat складывает без переполнения.
func addSat(a, b int) int {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return math.MaxInt
	case b < 0 && a < math.MinInt-b:
		return math.MinInt
	}
	return a + b
}
