// Package progression содержит единственную реализацию расчёта наград:
// кривую уровней, начисление золота за повышение уровня и рост способностей.
// Пакет чистый: без ввода-вывода и внешних зависимостей.
package progression

// Ability - одна из шести способностей ученика.
type Ability string

const (
	AbilityIntelligence  Ability = "intelligence"
	AbilityDiligence     Ability = "diligence"
	AbilityCreativity    Ability = "creativity"
	AbilityPersonality   Ability = "personality"
	AbilityHealth        Ability = "health"
	AbilityCommunication Ability = "communication"
)

// AllAbilities возвращает способности в каноническом порядке.
func AllAbilities() []Ability {
	return []Ability{
		AbilityIntelligence,
		AbilityDiligence,
		AbilityCreativity,
		AbilityPersonality,
		AbilityHealth,
		AbilityCommunication,
	}
}

// Abilities - счётчики способностей ученика.
type Abilities struct {
	Intelligence  int `json:"intelligence"`
	Diligence     int `json:"diligence"`
	Creativity    int `json:"creativity"`
	Personality   int `json:"personality"`
	Health        int `json:"health"`
	Communication int `json:"communication"`
}

// Get возвращает значение счётчика.
func (a Abilities) Get(ab Ability) int {
	switch ab {
	case AbilityIntelligence:
		return a.Intelligence
	case AbilityDiligence:
		return a.Diligence
	case AbilityCreativity:
		return a.Creativity
	case AbilityPersonality:
		return a.Personality
	case AbilityHealth:
		return a.Health
	case AbilityCommunication:
		return a.Communication
	}
	return 0
}

func (a *Abilities) add(ab Ability, delta int) {
	switch ab {
	case AbilityIntelligence:
		a.Intelligence += delta
	case AbilityDiligence:
		a.Diligence += delta
	case AbilityCreativity:
		a.Creativity += delta
	case AbilityPersonality:
		a.Personality += delta
	case AbilityHealth:
		a.Health += delta
	case AbilityCommunication:
		a.Communication += delta
	}
}

// Max возвращает покомпонентный максимум двух наборов.
func (a Abilities) Max(other Abilities) Abilities {
	out := a
	for _, ab := range AllAbilities() {
		if v := other.Get(ab); v > out.Get(ab) {
			out.add(ab, v-out.Get(ab))
		}
	}
	return out
}

// Total возвращает сумму всех счётчиков.
func (a Abilities) Total() int {
	return a.Intelligence + a.Diligence + a.Creativity +
		a.Personality + a.Health + a.Communication
}

// AbilityFlags - набор флагов на карточке, миссии или челлендже.
// Отмеченные способности растут при каждой награде.
type AbilityFlags struct {
	Intelligence  bool `json:"intelligence"`
	Diligence     bool `json:"diligence"`
	Creativity    bool `json:"creativity"`
	Personality   bool `json:"personality"`
	Health        bool `json:"health"`
	Communication bool `json:"communication"`
}

// FlagsOf собирает флаги из списка способностей. Неизвестные имена игнорируются.
func FlagsOf(abilities ...Ability) AbilityFlags {
	var f AbilityFlags
	for _, ab := range abilities {
		switch ab {
		case AbilityIntelligence:
			f.Intelligence = true
		case AbilityDiligence:
			f.Diligence = true
		case AbilityCreativity:
			f.Creativity = true
		case AbilityPersonality:
			f.Personality = true
		case AbilityHealth:
			f.Health = true
		case AbilityCommunication:
			f.Communication = true
		}
	}
	return f
}

// Has проверяет флаг.
func (f AbilityFlags) Has(ab Ability) bool {
	switch ab {
	case AbilityIntelligence:
		return f.Intelligence
	case AbilityDiligence:
		return f.Diligence
	case AbilityCreativity:
		return f.Creativity
	case AbilityPersonality:
		return f.Personality
	case AbilityHealth:
		return f.Health
	case AbilityCommunication:
		return f.Communication
	}
	return false
}

// Any возвращает true, если отмечена хотя бы одна способность.
func (f AbilityFlags) Any() bool {
	return len(f.Names()) > 0
}

// Names возвращает отмеченные способности в каноническом порядке.
func (f AbilityFlags) Names() []Ability {
	var out []Ability
	for _, ab := range AllAbilities() {
		if f.Has(ab) {
			out = append(out, ab)
		}
	}
	return out
}
