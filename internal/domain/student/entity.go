package student

import (
	"strings"
	"time"

	"github.com/classquest/classroom-hub/internal/domain/progression"
	"github.com/classquest/classroom-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student - ученик класса со всем игровым прогрессом.
type Student struct {
	// ID - уникальный идентификатор (UUID в строковом формате).
	ID string `json:"id"`

	// ClassID - класс, к которому относится ученик.
	ClassID string `json:"class_id"`

	// Name - отображаемое имя.
	Name string `json:"name"`

	// Number - номер в списке класса, начиная с 1.
	Number int `json:"number"`

	// Honorific - обращение (титул), выводится рядом с именем.
	Honorific string `json:"honorific,omitempty"`

	// Level всегда выводится из Exp по кривой progression.Rules.
	Level int `json:"level"`

	// Exp - суммарный опыт.
	Exp int `json:"exp"`

	// Points - золото для магазина.
	Points int `json:"points"`

	// Abilities - шесть счётчиков способностей.
	Abilities progression.Abilities `json:"abilities"`

	// Avatar - экипировка аватара.
	Avatar Avatar `json:"avatar"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrStudentNotFound - ученик не найден.
	ErrStudentNotFound = shared.NewDomainError("student", "Find", shared.ErrNotFound, "student not found")

	// ErrInvalidName - невалидное имя.
	ErrInvalidName = shared.NewDomainError("student", "Validate", shared.ErrInvalidInput, "student name must be 1-50 chars")

	// ErrInvalidNumber - номер в списке должен быть положительным.
	ErrInvalidNumber = shared.NewDomainError("student", "Validate", shared.ErrValueOutOfRange, "roster number must be positive")

	// ErrInsufficientPoints - не хватает золота.
	ErrInsufficientPoints = shared.NewDomainError("student", "SpendPoints", shared.ErrInvalidState, "not enough points")

	// ErrInvalidSlot - неизвестный слот аватара.
	ErrInvalidSlot = shared.NewDomainError("student", "Equip", shared.ErrInvalidInput, "unknown avatar slot")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewStudentParams содержит параметры для создания ученика.
type NewStudentParams struct {
	ID      string
	ClassID string
	Name    string
	Number  int
}

// NewStudent создаёт нового ученика на первом уровне.
func NewStudent(p NewStudentParams) (*Student, error) {
	if p.ID == "" {
		return nil, shared.NewDomainError("student", "Create", shared.ErrInvalidID, "student id is required")
	}
	if p.ClassID == "" {
		return nil, shared.NewDomainError("student", "Create", shared.ErrInvalidID, "class id is required")
	}
	name, err := normalizeName(p.Name)
	if err != nil {
		return nil, err
	}
	if p.Number < 1 {
		return nil, ErrInvalidNumber
	}

	now := time.Now().UTC()
	return &Student{
		ID:        p.ID,
		ClassID:   p.ClassID,
		Name:      name,
		Number:    p.Number,
		Level:     1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func normalizeName(name string) (string, error) {
	n := strings.TrimSpace(name)
	if n == "" || len([]rune(n)) > 50 {
		return "", ErrInvalidName
	}
	return n, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// Rename меняет имя ученика.
func (s *Student) Rename(name string) error {
	n, err := normalizeName(name)
	if err != nil {
		return err
	}
	s.Name = n
	s.touch()
	return nil
}

// Renumber меняет номер в списке.
func (s *Student) Renumber(number int) error {
	if number < 1 {
		return ErrInvalidNumber
	}
	s.Number = number
	s.touch()
	return nil
}

// SetHonorific задаёт обращение вручную. Пустая строка снимает титул.
func (s *Student) SetHonorific(title string) {
	s.Honorific = strings.TrimSpace(title)
	s.touch()
}

// ApplyGrant применяет награду через единый расчёт progression.Apply.
func (s *Student) ApplyGrant(rules progression.Rules, g progression.Grant) (progression.Outcome, error) {
	if err := g.Validate(); err != nil {
		return progression.Outcome{}, shared.WrapError("student", "ApplyGrant", shared.ErrInvalidInput, "invalid grant", err)
	}

	out := progression.Apply(rules, s.state(), g)
	s.setState(out.State)
	s.touch()
	return out, nil
}

// SpendPoints списывает золото.
func (s *Student) SpendPoints(amount int) error {
	if amount < 0 {
		return shared.NewDomainError("student", "SpendPoints", shared.ErrNegativeValue, "amount cannot be negative")
	}
	if s.Points < amount {
		return ErrInsufficientPoints
	}
	s.Points -= amount
	s.touch()
	return nil
}

// Normalize пересчитывает уровень по опыту. Возвращает true, если уровень изменился.
func (s *Student) Normalize(rules progression.Rules) bool {
	if s.Exp < 0 {
		s.Exp = 0
	}
	if s.Points < 0 {
		s.Points = 0
	}
	lvl := rules.LevelForExp(s.Exp)
	if lvl == s.Level {
		return false
	}
	s.Level = lvl
	return true
}

// Progress возвращает прогресс внутри текущего уровня.
func (s *Student) Progress(rules progression.Rules) progression.LevelProgress {
	return rules.Progress(s.Exp)
}

// DisplayName возвращает имя с обращением, как его показывают в списке.
func (s *Student) DisplayName() string {
	if s.Honorific == "" {
		return s.Name
	}
	return s.Honorific + " " + s.Name
}

// Clone создаёт глубокую копию ученика.
func (s *Student) Clone() *Student {
	c := *s
	return &c
}

func (s *Student) state() progression.State {
	return progression.State{
		Level:     s.Level,
		Exp:       s.Exp,
		Points:    s.Points,
		Abilities: s.Abilities,
		Honorific: s.Honorific,
	}
}

func (s *Student) setState(st progression.State) {
	s.Level = st.Level
	s.Exp = st.Exp
	s.Points = st.Points
	s.Abilities = st.Abilities
	s.Honorific = st.Honorific
}

func (s *Student) touch() {
	s.UpdatedAt = time.Now().UTC()
}
