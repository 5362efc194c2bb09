// Package mission содержит доменную модель миссии: условия, за выполнение
// которого ученик получает опыт и золото один раз.
package mission

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/classquest/classroom-hub/internal/domain/progression"
	"github.com/classquest/classroom-hub/internal/domain/shared"
)

// Mission - миссия класса.
type Mission struct {
	ID        string   `json:"id"`
	ClassID   string   `json:"class_id"`
	Name      string   `json:"name"`
	Condition string   `json:"condition,omitempty"`
	Achievers []string `json:"achievers"`
	// ExpReward и GoldReward равные нулю заменяются значениями из progression.Rules.
	ExpReward  int                      `json:"exp_reward"`
	GoldReward int                      `json:"gold_reward"`
	Abilities  progression.AbilityFlags `json:"abilities"`
	CreatedAt  time.Time                `json:"created_at"`
	UpdatedAt  time.Time                `json:"updated_at"`
}

var (
	// ErrMissionNotFound - миссия не найдена.
	ErrMissionNotFound = shared.NewDomainError("mission", "Find", shared.ErrNotFound, "mission not found")

	// ErrInvalidName - пустое название.
	ErrInvalidName = shared.NewDomainError("mission", "Validate", shared.ErrInvalidInput, "mission name must be 1-100 chars")

	// ErrInvalidReward - отрицательная награда.
	ErrInvalidReward = shared.NewDomainError("mission", "Validate", shared.ErrNegativeValue, "mission rewards cannot be negative")

	// ErrAlreadyAchieved - ученик уже выполнил миссию.
	ErrAlreadyAchieved = shared.NewDomainError("mission", "Achieve", shared.ErrAlreadyExists, "mission already achieved by student")
)

// NewMissionParams содержит параметры для создания миссии.
type NewMissionParams struct {
	ID         string
	ClassID    string
	Name       string
	Condition  string
	ExpReward  int
	GoldReward int
	Abilities  progression.AbilityFlags
}

// NewMission создаёт миссию с валидацией.
func NewMission(p NewMissionParams) (*Mission, error) {
	if p.ID == "" || p.ClassID == "" {
		return nil, shared.NewDomainError("mission", "Create", shared.ErrInvalidID, "mission and class id are required")
	}
	m := &Mission{
		ID:        p.ID,
		ClassID:   p.ClassID,
		Achievers: []string{},
		CreatedAt: time.Now().UTC(),
	}
	if err := m.Update(p.Name, p.Condition, p.ExpReward, p.GoldReward, p.Abilities); err != nil {
		return nil, err
	}
	return m, nil
}

// Update меняет описание и награду миссии. Отметки выполнения сохраняются.
func (m *Mission) Update(name, condition string, exp, gold int, abilities progression.AbilityFlags) error {
	n := strings.TrimSpace(name)
	if n == "" || len([]rune(n)) > 100 {
		return ErrInvalidName
	}
	if exp < 0 || gold < 0 {
		return ErrInvalidReward
	}
	m.Name = n
	m.Condition = strings.TrimSpace(condition)
	m.ExpReward = exp
	m.GoldReward = gold
	m.Abilities = abilities
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// HasAchieved проверяет отметку ученика.
func (m *Mission) HasAchieved(studentID string) bool {
	return slices.Contains(m.Achievers, studentID)
}

// Achieve отмечает выполнение миссии учеником.
func (m *Mission) Achieve(studentID string) error {
	if m.HasAchieved(studentID) {
		return ErrAlreadyAchieved
	}
	m.Achievers = append(m.Achievers, studentID)
	m.UpdatedAt = time.Now().UTC()
	return nil
}

// Revoke снимает отметку. Уже выданная награда не отзывается.
func (m *Mission) Revoke(studentID string) bool {
	before := len(m.Achievers)
	m.Achievers = slices.DeleteFunc(m.Achievers, func(id string) bool { return id == studentID })
	if len(m.Achievers) == before {
		return false
	}
	m.UpdatedAt = time.Now().UTC()
	return true
}

// Grant возвращает награду за миссию.
func (m *Mission) Grant(rules progression.Rules) progression.Grant {
	g := progression.Grant{
		Exp:       m.ExpReward,
		Gold:      m.GoldReward,
		Abilities: m.Abilities,
	}
	if g.Exp == 0 {
		g.Exp = rules.MissionExp
	}
	if g.Gold == 0 {
		g.Gold = rules.MissionGold
	}
	return g
}

// Repository определяет хранение миссий вместе с отметками выполнения.
type Repository interface {
	Save(ctx context.Context, m *Mission) error
	// GetByID возвращает ErrMissionNotFound, если миссии нет.
	GetByID(ctx context.Context, id string) (*Mission, error)
	ListByClass(ctx context.Context, classID string) ([]*Mission, error)
	ListAll(ctx context.Context) ([]*Mission, error)
	Delete(ctx context.Context, id string) error
}
