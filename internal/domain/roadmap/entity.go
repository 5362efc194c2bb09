// Package roadmap содержит доменную модель челленджа (roadmap):
// упорядоченной последовательности целей, где каждый следующий шаг
// даёт больше опыта, а последний - титул.
package roadmap

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/classquest/classroom-hub/internal/domain/progression"
	"github.com/classquest/classroom-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Step - один шаг челленджа.
type Step struct {
	ID   string `json:"id"`
	Goal string `json:"goal"`
	// Achievers - ученики, выполнившие шаг.
	Achievers []string `json:"achievers"`
}

// HasAchiever проверяет, выполнил ли ученик шаг.
func (s Step) HasAchiever(studentID string) bool {
	return slices.Contains(s.Achievers, studentID)
}

// Roadmap - челлендж класса.
type Roadmap struct {
	ID          string                   `json:"id"`
	ClassID     string                   `json:"class_id"`
	Name        string                   `json:"name"`
	Steps       []Step                   `json:"steps"`
	RewardTitle string                   `json:"reward_title,omitempty"`
	Icon        string                   `json:"icon,omitempty"`
	Abilities   progression.AbilityFlags `json:"abilities"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrRoadmapNotFound - челлендж не найден.
	ErrRoadmapNotFound = shared.NewDomainError("roadmap", "Find", shared.ErrNotFound, "roadmap not found")

	// ErrInvalidName - пустое название.
	ErrInvalidName = shared.NewDomainError("roadmap", "Validate", shared.ErrInvalidInput, "roadmap name must be 1-100 chars")

	// ErrNoSteps - челлендж без шагов или шаг без цели.
	ErrNoSteps = shared.NewDomainError("roadmap", "Validate", shared.ErrInvalidInput, "roadmap needs at least one step with a goal")

	// ErrStepOutOfRange - индекс шага вне диапазона.
	ErrStepOutOfRange = shared.NewDomainError("roadmap", "Step", shared.ErrValueOutOfRange, "step index out of range")

	// ErrPreviousStepIncomplete - предыдущий шаг не выполнен.
	ErrPreviousStepIncomplete = shared.NewDomainError("roadmap", "CompleteStep", shared.ErrInvalidState, "previous step is not completed")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY
// ══════════════════════════════════════════════════════════════════════════════

// NewRoadmapParams содержит параметры для создания челленджа.
type NewRoadmapParams struct {
	ID          string
	ClassID     string
	Name        string
	Goals       []string
	RewardTitle string
	Icon        string
	Abilities   progression.AbilityFlags
	// NewStepID генерирует ID шагов; обязателен.
	NewStepID func() string
}

// NewRoadmap создаёт челлендж с валидацией.
func NewRoadmap(p NewRoadmapParams) (*Roadmap, error) {
	if p.ID == "" || p.ClassID == "" {
		return nil, shared.NewDomainError("roadmap", "Create", shared.ErrInvalidID, "roadmap and class id are required")
	}
	name := strings.TrimSpace(p.Name)
	if name == "" || len([]rune(name)) > 100 {
		return nil, ErrInvalidName
	}

	now := time.Now().UTC()
	r := &Roadmap{
		ID:          p.ID,
		ClassID:     p.ClassID,
		Name:        name,
		RewardTitle: strings.TrimSpace(p.RewardTitle),
		Icon:        strings.TrimSpace(p.Icon),
		Abilities:   p.Abilities,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.SetSteps(p.Goals, p.NewStepID); err != nil {
		return nil, err
	}
	return r, nil
}

// SetSteps заменяет цели шагов. Шаги с тем же индексом сохраняют ID и
// выполнивших учеников; лишние шаги удаляются вместе с отметками.
func (r *Roadmap) SetSteps(goals []string, newID func() string) error {
	cleaned := make([]string, 0, len(goals))
	for _, g := range goals {
		g = strings.TrimSpace(g)
		if g == "" {
			return ErrNoSteps
		}
		cleaned = append(cleaned, g)
	}
	if len(cleaned) == 0 {
		return ErrNoSteps
	}
	if newID == nil && len(cleaned) > len(r.Steps) {
		return shared.NewDomainError("roadmap", "SetSteps", shared.ErrInvalidInput, "step id generator is required")
	}

	steps := make([]Step, len(cleaned))
	for i, goal := range cleaned {
		if i < len(r.Steps) {
			steps[i] = r.Steps[i]
			steps[i].Goal = goal
			continue
		}
		steps[i] = Step{ID: newID(), Goal: goal, Achievers: []string{}}
	}
	r.Steps = steps
	r.touch()
	return nil
}

// Update меняет описательные поля челленджа.
func (r *Roadmap) Update(name, rewardTitle, icon string, abilities progression.AbilityFlags) error {
	n := strings.TrimSpace(name)
	if n == "" || len([]rune(n)) > 100 {
		return ErrInvalidName
	}
	r.Name = n
	r.RewardTitle = strings.TrimSpace(rewardTitle)
	r.Icon = strings.TrimSpace(icon)
	r.Abilities = abilities
	r.touch()
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// IsFinal возвращает true для последнего шага.
func (r *Roadmap) IsFinal(index int) bool {
	return index == len(r.Steps)-1
}

// CompleteStep отмечает выполнение шага учеником. Шаги проходятся по
// порядку: для index > 0 ученик должен уже выполнить шаг index-1.
// Повторная отметка ничего не меняет и возвращает recorded=false.
// final сообщает, что шаг последний, и при повторной отметке тоже.
func (r *Roadmap) CompleteStep(studentID string, index int) (recorded, final bool, err error) {
	if index < 0 || index >= len(r.Steps) {
		return false, false, ErrStepOutOfRange
	}
	final = r.IsFinal(index)
	if r.Steps[index].HasAchiever(studentID) {
		return false, final, nil
	}
	if index > 0 && !r.Steps[index-1].HasAchiever(studentID) {
		return false, final, ErrPreviousStepIncomplete
	}
	r.Steps[index].Achievers = append(r.Steps[index].Achievers, studentID)
	r.touch()
	return true, final, nil
}

// UncompleteStep снимает отметку с шага и со всех последующих.
// Возвращает количество снятых отметок.
func (r *Roadmap) UncompleteStep(studentID string, index int) (int, error) {
	if index < 0 || index >= len(r.Steps) {
		return 0, ErrStepOutOfRange
	}
	removed := 0
	for i := index; i < len(r.Steps); i++ {
		before := len(r.Steps[i].Achievers)
		r.Steps[i].Achievers = slices.DeleteFunc(r.Steps[i].Achievers, func(id string) bool {
			return id == studentID
		})
		removed += before - len(r.Steps[i].Achievers)
	}
	if removed > 0 {
		r.touch()
	}
	return removed, nil
}

// RemoveStudent убирает ученика из всех шагов.
func (r *Roadmap) RemoveStudent(studentID string) bool {
	n, _ := r.UncompleteStep(studentID, 0)
	return n > 0
}

// CurrentStep возвращает индекс последнего выполненного шага или -1.
// Ученик отображается ровно на одном шаге доски.
func (r *Roadmap) CurrentStep(studentID string) int {
	current := -1
	for i, s := range r.Steps {
		if s.HasAchiever(studentID) {
			current = i
		}
	}
	return current
}

// IsCompletedBy возвращает true, если ученик прошёл финальный шаг.
func (r *Roadmap) IsCompletedBy(studentID string) bool {
	return len(r.Steps) > 0 && r.Steps[len(r.Steps)-1].HasAchiever(studentID)
}

// GrantFor возвращает награду за шаг: опыт растёт с номером шага,
// флаги способностей общие для всех шагов, титул - только за финальный.
func (r *Roadmap) GrantFor(rules progression.Rules, index int) progression.Grant {
	g := progression.Grant{
		Exp:       rules.RoadmapStepReward(index),
		Abilities: r.Abilities,
	}
	if r.IsFinal(index) {
		g.Title = r.RewardTitle
	}
	return g
}

// Board группирует учеников по текущему шагу.
// Ключ -1 - ученики, которые ещё не начали челлендж.
func (r *Roadmap) Board(studentIDs []string) map[int][]string {
	board := make(map[int][]string)
	for _, id := range studentIDs {
		idx := r.CurrentStep(id)
		board[idx] = append(board[idx], id)
	}
	return board
}

func (r *Roadmap) touch() {
	r.UpdatedAt = time.Now().UTC()
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет хранение челленджей вместе с шагами и отметками.
type Repository interface {
	Save(ctx context.Context, r *Roadmap) error
	// GetByID возвращает ErrRoadmapNotFound, если челленджа нет.
	GetByID(ctx context.Context, id string) (*Roadmap, error)
	ListByClass(ctx context.Context, classID string) ([]*Roadmap, error)
	ListAll(ctx context.Context) ([]*Roadmap, error)
	Delete(ctx context.Context, id string) error
}
