// Package praise содержит доменную модель карточки похвалы -
// многоразового шаблона награды.
package praise

import (
	"context"
	"strings"
	"time"

	"github.com/classquest/classroom-hub/internal/domain/progression"
	"github.com/classquest/classroom-hub/internal/domain/shared"
)

// Card - карточка похвалы.
type Card struct {
	ID          string                   `json:"id"`
	ClassID     string                   `json:"class_id"`
	Name        string                   `json:"name"`
	Description string                   `json:"description,omitempty"`
	Abilities   progression.AbilityFlags `json:"abilities"`
	// ExpReward и GoldReward равные нулю заменяются значениями из progression.Rules.
	ExpReward  int       `json:"exp_reward"`
	GoldReward int       `json:"gold_reward"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

var (
	// ErrCardNotFound - карточка не найдена.
	ErrCardNotFound = shared.NewDomainError("praise", "Find", shared.ErrNotFound, "praise card not found")

	// ErrInvalidName - пустое название.
	ErrInvalidName = shared.NewDomainError("praise", "Validate", shared.ErrInvalidInput, "card name must be 1-100 chars")

	// ErrInvalidReward - отрицательная награда.
	ErrInvalidReward = shared.NewDomainError("praise", "Validate", shared.ErrNegativeValue, "card rewards cannot be negative")
)

// NewCardParams содержит параметры для создания карточки.
type NewCardParams struct {
	ID          string
	ClassID     string
	Name        string
	Description string
	Abilities   progression.AbilityFlags
	ExpReward   int
	GoldReward  int
}

// NewCard создаёт карточку с валидацией.
func NewCard(p NewCardParams) (*Card, error) {
	if p.ID == "" || p.ClassID == "" {
		return nil, shared.NewDomainError("praise", "Create", shared.ErrInvalidID, "card and class id are required")
	}
	c := &Card{ID: p.ID, ClassID: p.ClassID, CreatedAt: time.Now().UTC()}
	if err := c.Update(p.Name, p.Description, p.Abilities, p.ExpReward, p.GoldReward); err != nil {
		return nil, err
	}
	return c, nil
}

// Update меняет поля карточки.
func (c *Card) Update(name, description string, abilities progression.AbilityFlags, exp, gold int) error {
	n := strings.TrimSpace(name)
	if n == "" || len([]rune(n)) > 100 {
		return ErrInvalidName
	}
	if exp < 0 || gold < 0 {
		return ErrInvalidReward
	}
	c.Name = n
	c.Description = strings.TrimSpace(description)
	c.Abilities = abilities
	c.ExpReward = exp
	c.GoldReward = gold
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// Grant возвращает награду карточки.
func (c *Card) Grant(rules progression.Rules) progression.Grant {
	g := progression.Grant{
		Exp:       c.ExpReward,
		Gold:      c.GoldReward,
		Abilities: c.Abilities,
	}
	if g.Exp == 0 {
		g.Exp = rules.PraiseCardExp
	}
	if g.Gold == 0 {
		g.Gold = rules.PraiseCardGold
	}
	return g
}

// Repository определяет хранение карточек.
type Repository interface {
	Save(ctx context.Context, c *Card) error
	// GetByID возвращает ErrCardNotFound, если карточки нет.
	GetByID(ctx context.Context, id string) (*Card, error)
	ListByClass(ctx context.Context, classID string) ([]*Card, error)
	ListAll(ctx context.Context) ([]*Card, error)
	Delete(ctx context.Context, id string) error
}
