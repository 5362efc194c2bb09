// Package classroom содержит доменную модель класса - контейнера,
// которому принадлежат ученики, карточки, миссии, челленджи и магазин.
package classroom

import (
	"context"
	"strings"
	"time"

	"github.com/classquest/classroom-hub/internal/domain/shared"
)

// Class - учебный класс.
type Class struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Grade      string    `json:"grade,omitempty"`
	SchoolYear string    `json:"school_year,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

var (
	// ErrClassNotFound - класс не найден.
	ErrClassNotFound = shared.NewDomainError("class", "Find", shared.ErrNotFound, "class not found")

	// ErrInvalidClassName - пустое или слишком длинное название.
	ErrInvalidClassName = shared.NewDomainError("class", "Validate", shared.ErrInvalidInput, "class name must be 1-100 chars")
)

// NewClassParams содержит параметры для создания класса.
type NewClassParams struct {
	ID         string
	Name       string
	Grade      string
	SchoolYear string
}

// NewClass создаёт класс с валидацией.
func NewClass(p NewClassParams) (*Class, error) {
	if p.ID == "" {
		return nil, shared.NewDomainError("class", "Create", shared.ErrInvalidID, "class id is required")
	}
	name, err := normalizeName(p.Name)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &Class{
		ID:         p.ID,
		Name:       name,
		Grade:      strings.TrimSpace(p.Grade),
		SchoolYear: strings.TrimSpace(p.SchoolYear),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Rename меняет название класса.
func (c *Class) Rename(name string) error {
	n, err := normalizeName(name)
	if err != nil {
		return err
	}
	c.Name = n
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// SetDetails обновляет параллель и учебный год.
func (c *Class) SetDetails(grade, schoolYear string) {
	c.Grade = strings.TrimSpace(grade)
	c.SchoolYear = strings.TrimSpace(schoolYear)
	c.UpdatedAt = time.Now().UTC()
}

func normalizeName(name string) (string, error) {
	n := strings.TrimSpace(name)
	if n == "" || len([]rune(n)) > 100 {
		return "", ErrInvalidClassName
	}
	return n, nil
}

// Repository определяет хранение классов.
type Repository interface {
	// Save создаёт или обновляет класс.
	Save(ctx context.Context, c *Class) error

	// GetByID возвращает ErrClassNotFound, если класса нет.
	GetByID(ctx context.Context, id string) (*Class, error)

	// List возвращает все классы, отсортированные по названию.
	List(ctx context.Context) ([]*Class, error)

	// Delete удаляет класс вместе со всем, что ему принадлежит.
	Delete(ctx context.Context, id string) error
}
