package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/classquest/classroom-hub/internal/domain/classroom"
	"github.com/classquest/classroom-hub/internal/domain/progression"
	"github.com/classquest/classroom-hub/internal/domain/repository"
	"github.com/classquest/classroom-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ROSTER QUERY
// Список учеников класса с прогрессом уровня.
// ══════════════════════════════════════════════════════════════════════════════

// GetRosterQuery содержит параметры запроса.
type GetRosterQuery struct {
	ClassID string
}

// RosterEntryDTO - ученик в списке класса.
type RosterEntryDTO struct {
	*student.Student

	// DisplayName - имя вместе с обращением.
	DisplayName string `json:"display_name"`

	Progress progression.LevelProgress `json:"progress"`
}

// GetRosterResult содержит результат запроса.
type GetRosterResult struct {
	Class    *classroom.Class `json:"class"`
	Students []RosterEntryDTO `json:"students"`
}

// GetRosterHandler обрабатывает запрос списка класса.
type GetRosterHandler struct {
	store repository.Store
	rules progression.Rules
}

// NewGetRosterHandler создаёт обработчик.
func NewGetRosterHandler(store repository.Store, rules progression.Rules) *GetRosterHandler {
	return &GetRosterHandler{store: store, rules: rules}
}

// Handle выполняет запрос.
func (h *GetRosterHandler) Handle(ctx context.Context, q GetRosterQuery) (*GetRosterResult, error) {
	if q.ClassID == "" {
		return nil, errors.New("class_id is required")
	}

	class, err := h.store.Classes().GetByID(ctx, q.ClassID)
	if err != nil {
		return nil, err
	}
	students, err := h.store.Students().ListByClass(ctx, q.ClassID)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}

	result := &GetRosterResult{Class: class, Students: make([]RosterEntryDTO, 0, len(students))}
	for _, s := range students {
		result.Students = append(result.Students, RosterEntryDTO{
			Student:     s,
			DisplayName: s.DisplayName(),
			Progress:    s.Progress(h.rules),
		})
	}
	return result, nil
}
