package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/classquest/classroom-hub/internal/domain/progression"
	"github.com/classquest/classroom-hub/internal/domain/repository"
	"github.com/classquest/classroom-hub/internal/domain/reward"
	"github.com/classquest/classroom-hub/internal/domain/shop"
	"github.com/classquest/classroom-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT DETAIL QUERY
// Карточка ученика: прогресс, история наград, положение в челленджах,
// выполненные миссии и покупки.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultHistoryLimit - сколько записей истории возвращается по умолчанию.
const DefaultHistoryLimit = 20

// GetStudentDetailQuery содержит параметры запроса.
type GetStudentDetailQuery struct {
	StudentID string

	// HistoryLimit - сколько последних наград вернуть (0 = DefaultHistoryLimit, -1 = все).
	HistoryLimit int
}

// RoadmapPositionDTO - положение ученика в одном челлендже.
type RoadmapPositionDTO struct {
	RoadmapID string `json:"roadmap_id"`
	Name      string `json:"name"`

	// CurrentStep - индекс последнего выполненного шага, -1 если не начат.
	CurrentStep int    `json:"current_step"`
	StepGoal    string `json:"step_goal,omitempty"`
	TotalSteps  int    `json:"total_steps"`
	Completed   bool   `json:"completed"`
}

// MissionRefDTO - выполненная миссия.
type MissionRefDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// GetStudentDetailResult содержит результат запроса.
type GetStudentDetailResult struct {
	Student     *student.Student          `json:"student"`
	DisplayName string                    `json:"display_name"`
	Progress    progression.LevelProgress `json:"progress"`
	History     []*reward.Entry           `json:"history"`
	Roadmaps    []RoadmapPositionDTO      `json:"roadmaps"`
	Missions    []MissionRefDTO           `json:"missions"`
	Purchases   []*shop.Purchase          `json:"purchases"`
}

// GetStudentDetailHandler обрабатывает запрос карточки ученика.
type GetStudentDetailHandler struct {
	store repository.Store
	rules progression.Rules
}

// NewGetStudentDetailHandler создаёт обработчик.
func NewGetStudentDetailHandler(store repository.Store, rules progression.Rules) *GetStudentDetailHandler {
	return &GetStudentDetailHandler{store: store, rules: rules}
}

// Handle выполняет запрос.
func (h *GetStudentDetailHandler) Handle(ctx context.Context, q GetStudentDetailQuery) (*GetStudentDetailResult, error) {
	if q.StudentID == "" {
		return nil, errors.New("student_id is required")
	}
	limit := q.HistoryLimit
	if limit == 0 {
		limit = DefaultHistoryLimit
	}

	s, err := h.store.Students().GetByID(ctx, q.StudentID)
	if err != nil {
		return nil, err
	}

	history, err := h.store.Rewards().ListByStudent(ctx, s.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	purchases, err := h.store.Shop().ListPurchasesByStudent(ctx, s.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	missions, err := h.store.Missions().ListByClass(ctx, s.ClassID)
	if err != nil {
		return nil, fmt.Errorf("failed to list missions: %w", err)
	}
	roadmaps, err := h.store.Roadmaps().ListByClass(ctx, s.ClassID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roadmaps: %w", err)
	}

	result := &GetStudentDetailResult{
		Student:     s,
		DisplayName: s.DisplayName(),
		Progress:    s.Progress(h.rules),
		History:     history,
		Purchases:   purchases,
		Missions:    []MissionRefDTO{},
		Roadmaps:    make([]RoadmapPositionDTO, 0, len(roadmaps)),
	}
	for _, m := range missions {
		if m.HasAchieved(s.ID) {
			result.Missions = append(result.Missions, MissionRefDTO{ID: m.ID, Name: m.Name})
		}
	}
	for _, rm := range roadmaps {
		pos := RoadmapPositionDTO{
			RoadmapID:   rm.ID,
			Name:        rm.Name,
			CurrentStep: rm.CurrentStep(s.ID),
			TotalSteps:  len(rm.Steps),
			Completed:   rm.IsCompletedBy(s.ID),
		}
		if pos.CurrentStep >= 0 {
			pos.StepGoal = rm.Steps[pos.CurrentStep].Goal
		}
		result.Roadmaps = append(result.Roadmaps, pos)
	}
	return result, nil
}
