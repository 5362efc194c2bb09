package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/classquest/classroom-hub/internal/domain/repository"
	"github.com/classquest/classroom-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ROADMAP BOARD QUERY
// Доска челленджа: каждый шаг и ученики, которые сейчас на нём стоят.
// Ученик показывается ровно на одном шаге - последнем выполненном.
// ══════════════════════════════════════════════════════════════════════════════

// GetRoadmapBoardQuery содержит параметры запроса.
type GetRoadmapBoardQuery struct {
	RoadmapID string
}

// StudentRefDTO - краткая ссылка на ученика.
type StudentRefDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Number    int    `json:"number"`
	Honorific string `json:"honorific,omitempty"`
}

// BoardStepDTO - шаг доски.
type BoardStepDTO struct {
	Index    int             `json:"index"`
	ID       string          `json:"id"`
	Goal     string          `json:"goal"`
	Reward   int             `json:"reward_exp"`
	IsFinal  bool            `json:"is_final"`
	Students []StudentRefDTO `json:"students"`
}

// GetRoadmapBoardResult содержит результат запроса.
type GetRoadmapBoardResult struct {
	RoadmapID   string `json:"roadmap_id"`
	ClassID     string `json:"class_id"`
	Name        string `json:"name"`
	RewardTitle string `json:"reward_title,omitempty"`
	Icon        string `json:"icon,omitempty"`

	// NotStarted - ученики без выполненных шагов.
	NotStarted []StudentRefDTO `json:"not_started"`
	Steps      []BoardStepDTO  `json:"steps"`
}

// GetRoadmapBoardHandler обрабатывает запрос доски.
type GetRoadmapBoardHandler struct {
	store   repository.Store
	rewards func(stepIndex int) int
}

// NewGetRoadmapBoardHandler создаёт обработчик. stepReward возвращает опыт
// за шаг, обычно progression.Rules.RoadmapStepReward.
func NewGetRoadmapBoardHandler(store repository.Store, stepReward func(stepIndex int) int) *GetRoadmapBoardHandler {
	return &GetRoadmapBoardHandler{store: store, rewards: stepReward}
}

// Handle выполняет запрос.
func (h *GetRoadmapBoardHandler) Handle(ctx context.Context, q GetRoadmapBoardQuery) (*GetRoadmapBoardResult, error) {
	if q.RoadmapID == "" {
		return nil, errors.New("roadmap_id is required")
	}

	rm, err := h.store.Roadmaps().GetByID(ctx, q.RoadmapID)
	if err != nil {
		return nil, err
	}
	students, err := h.store.Students().ListByClass(ctx, rm.ClassID)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}

	byID := make(map[string]*student.Student, len(students))
	ids := make([]string, 0, len(students))
	for _, s := range students {
		byID[s.ID] = s
		ids = append(ids, s.ID)
	}
	board := rm.Board(ids)

	refs := func(ids []string) []StudentRefDTO {
		out := make([]StudentRefDTO, 0, len(ids))
		for _, id := range ids {
			s := byID[id]
			out = append(out, StudentRefDTO{ID: s.ID, Name: s.Name, Number: s.Number, Honorific: s.Honorific})
		}
		return out
	}

	result := &GetRoadmapBoardResult{
		RoadmapID:   rm.ID,
		ClassID:     rm.ClassID,
		Name:        rm.Name,
		RewardTitle: rm.RewardTitle,
		Icon:        rm.Icon,
		NotStarted:  refs(board[-1]),
		Steps:       make([]BoardStepDTO, 0, len(rm.Steps)),
	}
	for i, step := range rm.Steps {
		dto := BoardStepDTO{
			Index:    i,
			ID:       step.ID,
			Goal:     step.Goal,
			IsFinal:  rm.IsFinal(i),
			Students: refs(board[i]),
		}
		if h.rewards != nil {
			dto.Reward = h.rewards(i)
		}
		result.Steps = append(result.Steps, dto)
	}
	return result, nil
}
