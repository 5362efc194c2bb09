package http

import (
	"net/http"
	"strconv"

	"github.com/classquest/classroom-hub/internal/application/command"
	"github.com/classquest/classroom-hub/internal/application/query"
	"github.com/classquest/classroom-hub/internal/domain/progression"
	"github.com/classquest/classroom-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST DTOs
// ══════════════════════════════════════════════════════════════════════════════

type cardRequest struct {
	Name        string                   `json:"name" validate:"required,max=50"`
	Description string                   `json:"description" validate:"max=200"`
	Abilities   progression.AbilityFlags `json:"abilities"`
	ExpReward   int                      `json:"exp_reward" validate:"gte=0,lte=1000000"`
	GoldReward  int                      `json:"gold_reward" validate:"gte=0,lte=1000000"`
}

type missionRequest struct {
	Name       string                   `json:"name" validate:"required,max=100"`
	Condition  string                   `json:"condition" validate:"max=500"`
	ExpReward  int                      `json:"exp_reward" validate:"gte=0,lte=1000000"`
	GoldReward int                      `json:"gold_reward" validate:"gte=0,lte=1000000"`
	Abilities  progression.AbilityFlags `json:"abilities"`
}

type roadmapRequest struct {
	Name        string                   `json:"name" validate:"required,max=100"`
	Goals       []string                 `json:"goals" validate:"omitempty,max=50,dive,required,max=200"`
	RewardTitle string                   `json:"reward_title" validate:"max=50"`
	Icon        string                   `json:"icon" validate:"max=50"`
	Abilities   progression.AbilityFlags `json:"abilities"`
}

// studentsRequest names the students of a batch award.
type studentsRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1,dive,required"`
	Note       string   `json:"note" validate:"max=200"`
}

// ══════════════════════════════════════════════════════════════════════════════
// PRAISE CARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListCards handles GET /api/v1/classes/{classID}/cards
func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.deps.Queries.Catalog.Cards(r.Context(), r.PathValue("classID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, cards, &ResponseMeta{TotalCount: len(cards)})
}

// handleCreateCard handles POST /api/v1/classes/{classID}/cards
func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	card, err := s.deps.Commands.Catalog.CreateCard(r.Context(), req.command(r.PathValue("classID")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, card)
}

// handleUpdateCard handles PUT /api/v1/cards/{id}
func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	card, err := s.deps.Commands.Catalog.UpdateCard(r.Context(), r.PathValue("id"), req.command(""))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, card)
}

// handleDeleteCard handles DELETE /api/v1/cards/{id}
func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Commands.Catalog.DeleteCard(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAwardCard handles POST /api/v1/cards/{id}/awards
func (s *Server) handleAwardCard(w http.ResponseWriter, r *http.Request) {
	var req studentsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Commands.Praise.Handle(r.Context(), command.AwardPraiseCardCommand{
		CardID:        r.PathValue("id"),
		StudentIDs:    req.StudentIDs,
		Note:          req.Note,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]any{"card": res.Card, "awards": toAwards(res.Awards)})
}

func (c cardRequest) command(classID string) command.CardCommand {
	return command.CardCommand{
		ClassID:     classID,
		Name:        c.Name,
		Description: c.Description,
		Abilities:   c.Abilities,
		ExpReward:   c.ExpReward,
		GoldReward:  c.GoldReward,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MISSION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListMissions handles GET /api/v1/classes/{classID}/missions
func (s *Server) handleListMissions(w http.ResponseWriter, r *http.Request) {
	missions, err := s.deps.Queries.Catalog.Missions(r.Context(), r.PathValue("classID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, missions, &ResponseMeta{TotalCount: len(missions)})
}

// handleCreateMission handles POST /api/v1/classes/{classID}/missions
func (s *Server) handleCreateMission(w http.ResponseWriter, r *http.Request) {
	var req missionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.deps.Commands.Catalog.CreateMission(r.Context(), req.command(r.PathValue("classID")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, m)
}

// handleUpdateMission handles PUT /api/v1/missions/{id}
func (s *Server) handleUpdateMission(w http.ResponseWriter, r *http.Request) {
	var req missionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	m, err := s.deps.Commands.Catalog.UpdateMission(r.Context(), r.PathValue("id"), req.command(""))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, m)
}

// handleDeleteMission handles DELETE /api/v1/missions/{id}
func (s *Server) handleDeleteMission(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Commands.Catalog.DeleteMission(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAchieveMission handles POST /api/v1/missions/{id}/achievements
func (s *Server) handleAchieveMission(w http.ResponseWriter, r *http.Request) {
	var req studentsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Commands.Missions.Achieve(r.Context(), command.AchieveMissionCommand{
		MissionID:     r.PathValue("id"),
		StudentIDs:    req.StudentIDs,
		Note:          req.Note,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]any{
		"mission":          res.Mission,
		"awards":           toAwards(res.Awards),
		"already_achieved": res.AlreadyAchieved,
	})
}

// handleRevokeMission handles DELETE /api/v1/missions/{id}/achievements/{studentID}
func (s *Server) handleRevokeMission(w http.ResponseWriter, r *http.Request) {
	m, err := s.deps.Commands.Missions.Revoke(r.Context(), command.RevokeMissionCommand{
		MissionID: r.PathValue("id"),
		StudentID: r.PathValue("studentID"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, m)
}

func (c missionRequest) command(classID string) command.MissionCommand {
	return command.MissionCommand{
		ClassID:    classID,
		Name:       c.Name,
		Condition:  c.Condition,
		ExpReward:  c.ExpReward,
		GoldReward: c.GoldReward,
		Abilities:  c.Abilities,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ROADMAP HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListRoadmaps handles GET /api/v1/classes/{classID}/roadmaps
func (s *Server) handleListRoadmaps(w http.ResponseWriter, r *http.Request) {
	roadmaps, err := s.deps.Queries.Catalog.Roadmaps(r.Context(), r.PathValue("classID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, roadmaps, &ResponseMeta{TotalCount: len(roadmaps)})
}

// handleCreateRoadmap handles POST /api/v1/classes/{classID}/roadmaps
func (s *Server) handleCreateRoadmap(w http.ResponseWriter, r *http.Request) {
	var req roadmapRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	rm, err := s.deps.Commands.Catalog.CreateRoadmap(r.Context(), req.command(r.PathValue("classID")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, rm)
}

// handleGetRoadmapBoard handles GET /api/v1/roadmaps/{id}/board
func (s *Server) handleGetRoadmapBoard(w http.ResponseWriter, r *http.Request) {
	board, err := s.deps.Queries.RoadmapBoard.Handle(r.Context(), query.GetRoadmapBoardQuery{RoadmapID: r.PathValue("id")})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, board)
}

// handleUpdateRoadmap handles PUT /api/v1/roadmaps/{id}. Omitting goals
// keeps the existing steps and their completion marks.
func (s *Server) handleUpdateRoadmap(w http.ResponseWriter, r *http.Request) {
	var req roadmapRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	rm, err := s.deps.Commands.Catalog.UpdateRoadmap(r.Context(), r.PathValue("id"), req.command(""))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rm)
}

// handleDeleteRoadmap handles DELETE /api/v1/roadmaps/{id}
func (s *Server) handleDeleteRoadmap(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Commands.Catalog.DeleteRoadmap(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCompleteStep handles POST /api/v1/roadmaps/{id}/steps/{index}/completions
func (s *Server) handleCompleteStep(w http.ResponseWriter, r *http.Request) {
	index, err := stepIndex(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req studentsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Commands.Roadmaps.Complete(r.Context(), command.CompleteRoadmapStepCommand{
		RoadmapID:     r.PathValue("id"),
		StepIndex:     index,
		StudentIDs:    req.StudentIDs,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]any{
		"roadmap":           res.Roadmap,
		"awards":            toAwards(res.Awards),
		"already_completed": res.AlreadyCompleted,
		"finished":          res.Finished,
	})
}

// handleUncompleteStep handles DELETE /api/v1/roadmaps/{id}/steps/{index}/completions/{studentID}
func (s *Server) handleUncompleteStep(w http.ResponseWriter, r *http.Request) {
	index, err := stepIndex(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Commands.Roadmaps.Uncomplete(r.Context(), command.UncompleteRoadmapStepCommand{
		RoadmapID: r.PathValue("id"),
		StepIndex: index,
		StudentID: r.PathValue("studentID"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"roadmap": res.Roadmap, "removed": res.Removed})
}

func stepIndex(r *http.Request) (int, error) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 0 {
		return 0, shared.NewDomainError("roadmap", "Step", shared.ErrInvalidInput, "step index must be a non-negative integer")
	}
	return index, nil
}

func (c roadmapRequest) command(classID string) command.RoadmapCommand {
	return command.RoadmapCommand{
		ClassID:     classID,
		Name:        c.Name,
		Goals:       c.Goals,
		RewardTitle: c.RewardTitle,
		Icon:        c.Icon,
		Abilities:   c.Abilities,
	}
}
