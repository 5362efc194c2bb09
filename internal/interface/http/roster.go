package http

import (
	"net/http"

	"github.com/classquest/classroom-hub/internal/application/command"
	"github.com/classquest/classroom-hub/internal/application/query"
	"github.com/classquest/classroom-hub/internal/domain/progression"
	"github.com/classquest/classroom-hub/internal/domain/reward"
	"github.com/classquest/classroom-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST / RESPONSE DTOs
// ══════════════════════════════════════════════════════════════════════════════

type classRequest struct {
	Name       string `json:"name" validate:"required,max=100"`
	Grade      string `json:"grade" validate:"max=50"`
	SchoolYear string `json:"school_year" validate:"max=20"`

	// Seed fills a new class with the starter catalog.
	Seed bool `json:"seed"`
}

type createStudentRequest struct {
	Name   string `json:"name" validate:"required,max=50"`
	Number int    `json:"number" validate:"gte=0"`
}

type updateStudentRequest struct {
	Name      *string `json:"name" validate:"omitempty,min=1,max=50"`
	Number    *int    `json:"number" validate:"omitempty,gt=0"`
	Honorific *string `json:"honorific" validate:"omitempty,max=50"`
}

type grantRequest struct {
	Exp       int                      `json:"exp" validate:"gte=0,lte=1000000"`
	Gold      int                      `json:"gold" validate:"gte=0,lte=1000000"`
	Abilities progression.AbilityFlags `json:"abilities"`
	Note      string                   `json:"note" validate:"max=200"`
}

type avatarRequest struct {
	// ItemID empty clears the slot.
	ItemID string `json:"item_id"`
}

// awardResponse is one student's share of a reward.
type awardResponse struct {
	StudentID string              `json:"student_id"`
	Student   *student.Student    `json:"student"`
	Outcome   progression.Outcome `json:"outcome"`
	Entry     *reward.Entry       `json:"entry"`
}

func toAward(r *command.GrantRewardResult) awardResponse {
	return awardResponse{StudentID: r.Student.ID, Student: r.Student, Outcome: r.Outcome, Entry: r.Entry}
}

func toAwards(rs []*command.GrantRewardResult) []awardResponse {
	out := make([]awardResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, toAward(r))
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// CLASS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListClasses handles GET /api/v1/classes
func (s *Server) handleListClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := s.deps.Queries.Catalog.Classes(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, classes, &ResponseMeta{TotalCount: len(classes)})
}

// handleCreateClass handles POST /api/v1/classes
func (s *Server) handleCreateClass(w http.ResponseWriter, r *http.Request) {
	var req classRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Commands.Catalog.CreateClass(r.Context(), command.ClassCommand{
		Name:       req.Name,
		Grade:      req.Grade,
		SchoolYear: req.SchoolYear,
		Seed:       req.Seed,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]any{"class": res.Class, "seed": res.Seed})
}

// handleGetClass handles GET /api/v1/classes/{classID}
func (s *Server) handleGetClass(w http.ResponseWriter, r *http.Request) {
	class, err := s.deps.Queries.Catalog.Class(r.Context(), r.PathValue("classID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, class)
}

// handleUpdateClass handles PUT /api/v1/classes/{classID}
func (s *Server) handleUpdateClass(w http.ResponseWriter, r *http.Request) {
	var req classRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	class, err := s.deps.Commands.Catalog.UpdateClass(r.Context(), r.PathValue("classID"), command.ClassCommand{
		Name:       req.Name,
		Grade:      req.Grade,
		SchoolYear: req.SchoolYear,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, class)
}

// handleDeleteClass handles DELETE /api/v1/classes/{classID}
func (s *Server) handleDeleteClass(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Commands.Catalog.DeleteClass(r.Context(), r.PathValue("classID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetLeaderboard handles GET /api/v1/classes/{classID}/leaderboard
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := getQueryParamInt(r, "limit", 0)
	if limit < 0 {
		limit = 0
	}

	result, err := s.deps.Queries.Leaderboard.Handle(r.Context(), query.GetLeaderboardQuery{
		ClassID: r.PathValue("classID"),
		Limit:   limit,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: result.TotalCount})
}

// ══════════════════════════════════════════════════════════════════════════════
// ROSTER HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetRoster handles GET /api/v1/classes/{classID}/students
func (s *Server) handleGetRoster(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Queries.Roster.Handle(r.Context(), query.GetRosterQuery{ClassID: r.PathValue("classID")})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{TotalCount: len(result.Students)})
}

// handleCreateStudent handles POST /api/v1/classes/{classID}/students
func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	var req createStudentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	st, err := s.deps.Commands.Roster.Create(r.Context(), command.CreateStudentCommand{
		ClassID: r.PathValue("classID"),
		Name:    req.Name,
		Number:  req.Number,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, st)
}

// handleDedupeRoster handles POST /api/v1/classes/{classID}/students/dedupe
func (s *Server) handleDedupeRoster(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Commands.Roster.Dedupe(r.Context(), command.DedupeRosterCommand{ClassID: r.PathValue("classID")})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"students": res.Kept, "merges": res.Merges})
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetStudent handles GET /api/v1/students/{id}
func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.Queries.StudentDetail.Handle(r.Context(), query.GetStudentDetailQuery{
		StudentID:    r.PathValue("id"),
		HistoryLimit: getQueryParamInt(r, "history", 0),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleUpdateStudent handles PUT /api/v1/students/{id}
func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	var req updateStudentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	st, err := s.deps.Commands.Roster.Update(r.Context(), command.UpdateStudentCommand{
		StudentID: r.PathValue("id"),
		Name:      req.Name,
		Number:    req.Number,
		Honorific: req.Honorific,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, st)
}

// handleDeleteStudent handles DELETE /api/v1/students/{id}
func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Commands.Roster.Delete(r.Context(), command.DeleteStudentCommand{StudentID: r.PathValue("id")}); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGrantReward handles POST /api/v1/students/{id}/rewards
func (s *Server) handleGrantReward(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Commands.Rewards.Handle(r.Context(), command.GrantRewardCommand{
		StudentID:     r.PathValue("id"),
		Source:        reward.SourceManual,
		Note:          req.Note,
		Grant:         progression.Grant{Exp: req.Exp, Gold: req.Gold, Abilities: req.Abilities},
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toAward(res))
}

// handleGetHistory handles GET /api/v1/students/{id}/history
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Queries.Catalog.History(r.Context(), r.PathValue("id"),
		getQueryParamInt(r, "limit", query.DefaultHistoryLimit))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, entries, &ResponseMeta{TotalCount: len(entries)})
}

// handleEquipAvatar handles PUT /api/v1/students/{id}/avatar/{slot}
func (s *Server) handleEquipAvatar(w http.ResponseWriter, r *http.Request) {
	var req avatarRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	slot, err := student.ParseSlot(r.PathValue("slot"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	st, err := s.deps.Commands.Shop.Equip(r.Context(), command.EquipAvatarCommand{
		StudentID: r.PathValue("id"),
		Slot:      slot,
		ItemID:    req.ItemID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, st)
}
