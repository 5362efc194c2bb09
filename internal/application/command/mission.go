package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/classquest/classroom-hub/internal/domain/mission"
	"github.com/classquest/classroom-hub/internal/domain/repository"
	"github.com/classquest/classroom-hub/internal/domain/reward"
	"github.com/classquest/classroom-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACHIEVE / REVOKE MISSION COMMANDS
// A mission rewards a student once. Revoking removes the mark only; the
// reward already granted stays in the student's totals and history.
// ══════════════════════════════════════════════════════════════════════════════

// ErrNotAchieved is returned when revoking a mission the student never achieved.
var ErrNotAchieved = shared.NewDomainError("mission", "Revoke", shared.ErrNotFound, "student has not achieved the mission")

// AchieveMissionCommand marks several students as having achieved a mission.
type AchieveMissionCommand struct {
	MissionID  string
	StudentIDs []string
	Note       string

	CorrelationID string
}

// Validate validates the command.
func (c AchieveMissionCommand) Validate() error {
	if c.MissionID == "" {
		return errors.New("achieve_mission: mission_id is required")
	}
	if len(uniqueIDs(c.StudentIDs)) == 0 {
		return errors.New("achieve_mission: at least one student is required")
	}
	return nil
}

// AchieveMissionResult contains the result of the command.
type AchieveMissionResult struct {
	Mission *mission.Mission

	// Awards has one grant per newly achieving student.
	Awards []*GrantRewardResult

	// AlreadyAchieved lists students that were skipped.
	AlreadyAchieved []string
}

// RevokeMissionCommand removes one student's achievement mark.
type RevokeMissionCommand struct {
	MissionID string
	StudentID string
}

// Validate validates the command.
func (c RevokeMissionCommand) Validate() error {
	if c.MissionID == "" || c.StudentID == "" {
		return errors.New("revoke_mission: mission_id and student_id are required")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// MissionProgressHandler handles achievement and revocation of missions.
type MissionProgressHandler struct {
	store          repository.Store
	rewards        *GrantRewardHandler
	eventPublisher shared.EventPublisher
}

// NewMissionProgressHandler creates a new MissionProgressHandler.
func NewMissionProgressHandler(
	store repository.Store,
	rewards *GrantRewardHandler,
	eventPublisher shared.EventPublisher,
) *MissionProgressHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	return &MissionProgressHandler{store: store, rewards: rewards, eventPublisher: eventPublisher}
}

// Achieve marks and rewards the students. Students that already achieved the
// mission are skipped; when nobody is left, mission.ErrAlreadyAchieved is
// returned.
func (h *MissionProgressHandler) Achieve(ctx context.Context, cmd AchieveMissionCommand) (*AchieveMissionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("achieve_mission: %w: %w", shared.ErrValidation, err)
	}

	result := &AchieveMissionResult{}
	var events []shared.Event

	err := h.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		m, err := tx.Missions().GetByID(ctx, cmd.MissionID)
		if err != nil {
			return fmt.Errorf("achieve_mission: failed to get mission: %w", err)
		}
		result.Mission = m

		grant := m.Grant(h.rewards.Rules())
		for _, sid := range uniqueIDs(cmd.StudentIDs) {
			if err := m.Achieve(sid); err != nil {
				if errors.Is(err, mission.ErrAlreadyAchieved) {
					result.AlreadyAchieved = append(result.AlreadyAchieved, sid)
					continue
				}
				return err
			}
			award, evs, err := h.rewards.grant(ctx, tx, GrantRewardCommand{
				StudentID:     sid,
				ClassID:       m.ClassID,
				Source:        reward.SourceMission,
				SourceID:      m.ID,
				Note:          cmd.Note,
				Grant:         grant,
				CorrelationID: cmd.CorrelationID,
			})
			if err != nil {
				return err
			}
			result.Awards = append(result.Awards, award)
			events = append(events, evs...)
		}

		if len(result.Awards) == 0 {
			return mission.ErrAlreadyAchieved
		}
		return tx.Missions().Save(ctx, m)
	})
	if err != nil {
		return nil, err
	}

	publishAll(h.eventPublisher, events)
	return result, nil
}

// Revoke removes the student's mark and returns the updated mission.
func (h *MissionProgressHandler) Revoke(ctx context.Context, cmd RevokeMissionCommand) (*mission.Mission, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("revoke_mission: %w: %w", shared.ErrValidation, err)
	}

	var m *mission.Mission
	err := h.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		m, err = tx.Missions().GetByID(ctx, cmd.MissionID)
		if err != nil {
			return fmt.Errorf("revoke_mission: failed to get mission: %w", err)
		}
		if !m.Revoke(cmd.StudentID) {
			return ErrNotAchieved
		}
		return tx.Missions().Save(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}
