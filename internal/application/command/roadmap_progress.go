package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/classquest/classroom-hub/internal/domain/repository"
	"github.com/classquest/classroom-hub/internal/domain/reward"
	"github.com/classquest/classroom-hub/internal/domain/roadmap"
	"github.com/classquest/classroom-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE / UNCOMPLETE ROADMAP STEP COMMANDS
// Steps are completed in order. Each step grants more exp than the one before
// it and the final step also gives the roadmap's title.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteRoadmapStepCommand records a step for several students.
type CompleteRoadmapStepCommand struct {
	RoadmapID  string
	StepIndex  int
	StudentIDs []string

	CorrelationID string
}

// Validate validates the command.
func (c CompleteRoadmapStepCommand) Validate() error {
	if c.RoadmapID == "" {
		return errors.New("complete_roadmap_step: roadmap_id is required")
	}
	if c.StepIndex < 0 {
		return errors.New("complete_roadmap_step: step index cannot be negative")
	}
	if len(uniqueIDs(c.StudentIDs)) == 0 {
		return errors.New("complete_roadmap_step: at least one student is required")
	}
	return nil
}

// CompleteRoadmapStepResult contains the result of the command.
type CompleteRoadmapStepResult struct {
	Roadmap *roadmap.Roadmap

	// Awards has one grant per student that newly completed the step.
	Awards []*GrantRewardResult

	// AlreadyCompleted lists students that had the step already.
	AlreadyCompleted []string

	// Finished lists students that completed the final step with this call.
	Finished []string
}

// UncompleteRoadmapStepCommand removes a step record from one student.
type UncompleteRoadmapStepCommand struct {
	RoadmapID string
	StepIndex int
	StudentID string
}

// Validate validates the command.
func (c UncompleteRoadmapStepCommand) Validate() error {
	if c.RoadmapID == "" || c.StudentID == "" {
		return errors.New("uncomplete_roadmap_step: roadmap_id and student_id are required")
	}
	if c.StepIndex < 0 {
		return errors.New("uncomplete_roadmap_step: step index cannot be negative")
	}
	return nil
}

// UncompleteRoadmapStepResult contains the result of the command.
type UncompleteRoadmapStepResult struct {
	Roadmap *roadmap.Roadmap

	// Removed counts step records removed, including later steps.
	Removed int
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RoadmapProgressHandler handles step completion commands.
type RoadmapProgressHandler struct {
	store          repository.Store
	rewards        *GrantRewardHandler
	eventPublisher shared.EventPublisher
}

// NewRoadmapProgressHandler creates a new RoadmapProgressHandler.
func NewRoadmapProgressHandler(
	store repository.Store,
	rewards *GrantRewardHandler,
	eventPublisher shared.EventPublisher,
) *RoadmapProgressHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	return &RoadmapProgressHandler{store: store, rewards: rewards, eventPublisher: eventPublisher}
}

// Complete records the step. A student missing the previous step fails the
// whole command; a student who already has the step is skipped.
func (h *RoadmapProgressHandler) Complete(ctx context.Context, cmd CompleteRoadmapStepCommand) (*CompleteRoadmapStepResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("complete_roadmap_step: %w: %w", shared.ErrValidation, err)
	}

	result := &CompleteRoadmapStepResult{}
	var events []shared.Event

	err := h.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		rm, err := tx.Roadmaps().GetByID(ctx, cmd.RoadmapID)
		if err != nil {
			return fmt.Errorf("complete_roadmap_step: failed to get roadmap: %w", err)
		}
		result.Roadmap = rm

		for _, sid := range uniqueIDs(cmd.StudentIDs) {
			recorded, final, err := rm.CompleteStep(sid, cmd.StepIndex)
			if err != nil {
				return err
			}
			if !recorded {
				result.AlreadyCompleted = append(result.AlreadyCompleted, sid)
				continue
			}
			if final {
				result.Finished = append(result.Finished, sid)
			}
			award, evs, err := h.rewards.grant(ctx, tx, GrantRewardCommand{
				StudentID:     sid,
				ClassID:       rm.ClassID,
				Source:        reward.SourceRoadmapStep,
				SourceID:      rm.Steps[cmd.StepIndex].ID,
				Note:          rm.Name + ": " + rm.Steps[cmd.StepIndex].Goal,
				Grant:         rm.GrantFor(h.rewards.Rules(), cmd.StepIndex),
				CorrelationID: cmd.CorrelationID,
			})
			if err != nil {
				return err
			}
			result.Awards = append(result.Awards, award)
			events = append(events, evs...)
		}

		if len(result.Awards) == 0 {
			return nil
		}
		return tx.Roadmaps().Save(ctx, rm)
	})
	if err != nil {
		return nil, err
	}

	publishAll(h.eventPublisher, events)
	return result, nil
}

// Uncomplete removes the step and every later step from the student.
// Granted rewards are not taken back.
func (h *RoadmapProgressHandler) Uncomplete(ctx context.Context, cmd UncompleteRoadmapStepCommand) (*UncompleteRoadmapStepResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("uncomplete_roadmap_step: %w: %w", shared.ErrValidation, err)
	}

	result := &UncompleteRoadmapStepResult{}
	err := h.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		rm, err := tx.Roadmaps().GetByID(ctx, cmd.RoadmapID)
		if err != nil {
			return fmt.Errorf("uncomplete_roadmap_step: failed to get roadmap: %w", err)
		}
		result.Roadmap = rm

		result.Removed, err = rm.UncompleteStep(cmd.StudentID, cmd.StepIndex)
		if err != nil || result.Removed == 0 {
			return err
		}
		return tx.Roadmaps().Save(ctx, rm)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
