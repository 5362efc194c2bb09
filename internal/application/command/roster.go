package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/classquest/classroom-hub/internal/domain/repository"
	"github.com/classquest/classroom-hub/internal/domain/shared"
	"github.com/classquest/classroom-hub/internal/domain/student"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROSTER COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// CreateStudentCommand adds a student to a class.
type CreateStudentCommand struct {
	ClassID string
	Name    string

	// Number is the roster number; 0 takes the next free one.
	Number int
}

// Validate validates the command.
func (c CreateStudentCommand) Validate() error {
	if c.ClassID == "" {
		return errors.New("create_student: class_id is required")
	}
	if c.Number < 0 {
		return errors.New("create_student: number cannot be negative")
	}
	return nil
}

// UpdateStudentCommand edits a student. Nil fields are left as they are.
type UpdateStudentCommand struct {
	StudentID string
	Name      *string
	Number    *int
	Honorific *string
}

// Validate validates the command.
func (c UpdateStudentCommand) Validate() error {
	if c.StudentID == "" {
		return errors.New("update_student: student_id is required")
	}
	if c.Name == nil && c.Number == nil && c.Honorific == nil {
		return errors.New("update_student: nothing to update")
	}
	return nil
}

// DeleteStudentCommand removes a student.
type DeleteStudentCommand struct {
	StudentID string
}

// DedupeRosterCommand merges duplicated students of a class.
type DedupeRosterCommand struct {
	ClassID string
}

// DedupeRosterResult describes the merges that were made.
type DedupeRosterResult struct {
	Kept   []*student.Student
	Merges []student.MergeReport
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RosterHandler handles the roster commands.
type RosterHandler struct {
	store          repository.Store
	eventPublisher shared.EventPublisher
	newID          func() string
}

// NewRosterHandler creates a new RosterHandler. A nil newID defaults to uuid.NewString.
func NewRosterHandler(store repository.Store, eventPublisher shared.EventPublisher, newID func() string) *RosterHandler {
	if newID == nil {
		newID = uuid.NewString
	}
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	return &RosterHandler{store: store, eventPublisher: eventPublisher, newID: newID}
}

// Create executes the create student command.
func (h *RosterHandler) Create(ctx context.Context, cmd CreateStudentCommand) (*student.Student, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("create_student: %w: %w", shared.ErrValidation, err)
	}

	var s *student.Student
	err := h.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if _, err := tx.Classes().GetByID(ctx, cmd.ClassID); err != nil {
			return fmt.Errorf("create_student: failed to get class: %w", err)
		}
		number := cmd.Number
		if number == 0 {
			existing, err := tx.Students().ListByClass(ctx, cmd.ClassID)
			if err != nil {
				return fmt.Errorf("create_student: failed to list roster: %w", err)
			}
			number = student.NextNumber(existing)
		}

		var err error
		s, err = student.NewStudent(student.NewStudentParams{
			ID:      h.newID(),
			ClassID: cmd.ClassID,
			Name:    cmd.Name,
			Number:  number,
		})
		if err != nil {
			return err
		}
		return tx.Students().Save(ctx, s)
	})
	if err != nil {
		return nil, err
	}

	publishAll(h.eventPublisher, []shared.Event{shared.NewStudentUpdatedEvent(s.ID, s.ClassID)})
	return s, nil
}

// Update executes the update student command.
func (h *RosterHandler) Update(ctx context.Context, cmd UpdateStudentCommand) (*student.Student, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("update_student: %w: %w", shared.ErrValidation, err)
	}

	var s *student.Student
	err := h.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		s, err = tx.Students().GetByID(ctx, cmd.StudentID)
		if err != nil {
			return fmt.Errorf("update_student: failed to get student: %w", err)
		}
		if cmd.Name != nil {
			if err := s.Rename(*cmd.Name); err != nil {
				return err
			}
		}
		if cmd.Number != nil {
			if err := s.Renumber(*cmd.Number); err != nil {
				return err
			}
		}
		if cmd.Honorific != nil {
			s.SetHonorific(*cmd.Honorific)
		}
		return tx.Students().Save(ctx, s)
	})
	if err != nil {
		return nil, err
	}

	publishAll(h.eventPublisher, []shared.Event{shared.NewStudentUpdatedEvent(s.ID, s.ClassID)})
	return s, nil
}

// Delete removes the student together with every mission and roadmap mark.
func (h *RosterHandler) Delete(ctx context.Context, cmd DeleteStudentCommand) error {
	if cmd.StudentID == "" {
		return errors.New("delete_student: student_id is required")
	}

	var classID string
	err := h.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		s, err := tx.Students().GetByID(ctx, cmd.StudentID)
		if err != nil {
			return fmt.Errorf("delete_student: failed to get student: %w", err)
		}
		classID = s.ClassID

		if err := forgetStudent(ctx, tx, s.ClassID, s.ID); err != nil {
			return err
		}
		return tx.Students().Delete(ctx, s.ID)
	})
	if err != nil {
		return err
	}

	publishAll(h.eventPublisher, []shared.Event{shared.NewStudentDeletedEvent(cmd.StudentID, classID)})
	return nil
}

// Dedupe merges students with the same name and roster number. Mission and
// roadmap marks, reward history and purchases of merged students move to the
// kept one before they are deleted.
func (h *RosterHandler) Dedupe(ctx context.Context, cmd DedupeRosterCommand) (*DedupeRosterResult, error) {
	if cmd.ClassID == "" {
		return nil, errors.New("dedupe_roster: class_id is required")
	}

	result := &DedupeRosterResult{}
	err := h.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		students, err := tx.Students().ListByClass(ctx, cmd.ClassID)
		if err != nil {
			return fmt.Errorf("dedupe_roster: failed to list roster: %w", err)
		}
		result.Kept, result.Merges = student.MergeDuplicates(students)

		kept := make(map[string]*student.Student, len(result.Kept))
		for _, s := range result.Kept {
			kept[s.ID] = s
		}
		for _, m := range result.Merges {
			if err := tx.Students().Save(ctx, kept[m.KeptID]); err != nil {
				return fmt.Errorf("dedupe_roster: failed to save student: %w", err)
			}
			for _, merged := range m.MergedIDs {
				if err := transferMarks(ctx, tx, cmd.ClassID, merged, m.KeptID); err != nil {
					return err
				}
				if err := tx.Rewards().Reassign(ctx, merged, m.KeptID); err != nil {
					return fmt.Errorf("dedupe_roster: failed to move history of %s: %w", merged, err)
				}
				if err := tx.Shop().ReassignPurchases(ctx, merged, m.KeptID); err != nil {
					return fmt.Errorf("dedupe_roster: failed to move purchases of %s: %w", merged, err)
				}
				if err := tx.Students().Delete(ctx, merged); err != nil {
					return fmt.Errorf("dedupe_roster: failed to delete %s: %w", merged, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var events []shared.Event
	for _, m := range result.Merges {
		for _, merged := range m.MergedIDs {
			events = append(events, shared.NewStudentDeletedEvent(merged, cmd.ClassID))
		}
		events = append(events, shared.NewStudentUpdatedEvent(m.KeptID, cmd.ClassID))
	}
	publishAll(h.eventPublisher, events)
	return result, nil
}

// forgetStudent removes the student from every mission and roadmap of the class.
func forgetStudent(ctx context.Context, tx repository.Store, classID, studentID string) error {
	return transferMarks(ctx, tx, classID, studentID, "")
}

// transferMarks moves mission and roadmap marks from one student to another.
// An empty to drops the marks.
func transferMarks(ctx context.Context, tx repository.Store, classID, from, to string) error {
	missions, err := tx.Missions().ListByClass(ctx, classID)
	if err != nil {
		return fmt.Errorf("failed to list missions: %w", err)
	}
	for _, m := range missions {
		if !m.Revoke(from) {
			continue
		}
		if to != "" && !m.HasAchieved(to) {
			_ = m.Achieve(to)
		}
		if err := tx.Missions().Save(ctx, m); err != nil {
			return fmt.Errorf("failed to save mission %s: %w", m.ID, err)
		}
	}

	roadmaps, err := tx.Roadmaps().ListByClass(ctx, classID)
	if err != nil {
		return fmt.Errorf("failed to list roadmaps: %w", err)
	}
	for _, rm := range roadmaps {
		reached := rm.CurrentStep(from)
		if !rm.RemoveStudent(from) {
			continue
		}
		if to != "" {
			for i := 0; i <= reached; i++ {
				_, _, _ = rm.CompleteStep(to, i)
			}
		}
		if err := tx.Roadmaps().Save(ctx, rm); err != nil {
			return fmt.Errorf("failed to save roadmap %s: %w", rm.ID, err)
		}
	}
	return nil
}
