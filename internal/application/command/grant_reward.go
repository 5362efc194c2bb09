// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/classquest/classroom-hub/internal/domain/progression"
	"github.com/classquest/classroom-hub/internal/domain/repository"
	"github.com/classquest/classroom-hub/internal/domain/reward"
	"github.com/classquest/classroom-hub/internal/domain/shared"
	"github.com/classquest/classroom-hub/internal/domain/student"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRANT REWARD COMMAND
// The one place where a reward changes a student. Cards, missions, roadmap
// steps and manual grants all end up here, inside the caller's transaction.
// ══════════════════════════════════════════════════════════════════════════════

// ErrWrongClass is returned when a reward source and a student belong to
// different classes.
var ErrWrongClass = shared.NewDomainError("reward", "Grant", shared.ErrInvalidInput, "student belongs to another class")

// GrantRewardCommand contains the data to reward one student.
type GrantRewardCommand struct {
	// StudentID is the student being rewarded.
	StudentID string

	// ClassID, when set, must match the student's class.
	ClassID string

	// Source and SourceID identify what produced the reward.
	Source   reward.Source
	SourceID string

	// Note is free text stored in the history entry.
	Note string

	Grant progression.Grant

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c GrantRewardCommand) Validate() error {
	if c.StudentID == "" {
		return errors.New("grant_reward: student_id is required")
	}
	if !c.Source.IsValid() || c.Source == reward.SourcePurchase {
		return fmt.Errorf("grant_reward: invalid source: %q", c.Source)
	}
	if err := c.Grant.Validate(); err != nil {
		return fmt.Errorf("grant_reward: %w", err)
	}
	if c.Source == reward.SourceManual && c.Grant.IsEmpty() {
		return errors.New("grant_reward: manual grant is empty")
	}
	return nil
}

// GrantRewardResult contains the result of a grant.
type GrantRewardResult struct {
	// Student is the student after the grant.
	Student *student.Student

	// Outcome describes what changed.
	Outcome progression.Outcome

	// Entry is the history record that was appended.
	Entry *reward.Entry
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GrantRewardHandler handles the GrantRewardCommand.
type GrantRewardHandler struct {
	store          repository.Store
	eventPublisher shared.EventPublisher
	rules          progression.Rules
	newID          func() string
	now            func() time.Time
}

// GrantRewardHandlerConfig contains configuration for the handler.
type GrantRewardHandlerConfig struct {
	Rules progression.Rules

	// NewID generates history entry ids. Defaults to uuid.NewString.
	NewID func() string

	// Now stamps history entries. Defaults to time.Now.
	Now func() time.Time
}

// DefaultGrantRewardHandlerConfig returns default configuration.
func DefaultGrantRewardHandlerConfig() GrantRewardHandlerConfig {
	return GrantRewardHandlerConfig{
		Rules: progression.DefaultRules(),
		NewID: uuid.NewString,
		Now:   time.Now,
	}
}

// NewGrantRewardHandler creates a new GrantRewardHandler.
func NewGrantRewardHandler(
	store repository.Store,
	eventPublisher shared.EventPublisher,
	config GrantRewardHandlerConfig,
) *GrantRewardHandler {
	defaults := DefaultGrantRewardHandlerConfig()
	if config.Rules.ExpPerLevelStep == 0 {
		config.Rules = defaults.Rules
	}
	if config.NewID == nil {
		config.NewID = defaults.NewID
	}
	if config.Now == nil {
		config.Now = defaults.Now
	}
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}

	return &GrantRewardHandler{
		store:          store,
		eventPublisher: eventPublisher,
		rules:          config.Rules,
		newID:          config.NewID,
		now:            config.Now,
	}
}

// Rules returns the level rules rewards are computed with.
func (h *GrantRewardHandler) Rules() progression.Rules {
	return h.rules
}

// Handle executes the grant reward command.
func (h *GrantRewardHandler) Handle(ctx context.Context, cmd GrantRewardCommand) (*GrantRewardResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("grant_reward: %w: %w", shared.ErrValidation, err)
	}

	var (
		result *GrantRewardResult
		events []shared.Event
	)
	err := h.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		result, events, err = h.grant(ctx, tx, cmd)
		return err
	})
	if err != nil {
		return nil, err
	}

	publishAll(h.eventPublisher, events)
	return result, nil
}

// grant applies one reward inside tx and returns the events to publish after
// the surrounding transaction commits.
func (h *GrantRewardHandler) grant(ctx context.Context, tx repository.Store, cmd GrantRewardCommand) (*GrantRewardResult, []shared.Event, error) {
	s, err := tx.Students().GetByID(ctx, cmd.StudentID)
	if err != nil {
		return nil, nil, fmt.Errorf("grant_reward: failed to get student: %w", err)
	}
	if cmd.ClassID != "" && s.ClassID != cmd.ClassID {
		return nil, nil, ErrWrongClass
	}

	out, err := s.ApplyGrant(h.rules, cmd.Grant)
	if err != nil {
		return nil, nil, err
	}
	if err := tx.Students().Save(ctx, s); err != nil {
		return nil, nil, fmt.Errorf("grant_reward: failed to save student: %w", err)
	}

	entry := &reward.Entry{
		ID:          h.newID(),
		ClassID:     s.ClassID,
		StudentID:   s.ID,
		Source:      cmd.Source,
		SourceID:    cmd.SourceID,
		Note:        cmd.Note,
		Exp:         out.ExpGained,
		Gold:        out.GoldTotal(),
		LevelBefore: out.LevelBefore,
		LevelAfter:  out.LevelAfter,
		Title:       out.TitleGranted,
		CreatedAt:   h.now().UTC(),
	}
	if err := tx.Rewards().Append(ctx, entry); err != nil {
		return nil, nil, fmt.Errorf("grant_reward: failed to append history: %w", err)
	}

	events := rewardEvents(s, entry, out, cmd.CorrelationID)
	return &GrantRewardResult{Student: s, Outcome: out, Entry: entry}, events, nil
}

// rewardEvents builds the events of one grant in publishing order.
func rewardEvents(s *student.Student, e *reward.Entry, out progression.Outcome, correlationID string) []shared.Event {
	granted := shared.NewRewardGrantedEvent(shared.RewardGrantedEvent{
		StudentID: s.ID,
		ClassID:   s.ClassID,
		Name:      s.Name,
		Number:    s.Number,
		Honorific: s.Honorific,
		Source:    string(e.Source),
		SourceID:  e.SourceID,
		Exp:       e.Exp,
		Gold:      e.Gold,
		TotalExp:  s.Exp,
		Level:     s.Level,
	})
	granted.CorrelationID = correlationID
	events := []shared.Event{granted}

	if out.LeveledUp() {
		ev := shared.NewLevelUpEvent(s.ID, s.ClassID, out.LevelBefore, out.LevelAfter, out.GoldFromLevel)
		ev.CorrelationID = correlationID
		events = append(events, ev)
	}
	if out.TitleGranted != "" {
		ev := shared.NewTitleAwardedEvent(s.ID, s.ClassID, out.TitleGranted, e.SourceID)
		ev.CorrelationID = correlationID
		events = append(events, ev)
	}
	return events
}

// publishAll publishes events in order. The write has already committed, so
// a publishing failure is not reported to the caller.
func publishAll(p shared.EventPublisher, events []shared.Event) {
	for _, event := range events {
		_ = p.Publish(event)
	}
}

// uniqueIDs drops empty and repeated ids, keeping the first occurrence.
func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
