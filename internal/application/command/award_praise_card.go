package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/classquest/classroom-hub/internal/domain/praise"
	"github.com/classquest/classroom-hub/internal/domain/repository"
	"github.com/classquest/classroom-hub/internal/domain/reward"
	"github.com/classquest/classroom-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD PRAISE CARD COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// AwardPraiseCardCommand awards one card to several students at once.
type AwardPraiseCardCommand struct {
	CardID     string
	StudentIDs []string
	Note       string

	CorrelationID string
}

// Validate validates the command.
func (c AwardPraiseCardCommand) Validate() error {
	if c.CardID == "" {
		return errors.New("award_praise_card: card_id is required")
	}
	if len(uniqueIDs(c.StudentIDs)) == 0 {
		return errors.New("award_praise_card: at least one student is required")
	}
	return nil
}

// AwardPraiseCardResult contains one grant per awarded student.
type AwardPraiseCardResult struct {
	Card   *praise.Card
	Awards []*GrantRewardResult
}

// AwardPraiseCardHandler handles the AwardPraiseCardCommand.
type AwardPraiseCardHandler struct {
	store          repository.Store
	rewards        *GrantRewardHandler
	eventPublisher shared.EventPublisher
}

// NewAwardPraiseCardHandler creates a new AwardPraiseCardHandler.
func NewAwardPraiseCardHandler(
	store repository.Store,
	rewards *GrantRewardHandler,
	eventPublisher shared.EventPublisher,
) *AwardPraiseCardHandler {
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	return &AwardPraiseCardHandler{store: store, rewards: rewards, eventPublisher: eventPublisher}
}

// Handle awards the card. Either every student is rewarded or none is.
func (h *AwardPraiseCardHandler) Handle(ctx context.Context, cmd AwardPraiseCardCommand) (*AwardPraiseCardResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("award_praise_card: %w: %w", shared.ErrValidation, err)
	}

	result := &AwardPraiseCardResult{}
	var events []shared.Event

	err := h.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		card, err := tx.PraiseCards().GetByID(ctx, cmd.CardID)
		if err != nil {
			return fmt.Errorf("award_praise_card: failed to get card: %w", err)
		}
		result.Card = card

		grant := card.Grant(h.rewards.Rules())
		for _, sid := range uniqueIDs(cmd.StudentIDs) {
			award, evs, err := h.rewards.grant(ctx, tx, GrantRewardCommand{
				StudentID:     sid,
				ClassID:       card.ClassID,
				Source:        reward.SourceCard,
				SourceID:      card.ID,
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
		return nil
	})
	if err != nil {
		return nil, err
	}

	publishAll(h.eventPublisher, events)
	return result, nil
}
