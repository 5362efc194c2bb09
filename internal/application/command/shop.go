package command

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/classquest/classroom-hub/internal/domain/repository"
	"github.com/classquest/classroom-hub/internal/domain/reward"
	"github.com/classquest/classroom-hub/internal/domain/shared"
	"github.com/classquest/classroom-hub/internal/domain/shop"
	"github.com/classquest/classroom-hub/internal/domain/student"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// PURCHASE ITEM COMMAND
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrNotAvatarItem is returned when equipping an item without a slot.
	ErrNotAvatarItem = shared.NewDomainError("shop", "Equip", shared.ErrInvalidInput, "item cannot be worn")

	// ErrItemNotOwned is returned when equipping an item the student never bought.
	ErrItemNotOwned = shared.NewDomainError("shop", "Equip", shared.ErrInvalidState, "student does not own the item")
)

// PurchaseItemCommand buys one item for a student.
type PurchaseItemCommand struct {
	ItemID    string
	StudentID string

	// Equip puts an avatar item on right after the purchase.
	Equip bool

	CorrelationID string
}

// Validate validates the command.
func (c PurchaseItemCommand) Validate() error {
	if c.ItemID == "" || c.StudentID == "" {
		return errors.New("purchase_item: item_id and student_id are required")
	}
	return nil
}

// PurchaseItemResult contains the result of a purchase.
type PurchaseItemResult struct {
	Purchase *shop.Purchase
	Item     *shop.Item
	Student  *student.Student
	Equipped bool
}

// ShopHandlerConfig contains configuration for ShopHandler.
type ShopHandlerConfig struct {
	NewID func() string
	Now   func() time.Time
}

// ShopHandler handles purchases and avatar changes.
type ShopHandler struct {
	store          repository.Store
	eventPublisher shared.EventPublisher
	newID          func() string
	now            func() time.Time
}

// NewShopHandler creates a new ShopHandler.
func NewShopHandler(store repository.Store, eventPublisher shared.EventPublisher, config ShopHandlerConfig) *ShopHandler {
	if config.NewID == nil {
		config.NewID = uuid.NewString
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	return &ShopHandler{
		store:          store,
		eventPublisher: eventPublisher,
		newID:          config.NewID,
		now:            config.Now,
	}
}

// Purchase checks stock and points, spends the points, records the purchase
// and a history entry with negative gold.
func (h *ShopHandler) Purchase(ctx context.Context, cmd PurchaseItemCommand) (*PurchaseItemResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("purchase_item: %w: %w", shared.ErrValidation, err)
	}

	result := &PurchaseItemResult{}
	err := h.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		item, err := tx.Shop().GetItem(ctx, cmd.ItemID)
		if err != nil {
			return fmt.Errorf("purchase_item: failed to get item: %w", err)
		}
		s, err := tx.Students().GetByID(ctx, cmd.StudentID)
		if err != nil {
			return fmt.Errorf("purchase_item: failed to get student: %w", err)
		}
		if s.ClassID != item.ClassID {
			return ErrWrongClass
		}

		if err := item.Reserve(); err != nil {
			return err
		}
		if err := s.SpendPoints(item.Price); err != nil {
			return err
		}
		if cmd.Equip && item.IsAvatarItem() {
			if err := s.EquipItem(item.Slot, item.AvatarRef()); err != nil {
				return err
			}
			result.Equipped = true
		}

		now := h.now().UTC()
		p := &shop.Purchase{
			ID:          h.newID(),
			ClassID:     s.ClassID,
			StudentID:   s.ID,
			ItemID:      item.ID,
			ItemName:    item.Name,
			Price:       item.Price,
			PurchasedAt: now,
		}
		if err := tx.Shop().SaveItem(ctx, item); err != nil {
			return fmt.Errorf("purchase_item: failed to save item: %w", err)
		}
		if err := tx.Students().Save(ctx, s); err != nil {
			return fmt.Errorf("purchase_item: failed to save student: %w", err)
		}
		if err := tx.Shop().RecordPurchase(ctx, p); err != nil {
			return fmt.Errorf("purchase_item: failed to record purchase: %w", err)
		}
		entry := &reward.Entry{
			ID:          h.newID(),
			ClassID:     s.ClassID,
			StudentID:   s.ID,
			Source:      reward.SourcePurchase,
			SourceID:    item.ID,
			Note:        item.Name,
			Gold:        -item.Price,
			LevelBefore: s.Level,
			LevelAfter:  s.Level,
			CreatedAt:   now,
		}
		if err := tx.Rewards().Append(ctx, entry); err != nil {
			return fmt.Errorf("purchase_item: failed to append history: %w", err)
		}

		result.Purchase, result.Item, result.Student = p, item, s
		return nil
	})
	if err != nil {
		return nil, err
	}

	ev := shared.NewItemPurchasedEvent(result.Student.ID, result.Student.ClassID, result.Item.ID, result.Item.Price)
	ev.CorrelationID = cmd.CorrelationID
	publishAll(h.eventPublisher, []shared.Event{ev})
	return result, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EQUIP AVATAR COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// EquipAvatarCommand puts a purchased item on a slot, or clears the slot
// when ItemID is empty.
type EquipAvatarCommand struct {
	StudentID string
	Slot      student.Slot
	ItemID    string
}

// Validate validates the command.
func (c EquipAvatarCommand) Validate() error {
	if c.StudentID == "" {
		return errors.New("equip_avatar: student_id is required")
	}
	if !c.Slot.IsValid() {
		return student.ErrInvalidSlot
	}
	return nil
}

// Equip executes the equip avatar command.
func (h *ShopHandler) Equip(ctx context.Context, cmd EquipAvatarCommand) (*student.Student, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("equip_avatar: %w: %w", shared.ErrValidation, err)
	}

	var s *student.Student
	err := h.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		s, err = tx.Students().GetByID(ctx, cmd.StudentID)
		if err != nil {
			return fmt.Errorf("equip_avatar: failed to get student: %w", err)
		}

		if cmd.ItemID == "" {
			if err := s.EquipItem(cmd.Slot, ""); err != nil {
				return err
			}
			return tx.Students().Save(ctx, s)
		}

		item, err := tx.Shop().GetItem(ctx, cmd.ItemID)
		if err != nil {
			return fmt.Errorf("equip_avatar: failed to get item: %w", err)
		}
		if item.Slot != cmd.Slot {
			return ErrNotAvatarItem
		}
		owned, err := tx.Shop().ListPurchasesByStudent(ctx, s.ID)
		if err != nil {
			return fmt.Errorf("equip_avatar: failed to list purchases: %w", err)
		}
		if !slices.ContainsFunc(owned, func(p *shop.Purchase) bool { return p.ItemID == item.ID }) {
			return ErrItemNotOwned
		}
		if err := s.EquipItem(item.Slot, item.AvatarRef()); err != nil {
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
