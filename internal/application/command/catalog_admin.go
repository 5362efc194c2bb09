package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/classquest/classroom-hub/internal/domain/classroom"
	"github.com/classquest/classroom-hub/internal/domain/mission"
	"github.com/classquest/classroom-hub/internal/domain/praise"
	"github.com/classquest/classroom-hub/internal/domain/progression"
	"github.com/classquest/classroom-hub/internal/domain/repository"
	"github.com/classquest/classroom-hub/internal/domain/roadmap"
	"github.com/classquest/classroom-hub/internal/domain/shared"
	"github.com/classquest/classroom-hub/internal/domain/shop"
	"github.com/classquest/classroom-hub/internal/domain/student"
	"github.com/classquest/classroom-hub/internal/infrastructure/catalog"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG COMMANDS
// Create, update and delete for classes and the things a class rewards with:
// praise cards, missions, roadmaps and shop items.
// ══════════════════════════════════════════════════════════════════════════════

// ClassCommand carries the editable fields of a class.
type ClassCommand struct {
	Name       string
	Grade      string
	SchoolYear string

	// Seed fills a new class with the default catalog. Ignored on update.
	Seed bool
}

// CreateClassResult contains the new class and what was seeded into it.
type CreateClassResult struct {
	Class *classroom.Class
	Seed  *catalog.Seed
}

// CardCommand carries the editable fields of a praise card.
type CardCommand struct {
	ClassID     string
	Name        string
	Description string
	Abilities   progression.AbilityFlags
	ExpReward   int
	GoldReward  int
}

// MissionCommand carries the editable fields of a mission.
type MissionCommand struct {
	ClassID    string
	Name       string
	Condition  string
	ExpReward  int
	GoldReward int
	Abilities  progression.AbilityFlags
}

// RoadmapCommand carries the editable fields of a roadmap.
type RoadmapCommand struct {
	ClassID     string
	Name        string
	Goals       []string
	RewardTitle string
	Icon        string
	Abilities   progression.AbilityFlags
}

// ItemCommand carries the editable fields of a shop item.
type ItemCommand struct {
	ClassID     string
	Name        string
	Description string
	Price       int
	Slot        student.Slot
	ImageRef    string

	// Stock nil means unlimited.
	Stock *int
}

func (c ItemCommand) stock() int {
	if c.Stock == nil {
		return shop.UnlimitedStock
	}
	return *c.Stock
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CatalogHandlerConfig contains configuration for CatalogHandler.
type CatalogHandlerConfig struct {
	// Defaults seeds new classes created with Seed set. Defaults to catalog.Default().
	Defaults *catalog.Catalog

	NewID func() string
}

// CatalogHandler handles the catalog commands.
type CatalogHandler struct {
	store          repository.Store
	eventPublisher shared.EventPublisher
	defaults       *catalog.Catalog
	newID          func() string
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(store repository.Store, eventPublisher shared.EventPublisher, config CatalogHandlerConfig) *CatalogHandler {
	if config.NewID == nil {
		config.NewID = uuid.NewString
	}
	if config.Defaults == nil {
		config.Defaults = catalog.Default()
	}
	if eventPublisher == nil {
		eventPublisher = shared.NopPublisher{}
	}
	return &CatalogHandler{
		store:          store,
		eventPublisher: eventPublisher,
		defaults:       config.Defaults,
		newID:          config.NewID,
	}
}

// ─── Classes ─────────────────────────────────────────────────────────────────

// CreateClass creates a class, seeding it from the default catalog on request.
func (h *CatalogHandler) CreateClass(ctx context.Context, cmd ClassCommand) (*CreateClassResult, error) {
	class, err := classroom.NewClass(classroom.NewClassParams{
		ID:         h.newID(),
		Name:       cmd.Name,
		Grade:      cmd.Grade,
		SchoolYear: cmd.SchoolYear,
	})
	if err != nil {
		return nil, err
	}

	result := &CreateClassResult{Class: class}
	if cmd.Seed {
		result.Seed, err = h.defaults.Instantiate(class.ID, h.newID)
		if err != nil {
			return nil, fmt.Errorf("create_class: %w", err)
		}
	}

	err = h.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := tx.Classes().Save(ctx, class); err != nil {
			return fmt.Errorf("create_class: failed to save class: %w", err)
		}
		if result.Seed == nil {
			return nil
		}
		for _, c := range result.Seed.Cards {
			if err := tx.PraiseCards().Save(ctx, c); err != nil {
				return fmt.Errorf("create_class: failed to seed card: %w", err)
			}
		}
		for _, it := range result.Seed.Items {
			if err := tx.Shop().SaveItem(ctx, it); err != nil {
				return fmt.Errorf("create_class: failed to seed item: %w", err)
			}
		}
		for _, rm := range result.Seed.Roadmaps {
			if err := tx.Roadmaps().Save(ctx, rm); err != nil {
				return fmt.Errorf("create_class: failed to seed roadmap: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateClass changes the name and details of a class.
func (h *CatalogHandler) UpdateClass(ctx context.Context, classID string, cmd ClassCommand) (*classroom.Class, error) {
	var class *classroom.Class
	err := h.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		class, err = tx.Classes().GetByID(ctx, classID)
		if err != nil {
			return err
		}
		if err := class.Rename(cmd.Name); err != nil {
			return err
		}
		class.SetDetails(cmd.Grade, cmd.SchoolYear)
		return tx.Classes().Save(ctx, class)
	})
	if err != nil {
		return nil, err
	}
	return class, nil
}

// DeleteClass removes the class and everything it owns.
func (h *CatalogHandler) DeleteClass(ctx context.Context, classID string) error {
	if classID == "" {
		return errors.New("delete_class: class_id is required")
	}
	if err := h.store.Classes().Delete(ctx, classID); err != nil {
		return err
	}
	publishAll(h.eventPublisher, []shared.Event{shared.NewClassDeletedEvent(classID)})
	return nil
}

// ─── Praise cards ────────────────────────────────────────────────────────────

// CreateCard adds a praise card to a class.
func (h *CatalogHandler) CreateCard(ctx context.Context, cmd CardCommand) (*praise.Card, error) {
	var card *praise.Card
	err := h.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if _, err := tx.Classes().GetByID(ctx, cmd.ClassID); err != nil {
			return err
		}
		var err error
		card, err = praise.NewCard(praise.NewCardParams{
			ID:          h.newID(),
			ClassID:     cmd.ClassID,
			Name:        cmd.Name,
			Description: cmd.Description,
			Abilities:   cmd.Abilities,
			ExpReward:   cmd.ExpReward,
			GoldReward:  cmd.GoldReward,
		})
		if err != nil {
			return err
		}
		return tx.PraiseCards().Save(ctx, card)
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

// UpdateCard edits a praise card. ClassID in cmd is ignored.
func (h *CatalogHandler) UpdateCard(ctx context.Context, cardID string, cmd CardCommand) (*praise.Card, error) {
	var card *praise.Card
	err := h.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		card, err = tx.PraiseCards().GetByID(ctx, cardID)
		if err != nil {
			return err
		}
		if err := card.Update(cmd.Name, cmd.Description, cmd.Abilities, cmd.ExpReward, cmd.GoldReward); err != nil {
			return err
		}
		return tx.PraiseCards().Save(ctx, card)
	})
	if err != nil {
		return nil, err
	}
	return card, nil
}

// DeleteCard removes a praise card. Its history entries are kept.
func (h *CatalogHandler) DeleteCard(ctx context.Context, cardID string) error {
	return h.store.PraiseCards().Delete(ctx, cardID)
}

// ─── Missions ────────────────────────────────────────────────────────────────

// CreateMission adds a mission to a class.
func (h *CatalogHandler) CreateMission(ctx context.Context, cmd MissionCommand) (*mission.Mission, error) {
	var m *mission.Mission
	err := h.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if _, err := tx.Classes().GetByID(ctx, cmd.ClassID); err != nil {
			return err
		}
		var err error
		m, err = mission.NewMission(mission.NewMissionParams{
			ID:         h.newID(),
			ClassID:    cmd.ClassID,
			Name:       cmd.Name,
			Condition:  cmd.Condition,
			ExpReward:  cmd.ExpReward,
			GoldReward: cmd.GoldReward,
			Abilities:  cmd.Abilities,
		})
		if err != nil {
			return err
		}
		return tx.Missions().Save(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// UpdateMission edits a mission; achievement marks are kept.
func (h *CatalogHandler) UpdateMission(ctx context.Context, missionID string, cmd MissionCommand) (*mission.Mission, error) {
	var m *mission.Mission
	err := h.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		m, err = tx.Missions().GetByID(ctx, missionID)
		if err != nil {
			return err
		}
		if err := m.Update(cmd.Name, cmd.Condition, cmd.ExpReward, cmd.GoldReward, cmd.Abilities); err != nil {
			return err
		}
		return tx.Missions().Save(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// DeleteMission removes a mission.
func (h *CatalogHandler) DeleteMission(ctx context.Context, missionID string) error {
	return h.store.Missions().Delete(ctx, missionID)
}

// ─── Roadmaps ────────────────────────────────────────────────────────────────

// CreateRoadmap adds a roadmap to a class.
func (h *CatalogHandler) CreateRoadmap(ctx context.Context, cmd RoadmapCommand) (*roadmap.Roadmap, error) {
	var rm *roadmap.Roadmap
	err := h.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if _, err := tx.Classes().GetByID(ctx, cmd.ClassID); err != nil {
			return err
		}
		var err error
		rm, err = roadmap.NewRoadmap(roadmap.NewRoadmapParams{
			ID:          h.newID(),
			ClassID:     cmd.ClassID,
			Name:        cmd.Name,
			Goals:       cmd.Goals,
			RewardTitle: cmd.RewardTitle,
			Icon:        cmd.Icon,
			Abilities:   cmd.Abilities,
			NewStepID:   h.newID,
		})
		if err != nil {
			return err
		}
		return tx.Roadmaps().Save(ctx, rm)
	})
	if err != nil {
		return nil, err
	}
	return rm, nil
}

// UpdateRoadmap edits a roadmap. Steps keep their marks by index; when Goals
// is empty the steps are left untouched.
func (h *CatalogHandler) UpdateRoadmap(ctx context.Context, roadmapID string, cmd RoadmapCommand) (*roadmap.Roadmap, error) {
	var rm *roadmap.Roadmap
	err := h.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		rm, err = tx.Roadmaps().GetByID(ctx, roadmapID)
		if err != nil {
			return err
		}
		if err := rm.Update(cmd.Name, cmd.RewardTitle, cmd.Icon, cmd.Abilities); err != nil {
			return err
		}
		if len(cmd.Goals) > 0 {
			if err := rm.SetSteps(cmd.Goals, h.newID); err != nil {
				return err
			}
		}
		return tx.Roadmaps().Save(ctx, rm)
	})
	if err != nil {
		return nil, err
	}
	return rm, nil
}

// DeleteRoadmap removes a roadmap.
func (h *CatalogHandler) DeleteRoadmap(ctx context.Context, roadmapID string) error {
	return h.store.Roadmaps().Delete(ctx, roadmapID)
}

// ─── Shop items ──────────────────────────────────────────────────────────────

// CreateItem adds an item to the class shop.
func (h *CatalogHandler) CreateItem(ctx context.Context, cmd ItemCommand) (*shop.Item, error) {
	var it *shop.Item
	err := h.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		if _, err := tx.Classes().GetByID(ctx, cmd.ClassID); err != nil {
			return err
		}
		var err error
		it, err = shop.NewItem(shop.NewItemParams{
			ID:          h.newID(),
			ClassID:     cmd.ClassID,
			Name:        cmd.Name,
			Description: cmd.Description,
			Price:       cmd.Price,
			Slot:        cmd.Slot,
			ImageRef:    cmd.ImageRef,
			Stock:       cmd.stock(),
		})
		if err != nil {
			return err
		}
		return tx.Shop().SaveItem(ctx, it)
	})
	if err != nil {
		return nil, err
	}
	return it, nil
}

// UpdateItem edits a shop item. Past purchases are not affected.
func (h *CatalogHandler) UpdateItem(ctx context.Context, itemID string, cmd ItemCommand) (*shop.Item, error) {
	var it *shop.Item
	err := h.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		it, err = tx.Shop().GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		err = it.Update(shop.NewItemParams{
			Name:        cmd.Name,
			Description: cmd.Description,
			Price:       cmd.Price,
			Slot:        cmd.Slot,
			ImageRef:    cmd.ImageRef,
			Stock:       cmd.stock(),
		})
		if err != nil {
			return err
		}
		return tx.Shop().SaveItem(ctx, it)
	})
	if err != nil {
		return nil, err
	}
	return it, nil
}

// DeleteItem removes a shop item.
func (h *CatalogHandler) DeleteItem(ctx context.Context, itemID string) error {
	return h.store.Shop().DeleteItem(ctx, itemID)
}
