// Package catalog loads the starter templates (praise cards, shop items and
// roadmaps) that seed a new class.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/classquest/classroom-hub/internal/domain/praise"
	"github.com/classquest/classroom-hub/internal/domain/progression"
	"github.com/classquest/classroom-hub/internal/domain/roadmap"
	"github.com/classquest/classroom-hub/internal/domain/shop"
	"github.com/classquest/classroom-hub/internal/domain/student"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultCatalog []byte

// Catalog is a set of templates, as read from YAML.
type Catalog struct {
	PraiseCards []CardTemplate    `yaml:"praise_cards"`
	ShopItems   []ItemTemplate    `yaml:"shop_items"`
	Roadmaps    []RoadmapTemplate `yaml:"roadmaps"`
}

// CardTemplate describes a praise card. Zero rewards use the rules defaults.
type CardTemplate struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Abilities   []string `yaml:"abilities"`
	Exp         int      `yaml:"exp"`
	Gold        int      `yaml:"gold"`
}

// ItemTemplate describes a shop item. A missing stock means unlimited.
type ItemTemplate struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Price       int    `yaml:"price"`
	Slot        string `yaml:"slot"`
	Image       string `yaml:"image"`
	Stock       *int   `yaml:"stock"`
}

// RoadmapTemplate describes a roadmap and its step goals.
type RoadmapTemplate struct {
	Name        string   `yaml:"name"`
	Icon        string   `yaml:"icon"`
	RewardTitle string   `yaml:"reward_title"`
	Abilities   []string `yaml:"abilities"`
	Steps       []string `yaml:"steps"`
}

// Load decodes and validates a catalog. Unknown fields are rejected.
func Load(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadFile loads a catalog from path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Default returns the embedded starter catalog.
func Default() *Catalog {
	c, err := Load(bytes.NewReader(defaultCatalog))
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded default is invalid: %v", err))
	}
	return c
}

// Validate reports every problem in the catalog at once.
func (c *Catalog) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	for i, t := range c.PraiseCards {
		if strings.TrimSpace(t.Name) == "" {
			add("praise_cards[%d]: name is required", i)
		}
		if t.Exp < 0 || t.Gold < 0 {
			add("praise_cards[%d]: rewards cannot be negative", i)
		}
		if err := checkAbilities(t.Abilities); err != nil {
			add("praise_cards[%d]: %v", i, err)
		}
	}
	for i, t := range c.ShopItems {
		if strings.TrimSpace(t.Name) == "" {
			add("shop_items[%d]: name is required", i)
		}
		if t.Price < 0 {
			add("shop_items[%d]: price cannot be negative", i)
		}
		if t.Stock != nil && *t.Stock < 0 {
			add("shop_items[%d]: stock cannot be negative", i)
		}
		if t.Slot != "" {
			if _, err := student.ParseSlot(t.Slot); err != nil {
				add("shop_items[%d]: unknown slot %q", i, t.Slot)
			}
		}
	}
	for i, t := range c.Roadmaps {
		if strings.TrimSpace(t.Name) == "" {
			add("roadmaps[%d]: name is required", i)
		}
		if len(t.Steps) == 0 {
			add("roadmaps[%d]: at least one step is required", i)
		}
		for j, s := range t.Steps {
			if strings.TrimSpace(s) == "" {
				add("roadmaps[%d].steps[%d]: goal is required", i, j)
			}
		}
		if err := checkAbilities(t.Abilities); err != nil {
			add("roadmaps[%d]: %v", i, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("catalog: invalid: %w", errors.Join(errs...))
	}
	return nil
}

func checkAbilities(names []string) error {
	for _, n := range names {
		if !isAbility(progression.Ability(strings.ToLower(strings.TrimSpace(n)))) {
			return fmt.Errorf("unknown ability %q", n)
		}
	}
	return nil
}

func isAbility(a progression.Ability) bool {
	for _, known := range progression.AllAbilities() {
		if a == known {
			return true
		}
	}
	return false
}

func flags(names []string) progression.AbilityFlags {
	abilities := make([]progression.Ability, 0, len(names))
	for _, n := range names {
		abilities = append(abilities, progression.Ability(strings.ToLower(strings.TrimSpace(n))))
	}
	return progression.FlagsOf(abilities...)
}

// ══════════════════════════════════════════════════════════════════════════════
// INSTANTIATION
// ══════════════════════════════════════════════════════════════════════════════

// Seed holds the aggregates built from a catalog for one class.
type Seed struct {
	Cards    []*praise.Card     `json:"cards"`
	Items    []*shop.Item       `json:"items"`
	Roadmaps []*roadmap.Roadmap `json:"roadmaps"`
}

// Instantiate builds fresh aggregates for classID. newID supplies every id,
// including roadmap step ids.
func (c *Catalog) Instantiate(classID string, newID func() string) (*Seed, error) {
	seed := &Seed{}

	for _, t := range c.PraiseCards {
		card, err := praise.NewCard(praise.NewCardParams{
			ID:          newID(),
			ClassID:     classID,
			Name:        t.Name,
			Description: t.Description,
			Abilities:   flags(t.Abilities),
			ExpReward:   t.Exp,
			GoldReward:  t.Gold,
		})
		if err != nil {
			return nil, fmt.Errorf("catalog: card %q: %w", t.Name, err)
		}
		seed.Cards = append(seed.Cards, card)
	}

	for _, t := range c.ShopItems {
		stock := shop.UnlimitedStock
		if t.Stock != nil {
			stock = *t.Stock
		}
		var slot student.Slot
		if t.Slot != "" {
			s, err := student.ParseSlot(t.Slot)
			if err != nil {
				return nil, fmt.Errorf("catalog: item %q: %w", t.Name, err)
			}
			slot = s
		}
		item, err := shop.NewItem(shop.NewItemParams{
			ID:          newID(),
			ClassID:     classID,
			Name:        t.Name,
			Description: t.Description,
			Price:       t.Price,
			Slot:        slot,
			ImageRef:    t.Image,
			Stock:       stock,
		})
		if err != nil {
			return nil, fmt.Errorf("catalog: item %q: %w", t.Name, err)
		}
		seed.Items = append(seed.Items, item)
	}

	for _, t := range c.Roadmaps {
		r, err := roadmap.NewRoadmap(roadmap.NewRoadmapParams{
			ID:          newID(),
			ClassID:     classID,
			Name:        t.Name,
			Goals:       t.Steps,
			RewardTitle: t.RewardTitle,
			Icon:        t.Icon,
			Abilities:   flags(t.Abilities),
			NewStepID:   newID,
		})
		if err != nil {
			return nil, fmt.Errorf("catalog: roadmap %q: %w", t.Name, err)
		}
		seed.Roadmaps = append(seed.Roadmaps, r)
	}

	return seed, nil
}
