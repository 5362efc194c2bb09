// Package backup dumps the whole store to one JSON document and loads it back.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/classquest/classroom-hub/internal/domain/classroom"
	"github.com/classquest/classroom-hub/internal/domain/mission"
	"github.com/classquest/classroom-hub/internal/domain/praise"
	"github.com/classquest/classroom-hub/internal/domain/repository"
	"github.com/classquest/classroom-hub/internal/domain/reward"
	"github.com/classquest/classroom-hub/internal/domain/roadmap"
	"github.com/classquest/classroom-hub/internal/domain/shop"
	"github.com/classquest/classroom-hub/internal/domain/student"

	"golang.org/x/sync/errgroup"
)

// CurrentVersion is the snapshot format version.
const CurrentVersion = 1

// ─── Types ───────────────────────────────────────────────────────────────────

// Snapshot is a full dump of the store.
type Snapshot struct {
	Version     int                `json:"version"`
	ExportedAt  time.Time          `json:"exported_at"`
	Classes     []*classroom.Class `json:"classes"`
	Students    []*student.Student `json:"students"`
	Missions    []*mission.Mission `json:"missions"`
	Roadmaps    []*roadmap.Roadmap `json:"roadmaps"`
	PraiseCards []*praise.Card     `json:"praise_cards"`
	ShopItems   []*shop.Item       `json:"shop_items"`
	Purchases   []*shop.Purchase   `json:"purchases"`
	Rewards     []*reward.Entry    `json:"rewards"`
}

// Counts reports rows per collection.
type Counts struct {
	Classes     int `json:"classes"`
	Students    int `json:"students"`
	Missions    int `json:"missions"`
	Roadmaps    int `json:"roadmaps"`
	PraiseCards int `json:"praise_cards"`
	ShopItems   int `json:"shop_items"`
	Purchases   int `json:"purchases"`
	Rewards     int `json:"rewards"`
}

// Total returns the sum of all counts.
func (c Counts) Total() int {
	return c.Classes + c.Students + c.Missions + c.Roadmaps +
		c.PraiseCards + c.ShopItems + c.Purchases + c.Rewards
}

// Counts returns the number of rows in each collection.
func (s *Snapshot) Counts() Counts {
	return Counts{
		Classes:     len(s.Classes),
		Students:    len(s.Students),
		Missions:    len(s.Missions),
		Roadmaps:    len(s.Roadmaps),
		PraiseCards: len(s.PraiseCards),
		ShopItems:   len(s.ShopItems),
		Purchases:   len(s.Purchases),
		Rewards:     len(s.Rewards),
	}
}

// ClassIDs returns the sorted ids of classes the snapshot has classes or
// students for.
func (s *Snapshot) ClassIDs() []string {
	seen := make(map[string]bool)
	for _, c := range s.Classes {
		seen[c.ID] = true
	}
	for _, st := range s.Students {
		seen[st.ClassID] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		if id != "" {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ─── Export / Import ─────────────────────────────────────────────────────────

// Export loads every collection concurrently.
func Export(ctx context.Context, store repository.Store) (*Snapshot, error) {
	snap := &Snapshot{Version: CurrentVersion, ExportedAt: time.Now().UTC()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Classes, err = store.Classes().List(ctx)
		return wrap("classes", err)
	})
	g.Go(func() (err error) {
		snap.Students, err = store.Students().ListAll(ctx)
		return wrap("students", err)
	})
	g.Go(func() (err error) {
		snap.Missions, err = store.Missions().ListAll(ctx)
		return wrap("missions", err)
	})
	g.Go(func() (err error) {
		snap.Roadmaps, err = store.Roadmaps().ListAll(ctx)
		return wrap("roadmaps", err)
	})
	g.Go(func() (err error) {
		snap.PraiseCards, err = store.PraiseCards().ListAll(ctx)
		return wrap("praise cards", err)
	})
	g.Go(func() (err error) {
		snap.ShopItems, err = store.Shop().ListAllItems(ctx)
		return wrap("shop items", err)
	})
	g.Go(func() (err error) {
		snap.Purchases, err = store.Shop().ListAllPurchases(ctx)
		return wrap("purchases", err)
	})
	g.Go(func() (err error) {
		snap.Rewards, err = store.Rewards().ListAll(ctx)
		return wrap("rewards", err)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

// Import upserts the snapshot in dependency order inside one transaction.
// Importing the same snapshot twice leaves the store unchanged.
func Import(ctx context.Context, store repository.Store, snap *Snapshot) (Counts, error) {
	if snap == nil {
		return Counts{}, fmt.Errorf("backup: nil snapshot")
	}
	if snap.Version > CurrentVersion {
		return Counts{}, fmt.Errorf("backup: unsupported snapshot version %d", snap.Version)
	}

	err := store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		for _, c := range snap.Classes {
			if err := tx.Classes().Save(ctx, c); err != nil {
				return wrap("class "+c.ID, err)
			}
		}
		for _, s := range snap.Students {
			if err := tx.Students().Save(ctx, s); err != nil {
				return wrap("student "+s.ID, err)
			}
		}
		for _, m := range snap.Missions {
			if err := tx.Missions().Save(ctx, m); err != nil {
				return wrap("mission "+m.ID, err)
			}
		}
		for _, r := range snap.Roadmaps {
			if err := tx.Roadmaps().Save(ctx, r); err != nil {
				return wrap("roadmap "+r.ID, err)
			}
		}
		for _, c := range snap.PraiseCards {
			if err := tx.PraiseCards().Save(ctx, c); err != nil {
				return wrap("praise card "+c.ID, err)
			}
		}
		for _, it := range snap.ShopItems {
			if err := tx.Shop().SaveItem(ctx, it); err != nil {
				return wrap("shop item "+it.ID, err)
			}
		}
		for _, p := range snap.Purchases {
			if err := tx.Shop().RecordPurchase(ctx, p); err != nil {
				return wrap("purchase "+p.ID, err)
			}
		}
		for _, e := range snap.Rewards {
			if err := tx.Rewards().Append(ctx, e); err != nil {
				return wrap("reward "+e.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return Counts{}, err
	}
	return snap.Counts(), nil
}

func wrap(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("backup: %s: %w", what, err)
}

// ─── Files ───────────────────────────────────────────────────────────────────

const (
	filePrefix = "backup-"
	fileSuffix = ".json"
	fileStamp  = "20060102-150405"
)

// FileName returns the backup file name for t.
func FileName(t time.Time) string {
	return filePrefix + t.UTC().Format(fileStamp) + fileSuffix
}

// WriteFile writes the snapshot as indented JSON. The file is written to a
// temporary name first and renamed into place.
func WriteFile(path string, snap *Snapshot) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("backup: create dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("backup: marshal: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("backup: write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("backup: rename: %w", err)
	}
	return nil
}

// ReadFile reads a snapshot written by WriteFile.
func ReadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("backup: read: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("backup: decode %s: %w", filepath.Base(path), err)
	}
	return &snap, nil
}

// Rotate keeps the newest keep backup files in dir and removes the rest.
// It returns the removed paths.
func Rotate(dir string, keep int) ([]string, error) {
	if keep < 1 {
		keep = 1
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("backup: list %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		names = append(names, name)
	}
	if len(names) <= keep {
		return nil, nil
	}

	// Timestamps sort lexically.
	sort.Strings(names)
	var removed []string
	for _, name := range names[:len(names)-keep] {
		p := filepath.Join(dir, name)
		if err := os.Remove(p); err != nil {
			return removed, fmt.Errorf("backup: remove %s: %w", name, err)
		}
		removed = append(removed, p)
	}
	return removed, nil
}
