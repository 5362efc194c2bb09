package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/classquest/classroom-hub/internal/domain/classroom"
	"github.com/classquest/classroom-hub/internal/domain/mission"
	"github.com/classquest/classroom-hub/internal/domain/praise"
	"github.com/classquest/classroom-hub/internal/domain/repository"
	"github.com/classquest/classroom-hub/internal/domain/reward"
	"github.com/classquest/classroom-hub/internal/domain/roadmap"
	"github.com/classquest/classroom-hub/internal/domain/shop"
	"github.com/classquest/classroom-hub/internal/domain/student"
)

// ─── Classes ─────────────────────────────────────────────────────────────────

type classRepo struct{ s *Store }

func (r *classRepo) col() collection[classroom.Class] {
	return collection[classroom.Class]{
		q:     r.s.q,
		table: "classes",
		meta: func(c *classroom.Class) meta {
			return meta{ID: c.ID, ClassID: c.ID, CreatedAt: c.CreatedAt}
		},
		notFound: classroom.ErrClassNotFound,
	}
}

func (r *classRepo) Save(ctx context.Context, c *classroom.Class) error {
	return r.col().put(ctx, c)
}

func (r *classRepo) GetByID(ctx context.Context, id string) (*classroom.Class, error) {
	return r.col().get(ctx, id)
}

func (r *classRepo) List(ctx context.Context) ([]*classroom.Class, error) {
	classes, err := r.col().list(ctx, "", "", 0)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(classes, func(i, j int) bool {
		return strings.ToLower(classes[i].Name) < strings.ToLower(classes[j].Name)
	})
	return classes, nil
}

// Delete removes the class and every row that belongs to it.
func (r *classRepo) Delete(ctx context.Context, id string) error {
	return r.s.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		q := tx.(*Store).q
		txr := &classRepo{s: tx.(*Store)}
		if _, err := txr.col().get(ctx, id); err != nil {
			return err
		}
		for _, table := range documentTables {
			if _, err := q.ExecContext(ctx, "DELETE FROM "+table+" WHERE class_id = ?", id); err != nil {
				return fmt.Errorf("sqlite: delete class %s rows: %w", table, err)
			}
		}
		return nil
	})
}

// ─── Students ────────────────────────────────────────────────────────────────

type studentRepo struct{ s *Store }

func (r *studentRepo) col() collection[student.Student] {
	return collection[student.Student]{
		q:     r.s.q,
		table: "students",
		meta: func(s *student.Student) meta {
			return meta{ID: s.ID, ClassID: s.ClassID, CreatedAt: s.CreatedAt}
		},
		notFound: student.ErrStudentNotFound,
	}
}

func (r *studentRepo) Save(ctx context.Context, s *student.Student) error {
	return r.col().put(ctx, s)
}

func (r *studentRepo) GetByID(ctx context.Context, id string) (*student.Student, error) {
	return r.col().get(ctx, id)
}

func (r *studentRepo) ListByClass(ctx context.Context, classID string) ([]*student.Student, error) {
	students, err := r.col().list(ctx, "class_id = ?", "", 0, classID)
	if err != nil {
		return nil, err
	}
	student.SortRoster(students)
	return students, nil
}

func (r *studentRepo) ListAll(ctx context.Context) ([]*student.Student, error) {
	return r.col().list(ctx, "", "class_id, created_at, id", 0)
}

// Delete removes the student with the purchase and reward history.
func (r *studentRepo) Delete(ctx context.Context, id string) error {
	return r.s.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		q := tx.(*Store).q
		txr := &studentRepo{s: tx.(*Store)}
		if err := txr.col().delete(ctx, id); err != nil {
			return err
		}
		for _, table := range []string{"purchases", "reward_log"} {
			if _, err := q.ExecContext(ctx, "DELETE FROM "+table+" WHERE owner_id = ?", id); err != nil {
				return fmt.Errorf("sqlite: delete student %s rows: %w", table, err)
			}
		}
		return nil
	})
}

// ─── Missions ────────────────────────────────────────────────────────────────

type missionRepo struct{ s *Store }

func (r *missionRepo) col() collection[mission.Mission] {
	return collection[mission.Mission]{
		q:     r.s.q,
		table: "missions",
		meta: func(m *mission.Mission) meta {
			return meta{ID: m.ID, ClassID: m.ClassID, CreatedAt: m.CreatedAt}
		},
		notFound: mission.ErrMissionNotFound,
	}
}

func (r *missionRepo) Save(ctx context.Context, m *mission.Mission) error {
	return r.col().put(ctx, m)
}

func (r *missionRepo) GetByID(ctx context.Context, id string) (*mission.Mission, error) {
	return r.col().get(ctx, id)
}

func (r *missionRepo) ListByClass(ctx context.Context, classID string) ([]*mission.Mission, error) {
	return r.col().list(ctx, "class_id = ?", "", 0, classID)
}

func (r *missionRepo) ListAll(ctx context.Context) ([]*mission.Mission, error) {
	return r.col().list(ctx, "", "", 0)
}

func (r *missionRepo) Delete(ctx context.Context, id string) error {
	return r.col().delete(ctx, id)
}

// ─── Roadmaps ────────────────────────────────────────────────────────────────

type roadmapRepo struct{ s *Store }

func (r *roadmapRepo) col() collection[roadmap.Roadmap] {
	return collection[roadmap.Roadmap]{
		q:     r.s.q,
		table: "roadmaps",
		meta: func(rm *roadmap.Roadmap) meta {
			return meta{ID: rm.ID, ClassID: rm.ClassID, CreatedAt: rm.CreatedAt}
		},
		notFound: roadmap.ErrRoadmapNotFound,
	}
}

func (r *roadmapRepo) Save(ctx context.Context, rm *roadmap.Roadmap) error {
	return r.col().put(ctx, rm)
}

func (r *roadmapRepo) GetByID(ctx context.Context, id string) (*roadmap.Roadmap, error) {
	return r.col().get(ctx, id)
}

func (r *roadmapRepo) ListByClass(ctx context.Context, classID string) ([]*roadmap.Roadmap, error) {
	return r.col().list(ctx, "class_id = ?", "", 0, classID)
}

func (r *roadmapRepo) ListAll(ctx context.Context) ([]*roadmap.Roadmap, error) {
	return r.col().list(ctx, "", "", 0)
}

func (r *roadmapRepo) Delete(ctx context.Context, id string) error {
	return r.col().delete(ctx, id)
}

// ─── Praise cards ────────────────────────────────────────────────────────────

type cardRepo struct{ s *Store }

func (r *cardRepo) col() collection[praise.Card] {
	return collection[praise.Card]{
		q:     r.s.q,
		table: "praise_cards",
		meta: func(c *praise.Card) meta {
			return meta{ID: c.ID, ClassID: c.ClassID, CreatedAt: c.CreatedAt}
		},
		notFound: praise.ErrCardNotFound,
	}
}

func (r *cardRepo) Save(ctx context.Context, c *praise.Card) error {
	return r.col().put(ctx, c)
}

func (r *cardRepo) GetByID(ctx context.Context, id string) (*praise.Card, error) {
	return r.col().get(ctx, id)
}

func (r *cardRepo) ListByClass(ctx context.Context, classID string) ([]*praise.Card, error) {
	return r.col().list(ctx, "class_id = ?", "", 0, classID)
}

func (r *cardRepo) ListAll(ctx context.Context) ([]*praise.Card, error) {
	return r.col().list(ctx, "", "", 0)
}

func (r *cardRepo) Delete(ctx context.Context, id string) error {
	return r.col().delete(ctx, id)
}

// ─── Shop ────────────────────────────────────────────────────────────────────

type shopRepo struct{ s *Store }

func (r *shopRepo) items() collection[shop.Item] {
	return collection[shop.Item]{
		q:     r.s.q,
		table: "shop_items",
		meta: func(it *shop.Item) meta {
			return meta{ID: it.ID, ClassID: it.ClassID, CreatedAt: it.CreatedAt}
		},
		notFound: shop.ErrItemNotFound,
	}
}

func (r *shopRepo) purchases() collection[shop.Purchase] {
	return collection[shop.Purchase]{
		q:     r.s.q,
		table: "purchases",
		meta: func(p *shop.Purchase) meta {
			return meta{ID: p.ID, ClassID: p.ClassID, OwnerID: p.StudentID, CreatedAt: p.PurchasedAt}
		},
		notFound: shop.ErrItemNotFound,
	}
}

func (r *shopRepo) SaveItem(ctx context.Context, it *shop.Item) error {
	return r.items().put(ctx, it)
}

func (r *shopRepo) GetItem(ctx context.Context, id string) (*shop.Item, error) {
	return r.items().get(ctx, id)
}

func (r *shopRepo) ListItems(ctx context.Context, classID string) ([]*shop.Item, error) {
	return r.items().list(ctx, "class_id = ?", "", 0, classID)
}

func (r *shopRepo) ListAllItems(ctx context.Context) ([]*shop.Item, error) {
	return r.items().list(ctx, "", "", 0)
}

func (r *shopRepo) DeleteItem(ctx context.Context, id string) error {
	return r.items().delete(ctx, id)
}

func (r *shopRepo) RecordPurchase(ctx context.Context, p *shop.Purchase) error {
	return r.purchases().insertIgnore(ctx, p)
}

func (r *shopRepo) ListPurchases(ctx context.Context, classID string) ([]*shop.Purchase, error) {
	return r.purchases().list(ctx, "class_id = ?", "created_at DESC, id", 0, classID)
}

func (r *shopRepo) ListPurchasesByStudent(ctx context.Context, studentID string) ([]*shop.Purchase, error) {
	return r.purchases().list(ctx, "owner_id = ?", "created_at DESC, id", 0, studentID)
}

func (r *shopRepo) ListAllPurchases(ctx context.Context) ([]*shop.Purchase, error) {
	return r.purchases().list(ctx, "", "", 0)
}

func (r *shopRepo) ReassignPurchases(ctx context.Context, from, to string) error {
	col := r.purchases()
	purchases, err := col.list(ctx, "owner_id = ?", "", 0, from)
	if err != nil {
		return err
	}
	for _, p := range purchases {
		p.StudentID = to
		if err := col.put(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// ─── Reward log ──────────────────────────────────────────────────────────────

type rewardRepo struct{ s *Store }

func (r *rewardRepo) col() collection[reward.Entry] {
	return collection[reward.Entry]{
		q:     r.s.q,
		table: "reward_log",
		meta: func(e *reward.Entry) meta {
			return meta{ID: e.ID, ClassID: e.ClassID, OwnerID: e.StudentID, CreatedAt: e.CreatedAt}
		},
	}
}

func (r *rewardRepo) Append(ctx context.Context, e *reward.Entry) error {
	return r.col().insertIgnore(ctx, e)
}

func (r *rewardRepo) ListByStudent(ctx context.Context, studentID string, limit int) ([]*reward.Entry, error) {
	return r.col().list(ctx, "owner_id = ?", "created_at DESC, id DESC", limit, studentID)
}

func (r *rewardRepo) ListByClass(ctx context.Context, classID string, limit int) ([]*reward.Entry, error) {
	return r.col().list(ctx, "class_id = ?", "created_at DESC, id DESC", limit, classID)
}

func (r *rewardRepo) ListAll(ctx context.Context) ([]*reward.Entry, error) {
	return r.col().list(ctx, "", "", 0)
}

func (r *rewardRepo) Reassign(ctx context.Context, from, to string) error {
	col := r.col()
	entries, err := col.list(ctx, "owner_id = ?", "", 0, from)
	if err != nil {
		return err
	}
	for _, e := range entries {
		e.StudentID = to
		if err := col.put(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
