package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/classquest/classroom-hub/internal/domain/classroom"
	"github.com/classquest/classroom-hub/internal/domain/mission"
	"github.com/classquest/classroom-hub/internal/domain/repository"
	"github.com/classquest/classroom-hub/internal/domain/reward"
	"github.com/classquest/classroom-hub/internal/domain/shared"
	"github.com/classquest/classroom-hub/internal/domain/shop"
	"github.com/classquest/classroom-hub/internal/domain/student"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "nested", "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedClass(t *testing.T, s *Store, id, name string) *classroom.Class {
	t.Helper()
	c, err := classroom.NewClass(classroom.NewClassParams{ID: id, Name: name})
	require.NoError(t, err)
	require.NoError(t, s.Classes().Save(context.Background(), c))
	return c
}

func seedStudent(t *testing.T, s *Store, id, classID, name string, number int) *student.Student {
	t.Helper()
	st, err := student.NewStudent(student.NewStudentParams{ID: id, ClassID: classID, Name: name, Number: number})
	require.NoError(t, err)
	require.NoError(t, s.Students().Save(context.Background(), st))
	return st
}

func TestOpen_CreatesFileAndIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "classquest.db")
	ctx := context.Background()

	s1, err := Open(ctx, Config{Path: path})
	require.NoError(t, err)
	seedClass(t, s1, "c-1", "5A")
	require.NoError(t, s1.Close())

	s2, err := Open(ctx, Config{Path: path})
	require.NoError(t, err)
	defer s2.Close()

	c, err := s2.Classes().GetByID(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "5A", c.Name)
	assert.Equal(t, "sqlite", s2.Driver())
	assert.NoError(t, s2.Ping(ctx))
}

func TestStudents_RoundTripAndOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedClass(t, s, "c-1", "5A")

	seedStudent(t, s, "s-2", "c-1", "Bora", 2)
	seedStudent(t, s, "s-1", "c-1", "Ari", 1)
	seedStudent(t, s, "s-3", "c-2", "Other", 1)

	got, err := s.Students().GetByID(ctx, "s-2")
	require.NoError(t, err)
	got.Exp = 250
	got.Abilities.Creativity = 4
	got.Avatar.Hat = "hat-red"
	require.NoError(t, s.Students().Save(ctx, got))

	reloaded, err := s.Students().GetByID(ctx, "s-2")
	require.NoError(t, err)
	assert.Equal(t, 250, reloaded.Exp)
	assert.Equal(t, 4, reloaded.Abilities.Creativity)
	assert.Equal(t, "hat-red", reloaded.Avatar.Hat)

	roster, err := s.Students().ListByClass(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, "s-1", roster[0].ID)
	assert.Equal(t, "s-2", roster[1].ID)

	all, err := s.Students().ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGetByID_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Students().GetByID(ctx, "missing")
	assert.True(t, shared.IsNotFound(err))

	_, err = s.Missions().GetByID(ctx, "missing")
	assert.ErrorIs(t, err, mission.ErrMissionNotFound)

	err = s.Roadmaps().Delete(ctx, "missing")
	assert.True(t, shared.IsNotFound(err))
}

func TestClassDelete_Cascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedClass(t, s, "c-1", "5A")
	seedClass(t, s, "c-2", "5B")
	seedStudent(t, s, "s-1", "c-1", "Ari", 1)
	seedStudent(t, s, "s-2", "c-2", "Bora", 1)

	m, err := mission.NewMission(mission.NewMissionParams{ID: "m-1", ClassID: "c-1", Name: "Read a book"})
	require.NoError(t, err)
	require.NoError(t, s.Missions().Save(ctx, m))

	require.NoError(t, s.Classes().Delete(ctx, "c-1"))

	_, err = s.Classes().GetByID(ctx, "c-1")
	assert.True(t, shared.IsNotFound(err))

	left, err := s.Students().ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "s-2", left[0].ID)

	missions, err := s.Missions().ListByClass(ctx, "c-1")
	require.NoError(t, err)
	assert.Empty(t, missions)

	assert.True(t, shared.IsNotFound(s.Classes().Delete(ctx, "c-1")))
}

func TestStudentDelete_RemovesHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedStudent(t, s, "s-1", "c-1", "Ari", 1)

	require.NoError(t, s.Rewards().Append(ctx, &reward.Entry{
		ID: "r-1", ClassID: "c-1", StudentID: "s-1", Source: reward.SourceManual, Exp: 10, CreatedAt: time.Now(),
	}))
	require.NoError(t, s.Shop().RecordPurchase(ctx, &shop.Purchase{
		ID: "p-1", ClassID: "c-1", StudentID: "s-1", ItemID: "i-1", Price: 5, PurchasedAt: time.Now(),
	}))

	require.NoError(t, s.Students().Delete(ctx, "s-1"))

	entries, err := s.Rewards().ListByStudent(ctx, "s-1", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	purchases, err := s.Shop().ListPurchasesByStudent(ctx, "s-1")
	require.NoError(t, err)
	assert.Empty(t, purchases)
}

func TestRewards_AppendIsIdempotentAndNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"r-1", "r-2", "r-3"} {
		require.NoError(t, s.Rewards().Append(ctx, &reward.Entry{
			ID: id, ClassID: "c-1", StudentID: "s-1", Source: reward.SourceCard, Exp: 10 * (i + 1),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.Rewards().Append(ctx, &reward.Entry{
		ID: "r-1", ClassID: "c-1", StudentID: "s-1", Source: reward.SourceCard, Exp: 999, CreatedAt: base,
	}))

	entries, err := s.Rewards().ListByStudent(ctx, "s-1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "r-3", entries[0].ID)
	assert.Equal(t, "r-2", entries[1].ID)

	all, err := s.Rewards().ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 10, all[0].Exp)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		c, err := classroom.NewClass(classroom.NewClassParams{ID: "c-1", Name: "5A"})
		require.NoError(t, err)
		require.NoError(t, tx.Classes().Save(ctx, c))

		// nested calls join the outer transaction
		return tx.WithinTx(ctx, func(ctx context.Context, inner repository.Store) error {
			_, err := inner.Classes().GetByID(ctx, "c-1")
			require.NoError(t, err)
			return boom
		})
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Classes().GetByID(ctx, "c-1")
	assert.True(t, shared.IsNotFound(err))
}

func TestWithinTx_Commits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		c, err := classroom.NewClass(classroom.NewClassParams{ID: "c-1", Name: "5A"})
		if err != nil {
			return err
		}
		return tx.Classes().Save(ctx, c)
	})
	require.NoError(t, err)

	classes, err := s.Classes().List(ctx)
	require.NoError(t, err)
	assert.Len(t, classes, 1)
}

func TestShopItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	it, err := shop.NewItem(shop.NewItemParams{
		ID: "i-1", ClassID: "c-1", Name: "Red hat", Price: 30, Slot: student.SlotHat, Stock: 2,
	})
	require.NoError(t, err)
	require.NoError(t, s.Shop().SaveItem(ctx, it))

	require.NoError(t, it.Reserve())
	require.NoError(t, s.Shop().SaveItem(ctx, it))

	got, err := s.Shop().GetItem(ctx, "i-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Stock)
	assert.Equal(t, student.SlotHat, got.Slot)

	items, err := s.Shop().ListItems(ctx, "c-1")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	require.NoError(t, s.Shop().DeleteItem(ctx, "i-1"))
	_, err = s.Shop().GetItem(ctx, "i-1")
	assert.ErrorIs(t, err, shop.ErrItemNotFound)
}
