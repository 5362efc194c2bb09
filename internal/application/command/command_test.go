package command

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/classquest/classroom-hub/internal/domain/classroom"
	"github.com/classquest/classroom-hub/internal/domain/mission"
	"github.com/classquest/classroom-hub/internal/domain/progression"
	"github.com/classquest/classroom-hub/internal/domain/reward"
	"github.com/classquest/classroom-hub/internal/domain/roadmap"
	"github.com/classquest/classroom-hub/internal/domain/shared"
	"github.com/classquest/classroom-hub/internal/domain/shop"
	"github.com/classquest/classroom-hub/internal/domain/student"
	"github.com/classquest/classroom-hub/internal/infrastructure/backup"
	"github.com/classquest/classroom-hub/internal/infrastructure/persistence/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct{ events []shared.Event }

func (c *capturePublisher) Publish(e shared.Event) error {
	c.events = append(c.events, e)
	return nil
}

func (c *capturePublisher) types() []shared.EventType {
	out := make([]shared.EventType, len(c.events))
	for i, e := range c.events {
		out[i] = e.EventType()
	}
	return out
}

type testEnv struct {
	store   *sqlite.Store
	pub     *capturePublisher
	rewards *GrantRewardHandler
	newID   func() string
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, sqlite.Config{Path: filepath.Join(t.TempDir(), "db.sqlite")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	n := 0
	newID := func() string {
		n++
		return fmt.Sprintf("id-%03d", n)
	}

	pub := &capturePublisher{}
	env := &testEnv{
		store: store,
		pub:   pub,
		newID: newID,
		rewards: NewGrantRewardHandler(store, pub, GrantRewardHandlerConfig{
			Rules: progression.DefaultRules(),
			NewID: newID,
		}),
	}

	for _, cid := range []string{"c1", "c2"} {
		c, err := classroom.NewClass(classroom.NewClassParams{ID: cid, Name: "Class " + cid})
		require.NoError(t, err)
		require.NoError(t, store.Classes().Save(ctx, c))
	}
	for i, sid := range []string{"ann", "bob"} {
		env.addStudent(t, sid, "c1", i+1)
	}
	env.addStudent(t, "eve", "c2", 1)
	return env
}

func (e *testEnv) addStudent(t *testing.T, id, classID string, number int) *student.Student {
	t.Helper()
	s, err := student.NewStudent(student.NewStudentParams{ID: id, ClassID: classID, Name: strings.ToUpper(id[:1]) + id[1:], Number: number})
	require.NoError(t, err)
	require.NoError(t, e.store.Students().Save(context.Background(), s))
	return s
}

func (e *testEnv) student(t *testing.T, id string) *student.Student {
	t.Helper()
	s, err := e.store.Students().GetByID(context.Background(), id)
	require.NoError(t, err)
	return s
}

// ─── GrantReward ─────────────────────────────────────────────────────────────

func TestGrantReward_LevelUpAndHistory(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	res, err := env.rewards.Handle(ctx, GrantRewardCommand{
		StudentID: "ann",
		Source:    reward.SourceManual,
		Note:      "helped a friend",
		Grant:     progression.Grant{Exp: 150, Gold: 3, Abilities: progression.FlagsOf(progression.AbilityHealth)},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Outcome.LevelBefore)
	assert.Equal(t, 2, res.Outcome.LevelAfter)

	ann := env.student(t, "ann")
	assert.Equal(t, 150, ann.Exp)
	assert.Equal(t, 2, ann.Level)
	assert.Equal(t, 53, ann.Points, "grant gold plus one level of gold")
	assert.Equal(t, 1, ann.Abilities.Health)

	history, err := env.store.Rewards().ListByStudent(ctx, "ann", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, reward.SourceManual, history[0].Source)
	assert.Equal(t, 53, history[0].Gold)
	assert.Equal(t, "helped a friend", history[0].Note)

	assert.Equal(t, []shared.EventType{shared.EventRewardGranted, shared.EventLevelUp}, env.pub.types())
}

func TestGrantRewardCommand_Validate(t *testing.T) {
	tests := []struct {
		name string
		cmd  GrantRewardCommand
	}{
		{"missing student", GrantRewardCommand{Source: reward.SourceManual, Grant: progression.Grant{Exp: 1}}},
		{"unknown source", GrantRewardCommand{StudentID: "a", Source: "gift", Grant: progression.Grant{Exp: 1}}},
		{"purchase source", GrantRewardCommand{StudentID: "a", Source: reward.SourcePurchase, Grant: progression.Grant{Exp: 1}}},
		{"negative exp", GrantRewardCommand{StudentID: "a", Source: reward.SourceManual, Grant: progression.Grant{Exp: -1}}},
		{"empty manual", GrantRewardCommand{StudentID: "a", Source: reward.SourceManual}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cmd.Validate())
		})
	}
}

func TestGrantReward_UnknownStudent(t *testing.T) {
	env := newEnv(t)
	_, err := env.rewards.Handle(context.Background(), GrantRewardCommand{
		StudentID: "ghost", Source: reward.SourceManual, Grant: progression.Grant{Exp: 5},
	})
	assert.True(t, shared.IsNotFound(err))
	assert.Empty(t, env.pub.events)
}

// ─── Praise cards ────────────────────────────────────────────────────────────

func (e *testEnv) catalog() *CatalogHandler {
	return NewCatalogHandler(e.store, e.pub, CatalogHandlerConfig{NewID: e.newID})
}

func TestAwardPraiseCard(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	card, err := env.catalog().CreateCard(ctx, CardCommand{
		ClassID: "c1", Name: "Artist", Abilities: progression.FlagsOf(progression.AbilityCreativity),
	})
	require.NoError(t, err)

	h := NewAwardPraiseCardHandler(env.store, env.rewards, env.pub)
	res, err := h.Handle(ctx, AwardPraiseCardCommand{CardID: card.ID, StudentIDs: []string{"ann", "bob", "ann"}})
	require.NoError(t, err)
	require.Len(t, res.Awards, 2)

	for _, id := range []string{"ann", "bob"} {
		s := env.student(t, id)
		assert.Equal(t, 10, s.Exp, "card without exp uses the rules default")
		assert.Equal(t, 5, s.Points)
		assert.Equal(t, 1, s.Abilities.Creativity)
	}
}

func TestAwardPraiseCard_WrongClassIsAtomic(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	card, err := env.catalog().CreateCard(ctx, CardCommand{ClassID: "c1", Name: "Kind", ExpReward: 20})
	require.NoError(t, err)

	h := NewAwardPraiseCardHandler(env.store, env.rewards, env.pub)
	_, err = h.Handle(ctx, AwardPraiseCardCommand{CardID: card.ID, StudentIDs: []string{"ann", "eve"}})
	require.ErrorIs(t, err, ErrWrongClass)

	assert.Equal(t, 0, env.student(t, "ann").Exp, "nothing is written when one student fails")
	assert.Empty(t, env.pub.events)
}

// ─── Missions ────────────────────────────────────────────────────────────────

func TestMissionProgress(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	m, err := env.catalog().CreateMission(ctx, MissionCommand{ClassID: "c1", Name: "Clean desk", ExpReward: 40, GoldReward: 2})
	require.NoError(t, err)
	h := NewMissionProgressHandler(env.store, env.rewards, env.pub)

	res, err := h.Achieve(ctx, AchieveMissionCommand{MissionID: m.ID, StudentIDs: []string{"ann"}})
	require.NoError(t, err)
	require.Len(t, res.Awards, 1)
	assert.Equal(t, 40, env.student(t, "ann").Exp)

	_, err = h.Achieve(ctx, AchieveMissionCommand{MissionID: m.ID, StudentIDs: []string{"ann"}})
	require.ErrorIs(t, err, mission.ErrAlreadyAchieved)

	res, err = h.Achieve(ctx, AchieveMissionCommand{MissionID: m.ID, StudentIDs: []string{"ann", "bob"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"ann"}, res.AlreadyAchieved)
	assert.Equal(t, []string{"ann", "bob"}, res.Mission.Achievers)

	got, err := h.Revoke(ctx, RevokeMissionCommand{MissionID: m.ID, StudentID: "ann"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, got.Achievers)
	assert.Equal(t, 40, env.student(t, "ann").Exp, "revoking keeps the reward")

	_, err = h.Revoke(ctx, RevokeMissionCommand{MissionID: m.ID, StudentID: "ann"})
	assert.ErrorIs(t, err, ErrNotAchieved)
}

// ─── Roadmaps ────────────────────────────────────────────────────────────────

func TestRoadmapProgress(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	rm, err := env.catalog().CreateRoadmap(ctx, RoadmapCommand{
		ClassID: "c1", Name: "Reader", Goals: []string{"one book", "two books"}, RewardTitle: "Bookworm",
	})
	require.NoError(t, err)
	h := NewRoadmapProgressHandler(env.store, env.rewards, env.pub)

	_, err = h.Complete(ctx, CompleteRoadmapStepCommand{RoadmapID: rm.ID, StepIndex: 1, StudentIDs: []string{"ann"}})
	require.ErrorIs(t, err, roadmap.ErrPreviousStepIncomplete)

	first, err := h.Complete(ctx, CompleteRoadmapStepCommand{RoadmapID: rm.ID, StepIndex: 0, StudentIDs: []string{"ann", "bob"}})
	require.NoError(t, err)
	assert.Equal(t, 20, env.student(t, "ann").Exp)
	assert.Empty(t, first.Finished)

	env.pub.events = nil
	res, err := h.Complete(ctx, CompleteRoadmapStepCommand{RoadmapID: rm.ID, StepIndex: 1, StudentIDs: []string{"ann"}})
	require.NoError(t, err)
	require.Len(t, res.Awards, 1)
	assert.Equal(t, []string{"ann"}, res.Finished)

	ann := env.student(t, "ann")
	assert.Equal(t, 60, ann.Exp, "second step grants twice the base")
	assert.Equal(t, "Bookworm", ann.Honorific)
	assert.Equal(t, []shared.EventType{shared.EventRewardGranted, shared.EventTitleAwarded}, env.pub.types())

	res, err = h.Complete(ctx, CompleteRoadmapStepCommand{RoadmapID: rm.ID, StepIndex: 0, StudentIDs: []string{"ann"}})
	require.NoError(t, err)
	assert.Empty(t, res.Awards)
	assert.Equal(t, []string{"ann"}, res.AlreadyCompleted)

	undo, err := h.Uncomplete(ctx, UncompleteRoadmapStepCommand{RoadmapID: rm.ID, StepIndex: 0, StudentID: "ann"})
	require.NoError(t, err)
	assert.Equal(t, 2, undo.Removed)

	stored, err := env.store.Roadmaps().GetByID(ctx, rm.ID)
	require.NoError(t, err)
	assert.Equal(t, -1, stored.CurrentStep("ann"))
	assert.Equal(t, 0, stored.CurrentStep("bob"))
}

// ─── Shop ────────────────────────────────────────────────────────────────────

func TestShop_PurchaseAndEquip(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	one := 1
	hat, err := env.catalog().CreateItem(ctx, ItemCommand{
		ClassID: "c1", Name: "Wizard hat", Price: 30, Slot: student.SlotHat, ImageRef: "hat-wizard", Stock: &one,
	})
	require.NoError(t, err)
	h := NewShopHandler(env.store, env.pub, ShopHandlerConfig{NewID: env.newID})

	_, err = h.Purchase(ctx, PurchaseItemCommand{ItemID: hat.ID, StudentID: "ann"})
	require.ErrorIs(t, err, student.ErrInsufficientPoints)

	ann := env.student(t, "ann")
	ann.Points = 100
	require.NoError(t, env.store.Students().Save(ctx, ann))

	res, err := h.Purchase(ctx, PurchaseItemCommand{ItemID: hat.ID, StudentID: "ann", Equip: true})
	require.NoError(t, err)
	assert.True(t, res.Equipped)

	ann = env.student(t, "ann")
	assert.Equal(t, 70, ann.Points)
	assert.Equal(t, "hat-wizard", ann.Avatar.Hat)

	item, err := env.store.Shop().GetItem(ctx, hat.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, item.Stock)

	history, err := env.store.Rewards().ListByStudent(ctx, "ann", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, reward.SourcePurchase, history[0].Source)
	assert.Equal(t, -30, history[0].Gold)

	_, err = h.Purchase(ctx, PurchaseItemCommand{ItemID: hat.ID, StudentID: "ann"})
	require.ErrorIs(t, err, shop.ErrOutOfStock)

	_, err = h.Equip(ctx, EquipAvatarCommand{StudentID: "ann", Slot: student.SlotHat})
	require.NoError(t, err)
	assert.Empty(t, env.student(t, "ann").Avatar.Hat)

	_, err = h.Equip(ctx, EquipAvatarCommand{StudentID: "ann", Slot: student.SlotHat, ItemID: hat.ID})
	require.NoError(t, err)
	assert.Equal(t, "hat-wizard", env.student(t, "ann").Avatar.Hat)

	_, err = h.Equip(ctx, EquipAvatarCommand{StudentID: "bob", Slot: student.SlotHat, ItemID: hat.ID})
	assert.ErrorIs(t, err, ErrItemNotOwned)

	_, err = h.Equip(ctx, EquipAvatarCommand{StudentID: "ann", Slot: student.SlotBody, ItemID: hat.ID})
	assert.ErrorIs(t, err, ErrNotAvatarItem)
}

// ─── Roster ──────────────────────────────────────────────────────────────────

func TestRoster_CreateUpdateDelete(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	h := NewRosterHandler(env.store, env.pub, env.newID)

	cy, err := h.Create(ctx, CreateStudentCommand{ClassID: "c1", Name: "  Cy "})
	require.NoError(t, err)
	assert.Equal(t, 3, cy.Number, "next free roster number")
	assert.Equal(t, "Cy", cy.Name)

	_, err = h.Create(ctx, CreateStudentCommand{ClassID: "nope", Name: "Dan"})
	assert.True(t, shared.IsNotFound(err))

	title := "Captain"
	updated, err := h.Update(ctx, UpdateStudentCommand{StudentID: cy.ID, Honorific: &title})
	require.NoError(t, err)
	assert.Equal(t, "Captain Cy", updated.DisplayName())

	m, err := env.catalog().CreateMission(ctx, MissionCommand{ClassID: "c1", Name: "Water plants"})
	require.NoError(t, err)
	_, err = NewMissionProgressHandler(env.store, env.rewards, env.pub).
		Achieve(ctx, AchieveMissionCommand{MissionID: m.ID, StudentIDs: []string{cy.ID, "ann"}})
	require.NoError(t, err)

	require.NoError(t, h.Delete(ctx, DeleteStudentCommand{StudentID: cy.ID}))

	_, err = env.store.Students().GetByID(ctx, cy.ID)
	assert.True(t, shared.IsNotFound(err))
	stored, err := env.store.Missions().GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ann"}, stored.Achievers)

	last := env.pub.events[len(env.pub.events)-1]
	assert.Equal(t, shared.EventStudentDeleted, last.EventType())
}

func TestRoster_Dedupe(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	dup := env.addStudent(t, "ann2", "c1", 1)
	dup.Name = "ANN"
	dup.Exp = 500
	require.NoError(t, env.store.Students().Save(ctx, dup))

	m, err := env.catalog().CreateMission(ctx, MissionCommand{ClassID: "c1", Name: "Tidy"})
	require.NoError(t, err)
	_, err = NewMissionProgressHandler(env.store, env.rewards, env.pub).
		Achieve(ctx, AchieveMissionCommand{MissionID: m.ID, StudentIDs: []string{"ann"}})
	require.NoError(t, err)

	res, err := NewRosterHandler(env.store, env.pub, env.newID).Dedupe(ctx, DedupeRosterCommand{ClassID: "c1"})
	require.NoError(t, err)
	require.Len(t, res.Merges, 1)
	assert.Equal(t, "ann2", res.Merges[0].KeptID)

	roster, err := env.store.Students().ListByClass(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, roster, 2)

	stored, err := env.store.Missions().GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"ann2"}, stored.Achievers, "marks move to the kept record")
}

func TestRoster_DedupeKeepsHistoryAndPurchases(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	_, err := env.rewards.Handle(ctx, GrantRewardCommand{
		StudentID: "ann", Source: reward.SourceManual, Grant: progression.Grant{Exp: 40, Gold: 60},
	})
	require.NoError(t, err)

	hat, err := env.catalog().CreateItem(ctx, ItemCommand{
		ClassID: "c1", Name: "Wizard hat", Price: 30, Slot: student.SlotHat, ImageRef: "hat-wizard",
	})
	require.NoError(t, err)
	shopHandler := NewShopHandler(env.store, env.pub, ShopHandlerConfig{NewID: env.newID})
	_, err = shopHandler.Purchase(ctx, PurchaseItemCommand{ItemID: hat.ID, StudentID: "ann"})
	require.NoError(t, err)

	dup := env.addStudent(t, "ann2", "c1", 1)
	dup.Name = "ANN"
	dup.Exp = 500
	require.NoError(t, env.store.Students().Save(ctx, dup))

	res, err := NewRosterHandler(env.store, env.pub, env.newID).Dedupe(ctx, DedupeRosterCommand{ClassID: "c1"})
	require.NoError(t, err)
	require.Len(t, res.Merges, 1)
	require.Equal(t, "ann2", res.Merges[0].KeptID)

	history, err := env.store.Rewards().ListByStudent(ctx, "ann2", 0)
	require.NoError(t, err)
	require.Len(t, history, 2, "grant and purchase entries move to the kept record")
	for _, e := range history {
		assert.Equal(t, "ann2", e.StudentID)
	}

	classHistory, err := env.store.Rewards().ListByClass(ctx, "c1", 0)
	require.NoError(t, err)
	assert.Len(t, classHistory, 2)

	purchases, err := env.store.Shop().ListPurchasesByStudent(ctx, "ann2")
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.Equal(t, hat.ID, purchases[0].ItemID)

	_, err = shopHandler.Equip(ctx, EquipAvatarCommand{StudentID: "ann2", Slot: student.SlotHat, ItemID: hat.ID})
	assert.NoError(t, err, "the kept record owns the merged record's items")
}

// ─── Catalog ─────────────────────────────────────────────────────────────────

func TestCatalog_CreateClassWithSeed(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	res, err := env.catalog().CreateClass(ctx, ClassCommand{Name: "6-B", Seed: true})
	require.NoError(t, err)
	require.NotNil(t, res.Seed)

	cards, err := env.store.PraiseCards().ListByClass(ctx, res.Class.ID)
	require.NoError(t, err)
	assert.Len(t, cards, len(res.Seed.Cards))
	assert.NotEmpty(t, cards)

	items, err := env.store.Shop().ListItems(ctx, res.Class.ID)
	require.NoError(t, err)
	assert.Len(t, items, len(res.Seed.Items))

	plain, err := env.catalog().CreateClass(ctx, ClassCommand{Name: "6-C"})
	require.NoError(t, err)
	assert.Nil(t, plain.Seed)

	_, err = env.catalog().CreateClass(ctx, ClassCommand{Name: "  "})
	assert.True(t, shared.IsValidation(err))
}

func TestCatalog_UpdateRoadmapKeepsMarks(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	cat := env.catalog()

	rm, err := cat.CreateRoadmap(ctx, RoadmapCommand{ClassID: "c1", Name: "Run", Goals: []string{"1 km", "3 km"}})
	require.NoError(t, err)
	_, err = NewRoadmapProgressHandler(env.store, env.rewards, env.pub).
		Complete(ctx, CompleteRoadmapStepCommand{RoadmapID: rm.ID, StepIndex: 0, StudentIDs: []string{"bob"}})
	require.NoError(t, err)

	updated, err := cat.UpdateRoadmap(ctx, rm.ID, RoadmapCommand{
		Name: "Running", Goals: []string{"2 km", "5 km", "10 km"}, RewardTitle: "Runner",
	})
	require.NoError(t, err)
	require.Len(t, updated.Steps, 3)
	assert.Equal(t, "2 km", updated.Steps[0].Goal)
	assert.Equal(t, 0, updated.CurrentStep("bob"))

	require.NoError(t, cat.DeleteClass(ctx, "c1"))
	_, err = env.store.Roadmaps().GetByID(ctx, rm.ID)
	assert.True(t, shared.IsNotFound(err))
}

// ─── Data transfer ───────────────────────────────────────────────────────────

func TestImportLegacy_DryRun(t *testing.T) {
	env := newEnv(t)
	boards := &recordingBoards{}
	h := NewImportLegacyHandler(env.store, progression.DefaultRules(), boards, nil)

	res, err := h.Handle(context.Background(), ImportLegacyCommand{
		Dump:   strings.NewReader(`{"students_9": [{"name": "Zoe", "exp": 120}]}`),
		DryRun: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Report.Students)
	assert.Equal(t, 1, res.Counts.Students)

	_, err = env.store.Classes().GetByID(context.Background(), "9")
	assert.True(t, shared.IsNotFound(err), "dry run writes nothing")
	assert.Empty(t, boards.classIDs, "dry run leaves cached boards alone")

	_, err = h.Handle(context.Background(), ImportLegacyCommand{})
	assert.Error(t, err)
}

type recordingBoards struct{ classIDs []string }

func (r *recordingBoards) Invalidate(_ context.Context, classID string) error {
	r.classIDs = append(r.classIDs, classID)
	return nil
}

func TestImportLegacy_InvalidatesImportedBoards(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	boards := &recordingBoards{}
	h := NewImportLegacyHandler(env.store, progression.DefaultRules(), boards, nil)

	res, err := h.Handle(ctx, ImportLegacyCommand{
		Dump: strings.NewReader(`{"students_9": [{"name": "Zoe", "exp": 120}], "students_8": [{"name": "Yan"}]}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Counts.Students)
	assert.Equal(t, []string{"8", "9"}, boards.classIDs)

	roster, err := env.store.Students().ListByClass(ctx, "9")
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, "Zoe", roster[0].Name)
}

func TestImportBackup_InvalidatesRestoredBoards(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	snap, err := backup.Export(ctx, env.store)
	require.NoError(t, err)

	boards := &recordingBoards{}
	counts, err := NewImportBackupHandler(env.store, boards, nil).Handle(ctx, ImportBackupCommand{Snapshot: snap})
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Students)
	assert.Equal(t, []string{"c1", "c2"}, boards.classIDs)

	_, err = NewImportBackupHandler(env.store, boards, nil).Handle(ctx, ImportBackupCommand{})
	assert.Error(t, err)
}
