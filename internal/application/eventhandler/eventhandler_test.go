package eventhandler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/classquest/classroom-hub/internal/domain/classroom"
	"github.com/classquest/classroom-hub/internal/domain/leaderboard"
	"github.com/classquest/classroom-hub/internal/domain/progression"
	"github.com/classquest/classroom-hub/internal/domain/shared"
	"github.com/classquest/classroom-hub/internal/domain/student"
	"github.com/classquest/classroom-hub/internal/infrastructure/messaging"
	"github.com/classquest/classroom-hub/internal/infrastructure/persistence/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type memCache struct {
	mu          sync.Mutex
	boards      map[string]map[string]leaderboard.Entry
	invalidated []string
}

func newMemCache() *memCache {
	return &memCache{boards: map[string]map[string]leaderboard.Entry{}}
}

func (m *memCache) Enabled() bool { return true }

func (m *memCache) Upsert(_ context.Context, classID string, e leaderboard.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.boards[classID] == nil {
		m.boards[classID] = map[string]leaderboard.Entry{}
	}
	m.boards[classID][e.StudentID] = e
	return nil
}

func (m *memCache) Remove(_ context.Context, classID, studentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.boards[classID], studentID)
	return nil
}

func (m *memCache) Invalidate(_ context.Context, classID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.boards, classID)
	m.invalidated = append(m.invalidated, classID)
	return nil
}

func setup(t *testing.T) (*messaging.InMemoryEventBus, *memCache, *sqlite.Store, *observer.ObservedLogs) {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, sqlite.Config{Path: filepath.Join(t.TempDir(), "db.sqlite")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	c, err := classroom.NewClass(classroom.NewClassParams{ID: "c1", Name: "5-A"})
	require.NoError(t, err)
	require.NoError(t, store.Classes().Save(ctx, c))

	core, logs := observer.New(zapcore.InfoLevel)
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{AsyncMode: false, Logger: zap.New(core)})
	t.Cleanup(func() { _ = bus.Close() })

	cache := newMemCache()
	require.NoError(t, Register(bus, store.Students(), cache, progression.DefaultRules(), zap.New(core)))
	return bus, cache, store, logs
}

func TestRewardGranted_UpdatesBoard(t *testing.T) {
	bus, cache, _, _ := setup(t)

	require.NoError(t, bus.Publish(shared.NewRewardGrantedEvent(shared.RewardGrantedEvent{
		StudentID: "ann", ClassID: "c1", Name: "Ann", Number: 1, TotalExp: 140, Level: 2, Exp: 40,
	})))

	got := cache.boards["c1"]["ann"]
	assert.Equal(t, 140, got.Exp)
	assert.Equal(t, 2, got.Level)
	assert.Equal(t, "Ann", got.Name)
}

func TestStudentChanged_UpdatesAndRemoves(t *testing.T) {
	bus, cache, store, _ := setup(t)
	ctx := context.Background()

	s, err := student.NewStudent(student.NewStudentParams{ID: "bob", ClassID: "c1", Name: "Bob", Number: 2})
	require.NoError(t, err)
	s.Exp = 320
	require.NoError(t, store.Students().Save(ctx, s))

	require.NoError(t, bus.Publish(shared.NewStudentUpdatedEvent("bob", "c1")))
	entry := cache.boards["c1"]["bob"]
	assert.Equal(t, 3, entry.Level, "level comes from the curve, not the stored value")

	require.NoError(t, bus.Publish(shared.NewStudentDeletedEvent("bob", "c1")))
	assert.NotContains(t, cache.boards["c1"], "bob")

	require.NoError(t, bus.Publish(shared.NewClassDeletedEvent("c1")))
	assert.Equal(t, []string{"c1"}, cache.invalidated)
}

func TestMilestones_AreLogged(t *testing.T) {
	bus, _, _, logs := setup(t)

	require.NoError(t, bus.Publish(shared.NewLevelUpEvent("ann", "c1", 1, 3, 100)))
	require.NoError(t, bus.Publish(shared.NewTitleAwardedEvent("ann", "c1", "Bookworm", "step-3")))

	assert.Equal(t, 1, logs.FilterMessage("student leveled up").Len())
	titled := logs.FilterMessage("title awarded").All()
	require.Len(t, titled, 1)
	assert.Equal(t, "Bookworm", titled[0].ContextMap()["title"])
}

func TestHandlers_DisabledCache(t *testing.T) {
	h := NewOnRewardGrantedHandler(nil, nil)
	assert.NoError(t, h.Handle(shared.NewRewardGrantedEvent(shared.RewardGrantedEvent{StudentID: "x", ClassID: "c"})))

	changed := NewOnStudentChangedHandler(nil, nil, progression.DefaultRules(), nil)
	assert.NoError(t, changed.Handle(shared.NewStudentDeletedEvent("x", "c")))
}
