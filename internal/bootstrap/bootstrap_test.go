package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/classquest/classroom-hub/config"
	"github.com/classquest/classroom-hub/internal/infrastructure/hostedsync"
	"github.com/classquest/classroom-hub/internal/infrastructure/persistence/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		App:     config.AppConfig{Environment: config.EnvDevelopment},
		Storage: config.StorageConfig{Driver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "quest.db")},
		Redis:   config.RedisConfig{Disabled: true},
		Log:     config.LogConfig{Level: "debug"},
	}
}

func TestOpen_LocalStore(t *testing.T) {
	cfg := localConfig(t)

	rt, err := Open(context.Background(), cfg, nil, Options{Cache: true, Hosted: true})
	require.NoError(t, err)
	defer rt.Close()

	assert.Equal(t, sqlite.DriverName, rt.Store.Driver())
	assert.Nil(t, rt.Hosted, "no database url configured")
	assert.Nil(t, rt.Boards, "redis disabled")
	assert.NoError(t, rt.Ping(context.Background()))
	assert.Equal(t, cfg.Rules.Progression(), rt.Rules())
}

func TestOpen_UnknownDriver(t *testing.T) {
	cfg := localConfig(t)
	cfg.Storage.Driver = "oracle"

	_, err := Open(context.Background(), cfg, nil, Options{})
	assert.ErrorContains(t, err, "unknown storage driver")
}

func TestOpen_UnreachableRedisDisablesCache(t *testing.T) {
	cfg := localConfig(t)
	cfg.Redis = config.RedisConfig{Host: "127.0.0.1", Port: 1}

	core, logs := observer.New(zap.WarnLevel)
	rt, err := Open(context.Background(), cfg, zap.New(core), Options{Cache: true})
	require.NoError(t, err)
	defer rt.Close()

	assert.Nil(t, rt.Boards)
	assert.Equal(t, 1, logs.FilterMessage("failed to connect to Redis, caching disabled").Len())
}

func TestRuntime_Catalog(t *testing.T) {
	cfg := localConfig(t)
	rt, err := Open(context.Background(), cfg, nil, Options{})
	require.NoError(t, err)
	defer rt.Close()

	def, err := rt.Catalog()
	require.NoError(t, err)
	assert.NotEmpty(t, def.PraiseCards)

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("praise_cards: []\nshop_items: []\nroadmaps: []\n"), 0o600))
	cfg.App.CatalogFile = path

	custom, err := rt.Catalog()
	require.NoError(t, err)
	assert.Empty(t, custom.PraiseCards)
}

func TestRuntime_SyncerWithoutTarget(t *testing.T) {
	rt, err := Open(context.Background(), localConfig(t), nil, Options{})
	require.NoError(t, err)
	defer rt.Close()

	syncer := rt.Syncer(nil)

	_, err = syncer.Run(context.Background(), hostedsync.Options{})
	assert.ErrorIs(t, err, hostedsync.ErrNoTarget)

	res, err := syncer.Run(context.Background(), hostedsync.Options{DryRun: true})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Zero(t, res.Counts.Total())
}

func TestOpenHosted_RequiresURL(t *testing.T) {
	_, _, err := OpenHosted(context.Background(), localConfig(t), false, nil)
	assert.ErrorIs(t, err, hostedsync.ErrNoTarget)
}
