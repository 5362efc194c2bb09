package http

import (
	"github.com/classquest/classroom-hub/internal/application/command"
	"github.com/classquest/classroom-hub/internal/application/query"
	"github.com/classquest/classroom-hub/internal/domain/progression"
	"github.com/classquest/classroom-hub/internal/domain/repository"
	"github.com/classquest/classroom-hub/internal/domain/shared"
	"github.com/classquest/classroom-hub/internal/infrastructure/catalog"
	"github.com/classquest/classroom-hub/internal/interface/http/handlers"

	"go.uber.org/zap"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Commands groups the write side handlers.
type Commands struct {
	Rewards  *command.GrantRewardHandler
	Praise   *command.AwardPraiseCardHandler
	Missions *command.MissionProgressHandler
	Roadmaps *command.RoadmapProgressHandler
	Shop     *command.ShopHandler
	Roster   *command.RosterHandler
	Catalog  *command.CatalogHandler
}

// Queries groups the read side handlers.
type Queries struct {
	Leaderboard   *query.GetLeaderboardHandler
	Roster        *query.GetRosterHandler
	StudentDetail *query.GetStudentDetailHandler
	RoadmapBoard  *query.GetRoadmapBoardHandler
	Catalog       *query.CatalogReader
}

// Dependencies contains all dependencies required by HTTP handlers.
type Dependencies struct {
	// Store serves backup downloads.
	Store repository.Store

	Commands Commands
	Queries  Queries

	Logger *zap.Logger

	// HealthChecker backs /health and /ready. Nil reports healthy.
	HealthChecker handlers.HealthChecker
}

// Wiring carries what NewDependencies needs.
type Wiring struct {
	Store     repository.Store
	Publisher shared.EventPublisher

	// Cache may be nil; leaderboards are then computed from the store.
	Cache query.LeaderboardCache

	Rules    progression.Rules
	Defaults *catalog.Catalog
	Logger   *zap.Logger
}

// NewDependencies builds every command and query handler over one store.
func NewDependencies(w Wiring) Dependencies {
	if w.Logger == nil {
		w.Logger = zap.NewNop()
	}
	rewards := command.NewGrantRewardHandler(w.Store, w.Publisher, command.GrantRewardHandlerConfig{Rules: w.Rules})
	rules := rewards.Rules()

	return Dependencies{
		Store: w.Store,
		Commands: Commands{
			Rewards:  rewards,
			Praise:   command.NewAwardPraiseCardHandler(w.Store, rewards, w.Publisher),
			Missions: command.NewMissionProgressHandler(w.Store, rewards, w.Publisher),
			Roadmaps: command.NewRoadmapProgressHandler(w.Store, rewards, w.Publisher),
			Shop:     command.NewShopHandler(w.Store, w.Publisher, command.ShopHandlerConfig{}),
			Roster:   command.NewRosterHandler(w.Store, w.Publisher, nil),
			Catalog:  command.NewCatalogHandler(w.Store, w.Publisher, command.CatalogHandlerConfig{Defaults: w.Defaults}),
		},
		Queries: Queries{
			Leaderboard:   query.NewGetLeaderboardHandler(w.Store, w.Cache, rules, w.Logger.Named("leaderboard")),
			Roster:        query.NewGetRosterHandler(w.Store, rules),
			StudentDetail: query.NewGetStudentDetailHandler(w.Store, rules),
			RoadmapBoard:  query.NewGetRoadmapBoardHandler(w.Store, rules.RoadmapStepReward),
			Catalog:       query.NewCatalogReader(w.Store),
		},
		Logger: w.Logger,
	}
}
