// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/classquest/classroom-hub/internal/domain/leaderboard"
	"github.com/classquest/classroom-hub/internal/domain/progression"
	"github.com/classquest/classroom-hub/internal/domain/repository"

	"go.uber.org/zap"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Рейтинг класса по опыту. Сначала читается кэш Redis; при промахе рейтинг
// считается по хранилищу и кэш прогревается.
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardSource - откуда взят рейтинг.
type LeaderboardSource string

const (
	// SourceCache - рейтинг прочитан из Redis.
	SourceCache LeaderboardSource = "cache"

	// SourceStore - рейтинг посчитан по хранилищу.
	SourceStore LeaderboardSource = "store"
)

// LeaderboardCache - кэш рейтингов. Реализация: redis.LeaderboardCache.
type LeaderboardCache interface {
	Enabled() bool
	Top(ctx context.Context, classID string, n int) ([]leaderboard.Entry, error)
	Replace(ctx context.Context, classID string, entries []leaderboard.Entry) error
}

// GetLeaderboardQuery содержит параметры запроса рейтинга.
type GetLeaderboardQuery struct {
	ClassID string

	// Limit - количество записей (0 = все, максимум 500).
	Limit int
}

// Validate проверяет корректность параметров запроса.
func (q *GetLeaderboardQuery) Validate() error {
	if q.ClassID == "" {
		return errors.New("class_id is required")
	}
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit > 500 {
		q.Limit = 500
	}
	return nil
}

// GetLeaderboardResult содержит результат запроса рейтинга.
type GetLeaderboardResult struct {
	ClassID string              `json:"class_id"`
	Entries []leaderboard.Entry `json:"entries"`

	// TotalCount - количество учеников в классе.
	TotalCount int `json:"total_count"`

	Source      LeaderboardSource `json:"source"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// GetLeaderboardHandler обрабатывает запрос рейтинга.
type GetLeaderboardHandler struct {
	store  repository.Store
	cache  LeaderboardCache
	rules  progression.Rules
	logger *zap.Logger
}

// NewGetLeaderboardHandler создаёт обработчик. cache может быть nil.
func NewGetLeaderboardHandler(
	store repository.Store,
	cache LeaderboardCache,
	rules progression.Rules,
	logger *zap.Logger,
) *GetLeaderboardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GetLeaderboardHandler{store: store, cache: cache, rules: rules, logger: logger}
}

// Handle выполняет запрос.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	if h.cacheEnabled() {
		entries, err := h.cache.Top(ctx, q.ClassID, 0)
		if err == nil {
			return h.result(q, entries, SourceCache), nil
		}
		h.logger.Debug("leaderboard cache miss", zap.String("class_id", q.ClassID), zap.Error(err))
	}

	if _, err := h.store.Classes().GetByID(ctx, q.ClassID); err != nil {
		return nil, err
	}
	students, err := h.store.Students().ListByClass(ctx, q.ClassID)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	entries := leaderboard.Build(students, h.rules)

	if h.cacheEnabled() {
		// Прогрев кэша не должен ломать чтение.
		if err := h.cache.Replace(ctx, q.ClassID, entries); err != nil {
			h.logger.Warn("failed to warm leaderboard cache", zap.String("class_id", q.ClassID), zap.Error(err))
		}
	}
	return h.result(q, entries, SourceStore), nil
}

func (h *GetLeaderboardHandler) cacheEnabled() bool {
	return h.cache != nil && h.cache.Enabled()
}

func (h *GetLeaderboardHandler) result(q GetLeaderboardQuery, entries []leaderboard.Entry, src LeaderboardSource) *GetLeaderboardResult {
	return &GetLeaderboardResult{
		ClassID:     q.ClassID,
		Entries:     leaderboard.Top(entries, q.Limit),
		TotalCount:  len(entries),
		Source:      src,
		GeneratedAt: time.Now().UTC(),
	}
}
