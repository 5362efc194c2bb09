// Package eventhandler содержит обработчики доменных событий.
// Обработчики - "реактивная" часть системы: они вызываются после того, как
// команда зафиксировала изменения, и поддерживают кэши и журналы.
// Ошибка обработчика никогда не откатывает команду.
package eventhandler

import (
	"context"
	"time"

	"github.com/classquest/classroom-hub/internal/domain/leaderboard"
	"github.com/classquest/classroom-hub/internal/domain/shared"

	"go.uber.org/zap"
)

// BoardCache - кэш рейтингов классов. Реализация: redis.LeaderboardCache.
type BoardCache interface {
	Enabled() bool
	Upsert(ctx context.Context, classID string, entry leaderboard.Entry) error
	Remove(ctx context.Context, classID, studentID string) error
	Invalidate(ctx context.Context, classID string) error
}

// DefaultCacheTimeout ограничивает одно обращение к кэшу из обработчика.
const DefaultCacheTimeout = 2 * time.Second

// ═══════════════════════════════════════════════════════════════════════════
// ON REWARD GRANTED HANDLER
// Обновляет строку ученика в рейтинге класса. Событие несёт всё нужное для
// строки, поэтому хранилище не читается.
// ═══════════════════════════════════════════════════════════════════════════

// OnRewardGrantedHandler обрабатывает reward.granted.
type OnRewardGrantedHandler struct {
	cache   BoardCache
	logger  *zap.Logger
	timeout time.Duration
}

// NewOnRewardGrantedHandler создаёт обработчик.
func NewOnRewardGrantedHandler(cache BoardCache, logger *zap.Logger) *OnRewardGrantedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OnRewardGrantedHandler{
		cache:   cache,
		logger:  logger.With(zap.String("handler", "on_reward_granted")),
		timeout: DefaultCacheTimeout,
	}
}

// Handle реализует shared.EventHandler.
func (h *OnRewardGrantedHandler) Handle(event shared.Event) error {
	e, ok := event.(shared.RewardGrantedEvent)
	if !ok {
		h.logger.Warn("received unexpected event", zap.String("event_type", string(event.EventType())))
		return nil
	}
	if h.cache == nil || !h.cache.Enabled() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	entry := leaderboard.Entry{
		StudentID: e.StudentID,
		Name:      e.Name,
		Honorific: e.Honorific,
		Number:    e.Number,
		Level:     e.Level,
		Exp:       e.TotalExp,
	}
	if err := h.cache.Upsert(ctx, e.ClassID, entry); err != nil {
		return err
	}

	h.logger.Debug("leaderboard entry updated",
		zap.String("class_id", e.ClassID),
		zap.String("student_id", e.StudentID),
		zap.Int("exp", e.TotalExp),
	)
	return nil
}
