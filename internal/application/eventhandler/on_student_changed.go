package eventhandler

import (
	"context"
	"time"

	"github.com/classquest/classroom-hub/internal/domain/leaderboard"
	"github.com/classquest/classroom-hub/internal/domain/progression"
	"github.com/classquest/classroom-hub/internal/domain/shared"
	"github.com/classquest/classroom-hub/internal/domain/student"

	"go.uber.org/zap"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON STUDENT CHANGED HANDLER
// Держит рейтинг в согласии со списком класса: удалённые ученики убираются,
// переименованные перечитываются, удалённый класс сбрасывается целиком.
// ═══════════════════════════════════════════════════════════════════════════

// OnStudentChangedHandler обрабатывает student.updated, student.deleted и class.deleted.
type OnStudentChangedHandler struct {
	students student.Repository
	cache    BoardCache
	rules    progression.Rules
	logger   *zap.Logger
	timeout  time.Duration
}

// NewOnStudentChangedHandler создаёт обработчик.
func NewOnStudentChangedHandler(
	students student.Repository,
	cache BoardCache,
	rules progression.Rules,
	logger *zap.Logger,
) *OnStudentChangedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OnStudentChangedHandler{
		students: students,
		cache:    cache,
		rules:    rules,
		logger:   logger.With(zap.String("handler", "on_student_changed")),
		timeout:  DefaultCacheTimeout,
	}
}

// Handle реализует shared.EventHandler.
func (h *OnStudentChangedHandler) Handle(event shared.Event) error {
	if h.cache == nil || !h.cache.Enabled() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	switch e := event.(type) {
	case shared.ClassDeletedEvent:
		h.logger.Info("class deleted, dropping leaderboard", zap.String("class_id", e.ClassID))
		return h.cache.Invalidate(ctx, e.ClassID)

	case shared.StudentChangedEvent:
		if e.EventType() == shared.EventStudentDeleted {
			return h.cache.Remove(ctx, e.ClassID, e.StudentID)
		}

		s, err := h.students.GetByID(ctx, e.StudentID)
		if err != nil {
			if shared.IsNotFound(err) {
				return h.cache.Remove(ctx, e.ClassID, e.StudentID)
			}
			return err
		}
		return h.cache.Upsert(ctx, s.ClassID, leaderboard.EntryFor(s, h.rules))

	default:
		h.logger.Warn("received unexpected event", zap.String("event_type", string(event.EventType())))
		return nil
	}
}
