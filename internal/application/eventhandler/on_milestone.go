package eventhandler

import (
	"github.com/classquest/classroom-hub/internal/domain/shared"

	"go.uber.org/zap"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON MILESTONE HANDLER
// Пишет в журнал повышения уровня, новые титулы и покупки.
// ═══════════════════════════════════════════════════════════════════════════

// OnMilestoneHandler обрабатывает student.level_up, student.title_awarded и
// shop.item_purchased.
type OnMilestoneHandler struct {
	logger *zap.Logger
}

// NewOnMilestoneHandler создаёт обработчик.
func NewOnMilestoneHandler(logger *zap.Logger) *OnMilestoneHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OnMilestoneHandler{logger: logger.With(zap.String("handler", "on_milestone"))}
}

// Handle реализует shared.EventHandler.
func (h *OnMilestoneHandler) Handle(event shared.Event) error {
	switch e := event.(type) {
	case shared.LevelUpEvent:
		h.logger.Info("student leveled up",
			zap.String("student_id", e.StudentID),
			zap.String("class_id", e.ClassID),
			zap.Int("old_level", e.OldLevel),
			zap.Int("new_level", e.NewLevel),
			zap.Int("gold_awarded", e.GoldAwarded),
		)
	case shared.TitleAwardedEvent:
		h.logger.Info("title awarded",
			zap.String("student_id", e.StudentID),
			zap.String("class_id", e.ClassID),
			zap.String("title", e.Title),
			zap.String("source_id", e.SourceID),
		)
	case shared.ItemPurchasedEvent:
		h.logger.Info("item purchased",
			zap.String("student_id", e.StudentID),
			zap.String("item_id", e.ItemID),
			zap.Int("price", e.Price),
		)
	}
	return nil
}
