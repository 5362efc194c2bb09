package eventhandler

import (
	"errors"

	"github.com/classquest/classroom-hub/internal/domain/progression"
	"github.com/classquest/classroom-hub/internal/domain/shared"
	"github.com/classquest/classroom-hub/internal/domain/student"

	"go.uber.org/zap"
)

// Register подписывает все обработчики на шину. cache может быть nil:
// тогда обработчики рейтинга ничего не делают.
func Register(
	bus shared.EventSubscriber,
	students student.Repository,
	cache BoardCache,
	rules progression.Rules,
	logger *zap.Logger,
) error {
	rewarded := NewOnRewardGrantedHandler(cache, logger)
	changed := NewOnStudentChangedHandler(students, cache, rules, logger)
	milestones := NewOnMilestoneHandler(logger)

	return errors.Join(
		bus.Subscribe(shared.EventRewardGranted, rewarded.Handle),
		bus.Subscribe(shared.EventStudentUpdated, changed.Handle),
		bus.Subscribe(shared.EventStudentDeleted, changed.Handle),
		bus.Subscribe(shared.EventClassDeleted, changed.Handle),
		bus.Subscribe(shared.EventLevelUp, milestones.Handle),
		bus.Subscribe(shared.EventTitleAwarded, milestones.Handle),
		bus.Subscribe(shared.EventItemPurchased, milestones.Handle),
	)
}
