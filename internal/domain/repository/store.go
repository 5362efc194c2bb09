// Package repository объединяет репозитории всех агрегатов в одно хранилище
// с общей транзакцией. Реализации: локальное (sqlite) и облачное (postgres).
package repository

import (
	"context"

	"github.com/classquest/classroom-hub/internal/domain/classroom"
	"github.com/classquest/classroom-hub/internal/domain/mission"
	"github.com/classquest/classroom-hub/internal/domain/praise"
	"github.com/classquest/classroom-hub/internal/domain/reward"
	"github.com/classquest/classroom-hub/internal/domain/roadmap"
	"github.com/classquest/classroom-hub/internal/domain/shop"
	"github.com/classquest/classroom-hub/internal/domain/student"
)

// Store - единое нормализованное хранилище.
type Store interface {
	Classes() classroom.Repository
	Students() student.Repository
	Missions() mission.Repository
	Roadmaps() roadmap.Repository
	PraiseCards() praise.Repository
	Shop() shop.Repository
	Rewards() reward.Repository

	// WithinTx выполняет fn в одной транзакции. Store, переданный в fn,
	// работает внутри транзакции; вложенный вызов переиспользует её.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// Driver возвращает имя реализации: "sqlite" или "postgres".
	Driver() string
}
