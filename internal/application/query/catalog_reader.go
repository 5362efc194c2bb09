package query

import (
	"context"

	"github.com/classquest/classroom-hub/internal/domain/classroom"
	"github.com/classquest/classroom-hub/internal/domain/mission"
	"github.com/classquest/classroom-hub/internal/domain/praise"
	"github.com/classquest/classroom-hub/internal/domain/repository"
	"github.com/classquest/classroom-hub/internal/domain/reward"
	"github.com/classquest/classroom-hub/internal/domain/roadmap"
	"github.com/classquest/classroom-hub/internal/domain/shop"
)

// CatalogReader - простые списки для API. Для каждого списка, кроме классов,
// сначала проверяется, что класс существует, чтобы отличать пустой список
// от неизвестного класса.
type CatalogReader struct {
	store repository.Store
}

// NewCatalogReader создаёт CatalogReader.
func NewCatalogReader(store repository.Store) *CatalogReader {
	return &CatalogReader{store: store}
}

// Classes возвращает все классы.
func (r *CatalogReader) Classes(ctx context.Context) ([]*classroom.Class, error) {
	return r.store.Classes().List(ctx)
}

// Class возвращает класс по ID.
func (r *CatalogReader) Class(ctx context.Context, classID string) (*classroom.Class, error) {
	return r.store.Classes().GetByID(ctx, classID)
}

// Cards возвращает карточки класса.
func (r *CatalogReader) Cards(ctx context.Context, classID string) ([]*praise.Card, error) {
	if _, err := r.Class(ctx, classID); err != nil {
		return nil, err
	}
	return r.store.PraiseCards().ListByClass(ctx, classID)
}

// Missions возвращает миссии класса.
func (r *CatalogReader) Missions(ctx context.Context, classID string) ([]*mission.Mission, error) {
	if _, err := r.Class(ctx, classID); err != nil {
		return nil, err
	}
	return r.store.Missions().ListByClass(ctx, classID)
}

// Roadmaps возвращает челленджи класса.
func (r *CatalogReader) Roadmaps(ctx context.Context, classID string) ([]*roadmap.Roadmap, error) {
	if _, err := r.Class(ctx, classID); err != nil {
		return nil, err
	}
	return r.store.Roadmaps().ListByClass(ctx, classID)
}

// Items возвращает предметы магазина класса.
func (r *CatalogReader) Items(ctx context.Context, classID string) ([]*shop.Item, error) {
	if _, err := r.Class(ctx, classID); err != nil {
		return nil, err
	}
	return r.store.Shop().ListItems(ctx, classID)
}

// Purchases возвращает историю покупок класса.
func (r *CatalogReader) Purchases(ctx context.Context, classID string) ([]*shop.Purchase, error) {
	if _, err := r.Class(ctx, classID); err != nil {
		return nil, err
	}
	return r.store.Shop().ListPurchases(ctx, classID)
}

// History возвращает последние награды ученика.
func (r *CatalogReader) History(ctx context.Context, studentID string, limit int) ([]*reward.Entry, error) {
	if _, err := r.store.Students().GetByID(ctx, studentID); err != nil {
		return nil, err
	}
	return r.store.Rewards().ListByStudent(ctx, studentID, limit)
}
