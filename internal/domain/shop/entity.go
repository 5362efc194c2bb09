// Package shop содержит доменную модель магазина за золото:
// предметы (point_shop_items) и историю покупок (purchase_history).
package shop

import (
	"context"
	"strings"
	"time"

	"github.com/classquest/classroom-hub/internal/domain/shared"
	"github.com/classquest/classroom-hub/internal/domain/student"
)

// UnlimitedStock - предмет без ограничения количества.
const UnlimitedStock = -1

// Item - предмет магазина.
type Item struct {
	ID          string `json:"id"`
	ClassID     string `json:"class_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       int    `json:"price"`
	// Slot непустой у предметов аватара.
	Slot     student.Slot `json:"slot,omitempty"`
	ImageRef string       `json:"image_ref,omitempty"`
	// Stock равный UnlimitedStock не уменьшается при покупке.
	Stock     int       `json:"stock"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Purchase - запись истории покупок.
type Purchase struct {
	ID          string    `json:"id"`
	ClassID     string    `json:"class_id"`
	StudentID   string    `json:"student_id"`
	ItemID      string    `json:"item_id"`
	ItemName    string    `json:"item_name"`
	Price       int       `json:"price"`
	PurchasedAt time.Time `json:"purchased_at"`
}

var (
	// ErrItemNotFound - предмет не найден.
	ErrItemNotFound = shared.NewDomainError("shop", "Find", shared.ErrNotFound, "shop item not found")

	// ErrInvalidItem - невалидные поля предмета.
	ErrInvalidItem = shared.NewDomainError("shop", "Validate", shared.ErrInvalidInput, "item needs a name and a non-negative price")

	// ErrOutOfStock - предмет закончился.
	ErrOutOfStock = shared.NewDomainError("shop", "Reserve", shared.ErrInvalidState, "item is out of stock")
)

// NewItemParams содержит параметры для создания предмета.
type NewItemParams struct {
	ID          string
	ClassID     string
	Name        string
	Description string
	Price       int
	Slot        student.Slot
	ImageRef    string
	Stock       int
}

// NewItem создаёт предмет с валидацией.
func NewItem(p NewItemParams) (*Item, error) {
	if p.ID == "" || p.ClassID == "" {
		return nil, shared.NewDomainError("shop", "Create", shared.ErrInvalidID, "item and class id are required")
	}
	it := &Item{ID: p.ID, ClassID: p.ClassID, CreatedAt: time.Now().UTC()}
	if err := it.Update(p); err != nil {
		return nil, err
	}
	return it, nil
}

// Update меняет поля предмета; ID и класс не меняются.
func (it *Item) Update(p NewItemParams) error {
	name := strings.TrimSpace(p.Name)
	if name == "" || p.Price < 0 || p.Stock < UnlimitedStock {
		return ErrInvalidItem
	}
	if p.Slot != "" && !p.Slot.IsValid() {
		return student.ErrInvalidSlot
	}
	it.Name = name
	it.Description = strings.TrimSpace(p.Description)
	it.Price = p.Price
	it.Slot = p.Slot
	it.ImageRef = strings.TrimSpace(p.ImageRef)
	it.Stock = p.Stock
	it.UpdatedAt = time.Now().UTC()
	return nil
}

// IsAvatarItem возвращает true для предметов экипировки.
func (it *Item) IsAvatarItem() bool {
	return it.Slot != ""
}

// Reserve уменьшает остаток на единицу.
func (it *Item) Reserve() error {
	if it.Stock == UnlimitedStock {
		return nil
	}
	if it.Stock <= 0 {
		return ErrOutOfStock
	}
	it.Stock--
	it.UpdatedAt = time.Now().UTC()
	return nil
}

// AvatarRef возвращает значение, которое записывается в слот аватара.
func (it *Item) AvatarRef() string {
	if it.ImageRef != "" {
		return it.ImageRef
	}
	return it.ID
}

// Repository определяет хранение предметов и покупок.
type Repository interface {
	SaveItem(ctx context.Context, it *Item) error
	// GetItem возвращает ErrItemNotFound, если предмета нет.
	GetItem(ctx context.Context, id string) (*Item, error)
	ListItems(ctx context.Context, classID string) ([]*Item, error)
	ListAllItems(ctx context.Context) ([]*Item, error)
	DeleteItem(ctx context.Context, id string) error

	// RecordPurchase сохраняет покупку; повторная запись с тем же ID игнорируется.
	RecordPurchase(ctx context.Context, p *Purchase) error
	ListPurchases(ctx context.Context, classID string) ([]*Purchase, error)
	ListPurchasesByStudent(ctx context.Context, studentID string) ([]*Purchase, error)
	ListAllPurchases(ctx context.Context) ([]*Purchase, error)

	// ReassignPurchases переписывает покупки ученика from на ученика to.
	ReassignPurchases(ctx context.Context, from, to string) error
}
