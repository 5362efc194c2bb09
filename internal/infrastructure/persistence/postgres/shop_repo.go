package postgres

import (
	"context"
	"fmt"

	"github.com/classquest/classroom-hub/internal/domain/reward"
	"github.com/classquest/classroom-hub/internal/domain/shop"
	"github.com/classquest/classroom-hub/internal/domain/student"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// SHOP REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// ShopRepository implements shop.Repository for PostgreSQL. Inside a
// transaction GetItem locks the item row so stock is never oversold.
type ShopRepository struct {
	q    Querier
	lock bool
}

const selectShopItemSQL = `
	SELECT id, class_id, name, description, price, slot, image_ref, stock, created_at, updated_at
	FROM point_shop_items
`

const selectPurchaseSQL = `
	SELECT id, class_id, student_id, item_id, item_name, price, purchased_at
	FROM purchase_history
`

// SaveItem creates or updates an item.
func (r *ShopRepository) SaveItem(ctx context.Context, it *shop.Item) error {
	b := &pgx.Batch{}
	queueShopItem(b, it)
	return mapWriteError("shop", "SaveItem", sendBatch(ctx, r.q, b))
}

// GetItem returns an item by ID.
func (r *ShopRepository) GetItem(ctx context.Context, id string) (*shop.Item, error) {
	items, err := r.listItems(ctx, selectShopItemSQL+` WHERE id = $1`+forUpdate(r.lock), id)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, shop.ErrItemNotFound
	}
	return items[0], nil
}

// ListItems returns the items of a class.
func (r *ShopRepository) ListItems(ctx context.Context, classID string) ([]*shop.Item, error) {
	return r.listItems(ctx, selectShopItemSQL+` WHERE class_id = $1 ORDER BY created_at, id`, classID)
}

// ListAllItems returns every item.
func (r *ShopRepository) ListAllItems(ctx context.Context) ([]*shop.Item, error) {
	return r.listItems(ctx, selectShopItemSQL+` ORDER BY created_at, id`)
}

// DeleteItem removes an item. Purchase history keeps the item name.
func (r *ShopRepository) DeleteItem(ctx context.Context, id string) error {
	return deleteByID(ctx, r.q, "point_shop_items", id, shop.ErrItemNotFound)
}

// RecordPurchase appends to the purchase history.
func (r *ShopRepository) RecordPurchase(ctx context.Context, p *shop.Purchase) error {
	b := &pgx.Batch{}
	queuePurchase(b, p)
	return mapWriteError("shop", "RecordPurchase", sendBatch(ctx, r.q, b))
}

// ListPurchases returns the purchases of a class, newest first.
func (r *ShopRepository) ListPurchases(ctx context.Context, classID string) ([]*shop.Purchase, error) {
	return r.listPurchases(ctx, selectPurchaseSQL+` WHERE class_id = $1 ORDER BY purchased_at DESC, id`, classID)
}

// ListPurchasesByStudent returns the purchases of a student, newest first.
func (r *ShopRepository) ListPurchasesByStudent(ctx context.Context, studentID string) ([]*shop.Purchase, error) {
	return r.listPurchases(ctx, selectPurchaseSQL+` WHERE student_id = $1 ORDER BY purchased_at DESC, id`, studentID)
}

// ListAllPurchases returns the whole purchase history.
func (r *ShopRepository) ListAllPurchases(ctx context.Context) ([]*shop.Purchase, error) {
	return r.listPurchases(ctx, selectPurchaseSQL+` ORDER BY purchased_at, id`)
}

// ReassignPurchases moves the purchases of one student to another.
func (r *ShopRepository) ReassignPurchases(ctx context.Context, from, to string) error {
	_, err := r.q.Exec(ctx, `UPDATE purchase_history SET student_id = $2 WHERE student_id = $1`, from, to)
	return mapWriteError("shop", "ReassignPurchases", err)
}

func (r *ShopRepository) listItems(ctx context.Context, query string, args ...any) ([]*shop.Item, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query shop items: %w", err)
	}
	defer rows.Close()

	items := make([]*shop.Item, 0)
	for rows.Next() {
		var it shop.Item
		var slot string
		if err := rows.Scan(
			&it.ID, &it.ClassID, &it.Name, &it.Description, &it.Price,
			&slot, &it.ImageRef, &it.Stock, &it.CreatedAt, &it.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan shop item: %w", err)
		}
		it.Slot = student.Slot(slot)
		items = append(items, &it)
	}
	return items, rows.Err()
}

func (r *ShopRepository) listPurchases(ctx context.Context, query string, args ...any) ([]*shop.Purchase, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	purchases := make([]*shop.Purchase, 0)
	for rows.Next() {
		var p shop.Purchase
		if err := rows.Scan(&p.ID, &p.ClassID, &p.StudentID, &p.ItemID, &p.ItemName, &p.Price, &p.PurchasedAt); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, &p)
	}
	return purchases, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// REWARD HISTORY REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// RewardRepository implements reward.Repository for PostgreSQL.
type RewardRepository struct {
	q Querier
}

const selectRewardSQL = `
	SELECT id, class_id, student_id, source, source_id, note, exp, gold,
	       level_before, level_after, title, created_at
	FROM reward_history
`

// Append adds an entry; duplicates by ID are ignored.
func (r *RewardRepository) Append(ctx context.Context, e *reward.Entry) error {
	b := &pgx.Batch{}
	queueReward(b, e)
	return mapWriteError("reward", "Append", sendBatch(ctx, r.q, b))
}

// ListByStudent returns a student's latest entries.
func (r *RewardRepository) ListByStudent(ctx context.Context, studentID string, limit int) ([]*reward.Entry, error) {
	return r.list(ctx, selectRewardSQL+` WHERE student_id = $1 ORDER BY created_at DESC, id DESC`+limitClause(limit), studentID)
}

// ListByClass returns a class's latest entries.
func (r *RewardRepository) ListByClass(ctx context.Context, classID string, limit int) ([]*reward.Entry, error) {
	return r.list(ctx, selectRewardSQL+` WHERE class_id = $1 ORDER BY created_at DESC, id DESC`+limitClause(limit), classID)
}

// ListAll returns the whole history, oldest first.
func (r *RewardRepository) ListAll(ctx context.Context) ([]*reward.Entry, error) {
	return r.list(ctx, selectRewardSQL+` ORDER BY created_at, id`)
}

// Reassign moves the history of one student to another.
func (r *RewardRepository) Reassign(ctx context.Context, from, to string) error {
	_, err := r.q.Exec(ctx, `UPDATE reward_history SET student_id = $2 WHERE student_id = $1`, from, to)
	return mapWriteError("reward", "Reassign", err)
}

func (r *RewardRepository) list(ctx context.Context, query string, args ...any) ([]*reward.Entry, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reward history: %w", err)
	}
	defer rows.Close()

	entries := make([]*reward.Entry, 0)
	for rows.Next() {
		var e reward.Entry
		var source string
		if err := rows.Scan(
			&e.ID, &e.ClassID, &e.StudentID, &source, &e.SourceID, &e.Note,
			&e.Exp, &e.Gold, &e.LevelBefore, &e.LevelAfter, &e.Title, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reward entry: %w", err)
		}
		e.Source = reward.Source(source)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}
