package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// meta is the indexed part of a document.
type meta struct {
	ID        string
	ClassID   string
	OwnerID   string
	CreatedAt time.Time
}

// collection stores values of T as JSON documents in one table.
type collection[T any] struct {
	q        dbtx
	table    string
	meta     func(*T) meta
	notFound error
}

// timeLayout keeps a fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func (c collection[T]) put(ctx context.Context, v *T) error {
	return c.write(ctx, v, `ON CONFLICT(id) DO UPDATE SET
		class_id = excluded.class_id,
		owner_id = excluded.owner_id,
		data = excluded.data,
		updated_at = excluded.updated_at`)
}

// insertIgnore adds v unless a row with the same id exists.
func (c collection[T]) insertIgnore(ctx context.Context, v *T) error {
	return c.write(ctx, v, "ON CONFLICT(id) DO NOTHING")
}

func (c collection[T]) write(ctx context.Context, v *T, conflict string) error {
	m := c.meta(v)
	if m.ID == "" {
		return fmt.Errorf("sqlite: %s: empty id", c.table)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sqlite: marshal %s: %w", c.table, err)
	}
	created := m.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, class_id, owner_id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?) %s`, c.table, conflict)

	_, err = c.q.ExecContext(ctx, query,
		m.ID,
		m.ClassID,
		m.OwnerID,
		string(data),
		created.UTC().Format(timeLayout),
		time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save %s: %w", c.table, err)
	}
	return nil
}

func (c collection[T]) get(ctx context.Context, id string) (*T, error) {
	var data string
	err := c.q.QueryRowContext(ctx, fmt.Sprintf("SELECT data FROM %s WHERE id = ?", c.table), id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, c.notFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get %s: %w", c.table, err)
	}
	return c.decode(data)
}

// list returns documents matching where (may be empty) ordered by orderBy.
func (c collection[T]) list(ctx context.Context, where, orderBy string, limit int, args ...any) ([]*T, error) {
	query := "SELECT data FROM " + c.table
	if where != "" {
		query += " WHERE " + where
	}
	if orderBy == "" {
		orderBy = "created_at, id"
	}
	query += " ORDER BY " + orderBy
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list %s: %w", c.table, err)
	}
	defer rows.Close()

	out := make([]*T, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("sqlite: scan %s: %w", c.table, err)
		}
		v, err := c.decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (c collection[T]) delete(ctx context.Context, id string) error {
	res, err := c.q.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", c.table), id)
	if err != nil {
		return fmt.Errorf("sqlite: delete %s: %w", c.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: delete %s: %w", c.table, err)
	}
	if n == 0 {
		return c.notFound
	}
	return nil
}

func (c collection[T]) decode(data string) (*T, error) {
	v := new(T)
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return nil, fmt.Errorf("sqlite: decode %s: %w", c.table, err)
	}
	return v, nil
}
