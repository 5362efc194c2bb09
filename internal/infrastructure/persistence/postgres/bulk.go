package postgres

import (
	"context"
	"fmt"

	"github.com/classquest/classroom-hub/internal/infrastructure/backup"

	"github.com/jackc/pgx/v5"
)

// DefaultBatchSize is the number of aggregates queued per pgx.Batch.
const DefaultBatchSize = 500

// BulkUpsert writes the whole snapshot in one transaction, in dependency
// order, batching up to batchSize aggregates per round trip. Rows are matched
// by id; existing rows are overwritten.
func (s *Store) BulkUpsert(ctx context.Context, snap *backup.Snapshot, batchSize int) (backup.Counts, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	write := func(tx Querier) error {
		w := &batchWriter{ctx: ctx, q: tx, size: batchSize}

		for _, c := range snap.Classes {
			w.add(func(b *pgx.Batch) { queueClass(b, c) })
		}
		for _, st := range snap.Students {
			w.add(func(b *pgx.Batch) { queueStudent(b, st) })
		}
		// Achievements reference students, so students must be flushed first.
		w.flush("students")
		for _, m := range snap.Missions {
			w.add(func(b *pgx.Batch) { queueMission(b, m) })
		}
		for _, r := range snap.Roadmaps {
			w.add(func(b *pgx.Batch) { queueRoadmap(b, r) })
		}
		for _, c := range snap.PraiseCards {
			w.add(func(b *pgx.Batch) { queuePraiseCard(b, c) })
		}
		for _, it := range snap.ShopItems {
			w.add(func(b *pgx.Batch) { queueShopItem(b, it) })
		}
		for _, p := range snap.Purchases {
			w.add(func(b *pgx.Batch) { queuePurchase(b, p) })
		}
		for _, e := range snap.Rewards {
			w.add(func(b *pgx.Batch) { queueReward(b, e) })
		}
		w.flush("history")
		return w.err
	}

	var err error
	if s.inTx {
		err = write(s.q)
	} else {
		err = s.conn.WithTx(ctx, func(tx pgx.Tx) error { return write(tx) })
	}
	if err != nil {
		return backup.Counts{}, err
	}
	return snap.Counts(), nil
}

// batchWriter groups queued aggregates into batches of at most size.
type batchWriter struct {
	ctx   context.Context
	q     Querier
	size  int
	batch *pgx.Batch
	n     int
	err   error
}

func (w *batchWriter) add(queue func(*pgx.Batch)) {
	if w.err != nil {
		return
	}
	if w.batch == nil {
		w.batch = &pgx.Batch{}
	}
	queue(w.batch)
	w.n++
	if w.n >= w.size {
		w.flush("batch")
	}
}

func (w *batchWriter) flush(stage string) {
	if w.err != nil || w.batch == nil {
		return
	}
	if err := sendBatch(w.ctx, w.q, w.batch); err != nil {
		w.err = fmt.Errorf("postgres: bulk upsert (%s): %w", stage, err)
	}
	w.batch = nil
	w.n = 0
}
