package postgres

import (
	"context"
	"fmt"

	"github.com/classquest/classroom-hub/internal/domain/classroom"
	"github.com/classquest/classroom-hub/internal/domain/mission"
	"github.com/classquest/classroom-hub/internal/domain/praise"
	"github.com/classquest/classroom-hub/internal/domain/repository"
	"github.com/classquest/classroom-hub/internal/domain/reward"
	"github.com/classquest/classroom-hub/internal/domain/roadmap"
	"github.com/classquest/classroom-hub/internal/domain/shared"
	"github.com/classquest/classroom-hub/internal/domain/shop"
	"github.com/classquest/classroom-hub/internal/domain/student"
	"github.com/classquest/classroom-hub/pkg/retry"

	"github.com/jackc/pgx/v5"
)

// DriverName is reported by Store.Driver.
const DriverName = "postgres"

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// Store implements repository.Store on top of a Connection.
type Store struct {
	conn *Connection
	q    Querier
	inTx bool
}

var _ repository.Store = (*Store)(nil)

// NewStore creates a Store using the pool.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn, q: conn}
}

// Connection returns the underlying pool wrapper.
func (s *Store) Connection() *Connection { return s.conn }

// Driver implements repository.Store.
func (s *Store) Driver() string { return DriverName }

// WithinTx implements repository.Store. A transaction that fails with a
// serialization failure, a deadlock or a dropped connection is replayed from
// the start. When the retries run out the error is marked with
// shared.ErrConcurrentModification.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	err := txRetrier.Do(ctx, func(ctx context.Context) error {
		return s.conn.WithTx(ctx, func(tx pgx.Tx) error {
			return fn(ctx, &Store{conn: s.conn, q: tx, inTx: true})
		})
	})
	return markTransient(err)
}

var txRetrier = retry.TxRetrier(retry.WithRetryIf(IsTransient))

func markTransient(err error) error {
	if err == nil || !IsTransient(err) {
		return err
	}
	return shared.WrapError("store", "WithinTx", shared.ErrConcurrentModification, "transaction conflict", err)
}

func (s *Store) Classes() classroom.Repository  { return &ClassRepository{q: s.q} }
func (s *Store) Students() student.Repository   { return &StudentRepository{q: s.q, lock: s.inTx} }
func (s *Store) Missions() mission.Repository   { return &MissionRepository{q: s.q, lock: s.inTx} }
func (s *Store) Roadmaps() roadmap.Repository   { return &RoadmapRepository{q: s.q, lock: s.inTx} }
func (s *Store) PraiseCards() praise.Repository { return &PraiseCardRepository{q: s.q} }
func (s *Store) Shop() shop.Repository          { return &ShopRepository{q: s.q, lock: s.inTx} }
func (s *Store) Rewards() reward.Repository     { return &RewardRepository{q: s.q} }

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// sendBatch executes every queued statement and closes the results.
func sendBatch(ctx context.Context, q Querier, b *pgx.Batch) error {
	if b.Len() == 0 {
		return nil
	}
	br := q.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return err
		}
	}
	return br.Close()
}

// sendAtomic runs the batch in its own transaction, or in a savepoint when q
// is already a transaction.
func sendAtomic(ctx context.Context, q Querier, b *pgx.Batch) error {
	return pgx.BeginFunc(ctx, q, func(tx pgx.Tx) error {
		return sendBatch(ctx, tx, b)
	})
}

// mapWriteError converts driver errors into domain errors.
func mapWriteError(domain, op string, err error) error {
	switch {
	case err == nil:
		return nil
	case IsUniqueViolation(err):
		return shared.WrapError(domain, op, shared.ErrAlreadyExists, "duplicate key", err)
	case IsForeignKeyViolation(err):
		return shared.WrapError(domain, op, shared.ErrInvalidState, "referenced row does not exist", err)
	}
	return fmt.Errorf("postgres: %s %s: %w", op, domain, err)
}

// forUpdate returns the row-lock suffix for reads that precede a write in the
// same transaction.
func forUpdate(lock bool) string {
	if lock {
		return " FOR UPDATE"
	}
	return ""
}

// deleteByID deletes one row and reports notFound when nothing matched.
func deleteByID(ctx context.Context, q Querier, table, id string, notFound error) error {
	tag, err := q.Exec(ctx, "DELETE FROM "+table+" WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("postgres: delete from %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound
	}
	return nil
}
