package hostedsync

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/classquest/classroom-hub/internal/domain/classroom"
	"github.com/classquest/classroom-hub/internal/domain/shared"
	"github.com/classquest/classroom-hub/internal/domain/student"
	"github.com/classquest/classroom-hub/internal/infrastructure/backup"
	"github.com/classquest/classroom-hub/internal/infrastructure/persistence/sqlite"
	"github.com/classquest/classroom-hub/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTarget stands in for the hosted database.
type recordingTarget struct {
	failures int
	err      error
	calls    int
	got      *backup.Snapshot
	batch    int
}

func (r *recordingTarget) BulkUpsert(_ context.Context, snap *backup.Snapshot, batchSize int) (backup.Counts, error) {
	r.calls++
	if r.calls <= r.failures {
		return backup.Counts{}, r.err
	}
	r.got, r.batch = snap, batchSize
	return snap.Counts(), nil
}

type capturePublisher struct{ events []shared.Event }

func (c *capturePublisher) Publish(e shared.Event) error {
	c.events = append(c.events, e)
	return nil
}

func seededStore(t *testing.T) *sqlite.Store {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, sqlite.Config{Path: filepath.Join(t.TempDir(), "local.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	c, err := classroom.NewClass(classroom.NewClassParams{ID: "c1", Name: "5-A"})
	require.NoError(t, err)
	require.NoError(t, store.Classes().Save(ctx, c))
	for i, name := range []string{"Ann", "Bob"} {
		s, err := student.NewStudent(student.NewStudentParams{ID: name, ClassID: "c1", Name: name, Number: i + 1})
		require.NoError(t, err)
		require.NoError(t, store.Students().Save(ctx, s))
	}
	return store
}

func fastRetrier(retryable error) *retry.Retrier {
	return retry.New(
		retry.WithMaxAttempts(3),
		retry.WithInitialDelay(time.Millisecond),
		retry.WithJitter(0),
		retry.WithRetryIf(func(err error) bool { return errors.Is(err, retryable) }),
	)
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	target := &recordingTarget{}
	res, err := New(seededStore(t), target).Run(context.Background(), Options{DryRun: true})
	require.NoError(t, err)

	assert.True(t, res.DryRun)
	assert.Equal(t, 1, res.Counts.Classes)
	assert.Equal(t, 2, res.Counts.Students)
	assert.Zero(t, target.calls)
}

func TestRun_RetriesTransientFailures(t *testing.T) {
	transient := errors.New("connection reset")
	target := &recordingTarget{failures: 2, err: transient}
	pub := &capturePublisher{}

	res, err := New(seededStore(t), target, WithRetrier(fastRetrier(transient)), WithPublisher(pub)).
		Run(context.Background(), Options{BatchSize: 7})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3, res.Counts.Total())
	assert.Equal(t, 7, target.batch)
	require.Len(t, target.got.Students, 2)

	require.Len(t, pub.events, 1)
	assert.Equal(t, shared.EventHostedSyncCompleted, pub.events[0].EventType())
}

func TestRun_GivesUpOnPermanentErrors(t *testing.T) {
	broken := errors.New("permission denied")
	target := &recordingTarget{failures: 10, err: broken}

	res, err := New(seededStore(t), target, WithRetrier(fastRetrier(errors.New("other")))).
		Run(context.Background(), Options{})
	require.ErrorIs(t, err, broken)
	assert.Equal(t, 1, res.Attempts)
}

func TestRun_RequiresTarget(t *testing.T) {
	_, err := New(seededStore(t), nil).Run(context.Background(), Options{})
	assert.ErrorIs(t, err, ErrNoTarget)
}
