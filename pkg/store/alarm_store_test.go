package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/lookcw/Google-Meet-Autocall/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type alarmStore interface {
	Insert(ctx context.Context, alarm models.ScheduledAlarm) (bool, error)
	Get(ctx context.Context, name string) (*models.ScheduledAlarm, error)
	Delete(ctx context.Context, name string) (bool, error)
	MarkFired(ctx context.Context, name string, firedAt time.Time) (bool, error)
	UpdateFireAt(ctx context.Context, name string, fireAt time.Time) error
	List(ctx context.Context) ([]models.ScheduledAlarm, error)
	Due(ctx context.Context, now time.Time) ([]models.ScheduledAlarm, error)
	Next(ctx context.Context) (*models.ScheduledAlarm, error)
}

var base = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func alarm(name string, fireAt time.Time) models.ScheduledAlarm {
	return models.ScheduledAlarm{ID: "id-" + name, Name: name, FireAt: fireAt, CreatedAt: base}
}

func eachStore(t *testing.T, fn func(t *testing.T, s alarmStore)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryAlarmStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := OpenSQLiteAlarmStore(filepath.Join(t.TempDir(), "alarms.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
}

func TestAlarmStoreInsertIsCreateIfAbsent(t *testing.T) {
	eachStore(t, func(t *testing.T, s alarmStore) {
		ctx := context.Background()

		created, err := s.Insert(ctx, alarm("meet-alarm:a", base.Add(time.Hour)))
		require.NoError(t, err)
		assert.True(t, created)

		created, err = s.Insert(ctx, alarm("meet-alarm:a", base.Add(2*time.Hour)))
		require.NoError(t, err)
		assert.False(t, created)

		got, err := s.Get(ctx, "meet-alarm:a")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.FireAt.Equal(base.Add(time.Hour)))
		assert.Equal(t, "id-meet-alarm:a", got.ID)
	})
}

func TestAlarmStoreGetMissing(t *testing.T) {
	eachStore(t, func(t *testing.T, s alarmStore) {
		got, err := s.Get(context.Background(), "nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestAlarmStoreDelete(t *testing.T) {
	eachStore(t, func(t *testing.T, s alarmStore) {
		ctx := context.Background()
		_, err := s.Insert(ctx, alarm("a", base))
		require.NoError(t, err)

		deleted, err := s.Delete(ctx, "a")
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = s.Delete(ctx, "a")
		require.NoError(t, err)
		assert.False(t, deleted)

		due, err := s.Due(ctx, base.Add(time.Hour))
		require.NoError(t, err)
		assert.Empty(t, due)
	})
}

func TestAlarmStoreDueListAndNext(t *testing.T) {
	eachStore(t, func(t *testing.T, s alarmStore) {
		ctx := context.Background()
		for _, a := range []models.ScheduledAlarm{
			alarm("late", base.Add(2*time.Hour)),
			alarm("early", base.Add(-time.Minute)),
			alarm("same-minute", base.Add(30*time.Second)),
		} {
			_, err := s.Insert(ctx, a)
			require.NoError(t, err)
		}

		due, err := s.Due(ctx, base)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, "early", due[0].Name)

		all, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"early", "same-minute", "late"}, []string{all[0].Name, all[1].Name, all[2].Name})

		next, err := s.Next(ctx)
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, "early", next.Name)
	})
}

func TestAlarmStoreUpdateFireAt(t *testing.T) {
	eachStore(t, func(t *testing.T, s alarmStore) {
		ctx := context.Background()
		_, err := s.Insert(ctx, alarm("rescan", base))
		require.NoError(t, err)

		require.NoError(t, s.UpdateFireAt(ctx, "rescan", base.Add(5*time.Minute)))

		due, err := s.Due(ctx, base.Add(time.Minute))
		require.NoError(t, err)
		assert.Empty(t, due)

		due, err = s.Due(ctx, base.Add(5*time.Minute))
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.True(t, due[0].FireAt.Equal(base.Add(5*time.Minute)))
	})
}

func TestSQLiteAlarmStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alarms.db")
	ctx := context.Background()

	s, err := OpenSQLiteAlarmStore(path)
	require.NoError(t, err)
	periodic := alarm("rescan", base)
	periodic.Period = 5 * time.Minute
	_, err = s.Insert(ctx, periodic)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := OpenSQLiteAlarmStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "rescan")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsPeriodic())
	assert.Equal(t, 5*time.Minute, got.Period)
}

func TestAlarmStoreMarkFiredKeepsTombstone(t *testing.T) {
	eachStore(t, func(t *testing.T, s alarmStore) {
		ctx := context.Background()
		pending := alarm("meet-alarm:a", base)
		pending.KeepUntil = base.Add(15 * time.Minute)
		_, err := s.Insert(ctx, pending)
		require.NoError(t, err)

		marked, err := s.MarkFired(ctx, "meet-alarm:a", base.Add(time.Second))
		require.NoError(t, err)
		assert.True(t, marked)

		marked, err = s.MarkFired(ctx, "meet-alarm:a", base.Add(time.Minute))
		require.NoError(t, err)
		assert.False(t, marked)

		got, err := s.Get(ctx, "meet-alarm:a")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.Fired())
		assert.True(t, got.FiredAt.Equal(base.Add(time.Second)))
		assert.True(t, got.KeepUntil.Equal(base.Add(15*time.Minute)))
		assert.False(t, got.Expired(base.Add(time.Minute)))
		assert.True(t, got.Expired(base.Add(15*time.Minute)))

		created, err := s.Insert(ctx, alarm("meet-alarm:a", base.Add(time.Hour)))
		require.NoError(t, err)
		assert.False(t, created)

		due, err := s.Due(ctx, base.Add(time.Hour))
		require.NoError(t, err)
		assert.Empty(t, due)

		next, err := s.Next(ctx)
		require.NoError(t, err)
		assert.Nil(t, next)

		all, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.True(t, all[0].Fired())

		deleted, err := s.Delete(ctx, "meet-alarm:a")
		require.NoError(t, err)
		assert.True(t, deleted)
	})
}

func TestAlarmStoreMarkFiredSkipsPeriodicAndMissing(t *testing.T) {
	eachStore(t, func(t *testing.T, s alarmStore) {
		ctx := context.Background()
		periodic := alarm("rescan", base)
		periodic.Period = 5 * time.Minute
		_, err := s.Insert(ctx, periodic)
		require.NoError(t, err)

		marked, err := s.MarkFired(ctx, "rescan", base)
		require.NoError(t, err)
		assert.False(t, marked)

		marked, err = s.MarkFired(ctx, "nope", base)
		require.NoError(t, err)
		assert.False(t, marked)
	})
}

func TestSQLiteAlarmStoreUpgradesOldSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alarms.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE alarms (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		fire_at INTEGER NOT NULL,
		period_ms INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO alarms VALUES ('id-a', 'meet-alarm:a', ?, 0, ?)`, base.UnixMilli(), base.UnixMilli())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := OpenSQLiteAlarmStore(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(context.Background(), "meet-alarm:a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Fired())
	assert.True(t, got.KeepUntil.IsZero())
}
