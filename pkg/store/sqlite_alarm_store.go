package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lookcw/Google-Meet-Autocall/pkg/models"
	_ "github.com/mattn/go-sqlite3"
)

const alarmColumns = "id, name, fire_at, period_ms, created_at, fired_at, keep_until"

// SQLiteAlarmStore keeps scheduled alarms in a SQLite database so they
// survive process restarts
type SQLiteAlarmStore struct {
	db *sql.DB
}

// OpenSQLiteAlarmStore opens (or creates) the database at dbPath
func OpenSQLiteAlarmStore(dbPath string) (*SQLiteAlarmStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// The scheduler loop and request handlers share one connection
	db.SetMaxOpenConns(1)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS alarms (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		fire_at INTEGER NOT NULL,
		period_ms INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		fired_at INTEGER NOT NULL DEFAULT 0,
		keep_until INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS alarms_fire_at ON alarms (fire_at);`
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	if err := addTombstoneColumns(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteAlarmStore{db: db}, nil
}

// addTombstoneColumns upgrades databases created before tombstones existed
func addTombstoneColumns(db *sql.DB) error {
	for _, column := range []string{"fired_at", "keep_until"} {
		var count int
		if err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('alarms') WHERE name = ?`, column).Scan(&count); err != nil {
			return fmt.Errorf("failed to inspect alarms table: %w", err)
		}
		if count > 0 {
			continue
		}
		if _, err := db.Exec(`ALTER TABLE alarms ADD COLUMN ` + column + ` INTEGER NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("failed to add %s column: %w", column, err)
		}
	}
	return nil
}

// Close closes the database
func (s *SQLiteAlarmStore) Close() error {
	return s.db.Close()
}

// Insert adds alarm unless an alarm with the same name exists
func (s *SQLiteAlarmStore) Insert(ctx context.Context, alarm models.ScheduledAlarm) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO alarms (`+alarmColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		alarm.ID, alarm.Name, alarm.FireAt.UnixMilli(), alarm.Period.Milliseconds(), alarm.CreatedAt.UnixMilli(),
		optionalMillis(alarm.FiredAt), optionalMillis(alarm.KeepUntil))
	if err != nil {
		return false, fmt.Errorf("insert alarm %s: %w", alarm.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Get returns the alarm called name, or nil
func (s *SQLiteAlarmStore) Get(ctx context.Context, name string) (*models.ScheduledAlarm, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+alarmColumns+` FROM alarms WHERE name = ?`, name)
	alarm, err := scanAlarm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alarm %s: %w", name, err)
	}
	return &alarm, nil
}

// Delete removes the alarm called name and reports whether it existed
func (s *SQLiteAlarmStore) Delete(ctx context.Context, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alarms WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete alarm %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkFired turns a pending one-shot alarm into a tombstone. It reports false
// when the alarm is missing, periodic or already fired.
func (s *SQLiteAlarmStore) MarkFired(ctx context.Context, name string, firedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alarms SET fired_at = ? WHERE name = ? AND fired_at = 0 AND period_ms = 0`,
		optionalMillis(firedAt), name)
	if err != nil {
		return false, fmt.Errorf("mark alarm %s fired: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdateFireAt moves an existing pending alarm to fireAt
func (s *SQLiteAlarmStore) UpdateFireAt(ctx context.Context, name string, fireAt time.Time) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE alarms SET fire_at = ? WHERE name = ? AND fired_at = 0`, fireAt.UnixMilli(), name); err != nil {
		return fmt.Errorf("update alarm %s: %w", name, err)
	}
	return nil
}

// List returns every alarm, tombstones included, sorted by fire time
func (s *SQLiteAlarmStore) List(ctx context.Context) ([]models.ScheduledAlarm, error) {
	return s.query(ctx, `SELECT `+alarmColumns+` FROM alarms ORDER BY fire_at, name`)
}

// Due returns the pending alarms whose fire time is at or before now
func (s *SQLiteAlarmStore) Due(ctx context.Context, now time.Time) ([]models.ScheduledAlarm, error) {
	return s.query(ctx, `SELECT `+alarmColumns+` FROM alarms WHERE fired_at = 0 AND fire_at <= ? ORDER BY fire_at, name`, now.UnixMilli())
}

// Next returns the pending alarm that fires first, or nil when nothing is pending
func (s *SQLiteAlarmStore) Next(ctx context.Context) (*models.ScheduledAlarm, error) {
	alarms, err := s.query(ctx, `SELECT `+alarmColumns+` FROM alarms WHERE fired_at = 0 ORDER BY fire_at, name LIMIT 1`)
	if err != nil || len(alarms) == 0 {
		return nil, err
	}
	return &alarms[0], nil
}

func (s *SQLiteAlarmStore) query(ctx context.Context, query string, args ...any) ([]models.ScheduledAlarm, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alarms: %w", err)
	}
	defer rows.Close()

	result := []models.ScheduledAlarm{}
	for rows.Next() {
		alarm, err := scanAlarm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alarm: %w", err)
		}
		result = append(result, alarm)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlarm(row rowScanner) (models.ScheduledAlarm, error) {
	var (
		alarm                                         models.ScheduledAlarm
		fireAt, periodMs, created, firedAt, keepUntil int64
	)
	if err := row.Scan(&alarm.ID, &alarm.Name, &fireAt, &periodMs, &created, &firedAt, &keepUntil); err != nil {
		return models.ScheduledAlarm{}, err
	}
	alarm.FireAt = time.UnixMilli(fireAt)
	alarm.Period = time.Duration(periodMs) * time.Millisecond
	alarm.CreatedAt = time.UnixMilli(created)
	if firedAt > 0 {
		alarm.FiredAt = time.UnixMilli(firedAt)
	}
	if keepUntil > 0 {
		alarm.KeepUntil = time.UnixMilli(keepUntil)
	}
	return alarm, nil
}

// optionalMillis stores a zero time as 0, meaning unset
func optionalMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
