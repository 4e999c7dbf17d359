package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

const (
	sqliteSchemaSQL = `CREATE TABLE IF NOT EXISTS vitals_snapshots (
        id         INTEGER PRIMARY KEY AUTOINCREMENT,
        sim_time   TEXT NOT NULL,
        sim_order  REAL NOT NULL,
        rhythm     TEXT NOT NULL,
        heart_rate TEXT,
        spo2       TEXT NOT NULL,
        resp_rate  TEXT NOT NULL,
        temp_c     TEXT NOT NULL,
        bp_sys     TEXT NOT NULL,
        bp_dia     TEXT NOT NULL,
        created_at DATETIME NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_vitals_snapshots_sim_order ON vitals_snapshots (sim_order);
    CREATE TABLE IF NOT EXISTS alarm_events (
        id          INTEGER PRIMARY KEY AUTOINCREMENT,
        sim_time    TEXT NOT NULL,
        param       TEXT NOT NULL,
        from_status TEXT NOT NULL,
        to_status   TEXT NOT NULL,
        message     TEXT NOT NULL,
        value       TEXT NOT NULL,
        created_at  DATETIME NOT NULL
    );`

	sqliteInsertSnapshotSQL = `INSERT INTO vitals_snapshots (
        sim_time, sim_order, rhythm, heart_rate, spo2, resp_rate, temp_c, bp_sys, bp_dia, created_at
    ) VALUES (?,?,?,?,?,?,?,?,?,?)`

	sqliteSnapshotColumns = `id, sim_time, rhythm, heart_rate, spo2, resp_rate, temp_c, bp_sys, bp_dia, created_at`

	sqliteListRecentSnapshotsSQL = `SELECT ` + sqliteSnapshotColumns + `
    FROM vitals_snapshots
    ORDER BY sim_order DESC
    LIMIT ?`

	sqliteListSnapshotsBetweenSQL = `SELECT ` + sqliteSnapshotColumns + `
    FROM vitals_snapshots
    WHERE sim_order >= ? AND sim_order < ?
    ORDER BY sim_order
    LIMIT ?`

	sqliteCountSnapshotsSQL = `SELECT COUNT(*) FROM vitals_snapshots`

	sqliteInsertAlarmEventSQL = `INSERT INTO alarm_events (
        sim_time, param, from_status, to_status, message, value, created_at
    ) VALUES (?,?,?,?,?,?,?)`

	sqliteListRecentAlarmEventsSQL = `SELECT id, sim_time, param, from_status, to_status, message, value, created_at
    FROM alarm_events
    ORDER BY id DESC
    LIMIT ?`

	sqliteDeleteSnapshotsSQL = `DELETE FROM vitals_snapshots`
	sqliteDeleteEventsSQL    = `DELETE FROM alarm_events`
)

// SQLiteStore records the session in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens dsn with the sqlite3 driver and creates the schema.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	store := NewSQLiteStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore wraps an open database handle.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	return s.db, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() {
	if s == nil || s.db == nil {
		return
	}
	s.db.Close()
}

// EnsureSchema creates the session tables when missing.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	if _, execErr := db.ExecContext(ctx, sqliteSchemaSQL); execErr != nil {
		return fmt.Errorf("ensure schema: %w", execErr)
	}
	return nil
}

// ResetSession deletes every row of both tables in one transaction.
func (s *SQLiteStore) ResetSession(ctx context.Context) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	for _, stmt := range []string{sqliteDeleteSnapshotsSQL, sqliteDeleteEventsSQL} {
		if _, execErr := tx.ExecContext(ctx, stmt); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("reset session: %w", execErr)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}

// InsertSnapshot persists a vitals snapshot.
func (s *SQLiteStore) InsertSnapshot(ctx context.Context, rec SnapshotRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	var hr interface{}
	if rec.HeartRate != nil {
		hr = rec.HeartRate.String()
	}

	_, execErr := db.ExecContext(ctx, sqliteInsertSnapshotSQL,
		rec.SimTime.String(),
		rec.SimTime.InexactFloat64(),
		rec.Rhythm,
		hr,
		rec.SpO2.String(),
		rec.RespRate.String(),
		rec.TempC.String(),
		rec.BPSys.String(),
		rec.BPDia.String(),
		rec.CreatedAt,
	)
	if execErr != nil {
		return fmt.Errorf("insert snapshot: %w", execErr)
	}
	return nil
}

// ListRecentSnapshots lists the newest snapshots first.
func (s *SQLiteStore) ListRecentSnapshots(ctx context.Context, limit int) ([]SnapshotRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, queryErr := db.QueryContext(ctx, sqliteListRecentSnapshotsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent snapshots: %w", queryErr)
	}
	defer rows.Close()
	return collectSQLSnapshots(rows)
}

// ListSnapshotsBetween lists snapshots with from <= sim_time < to in time order.
func (s *SQLiteStore) ListSnapshotsBetween(ctx context.Context, from, to decimal.Decimal, limit int) ([]SnapshotRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, queryErr := db.QueryContext(ctx, sqliteListSnapshotsBetweenSQL, from.InexactFloat64(), to.InexactFloat64(), limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list snapshots between: %w", queryErr)
	}
	defer rows.Close()
	return collectSQLSnapshots(rows)
}

func collectSQLSnapshots(rows *sql.Rows) ([]SnapshotRecord, error) {
	out := make([]SnapshotRecord, 0)
	for rows.Next() {
		rec, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountSnapshots counts stored snapshots.
func (s *SQLiteStore) CountSnapshots(ctx context.Context) (int64, error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := db.QueryRowContext(ctx, sqliteCountSnapshotsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count snapshots: %w", scanErr)
	}
	return count, nil
}

// InsertAlarmEvent persists an alarm transition and returns it with its ID.
func (s *SQLiteStore) InsertAlarmEvent(ctx context.Context, ev AlarmEvent) (AlarmEvent, error) {
	db, err := s.getDB()
	if err != nil {
		return AlarmEvent{}, err
	}
	res, execErr := db.ExecContext(ctx, sqliteInsertAlarmEventSQL,
		ev.SimTime.String(),
		ev.Param,
		ev.FromStatus,
		ev.ToStatus,
		ev.Message,
		ev.Value.String(),
		ev.CreatedAt,
	)
	if execErr != nil {
		return AlarmEvent{}, fmt.Errorf("insert alarm event: %w", execErr)
	}
	id, idErr := res.LastInsertId()
	if idErr != nil {
		return AlarmEvent{}, fmt.Errorf("alarm event id: %w", idErr)
	}
	ev.ID = id
	return ev, nil
}

// ListRecentAlarmEvents lists the newest alarm events first.
func (s *SQLiteStore) ListRecentAlarmEvents(ctx context.Context, limit int) ([]AlarmEvent, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}
	rows, queryErr := db.QueryContext(ctx, sqliteListRecentAlarmEventsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alarm events: %w", queryErr)
	}
	defer rows.Close()

	events := make([]AlarmEvent, 0, limit)
	for rows.Next() {
		ev, scanErr := scanAlarmEvent(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

var _ Recorder = (*SQLiteStore)(nil)
