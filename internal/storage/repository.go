package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	pgSchemaSQL = `CREATE TABLE IF NOT EXISTS vitals_snapshots (
        id         BIGSERIAL PRIMARY KEY,
        sim_time   NUMERIC(12,3) NOT NULL,
        rhythm     TEXT NOT NULL,
        heart_rate NUMERIC(6,1),
        spo2       NUMERIC(5,1) NOT NULL,
        resp_rate  NUMERIC(5,1) NOT NULL,
        temp_c     NUMERIC(5,2) NOT NULL,
        bp_sys     NUMERIC(5,1) NOT NULL,
        bp_dia     NUMERIC(5,1) NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );
    CREATE TABLE IF NOT EXISTS alarm_events (
        id          BIGSERIAL PRIMARY KEY,
        sim_time    NUMERIC(12,3) NOT NULL,
        param       TEXT NOT NULL,
        from_status TEXT NOT NULL,
        to_status   TEXT NOT NULL,
        message     TEXT NOT NULL,
        value       NUMERIC(10,2) NOT NULL,
        created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
    );`

	pgInsertSnapshotSQL = `INSERT INTO vitals_snapshots (
        sim_time,
        rhythm,
        heart_rate,
        spo2,
        resp_rate,
        temp_c,
        bp_sys,
        bp_dia,
        created_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    );`

	pgListRecentSnapshotsSQL = `SELECT
        id,
        sim_time::text,
        rhythm,
        heart_rate::text,
        spo2::text,
        resp_rate::text,
        temp_c::text,
        bp_sys::text,
        bp_dia::text,
        created_at
    FROM vitals_snapshots
    ORDER BY sim_time DESC
    LIMIT $1;`

	pgListSnapshotsBetweenSQL = `SELECT
        id,
        sim_time::text,
        rhythm,
        heart_rate::text,
        spo2::text,
        resp_rate::text,
        temp_c::text,
        bp_sys::text,
        bp_dia::text,
        created_at
    FROM vitals_snapshots
    WHERE sim_time >= $1
      AND sim_time < $2
    ORDER BY sim_time
    LIMIT $3;`

	pgCountSnapshotsSQL = `SELECT COUNT(*) FROM vitals_snapshots;`

	pgInsertAlarmEventSQL = `INSERT INTO alarm_events (
        sim_time,
        param,
        from_status,
        to_status,
        message,
        value,
        created_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    RETURNING id;`

	pgListRecentAlarmEventsSQL = `SELECT
        id,
        sim_time::text,
        param,
        from_status,
        to_status,
        message,
        value::text,
        created_at
    FROM alarm_events
    ORDER BY id DESC
    LIMIT $1;`

	pgResetSessionSQL = `TRUNCATE vitals_snapshots, alarm_events RESTART IDENTITY;`
)

// SnapshotStore defines operations for vitals snapshot persistence.
type SnapshotStore interface {
	InsertSnapshot(ctx context.Context, rec SnapshotRecord) error
	ListRecentSnapshots(ctx context.Context, limit int) ([]SnapshotRecord, error)
	ListSnapshotsBetween(ctx context.Context, from, to decimal.Decimal, limit int) ([]SnapshotRecord, error)
	CountSnapshots(ctx context.Context) (int64, error)
}

// AlarmEventStore defines operations for alarm auditing.
type AlarmEventStore interface {
	InsertAlarmEvent(ctx context.Context, ev AlarmEvent) (AlarmEvent, error)
	ListRecentAlarmEvents(ctx context.Context, limit int) ([]AlarmEvent, error)
}

// Recorder is the session recorder used by the run loop. Only the active run
// is kept: ResetSession drops everything recorded so far.
type Recorder interface {
	SnapshotStore
	AlarmEventStore
	ResetSession(ctx context.Context) error
	Close()
}

// PGStore records the session in PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wires a pgx pool into a PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Close releases the underlying pool resources.
func (s *PGStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *PGStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the session tables when missing.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, pgSchemaSQL); execErr != nil {
		return fmt.Errorf("ensure schema: %w", execErr)
	}
	return nil
}

// ResetSession truncates both session tables.
func (s *PGStore) ResetSession(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, pgResetSessionSQL); execErr != nil {
		return fmt.Errorf("reset session: %w", execErr)
	}
	return nil
}

// InsertSnapshot persists a vitals snapshot.
func (s *PGStore) InsertSnapshot(ctx context.Context, rec SnapshotRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var hr interface{}
	if rec.HeartRate != nil {
		hr = rec.HeartRate.String()
	}

	_, execErr := pool.Exec(ctx, pgInsertSnapshotSQL,
		rec.SimTime.String(),
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
func (s *PGStore) ListRecentSnapshots(ctx context.Context, limit int) ([]SnapshotRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, pgListRecentSnapshotsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent snapshots: %w", queryErr)
	}
	defer rows.Close()

	return collectPGSnapshots(rows, limit)
}

// ListSnapshotsBetween lists snapshots with from <= sim_time < to in time order.
func (s *PGStore) ListSnapshotsBetween(ctx context.Context, from, to decimal.Decimal, limit int) ([]SnapshotRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, pgListSnapshotsBetweenSQL, from.String(), to.String(), limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list snapshots between: %w", queryErr)
	}
	defer rows.Close()

	return collectPGSnapshots(rows, 0)
}

func collectPGSnapshots(rows pgx.Rows, capacity int) ([]SnapshotRecord, error) {
	out := make([]SnapshotRecord, 0, capacity)
	for rows.Next() {
		rec, scanErr := scanSnapshot(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// CountSnapshots counts stored snapshots.
func (s *PGStore) CountSnapshots(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, pgCountSnapshotsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count snapshots: %w", scanErr)
	}
	return count, nil
}

// InsertAlarmEvent persists an alarm transition and returns it with its ID.
func (s *PGStore) InsertAlarmEvent(ctx context.Context, ev AlarmEvent) (AlarmEvent, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlarmEvent{}, err
	}

	row := pool.QueryRow(ctx, pgInsertAlarmEventSQL,
		ev.SimTime.String(),
		ev.Param,
		ev.FromStatus,
		ev.ToStatus,
		ev.Message,
		ev.Value.String(),
		ev.CreatedAt,
	)
	if scanErr := row.Scan(&ev.ID); scanErr != nil {
		return AlarmEvent{}, fmt.Errorf("insert alarm event: %w", scanErr)
	}
	return ev, nil
}

// ListRecentAlarmEvents lists the newest alarm events first.
func (s *PGStore) ListRecentAlarmEvents(ctx context.Context, limit int) ([]AlarmEvent, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, pgListRecentAlarmEventsSQL, limit)
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
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}

// rowScanner is satisfied by both pgx.Rows and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (SnapshotRecord, error) {
	var (
		rec                                 SnapshotRecord
		simTime, spo2, resp, temp, sys, dia string
		heartRate                           sql.NullString
	)
	if err := row.Scan(
		&rec.ID,
		&simTime,
		&rec.Rhythm,
		&heartRate,
		&spo2,
		&resp,
		&temp,
		&sys,
		&dia,
		&rec.CreatedAt,
	); err != nil {
		return SnapshotRecord{}, err
	}

	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"sim_time", simTime, &rec.SimTime},
		{"spo2", spo2, &rec.SpO2},
		{"resp_rate", resp, &rec.RespRate},
		{"temp_c", temp, &rec.TempC},
		{"bp_sys", sys, &rec.BPSys},
		{"bp_dia", dia, &rec.BPDia},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return SnapshotRecord{}, fmt.Errorf("parse %s: %w", f.name, err)
		}
		*f.dst = v
	}
	if heartRate.Valid {
		hr, err := decimal.NewFromString(heartRate.String)
		if err != nil {
			return SnapshotRecord{}, fmt.Errorf("parse heart_rate: %w", err)
		}
		rec.HeartRate = &hr
	}
	return rec, nil
}

func scanAlarmEvent(row rowScanner) (AlarmEvent, error) {
	var (
		ev             AlarmEvent
		simTime, value string
	)
	if err := row.Scan(
		&ev.ID,
		&simTime,
		&ev.Param,
		&ev.FromStatus,
		&ev.ToStatus,
		&ev.Message,
		&value,
		&ev.CreatedAt,
	); err != nil {
		return AlarmEvent{}, err
	}

	var convErr error
	ev.SimTime, convErr = decimal.NewFromString(simTime)
	if convErr != nil {
		return AlarmEvent{}, fmt.Errorf("parse sim_time: %w", convErr)
	}
	ev.Value, convErr = decimal.NewFromString(value)
	if convErr != nil {
		return AlarmEvent{}, fmt.Errorf("parse value: %w", convErr)
	}
	return ev, nil
}

var _ Recorder = (*PGStore)(nil)
