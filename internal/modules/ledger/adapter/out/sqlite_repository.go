package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"habitsync/internal/modules/ledger/domain"
	ledgerout "habitsync/internal/modules/ledger/port/out"
	"habitsync/internal/platform/tx"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

// OpenSQLite opens the ledger database. One connection serializes writers,
// which is what the streak compare-and-swap relies on.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(ctx context.Context, db *sql.DB) (ledgerout.Repository, error) {
	repo := &SQLiteRepository{db: db}
	if err := repo.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
  identity TEXT NOT NULL,
  session_id TEXT NOT NULL,
  actual_duration_sec INTEGER NOT NULL,
  target_duration_sec INTEGER NOT NULL,
  aimed_sessions_per_day INTEGER NOT NULL,
  occurred_at TEXT NOT NULL,
  base_points INTEGER NOT NULL,
  bonus_points INTEGER NOT NULL,
  total_points INTEGER NOT NULL,
  time_streak INTEGER NOT NULL,
  daily_streak INTEGER NOT NULL,
  recorded_at TEXT NOT NULL,
  PRIMARY KEY (identity, session_id)
);
CREATE TABLE IF NOT EXISTS streaks (
  identity TEXT PRIMARY KEY,
  time_streak INTEGER NOT NULL,
  daily_streak INTEGER NOT NULL,
  last_qualifying_date TEXT NOT NULL DEFAULT '',
  version INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS goals (
  identity TEXT PRIMARY KEY,
  time_target_minutes INTEGER NOT NULL,
  daily_frequency INTEGER NOT NULL,
  time_target_updated_at TEXT NOT NULL DEFAULT '',
  daily_frequency_updated_at TEXT NOT NULL DEFAULT '',
  source TEXT NOT NULL DEFAULT ''
);
`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create ledger tables: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) FindEntry(ctx context.Context, identity, sessionID string) (domain.Entry, bool, error) {
	const query = `
SELECT identity, session_id, actual_duration_sec, target_duration_sec, aimed_sessions_per_day, occurred_at,
       base_points, bonus_points, total_points, time_streak, daily_streak, recorded_at
FROM sessions WHERE identity = ? AND session_id = ?;
`
	entry, err := scanEntry(tx.From(ctx, r.db).QueryRowContext(ctx, query, identity, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Entry{}, false, nil
	}
	if err != nil {
		return domain.Entry{}, false, fmt.Errorf("find session: %w", err)
	}
	return entry, true, nil
}

func (r *SQLiteRepository) InsertEntry(ctx context.Context, entry domain.Entry) error {
	const stmt = `
INSERT INTO sessions (identity, session_id, actual_duration_sec, target_duration_sec, aimed_sessions_per_day, occurred_at,
                      base_points, bonus_points, total_points, time_streak, daily_streak, recorded_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`
	_, err := tx.From(ctx, r.db).ExecContext(ctx, stmt,
		entry.Identity,
		entry.SessionID,
		entry.ActualDurationSec,
		entry.TargetDurationSec,
		entry.AimedSessionsPerDay,
		entry.OccurredAt.UTC().Format(timeLayout),
		entry.BasePoints,
		entry.BonusPoints,
		entry.TotalPoints,
		entry.TimeStreak,
		entry.DailyStreak,
		entry.RecordedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// ListEntries returns newest first by insertion order.
func (r *SQLiteRepository) ListEntries(ctx context.Context, identity string, limit int) ([]domain.Entry, error) {
	const query = `
SELECT identity, session_id, actual_duration_sec, target_duration_sec, aimed_sessions_per_day, occurred_at,
       base_points, bonus_points, total_points, time_streak, daily_streak, recorded_at
FROM sessions WHERE identity = ? ORDER BY rowid DESC LIMIT ?;
`
	rows, err := tx.From(ctx, r.db).QueryContext(ctx, query, identity, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	entries := []domain.Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return entries, nil
}

func (r *SQLiteRepository) GetStreak(ctx context.Context, identity string) (domain.Streak, error) {
	const query = `SELECT time_streak, daily_streak, last_qualifying_date, version FROM streaks WHERE identity = ?;`
	streak := domain.Streak{}
	err := tx.From(ctx, r.db).QueryRowContext(ctx, query, identity).Scan(
		&streak.TimeStreak,
		&streak.DailyStreak,
		&streak.LastQualifyingDate,
		&streak.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Streak{}, nil
	}
	if err != nil {
		return domain.Streak{}, fmt.Errorf("get streak: %w", err)
	}
	return streak, nil
}

func (r *SQLiteRepository) PutStreak(ctx context.Context, identity string, streak domain.Streak) error {
	const stmt = `
INSERT INTO streaks (identity, time_streak, daily_streak, last_qualifying_date, version)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(identity) DO UPDATE SET
  time_streak=excluded.time_streak,
  daily_streak=excluded.daily_streak,
  last_qualifying_date=excluded.last_qualifying_date,
  version=excluded.version;
`
	_, err := tx.From(ctx, r.db).ExecContext(ctx, stmt, identity, streak.TimeStreak, streak.DailyStreak, streak.LastQualifyingDate, streak.Version)
	if err != nil {
		return fmt.Errorf("put streak: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetGoal(ctx context.Context, identity string) (domain.Goal, error) {
	const query = `
SELECT time_target_minutes, daily_frequency, time_target_updated_at, daily_frequency_updated_at, source
FROM goals WHERE identity = ?;
`
	var (
		goal                  domain.Goal
		targetAt, frequencyAt string
	)
	err := tx.From(ctx, r.db).QueryRowContext(ctx, query, identity).Scan(
		&goal.TimeTargetMinutes,
		&goal.DailyFrequency,
		&targetAt,
		&frequencyAt,
		&goal.Source,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Goal{}, nil
	}
	if err != nil {
		return domain.Goal{}, fmt.Errorf("get goal: %w", err)
	}
	goal.TimeTargetUpdatedAt = parseTime(targetAt)
	goal.DailyFrequencyUpdatedAt = parseTime(frequencyAt)
	return goal, nil
}

func (r *SQLiteRepository) PutGoal(ctx context.Context, identity string, goal domain.Goal) error {
	const stmt = `
INSERT INTO goals (identity, time_target_minutes, daily_frequency, time_target_updated_at, daily_frequency_updated_at, source)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(identity) DO UPDATE SET
  time_target_minutes=excluded.time_target_minutes,
  daily_frequency=excluded.daily_frequency,
  time_target_updated_at=excluded.time_target_updated_at,
  daily_frequency_updated_at=excluded.daily_frequency_updated_at,
  source=excluded.source;
`
	_, err := tx.From(ctx, r.db).ExecContext(ctx, stmt,
		identity,
		goal.TimeTargetMinutes,
		goal.DailyFrequency,
		formatTime(goal.TimeTargetUpdatedAt),
		formatTime(goal.DailyFrequencyUpdatedAt),
		goal.Source,
	)
	if err != nil {
		return fmt.Errorf("put goal: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (domain.Entry, error) {
	var (
		entry                  domain.Entry
		occurredAt, recordedAt string
	)
	err := row.Scan(
		&entry.Identity,
		&entry.SessionID,
		&entry.ActualDurationSec,
		&entry.TargetDurationSec,
		&entry.AimedSessionsPerDay,
		&occurredAt,
		&entry.BasePoints,
		&entry.BonusPoints,
		&entry.TotalPoints,
		&entry.TimeStreak,
		&entry.DailyStreak,
		&recordedAt,
	)
	if err != nil {
		return domain.Entry{}, err
	}
	entry.OccurredAt = parseTime(occurredAt)
	entry.RecordedAt = parseTime(recordedAt)
	return entry, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
