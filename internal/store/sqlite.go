package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/steinik-group/rentscout/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS seen_listings (
	external_id    TEXT PRIMARY KEY,
	link           TEXT NOT NULL DEFAULT '',
	district       TEXT NOT NULL DEFAULT '',
	price          INTEGER NOT NULL DEFAULT 0,
	sink_record_id TEXT NOT NULL DEFAULT '',
	seen_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS quota_days (
	day     TEXT PRIMARY KEY,
	emitted INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sweeps (
	id          TEXT PRIMARY KEY,
	session_id  INTEGER NOT NULL,
	stats       TEXT,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS criteria_profiles (
	name       TEXT PRIMARY KEY,
	body       TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_seen_listings_seen_at ON seen_listings(seen_at);
CREATE INDEX IF NOT EXISTS idx_sweeps_session ON sweeps(session_id, started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// MarkSeenIfNew records the listing unless it is already in the seen set.
// The insert-or-ignore keeps first-occurrence-wins atomic under concurrent
// sweeps.
func (s *SQLiteStore) MarkSeenIfNew(ctx context.Context, meta SeenMeta) (bool, error) {
	seenAt := meta.SeenAt
	if seenAt.IsZero() {
		seenAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO seen_listings (external_id, link, district, price, sink_record_id, seen_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(external_id) DO NOTHING`,
		meta.ExternalID, meta.Link, meta.District, meta.Price, meta.SinkRecordID, seenAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: mark seen %s", meta.ExternalID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: mark seen rows affected")
	}
	return n == 1, nil
}

func (s *SQLiteStore) Seen(ctx context.Context, externalID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM seen_listings WHERE external_id = ?`, externalID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: seen %s", externalID)
	}
	return true, nil
}

func (s *SQLiteStore) ListSeen(ctx context.Context, limit int) ([]SeenMeta, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT external_id, link, district, price, sink_record_id, seen_at
		 FROM seen_listings ORDER BY seen_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list seen")
	}
	defer rows.Close()

	var metas []SeenMeta
	for rows.Next() {
		var m SeenMeta
		if err := rows.Scan(&m.ExternalID, &m.Link, &m.District, &m.Price, &m.SinkRecordID, &m.SeenAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan seen")
		}
		metas = append(metas, m)
	}
	return metas, eris.Wrap(rows.Err(), "sqlite: list seen rows")
}

func (s *SQLiteStore) CountSeen(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seen_listings`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count seen")
}

// ImportSeen loads externally known listings into the seen set, skipping
// ids already present. Used to reconcile against the sink on a cold start.
func (s *SQLiteStore) ImportSeen(ctx context.Context, metas []SeenMeta) (int64, error) {
	if len(metas) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import seen begin")
	}
	defer tx.Rollback()

	var imported int64
	for _, m := range metas {
		seenAt := m.SeenAt
		if seenAt.IsZero() {
			seenAt = time.Now().UTC()
		}
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO seen_listings (external_id, link, district, price, sink_record_id, seen_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			m.ExternalID, m.Link, m.District, m.Price, m.SinkRecordID, seenAt,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: import seen %s", m.ExternalID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: import seen rows affected")
		}
		imported += n
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: import seen commit")
	}
	return imported, nil
}

// ReserveQuota atomically claims one emission slot for the day. The upsert
// increments only while the count stays below the cap, so concurrent
// reservations can never overshoot.
func (s *SQLiteStore) ReserveQuota(ctx context.Context, day string, capacity int) (bool, error) {
	if capacity <= 0 {
		return false, nil
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO quota_days (day, emitted) VALUES (?, 1)
		 ON CONFLICT(day) DO UPDATE SET emitted = emitted + 1 WHERE quota_days.emitted < ?`,
		day, capacity,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: reserve quota %s", day)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: reserve quota rows affected")
	}
	return n == 1, nil
}

// ReleaseQuota returns one reserved slot, e.g. after a failed sink append.
// The count never goes below zero.
func (s *SQLiteStore) ReleaseQuota(ctx context.Context, day string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE quota_days SET emitted = emitted - 1 WHERE day = ? AND emitted > 0`, day,
	)
	return eris.Wrapf(err, "sqlite: release quota %s", day)
}

func (s *SQLiteStore) QuotaUsed(ctx context.Context, day string) (int, error) {
	var used int
	err := s.db.QueryRowContext(ctx,
		`SELECT emitted FROM quota_days WHERE day = ?`, day,
	).Scan(&used)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: quota used %s", day)
	}
	return used, nil
}

func (s *SQLiteStore) CreateSweep(ctx context.Context, sessionID int64) (*model.Sweep, error) {
	sweep := &model.Sweep{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sweeps (id, session_id, started_at) VALUES (?, ?, ?)`,
		sweep.ID, sweep.SessionID, sweep.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert sweep")
	}
	return sweep, nil
}

func (s *SQLiteStore) FinishSweep(ctx context.Context, sweepID string, stats model.SweepStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal sweep stats")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sweeps SET stats = ?, finished_at = ? WHERE id = ?`,
		string(statsJSON), time.Now().UTC(), sweepID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish sweep %s", sweepID)
	}
	return checkRowsAffected(res, "sweep", sweepID)
}

func (s *SQLiteStore) LastSweeps(ctx context.Context, limit int) ([]model.Sweep, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, stats, started_at, finished_at
		 FROM sweeps ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sweeps")
	}
	defer rows.Close()

	var sweeps []model.Sweep
	for rows.Next() {
		var (
			sw        model.Sweep
			statsJSON sql.NullString
			finished  sql.NullTime
		)
		if err := rows.Scan(&sw.ID, &sw.SessionID, &statsJSON, &sw.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sweep")
		}
		if statsJSON.Valid && statsJSON.String != "" {
			if err := json.Unmarshal([]byte(statsJSON.String), &sw.Stats); err != nil {
				return nil, eris.Wrapf(err, "sqlite: unmarshal sweep stats %s", sw.ID)
			}
		}
		if finished.Valid {
			sw.FinishedAt = &finished.Time
		}
		sweeps = append(sweeps, sw)
	}
	return sweeps, eris.Wrap(rows.Err(), "sqlite: list sweeps rows")
}

func (s *SQLiteStore) LoadCriteria(ctx context.Context, name string) (*model.Criteria, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM criteria_profiles WHERE name = ?`, name,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load criteria %s", name)
	}
	var c model.Criteria
	if err := json.Unmarshal([]byte(body), &c); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal criteria %s", name)
	}
	return &c, nil
}

func (s *SQLiteStore) SaveCriteria(ctx context.Context, name string, c model.Criteria) error {
	body, err := json.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal criteria")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO criteria_profiles (name, body, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		name, string(body), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save criteria %s", name)
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", entity, id)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: %s %s", entity, id)
	}
	return nil
}
