package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/steinik-group/rentscout/internal/db"
	"github.com/steinik-group/rentscout/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Tests inject pgxmock here.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS seen_listings (
	external_id    TEXT PRIMARY KEY,
	link           TEXT NOT NULL DEFAULT '',
	district       TEXT NOT NULL DEFAULT '',
	price          BIGINT NOT NULL DEFAULT 0,
	sink_record_id TEXT NOT NULL DEFAULT '',
	seen_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS quota_days (
	day     TEXT PRIMARY KEY,
	emitted INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sweeps (
	id          TEXT PRIMARY KEY,
	session_id  BIGINT NOT NULL,
	stats       JSONB,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS criteria_profiles (
	name       TEXT PRIMARY KEY,
	body       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_seen_listings_seen_at ON seen_listings(seen_at);
CREATE INDEX IF NOT EXISTS idx_sweeps_session ON sweeps(session_id, started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) MarkSeenIfNew(ctx context.Context, meta SeenMeta) (bool, error) {
	seenAt := meta.SeenAt
	if seenAt.IsZero() {
		seenAt = time.Now().UTC()
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO seen_listings (external_id, link, district, price, sink_record_id, seen_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (external_id) DO NOTHING`,
		meta.ExternalID, meta.Link, meta.District, meta.Price, meta.SinkRecordID, seenAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: mark seen %s", meta.ExternalID)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Seen(ctx context.Context, externalID string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM seen_listings WHERE external_id = $1`, externalID,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: seen %s", externalID)
	}
	return true, nil
}

func (s *PostgresStore) ListSeen(ctx context.Context, limit int) ([]SeenMeta, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT external_id, link, district, price, sink_record_id, seen_at
		 FROM seen_listings ORDER BY seen_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list seen")
	}
	defer rows.Close()

	var metas []SeenMeta
	for rows.Next() {
		var m SeenMeta
		if err := rows.Scan(&m.ExternalID, &m.Link, &m.District, &m.Price, &m.SinkRecordID, &m.SeenAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan seen")
		}
		metas = append(metas, m)
	}
	return metas, eris.Wrap(rows.Err(), "postgres: list seen rows")
}

func (s *PostgresStore) CountSeen(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM seen_listings`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count seen")
}

// ImportSeen bulk-loads externally known listings through a staged COPY,
// skipping ids already in the seen set.
func (s *PostgresStore) ImportSeen(ctx context.Context, metas []SeenMeta) (int64, error) {
	if len(metas) == 0 {
		return 0, nil
	}
	rows := make([][]any, 0, len(metas))
	for _, m := range metas {
		seenAt := m.SeenAt
		if seenAt.IsZero() {
			seenAt = time.Now().UTC()
		}
		rows = append(rows, []any{m.ExternalID, m.Link, m.District, m.Price, m.SinkRecordID, seenAt})
	}
	n, err := db.InsertIgnore(ctx, s.pool, "seen_listings",
		[]string{"external_id", "link", "district", "price", "sink_record_id", "seen_at"},
		[]string{"external_id"}, rows,
	)
	return n, eris.Wrap(err, "postgres: import seen")
}

func (s *PostgresStore) ReserveQuota(ctx context.Context, day string, capacity int) (bool, error) {
	if capacity <= 0 {
		return false, nil
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO quota_days (day, emitted) VALUES ($1, 1)
		 ON CONFLICT (day) DO UPDATE SET emitted = quota_days.emitted + 1
		 WHERE quota_days.emitted < $2`,
		day, capacity,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: reserve quota %s", day)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) ReleaseQuota(ctx context.Context, day string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE quota_days SET emitted = emitted - 1 WHERE day = $1 AND emitted > 0`, day,
	)
	return eris.Wrapf(err, "postgres: release quota %s", day)
}

func (s *PostgresStore) QuotaUsed(ctx context.Context, day string) (int, error) {
	var used int
	err := s.pool.QueryRow(ctx,
		`SELECT emitted FROM quota_days WHERE day = $1`, day,
	).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: quota used %s", day)
	}
	return used, nil
}

func (s *PostgresStore) CreateSweep(ctx context.Context, sessionID int64) (*model.Sweep, error) {
	sweep := &model.Sweep{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sweeps (id, session_id, started_at) VALUES ($1, $2, $3)`,
		sweep.ID, sweep.SessionID, sweep.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert sweep")
	}
	return sweep, nil
}

func (s *PostgresStore) FinishSweep(ctx context.Context, sweepID string, stats model.SweepStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal sweep stats")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE sweeps SET stats = $1, finished_at = $2 WHERE id = $3`,
		string(statsJSON), time.Now().UTC(), sweepID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish sweep %s", sweepID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: sweep %s", sweepID)
	}
	return nil
}

func (s *PostgresStore) LastSweeps(ctx context.Context, limit int) ([]model.Sweep, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, stats, started_at, finished_at
		 FROM sweeps ORDER BY started_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sweeps")
	}
	defer rows.Close()

	var sweeps []model.Sweep
	for rows.Next() {
		var (
			sw        model.Sweep
			statsJSON *string
			finished  *time.Time
		)
		if err := rows.Scan(&sw.ID, &sw.SessionID, &statsJSON, &sw.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sweep")
		}
		if statsJSON != nil && *statsJSON != "" {
			if err := json.Unmarshal([]byte(*statsJSON), &sw.Stats); err != nil {
				return nil, eris.Wrapf(err, "postgres: unmarshal sweep stats %s", sw.ID)
			}
		}
		sw.FinishedAt = finished
		sweeps = append(sweeps, sw)
	}
	return sweeps, eris.Wrap(rows.Err(), "postgres: list sweeps rows")
}

func (s *PostgresStore) LoadCriteria(ctx context.Context, name string) (*model.Criteria, error) {
	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM criteria_profiles WHERE name = $1`, name,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load criteria %s", name)
	}
	var c model.Criteria
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal criteria %s", name)
	}
	return &c, nil
}

func (s *PostgresStore) SaveCriteria(ctx context.Context, name string, c model.Criteria) error {
	body, err := json.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal criteria")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO criteria_profiles (name, body, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`,
		name, string(body), time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save criteria %s", name)
}
