package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steinik-group/rentscout/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteMarkSeenIfNew(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	meta := SeenMeta{ExternalID: "287654321", Link: "https://www.cian.ru/sale/flat/287654321/", Price: 28_500_000}

	isNew, err := s.MarkSeenIfNew(ctx, meta)
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = s.MarkSeenIfNew(ctx, meta)
	require.NoError(t, err)
	assert.False(t, isNew)

	seen, err := s.Seen(ctx, "287654321")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = s.Seen(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, seen)

	n, err := s.CountSeen(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSQLiteListSeenOrder(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"1", "2", "3"} {
		_, err := s.MarkSeenIfNew(ctx, SeenMeta{ExternalID: id, SeenAt: base.Add(time.Duration(i) * time.Hour)})
		require.NoError(t, err)
	}

	metas, err := s.ListSeen(ctx, 2)
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, "3", metas[0].ExternalID)
	assert.Equal(t, "2", metas[1].ExternalID)
}

func TestSQLiteImportSeenSkipsExisting(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.MarkSeenIfNew(ctx, SeenMeta{ExternalID: "1"})
	require.NoError(t, err)

	imported, err := s.ImportSeen(ctx, []SeenMeta{
		{ExternalID: "1"},
		{ExternalID: "2"},
		{ExternalID: "3"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), imported)

	n, err := s.CountSeen(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestSQLiteQuotaCap(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	day := "2026-08-29"

	for i := 0; i < 3; i++ {
		ok, err := s.ReserveQuota(ctx, day, 3)
		require.NoError(t, err)
		assert.True(t, ok, "reservation %d", i)
	}

	ok, err := s.ReserveQuota(ctx, day, 3)
	require.NoError(t, err)
	assert.False(t, ok, "cap reached")

	used, err := s.QuotaUsed(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 3, used)

	// Another day starts fresh.
	ok, err = s.ReserveQuota(ctx, "2026-08-30", 3)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLiteQuotaRelease(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	day := "2026-08-29"

	ok, err := s.ReserveQuota(ctx, day, 1)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.ReleaseQuota(ctx, day))
	used, err := s.QuotaUsed(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 0, used)

	// Releasing past zero is a no-op.
	require.NoError(t, s.ReleaseQuota(ctx, day))
	used, err = s.QuotaUsed(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, 0, used)

	ok, err = s.ReserveQuota(ctx, day, 1)
	require.NoError(t, err)
	assert.True(t, ok, "released slot is reusable")
}

func TestSQLiteQuotaUsedUnknownDay(t *testing.T) {
	s := newTestSQLite(t)
	used, err := s.QuotaUsed(context.Background(), "1999-01-01")
	require.NoError(t, err)
	assert.Zero(t, used)
}

func TestSQLiteSweepLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	sweep, err := s.CreateSweep(ctx, 42)
	require.NoError(t, err)
	require.NotEmpty(t, sweep.ID)

	stats := model.SweepStats{PagesScanned: 5, CardsSeen: 120, Emitted: 7}
	require.NoError(t, s.FinishSweep(ctx, sweep.ID, stats))

	sweeps, err := s.LastSweeps(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sweeps, 1)
	assert.Equal(t, sweep.ID, sweeps[0].ID)
	assert.Equal(t, int64(42), sweeps[0].SessionID)
	assert.Equal(t, stats, sweeps[0].Stats)
	require.NotNil(t, sweeps[0].FinishedAt)
}

func TestSQLiteFinishSweepNotFound(t *testing.T) {
	s := newTestSQLite(t)
	err := s.FinishSweep(context.Background(), "no-such-sweep", model.SweepStats{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteCriteriaRoundTrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.LoadCriteria(ctx, "default")
	assert.ErrorIs(t, err, ErrNotFound)

	c := model.DefaultCriteria()
	c.DistrictAllowlist = []string{"Хамовники", "Якиманка"}
	require.NoError(t, s.SaveCriteria(ctx, "default", c))

	loaded, err := s.LoadCriteria(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, c, *loaded)

	// Overwrite through the same name.
	c.PriceMax = 50_000_000
	require.NoError(t, s.SaveCriteria(ctx, "default", c))
	loaded, err = s.LoadCriteria(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, int64(50_000_000), loaded.PriceMax)
}
