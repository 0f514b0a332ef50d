package quota

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steinik-group/rentscout/internal/store"
)

func newController(t *testing.T, capacity int) *Controller {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "quota.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return New(st, capacity)
}

func TestTryReserveUntilExhausted(t *testing.T) {
	c := newController(t, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := c.TryReserve(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := c.TryReserve(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	remaining, err := c.Remaining(ctx)
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestReleaseCompensates(t *testing.T) {
	c := newController(t, 1)
	ctx := context.Background()

	ok, err := c.TryReserve(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, c.Release(ctx))

	ok, err = c.TryReserve(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "released slot is available again")
}

func TestRolloverAtMidnightUTC(t *testing.T) {
	c := newController(t, 1)
	ctx := context.Background()

	day1 := time.Date(2026, 8, 29, 23, 50, 0, 0, time.UTC)
	c.WithNow(func() time.Time { return day1 })

	ok, err := c.TryReserve(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = c.TryReserve(ctx)
	require.NoError(t, err)
	require.False(t, ok, "day one exhausted")

	c.WithNow(func() time.Time { return day1.Add(20 * time.Minute) })

	ok, err = c.TryReserve(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "new UTC day has a fresh quota")

	remaining, err := c.Remaining(ctx)
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestDayFormat(t *testing.T) {
	c := newController(t, 1).WithNow(func() time.Time {
		return time.Date(2026, 1, 5, 3, 0, 0, 0, time.FixedZone("MSK", 3*3600))
	})
	assert.Equal(t, "2026-01-05", c.Day())

	// Early morning Moscow is still the previous UTC day.
	c.WithNow(func() time.Time {
		return time.Date(2026, 1, 5, 1, 0, 0, 0, time.FixedZone("MSK", 3*3600))
	})
	assert.Equal(t, "2026-01-04", c.Day())
}
