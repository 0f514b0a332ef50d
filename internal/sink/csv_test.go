package sink

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steinik-group/rentscout/internal/model"
)

func testListing(id string) *model.CandidateListing {
	return &model.CandidateListing{
		ExternalID:   id,
		Link:         "https://www.cian.ru/sale/flat/" + id + "/",
		Price:        28_500_000,
		PricePerArea: 524_862,
		AreaTotal:    54.3,
		Rooms:        2,
		Floor:        7,
		FloorTotal:   12,
		District:     "Хамовники",
		Renovation:   model.RenovationEuro,
		SellerType:   model.SellerOwner,
		CapturedAt:   time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC),
	}
}

func TestCSVAppendAndExists(t *testing.T) {
	s := NewCSV(filepath.Join(t.TempDir(), "listings.csv"))
	ctx := context.Background()

	exists, err := s.Exists(ctx, "1")
	require.NoError(t, err)
	assert.False(t, exists, "missing file means nothing exists")

	id, err := s.Append(ctx, testListing("1"))
	require.NoError(t, err)
	assert.Equal(t, "1", id)

	id, err = s.Append(ctx, testListing("2"))
	require.NoError(t, err)
	assert.Equal(t, "2", id)

	exists, err = s.Exists(ctx, "1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.Exists(ctx, "99")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCSVListSeen(t *testing.T) {
	s := NewCSV(filepath.Join(t.TempDir(), "listings.csv"))
	ctx := context.Background()

	metas, err := s.ListSeen(ctx)
	require.NoError(t, err)
	assert.Empty(t, metas)

	_, err = s.Append(ctx, testListing("10"))
	require.NoError(t, err)
	_, err = s.Append(ctx, testListing("11"))
	require.NoError(t, err)

	metas, err = s.ListSeen(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, "10", metas[0].ExternalID)
	assert.Equal(t, "https://www.cian.ru/sale/flat/10/", metas[0].Link)
	assert.Equal(t, int64(28_500_000), metas[0].Price)
	assert.Equal(t, "Хамовники", metas[0].District)
	assert.Equal(t, "1", metas[0].SinkRecordID)
	assert.Equal(t, time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC), metas[0].SeenAt)
	assert.Equal(t, "11", metas[1].ExternalID)
}
