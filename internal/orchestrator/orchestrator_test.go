package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steinik-group/rentscout/internal/classify"
	"github.com/steinik-group/rentscout/internal/criteria"
	"github.com/steinik-group/rentscout/internal/dedup"
	"github.com/steinik-group/rentscout/internal/extract"
	"github.com/steinik-group/rentscout/internal/fetcher"
	"github.com/steinik-group/rentscout/internal/model"
	"github.com/steinik-group/rentscout/internal/quota"
	"github.com/steinik-group/rentscout/internal/store"
	"github.com/steinik-group/rentscout/pkg/cian"
)

// stubFetch serves pre-built offer pages; pages beyond the slice are empty.
// Detail targets return ErrEmpty and are tallied separately. onSearch runs
// before each search-page fetch.
type stubFetch struct {
	pages    [][]cian.Offer
	onSearch func(page int)

	mu          sync.Mutex
	calls       int
	detailCalls int
}

func (f *stubFetch) Fetch(_ context.Context, target fetcher.Target) (*fetcher.Result, error) {
	f.mu.Lock()
	f.calls++
	if target.IsDetail() {
		f.detailCalls++
		f.mu.Unlock()
		return nil, fetcher.ErrEmpty
	}
	f.mu.Unlock()

	if f.onSearch != nil {
		f.onSearch(target.Page)
	}
	if target.Page > len(f.pages) || len(f.pages[target.Page-1]) == 0 {
		return nil, fetcher.ErrEmpty
	}
	return &fetcher.Result{Offers: f.pages[target.Page-1], FetchedAt: time.Now().UTC()}, nil
}

func (f *stubFetch) detailFetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detailCalls
}

// recordingSink collects appended listings; failUntil forces failures for
// the first N appends.
type recordingSink struct {
	appended  []string
	preloaded []store.SeenMeta
	failUntil int
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Append(_ context.Context, l *model.CandidateListing) (string, error) {
	if s.failUntil > 0 {
		s.failUntil--
		return "", errors.New("sink unavailable")
	}
	s.appended = append(s.appended, l.ExternalID)
	return "rec-" + strconv.Itoa(len(s.appended)), nil
}

func (s *recordingSink) Exists(_ context.Context, externalID string) (bool, error) {
	for _, id := range s.appended {
		if id == externalID {
			return true, nil
		}
	}
	return false, nil
}

func (s *recordingSink) ListSeen(context.Context) ([]store.SeenMeta, error) {
	return s.preloaded, nil
}

// recordingNotifier tallies pipeline events.
type recordingNotifier struct {
	mu        sync.Mutex
	emitted   []string
	sweeps    int
	quotaFull int
	lastQuota int
}

func (n *recordingNotifier) ListingEmitted(_ context.Context, l *model.CandidateListing) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.emitted = append(n.emitted, l.ExternalID)
}

func (n *recordingNotifier) SweepFinished(context.Context, *model.Sweep) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sweeps++
}

func (n *recordingNotifier) QuotaExhausted(_ context.Context, capacity int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.quotaFull++
	n.lastQuota = capacity
}

func offer(id int64) cian.Offer {
	var o cian.Offer
	o.ID = id
	o.TotalArea = "54.3"
	o.RoomsCount = 2
	o.FloorNumber = 7
	o.Building.FloorsCount = 12
	o.BargainTerms.Price = 28_500_000
	return o
}

type testRig struct {
	orch  *Orchestrator
	store *store.SQLiteStore
	sink  *recordingSink
	fetch *stubFetch
	crit  *criteria.FileSource
	notes *recordingNotifier
}

func newRig(t *testing.T, capacity int, fetch *stubFetch, sk *recordingSink) *testRig {
	return newRigCfg(t, Config{MaxPages: 5, IdleDelay: 20 * time.Millisecond}, capacity, fetch, sk)
}

func newRigCfg(t *testing.T, cfg Config, capacity int, fetch *stubFetch, sk *recordingSink) *testRig {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "orch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	crit := criteria.NewFileSource(filepath.Join(t.TempDir(), "criteria.yaml"))
	notes := &recordingNotifier{}
	orch := New(
		cfg,
		fetch,
		extract.New(extract.Options{}),
		classify.New(),
		crit,
		dedup.New(st),
		quota.New(st, capacity),
		sk,
		st,
		notes,
	)
	return &testRig{orch: orch, store: st, sink: sk, fetch: fetch, crit: crit, notes: notes}
}

func TestSweepEmitsNewListings(t *testing.T) {
	fetch := &stubFetch{pages: [][]cian.Offer{
		{offer(1), offer(2)},
		{offer(3)},
	}}
	rig := newRig(t, 100, fetch, &recordingSink{})
	ctx := context.Background()

	sweep, err := rig.orch.RunOnce(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, 2, sweep.Stats.PagesScanned)
	assert.Equal(t, 3, sweep.Stats.CardsSeen)
	assert.Equal(t, 3, sweep.Stats.Extracted)
	assert.Equal(t, 3, sweep.Stats.Emitted)
	assert.Zero(t, sweep.Stats.Duplicates)
	assert.Equal(t, 97, sweep.Stats.QuotaRemaining)
	assert.Equal(t, []string{"1", "2", "3"}, rig.sink.appended)
	assert.Equal(t, []string{"1", "2", "3"}, rig.notes.emitted)
	assert.Equal(t, 1, rig.notes.sweeps)
	require.NotNil(t, sweep.FinishedAt)

	seen, err := rig.store.Seen(ctx, "2")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestSecondSweepSkipsDuplicates(t *testing.T) {
	fetch := &stubFetch{pages: [][]cian.Offer{{offer(1), offer(2)}}}
	rig := newRig(t, 100, fetch, &recordingSink{})
	ctx := context.Background()

	_, err := rig.orch.RunOnce(ctx, 1)
	require.NoError(t, err)

	sweep, err := rig.orch.RunOnce(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, sweep.Stats.Emitted)
	assert.Equal(t, 2, sweep.Stats.Duplicates)
	assert.Len(t, rig.sink.appended, 2, "nothing appended twice")
}

func TestQuotaExhaustionStopsEmission(t *testing.T) {
	fetch := &stubFetch{pages: [][]cian.Offer{{offer(1), offer(2), offer(3)}}}
	rig := newRig(t, 1, fetch, &recordingSink{})
	ctx := context.Background()

	sweep, err := rig.orch.RunOnce(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, sweep.Stats.Emitted)
	assert.Zero(t, sweep.Stats.QuotaRemaining)
	assert.Equal(t, []string{"1"}, rig.sink.appended)

	// The cap-reached notice goes out exactly once.
	assert.Equal(t, 1, rig.notes.quotaFull)
	assert.Equal(t, 1, rig.notes.lastQuota)

	// Listings past the cap stay unmarked for the next day.
	seen, err := rig.store.Seen(ctx, "2")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestSinkFailureReleasesQuotaAndRetries(t *testing.T) {
	fetch := &stubFetch{pages: [][]cian.Offer{{offer(1)}}}
	sk := &recordingSink{failUntil: 1}
	rig := newRig(t, 10, fetch, sk)
	ctx := context.Background()

	sweep, err := rig.orch.RunOnce(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, sweep.Stats.Emitted)
	assert.Equal(t, 1, sweep.Stats.SinkErrors)
	assert.Equal(t, 10, sweep.Stats.QuotaRemaining, "reservation was released")

	seen, err := rig.store.Seen(ctx, "1")
	require.NoError(t, err)
	assert.False(t, seen, "failed emission is not marked seen")

	// The sink is healthy again; the same listing goes through.
	sweep, err = rig.orch.RunOnce(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, sweep.Stats.Emitted)
	assert.Equal(t, []string{"1"}, sk.appended)
}

func TestColdStartReconciliation(t *testing.T) {
	fetch := &stubFetch{pages: [][]cian.Offer{{offer(1), offer(2)}}}
	sk := &recordingSink{preloaded: []store.SeenMeta{
		{ExternalID: "1", SinkRecordID: "rec-old"},
	}}
	rig := newRig(t, 100, fetch, sk)

	sweep, err := rig.orch.RunOnce(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, sweep.Stats.Emitted, "only the unseen listing is emitted")
	assert.Equal(t, 1, sweep.Stats.Duplicates)
	assert.Equal(t, []string{"2"}, sk.appended)
}

func TestStartStopLifecycle(t *testing.T) {
	fetch := &stubFetch{}
	rig := newRig(t, 100, fetch, &recordingSink{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.Equal(t, StateIdle, rig.orch.State(1))
	assert.False(t, rig.orch.Stop(1), "stopping an idle session is a no-op")

	require.NoError(t, rig.orch.Start(ctx, 1))
	assert.ErrorIs(t, rig.orch.Start(ctx, 1), ErrAlreadyRunning)

	assert.True(t, rig.orch.Stop(1))
	require.Eventually(t, func() bool {
		return rig.orch.State(1) == StateStopped
	}, 2*time.Second, 10*time.Millisecond)

	// A stopped session can be started again.
	require.NoError(t, rig.orch.Start(ctx, 1))
	rig.orch.Stop(1)
	require.Eventually(t, func() bool {
		return rig.orch.State(1) == StateStopped
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunOnceWhileRunning(t *testing.T) {
	fetch := &stubFetch{}
	rig := newRig(t, 100, fetch, &recordingSink{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, rig.orch.Start(ctx, 7))
	_, err := rig.orch.RunOnce(ctx, 7)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	rig.orch.Stop(7)
	require.Eventually(t, func() bool {
		return rig.orch.State(7) == StateStopped
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStartRejectsInvalidCriteria(t *testing.T) {
	fetch := &stubFetch{pages: [][]cian.Offer{{offer(1)}}}
	rig := newRig(t, 100, fetch, &recordingSink{})
	ctx := context.Background()

	// area_min above area_max fails validation on load.
	require.NoError(t, os.WriteFile(rig.crit.Path, []byte("area_min: 100\narea_max: 10\n"), 0o644))

	err := rig.orch.Start(ctx, 1)
	require.Error(t, err)
	assert.Equal(t, StateIdle, rig.orch.State(1), "failed start leaves the session idle")

	_, err = rig.orch.RunOnce(ctx, 1)
	require.Error(t, err)
	assert.Equal(t, StateIdle, rig.orch.State(1))
	assert.Empty(t, rig.sink.appended)

	// A repaired profile starts normally.
	require.NoError(t, os.Remove(rig.crit.Path))
	sweep, err := rig.orch.RunOnce(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, sweep.Stats.Emitted)
}

func TestDetailEnrichmentSkipsRejectedListings(t *testing.T) {
	incomplete := func(id int64, price int64) cian.Offer {
		o := offer(id)
		o.FloorNumber = 0
		o.Building.FloorsCount = 0
		o.BargainTerms.Price = price
		return o
	}
	// One listing passes the price filter, one does not; both lack floors.
	fetch := &stubFetch{pages: [][]cian.Offer{{
		incomplete(1, 28_500_000),
		incomplete(2, 200_000_000),
	}}}
	rig := newRigCfg(t, Config{MaxPages: 5, EnrichDetails: true, EnrichConcurrency: 1}, 100, fetch, &recordingSink{})

	sweep, err := rig.orch.RunOnce(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, sweep.Stats.Emitted)
	assert.Equal(t, 1, sweep.Stats.Rejected)
	assert.Equal(t, 1, fetch.detailFetches(), "only the accepted listing is enriched")
}

func TestCriteriaSnapshotHeldForSweep(t *testing.T) {
	fetch := &stubFetch{pages: [][]cian.Offer{{offer(1)}, {offer(2)}}}
	rig := newRig(t, 100, fetch, &recordingSink{})
	ctx := context.Background()

	restrictive := model.DefaultCriteria()
	restrictive.PriceMax = 10_000_000
	fetch.onSearch = func(page int) {
		if page == 1 {
			require.NoError(t, rig.crit.Save(ctx, restrictive))
		}
	}

	sweep, err := rig.orch.RunOnce(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, sweep.Stats.Emitted, "in-flight sweep keeps its snapshot")
	assert.Zero(t, sweep.Stats.Rejected)

	sweep, err = rig.orch.RunOnce(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, sweep.Stats.Emitted)
	assert.Equal(t, 2, sweep.Stats.Rejected, "next sweep picks up the saved profile")
}

func TestSessionsAreIndependent(t *testing.T) {
	fetch := &stubFetch{pages: [][]cian.Offer{{offer(1)}}}
	rig := newRig(t, 100, fetch, &recordingSink{})
	ctx := context.Background()

	_, err := rig.orch.RunOnce(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, StateStopped, rig.orch.State(1))
	assert.Equal(t, StateIdle, rig.orch.State(2))

	stats, ok := rig.orch.Stats(1)
	require.True(t, ok)
	assert.Equal(t, 1, stats.Emitted)
	_, ok = rig.orch.Stats(2)
	assert.False(t, ok)
}
