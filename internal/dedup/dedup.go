// Package dedup enforces first-occurrence-wins over the persistent seen set.
package dedup

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/steinik-group/rentscout/internal/model"
	"github.com/steinik-group/rentscout/internal/store"
)

// Deduplicator answers "have we emitted this listing before" and records
// emissions. All state lives in the store; the deduplicator itself holds
// none, so concurrent sweeps share one seen set.
type Deduplicator struct {
	store store.Store
}

// New creates a Deduplicator over the given store.
func New(st store.Store) *Deduplicator {
	return &Deduplicator{store: st}
}

// IsNew reports whether the listing has never been emitted.
func (d *Deduplicator) IsNew(ctx context.Context, externalID string) (bool, error) {
	seen, err := d.store.Seen(ctx, externalID)
	if err != nil {
		return false, eris.Wrap(err, "dedup: check seen")
	}
	return !seen, nil
}

// MarkSeen records an emitted listing. Returns false when another sweep
// got there first; the caller must treat that as a duplicate.
func (d *Deduplicator) MarkSeen(ctx context.Context, l *model.CandidateListing, sinkRecordID string) (bool, error) {
	isNew, err := d.store.MarkSeenIfNew(ctx, store.SeenMeta{
		ExternalID:   l.ExternalID,
		Link:         l.Link,
		District:     l.District,
		Price:        l.Price,
		SinkRecordID: sinkRecordID,
		SeenAt:       time.Now().UTC(),
	})
	if err != nil {
		return false, eris.Wrapf(err, "dedup: mark seen %s", l.ExternalID)
	}
	return isNew, nil
}

// Reconcile seeds the seen set from records already present in the sink,
// so a fresh database does not re-emit everything on the first sweep.
func (d *Deduplicator) Reconcile(ctx context.Context, metas []store.SeenMeta) (int64, error) {
	n, err := d.store.ImportSeen(ctx, metas)
	if err != nil {
		return 0, eris.Wrap(err, "dedup: reconcile")
	}
	return n, nil
}
