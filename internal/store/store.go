// Package store persists the seen set, daily emission quota, sweep records,
// and named criteria profiles.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/steinik-group/rentscout/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// SeenMeta is what the seen set remembers about an emitted listing. Enough
// to answer "have we emitted this" and to reconcile against the sink.
type SeenMeta struct {
	ExternalID   string    `json:"external_id"`
	Link         string    `json:"link,omitempty"`
	District     string    `json:"district,omitempty"`
	Price        int64     `json:"price,omitempty"`
	SinkRecordID string    `json:"sink_record_id,omitempty"`
	SeenAt       time.Time `json:"seen_at"`
}

// Store defines the persistence interface for the listing pipeline.
type Store interface {
	// Seen set
	MarkSeenIfNew(ctx context.Context, meta SeenMeta) (bool, error)
	Seen(ctx context.Context, externalID string) (bool, error)
	ListSeen(ctx context.Context, limit int) ([]SeenMeta, error)
	CountSeen(ctx context.Context) (int64, error)
	ImportSeen(ctx context.Context, metas []SeenMeta) (int64, error)

	// Daily quota, keyed by UTC date string
	ReserveQuota(ctx context.Context, day string, capacity int) (bool, error)
	ReleaseQuota(ctx context.Context, day string) error
	QuotaUsed(ctx context.Context, day string) (int, error)

	// Sweep records
	CreateSweep(ctx context.Context, sessionID int64) (*model.Sweep, error)
	FinishSweep(ctx context.Context, sweepID string, stats model.SweepStats) error
	LastSweeps(ctx context.Context, limit int) ([]model.Sweep, error)

	// Named criteria profiles
	LoadCriteria(ctx context.Context, name string) (*model.Criteria, error)
	SaveCriteria(ctx context.Context, name string, c model.Criteria) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
