// Package sink delivers accepted listings to their destination: a Notion
// database or a local CSV file.
package sink

import (
	"context"

	"github.com/steinik-group/rentscout/internal/model"
	"github.com/steinik-group/rentscout/internal/store"
)

// Sink is the emission destination. Append must be safe to call again with
// the same listing after a failure; Exists answers against the destination
// itself, not any local cache.
type Sink interface {
	// Append writes one listing and returns the destination record id.
	Append(ctx context.Context, l *model.CandidateListing) (string, error)
	// Exists reports whether the destination already holds the listing.
	Exists(ctx context.Context, externalID string) (bool, error)
	// ListSeen returns every listing the destination holds, for seeding
	// the local seen set on a cold start.
	ListSeen(ctx context.Context) ([]store.SeenMeta, error)
	Name() string
}
