// Package fetcher retrieves raw search-results pages and listing detail
// pages through a chain of fetch strategies.
package fetcher

import (
	"context"
	"time"

	"github.com/steinik-group/rentscout/internal/model"
	"github.com/steinik-group/rentscout/pkg/cian"
)

// Target identifies either a search-results page (criteria + page number)
// or a single listing detail page (URL).
type Target struct {
	Criteria *model.Criteria
	Page     int
	URL      string
}

// IsDetail reports whether the target is a listing detail page.
func (t Target) IsDetail() bool { return t.URL != "" }

// Result holds raw fetched content. Exactly one of Offers and HTML is
// populated, depending on which fetcher produced it.
type Result struct {
	Offers    []cian.Offer
	HTML      string
	Source    string
	FetchedAt time.Time
}

// Fetcher retrieves raw content for one target.
type Fetcher interface {
	Fetch(ctx context.Context, target Target) (*Result, error)
	Name() string
	Supports(target Target) bool
}
