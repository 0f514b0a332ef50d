package orchestrator

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/steinik-group/rentscout/internal/fetcher"
	"github.com/steinik-group/rentscout/internal/model"
)

// enrichListings fetches detail pages for accepted listings the search
// card left incomplete and fills in the missing fields. Failures leave the
// listing as extracted; enrichment is best-effort.
func (o *Orchestrator) enrichListings(ctx context.Context, listings []model.CandidateListing) {
	if !o.cfg.EnrichDetails {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	limit := o.cfg.EnrichConcurrency
	if limit <= 0 {
		limit = 2
	}
	g.SetLimit(limit)

	for i := range listings {
		l := &listings[i]
		if !needsEnrichment(l) || l.Link == "" {
			continue
		}
		g.Go(func() error {
			o.enrichOne(gctx, l)
			return nil
		})
	}
	_ = g.Wait()
}

func needsEnrichment(l *model.CandidateListing) bool {
	return l.Rooms == model.RoomsUnknown || l.Floor == 0 || l.FloorTotal == 0 || l.AreaLiving == 0
}

func (o *Orchestrator) enrichOne(ctx context.Context, l *model.CandidateListing) {
	res, err := o.fetch.Fetch(ctx, fetcher.Target{URL: l.Link})
	if err != nil {
		zap.L().Debug("detail enrichment failed",
			zap.String("external_id", l.ExternalID), zap.Error(err))
		return
	}

	details, _ := o.extractor.FromHTML(res.HTML, res.FetchedAt)
	for _, d := range details {
		if d.ExternalID != l.ExternalID {
			continue
		}
		if l.Rooms == model.RoomsUnknown {
			l.Rooms = d.Rooms
		}
		if l.Floor == 0 {
			l.Floor = d.Floor
		}
		if l.FloorTotal == 0 {
			l.FloorTotal = d.FloorTotal
		}
		if l.AreaLiving == 0 {
			l.AreaLiving = d.AreaLiving
		}
		if l.AddressText == "" {
			l.AddressText = d.AddressText
		}
		if l.BodyRaw == "" {
			l.BodyRaw = d.BodyRaw
		}
		return
	}
}
