package fetcher

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/steinik-group/rentscout/pkg/cian"
)

// APIFetcher retrieves search-results pages through Cian's internal JSON
// API. It is the preferred strategy: the payload is structured and immune
// to markup changes. Detail pages are not served by this API.
type APIFetcher struct {
	client   cian.Client
	regionID int
}

// NewAPIFetcher creates an API-backed search page fetcher.
func NewAPIFetcher(client cian.Client, regionID int) *APIFetcher {
	if regionID == 0 {
		regionID = 1
	}
	return &APIFetcher{client: client, regionID: regionID}
}

func (f *APIFetcher) Name() string { return "cian-api" }

func (f *APIFetcher) Supports(target Target) bool { return !target.IsDetail() }

func (f *APIFetcher) Fetch(ctx context.Context, target Target) (*Result, error) {
	c := target.Criteria
	if c == nil {
		return nil, eris.New("fetch: search target without criteria")
	}

	resp, err := f.client.SearchOffers(ctx, cian.SearchQuery{
		Page:          target.Page,
		RegionID:      f.regionID,
		MinArea:       c.AreaMin,
		MaxArea:       c.AreaMax,
		MaxPrice:      c.PriceMax,
		DistrictIDs:   cian.DistrictIDs(c.DistrictAllowlist),
		Rooms:         c.RoomsAllowlist,
		NotFirstFloor: c.ExcludeFirstFloor,
	})
	if err != nil {
		var se *cian.StatusError
		if errors.As(err, &se) {
			if blocked, kind := DetectBlock(se.StatusCode, ""); blocked {
				return nil, &BlockedError{StatusCode: se.StatusCode, Block: kind}
			}
			return nil, &BlockedError{StatusCode: se.StatusCode, Block: BlockStatus}
		}
		if IsTimeout(err) {
			return nil, &TimeoutError{Target: f.Name(), Err: err}
		}
		return nil, eris.Wrapf(err, "fetch: api page %d", target.Page)
	}

	if len(resp.Data.Offers) == 0 {
		return nil, ErrEmpty
	}

	return &Result{
		Offers:    resp.Data.Offers,
		Source:    f.Name(),
		FetchedAt: time.Now().UTC(),
	}, nil
}
