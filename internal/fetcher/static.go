package fetcher

import (
	"context"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rotisserie/eris"
)

// listing markers that must appear in a usable search or detail page.
var listingMarkers = []string{"CardComponent", "/sale/flat/", "offersSerialized"}

// StaticOptions configures the static HTML fetcher.
type StaticOptions struct {
	BaseURL   string
	RegionID  int
	UserAgent string
	Timeout   time.Duration
}

// StaticFetcher retrieves pages with a plain HTTP GET through colly. It
// serves both search pages (via cat.php) and listing detail pages, and is
// the fallback when the JSON API is blocked.
type StaticFetcher struct {
	opts StaticOptions
}

// NewStaticFetcher creates a colly-backed fetcher.
func NewStaticFetcher(opts StaticOptions) *StaticFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 45 * time.Second
	}
	if opts.RegionID == 0 {
		opts.RegionID = 1
	}
	return &StaticFetcher{opts: opts}
}

func (f *StaticFetcher) Name() string { return "static" }

func (f *StaticFetcher) Supports(target Target) bool { return true }

func (f *StaticFetcher) Fetch(ctx context.Context, target Target) (*Result, error) {
	pageURL := target.URL
	if !target.IsDetail() {
		if target.Criteria == nil {
			return nil, eris.New("fetch: search target without criteria")
		}
		pageURL = SearchURL(f.opts.BaseURL, f.opts.RegionID, target.Criteria, target.Page)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// A fresh collector per request: no shared cookie state across sweeps.
	c := colly.NewCollector(colly.UserAgent(f.opts.UserAgent))
	c.SetRequestTimeout(f.opts.Timeout)

	var (
		html       string
		statusCode int
		fetchErr   error
	)
	c.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		html = string(r.Body)
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
		fetchErr = err
	})

	if err := c.Visit(pageURL); err != nil {
		fetchErr = err
	}
	c.Wait()

	if fetchErr != nil {
		if IsTimeout(fetchErr) {
			return nil, &TimeoutError{Target: pageURL, Err: fetchErr}
		}
		if blocked, kind := DetectBlock(statusCode, html); blocked {
			return nil, &BlockedError{StatusCode: statusCode, Block: kind}
		}
		return nil, eris.Wrapf(fetchErr, "fetch: static get %s", pageURL)
	}

	if blocked, kind := DetectBlock(statusCode, html); blocked {
		return nil, &BlockedError{StatusCode: statusCode, Block: kind}
	}

	if !hasListingMarker(html) {
		return nil, ErrEmpty
	}

	return &Result{
		HTML:      html,
		Source:    f.Name(),
		FetchedAt: time.Now().UTC(),
	}, nil
}

func hasListingMarker(html string) bool {
	for _, m := range listingMarkers {
		if strings.Contains(html, m) {
			return true
		}
	}
	return false
}
