package fetcher

import (
	"context"
	"errors"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ChromeOptions configures the rendered-page fetcher.
type ChromeOptions struct {
	BaseURL   string
	RegionID  int
	UserAgent string
	Headless  bool
	Timeout   time.Duration
	// SettleDelay waits for client-side rendering after navigation.
	SettleDelay time.Duration
}

// ChromeFetcher renders pages in a headless browser. It is the last resort
// in the chain: slow, but it survives JS-only shells and most soft blocks.
// The browser session lives for the lifetime of the fetcher, which is one
// sweep; it is not shared across concurrent sweeps.
type ChromeFetcher struct {
	opts     ChromeOptions
	allocCtx context.Context
	cancel   context.CancelFunc
}

// NewChromeFetcher creates the fetcher and its browser allocator. Callers
// must Close it to release the browser.
func NewChromeFetcher(opts ChromeOptions) *ChromeFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.SettleDelay == 0 {
		opts.SettleDelay = 2 * time.Second
	}
	if opts.RegionID == 0 {
		opts.RegionID = 1
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	return &ChromeFetcher{opts: opts, allocCtx: allocCtx, cancel: cancel}
}

// Close releases the browser allocator.
func (f *ChromeFetcher) Close() { f.cancel() }

func (f *ChromeFetcher) Name() string { return "chrome" }

func (f *ChromeFetcher) Supports(target Target) bool { return true }

func (f *ChromeFetcher) Fetch(ctx context.Context, target Target) (*Result, error) {
	pageURL := target.URL
	if !target.IsDetail() {
		if target.Criteria == nil {
			return nil, eris.New("fetch: search target without criteria")
		}
		pageURL = SearchURL(f.opts.BaseURL, f.opts.RegionID, target.Criteria, target.Page)
	}

	tabCtx, cancelTab := chromedp.NewContext(f.allocCtx, chromedp.WithLogf(func(string, ...any) {}))
	defer cancelTab()

	runCtx, cancelTimeout := context.WithTimeout(tabCtx, f.opts.Timeout)
	defer cancelTimeout()

	// Propagate caller cancellation into the browser context.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.Sleep(f.opts.SettleDelay),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{Target: pageURL, Err: err}
		}
		return nil, eris.Wrapf(err, "fetch: chrome render %s", pageURL)
	}

	if blocked, kind := DetectBlock(0, html); blocked {
		zap.L().Debug("chrome fetch blocked", zap.String("url", pageURL), zap.String("kind", string(kind)))
		return nil, &BlockedError{Block: kind}
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
