package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/steinik-group/rentscout/internal/classify"
	"github.com/steinik-group/rentscout/internal/criteria"
	"github.com/steinik-group/rentscout/internal/dedup"
	"github.com/steinik-group/rentscout/internal/extract"
	"github.com/steinik-group/rentscout/internal/fetcher"
	"github.com/steinik-group/rentscout/internal/notify"
	"github.com/steinik-group/rentscout/internal/orchestrator"
	"github.com/steinik-group/rentscout/internal/quota"
	"github.com/steinik-group/rentscout/internal/resilience"
	"github.com/steinik-group/rentscout/internal/sink"
	"github.com/steinik-group/rentscout/internal/store"
	"github.com/steinik-group/rentscout/pkg/cian"
	"github.com/steinik-group/rentscout/pkg/notion"
	"github.com/steinik-group/rentscout/pkg/telegram"
)

// pipelineEnv bundles everything a command needs to run sweeps.
type pipelineEnv struct {
	Store    store.Store
	Sink     sink.Sink
	Criteria criteria.Source
	Orch     *orchestrator.Orchestrator
	Telegram telegram.Client

	chrome *fetcher.ChromeFetcher
}

// Close releases the store and, when present, the headless browser.
func (e *pipelineEnv) Close() {
	if e.chrome != nil {
		e.chrome.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func initSink() (sink.Sink, error) {
	switch cfg.Sink.Kind {
	case "notion":
		if cfg.Notion.Token == "" || cfg.Notion.ListingDB == "" {
			return nil, eris.New("notion sink requires notion.token and notion.listing_db")
		}
		return sink.NewNotion(notion.NewClient(cfg.Notion.Token), cfg.Notion.ListingDB), nil
	case "csv", "":
		return sink.NewCSV(cfg.Sink.CSVPath), nil
	default:
		return nil, eris.Errorf("unknown sink kind %q", cfg.Sink.Kind)
	}
}

func initCriteriaSource(st store.Store) criteria.Source {
	if cfg.Criteria.Path != "" {
		return criteria.NewFileSource(cfg.Criteria.Path)
	}
	return criteria.NewStoreSource(st, "default")
}

func initFetchChain() (*fetcher.Chain, *fetcher.ChromeFetcher) {
	timeout := time.Duration(cfg.Fetch.TimeoutSecs) * time.Second

	apiClient := cian.NewClient(
		cian.WithBaseURL(cfg.Cian.APIBaseURL),
		cian.WithUserAgent(cfg.Cian.UserAgent),
		cian.WithRateLimit(cfg.Cian.RateRPS),
	)

	fetchers := []fetcher.Fetcher{
		fetcher.NewAPIFetcher(apiClient, cfg.Cian.RegionID),
		fetcher.NewStaticFetcher(fetcher.StaticOptions{
			BaseURL:   cfg.Cian.BaseURL,
			RegionID:  cfg.Cian.RegionID,
			UserAgent: cfg.Cian.UserAgent,
			Timeout:   timeout,
		}),
	}

	var chrome *fetcher.ChromeFetcher
	if cfg.Fetch.UseChrome {
		chrome = fetcher.NewChromeFetcher(fetcher.ChromeOptions{
			BaseURL:   cfg.Cian.BaseURL,
			RegionID:  cfg.Cian.RegionID,
			UserAgent: cfg.Cian.UserAgent,
			Headless:  cfg.Fetch.ChromeHeadless,
			Timeout:   timeout,
		})
		fetchers = append(fetchers, chrome)
	}

	retry := resilience.RetryConfig{
		MaxAttempts:    cfg.Fetch.MaxAttempts,
		InitialBackoff: time.Duration(cfg.Fetch.InitialBackoffMs) * time.Millisecond,
		MaxBackoff:     time.Duration(cfg.Fetch.MaxBackoffMs) * time.Millisecond,
	}
	limiter := rate.NewLimiter(rate.Limit(cfg.Cian.RateRPS), 1)

	return fetcher.NewChain(retry, limiter, fetchers...), chrome
}

// initEnv wires the full pipeline from configuration.
func initEnv(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	sk, err := initSink()
	if err != nil {
		st.Close()
		return nil, err
	}

	critSrc := initCriteriaSource(st)
	chain, chrome := initFetchChain()

	var tg telegram.Client
	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.Telegram.Token != "" {
		tg = telegram.NewClient(cfg.Telegram.Token)
		if cfg.Telegram.AdminChatID != 0 {
			notifier = notify.NewTelegram(tg, cfg.Telegram.AdminChatID)
		}
	}

	orch := orchestrator.New(
		orchestrator.Config{
			MaxPages:          cfg.Sweep.MaxPages,
			PageDelay:         time.Duration(cfg.Sweep.PageDelayMs) * time.Millisecond,
			CardDelay:         time.Duration(cfg.Sweep.CardDelayMs) * time.Millisecond,
			IdleDelay:         time.Duration(cfg.Sweep.IdleIntervalSecs) * time.Second,
			EnrichDetails:     cfg.Sweep.EnrichDetail,
			EnrichConcurrency: cfg.Sweep.EnrichConcurrency,
		},
		chain,
		extract.New(extract.Options{PriceMin: cfg.Extract.PriceMin, PriceMax: cfg.Extract.PriceMax}),
		classify.New(),
		critSrc,
		dedup.New(st),
		quota.New(st, cfg.Quota.DailyCap),
		sk,
		st,
		notifier,
	)

	return &pipelineEnv{
		Store:    st,
		Sink:     sk,
		Criteria: critSrc,
		Orch:     orch,
		Telegram: tg,
		chrome:   chrome,
	}, nil
}
