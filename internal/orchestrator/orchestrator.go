// Package orchestrator drives the discovery pipeline: it owns per-session
// run state and executes sweeps over the configured page range, moving each
// card through extract, classify, filter, dedup, quota, and sink.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/steinik-group/rentscout/internal/classify"
	"github.com/steinik-group/rentscout/internal/criteria"
	"github.com/steinik-group/rentscout/internal/dedup"
	"github.com/steinik-group/rentscout/internal/extract"
	"github.com/steinik-group/rentscout/internal/fetcher"
	"github.com/steinik-group/rentscout/internal/filter"
	"github.com/steinik-group/rentscout/internal/model"
	"github.com/steinik-group/rentscout/internal/notify"
	"github.com/steinik-group/rentscout/internal/quota"
	"github.com/steinik-group/rentscout/internal/sink"
	"github.com/steinik-group/rentscout/internal/store"
)

// ErrAlreadyRunning is returned by Start when the session has a sweep loop.
var ErrAlreadyRunning = errors.New("orchestrator: session already running")

// RunState is the lifecycle state of one session.
type RunState string

const (
	StateIdle          RunState = "idle"
	StateRunning       RunState = "running"
	StateStopRequested RunState = "stop_requested"
	StateStopped       RunState = "stopped"
)

// Fetcher retrieves one target. The fetch chain satisfies this.
type Fetcher interface {
	Fetch(ctx context.Context, target fetcher.Target) (*fetcher.Result, error)
}

// Config tunes sweep pacing and scope.
type Config struct {
	MaxPages  int
	PageDelay time.Duration
	CardDelay time.Duration
	IdleDelay time.Duration

	// EnrichDetails fetches listing detail pages to fill fields the search
	// card did not carry. Costs one request per incomplete listing.
	EnrichDetails     bool
	EnrichConcurrency int
}

func (c Config) withDefaults() Config {
	if c.MaxPages <= 0 {
		c.MaxPages = 5
	}
	if c.IdleDelay <= 0 {
		c.IdleDelay = 30 * time.Minute
	}
	return c
}

// Orchestrator coordinates sweeps across sessions. All mutable session
// state lives here, guarded by the mutex; the pipeline stages themselves
// are stateless or store-backed.
type Orchestrator struct {
	cfg        Config
	fetch      Fetcher
	extractor  *extract.Extractor
	classifier *classify.Classifier
	criteria   criteria.Source
	dedup      *dedup.Deduplicator
	quota      *quota.Controller
	sink       sink.Sink
	store      store.Store
	notifier   notify.Notifier

	mu       sync.Mutex
	sessions map[int64]*session
}

type session struct {
	id    int64
	state RunState
	stop  bool
	stats model.SweepStats
}

// New wires an Orchestrator. The notifier may be nil.
func New(cfg Config, fetch Fetcher, ex *extract.Extractor, cl *classify.Classifier,
	crit criteria.Source, dd *dedup.Deduplicator, qc *quota.Controller,
	sk sink.Sink, st store.Store, nt notify.Notifier) *Orchestrator {

	if nt == nil {
		nt = notify.LogNotifier{}
	}
	return &Orchestrator{
		cfg:        cfg.withDefaults(),
		fetch:      fetch,
		extractor:  ex,
		classifier: cl,
		criteria:   crit,
		dedup:      dd,
		quota:      qc,
		sink:       sk,
		store:      st,
		notifier:   nt,
		sessions:   make(map[int64]*session),
	}
}

// State reports the session's run state. Unknown sessions are idle.
func (o *Orchestrator) State(sessionID int64) RunState {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.sessions[sessionID]; ok {
		return s.state
	}
	return StateIdle
}

// Stats returns the running tally of the session's current or last sweep.
func (o *Orchestrator) Stats(sessionID int64) (model.SweepStats, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.sessions[sessionID]; ok {
		return s.stats, true
	}
	return model.SweepStats{}, false
}

// Start launches the sweep loop for a session. Starting a running session
// is rejected with ErrAlreadyRunning; the existing loop is untouched. An
// unloadable or invalid criteria profile rejects the start request and the
// session stays out of the running states.
func (o *Orchestrator) Start(ctx context.Context, sessionID int64) error {
	s, err := o.claimSession(ctx, sessionID)
	if err != nil {
		return err
	}

	go o.run(ctx, s)
	return nil
}

// claimSession takes the session slot for a new sweep loop. The criteria
// profile is loaded first so a broken profile surfaces to the caller
// before any state transition happens.
func (o *Orchestrator) claimSession(ctx context.Context, sessionID int64) (*session, error) {
	o.mu.Lock()
	if s, ok := o.sessions[sessionID]; ok && (s.state == StateRunning || s.state == StateStopRequested) {
		o.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	o.mu.Unlock()

	if _, err := o.criteria.Load(ctx); err != nil {
		return nil, eris.Wrap(err, "orchestrator: load criteria")
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if s, ok := o.sessions[sessionID]; ok && (s.state == StateRunning || s.state == StateStopRequested) {
		return nil, ErrAlreadyRunning
	}
	s := &session{id: sessionID, state: StateRunning}
	o.sessions[sessionID] = s
	return s, nil
}

// Stop requests a graceful stop. The loop exits at the next page or card
// boundary. Returns false when the session was not running.
func (o *Orchestrator) Stop(sessionID int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[sessionID]
	if !ok || s.state != StateRunning {
		return false
	}
	s.state = StateStopRequested
	s.stop = true
	return true
}

func (o *Orchestrator) run(ctx context.Context, s *session) {
	defer o.setState(s, StateStopped)

	for {
		if _, err := o.runSweep(ctx, s); err != nil {
			zap.L().Error("sweep failed, stopping session",
				zap.Int64("session_id", s.id), zap.Error(err))
			return
		}
		if o.stopRequested(s) || ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(o.cfg.IdleDelay):
		}
		if o.stopRequested(s) {
			return
		}
	}
}

// RunOnce executes a single sweep outside any session loop.
func (o *Orchestrator) RunOnce(ctx context.Context, sessionID int64) (*model.Sweep, error) {
	s, err := o.claimSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	defer o.setState(s, StateStopped)
	return o.runSweep(ctx, s)
}

// runSweep performs one pass: criteria snapshot, page loop, per-card
// pipeline, sweep record, summary. Errors returned here are fatal to the
// session; fetch-level failures end the sweep but are not fatal.
func (o *Orchestrator) runSweep(ctx context.Context, s *session) (*model.Sweep, error) {
	crit, err := o.criteria.Load(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: load criteria")
	}

	if err := o.reconcileColdStart(ctx); err != nil {
		return nil, err
	}

	sweep, err := o.store.CreateSweep(ctx, s.id)
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: create sweep")
	}

	stats := model.SweepStats{}
	o.publishStats(s, stats)

	quotaExhausted := false

pages:
	for page := 1; page <= o.cfg.MaxPages; page++ {
		if o.stopRequested(s) || ctx.Err() != nil {
			break
		}

		res, err := o.fetch.Fetch(ctx, fetcher.Target{Criteria: &crit, Page: page})
		if err != nil {
			if fetcher.IsEmpty(err) {
				zap.L().Debug("no more listings", zap.Int("page", page))
			} else {
				zap.L().Warn("page fetch failed, ending sweep",
					zap.Int("page", page), zap.Error(err))
			}
			break
		}
		stats.PagesScanned++

		listings, extErrs := o.extractPage(res)
		stats.CardsSeen += len(listings) + len(extErrs)
		stats.Extracted += len(listings)
		stats.ExtractionFailed += len(extErrs)
		for _, e := range extErrs {
			zap.L().Debug("card extraction failed", zap.Int("page", page), zap.Error(e))
		}

		accepted := make([]model.CandidateListing, 0, len(listings))
		for i := range listings {
			l := &listings[i]
			o.classifier.Classify(l)

			if ok, reason := filter.Accept(l, &crit); !ok {
				stats.Rejected++
				zap.L().Debug("listing rejected",
					zap.String("external_id", l.ExternalID), zap.String("reason", reason))
				continue
			}
			accepted = append(accepted, *l)
		}

		// Detail pages are fetched only for listings that survived the
		// filter; enriched fields can still reveal a disqualifier.
		o.enrichListings(ctx, accepted)

		for i := range accepted {
			if o.stopRequested(s) || ctx.Err() != nil {
				break pages
			}
			l := &accepted[i]
			o.classifier.Classify(l)

			if ok, reason := filter.Accept(l, &crit); !ok {
				stats.Rejected++
				zap.L().Debug("listing rejected after enrichment",
					zap.String("external_id", l.ExternalID), zap.String("reason", reason))
				continue
			}

			outcome, err := o.emit(ctx, l, &stats)
			if err != nil {
				return nil, err
			}
			if outcome == emitQuotaExhausted {
				quotaExhausted = true
				break pages
			}

			o.publishStats(s, stats)
			o.pause(ctx, o.cfg.CardDelay)
		}

		o.publishStats(s, stats)
		if page < o.cfg.MaxPages {
			o.pause(ctx, o.cfg.PageDelay)
		}
	}

	if remaining, err := o.quota.Remaining(ctx); err == nil {
		stats.QuotaRemaining = remaining
	}
	if quotaExhausted {
		zap.L().Info("daily quota exhausted", zap.Int64("session_id", s.id))
		o.notifier.QuotaExhausted(ctx, o.quota.Cap())
	}

	sweep.Stats = stats
	o.publishStats(s, stats)
	if err := o.store.FinishSweep(ctx, sweep.ID, stats); err != nil {
		return nil, eris.Wrap(err, "orchestrator: finish sweep")
	}
	now := time.Now().UTC()
	sweep.FinishedAt = &now

	o.notifier.SweepFinished(ctx, sweep)
	return sweep, nil
}

type emitOutcome int

const (
	emitOK emitOutcome = iota
	emitDuplicate
	emitQuotaExhausted
	emitSinkError
)

// emit runs the tail of the pipeline for one accepted listing. Order
// matters: dedup check, quota reservation, sink append, then the seen
// mark. A sink failure releases the reservation and leaves the listing
// unmarked so a later sweep retries it.
func (o *Orchestrator) emit(ctx context.Context, l *model.CandidateListing, stats *model.SweepStats) (emitOutcome, error) {
	isNew, err := o.dedup.IsNew(ctx, l.ExternalID)
	if err != nil {
		return 0, err
	}
	if !isNew {
		stats.Duplicates++
		return emitDuplicate, nil
	}

	reserved, err := o.quota.TryReserve(ctx)
	if err != nil {
		return 0, err
	}
	if !reserved {
		return emitQuotaExhausted, nil
	}

	recordID, err := o.sink.Append(ctx, l)
	if err != nil {
		stats.SinkErrors++
		zap.L().Warn("sink append failed, releasing quota",
			zap.String("external_id", l.ExternalID), zap.Error(err))
		if rerr := o.quota.Release(ctx); rerr != nil {
			return 0, rerr
		}
		return emitSinkError, nil
	}

	marked, err := o.dedup.MarkSeen(ctx, l, recordID)
	if err != nil {
		return 0, err
	}
	if !marked {
		// Another sweep emitted it between our check and mark.
		stats.Duplicates++
		if rerr := o.quota.Release(ctx); rerr != nil {
			return 0, rerr
		}
		return emitDuplicate, nil
	}

	stats.Emitted++
	o.notifier.ListingEmitted(ctx, l)
	return emitOK, nil
}

func (o *Orchestrator) extractPage(res *fetcher.Result) ([]model.CandidateListing, []error) {
	if len(res.Offers) > 0 {
		return o.extractor.FromOffers(res.Offers, res.FetchedAt)
	}
	return o.extractor.FromHTML(res.HTML, res.FetchedAt)
}

// reconcileColdStart seeds an empty seen set from the sink, so a fresh
// database never re-emits listings the sink already holds.
func (o *Orchestrator) reconcileColdStart(ctx context.Context) error {
	count, err := o.store.CountSeen(ctx)
	if err != nil {
		return eris.Wrap(err, "orchestrator: count seen")
	}
	if count > 0 {
		return nil
	}

	metas, err := o.sink.ListSeen(ctx)
	if err != nil {
		return eris.Wrap(err, "orchestrator: list sink records")
	}
	if len(metas) == 0 {
		return nil
	}

	n, err := o.dedup.Reconcile(ctx, metas)
	if err != nil {
		return err
	}
	zap.L().Info("seen set seeded from sink", zap.Int64("imported", n))
	return nil
}

func (o *Orchestrator) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func (o *Orchestrator) stopRequested(s *session) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return s.stop
}

func (o *Orchestrator) setState(s *session, state RunState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s.state = state
}

func (o *Orchestrator) publishStats(s *session, stats model.SweepStats) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s.stats = stats
}
