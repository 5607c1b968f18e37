// Package scrape drives price extraction across all active tracked items
// with a bounded two-level worker pool. One failing item never aborts its
// siblings, its owner's batch, or the sweep.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"snatcher/internal/browser"
	"snatcher/internal/config"
	"snatcher/internal/currency"
	"snatcher/internal/database"
	"snatcher/internal/extract"
	"snatcher/internal/model"
	"snatcher/internal/snatch"
)

// OutcomeKind classifies one item's sweep result.
type OutcomeKind string

const (
	OutcomeSnatched     OutcomeKind = "snatched"
	OutcomePriceUpdated OutcomeKind = "price_updated"
	OutcomeConflict     OutcomeKind = "conflict"
	OutcomeSkipped      OutcomeKind = "skipped"
	OutcomeNotFound     OutcomeKind = "not_found"
	OutcomeParseError   OutcomeKind = "parse_error"
	OutcomeNetworkError OutcomeKind = "network_error"
	OutcomeSessionError OutcomeKind = "session_error"
	OutcomeError        OutcomeKind = "error"
)

// Outcome is the per-item result of a sweep. Failures are recorded here,
// never propagated.
type Outcome struct {
	ItemID int64
	URL    string
	Kind   OutcomeKind
	Price  *model.CanonicalPrice
	Err    error
}

/// Orchestrator runs sweeps over all active tracked items. It is long-lived:
// one instance serves every scheduled and on-demand run.
type Orchestrator struct {
	logger    *slog.Logger
	repo      database.Repository
	engine    *snatch.Engine
	browsers  browser.Factory
	rules     *extract.Registry
	extractor *extract.Extractor
	norm      *currency.Normalizer
	cfg       config.ScrapeConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	logger *slog.Logger,
	repo database.Repository,
	engine *snatch.Engine,
	browsers browser.Factory,
	rules *extract.Registry,
	extractor *extract.Extractor,
	norm *currency.Normalizer,
	cfg config.ScrapeConfig,
) *Orchestrator {
	if cfg.OwnerWorkers <= 0 {
		cfg.OwnerWorkers = 4
	}
	if cfg.ItemWorkers <= 0 {
		cfg.ItemWorkers = 4
	}
	return &Orchestrator{
		logger:    logger,
		repo:      repo,
		engine:    engine,
		browsers:  browsers,
		rules:     rules,
		extractor: extractor,
		norm:      norm,
		cfg:       cfg,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// RunSweep checks every active item and returns per-item outcomes. It
// blocks until all spawned tasks complete. The only returned error is a
// failure to start the sweep at all; per-item failures live in the
// outcomes.
func (o *Orchestrator) RunSweep(ctx context.Context) ([]Outcome, error) {
	items, err := o.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("start sweep: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	byOwner := make(map[int64][]model.TrackedItem)
	for _, it := range items {
		byOwner[it.OwnerID] = append(byOwner[it.OwnerID], it)
	}
	o.logger.Info("sweep started", "items", len(items), "owners", len(byOwner))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes []Outcome
	)
	ownerSem := make(chan struct{}, o.cfg.OwnerWorkers)

	for _, ownerItems := range byOwner {
		wg.Add(1)
		ownerSem <- struct{}{}
		go func(ownerItems []model.TrackedItem) {
			defer func() { <-ownerSem; wg.Done() }()

			var itemWG sync.WaitGroup
			itemSem := make(chan struct{}, o.cfg.ItemWorkers)
			for _, it := range ownerItems {
				itemWG.Add(1)
				itemSem <- struct{}{}
				go func(it model.TrackedItem) {
					defer func() { <-itemSem; itemWG.Done() }()
					out := o.checkItem(ctx, it)
					mu.Lock()
					outcomes = append(outcomes, out)
					mu.Unlock()
				}(it)
			}
			itemWG.Wait()
		}(ownerItems)
	}
	wg.Wait()

	tally := make(map[OutcomeKind]int)
	for _, out := range outcomes {
		tally[out.Kind]++
	}
	o.logger.Info("sweep finished", "items", len(outcomes), "tally", tally)
	return outcomes, nil
}

// checkItem runs one item's full pipeline: rate-limit wait, session open,
// fetch, extract, normalize, evaluate. Every failure is classified into the
// outcome and isolated here.
func (o *Orchestrator) checkItem(ctx context.Context, item model.TrackedItem) Outcome {
	if err := o.limiterFor(item.URL).Wait(ctx); err != nil {
		return o.failure(item, err)
	}

	fetchCtx := ctx
	if o.cfg.FetchTimeoutSec > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, time.Duration(o.cfg.FetchTimeoutSec)*time.Second)
		defer cancel()
	}

	sess, err := o.browsers.Open(fetchCtx)
	if err != nil {
		return o.failure(item, err)
	}
	defer sess.Close()

	page, err := sess.Fetch(fetchCtx, item.URL)
	if err != nil {
		return o.failure(item, err)
	}

	rule := o.rules.Lookup(item.URL)
	cand, err := o.extractor.Extract(page, rule)
	if err != nil {
		return o.failure(item, err)
	}

	price, err := o.norm.Normalize(cand.Raw)
	if err != nil {
		return o.failure(item, err)
	}

	res, err := o.engine.Evaluate(ctx, item, &price)
	if err != nil {
		return o.failure(item, err)
	}

	o.logger.Debug("item checked",
		"item", item.ID, "rule", rule.Name,
		"price", price.BaseAmount, "result", res.Kind.String())
	return Outcome{ItemID: item.ID, URL: item.URL, Kind: resultKind(res.Kind), Price: &price}
}

// failure classifies an item-task error, logs it with item context, and
// wraps it in an Outcome. Not-found is an expected result and is logged
// quietly.
func (o *Orchestrator) failure(item model.TrackedItem, err error) Outcome {
	kind := classify(err)
	if kind == OutcomeNotFound {
		o.logger.Debug("no price this cycle", "item", item.ID, "url", item.URL)
	} else {
		o.logger.Error("item check failed",
			"item", item.ID, "url", item.URL, "kind", string(kind), "error", err)
	}
	return Outcome{ItemID: item.ID, URL: item.URL, Kind: kind, Err: err}
}

func classify(err error) OutcomeKind {
	var netErr *browser.NetworkError
	var sessErr *browser.SessionError
	var parseErr *currency.ParseError
	switch {
	case errors.Is(err, extract.ErrNotFound):
		return OutcomeNotFound
	case errors.As(err, &parseErr):
		return OutcomeParseError
	case errors.As(err, &netErr):
		return OutcomeNetworkError
	case errors.As(err, &sessErr):
		return OutcomeSessionError
	default:
		return OutcomeError
	}
}

func resultKind(k snatch.ResultKind) OutcomeKind {
	switch k {
	case snatch.ResultSnatched:
		return OutcomeSnatched
	case snatch.ResultPriceUpdated:
		return OutcomePriceUpdated
	case snatch.ResultConflict, snatch.ResultAlreadySnatched:
		return OutcomeConflict
	default:
		return OutcomeSkipped
	}
}

// limiterFor returns the shared per-domain rate limiter, spacing fetches
// against the same provider across concurrent tasks.
func (o *Orchestrator) limiterFor(rawURL string) *rate.Limiter {
	domain := ""
	if u, err := url.Parse(rawURL); err == nil {
		domain = u.Hostname()
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	lim, ok := o.limiters[domain]
	if !ok {
		perMin := o.cfg.DomainRatePerMin
		if perMin <= 0 {
			perMin = 6
		}
		lim = rate.NewLimiter(rate.Limit(perMin/60.0), 1)
		o.limiters[domain] = lim
	}
	return lim
}
